////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import "github.com/pkg/errors"

// Membership and validation errors. Callers compare with errors.Is.
var (
	ErrNoUser         = errors.New("no current user")
	ErrNotMember      = errors.New("user is not a member of the conversation")
	ErrAlreadyMember  = errors.New("user is already a member of the conversation")
	ErrNotGroup       = errors.New("membership can only change in group conversations")
	ErrNotAdmin       = errors.New("only the group creator may change membership")
	ErrCreatorRemoval = errors.New("the group creator cannot be removed")
	ErrInvalidMembers = errors.New("member set violates the conversation kind")
	ErrEmptyGroupName = errors.New("group conversations require a name")
	ErrUnknownKind    = errors.New("unknown conversation kind")
	ErrEmptyMessage   = errors.New("message text is empty")
)
