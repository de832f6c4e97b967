////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package feeds

import "github.com/pkg/errors"

// ErrNotFound is returned when a conversation or message does not exist.
var ErrNotFound = errors.New("not found")

// Feed names used in logs and metrics.
const (
	NameConversations = "conversations"
	NameMessages      = "messages"
	NameVectors       = "vectors"
	NamePresence      = "presence"
	NameTyping        = "typing"
	NameUsers         = "users"
	NameCounts        = "counts"
)
