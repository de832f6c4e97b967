////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messenger

import "github.com/pkg/errors"

var (
	// ErrSendDeferred is returned by Send when the remote rejected the
	// message but it is kept locally and will be resent.
	ErrSendDeferred = errors.New("message stored locally and will be resent")

	ErrNotRunning     = errors.New("messenger is not running")
	ErrAlreadyRunning = errors.New("messenger is already running")
	ErrNoCache        = errors.New("local cache is disabled")
)

// Error messages.
const (
	sendErr        = "failed to send message to %s"
	membershipErr  = "failed to change membership of %s"
	markErr        = "failed to mark %s in %s"
	panicErr       = "%s panicked: %v"
	ensureErr      = "failed to create conversation %s"
	unknownConvErr = "conversation %s is unknown"
)
