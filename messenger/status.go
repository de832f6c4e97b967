////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messenger

import (
	"fmt"
)

// Status holds the status of the Messenger's background processes.
type Status int

const (
	// Stopped signifies that the heartbeat and the background tasks are not
	// running.
	Stopped Status = 0

	// Running signifies that the heartbeat and the background tasks are
	// active for the signed in user.
	Running Status = 2000

	// Stopping signifies that the processes have been signalled to stop and
	// are shutting down.
	Stopping Status = 3000
)

// String returns a human-readable string version of the status. This function
// adheres to the fmt.Stringer interface.
func (s Status) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	default:
		return fmt.Sprintf("Unknown status %d", s)
	}
}
