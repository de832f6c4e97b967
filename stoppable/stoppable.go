////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package stoppable owns the lifecycle of the engine's background services:
// the heartbeat loop, the health tracker, the cache resender and message
// windows. Each is started with a Stoppable and must call ToStopped on its
// way out. Typing timers use time.AfterFunc and aggregator loops close their
// own channels; neither goes through a Stoppable.
package stoppable

import "strconv"

// Stoppable is the interface for stopping a goroutine.
type Stoppable interface {
	// Close signals the goroutine to stop. It does not wait.
	Close() error

	// IsRunning returns true until Close has been called.
	IsRunning() bool

	// Name returns a human-readable name used in logs.
	Name() string
}

// Status is the lifecycle state of a Stoppable.
type Status uint32

const (
	Running Status = iota
	Stopping
	Stopped
)

// String returns a human-readable name for the Status. Used for debugging.
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "INVALID STATUS " + strconv.FormatUint(uint64(s), 10)
	}
}
