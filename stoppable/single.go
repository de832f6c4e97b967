////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Error messages.
const (
	toStoppingErr = "failed to set the status of single stoppable %q to " +
		"stopping when status is %s instead of %s"
	waitTimeoutErr = "timed out after %s waiting for single stoppable %q " +
		"to stop; status is %s"
)

// Single stops a single goroutine. The quit channel is closed rather than
// sent on, so any number of selects inside the goroutine may observe it.
type Single struct {
	name   string
	quit   chan struct{}
	done   chan struct{}
	status uint32
	once   sync.Once
}

// NewSingle returns a new running Single.
func NewSingle(name string) *Single {
	return &Single{
		name:   name,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		status: uint32(Running),
	}
}

// Name returns the name of the Single.
func (s *Single) Name() string {
	return s.name
}

// GetStatus returns the current Status.
func (s *Single) GetStatus() Status {
	return Status(atomic.LoadUint32(&s.status))
}

// IsRunning returns true if the Single has not been closed.
func (s *Single) IsRunning() bool {
	return s.GetStatus() == Running
}

// IsStopping returns true if Close was called but the goroutine has not yet
// reported ToStopped.
func (s *Single) IsStopping() bool {
	return s.GetStatus() == Stopping
}

// IsStopped returns true once the goroutine has called ToStopped.
func (s *Single) IsStopped() bool {
	return s.GetStatus() == Stopped
}

// Quit returns a channel that is closed when the Single is closed.
func (s *Single) Quit() <-chan struct{} {
	return s.quit
}

// Close moves the Single from running to stopping and closes the quit
// channel. Calling Close more than once returns an error on every call after
// the first.
func (s *Single) Close() error {
	err := errors.Errorf(toStoppingErr, s.name, s.GetStatus(), Running)

	s.once.Do(func() {
		if !atomic.CompareAndSwapUint32(
			&s.status, uint32(Running), uint32(Stopping)) {
			return
		}
		err = nil

		jww.TRACE.Printf("Closing quit channel of single stoppable %q.",
			s.name)
		close(s.quit)
	})

	if err != nil {
		jww.DEBUG.Print(err.Error())
	}
	return err
}

// ToStopped is called by the goroutine when it has exited. Panics if the
// Single is not stopping, since that means the goroutine exited on its own.
func (s *Single) ToStopped() {
	if !atomic.CompareAndSwapUint32(
		&s.status, uint32(Stopping), uint32(Stopped)) {
		jww.FATAL.Panicf("Failed to set the status of single stoppable %q "+
			"to stopped when status is %s instead of %s.",
			s.name, s.GetStatus(), Stopping)
	}
	close(s.done)

	jww.TRACE.Printf("Single stoppable %q stopped.", s.name)
}

// WaitForStopped blocks until ToStopped is called or the timeout elapses.
func (s *Single) WaitForStopped(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return nil
	case <-timer.C:
		return errors.Errorf(waitTimeoutErr, timeout, s.name, s.GetStatus())
	}
}
