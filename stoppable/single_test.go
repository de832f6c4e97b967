////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"testing"
	"time"
)

// Tests that NewSingle returns a running Single with the given name.
func TestNewSingle(t *testing.T) {
	name := "threadName"
	single := NewSingle(name)

	if single.Name() != name {
		t.Errorf("NewSingle returned Single with incorrect name."+
			"\nexpected: %s\nreceived: %s", name, single.Name())
	}

	if !single.IsRunning() {
		t.Errorf("NewSingle returned Single with incorrect status."+
			"\nexpected: %s\nreceived: %s", Running, single.GetStatus())
	}
}

// Tests that every reader of Quit observes Close.
func TestSingle_Quit_MultipleReaders(t *testing.T) {
	single := NewSingle("threadName")

	const readers = 3
	observed := make(chan struct{}, readers)
	for i := 0; i < readers; i++ {
		go func() {
			<-single.Quit()
			observed <- struct{}{}
		}()
	}

	if err := single.Close(); err != nil {
		t.Fatalf("Close returned an error: %+v", err)
	}

	for i := 0; i < readers; i++ {
		select {
		case <-observed:
		case <-time.After(time.Second):
			t.Fatalf("Reader %d did not observe the closed quit channel.", i)
		}
	}
}

// Tests the full running -> stopping -> stopped life cycle.
func TestSingle_Lifecycle(t *testing.T) {
	single := NewSingle("threadName")

	go func() {
		<-single.Quit()
		single.ToStopped()
	}()

	if err := single.Close(); err != nil {
		t.Fatalf("Close returned an error: %+v", err)
	}

	if err := single.WaitForStopped(time.Second); err != nil {
		t.Fatalf("WaitForStopped returned an error: %+v", err)
	}

	if !single.IsStopped() {
		t.Errorf("Unexpected status.\nexpected: %s\nreceived: %s",
			Stopped, single.GetStatus())
	}
}

// Tests that a second Close returns an error and does not panic.
func TestSingle_Close_Twice(t *testing.T) {
	single := NewSingle("threadName")

	if err := single.Close(); err != nil {
		t.Fatalf("First Close returned an error: %+v", err)
	}

	if err := single.Close(); err == nil {
		t.Error("Second Close did not return an error.")
	}
}

// Tests that WaitForStopped times out when the goroutine never stops.
func TestSingle_WaitForStopped_Timeout(t *testing.T) {
	single := NewSingle("threadName")
	_ = single.Close()

	if err := single.WaitForStopped(10 * time.Millisecond); err == nil {
		t.Error("WaitForStopped did not time out.")
	}

	if !single.IsStopping() {
		t.Errorf("Unexpected status.\nexpected: %s\nreceived: %s",
			Stopping, single.GetStatus())
	}
}

// Tests that ToStopped panics when called on a running Single.
func TestSingle_ToStopped_Panic(t *testing.T) {
	single := NewSingle("threadName")

	defer func() {
		if r := recover(); r == nil {
			t.Error("ToStopped did not panic on a running Single.")
		}
	}()

	single.ToStopped()
}

// Unit test of Status.String.
func TestStatus_String(t *testing.T) {
	expected := map[Status]string{
		Running:   "running",
		Stopping:  "stopping",
		Stopped:   "stopped",
		Status(9): "INVALID STATUS 9",
	}

	for status, str := range expected {
		if status.String() != str {
			t.Errorf("Incorrect string.\nexpected: %s\nreceived: %s",
				str, status.String())
		}
	}
}
