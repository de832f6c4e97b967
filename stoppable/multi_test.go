////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"strings"
	"testing"
)

// Tests that Multi.Close closes every child.
func TestMulti_Close(t *testing.T) {
	multi := NewMulti("session")
	singles := []*Single{NewSingle("a"), NewSingle("b"), NewSingle("c")}
	for _, s := range singles {
		multi.Add(s)
	}

	if !multi.IsRunning() {
		t.Error("Multi with running children reported not running.")
	}

	if err := multi.Close(); err != nil {
		t.Fatalf("Close returned an error: %+v", err)
	}

	for _, s := range singles {
		if s.IsRunning() {
			t.Errorf("Child %q still running after Multi.Close.", s.Name())
		}
	}

	if multi.IsRunning() {
		t.Error("Multi reported running after Close.")
	}
}

// Tests that Multi.Close reports children that fail to close.
func TestMulti_Close_ChildError(t *testing.T) {
	multi := NewMulti("session")
	closed := NewSingle("closed")
	_ = closed.Close()
	multi.Add(closed)
	multi.Add(NewSingle("fine"))

	err := multi.Close()
	if err == nil {
		t.Fatal("Close did not return an error for a child that was " +
			"already closed.")
	}

	if !strings.Contains(err.Error(), "closed") {
		t.Errorf("Error does not name the failing child: %s", err)
	}
}

// Tests that a Stoppable added after Close is closed immediately.
func TestMulti_Add_AfterClose(t *testing.T) {
	multi := NewMulti("session")
	_ = multi.Close()

	late := NewSingle("late")
	multi.Add(late)

	if late.IsRunning() {
		t.Error("Stoppable added after Close is still running.")
	}
}

// Unit test of Multi.Name.
func TestMulti_Name(t *testing.T) {
	multi := NewMulti("session")
	multi.Add(NewSingle("a"))
	multi.Add(NewSingle("b"))

	expected := "session: {a, b}"
	if multi.Name() != expected {
		t.Errorf("Incorrect name.\nexpected: %s\nreceived: %s",
			expected, multi.Name())
	}
}
