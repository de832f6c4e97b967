////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package status

import (
	"testing"
	"time"

	"gitlab.com/elixxir/synapse/chat"
)

func newMessage(sender string, members []string, ts time.Time) chat.Message {
	return chat.Message{
		ID:              "m1",
		SenderID:        sender,
		Text:            "hello",
		CreatedAt:       t0,
		ServerTimestamp: ts,
		MemberSnapshot:  members,
	}
}

// Tests that an unacknowledged message is always PENDING, regardless of the
// vector.
func TestReconcile_Pending(t *testing.T) {
	v := Vector{}
	v.MergeSeen("b", t0.Add(time.Hour))
	v.MergeReceived("b", t0.Add(time.Hour))

	msg := newMessage("a", []string{"a", "b"}, time.Time{})
	if s := Reconcile(msg, v); s != Pending {
		t.Errorf("Unexpected status.\nexpected: %s\nreceived: %s", Pending, s)
	}
}

// Tests that an acknowledged message in a SELF conversation is READ.
func TestReconcile_Self(t *testing.T) {
	msg := newMessage("a", []string{"a"}, t0)
	if s := Reconcile(msg, Vector{}); s != Read {
		t.Errorf("Unexpected status.\nexpected: %s\nreceived: %s", Read, s)
	}
}

// Tests the three-member scenario moving from DELIVERED to READ.
func TestReconcile_GroupScenario(t *testing.T) {
	msg := newMessage("A", []string{"A", "B", "C"}, t0)
	v := Vector{}

	if s := Reconcile(msg, v); s != Sent {
		t.Errorf("Unexpected status before receipt.\nexpected: %s\nreceived: %s",
			Sent, s)
	}

	v.MergeReceived("B", t0.Add(1))
	if s := Reconcile(msg, v); s != Delivered {
		t.Errorf("Unexpected status after B received."+
			"\nexpected: %s\nreceived: %s", Delivered, s)
	}

	v.MergeSeen("C", t0.Add(2))
	if s := Reconcile(msg, v); s != Delivered {
		t.Errorf("Unexpected status after C saw."+
			"\nexpected: %s\nreceived: %s", Delivered, s)
	}

	v.MergeSeen("B", t0.Add(3))
	if s := Reconcile(msg, v); s != Read {
		t.Errorf("Unexpected status after B saw."+
			"\nexpected: %s\nreceived: %s", Read, s)
	}
}

// Tests the remaining rules: inclusive ties, late joiners ignored and
// removed members still counted.
func TestReconcile_Rules(t *testing.T) {
	tests := []struct {
		name    string
		members []string
		vector  func(v Vector)
		status  Status
	}{
		{"tie counts as seen", []string{"a", "b"}, func(v Vector) {
			v.MergeReceived("b", t0)
			v.MergeSeen("b", t0)
		}, Read},
		{"tie counts as received", []string{"a", "b"}, func(v Vector) {
			v.MergeReceived("b", t0)
		}, Delivered},
		{"seen before message", []string{"a", "b"}, func(v Vector) {
			v.MergeReceived("b", t0.Add(time.Second))
			v.MergeSeen("b", t0.Add(-time.Second))
		}, Delivered},
		{"late joiner ignored", []string{"a", "b"}, func(v Vector) {
			v.MergeReceived("b", t0)
			v.MergeSeen("b", t0)
			v.MergeReceived("late", t0.Add(-time.Hour))
		}, Read},
		{"removed member counted", []string{"a", "b", "gone"}, func(v Vector) {
			v.MergeReceived("b", t0)
			v.MergeSeen("b", t0)
		}, Delivered},
		{"nobody received", []string{"a", "b", "c"}, func(v Vector) {
			v.MergeReceived("b", t0.Add(-time.Second))
		}, Sent},
	}

	for _, tt := range tests {
		v := Vector{}
		tt.vector(v)
		msg := newMessage("a", tt.members, t0)
		if s := Reconcile(msg, v); s != tt.status {
			t.Errorf("%s: unexpected status.\nexpected: %s\nreceived: %s",
				tt.name, tt.status, s)
		}
	}
}

// Tests Status.String on valid and invalid values.
func TestStatus_String(t *testing.T) {
	expected := map[Status]string{
		Pending:   "PENDING",
		Sent:      "SENT",
		Delivered: "DELIVERED",
		Read:      "READ",
		Status(9): "INVALID STATUS 9",
	}
	for s, str := range expected {
		if s.String() != str {
			t.Errorf("Incorrect string.\nexpected: %s\nreceived: %s",
				str, s.String())
		}
	}
}
