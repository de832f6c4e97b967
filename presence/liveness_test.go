////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package presence

import (
	"testing"
	"time"

	"gitlab.com/elixxir/synapse/chat"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Tests that a record is online only while younger than the threshold, and
// never when its flag is false.
func TestIsOnline(t *testing.T) {
	threshold := 15 * time.Second
	tests := []struct {
		record   chat.Presence
		now      time.Time
		expected bool
	}{
		{chat.Presence{Online: true, LastSeenAt: t0}, t0, true},
		{chat.Presence{Online: true, LastSeenAt: t0}, t0.Add(threshold - 1), true},
		{chat.Presence{Online: true, LastSeenAt: t0}, t0.Add(threshold), false},
		{chat.Presence{Online: true, LastSeenAt: t0}, t0.Add(time.Hour), false},
		{chat.Presence{Online: false, LastSeenAt: t0}, t0, false},
		{chat.Presence{}, t0, false},
	}

	for i, tt := range tests {
		if online := IsOnline(tt.record, tt.now, threshold); online != tt.expected {
			t.Errorf("Unexpected liveness (%d).\nexpected: %t\nreceived: %t",
				i, tt.expected, online)
		}
	}
}

// Tests that after the last heartbeat at t0 the user is online for the whole
// threshold and offline just after it.
func TestIsOnline_HeartbeatStops(t *testing.T) {
	period := 5 * time.Second
	threshold := ThresholdFor(period)
	if threshold != 15*time.Second {
		t.Fatalf("Unexpected threshold.\nexpected: %s\nreceived: %s",
			15*time.Second, threshold)
	}

	last := chat.Presence{Online: true, LastSeenAt: t0}
	for d := time.Duration(0); d < threshold; d += time.Second {
		if !IsOnline(last, t0.Add(d), threshold) {
			t.Errorf("User offline %s after the last heartbeat.", d)
		}
	}
	if IsOnline(last, t0.Add(threshold+time.Millisecond), threshold) {
		t.Errorf("User still online after the threshold.")
	}
}

// Tests that NextTransition returns the earliest expiry of online records.
func TestNextTransition(t *testing.T) {
	threshold := 10 * time.Second
	records := map[string]chat.Presence{
		"a": {Online: true, LastSeenAt: t0},
		"b": {Online: true, LastSeenAt: t0.Add(-5 * time.Second)},
		"c": {Online: false, LastSeenAt: t0.Add(-9 * time.Second)},
	}

	next, ok := NextTransition(records, t0, threshold)
	if !ok || !next.Equal(t0.Add(5*time.Second)) {
		t.Errorf("Unexpected transition.\nexpected: %s\nreceived: %s (%t)",
			t0.Add(5*time.Second), next, ok)
	}

	if _, ok = NextTransition(records, t0.Add(time.Minute), threshold); ok {
		t.Errorf("Found a transition when every record is stale.")
	}

	effective := Effective(records, t0, threshold)
	if !effective["a"] || !effective["b"] || effective["c"] {
		t.Errorf("Unexpected effective presence: %v", effective)
	}
}
