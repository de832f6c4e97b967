////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"reflect"
	"testing"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/chat"
)

// Tests that a stale snapshot is reported as stale regardless of
// connectivity.
func Test_connectionState(t *testing.T) {
	tests := []struct {
		connected, stale bool
		expected         string
	}{
		{true, false, "connected"},
		{false, false, "offline"},
		{true, true, "stale"},
		{false, true, "stale"},
	}

	for i, tt := range tests {
		state := connectionState(tt.connected, tt.stale)
		if state != tt.expected {
			t.Errorf("Unexpected state (%d).\nexpected: %s\nreceived: %s",
				i, tt.expected, state)
		}
	}
}

// Tests that onlineOthers leaves out the current user and offline members.
func Test_onlineOthers(t *testing.T) {
	conv := chat.Conversation{
		ID:        "g",
		Kind:      chat.Group,
		MemberIDs: []string{"a", "d", "c", "b"},
	}
	presence := map[string]bool{"a": true, "b": true, "c": false, "d": true}

	expected := []string{"b", "d"}
	online := onlineOthers(conv, "a", presence)
	if !reflect.DeepEqual(expected, online) {
		t.Errorf("Unexpected online members.\nexpected: %v\nreceived: %v",
			expected, online)
	}
}

// Tests that a user without a profile is shown by ID.
func Test_displayUser(t *testing.T) {
	users := map[string]chat.User{"a": {ID: "a", DisplayName: "Alice"}}

	if name := displayUser("a", users); name != "Alice" {
		t.Errorf("Unexpected name.\nexpected: %s\nreceived: %s", "Alice", name)
	}
	if name := displayUser("b", users); name != "b" {
		t.Errorf("Unexpected name.\nexpected: %s\nreceived: %s", "b", name)
	}
}

// Tests that each verbosity maps to the expected log threshold.
func Test_logLevel(t *testing.T) {
	tests := []struct {
		verbosity uint
		threshold jww.Threshold
		name      string
	}{
		{0, jww.LevelInfo, "INFO"},
		{1, jww.LevelDebug, "DEBUG"},
		{2, jww.LevelTrace, "TRACE"},
		{7, jww.LevelTrace, "TRACE"},
	}

	for i, tt := range tests {
		threshold, name := logLevel(tt.verbosity)
		if threshold != tt.threshold || name != tt.name {
			t.Errorf("Unexpected level for verbosity %d (%d)."+
				"\nexpected: %v %s\nreceived: %v %s", tt.verbosity, i,
				tt.threshold, tt.name, threshold, name)
		}
	}
}
