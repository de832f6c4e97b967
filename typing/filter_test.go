////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package typing

import (
	"reflect"
	"testing"
	"time"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Tests that Filter drops the current user and stale entries.
func TestFilter(t *testing.T) {
	ttl := 5 * time.Second
	entries := map[string]time.Time{
		"self":  t0,
		"fresh": t0.Add(-time.Second),
		"newer": t0,
		"edge":  t0.Add(-ttl),
		"stale": t0.Add(-time.Minute),
	}

	expected := []string{"newer", "fresh"}
	received := Filter(entries, "self", t0, ttl)
	if !reflect.DeepEqual(expected, received) {
		t.Errorf("Unexpected typers.\nexpected: %v\nreceived: %v",
			expected, received)
	}

	next, ok := NextExpiry(entries, "self", t0, ttl)
	if !ok || !next.Equal(t0.Add(4*time.Second)) {
		t.Errorf("Unexpected expiry.\nexpected: %s\nreceived: %s",
			t0.Add(4*time.Second), next)
	}
}

// Tests the indicator text for every number of typers.
func TestText(t *testing.T) {
	tests := []struct {
		names    []string
		expected string
	}{
		{nil, ""},
		{[]string{"X"}, "X is typing..."},
		{[]string{"X", "Y"}, "X and Y are typing..."},
		{[]string{"X", "Y", "Z"}, "X, Y and 1 other are typing..."},
		{[]string{"X", "Y", "Z", "W"}, "X, Y and 2 others are typing..."},
	}

	for _, tt := range tests {
		if text := Text(tt.names); text != tt.expected {
			t.Errorf("Unexpected text for %v.\nexpected: %q\nreceived: %q",
				tt.names, tt.expected, text)
		}
	}
}
