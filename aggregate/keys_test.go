////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package aggregate

import (
	"testing"

	"gitlab.com/elixxir/synapse/chat"
)

// Tests that the member set and its key ignore order and duplicates.
func Test_memberIDs(t *testing.T) {
	a := []chat.Conversation{
		{ID: "1", MemberIDs: []string{"c", "a"}},
		{ID: "2", MemberIDs: []string{"b", "a"}},
	}
	b := []chat.Conversation{
		{ID: "3", MemberIDs: []string{"a", "b", "c"}},
	}

	membersA, membersB := memberIDs(a), memberIDs(b)
	if len(membersA) != 3 || membersA[0] != "a" || membersA[2] != "c" {
		t.Errorf("Unexpected members.\nexpected: %v\nreceived: %v",
			[]string{"a", "b", "c"}, membersA)
	}
	if setKey(membersA) != setKey(membersB) {
		t.Errorf("Keys of equal sets differ.\nexpected: %s\nreceived: %s",
			setKey(membersA), setKey(membersB))
	}
	if setKey(membersA) == setKey(conversationIDs(a)) {
		t.Error("Keys of different sets are equal.")
	}
	if setKey(nil) != "" {
		t.Errorf("Empty set has key %q.", setKey(nil))
	}

	// A separator keeps concatenations apart
	if setKey([]string{"ab", "c"}) == setKey([]string{"a", "bc"}) {
		t.Error("Keys of different sets are equal.")
	}
}
