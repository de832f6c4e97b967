////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package aggregate

import (
	"encoding/base64"
	"sort"

	"github.com/golang-collections/collections/set"
	"golang.org/x/crypto/blake2b"

	"gitlab.com/elixxir/synapse/chat"
)

// memberIDs returns the distinct member IDs of every conversation, sorted.
func memberIDs(conversations []chat.Conversation) []string {
	members := set.New()
	for _, c := range conversations {
		for _, memberID := range c.MemberIDs {
			if memberID != "" {
				members.Insert(memberID)
			}
		}
	}
	return sortedStrings(members)
}

// conversationIDs returns the distinct IDs of every conversation, sorted.
func conversationIDs(conversations []chat.Conversation) []string {
	ids := set.New()
	for _, c := range conversations {
		ids.Insert(c.ID)
	}
	return sortedStrings(ids)
}

func sortedStrings(s *set.Set) []string {
	list := make([]string, 0, s.Len())
	s.Do(func(i interface{}) {
		list = append(list, i.(string))
	})
	sort.Strings(list)
	return list
}

// setKey returns a key identifying the content of a sorted, distinct list of
// IDs. The empty list has the empty key.
func setKey(ids []string) string {
	if len(ids) == 0 {
		return ""
	}

	h, _ := blake2b.New256(nil)
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
