////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package status derives per-message delivery state from per-member status
// vectors. A vector only ever grows: every write is a component-wise max, so
// duplicated or reordered writes from several devices converge to the same
// value.
package status

import (
	"sort"
	"time"
)

// Entry is the status vector of a single member of a conversation.
type Entry struct {
	// Last time the member viewed the conversation.
	LastSeenAt time.Time `json:"lastSeenAt"`

	// Last time the member's device acknowledged receipt.
	LastReceivedAt time.Time `json:"lastReceivedAt"`

	// Last time the member sent a message.
	LastMessageSentAt time.Time `json:"lastMessageSentAt"`
}

// Merge returns the component-wise maximum of e and o.
func (e Entry) Merge(o Entry) Entry {
	return Entry{
		LastSeenAt:        latest(e.LastSeenAt, o.LastSeenAt),
		LastReceivedAt:    latest(e.LastReceivedAt, o.LastReceivedAt),
		LastMessageSentAt: latest(e.LastMessageSentAt, o.LastMessageSentAt),
	}
}

// Vector maps member IDs to their Entry for one conversation. Members
// without an entry are treated as having the zero Entry.
type Vector map[string]Entry

// Get returns the entry of userID, or the zero Entry.
func (v Vector) Get(userID string) Entry {
	return v[userID]
}

// MergeSeen advances the member's LastSeenAt to t if it is later.
func (v Vector) MergeSeen(userID string, t time.Time) {
	v[userID] = v[userID].Merge(Entry{LastSeenAt: t})
}

// MergeReceived advances the member's LastReceivedAt to t if it is later.
func (v Vector) MergeReceived(userID string, t time.Time) {
	v[userID] = v[userID].Merge(Entry{LastReceivedAt: t})
}

// MergeSent advances the member's LastMessageSentAt to t if it is later.
func (v Vector) MergeSent(userID string, t time.Time) {
	v[userID] = v[userID].Merge(Entry{LastMessageSentAt: t})
}

// Merge folds every entry of o into v.
func (v Vector) Merge(o Vector) {
	for userID, e := range o {
		v[userID] = v[userID].Merge(e)
	}
}

// Copy returns an independent copy of v.
func (v Vector) Copy() Vector {
	c := make(Vector, len(v))
	for userID, e := range v {
		c[userID] = e
	}
	return c
}

// Activity is a member's most recent send.
type Activity struct {
	UserID string
	At     time.Time
}

// LastActivity lists members that have sent at least one message, most
// recent first.
func (v Vector) LastActivity() []Activity {
	activity := make([]Activity, 0, len(v))
	for userID, e := range v {
		if !e.LastMessageSentAt.IsZero() {
			activity = append(activity, Activity{userID, e.LastMessageSentAt})
		}
	}
	sort.Slice(activity, func(i, j int) bool {
		if !activity[i].At.Equal(activity[j].At) {
			return activity[i].At.After(activity[j].At)
		}
		return activity[i].UserID < activity[j].UserID
	})
	return activity
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
