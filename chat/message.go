////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is a single chat message.
//
// ServerTimestamp is the zero time until the server acknowledges the
// message. MemberSnapshot is the member list at creation and never changes
// afterwards; delivery status is computed against it, not against the
// conversation's current members.
type Message struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversationId"`
	SenderID        string    `json:"senderId"`
	Text            string    `json:"text"`
	CreatedAt       time.Time `json:"createdAt"`
	ServerTimestamp time.Time `json:"serverTimestamp"`
	MemberSnapshot  []string  `json:"memberSnapshot"`
	Deleted         bool      `json:"deleted,omitempty"`
}

// NewMessage builds an unacknowledged message with a fresh client-assigned
// ID. The member list is copied so later changes to the caller's slice do
// not leak into the snapshot.
func NewMessage(conversationID, senderID, text string, memberIDs []string,
	now time.Time) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}
	if senderID == "" {
		return Message{}, ErrNoUser
	}

	return Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      now,
		MemberSnapshot: append([]string(nil), memberIDs...),
	}, nil
}

// Acknowledged returns true once the server has assigned a timestamp.
func (m Message) Acknowledged() bool {
	return !m.ServerTimestamp.IsZero()
}

// OrderKey is the timestamp the message is ordered by: the server timestamp
// if acknowledged, otherwise the local creation time.
func (m Message) OrderKey() time.Time {
	if m.Acknowledged() {
		return m.ServerTimestamp
	}
	return m.CreatedAt
}

// Before reports whether m sorts before o. Acknowledged messages come first
// in server-timestamp order, followed by pending messages in creation order.
func (m Message) Before(o Message) bool {
	if m.Acknowledged() != o.Acknowledged() {
		return m.Acknowledged()
	}
	if !m.OrderKey().Equal(o.OrderKey()) {
		return m.OrderKey().Before(o.OrderKey())
	}
	return m.ID < o.ID
}

// SortMessages orders messages oldest first.
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Before(messages[j])
	})
}
