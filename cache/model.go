////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cache

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/elixxir/synapse/chat"
)

// Message defines the SQL representation of a single cached chat.Message.
//
// Rows are ordered within a conversation by (Pending, OrderTS, MessageID):
// acknowledged messages by server timestamp, then pending messages by local
// creation time.
type Message struct {
	MessageID      string `gorm:"column:message_id;primaryKey;not null"`
	ConversationID string `gorm:"column:conversation_id;index:idx_conversation_order,priority:1;not null"`
	Pending        bool   `gorm:"column:pending;index:idx_conversation_order,priority:2;not null"`
	OrderTS        int64  `gorm:"column:order_ts;index:idx_conversation_order,priority:3;not null"`
	SenderID       string `gorm:"column:sender_id;not null"`
	Text           string `gorm:"column:text;not null"`
	CreatedTS      int64  `gorm:"column:created_ts;not null"`
	ServerTS       int64  `gorm:"column:server_ts;not null"`
	MemberSnapshot []byte `gorm:"column:member_snapshot;not null"`
	Deleted        bool   `gorm:"column:deleted;not null"`
}

// TableName overrides the table name used by Message.
func (Message) TableName() string {
	return "cached_messages"
}

// buildMessage converts a chat.Message into its row.
func buildMessage(msg chat.Message) (*Message, error) {
	snapshot, err := json.Marshal(msg.MemberSnapshot)
	if err != nil {
		return nil, err
	}

	row := &Message{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		Pending:        !msg.Acknowledged(),
		OrderTS:        msg.OrderKey().UnixNano(),
		SenderID:       msg.SenderID,
		Text:           msg.Text,
		CreatedTS:      msg.CreatedAt.UnixNano(),
		MemberSnapshot: snapshot,
		Deleted:        msg.Deleted,
	}
	if msg.Acknowledged() {
		row.ServerTS = msg.ServerTimestamp.UnixNano()
	}
	return row, nil
}

// decode converts the row back into a chat.Message. Returns an error for rows
// that cannot be trusted.
func (m *Message) decode() (chat.Message, error) {
	if m.MessageID == "" || m.ConversationID == "" || m.SenderID == "" {
		return chat.Message{}, errors.Errorf(
			"row %q is missing an identifier", m.MessageID)
	}

	var snapshot []string
	if err := json.Unmarshal(m.MemberSnapshot, &snapshot); err != nil {
		return chat.Message{}, errors.Wrapf(err,
			"member snapshot of %q is corrupt", m.MessageID)
	}

	msg := chat.Message{
		ID:             m.MessageID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		CreatedAt:      time.Unix(0, m.CreatedTS).UTC(),
		MemberSnapshot: snapshot,
		Deleted:        m.Deleted,
	}
	if m.ServerTS != 0 {
		msg.ServerTimestamp = time.Unix(0, m.ServerTS).UTC()
	}
	return msg, nil
}

// merge folds an incoming row into the stored one. An acknowledged row is
// never replaced by a pending copy and a deletion is never undone.
func merge(stored, incoming *Message) *Message {
	merged := *incoming
	if stored.ServerTS != 0 && incoming.ServerTS == 0 {
		merged.Pending = false
		merged.ServerTS = stored.ServerTS
		merged.OrderTS = stored.OrderTS
	}
	merged.Deleted = stored.Deleted || incoming.Deleted
	return &merged
}

// equal reports whether two rows hold the same data.
func equal(a, b *Message) bool {
	return a.MessageID == b.MessageID &&
		a.ConversationID == b.ConversationID &&
		a.Pending == b.Pending &&
		a.OrderTS == b.OrderTS &&
		a.SenderID == b.SenderID &&
		a.Text == b.Text &&
		a.CreatedTS == b.CreatedTS &&
		a.ServerTS == b.ServerTS &&
		string(a.MemberSnapshot) == string(b.MemberSnapshot) &&
		a.Deleted == b.Deleted
}
