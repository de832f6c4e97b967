////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package feeds declares the live data sources and stores the engine
// consumes. Implementations live elsewhere (see package remote); the engine
// only depends on these interfaces.
//
// Every Subscribe method returns immediately. The current value is delivered
// to the callback asynchronously, followed by a new value on every change.
// A callback invoked with a non-nil error reports that the subscription has
// failed; no further values follow and the caller may subscribe again.
package feeds

import (
	"context"
	"time"

	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/status"
)

// Callback types for each live feed.
type (
	ConversationsCallback func(conversations []chat.Conversation, err error)
	MessagesCallback      func(messages []chat.Message, err error)
	VectorCallback        func(vector status.Vector, err error)
	PresenceCallback      func(presence map[string]chat.Presence, err error)
	UsersCallback         func(users map[string]chat.User, err error)
	CountsCallback        func(counts map[string]chat.Counts, err error)

	// TypingCallback receives, per conversation ID, the last keystroke time
	// of every user currently recorded as typing.
	TypingCallback func(typing map[string]map[string]time.Time, err error)
)

// ConversationFeed is the conversation metadata store of a user.
type ConversationFeed interface {
	// SubscribeConversations streams every conversation userID belongs to.
	SubscribeConversations(userID string, cb ConversationsCallback) (Subscription, error)

	// GetConversation returns a single conversation.
	GetConversation(ctx context.Context, conversationID string) (chat.Conversation, error)

	// EnsureConversation creates the conversation if it does not exist. Used
	// for SELF and DIRECT conversations, which are created on first use.
	EnsureConversation(ctx context.Context, c chat.Conversation) error

	// CreateGroup creates a group and returns its ID.
	CreateGroup(ctx context.Context, creatorID string, memberIDs []string,
		name string) (string, error)

	// AddMember adds userID to a group on behalf of actorID.
	AddMember(ctx context.Context, conversationID, actorID, userID string) error

	// RemoveMember removes userID from a group on behalf of actorID.
	RemoveMember(ctx context.Context, conversationID, actorID, userID string) error
}

// MessageFeed is the message store of every conversation.
type MessageFeed interface {
	// SubscribeMessages streams the messages of a conversation.
	SubscribeMessages(conversationID string, cb MessagesCallback) (Subscription, error)

	// Send stores msg and returns the server timestamp assigned to it. Send
	// is idempotent by message ID: resending an acknowledged message returns
	// its original timestamp.
	Send(ctx context.Context, msg chat.Message) (time.Time, error)

	// SoftDelete marks a message as deleted.
	SoftDelete(ctx context.Context, conversationID, messageID string) error
}

// StatusVectorStore holds the status vector of every conversation. All
// writes are max-merges.
type StatusVectorStore interface {
	MergeSeen(ctx context.Context, conversationID, userID string, t time.Time) error
	MergeReceived(ctx context.Context, conversationID, userID string, t time.Time) error
	MergeSent(ctx context.Context, conversationID, userID string, t time.Time) error

	// SubscribeVectors streams the vector of a conversation.
	SubscribeVectors(conversationID string, cb VectorCallback) (Subscription, error)
}

// PresenceWriter is the write side of the presence store.
type PresenceWriter interface {
	// WritePresence stores the presence record of userID.
	WritePresence(ctx context.Context, userID string, online bool, at time.Time) error

	// RegisterDisconnectFallback arms a server-side fallback that treats
	// userID as offline if its client disappears without writing offline.
	RegisterDisconnectFallback(ctx context.Context, userID string) error
}

// PresenceFeed is the presence store.
type PresenceFeed interface {
	PresenceWriter

	// SubscribePresence streams the stored presence record of every user in
	// userIDs. Records are raw; callers derive effective presence with
	// presence.IsOnline.
	SubscribePresence(userIDs []string, cb PresenceCallback) (Subscription, error)
}

// TypingWriter is the write side of the typing store.
type TypingWriter interface {
	SetTyping(ctx context.Context, conversationID, userID string, at time.Time) error
	ClearTyping(ctx context.Context, conversationID, userID string) error
}

// TypingFeed is the typing store. Entries expire on their own.
type TypingFeed interface {
	TypingWriter

	// SubscribeTyping streams the typing entries of every conversation in
	// conversationIDs over a single subscription.
	SubscribeTyping(conversationIDs []string, cb TypingCallback) (Subscription, error)
}

// UserFeed is the user profile store.
type UserFeed interface {
	SubscribeUsers(userIDs []string, cb UsersCallback) (Subscription, error)
	PutUser(ctx context.Context, u chat.User) error
}

// CountsFeed holds the unread and undelivered counters of each user, keyed
// by conversation ID.
type CountsFeed interface {
	SubscribeCounts(userID string, cb CountsCallback) (Subscription, error)
	ResetUnread(ctx context.Context, userID, conversationID string) error
	ResetUndelivered(ctx context.Context, userID, conversationID string) error
}

// Connectivity reports whether the remote feeds are reachable.
type Connectivity interface {
	// AddHealthCallback registers f to be called on every change and
	// returns an ID to remove it with.
	AddHealthCallback(f func(isHealthy bool)) uint64
	RemoveHealthCallback(id uint64)
	IsHealthy() bool
}

// Remote groups every remote store.
type Remote interface {
	ConversationFeed
	MessageFeed
	StatusVectorStore
	PresenceFeed
	TypingFeed
	UserFeed
	CountsFeed
}
