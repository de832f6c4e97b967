////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package aggregate

import (
	"sort"
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/cache"
	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/feeds"
	"gitlab.com/elixxir/synapse/metrics"
	"gitlab.com/elixxir/synapse/presence"
	"gitlab.com/elixxir/synapse/status"
	"gitlab.com/elixxir/synapse/typing"
)

const (
	conversationName = "conversation"
	windowName       = "window"
)

// MessageView is a message with its derived status.
type MessageView struct {
	chat.Message
	Status status.Status
}

// ConversationSnapshot is the state of one conversation. Snapshots are
// read-only and must not be modified by the receiver.
type ConversationSnapshot struct {
	ConversationID string

	// Conversation is only set if Found. A SELF or DIRECT conversation is
	// not found until its first message is sent.
	Conversation chat.Conversation
	Found        bool

	// Oldest first
	Messages  []MessageView
	HasOlder  bool
	FromCache bool

	Vector   status.Vector
	Users    map[string]chat.User
	Presence map[string]bool

	// Users typing, newest first, without the current user
	Typing     []string
	TypingText string

	IsConnected bool
	Stale       bool
}

// ConversationCallback receives every ConversationSnapshot.
type ConversationCallback func(snapshot ConversationSnapshot)

// Conversation aggregates one conversation with its message window, status
// vector, member profiles and presence and typing state.
type Conversation struct {
	*aggregator
	userID         string
	conversationID string
	remote         feeds.Remote
	reader         *cache.Reader
	cb             ConversationCallback

	conversations *slot[[]chat.Conversation]
	messages      *slot[cache.Page]
	vector        *slot[status.Vector]
	users         *slot[map[string]chat.User]
	presence      *slot[map[string]chat.Presence]
	typing        *slot[map[string]map[string]time.Time]
}

// NewConversation starts a Conversation aggregate. An empty userID yields one
// neutral snapshot and no subscriptions. The monitor may be nil.
func NewConversation(remote feeds.Remote, reader *cache.Reader,
	monitor feeds.Connectivity, userID, conversationID string, params Params,
	m *metrics.Metrics, now func() time.Time,
	cb ConversationCallback) *Conversation {
	c := &Conversation{
		aggregator:     newAggregator(conversationName, monitor, params, m, now),
		userID:         userID,
		conversationID: conversationID,
		remote:         remote,
		reader:         reader,
		cb:             cb,
	}
	c.conversations = newSlot[[]chat.Conversation](c.aggregator,
		feeds.NameConversations)
	c.messages = newSlot[cache.Page](c.aggregator, windowName)
	c.vector = newSlot[status.Vector](c.aggregator, feeds.NameVectors)
	c.users = newSlot[map[string]chat.User](c.aggregator, feeds.NameUsers)
	c.presence = newSlot[map[string]chat.Presence](c.aggregator,
		feeds.NamePresence)
	c.typing = newSlot[map[string]map[string]time.Time](c.aggregator,
		feeds.NameTyping)
	c.onChange = c.update

	go c.loop.run(c.start, c.teardown)
	return c
}

// Close stops the aggregate. Once it returns, every upstream subscription is
// closed and the callback is not called again. Close must not be called from
// the callback.
func (c *Conversation) Close() {
	c.loop.stop()
}

// LoadOlder extends the message window by one page of older messages.
func (c *Conversation) LoadOlder() {
	c.loop.post(func() {
		if w, ok := c.messages.sub.(*cache.Window); ok {
			w.LoadOlder()
		}
	})
}

func (c *Conversation) start() {
	if c.userID == "" {
		jww.DEBUG.Printf("[AGG] No current user, conversation %s stays empty",
			c.conversationID)
		c.cb(ConversationSnapshot{ConversationID: c.conversationID})
		c.emitted()
		return
	}

	c.watchHealth()
	c.conversations.set(c.userID,
		func(cb func([]chat.Conversation, error)) (feeds.Subscription, error) {
			return c.remote.SubscribeConversations(c.userID, cb)
		})
	c.messages.set(c.conversationID,
		func(cb func(cache.Page, error)) (feeds.Subscription, error) {
			w, err := c.reader.ReadMessages(c.conversationID, cb)
			if err != nil {
				return nil, err
			}
			return w, nil
		})
	c.vector.set(c.conversationID,
		func(cb func(status.Vector, error)) (feeds.Subscription, error) {
			return c.remote.SubscribeVectors(c.conversationID, cb)
		})
	c.typing.set(c.conversationID,
		func(cb func(map[string]map[string]time.Time, error)) (feeds.Subscription, error) {
			return c.remote.SubscribeTyping([]string{c.conversationID}, cb)
		})
}

// find returns the aggregated conversation from the user's list.
func (c *Conversation) find() (chat.Conversation, bool) {
	conversations, _ := c.conversations.current()
	for _, conv := range conversations {
		if conv.ID == c.conversationID {
			return conv, true
		}
	}
	return chat.Conversation{}, false
}

func (c *Conversation) update() {
	if _, ok := c.conversations.current(); ok {
		conv, _ := c.find()
		members := sortedCopy(chat.Distinct(conv.MemberIDs))
		if key := setKey(members); key == "" {
			c.users.idle()
			c.presence.idle()
		} else {
			c.users.set(key,
				func(cb func(map[string]chat.User, error)) (feeds.Subscription, error) {
					return c.remote.SubscribeUsers(members, cb)
				})
			c.presence.set(key,
				func(cb func(map[string]chat.Presence, error)) (feeds.Subscription, error) {
					return c.remote.SubscribePresence(members, cb)
				})
		}
	}

	if !c.ready() {
		return
	}
	c.emit()
}

func (c *Conversation) emit() {
	now := c.now()
	conv, found := c.find()
	page, _ := c.messages.current()
	vector, _ := c.vector.current()
	users, _ := c.users.current()
	records, _ := c.presence.current()
	entries, _ := c.typing.current()
	typers := entries[c.conversationID]

	snapshot := ConversationSnapshot{
		ConversationID: c.conversationID,
		Conversation:   conv,
		Found:          found,
		Messages:       make([]MessageView, len(page.Messages)),
		HasOlder:       page.HasOlder,
		FromCache:      page.FromCache,
		Vector:         vector,
		Users:          users,
		Presence:       presence.Effective(records, now, c.params.Threshold),
		Typing:         typing.Filter(typers, c.userID, now, c.params.TypingTTL),
		IsConnected:    c.connected,
		Stale:          c.stale() || page.Stale,
	}
	for j, msg := range page.Messages {
		snapshot.Messages[j] = MessageView{
			Message: msg,
			Status:  status.Reconcile(msg, vector),
		}
	}
	snapshot.TypingText = typing.Text(names(snapshot.Typing, users))

	c.cb(snapshot)
	c.emitted()

	next, hasNext := presence.NextTransition(records, now, c.params.Threshold)
	expiry, ok := typing.NextExpiry(typers, c.userID, now, c.params.TypingTTL)
	c.scheduleRefresh(earliest(next, hasNext, expiry, ok))
}

func sortedCopy(ids []string) []string {
	list := append([]string(nil), ids...)
	sort.Strings(list)
	return list
}
