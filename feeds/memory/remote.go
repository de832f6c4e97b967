////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package memory is an in-process implementation of feeds.Remote. It keeps
// every store in maps, counts subscriptions per feed and can inject
// failures, which makes it the backend of choice for tests and offline
// demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/feeds"
	"gitlab.com/elixxir/synapse/status"
)

// Remote is an in-memory feeds.Remote.
type Remote struct {
	now       func() time.Time
	typingTTL time.Duration

	conversations map[string]chat.Conversation
	messages      map[string]map[string]chat.Message
	vectors       map[string]status.Vector
	presence      map[string]chat.Presence
	fallbacks     map[string]bool
	typing        map[string]map[string]time.Time
	users         map[string]chat.User
	counts        map[string]map[string]chat.Counts
	writeErr      error

	subs   map[uint64]*subscription
	nextID uint64
	opened map[string]int
	mux    sync.Mutex
}

var _ feeds.Remote = (*Remote)(nil)

// New builds an empty Remote. Typing entries older than typingTTL are
// dropped when read.
func New(now func() time.Time, typingTTL time.Duration) *Remote {
	return &Remote{
		now:           now,
		typingTTL:     typingTTL,
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string]map[string]chat.Message),
		vectors:       make(map[string]status.Vector),
		presence:      make(map[string]chat.Presence),
		fallbacks:     make(map[string]bool),
		typing:        make(map[string]map[string]time.Time),
		users:         make(map[string]chat.User),
		counts:        make(map[string]map[string]chat.Counts),
		subs:          make(map[uint64]*subscription),
		opened:        make(map[string]int),
	}
}

// SetWriteError makes every write fail with err until called with nil.
func (r *Remote) SetWriteError(err error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.writeErr = err
}

////////////////////////////////////////////////////////////////////////////////
// Conversations                                                              //
////////////////////////////////////////////////////////////////////////////////

func (r *Remote) SubscribeConversations(userID string,
	cb feeds.ConversationsCallback) (feeds.Subscription, error) {
	return r.subscribe(feeds.NameConversations, func() {
		r.mux.Lock()
		var list []chat.Conversation
		for _, c := range r.conversations {
			if c.HasMember(userID) {
				list = append(list, copyConversation(c))
			}
		}
		r.mux.Unlock()

		chat.SortByUpdated(list)
		cb(list, nil)
	}, func(err error) { cb(nil, err) }), nil
}

func (r *Remote) GetConversation(_ context.Context, conversationID string) (
	chat.Conversation, error) {
	r.mux.Lock()
	defer r.mux.Unlock()

	c, exists := r.conversations[conversationID]
	if !exists {
		return chat.Conversation{}, errors.WithMessage(feeds.ErrNotFound,
			conversationID)
	}
	return copyConversation(c), nil
}

func (r *Remote) EnsureConversation(_ context.Context, c chat.Conversation) error {
	if err := c.Validate(); err != nil {
		return err
	}

	r.mux.Lock()
	defer r.mux.Unlock()

	if r.writeErr != nil {
		return r.writeErr
	}
	if _, exists := r.conversations[c.ID]; exists {
		return nil
	}
	r.conversations[c.ID] = copyConversation(c)
	r.notify(feeds.NameConversations)
	return nil
}

func (r *Remote) CreateGroup(_ context.Context, creatorID string,
	memberIDs []string, name string) (string, error) {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.writeErr != nil {
		return "", r.writeErr
	}
	c, err := chat.NewGroup(uuid.NewString(), creatorID, memberIDs, name, r.now())
	if err != nil {
		return "", err
	}
	r.conversations[c.ID] = c
	r.notify(feeds.NameConversations)
	return c.ID, nil
}

func (r *Remote) AddMember(_ context.Context, conversationID, actorID,
	userID string) error {
	return r.updateMembers(conversationID, func(c *chat.Conversation) error {
		if err := c.CanAddMember(actorID, userID); err != nil {
			return err
		}
		c.MemberIDs = append(c.MemberIDs, userID)
		return nil
	})
}

func (r *Remote) RemoveMember(_ context.Context, conversationID, actorID,
	userID string) error {
	return r.updateMembers(conversationID, func(c *chat.Conversation) error {
		if err := c.CanRemoveMember(actorID, userID); err != nil {
			return err
		}
		c.MemberIDs = c.Others(userID)
		return nil
	})
}

func (r *Remote) updateMembers(conversationID string,
	update func(c *chat.Conversation) error) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.writeErr != nil {
		return r.writeErr
	}
	c, exists := r.conversations[conversationID]
	if !exists {
		return errors.WithMessage(feeds.ErrNotFound, conversationID)
	}
	c = copyConversation(c)
	if err := update(&c); err != nil {
		return err
	}
	c.UpdatedAt = r.now()
	r.conversations[conversationID] = c
	r.notify(feeds.NameConversations)
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Messages                                                                   //
////////////////////////////////////////////////////////////////////////////////

func (r *Remote) SubscribeMessages(conversationID string,
	cb feeds.MessagesCallback) (feeds.Subscription, error) {
	return r.subscribe(feeds.NameMessages, func() {
		r.mux.Lock()
		list := make([]chat.Message, 0, len(r.messages[conversationID]))
		for _, m := range r.messages[conversationID] {
			list = append(list, copyMessage(m))
		}
		r.mux.Unlock()

		chat.SortMessages(list)
		cb(list, nil)
	}, func(err error) { cb(nil, err) }), nil
}

// Send stores msg, updates the conversation preview, the sender's status
// vector and the counts of every other member of the snapshot.
func (r *Remote) Send(_ context.Context, msg chat.Message) (time.Time, error) {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.writeErr != nil {
		return time.Time{}, r.writeErr
	}
	c, exists := r.conversations[msg.ConversationID]
	if !exists {
		return time.Time{}, errors.WithMessage(feeds.ErrNotFound,
			msg.ConversationID)
	}
	if !c.HasMember(msg.SenderID) {
		return time.Time{}, chat.ErrNotMember
	}

	if r.messages[msg.ConversationID] == nil {
		r.messages[msg.ConversationID] = make(map[string]chat.Message)
	}
	if stored, ok := r.messages[msg.ConversationID][msg.ID]; ok && stored.Acknowledged() {
		return stored.ServerTimestamp, nil
	}

	ts := r.now()
	msg = copyMessage(msg)
	msg.ServerTimestamp = ts
	r.messages[msg.ConversationID][msg.ID] = msg

	c.LastMessage = chat.Preview(msg.Text)
	c.UpdatedAt = ts
	r.conversations[c.ID] = c

	r.vector(msg.ConversationID).MergeSent(msg.SenderID, ts)

	for _, memberID := range msg.MemberSnapshot {
		if memberID == msg.SenderID {
			continue
		}
		counts := r.userCounts(memberID)
		cnt := counts[msg.ConversationID]
		cnt.Unread++
		cnt.Undelivered++
		counts[msg.ConversationID] = cnt
	}

	r.notify(feeds.NameMessages, feeds.NameConversations, feeds.NameVectors,
		feeds.NameCounts)
	return ts, nil
}

func (r *Remote) SoftDelete(_ context.Context, conversationID,
	messageID string) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.writeErr != nil {
		return r.writeErr
	}
	m, exists := r.messages[conversationID][messageID]
	if !exists {
		return errors.WithMessage(feeds.ErrNotFound, messageID)
	}
	m.Deleted = true
	r.messages[conversationID][messageID] = m
	r.notify(feeds.NameMessages)
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Status vectors                                                             //
////////////////////////////////////////////////////////////////////////////////

func (r *Remote) MergeSeen(_ context.Context, conversationID, userID string,
	t time.Time) error {
	return r.mergeVector(conversationID, func(v status.Vector) {
		v.MergeSeen(userID, t)
	})
}

func (r *Remote) MergeReceived(_ context.Context, conversationID,
	userID string, t time.Time) error {
	return r.mergeVector(conversationID, func(v status.Vector) {
		v.MergeReceived(userID, t)
	})
}

func (r *Remote) MergeSent(_ context.Context, conversationID, userID string,
	t time.Time) error {
	return r.mergeVector(conversationID, func(v status.Vector) {
		v.MergeSent(userID, t)
	})
}

func (r *Remote) mergeVector(conversationID string, merge func(status.Vector)) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.writeErr != nil {
		return r.writeErr
	}
	merge(r.vector(conversationID))
	r.notify(feeds.NameVectors)
	return nil
}

func (r *Remote) SubscribeVectors(conversationID string,
	cb feeds.VectorCallback) (feeds.Subscription, error) {
	return r.subscribe(feeds.NameVectors, func() {
		r.mux.Lock()
		v := r.vector(conversationID).Copy()
		r.mux.Unlock()
		cb(v, nil)
	}, func(err error) { cb(nil, err) }), nil
}

////////////////////////////////////////////////////////////////////////////////
// Presence                                                                   //
////////////////////////////////////////////////////////////////////////////////

func (r *Remote) WritePresence(_ context.Context, userID string, online bool,
	at time.Time) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.writeErr != nil {
		return r.writeErr
	}
	r.presence[userID] = chat.Presence{Online: online, LastSeenAt: at}
	r.notify(feeds.NamePresence)
	return nil
}

func (r *Remote) RegisterDisconnectFallback(_ context.Context,
	userID string) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.writeErr != nil {
		return r.writeErr
	}
	r.fallbacks[userID] = true
	return nil
}

// Disconnect simulates the client of userID vanishing. If a disconnect
// fallback is registered the user is marked offline.
func (r *Remote) Disconnect(userID string) {
	r.mux.Lock()
	defer r.mux.Unlock()

	if !r.fallbacks[userID] {
		return
	}
	p := r.presence[userID]
	p.Online = false
	r.presence[userID] = p
	r.notify(feeds.NamePresence)
}

func (r *Remote) SubscribePresence(userIDs []string,
	cb feeds.PresenceCallback) (feeds.Subscription, error) {
	userIDs = append([]string(nil), userIDs...)
	return r.subscribe(feeds.NamePresence, func() {
		r.mux.Lock()
		records := make(map[string]chat.Presence, len(userIDs))
		for _, userID := range userIDs {
			if p, ok := r.presence[userID]; ok {
				records[userID] = p
			}
		}
		r.mux.Unlock()
		cb(records, nil)
	}, func(err error) { cb(nil, err) }), nil
}

////////////////////////////////////////////////////////////////////////////////
// Typing                                                                     //
////////////////////////////////////////////////////////////////////////////////

func (r *Remote) SetTyping(_ context.Context, conversationID, userID string,
	at time.Time) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.writeErr != nil {
		return r.writeErr
	}
	if r.typing[conversationID] == nil {
		r.typing[conversationID] = make(map[string]time.Time)
	}
	r.typing[conversationID][userID] = at
	r.notify(feeds.NameTyping)
	return nil
}

func (r *Remote) ClearTyping(_ context.Context, conversationID,
	userID string) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.writeErr != nil {
		return r.writeErr
	}
	delete(r.typing[conversationID], userID)
	r.notify(feeds.NameTyping)
	return nil
}

func (r *Remote) SubscribeTyping(conversationIDs []string,
	cb feeds.TypingCallback) (feeds.Subscription, error) {
	conversationIDs = append([]string(nil), conversationIDs...)
	return r.subscribe(feeds.NameTyping, func() {
		r.mux.Lock()
		now := r.now()
		typing := make(map[string]map[string]time.Time, len(conversationIDs))
		for _, conversationID := range conversationIDs {
			entries := make(map[string]time.Time)
			for userID, at := range r.typing[conversationID] {
				if now.Sub(at) < r.typingTTL {
					entries[userID] = at
				}
			}
			typing[conversationID] = entries
		}
		r.mux.Unlock()
		cb(typing, nil)
	}, func(err error) { cb(nil, err) }), nil
}

////////////////////////////////////////////////////////////////////////////////
// Users                                                                      //
////////////////////////////////////////////////////////////////////////////////

func (r *Remote) PutUser(_ context.Context, u chat.User) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.writeErr != nil {
		return r.writeErr
	}
	r.users[u.ID] = u
	r.notify(feeds.NameUsers)
	return nil
}

func (r *Remote) SubscribeUsers(userIDs []string,
	cb feeds.UsersCallback) (feeds.Subscription, error) {
	userIDs = append([]string(nil), userIDs...)
	return r.subscribe(feeds.NameUsers, func() {
		r.mux.Lock()
		users := make(map[string]chat.User, len(userIDs))
		for _, userID := range userIDs {
			if u, ok := r.users[userID]; ok {
				users[userID] = u
			}
		}
		r.mux.Unlock()
		cb(users, nil)
	}, func(err error) { cb(nil, err) }), nil
}

////////////////////////////////////////////////////////////////////////////////
// Counts                                                                     //
////////////////////////////////////////////////////////////////////////////////

func (r *Remote) SubscribeCounts(userID string,
	cb feeds.CountsCallback) (feeds.Subscription, error) {
	return r.subscribe(feeds.NameCounts, func() {
		r.mux.Lock()
		counts := make(map[string]chat.Counts, len(r.counts[userID]))
		for conversationID, c := range r.counts[userID] {
			counts[conversationID] = c
		}
		r.mux.Unlock()
		cb(counts, nil)
	}, func(err error) { cb(nil, err) }), nil
}

func (r *Remote) ResetUnread(_ context.Context, userID,
	conversationID string) error {
	return r.updateCounts(userID, conversationID, func(c *chat.Counts) {
		c.Unread = 0
	})
}

func (r *Remote) ResetUndelivered(_ context.Context, userID,
	conversationID string) error {
	return r.updateCounts(userID, conversationID, func(c *chat.Counts) {
		c.Undelivered = 0
	})
}

func (r *Remote) updateCounts(userID, conversationID string,
	update func(c *chat.Counts)) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.writeErr != nil {
		return r.writeErr
	}
	counts := r.userCounts(userID)
	c := counts[conversationID]
	update(&c)
	counts[conversationID] = c
	r.notify(feeds.NameCounts)
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Helpers                                                                    //
////////////////////////////////////////////////////////////////////////////////

// vector must be called with the lock held.
func (r *Remote) vector(conversationID string) status.Vector {
	v, exists := r.vectors[conversationID]
	if !exists {
		v = status.Vector{}
		r.vectors[conversationID] = v
	}
	return v
}

// userCounts must be called with the lock held.
func (r *Remote) userCounts(userID string) map[string]chat.Counts {
	counts, exists := r.counts[userID]
	if !exists {
		counts = make(map[string]chat.Counts)
		r.counts[userID] = counts
	}
	return counts
}

func copyConversation(c chat.Conversation) chat.Conversation {
	c.MemberIDs = append([]string(nil), c.MemberIDs...)
	sort.Strings(c.MemberIDs)
	return c
}

func copyMessage(m chat.Message) chat.Message {
	m.MemberSnapshot = append([]string(nil), m.MemberSnapshot...)
	return m
}
