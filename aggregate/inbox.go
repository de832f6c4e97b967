////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package aggregate combines independent live feeds into read-only
// snapshots.
//
// Each aggregate runs one event loop. Upstream callbacks only post events to
// it, and the snapshot callback is only ever called from it. Feeds whose
// parameters derive from another feed (users and presence from the member
// set, typing from the conversation set) are re-subscribed only when the
// content of that set changes.
package aggregate

import (
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/feeds"
	"gitlab.com/elixxir/synapse/metrics"
	"gitlab.com/elixxir/synapse/presence"
	"gitlab.com/elixxir/synapse/typing"
)

const inboxName = "inbox"

// InboxSnapshot is the state of every conversation of a user. Snapshots are
// read-only and must not be modified by the receiver.
type InboxSnapshot struct {
	UserID string

	// Sorted by last update, newest first
	Conversations []chat.Conversation

	// Profiles and effective presence of every member of every conversation
	Users    map[string]chat.User
	Presence map[string]bool

	// Users typing per conversation ID, newest first, without the current
	// user, and the matching indicator text
	Typing     map[string][]string
	TypingText map[string]string

	Counts      map[string]chat.Counts
	IsConnected bool

	// Set while a feed is failing; the affected fields hold their last
	// known value
	Stale bool
}

// InboxCallback receives every InboxSnapshot.
type InboxCallback func(snapshot InboxSnapshot)

// Inbox aggregates the conversation list of a user with the profiles,
// presence and typing state of its members and the user's counts.
type Inbox struct {
	*aggregator
	userID string
	remote feeds.Remote
	cb     InboxCallback

	conversations *slot[[]chat.Conversation]
	users         *slot[map[string]chat.User]
	presence      *slot[map[string]chat.Presence]
	typing        *slot[map[string]map[string]time.Time]
	counts        *slot[map[string]chat.Counts]
}

// NewInbox starts an Inbox for userID. An empty userID yields one neutral
// snapshot and no subscriptions. The monitor may be nil.
func NewInbox(remote feeds.Remote, monitor feeds.Connectivity, userID string,
	params Params, m *metrics.Metrics, now func() time.Time,
	cb InboxCallback) *Inbox {
	i := &Inbox{
		aggregator: newAggregator(inboxName, monitor, params, m, now),
		userID:     userID,
		remote:     remote,
		cb:         cb,
	}
	i.conversations = newSlot[[]chat.Conversation](i.aggregator,
		feeds.NameConversations)
	i.users = newSlot[map[string]chat.User](i.aggregator, feeds.NameUsers)
	i.presence = newSlot[map[string]chat.Presence](i.aggregator,
		feeds.NamePresence)
	i.typing = newSlot[map[string]map[string]time.Time](i.aggregator,
		feeds.NameTyping)
	i.counts = newSlot[map[string]chat.Counts](i.aggregator, feeds.NameCounts)
	i.onChange = i.update

	go i.loop.run(i.start, i.teardown)
	return i
}

// Close stops the Inbox. Once it returns, every upstream subscription is
// closed and the callback is not called again. Close must not be called from
// the callback.
func (i *Inbox) Close() {
	i.loop.stop()
}

func (i *Inbox) start() {
	if i.userID == "" {
		jww.DEBUG.Printf("[AGG] No current user, inbox stays empty")
		i.cb(InboxSnapshot{})
		i.emitted()
		return
	}

	i.watchHealth()
	i.conversations.set(i.userID,
		func(cb func([]chat.Conversation, error)) (feeds.Subscription, error) {
			return i.remote.SubscribeConversations(i.userID, cb)
		})
	i.counts.set(i.userID,
		func(cb func(map[string]chat.Counts, error)) (feeds.Subscription, error) {
			return i.remote.SubscribeCounts(i.userID, cb)
		})
}

// update re-keys the derived feeds and emits if every feed has settled.
func (i *Inbox) update() {
	if conversations, ok := i.conversations.current(); ok {
		i.rekey(conversations)
	}

	if !i.ready() {
		return
	}
	i.emit()
}

func (i *Inbox) rekey(conversations []chat.Conversation) {
	members := memberIDs(conversations)
	if key := setKey(members); key == "" {
		i.users.idle()
		i.presence.idle()
	} else {
		i.users.set(key,
			func(cb func(map[string]chat.User, error)) (feeds.Subscription, error) {
				return i.remote.SubscribeUsers(members, cb)
			})
		i.presence.set(key,
			func(cb func(map[string]chat.Presence, error)) (feeds.Subscription, error) {
				return i.remote.SubscribePresence(members, cb)
			})
	}

	ids := conversationIDs(conversations)
	if key := setKey(ids); key == "" {
		i.typing.idle()
	} else {
		i.typing.set(key,
			func(cb func(map[string]map[string]time.Time, error)) (feeds.Subscription, error) {
				return i.remote.SubscribeTyping(ids, cb)
			})
	}
}

func (i *Inbox) emit() {
	now := i.now()
	conversations, _ := i.conversations.current()
	users, _ := i.users.current()
	records, _ := i.presence.current()
	entries, _ := i.typing.current()
	counts, _ := i.counts.current()

	snapshot := InboxSnapshot{
		UserID:        i.userID,
		Conversations: conversations,
		Users:         users,
		Presence:      presence.Effective(records, now, i.params.Threshold),
		Typing:        make(map[string][]string),
		TypingText:    make(map[string]string),
		Counts:        counts,
		IsConnected:   i.connected,
		Stale:         i.stale(),
	}

	next, hasNext := presence.NextTransition(records, now, i.params.Threshold)
	for conversationID, typers := range entries {
		userIDs := typing.Filter(typers, i.userID, now, i.params.TypingTTL)
		if len(userIDs) == 0 {
			continue
		}
		snapshot.Typing[conversationID] = userIDs
		snapshot.TypingText[conversationID] = typing.Text(names(userIDs, users))

		expiry, ok := typing.NextExpiry(typers, i.userID, now,
			i.params.TypingTTL)
		next, hasNext = earliest(next, hasNext, expiry, ok)
	}

	i.cb(snapshot)
	i.emitted()
	i.scheduleRefresh(next, hasNext)
}

// names resolves user IDs to display names.
func names(userIDs []string, users map[string]chat.User) []string {
	list := make([]string, len(userIDs))
	for j, userID := range userIDs {
		if u, ok := users[userID]; ok {
			list[j] = u.Name()
		} else {
			list[j] = userID
		}
	}
	return list
}
