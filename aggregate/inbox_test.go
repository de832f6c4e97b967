////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/feeds"
	"gitlab.com/elixxir/synapse/metrics"
)

var derivedFeeds = []string{feeds.NameConversations, feeds.NameUsers,
	feeds.NamePresence, feeds.NameTyping, feeds.NameCounts}

// Tests that no user yields a single neutral snapshot without subscribing.
func TestInbox_NoUser(t *testing.T) {
	r := newTestRemote()
	rec := &recorder[InboxSnapshot]{}

	inbox := NewInbox(r, nil, "", testParams(), nil, time.Now, rec.cb)
	require.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, tick)
	inbox.Close()

	s, _ := rec.last()
	require.Empty(t, s.Conversations)
	require.False(t, s.Stale)
	for _, feed := range derivedFeeds {
		require.Zero(t, r.Opened(feed), feed)
	}
}

// Tests that users, presence and typing are re-subscribed only when the set
// they are keyed on changes, and that Close releases every subscription.
func TestInbox_Keying(t *testing.T) {
	ctx := context.Background()
	r := newTestRemote()
	m := metrics.New(prometheus.NewRegistry())

	group, err := r.CreateGroup(ctx, "admin", []string{"b"}, "team")
	require.NoError(t, err)
	direct, err := chat.NewDirect("admin", "c", time.Now())
	require.NoError(t, err)
	require.NoError(t, r.EnsureConversation(ctx, direct))

	rec := &recorder[InboxSnapshot]{}
	inbox := NewInbox(r, nil, "admin", testParams(), m, time.Now, rec.cb)

	rec.waitUntil(t, func(s InboxSnapshot) bool {
		return len(s.Conversations) == 2
	})
	for _, feed := range derivedFeeds {
		require.Equal(t, 1, r.Opened(feed), feed)
	}

	// A new message reorders the list but keeps both sets
	msg, err := chat.NewMessage(group, "b", "hi", []string{"admin", "b"},
		time.Now())
	require.NoError(t, err)
	_, err = r.Send(ctx, msg)
	require.NoError(t, err)

	s := rec.waitUntil(t, func(s InboxSnapshot) bool {
		return len(s.Conversations) == 2 && s.Conversations[0].ID == group &&
			s.Counts[group].Unread == 1
	})
	require.Equal(t, "hi", s.Conversations[0].LastMessage)
	require.Equal(t, 1, r.Opened(feeds.NameUsers))
	require.Equal(t, 1, r.Opened(feeds.NamePresence))
	require.Equal(t, 1, r.Opened(feeds.NameTyping))

	// A new member changes the member set only
	require.NoError(t, r.AddMember(ctx, group, "admin", "d"))
	require.Eventually(t, func() bool {
		return r.Opened(feeds.NameUsers) == 2 && r.Opened(feeds.NamePresence) == 2
	}, waitFor, tick)
	require.Equal(t, 1, r.Opened(feeds.NameTyping))
	require.Equal(t, 1, r.Active(feeds.NameUsers))

	// A new conversation with known members changes the conversation set only
	self := chat.NewSelf("admin", time.Now())
	require.NoError(t, r.EnsureConversation(ctx, self))
	rec.waitUntil(t, func(s InboxSnapshot) bool {
		return len(s.Conversations) == 3
	})
	require.Equal(t, 2, r.Opened(feeds.NameTyping))
	require.Equal(t, 2, r.Opened(feeds.NameUsers))

	inbox.Close()
	for _, feed := range derivedFeeds {
		require.Zero(t, r.Active(feed), feed)
	}

	n := rec.count()
	require.NoError(t, r.PutUser(ctx, chat.User{ID: "b", DisplayName: "Bob"}))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, n, rec.count())
	require.Equal(t, float64(n),
		testutil.ToFloat64(m.SnapshotsEmitted.WithLabelValues(inboxName)))
}

// Tests that a failing feed marks the snapshot stale, keeps its last value
// and is subscribed again.
func TestInbox_Stale(t *testing.T) {
	ctx := context.Background()
	r := newTestRemote()
	direct, err := chat.NewDirect("a", "b", time.Now())
	require.NoError(t, err)
	require.NoError(t, r.EnsureConversation(ctx, direct))
	require.NoError(t, r.ResetUnread(ctx, "a", direct.ID))

	rec := &recorder[InboxSnapshot]{}
	inbox := NewInbox(r, nil, "a", testParams(), nil, time.Now, rec.cb)
	defer inbox.Close()

	rec.waitUntil(t, func(s InboxSnapshot) bool {
		return len(s.Conversations) == 1
	})

	r.Fail(feeds.NameCounts, errors.New("connection reset"))
	s := rec.waitUntil(t, func(s InboxSnapshot) bool { return s.Stale })
	require.Len(t, s.Conversations, 1)
	require.Contains(t, s.Counts, direct.ID)

	rec.waitUntil(t, func(s InboxSnapshot) bool { return !s.Stale })
	require.Equal(t, 2, r.Opened(feeds.NameCounts))
}

// Tests that presence turns offline on its own once the record is older than
// the threshold.
func TestInbox_PresenceExpiry(t *testing.T) {
	ctx := context.Background()
	r := newTestRemote()
	direct, err := chat.NewDirect("a", "b", time.Now())
	require.NoError(t, err)
	require.NoError(t, r.EnsureConversation(ctx, direct))

	params := testParams()
	params.Threshold = 100 * time.Millisecond

	rec := &recorder[InboxSnapshot]{}
	inbox := NewInbox(r, nil, "a", params, nil, time.Now, rec.cb)
	defer inbox.Close()

	require.NoError(t, r.WritePresence(ctx, "b", true, time.Now()))
	rec.waitUntil(t, func(s InboxSnapshot) bool { return s.Presence["b"] })
	rec.waitUntil(t, func(s InboxSnapshot) bool {
		online, ok := s.Presence["b"]
		return ok && !online
	})
}

// Tests the typing indicator of the inbox.
func TestInbox_Typing(t *testing.T) {
	ctx := context.Background()
	r := newTestRemote()
	direct, err := chat.NewDirect("a", "b", time.Now())
	require.NoError(t, err)
	require.NoError(t, r.EnsureConversation(ctx, direct))
	require.NoError(t, r.PutUser(ctx, chat.User{ID: "b", DisplayName: "Bob"}))

	rec := &recorder[InboxSnapshot]{}
	inbox := NewInbox(r, nil, "a", testParams(), nil, time.Now, rec.cb)
	defer inbox.Close()

	require.NoError(t, r.SetTyping(ctx, direct.ID, "a", time.Now()))
	require.NoError(t, r.SetTyping(ctx, direct.ID, "b", time.Now()))
	s := rec.waitUntil(t, func(s InboxSnapshot) bool {
		return s.TypingText[direct.ID] == "Bob is typing..."
	})
	require.Equal(t, []string{"b"}, s.Typing[direct.ID])

	require.NoError(t, r.ClearTyping(ctx, direct.ID, "b"))
	rec.waitUntil(t, func(s InboxSnapshot) bool {
		_, typing := s.Typing[direct.ID]
		return !typing
	})
}

// Tests that connectivity changes reach the snapshot and that Close removes
// the health callback.
func TestInbox_Connectivity(t *testing.T) {
	ctx := context.Background()
	r := newTestRemote()
	require.NoError(t, r.EnsureConversation(ctx, chat.NewSelf("a", time.Now())))
	monitor := newMockMonitor(false)

	rec := &recorder[InboxSnapshot]{}
	inbox := NewInbox(r, monitor, "a", testParams(), nil, time.Now, rec.cb)

	rec.waitUntil(t, func(s InboxSnapshot) bool {
		return len(s.Conversations) == 1 && !s.IsConnected
	})
	monitor.set(true)
	rec.waitUntil(t, func(s InboxSnapshot) bool { return s.IsConnected })

	inbox.Close()
	require.Zero(t, monitor.callbacks())
}
