////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build !js || !wasm

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/feeds"
	"gitlab.com/elixxir/synapse/feeds/memory"
)

func testParams() Params {
	p := GetDefaultParams()
	p.PageSize = 3
	p.SyncRate = 1000
	p.ResendRate = 1000
	p.RetryDelay = 10 * time.Millisecond
	return p
}

// newTickClock returns a clock that advances one millisecond per call, so
// server timestamps follow send order.
func newTickClock() func() time.Time {
	var mux sync.Mutex
	now := t0
	return func() time.Time {
		mux.Lock()
		defer mux.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

// newTestRemote builds a remote holding the direct conversation between a
// and b, which has the ID "c1" in cache tests.
func newTestRemote(t *testing.T) (*memory.Remote, chat.Conversation) {
	r := memory.New(newTickClock(), time.Second)
	c := chat.Conversation{
		ID:        "c1",
		Kind:      chat.Direct,
		MemberIDs: []string{"a", "b"},
		UpdatedAt: t0,
	}
	require.NoError(t, r.EnsureConversation(context.Background(), c))
	return r, c
}

// Tests that tracked conversations are mirrored into the store and that the
// last release unsubscribes.
func TestSynchronizer_Track(t *testing.T) {
	s := newTestStore(t)
	r, c := newTestRemote(t)
	synchronizer := NewSynchronizer(s, r, testParams(), nil)
	defer synchronizer.Close()

	release := synchronizer.Track(c.ID)
	releaseAgain := synchronizer.Track(c.ID)
	require.Equal(t, 1, r.Opened(feeds.NameMessages))

	msg, err := chat.NewMessage(c.ID, "a", "hi", c.MemberIDs, time.Now())
	require.NoError(t, err)
	_, err = r.Send(context.Background(), msg)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, err := s.Get(msg.ID)
		return err == nil && stored.Acknowledged()
	}, time.Second, time.Millisecond)

	release()
	release()
	require.Equal(t, 1, synchronizer.Tracking())
	releaseAgain()
	require.Equal(t, 0, synchronizer.Tracking())
	require.Equal(t, 0, r.Active(feeds.NameMessages))
}

// Tests that a failed feed is re-subscribed after the retry delay.
func TestSynchronizer_Resubscribe(t *testing.T) {
	s := newTestStore(t)
	r, c := newTestRemote(t)
	synchronizer := NewSynchronizer(s, r, testParams(), nil)
	defer synchronizer.Close()

	release := synchronizer.Track(c.ID)
	defer release()

	require.Eventually(t, func() bool { return r.Active(feeds.NameMessages) == 1 },
		time.Second, time.Millisecond)
	r.Fail(feeds.NameMessages, errors.New("connection reset"))

	require.Eventually(t, func() bool { return r.Opened(feeds.NameMessages) == 2 },
		time.Second, time.Millisecond)

	msg, err := chat.NewMessage(c.ID, "b", "back", c.MemberIDs, time.Now())
	require.NoError(t, err)
	_, err = r.Send(context.Background(), msg)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := s.Get(msg.ID)
		return err == nil
	}, time.Second, time.Millisecond)
}

// Tests that the synchronizer never removes locally authored messages the
// remote has not seen.
func TestSynchronizer_KeepsLocalMessages(t *testing.T) {
	s := newTestStore(t)
	r, c := newTestRemote(t)

	local, err := chat.NewMessage(c.ID, "a", "offline", c.MemberIDs, time.Now())
	require.NoError(t, err)
	_, err = s.Upsert(local)
	require.NoError(t, err)

	synchronizer := NewSynchronizer(s, r, testParams(), nil)
	release := synchronizer.Track(c.ID)

	remote, err := chat.NewMessage(c.ID, "b", "online", c.MemberIDs, time.Now())
	require.NoError(t, err)
	_, err = r.Send(context.Background(), remote)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := s.Get(remote.ID)
		return err == nil
	}, time.Second, time.Millisecond)
	release()
	synchronizer.Close()

	stored, err := s.Get(local.ID)
	require.NoError(t, err)
	require.False(t, stored.Acknowledged())
}

// failingFeed is a MessageFeed whose subscriptions fail right after they
// open. It counts subscriptions opened and released.
type failingFeed struct {
	feeds.MessageFeed
	opened       int
	unsubscribed int
	mux          sync.Mutex
}

func (f *failingFeed) SubscribeMessages(_ string,
	cb feeds.MessagesCallback) (feeds.Subscription, error) {
	f.mux.Lock()
	f.opened++
	f.mux.Unlock()

	go cb(nil, errors.New("connection reset"))
	return &countedSubscription{feed: f}, nil
}

func (f *failingFeed) counts() (opened, unsubscribed int) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.opened, f.unsubscribed
}

type countedSubscription struct {
	feed *failingFeed
	once sync.Once
}

func (s *countedSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.feed.mux.Lock()
		s.feed.unsubscribed++
		s.feed.mux.Unlock()
	})
}

// Tests that every failed subscription is released before it is replaced.
func TestSynchronizer_ReleasesFailedSubscriptions(t *testing.T) {
	s := newTestStore(t)
	feed := &failingFeed{}
	params := testParams()
	params.RetryDelay = 20 * time.Millisecond
	synchronizer := NewSynchronizer(s, feed, params, nil)

	release := synchronizer.Track("c1")
	require.Eventually(t, func() bool {
		opened, _ := feed.counts()
		return opened >= 3
	}, time.Second, time.Millisecond)
	release()
	synchronizer.Close()

	require.Eventually(t, func() bool {
		opened, unsubscribed := feed.counts()
		return opened == unsubscribed
	}, time.Second, time.Millisecond)
	require.Equal(t, 0, synchronizer.Tracking())
}
