////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cache

import (
	"sync"
	"time"

	jww "github.com/spf13/jwalterweatherman"
	"go.uber.org/ratelimit"

	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/feeds"
	"gitlab.com/elixxir/synapse/metrics"
)

const syncFeedName = "cache_sync"

// Synchronizer mirrors the remote message feed of tracked conversations into
// the Store. Writes are upserts by message ID; nothing is ever deleted, so
// locally authored messages the remote has not seen yet survive. Failures
// only make the cache lag.
type Synchronizer struct {
	store   *Store
	feed    feeds.MessageFeed
	params  Params
	metrics *metrics.Metrics
	limiter ratelimit.Limiter

	tracked map[string]*syncState
	closed  bool
	mux     sync.Mutex
}

// syncState is the mirror of one conversation.
type syncState struct {
	refs  int
	sub   feeds.Subscription
	retry *time.Timer

	// Last row written per message ID, to skip unchanged messages
	written map[string]*Message

	// Incremented on every resubscription so callbacks of an older
	// subscription are ignored
	generation uint64
}

// NewSynchronizer builds a Synchronizer writing to store.
func NewSynchronizer(store *Store, feed feeds.MessageFeed, params Params,
	m *metrics.Metrics) *Synchronizer {
	return &Synchronizer{
		store:   store,
		feed:    feed,
		params:  params,
		metrics: m,
		limiter: ratelimit.New(params.SyncRate, ratelimit.WithoutSlack),
		tracked: make(map[string]*syncState),
	}
}

// Track starts mirroring the conversation until the returned function is
// called. Tracking is reference counted.
func (s *Synchronizer) Track(conversationID string) (release func()) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.closed {
		return func() {}
	}

	st, exists := s.tracked[conversationID]
	if !exists {
		st = &syncState{written: make(map[string]*Message)}
		s.tracked[conversationID] = st
		s.subscribe(conversationID, st)
	}
	st.refs++

	var once sync.Once
	return func() {
		once.Do(func() { s.release(conversationID) })
	}
}

// Tracking returns the number of conversations being mirrored.
func (s *Synchronizer) Tracking() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.tracked)
}

// Close stops mirroring every conversation.
func (s *Synchronizer) Close() {
	s.mux.Lock()
	s.closed = true
	tracked := s.tracked
	s.tracked = make(map[string]*syncState)
	s.mux.Unlock()

	for _, st := range tracked {
		s.stop(st)
	}
}

func (s *Synchronizer) release(conversationID string) {
	s.mux.Lock()
	st, exists := s.tracked[conversationID]
	if !exists {
		s.mux.Unlock()
		return
	}
	st.refs--
	if st.refs > 0 {
		s.mux.Unlock()
		return
	}
	delete(s.tracked, conversationID)
	s.mux.Unlock()

	s.stop(st)
}

// stop must be called without the lock held, since unsubscribing waits for
// in-flight callbacks that take the lock.
func (s *Synchronizer) stop(st *syncState) {
	s.mux.Lock()
	st.generation++
	if st.retry != nil {
		st.retry.Stop()
	}
	sub := st.sub
	st.sub = nil
	s.mux.Unlock()

	if sub != nil {
		sub.Unsubscribe()
		s.metrics.SubscriptionClosed(syncFeedName)
	}
}

// subscribe must be called with the lock held.
func (s *Synchronizer) subscribe(conversationID string, st *syncState) {
	st.generation++
	generation := st.generation

	sub, err := s.feed.SubscribeMessages(conversationID,
		func(messages []chat.Message, err error) {
			s.receive(conversationID, generation, messages, err)
		})
	if err != nil {
		jww.WARN.Printf("[CACHE] Failed to subscribe to messages of %s: %+v",
			conversationID, err)
		s.metrics.SyncFailed()
		s.scheduleRetry(conversationID, st)
		return
	}
	st.sub = sub
	s.metrics.SubscriptionOpened(syncFeedName)
}

// scheduleRetry must be called with the lock held.
func (s *Synchronizer) scheduleRetry(conversationID string, st *syncState) {
	generation := st.generation
	st.retry = time.AfterFunc(s.params.RetryDelay, func() {
		s.mux.Lock()
		defer s.mux.Unlock()

		current, exists := s.tracked[conversationID]
		if s.closed || !exists || current != st || st.generation != generation {
			return
		}
		s.metrics.Resubscribed(syncFeedName, "failure")
		s.subscribe(conversationID, st)
	})
}

func (s *Synchronizer) receive(conversationID string, generation uint64,
	messages []chat.Message, err error) {
	s.mux.Lock()
	st, exists := s.tracked[conversationID]
	if !exists || st.generation != generation {
		s.mux.Unlock()
		return
	}

	if err != nil {
		jww.WARN.Printf("[CACHE] Message feed of %s failed, cache will lag: "+
			"%+v", conversationID, err)
		s.metrics.SyncFailed()
		sub := st.sub
		st.sub = nil
		s.scheduleRetry(conversationID, st)
		s.mux.Unlock()

		if sub != nil {
			s.metrics.SubscriptionClosed(syncFeedName)
			// Unsubscribe waits for this callback to return
			go sub.Unsubscribe()
		}
		return
	}

	var changed []chat.Message
	var rows []*Message
	for _, msg := range messages {
		row, err := buildMessage(msg)
		if err != nil {
			jww.WARN.Printf("[CACHE] Skipping message %s: %+v", msg.ID, err)
			continue
		}
		if last, ok := st.written[msg.ID]; ok && equal(last, row) {
			continue
		}
		changed = append(changed, msg)
		rows = append(rows, row)
	}
	s.mux.Unlock()

	if len(changed) == 0 {
		return
	}

	s.limiter.Take()
	n, err := s.store.Upsert(changed...)
	if err != nil {
		jww.WARN.Printf("[CACHE] Failed to mirror %d messages of %s: %+v",
			len(changed), conversationID, err)
		s.metrics.SyncFailed()
		return
	}
	s.metrics.CacheUpserted(n)

	s.mux.Lock()
	for _, row := range rows {
		st.written[row.MessageID] = row
	}
	s.mux.Unlock()
}
