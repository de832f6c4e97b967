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

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/feeds"
	"gitlab.com/elixxir/synapse/metrics"
	"gitlab.com/elixxir/synapse/stoppable"
)

const (
	windowStoppable = "MessageWindow"
	readerFeedName  = "messages"

	// Maximum duration Unsubscribe waits for the window goroutine
	windowStopTimeout = 5 * time.Second
)

// Page is the visible slice of a conversation's history.
type Page struct {
	ConversationID string

	// Messages, oldest first
	Messages []chat.Message

	// True if older messages exist beyond the window
	HasOlder bool

	// True if the page was read from the local cache
	FromCache bool

	// True if the live feed failed and the page is the last one known
	Stale bool
}

// PageCallback receives every new Page of a Window.
type PageCallback func(page Page, err error)

// Reader serves message history either from the local cache or from the
// live remote feed. The choice is fixed by Params.UseCache.
type Reader struct {
	params  Params
	store   *Store
	sync    *Synchronizer
	feed    feeds.MessageFeed
	metrics *metrics.Metrics
}

// NewReader builds a Reader. store and sync may be nil when
// params.UseCache is false.
func NewReader(params Params, store *Store, sync *Synchronizer,
	feed feeds.MessageFeed, m *metrics.Metrics) (*Reader, error) {
	if params.PageSize <= 0 {
		return nil, errors.Errorf("invalid page size %d", params.PageSize)
	}
	if params.UseCache && (store == nil || sync == nil) {
		return nil, errors.New("reading from the cache requires a store " +
			"and a synchronizer")
	}
	return &Reader{
		params:  params,
		store:   store,
		sync:    sync,
		feed:    feed,
		metrics: m,
	}, nil
}

// UsesCache returns true if pages come from the local cache.
func (r *Reader) UsesCache() bool {
	return r.params.UseCache
}

// Window is a live view of the newest messages of a conversation that grows
// towards older messages with LoadOlder.
type Window struct {
	reader         *Reader
	conversationID string
	cb             PageCallback

	changed chan struct{}
	stop    *stoppable.Single

	// Cache mode
	unwatch func()
	release func()

	// Number of pages requested, guarded by mux
	pages int

	// Remote mode
	sub      feeds.Subscription
	retry    *time.Timer
	latest   []chat.Message
	received bool
	stale    bool
	closed   bool
	mux      sync.Mutex

	unsubscribeOnce sync.Once
}

// ReadMessages opens a Window on the conversation. cb is called with the
// first page and then after every change, always from the same goroutine.
func (r *Reader) ReadMessages(conversationID string, cb PageCallback) (*Window, error) {
	w := &Window{
		reader:         r,
		conversationID: conversationID,
		cb:             cb,
		pages:          1,
		changed:        make(chan struct{}, 1),
		stop:           stoppable.NewSingle(windowStoppable),
	}

	if r.params.UseCache {
		var watch <-chan struct{}
		watch, w.unwatch = r.store.Watch(conversationID)
		w.release = r.sync.Track(conversationID)
		go w.forward(watch)
		w.signal()
	} else {
		w.mux.Lock()
		err := w.subscribe()
		w.mux.Unlock()
		if err != nil {
			return nil, err
		}
	}

	go w.run()
	return w, nil
}

// LoadOlder extends the window by one page of older messages. Every call
// counts, even when several arrive before the next page is emitted.
func (w *Window) LoadOlder() {
	w.mux.Lock()
	if w.closed {
		w.mux.Unlock()
		return
	}
	w.pages++
	w.mux.Unlock()
	w.signal()
}

// Unsubscribe stops the window. Once it returns, the callback is not called
// again.
func (w *Window) Unsubscribe() {
	w.unsubscribeOnce.Do(func() {
		w.mux.Lock()
		w.closed = true
		if w.retry != nil {
			w.retry.Stop()
		}
		sub := w.sub
		w.sub = nil
		w.mux.Unlock()

		if sub != nil {
			sub.Unsubscribe()
			w.reader.metrics.SubscriptionClosed(readerFeedName)
		}
		if w.unwatch != nil {
			w.unwatch()
		}
		if w.release != nil {
			w.release()
		}

		if err := w.stop.Close(); err != nil {
			jww.WARN.Printf("[CACHE] %+v", err)
		}
		if err := w.stop.WaitForStopped(windowStopTimeout); err != nil {
			jww.ERROR.Printf("[CACHE] %+v", err)
		}
	})
}

func (w *Window) signal() {
	select {
	case w.changed <- struct{}{}:
	default:
	}
}

// forward relays store change signals until the window stops.
func (w *Window) forward(watch <-chan struct{}) {
	for {
		select {
		case <-w.stop.Quit():
			return
		case <-watch:
			w.signal()
		}
	}
}

func (w *Window) run() {
	for {
		select {
		case <-w.stop.Quit():
			w.stop.ToStopped()
			return
		case <-w.changed:
			w.emit()
		}
	}
}

func (w *Window) emit() {
	var page Page
	var ok bool
	if w.reader.params.UseCache {
		page, ok = w.fromCache()
	} else {
		page, ok = w.fromRemote()
	}
	if !ok {
		return
	}

	select {
	case <-w.stop.Quit():
		return
	default:
		w.cb(page, nil)
	}
}

// fromCache reads the newest pages of the window from the store.
func (w *Window) fromCache() (Page, bool) {
	page := Page{ConversationID: w.conversationID, FromCache: true}

	w.mux.Lock()
	pages := w.pages
	w.mux.Unlock()

	var cursor *Cursor
	var loaded [][]chat.Message
	for i := 0; i < pages; i++ {
		messages, next, hasOlder, err := w.reader.store.Page(
			w.conversationID, cursor, w.reader.params.PageSize)
		if err != nil {
			jww.WARN.Printf("[CACHE] Failed to read %s: %+v",
				w.conversationID, err)
			return Page{}, false
		}
		loaded = append(loaded, messages)
		page.HasOlder = hasOlder
		cursor = next
		if !hasOlder {
			break
		}
	}

	for i := len(loaded) - 1; i >= 0; i-- {
		page.Messages = append(page.Messages, loaded[i]...)
	}
	return page, true
}

// fromRemote cuts the window out of the latest feed emission.
func (w *Window) fromRemote() (Page, bool) {
	w.mux.Lock()
	defer w.mux.Unlock()

	if !w.received && !w.stale {
		return Page{}, false
	}

	messages := append([]chat.Message(nil), w.latest...)
	chat.SortMessages(messages)

	size := w.pages * w.reader.params.PageSize
	page := Page{ConversationID: w.conversationID, Stale: w.stale}
	if len(messages) > size {
		page.HasOlder = true
		messages = messages[len(messages)-size:]
	}
	page.Messages = messages
	return page, true
}

// subscribe must be called with the lock held.
func (w *Window) subscribe() error {
	sub, err := w.reader.feed.SubscribeMessages(w.conversationID,
		func(messages []chat.Message, err error) {
			w.receive(messages, err)
		})
	if err != nil {
		return errors.WithMessagef(err, "failed to read messages of %s",
			w.conversationID)
	}
	w.sub = sub
	w.reader.metrics.SubscriptionOpened(readerFeedName)
	return nil
}

func (w *Window) receive(messages []chat.Message, err error) {
	w.mux.Lock()
	defer w.mux.Unlock()

	if w.closed {
		return
	}

	if err != nil {
		jww.WARN.Printf("[CACHE] Live messages of %s failed: %+v",
			w.conversationID, err)
		w.stale = true
		if sub := w.sub; sub != nil {
			w.sub = nil
			w.reader.metrics.SubscriptionClosed(readerFeedName)
			// Called from the failed subscription's own callback
			go sub.Unsubscribe()
		}
		w.scheduleRetry()
		w.signal()
		return
	}

	w.latest = messages
	w.received = true
	w.stale = false
	w.signal()
}

// scheduleRetry must be called with the lock held.
func (w *Window) scheduleRetry() {
	w.retry = time.AfterFunc(w.reader.params.RetryDelay, func() {
		w.mux.Lock()
		defer w.mux.Unlock()

		if w.closed || w.sub != nil {
			return
		}
		w.reader.metrics.Resubscribed(readerFeedName, "failure")
		if err := w.subscribe(); err != nil {
			jww.WARN.Printf("[CACHE] %+v", err)
			w.scheduleRetry()
		}
	})
}
