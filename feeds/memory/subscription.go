////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package memory

import (
	"sync"
)

// subscription delivers the current value of one feed on its own goroutine.
// Change signals coalesce, so a slow callback always catches up with the
// latest state rather than replaying every change.
type subscription struct {
	feed    string
	refresh func()
	fail    func(err error)

	changed chan struct{}
	failed  chan error
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// subscribe registers a subscription to feed and delivers its first value.
func (r *Remote) subscribe(feed string, refresh func(),
	fail func(err error)) *subscription {
	s := &subscription{
		feed:    feed,
		refresh: refresh,
		fail:    fail,
		changed: make(chan struct{}, 1),
		failed:  make(chan error, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	r.mux.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = s
	r.opened[feed]++
	r.mux.Unlock()

	s.changed <- struct{}{}
	go s.run(func() {
		r.mux.Lock()
		delete(r.subs, id)
		r.mux.Unlock()
	})
	return s
}

func (s *subscription) run(remove func()) {
	defer close(s.done)
	defer remove()

	for {
		select {
		case <-s.quit:
			return
		case err := <-s.failed:
			s.fail(err)
			return
		case <-s.changed:
			select {
			case <-s.quit:
				return
			default:
				s.refresh()
			}
		}
	}
}

// Unsubscribe stops delivery and waits for an in-flight callback to return.
// It must not be called from within the subscription's own callback.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() { close(s.quit) })
	<-s.done
}

// notify signals every subscription of the given feeds. Must be called with
// the lock held.
func (r *Remote) notify(feedNames ...string) {
	for _, s := range r.subs {
		for _, feed := range feedNames {
			if s.feed == feed {
				select {
				case s.changed <- struct{}{}:
				default:
				}
				break
			}
		}
	}
}

// Fail ends every active subscription of feed with err, as if the remote
// dropped them.
func (r *Remote) Fail(feed string, err error) {
	r.mux.Lock()
	defer r.mux.Unlock()

	for _, s := range r.subs {
		if s.feed == feed {
			select {
			case s.failed <- err:
			default:
			}
		}
	}
}

// Opened returns the number of subscriptions ever made to feed.
func (r *Remote) Opened(feed string) int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.opened[feed]
}

// Active returns the number of subscriptions to feed still delivering.
func (r *Remote) Active(feed string) int {
	r.mux.Lock()
	defer r.mux.Unlock()

	n := 0
	for _, s := range r.subs {
		if s.feed == feed {
			n++
		}
	}
	return n
}

// Notify re-delivers the current value of every feed to its subscribers.
func (r *Remote) Notify() {
	r.mux.Lock()
	defer r.mux.Unlock()

	for _, s := range r.subs {
		select {
		case s.changed <- struct{}{}:
		default:
		}
	}
}
