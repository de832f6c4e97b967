////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package aggregate

import (
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/feeds"
)

// opener subscribes to one upstream feed.
type opener[T any] func(cb func(value T, err error)) (feeds.Subscription, error)

// slot holds one keyed upstream subscription of an aggregate. Pointing it at
// a new key replaces the subscription; pointing it at the current key does
// nothing. Every method must be called from the aggregate's loop.
type slot[T any] struct {
	name string
	agg  *aggregator

	active bool
	key    string
	open   opener[T]
	sub    feeds.Subscription
	retry  *time.Timer

	// Incremented on every key change so that values of replaced
	// subscriptions are dropped
	generation uint64

	value  T
	has    bool
	failed bool
}

func newSlot[T any](agg *aggregator, name string) *slot[T] {
	s := &slot[T]{name: name, agg: agg}
	agg.slots = append(agg.slots, s)
	return s
}

// set points the slot at key.
func (s *slot[T]) set(key string, open opener[T]) {
	if s.active && s.key == key {
		return
	}
	if s.active {
		jww.DEBUG.Printf("[AGG] Re-keying %s feed of %s", s.name, s.agg.name)
		s.agg.metrics.Resubscribed(s.name, "rekey")
	}

	s.close()
	s.active = true
	s.key = key
	s.open = open
	s.start()
}

// idle closes the slot and leaves it without a key. An idle slot does not
// hold back emissions.
func (s *slot[T]) idle() {
	s.close()
	s.key = ""
	s.open = nil
}

// current returns the last value received for the current key.
func (s *slot[T]) current() (T, bool) {
	return s.value, s.has
}

// settled is true once the slot received a value or failed for its current
// key.
func (s *slot[T]) settled() bool {
	return !s.active || s.has || s.failed
}

func (s *slot[T]) stale() bool {
	return s.active && s.failed
}

// close unsubscribes and forgets the current value.
func (s *slot[T]) close() {
	s.generation++
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}

	var zero T
	s.value = zero
	s.active = false
	s.has = false
	s.failed = false
}

func (s *slot[T]) start() {
	generation := s.generation
	sub, err := s.open(func(value T, err error) {
		s.agg.loop.post(func() { s.receive(generation, value, err) })
	})
	if err != nil {
		s.fail(err)
		s.agg.loop.post(s.agg.changed)
		return
	}
	s.sub = sub
}

func (s *slot[T]) receive(generation uint64, value T, err error) {
	if generation != s.generation {
		return
	}

	if err != nil {
		if s.sub != nil {
			s.sub.Unsubscribe()
			s.sub = nil
		}
		s.fail(err)
	} else {
		s.value = value
		s.has = true
		s.failed = false
	}
	s.agg.changed()
}

// fail marks the slot stale, keeping its last value, and schedules a new
// subscription to the same key.
func (s *slot[T]) fail(err error) {
	jww.WARN.Printf("[AGG] %s feed of %s failed: %+v", s.name, s.agg.name,
		err)
	s.failed = true

	generation := s.generation
	s.retry = time.AfterFunc(s.agg.params.RetryDelay, func() {
		s.agg.loop.post(func() {
			if generation != s.generation || s.sub != nil {
				return
			}
			s.retry = nil
			s.agg.metrics.Resubscribed(s.name, "failure")
			s.start()
		})
	})
}
