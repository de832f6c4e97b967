////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package feeds

import "sync"

// Subscription is a handle on a live feed.
type Subscription interface {
	// Unsubscribe stops the feed. Once it returns, the callback will not be
	// invoked again. Calling it more than once has no effect.
	Unsubscribe()
}

type subscription struct {
	cancel func()
	once   sync.Once
}

// NewSubscription returns a Subscription that calls cancel exactly once.
func NewSubscription(cancel func()) Subscription {
	return &subscription{cancel: cancel}
}

// Unsubscribe calls the cancel function on the first call only.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Nop is a Subscription with nothing to cancel.
var Nop Subscription = NewSubscription(nil)
