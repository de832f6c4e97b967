////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package feeds

import (
	"sync"
	"testing"
)

// Tests that the cancel function runs exactly once under concurrent
// Unsubscribe calls.
func TestSubscription_Unsubscribe(t *testing.T) {
	var mux sync.Mutex
	calls := 0
	sub := NewSubscription(func() {
		mux.Lock()
		calls++
		mux.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub.Unsubscribe()
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("Cancel called wrong number of times."+
			"\nexpected: %d\nreceived: %d", 1, calls)
	}

	Nop.Unsubscribe()
}
