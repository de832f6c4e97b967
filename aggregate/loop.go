////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package aggregate

import "sync"

// loop runs every event of an aggregate on a single goroutine. Posting never
// blocks, so upstream callbacks can always return and a synchronous
// Unsubscribe issued from the loop cannot deadlock against them.
type loop struct {
	queue []func()
	wake  chan struct{}
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
	mux   sync.Mutex
}

func newLoop() *loop {
	return &loop{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// post queues f. Events posted after stop are dropped.
func (l *loop) post(f func()) {
	l.mux.Lock()
	select {
	case <-l.quit:
		l.mux.Unlock()
		return
	default:
	}
	l.queue = append(l.queue, f)
	l.mux.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// run calls start, then every posted event in order until stop, then
// teardown.
func (l *loop) run(start, teardown func()) {
	defer close(l.done)
	defer teardown()

	start()
	for {
		select {
		case <-l.quit:
			return
		case <-l.wake:
		}

		l.mux.Lock()
		batch := l.queue
		l.queue = nil
		l.mux.Unlock()

		for _, f := range batch {
			select {
			case <-l.quit:
				return
			default:
				f()
			}
		}
	}
}

// stop ends the loop and waits for teardown to finish. It must not be
// called from the loop goroutine.
func (l *loop) stop() {
	l.once.Do(func() {
		l.mux.Lock()
		close(l.quit)
		l.queue = nil
		l.mux.Unlock()
	})
	<-l.done
}
