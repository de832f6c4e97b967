////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package aggregate

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/synapse/feeds/memory"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

// recorder keeps every snapshot delivered to an aggregate callback.
type recorder[T any] struct {
	snapshots []T
	mux       sync.Mutex
}

func (r *recorder[T]) cb(snapshot T) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.snapshots = append(r.snapshots, snapshot)
}

func (r *recorder[T]) count() int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return len(r.snapshots)
}

func (r *recorder[T]) last() (T, bool) {
	r.mux.Lock()
	defer r.mux.Unlock()
	if len(r.snapshots) == 0 {
		var zero T
		return zero, false
	}
	return r.snapshots[len(r.snapshots)-1], true
}

// waitUntil waits for the latest snapshot to match.
func (r *recorder[T]) waitUntil(t *testing.T, match func(T) bool) T {
	t.Helper()
	var matched T
	require.Eventually(t, func() bool {
		s, ok := r.last()
		if ok && match(s) {
			matched = s
			return true
		}
		return false
	}, waitFor, tick)
	return matched
}

func testParams() Params {
	return Params{
		RetryDelay: 20 * time.Millisecond,
		Threshold:  time.Minute,
		TypingTTL:  time.Minute,
	}
}

func newTestRemote() *memory.Remote {
	return memory.New(time.Now, time.Minute)
}

// mockMonitor is a feeds.Connectivity whose state is set by the test.
type mockMonitor struct {
	healthy atomic.Bool
	funcs   map[uint64]func(bool)
	nextID  uint64
	mux     sync.Mutex
}

func newMockMonitor(healthy bool) *mockMonitor {
	m := &mockMonitor{funcs: make(map[uint64]func(bool))}
	m.healthy.Store(healthy)
	return m
}

func (m *mockMonitor) AddHealthCallback(f func(isHealthy bool)) uint64 {
	m.mux.Lock()
	defer m.mux.Unlock()
	id := m.nextID
	m.nextID++
	m.funcs[id] = f
	go f(m.healthy.Load())
	return id
}

func (m *mockMonitor) RemoveHealthCallback(id uint64) {
	m.mux.Lock()
	defer m.mux.Unlock()
	delete(m.funcs, id)
}

func (m *mockMonitor) IsHealthy() bool {
	return m.healthy.Load()
}

func (m *mockMonitor) callbacks() int {
	m.mux.Lock()
	defer m.mux.Unlock()
	return len(m.funcs)
}

func (m *mockMonitor) set(healthy bool) {
	m.healthy.Store(healthy)
	m.mux.Lock()
	defer m.mux.Unlock()
	for _, f := range m.funcs {
		go f(healthy)
	}
}
