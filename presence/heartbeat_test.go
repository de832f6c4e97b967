////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type write struct {
	userID string
	online bool
}

// mockWriter records presence writes and can be told to fail or panic.
type mockWriter struct {
	writes    []write
	fallbacks []string
	fail      int
	panics    int
	mux       sync.Mutex
}

func (m *mockWriter) WritePresence(_ context.Context, userID string,
	online bool, _ time.Time) error {
	m.mux.Lock()
	defer m.mux.Unlock()

	if m.panics > 0 {
		m.panics--
		panic("write exploded")
	}
	if m.fail > 0 {
		m.fail--
		return errors.New("network down")
	}
	m.writes = append(m.writes, write{userID, online})
	return nil
}

func (m *mockWriter) RegisterDisconnectFallback(_ context.Context,
	userID string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.fallbacks = append(m.fallbacks, userID)
	return nil
}

func (m *mockWriter) get() []write {
	m.mux.Lock()
	defer m.mux.Unlock()
	return append([]write(nil), m.writes...)
}

func testParams() Params {
	return Params{
		Period:       5 * time.Millisecond,
		WriteTimeout: time.Second,
		StopTimeout:  time.Second,
	}
}

// Tests that Start arms the fallback, beats repeatedly and that Stop ends
// with a single offline write.
func TestHeartbeat_StartStop(t *testing.T) {
	w := &mockWriter{}
	h := NewHeartbeat(w, testParams(), nil, time.Now)

	require.NoError(t, h.Start("alice"))
	require.Eventually(t, func() bool { return len(w.get()) >= 3 },
		time.Second, time.Millisecond)
	require.NoError(t, h.Stop("alice"))

	writes := w.get()
	for _, wr := range writes[:len(writes)-1] {
		if !wr.online || wr.userID != "alice" {
			t.Errorf("Unexpected heartbeat write: %+v", wr)
		}
	}
	if last := writes[len(writes)-1]; last.online {
		t.Errorf("Last write is not offline: %+v", last)
	}
	require.Equal(t, []string{"alice"}, w.fallbacks)

	// No write may happen after Stop returns
	time.Sleep(20 * time.Millisecond)
	require.Len(t, w.get(), len(writes))

	_, running := h.Running()
	require.False(t, running)
}

// Tests that starting twice for the same user is a no-op and starting for
// another user fails.
func TestHeartbeat_Start_Reentrant(t *testing.T) {
	w := &mockWriter{}
	h := NewHeartbeat(w, testParams(), nil, time.Now)

	require.NoError(t, h.Start("alice"))
	require.NoError(t, h.Start("alice"))
	require.Error(t, h.Start("bob"))
	require.Error(t, h.Stop("bob"))

	userID, running := h.Running()
	require.True(t, running)
	require.Equal(t, "alice", userID)
	require.Len(t, w.fallbacks, 1)

	require.NoError(t, h.Stop("alice"))
}

// Tests that failing and panicking ticks do not end the heartbeat.
func TestHeartbeat_TickIsolation(t *testing.T) {
	w := &mockWriter{fail: 2, panics: 2}
	h := NewHeartbeat(w, testParams(), nil, time.Now)

	require.NoError(t, h.Start("alice"))
	require.Eventually(t, func() bool { return len(w.get()) >= 2 },
		time.Second, time.Millisecond)
	require.NoError(t, h.Stop("alice"))
}

// Tests that Stop without Start still writes offline.
func TestHeartbeat_Stop_NotRunning(t *testing.T) {
	w := &mockWriter{}
	h := NewHeartbeat(w, testParams(), nil, time.Now)

	require.NoError(t, h.Stop("alice"))
	require.Equal(t, []write{{"alice", false}}, w.get())
}

// Tests that Params survive a JSON round trip.
func TestParams_JSON(t *testing.T) {
	p, err := GetParameters(`{"Period":1000000000}`)
	require.NoError(t, err)
	require.Equal(t, time.Second, p.Period)
	require.Equal(t, 3*time.Second, p.Threshold())
	require.Equal(t, GetDefaultParams().WriteTimeout, p.WriteTimeout)
}
