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
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/feeds"
	"gitlab.com/elixxir/synapse/metrics"
	"gitlab.com/elixxir/synapse/stoppable"
)

const heartbeatStoppable = "Heartbeat"

// Error messages.
const (
	otherUserRunningErr = "heartbeat already running for user %q"
	stopOtherUserErr    = "cannot stop heartbeat of %q: running for %q"
	offlineWriteErr     = "failed to mark user %q offline"
)

// Heartbeat periodically marks the current user online. It is owned by the
// session: Start when a user signs in, Stop when they sign out.
type Heartbeat struct {
	writer  feeds.PresenceWriter
	params  Params
	metrics *metrics.Metrics
	now     func() time.Time

	userID string
	stop   *stoppable.Single
	mux    sync.Mutex
}

// NewHeartbeat builds a stopped Heartbeat writing to w.
func NewHeartbeat(w feeds.PresenceWriter, params Params, m *metrics.Metrics,
	now func() time.Time) *Heartbeat {
	return &Heartbeat{
		writer:  w,
		params:  params,
		metrics: m,
		now:     now,
	}
}

// Start arms the disconnect fallback, writes one heartbeat and then keeps
// writing one every period. Starting again for the running user does
// nothing. Starting for another user while running returns an error.
func (h *Heartbeat) Start(userID string) error {
	h.mux.Lock()
	defer h.mux.Unlock()

	if h.stop != nil {
		if h.userID == userID {
			return nil
		}
		return errors.Errorf(otherUserRunningErr, h.userID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.params.WriteTimeout)
	err := h.writer.RegisterDisconnectFallback(ctx, userID)
	cancel()
	if err != nil {
		jww.WARN.Printf("[HB] Failed to register disconnect fallback for "+
			"%s: %+v", userID, err)
	}

	h.userID = userID
	h.stop = stoppable.NewSingle(heartbeatStoppable)
	go h.run(userID, h.stop)

	jww.INFO.Printf("[HB] Started heartbeat for %s every %s", userID,
		h.params.Period)
	return nil
}

// Stop cancels the heartbeat and writes one offline record for userID.
func (h *Heartbeat) Stop(userID string) error {
	h.mux.Lock()
	defer h.mux.Unlock()

	if h.stop != nil {
		if h.userID != userID {
			return errors.Errorf(stopOtherUserErr, userID, h.userID)
		}

		if err := h.stop.Close(); err != nil {
			jww.WARN.Printf("[HB] %+v", err)
		}
		if err := h.stop.WaitForStopped(h.params.StopTimeout); err != nil {
			jww.ERROR.Printf("[HB] %+v", err)
		}
		h.stop, h.userID = nil, ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.params.WriteTimeout)
	defer cancel()
	if err := h.writer.WritePresence(ctx, userID, false, h.now()); err != nil {
		return errors.WithMessagef(err, offlineWriteErr, userID)
	}

	jww.INFO.Printf("[HB] Stopped heartbeat for %s", userID)
	return nil
}

// Running returns the user the heartbeat is running for.
func (h *Heartbeat) Running() (string, bool) {
	h.mux.Lock()
	defer h.mux.Unlock()
	return h.userID, h.stop != nil
}

func (h *Heartbeat) run(userID string, stop *stoppable.Single) {
	ticker := time.NewTicker(h.params.Period)
	defer ticker.Stop()

	h.beat(userID)
	for {
		select {
		case <-stop.Quit():
			stop.ToStopped()
			return
		case <-ticker.C:
			h.beat(userID)
		}
	}
}

// beat writes a single heartbeat. A failed or panicking write is logged and
// left for the next tick.
func (h *Heartbeat) beat(userID string) {
	defer func() {
		if r := recover(); r != nil {
			h.metrics.HeartbeatFailed()
			jww.ERROR.Printf("[HB] Heartbeat for %s panicked: %v", userID, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.params.WriteTimeout)
	defer cancel()

	if err := h.writer.WritePresence(ctx, userID, true, h.now()); err != nil {
		h.metrics.HeartbeatFailed()
		jww.DEBUG.Printf("[HB] Heartbeat for %s failed: %+v", userID, err)
		return
	}
	jww.TRACE.Printf("[HB] Heartbeat for %s", userID)
}
