////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Contains functionality related to the probe driven connectivity tracker.

package health

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/stoppable"
)

// Monitor reports whether the remote feeds are reachable.
type Monitor interface {
	AddHealthCallback(f func(bool)) uint64
	RemoveHealthCallback(uint64)
	IsHealthy() bool
	WasHealthy() bool
	StartProcesses() (stoppable.Stoppable, error)
}

// Prober checks the remote once. A nil error means it is reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

type tracker struct {
	prober Prober
	params Params

	funcs   map[uint64]func(isHealthy bool)
	funcsID uint64

	running bool

	// Determines the current health status
	isHealthy bool

	// Denotes that the past health status wasHealthy is true if isHealthy has
	// ever been true
	wasHealthy bool
	mux        sync.RWMutex
}

// Init creates a tracker probing p. Call StartProcesses to start probing.
func Init(p Prober, params Params) Monitor {
	return newTracker(p, params)
}

// newTracker builds and returns a new tracker object.
func newTracker(p Prober, params Params) *tracker {
	return &tracker{
		prober:    p,
		params:    params,
		funcs:     map[uint64]func(isHealthy bool){},
		isHealthy: false,
		running:   false,
	}
}

// AddHealthCallback adds a function to the list of tracker functions such that
// each function can be run after connectivity changes. Returns a unique ID for
// the function.
func (t *tracker) AddHealthCallback(f func(isHealthy bool)) uint64 {
	var currentID uint64

	t.mux.Lock()
	t.funcs[t.funcsID] = f
	currentID = t.funcsID
	t.funcsID++
	t.mux.Unlock()

	go f(t.IsHealthy())

	return currentID
}

// RemoveHealthCallback removes the function with the given ID from the list of
// tracker functions so that it will no longer be run.
func (t *tracker) RemoveHealthCallback(chanID uint64) {
	t.mux.Lock()
	delete(t.funcs, chanID)
	t.mux.Unlock()
}

func (t *tracker) IsHealthy() bool {
	t.mux.RLock()
	defer t.mux.RUnlock()

	return t.isHealthy
}

// WasHealthy returns true if isHealthy has ever been true.
func (t *tracker) WasHealthy() bool {
	t.mux.RLock()
	defer t.mux.RUnlock()

	return t.wasHealthy
}

// setHealth stores h and notifies every callback if it changed.
func (t *tracker) setHealth(h bool) {
	t.mux.Lock()
	changed := t.isHealthy != h
	t.wasHealthy = t.wasHealthy || h
	t.isHealthy = h
	t.mux.Unlock()

	if changed {
		if h {
			jww.INFO.Printf("Remote is reachable again")
		} else {
			jww.WARN.Printf("Remote is no longer reachable")
		}
		t.transmit(h)
	}
}

func (t *tracker) StartProcesses() (stoppable.Stoppable, error) {
	t.mux.Lock()
	if t.running {
		t.mux.Unlock()
		return nil, errors.New(
			"cannot start health tracker threads, they are already running")
	}
	t.running = true

	t.isHealthy = false
	t.mux.Unlock()

	stop := stoppable.NewSingle("health tracker")

	go t.start(stop)

	return stop, nil
}

// start starts a long-running thread that probes the remote every period.
// A failed probe, or no successful probe within the timeout, is unhealthy.
func (t *tracker) start(stop *stoppable.Single) {
	ticker := time.NewTicker(t.params.ProbePeriod)
	defer ticker.Stop()

	t.probe()
	for {
		select {
		case <-stop.Quit():
			t.mux.Lock()
			changed := t.isHealthy
			t.isHealthy = false
			t.running = false
			t.mux.Unlock()

			if changed {
				t.transmit(false)
			}
			stop.ToStopped()

			return
		case <-ticker.C:
			t.probe()
		}
	}
}

func (t *tracker) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), t.params.Timeout)
	defer cancel()

	err := t.prober.Ping(ctx)
	if err != nil {
		jww.DEBUG.Printf("Health probe failed: %+v", err)
	}
	t.setHealth(err == nil)
}

func (t *tracker) transmit(health bool) {
	t.mux.RLock()
	defer t.mux.RUnlock()

	// Run all listening functions
	for _, f := range t.funcs {
		go f(health)
	}
}
