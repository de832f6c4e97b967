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
	"gitlab.com/elixxir/synapse/metrics"
)

// settler is the type-independent view of a slot.
type settler interface {
	settled() bool
	stale() bool
	close()
}

// aggregator is the state shared by every aggregate: the event loop, the
// connectivity flag and the timer that re-evaluates time-based fields.
type aggregator struct {
	name    string
	loop    *loop
	params  Params
	metrics *metrics.Metrics
	now     func() time.Time

	monitor   feeds.Connectivity
	healthID  uint64
	watching  bool
	connected bool

	slots   []settler
	refresh *time.Timer

	// Called on the loop after any input changes
	onChange func()
}

func newAggregator(name string, monitor feeds.Connectivity, params Params,
	m *metrics.Metrics, now func() time.Time) *aggregator {
	return &aggregator{
		name:    name,
		loop:    newLoop(),
		params:  params,
		metrics: m,
		now:     now,
		monitor: monitor,
	}
}

func (a *aggregator) changed() {
	if a.onChange != nil {
		a.onChange()
	}
}

// watchHealth starts tracking connectivity. Without a monitor the feeds are
// assumed reachable.
func (a *aggregator) watchHealth() {
	if a.monitor == nil {
		a.connected = true
		return
	}

	a.connected = a.monitor.IsHealthy()
	a.watching = true
	a.healthID = a.monitor.AddHealthCallback(func(bool) {
		// Callbacks may arrive out of order; the monitor's current state
		// is authoritative
		a.loop.post(func() {
			connected := a.monitor.IsHealthy()
			if connected == a.connected {
				return
			}
			a.connected = connected
			a.changed()
		})
	})
}

// ready is true once every active slot has settled for its current key.
func (a *aggregator) ready() bool {
	for _, s := range a.slots {
		if !s.settled() {
			return false
		}
	}
	return true
}

func (a *aggregator) stale() bool {
	for _, s := range a.slots {
		if s.stale() {
			return true
		}
	}
	return false
}

// scheduleRefresh arranges for onChange to run at next, replacing any
// earlier schedule.
func (a *aggregator) scheduleRefresh(next time.Time, ok bool) {
	if a.refresh != nil {
		a.refresh.Stop()
		a.refresh = nil
	}
	if !ok {
		return
	}

	delay := next.Sub(a.now())
	if delay < 0 {
		delay = 0
	}
	a.refresh = time.AfterFunc(delay, func() {
		a.loop.post(a.changed)
	})
}

// emitted records an emission of the aggregate.
func (a *aggregator) emitted() {
	a.metrics.SnapshotEmitted(a.name)
}

// teardown releases every subscription, callback and timer. It runs on the
// loop goroutine when the aggregate closes.
func (a *aggregator) teardown() {
	if a.refresh != nil {
		a.refresh.Stop()
		a.refresh = nil
	}
	if a.watching {
		a.monitor.RemoveHealthCallback(a.healthID)
	}
	for _, s := range a.slots {
		s.close()
	}
	jww.DEBUG.Printf("[AGG] Closed %s", a.name)
}

// earliest returns the earlier of two optional times.
func earliest(a time.Time, aOk bool, b time.Time, bOk bool) (time.Time, bool) {
	switch {
	case !aOk:
		return b, bOk
	case !bOk:
		return a, aOk
	case b.Before(a):
		return b, true
	default:
		return a, true
	}
}
