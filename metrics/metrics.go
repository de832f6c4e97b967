////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package metrics exposes Prometheus collectors for the engine. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "synapse"

// Metrics holds every collector the engine reports to.
type Metrics struct {
	ActiveSubscriptions *prometheus.GaugeVec
	Resubscriptions     *prometheus.CounterVec
	SnapshotsEmitted    *prometheus.CounterVec
	HeartbeatFailures   prometheus.Counter
	TypingWrites        prometheus.Counter
	CacheUpserts        prometheus.Counter
	SyncFailures        prometheus.Counter
	Resends             prometheus.Counter
}

// New builds the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveSubscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Live feed subscriptions currently held, by feed.",
		}, []string{"feed"}),
		Resubscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resubscriptions_total",
			Help:      "Feed subscriptions replaced after a key change or failure.",
		}, []string{"feed", "reason"}),
		SnapshotsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_emitted_total",
			Help:      "Aggregate snapshots delivered to consumers.",
		}, []string{"aggregate"}),
		HeartbeatFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeat_failures_total",
			Help:      "Presence heartbeat writes that failed.",
		}),
		TypingWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "typing_writes_total",
			Help:      "Typing signals written after debouncing.",
		}),
		CacheUpserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_upserts_total",
			Help:      "Messages written to the local cache.",
		}),
		SyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_sync_failures_total",
			Help:      "Cache synchronization passes that failed.",
		}),
		Resends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resends_total",
			Help:      "Pending messages resent after reconnecting.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.ActiveSubscriptions, m.Resubscriptions,
			m.SnapshotsEmitted, m.HeartbeatFailures, m.TypingWrites,
			m.CacheUpserts, m.SyncFailures, m.Resends)
	}
	return m
}

// SubscriptionOpened records a new subscription to feed.
func (m *Metrics) SubscriptionOpened(feed string) {
	if m == nil {
		return
	}
	m.ActiveSubscriptions.WithLabelValues(feed).Inc()
}

// SubscriptionClosed records the end of a subscription to feed.
func (m *Metrics) SubscriptionClosed(feed string) {
	if m == nil {
		return
	}
	m.ActiveSubscriptions.WithLabelValues(feed).Dec()
}

// Resubscribed records a replaced subscription.
func (m *Metrics) Resubscribed(feed, reason string) {
	if m == nil {
		return
	}
	m.Resubscriptions.WithLabelValues(feed, reason).Inc()
}

// SnapshotEmitted records a snapshot delivered by aggregate.
func (m *Metrics) SnapshotEmitted(aggregate string) {
	if m == nil {
		return
	}
	m.SnapshotsEmitted.WithLabelValues(aggregate).Inc()
}

// HeartbeatFailed records a failed heartbeat write.
func (m *Metrics) HeartbeatFailed() {
	if m == nil {
		return
	}
	m.HeartbeatFailures.Inc()
}

// TypingWritten records a typing signal write.
func (m *Metrics) TypingWritten() {
	if m == nil {
		return
	}
	m.TypingWrites.Inc()
}

// CacheUpserted records n messages written to the cache.
func (m *Metrics) CacheUpserted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheUpserts.Add(float64(n))
}

// SyncFailed records a failed synchronization pass.
func (m *Metrics) SyncFailed() {
	if m == nil {
		return
	}
	m.SyncFailures.Inc()
}

// Resent records a pending message resent.
func (m *Metrics) Resent() {
	if m == nil {
		return
	}
	m.Resends.Inc()
}
