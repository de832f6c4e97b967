////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cache

import (
	"context"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"go.uber.org/ratelimit"

	"gitlab.com/elixxir/synapse/feeds"
	"gitlab.com/elixxir/synapse/metrics"
	"gitlab.com/elixxir/synapse/stoppable"
)

const resenderStoppable = "Resender"

// Resender sends cached messages the server never acknowledged again once
// the remote is reachable. Sends are idempotent by message ID, so a message
// that did arrive before the connection dropped is not duplicated.
type Resender struct {
	store   *Store
	feed    feeds.MessageFeed
	monitor feeds.Connectivity
	params  Params
	metrics *metrics.Metrics
	limiter ratelimit.Limiter

	trigger chan struct{}
}

// NewResender builds a stopped Resender.
func NewResender(store *Store, feed feeds.MessageFeed,
	monitor feeds.Connectivity, params Params, m *metrics.Metrics) *Resender {
	return &Resender{
		store:   store,
		feed:    feed,
		monitor: monitor,
		params:  params,
		metrics: m,
		limiter: ratelimit.New(params.ResendRate, ratelimit.WithoutSlack),
		trigger: make(chan struct{}, 1),
	}
}

// Start registers with the connectivity monitor and resends every time the
// remote becomes reachable.
func (r *Resender) Start() stoppable.Stoppable {
	stop := stoppable.NewSingle(resenderStoppable)

	callbackID := r.monitor.AddHealthCallback(func(isHealthy bool) {
		if !isHealthy {
			return
		}
		select {
		case r.trigger <- struct{}{}:
		default:
		}
	})

	go func() {
		for {
			select {
			case <-stop.Quit():
				r.monitor.RemoveHealthCallback(callbackID)
				stop.ToStopped()
				return
			case <-r.trigger:
				if _, err := r.ResendPending(); err != nil {
					jww.WARN.Printf("[CACHE] %+v", err)
				}
			}
		}
	}()

	return stop
}

// ResendPending sends every pending message and records the acknowledged
// copy. Stops at the first failed send, since the remote is likely down
// again. Returns the number of messages acknowledged.
func (r *Resender) ResendPending() (int, error) {
	pending, err := r.store.Pending()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	jww.INFO.Printf("[CACHE] Resending %d pending messages", len(pending))

	sent := 0
	for _, msg := range pending {
		r.limiter.Take()

		ctx, cancel := context.WithTimeout(context.Background(), r.params.SendTimeout)
		ts, err := r.feed.Send(ctx, msg)
		cancel()
		if err != nil {
			return sent, errors.WithMessagef(err,
				"failed to resend %s, %d left pending", msg.ID,
				len(pending)-sent)
		}

		msg.ServerTimestamp = ts
		if _, err = r.store.Upsert(msg); err != nil {
			return sent, errors.WithMessagef(err,
				"failed to record acknowledgement of %s", msg.ID)
		}
		r.metrics.Resent()
		sent++
	}
	return sent, nil
}
