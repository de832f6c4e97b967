////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package remote

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/feeds"
)

// subscription reloads one feed on its own goroutine.
type subscription struct {
	cancel context.CancelFunc
	pubsub *redis.PubSub
	done   chan struct{}
}

// watch subscribes to the change notices of channels and delivers the value
// returned by load: once immediately, then after every notice and every
// RefreshInterval. Notices that arrive while a load runs coalesce into a
// single reload. A failed load is delivered to cb and ends the subscription.
func watch[T any](c *Client, feed string, channels []string,
	load func(ctx context.Context) (T, error),
	cb func(value T, err error)) (feeds.Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	var notices <-chan *redis.Message
	if len(channels) > 0 {
		s.pubsub = c.rdb.Subscribe(ctx, channels...)
		subCtx, subCancel := c.newContext()
		_, err := s.pubsub.Receive(subCtx)
		subCancel()
		if err != nil {
			cancel()
			_ = s.pubsub.Close()
			return nil, errors.WithMessagef(err, "failed to subscribe to %s",
				feed)
		}
		notices = s.pubsub.Channel()
	}

	c.metrics.SubscriptionOpened(feed)
	jww.DEBUG.Printf("[REDIS] Subscribed to %s on %d channels", feed,
		len(channels))

	go func() {
		defer close(s.done)
		defer c.metrics.SubscriptionClosed(feed)

		ticker := time.NewTicker(c.params.RefreshInterval)
		defer ticker.Stop()

		for {
			loadCtx, loadCancel := context.WithTimeout(ctx,
				c.params.OperationTimeout)
			value, err := load(loadCtx)
			loadCancel()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				jww.WARN.Printf("[REDIS] Failed to load %s: %+v", feed, err)
				var zero T
				cb(zero, err)
				return
			}
			cb(value, nil)

			select {
			case <-ctx.Done():
				return
			case _, ok := <-notices:
				if !ok {
					if ctx.Err() == nil {
						cb(*new(T), errors.Errorf("%s notices closed", feed))
					}
					return
				}
				drain(notices)
			case <-ticker.C:
			}
		}
	}()

	return feeds.NewSubscription(s.stop), nil
}

// stop cancels the subscription and waits for an in-flight callback.
func (s *subscription) stop() {
	s.cancel()
	if s.pubsub != nil {
		if err := s.pubsub.Close(); err != nil {
			jww.DEBUG.Printf("[REDIS] Closing pubsub: %+v", err)
		}
	}
	<-s.done
}

// drain discards queued notices; the next load covers them.
func drain(notices <-chan *redis.Message) {
	for {
		select {
		case _, ok := <-notices:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
