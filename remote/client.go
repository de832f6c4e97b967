////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package remote implements every remote store of the engine on Redis.
//
// State lives in plain Redis structures and every write publishes a change
// notice on a Pub/Sub channel. Subscribers do not trust the notice payload:
// on each notice they re-read the full state they watch, so lost or
// duplicated notices only cost a reload.
package remote

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/feeds"
	"gitlab.com/elixxir/synapse/metrics"
)

// Client is a feeds.Remote backed by Redis.
type Client struct {
	rdb     *redis.Client
	params  Params
	metrics *metrics.Metrics
}

var _ feeds.Remote = (*Client)(nil)

// Dial connects to the Redis server at redisURL and checks it is reachable.
func Dial(redisURL string, params Params, m *metrics.Metrics) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), params.OperationTimeout)
	defer cancel()
	if err = rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "connect to redis")
	}

	jww.INFO.Printf("[REDIS] Connected to %s", opts.Addr)
	return New(rdb, params, m), nil
}

// New builds a Client from an existing Redis client.
func New(rdb *redis.Client, params Params, m *metrics.Metrics) *Client {
	return &Client{
		rdb:     rdb,
		params:  params,
		metrics: m,
	}
}

// Ping checks if Redis is reachable. It satisfies health.Prober.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// stamp returns the Redis server clock at the precision timestamps are
// stored with. Server timestamps never come from a client clock.
func (c *Client) stamp(ctx context.Context) (time.Time, error) {
	now, err := c.rdb.Time(ctx).Result()
	if err != nil {
		return time.Time{}, errors.WithMessage(err, "failed to read server time")
	}
	return now.UTC().Truncate(time.Microsecond), nil
}

// newContext builds a context for a single remote operation.
func (c *Client) newContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.params.OperationTimeout)
}
