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

	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/feeds"
)

// Presence hash fields.
const (
	onlineField     = "online"
	lastSeenAtField = "lastSeenAt"
)

// WritePresence stores the presence record of userID. Writing online renews
// the liveness lease; writing offline drops it.
func (c *Client) WritePresence(ctx context.Context, userID string,
	online bool, at time.Time) error {
	flag := "0"
	if online {
		flag = "1"
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, presenceKey(userID), onlineField, flag,
			lastSeenAtField, encodeTime(at))
		if online {
			pipe.Set(ctx, aliveKey(userID), encodeTime(at),
				c.params.PresenceLease)
		} else {
			pipe.Del(ctx, aliveKey(userID))
		}
		pipe.Publish(ctx, presenceChannel(userID), flag)
		return nil
	})
	return errors.WithMessagef(err, "failed to write presence of %s", userID)
}

// RegisterDisconnectFallback marks userID as covered by the liveness lease:
// once the lease expires the user reads as offline whatever the stored
// record says.
func (c *Client) RegisterDisconnectFallback(ctx context.Context,
	userID string) error {
	err := c.rdb.SAdd(ctx, fallbackKey, userID).Err()
	if err != nil {
		return errors.WithMessagef(err,
			"failed to register disconnect fallback of %s", userID)
	}
	jww.DEBUG.Printf("[REDIS] Registered disconnect fallback of %s", userID)
	return nil
}

func (c *Client) SubscribePresence(userIDs []string,
	cb feeds.PresenceCallback) (feeds.Subscription, error) {
	userIDs = chat.Distinct(userIDs)
	channels := make([]string, len(userIDs))
	for i, userID := range userIDs {
		channels[i] = presenceChannel(userID)
	}

	return watch(c, feeds.NamePresence, channels,
		func(ctx context.Context) (map[string]chat.Presence, error) {
			return c.loadPresence(ctx, userIDs)
		}, cb)
}

func (c *Client) loadPresence(ctx context.Context, userIDs []string) (
	map[string]chat.Presence, error) {
	records := make(map[string]chat.Presence, len(userIDs))
	if len(userIDs) == 0 {
		return records, nil
	}

	fields := make([]*redis.MapStringStringCmd, len(userIDs))
	alive := make([]*redis.IntCmd, len(userIDs))
	fallback := make([]*redis.BoolCmd, len(userIDs))
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, userID := range userIDs {
			fields[i] = pipe.HGetAll(ctx, presenceKey(userID))
			alive[i] = pipe.Exists(ctx, aliveKey(userID))
			fallback[i] = pipe.SIsMember(ctx, fallbackKey, userID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, userID := range userIDs {
		h := fields[i].Val()
		if len(h) == 0 {
			continue
		}
		lastSeenAt, err := decodeTime(h[lastSeenAtField])
		if err != nil {
			jww.WARN.Printf("[REDIS] Bad presence of %s: %+v", userID, err)
			continue
		}
		online := h[onlineField] == "1"
		if online && fallback[i].Val() && alive[i].Val() == 0 {
			online = false
		}
		records[userID] = chat.Presence{Online: online, LastSeenAt: lastSeenAt}
	}
	return records, nil
}
