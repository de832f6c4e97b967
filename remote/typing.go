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

// SetTyping records a keystroke of userID. The whole conversation entry
// expires TypingTTL after its last keystroke; readers additionally drop
// individual users older than that.
func (c *Client) SetTyping(ctx context.Context, conversationID, userID string,
	at time.Time) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, typingKey(conversationID), userID, encodeTime(at))
		pipe.PExpire(ctx, typingKey(conversationID), c.params.TypingTTL)
		pipe.Publish(ctx, typingChannel(conversationID), userID)
		return nil
	})
	return errors.WithMessagef(err, "failed to set typing of %s in %s",
		userID, conversationID)
}

func (c *Client) ClearTyping(ctx context.Context, conversationID,
	userID string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, typingKey(conversationID), userID)
		pipe.Publish(ctx, typingChannel(conversationID), userID)
		return nil
	})
	return errors.WithMessagef(err, "failed to clear typing of %s in %s",
		userID, conversationID)
}

func (c *Client) SubscribeTyping(conversationIDs []string,
	cb feeds.TypingCallback) (feeds.Subscription, error) {
	conversationIDs = chat.Distinct(conversationIDs)
	channels := make([]string, len(conversationIDs))
	for i, conversationID := range conversationIDs {
		channels[i] = typingChannel(conversationID)
	}

	return watch(c, feeds.NameTyping, channels,
		func(ctx context.Context) (map[string]map[string]time.Time, error) {
			return c.loadTyping(ctx, conversationIDs)
		}, cb)
}

func (c *Client) loadTyping(ctx context.Context, conversationIDs []string) (
	map[string]map[string]time.Time, error) {
	typing := make(map[string]map[string]time.Time, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return typing, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(conversationIDs))
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, conversationID := range conversationIDs {
			cmds[i] = pipe.HGetAll(ctx, typingKey(conversationID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	now, err := c.stamp(ctx)
	if err != nil {
		return nil, err
	}
	for i, conversationID := range conversationIDs {
		entries := make(map[string]time.Time)
		for userID, value := range cmds[i].Val() {
			at, err := decodeTime(value)
			if err != nil {
				jww.WARN.Printf("[REDIS] Bad typing entry of %s: %+v",
					userID, err)
				continue
			}
			if now.Sub(at) < c.params.TypingTTL {
				entries[userID] = at
			}
		}
		typing[conversationID] = entries
	}
	return typing, nil
}
