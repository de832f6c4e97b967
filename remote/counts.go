////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package remote

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/feeds"
)

func (c *Client) SubscribeCounts(userID string,
	cb feeds.CountsCallback) (feeds.Subscription, error) {
	return watch(c, feeds.NameCounts, []string{countsChannel(userID)},
		func(ctx context.Context) (map[string]chat.Counts, error) {
			fields, err := c.rdb.HGetAll(ctx, countsKey(userID)).Result()
			if err != nil {
				return nil, err
			}
			return decodeCounts(fields), nil
		}, cb)
}

func (c *Client) ResetUnread(ctx context.Context, userID,
	conversationID string) error {
	return c.resetCount(ctx, userID, conversationID, unreadField)
}

func (c *Client) ResetUndelivered(ctx context.Context, userID,
	conversationID string) error {
	return c.resetCount(ctx, userID, conversationID, undeliveredField)
}

func (c *Client) resetCount(ctx context.Context, userID, conversationID,
	field string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, countsKey(userID), joinField(conversationID, field), 0)
		pipe.Publish(ctx, countsChannel(userID), conversationID)
		return nil
	})
	return errors.WithMessagef(err, "failed to reset %s of %s in %s", field,
		userID, conversationID)
}

func decodeCounts(fields map[string]string) map[string]chat.Counts {
	counts := make(map[string]chat.Counts)
	for field, value := range fields {
		conversationID, kind, ok := splitField(field)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			jww.WARN.Printf("[REDIS] Bad counter %s: %+v", field, err)
			continue
		}

		cnt := counts[conversationID]
		switch kind {
		case unreadField:
			cnt.Unread = n
		case undeliveredField:
			cnt.Undelivered = n
		default:
			continue
		}
		counts[conversationID] = cnt
	}
	return counts
}
