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
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/feeds"
	"gitlab.com/elixxir/synapse/status"
)

func (c *Client) MergeSeen(ctx context.Context, conversationID, userID string,
	t time.Time) error {
	return c.mergeVector(ctx, conversationID, userID, seenField, t)
}

func (c *Client) MergeReceived(ctx context.Context, conversationID,
	userID string, t time.Time) error {
	return c.mergeVector(ctx, conversationID, userID, receivedField, t)
}

func (c *Client) MergeSent(ctx context.Context, conversationID, userID string,
	t time.Time) error {
	return c.mergeVector(ctx, conversationID, userID, sentField, t)
}

// mergeVector raises one vector field to t. The comparison runs inside
// Redis, so concurrent merges from several devices never lower a value.
func (c *Client) mergeVector(ctx context.Context, conversationID, userID,
	field string, t time.Time) error {
	if t.IsZero() {
		return nil
	}
	err := maxMergeScript.Run(ctx, c.rdb,
		[]string{vectorKey(conversationID), vectorChannel(conversationID)},
		joinField(userID, field), encodeTime(t)).Err()
	return errors.WithMessagef(err, "failed to merge %s of %s in %s", field,
		userID, conversationID)
}

func (c *Client) SubscribeVectors(conversationID string,
	cb feeds.VectorCallback) (feeds.Subscription, error) {
	return watch(c, feeds.NameVectors,
		[]string{vectorChannel(conversationID)},
		func(ctx context.Context) (status.Vector, error) {
			fields, err := c.rdb.HGetAll(ctx, vectorKey(conversationID)).Result()
			if err != nil {
				return nil, err
			}
			return decodeVector(fields), nil
		}, cb)
}

func decodeVector(fields map[string]string) status.Vector {
	v := status.Vector{}
	for field, value := range fields {
		userID, kind, ok := splitField(field)
		if !ok {
			continue
		}
		t, err := decodeTime(value)
		if err != nil {
			jww.WARN.Printf("[REDIS] Bad vector field %s: %+v", field, err)
			continue
		}
		switch kind {
		case seenField:
			v.MergeSeen(userID, t)
		case receivedField:
			v.MergeReceived(userID, t)
		case sentField:
			v.MergeSent(userID, t)
		}
	}
	return v
}
