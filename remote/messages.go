////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/feeds"
)

func (c *Client) SubscribeMessages(conversationID string,
	cb feeds.MessagesCallback) (feeds.Subscription, error) {
	return watch(c, feeds.NameMessages,
		[]string{messagesChannel(conversationID)},
		func(ctx context.Context) ([]chat.Message, error) {
			stored, err := c.rdb.HGetAll(ctx, messagesKey(conversationID)).Result()
			if err != nil {
				return nil, err
			}
			list := make([]chat.Message, 0, len(stored))
			for id, data := range stored {
				var m chat.Message
				if err = json.Unmarshal([]byte(data), &m); err != nil {
					jww.WARN.Printf("[REDIS] Skipping message %s: %+v", id, err)
					continue
				}
				list = append(list, m)
			}
			chat.SortMessages(list)
			return list, nil
		}, cb)
}

// Send stores msg and assigns its server timestamp. The first store of an ID
// wins; later sends of the same ID return the stored timestamp. The preview,
// the sender's sent time and the counters of every other member of the
// snapshot are then updated.
func (c *Client) Send(ctx context.Context, msg chat.Message) (time.Time, error) {
	conv, err := readConversation(ctx, c.rdb, msg.ConversationID)
	if err != nil {
		return time.Time{}, err
	}
	if !conv.HasMember(msg.SenderID) {
		return time.Time{}, chat.ErrNotMember
	}

	ts, err := c.stamp(ctx)
	if err != nil {
		return time.Time{}, err
	}
	msg.MemberSnapshot = append([]string(nil), msg.MemberSnapshot...)
	msg.ServerTimestamp = ts
	data, err := json.Marshal(msg)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to marshal message %s",
			msg.ID)
	}

	stored, err := c.rdb.HSetNX(ctx, messagesKey(msg.ConversationID), msg.ID,
		data).Result()
	if err != nil {
		return time.Time{}, errors.WithMessagef(err,
			"failed to store message %s", msg.ID)
	}
	if !stored {
		existing, err := c.readMessage(ctx, msg.ConversationID, msg.ID)
		if err != nil {
			return time.Time{}, err
		}
		jww.DEBUG.Printf("[REDIS] Message %s already stored", msg.ID)
		return existing.ServerTimestamp, nil
	}

	encoded := encodeTime(ts)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		touchScript.Eval(ctx, pipe, []string{conversationKey(conv.ID)},
			encoded, chat.Preview(msg.Text))
		maxMergeScript.Eval(ctx, pipe,
			[]string{vectorKey(conv.ID), vectorChannel(conv.ID)},
			joinField(msg.SenderID, sentField), encoded)

		for _, memberID := range chat.Distinct(msg.MemberSnapshot) {
			if memberID == msg.SenderID {
				continue
			}
			pipe.HIncrBy(ctx, countsKey(memberID),
				joinField(conv.ID, unreadField), 1)
			pipe.HIncrBy(ctx, countsKey(memberID),
				joinField(conv.ID, undeliveredField), 1)
			pipe.Publish(ctx, countsChannel(memberID), conv.ID)
		}

		pipe.Publish(ctx, messagesChannel(conv.ID), msg.ID)
		for _, memberID := range conv.MemberIDs {
			pipe.Publish(ctx, conversationsChannel(memberID), conv.ID)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, errors.WithMessagef(err,
			"message %s stored but its side effects failed", msg.ID)
	}
	return ts, nil
}

func (c *Client) SoftDelete(ctx context.Context, conversationID,
	messageID string) error {
	m, err := c.readMessage(ctx, conversationID, messageID)
	if err != nil {
		return err
	}
	if m.Deleted {
		return nil
	}

	m.Deleted = true
	data, err := json.Marshal(m)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal message %s", messageID)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, messagesKey(conversationID), messageID, data)
		pipe.Publish(ctx, messagesChannel(conversationID), messageID)
		return nil
	})
	return err
}

func (c *Client) readMessage(ctx context.Context, conversationID,
	messageID string) (chat.Message, error) {
	data, err := c.rdb.HGet(ctx, messagesKey(conversationID), messageID).Bytes()
	if errors.Is(err, redis.Nil) {
		return chat.Message{}, errors.WithMessage(feeds.ErrNotFound, messageID)
	} else if err != nil {
		return chat.Message{}, err
	}

	var m chat.Message
	if err = json.Unmarshal(data, &m); err != nil {
		return chat.Message{}, errors.Wrapf(err,
			"failed to unmarshal message %s", messageID)
	}
	return m, nil
}
