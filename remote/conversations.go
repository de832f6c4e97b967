////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package remote

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/feeds"
)

// Number of attempts of an optimistic transaction before giving up.
const maxTxAttempts = 5

// Conversation hash fields.
const (
	kindField        = "kind"
	nameField        = "name"
	creatorField     = "creator"
	lastMessageField = "lastMessage"
	updatedAtField   = "updatedAt"
)

func (c *Client) SubscribeConversations(userID string,
	cb feeds.ConversationsCallback) (feeds.Subscription, error) {
	return watch(c, feeds.NameConversations,
		[]string{conversationsChannel(userID)},
		func(ctx context.Context) ([]chat.Conversation, error) {
			ids, err := c.rdb.SMembers(ctx, userConversationsKey(userID)).Result()
			if err != nil {
				return nil, err
			}
			list, err := c.loadConversations(ctx, ids)
			if err != nil {
				return nil, err
			}
			chat.SortByUpdated(list)
			return list, nil
		}, cb)
}

func (c *Client) GetConversation(ctx context.Context, conversationID string) (
	chat.Conversation, error) {
	return readConversation(ctx, c.rdb, conversationID)
}

// EnsureConversation creates c unless a conversation with its ID exists.
func (c *Client) EnsureConversation(ctx context.Context,
	conv chat.Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}

	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, conversationKey(conv.ID)).Result()
		if err != nil || n > 0 {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			writeConversation(ctx, pipe, conv)
			return nil
		})
		return err
	}, conversationKey(conv.ID))

	// A concurrent writer created it first
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return errors.WithMessagef(err, "failed to ensure conversation %s",
		conv.ID)
}

func (c *Client) CreateGroup(ctx context.Context, creatorID string,
	memberIDs []string, name string) (string, error) {
	now, err := c.stamp(ctx)
	if err != nil {
		return "", err
	}
	conv, err := chat.NewGroup(uuid.NewString(), creatorID, memberIDs, name,
		now)
	if err != nil {
		return "", err
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		writeConversation(ctx, pipe, conv)
		return nil
	})
	if err != nil {
		return "", errors.WithMessagef(err, "failed to create group %q", name)
	}

	jww.INFO.Printf("[REDIS] Created group %s with %d members", conv.ID,
		len(conv.MemberIDs))
	return conv.ID, nil
}

func (c *Client) AddMember(ctx context.Context, conversationID, actorID,
	userID string) error {
	return c.updateMembers(ctx, conversationID,
		func(conv chat.Conversation, pipe redis.Pipeliner) error {
			if err := conv.CanAddMember(actorID, userID); err != nil {
				return err
			}
			pipe.SAdd(ctx, membersKey(conversationID), userID)
			pipe.SAdd(ctx, userConversationsKey(userID), conversationID)
			pipe.Publish(ctx, conversationsChannel(userID), conversationID)
			return nil
		})
}

func (c *Client) RemoveMember(ctx context.Context, conversationID, actorID,
	userID string) error {
	return c.updateMembers(ctx, conversationID,
		func(conv chat.Conversation, pipe redis.Pipeliner) error {
			if err := conv.CanRemoveMember(actorID, userID); err != nil {
				return err
			}
			pipe.SRem(ctx, membersKey(conversationID), userID)
			pipe.SRem(ctx, userConversationsKey(userID), conversationID)
			pipe.Publish(ctx, conversationsChannel(userID), conversationID)
			return nil
		})
}

// updateMembers runs update in an optimistic transaction over the
// conversation. The update may reject the change by returning an error.
func (c *Client) updateMembers(ctx context.Context, conversationID string,
	update func(conv chat.Conversation, pipe redis.Pipeliner) error) error {
	txf := func(tx *redis.Tx) error {
		conv, err := readConversation(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		now, err := c.stamp(ctx)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if err = update(conv, pipe); err != nil {
				return err
			}
			pipe.HSet(ctx, conversationKey(conversationID), updatedAtField,
				encodeTime(now))
			for _, memberID := range conv.MemberIDs {
				pipe.Publish(ctx, conversationsChannel(memberID),
					conversationID)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxAttempts; i++ {
		err := c.rdb.Watch(ctx, txf, conversationKey(conversationID),
			membersKey(conversationID))
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		jww.DEBUG.Printf("[REDIS] Retrying membership change of %s",
			conversationID)
	}
	return errors.Errorf("membership change of %s kept conflicting after "+
		"%d attempts", conversationID, maxTxAttempts)
}

// writeConversation queues every command storing conv and notifying its
// members.
func writeConversation(ctx context.Context, pipe redis.Pipeliner,
	conv chat.Conversation) {
	pipe.HSet(ctx, conversationKey(conv.ID),
		kindField, conv.Kind.String(),
		nameField, conv.Name,
		creatorField, conv.CreatorID,
		lastMessageField, conv.LastMessage,
		updatedAtField, encodeTime(conv.UpdatedAt))
	pipe.Del(ctx, membersKey(conv.ID))
	for _, memberID := range conv.MemberIDs {
		pipe.SAdd(ctx, membersKey(conv.ID), memberID)
		pipe.SAdd(ctx, userConversationsKey(memberID), conv.ID)
		pipe.Publish(ctx, conversationsChannel(memberID), conv.ID)
	}
}

// conversationReader is the subset of commands readConversation needs,
// shared by *redis.Client and *redis.Tx.
type conversationReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// readConversation loads a single conversation.
func readConversation(ctx context.Context, rc conversationReader,
	conversationID string) (chat.Conversation, error) {
	fields, err := rc.HGetAll(ctx, conversationKey(conversationID)).Result()
	if err != nil {
		return chat.Conversation{}, err
	}
	if len(fields) == 0 {
		return chat.Conversation{}, errors.WithMessage(feeds.ErrNotFound,
			conversationID)
	}
	members, err := rc.SMembers(ctx, membersKey(conversationID)).Result()
	if err != nil {
		return chat.Conversation{}, err
	}
	return decodeConversation(conversationID, fields, members)
}

// loadConversations loads several conversations in one round trip. IDs
// without a stored conversation are skipped.
func (c *Client) loadConversations(ctx context.Context, ids []string) (
	[]chat.Conversation, error) {
	if len(ids) == 0 {
		return []chat.Conversation{}, nil
	}

	fields := make([]*redis.MapStringStringCmd, len(ids))
	members := make([]*redis.StringSliceCmd, len(ids))
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			fields[i] = pipe.HGetAll(ctx, conversationKey(id))
			members[i] = pipe.SMembers(ctx, membersKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	list := make([]chat.Conversation, 0, len(ids))
	for i, id := range ids {
		if len(fields[i].Val()) == 0 {
			continue
		}
		conv, err := decodeConversation(id, fields[i].Val(), members[i].Val())
		if err != nil {
			jww.WARN.Printf("[REDIS] Skipping conversation %s: %+v", id, err)
			continue
		}
		list = append(list, conv)
	}
	return list, nil
}

func decodeConversation(id string, fields map[string]string,
	members []string) (chat.Conversation, error) {
	kind, err := chat.ParseKind(fields[kindField])
	if err != nil {
		return chat.Conversation{}, err
	}
	updatedAt, err := decodeTime(fields[updatedAtField])
	if err != nil {
		return chat.Conversation{}, errors.WithMessage(err, "bad updatedAt")
	}

	sort.Strings(members)
	return chat.Conversation{
		ID:          id,
		Kind:        kind,
		Name:        fields[nameField],
		CreatorID:   fields[creatorField],
		MemberIDs:   members,
		LastMessage: fields[lastMessageField],
		UpdatedAt:   updatedAt,
	}, nil
}
