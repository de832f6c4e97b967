////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package remote

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/feeds"
)

const displayNameField = "displayName"

func (c *Client) PutUser(ctx context.Context, u chat.User) error {
	if u.ID == "" {
		return chat.ErrNoUser
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, profileKey(u.ID), displayNameField, u.DisplayName)
		pipe.Publish(ctx, userChannel(u.ID), u.ID)
		return nil
	})
	return errors.WithMessagef(err, "failed to store user %s", u.ID)
}

func (c *Client) SubscribeUsers(userIDs []string,
	cb feeds.UsersCallback) (feeds.Subscription, error) {
	userIDs = chat.Distinct(userIDs)
	channels := make([]string, len(userIDs))
	for i, userID := range userIDs {
		channels[i] = userChannel(userID)
	}

	return watch(c, feeds.NameUsers, channels,
		func(ctx context.Context) (map[string]chat.User, error) {
			users := make(map[string]chat.User, len(userIDs))
			if len(userIDs) == 0 {
				return users, nil
			}

			cmds := make([]*redis.StringCmd, len(userIDs))
			_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
				for i, userID := range userIDs {
					cmds[i] = pipe.HGet(ctx, profileKey(userID),
						displayNameField)
				}
				return nil
			})
			// A missing profile surfaces as redis.Nil from Exec
			if err != nil && !errors.Is(err, redis.Nil) {
				return nil, err
			}

			for i, userID := range userIDs {
				name, err := cmds[i].Result()
				if err != nil {
					continue
				}
				users[userID] = chat.User{ID: userID, DisplayName: name}
			}
			return users, nil
		}, cb)
}
