////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package remote

import "github.com/redis/go-redis/v9"

// maxMergeScript raises a hash field to ARGV[2] if it is below it and
// publishes ARGV[1] on KEYS[2] when it does. Returns 1 on change.
var maxMergeScript = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
local proposed = tonumber(ARGV[2])
if proposed > current then
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	redis.call('PUBLISH', KEYS[2], ARGV[1])
	return 1
end
return 0
`)

// touchScript moves a conversation's preview forward. Older messages never
// replace the preview of a newer one.
var touchScript = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'updatedAt') or '0')
if tonumber(ARGV[1]) >= current then
	redis.call('HSET', KEYS[1], 'updatedAt', ARGV[1], 'lastMessage', ARGV[2])
	return 1
end
return 0
`)
