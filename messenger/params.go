////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messenger

// params.go defines the high level parameters structure, which embeds the
// parameters of every engine component.

import (
	"encoding/json"
	"time"

	"gitlab.com/elixxir/synapse/aggregate"
	"gitlab.com/elixxir/synapse/cache"
	"gitlab.com/elixxir/synapse/presence"
	"gitlab.com/elixxir/synapse/typing"
)

// Params contains the parameters of the Messenger and its components.
type Params struct {
	Presence  presence.Params
	Typing    typing.Params
	Cache     cache.Params
	Aggregate aggregate.Params

	// Timeout of a single remote write issued by a command
	WriteTimeout time.Duration

	// Mark conversations received as soon as the inbox reports undelivered
	// messages in them
	AutoReceive bool
}

// GetDefaultParams returns a default set of Params. The staleness rules of
// the aggregates follow the heartbeat period and typing TTL.
func GetDefaultParams() Params {
	p := Params{
		Presence:     presence.GetDefaultParams(),
		Typing:       typing.GetDefaultParams(),
		Cache:        cache.GetDefaultParams(),
		Aggregate:    aggregate.GetDefaultParams(),
		WriteTimeout: 5 * time.Second,
		AutoReceive:  true,
	}
	p.Aggregate.Threshold = p.Presence.Threshold()
	p.Aggregate.TypingTTL = p.Typing.TTL
	return p
}

// GetParameters returns the default Params, or override with given
// parameters, if set.
func GetParameters(params string) (Params, error) {
	p := GetDefaultParams()
	if len(params) > 0 {
		err := json.Unmarshal([]byte(params), &p)
		if err != nil {
			return Params{}, err
		}
	}
	return p, nil
}
