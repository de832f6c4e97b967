////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package aggregate

import (
	"encoding/json"
	"time"

	"gitlab.com/elixxir/synapse/presence"
	"gitlab.com/elixxir/synapse/typing"
)

// Params contains the parameters of the Inbox and Conversation aggregates.
type Params struct {
	// Delay before a failed feed is subscribed again
	RetryDelay time.Duration

	// Age after which an online presence record reads as offline
	Threshold time.Duration

	// Age after which a typing entry is ignored
	TypingTTL time.Duration
}

// paramsDisk will be the marshal-able and umarshal-able object.
type paramsDisk struct {
	RetryDelay time.Duration
	Threshold  time.Duration
	TypingTTL  time.Duration
}

// GetDefaultParams returns a default set of Params.
func GetDefaultParams() Params {
	return Params{
		RetryDelay: 2 * time.Second,
		Threshold:  presence.GetDefaultParams().Threshold(),
		TypingTTL:  typing.GetDefaultParams().TTL,
	}
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

// MarshalJSON adheres to the json.Marshaler interface.
func (p Params) MarshalJSON() ([]byte, error) {
	pDisk := paramsDisk{
		RetryDelay: p.RetryDelay,
		Threshold:  p.Threshold,
		TypingTTL:  p.TypingTTL,
	}

	return json.Marshal(&pDisk)
}

// UnmarshalJSON adheres to the json.Unmarshaler interface. Fields missing
// from data keep their current value.
func (p *Params) UnmarshalJSON(data []byte) error {
	pDisk := paramsDisk{
		RetryDelay: p.RetryDelay,
		Threshold:  p.Threshold,
		TypingTTL:  p.TypingTTL,
	}
	err := json.Unmarshal(data, &pDisk)
	if err != nil {
		return err
	}

	*p = Params{
		RetryDelay: pDisk.RetryDelay,
		Threshold:  pDisk.Threshold,
		TypingTTL:  pDisk.TypingTTL,
	}

	return nil
}
