////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package remote

import (
	"encoding/json"
	"time"
)

// Params contains the parameters of the Redis client.
type Params struct {
	// Maximum duration of a single Redis operation
	OperationTimeout time.Duration

	// Interval at which subscriptions reload their state even without a
	// change notice, covering notices lost during a reconnect
	RefreshInterval time.Duration

	// Lifetime of the liveness lease renewed by every online heartbeat. A
	// user with a disconnect fallback and an expired lease reads as offline.
	PresenceLease time.Duration

	// Lifetime of a conversation's typing entries after the last keystroke
	TypingTTL time.Duration
}

// paramsDisk will be the marshal-able and umarshal-able object.
type paramsDisk struct {
	OperationTimeout time.Duration
	RefreshInterval  time.Duration
	PresenceLease    time.Duration
	TypingTTL        time.Duration
}

// GetDefaultParams returns a default set of Params.
func GetDefaultParams() Params {
	return Params{
		OperationTimeout: 3 * time.Second,
		RefreshInterval:  30 * time.Second,
		PresenceLease:    30 * time.Second,
		TypingTTL:        5 * time.Second,
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
		OperationTimeout: p.OperationTimeout,
		RefreshInterval:  p.RefreshInterval,
		PresenceLease:    p.PresenceLease,
		TypingTTL:        p.TypingTTL,
	}

	return json.Marshal(&pDisk)
}

// UnmarshalJSON adheres to the json.Unmarshaler interface. Fields missing
// from data keep their current value.
func (p *Params) UnmarshalJSON(data []byte) error {
	pDisk := paramsDisk{
		OperationTimeout: p.OperationTimeout,
		RefreshInterval:  p.RefreshInterval,
		PresenceLease:    p.PresenceLease,
		TypingTTL:        p.TypingTTL,
	}
	err := json.Unmarshal(data, &pDisk)
	if err != nil {
		return err
	}

	*p = Params{
		OperationTimeout: pDisk.OperationTimeout,
		RefreshInterval:  pDisk.RefreshInterval,
		PresenceLease:    pDisk.PresenceLease,
		TypingTTL:        pDisk.TypingTTL,
	}

	return nil
}
