////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cache

import (
	"encoding/json"
	"time"
)

// Params contains the parameters of the cache package.
type Params struct {
	// Serve message history from the local cache instead of the live feed
	UseCache bool

	// Number of messages in one page of history
	PageSize int

	// Maximum number of cache writes per second made by the synchronizer
	SyncRate int

	// Maximum number of pending messages resent per second
	ResendRate int

	// Delay before a failed feed subscription is re-established
	RetryDelay time.Duration

	// Maximum duration of a single resend
	SendTimeout time.Duration
}

// paramsDisk will be the marshal-able and umarshal-able object.
type paramsDisk struct {
	UseCache    bool
	PageSize    int
	SyncRate    int
	ResendRate  int
	RetryDelay  time.Duration
	SendTimeout time.Duration
}

// GetDefaultParams returns a default set of Params.
func GetDefaultParams() Params {
	return Params{
		UseCache:    true,
		PageSize:    50,
		SyncRate:    100,
		ResendRate:  5,
		RetryDelay:  2 * time.Second,
		SendTimeout: 5 * time.Second,
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
		UseCache:    p.UseCache,
		PageSize:    p.PageSize,
		SyncRate:    p.SyncRate,
		ResendRate:  p.ResendRate,
		RetryDelay:  p.RetryDelay,
		SendTimeout: p.SendTimeout,
	}

	return json.Marshal(&pDisk)
}

// UnmarshalJSON adheres to the json.Unmarshaler interface. Fields missing
// from data keep their current value.
func (p *Params) UnmarshalJSON(data []byte) error {
	pDisk := paramsDisk{
		UseCache:    p.UseCache,
		PageSize:    p.PageSize,
		SyncRate:    p.SyncRate,
		ResendRate:  p.ResendRate,
		RetryDelay:  p.RetryDelay,
		SendTimeout: p.SendTimeout,
	}
	err := json.Unmarshal(data, &pDisk)
	if err != nil {
		return err
	}

	*p = Params{
		UseCache:    pDisk.UseCache,
		PageSize:    pDisk.PageSize,
		SyncRate:    pDisk.SyncRate,
		ResendRate:  pDisk.ResendRate,
		RetryDelay:  pDisk.RetryDelay,
		SendTimeout: pDisk.SendTimeout,
	}

	return nil
}
