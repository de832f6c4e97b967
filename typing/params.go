////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package typing

import (
	"encoding/json"
	"time"
)

// Params contains the parameters of the typing Coordinator.
type Params struct {
	// Minimum interval between two typing writes for one conversation
	Debounce time.Duration

	// Duration without keystrokes after which typing is cleared
	Inactivity time.Duration

	// Age after which a typing entry is ignored by readers
	TTL time.Duration

	// Maximum duration of a single typing write
	WriteTimeout time.Duration
}

// paramsDisk will be the marshal-able and umarshal-able object.
type paramsDisk struct {
	Debounce     time.Duration
	Inactivity   time.Duration
	TTL          time.Duration
	WriteTimeout time.Duration
}

// GetDefaultParams returns a default set of Params.
func GetDefaultParams() Params {
	return Params{
		Debounce:     time.Second,
		Inactivity:   3 * time.Second,
		TTL:          5 * time.Second,
		WriteTimeout: 2 * time.Second,
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
		Debounce:     p.Debounce,
		Inactivity:   p.Inactivity,
		TTL:          p.TTL,
		WriteTimeout: p.WriteTimeout,
	}

	return json.Marshal(&pDisk)
}

// UnmarshalJSON adheres to the json.Unmarshaler interface. Fields missing
// from data keep their current value.
func (p *Params) UnmarshalJSON(data []byte) error {
	pDisk := paramsDisk{
		Debounce:     p.Debounce,
		Inactivity:   p.Inactivity,
		TTL:          p.TTL,
		WriteTimeout: p.WriteTimeout,
	}
	err := json.Unmarshal(data, &pDisk)
	if err != nil {
		return err
	}

	*p = Params{
		Debounce:     pDisk.Debounce,
		Inactivity:   pDisk.Inactivity,
		TTL:          pDisk.TTL,
		WriteTimeout: pDisk.WriteTimeout,
	}

	return nil
}
