////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package presence

import (
	"encoding/json"
	"time"
)

// Params contains the parameters of the Heartbeat.
type Params struct {
	// Interval between presence writes
	Period time.Duration

	// Maximum duration of a single presence write
	WriteTimeout time.Duration

	// Maximum duration Stop waits for the heartbeat goroutine to exit
	StopTimeout time.Duration
}

// paramsDisk will be the marshal-able and umarshal-able object.
type paramsDisk struct {
	Period       time.Duration
	WriteTimeout time.Duration
	StopTimeout  time.Duration
}

// GetDefaultParams returns a default set of Params.
func GetDefaultParams() Params {
	return Params{
		Period:       5 * time.Second,
		WriteTimeout: 2 * time.Second,
		StopTimeout:  5 * time.Second,
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

// Threshold returns the staleness threshold matching the heartbeat period.
func (p Params) Threshold() time.Duration {
	return ThresholdFor(p.Period)
}

// MarshalJSON adheres to the json.Marshaler interface.
func (p Params) MarshalJSON() ([]byte, error) {
	pDisk := paramsDisk{
		Period:       p.Period,
		WriteTimeout: p.WriteTimeout,
		StopTimeout:  p.StopTimeout,
	}

	return json.Marshal(&pDisk)
}

// UnmarshalJSON adheres to the json.Unmarshaler interface.
// Fields missing from data keep their current value.
func (p *Params) UnmarshalJSON(data []byte) error {
	pDisk := paramsDisk{
		Period:       p.Period,
		WriteTimeout: p.WriteTimeout,
		StopTimeout:  p.StopTimeout,
	}
	err := json.Unmarshal(data, &pDisk)
	if err != nil {
		return err
	}

	*p = Params{
		Period:       pDisk.Period,
		WriteTimeout: pDisk.WriteTimeout,
		StopTimeout:  pDisk.StopTimeout,
	}

	return nil
}
