////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package health

import (
	"encoding/json"
	"time"
)

// Params contains the parameters of the health tracker.
type Params struct {
	// Interval between probes
	ProbePeriod time.Duration

	// Maximum duration of a probe before it counts as failed
	Timeout time.Duration
}

// paramsDisk will be the marshal-able and umarshal-able object.
type paramsDisk struct {
	ProbePeriod time.Duration
	Timeout     time.Duration
}

// GetDefaultParams returns a default set of Params.
func GetDefaultParams() Params {
	return Params{
		ProbePeriod: 2 * time.Second,
		Timeout:     time.Second,
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
		ProbePeriod: p.ProbePeriod,
		Timeout:     p.Timeout,
	}

	return json.Marshal(&pDisk)
}

// UnmarshalJSON adheres to the json.Unmarshaler interface. Fields missing
// from data keep their current value.
func (p *Params) UnmarshalJSON(data []byte) error {
	pDisk := paramsDisk{
		ProbePeriod: p.ProbePeriod,
		Timeout:     p.Timeout,
	}
	err := json.Unmarshal(data, &pDisk)
	if err != nil {
		return err
	}

	*p = Params{
		ProbePeriod: pDisk.ProbePeriod,
		Timeout:     pDisk.Timeout,
	}

	return nil
}
