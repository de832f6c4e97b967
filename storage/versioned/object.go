////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Object is a stored value with its version and storage time.
type Object struct {
	// Used to select how Data is decoded
	Version uint64

	// Set when this object is written
	Timestamp time.Time

	// JSON encoding of the stored value
	Data []byte
}

// Unmarshal deserializes an Object from a byte slice.
func (v *Object) Unmarshal(data []byte) error {
	return json.Unmarshal(data, v)
}

// Marshal serializes an Object into a byte slice.
func (v *Object) Marshal() []byte {
	d, err := json.Marshal(v)
	if err != nil {
		jww.FATAL.Panicf("Could not marshal versioned object: %+v", err)
	}
	return d
}

// Store encodes value as JSON and writes it under key at version.
func Store[T any](kv *KV, key string, version uint64, value T,
	now time.Time) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", key)
	}
	return kv.Set(key, &Object{
		Version:   version,
		Timestamp: now,
		Data:      data,
	})
}

// Load reads the value stored under key at version. The error of a missing
// key is returned unchanged so callers can test it with KV.Exists.
func Load[T any](kv *KV, key string, version uint64) (T, time.Time, error) {
	var value T
	obj, err := kv.Get(key, version)
	if err != nil {
		return value, time.Time{}, err
	}
	if err = json.Unmarshal(obj.Data, &value); err != nil {
		return value, time.Time{}, errors.Wrapf(err, "failed to decode %s",
			key)
	}
	return value, obj.Timestamp, nil
}
