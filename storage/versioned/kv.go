////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package versioned wraps an ekv store with versioned, timestamped JSON
// objects under prefixed keys. Changing the encoding of a stored value means
// writing it under a new version; old versions stay readable.
package versioned

import (
	"fmt"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
)

const PrefixSeparator = "/"

// KV stores versioned objects under prefixed keys.
type KV struct {
	data   ekv.KeyValue
	prefix string
}

// NewKV creates a versioned key/value store backed by data.
func NewKV(data ekv.KeyValue) *KV {
	return &KV{data: data}
}

// Get loads the object stored under key at the given version.
func (v *KV) Get(key string, version uint64) (*Object, error) {
	key = v.makeKey(key, version)
	jww.TRACE.Printf("[KV] get %s", key)

	result := Object{}
	if err := v.data.Get(key, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Set stores object under key at the object's version.
func (v *KV) Set(key string, object *Object) error {
	key = v.makeKey(key, object.Version)
	jww.TRACE.Printf("[KV] set %s", key)
	return v.data.Set(key, object)
}

// Delete removes the object stored under key at the given version.
func (v *KV) Delete(key string, version uint64) error {
	key = v.makeKey(key, version)
	jww.TRACE.Printf("[KV] delete %s", key)
	return v.data.Delete(key)
}

// Prefix returns a KV sharing the same store with prefix appended to the
// current prefix.
func (v *KV) Prefix(prefix string) *KV {
	return &KV{
		data:   v.data,
		prefix: v.prefix + prefix + PrefixSeparator,
	}
}

// GetFullKey returns the key with all prefixes and the version applied.
func (v *KV) GetFullKey(key string, version uint64) string {
	return v.makeKey(key, version)
}

// Exists returns false if the error indicates the element doesn't exist.
func (v *KV) Exists(err error) bool {
	return ekv.Exists(err)
}

func (v *KV) makeKey(key string, version uint64) string {
	return fmt.Sprintf("%s%s_%d", v.prefix, key, version)
}
