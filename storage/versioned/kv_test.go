////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"bytes"
	"testing"
	"time"

	"gitlab.com/elixxir/ekv"
)

// Tests that getting a missing key returns an error recognised by Exists.
func TestKV_Get_Missing(t *testing.T) {
	vkv := NewKV(ekv.MakeMemstore())

	result, err := vkv.Get("missing", 0)
	if err == nil {
		t.Error("Getting a key that didn't exist should have returned " +
			"an error")
	}
	if vkv.Exists(err) {
		t.Errorf("Exists returned true for missing key: %+v", err)
	}
	if result != nil {
		t.Error("Getting a key that didn't exist shouldn't have returned data")
	}
}

// Tests that a set object can be read back and deleted.
func TestKV_Set_Get_Delete(t *testing.T) {
	vkv := NewKV(ekv.MakeMemstore())
	original := Object{
		Version:   1,
		Timestamp: time.Now().Round(0),
		Data:      []byte("identity"),
	}

	if err := vkv.Set("session", &original); err != nil {
		t.Fatalf("Failed to set: %+v", err)
	}

	result, err := vkv.Get("session", 1)
	if err != nil {
		t.Fatalf("Failed to get: %+v", err)
	}
	if !bytes.Equal(result.Data, original.Data) ||
		!result.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Loaded object does not match.\nexpected: %+v\nreceived: %+v",
			original, result)
	}

	if _, err = vkv.Get("session", 0); err == nil {
		t.Error("Got the object at the wrong version.")
	}

	if err = vkv.Delete("session", 1); err != nil {
		t.Fatalf("Failed to delete: %+v", err)
	}
	if _, err = vkv.Get("session", 1); vkv.Exists(err) {
		t.Errorf("Object still exists after delete: %+v", err)
	}
}

// Tests that prefixes partition the key space.
func TestKV_Prefix(t *testing.T) {
	vkv := NewKV(ekv.MakeMemstore())
	a, b := vkv.Prefix("a"), vkv.Prefix("b")

	if err := a.Set("key", &Object{Data: []byte("a")}); err != nil {
		t.Fatalf("Failed to set: %+v", err)
	}
	if _, err := b.Get("key", 0); err == nil {
		t.Error("Prefixed KV read another prefix's key.")
	}

	expected := "a" + PrefixSeparator + "key_0"
	if full := a.GetFullKey("key", 0); full != expected {
		t.Errorf("Unexpected full key.\nexpected: %s\nreceived: %s",
			expected, full)
	}
}

// Tests that Store and Load round trip a typed value with its timestamp.
func TestStore_Load(t *testing.T) {
	vkv := NewKV(ekv.MakeMemstore()).Prefix("typed")
	type profile struct {
		Name  string
		Count int
	}
	now := time.Unix(1700000000, 0)

	if err := Store(vkv, "profile", 2, profile{"a", 3}, now); err != nil {
		t.Fatalf("Failed to store: %+v", err)
	}

	loaded, ts, err := Load[profile](vkv, "profile", 2)
	if err != nil {
		t.Fatalf("Failed to load: %+v", err)
	}
	if loaded != (profile{"a", 3}) || !ts.Equal(now) {
		t.Errorf("Loaded value does not match.\nexpected: %+v at %s"+
			"\nreceived: %+v at %s", profile{"a", 3}, now, loaded, ts)
	}

	if _, _, err = Load[profile](vkv, "profile", 1); vkv.Exists(err) {
		t.Errorf("Loading a missing version should fail as missing: %+v", err)
	}

	if err = vkv.Set("broken", &Object{Version: 0, Data: []byte("{")}); err != nil {
		t.Fatalf("Failed to set: %+v", err)
	}
	if _, _, err = Load[profile](vkv, "broken", 0); err == nil || !vkv.Exists(err) {
		t.Errorf("Expected a decode error, received: %+v", err)
	}
}
