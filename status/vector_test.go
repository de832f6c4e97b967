////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package status

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Tests that merging the same value twice equals merging it once and that an
// older value never moves an entry backwards.
func TestVector_MergeSeen_IdempotentMonotonic(t *testing.T) {
	v := Vector{}
	v.MergeSeen("b", t0)
	once := v.Copy()
	v.MergeSeen("b", t0)
	require.Equal(t, once, v)

	v.MergeSeen("b", t0.Add(-time.Hour))
	if !v.Get("b").LastSeenAt.Equal(t0) {
		t.Errorf("LastSeenAt moved backwards.\nexpected: %s\nreceived: %s",
			t0, v.Get("b").LastSeenAt)
	}
}

// Tests that each merge only touches its own component.
func TestVector_MergeComponents(t *testing.T) {
	v := Vector{}
	v.MergeSeen("a", t0)
	v.MergeReceived("a", t0.Add(time.Second))
	v.MergeSent("a", t0.Add(2*time.Second))

	expected := Entry{
		LastSeenAt:        t0,
		LastReceivedAt:    t0.Add(time.Second),
		LastMessageSentAt: t0.Add(2 * time.Second),
	}
	require.Equal(t, expected, v.Get("a"))
	require.Equal(t, Entry{}, v.Get("unknown"))
}

// Tests that applying the same set of writes in any order converges to the
// same vector.
func TestVector_Merge_Commutative(t *testing.T) {
	type write struct {
		user string
		kind int
		at   time.Time
	}
	var writes []write
	prng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		writes = append(writes, write{
			user: []string{"a", "b", "c"}[prng.Intn(3)],
			kind: prng.Intn(3),
			at:   t0.Add(time.Duration(prng.Intn(1000)) * time.Millisecond),
		})
	}

	apply := func(ws []write) Vector {
		v := Vector{}
		for _, w := range ws {
			switch w.kind {
			case 0:
				v.MergeSeen(w.user, w.at)
			case 1:
				v.MergeReceived(w.user, w.at)
			default:
				v.MergeSent(w.user, w.at)
			}
		}
		return v
	}

	expected := apply(writes)
	for i := 0; i < 10; i++ {
		shuffled := append([]write(nil), writes...)
		prng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		require.Equal(t, expected, apply(shuffled))
	}

	// Merging two halves in either direction gives the same result
	left, right := apply(writes[:25]), apply(writes[25:])
	lr, rl := left.Copy(), right.Copy()
	lr.Merge(right)
	rl.Merge(left)
	require.Equal(t, expected, lr)
	require.Equal(t, expected, rl)
}

// Tests that LastActivity orders senders most recent first and skips members
// that never sent.
func TestVector_LastActivity(t *testing.T) {
	v := Vector{}
	v.MergeSent("a", t0)
	v.MergeSent("b", t0.Add(time.Minute))
	v.MergeSeen("c", t0.Add(time.Hour))

	expected := []Activity{{"b", t0.Add(time.Minute)}, {"a", t0}}
	require.Equal(t, expected, v.LastActivity())
}
