////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// sqlite requires cgo, which is not available in wasm
//go:build !js || !wasm

package cache

import (
	"fmt"
	"os"
	"testing"
	"time"

	jww "github.com/spf13/jwalterweatherman"
	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/synapse/chat"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	jww.SetStdoutThreshold(jww.LevelDebug)
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) *Store {
	s, err := newStore(t.Name(), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// testMessage builds message i of conversation c1, acknowledged i seconds
// after t0 if acked is set.
func testMessage(i int, acked bool) chat.Message {
	m := chat.Message{
		ID:             fmt.Sprintf("m%03d", i),
		ConversationID: "c1",
		SenderID:       "a",
		Text:           fmt.Sprintf("message %d", i),
		CreatedAt:      t0.Add(time.Duration(i) * time.Second),
		MemberSnapshot: []string{"a", "b"},
	}
	if acked {
		m.ServerTimestamp = t0.Add(time.Duration(i) * time.Second)
	}
	return m
}

func ids(messages []chat.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

// Tests that Upsert replaces by ID, skips unchanged rows and never turns an
// acknowledged message back to pending.
func TestStore_Upsert(t *testing.T) {
	s := newTestStore(t)

	pending := testMessage(1, false)
	n, err := s.Upsert(pending)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = s.Upsert(pending)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	acked := testMessage(1, true)
	n, err = s.Upsert(acked)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// A stale pending copy must not undo the acknowledgement
	_, err = s.Upsert(pending)
	require.NoError(t, err)

	stored, err := s.Get(acked.ID)
	require.NoError(t, err)
	require.True(t, stored.Acknowledged())
	require.True(t, stored.ServerTimestamp.Equal(acked.ServerTimestamp))
	require.Equal(t, acked.MemberSnapshot, stored.MemberSnapshot)

	deleted := acked
	deleted.Deleted = true
	_, err = s.Upsert(deleted)
	require.NoError(t, err)
	_, err = s.Upsert(acked)
	require.NoError(t, err)
	stored, err = s.Get(acked.ID)
	require.NoError(t, err)
	require.True(t, stored.Deleted)
}

// Tests that pages walk backwards through history with the cursor and that
// pending messages sort after acknowledged ones.
func TestStore_Page(t *testing.T) {
	s := newTestStore(t)

	var messages []chat.Message
	for i := 0; i < 7; i++ {
		messages = append(messages, testMessage(i, true))
	}
	// Created before everything else but still pending, so it is newest
	messages = append(messages, testMessage(-1, false))
	_, err := s.Upsert(messages...)
	require.NoError(t, err)

	page, cursor, hasOlder, err := s.Page("c1", nil, 3)
	require.NoError(t, err)
	require.True(t, hasOlder)
	require.Equal(t, []string{"m005", "m006", "m-01"}, ids(page))

	page, cursor, hasOlder, err = s.Page("c1", cursor, 3)
	require.NoError(t, err)
	require.True(t, hasOlder)
	require.Equal(t, []string{"m002", "m003", "m004"}, ids(page))

	page, _, hasOlder, err = s.Page("c1", cursor, 3)
	require.NoError(t, err)
	require.False(t, hasOlder)
	require.Equal(t, []string{"m000", "m001"}, ids(page))

	page, _, _, err = s.Page("other", nil, 3)
	require.NoError(t, err)
	require.Empty(t, page)
}

// Tests that a corrupt row is skipped without failing the page.
func TestStore_Page_CorruptRow(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Upsert(testMessage(1, true), testMessage(3, true))
	require.NoError(t, err)

	corrupt := &Message{
		MessageID:      "m002",
		ConversationID: "c1",
		OrderTS:        t0.Add(2 * time.Second).UnixNano(),
		SenderID:       "a",
		MemberSnapshot: []byte("{not json"),
	}
	require.NoError(t, s.db.Create(corrupt).Error)

	page, _, _, err := s.Page("c1", nil, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"m001", "m003"}, ids(page))
}

// Tests that Pending returns unacknowledged messages oldest first.
func TestStore_Pending(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Upsert(testMessage(2, false), testMessage(1, false),
		testMessage(3, true))
	require.NoError(t, err)

	pending, err := s.Pending()
	require.NoError(t, err)
	require.Equal(t, []string{"m001", "m002"}, ids(pending))
}

// Tests that watchers are signalled on changes to their conversation only.
func TestStore_Watch(t *testing.T) {
	s := newTestStore(t)
	watch, stop := s.Watch("c1")
	other, stopOther := s.Watch("c2")
	defer stopOther()

	_, err := s.Upsert(testMessage(1, true))
	require.NoError(t, err)

	select {
	case <-watch:
	case <-time.After(time.Second):
		t.Fatal("Watcher was not signalled.")
	}
	select {
	case <-other:
		t.Error("Watcher of another conversation was signalled.")
	default:
	}

	stop()
	_, err = s.Upsert(testMessage(2, true))
	require.NoError(t, err)
	select {
	case <-watch:
		t.Error("Stopped watcher was signalled.")
	default:
	}
}
