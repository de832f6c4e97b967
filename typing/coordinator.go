////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package typing

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/feeds"
	"gitlab.com/elixxir/synapse/metrics"
)

// ErrClosed is returned by a Coordinator after Close.
var ErrClosed = errors.New("typing coordinator is closed")

const (
	setTypingErr   = "failed to set typing in %s"
	clearTypingErr = "failed to clear typing in %s"
)

// Coordinator writes the typing state of one user. Keystrokes are debounced
// per conversation and typing is cleared after a period of inactivity.
type Coordinator struct {
	writer  feeds.TypingWriter
	userID  string
	params  Params
	metrics *metrics.Metrics
	now     func() time.Time

	conversations map[string]*typingState
	closed        bool
	mux           sync.Mutex
}

// typingState tracks one conversation the user is typing in.
type typingState struct {
	lastWrite time.Time
	timer     *time.Timer

	// Incremented every time the timer is re-armed so a timer that fired
	// concurrently with a re-arm can tell it is outdated.
	generation uint64
}

// NewCoordinator builds a Coordinator for userID.
func NewCoordinator(w feeds.TypingWriter, userID string, params Params,
	m *metrics.Metrics, now func() time.Time) *Coordinator {
	return &Coordinator{
		writer:        w,
		userID:        userID,
		params:        params,
		metrics:       m,
		now:           now,
		conversations: make(map[string]*typingState),
	}
}

// SetTyping records a keystroke in the conversation. At most one write is
// made per debounce window; every call re-arms the inactivity timer.
func (c *Coordinator) SetTyping(conversationID string) error {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.closed {
		return ErrClosed
	}

	now := c.now()
	st, exists := c.conversations[conversationID]
	if !exists {
		st = &typingState{}
		c.conversations[conversationID] = st
	}

	st.generation++
	generation := st.generation
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(c.params.Inactivity, func() {
		c.expire(conversationID, generation)
	})

	if exists && now.Sub(st.lastWrite) < c.params.Debounce {
		return nil
	}
	st.lastWrite = now

	ctx, cancel := context.WithTimeout(context.Background(), c.params.WriteTimeout)
	defer cancel()
	if err := c.writer.SetTyping(ctx, conversationID, c.userID, now); err != nil {
		jww.DEBUG.Printf("[TYPING] "+setTypingErr+": %+v", conversationID, err)
		return errors.WithMessagef(err, setTypingErr, conversationID)
	}
	c.metrics.TypingWritten()
	return nil
}

// ClearTyping removes the user's typing entry from the conversation. Called
// when a message is sent. Does nothing if the user is not typing there.
func (c *Coordinator) ClearTyping(conversationID string) error {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.clear(conversationID)
}

// Leave clears typing when the user leaves the conversation screen.
func (c *Coordinator) Leave(conversationID string) error {
	return c.ClearTyping(conversationID)
}

// Close stops every inactivity timer and clears every conversation the user
// is still typing in. Calls after the first do nothing.
func (c *Coordinator) Close() error {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.closed {
		return nil
	}

	var errs []error
	for conversationID := range c.conversations {
		if err := c.clear(conversationID); err != nil {
			errs = append(errs, err)
		}
	}
	c.closed = true

	if len(errs) > 0 {
		jww.WARN.Printf("[TYPING] Failed to clear %d conversations on close",
			len(errs))
		return errs[0]
	}
	return nil
}

// Typing returns the conversations the user is currently typing in.
func (c *Coordinator) Typing() []string {
	c.mux.Lock()
	defer c.mux.Unlock()

	conversationIDs := make([]string, 0, len(c.conversations))
	for conversationID := range c.conversations {
		conversationIDs = append(conversationIDs, conversationID)
	}
	return conversationIDs
}

// expire is called by the inactivity timer.
func (c *Coordinator) expire(conversationID string, generation uint64) {
	c.mux.Lock()
	defer c.mux.Unlock()

	st, exists := c.conversations[conversationID]
	if c.closed || !exists || st.generation != generation {
		return
	}

	jww.TRACE.Printf("[TYPING] Typing in %s timed out", conversationID)
	if err := c.clear(conversationID); err != nil {
		jww.DEBUG.Printf("[TYPING] %+v", err)
	}
}

// clear must be called with the lock held.
func (c *Coordinator) clear(conversationID string) error {
	st, exists := c.conversations[conversationID]
	if !exists {
		return nil
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	delete(c.conversations, conversationID)

	ctx, cancel := context.WithTimeout(context.Background(), c.params.WriteTimeout)
	defer cancel()
	if err := c.writer.ClearTyping(ctx, conversationID, c.userID); err != nil {
		return errors.WithMessagef(err, clearTypingErr, conversationID)
	}
	return nil
}
