////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package messenger is the presentation-facing facade of the engine. It
// exposes the inbox and conversation snapshot streams, the imperative chat
// commands and the lifecycle of the background processes of the signed in
// user.
package messenger

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/aggregate"
	"gitlab.com/elixxir/synapse/cache"
	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/feeds"
	"gitlab.com/elixxir/synapse/health"
	"gitlab.com/elixxir/synapse/metrics"
	"gitlab.com/elixxir/synapse/presence"
	"gitlab.com/elixxir/synapse/session"
	"gitlab.com/elixxir/synapse/stoppable"
	"gitlab.com/elixxir/synapse/typing"
)

const servicesStoppable = "messengerServices"

// Messenger binds the engine to a remote and a session.
type Messenger struct {
	params  Params
	remote  feeds.Remote
	monitor health.Monitor
	session *session.Session
	metrics *metrics.Metrics
	now     func() time.Time

	// Nil when the local cache is disabled
	store    *cache.Store
	sync     *cache.Synchronizer
	resender *cache.Resender

	reader    *cache.Reader
	heartbeat *presence.Heartbeat

	// Set while running
	status   Status
	userID   string
	typing   *typing.Coordinator
	services *stoppable.Multi

	// SELF and DIRECT conversations opened but not yet created remotely
	provisional map[string]chat.Conversation

	// Conversations with an automatic receive mark in flight
	receiving map[string]bool

	mux sync.Mutex
}

// New builds a stopped Messenger. The monitor may be nil, in which case the
// remote is assumed reachable and pending messages are only resent by
// ResendPending. store must be set if params.Cache.UseCache is true.
func New(remote feeds.Remote, monitor health.Monitor, sess *session.Session,
	store *cache.Store, params Params, m *metrics.Metrics,
	now func() time.Time) (*Messenger, error) {
	if remote == nil || sess == nil {
		return nil, errors.New("a remote and a session are required")
	}

	msgr := &Messenger{
		params:      params,
		remote:      remote,
		monitor:     monitor,
		session:     sess,
		metrics:     m,
		now:         now,
		store:       store,
		heartbeat:   presence.NewHeartbeat(remote, params.Presence, m, now),
		provisional: make(map[string]chat.Conversation),
		receiving:   make(map[string]bool),
	}

	if store != nil {
		msgr.sync = cache.NewSynchronizer(store, remote, params.Cache, m)
		msgr.resender = cache.NewResender(store, remote, msgr.connectivity(),
			params.Cache, m)
	}

	reader, err := cache.NewReader(params.Cache, store, msgr.sync, remote, m)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to build message reader")
	}
	msgr.reader = reader

	return msgr, nil
}

// Start starts the heartbeat, the connectivity monitor and the pending
// message resender for the signed in user.
func (m *Messenger) Start() error {
	m.mux.Lock()
	defer m.mux.Unlock()

	if m.status != Stopped {
		return ErrAlreadyRunning
	}
	identity, err := m.session.Current()
	if err != nil {
		return err
	}

	jww.INFO.Printf("Starting messenger for %s", identity.UserID)
	services := stoppable.NewMulti(servicesStoppable)

	if m.monitor != nil {
		s, err := m.monitor.StartProcesses()
		if err != nil {
			return errors.WithMessage(err, "failed to start health tracker")
		}
		services.Add(s)
	}
	if m.resender != nil && m.monitor != nil {
		services.Add(m.resender.Start())
	}

	if err = m.heartbeat.Start(identity.UserID); err != nil {
		if closeErr := services.Close(); closeErr != nil {
			jww.WARN.Printf("%+v", closeErr)
		}
		return errors.WithMessage(err, "failed to start heartbeat")
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		m.params.WriteTimeout)
	err = m.remote.PutUser(ctx, chat.User{
		ID:          identity.UserID,
		DisplayName: identity.DisplayName,
	})
	cancel()
	if err != nil {
		jww.WARN.Printf("Failed to publish profile of %s: %+v",
			identity.UserID, err)
	}

	m.userID = identity.UserID
	m.typing = typing.NewCoordinator(m.remote, identity.UserID,
		m.params.Typing, m.metrics, m.now)
	m.services = services
	m.status = Running
	return nil
}

// Stop clears typing state, writes the user offline and stops every
// background process.
func (m *Messenger) Stop() error {
	m.mux.Lock()
	defer m.mux.Unlock()

	if m.status != Running {
		return ErrNotRunning
	}
	m.status = Stopping
	jww.INFO.Printf("Stopping messenger for %s", m.userID)

	var failures []string
	if err := m.typing.Close(); err != nil {
		failures = append(failures, err.Error())
	}
	if err := m.heartbeat.Stop(m.userID); err != nil {
		failures = append(failures, err.Error())
	}
	if err := m.services.Close(); err != nil {
		failures = append(failures, err.Error())
	}

	m.typing = nil
	m.services = nil
	m.userID = ""
	m.status = Stopped

	if len(failures) > 0 {
		return errors.Errorf("failed to stop cleanly: %v", failures)
	}
	return nil
}

// Status returns the status of the background processes.
func (m *Messenger) Status() Status {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.status
}

// Close stops the Messenger if it runs and releases the cache synchronizer.
func (m *Messenger) Close() error {
	var err error
	if m.Status() == Running {
		err = m.Stop()
	}
	if m.sync != nil {
		m.sync.Close()
	}
	return err
}

// Login signs userID in and starts the background processes.
func (m *Messenger) Login(userID, displayName string) error {
	if _, err := m.session.SignIn(userID, displayName, m.now()); err != nil {
		return err
	}
	return m.Start()
}

// Logout stops the background processes and forgets the signed in user.
func (m *Messenger) Logout() error {
	if m.Status() == Running {
		if err := m.Stop(); err != nil {
			jww.WARN.Printf("%+v", err)
		}
	}

	m.mux.Lock()
	m.provisional = make(map[string]chat.Conversation)
	m.mux.Unlock()
	return m.session.SignOut()
}

// Inbox streams the inbox of the signed in user. Without a signed in user a
// single neutral snapshot is delivered.
func (m *Messenger) Inbox(cb aggregate.InboxCallback) *aggregate.Inbox {
	userID := m.session.UserID()
	return aggregate.NewInbox(m.remote, m.connectivity(), userID,
		m.params.Aggregate, m.metrics, m.now,
		func(snapshot aggregate.InboxSnapshot) {
			if m.params.AutoReceive {
				m.receiveAll(userID, snapshot.Counts)
			}
			cb(snapshot)
		})
}

// Conversation streams one conversation of the signed in user.
func (m *Messenger) Conversation(conversationID string,
	cb aggregate.ConversationCallback) *aggregate.Conversation {
	return aggregate.NewConversation(m.remote, m.reader, m.connectivity(),
		m.session.UserID(), conversationID, m.params.Aggregate, m.metrics,
		m.now, cb)
}

// connectivity returns the monitor as a feeds.Connectivity, keeping a nil
// monitor nil.
func (m *Messenger) connectivity() feeds.Connectivity {
	if m.monitor == nil {
		return nil
	}
	return m.monitor
}

// receiveAll marks every conversation with undelivered messages received.
// Marks run in the background, one at a time per conversation.
func (m *Messenger) receiveAll(userID string, counts map[string]chat.Counts) {
	for conversationID, c := range counts {
		if c.Undelivered == 0 {
			continue
		}

		m.mux.Lock()
		if m.receiving[conversationID] {
			m.mux.Unlock()
			continue
		}
		m.receiving[conversationID] = true
		m.mux.Unlock()

		go func(conversationID string) {
			defer func() {
				m.mux.Lock()
				delete(m.receiving, conversationID)
				m.mux.Unlock()
			}()
			if err := m.markReceived(userID, conversationID); err != nil {
				jww.WARN.Printf("Automatic receive mark of %s failed: %+v",
					conversationID, err)
			}
		}(conversationID)
	}
}
