////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package session persists the identity of the signed-in user. An absent
// identity means nobody is signed in; the engine then shows empty state
// rather than failing.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"

	"gitlab.com/elixxir/synapse/storage/versioned"
)

const (
	sessionPrefix   = "session"
	identityKey     = "identity"
	identityVersion = 0
)

// ErrNoSession is returned when nobody is signed in.
var ErrNoSession = errors.New("no user is signed in")

// Identity is the signed-in user.
type Identity struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	SignedInAt  time.Time `json:"signedInAt"`
}

// Session holds the current Identity, backed by a versioned KV.
type Session struct {
	kv       *versioned.KV
	identity *Identity
	mux      sync.RWMutex
}

// Load opens the session stored in kv, signed in or not.
func Load(kv ekv.KeyValue) (*Session, error) {
	s := &Session{kv: versioned.NewKV(kv).Prefix(sessionPrefix)}

	identity, _, err := versioned.Load[Identity](s.kv, identityKey,
		identityVersion)
	if err != nil {
		if !s.kv.Exists(err) {
			jww.DEBUG.Printf("No stored session")
			return s, nil
		}
		return nil, errors.WithMessage(err, "failed to load session")
	}
	s.identity = &identity

	jww.INFO.Printf("Loaded session of %s", identity.UserID)
	return s, nil
}

// SignIn stores identity as the current user, replacing any previous one.
func (s *Session) SignIn(userID, displayName string, now time.Time) (Identity, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Identity{}, errors.New("user ID must not be empty")
	}
	identity := Identity{
		UserID:      userID,
		DisplayName: strings.TrimSpace(displayName),
		SignedInAt:  now,
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	err := versioned.Store(s.kv, identityKey, identityVersion, identity, now)
	if err != nil {
		return Identity{}, errors.WithMessagef(err,
			"failed to store session of %s", userID)
	}
	s.identity = &identity
	return identity, nil
}

// SignOut deletes the stored identity. Signing out when nobody is signed in
// does nothing.
func (s *Session) SignOut() error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.identity == nil {
		return nil
	}
	err := s.kv.Delete(identityKey, identityVersion)
	if err != nil && s.kv.Exists(err) {
		return errors.WithMessage(err, "failed to delete session")
	}
	s.identity = nil
	return nil
}

// Current returns the signed-in identity or ErrNoSession.
func (s *Session) Current() (Identity, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	if s.identity == nil {
		return Identity{}, ErrNoSession
	}
	return *s.identity, nil
}

// UserID returns the signed-in user's ID, or an empty string.
func (s *Session) UserID() string {
	identity, err := s.Current()
	if err != nil {
		return ""
	}
	return identity.UserID
}
