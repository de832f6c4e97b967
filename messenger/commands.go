////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messenger

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/synapse/chat"
	"gitlab.com/elixxir/synapse/feeds"
)

// Every command returns an error instead of panicking. Writes go straight to
// the remote stores; the aggregates observe their effect through the feeds.

// Send sends text to a conversation on behalf of the signed in user and
// returns the ID of the message. SELF and DIRECT conversations opened with
// OpenSelf or OpenDirect are created on their first message.
//
// With the local cache enabled the message is stored as pending before it is
// sent. If the remote rejects it, Send returns its ID together with
// ErrSendDeferred and the message is resent once the remote is reachable.
func (m *Messenger) Send(conversationID, text string) (messageID string, err error) {
	defer recoverCommand("Send", &err)

	userID, err := m.currentUser()
	if err != nil {
		return "", err
	}

	ctx, cancel := m.newContext()
	defer cancel()

	conv, err := m.resolve(ctx, userID, conversationID)
	if err != nil {
		return "", err
	}
	if !conv.HasMember(userID) {
		return "", errors.WithMessagef(chat.ErrNotMember, sendErr, conv.ID)
	}

	msg, err := chat.NewMessage(conv.ID, userID, text, conv.MemberIDs, m.now())
	if err != nil {
		return "", err
	}

	if m.store != nil {
		if _, err = m.store.Upsert(msg); err != nil {
			jww.WARN.Printf("Failed to store pending message %s: %+v",
				msg.ID, err)
		}
	}
	m.clearTyping(conv.ID)

	sendCtx, sendCancel := context.WithTimeout(context.Background(),
		m.params.Cache.SendTimeout)
	ts, err := m.remote.Send(sendCtx, msg)
	sendCancel()
	if err != nil {
		jww.WARN.Printf("Failed to send message %s: %+v", msg.ID, err)
		if m.store != nil {
			return msg.ID, errors.WithMessage(ErrSendDeferred, err.Error())
		}
		return "", errors.WithMessagef(err, sendErr, conv.ID)
	}

	msg.ServerTimestamp = ts
	if m.store != nil {
		if _, err = m.store.Upsert(msg); err != nil {
			jww.WARN.Printf("Failed to store acknowledged message %s: %+v",
				msg.ID, err)
		}
	}

	m.mux.Lock()
	delete(m.provisional, conv.ID)
	m.mux.Unlock()
	return msg.ID, nil
}

// MarkRead records that the signed in user has seen every message of the
// conversation up to now. Seeing implies receiving, so both are merged and
// both counters reset. The writes are independent; the first failure is
// returned after all were attempted.
func (m *Messenger) MarkRead(conversationID string) (err error) {
	defer recoverCommand("MarkRead", &err)

	userID, err := m.currentUser()
	if err != nil {
		return err
	}

	ctx, cancel := m.newContext()
	defer cancel()

	now := m.now()
	return firstErr(
		errors.WithMessagef(m.remote.MergeReceived(ctx, conversationID, userID,
			now), markErr, "received", conversationID),
		errors.WithMessagef(m.remote.MergeSeen(ctx, conversationID, userID,
			now), markErr, "seen", conversationID),
		errors.WithMessagef(m.remote.ResetUndelivered(ctx, userID,
			conversationID), markErr, "delivered", conversationID),
		errors.WithMessagef(m.remote.ResetUnread(ctx, userID, conversationID),
			markErr, "read", conversationID),
	)
}

// MarkReceived records that the device of the signed in user has received
// every message of the conversation up to now.
func (m *Messenger) MarkReceived(conversationID string) (err error) {
	defer recoverCommand("MarkReceived", &err)

	userID, err := m.currentUser()
	if err != nil {
		return err
	}
	return m.markReceived(userID, conversationID)
}

func (m *Messenger) markReceived(userID, conversationID string) error {
	ctx, cancel := m.newContext()
	defer cancel()

	return firstErr(
		errors.WithMessagef(m.remote.MergeReceived(ctx, conversationID, userID,
			m.now()), markErr, "received", conversationID),
		errors.WithMessagef(m.remote.ResetUndelivered(ctx, userID,
			conversationID), markErr, "delivered", conversationID),
	)
}

// SetTyping signals a keystroke in the conversation.
func (m *Messenger) SetTyping(conversationID string) (err error) {
	defer recoverCommand("SetTyping", &err)

	m.mux.Lock()
	coordinator := m.typing
	m.mux.Unlock()
	if coordinator == nil {
		return ErrNotRunning
	}
	return coordinator.SetTyping(conversationID)
}

// ClearTyping withdraws the typing signal of the conversation, as when
// leaving its screen.
func (m *Messenger) ClearTyping(conversationID string) (err error) {
	defer recoverCommand("ClearTyping", &err)

	m.mux.Lock()
	coordinator := m.typing
	m.mux.Unlock()
	if coordinator == nil {
		return ErrNotRunning
	}
	return coordinator.Leave(conversationID)
}

func (m *Messenger) clearTyping(conversationID string) {
	m.mux.Lock()
	coordinator := m.typing
	m.mux.Unlock()
	if coordinator == nil {
		return
	}
	if err := coordinator.ClearTyping(conversationID); err != nil {
		jww.DEBUG.Printf("Failed to clear typing in %s: %+v",
			conversationID, err)
	}
}

// CreateGroup creates a group administered by the signed in user.
func (m *Messenger) CreateGroup(name string, memberIDs []string) (
	conversationID string, err error) {
	defer recoverCommand("CreateGroup", &err)

	userID, err := m.currentUser()
	if err != nil {
		return "", err
	}

	ctx, cancel := m.newContext()
	defer cancel()
	return m.remote.CreateGroup(ctx, userID, memberIDs, name)
}

// OpenDirect returns the ID of the DIRECT conversation between the signed
// in user and otherID. It is created remotely on its first message.
func (m *Messenger) OpenDirect(otherID string) (conversationID string, err error) {
	defer recoverCommand("OpenDirect", &err)

	userID, err := m.currentUser()
	if err != nil {
		return "", err
	}
	conv, err := chat.NewDirect(userID, strings.TrimSpace(otherID), m.now())
	if err != nil {
		return "", err
	}

	m.mux.Lock()
	m.provisional[conv.ID] = conv
	m.mux.Unlock()
	return conv.ID, nil
}

// OpenSelf returns the ID of the SELF conversation of the signed in user.
func (m *Messenger) OpenSelf() (conversationID string, err error) {
	defer recoverCommand("OpenSelf", &err)

	userID, err := m.currentUser()
	if err != nil {
		return "", err
	}
	return chat.SelfID(userID), nil
}

// AddMember adds userID to a group administered by the signed in user.
func (m *Messenger) AddMember(conversationID, userID string) (err error) {
	defer recoverCommand("AddMember", &err)

	actorID, err := m.currentUser()
	if err != nil {
		return err
	}

	ctx, cancel := m.newContext()
	defer cancel()
	return errors.WithMessagef(
		m.remote.AddMember(ctx, conversationID, actorID, userID),
		membershipErr, conversationID)
}

// RemoveMember removes userID from a group administered by the signed in
// user.
func (m *Messenger) RemoveMember(conversationID, userID string) (err error) {
	defer recoverCommand("RemoveMember", &err)

	actorID, err := m.currentUser()
	if err != nil {
		return err
	}

	ctx, cancel := m.newContext()
	defer cancel()
	return errors.WithMessagef(
		m.remote.RemoveMember(ctx, conversationID, actorID, userID),
		membershipErr, conversationID)
}

// DeleteMessage soft deletes a message and mirrors the flag into the local
// cache.
func (m *Messenger) DeleteMessage(conversationID, messageID string) (err error) {
	defer recoverCommand("DeleteMessage", &err)

	if _, err = m.currentUser(); err != nil {
		return err
	}

	ctx, cancel := m.newContext()
	defer cancel()
	if err = m.remote.SoftDelete(ctx, conversationID, messageID); err != nil {
		return err
	}

	if m.store != nil {
		msg, err := m.store.Get(messageID)
		if err != nil {
			jww.DEBUG.Printf("Deleted message %s is not cached: %+v",
				messageID, err)
			return nil
		}
		msg.Deleted = true
		if _, err = m.store.Upsert(msg); err != nil {
			jww.WARN.Printf("Failed to mirror deletion of %s: %+v",
				messageID, err)
		}
	}
	return nil
}

// ResendPending resends every locally pending message now and returns how
// many were acknowledged.
func (m *Messenger) ResendPending() (n int, err error) {
	defer recoverCommand("ResendPending", &err)

	if m.resender == nil {
		return 0, ErrNoCache
	}
	return m.resender.ResendPending()
}

// resolve returns the conversation, creating an opened SELF or DIRECT
// conversation remotely if it does not exist yet.
func (m *Messenger) resolve(ctx context.Context, userID,
	conversationID string) (chat.Conversation, error) {
	conv, err := m.remote.GetConversation(ctx, conversationID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, feeds.ErrNotFound) {
		return chat.Conversation{}, err
	}

	m.mux.Lock()
	conv, ok := m.provisional[conversationID]
	m.mux.Unlock()
	if !ok {
		if conversationID != chat.SelfID(userID) {
			return chat.Conversation{}, errors.Errorf(unknownConvErr,
				conversationID)
		}
		conv = chat.NewSelf(userID, m.now())
	}

	if err = m.remote.EnsureConversation(ctx, conv); err != nil {
		return chat.Conversation{}, errors.WithMessagef(err, ensureErr,
			conversationID)
	}
	jww.INFO.Printf("Created %s conversation %s", conv.Kind, conv.ID)
	return conv, nil
}

// currentUser returns the signed in user.
func (m *Messenger) currentUser() (string, error) {
	userID := m.session.UserID()
	if userID == "" {
		return "", chat.ErrNoUser
	}
	return userID, nil
}

func (m *Messenger) newContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.params.WriteTimeout)
}

// recoverCommand turns a panic in a command into its error.
func recoverCommand(command string, err *error) {
	if r := recover(); r != nil {
		jww.ERROR.Printf(panicErr, command, r)
		*err = errors.Errorf(panicErr, command, r)
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
