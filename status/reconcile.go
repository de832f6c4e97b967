////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package status

import (
	"strconv"

	"gitlab.com/elixxir/synapse/chat"
)

// Status is the derived delivery state of a message.
type Status uint8

const (
	// Pending messages have not reached the server.
	Pending Status = iota

	// Sent messages reached the server but no recipient has received them.
	Sent

	// Delivered messages were received by at least one recipient but not
	// yet seen by all of them.
	Delivered

	// Read messages were seen by every recipient.
	Read
)

// String prints a human-readable version of the Status.
func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Sent:
		return "SENT"
	case Delivered:
		return "DELIVERED"
	case Read:
		return "READ"
	default:
		return "INVALID STATUS " + strconv.Itoa(int(s))
	}
}

// Reconcile computes the status of msg from the conversation's status
// vector. Only the message's member snapshot is consulted, so members that
// joined later are ignored and members that left still count. A member that
// saw the conversation at exactly the server timestamp has seen the message.
func Reconcile(msg chat.Message, v Vector) Status {
	if !msg.Acknowledged() {
		return Pending
	}
	ts := msg.ServerTimestamp

	receivedByAny, seenByAll, others := false, true, 0
	for _, memberID := range chat.Distinct(msg.MemberSnapshot) {
		if memberID == msg.SenderID {
			continue
		}
		others++

		e := v.Get(memberID)
		if !e.LastReceivedAt.Before(ts) {
			receivedByAny = true
		}
		if e.LastSeenAt.Before(ts) {
			seenByAll = false
		}
	}

	switch {
	case others == 0:
		return Read
	case !receivedByAny:
		return Sent
	case seenByAll:
		return Read
	default:
		return Delivered
	}
}
