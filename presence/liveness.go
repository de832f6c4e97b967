////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package presence decides whether users are online and keeps the current
// user's presence record fresh.
//
// Stored records are never shown directly. A record claiming to be online
// is only believed while its timestamp is younger than the staleness
// threshold, which covers devices that vanish without writing offline.
package presence

import (
	"time"

	"gitlab.com/elixxir/synapse/chat"
)

// missedHeartbeats is the number of heartbeat periods a record stays online
// for. Two missed heartbeats are tolerated; the third marks the user offline.
const missedHeartbeats = 3

// ThresholdFor returns the staleness threshold matching a heartbeat period.
func ThresholdFor(period time.Duration) time.Duration {
	return missedHeartbeats * period
}

// IsOnline returns true if the record claims to be online and is younger
// than threshold at now.
func IsOnline(record chat.Presence, now time.Time, threshold time.Duration) bool {
	return record.Online && now.Sub(record.LastSeenAt) < threshold
}

// Effective evaluates IsOnline for every record.
func Effective(records map[string]chat.Presence, now time.Time,
	threshold time.Duration) map[string]bool {
	online := make(map[string]bool, len(records))
	for userID, record := range records {
		online[userID] = IsOnline(record, now, threshold)
	}
	return online
}

// NextTransition returns the earliest time after now at which a record in
// records that is online now will become stale. Returns false if no record
// is online.
func NextTransition(records map[string]chat.Presence, now time.Time,
	threshold time.Duration) (time.Time, bool) {
	var next time.Time
	found := false
	for _, record := range records {
		if !IsOnline(record, now, threshold) {
			continue
		}
		expiry := record.LastSeenAt.Add(threshold)
		if !found || expiry.Before(next) {
			next, found = expiry, true
		}
	}
	return next, found
}
