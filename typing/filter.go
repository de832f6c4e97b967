////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package typing manages typing indicators: debounced writes of the current
// user's keystrokes and the client-side rules for reading everyone else's.
package typing

import (
	"sort"
	"strconv"
	"time"
)

// Filter returns the users in entries still typing at now: the current user
// and entries at least ttl old are dropped. The result is ordered by most
// recent keystroke first.
func Filter(entries map[string]time.Time, selfID string, now time.Time,
	ttl time.Duration) []string {
	type typer struct {
		userID string
		at     time.Time
	}

	typers := make([]typer, 0, len(entries))
	for userID, at := range entries {
		if userID == selfID || now.Sub(at) >= ttl {
			continue
		}
		typers = append(typers, typer{userID, at})
	}

	sort.Slice(typers, func(i, j int) bool {
		if !typers[i].at.Equal(typers[j].at) {
			return typers[i].at.After(typers[j].at)
		}
		return typers[i].userID < typers[j].userID
	})

	userIDs := make([]string, len(typers))
	for i, t := range typers {
		userIDs[i] = t.userID
	}
	return userIDs
}

// NextExpiry returns the earliest time after now at which a live entry in
// entries expires. Returns false if no entry is live.
func NextExpiry(entries map[string]time.Time, selfID string, now time.Time,
	ttl time.Duration) (time.Time, bool) {
	var next time.Time
	found := false
	for userID, at := range entries {
		if userID == selfID || now.Sub(at) >= ttl {
			continue
		}
		if expiry := at.Add(ttl); !found || expiry.Before(next) {
			next, found = expiry, true
		}
	}
	return next, found
}

// Text renders the typing indicator for names. No names renders nothing.
func Text(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0] + " is typing..."
	case 2:
		return names[0] + " and " + names[1] + " are typing..."
	}

	rest := len(names) - 2
	others := "others"
	if rest == 1 {
		others = "other"
	}
	return names[0] + ", " + names[1] + " and " + strconv.Itoa(rest) + " " +
		others + " are typing..."
}
