////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import "time"

// Presence is the stored presence record of a user. Online is only
// meaningful together with LastSeenAt; see presence.IsOnline.
type Presence struct {
	Online     bool      `json:"online"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// User is a user profile.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Name returns the display name, falling back to the ID.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}

// Counts are the per-conversation counters of the current user.
type Counts struct {
	// Messages from others not yet seen.
	Unread int `json:"unread"`

	// Messages from others not yet acknowledged by this user's device.
	Undelivered int `json:"undelivered"`
}
