////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package remote

import (
	"strconv"
	"strings"
	"time"
)

// Separates the parts of a composite hash field.
const fieldSeparator = "|"

// Vector and counts hash field suffixes.
const (
	seenField        = "seen"
	receivedField    = "recv"
	sentField        = "sent"
	unreadField      = "unread"
	undeliveredField = "undelivered"
)

// Storage keys.
func conversationKey(conversationID string) string { return "conv:" + conversationID }
func membersKey(conversationID string) string { return "conv:" + conversationID + ":members" }
func userConversationsKey(userID string) string { return "user:" + userID + ":convs" }
func messagesKey(conversationID string) string { return "msgs:" + conversationID }
func vectorKey(conversationID string) string { return "vec:" + conversationID }
func presenceKey(userID string) string { return "presence:" + userID }
func aliveKey(userID string) string { return "presence:" + userID + ":alive" }
func typingKey(conversationID string) string { return "typing:" + conversationID }
func profileKey(userID string) string { return "profile:" + userID }
func countsKey(userID string) string { return "counts:" + userID }

// Set of users with a registered disconnect fallback.
const fallbackKey = "presence:fallback"

// Pub/Sub channels.
func conversationsChannel(userID string) string { return "ch:convs:" + userID }
func messagesChannel(conversationID string) string { return "ch:msgs:" + conversationID }
func vectorChannel(conversationID string) string { return "ch:vec:" + conversationID }
func presenceChannel(userID string) string { return "ch:presence:" + userID }
func typingChannel(conversationID string) string { return "ch:typing:" + conversationID }
func userChannel(userID string) string { return "ch:user:" + userID }
func countsChannel(userID string) string { return "ch:counts:" + userID }

// joinField builds a composite hash field.
func joinField(id, suffix string) string {
	return id + fieldSeparator + suffix
}

// splitField is the inverse of joinField. IDs may contain the separator, so
// only the last one splits.
func splitField(field string) (id, suffix string, ok bool) {
	i := strings.LastIndex(field, fieldSeparator)
	if i < 0 {
		return "", "", false
	}
	return field[:i], field[i+1:], true
}

// Timestamps are stored as microseconds since the epoch, which keeps them
// exact as Lua numbers.
func encodeTime(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMicro(), 10)
}

func decodeTime(s string) (time.Time, error) {
	us, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if us == 0 {
		return time.Time{}, nil
	}
	return time.UnixMicro(us).UTC(), nil
}
