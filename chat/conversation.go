////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package chat contains the data model shared by every part of the engine:
// conversations, messages, presence records, user profiles and counts.
package chat

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const (
	selfPrefix   = "self:"
	directPrefix = "direct:"

	// Maximum number of runes kept in a conversation preview.
	previewLength = 100
	previewSuffix = "..."
)

// Kind is the type of a conversation.
type Kind uint8

const (
	Self Kind = iota
	Direct
	Group
)

// String returns the wire name of the Kind.
func (k Kind) String() string {
	switch k {
	case Self:
		return "SELF"
	case Direct:
		return "DIRECT"
	case Group:
		return "GROUP"
	default:
		return "UNKNOWN"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SELF":
		return Self, nil
	case "DIRECT":
		return Direct, nil
	case "GROUP":
		return Group, nil
	}
	return 0, errors.WithMessagef(ErrUnknownKind, "%q", s)
}

// MarshalText adheres to the encoding.TextMarshaler interface.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText adheres to the encoding.TextUnmarshaler interface.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Conversation is the metadata of a single chat thread.
type Conversation struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Name        string    `json:"name,omitempty"`
	CreatorID   string    `json:"creatorId,omitempty"`
	MemberIDs   []string  `json:"memberIds"`
	LastMessage string    `json:"lastMessage,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SelfID returns the deterministic ID of a user's note-to-self conversation.
func SelfID(userID string) string {
	return selfPrefix + userID
}

// DirectID returns the deterministic ID of the direct conversation between
// two users. The order of the arguments does not matter.
func DirectID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return directPrefix + a + ":" + b
}

// NewSelf builds the note-to-self conversation for userID.
func NewSelf(userID string, now time.Time) Conversation {
	return Conversation{
		ID:        SelfID(userID),
		Kind:      Self,
		MemberIDs: []string{userID},
		UpdatedAt: now,
	}
}

// NewDirect builds the direct conversation between a and b.
func NewDirect(a, b string, now time.Time) (Conversation, error) {
	if a == "" || b == "" || a == b {
		return Conversation{}, errors.WithMessagef(ErrInvalidMembers,
			"direct conversation between %q and %q", a, b)
	}
	members := []string{a, b}
	sort.Strings(members)
	return Conversation{
		ID:        DirectID(a, b),
		Kind:      Direct,
		MemberIDs: members,
		UpdatedAt: now,
	}, nil
}

// NewGroup builds a group conversation. The creator is always a member and
// at least one other member is required.
func NewGroup(id, creatorID string, memberIDs []string, name string,
	now time.Time) (Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Conversation{}, ErrEmptyGroupName
	}
	if creatorID == "" {
		return Conversation{}, ErrNoUser
	}

	members := Distinct(append([]string{creatorID}, memberIDs...))
	if len(members) < 2 {
		return Conversation{}, errors.WithMessage(ErrInvalidMembers,
			"a group needs at least one member besides its creator")
	}

	return Conversation{
		ID:        id,
		Kind:      Group,
		Name:      name,
		CreatorID: creatorID,
		MemberIDs: members,
		UpdatedAt: now,
	}, nil
}

// Validate checks the membership invariants of the conversation's kind.
func (c Conversation) Validate() error {
	members := Distinct(c.MemberIDs)
	if len(members) != len(c.MemberIDs) {
		return errors.WithMessage(ErrInvalidMembers, "duplicate or empty member IDs")
	}

	switch c.Kind {
	case Self:
		if len(members) != 1 {
			return errors.WithMessagef(ErrInvalidMembers,
				"self conversation has %d members", len(members))
		}
	case Direct:
		if len(members) != 2 {
			return errors.WithMessagef(ErrInvalidMembers,
				"direct conversation has %d members", len(members))
		}
		if c.Name != "" {
			return errors.WithMessage(ErrInvalidMembers,
				"direct conversations have no name")
		}
	case Group:
		if !c.HasMember(c.CreatorID) {
			return errors.WithMessage(ErrInvalidMembers,
				"group creator is not a member")
		}
	default:
		return errors.WithMessagef(ErrUnknownKind, "%d", c.Kind)
	}
	return nil
}

// HasMember returns true if userID is a current member.
func (c Conversation) HasMember(userID string) bool {
	for _, m := range c.MemberIDs {
		if m == userID {
			return true
		}
	}
	return false
}

// IsAdmin returns true if userID may change the membership.
func (c Conversation) IsAdmin(userID string) bool {
	return c.Kind == Group && userID != "" && c.CreatorID == userID
}

// CanAddMember returns nil if actorID may add userID.
func (c Conversation) CanAddMember(actorID, userID string) error {
	if c.Kind != Group {
		return ErrNotGroup
	}
	if !c.IsAdmin(actorID) {
		return ErrNotAdmin
	}
	if c.HasMember(userID) {
		return ErrAlreadyMember
	}
	return nil
}

// CanRemoveMember returns nil if actorID may remove userID.
func (c Conversation) CanRemoveMember(actorID, userID string) error {
	if c.Kind != Group {
		return ErrNotGroup
	}
	if !c.IsAdmin(actorID) {
		return ErrNotAdmin
	}
	if userID == c.CreatorID {
		return ErrCreatorRemoval
	}
	if !c.HasMember(userID) {
		return ErrNotMember
	}
	return nil
}

// Others returns the members other than userID.
func (c Conversation) Others(userID string) []string {
	others := make([]string, 0, len(c.MemberIDs))
	for _, m := range c.MemberIDs {
		if m != userID {
			others = append(others, m)
		}
	}
	return others
}

// Title returns the name shown for the conversation to selfID.
func (c Conversation) Title(selfID string, users map[string]User) string {
	switch c.Kind {
	case Group:
		return c.Name
	case Self:
		return "Note to self"
	}

	for _, other := range c.Others(selfID) {
		if u, ok := users[other]; ok && u.DisplayName != "" {
			return u.DisplayName
		}
		return other
	}
	return c.ID
}

// Preview truncates message text for the conversation list.
func Preview(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewLength]) + previewSuffix
}

// SortByUpdated orders conversations most recently updated first.
func SortByUpdated(conversations []Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		if !conversations[i].UpdatedAt.Equal(conversations[j].UpdatedAt) {
			return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
		}
		return conversations[i].ID < conversations[j].ID
	})
}

// Distinct returns ids without duplicates or empty entries, preserving the
// order of first appearance.
func Distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
