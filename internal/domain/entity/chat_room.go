package entity

import (
	"sort"
	"strings"
	"time"
)

// ChatRoom is a two-party conversation anchored to a single listing.
// Its ID is a deterministic function of the participants and the listing,
// so re-initiating chat between the same users about the same listing
// resolves to the same document.
type ChatRoom struct {
	ID                   string               `json:"id" firestore:"id"`
	Participants         []string             `json:"participants" firestore:"participants"`
	ListingID            string               `json:"listing_id" firestore:"listingId"`
	CreatedAt            time.Time            `json:"created_at" firestore:"createdAt,serverTimestamp"`
	LastMessage          string               `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageSenderID  string               `json:"last_message_sender_id,omitempty" firestore:"lastMessageSenderId,omitempty"`
	LastMessageTimestamp time.Time            `json:"last_message_timestamp,omitempty" firestore:"lastMessageTimestamp,omitempty"`
	LastRead             map[string]time.Time `json:"last_read" firestore:"lastRead"`
	HiddenFor            []string             `json:"hidden_for" firestore:"hiddenFor"`
}

// RoomID derives the stable room identifier for two participants and a
// listing. The inputs are sorted before joining, so argument order does
// not matter.
func RoomID(userA, userB, listingID string) string {
	parts := []string{userA, userB, listingID}
	sort.Strings(parts)
	return strings.Join(parts, "_")
}

// OtherParticipant returns the counterpart of userID in this room.
// ok is false when the room is corrupted: participants count is not
// exactly 2, userID is not a member, or the counterpart id is empty.
func (r *ChatRoom) OtherParticipant(userID string) (string, bool) {
	if len(r.Participants) != 2 {
		return "", false
	}
	var other string
	found := false
	for _, p := range r.Participants {
		if p == userID {
			found = true
		} else {
			other = p
		}
	}
	if !found || other == "" {
		return "", false
	}
	return other, true
}

// HiddenForUser reports whether userID has soft-left this room.
func (r *ChatRoom) HiddenForUser(userID string) bool {
	for _, h := range r.HiddenFor {
		if h == userID {
			return true
		}
	}
	return false
}

// FullyHiddenWith reports whether hiddenFor plus userID would cover every
// participant, i.e. whether hiding for userID should hard-delete the room.
func (r *ChatRoom) FullyHiddenWith(userID string) bool {
	hidden := make(map[string]bool, len(r.HiddenFor)+1)
	for _, h := range r.HiddenFor {
		hidden[h] = true
	}
	hidden[userID] = true
	for _, p := range r.Participants {
		if !hidden[p] {
			return false
		}
	}
	return len(r.Participants) > 0
}

// RoomView is the derived, per-render representation of a room: the raw
// record plus the resolved counterpart profile and the unread flag. It is
// never persisted.
type RoomView struct {
	*ChatRoom
	OtherUser *UserProfile `json:"other_user,omitempty"`
	Unread    bool         `json:"unread"`
}
