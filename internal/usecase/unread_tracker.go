package usecase

import (
	"tukarin/internal/domain/entity"
)

// IsUnread reports whether room has messages userID has not read yet:
// the last message exists, was sent by someone else, and postdates the
// user's read receipt (or the user has none). A room with no messages is
// never unread, and sending a message implicitly reads it for the sender.
func IsUnread(room *entity.ChatRoom, userID string) bool {
	if room.LastMessageTimestamp.IsZero() {
		return false
	}
	if room.LastMessageSenderID == userID {
		return false
	}
	lastRead, ok := room.LastRead[userID]
	if !ok {
		return true
	}
	return lastRead.Before(room.LastMessageTimestamp)
}

// CountUnread is the aggregate badge count: the number of rooms that are
// unread for userID.
func CountUnread(rooms []*entity.ChatRoom, userID string) int {
	count := 0
	for _, room := range rooms {
		if IsUnread(room, userID) {
			count++
		}
	}
	return count
}
