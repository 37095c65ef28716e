package repository

import (
	"context"

	"tukarin/internal/domain/entity"
)

// ChatRoomRepository is the contract against the real-time document store.
//
// The Subscribe methods return a channel that first delivers the full
// current snapshot and then a fresh snapshot on every change, in the
// store's delivery order. The channel is closed when ctx is cancelled or
// the subscription fails; cancelling ctx is the only way to tear a
// subscription down.
type ChatRoomRepository interface {
	Create(ctx context.Context, room *entity.ChatRoom) error
	GetByID(ctx context.Context, id string) (*entity.ChatRoom, error)
	// Delete hard-deletes the room together with its message history.
	Delete(ctx context.Context, id string) error
	ListByParticipant(ctx context.Context, userID string) ([]*entity.ChatRoom, error)
	SubscribeRooms(ctx context.Context, userID string) (<-chan []*entity.ChatRoom, error)

	// AppendMessage writes the message and the room's denormalized
	// summary fields (lastMessage, lastMessageSenderId,
	// lastMessageTimestamp) atomically. The message timestamp is
	// server-assigned.
	AppendMessage(ctx context.Context, roomID string, message *entity.Message) error
	ListMessages(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, int64, error)
	SubscribeMessages(ctx context.Context, roomID string) (<-chan []*entity.Message, error)

	// SetLastRead moves the caller's read receipt to the server's now.
	SetLastRead(ctx context.Context, roomID, userID string) error

	// Hide and Unhide toggle the per-user soft-leave flag. Both are
	// idempotent.
	Hide(ctx context.Context, roomID, userID string) error
	Unhide(ctx context.Context, roomID string, userIDs ...string) error
}
