package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tukarin/internal/domain/entity"
)

func seedRoom(repo *fakeRoomRepo, userA, userB, listingID string) *entity.ChatRoom {
	room := &entity.ChatRoom{
		ID:           entity.RoomID(userA, userB, listingID),
		Participants: []string{userA, userB},
		ListingID:    listingID,
		LastRead:     map[string]time.Time{},
	}
	repo.Create(context.Background(), room)
	return room
}

func TestRoomIndexPublishesFilteredViews(t *testing.T) {
	fx := newChatFixture()
	ctx := context.Background()

	seedRoom(fx.rooms, "u1", "u2", "l1")
	seedRoom(fx.rooms, "u1", "u3", "l2")

	// A corrupted record and a hidden room must never reach the view.
	fx.rooms.Create(ctx, &entity.ChatRoom{
		ID:           "broken",
		Participants: []string{"u1"},
	})
	hidden := seedRoom(fx.rooms, "u1", "u2", "l3")
	require.NoError(t, fx.rooms.Hide(ctx, hidden.ID, "u1"))

	index := NewRoomIndex("u1", fx.rooms, NewParticipantResolver(fx.users))
	require.NoError(t, index.Start(ctx))
	defer index.Close()

	views := recvRoomViews(t, index.Updates())
	require.Len(t, views, 2)
	for _, v := range views {
		assert.Len(t, v.Participants, 2)
		assert.NotEqual(t, hidden.ID, v.ID)
		require.NotNil(t, v.OtherUser)
	}
}

func TestRoomIndexSortsByRecency(t *testing.T) {
	fx := newChatFixture()
	ctx := context.Background()

	older := seedRoom(fx.rooms, "u1", "u2", "l1")
	newer := seedRoom(fx.rooms, "u1", "u3", "l2")

	require.NoError(t, fx.rooms.AppendMessage(ctx, older.ID, &entity.Message{
		SenderID: "u2", Type: entity.MessageTypeText, Text: "halo",
	}))
	require.NoError(t, fx.rooms.AppendMessage(ctx, newer.ID, &entity.Message{
		SenderID: "u3", Type: entity.MessageTypeText, Text: "masih ada?",
	}))

	index := NewRoomIndex("u1", fx.rooms, NewParticipantResolver(fx.users))
	require.NoError(t, index.Start(ctx))
	defer index.Close()

	views := recvRoomViews(t, index.Updates())
	require.Len(t, views, 2)
	assert.Equal(t, newer.ID, views[0].ID)
	assert.Equal(t, older.ID, views[1].ID)
}

func TestRoomIndexUnreadCount(t *testing.T) {
	fx := newChatFixture()
	ctx := context.Background()

	unreadRoom := seedRoom(fx.rooms, "u1", "u2", "l1")
	ownRoom := seedRoom(fx.rooms, "u1", "u3", "l2")

	require.NoError(t, fx.rooms.AppendMessage(ctx, unreadRoom.ID, &entity.Message{
		SenderID: "u2", Type: entity.MessageTypeText, Text: "halo",
	}))
	require.NoError(t, fx.rooms.AppendMessage(ctx, ownRoom.ID, &entity.Message{
		SenderID: "u1", Type: entity.MessageTypeText, Text: "saya dulu",
	}))

	index := NewRoomIndex("u1", fx.rooms, NewParticipantResolver(fx.users))
	require.NoError(t, index.Start(ctx))
	defer index.Close()

	views := recvRoomViews(t, index.Updates())
	require.Len(t, views, 2)

	_, unread := index.Snapshot()
	assert.Equal(t, 1, unread)
}

func TestRoomIndexDegradesWithoutProfiles(t *testing.T) {
	fx := newChatFixture()
	fx.users.failBatch = true

	seedRoom(fx.rooms, "u1", "u2", "l1")

	index := NewRoomIndex("u1", fx.rooms, NewParticipantResolver(fx.users))
	require.NoError(t, index.Start(context.Background()))
	defer index.Close()

	// Profile lookup failure degrades the view, it never drops rooms.
	views := recvRoomViews(t, index.Updates())
	require.Len(t, views, 1)
	assert.Nil(t, views[0].OtherUser)
}

func TestRoomIndexCloseEndsUpdates(t *testing.T) {
	fx := newChatFixture()
	seedRoom(fx.rooms, "u1", "u2", "l1")

	index := NewRoomIndex("u1", fx.rooms, NewParticipantResolver(fx.users))
	require.NoError(t, index.Start(context.Background()))

	recvRoomViews(t, index.Updates())
	index.Close()

	select {
	case _, ok := <-index.Updates():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("updates channel was not closed")
	}
}
