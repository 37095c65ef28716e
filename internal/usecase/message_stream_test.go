package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tukarin/internal/domain/entity"
)

func TestMessageStreamReplaysHistoryInDeliveryOrder(t *testing.T) {
	fx := newChatFixture()
	ctx := context.Background()
	room := seedRoom(fx.rooms, "u1", "u2", "l1")

	require.NoError(t, fx.rooms.AppendMessage(ctx, room.ID, &entity.Message{
		SenderID: "u1", Type: entity.MessageTypeText, Text: "halo",
	}))
	require.NoError(t, fx.rooms.AppendMessage(ctx, room.ID, &entity.Message{
		SenderID: "u2", Type: entity.MessageTypeText, Text: "halo juga",
	}))

	stream := NewMessageStream(room.ID, fx.rooms)
	require.NoError(t, stream.Start(ctx))
	defer stream.Close()

	batch := recvMessages(t, stream.Updates())
	require.Len(t, batch, 2)
	assert.Equal(t, "halo", batch[0].Text)
	assert.Equal(t, "halo juga", batch[1].Text)
	assert.True(t, batch[0].Timestamp.Before(batch[1].Timestamp))
}

func TestMessageStreamEchoLifecycle(t *testing.T) {
	fx := newChatFixture()
	ctx := context.Background()
	room := seedRoom(fx.rooms, "u1", "u2", "l1")

	stream := NewMessageStream(room.ID, fx.rooms)
	require.NoError(t, stream.Start(ctx))
	defer stream.Close()

	// Drain the empty-history snapshot first.
	batch := recvMessages(t, stream.Updates())
	require.Empty(t, batch)

	echo := stream.AppendEcho("u1", &entity.Message{
		Type: entity.MessageTypeText,
		Text: "jadi beli",
	})
	assert.True(t, strings.HasPrefix(echo.ID, "local-"))
	assert.True(t, echo.Pending)

	batch = recvMessages(t, stream.Updates())
	require.Len(t, batch, 1)
	assert.True(t, batch[0].Pending)

	// The confirmed record claims the echo; no duplicate remains.
	require.NoError(t, fx.rooms.AppendMessage(ctx, room.ID, &entity.Message{
		SenderID: "u1", Type: entity.MessageTypeText, Text: "jadi beli",
	}))

	batch = recvMessages(t, stream.Updates())
	require.Len(t, batch, 1)
	assert.False(t, batch[0].Pending)
	assert.Equal(t, "jadi beli", batch[0].Text)
}

func TestMessageStreamKeepsForeignEchoes(t *testing.T) {
	fx := newChatFixture()
	ctx := context.Background()
	room := seedRoom(fx.rooms, "u1", "u2", "l1")

	stream := NewMessageStream(room.ID, fx.rooms)
	require.NoError(t, stream.Start(ctx))
	defer stream.Close()
	recvMessages(t, stream.Updates())

	stream.AppendEcho("u1", &entity.Message{
		Type: entity.MessageTypeText,
		Text: "oke",
	})
	recvMessages(t, stream.Updates())

	// Same payload from the other participant must not claim the echo.
	require.NoError(t, fx.rooms.AppendMessage(ctx, room.ID, &entity.Message{
		SenderID: "u2", Type: entity.MessageTypeText, Text: "oke",
	}))

	batch := recvMessages(t, stream.Updates())
	require.Len(t, batch, 2)
	assert.False(t, batch[0].Pending)
	assert.True(t, batch[1].Pending)
}

func TestMessageStreamDropEcho(t *testing.T) {
	fx := newChatFixture()
	room := seedRoom(fx.rooms, "u1", "u2", "l1")

	stream := NewMessageStream(room.ID, fx.rooms)
	require.NoError(t, stream.Start(context.Background()))
	defer stream.Close()
	recvMessages(t, stream.Updates())

	echo := stream.AppendEcho("u1", &entity.Message{
		Type: entity.MessageTypeText,
		Text: "gagal kirim",
	})
	recvMessages(t, stream.Updates())

	stream.DropEcho(echo.ID)
	batch := recvMessages(t, stream.Updates())
	assert.Empty(t, batch)
	assert.Empty(t, stream.Messages())
}

func TestMessageStreamEchoToleranceRejectsOldRecords(t *testing.T) {
	fx := newChatFixture()
	ctx := context.Background()
	room := seedRoom(fx.rooms, "u1", "u2", "l1")

	// A historic record with the same payload sits far outside the match
	// window; the fake clock starts well in the past relative to now.
	require.NoError(t, fx.rooms.AppendMessage(ctx, room.ID, &entity.Message{
		SenderID: "u1", Type: entity.MessageTypeText, Text: "halo",
	}))

	stream := NewMessageStream(room.ID, fx.rooms)
	require.NoError(t, stream.Start(ctx))
	defer stream.Close()
	recvMessages(t, stream.Updates())

	stream.AppendEcho("u1", &entity.Message{
		Type: entity.MessageTypeText,
		Text: "halo",
	})

	batch := recvMessages(t, stream.Updates())
	require.Len(t, batch, 2)
	assert.True(t, batch[1].Pending)
}

func TestMessageStreamCloseEndsUpdates(t *testing.T) {
	fx := newChatFixture()
	room := seedRoom(fx.rooms, "u1", "u2", "l1")

	stream := NewMessageStream(room.ID, fx.rooms)
	require.NoError(t, stream.Start(context.Background()))
	recvMessages(t, stream.Updates())

	stream.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream.Updates():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("updates channel was not closed")
		}
	}
}
