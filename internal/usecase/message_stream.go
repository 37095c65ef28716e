package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tukarin/internal/domain/entity"
	"tukarin/internal/domain/repository"
)

// echoMatchTolerance bounds how far a server-assigned timestamp may drift
// from the local clock for a confirmed record to still claim an echo.
const echoMatchTolerance = 2 * time.Minute

// MessageStream is the live, ordered message sequence for one room. The
// store subscription is authoritative; locally sent messages appear
// immediately as pending echoes and are dropped once a matching confirmed
// record is delivered.
type MessageStream struct {
	roomID string
	rooms  repository.ChatRoomRepository

	updates chan []*entity.Message
	ctx     context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	confirmed []*entity.Message
	pending   []*entity.Message
}

func NewMessageStream(roomID string, rooms repository.ChatRoomRepository) *MessageStream {
	return &MessageStream{
		roomID:  roomID,
		rooms:   rooms,
		updates: make(chan []*entity.Message, 8),
	}
}

// Start opens the subscription; it replays full history first, then live
// updates, in the store's delivery order.
func (ms *MessageStream) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	ms.ctx = ctx
	ms.cancel = cancel

	ch, err := ms.rooms.SubscribeMessages(ctx, ms.roomID)
	if err != nil {
		cancel()
		return err
	}

	go ms.loop(ctx, ch)
	return nil
}

func (ms *MessageStream) loop(ctx context.Context, ch <-chan []*entity.Message) {
	defer close(ms.updates)

	for batch := range ch {
		ms.mu.Lock()
		ms.confirmed = batch
		ms.dropConfirmedEchoesLocked()
		merged := ms.mergedLocked()
		ms.mu.Unlock()

		select {
		case ms.updates <- merged:
		case <-ctx.Done():
			return
		}
	}
}

// AppendEcho registers an optimistic local echo for a just-sent message:
// a fabricated id, the local clock as a provisional timestamp, and the
// Pending flag set. Returns the echo so the caller can roll it back if
// the send fails.
func (ms *MessageStream) AppendEcho(senderID string, msg *entity.Message) *entity.Message {
	echo := *msg
	echo.ID = "local-" + uuid.New().String()
	echo.RoomID = ms.roomID
	echo.SenderID = senderID
	echo.Timestamp = time.Now()
	echo.Pending = true

	ms.mu.Lock()
	ms.pending = append(ms.pending, &echo)
	merged := ms.mergedLocked()
	ms.mu.Unlock()

	ms.emit(merged)
	return &echo
}

// DropEcho removes a pending echo, used when the send it anticipated
// failed.
func (ms *MessageStream) DropEcho(echoID string) {
	ms.mu.Lock()
	kept := ms.pending[:0]
	for _, p := range ms.pending {
		if p.ID != echoID {
			kept = append(kept, p)
		}
	}
	ms.pending = kept
	merged := ms.mergedLocked()
	ms.mu.Unlock()

	ms.emit(merged)
}

// Messages returns the current merged view: confirmed history in delivery
// order, then unconfirmed echoes.
func (ms *MessageStream) Messages() []*entity.Message {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.mergedLocked()
}

// Updates emits the merged view after every snapshot or echo change.
func (ms *MessageStream) Updates() <-chan []*entity.Message {
	return ms.updates
}

// Close tears down the subscription. Safe to call more than once.
func (ms *MessageStream) Close() {
	if ms.cancel != nil {
		ms.cancel()
	}
}

func (ms *MessageStream) emit(merged []*entity.Message) {
	if ms.ctx == nil || ms.ctx.Err() != nil {
		return
	}
	select {
	case ms.updates <- merged:
	case <-ms.ctx.Done():
	}
}

// dropConfirmedEchoesLocked discards every echo the store has since
// confirmed: same sender, same payload, timestamps within tolerance.
func (ms *MessageStream) dropConfirmedEchoesLocked() {
	if len(ms.pending) == 0 {
		return
	}
	kept := ms.pending[:0]
	for _, echo := range ms.pending {
		if !ms.confirmedLocked(echo) {
			kept = append(kept, echo)
		}
	}
	ms.pending = kept
}

func (ms *MessageStream) confirmedLocked(echo *entity.Message) bool {
	for _, c := range ms.confirmed {
		if c.SenderID != echo.SenderID || !c.SamePayload(echo) {
			continue
		}
		drift := c.Timestamp.Sub(echo.Timestamp)
		if drift < 0 {
			drift = -drift
		}
		if drift <= echoMatchTolerance {
			return true
		}
	}
	return false
}

func (ms *MessageStream) mergedLocked() []*entity.Message {
	merged := make([]*entity.Message, 0, len(ms.confirmed)+len(ms.pending))
	merged = append(merged, ms.confirmed...)
	merged = append(merged, ms.pending...)
	return merged
}
