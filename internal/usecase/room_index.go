package usecase

import (
	"context"
	"sort"
	"sync"

	"tukarin/internal/domain/entity"
	"tukarin/internal/domain/repository"
	"tukarin/pkg/logger"
)

// RoomIndex maintains a live, deduplicated view of the rooms one user
// participates in. Every snapshot from the store is filtered (corrupted
// rooms dropped, hidden rooms dropped), annotated with unread flags,
// enriched with counterpart profiles and published on Updates.
type RoomIndex struct {
	userID   string
	rooms    repository.ChatRoomRepository
	resolver *ParticipantResolver

	updates chan []*entity.RoomView
	cancel  context.CancelFunc

	mu          sync.RWMutex
	current     []*entity.RoomView
	unreadCount int
}

func NewRoomIndex(userID string, rooms repository.ChatRoomRepository, resolver *ParticipantResolver) *RoomIndex {
	return &RoomIndex{
		userID:   userID,
		rooms:    rooms,
		resolver: resolver,
		updates:  make(chan []*entity.RoomView, 1),
	}
}

// Start opens the room-list subscription. The index runs until Close or
// until ctx is cancelled; Updates is closed when the subscription ends.
func (ri *RoomIndex) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	ri.cancel = cancel

	ch, err := ri.rooms.SubscribeRooms(ctx, ri.userID)
	if err != nil {
		cancel()
		return err
	}

	go ri.loop(ctx, ch)
	return nil
}

func (ri *RoomIndex) loop(ctx context.Context, ch <-chan []*entity.ChatRoom) {
	defer close(ri.updates)

	for batch := range ch {
		views := BuildRoomViews(ctx, ri.userID, batch, ri.resolver)

		unread := 0
		for _, v := range views {
			if v.Unread {
				unread++
			}
		}

		ri.mu.Lock()
		ri.current = views
		ri.unreadCount = unread
		ri.mu.Unlock()

		select {
		case ri.updates <- views:
		case <-ctx.Done():
			return
		}
	}
}

// Updates emits a fresh room-view batch for every store snapshot.
func (ri *RoomIndex) Updates() <-chan []*entity.RoomView {
	return ri.updates
}

// Snapshot returns the last published view and the aggregate unread
// count.
func (ri *RoomIndex) Snapshot() ([]*entity.RoomView, int) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	return ri.current, ri.unreadCount
}

// Close tears down the subscription. Safe to call more than once.
func (ri *RoomIndex) Close() {
	if ri.cancel != nil {
		ri.cancel()
	}
}

// BuildRoomViews is the derivation pass shared by the live index and the
// one-shot room list endpoint: validate, drop hidden, flag unread,
// resolve counterpart profiles in one batch, sort by recency.
func BuildRoomViews(ctx context.Context, userID string, rooms []*entity.ChatRoom, resolver *ParticipantResolver) []*entity.RoomView {
	views := make([]*entity.RoomView, 0, len(rooms))
	otherIDs := make([]string, 0, len(rooms))

	for _, room := range rooms {
		other, ok := room.OtherParticipant(userID)
		if !ok {
			logger.Warn("room index: dropping corrupted room %s (participants=%d)", room.ID, len(room.Participants))
			continue
		}
		if room.HiddenForUser(userID) {
			continue
		}
		views = append(views, &entity.RoomView{
			ChatRoom: room,
			Unread:   IsUnread(room, userID),
		})
		otherIDs = append(otherIDs, other)
	}

	profiles := resolver.Resolve(ctx, otherIDs)
	for i, view := range views {
		view.OtherUser = profiles[otherIDs[i]]
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].LastMessageTimestamp.After(views[j].LastMessageTimestamp)
	})

	return views
}
