package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"tukarin/internal/domain/entity"
	"tukarin/internal/domain/service"
	ws "tukarin/internal/infrastructure/websocket"
	"tukarin/pkg/errors"
)

// fakeRoomRepo is an in-memory stand-in for the document store. A logical
// clock plays the role of server-assigned timestamps, and every mutation
// re-broadcasts full snapshots to open subscriptions the way the store's
// listeners do.
type fakeRoomRepo struct {
	mu       sync.Mutex
	rooms    map[string]*entity.ChatRoom
	messages map[string][]*entity.Message
	clock    time.Time

	roomSubs map[chan []*entity.ChatRoom]string // channel -> userID
	msgSubs  map[chan []*entity.Message]string  // channel -> roomID

	failSetLastRead  bool
	setLastReadCalls int
	deleteCalls      int
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{
		rooms:    map[string]*entity.ChatRoom{},
		messages: map[string][]*entity.Message{},
		clock:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		roomSubs: map[chan []*entity.ChatRoom]string{},
		msgSubs:  map[chan []*entity.Message]string{},
	}
}

func (f *fakeRoomRepo) tickLocked() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func copyRoom(r *entity.ChatRoom) *entity.ChatRoom {
	c := *r
	c.Participants = append([]string(nil), r.Participants...)
	c.HiddenFor = append([]string(nil), r.HiddenFor...)
	c.LastRead = make(map[string]time.Time, len(r.LastRead))
	for k, v := range r.LastRead {
		c.LastRead[k] = v
	}
	return &c
}

func (f *fakeRoomRepo) Create(ctx context.Context, room *entity.ChatRoom) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := copyRoom(room)
	stored.CreatedAt = f.tickLocked()
	if stored.LastRead == nil {
		stored.LastRead = map[string]time.Time{}
	}
	for _, p := range stored.Participants {
		stored.LastRead[p] = stored.CreatedAt
	}
	f.rooms[room.ID] = stored
	f.broadcastRoomsLocked()
	return nil
}

func (f *fakeRoomRepo) GetByID(ctx context.Context, id string) (*entity.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return nil, errors.NotFound("Chat room", nil)
	}
	return copyRoom(room), nil
}

func (f *fakeRoomRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, id)
	delete(f.messages, id)
	f.deleteCalls++
	f.broadcastRoomsLocked()
	f.broadcastMessagesLocked(id)
	return nil
}

func (f *fakeRoomRepo) ListByParticipant(ctx context.Context, userID string) ([]*entity.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roomsForLocked(userID), nil
}

func (f *fakeRoomRepo) roomsForLocked(userID string) []*entity.ChatRoom {
	out := []*entity.ChatRoom{}
	for _, room := range f.rooms {
		for _, p := range room.Participants {
			if p == userID {
				out = append(out, copyRoom(room))
				break
			}
		}
	}
	return out
}

func (f *fakeRoomRepo) SubscribeRooms(ctx context.Context, userID string) (<-chan []*entity.ChatRoom, error) {
	ch := make(chan []*entity.ChatRoom, 16)
	f.mu.Lock()
	f.roomSubs[ch] = userID
	ch <- f.roomsForLocked(userID)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.roomSubs, ch)
		f.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (f *fakeRoomRepo) broadcastRoomsLocked() {
	for ch, userID := range f.roomSubs {
		select {
		case ch <- f.roomsForLocked(userID):
		default:
		}
	}
}

func (f *fakeRoomRepo) AppendMessage(ctx context.Context, roomID string, message *entity.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return errors.NotFound("Chat room", nil)
	}

	stored := *message
	stored.Timestamp = f.tickLocked()
	if stored.ID == "" {
		stored.ID = fmt.Sprintf("msg-%d", len(f.messages[roomID])+1)
	}
	f.messages[roomID] = append(f.messages[roomID], &stored)

	room.LastMessage = stored.Preview()
	room.LastMessageSenderID = stored.SenderID
	room.LastMessageTimestamp = stored.Timestamp

	f.broadcastRoomsLocked()
	f.broadcastMessagesLocked(roomID)
	return nil
}

func (f *fakeRoomRepo) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.messages[roomID]
	total := int64(len(all))
	if offset >= len(all) {
		return []*entity.Message{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]*entity.Message, 0, end-offset)
	for _, m := range all[offset:end] {
		c := *m
		out = append(out, &c)
	}
	return out, total, nil
}

func (f *fakeRoomRepo) SubscribeMessages(ctx context.Context, roomID string) (<-chan []*entity.Message, error) {
	ch := make(chan []*entity.Message, 16)
	f.mu.Lock()
	f.msgSubs[ch] = roomID
	ch <- f.messageSnapshotLocked(roomID)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.msgSubs, ch)
		f.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (f *fakeRoomRepo) messageSnapshotLocked(roomID string) []*entity.Message {
	out := make([]*entity.Message, 0, len(f.messages[roomID]))
	for _, m := range f.messages[roomID] {
		c := *m
		out = append(out, &c)
	}
	return out
}

func (f *fakeRoomRepo) broadcastMessagesLocked(roomID string) {
	for ch, id := range f.msgSubs {
		if id != roomID {
			continue
		}
		select {
		case ch <- f.messageSnapshotLocked(roomID):
		default:
		}
	}
}

func (f *fakeRoomRepo) SetLastRead(ctx context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setLastReadCalls++
	if f.failSetLastRead {
		return fmt.Errorf("receipt write refused")
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return errors.NotFound("Chat room", nil)
	}
	if room.LastRead == nil {
		room.LastRead = map[string]time.Time{}
	}
	room.LastRead[userID] = f.tickLocked()
	f.broadcastRoomsLocked()
	return nil
}

func (f *fakeRoomRepo) Hide(ctx context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return errors.NotFound("Chat room", nil)
	}
	if !room.HiddenForUser(userID) {
		room.HiddenFor = append(room.HiddenFor, userID)
	}
	f.broadcastRoomsLocked()
	return nil
}

func (f *fakeRoomRepo) Unhide(ctx context.Context, roomID string, userIDs ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return errors.NotFound("Chat room", nil)
	}
	kept := room.HiddenFor[:0]
	for _, h := range room.HiddenFor {
		remove := false
		for _, u := range userIDs {
			if h == u {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, h)
		}
	}
	room.HiddenFor = kept
	f.broadcastRoomsLocked()
	return nil
}

type fakeUserRepo struct {
	mu        sync.Mutex
	profiles  map[string]*entity.UserProfile
	failBatch bool
}

func newFakeUserRepo(profiles ...*entity.UserProfile) *fakeUserRepo {
	f := &fakeUserRepo{profiles: map[string]*entity.UserProfile{}}
	for _, p := range profiles {
		f.profiles[p.ID] = p
	}
	return f
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*entity.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return p, nil
}

func (f *fakeUserRepo) BatchGetProfiles(ctx context.Context, ids []string) (map[string]*entity.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBatch {
		return nil, fmt.Errorf("profile backend unavailable")
	}
	out := make(map[string]*entity.UserProfile, len(ids))
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeListingRepo struct {
	mu       sync.Mutex
	listings map[string]*entity.Listing
}

func newFakeListingRepo(listings ...*entity.Listing) *fakeListingRepo {
	f := &fakeListingRepo{listings: map[string]*entity.Listing{}}
	for _, l := range listings {
		f.listings[l.ID] = l
	}
	return f
}

func (f *fakeListingRepo) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return nil, errors.NotFound("Listing", nil)
	}
	return l, nil
}

func (f *fakeListingRepo) ListBackInStock(ctx context.Context, since time.Time) ([]*entity.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*entity.Listing{}
	for _, l := range f.listings {
		if l.RestockedAt.After(since) && l.Stock > 0 && len(l.WatcherIDs) > 0 {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeUploadService struct {
	mu         sync.Mutex
	grants     int
	uploaded   []string
	failGrant  bool
	failUpload bool
}

func (f *fakeUploadService) RequestUploadGrant(ctx context.Context, fileName, contentType string) (*service.UploadGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGrant {
		return nil, fmt.Errorf("grant refused")
	}
	f.grants++
	key := fmt.Sprintf("chat-images/grant-%d", f.grants)
	return &service.UploadGrant{
		UploadURL: "https://upload.test/" + key,
		ObjectKey: key,
	}, nil
}

func (f *fakeUploadService) Upload(ctx context.Context, grant *service.UploadGrant, contentType string, data io.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload {
		return fmt.Errorf("upload refused")
	}
	f.uploaded = append(f.uploaded, grant.ObjectKey)
	return nil
}

func (f *fakeUploadService) ResolveKeyToURL(objectKey string) string {
	return "https://cdn.test/" + objectKey
}

// chatFixture bundles the fakes behind a wired ChatUseCase.
type chatFixture struct {
	rooms    *fakeRoomRepo
	users    *fakeUserRepo
	listings *fakeListingRepo
	uploads  *fakeUploadService
	chat     *ChatUseCase
}

func newChatFixture() *chatFixture {
	rooms := newFakeRoomRepo()
	users := newFakeUserRepo(
		&entity.UserProfile{ID: "u1", Username: "andi"},
		&entity.UserProfile{ID: "u2", Username: "budi"},
		&entity.UserProfile{ID: "u3", Username: "citra"},
	)
	listings := newFakeListingRepo(
		&entity.Listing{ID: "l1", Title: "Kamera bekas", SellerID: "u2", Price: 1500000, Stock: 1},
	)
	uploads := &fakeUploadService{}
	return &chatFixture{
		rooms:    rooms,
		users:    users,
		listings: listings,
		uploads:  uploads,
		chat:     NewChatUseCase(rooms, users, listings, uploads, ws.NewManager()),
	}
}

func recvRoomViews(t *testing.T, ch <-chan []*entity.RoomView) []*entity.RoomView {
	t.Helper()
	select {
	case views, ok := <-ch:
		if !ok {
			t.Fatal("room view channel closed")
		}
		return views
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for room views")
	}
	return nil
}

func recvMessages(t *testing.T, ch <-chan []*entity.Message) []*entity.Message {
	t.Helper()
	select {
	case batch, ok := <-ch:
		if !ok {
			t.Fatal("message channel closed")
		}
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for messages")
	}
	return nil
}
