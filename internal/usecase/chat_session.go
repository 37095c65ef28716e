package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"tukarin/internal/domain/entity"
	"tukarin/internal/domain/repository"
	"tukarin/pkg/errors"
	"tukarin/pkg/logger"
)

type SessionState string

const (
	SessionResolving SessionState = "resolving"
	SessionLoading   SessionState = "loading"
	SessionActive    SessionState = "active"
	SessionClosed    SessionState = "closed"
)

// ErrNotAuthenticated signals the caller to redirect to login instead of
// activating the session.
var ErrNotAuthenticated = errors.Unauthorized("Sign in to open this chat", nil)

// ChatRoomSession orchestrates one open chat room: it owns exactly one
// MessageStream, tracks composition state, dispatches sends and updates
// the read receipt whenever the message list changes while Active.
//
// Lifecycle: Resolving (room id unknown) → Loading (id known, identity
// pending) → Active → Closed.
type ChatRoomSession struct {
	chat  *ChatUseCase
	rooms repository.ChatRoomRepository

	mu     sync.Mutex
	state  SessionState
	roomID string
	userID string
	draft  string

	stream  *MessageStream
	cancel  context.CancelFunc
	updates chan []*entity.Message
}

func NewChatRoomSession(chat *ChatUseCase, rooms repository.ChatRoomRepository) *ChatRoomSession {
	return &ChatRoomSession{
		chat:    chat,
		rooms:   rooms,
		state:   SessionResolving,
		updates: make(chan []*entity.Message, 8),
	}
}

// Resolve supplies the room id, moving the session to Loading.
func (s *ChatRoomSession) Resolve(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionResolving {
		return fmt.Errorf("cannot resolve room in state %s", s.state)
	}
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}
	s.roomID = roomID
	s.state = SessionLoading
	return nil
}

// Activate confirms the viewer's identity and opens the message stream.
// An empty userID means the viewer is not authenticated; the session
// stays Loading and the caller handles the login redirect.
func (s *ChatRoomSession) Activate(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.state != SessionLoading {
		s.mu.Unlock()
		return fmt.Errorf("cannot activate session in state %s", s.state)
	}
	if userID == "" {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}

	ctx, cancel := context.WithCancel(ctx)
	stream := NewMessageStream(s.roomID, s.rooms)
	if err := stream.Start(ctx); err != nil {
		cancel()
		s.mu.Unlock()
		return err
	}

	s.userID = userID
	s.stream = stream
	s.cancel = cancel
	s.state = SessionActive
	s.mu.Unlock()

	go s.run(ctx, stream)
	return nil
}

// run forwards stream updates to the session's consumer and touches the
// read receipt on every observed list change.
func (s *ChatRoomSession) run(ctx context.Context, stream *MessageStream) {
	defer close(s.updates)

	for batch := range stream.Updates() {
		s.touchReadReceipt(ctx)
		select {
		case s.updates <- batch:
		case <-ctx.Done():
			return
		}
	}
}

// touchReadReceipt is fire-and-forget: failures are logged, never
// surfaced, and never block message rendering.
func (s *ChatRoomSession) touchReadReceipt(ctx context.Context) {
	roomID, userID := s.roomID, s.userID
	go func() {
		if err := s.rooms.SetLastRead(ctx, roomID, userID); err != nil && ctx.Err() == nil {
			logger.Warn("session: read receipt update for room %s user %s failed: %v", roomID, userID, err)
		}
	}()
}

// SetDraft tracks composition state for the open room.
func (s *ChatRoomSession) SetDraft(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = body
}

func (s *ChatRoomSession) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// sendContext snapshots the stream and identity under the same lock as
// the state check, so senders never read session fields a concurrent
// Close could invalidate.
func (s *ChatRoomSession) sendContext() (stream *MessageStream, userID, roomID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionActive {
		return nil, "", "", false
	}
	return s.stream, s.userID, s.roomID, true
}

// SendText sends a text message with an optimistic echo. Empty or
// whitespace-only bodies and non-Active sessions are a silent no-op.
func (s *ChatRoomSession) SendText(ctx context.Context, body string) error {
	stream, userID, roomID, ok := s.sendContext()
	if !ok || strings.TrimSpace(body) == "" {
		return nil
	}

	echo := stream.AppendEcho(userID, &entity.Message{
		Type: entity.MessageTypeText,
		Text: strings.TrimSpace(body),
	})
	s.SetDraft("")

	if _, err := s.chat.SendText(ctx, userID, roomID, body); err != nil {
		stream.DropEcho(echo.ID)
		return err
	}
	return nil
}

// SendImage runs the two-phase image send: request an upload grant, push
// the raw bytes to it, and only then append a message carrying the
// object key. A failed grant or upload writes no message.
func (s *ChatRoomSession) SendImage(ctx context.Context, fileName, contentType string, data io.Reader) error {
	stream, userID, roomID, ok := s.sendContext()
	if !ok {
		return nil
	}

	grant, err := s.chat.RequestUploadGrant(ctx, fileName, contentType)
	if err != nil {
		return err
	}
	if err := s.chat.uploads.Upload(ctx, grant, contentType, data); err != nil {
		logger.Warn("session: image upload for room %s failed: %v", roomID, err)
		return errors.Internal("Image upload failed", err)
	}

	echo := stream.AppendEcho(userID, &entity.Message{
		Type:     entity.MessageTypeImage,
		ImageKey: grant.ObjectKey,
	})

	if _, err := s.chat.SendImage(ctx, userID, roomID, grant.ObjectKey); err != nil {
		stream.DropEcho(echo.ID)
		return err
	}
	return nil
}

// SendLocation sends a location message; missing coordinates or address
// label are a silent no-op.
func (s *ChatRoomSession) SendLocation(ctx context.Context, latitude, longitude *float64, addressName string) error {
	stream, userID, roomID, ok := s.sendContext()
	if !ok {
		return nil
	}
	if latitude == nil || longitude == nil || addressName == "" {
		return nil
	}

	location := &entity.Location{
		Latitude:    *latitude,
		Longitude:   *longitude,
		AddressName: addressName,
	}
	echo := stream.AppendEcho(userID, &entity.Message{
		Type:     entity.MessageTypeLocation,
		Location: location,
	})

	if _, err := s.chat.SendLocation(ctx, userID, roomID, location); err != nil {
		stream.DropEcho(echo.ID)
		return err
	}
	return nil
}

// LeaveRoom hides the room for the current user and closes the session.
// On failure the session stays Active and the room stays visible.
func (s *ChatRoomSession) LeaveRoom(ctx context.Context) error {
	_, userID, roomID, ok := s.sendContext()
	if !ok {
		return fmt.Errorf("session is not active")
	}
	if err := s.chat.HideRoom(ctx, userID, roomID); err != nil {
		return err
	}
	s.Close()
	return nil
}

// Close tears down the message stream and finishes the session. Safe to
// call from any state.
func (s *ChatRoomSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionClosed {
		return
	}
	s.state = SessionClosed
	if s.cancel != nil {
		s.cancel()
	}
	if s.stream != nil {
		s.stream.Close()
	}
}

func (s *ChatRoomSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ChatRoomSession) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Updates emits the merged message view for the open room.
func (s *ChatRoomSession) Updates() <-chan []*entity.Message {
	return s.updates
}
