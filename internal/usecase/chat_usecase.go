package usecase

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"tukarin/internal/domain/entity"
	"tukarin/internal/domain/repository"
	"tukarin/internal/domain/service"
	"tukarin/internal/infrastructure/ratelimit"
	ws "tukarin/internal/infrastructure/websocket"
	"tukarin/pkg/errors"
)

// ChatUseCase implements the room operations: deterministic initiation,
// message sends with atomic summary updates, read receipts and the
// visibility gate (soft leave, hard delete on mutual hide).
type ChatUseCase struct {
	roomRepo    repository.ChatRoomRepository
	userRepo    repository.UserRepository
	listingRepo repository.ListingRepository
	uploads     service.UploadService
	wsManager   *ws.Manager
	rateLimiter *ratelimit.RateLimiter
	resolver    *ParticipantResolver
}

func NewChatUseCase(
	roomRepo repository.ChatRoomRepository,
	userRepo repository.UserRepository,
	listingRepo repository.ListingRepository,
	uploads service.UploadService,
	wsManager *ws.Manager,
) *ChatUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &ChatUseCase{
		roomRepo:    roomRepo,
		userRepo:    userRepo,
		listingRepo: listingRepo,
		uploads:     uploads,
		wsManager:   wsManager,
		rateLimiter: rateLimiter,
		resolver:    NewParticipantResolver(userRepo),
	}
}

type InitiateChatInput struct {
	SellerID  string
	ListingID string
}

type InitiateChatResult struct {
	ChatRoomID string              `json:"chat_room_id"`
	OtherUser  *entity.UserProfile `json:"other_user"`
}

// InitiateChat opens (or reopens) the room between the caller and a
// seller about a listing. The room id is deterministic, so repeat
// initiations converge on the same room; reuse clears the hidden flag
// for BOTH parties so the counterpart sees the conversation resume.
func (uc *ChatUseCase) InitiateChat(ctx context.Context, userID string, input InitiateChatInput) (*InitiateChatResult, error) {
	allowed, waitTime := uc.rateLimiter.Allow(userID, "initiate_chat")
	if !allowed {
		log.Printf("InitiateChat Rate Limited: User %s must wait %v", userID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before starting another chat")
	}

	if input.SellerID == "" || input.ListingID == "" {
		return nil, errors.BadRequest("Seller id and listing id are required", nil)
	}
	if userID == input.SellerID {
		log.Printf("InitiateChat Error: User %s attempted to chat about their own listing %s", userID, input.ListingID)
		return nil, errors.BadRequest("You cannot start a chat about your own listing", nil)
	}

	otherUser, err := uc.userRepo.GetByID(ctx, input.SellerID)
	if err != nil {
		log.Printf("InitiateChat Error: Counterpart %s not found: %v", input.SellerID, err)
		return nil, errors.NotFound("Counterpart profile", err)
	}

	if _, err := uc.listingRepo.GetByID(ctx, input.ListingID); err != nil {
		log.Printf("InitiateChat Error: Listing %s not found: %v", input.ListingID, err)
		return nil, errors.BadRequest("Listing not found", err)
	}

	roomID := entity.RoomID(userID, input.SellerID, input.ListingID)

	existing, err := uc.roomRepo.GetByID(ctx, roomID)
	if err == nil && existing != nil {
		if err := uc.roomRepo.Unhide(ctx, roomID, userID, input.SellerID); err != nil {
			log.Printf("InitiateChat Error: Failed to unhide room %s on reuse: %v", roomID, err)
			return nil, err
		}
		return &InitiateChatResult{ChatRoomID: roomID, OtherUser: otherUser}, nil
	}
	if !errors.Is(err, "NOT_FOUND") {
		log.Printf("InitiateChat Error: Failed to look up room %s: %v", roomID, err)
		return nil, err
	}

	room := &entity.ChatRoom{
		ID:           roomID,
		Participants: []string{userID, input.SellerID},
		ListingID:    input.ListingID,
		LastRead:     map[string]time.Time{},
		HiddenFor:    []string{},
	}
	if err := uc.roomRepo.Create(ctx, room); err != nil {
		log.Printf("InitiateChat Error: Failed to create room %s: %v", roomID, err)
		return nil, err
	}

	return &InitiateChatResult{ChatRoomID: roomID, OtherUser: otherUser}, nil
}

// SendText appends a text message. Whitespace-only bodies are rejected.
func (uc *ChatUseCase) SendText(ctx context.Context, userID, roomID, body string) (*entity.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errors.BadRequest("Message body is required", nil)
	}
	return uc.appendMessage(ctx, userID, roomID, &entity.Message{
		Type: entity.MessageTypeText,
		Text: body,
	})
}

// SendImage appends an image message referencing an already-uploaded
// object. Only the storage key is persisted; readers resolve it to a URL
// themselves.
func (uc *ChatUseCase) SendImage(ctx context.Context, userID, roomID, objectKey string) (*entity.Message, error) {
	if objectKey == "" {
		return nil, errors.BadRequest("Object key is required", nil)
	}
	return uc.appendMessage(ctx, userID, roomID, &entity.Message{
		Type:     entity.MessageTypeImage,
		ImageKey: objectKey,
	})
}

// SendLocation appends a location message. Both coordinates and the
// address label are required.
func (uc *ChatUseCase) SendLocation(ctx context.Context, userID, roomID string, location *entity.Location) (*entity.Message, error) {
	if location == nil || location.AddressName == "" {
		return nil, errors.BadRequest("Coordinates and address name are required", nil)
	}
	return uc.appendMessage(ctx, userID, roomID, &entity.Message{
		Type:     entity.MessageTypeLocation,
		Location: location,
	})
}

func (uc *ChatUseCase) appendMessage(ctx context.Context, userID, roomID string, message *entity.Message) (*entity.Message, error) {
	allowed, waitTime := uc.rateLimiter.Allow(userID, "send_message")
	if !allowed {
		log.Printf("SendMessage Rate Limited: User %s must wait %v", userID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message")
	}

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		log.Printf("SendMessage Error: Room %s not found: %v", roomID, err)
		return nil, err
	}
	other, ok := room.OtherParticipant(userID)
	if !ok {
		log.Printf("SendMessage Error: User %s is not a participant in room %s", userID, roomID)
		return nil, errors.Forbidden("User is not a participant in this chat", nil)
	}

	message.SenderID = userID
	message.RoomID = roomID
	if err := message.Validate(); err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}

	if err := uc.roomRepo.AppendMessage(ctx, roomID, message); err != nil {
		log.Printf("SendMessage Error: Failed to append message to room %s: %v", roomID, err)
		return nil, err
	}

	uc.notifyNewMessage(roomID, other, message)

	return message, nil
}

func (uc *ChatUseCase) notifyNewMessage(roomID, recipientID string, message *entity.Message) {
	frame, err := json.Marshal(ws.Frame{
		Type:   ws.EventMessages,
		RoomID: roomID,
		Data:   message,
	})
	if err != nil {
		return
	}
	uc.wsManager.SendToChatRoom(roomID, frame, message.SenderID)
	uc.wsManager.SendToUser(recipientID, frame)
}

// MarkRoomRead moves the caller's read receipt to now. Best-effort for
// callers; participants only.
func (uc *ChatUseCase) MarkRoomRead(ctx context.Context, userID, roomID string) error {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if _, ok := room.OtherParticipant(userID); !ok {
		return errors.Forbidden("User is not a participant in this chat", nil)
	}
	return uc.roomRepo.SetLastRead(ctx, roomID, userID)
}

// HideRoom is the visibility gate: soft-leave for one user, hard delete
// of room and history once every participant has hidden it. Idempotent;
// a failed hide leaves the room visible.
func (uc *ChatUseCase) HideRoom(ctx context.Context, userID, roomID string) error {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if _, ok := room.OtherParticipant(userID); !ok {
		return errors.Forbidden("User is not a participant in this chat", nil)
	}

	if room.FullyHiddenWith(userID) {
		log.Printf("HideRoom: All participants have hidden room %s, deleting it", roomID)
		return uc.roomRepo.Delete(ctx, roomID)
	}

	return uc.roomRepo.Hide(ctx, roomID, userID)
}

// GetUserRooms is the one-shot room list for the HTTP surface; the live
// view is served by RoomIndex.
func (uc *ChatUseCase) GetUserRooms(ctx context.Context, userID string) ([]*entity.RoomView, int, error) {
	rooms, err := uc.roomRepo.ListByParticipant(ctx, userID)
	if err != nil {
		log.Printf("GetUserRooms Error: Failed to list rooms for user %s: %v", userID, err)
		return nil, 0, err
	}

	views := BuildRoomViews(ctx, userID, rooms, uc.resolver)
	unread := 0
	for _, v := range views {
		if v.Unread {
			unread++
		}
	}

	return views, unread, nil
}

// GetRoomByID returns one room as a view, for participants only.
func (uc *ChatUseCase) GetRoomByID(ctx context.Context, userID, roomID string) (*entity.RoomView, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	other, ok := room.OtherParticipant(userID)
	if !ok {
		return nil, errors.Forbidden("User is not a participant in this chat", nil)
	}

	view := &entity.RoomView{
		ChatRoom: room,
		Unread:   IsUnread(room, userID),
	}
	view.OtherUser = uc.resolver.Resolve(ctx, []string{other})[other]

	return view, nil
}

// GetRoomMessages returns persisted history in ascending timestamp
// order.
func (uc *ChatUseCase) GetRoomMessages(ctx context.Context, userID, roomID string, limit, offset int) ([]*entity.Message, int64, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, 0, err
	}
	if _, ok := room.OtherParticipant(userID); !ok {
		return nil, 0, errors.Forbidden("User is not a participant in this chat", nil)
	}
	return uc.roomRepo.ListMessages(ctx, roomID, limit, offset)
}

// RequestUploadGrant hands out a pre-authorized upload target for an
// image send.
func (uc *ChatUseCase) RequestUploadGrant(ctx context.Context, fileName, contentType string) (*service.UploadGrant, error) {
	grant, err := uc.uploads.RequestUploadGrant(ctx, fileName, contentType)
	if err != nil {
		log.Printf("RequestUploadGrant Error: %v", err)
		return nil, errors.Internal("Failed to create upload grant", err)
	}
	return grant, nil
}
