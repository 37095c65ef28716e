package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tukarin/internal/domain/entity"
	"tukarin/internal/domain/repository"
	"tukarin/pkg/errors"
)

const (
	roomsCollection    = "chatRooms"
	messagesCollection = "messages"
)

type firestoreChatRoomRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRoomRepository(client *firestore.Client) repository.ChatRoomRepository {
	return &firestoreChatRoomRepository{
		client: client,
	}
}

func (r *firestoreChatRoomRepository) Create(ctx context.Context, room *entity.ChatRoom) error {
	if room.ID == "" {
		return errors.BadRequest("Room id is required", nil)
	}
	if room.LastRead == nil {
		room.LastRead = map[string]time.Time{}
	}

	roomRef := r.client.Collection(roomsCollection).Doc(room.ID)

	// Write the room, then stamp the initial read receipts with the
	// server clock in the same batch so both parties start "caught up".
	batch := r.client.Batch()
	batch.Set(roomRef, room)
	for _, participant := range room.Participants {
		batch.Update(roomRef, []firestore.Update{
			{FieldPath: firestore.FieldPath{"lastRead", participant}, Value: firestore.ServerTimestamp},
		})
	}

	if _, err := batch.Commit(ctx); err != nil {
		return errors.Internal("Failed to create chat room", err)
	}

	return nil
}

func (r *firestoreChatRoomRepository) GetByID(ctx context.Context, id string) (*entity.ChatRoom, error) {
	doc, err := r.client.Collection(roomsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Chat room", err)
		}
		return nil, errors.Internal("Failed to get chat room", err)
	}

	var room entity.ChatRoom
	if err := doc.DataTo(&room); err != nil {
		return nil, errors.Internal("Failed to parse chat room data", err)
	}
	room.ID = doc.Ref.ID

	return &room, nil
}

// Delete removes the message history first and the room document last, so
// a partially failed delete never leaves orphan messages behind a live
// room.
func (r *firestoreChatRoomRepository) Delete(ctx context.Context, id string) error {
	roomRef := r.client.Collection(roomsCollection).Doc(id)

	iter := roomRef.Collection(messagesCollection).Documents(ctx)
	batch := r.client.Batch()
	pending := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return errors.Internal("Failed to iterate messages for delete", err)
		}
		batch.Delete(doc.Ref)
		pending++
		// Firestore caps a batch at 500 writes.
		if pending == 500 {
			if _, err := batch.Commit(ctx); err != nil {
				return errors.Internal("Failed to delete messages", err)
			}
			batch = r.client.Batch()
			pending = 0
		}
	}
	if pending > 0 {
		if _, err := batch.Commit(ctx); err != nil {
			return errors.Internal("Failed to delete messages", err)
		}
	}

	if _, err := roomRef.Delete(ctx); err != nil {
		return errors.Internal("Failed to delete chat room", err)
	}

	return nil
}

func (r *firestoreChatRoomRepository) ListByParticipant(ctx context.Context, userID string) ([]*entity.ChatRoom, error) {
	query := r.client.Collection(roomsCollection).Where("participants", "array-contains", userID)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while fetching rooms for user %s: %v", userID, err)
		return nil, errors.Internal("Failed to fetch chat rooms", err)
	}

	return parseRooms(docs), nil
}

func (r *firestoreChatRoomRepository) SubscribeRooms(ctx context.Context, userID string) (<-chan []*entity.ChatRoom, error) {
	query := r.client.Collection(roomsCollection).Where("participants", "array-contains", userID)
	snaps := query.Snapshots(ctx)

	out := make(chan []*entity.ChatRoom, 1)
	go func() {
		defer close(out)
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					log.Printf("Room subscription for user %s ended: %v", userID, err)
				}
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.Printf("Room subscription for user %s: failed to read snapshot: %v", userID, err)
				continue
			}
			select {
			case out <- parseRooms(docs):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (r *firestoreChatRoomRepository) AppendMessage(ctx context.Context, roomID string, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.RoomID = roomID

	roomRef := r.client.Collection(roomsCollection).Doc(roomID)
	msgRef := roomRef.Collection(messagesCollection).Doc(message.ID)

	// Message write and room summary update commit atomically; the
	// timestamp sentinel resolves to the same server clock for both.
	batch := r.client.Batch()
	batch.Set(msgRef, message)
	batch.Update(roomRef, []firestore.Update{
		{Path: "lastMessage", Value: message.Preview()},
		{Path: "lastMessageSenderId", Value: message.SenderID},
		{Path: "lastMessageTimestamp", Value: firestore.ServerTimestamp},
	})

	if _, err := batch.Commit(ctx); err != nil {
		return errors.Internal("Failed to append message", err)
	}

	return nil
}

func (r *firestoreChatRoomRepository) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.client.Collection(roomsCollection).Doc(roomID).Collection(messagesCollection).
		OrderBy("timestamp", firestore.Asc)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while fetching messages for room %s: %v", roomID, err)
		return nil, 0, errors.Internal("Failed to fetch messages", err)
	}

	total := int64(len(allDocs))

	start := offset
	if start > len(allDocs) {
		start = len(allDocs)
	}
	end := len(allDocs)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	var messages []*entity.Message
	for _, doc := range allDocs[start:end] {
		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			log.Printf("Error parsing message data for room %s: %v", roomID, err)
			continue
		}
		message.ID = doc.Ref.ID
		messages = append(messages, &message)
	}

	return messages, total, nil
}

func (r *firestoreChatRoomRepository) SubscribeMessages(ctx context.Context, roomID string) (<-chan []*entity.Message, error) {
	query := r.client.Collection(roomsCollection).Doc(roomID).Collection(messagesCollection).
		OrderBy("timestamp", firestore.Asc)
	snaps := query.Snapshots(ctx)

	out := make(chan []*entity.Message, 1)
	go func() {
		defer close(out)
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					log.Printf("Message subscription for room %s ended: %v", roomID, err)
				}
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.Printf("Message subscription for room %s: failed to read snapshot: %v", roomID, err)
				continue
			}
			var messages []*entity.Message
			for _, doc := range docs {
				var message entity.Message
				if err := doc.DataTo(&message); err != nil {
					log.Printf("Message subscription for room %s: skipping bad document %s: %v", roomID, doc.Ref.ID, err)
					continue
				}
				message.ID = doc.Ref.ID
				messages = append(messages, &message)
			}
			select {
			case out <- messages:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (r *firestoreChatRoomRepository) SetLastRead(ctx context.Context, roomID, userID string) error {
	roomRef := r.client.Collection(roomsCollection).Doc(roomID)

	_, err := roomRef.Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"lastRead", userID}, Value: firestore.ServerTimestamp},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Chat room", err)
		}
		return errors.Internal("Failed to update read receipt", err)
	}

	return nil
}

func (r *firestoreChatRoomRepository) Hide(ctx context.Context, roomID, userID string) error {
	roomRef := r.client.Collection(roomsCollection).Doc(roomID)

	_, err := roomRef.Update(ctx, []firestore.Update{
		{Path: "hiddenFor", Value: firestore.ArrayUnion(userID)},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Chat room", err)
		}
		return errors.Internal("Failed to hide chat room", err)
	}

	return nil
}

func (r *firestoreChatRoomRepository) Unhide(ctx context.Context, roomID string, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	roomRef := r.client.Collection(roomsCollection).Doc(roomID)

	values := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		values[i] = id
	}

	_, err := roomRef.Update(ctx, []firestore.Update{
		{Path: "hiddenFor", Value: firestore.ArrayRemove(values...)},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Chat room", err)
		}
		return errors.Internal("Failed to unhide chat room", err)
	}

	return nil
}

func parseRooms(docs []*firestore.DocumentSnapshot) []*entity.ChatRoom {
	var rooms []*entity.ChatRoom
	for _, doc := range docs {
		var room entity.ChatRoom
		if err := doc.DataTo(&room); err != nil {
			log.Printf("Error parsing chat room %s: %v", doc.Ref.ID, err)
			continue // Skip bad data instead of failing
		}
		room.ID = doc.Ref.ID
		rooms = append(rooms, &room)
	}
	return rooms
}
