package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"tukarin/internal/domain/repository"
	"tukarin/internal/infrastructure/firebase"
	ws "tukarin/internal/infrastructure/websocket"
	"tukarin/internal/usecase"
	"tukarin/pkg/errors"
	"tukarin/pkg/logger"
	"tukarin/pkg/response"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Restrict this in production
	},
}

// WebSocketHandler runs one sync engine per connection: a RoomIndex for
// the room list and at most one ChatRoomSession for the currently open
// room. Switching rooms tears the previous session down first.
type WebSocketHandler struct {
	wsManager   *ws.Manager
	authClient  *firebase.AuthClient
	chatUseCase *usecase.ChatUseCase
	roomRepo    repository.ChatRoomRepository
	userRepo    repository.UserRepository
}

func NewWebSocketHandler(
	wsManager *ws.Manager,
	authClient *firebase.AuthClient,
	chatUseCase *usecase.ChatUseCase,
	roomRepo repository.ChatRoomRepository,
	userRepo repository.UserRepository,
) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:   wsManager,
		authClient:  authClient,
		chatUseCase: chatUseCase,
		roomRepo:    roomRepo,
		userRepo:    userRepo,
	}
}

// inboundFrame keeps Data raw so each command can decode its own payload.
type inboundFrame struct {
	Type   string          `json:"type"`
	RoomID string          `json:"room_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	// Browsers cannot set headers on WebSocket upgrades, so the token
	// rides in the query string.
	token := c.QueryParam("token")
	if token == "" {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}
	userID, err := h.authClient.VerifyToken(c.Request().Context(), token)
	if err != nil {
		return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}
	h.wsManager.Register <- client

	ctx, cancel := context.WithCancel(context.Background())

	engine := &connSync{
		handler: h,
		userID:  userID,
		ctx:     ctx,
	}

	index := usecase.NewRoomIndex(userID, h.roomRepo, usecase.NewParticipantResolver(h.userRepo))
	if err := index.Start(ctx); err != nil {
		cancel()
		conn.Close()
		return err
	}
	engine.index = index
	go engine.forwardRoomList()

	go client.WritePump()
	// ReadPump blocks for the life of the connection.
	client.ReadPump(h.wsManager, engine.handleFrame)

	cancel()
	engine.closeSession()
	return nil
}

// connSync is the per-connection engine state.
type connSync struct {
	handler *WebSocketHandler
	userID  string
	ctx     context.Context
	index   *usecase.RoomIndex

	mu      sync.Mutex
	session *usecase.ChatRoomSession
}

func (cs *connSync) handleFrame(raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		logger.Warn("websocket: bad frame from %s: %v", cs.userID, err)
		cs.sendError("Invalid frame")
		return
	}

	switch frame.Type {
	case ws.CommandPing:
		cs.send(ws.Frame{Type: ws.EventPong})

	case ws.CommandOpenRoom:
		cs.openRoom(frame.RoomID)

	case ws.CommandCloseRoom:
		cs.closeSession()

	case ws.CommandLeaveRoom:
		cs.leaveRoom()

	case ws.CommandSendText:
		var data ws.SendTextData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			cs.sendError("Invalid frame")
			return
		}
		if err := cs.currentSession().SendText(cs.ctx, data.Body); err != nil {
			cs.sendError("Message could not be sent")
		}

	case ws.CommandSendLocation:
		var data ws.SendLocationData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			cs.sendError("Invalid frame")
			return
		}
		if err := cs.currentSession().SendLocation(cs.ctx, data.Latitude, data.Longitude, data.AddressName); err != nil {
			cs.sendError("Location could not be sent")
		}

	case ws.CommandSetDraft:
		var data ws.SetDraftData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return
		}
		cs.currentSession().SetDraft(data.Body)

	default:
		cs.sendError("Unknown command")
	}
}

// openRoom replaces the current session, tearing the old one down first.
func (cs *connSync) openRoom(roomID string) {
	cs.closeSession()

	session := usecase.NewChatRoomSession(cs.handler.chatUseCase, cs.handler.roomRepo)
	if err := session.Resolve(roomID); err != nil {
		cs.sendError("Room id is required")
		return
	}
	if err := session.Activate(cs.ctx, cs.userID); err != nil {
		logger.Warn("websocket: activating room %s for %s failed: %v", roomID, cs.userID, err)
		cs.sendError("Chat room could not be opened")
		return
	}

	cs.mu.Lock()
	cs.session = session
	cs.mu.Unlock()

	cs.handler.wsManager.JoinChatRoom(roomID, cs.userID)
	go cs.forwardMessages(session)
}

func (cs *connSync) leaveRoom() {
	session := cs.currentSession()
	if session.State() != usecase.SessionActive {
		return
	}
	roomID := session.RoomID()
	if err := session.LeaveRoom(cs.ctx); err != nil {
		cs.sendError("Chat room could not be left")
		return
	}
	cs.handler.wsManager.LeaveChatRoom(roomID, cs.userID)
	cs.send(ws.Frame{Type: ws.EventRoomClosed, RoomID: roomID})
}

func (cs *connSync) closeSession() {
	cs.mu.Lock()
	session := cs.session
	cs.session = nil
	cs.mu.Unlock()

	if session != nil {
		cs.handler.wsManager.LeaveChatRoom(session.RoomID(), cs.userID)
		session.Close()
	}
}

// currentSession never returns nil; a fresh unresolved session is a
// harmless no-op target for send commands.
func (cs *connSync) currentSession() *usecase.ChatRoomSession {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.session == nil {
		return usecase.NewChatRoomSession(cs.handler.chatUseCase, cs.handler.roomRepo)
	}
	return cs.session
}

func (cs *connSync) forwardRoomList() {
	for views := range cs.index.Updates() {
		_, unread := cs.index.Snapshot()
		cs.send(ws.Frame{
			Type: ws.EventRoomList,
			Data: ws.RoomListData{Rooms: views, UnreadCount: unread},
		})
	}
}

func (cs *connSync) forwardMessages(session *usecase.ChatRoomSession) {
	for batch := range session.Updates() {
		cs.send(ws.Frame{
			Type:   ws.EventMessages,
			RoomID: session.RoomID(),
			Data:   batch,
		})
	}
}

func (cs *connSync) send(frame ws.Frame) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return
	}
	cs.handler.wsManager.SendToUser(cs.userID, raw)
}

func (cs *connSync) sendError(message string) {
	cs.send(ws.Frame{Type: ws.EventError, Data: ws.ErrorData{Message: message}})
}
