package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"tukarin/internal/domain/entity"
	"tukarin/internal/usecase"
	"tukarin/pkg/errors"
	"tukarin/pkg/response"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type initiateChatRequest struct {
	SellerID  string `json:"seller_id" validate:"required"`
	ListingID string `json:"listing_id" validate:"required"`
}

type sendMessageRequest struct {
	Type        string   `json:"type" validate:"required,oneof=text image location"`
	Body        string   `json:"body,omitempty"`
	ImageKey    string   `json:"image_key,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	AddressName string   `json:"address_name,omitempty"`
}

// InitiateChat opens or reopens the room between the caller and a seller
// about a listing and returns its deterministic id.
func (h *ChatHandler) InitiateChat(c echo.Context) error {
	var req initiateChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	result, err := h.chatUseCase.InitiateChat(c.Request().Context(), userID, usecase.InitiateChatInput{
		SellerID:  req.SellerID,
		ListingID: req.ListingID,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, result)
}

// GetUserRooms returns the caller's visible rooms with unread flags and
// resolved counterpart profiles.
func (h *ChatHandler) GetUserRooms(c echo.Context) error {
	userID := c.Get("uid").(string)

	rooms, unread, err := h.chatUseCase.GetUserRooms(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"rooms":        rooms,
		"unread_count": unread,
	})
}

func (h *ChatHandler) GetRoomByID(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	room, err := h.chatUseCase.GetRoomByID(c.Request().Context(), userID, roomID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, room)
}

// SendMessage dispatches on the message variant.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()

	var message *entity.Message
	var err error
	switch entity.MessageType(req.Type) {
	case entity.MessageTypeText:
		message, err = h.chatUseCase.SendText(ctx, userID, roomID, req.Body)
	case entity.MessageTypeImage:
		message, err = h.chatUseCase.SendImage(ctx, userID, roomID, req.ImageKey)
	case entity.MessageTypeLocation:
		if req.Latitude == nil || req.Longitude == nil {
			return response.Error(c, errors.BadRequest("Coordinates are required", nil))
		}
		message, err = h.chatUseCase.SendLocation(ctx, userID, roomID, &entity.Location{
			Latitude:    *req.Latitude,
			Longitude:   *req.Longitude,
			AddressName: req.AddressName,
		})
	default:
		return response.Error(c, errors.BadRequest("Unknown message type", nil))
	}
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ChatHandler) GetRoomMessages(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	limit := 50
	offset := 0
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	messages, total, err := h.chatUseCase.GetRoomMessages(c.Request().Context(), userID, roomID, limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, limit, offset)
}

// MarkRoomRead moves the caller's read receipt to now.
func (h *ChatHandler) MarkRoomRead(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	if err := h.chatUseCase.MarkRoomRead(c.Request().Context(), userID, roomID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}

// LeaveRoom soft-hides the room for the caller; once every participant
// has left, the room and its history are deleted.
func (h *ChatHandler) LeaveRoom(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	if err := h.chatUseCase.HideRoom(c.Request().Context(), userID, roomID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"message": "Chat room left"})
}
