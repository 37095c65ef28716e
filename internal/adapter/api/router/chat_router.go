package router

import (
	"github.com/labstack/echo/v4"

	"tukarin/internal/adapter/api/handler"
	"tukarin/internal/adapter/api/middleware"
)

// SetupChatRouter sets up all chat-related routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(authMiddleware.Authenticate) // All chat endpoints require authentication

	// Room management
	chatGroup.POST("", chatHandler.InitiateChat)        // POST /v1/chats - Open or reuse a chat about a listing
	chatGroup.GET("", chatHandler.GetUserRooms)         // GET /v1/chats - Room list with unread count
	chatGroup.GET("/:id", chatHandler.GetRoomByID)      // GET /v1/chats/:id
	chatGroup.PUT("/:id/read", chatHandler.MarkRoomRead) // PUT /v1/chats/:id/read
	chatGroup.POST("/:id/leave", chatHandler.LeaveRoom)  // POST /v1/chats/:id/leave - Hide room for caller

	// Message management
	chatGroup.POST("/:id/messages", chatHandler.SendMessage)    // POST /v1/chats/:id/messages
	chatGroup.GET("/:id/messages", chatHandler.GetRoomMessages) // GET /v1/chats/:id/messages
}
