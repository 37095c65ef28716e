package router

import (
	"github.com/labstack/echo/v4"

	"tukarin/internal/adapter/api/handler"
	"tukarin/internal/adapter/api/middleware"
)

func Setup(
	e *echo.Echo,
	authMiddleware *middleware.AuthMiddleware,
	chatHandler *handler.ChatHandler,
	uploadHandler *handler.UploadHandler,
	wsHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
) {
	SetupChatRouter(e, chatHandler, authMiddleware)
	SetupUploadRouter(e, uploadHandler, authMiddleware)
	SetupWebSocketRouter(e, wsHandler)
	SetupHealthRouter(e, healthHandler)
}
