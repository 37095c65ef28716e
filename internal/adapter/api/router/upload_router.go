package router

import (
	"github.com/labstack/echo/v4"

	"tukarin/internal/adapter/api/handler"
	"tukarin/internal/adapter/api/middleware"
)

func SetupUploadRouter(e *echo.Echo, uploadHandler *handler.UploadHandler, authMiddleware *middleware.AuthMiddleware) {
	uploadGroup := e.Group("/v1/uploads")
	uploadGroup.Use(authMiddleware.Authenticate)

	// The client uploads to the granted URL directly, so this is the
	// only upload endpoint the server exposes.
	uploadGroup.POST("/grant", uploadHandler.RequestGrant) // POST /v1/uploads/grant
}
