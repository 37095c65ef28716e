package handler

import (
	"github.com/labstack/echo/v4"

	"tukarin/internal/usecase"
	"tukarin/pkg/response"
)

type UploadHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewUploadHandler(chatUseCase *usecase.ChatUseCase) *UploadHandler {
	return &UploadHandler{
		chatUseCase: chatUseCase,
	}
}

type uploadGrantRequest struct {
	FileName    string `json:"file_name" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
}

// RequestGrant hands out a pre-authorized upload target. The client PUTs
// the raw bytes to upload_url, then sends an image message carrying only
// object_key.
func (h *UploadHandler) RequestGrant(c echo.Context) error {
	var req uploadGrantRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	grant, err := h.chatUseCase.RequestUploadGrant(c.Request().Context(), req.FileName, req.ContentType)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, grant)
}
