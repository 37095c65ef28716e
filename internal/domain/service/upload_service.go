package service

import (
	"context"
	"io"
)

// UploadGrant is a pre-authorized write target for exactly one object.
type UploadGrant struct {
	UploadURL string `json:"upload_url"`
	ObjectKey string `json:"object_key"`
}

// UploadService is the object-storage contract for image messages: grant
// first, raw upload second, and a pure key-to-URL resolver for readers.
// Only the object key is ever persisted in a message.
type UploadService interface {
	RequestUploadGrant(ctx context.Context, fileName, contentType string) (*UploadGrant, error)
	Upload(ctx context.Context, grant *UploadGrant, contentType string, data io.Reader) error
	ResolveKeyToURL(objectKey string) string
}
