package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"tukarin/internal/domain/service"
)

// CloudStorageClient backs image messages: it hands out short-lived
// signed PUT grants and resolves persisted object keys to fetchable URLs.
type CloudStorageClient struct {
	client        *storage.Client
	bucketName    string
	publicBaseURL string
	httpClient    *http.Client
}

func NewCloudStorageClient(ctx context.Context, bucketName, publicBaseURL, credentialsPath string) (*CloudStorageClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("https://storage.googleapis.com/%s", bucketName)
	}

	return &CloudStorageClient{
		client:        client,
		bucketName:    bucketName,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		httpClient:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// RequestUploadGrant returns a pre-authorized PUT target for one object.
// The object key is generated here; nothing is written until the caller
// uploads against the grant.
func (c *CloudStorageClient) RequestUploadGrant(ctx context.Context, fileName, contentType string) (*service.UploadGrant, error) {
	objectKey := fmt.Sprintf("chat-images/%s-%s%s",
		uuid.New().String(),
		time.Now().Format("20060102150405"),
		extensionFor(contentType))

	opts := &storage.SignedURLOptions{
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     time.Now().Add(15 * time.Minute),
	}

	uploadURL, err := c.client.Bucket(c.bucketName).SignedURL(objectKey, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signed URL: %v", err)
	}

	return &service.UploadGrant{
		UploadURL: uploadURL,
		ObjectKey: objectKey,
	}, nil
}

// Upload streams raw bytes to a previously issued grant.
func (c *CloudStorageClient) Upload(ctx context.Context, grant *service.UploadGrant, contentType string, data io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, grant.UploadURL, data)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload rejected with status %d", resp.StatusCode)
	}

	return nil
}

// ResolveKeyToURL maps an object key to a fetchable URL. Pure and
// deterministic given configuration; message records never store URLs, so
// the storage location can move without a history migration.
func (c *CloudStorageClient) ResolveKeyToURL(objectKey string) string {
	return c.publicBaseURL + "/" + strings.TrimPrefix(objectKey, "/")
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
