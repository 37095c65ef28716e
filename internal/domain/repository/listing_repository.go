package repository

import (
	"context"
	"time"

	"tukarin/internal/domain/entity"
)

type ListingRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Listing, error)

	// ListBackInStock returns listings restocked after since that
	// currently have stock and at least one watcher. Used by the
	// periodic stock-alert poller.
	ListBackInStock(ctx context.Context, since time.Time) ([]*entity.Listing, error)
}
