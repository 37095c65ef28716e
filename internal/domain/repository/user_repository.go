package repository

import (
	"context"

	"tukarin/internal/domain/entity"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.UserProfile, error)

	// BatchGetProfiles fetches all requested profiles in a single
	// request. Missing ids are simply absent from the result; callers
	// treat an absent entry as "unknown user", not as an error.
	BatchGetProfiles(ctx context.Context, ids []string) (map[string]*entity.UserProfile, error)
}
