package usecase

import (
	"context"

	"tukarin/internal/domain/entity"
	"tukarin/internal/domain/repository"
	"tukarin/pkg/logger"
)

// ParticipantResolver batch-resolves counterpart profiles for visible
// rooms. One lookup request per index refresh regardless of room count.
type ParticipantResolver struct {
	users repository.UserRepository
}

func NewParticipantResolver(users repository.UserRepository) *ParticipantResolver {
	return &ParticipantResolver{
		users: users,
	}
}

// Resolve deduplicates ids and fetches them in a single batch. It never
// fails the caller: on lookup error it returns an empty map and the room
// list degrades to rendering without profiles. A missing entry means
// "unknown user".
func (pr *ParticipantResolver) Resolve(ctx context.Context, ids []string) map[string]*entity.UserProfile {
	seen := make(map[string]bool, len(ids))
	dedup := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		dedup = append(dedup, id)
	}

	if len(dedup) == 0 {
		return map[string]*entity.UserProfile{}
	}

	profiles, err := pr.users.BatchGetProfiles(ctx, dedup)
	if err != nil {
		logger.Warn("participant resolver: batch lookup for %d users failed: %v", len(dedup), err)
		return map[string]*entity.UserProfile{}
	}

	return profiles
}
