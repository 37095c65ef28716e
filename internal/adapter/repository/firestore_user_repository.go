package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tukarin/internal/domain/entity"
	"tukarin/internal/domain/repository"
	"tukarin/pkg/errors"
)

const usersCollection = "users"

type firestoreUserRepository struct {
	client *firestore.Client
}

func NewFirestoreUserRepository(client *firestore.Client) repository.UserRepository {
	return &firestoreUserRepository{
		client: client,
	}
}

func (r *firestoreUserRepository) GetByID(ctx context.Context, id string) (*entity.UserProfile, error) {
	doc, err := r.client.Collection(usersCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user", err)
	}

	var profile entity.UserProfile
	if err := doc.DataTo(&profile); err != nil {
		return nil, errors.Internal("Failed to parse user data", err)
	}
	profile.ID = doc.Ref.ID

	return &profile, nil
}

// BatchGetProfiles is a single round trip regardless of the number of ids.
// Missing documents are left out of the result rather than reported.
func (r *firestoreUserRepository) BatchGetProfiles(ctx context.Context, ids []string) (map[string]*entity.UserProfile, error) {
	profiles := make(map[string]*entity.UserProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, r.client.Collection(usersCollection).Doc(id))
	}

	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, errors.Internal("Failed to batch fetch users", err)
	}

	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		var profile entity.UserProfile
		if err := doc.DataTo(&profile); err != nil {
			continue
		}
		profile.ID = doc.Ref.ID
		profiles[profile.ID] = &profile
	}

	return profiles, nil
}
