package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tukarin/internal/domain/entity"
	"tukarin/internal/domain/repository"
	"tukarin/pkg/errors"
)

const listingsCollection = "listings"

type firestoreListingRepository struct {
	client *firestore.Client
}

func NewFirestoreListingRepository(client *firestore.Client) repository.ListingRepository {
	return &firestoreListingRepository{
		client: client,
	}
}

func (r *firestoreListingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	doc, err := r.client.Collection(listingsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Listing", err)
		}
		return nil, errors.Internal("Failed to get listing", err)
	}

	var listing entity.Listing
	if err := doc.DataTo(&listing); err != nil {
		return nil, errors.Internal("Failed to parse listing data", err)
	}
	listing.ID = doc.Ref.ID

	return &listing, nil
}

func (r *firestoreListingRepository) ListBackInStock(ctx context.Context, since time.Time) ([]*entity.Listing, error) {
	// One range filter per query; stock and watchers are checked in
	// process.
	query := r.client.Collection(listingsCollection).Where("restockedAt", ">", since)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to query restocked listings", err)
	}

	var listings []*entity.Listing
	for _, doc := range docs {
		var listing entity.Listing
		if err := doc.DataTo(&listing); err != nil {
			log.Printf("Error parsing listing %s: %v", doc.Ref.ID, err)
			continue
		}
		if listing.Stock <= 0 || len(listing.WatcherIDs) == 0 {
			continue
		}
		listing.ID = doc.Ref.ID
		listings = append(listings, &listing)
	}

	return listings, nil
}
