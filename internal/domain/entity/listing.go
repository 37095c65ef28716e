package entity

import "time"

// Listing anchors a chat room to "what are we chatting about". The chat
// service only reads listings; the marketplace core owns them.
type Listing struct {
	ID          string    `json:"id" firestore:"id"`
	Title       string    `json:"title" firestore:"title"`
	SellerID    string    `json:"seller_id" firestore:"sellerId"`
	Price       int64     `json:"price" firestore:"price"`
	Stock       int       `json:"stock" firestore:"stock"`
	RestockedAt time.Time `json:"restocked_at,omitempty" firestore:"restockedAt,omitempty"`

	// WatcherIDs are users who asked to be told when the listing is back
	// in stock.
	WatcherIDs []string `json:"watcher_ids,omitempty" firestore:"watcherIds,omitempty"`
}
