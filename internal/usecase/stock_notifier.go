package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tukarin/internal/domain/repository"
	ws "tukarin/internal/infrastructure/websocket"
	"tukarin/pkg/logger"
)

// stockAlertWindow is how far back a restock still counts. The poll only
// asks the store for restocks inside the window, and dedup entries older
// than it are pruned, so the alerted set stays bounded.
const stockAlertWindow = 24 * time.Hour

// StockNotifier is the periodic "item back in stock" alert task. It is
// deliberately decoupled from the chat pipeline: a plain interval poll
// with a dedup set, not a live subscription.
type StockNotifier struct {
	listings  repository.ListingRepository
	wsManager *ws.Manager
	interval  time.Duration

	mu      sync.Mutex
	alerted map[string]time.Time // listingID + ":" + userID -> restock announced
}

func NewStockNotifier(listings repository.ListingRepository, wsManager *ws.Manager, interval time.Duration) *StockNotifier {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StockNotifier{
		listings:  listings,
		wsManager: wsManager,
		interval:  interval,
		alerted:   make(map[string]time.Time),
	}
}

// Start polls until ctx is cancelled.
func (n *StockNotifier) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(n.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n.poll(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (n *StockNotifier) poll(ctx context.Context) {
	cutoff := time.Now().Add(-stockAlertWindow)

	restocked, err := n.listings.ListBackInStock(ctx, cutoff)
	if err != nil {
		logger.Warn("stock notifier: poll failed: %v", err)
		return
	}

	for _, listing := range restocked {
		frame, err := json.Marshal(ws.Frame{
			Type: ws.EventStockAlert,
			Data: ws.StockAlertData{
				ListingID: listing.ID,
				Title:     listing.Title,
			},
		})
		if err != nil {
			continue
		}
		for _, watcherID := range listing.WatcherIDs {
			if !n.claim(listing.ID+":"+watcherID, listing.RestockedAt) {
				continue
			}
			n.wsManager.SendToUser(watcherID, frame)
		}
	}

	n.prune(cutoff)
}

// claim records the restock for one watcher. Returns false when this
// restock was already announced; a later restock of the same listing
// alerts again.
func (n *StockNotifier) claim(key string, restockedAt time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.alerted[key]; ok && !restockedAt.After(last) {
		return false
	}
	n.alerted[key] = restockedAt
	return true
}

// prune drops dedup entries that fell out of the poll window.
func (n *StockNotifier) prune(cutoff time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for key, at := range n.alerted {
		if at.Before(cutoff) {
			delete(n.alerted, key)
		}
	}
}
