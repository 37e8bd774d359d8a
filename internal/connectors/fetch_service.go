package connectors

import (
	"context"
	"fmt"

	"buildmart/internal/storage"
)

// FetchService combines a mail connector with the raw-mail store: pull a
// batch from the inbox, persist every message, report the counts.
type FetchService struct {
	connector MailConnector
	store     *MailStoreService
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch inbox: %w", err)
	}

	result := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		if _, err := s.store.Store(ctx, msg); err != nil {
			return result, fmt.Errorf("store message %s: %w", msg.MessageID, err)
		}
		result.Stored++
	}
	return result, nil
}
