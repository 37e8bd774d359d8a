package feed

import (
	"context"
	"time"

	"go.uber.org/zap"

	"buildmart/internal"
	"buildmart/internal/config"
	"buildmart/internal/storage"
)

type SyncService struct {
	db     *storage.DB
	client *Client
	log    *zap.Logger
}

func NewSyncService(db *storage.DB, cfg config.Config, log *zap.Logger) *SyncService {
	return &SyncService{db: db, client: NewClient(cfg), log: log}
}

// FullSync mirrors the entire feed into the local catalog. New products
// arrive with pending status; existing moderation decisions survive.
func (s *SyncService) FullSync(ctx context.Context) (int, error) {
	records, err := s.client.FetchAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.store(ctx, records); err != nil {
		return 0, err
	}
	_ = s.db.SetMetadata(ctx, "feed.last_full_sync", time.Now().UTC().Format(time.RFC3339))
	s.log.Info("feed full sync done", zap.Int("products", len(records)))
	return len(records), nil
}

// IncrementalSync mirrors only the products changed in the last N hours.
func (s *SyncService) IncrementalSync(ctx context.Context, hours int) (int, error) {
	records, err := s.client.FetchUpdatedSince(ctx, hours)
	if err != nil {
		return 0, err
	}
	if len(records) > 0 {
		if err := s.store(ctx, records); err != nil {
			return 0, err
		}
	}
	_ = s.db.SetMetadata(ctx, "feed.last_incremental_sync", time.Now().UTC().Format(time.RFC3339))
	s.log.Info("feed incremental sync done", zap.Int("products", len(records)))
	return len(records), nil
}

func (s *SyncService) store(ctx context.Context, records []Record) error {
	seenSuppliers := map[int64]struct{}{}
	products := make([]internal.Product, 0, len(records))

	for _, record := range records {
		if _, ok := seenSuppliers[record.Supplier.ID]; !ok {
			if _, err := s.db.UpsertSupplier(ctx, record.Supplier); err != nil {
				return err
			}
			seenSuppliers[record.Supplier.ID] = struct{}{}
		}
		products = append(products, record.Product)
	}

	return s.db.UpsertProducts(ctx, products)
}
