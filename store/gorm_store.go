package store

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/better-analytics/better-analytics-go/models"
)

// GormStore implements EventStore and SiteStore using GORM.
type GormStore struct {
	db *gorm.DB
}

var (
	_ EventStore = (*GormStore)(nil)
	_ SiteStore  = (*GormStore)(nil)
)

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// SaveEvent writes one processed event row. A write failure propagates
// to the caller; it is the last step of ingestion and must be visible.
func (s *GormStore) SaveEvent(ctx context.Context, event *models.ProcessedEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return errors.Wrap(err, "failed to save event")
	}
	return nil
}

// SaveBatch writes a batch of processed events in one transaction.
func (s *GormStore) SaveBatch(ctx context.Context, events []*models.ProcessedEvent) error {
	if len(events) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, event := range events {
			if err := tx.Create(event).Error; err != nil {
				return errors.Wrap(err, "failed to save event in batch")
			}
		}
		return nil
	})
}

// FindByKey returns the site registered under key.
func (s *GormStore) FindByKey(ctx context.Context, key string) (*models.Site, error) {
	var site models.Site
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&site).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, errors.Wrap(err, "failed to look up site")
	}
	return &site, nil
}
