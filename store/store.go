package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/better-analytics/better-analytics-go/models"
)

// ErrSiteNotFound is returned when no site exists under a key.
var ErrSiteNotFound = errors.New("site not found")

// EventStore persists processed analytics events.
type EventStore interface {
	// SaveEvent writes exactly one processed event row.
	SaveEvent(ctx context.Context, event *models.ProcessedEvent) error

	// SaveBatch writes a batch of processed events in one transaction.
	SaveBatch(ctx context.Context, events []*models.ProcessedEvent) error
}

// SiteStore looks up tenant records.
type SiteStore interface {
	// FindByKey returns the site registered under key, or ErrSiteNotFound.
	FindByKey(ctx context.Context, key string) (*models.Site, error)
}
