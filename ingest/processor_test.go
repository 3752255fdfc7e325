package ingest

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/better-analytics/better-analytics-go/analytics"
	"github.com/better-analytics/better-analytics-go/models"
	"github.com/better-analytics/better-analytics-go/store"
)

// Mock stores for testing
type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) SaveEvent(ctx context.Context, event *models.ProcessedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventStore) SaveBatch(ctx context.Context, events []*models.ProcessedEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

type MockSiteStore struct {
	mock.Mock
}

func (m *MockSiteStore) FindByKey(ctx context.Context, key string) (*models.Site, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Site), args.Error(1)
}

func newTestProcessor(events *MockEventStore, sites *MockSiteStore) *Processor {
	// No geolocator: lookups are skipped, geo fields stay null.
	return NewProcessor(events, sites, nil, nil)
}

func validEvent() *analytics.Event {
	return &analytics.Event{
		Event:     "signup",
		Timestamp: time.Now().UnixMilli(),
		Site:      "acme",
		URL:       "https://acme.test/pricing",
		SessionID: "s1",
		DeviceID:  "d1",
		Props:     map[string]interface{}{"plan": "pro"},
	}
}

func TestProcessValidEvent(t *testing.T) {
	events := new(MockEventStore)
	sites := new(MockSiteStore)
	sites.On("FindByKey", mock.Anything, "acme").Return(nil, store.ErrSiteNotFound)
	events.On("SaveEvent", mock.Anything, mock.AnythingOfType("*models.ProcessedEvent")).Return(nil)

	processor := newTestProcessor(events, sites)
	record, err := processor.Process(context.Background(), validEvent(), RequestContext{UserAgent: chromeUA})

	require.NoError(t, err)
	require.NotNil(t, record)
	require.NotEmpty(t, record.ID)
	require.Equal(t, "acme", record.Site)
	require.Equal(t, "signup", record.Event)
	require.Equal(t, "s1", record.SessionID)
	require.JSONEq(t, `{"plan":"pro"}`, string(record.Props))

	// User agent enrichment
	require.NotNil(t, record.Browser)
	require.Equal(t, "Chrome", *record.Browser)
	require.NotNil(t, record.Device)
	require.Equal(t, "desktop", *record.Device)

	events.AssertExpectations(t)
}

func TestProcessRejectsMissingSite(t *testing.T) {
	events := new(MockEventStore)
	sites := new(MockSiteStore)

	processor := newTestProcessor(events, sites)
	ev := validEvent()
	ev.Site = ""

	_, err := processor.Process(context.Background(), ev, RequestContext{})
	require.ErrorIs(t, err, ErrInvalidEvent)

	// Rejected before any enrichment or persistence
	events.AssertNotCalled(t, "SaveEvent", mock.Anything, mock.Anything)
}

func TestProcessRejectsMissingEventName(t *testing.T) {
	processor := newTestProcessor(new(MockEventStore), new(MockSiteStore))
	ev := validEvent()
	ev.Event = ""

	_, err := processor.Process(context.Background(), ev, RequestContext{})
	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestProcessGeoDegradesToNull(t *testing.T) {
	events := new(MockEventStore)
	sites := new(MockSiteStore)
	sites.On("FindByKey", mock.Anything, "acme").Return(nil, store.ErrSiteNotFound)
	events.On("SaveEvent", mock.Anything, mock.AnythingOfType("*models.ProcessedEvent")).Return(nil)

	// Geolocator pointed at an unreachable endpoint with a short timeout.
	processor := NewProcessor(events, sites, NewGeolocator("http://127.0.0.1:1", 50*time.Millisecond), nil)

	headers := http.Header{}
	headers.Set("X-Forwarded-For", "203.0.113.9")

	record, err := processor.Process(context.Background(), validEvent(), RequestContext{Headers: headers})

	require.NoError(t, err)
	require.Equal(t, "203.0.113.9", record.IP)
	require.Nil(t, record.Country)
	require.Nil(t, record.Region)
	require.Nil(t, record.City)
	require.Nil(t, record.Latitude)
	require.Nil(t, record.Longitude)
}

func TestProcessMissingUserAgentNullParse(t *testing.T) {
	events := new(MockEventStore)
	sites := new(MockSiteStore)
	sites.On("FindByKey", mock.Anything, "acme").Return(nil, store.ErrSiteNotFound)
	events.On("SaveEvent", mock.Anything, mock.AnythingOfType("*models.ProcessedEvent")).Return(nil)

	processor := newTestProcessor(events, sites)
	record, err := processor.Process(context.Background(), validEvent(), RequestContext{})

	require.NoError(t, err)
	require.Nil(t, record.Browser)
	require.Nil(t, record.OS)
	require.Nil(t, record.Device)
}

func TestProcessDomainProtectionRejects(t *testing.T) {
	site := &models.Site{Key: "acme", DomainProtection: true}
	require.NoError(t, site.SetDomains([]string{"acme.test"}))

	events := new(MockEventStore)
	sites := new(MockSiteStore)
	sites.On("FindByKey", mock.Anything, "acme").Return(site, nil)

	processor := newTestProcessor(events, sites)
	_, err := processor.Process(context.Background(), validEvent(), RequestContext{Origin: "https://evil.example"})

	require.ErrorIs(t, err, ErrDomainNotAllowed)
	events.AssertNotCalled(t, "SaveEvent", mock.Anything, mock.Anything)
}

func TestProcessDomainProtectionAllowsCaseInsensitive(t *testing.T) {
	site := &models.Site{Key: "acme", DomainProtection: true}
	require.NoError(t, site.SetDomains([]string{"Acme.Test"}))

	events := new(MockEventStore)
	sites := new(MockSiteStore)
	sites.On("FindByKey", mock.Anything, "acme").Return(site, nil)
	events.On("SaveEvent", mock.Anything, mock.AnythingOfType("*models.ProcessedEvent")).Return(nil)

	processor := newTestProcessor(events, sites)
	_, err := processor.Process(context.Background(), validEvent(), RequestContext{Referer: "https://ACME.TEST/pricing"})

	require.NoError(t, err)
}

func TestProcessStoreFailurePropagates(t *testing.T) {
	events := new(MockEventStore)
	sites := new(MockSiteStore)
	sites.On("FindByKey", mock.Anything, "acme").Return(nil, store.ErrSiteNotFound)
	events.On("SaveEvent", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	processor := newTestProcessor(events, sites)
	_, err := processor.Process(context.Background(), validEvent(), RequestContext{})

	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}

func TestProcessBatchSkipsInvalid(t *testing.T) {
	events := new(MockEventStore)
	sites := new(MockSiteStore)
	sites.On("FindByKey", mock.Anything, "acme").Return(nil, store.ErrSiteNotFound)
	events.On("SaveEvent", mock.Anything, mock.AnythingOfType("*models.ProcessedEvent")).Return(nil)

	processor := newTestProcessor(events, sites)

	invalid := validEvent()
	invalid.Site = ""
	accepted, err := processor.ProcessBatch(context.Background(),
		[]*analytics.Event{validEvent(), invalid, validEvent()}, RequestContext{})

	require.NoError(t, err)
	require.Len(t, accepted, 2)
}

func TestProcessProjectionFailureDoesNotFailIngestion(t *testing.T) {
	events := new(MockEventStore)
	sites := new(MockSiteStore)
	sites.On("FindByKey", mock.Anything, "acme").Return(nil, store.ErrSiteNotFound)
	events.On("SaveEvent", mock.Anything, mock.AnythingOfType("*models.ProcessedEvent")).Return(nil)

	processor := newTestProcessor(events, sites).
		WithIndexer(failingProjection{}).
		WithForwarder(failingProjection{})

	_, err := processor.Process(context.Background(), validEvent(), RequestContext{})
	require.NoError(t, err)
}

type failingProjection struct{}

func (failingProjection) IndexEvent(ctx context.Context, ev *models.ProcessedEvent) error {
	return errors.New("elasticsearch down")
}

func (failingProjection) Forward(ctx context.Context, ev *models.ProcessedEvent) error {
	return errors.New("service bus down")
}
