package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/better-analytics/better-analytics-go/analytics"
	"github.com/better-analytics/better-analytics-go/cache"
	"github.com/better-analytics/better-analytics-go/models"
	"github.com/better-analytics/better-analytics-go/store"
)

// Boundary errors. Validation is the one place in the pipeline where
// failure is not silently absorbed: accepting invalid data would corrupt
// the tenant's dataset.
var (
	ErrInvalidEvent     = errors.New("invalid event payload")
	ErrDomainNotAllowed = errors.New("origin not allowed for site")
)

const siteCacheTTL = 5 * time.Minute

// EventIndexer projects accepted events into a search index.
type EventIndexer interface {
	IndexEvent(ctx context.Context, event *models.ProcessedEvent) error
}

// EventForwarder publishes accepted events for downstream consumers.
type EventForwarder interface {
	Forward(ctx context.Context, event *models.ProcessedEvent) error
}

// RequestContext carries the transport-level signals of a collection
// request, decoupled from any particular HTTP framework.
type RequestContext struct {
	Headers   http.Header
	Origin    string
	Referer   string
	UserAgent string
}

// Processor validates, enriches and persists incoming events. The
// persistence write is the only step whose failure propagates; user
// agent parsing and geolocation degrade to null fields.
type Processor struct {
	events    store.EventStore
	sites     store.SiteStore
	cache     cache.RedisClient
	geo       *Geolocator
	indexer   EventIndexer
	forwarder EventForwarder
	ipHeaders []string
	validate  *validator.Validate
}

// NewProcessor creates a Processor. The cache, indexer and forwarder are
// optional; a nil value disables that concern.
func NewProcessor(events store.EventStore, sites store.SiteStore, geo *Geolocator, ipHeaders []string) *Processor {
	return &Processor{
		events:    events,
		sites:     sites,
		geo:       geo,
		ipHeaders: ipHeaders,
		validate:  validator.New(),
	}
}

// WithCache attaches a site-settings cache.
func (p *Processor) WithCache(c cache.RedisClient) *Processor {
	p.cache = c
	return p
}

// WithIndexer attaches a search projection.
func (p *Processor) WithIndexer(indexer EventIndexer) *Processor {
	p.indexer = indexer
	return p
}

// WithForwarder attaches a downstream event forwarder.
func (p *Processor) WithForwarder(forwarder EventForwarder) *Processor {
	p.forwarder = forwarder
	return p
}

// Process runs one incoming event through the full pipeline and returns
// the persisted record.
func (p *Processor) Process(ctx context.Context, ev *analytics.Event, req RequestContext) (*models.ProcessedEvent, error) {
	if ev == nil {
		return nil, ErrInvalidEvent
	}
	if err := p.validate.Struct(ev); err != nil {
		return nil, errors.Wrap(ErrInvalidEvent, err.Error())
	}

	if err := p.checkDomainPolicy(ctx, ev.Site, req); err != nil {
		return nil, err
	}

	record := p.enrich(ctx, ev, req)

	if err := p.events.SaveEvent(ctx, record); err != nil {
		return nil, err
	}

	p.project(ctx, record)
	return record, nil
}

// ProcessBatch runs each event of a batched request through the
// pipeline. Events failing validation or domain policy are skipped; a
// persistence failure stops the batch and propagates.
func (p *Processor) ProcessBatch(ctx context.Context, events []*analytics.Event, req RequestContext) ([]*models.ProcessedEvent, error) {
	accepted := make([]*models.ProcessedEvent, 0, len(events))
	for _, ev := range events {
		record, err := p.Process(ctx, ev, req)
		if err != nil {
			if errors.Is(err, ErrInvalidEvent) || errors.Is(err, ErrDomainNotAllowed) {
				log.Warn().Err(err).Msg("skipping rejected event in batch")
				continue
			}
			return accepted, err
		}
		accepted = append(accepted, record)
	}
	return accepted, nil
}

// checkDomainPolicy enforces the per-tenant allow-list. A site with no
// registered record or with protection disabled accepts any origin.
func (p *Processor) checkDomainPolicy(ctx context.Context, siteKey string, req RequestContext) error {
	site, err := p.lookupSite(ctx, siteKey)
	if err != nil {
		if errors.Is(err, store.ErrSiteNotFound) {
			return nil
		}
		// Policy lookup failures never reject traffic.
		log.Warn().Err(err).Str("site", siteKey).Msg("site lookup failed, skipping domain policy")
		return nil
	}
	if !site.DomainProtection {
		return nil
	}
	if site.OriginAllowed(req.Origin) || site.OriginAllowed(req.Referer) {
		return nil
	}
	return ErrDomainNotAllowed
}

func (p *Processor) lookupSite(ctx context.Context, key string) (*models.Site, error) {
	cacheKey := "ba:site:" + key

	if p.cache != nil {
		if raw, err := p.cache.Get(ctx, cacheKey); err == nil {
			var site models.Site
			if json.Unmarshal([]byte(raw), &site) == nil {
				return &site, nil
			}
		}
	}

	site, err := p.sites.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if data, err := json.Marshal(site); err == nil {
			if err := p.cache.Set(ctx, cacheKey, string(data), siteCacheTTL); err != nil {
				log.Debug().Err(err).Msg("failed to cache site settings")
			}
		}
	}
	return site, nil
}

// enrich flattens the envelope and attaches parsed user agent,
// resolved client IP and geolocation fields.
func (p *Processor) enrich(ctx context.Context, ev *analytics.Event, req RequestContext) *models.ProcessedEvent {
	record := &models.ProcessedEvent{
		ID:        uuid.New().String(),
		Site:      ev.Site,
		Event:     ev.Event,
		Timestamp: eventTime(ev.Timestamp),
		URL:       ev.URL,
		Referrer:  ev.Referrer,
		SessionID: ev.SessionID,
		DeviceID:  ev.DeviceID,
		UserID:    ev.UserID,
		Origin:    req.Origin,
	}

	if ev.Device != nil {
		record.UserAgent = ev.Device.UserAgent
		record.ScreenWidth = ev.Device.ScreenWidth
		record.ScreenHeight = ev.Device.ScreenHeight
		record.ViewportWidth = ev.Device.ViewportWidth
		record.ViewportHeight = ev.Device.ViewportHeight
		record.Language = ev.Device.Language
		record.Timezone = ev.Device.Timezone
		record.ConnectionType = ev.Device.ConnectionType
	}
	if ev.Page != nil {
		record.PageTitle = ev.Page.Title
		record.Pathname = ev.Page.Pathname
		record.Hostname = ev.Page.Hostname
		record.LoadTime = ev.Page.LoadTime
	}
	if ev.UTM != nil {
		record.UTMSource = ev.UTM.Source
		record.UTMMedium = ev.UTM.Medium
		record.UTMCampaign = ev.UTM.Campaign
		record.UTMTerm = ev.UTM.Term
		record.UTMContent = ev.UTM.Content
	}
	if ev.Server != nil {
		record.Runtime = ev.Server.Runtime
		record.Framework = ev.Server.Framework
		if record.Referrer == "" {
			record.Referrer = ev.Server.Referer
		}
	}
	if ev.User != nil && record.UserID == "" {
		record.UserID = ev.User.ID
	}
	if len(ev.Props) > 0 {
		if data, err := json.Marshal(ev.Props); err == nil {
			record.Props = data
		}
	}

	rawUA := req.UserAgent
	if rawUA == "" {
		rawUA = record.UserAgent
	}
	if record.UserAgent == "" {
		record.UserAgent = rawUA
	}
	if parsed := ParseUserAgent(rawUA); parsed != nil {
		record.Browser = optional(parsed.Browser)
		record.BrowserVersion = optional(parsed.BrowserVersion)
		record.OS = optional(parsed.OS)
		record.OSVersion = optional(parsed.OSVersion)
		record.Device = optional(parsed.Device)
		record.DeviceModel = optional(parsed.DeviceModel)
	}

	ip := ExtractClientIP(req.Headers, p.ipHeaders)
	if ip == "" && ev.Server != nil {
		ip = ev.Server.IP
	}
	record.IP = ip

	if p.geo != nil {
		if loc := p.geo.Lookup(ctx, ip); loc.Found {
			record.Country = optional(loc.Country)
			record.Region = optional(loc.Region)
			record.City = optional(loc.City)
			record.Latitude = &loc.Latitude
			record.Longitude = &loc.Longitude
		}
	}

	return record
}

// project runs the best-effort post-persistence steps. Neither a search
// indexing nor a forwarding failure ever fails the ingestion.
func (p *Processor) project(ctx context.Context, record *models.ProcessedEvent) {
	if p.indexer != nil {
		if err := p.indexer.IndexEvent(ctx, record); err != nil {
			log.Error().Err(err).Str("event_id", record.ID).Msg("failed to index event")
		}
	}
	if p.forwarder != nil {
		if err := p.forwarder.Forward(ctx, record); err != nil {
			log.Error().Err(err).Str("event_id", record.ID).Msg("failed to forward event")
		}
	}
}

func eventTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
