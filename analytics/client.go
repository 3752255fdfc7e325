package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/better-analytics/better-analytics-go/analytics/adapters"
)

// DefaultEndpoint is the SaaS collection URL used when none is configured.
const DefaultEndpoint = "https://better-analytics.app/api/collect"

const serverUserAgent = "better-analytics-server/1.0"

// Mode controls transport behavior.
type Mode string

const (
	// ModeAuto resolves the mode from the runtime environment label.
	ModeAuto Mode = "auto"
	// ModeDevelopment logs events to the console and never touches the network.
	ModeDevelopment Mode = "development"
	// ModeProduction delivers events over HTTP.
	ModeProduction Mode = "production"
)

// Event kinds passed to the BeforeSend hook.
const (
	KindPageview = "pageview"
	KindEvent    = "event"
	KindIdentify = "identify"
)

// HookEvent is the typed wrapper handed to the BeforeSend hook.
type HookEvent struct {
	Type string
	Data *Event
}

// BeforeSendFunc transforms or vetoes an event prior to transport.
// Returning nil (or a wrapper with nil Data) cancels the event.
type BeforeSendFunc func(*HookEvent) *HookEvent

// BatchConfig enables batched delivery on the server variant.
type BatchConfig struct {
	// Size is the buffer threshold that triggers a flush. Default 10.
	Size int
	// Interval is the periodic flush interval. Default 5s.
	Interval time.Duration
	// MaxRetries bounds delivery attempts per batch. Default 3.
	MaxRetries int
}

// Config is the full configuration surface of the SDK.
type Config struct {
	// Site is the required tenant identifier. When missing every call
	// logs a warning and becomes a no-op.
	Site string

	// Endpoint overrides the collection URL. Defaults to DefaultEndpoint.
	Endpoint string

	// Mode selects transport behavior. ModeAuto infers it from
	// Runtime.Env: development and test map to development, everything
	// else to production.
	Mode Mode

	// Debug enables verbose diagnostics. It never affects delivery.
	Debug bool

	// BeforeSend is invoked once per event and may transform or veto it.
	BeforeSend BeforeSendFunc

	// APIKey adds a bearer Authorization header (server variant).
	APIKey string

	// Server marks the server variant: server headers, the _server
	// envelope marker and a server metadata section are attached.
	Server bool

	// Batch enables batched delivery when non-nil (server variant).
	Batch *BatchConfig

	// Runtime is the host runtime snapshot. Resolved once by the host
	// integration; the client never introspects the environment itself.
	Runtime RuntimeDescriptor

	// Storage backs persisted identity and the offline event buffer.
	// Nil means no persistence: identity degrades to the "ssr" sentinel
	// and failed sends are dropped instead of queued.
	Storage adapters.StorageAdapter

	// Online reports connectivity when set (mobile hosts wire this).
	// Offline events are buffered and replayed by ProcessEventQueue.
	Online func() bool

	// HTTPClient overrides the transport client, mainly for tests.
	HTTPClient *http.Client
}

// Client is an initialized SDK handle. Construct one with New; a new
// handle fully replaces any prior configuration, there is no merge.
type Client struct {
	cfg        Config
	mode       Mode
	endpoint   string
	identity   *IdentityStore
	collector  *Collector
	dispatcher *Dispatcher
	offline    *OfflineBuffer
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a Client from cfg, resolving the transport mode once.
func New(cfg Config) *Client {
	c := &Client{
		cfg:      cfg,
		endpoint: cfg.Endpoint,
		log:      log.With().Str("component", "better-analytics").Logger(),
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}

	c.mode = cfg.Mode
	if c.mode == "" || c.mode == ModeAuto {
		switch cfg.Runtime.Env {
		case EnvDevelopment, EnvTest:
			c.mode = ModeDevelopment
		default:
			c.mode = ModeProduction
		}
	}

	c.identity = NewIdentityStore(cfg.Storage, cfg.Runtime)
	c.collector = NewCollector(c.identity, cfg.Runtime)

	if cfg.Storage != nil {
		c.offline = NewOfflineBuffer(cfg.Storage)
	}

	c.httpClient = cfg.HTTPClient
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}

	if cfg.Batch != nil {
		c.dispatcher = NewDispatcher(*cfg.Batch, c.postBatch)
	}

	return c
}

// Mode returns the resolved transport mode.
func (c *Client) Mode() Mode {
	return c.mode
}

// Track composes and delivers a named event with optional properties.
func (c *Client) Track(name string, props map[string]interface{}) error {
	ev := c.compose(KindEvent, name, props)
	if ev == nil {
		return nil
	}
	return c.deliver(ev)
}

// TrackAsync delivers the event on a background goroutine, never
// blocking the caller on network I/O.
func (c *Client) TrackAsync(name string, props map[string]interface{}) {
	ev := c.compose(KindEvent, name, props)
	if ev == nil {
		return
	}
	go func() {
		_ = c.deliver(ev)
	}()
}

// Page tracks a pageview event.
func (c *Client) Page() error {
	ev := c.compose(KindPageview, "pageview", nil)
	if ev == nil {
		return nil
	}
	return c.deliver(ev)
}

// Identify associates subsequent events with a user and persists the
// user id for reuse.
func (c *Client) Identify(userID string, traits map[string]interface{}) error {
	if c.cfg.Site == "" {
		c.log.Warn().Msg("better-analytics: no site configured, event dropped")
		return nil
	}
	c.identity.SetUserID(userID)

	props := map[string]interface{}{"userId": userID}
	for k, v := range traits {
		props[k] = v
	}
	ev := c.compose(KindIdentify, "identify", props)
	if ev == nil {
		return nil
	}
	return c.deliver(ev)
}

// Flush forces delivery of any buffered batch (server variant).
func (c *Client) Flush() {
	if c.dispatcher != nil {
		c.dispatcher.Flush()
	}
}

// Close flushes and stops the batching dispatcher.
func (c *Client) Close() {
	if c.dispatcher != nil {
		c.dispatcher.Close()
	}
}

// HandleCall replays a queued pre-initialization call against the live
// client. It is the handler to pass to QueuingSink.ProcessQueue.
func (c *Client) HandleCall(call TrackCall) error {
	switch call.Type {
	case CallPageview:
		return c.Page()
	case CallIdentify:
		userID, _ := call.Props["userId"].(string)
		return c.Identify(userID, call.Props)
	default:
		return c.Track(call.Event, call.Props)
	}
}

// ProcessEventQueue replays events buffered while offline or after
// delivery failures. Context signals are re-collected at send time, only
// the original timestamp is preserved.
func (c *Client) ProcessEventQueue() {
	if c.offline == nil {
		return
	}
	c.offline.Drain(func(call TrackCall) error {
		ev := c.compose(kindForCall(call.Type), call.Event, call.Props)
		if ev == nil {
			return nil
		}
		ev.Timestamp = call.Timestamp
		return c.post(ev)
	})
}

// compose assembles the envelope for one event, applying the BeforeSend
// hook. It returns nil when the client is unconfigured or the hook
// vetoes the event.
func (c *Client) compose(kind, name string, props map[string]interface{}) *Event {
	if c.cfg.Site == "" {
		c.log.Warn().Msg("better-analytics: no site configured, event dropped")
		return nil
	}

	ctx := c.collector.Collect()

	ev := &Event{
		Event:     name,
		Timestamp: time.Now().UnixMilli(),
		Site:      c.cfg.Site,
		URL:       ctx.URL,
		Referrer:  ctx.Referrer,
		SessionID: ctx.SessionID,
		DeviceID:  ctx.DeviceID,
		UserID:    ctx.UserID,
		Device:    ctx.Device,
		Page:      ctx.Page,
		UTM:       ctx.UTM,
	}

	if len(props) > 0 {
		ev.Props = make(map[string]interface{}, len(props))
		for k, v := range props {
			ev.Props[k] = v
		}
	}

	if c.cfg.Server {
		ev.ServerOrigin = true
		ev.Server = &ServerInfo{
			Runtime:   c.cfg.Runtime.Runtime,
			Framework: c.cfg.Runtime.Framework,
			Referer:   c.cfg.Runtime.Referrer,
		}
		if ctx.UserID != "" {
			ev.User = &UserInfo{ID: ctx.UserID}
		}
	}

	ev.normalize()

	if c.cfg.BeforeSend != nil {
		out := c.cfg.BeforeSend(&HookEvent{Type: kind, Data: ev})
		if out == nil || out.Data == nil {
			if c.cfg.Debug {
				c.log.Debug().Str("event", name).Msg("event cancelled by beforeSend")
			}
			return nil
		}
		ev = out.Data
		ev.normalize()
	}

	return ev
}

// deliver routes a composed event through the configured transport.
func (c *Client) deliver(ev *Event) error {
	if c.mode == ModeDevelopment {
		data, _ := json.Marshal(ev)
		c.log.Info().
			Str("endpoint", c.endpoint).
			RawJSON("event", data).
			Msg("development mode, event not sent")
		return nil
	}

	// Opportunistically replay anything buffered while offline.
	if c.offline != nil && c.offline.Len() > 0 && c.online() {
		c.ProcessEventQueue()
	}

	if !c.online() {
		c.queueOffline(ev)
		return nil
	}

	if c.dispatcher != nil {
		c.dispatcher.Enqueue(ev)
		return nil
	}

	if err := c.post(ev); err != nil {
		if c.cfg.Debug {
			c.log.Debug().Err(err).Str("event", ev.Event).Msg("event delivery failed")
		}
		if c.offline != nil {
			c.queueOffline(ev)
			return nil
		}
		if c.cfg.Server {
			return err
		}
	}
	return nil
}

func (c *Client) online() bool {
	if c.cfg.Online == nil {
		return true
	}
	return c.cfg.Online()
}

// queueOffline stores a minimal form of the event; ambient context is
// re-collected when the queue is processed, not frozen at queue time.
func (c *Client) queueOffline(ev *Event) {
	if c.offline == nil {
		return
	}
	c.offline.Append(TrackCall{
		Type:      callForEvent(ev.Event),
		Event:     ev.Event,
		Props:     ev.Props,
		Timestamp: ev.Timestamp,
	})
}

// post sends a single event to the collection endpoint.
func (c *Client) post(ev *Event) error {
	return c.postJSON(ev, false)
}

// postBatch sends accumulated events as one batched request.
func (c *Client) postBatch(events []*Event) error {
	return c.postJSON(&Batch{IsBatch: true, Events: events}, true)
}

func (c *Client) postJSON(body interface{}, batch bool) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Server {
		req.Header.Set("User-Agent", serverUserAgent)
		req.Header.Set("X-BA-Server", "1")
	}
	if batch {
		req.Header.Set("X-BA-Batch", "1")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collection endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func kindForCall(callType string) string {
	switch callType {
	case CallPageview:
		return KindPageview
	case CallIdentify:
		return KindIdentify
	default:
		return KindEvent
	}
}

func callForEvent(eventName string) string {
	switch eventName {
	case "pageview":
		return CallPageview
	case "identify":
		return CallIdentify
	default:
		return CallTrack
	}
}
