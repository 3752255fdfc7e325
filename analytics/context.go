package analytics

import "net/url"

// Context is the ambient signal snapshot attached to every event.
type Context struct {
	URL       string
	Referrer  string
	SessionID string
	DeviceID  string
	UserID    string

	Device *DeviceInfo
	Page   *PageInfo
	UTM    *UTMInfo
}

// Collector gathers ambient signals from the runtime snapshot. Each
// signal is collected independently; a missing piece never short-circuits
// the others.
type Collector struct {
	identity *IdentityStore
	runtime  RuntimeDescriptor
}

// NewCollector creates a Collector over the given identity store and
// runtime snapshot.
func NewCollector(identity *IdentityStore, rt RuntimeDescriptor) *Collector {
	return &Collector{identity: identity, runtime: rt}
}

// Collect builds the context for one event. The device, page and utm
// sections are attached only when non-empty.
func (c *Collector) Collect() Context {
	ctx := Context{
		URL:       c.runtime.PageURL,
		Referrer:  c.runtime.Referrer,
		SessionID: c.identity.SessionID(),
		DeviceID:  c.identity.DeviceID(),
		UserID:    c.identity.UserID(),
	}

	device := &DeviceInfo{
		UserAgent:      c.runtime.UserAgent,
		ScreenWidth:    c.runtime.ScreenWidth,
		ScreenHeight:   c.runtime.ScreenHeight,
		ViewportWidth:  c.runtime.ViewportWidth,
		ViewportHeight: c.runtime.ViewportHeight,
		Language:       c.runtime.Language,
		Timezone:       c.runtime.Timezone,
		ConnectionType: c.runtime.ConnectionType,
	}
	if !device.Empty() {
		ctx.Device = device
	}

	page := &PageInfo{Title: c.runtime.PageTitle}
	if parsed, err := url.Parse(c.runtime.PageURL); err == nil && c.runtime.PageURL != "" {
		page.Pathname = parsed.Path
		page.Hostname = parsed.Hostname()
	}
	// Only a positive load duration is a valid measurement.
	if c.runtime.PageLoadTime > 0 {
		page.LoadTime = c.runtime.PageLoadTime.Milliseconds()
	}
	if !page.Empty() {
		ctx.Page = page
	}

	if utm := parseUTM(c.runtime.PageURL); !utm.Empty() {
		ctx.UTM = utm
	}

	return ctx
}

// parseUTM extracts utm_* parameters from a page URL. A malformed URL
// yields an empty result, never an error.
func parseUTM(pageURL string) *UTMInfo {
	if pageURL == "" {
		return &UTMInfo{}
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return &UTMInfo{}
	}
	query := parsed.Query()
	return &UTMInfo{
		Source:   query.Get("utm_source"),
		Medium:   query.Get("utm_medium"),
		Campaign: query.Get("utm_campaign"),
		Term:     query.Get("utm_term"),
		Content:  query.Get("utm_content"),
	}
}
