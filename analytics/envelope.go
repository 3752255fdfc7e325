package analytics

// DeviceInfo carries device and browser signals captured at event time.
// All fields are best-effort; empty values are omitted on the wire.
type DeviceInfo struct {
	UserAgent      string `json:"userAgent,omitempty"`
	ScreenWidth    int    `json:"screenWidth,omitempty"`
	ScreenHeight   int    `json:"screenHeight,omitempty"`
	ViewportWidth  int    `json:"viewportWidth,omitempty"`
	ViewportHeight int    `json:"viewportHeight,omitempty"`
	Language       string `json:"language,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
	ConnectionType string `json:"connectionType,omitempty"`
}

// Empty reports whether no field is populated.
func (d *DeviceInfo) Empty() bool {
	if d == nil {
		return true
	}
	return *d == DeviceInfo{}
}

// PageInfo carries page-level signals for pageview attribution.
type PageInfo struct {
	Title    string `json:"title,omitempty"`
	Pathname string `json:"pathname,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	LoadTime int64  `json:"loadTime,omitempty"`
}

// Empty reports whether no field is populated.
func (p *PageInfo) Empty() bool {
	if p == nil {
		return true
	}
	return *p == PageInfo{}
}

// UTMInfo carries campaign attribution parameters parsed from the page URL.
type UTMInfo struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Term     string `json:"term,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Empty reports whether no field is populated.
func (u *UTMInfo) Empty() bool {
	if u == nil {
		return true
	}
	return *u == UTMInfo{}
}

// ServerInfo carries server-origin metadata attached by the server SDK
// variant and by the ingestion enricher.
type ServerInfo struct {
	IP        string `json:"ip,omitempty"`
	Country   string `json:"country,omitempty"`
	Region    string `json:"region,omitempty"`
	City      string `json:"city,omitempty"`
	Referer   string `json:"referer,omitempty"`
	Origin    string `json:"origin,omitempty"`
	Runtime   string `json:"runtime,omitempty"`
	Framework string `json:"framework,omitempty"`
}

// UserInfo identifies a known user for session stitching.
type UserInfo struct {
	ID string `json:"id,omitempty"`
}

// Event is the canonical envelope transmitted to the collection endpoint.
// The device, page and utm sections appear only when they carry at least
// one populated field; absence, not null, signals "unknown".
type Event struct {
	Event     string `json:"event" validate:"required"`
	Timestamp int64  `json:"timestamp"`
	Site      string `json:"site" validate:"required"`

	// URL and Referrer are always present on the wire, empty when unknown.
	URL      string `json:"url"`
	Referrer string `json:"referrer"`

	SessionID string `json:"sessionId,omitempty"`
	DeviceID  string `json:"deviceId,omitempty"`
	UserID    string `json:"userId,omitempty"`

	Device *DeviceInfo `json:"device,omitempty"`
	Page   *PageInfo   `json:"page,omitempty"`
	UTM    *UTMInfo    `json:"utm,omitempty"`

	Props map[string]interface{} `json:"props,omitempty"`

	Server *ServerInfo `json:"server,omitempty"`
	User   *UserInfo   `json:"user,omitempty"`

	// ServerOrigin marks events composed by the server SDK variant.
	ServerOrigin bool `json:"_server,omitempty"`
}

// Batch wraps multiple events for a single batched POST.
type Batch struct {
	IsBatch bool     `json:"_batch"`
	Events  []*Event `json:"events"`
}

// normalize drops nil sections that carry no data and nil prop values,
// so serialization never emits empty objects or null-valued props.
func (e *Event) normalize() {
	if e.Device.Empty() {
		e.Device = nil
	}
	if e.Page.Empty() {
		e.Page = nil
	}
	if e.UTM.Empty() {
		e.UTM = nil
	}
	if len(e.Props) > 0 {
		props := make(map[string]interface{}, len(e.Props))
		for k, v := range e.Props {
			if v == nil {
				continue
			}
			props[k] = v
		}
		e.Props = props
		if len(props) == 0 {
			e.Props = nil
		}
	}
}
