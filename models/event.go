package models

import "time"

// ProcessedEvent is the enriched, flattened analytics record written to
// the database. It is created once per accepted request and never
// updated afterwards; retention is a downstream concern.
type ProcessedEvent struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Site      string    `gorm:"index:idx_site_timestamp;not null" json:"site"`
	Event     string    `gorm:"index" json:"event"`
	Timestamp time.Time `gorm:"index:idx_site_timestamp" json:"timestamp"`

	URL      string `json:"url"`
	Referrer string `json:"referrer"`
	Pathname string `gorm:"index" json:"pathname"`
	Hostname string `json:"hostname"`

	SessionID string `gorm:"index" json:"session_id"`
	DeviceID  string `gorm:"index" json:"device_id"`
	UserID    string `gorm:"index" json:"user_id"`

	// Raw device signals
	UserAgent      string `json:"user_agent"`
	ScreenWidth    int    `json:"screen_width"`
	ScreenHeight   int    `json:"screen_height"`
	ViewportWidth  int    `json:"viewport_width"`
	ViewportHeight int    `json:"viewport_height"`
	Language       string `json:"language"`
	Timezone       string `json:"timezone"`
	ConnectionType string `json:"connection_type"`

	// Page signals
	PageTitle string `json:"page_title"`
	LoadTime  int64  `json:"load_time"`

	// Campaign attribution
	UTMSource   string `gorm:"index" json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	UTMTerm     string `json:"utm_term"`
	UTMContent  string `json:"utm_content"`

	// Parsed user agent; null when the user agent was absent or unparsable
	Browser        *string `json:"browser"`
	BrowserVersion *string `json:"browser_version"`
	OS             *string `json:"os"`
	OSVersion      *string `json:"os_version"`
	Device         *string `json:"device"`
	DeviceModel    *string `json:"device_model"`

	// Geolocation; null when lookup was skipped or failed
	Country   *string  `gorm:"index" json:"country"`
	Region    *string  `json:"region"`
	City      *string  `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	// Server-origin metadata
	IP        string `json:"ip"`
	Origin    string `json:"origin"`
	Runtime   string `json:"runtime"`
	Framework string `json:"framework"`

	// Props carries the consumer-supplied properties as raw JSON.
	Props []byte `gorm:"type:jsonb" json:"props"`

	CreatedAt time.Time `json:"created_at"`
}
