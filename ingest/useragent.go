package ingest

import "github.com/mileusna/useragent"

// ParsedUA is the best-effort user-agent parse. A nil *ParsedUA means
// the user-agent string was missing; individual fields are empty when
// the parser could not derive them.
type ParsedUA struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	Device         string
	DeviceModel    string
}

// ParseUserAgent extracts browser, OS and device class from a raw
// user-agent string. It never fails: an empty string yields nil and
// every derived record field becomes null downstream.
func ParseUserAgent(raw string) *ParsedUA {
	if raw == "" {
		return nil
	}

	ua := useragent.Parse(raw)

	parsed := &ParsedUA{
		Browser:        ua.Name,
		BrowserVersion: ua.Version,
		OS:             ua.OS,
		OSVersion:      ua.OSVersion,
		DeviceModel:    ua.Device,
	}

	switch {
	case ua.Bot:
		parsed.Device = "bot"
	case ua.Mobile:
		parsed.Device = "mobile"
	case ua.Tablet:
		parsed.Device = "tablet"
	case ua.Desktop:
		parsed.Device = "desktop"
	}

	return parsed
}
