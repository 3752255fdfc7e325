package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Site is a tenant record: the site key events are collected under and
// the per-tenant domain protection policy.
type Site struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Key              string    `gorm:"uniqueIndex;not null" json:"key"`
	Name             string    `json:"name"`
	DomainProtection bool      `json:"domain_protection"`
	AllowedDomains   []byte    `gorm:"type:jsonb" json:"allowed_domains"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Domains returns the allow-listed domains, empty on malformed data.
func (s *Site) Domains() []string {
	if len(s.AllowedDomains) == 0 {
		return nil
	}
	var domains []string
	if err := json.Unmarshal(s.AllowedDomains, &domains); err != nil {
		return nil
	}
	return domains
}

// SetDomains stores the allow-listed domains.
func (s *Site) SetDomains(domains []string) error {
	data, err := json.Marshal(domains)
	if err != nil {
		return err
	}
	s.AllowedDomains = data
	return nil
}

// OriginAllowed reports whether an Origin or Referer value matches the
// allow-list. Matching is a case-insensitive substring check, so both
// bare domains and full URLs on either side match.
func (s *Site) OriginAllowed(origin string) bool {
	if !s.DomainProtection {
		return true
	}
	origin = strings.ToLower(origin)
	if origin == "" {
		return false
	}
	for _, domain := range s.Domains() {
		if domain == "" {
			continue
		}
		if strings.Contains(origin, strings.ToLower(domain)) {
			return true
		}
	}
	return false
}
