// Package freshness keeps recently confirmed image URLs for the lifetime of a
// process (the server) or a session (a CLI run). Entries carry an absolute
// expiry and are only consulted before it; nothing is actively swept.
package freshness

import (
	"time"

	"notionblog/internal/imageref"
)

const (
	// RenderedTTL applies after a URL rendered without an explicit refresh.
	RenderedTTL = 30 * time.Minute
	// ConfirmedTTL applies after the refresh gateway returned the URL.
	ConfirmedTTL = 3 * time.Hour
)

type Cache interface {
	Get(ref imageref.Reference) (string, bool)
	Put(ref imageref.Reference, url string, ttl time.Duration)
	Clear()
}

type Entry struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (e Entry) FreshAt(now time.Time) bool {
	return e.URL != "" && now.Before(e.ExpiresAt)
}
