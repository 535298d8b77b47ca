package imageref

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	amzDateParam    = "X-Amz-Date"
	amzExpiresParam = "X-Amz-Expires"
	amzDateLayout   = "20060102T150405Z"

	// maxValiditySeconds keeps the validity representable as a time.Duration.
	maxValiditySeconds = int64(math.MaxInt64 / int64(time.Second))
)

var (
	ErrNotSigned          = errors.New("url carries no signing parameters")
	ErrMalformedSignature = errors.New("malformed signing parameters")
)

// DefaultStorageHosts are the domains Notion serves time-limited files from.
var DefaultStorageHosts = []string{
	"amazonaws.com",
	"notion-static.com",
	"file.notion.so",
}

type SignedURLMetadata struct {
	SignedAt time.Time
	Validity time.Duration
}

func (m SignedURLMetadata) ExpiresAt() time.Time {
	return m.SignedAt.Add(m.Validity)
}

// Detector decides whether a signed storage URL has expired.
//
// Recognised hosts fail closed: missing or unparseable signing parameters
// count as expired. Unrecognised hosts never expire.
type Detector struct {
	hosts []string
	clock clock.Clock
}

func NewDetector(clk clock.Clock, hosts ...string) *Detector {
	if clk == nil {
		clk = clock.New()
	}
	if len(hosts) == 0 {
		hosts = DefaultStorageHosts
	}

	normalized := make([]string, 0, len(hosts))
	for _, host := range hosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" {
			normalized = append(normalized, host)
		}
	}

	return &Detector{hosts: normalized, clock: clk}
}

func DefaultDetector() *Detector {
	return NewDetector(nil)
}

func (d *Detector) IsExpired(rawURL string) bool {
	return d.ExpiresWithin(rawURL, 0)
}

// ExpiresWithin reports whether the URL is expired or will be within margin.
func (d *Detector) ExpiresWithin(rawURL string, margin time.Duration) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return d.looksLikeStorage(rawURL)
	}
	if !d.isStorageHost(parsed.Hostname()) {
		return false
	}

	meta, err := metadataFromQuery(parsed.Query())
	if err != nil {
		return true
	}

	return d.clock.Now().Add(margin).After(meta.ExpiresAt())
}

func (d *Detector) Metadata(rawURL string) (SignedURLMetadata, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return SignedURLMetadata{}, ErrMalformedSignature
	}

	return metadataFromQuery(parsed.Query())
}

func (d *Detector) IsStorageURL(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}

	return d.isStorageHost(parsed.Hostname())
}

func (d *Detector) isStorageHost(host string) bool {
	host = strings.ToLower(host)
	if host == "" {
		return false
	}

	for _, known := range d.hosts {
		if host == known || strings.HasSuffix(host, "."+known) {
			return true
		}
	}

	return false
}

func (d *Detector) looksLikeStorage(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, known := range d.hosts {
		if strings.Contains(lower, known) {
			return true
		}
	}

	return false
}

func metadataFromQuery(query url.Values) (SignedURLMetadata, error) {
	dateValue := strings.TrimSpace(query.Get(amzDateParam))
	expiresValue := strings.TrimSpace(query.Get(amzExpiresParam))
	if dateValue == "" || expiresValue == "" {
		return SignedURLMetadata{}, ErrNotSigned
	}

	signedAt, err := time.Parse(amzDateLayout, dateValue)
	if err != nil {
		return SignedURLMetadata{}, ErrMalformedSignature
	}

	seconds, err := strconv.ParseInt(expiresValue, 10, 64)
	if err != nil || seconds < 0 || seconds > maxValiditySeconds {
		return SignedURLMetadata{}, ErrMalformedSignature
	}

	return SignedURLMetadata{
		SignedAt: signedAt.UTC(),
		Validity: time.Duration(seconds) * time.Second,
	}, nil
}
