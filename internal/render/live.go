package render

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"notionblog/internal/imageref"
	"notionblog/internal/loader"
)

// DefaultLiveEndpoint receives image load failures reported by the browser.
const DefaultLiveEndpoint = "/api/image/live"

const (
	queryPageID  = "pageId"
	queryBlockID = "blockId"
	querySource  = "src"
	queryAttempt = "attempt"
	queryLast    = "last"
	queryFailed  = "failed"
	queryReset   = "reset"
	queryAlt     = "alt"
)

var ErrInvalidLiveRequest = errors.New("invalid live image request")

// LiveRequest is the retry snapshot an image frame carries between requests.
type LiveRequest struct {
	Ref      imageref.Reference
	Snapshot loader.Snapshot
	Alt      string
	Reset    bool
}

func LiveURL(endpoint string, req LiveRequest) string {
	if endpoint == "" {
		endpoint = DefaultLiveEndpoint
	}

	query := url.Values{}
	query.Set(queryPageID, req.Ref.PageID)
	if req.Ref.BlockID != "" {
		query.Set(queryBlockID, req.Ref.BlockID)
	}
	if req.Snapshot.URL != "" {
		query.Set(querySource, req.Snapshot.URL)
	}
	query.Set(queryAttempt, strconv.Itoa(req.Snapshot.Attempt))
	if !req.Snapshot.LastRefresh.IsZero() {
		query.Set(queryLast, strconv.FormatInt(req.Snapshot.LastRefresh.UnixMilli(), 10))
	}
	if req.Snapshot.Failed {
		query.Set(queryFailed, "1")
	}
	if req.Alt != "" {
		query.Set(queryAlt, req.Alt)
	}
	if req.Reset {
		query.Set(queryReset, "1")
	}

	return endpoint + "?" + query.Encode()
}

// ParseLiveRequest reads a LiveRequest back from its query. A last refresh
// later than now is clamped to now so a skewed client clock cannot stretch
// the cooldown.
func ParseLiveRequest(query url.Values, now time.Time) (LiveRequest, error) {
	ref, err := imageref.NewReference(query.Get(queryPageID), query.Get(queryBlockID))
	if err != nil {
		return LiveRequest{}, fmt.Errorf("%w: %v", ErrInvalidLiveRequest, err)
	}

	req := LiveRequest{
		Ref:   ref,
		Alt:   strings.TrimSpace(query.Get(queryAlt)),
		Reset: isSet(query.Get(queryReset)),
		Snapshot: loader.Snapshot{
			URL:    strings.TrimSpace(query.Get(querySource)),
			Failed: isSet(query.Get(queryFailed)),
		},
	}

	if raw := query.Get(queryAttempt); raw != "" {
		attempt, err := strconv.Atoi(raw)
		if err != nil || attempt < 0 {
			return LiveRequest{}, fmt.Errorf("%w: attempt %q", ErrInvalidLiveRequest, raw)
		}
		req.Snapshot.Attempt = attempt
	}
	if raw := query.Get(queryLast); raw != "" {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || millis < 0 {
			return LiveRequest{}, fmt.Errorf("%w: last refresh %q", ErrInvalidLiveRequest, raw)
		}
		req.Snapshot.LastRefresh = time.UnixMilli(millis)
		if req.Snapshot.LastRefresh.After(now) {
			req.Snapshot.LastRefresh = now
		}
	}

	return req, nil
}

func isSet(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
