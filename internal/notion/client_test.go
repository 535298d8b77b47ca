package notion

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		BaseURL:           server.URL,
		Token:             "secret",
		RetryBackoff:      time.Millisecond,
		RequestsPerSecond: -1,
	})
}

func TestRetrievePageSendsAuthAndDecodesCover(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pages/page-1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultVersion, r.Header.Get("Notion-Version"))
		_, _ = io.WriteString(w, `{
			"id": "page-1",
			"cover": {"type": "file", "file": {"url": " https://s3.amazonaws.com/a.png ", "expiry_time": "2026-01-01T00:00:00.000Z"}},
			"properties": {
				"name": {"id": "t", "type": "title", "title": [{"type": "text", "plain_text": "Hello "}, {"type": "text", "plain_text": "world"}]},
				"tags": {"id": "m", "type": "multi_select", "multi_select": [{"name": "go"}, {"name": " "}]},
				"isPublic": {"id": "c", "type": "checkbox", "checkbox": true},
				"date": {"id": "d", "type": "date", "date": {"start": "2024-05-01"}}
			}
		}`)
	})

	page, err := client.RetrievePage(t.Context(), "page-1")
	require.NoError(t, err)

	require.NotNil(t, page.Cover)
	assert.True(t, page.Cover.IsHosted())
	assert.Equal(t, "https://s3.amazonaws.com/a.png", page.Cover.Location())
	require.NotNil(t, page.Cover.ExpiryTime)
	assert.Equal(t, "Hello world", page.Text("name"))
	assert.Equal(t, []string{"go"}, page.MultiSelect("tags"))
	assert.True(t, page.Checkbox("isPublic"))
	assert.Equal(t, "2024-05-01", page.DateStart("date"))
	assert.False(t, page.HasProperty("slug"))
}

func TestRetrieveBlockDecodesExternalImage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"id": "b1", "type": "image", "has_children": false,
			"image": {"type": "external", "external": {"url": "https://example.com/x.png"}, "caption": [{"plain_text": "cap"}]}
		}`)
	})

	block, err := client.RetrieveBlock(t.Context(), "b1")
	require.NoError(t, err)

	image, ok := block.(*Image)
	require.True(t, ok, "got %T", block)
	assert.False(t, image.File.IsHosted())
	assert.Equal(t, "https://example.com/x.png", image.File.Location())
	assert.Equal(t, "cap", PlainText(image.File.Caption))
}

func TestListChildrenFollowsCursor(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("start_cursor") == "" {
			_, _ = io.WriteString(w, `{"results": [{"id": "a", "type": "paragraph", "paragraph": {"rich_text": []}}], "has_more": true, "next_cursor": "c2"}`)
			return
		}
		assert.Equal(t, "c2", r.URL.Query().Get("start_cursor"))
		_, _ = io.WriteString(w, `{"results": [{"id": "b", "type": "divider", "divider": {}}], "has_more": false, "next_cursor": null}`)
	})

	blocks, err := client.ListChildren(t.Context(), "root")
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "a", blocks[0].Base().ID)
	assert.IsType(t, &Divider{}, blocks[1])
	assert.Equal(t, int32(2), calls.Load())
}

func TestQueryDatabaseBuildsFilters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/databases/db/query", r.URL.Path)

		var body struct {
			Filter struct {
				And []map[string]any `json:"and"`
			} `json:"filter"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Filter.And, 4)

		_, _ = io.WriteString(w, `{"results": [{"id": "p1", "properties": {}}], "has_more": false}`)
	})

	pages, err := client.QueryDatabase(t.Context(), "db", Query{Slug: "hello", Tag: "go"})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "p1", pages[0].ID)
}

func TestNotFoundIsTypedAndNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"object": "error", "status": 404, "code": "object_not_found", "message": "gone"}`)
	})

	_, err := client.RetrievePage(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "gone", apiErr.Message)
}

func TestRateLimitedIsRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"code": "rate_limited", "message": "slow down"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id": "p"}`)
	})

	page, err := client.RetrievePage(t.Context(), "p")
	require.NoError(t, err)
	assert.Equal(t, "p", page.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRateLimitedGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.RetrievePage(t.Context(), "p")
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, int32(defaultMaxRetries+1), calls.Load())
}

func TestRequestsArePaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":"page-1","properties":{}}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{BaseURL: server.URL, RequestsPerSecond: 20})

	started := time.Now()
	for range 5 {
		_, err := client.RetrievePage(t.Context(), "page-1")
		require.NoError(t, err)
	}

	// Three requests fit the burst; the other two wait 50ms each.
	assert.GreaterOrEqual(t, time.Since(started), 90*time.Millisecond)
}
