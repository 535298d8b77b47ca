package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"notionblog/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"

	defaultMaxRetries   = 3
	defaultRetryBackoff = time.Second
	pageSize            = 100

	// Notion allows an average of three requests per second per integration.
	defaultRequestsPerSecond = 3
)

type Config struct {
	BaseURL string
	Token   string
	Version string
	Timeout time.Duration
	// MaxRetries bounds retries of rate_limited responses.
	MaxRetries   int
	RetryBackoff time.Duration
	// RequestsPerSecond paces outgoing requests; negative disables pacing.
	RequestsPerSecond float64
	Logger            *zap.Logger
}

type Client struct {
	baseURL      string
	http         *http.Client
	maxRetries   int
	retryBackoff time.Duration
	limiter      *rate.Limiter
	logger       *zap.Logger
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = DefaultVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}
	limit := rate.Limit(cfg.RequestsPerSecond)
	switch {
	case cfg.RequestsPerSecond < 0:
		limit = rate.Inf
	case cfg.RequestsPerSecond == 0:
		limit = defaultRequestsPerSecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
			Transport: &authTransport{
				base:    http.DefaultTransport,
				token:   cfg.Token,
				version: version,
			},
		},
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		limiter:      rate.NewLimiter(limit, defaultRequestsPerSecond),
		logger:       logger,
	}
}

type authTransport struct {
	base    http.RoundTripper
	token   string
	version string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Notion-Version", t.version)
	if t.token != "" {
		clone.Header.Set("Authorization", "Bearer "+t.token)
	}

	return t.base.RoundTrip(clone)
}

func (c *Client) RetrievePage(ctx context.Context, id string) (*Page, error) {
	var page Page
	if err := c.do(ctx, "retrieve_page", http.MethodGet, "/pages/"+url.PathEscape(id), nil, &page); err != nil {
		return nil, err
	}

	return &page, nil
}

func (c *Client) RetrieveBlock(ctx context.Context, id string) (Block, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "retrieve_block", http.MethodGet, "/blocks/"+url.PathEscape(id), nil, &raw); err != nil {
		return nil, err
	}

	return DecodeBlock(raw)
}

type listResponse struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor *string           `json:"next_cursor"`
}

func (r listResponse) cursor() string {
	if !r.HasMore || r.NextCursor == nil {
		return ""
	}

	return *r.NextCursor
}

// ListChildren returns the direct children of a block, following
// pagination until the list is exhausted.
func (c *Client) ListChildren(ctx context.Context, id string) ([]Block, error) {
	blocks := []Block{}
	cursor := ""
	for {
		query := url.Values{}
		query.Set("page_size", strconv.Itoa(pageSize))
		if cursor != "" {
			query.Set("start_cursor", cursor)
		}

		var response listResponse
		path := "/blocks/" + url.PathEscape(id) + "/children?" + query.Encode()
		if err := c.do(ctx, "list_children", http.MethodGet, path, nil, &response); err != nil {
			return nil, err
		}

		for _, raw := range response.Results {
			block, err := DecodeBlock(raw)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		}

		cursor = response.cursor()
		if cursor == "" {
			return blocks, nil
		}
	}
}

// Query narrows a database query. Public pages with a slug are always
// required.
type Query struct {
	Slug string
	Tag  string
}

func (q Query) body(cursor string) map[string]any {
	filters := []map[string]any{
		{"property": "isPublic", "checkbox": map[string]any{"equals": true}},
		{"property": "slug", "rich_text": map[string]any{"is_not_empty": true}},
	}
	if q.Slug != "" {
		filters = append(filters, map[string]any{"property": "slug", "rich_text": map[string]any{"equals": q.Slug}})
	}
	if q.Tag != "" {
		filters = append(filters, map[string]any{"property": "tags", "multi_select": map[string]any{"contains": q.Tag}})
	}

	body := map[string]any{
		"filter":    map[string]any{"and": filters},
		"sorts":     []map[string]any{{"property": "date", "direction": "descending"}},
		"page_size": pageSize,
	}
	if cursor != "" {
		body["start_cursor"] = cursor
	}

	return body
}

func (c *Client) QueryDatabase(ctx context.Context, databaseID string, q Query) ([]Page, error) {
	pages := []Page{}
	cursor := ""
	for {
		var response listResponse
		path := "/databases/" + url.PathEscape(databaseID) + "/query"
		if err := c.do(ctx, "query_database", http.MethodPost, path, q.body(cursor), &response); err != nil {
			return nil, err
		}

		for _, raw := range response.Results {
			var page Page
			if err := json.Unmarshal(raw, &page); err != nil {
				return nil, fmt.Errorf("decode page: %w", err)
			}
			pages = append(pages, page)
		}

		cursor = response.cursor()
		if cursor == "" {
			return pages, nil
		}
	}
}

func (c *Client) do(ctx context.Context, operation, method, path string, body any, out any) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryBackoff
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	policy.Reset()

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := c.doOnce(ctx, operation, method, path, body, out)
		if err == nil {
			return nil
		}
		if IsRateLimited(err) {
			c.logger.Warn("notion rate limited",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
			)
			return err
		}

		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx))
}

func (c *Client) doOnce(ctx context.Context, operation, method, path string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}

	started := time.Now()
	status := "error"
	defer func() {
		metrics.ObserveNotionRequest(operation, status, started)
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", operation, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}

	return nil
}

func decodeAPIError(status int, data []byte) error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Code == "" {
		apiErr := &APIError{Status: status, Code: codeUnexpectedResponse, Message: strings.TrimSpace(string(data))}
		switch status {
		case http.StatusNotFound:
			apiErr.Code = CodeObjectNotFound
		case http.StatusUnauthorized:
			apiErr.Code = CodeUnauthorized
		case http.StatusTooManyRequests:
			apiErr.Code = CodeRateLimited
		}
		return apiErr
	}

	return &APIError{Status: status, Code: payload.Code, Message: payload.Message}
}
