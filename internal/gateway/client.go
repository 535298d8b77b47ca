package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"notionblog/internal/imageref"
)

const RefreshPath = "/api/refreshImageUrl"

// Client calls a remote refresh endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(baseURL), "/") + RefreshPath,
		http:     httpClient,
	}
}

type refreshResponse struct {
	URL   string `json:"url"`
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field"`
}

func (c *Client) Refresh(ctx context.Context, ref imageref.Reference) (string, error) {
	query := url.Values{}
	query.Set("pageId", ref.PageID)
	if !ref.IsCover() {
		query.Set("blockId", ref.BlockID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", &TransientError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransientError{Err: err}
	}
	defer resp.Body.Close()

	var body refreshResponse
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &TransientError{Status: resp.StatusCode, Err: err}
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil && resp.StatusCode == http.StatusOK {
			return "", &TransientError{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}

	switch {
	case resp.StatusCode == http.StatusOK && body.URL != "":
		return body.URL, nil
	case resp.StatusCode == http.StatusOK:
		return "", &TransientError{Status: resp.StatusCode, Err: errors.New("empty url in response")}
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrImageNotFound, ref)
	case resp.StatusCode == http.StatusBadRequest:
		return "", &ValidationError{Field: body.Field, Message: body.Error}
	default:
		message := body.Error
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return "", &TransientError{Status: resp.StatusCode, Err: errors.New(message)}
	}
}
