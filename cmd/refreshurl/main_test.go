package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pageID  = "0f5e8a2c3d414b6e9a772c1d3e4f5a6b"
	blockA  = "9b1c2d3e4f5a4b6c8d7e0a1b2c3d4e5f"
	blockB  = "8b1c2d3e4f5a4b6c8d7e0a1b2c3d4e5f"
	freshAt = "https://images.example.com/fresh/"
)

func newGateway(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("blockId") {
		case "":
			_, _ = io.WriteString(w, `{"url":"`+freshAt+`cover.png"}`)
		case "8b1c2d3e-4f5a-4b6c-8d7e-0a1b2c3d4e5f":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"Image not found in the specified location"}`)
		default:
			_, _ = io.WriteString(w, `{"url":"`+freshAt+r.URL.Query().Get("blockId")+`.png"}`)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunResolvesCover(t *testing.T) {
	server := newGateway(t)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-server", server.URL, "-page", pageID}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Equal(t, "img_0f5e8a2c-3d41-4b6e-9a77-2c1d3e4f5a6b_cover\t"+freshAt+"cover.png\n", stdout.String())
}

func TestRunReportsUnresolvedBlocks(t *testing.T) {
	server := newGateway(t)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-server", server.URL,
		"-page", pageID,
		"-block", blockA,
		"-block", blockB,
	}, &stdout, &stderr)
	require.ErrorIs(t, err, errUnresolved)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], freshAt+"9b1c2d3e-4f5a-4b6c-8d7e-0a1b2c3d4e5f.png"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "\t-"), lines[1])
}

func TestRunKeepsUnexpiredURL(t *testing.T) {
	server := newGateway(t)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-server", server.URL,
		"-page", pageID,
		"-url", "https://cdn.example.com/static.png",
	}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "\thttps://cdn.example.com/static.png")
}

func TestRunRequiresPage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), nil, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-page")
}
