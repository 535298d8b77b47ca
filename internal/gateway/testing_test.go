package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"notionblog/internal/imageref"
	"notionblog/internal/notion"
)

const (
	testPageID  = "0f5e8a2c-3d41-4b6e-9a77-2c1d3e4f5a6b"
	testBlockID = "1a2b3c4d-5e6f-4a1b-8c2d-3e4f5a6b7c8d"
)

type fakeSource struct {
	mu     sync.Mutex
	pages  map[string]*notion.Page
	blocks map[string]notion.Block
	err    error
	calls  atomic.Int32
	// gate blocks every call until closed when set.
	gate chan struct{}
}

func (f *fakeSource) RetrievePage(ctx context.Context, id string) (*notion.Page, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	page, ok := f.pages[id]
	if !ok {
		return nil, &notion.APIError{Status: 404, Code: notion.CodeObjectNotFound}
	}
	return page, nil
}

func (f *fakeSource) RetrieveBlock(ctx context.Context, id string) (notion.Block, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	block, ok := f.blocks[id]
	if !ok {
		return nil, &notion.APIError{Status: 404, Code: notion.CodeObjectNotFound}
	}
	return block, nil
}

func coverPage(url string) *notion.Page {
	return &notion.Page{ID: testPageID, Cover: &notion.File{Type: notion.FileTypeFile, URL: url}}
}

func mustRef(t *testing.T, pageID, blockID string) imageref.Reference {
	t.Helper()

	ref, err := imageref.NewReference(pageID, blockID)
	if err != nil {
		t.Fatalf("NewReference: %v", err)
	}
	return ref
}
