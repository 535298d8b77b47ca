package posts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"notionblog/internal/notion"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	pages    []notion.Page
	children map[string][]notion.Block
	queries  []notion.Query
	lists    atomic.Int32
	err      error
}

func (f *fakeSource) QueryDatabase(_ context.Context, _ string, q notion.Query) ([]notion.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}

	out := []notion.Page{}
	for _, page := range f.pages {
		if q.Slug != "" && page.Text("slug") != q.Slug {
			continue
		}
		if q.Tag != "" && !contains(page.MultiSelect("tags"), q.Tag) {
			continue
		}
		out = append(out, page)
	}
	return out, nil
}

func (f *fakeSource) ListChildren(_ context.Context, id string) ([]notion.Block, error) {
	f.lists.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.children[id], nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func text(value string) []notion.RichText {
	return []notion.RichText{{Type: "text", PlainText: value}}
}

func page(id, slug, title string, tags ...string) notion.Page {
	options := make([]notion.SelectOption, 0, len(tags))
	for _, tag := range tags {
		options = append(options, notion.SelectOption{Name: tag})
	}

	return notion.Page{
		ID: id,
		Properties: map[string]notion.Property{
			"name":        {Type: "title", Title: text(title)},
			"slug":        {Type: "rich_text", RichText: text(slug)},
			"date":        {Type: "date", Date: &notion.DateValue{Start: "2024-05-01T10:00:00Z"}},
			"tags":        {Type: "multi_select", MultiSelect: options},
			"description": {Type: "rich_text"},
		},
	}
}

func TestListPostsMapsProperties(t *testing.T) {
	source := &fakeSource{pages: []notion.Page{page("p1", "hello", "Hello", "go", "web")}}
	source.pages[0].Cover = &notion.File{Type: notion.FileTypeExternal, URL: "https://example.com/c.png"}
	service := NewService(source, "db", Options{})

	posts, err := service.ListPosts(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, posts, 1)

	post := posts[0]
	assert.Equal(t, "hello", post.Slug)
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, "2024-05-01", post.Date)
	assert.Equal(t, []string{"go", "web"}, post.Tags)
	assert.Equal(t, "https://example.com/c.png", post.CoverURL)
}

func TestListPostsCachesResults(t *testing.T) {
	source := &fakeSource{pages: []notion.Page{page("p1", "hello", "Hello")}}
	service := NewService(source, "db", Options{})

	for range 3 {
		_, err := service.ListPosts(t.Context(), "")
		require.NoError(t, err)
	}
	assert.Len(t, source.queries, 1)
}

func TestListPostsRejectsInvalidTag(t *testing.T) {
	service := NewService(&fakeSource{}, "db", Options{})

	_, err := service.ListPosts(t.Context(), "bad\x00tag")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestListPostsWrapsSourceErrors(t *testing.T) {
	cause := &notion.APIError{Status: 401, Code: notion.CodeUnauthorized}
	service := NewService(&fakeSource{err: cause}, "db", Options{})

	_, err := service.ListPosts(t.Context(), "go")
	var apiErr *notion.APIError
	require.True(t, errors.As(err, &apiErr))
}

func TestGetPostBySlugLoadsBlockTree(t *testing.T) {
	toggle := &notion.Toggle{BlockBase: notion.BlockBase{ID: "t1", Type: "toggle", HasChildren: true}}
	source := &fakeSource{
		pages: []notion.Page{page("p1", "hello", "Hello")},
		children: map[string][]notion.Block{
			"p1": {
				&notion.Paragraph{BlockBase: notion.BlockBase{ID: "a", Type: "paragraph"}, Text: text("First paragraph.")},
				toggle,
			},
			"t1": {&notion.Paragraph{BlockBase: notion.BlockBase{ID: "c", Type: "paragraph"}, Text: text("inside")}},
		},
	}
	service := NewService(source, "db", Options{})

	article, err := service.GetPostBySlug(t.Context(), "hello")
	require.NoError(t, err)
	require.Len(t, article.Blocks, 2)
	require.Len(t, toggle.Children, 1)
	assert.Equal(t, "c", toggle.Children[0].Base().ID)
	assert.Equal(t, "First paragraph.", article.Description)

	_, err = service.GetPostBySlug(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, int32(2), source.lists.Load())
}

func TestGetPostBySlugNotFound(t *testing.T) {
	service := NewService(&fakeSource{}, "db", Options{})

	_, err := service.GetPostBySlug(t.Context(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTagsCountsUsage(t *testing.T) {
	source := &fakeSource{pages: []notion.Page{
		page("p1", "a", "A", "go", "web"),
		page("p2", "b", "B", "go"),
	}}
	service := NewService(source, "db", Options{})

	tags, err := service.Tags(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []Tag{{Name: "go", Count: 2}, {Name: "web", Count: 1}}, tags)
}

func TestIsAllowedText(t *testing.T) {
	allowed := []string{"hello-world", "日本語の記事", "Go 1.22", "café", "🚀launch"}
	for _, value := range allowed {
		assert.True(t, IsAllowedText(value), value)
	}

	rejected := []string{"", "tab\there", "null\x00", "<script>"}
	for _, value := range rejected {
		assert.False(t, IsAllowedText(value), value)
	}
}
