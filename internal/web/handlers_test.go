package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"notionblog/framework"
	"notionblog/framework/httpserver"
	"notionblog/internal/config"
	"notionblog/internal/freshness"
	"notionblog/internal/imageref"
	"notionblog/internal/loader"
	"notionblog/internal/notion"
	"notionblog/internal/posts"
	"notionblog/internal/render"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPageID = "0f5e8a2c-3d41-4b6e-9a77-2c1d3e4f5a6b"
	expiredURL = "https://prod-files-secure.s3.us-west-2.amazonaws.com/a/cover.png?X-Amz-Date=20200101T000000Z&X-Amz-Expires=3600"
	freshURL   = "https://prod-files-secure.s3.us-west-2.amazonaws.com/a/cover.png?X-Amz-Date=20990101T000000Z&X-Amz-Expires=3600"
)

type fakePosts struct {
	list    []posts.Post
	article *posts.Article
}

func (f *fakePosts) ListPosts(_ context.Context, tag string) ([]posts.Post, error) {
	if tag == "" {
		return f.list, nil
	}
	if !posts.IsAllowedText(tag) {
		return nil, posts.ErrInvalidInput
	}

	var out []posts.Post
	for _, post := range f.list {
		for _, t := range post.Tags {
			if t == tag {
				out = append(out, post)
			}
		}
	}
	return out, nil
}

func (f *fakePosts) GetPostBySlug(_ context.Context, slug string) (*posts.Article, error) {
	if f.article == nil || f.article.Slug != slug {
		return nil, posts.ErrNotFound
	}
	return f.article, nil
}

func (f *fakePosts) Tags(_ context.Context) ([]posts.Tag, error) {
	counts := map[string]int{}
	var names []string
	for _, post := range f.list {
		for _, tag := range post.Tags {
			if counts[tag] == 0 {
				names = append(names, tag)
			}
			counts[tag]++
		}
	}

	tags := make([]posts.Tag, 0, len(names))
	for _, name := range names {
		tags = append(tags, posts.Tag{Name: name, Count: counts[name]})
	}
	return tags, nil
}

type countingRefresher struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
}

func (c *countingRefresher) Refresh(context.Context, imageref.Reference) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.url, c.err
}

func (c *countingRefresher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type testServer struct {
	handler   http.Handler
	refresher *countingRefresher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cache, err := freshness.NewMemory(freshness.MemoryOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	refresher := &countingRefresher{url: freshURL}
	loaderOpts := loader.Options{Cache: cache, Refresher: refresher}
	renderer := render.New(loader.NewFactory(loaderOpts), render.Options{RootURL: "https://blog.example.com"})

	site := config.DefaultSiteConfig()
	site.Title = "Field Notes"
	site.Description = "Notes from the field"
	site.FooterMarkdown = "Built with [Go](https://go.dev)"
	site.NotFoundMessage = "Nothing here"

	source := &fakePosts{
		list: []posts.Post{
			{ID: testPageID, Slug: "hello-world", Title: "Hello World", Date: "2024-01-02", Tags: []string{"go", "notion"}},
			{ID: "1f5e8a2c-3d41-4b6e-9a77-2c1d3e4f5a6b", Slug: "second", Title: "Second", Tags: []string{"go"}},
		},
		article: &posts.Article{
			Post: posts.Post{ID: testPageID, Slug: "hello-world", Title: "Hello World", CoverURL: expiredURL, Tags: []string{"go"}},
			Blocks: []notion.Block{
				&notion.Paragraph{
					BlockBase: notion.BlockBase{ID: "p1", Type: "paragraph"},
					Text:      []notion.RichText{{Type: "text", PlainText: "First paragraph"}},
				},
			},
		},
	}

	handler, err := NewHandler(Deps{
		Config:   config.Config{RootURL: "https://blog.example.com"},
		Site:     site,
		Posts:    source,
		Renderer: renderer,
		Gateway: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"url":"ok"}`)
		}),
		Loader: loaderOpts,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "# metrics")
		}),
	})
	require.NoError(t, err)

	return &testServer{handler: handler, refresher: refresher}
}

func (s *testServer) get(t *testing.T, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func parseHTML(t *testing.T, body string) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

func TestHomePageListsPostsInsideLayout(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, httpserver.DefaultCachePolicies().HTML, rec.Header().Get("Cache-Control"))

	doc := parseHTML(t, rec.Body.String())
	assert.Equal(t, "Field Notes", doc.Find("title").Text())
	assert.Equal(t, "https://blog.example.com/", doc.Find(`link[rel=canonical]`).AttrOr("href", ""))
	assert.Equal(t, 2, doc.Find("article.post-card").Length())
	assert.Equal(t, "/articles/hello-world", doc.Find("article.post-card h2 a").First().AttrOr("href", ""))
	assert.Equal(t, 2, doc.Find("nav.tag-cloud a").Length())
	assert.Equal(t, "Go", doc.Find(".footer-markdown a").Text())
	assert.Contains(t, rec.Body.String(), ".chroma")
}

func TestTagPageFiltersAndHighlightsTag(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, "/tags/notion")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := parseHTML(t, rec.Body.String())
	assert.Equal(t, "#notion | Field Notes", doc.Find("title").Text())
	assert.Equal(t, 1, doc.Find("article.post-card").Length())
	assert.Equal(t, "#notion", strings.TrimSpace(doc.Find("nav.tag-cloud a.tag.active").Contents().First().Text()))
}

func TestTagWithoutPostsIsNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, "/tags/rust")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, httpserver.DefaultCachePolicies().Error, rec.Header().Get("Cache-Control"))

	doc := parseHTML(t, rec.Body.String())
	assert.Equal(t, "Nothing here", doc.Find(".not-found h1").Text())
	assert.Equal(t, "/tags/rust", doc.Find(".not-found .request-path").Text())
}

func TestInvalidTagIsBadRequest(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, "/tags/"+url.PathEscape("bad<tag>"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownPathRendersNotFoundPage(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, "/no/such/page")
	require.Equal(t, http.StatusNotFound, rec.Code)

	doc := parseHTML(t, rec.Body.String())
	assert.Equal(t, "Nothing here", doc.Find(".not-found h1").Text())
	assert.Equal(t, "Return to Home", doc.Find("a.return-home").Text())
}

func TestArticlePageRendersBodyAndRefreshesCover(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, "/articles/hello-world")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := parseHTML(t, rec.Body.String())
	assert.Equal(t, "Hello World", doc.Find("article.post h1").Text())
	assert.Equal(t, "First paragraph", doc.Find(".notion-content p").Text())

	ref, err := imageref.NewReference(testPageID, "")
	require.NoError(t, err)
	assert.Equal(t, freshURL, doc.Find("#"+ref.ElementID()+" img").AttrOr("src", ""))
	assert.Equal(t, 1, srv.refresher.count())
	assert.Equal(t, "https://blog.example.com/static/site-cover.png", doc.Find(`meta[property="og:image"]`).AttrOr("content", ""))
}

func TestMissingArticleIsNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, "/articles/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPartialRequestSkipsLayout(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, "/", framework.PartialRequestHeader, "true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<html")
	assert.Contains(t, rec.Body.String(), "post-card")
	assert.Equal(t, httpserver.DefaultCachePolicies().Live, rec.Header().Get("Cache-Control"))
}

func TestMountsServeAPIAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	gw := srv.get(t, "/api/refreshImageUrl?pageId="+testPageID)
	assert.Equal(t, `{"url":"ok"}`, gw.Body.String())

	metrics := srv.get(t, MetricsPath)
	assert.Equal(t, "# metrics", metrics.Body.String())
	assert.Equal(t, httpserver.DefaultCachePolicies().Error, metrics.Header().Get("Cache-Control"))

	health := srv.get(t, "/healthz")
	assert.Equal(t, "ok", health.Body.String())
}

func liveTarget(t *testing.T, req render.LiveRequest) string {
	t.Helper()
	return render.LiveURL(render.DefaultLiveEndpoint, req)
}

func TestLiveImagePatchesRefreshedFrame(t *testing.T) {
	srv := newTestServer(t)
	ref, err := imageref.NewReference(testPageID, "")
	require.NoError(t, err)

	rec := srv.get(t, liveTarget(t, render.LiveRequest{
		Ref:      ref,
		Snapshot: loader.Snapshot{URL: expiredURL},
		Alt:      "Cover",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	body := rec.Body.String()
	assert.Contains(t, body, "datastar-patch-elements")
	assert.Contains(t, body, "#"+ref.ElementID())
	assert.Contains(t, body, "Refreshing image")
	assert.Contains(t, body, "X-Amz-Date=20990101T000000Z")
	assert.Less(t, strings.Index(body, "Refreshing image"), strings.LastIndex(body, "X-Amz-Date=20990101T000000Z"))
	assert.Equal(t, 1, srv.refresher.count())
}

func TestLiveImageKeepsFailedFrameUntilReset(t *testing.T) {
	srv := newTestServer(t)
	ref, err := imageref.NewReference(testPageID, "")
	require.NoError(t, err)
	failed := render.LiveRequest{
		Ref:      ref,
		Snapshot: loader.Snapshot{URL: expiredURL, Attempt: 3, Failed: true},
	}

	rec := srv.get(t, liveTarget(t, failed))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could not load image")
	assert.Zero(t, srv.refresher.count())

	failed.Reset = true
	rec = srv.get(t, liveTarget(t, failed))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-Amz-Date=20990101T000000Z")
	assert.Equal(t, 1, srv.refresher.count())
}

func TestLiveImageRejectsMalformedRequest(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, render.DefaultLiveEndpoint+"?pageId=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	post := httptest.NewRequest(http.MethodPost, render.DefaultLiveEndpoint, nil)
	postRec := httptest.NewRecorder()
	srv.handler.ServeHTTP(postRec, post)
	assert.Equal(t, http.StatusMethodNotAllowed, postRec.Code)
}
