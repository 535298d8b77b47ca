package appcore

import (
	"context"
	"errors"

	"notionblog/internal/config"
	"notionblog/internal/notion"
	"notionblog/internal/posts"
	"notionblog/internal/render"

	"github.com/a-h/templ"
)

var (
	errPostsServiceUnavailable = errors.New("posts service unavailable")
	errEmptyTag                = errors.New("tag has no posts")
)

// PostSource is the part of *posts.Service the pages read from.
type PostSource interface {
	ListPosts(ctx context.Context, tag string) ([]posts.Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*posts.Article, error)
	Tags(ctx context.Context) ([]posts.Tag, error)
}

// BodyRenderer turns an article into its HTML body. *render.Renderer
// satisfies it.
type BodyRenderer interface {
	Article(article *posts.Article) templ.Component
	RichText(parts []notion.RichText) templ.Component
}

type Context struct {
	posts    PostSource
	renderer BodyRenderer
	site     config.SiteConfig
	rootURL  string
}

func NewContext(source PostSource, renderer BodyRenderer, site config.SiteConfig, rootURL string) *Context {
	return &Context{posts: source, renderer: renderer, site: site, rootURL: rootURL}
}

func (c *Context) Site() config.SiteConfig {
	if c == nil {
		return config.DefaultSiteConfig()
	}
	return c.site
}

func (c *Context) RootURL() string {
	if c == nil {
		return ""
	}
	return c.rootURL
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, posts.ErrNotFound) || errors.Is(err, errEmptyTag)
}

func IsBadRequestError(err error) bool {
	return errors.Is(err, posts.ErrInvalidInput) || errors.Is(err, render.ErrInvalidLiveRequest)
}
