package appcore

import (
	"strings"

	"notionblog/internal/config"
	"notionblog/internal/imageref"
	"notionblog/internal/posts"

	"github.com/a-h/templ"
)

// LayoutView is what the root layout needs from any page view.
type LayoutView interface {
	LayoutPageTitle() string
	LayoutDescription() string
	LayoutImage() string
	LayoutCanonicalPath() string
	LayoutSite() config.SiteConfig
	SidebarTags() []posts.Tag
	SidebarCurrentTag() string
}

type PostListPageView struct {
	PageTitle   string
	Description string
	Site        config.SiteConfig
	Posts       []posts.Post
	Tags        []posts.Tag
	ActiveTag   string
	Path        string
}

type ArticlePageView struct {
	PageTitle string
	Site      config.SiteConfig
	Article   posts.Article
	Tags      []posts.Tag
	Body      templ.Component
	Path      string
}

type NotFoundPageView struct {
	Site        config.SiteConfig
	RequestPath string
}

func (v PostListPageView) LayoutPageTitle() string {
	return v.PageTitle
}

func (v PostListPageView) LayoutDescription() string {
	if strings.TrimSpace(v.Description) != "" {
		return v.Description
	}
	return v.Site.Description
}

func (v PostListPageView) LayoutImage() string {
	return v.Site.DefaultImage
}

func (v PostListPageView) LayoutCanonicalPath() string {
	return v.Path
}

func (v PostListPageView) LayoutSite() config.SiteConfig {
	return v.Site
}

func (v PostListPageView) SidebarTags() []posts.Tag {
	return v.Tags
}

func (v PostListPageView) SidebarCurrentTag() string {
	return v.ActiveTag
}

func (v ArticlePageView) LayoutPageTitle() string {
	return v.PageTitle
}

func (v ArticlePageView) LayoutDescription() string {
	if strings.TrimSpace(v.Article.Description) != "" {
		return v.Article.Description
	}
	return v.Site.Description
}

var storageDetector = imageref.DefaultDetector()

// LayoutImage prefers the article cover for link previews. Covers hosted on
// Notion's file storage expire, so only external covers are advertised.
func (v ArticlePageView) LayoutImage() string {
	if cover := v.Article.CoverURL; cover != "" && !storageDetector.IsStorageURL(cover) {
		return cover
	}
	return v.Site.DefaultImage
}

func (v ArticlePageView) LayoutCanonicalPath() string {
	return v.Path
}

func (v ArticlePageView) LayoutSite() config.SiteConfig {
	return v.Site
}

func (v ArticlePageView) SidebarTags() []posts.Tag {
	return v.Tags
}

func (v ArticlePageView) SidebarCurrentTag() string {
	return ""
}

func (v NotFoundPageView) LayoutPageTitle() string {
	return v.Site.NotFoundTitle
}

func (v NotFoundPageView) LayoutDescription() string {
	return v.Site.NotFoundDescription
}

func (v NotFoundPageView) LayoutImage() string {
	return v.Site.DefaultImage
}

func (v NotFoundPageView) LayoutCanonicalPath() string {
	return v.RequestPath
}

func (v NotFoundPageView) LayoutSite() config.SiteConfig {
	return v.Site
}

func (v NotFoundPageView) SidebarTags() []posts.Tag {
	return nil
}

func (v NotFoundPageView) SidebarCurrentTag() string {
	return ""
}

func NewNotFoundView(site config.SiteConfig, requestPath string) NotFoundPageView {
	requestPath = strings.TrimSpace(requestPath)
	if requestPath == "" {
		requestPath = "/"
	}

	return NotFoundPageView{Site: site, RequestPath: requestPath}
}
