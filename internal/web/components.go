package web

import (
	"context"
	"io"
	"strconv"
	"strings"

	"notionblog/framework"
	"notionblog/internal/posts"
	"notionblog/internal/web/appcore"

	"github.com/a-h/templ"
)

const datastarScriptURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// htmlOut writes markup and keeps the first write error.
type htmlOut struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (o *htmlOut) raw(parts ...string) {
	for _, part := range parts {
		if o.err != nil {
			return
		}
		_, o.err = io.WriteString(o.w, part)
	}
}

func (o *htmlOut) text(value string) {
	o.raw(templ.EscapeString(value))
}

func (o *htmlOut) href(value string) {
	o.raw(templ.EscapeString(string(templ.URL(value))))
}

func (o *htmlOut) component(c templ.Component) {
	if o.err != nil || c == nil {
		return
	}
	o.err = c.Render(o.ctx, o.w)
}

func component(fn func(out *htmlOut)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &htmlOut{ctx: ctx, w: w}
		fn(out)
		return out.err
	})
}

func rootLayout[VM appcore.LayoutView](appCtx *appcore.Context) framework.LayoutRenderer[VM] {
	return func(view VM, child templ.Component) templ.Component {
		return layout(appCtx, view, child)
	}
}

func layout(appCtx *appcore.Context, view appcore.LayoutView, child templ.Component) templ.Component {
	return component(func(out *htmlOut) {
		site := view.LayoutSite()
		lang := site.Lang
		if lang == "" {
			lang = "en"
		}

		out.raw(`<!doctype html><html lang="`)
		out.text(lang)
		out.raw(`"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		out.raw(`<title>`)
		out.text(appcore.PageTitle(view))
		out.raw(`</title><meta name="description" content="`)
		out.text(view.LayoutDescription())
		out.raw(`"><link rel="canonical" href="`)
		out.href(appcore.AbsoluteURL(appCtx, view.LayoutCanonicalPath()))
		out.raw(`"><meta property="og:title" content="`)
		out.text(appcore.PageTitle(view))
		out.raw(`"><meta property="og:image" content="`)
		out.href(appcore.AbsoluteURL(appCtx, view.LayoutImage()))
		out.raw(`">`)
		if site.TwitterUsername != "" {
			out.raw(`<meta name="twitter:site" content="@`)
			out.text(site.TwitterUsername)
			out.raw(`">`)
		}
		out.raw(`<link rel="stylesheet" href="/static/site.css">`)
		out.raw(appcore.ChromaStyleTag(site))
		out.raw(`<script type="module" src="`, datastarScriptURL, `"></script></head><body>`)

		out.raw(`<header class="site-header"><a class="site-title" href="/">`)
		out.text(site.Title)
		out.raw(`</a>`)
		if site.Description != "" {
			out.raw(`<p class="site-description">`)
			out.text(site.Description)
			out.raw(`</p>`)
		}
		writeSocialLinks(out, view)
		out.raw(`</header>`)

		if tags := view.SidebarTags(); len(tags) > 0 {
			out.raw(`<nav class="tag-cloud" aria-label="Tags">`)
			current := view.SidebarCurrentTag()
			for _, tag := range tags {
				out.raw(`<a class="`, appcore.TagClass(tag.Name == current), `" href="`)
				out.href(appcore.BuildTagURL(tag.Name))
				out.raw(`">`)
				out.text(appcore.TagLabel(tag))
				out.raw(`<span class="tag-count">`, strconv.Itoa(tag.Count), `</span></a>`)
			}
			out.raw(`</nav>`)
		}

		out.raw(`<main id="content">`)
		out.component(child)
		out.raw(`</main><footer class="site-footer">`)
		if footer := appcore.FooterHTML(site, appCtx.RootURL()); footer != "" {
			out.raw(`<div class="footer-markdown">`, string(footer), `</div>`)
		}
		if site.Copyright != "" {
			out.raw(`<p class="copyright">`)
			if site.CopyrightURL != "" {
				out.raw(`<a href="`)
				out.href(site.CopyrightURL)
				out.raw(`" target="_blank" rel="noopener noreferrer">`)
				out.text(site.Copyright)
				out.raw(`</a>`)
			} else {
				out.text(site.Copyright)
			}
			out.raw(`</p>`)
		}
		out.raw(`</footer></body></html>`)
	})
}

func writeSocialLinks(out *htmlOut, view appcore.LayoutView) {
	site := view.LayoutSite()
	links := []struct {
		label string
		url   string
	}{
		{"Twitter", site.TwitterURL},
		{"Farcaster", site.FarcasterURL},
		{"Instagram", site.InstagramURL},
		{"GitHub", site.GithubURL},
	}

	written := false
	for _, link := range links {
		if link.url == "" {
			continue
		}
		if !written {
			out.raw(`<nav class="social" aria-label="Social">`)
			written = true
		}
		out.raw(`<a href="`)
		out.href(link.url)
		out.raw(`" target="_blank" rel="noopener noreferrer">`)
		out.text(link.label)
		out.raw(`</a>`)
	}
	if written {
		out.raw(`</nav>`)
	}
}

func postListPage(view appcore.PostListPageView) templ.Component {
	return component(func(out *htmlOut) {
		out.raw(`<section class="post-list">`)
		if view.ActiveTag != "" {
			out.raw(`<h1 class="list-title">`)
			out.text(view.PageTitle)
			out.raw(`</h1>`)
		}
		if len(view.Posts) == 0 {
			out.raw(`<p class="empty">No posts yet.</p>`)
		}
		for _, post := range view.Posts {
			writePostCard(out, view, post)
		}
		out.raw(`</section>`)
	})
}

func writePostCard(out *htmlOut, view appcore.PostListPageView, post posts.Post) {
	out.raw(`<article class="`, appcore.PostCardClass(post.CoverURL != ""), `">`)
	out.raw(`<h2><a href="`)
	out.href(appcore.BuildArticleURL(post.Slug))
	out.raw(`">`)
	out.text(post.Title)
	out.raw(`</a></h2><p class="post-meta">`)
	if post.Date != "" {
		out.raw(`<time>`)
		out.text(post.Date)
		out.raw(`</time>`)
	}
	if author := appcore.AuthorLabel(view.Site, post); author != "" {
		out.raw(` <span class="post-author">`)
		out.text(author)
		out.raw(`</span>`)
	}
	out.raw(`</p>`)
	if post.Description != "" {
		out.raw(`<p class="post-description">`)
		out.text(post.Description)
		out.raw(`</p>`)
	}
	writeTagLinks(out, post.Tags, view.ActiveTag)
	out.raw(`</article>`)
}

func writeTagLinks(out *htmlOut, tags []string, active string) {
	if len(tags) == 0 {
		return
	}
	out.raw(`<ul class="post-tags">`)
	for _, tag := range tags {
		out.raw(`<li><a class="`, appcore.TagClass(tag == active), `" href="`)
		out.href(appcore.BuildTagURL(tag))
		out.raw(`">#`)
		out.text(tag)
		out.raw(`</a></li>`)
	}
	out.raw(`</ul>`)
}

func articlePage(view appcore.ArticlePageView) templ.Component {
	return component(func(out *htmlOut) {
		article := view.Article
		out.raw(`<article class="post">`)
		out.raw(`<header class="post-header"><h1>`)
		out.text(article.Title)
		out.raw(`</h1><p class="post-meta">`)
		if article.Date != "" {
			out.raw(`<time>`)
			out.text(article.Date)
			out.raw(`</time>`)
		}
		if author := appcore.AuthorLabel(view.Site, article.Post); author != "" {
			out.raw(` <span class="post-author">`)
			out.text(author)
			out.raw(`</span>`)
		}
		out.raw(`</p>`)
		writeTagLinks(out, article.Tags, "")
		out.raw(`</header>`)
		out.component(view.Body)
		out.raw(`</article>`)
	})
}

func notFoundPage(view appcore.NotFoundPageView) templ.Component {
	return component(func(out *htmlOut) {
		site := view.Site
		out.raw(`<section class="not-found"><h1>`)
		out.text(site.NotFoundMessage)
		out.raw(`</h1><p>`)
		out.text(site.NotFoundDescription)
		out.raw(`</p><p class="request-path"><code>`)
		out.text(strings.TrimSpace(view.RequestPath))
		out.raw(`</code></p><a class="return-home" href="/">`)
		out.text(site.ReturnToHome)
		out.raw(`</a></section>`)
	})
}
