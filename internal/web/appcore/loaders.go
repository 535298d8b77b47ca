package appcore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"notionblog/framework"
)

func LoadHomePage(
	ctx context.Context,
	appCtx *Context,
	_ *http.Request,
	_ framework.EmptyParams,
) (PostListPageView, error) {
	source, err := postSource(appCtx)
	if err != nil {
		return PostListPageView{}, err
	}

	list, err := source.ListPosts(ctx, "")
	if err != nil {
		return PostListPageView{}, err
	}
	tags, err := source.Tags(ctx)
	if err != nil {
		return PostListPageView{}, err
	}

	site := appCtx.Site()
	return PostListPageView{
		PageTitle: site.Title,
		Site:      site,
		Posts:     list,
		Tags:      tags,
		Path:      "/",
	}, nil
}

// LoadTagPage lists posts carrying params.Tag. A tag without posts is not
// found rather than an empty listing.
func LoadTagPage(
	ctx context.Context,
	appCtx *Context,
	_ *http.Request,
	params framework.TagParams,
) (PostListPageView, error) {
	source, err := postSource(appCtx)
	if err != nil {
		return PostListPageView{}, err
	}

	tag := strings.TrimSpace(params.Tag)
	list, err := source.ListPosts(ctx, tag)
	if err != nil {
		return PostListPageView{}, err
	}
	if len(list) == 0 {
		return PostListPageView{}, fmt.Errorf("%w: %q", errEmptyTag, tag)
	}
	tags, err := source.Tags(ctx)
	if err != nil {
		return PostListPageView{}, err
	}

	site := appCtx.Site()
	return PostListPageView{
		PageTitle:   "#" + tag,
		Description: "Posts tagged " + tag,
		Site:        site,
		Posts:       list,
		Tags:        tags,
		ActiveTag:   tag,
		Path:        BuildTagURL(tag),
	}, nil
}

func LoadArticlePage(
	ctx context.Context,
	appCtx *Context,
	_ *http.Request,
	params framework.SlugParams,
) (ArticlePageView, error) {
	source, err := postSource(appCtx)
	if err != nil {
		return ArticlePageView{}, err
	}

	article, err := source.GetPostBySlug(ctx, params.Slug)
	if err != nil {
		return ArticlePageView{}, err
	}

	view := ArticlePageView{
		PageTitle: article.Title,
		Site:      appCtx.Site(),
		Article:   *article,
		Path:      BuildArticleURL(article.Slug),
	}
	if appCtx.renderer != nil {
		view.Body = appCtx.renderer.Article(article)
	}

	return view, nil
}

func BuildArticleURL(slug string) string {
	return "/articles/" + url.PathEscape(slug)
}

func BuildTagURL(tag string) string {
	return "/tags/" + url.PathEscape(tag)
}

// AbsoluteURL prefixes path with the configured root, when there is one.
func AbsoluteURL(appCtx *Context, path string) string {
	root := strings.TrimRight(appCtx.RootURL(), "/")
	if root == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return root + path
}

func postSource(appCtx *Context) (PostSource, error) {
	if appCtx == nil || appCtx.posts == nil {
		return nil, errPostsServiceUnavailable
	}
	return appCtx.posts, nil
}
