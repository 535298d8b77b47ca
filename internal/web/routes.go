package web

import (
	"notionblog/framework"
	"notionblog/framework/router"
	"notionblog/internal/web/appcore"
)

const (
	homePattern    = "/"
	tagPattern     = "/tags/{tag}"
	articlePattern = "/articles/{slug}"
)

var (
	homeRoute    = router.MustCompile(homePattern)
	tagRoute     = router.MustCompile(tagPattern)
	articleRoute = router.MustCompile(articlePattern)
)

// Handlers lists the page routes in match order.
func Handlers(appCtx *appcore.Context) []framework.RouteHandler[*appcore.Context] {
	return []framework.RouteHandler[*appcore.Context]{
		framework.PageOnlyRouteHandler[*appcore.Context, framework.EmptyParams, appcore.PostListPageView]{
			Page: framework.PageModule[*appcore.Context, framework.EmptyParams, appcore.PostListPageView]{
				Pattern:     homePattern,
				ParseParams: parseHomeParams,
				Load:        appcore.LoadHomePage,
				Render:      postListPage,
				Layouts: []framework.LayoutRenderer[appcore.PostListPageView]{
					rootLayout[appcore.PostListPageView](appCtx),
				},
			},
		},
		framework.PageOnlyRouteHandler[*appcore.Context, framework.TagParams, appcore.PostListPageView]{
			Page: framework.PageModule[*appcore.Context, framework.TagParams, appcore.PostListPageView]{
				Pattern:     tagPattern,
				ParseParams: parseTagParams,
				Load:        appcore.LoadTagPage,
				Render:      postListPage,
				Layouts: []framework.LayoutRenderer[appcore.PostListPageView]{
					rootLayout[appcore.PostListPageView](appCtx),
				},
			},
		},
		framework.PageOnlyRouteHandler[*appcore.Context, framework.SlugParams, appcore.ArticlePageView]{
			Page: framework.PageModule[*appcore.Context, framework.SlugParams, appcore.ArticlePageView]{
				Pattern:     articlePattern,
				ParseParams: parseArticleParams,
				Load:        appcore.LoadArticlePage,
				Render:      articlePage,
				Layouts: []framework.LayoutRenderer[appcore.ArticlePageView]{
					rootLayout[appcore.ArticlePageView](appCtx),
				},
			},
		},
	}
}

var (
	parseHomeParams = framework.RouteParams(homeRoute, func(router.Params) (framework.EmptyParams, bool) {
		return framework.EmptyParams{}, true
	})
	parseTagParams = framework.RouteParams(tagRoute, func(params router.Params) (framework.TagParams, bool) {
		tag, ok := params.Param("tag")
		return framework.TagParams{Tag: tag}, ok && tag != ""
	})
	parseArticleParams = framework.RouteParams(articleRoute, func(params router.Params) (framework.SlugParams, bool) {
		slug, ok := params.Param("slug")
		return framework.SlugParams{Slug: slug}, ok && slug != ""
	})
)
