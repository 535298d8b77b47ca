package web

import (
	"errors"
	"fmt"
	"net/http"

	"notionblog/framework"
	"notionblog/framework/httpserver"
	"notionblog/internal/config"
	"notionblog/internal/gateway"
	"notionblog/internal/loader"
	"notionblog/internal/render"
	"notionblog/internal/web/appcore"

	"github.com/a-h/templ"
	"go.uber.org/zap"
)

const (
	MetricsPath = "/metrics"
)

type Deps struct {
	Config   config.Config
	Site     config.SiteConfig
	Posts    appcore.PostSource
	Renderer appcore.BodyRenderer
	// Gateway serves gateway.RefreshPath; usually a *gateway.Handler.
	Gateway http.Handler
	// Loader configures the loaders resumed by the live image endpoint.
	Loader  loader.Options
	Metrics http.Handler
	Logger  *zap.Logger
}

func NewHandler(deps Deps) (http.Handler, error) {
	if deps.Posts == nil {
		return nil, errors.New("posts source is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	appCtx := appcore.NewContext(deps.Posts, deps.Renderer, deps.Site, deps.Config.RootURL)
	policies := httpserver.DefaultCachePolicies()

	liveEndpoint := render.DefaultLiveEndpoint
	if r, ok := deps.Renderer.(*render.Renderer); ok {
		liveEndpoint = r.LiveEndpoint()
	}

	mounts := []framework.Mount{{
		Pattern:     liveEndpoint,
		Handler:     NewLiveImageHandler(deps.Loader, liveEndpoint, logger),
		CachePolicy: policies.Live,
	}}
	if deps.Gateway != nil {
		mounts = append(mounts, framework.Mount{Pattern: gateway.RefreshPath, Handler: deps.Gateway})
	}
	if deps.Metrics != nil {
		mounts = append(mounts, framework.Mount{
			Pattern:     MetricsPath,
			Handler:     deps.Metrics,
			CachePolicy: policies.Error,
		})
	}

	handler, err := httpserver.New(httpserver.Config[*appcore.Context]{
		AppContext: appCtx,
		Handlers:   Handlers(appCtx),
		Static: httpserver.StaticMount{
			URLPrefix: "/static/",
			Dir:       deps.Config.StaticDir,
		},
		Mounts:            mounts,
		CachePolicies:     policies,
		IsNotFoundError:   appcore.IsNotFoundError,
		IsBadRequestError: appcore.IsBadRequestError,
		NotFoundPage:      notFoundComponent(appCtx),
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create http server: %w", err)
	}

	return handler, nil
}

func notFoundComponent(appCtx *appcore.Context) func(framework.NotFoundContext) templ.Component {
	return func(notFoundContext framework.NotFoundContext) templ.Component {
		view := appcore.NewNotFoundView(appCtx.Site(), notFoundContext.RequestPath)
		return layout(appCtx, view, notFoundPage(view))
	}
}
