// Package framework defines the page-module contracts the blog's routes are
// built from: how a path becomes params, params become a view, and a view
// becomes markup inside its layouts.
package framework

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"notionblog/framework/router"

	"github.com/a-h/templ"
)

// PartialRequestHeader is sent by datastar on its fetches. Such requests get
// the page body without layouts.
const PartialRequestHeader = "Datastar-Request"

func IsPartialRequest(r *http.Request) bool {
	return r != nil && strings.EqualFold(strings.TrimSpace(r.Header.Get(PartialRequestHeader)), "true")
}

type EmptyParams struct{}

type SlugParams struct {
	Slug string
}

type TagParams struct {
	Tag string
}

type ParamsParser[P interface{}] func(path string) (P, bool)

// RouteParams adapts a compiled route into a ParamsParser. build receives the
// matched segments and may still reject them, e.g. when one is empty.
func RouteParams[P interface{}](route router.Route, build func(router.Params) (P, bool)) ParamsParser[P] {
	return func(path string) (P, bool) {
		params, ok := route.Match(path)
		if !ok {
			var zero P
			return zero, false
		}
		return build(params)
	}
}

type PageLoader[C interface{}, P interface{}, VM interface{}] func(
	ctx context.Context,
	appCtx C,
	r *http.Request,
	params P,
) (VM, error)

type PageRenderer[VM interface{}] func(view VM) templ.Component

type LayoutRenderer[VM interface{}] func(view VM, child templ.Component) templ.Component

type PageModule[C interface{}, P interface{}, VM interface{}] struct {
	Pattern     string
	ParseParams ParamsParser[P]
	Load        PageLoader[C, P, VM]
	Render      PageRenderer[VM]
	Layouts     []LayoutRenderer[VM]
}

// Mount serves a plain handler next to the page modules, such as the image
// refresh API or the live image stream. An empty CachePolicy leaves
// Cache-Control to the handler.
type Mount struct {
	Pattern     string
	Handler     http.Handler
	CachePolicy string
}

// ErrorClass decides which response a failed page load gets.
type ErrorClass int

const (
	ErrorClassServer ErrorClass = iota
	ErrorClassNotFound
	ErrorClassBadRequest
)

func (c ErrorClass) Status() int {
	switch c {
	case ErrorClassNotFound:
		return http.StatusNotFound
	case ErrorClassBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Classifier combines not-found and bad-request predicates. Nil predicates
// never match; everything unmatched is a server error.
func Classifier(isNotFound, isBadRequest func(error) bool) func(error) ErrorClass {
	return func(err error) ErrorClass {
		switch {
		case err == nil:
			return ErrorClassServer
		case isNotFound != nil && isNotFound(err):
			return ErrorClassNotFound
		case isBadRequest != nil && isBadRequest(err):
			return ErrorClassBadRequest
		default:
			return ErrorClassServer
		}
	}
}

type RuntimeContext[C interface{}] interface {
	AppContext() C
	IsPartialRequest(r *http.Request) bool
	RenderPage(r *http.Request, w http.ResponseWriter, component templ.Component) error
	Classify(err error) ErrorClass
	RespondNotFound(w http.ResponseWriter, r *http.Request, notFoundContext NotFoundContext)
	RespondBadRequest(w http.ResponseWriter, message string)
	RespondServerError(w http.ResponseWriter, err error)
}

type NotFoundSource string

const (
	NotFoundSourcePageLoad       NotFoundSource = "page_load"
	NotFoundSourceUnmatchedRoute NotFoundSource = "unmatched_route"
)

type NotFoundContext struct {
	RequestPath         string
	MatchedRoutePattern string
	Source              NotFoundSource
}

type RouteHandler[C interface{}] interface {
	TryServe(runtime RuntimeContext[C], w http.ResponseWriter, r *http.Request) bool
}

type PageOnlyRouteHandler[C interface{}, P interface{}, VM interface{}] struct {
	Page PageModule[C, P, VM]
}

func (h PageOnlyRouteHandler[C, P, VM]) TryServe(
	runtime RuntimeContext[C],
	w http.ResponseWriter,
	r *http.Request,
) bool {
	params, ok := h.Page.ParseParams(r.URL.Path)
	if !ok {
		return false
	}

	view, err := h.Page.Load(r.Context(), runtime.AppContext(), r, params)
	if err != nil {
		respondLoadError(runtime, w, r, err, h.Page.Pattern)
		return true
	}

	component := h.Page.Render(view)
	if !runtime.IsPartialRequest(r) {
		for idx := len(h.Page.Layouts) - 1; idx >= 0; idx-- {
			component = h.Page.Layouts[idx](view, component)
		}
	}
	if err := runtime.RenderPage(r, w, component); err != nil {
		runtime.RespondServerError(w, fmt.Errorf("render route %q: %w", h.Page.Pattern, err))
	}
	return true
}

func respondLoadError[C interface{}](
	runtime RuntimeContext[C],
	w http.ResponseWriter,
	r *http.Request,
	err error,
	routePattern string,
) {
	switch class := runtime.Classify(err); class {
	case ErrorClassNotFound:
		runtime.RespondNotFound(w, r, NotFoundContext{
			RequestPath:         r.URL.Path,
			MatchedRoutePattern: routePattern,
			Source:              NotFoundSourcePageLoad,
		})
	case ErrorClassBadRequest:
		runtime.RespondBadRequest(w, http.StatusText(class.Status()))
	default:
		runtime.RespondServerError(w, fmt.Errorf("load route %q: %w", routePattern, err))
	}
}
