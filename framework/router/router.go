// Package router matches request paths against patterns such as
// "/articles/{slug}".
package router

import (
	"fmt"
	"net/url"
	"strings"
)

type segment struct {
	literal string
	param   string
}

type Route struct {
	pattern  string
	segments []segment
}

type Params map[string]string

func (p Params) Param(name string) (string, bool) {
	value, ok := p[name]
	return value, ok
}

func Compile(pattern string) (Route, error) {
	if !strings.HasPrefix(pattern, "/") {
		return Route{}, fmt.Errorf("pattern %q must start with /", pattern)
	}

	route := Route{pattern: pattern}
	seen := map[string]bool{}
	for _, part := range splitPath(pattern) {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := strings.TrimSpace(part[1 : len(part)-1])
			if name == "" {
				return Route{}, fmt.Errorf("pattern %q has an empty parameter", pattern)
			}
			if seen[name] {
				return Route{}, fmt.Errorf("pattern %q repeats parameter %q", pattern, name)
			}
			seen[name] = true
			route.segments = append(route.segments, segment{param: name})
			continue
		}
		if strings.ContainsAny(part, "{}") {
			return Route{}, fmt.Errorf("pattern %q has a malformed segment %q", pattern, part)
		}
		route.segments = append(route.segments, segment{literal: part})
	}

	return route, nil
}

func MustCompile(pattern string) Route {
	route, err := Compile(pattern)
	if err != nil {
		panic(err)
	}

	return route
}

func (r Route) Pattern() string {
	return r.pattern
}

// Match reports whether path fits the route. A trailing slash is ignored
// and parameter values are path-unescaped.
func (r Route) Match(path string) (Params, bool) {
	parts := splitPath(path)
	if len(parts) != len(r.segments) {
		return nil, false
	}

	params := Params{}
	for idx, seg := range r.segments {
		part := parts[idx]
		if seg.param == "" {
			if part != seg.literal {
				return nil, false
			}
			continue
		}

		value, err := url.PathUnescape(part)
		if err != nil || strings.TrimSpace(value) == "" {
			return nil, false
		}
		params[seg.param] = value
	}

	return params, true
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "/")
}
