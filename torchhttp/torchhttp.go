// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package torchhttp adapts inbound HTTP handling to error reporting: each
// request runs in its own reporting scope carrying the request's data, and
// handler panics are reported before they resume. Adapters are provided for
// plain net/http (as an alice constructor), gorilla/mux and chi.
package torchhttp

import (
	"net"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/mux"
	"github.com/justinas/alice"

	torchlite "github.com/torchlite-io/torchlite-go"
	"github.com/torchlite-io/torchlite-go/model"
)

// paramsFunc extracts router path parameters from a routed request.
type paramsFunc func(r *http.Request) map[string]interface{}

// Middleware wraps a handler so every request runs in a fresh reporting
// scope with its request data recorded. A panic in the handler is reported
// and then re-raised, leaving recovery policy to the server.
func Middleware(c *torchlite.Client) alice.Constructor {
	return middleware(c, nil)
}

// MuxMiddleware is Middleware plus gorilla/mux route variables as request
// params. mux.Router.Use accepts it directly.
func MuxMiddleware(c *torchlite.Client) mux.MiddlewareFunc {
	return middleware(c, muxParams)
}

// ChiMiddleware is Middleware plus chi URL parameters as request params.
// chi resolves the route after its middlewares run, so the parameters are
// attached when a notice is actually reported, not when the scope opens.
func ChiMiddleware(c *torchlite.Client) func(http.Handler) http.Handler {
	return middleware(c, chiParams)
}

func middleware(c *torchlite.Client, params paramsFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := c.EnterScope(r.Context())
			r = r.WithContext(ctx)

			info := requestInfo(r)
			if params != nil {
				info.Params = params(r)
			}
			c.SetRequest(ctx, info)

			defer func() {
				v := recover()
				if v == nil {
					return
				}
				// The route is resolved by now; pick up any params
				// that were not known when the scope opened.
				if params != nil {
					if p := params(r); len(p) > 0 {
						info.Params = p
						c.SetRequest(ctx, info)
					}
				}
				c.NotifyPanic(ctx, v, debug.Stack())
				panic(v)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func muxParams(r *http.Request) map[string]interface{} {
	vars := mux.Vars(r)
	if len(vars) == 0 {
		return nil
	}
	params := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		params[k] = v
	}
	return params
}

func chiParams(r *http.Request) map[string]interface{} {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || len(rctx.URLParams.Keys) == 0 {
		return nil
	}
	params := make(map[string]interface{}, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		if k == "*" {
			continue
		}
		params[k] = rctx.URLParams.Values[i]
	}
	return params
}

func requestInfo(r *http.Request) model.RequestInfo {
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[k] = strings.Join(v, ", ")
	}
	info := model.RequestInfo{
		URL:         requestURL(r),
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.RawQuery,
		Headers:     headers,
		RemoteIP:    remoteIP(r),
		UserAgent:   r.UserAgent(),
		Referer:     r.Referer(),
		ContentType: r.Header.Get("Content-Type"),
	}
	if r.ContentLength > 0 {
		info.ContentLength = r.ContentLength
	}
	return info
}

// requestURL reassembles the full URL of a server-side request, whose
// r.URL carries only the request-target.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// remoteIP prefers the first proxy-forwarded address over the peer address.
func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
