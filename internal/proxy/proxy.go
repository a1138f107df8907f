package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/baechuer/cityevents/services/discovery-service/internal/domain"
	"github.com/baechuer/cityevents/services/discovery-service/internal/logger"
	appCtx "github.com/baechuer/cityevents/services/discovery-service/internal/pkg/context"
	"github.com/baechuer/cityevents/services/discovery-service/internal/transport/http/response"
)

const (
	HeaderXRequestID = "X-Request-Id"

	// PathParam names the upstream path in the query variant: /api/tm?path=...
	PathParam = "path"
	keyParam  = "apikey"

	upstreamHeaderTimeout = 10 * time.Second
)

// MissingPathBody is the 400 body for a query-variant request without a path.
var MissingPathBody = map[string]string{"error": "Missing 'path' query param"}

// Proxy forwards read-only requests to the upstream API with the server-side key attached.
//
//	/api/tm/discovery/v2/events.json?keyword=foo
//	/api/tm?path=discovery/v2/events.json&keyword=foo
//
// both become <upstream>/discovery/v2/events.json?apikey=<key>&keyword=foo.
type Proxy struct {
	target      *url.URL
	apiKey      string
	stripPrefix string
	rp          *httputil.ReverseProxy
}

func New(upstreamBase, apiKey, stripPrefix string) (*Proxy, error) {
	target, err := url.Parse(strings.TrimRight(upstreamBase, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse upstream base: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream base %q must be an absolute URL", upstreamBase)
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ResponseHeaderTimeout = upstreamHeaderTimeout

	p := &Proxy{
		target:      target,
		apiKey:      apiKey,
		stripPrefix: strings.TrimRight(stripPrefix, "/"),
	}
	p.rp = &httputil.ReverseProxy{
		Rewrite:        p.rewrite,
		Transport:      otelhttp.NewTransport(base),
		ModifyResponse: modifyResponse,
		ErrorHandler:   errorHandler,
	}
	return p, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		response.Fail(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET and HEAD are proxied", nil, appCtx.GetRequestID(r.Context()))
		return
	}
	if p.apiKey == "" {
		response.Err(w, r, domain.ErrConfig("Missing Ticketmaster API key"))
		return
	}

	path, q, ok := p.resolve(r)
	if !ok {
		response.JSON(w, http.StatusBadRequest, MissingPathBody)
		return
	}
	q.Del(keyParam)
	q.Set(keyParam, p.apiKey)

	out := r.Clone(r.Context())
	out.URL.Path = path
	out.URL.RawPath = ""
	out.URL.RawQuery = q.Encode()

	p.rp.ServeHTTP(w, out)
}

// resolve returns the upstream path and the query to forward. ok is false
// for a query-variant request that names no path.
func (p *Proxy) resolve(r *http.Request) (string, url.Values, bool) {
	q := r.URL.Query()

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, p.stripPrefix), "/")
	if rest != "" {
		return "/" + rest, q, true
	}

	path := strings.Trim(strings.TrimSpace(q.Get(PathParam)), "/")
	q.Del(PathParam)
	if path == "" {
		return "", nil, false
	}
	return "/" + path, q, true
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	u := pr.Out.URL
	u.Scheme = p.target.Scheme
	u.Host = p.target.Host
	u.Path = p.target.Path + pr.In.URL.Path
	u.RawPath = ""
	u.RawQuery = pr.In.URL.RawQuery
	pr.Out.Host = p.target.Host

	// credentials meant for this service never reach the upstream
	pr.Out.Header.Del("Authorization")
	pr.Out.Header.Del("Cookie")

	if reqID := appCtx.GetRequestID(pr.In.Context()); reqID != "" {
		pr.Out.Header.Set(HeaderXRequestID, reqID)
	}
}

func modifyResponse(resp *http.Response) error {
	if resp.Header.Get("Content-Type") == "" {
		resp.Header.Set("Content-Type", "application/json")
	}
	resp.Header.Del("Set-Cookie")

	logger.Ctx(resp.Request.Context()).Debug().
		Int("status", resp.StatusCode).
		Str("path", resp.Request.URL.Path).
		Msg("proxy_response")
	return nil
}

func errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Ctx(ctx).Debug().Err(err).Msg("proxy request cancelled by client")
		return
	}

	// the outgoing URL carries the key
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	logger.Ctx(ctx).Error().Err(err).Str("path", r.URL.Path).Msg("upstream_proxy_error")

	response.Fail(w, http.StatusBadGateway, string(domain.CodeUpstream), "Failed to fetch", nil, appCtx.GetRequestID(ctx))
}
