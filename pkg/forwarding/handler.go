// Package forwarding implements the data-plane request handling shared by
// every proxy instance: endpoint matching, Basic authentication, stats
// accounting, header rewriting, and backend dispatch.
package forwarding

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/relayd/relayd/pkg/model"
	"github.com/relayd/relayd/pkg/relaylog"
)

// TraceHeader carries a per-request trace ID through to the backend and
// back into this proxy's own logs, so a single forwarded request can be
// correlated across both ends without adding spec-visible state.
const TraceHeader = "X-Relayd-Trace-Id"

// Match is the read-only snapshot a StateMatcher hands back once it has
// found the service whose endpoint prefixes the request path. It is safe
// to use after the matcher's internal lock has been released.
type Match struct {
	ServiceName string
	From        *url.URL
	To          *url.URL
	Access      map[string]struct{}
}

// StateMatcher finds the service that owns an incoming request's path.
type StateMatcher interface {
	MatchEndpoint(path string) (Match, bool)
}

// StatsSink records a forwarded request's accounting.
type StatsSink interface {
	Inc(path, username string)
}

// MetricsSink records a forwarded request's Prometheus-visible counter,
// labeled by service and endpoint. Optional: a Handler with no MetricsSink
// attached simply skips this accounting.
type MetricsSink interface {
	IncProxyRequest(service, endpoint string)
}

// Handler is the per-instance data-plane HTTP handler.
type Handler struct {
	state   StateMatcher
	stats   StatsSink
	client  *http.Client
	metrics MetricsSink
}

// NewHandler builds a Handler over the given state matcher, stats sink,
// and shared backend client.
func NewHandler(state StateMatcher, stats StatsSink, client *http.Client) *Handler {
	return &Handler{state: state, stats: stats, client: client}
}

// WithMetrics attaches an optional Prometheus sink and returns the same
// Handler for chaining.
func (h *Handler) WithMetrics(metrics MetricsSink) *Handler {
	h.metrics = metrics
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	match, ok := h.state.MatchEndpoint(r.URL.Path)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	credential, ok := extractBasicAuth(r.Header.Get("Authorization"))
	if !ok {
		unauthorized(w)
		return
	}
	if _, allowed := match.Access[credential]; !allowed {
		unauthorized(w)
		return
	}

	username, ok := model.UsernameFromCredential(credential)
	if !ok {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	h.stats.Inc(r.URL.Path, username)
	if h.metrics != nil {
		h.metrics.IncProxyRequest(match.ServiceName, r.URL.Path)
	}

	trace := r.Header.Get(TraceHeader)
	if trace == "" {
		trace = uuid.NewString()
	}

	outReq := r.Clone(r.Context())
	peerIP := peerIPOf(r)
	outReq.Header.Set("X-Forwarded-For", peerIP)
	outReq.Header.Set(TraceHeader, trace)
	if host := r.Header.Get("Host"); host != "" {
		outReq.Header.Set("X-Forwarded-Host", host)
	} else if r.Host != "" {
		outReq.Header.Set("X-Forwarded-Host", r.Host)
	}

	reqPathQuery := r.URL.Path
	if r.URL.RawQuery != "" {
		reqPathQuery += "?" + r.URL.RawQuery
	}
	fromPathQuery := NormalizeFrom(pathQuery(match.From))
	var toPathQuery *string
	if pq := pathQuery(match.To); pq != "" || match.To.Path != "" {
		v := pq
		toPathQuery = &v
	}

	rewritten := RewritePath(reqPathQuery, fromPathQuery, toPathQuery)

	target := *match.To
	if i := strings.IndexByte(rewritten, '?'); i >= 0 {
		target.Path = rewritten[:i]
		target.RawQuery = rewritten[i+1:]
	} else {
		target.Path = rewritten
		target.RawQuery = ""
	}
	outReq.URL = &target
	outReq.Host = target.Host
	outReq.RequestURI = ""

	resp, err := h.client.Do(outReq)
	if err != nil {
		relaylog.Warn("forwarding: [%s] dispatch to %s failed: %v", trace, target.String(), err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	for k, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set(TraceHeader, trace)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func pathQuery(u *url.URL) string {
	if u == nil {
		return ""
	}
	pq := u.Path
	if u.RawQuery != "" {
		pq += "?" + u.RawQuery
	}
	return pq
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Service access"`)
	w.WriteHeader(http.StatusUnauthorized)
}

// extractBasicAuth parses an Authorization header value of the form
// "scheme credential", accepting only a case-insensitive "basic" scheme.
func extractBasicAuth(header string) (credential string, ok bool) {
	if header == "" {
		return "", false
	}
	sp := strings.IndexByte(header, ' ')
	if sp < 0 {
		return "", false
	}
	scheme, token := header[:sp], header[sp+1:]
	if !strings.EqualFold(scheme, "basic") {
		return "", false
	}
	if token == "" {
		return "", false
	}
	return token, true
}

func peerIPOf(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}
