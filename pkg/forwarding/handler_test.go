package forwarding

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMatcher struct {
	match Match
	ok    bool
}

func (f *fakeMatcher) MatchEndpoint(path string) (Match, bool) { return f.match, f.ok }

type fakeStats struct {
	calls []string
}

func (f *fakeStats) Inc(path, username string) { f.calls = append(f.calls, username+"@"+path) }

func TestServeHTTPNoMatchReturns404(t *testing.T) {
	h := NewHandler(&fakeMatcher{ok: false}, &fakeStats{}, http.DefaultClient)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeHTTPMissingAuthReturns401(t *testing.T) {
	from, _ := url.Parse("/api")
	to, _ := url.Parse("http://backend/")
	h := NewHandler(&fakeMatcher{ok: true, match: Match{ServiceName: "svc", From: from, To: to, Access: map[string]struct{}{}}}, &fakeStats{}, http.DefaultClient)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
}

func TestServeHTTPForbiddenOnBadCredentialEncoding(t *testing.T) {
	from, _ := url.Parse("/api")
	to, _ := url.Parse("http://backend/")
	access := map[string]struct{}{"not-base64!!": {}}
	h := NewHandler(&fakeMatcher{ok: true, match: Match{ServiceName: "svc", From: from, To: to, Access: access}}, &fakeStats{}, http.DefaultClient)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Header.Set("Authorization", "Basic not-base64!!")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServeHTTPDispatchesToBackend(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dest/x", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Forwarded-For"))
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	from, _ := url.Parse("/api")
	to, _ := url.Parse(backend.URL + "/dest")
	cred := base64.StdEncoding.EncodeToString([]byte("alice:secret"))
	access := map[string]struct{}{cred: {}}
	stats := &fakeStats{}
	h := NewHandler(&fakeMatcher{ok: true, match: Match{ServiceName: "svc", From: from, To: to, Access: access}}, stats, backend.Client())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Header.Set("Authorization", "Basic "+cred)
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"alice@/api/x"}, stats.calls)
}
