package api

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/relayd/relayd/pkg/manager"
	"github.com/relayd/relayd/pkg/model"
	"github.com/relayd/relayd/pkg/relayconf"
)

func freeAddr(t *testing.T) model.Addresses {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := *ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())
	return model.NewAddresses(addr)
}

func newTestManagement(t *testing.T) *Management {
	t.Helper()
	conf := relayconf.DefaultProxyConf()
	conf.Server.BindHTTP = freeAddr(t)
	conf.Server.ServerName = []string{"edge.example.com"}
	mgr := manager.New(conf)
	t.Cleanup(mgr.Stop)
	return New(mgr, prometheus.NewRegistry())
}

func doJSON(m *Management, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	m.engine.ServeHTTP(rec, req)
	return rec
}

func TestPostServicesCreatesService(t *testing.T) {
	m := newTestManagement(t)
	rec := doJSON(m, http.MethodPost, "/services", model.CreateService{Name: "svc", From: "/svc", To: "http://backend/"})
	require.Equal(t, http.StatusOK, rec.Code)

	var svc model.Service
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &svc))
	require.Equal(t, "svc", svc.Name)
}

func TestPostServicesValidationFailureIs400(t *testing.T) {
	m := newTestManagement(t)
	rec := doJSON(m, http.MethodPost, "/services", model.CreateService{Name: "svc"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostServicesDuplicateNameIs409(t *testing.T) {
	m := newTestManagement(t)
	require.Equal(t, http.StatusOK, doJSON(m, http.MethodPost, "/services", model.CreateService{Name: "dup", From: "/a", To: "http://backend/"}).Code)
	rec := doJSON(m, http.MethodPost, "/services", model.CreateService{Name: "dup", From: "/b", To: "http://backend/"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetServiceNotFoundIs400(t *testing.T) {
	m := newTestManagement(t)
	rec := doJSON(m, http.MethodGet, "/services/missing", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRouteIs404WithBody(t *testing.T) {
	m := newTestManagement(t)
	rec := doJSON(m, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "not found")
}

func TestUserLifecycleThroughAPI(t *testing.T) {
	m := newTestManagement(t)
	require.Equal(t, http.StatusOK, doJSON(m, http.MethodPost, "/services", model.CreateService{Name: "svc", From: "/svc", To: "http://backend/"}).Code)

	rec := doJSON(m, http.MethodPost, "/services/svc/users", model.CreateUser{Username: "alice", Password: "secret"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(m, http.MethodGet, "/services/svc/users/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(m, http.MethodDelete, "/services/svc/users/alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(m, http.MethodGet, "/services/svc/users/alice", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpointExposed(t *testing.T) {
	m := newTestManagement(t)
	rec := doJSON(m, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
