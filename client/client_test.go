package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayd/relayd/pkg/model"
)

func TestGetServicesDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]model.Service{{CreateService: model.CreateService{Name: "svc"}}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	services, err := c.GetServices(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "svc", services[0].Name)
}

func TestDeleteServiceNoContentIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.DeleteService(context.Background(), "svc")
	assert.NoError(t, err)
}

func TestNonTwoXXSurfacesSendRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(model.ErrorResponse{Message: "service already exists"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.CreateService(context.Background(), model.CreateService{Name: "svc", From: "/a", To: "http://backend/"})
	require.Error(t, err)

	var sendErr *SendRequestError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, http.StatusConflict, sendErr.Code)
	assert.Equal(t, "service already exists", sendErr.Message)
}

func TestDefaultManagementAPIURLFromEnv(t *testing.T) {
	t.Setenv(EnvManagementAPIURL, "")
	assert.Equal(t, DefaultManagementAPIURL, DefaultManagementAPIURLFromEnv())

	t.Setenv(EnvManagementAPIURL, "http://example.invalid:9999")
	assert.Equal(t, "http://example.invalid:9999", DefaultManagementAPIURLFromEnv())
}
