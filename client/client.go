// Package client is a typed SDK for the relayd management API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/relayd/relayd/pkg/model"
)

const (
	// DefaultManagementAPIURL is used when no override is configured.
	DefaultManagementAPIURL = "http://127.0.0.1:6668"
	// EnvManagementAPIURL names the environment variable that overrides
	// DefaultManagementAPIURL.
	EnvManagementAPIURL = "MANAGEMENT_API_URL"
	// maxBodySize caps how much of a response body the client will read.
	maxBodySize = 8 * 1024 * 1024
)

// SendRequestError is returned for any non-2xx management API response,
// except one with Content-Length: 0, which (like a 204) is never an error.
type SendRequestError struct {
	Code    int
	Message string
	Method  string
	URL     string
}

func (e *SendRequestError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, e.Message)
}

// Client is a thin wrapper over net/http for the management API.
type Client struct {
	baseURL string
	http    *http.Client
}

// DefaultManagementAPIURLFromEnv returns EnvManagementAPIURL's value if
// set, otherwise DefaultManagementAPIURL.
func DefaultManagementAPIURLFromEnv() string {
	if v := os.Getenv(EnvManagementAPIURL); v != "" {
		return v
	}
	return DefaultManagementAPIURL
}

// New builds a Client against the given base URL.
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: http.DefaultClient}
}

// TryDefault builds a Client against DefaultManagementAPIURLFromEnv().
func TryDefault() *Client {
	return New(DefaultManagementAPIURLFromEnv())
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &SendRequestError{Code: http.StatusInternalServerError, Message: err.Error(), Method: method, URL: c.baseURL + path}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || resp.Header.Get("Content-Length") == "0" {
		return nil
	}

	limited := io.LimitReader(resp.Body, maxBodySize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return fmt.Errorf("client: reading response: %w", err)
	}
	if len(data) > maxBodySize {
		return fmt.Errorf("client: response exceeded %d bytes", maxBodySize)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp model.ErrorResponse
		if jsonErr := json.Unmarshal(data, &errResp); jsonErr == nil && errResp.Message != "" {
			return &SendRequestError{Code: resp.StatusCode, Message: errResp.Message, Method: method, URL: c.baseURL + path}
		}
		return &SendRequestError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Method: method, URL: c.baseURL + path}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decoding response: %w", err)
	}
	return nil
}

// GetServices lists every service across all running proxy instances.
func (c *Client) GetServices(ctx context.Context) ([]model.Service, error) {
	var services []model.Service
	err := c.do(ctx, http.MethodGet, "/services", nil, &services)
	return services, err
}

// CreateService creates or multiplexes a service.
func (c *Client) CreateService(ctx context.Context, create model.CreateService) (model.Service, error) {
	var svc model.Service
	err := c.do(ctx, http.MethodPost, "/services", create, &svc)
	return svc, err
}

// GetService fetches one service by name.
func (c *Client) GetService(ctx context.Context, name string) (model.Service, error) {
	var svc model.Service
	err := c.do(ctx, http.MethodGet, "/services/"+name, nil, &svc)
	return svc, err
}

// DeleteService removes a service by name.
func (c *Client) DeleteService(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/services/"+name, nil, nil)
}

// GetUsers lists users registered against a service.
func (c *Client) GetUsers(ctx context.Context, service string) ([]model.User, error) {
	var users []model.User
	err := c.do(ctx, http.MethodGet, "/services/"+service+"/users", nil, &users)
	return users, err
}

// CreateUser registers a credential against a service.
func (c *Client) CreateUser(ctx context.Context, service string, create model.CreateUser) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodPost, "/services/"+service+"/users", create, &user)
	return user, err
}

// GetUser fetches one user by username.
func (c *Client) GetUser(ctx context.Context, service, username string) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodGet, "/services/"+service+"/users/"+username, nil, &user)
	return user, err
}

// DeleteUser removes a credential from a service.
func (c *Client) DeleteUser(ctx context.Context, service, username string) error {
	return c.do(ctx, http.MethodDelete, "/services/"+service+"/users/"+username, nil, nil)
}

// GetUserStats fetches the total request count for a user.
func (c *Client) GetUserStats(ctx context.Context, service, username string) (int64, error) {
	var out struct {
		Requests int64 `json:"requests"`
	}
	err := c.do(ctx, http.MethodGet, "/services/"+service+"/users/"+username+"/stats", nil, &out)
	return out.Requests, err
}

// GetUserEndpointStats fetches the per-endpoint request counts for a user.
func (c *Client) GetUserEndpointStats(ctx context.Context, service, username string) (model.UserEndpointStats, error) {
	var out model.UserEndpointStats
	err := c.do(ctx, http.MethodGet, "/services/"+service+"/users/"+username+"/endpoints/stats", nil, &out)
	return out, err
}
