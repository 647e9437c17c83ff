// Package api implements the management HTTP surface: the control-plane
// REST API used to create and inspect services across every running proxy
// instance.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relayd/relayd/pkg/manager"
	"github.com/relayd/relayd/pkg/metrics"
	"github.com/relayd/relayd/pkg/relaylog"
)

// maxRequestBodyBytes caps how large a management API request body may be
// before it is rejected.
const maxRequestBodyBytes = 8 * 1024 * 1024

// Management is the control-plane HTTP server.
type Management struct {
	manager  *manager.Manager
	metrics  *metrics.Collector
	registry *prometheus.Registry
	engine   *gin.Engine
	server   *http.Server
	ln       net.Listener
}

// New builds a Management server over mgr. If registry is non-nil, a
// /metrics endpoint and a request counter are wired in.
func New(mgr *manager.Manager, registry *prometheus.Registry) *Management {
	m := &Management{manager: mgr, registry: registry}
	if registry != nil {
		m.metrics = metrics.New(metrics.DefaultConfig(), registry)
		mgr.SetMetrics(m.metrics)
	}
	m.engine = m.router()
	return m
}

func (m *Management) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), maxBodyMiddleware(maxRequestBodyBytes), loggingMiddleware())
	if m.metrics != nil {
		r.Use(func(c *gin.Context) {
			c.Next()
			m.metrics.ManagementRequests.WithLabelValues(c.Request.Method, c.FullPath()).Inc()
		})
		r.GET("/metrics", gin.WrapH(metrics.Handler(m.registry)))
	}
	r.NoRoute(notFoundHandler)

	r.GET("/services", m.getServices)
	r.POST("/services", m.postServices)
	r.GET("/services/:service", m.getService)
	r.DELETE("/services/:service", m.deleteService)
	r.GET("/services/:service/users", m.getUsers)
	r.POST("/services/:service/users", m.postUser)
	r.GET("/services/:service/users/:user", m.getUser)
	r.DELETE("/services/:service/users/:user", m.deleteUser)
	r.GET("/services/:service/users/:user/stats", m.getUserStats)
	r.GET("/services/:service/users/:user/endpoints/stats", m.getUserEndpointStats)

	return r
}

// Bind starts listening on addr without blocking; call Serve to accept
// connections.
func (m *Management) Bind(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	m.ln = ln
	m.server = &http.Server{Handler: m.engine}
	return nil
}

// LocalAddr returns the bound address, valid after Bind.
func (m *Management) LocalAddr() net.Addr {
	if m.ln == nil {
		return nil
	}
	return m.ln.Addr()
}

// Serve blocks accepting connections until ctx is cancelled.
func (m *Management) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.server.Shutdown(shutdownCtx); err != nil {
			relaylog.Warn("management: graceful shutdown: %v", err)
		}
	}()
	relaylog.Normal("management: listening on %s", m.ln.Addr())
	err := m.server.Serve(m.ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
