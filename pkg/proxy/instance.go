package proxy

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/relayd/relayd/pkg/forwarding"
	"github.com/relayd/relayd/pkg/listener"
	"github.com/relayd/relayd/pkg/model"
	"github.com/relayd/relayd/pkg/relayconf"
	"github.com/relayd/relayd/pkg/relaylog"
)

// Instance is a single Proxy Instance: one or more listeners sharing a
// binding key (the union of HTTPS/HTTP addresses), and the set of services
// multiplexed onto them.
type Instance struct {
	Addresses model.Addresses

	conf    relayconf.ProxyConf
	state   *State
	stats   *Stats
	client  *http.Client
	metrics forwarding.MetricsSink

	stop     chan struct{}
	stopOnce chan struct{}
	done     chan struct{}
}

// New builds an Instance from its effective configuration. metrics may be
// nil, in which case forwarded requests are simply not counted toward the
// management API's Prometheus collector. It does not start any listener;
// call Start for that.
func New(addresses model.Addresses, conf relayconf.ProxyConf, metrics forwarding.MetricsSink) *Instance {
	return &Instance{
		Addresses: addresses,
		conf:      conf,
		state:     NewState(),
		stats:     NewStats(),
		client:    newBackendClient(conf),
		metrics:   metrics,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func newBackendClient(conf relayconf.ProxyConf) *http.Client {
	idle := conf.Client.PoolIdleTimeout.Duration()
	if idle <= 0 {
		idle = 90 * time.Second
	}
	maxIdle := conf.Client.PoolMaxIdlePerHost
	if maxIdle <= 0 {
		maxIdle = 32
	}
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: maxIdle,
			IdleConnTimeout:     idle,
		},
	}
}

// Start launches the instance's listeners, one goroutine per bind address,
// each pinned to its own OS thread, so a heavily loaded service cannot
// starve the management API's goroutines or a sibling instance. It returns
// an error immediately if neither bind address is set; otherwise it returns
// without waiting for the listeners. Stop signals them and waits for them
// to exit.
//
// A fixed-size worker pool sized by conf.Server.CPUThreads (minimum 1)
// bounds how many requests this instance processes concurrently,
// approximating the reference implementation's per-instance multi-threaded
// runtime without needing a second process-wide scheduler.
func (p *Instance) Start(ctx context.Context, httpsAddrs, httpAddrs []string, tlsOpts *listener.TLSOptions) error {
	if len(httpsAddrs) == 0 && len(httpAddrs) == 0 {
		return &model.ConfError{Msg: "neither bindHttps nor bindHttp is set"}
	}
	workers := int(p.conf.Server.CPUThreads)
	if workers < 1 {
		workers = 1
	}

	handler := p.limitedHandler(workers)
	tcpOpts := listener.TCPOptions{
		Keepalive: p.conf.Server.TCPKeepalive.Duration(),
		NoDelay:   p.conf.Server.TCPNoDelay,
	}

	errCh := make(chan error, len(httpsAddrs)+len(httpAddrs))
	started := 0

	if tlsOpts != nil {
		for _, addr := range httpsAddrs {
			addr := addr
			started++
			go func() {
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
				tlsConf, err := listener.LoadTLSConfig(*tlsOpts)
				if err != nil {
					errCh <- err
					return
				}
				errCh <- listener.ListenHTTPS(addr, tcpOpts, tlsConf, handler, p.stop)
			}()
		}
	}
	for _, addr := range httpAddrs {
		addr := addr
		started++
		go func() {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			errCh <- listener.ListenHTTP(addr, tcpOpts, handler, p.stop)
		}()
	}

	go func() {
		var firstErr error
		for i := 0; i < started; i++ {
			if err := <-errCh; err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if firstErr != nil {
			relaylog.Error("proxy instance %s: %v", p.Addresses, firstErr)
		}
		close(p.done)
	}()

	return nil
}

// limitedHandler wraps the forwarding handler with a bounded worker pool:
// a buffered channel of size `workers` acts as a semaphore, so at most
// `workers` requests are forwarded concurrently by this instance.
func (p *Instance) limitedHandler(workers int) http.Handler {
	sem := make(chan struct{}, workers)
	fwd := forwarding.NewHandler(p.state, p.stats, p.client)
	if p.metrics != nil {
		fwd = fwd.WithMetrics(p.metrics)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sem <- struct{}{}
		defer func() { <-sem }()
		fwd.ServeHTTP(w, r)
	})
}

// Stop signals every listener on this instance to close and waits for them
// to finish accepting new connections (in-flight requests are allowed to
// complete by the underlying http.Server.Shutdown semantics).
func (p *Instance) Stop() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	<-p.done
}

// State returns the instance's service registry.
func (p *Instance) State() *State { return p.state }

// Stats returns the instance's request counters.
func (p *Instance) Stats() *Stats { return p.stats }

// AddService adds a service and resets any stale stats left over from a
// prior service at the same endpoint. The state lock is released before
// the stats lock is acquired, per the global lock-ordering contract.
func (p *Instance) AddService(create model.CreateService) (model.Service, error) {
	svc, err := p.state.AddService(create, p.Addresses)
	if err != nil {
		return model.Service{}, err
	}
	p.stats.ResetEndpoint(svc.From)
	return svc, nil
}

// RemoveService removes a service by name.
func (p *Instance) RemoveService(name string) error {
	svc, err := p.state.GetService(name)
	if err != nil {
		return err
	}
	if err := p.state.RemoveService(name); err != nil {
		return err
	}
	p.stats.ResetEndpoint(svc.From)
	return nil
}

// AddUser adds a credential to a service and resets any stale stats for
// that username.
func (p *Instance) AddUser(serviceName string, user model.CreateUser) (model.User, error) {
	u, err := p.state.AddUser(serviceName, user)
	if err != nil {
		return model.User{}, err
	}
	p.stats.ResetUser(user.Username)
	return u, nil
}

// RemoveUser removes a credential from a service and resets its stats.
func (p *Instance) RemoveUser(serviceName, username string) error {
	if err := p.state.RemoveUser(serviceName, username); err != nil {
		return err
	}
	p.stats.ResetUser(username)
	return nil
}
