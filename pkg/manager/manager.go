// Package manager implements the Proxy Manager: the top-level registry
// that spawns, indexes, and tears down Proxy Instances.
package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/relayd/relayd/pkg/forwarding"
	"github.com/relayd/relayd/pkg/listener"
	"github.com/relayd/relayd/pkg/metrics"
	"github.com/relayd/relayd/pkg/model"
	"github.com/relayd/relayd/pkg/proxy"
	"github.com/relayd/relayd/pkg/relayconf"
	"github.com/relayd/relayd/pkg/relaylog"
)

// Manager indexes running Proxy Instances by their binding key (the union
// of HTTPS/HTTP addresses). Its map lock is always acquired before any
// Instance's state or stats lock, per the global lock-ordering contract.
type Manager struct {
	mu          sync.RWMutex
	defaultConf relayconf.ProxyConf
	metrics     *metrics.Collector
	proxies     map[string]*proxy.Instance
}

// New builds a Manager with the given default configuration, applied to
// every instance it spawns before per-service overrides.
func New(defaultConf relayconf.ProxyConf) *Manager {
	return &Manager{
		defaultConf: defaultConf,
		proxies:     make(map[string]*proxy.Instance),
	}
}

func key(addrs model.Addresses) string { return addrs.String() }

// SetDefaultConf replaces the defaults applied to services spawned from
// now on. Already-running instances are unaffected; a config-file reload
// only changes what new (or recreated) services inherit.
func (m *Manager) SetDefaultConf(conf relayconf.ProxyConf) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConf = conf
}

// SetMetrics attaches the Prometheus collector every instance spawned from
// now on will report forwarded requests against. Already-running instances
// are unaffected.
func (m *Manager) SetMetrics(collector *metrics.Collector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = collector
}

// Proxy returns the running instance bound to addrs, if any.
func (m *Manager) Proxy(addrs model.Addresses) (*proxy.Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.proxies[key(addrs)]
	return inst, ok
}

// ProxyByName scans every running instance for one exposing a service
// named name. Used by the management API's per-service routes, which are
// keyed by service name rather than binding key.
func (m *Manager) ProxyByName(name string) (*proxy.Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inst := range m.proxies {
		if _, err := inst.State().GetService(name); err == nil {
			return inst, true
		}
	}
	return nil, false
}

// Proxies returns every running instance.
func (m *Manager) Proxies() []*proxy.Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*proxy.Instance, 0, len(m.proxies))
	for _, inst := range m.proxies {
		out = append(out, inst)
	}
	return out
}

// confUpdate merges the manager's defaults into a service's requested
// configuration: an empty BindHTTPS/BindHTTP, ServerName, or CPUThreads
// falls back to the default. server_name must be non-empty once merged, or
// the service is rejected. The effective certificate hash is computed when
// a cert is configured, or synthesized from the default cert+key when the
// service configures none. Returns the merged CreateService (the copy that
// must be stored) alongside the ProxyConf used to spawn/bind the instance.
func (m *Manager) confUpdate(create model.CreateService) (model.CreateService, relayconf.ProxyConf, error) {
	conf := m.defaultConf

	if !create.BindHTTPS.Empty() {
		conf.Server.BindHTTPS = create.BindHTTPS
	}
	if !create.BindHTTP.Empty() {
		conf.Server.BindHTTP = create.BindHTTP
	}
	if len(create.ServerName) == 0 {
		create.ServerName = conf.Server.ServerName
	}
	if len(create.ServerName) == 0 {
		return create, conf, &model.ConfError{Msg: "Missing public address information"}
	}
	if create.CPUThreads != nil {
		conf.Server.CPUThreads = *create.CPUThreads
	}

	switch {
	case create.Cert != nil:
		hash, err := model.CertHash(create.Cert.CertPath)
		if err != nil {
			return create, conf, &model.ConfError{Msg: "reading certificate: " + err.Error()}
		}
		create.Cert.Hash = hash
		conf.Server.ServerCert.CertPath = create.Cert.CertPath
		conf.Server.ServerCert.KeyPath = create.Cert.KeyPath
	case conf.Server.ServerCert.CertPath != "" && conf.Server.ServerCert.KeyPath != "":
		hash, err := model.CertHash(conf.Server.ServerCert.CertPath)
		if err != nil {
			return create, conf, &model.ConfError{Msg: "reading default certificate: " + err.Error()}
		}
		create.Cert = &model.CreateServiceCert{
			CertPath: conf.Server.ServerCert.CertPath,
			KeyPath:  conf.Server.ServerCert.KeyPath,
			Hash:     hash,
		}
	}
	return create, conf, nil
}

// GetOrSpawn returns the running instance bound to create's addresses,
// spawning a new one if none exists yet, along with create merged against
// the manager's defaults (server_name/cert filled in, cert hash computed) —
// the caller must store this merged value, not its original argument. The
// manager's write lock is held only long enough to insert the new instance
// after it has successfully started; a failed spawn never appears in the
// registry.
func (m *Manager) GetOrSpawn(ctx context.Context, create model.CreateService) (*proxy.Instance, model.CreateService, error) {
	merged, conf, err := m.confUpdate(create)
	if err != nil {
		return nil, merged, err
	}
	addrs := conf.Server.Addresses()
	if addrs.Empty() {
		return nil, merged, &model.ConfError{Msg: "service has no bind addresses"}
	}

	if inst, ok := m.Proxy(addrs); ok {
		return inst, merged, nil
	}

	inst, err := m.spawn(ctx, addrs, conf)
	if err != nil {
		return nil, merged, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.proxies[key(addrs)]; ok {
		// Lost a race with a concurrent spawn for the same addresses;
		// stop the redundant instance and use the winner.
		inst.Stop()
		return existing, merged, nil
	}
	m.proxies[key(addrs)] = inst
	return inst, merged, nil
}

func (m *Manager) spawn(ctx context.Context, addrs model.Addresses, conf relayconf.ProxyConf) (*proxy.Instance, error) {
	m.mu.RLock()
	var metricsSink forwarding.MetricsSink
	if m.metrics != nil {
		metricsSink = m.metrics
	}
	m.mu.RUnlock()

	inst := proxy.New(addrs, conf, metricsSink)

	var tlsOpts *listener.TLSOptions
	var httpsAddrs []string
	if !conf.Server.BindHTTPS.Empty() {
		if conf.Server.ServerCert.CertPath == "" || conf.Server.ServerCert.KeyPath == "" {
			return nil, &model.ConfError{Msg: "bindHttps set without a certificate"}
		}
		for _, a := range conf.Server.BindHTTPS {
			httpsAddrs = append(httpsAddrs, a.String())
		}
		tlsOpts = &listener.TLSOptions{
			CertPath:  conf.Server.ServerCert.CertPath,
			KeyPath:   conf.Server.ServerCert.KeyPath,
			HTTP1Only: conf.Server.HTTP1Only,
			HTTP2Only: conf.Server.HTTP2Only,
		}
	}
	var httpAddrs []string
	for _, a := range conf.Server.BindHTTP {
		httpAddrs = append(httpAddrs, a.String())
	}

	if err := inst.Start(ctx, httpsAddrs, httpAddrs, tlsOpts); err != nil {
		return nil, fmt.Errorf("spawn: %w", err)
	}
	relaylog.Normal("manager: spawned proxy instance on %s", addrs)
	return inst, nil
}

// Stop tears down every running instance. Intended for process shutdown.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, inst := range m.proxies {
		inst.Stop()
		delete(m.proxies, k)
	}
}
