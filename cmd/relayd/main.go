// Command relayd runs the reverse proxy's management API and spawns proxy
// instances on demand as services are created against it.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relayd/relayd/pkg/api"
	"github.com/relayd/relayd/pkg/manager"
	"github.com/relayd/relayd/pkg/relayconf"
	"github.com/relayd/relayd/pkg/relaylog"
)

func main() {
	var (
		configPath     = flag.String("config", "", "path to a JSON, YAML, or TOML config file")
		logDir         = flag.String("log-dir", "", "directory to write relayd.log into (default: stderr)")
		managementAddr = flag.String("management-addr", "127.0.0.1:6668", "management API bind address")
		defaultCert    = flag.String("default-cert", "", "default server certificate path")
		defaultKey     = flag.String("default-key", "", "default server private key path")
		verbose        = flag.Bool("verbose", false, "enable verbose logging")
		watch          = flag.Bool("watch", false, "reload defaults when --config changes on disk")
	)
	flag.Parse()

	if *verbose {
		relaylog.SetLevel(relaylog.LevelVerbose)
	}
	if *logDir != "" {
		if err := relaylog.SetOutputDir(*logDir); err != nil {
			relaylog.Error("relayd: %v", err)
			os.Exit(1)
		}
	}

	if err := run(*configPath, *managementAddr, *defaultCert, *defaultKey, *watch); err != nil {
		relaylog.Error("relayd: %v", err)
		os.Exit(1)
	}
}

func run(configPath, managementAddr, defaultCert, defaultKey string, watch bool) error {
	conf := relayconf.DefaultProxyConf()
	if configPath != "" {
		var err error
		conf, err = relayconf.LoadPath(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}
	if defaultCert != "" {
		conf.Server.ServerCert.CertPath = defaultCert
	}
	if defaultKey != "" {
		conf.Server.ServerCert.KeyPath = defaultKey
	}

	if host, _, err := net.SplitHostPort(managementAddr); err == nil {
		if ip := net.ParseIP(host); ip != nil && !ip.IsLoopback() {
			relaylog.Warn("relayd: management API bound to non-loopback address %s", managementAddr)
		}
	}

	mgr := manager.New(conf)
	defer mgr.Stop()

	if watch && configPath != "" {
		w, err := relayconf.WatchPath(configPath, mgr.SetDefaultConf)
		if err != nil {
			return fmt.Errorf("watching config: %w", err)
		}
		defer w.Stop()
	}

	mgmt := api.New(mgr, prometheus.NewRegistry())
	if err := mgmt.Bind(managementAddr); err != nil {
		return fmt.Errorf("binding management API: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	relaylog.Normal("relayd: management API on %s", mgmt.LocalAddr())
	return mgmt.Serve(ctx)
}
