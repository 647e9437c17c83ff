// Package relayconf defines the proxy's static configuration surface and
// loads it from JSON, YAML, or TOML files. Loading and CLI merging is kept
// intentionally thin: relayd itself never prescribes how an operator
// discovers or deploys a config file, only how to parse one once handed a
// path.
package relayconf

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/relayd/relayd/pkg/model"
)

// DurationSeconds is a time.Duration that reads and writes as a plain
// integer count of seconds in JSON, YAML, and TOML, so config files never
// need to spell out Go's duration-string syntax.
type DurationSeconds time.Duration

func (d DurationSeconds) Duration() time.Duration { return time.Duration(d) }

func (d DurationSeconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(time.Duration(d).Seconds()))
}

func (d *DurationSeconds) UnmarshalJSON(data []byte) error {
	var secs int64
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	*d = DurationSeconds(time.Duration(secs) * time.Second)
	return nil
}

func (d DurationSeconds) MarshalYAML() (interface{}, error) {
	return int64(time.Duration(d).Seconds()), nil
}

func (d *DurationSeconds) UnmarshalYAML(node *yaml.Node) error {
	var secs int64
	if err := node.Decode(&secs); err != nil {
		return err
	}
	*d = DurationSeconds(time.Duration(secs) * time.Second)
	return nil
}

// UnmarshalTOML implements go-toml/v2's Unmarshaler interface, which hands
// back an already-decoded Go value rather than raw bytes.
func (d *DurationSeconds) UnmarshalTOML(value interface{}) error {
	secs, ok := value.(int64)
	if !ok {
		return fmt.Errorf("relayconf: expected integer seconds, got %T", value)
	}
	*d = DurationSeconds(time.Duration(secs) * time.Second)
	return nil
}

// ManagementConf configures the management API listener.
type ManagementConf struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
}

// DefaultManagementConf returns the loopback-only default the CLI falls
// back to when no management address is configured.
func DefaultManagementConf() ManagementConf {
	return ManagementConf{Addr: "127.0.0.1:6668"}
}

// ServerCertConf names the default certificate and key used by services
// that bind HTTPS addresses without specifying their own.
type ServerCertConf struct {
	CertPath string `json:"serverCertStorePath,omitempty" yaml:"serverCertStorePath,omitempty" toml:"serverCertStorePath,omitempty"`
	KeyPath  string `json:"serverKeyPath,omitempty" yaml:"serverKeyPath,omitempty" toml:"serverKeyPath,omitempty"`
}

// ServerConf configures the listener layer defaults for every spawned
// proxy instance.
type ServerConf struct {
	BindHTTPS    model.Addresses `json:"bindHttps,omitempty" yaml:"bindHttps,omitempty" toml:"bindHttps,omitempty"`
	BindHTTP     model.Addresses `json:"bindHttp,omitempty" yaml:"bindHttp,omitempty" toml:"bindHttp,omitempty"`
	ServerName   []string        `json:"serverName,omitempty" yaml:"serverName,omitempty" toml:"serverName,omitempty"`
	CPUThreads   uint            `json:"cpuThreads,omitempty" yaml:"cpuThreads,omitempty" toml:"cpuThreads,omitempty"`
	TCPKeepalive DurationSeconds `json:"tcpKeepaliveSecs,omitempty" yaml:"tcpKeepaliveSecs,omitempty" toml:"tcpKeepaliveSecs,omitempty"`
	TCPNoDelay   bool            `json:"tcpNodelay" yaml:"tcpNodelay" toml:"tcpNodelay"`
	HTTP1Only    bool            `json:"http1Only" yaml:"http1Only" toml:"http1Only"`
	HTTP2Only    bool            `json:"http2Only" yaml:"http2Only" toml:"http2Only"`
	ServerCert   ServerCertConf  `json:"serverCert" yaml:"serverCert" toml:"serverCert"`
}

// DefaultServerConf mirrors the reference proxy's server defaults: TCP
// keepalive of 5 minutes, Nagle's algorithm disabled, and ALPN offering
// both h2 and http/1.1.
func DefaultServerConf() ServerConf {
	return ServerConf{
		TCPKeepalive: DurationSeconds(300 * time.Second),
		TCPNoDelay:   true,
		HTTP1Only:    false,
		HTTP2Only:    false,
	}
}

// Addresses returns the union of BindHTTPS and BindHTTP.
func (s ServerConf) Addresses() model.Addresses {
	return s.BindHTTPS.Add(s.BindHTTP)
}

// ClientConf configures the backend-dispatch HTTP client that each proxy
// instance builds for itself.
type ClientConf struct {
	PoolIdleTimeout       DurationSeconds `json:"poolIdleTimeoutSecs,omitempty" yaml:"poolIdleTimeoutSecs,omitempty" toml:"poolIdleTimeoutSecs,omitempty"`
	PoolMaxIdlePerHost    int             `json:"poolMaxIdlePerHost" yaml:"poolMaxIdlePerHost" toml:"poolMaxIdlePerHost"`
	RetryCanceledRequests bool            `json:"retryCanceledRequests" yaml:"retryCanceledRequests" toml:"retryCanceledRequests"`
}

// DefaultClientConf returns the client defaults used when a proxy instance
// does not override them.
func DefaultClientConf() ClientConf {
	return ClientConf{
		PoolIdleTimeout:    DurationSeconds(90 * time.Second),
		PoolMaxIdlePerHost: 32,
	}
}

// ProxyConf is the complete set of defaults a Manager applies to every
// spawned instance before CreateService-level overrides are merged in.
type ProxyConf struct {
	Client ClientConf `json:"client" yaml:"client" toml:"client"`
	Server ServerConf `json:"server" yaml:"server" toml:"server"`
}

// DefaultProxyConf returns the built-in defaults.
func DefaultProxyConf() ProxyConf {
	return ProxyConf{
		Client: DefaultClientConf(),
		Server: DefaultServerConf(),
	}
}

// LoadPath reads a JSON, YAML, or TOML config file, selected by extension,
// and merges it over DefaultProxyConf.
func LoadPath(path string) (ProxyConf, error) {
	conf := DefaultProxyConf()
	data, err := os.ReadFile(path)
	if err != nil {
		return conf, fmt.Errorf("relayconf: reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &conf)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &conf)
	case ".toml":
		err = toml.Unmarshal(data, &conf)
	default:
		return conf, fmt.Errorf("relayconf: unrecognized config extension for %s", path)
	}
	if err != nil {
		return conf, fmt.Errorf("relayconf: parsing %s: %w", path, err)
	}
	return conf, nil
}

// LoadEnv builds a ProxyConf purely from RELAYD_* environment variables,
// for deployments that prefer not to ship a config file at all.
func LoadEnv() ProxyConf {
	conf := DefaultProxyConf()
	if addr := os.Getenv("RELAYD_DEFAULT_ADDR"); addr != "" {
		if tcp, err := net.ResolveTCPAddr("tcp", addr); err == nil {
			conf.Server.BindHTTP = model.NewAddresses(*tcp)
		}
	}
	if name := os.Getenv("RELAYD_SERVER_NAME"); name != "" {
		conf.Server.ServerName = []string{name}
	}
	return conf
}
