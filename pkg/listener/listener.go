// Package listener owns the plain and TLS accept loops that feed incoming
// connections to a proxy instance's HTTP server.
package listener

import (
	"context"
	"crypto/tls"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/relayd/relayd/pkg/relaylog"
)

// TCPOptions controls the socket-level behavior of a listener's accepted
// connections: keepalive probing and Nagle's algorithm.
type TCPOptions struct {
	Keepalive time.Duration
	NoDelay   bool
}

func (o TCPOptions) apply(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if o.Keepalive > 0 {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(o.Keepalive)
	}
	_ = tc.SetNoDelay(o.NoDelay)
}

// warnLogger adapts the standard library's *log.Logger interface (used by
// http.Server.ErrorLog) onto relaylog, so a failed TLS handshake is logged
// at WARN rather than going to stderr.
type warnLogWriter struct{}

func (warnLogWriter) Write(p []byte) (int, error) {
	relaylog.Warn("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func warnLogger() *log.Logger {
	return log.New(warnLogWriter{}, "", 0)
}

// ListenHTTP binds addr and serves handler over plain HTTP until stop is
// closed. It returns once the listener has been closed.
func ListenHTTP(addr string, tcpOpts TCPOptions, handler http.Handler, stop <-chan struct{}) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(&handshakeLoggingListener{Listener: ln, tcpOpts: tcpOpts}, handler, stop)
}

// ListenHTTPS binds addr, wraps it with tlsConf, and serves handler until
// stop is closed.
func ListenHTTPS(addr string, tcpOpts TCPOptions, tlsConf *tls.Config, handler http.Handler, stop <-chan struct{}) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	tlsLn := tls.NewListener(&handshakeLoggingListener{Listener: ln, tcpOpts: tcpOpts}, tlsConf)
	return serve(tlsLn, handler, stop)
}

func serve(ln net.Listener, handler http.Handler, stop <-chan struct{}) error {
	srv := &http.Server{Handler: handler, ErrorLog: warnLogger()}
	go func() {
		<-stop
		// Shutdown (not Close) stops accepting new connections but lets
		// in-flight requests finish before returning.
		if err := srv.Shutdown(context.Background()); err != nil {
			relaylog.Warn("listener: graceful shutdown on %s: %v", ln.Addr(), err)
		}
	}()
	err := srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// handshakeLoggingListener wraps an accept loop so that per-connection TLS
// handshake failures (detected by the standard library deeper in
// tls.Conn.Handshake) are logged at WARN without aborting the listener.
// net/http already performs the handshake lazily on first read/write per
// connection and logs via its own ErrorLog; this wrapper additionally
// classifies Accept-time errors as DEBUG when the listener is still
// healthy and ERROR when the accept loop must stop.
type handshakeLoggingListener struct {
	net.Listener
	tcpOpts TCPOptions
}

func (l *handshakeLoggingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		//nolint:staticcheck // Temporary is still the signal net/http itself checks before retrying Accept.
		if ne, ok := err.(net.Error); ok && ne.Temporary() {
			relaylog.Debug("listener: transient accept error on %s: %v", l.Listener.Addr(), err)
		} else {
			relaylog.Error("listener: fatal accept error on %s: %v", l.Listener.Addr(), err)
		}
		return nil, err
	}
	l.tcpOpts.apply(conn)
	return &addrConn{Conn: conn}, nil
}

// addrConn exists purely to give future instrumentation a single place to
// hang per-connection logging (e.g. handshake WARN) keyed by RemoteAddr;
// net.Conn already exposes RemoteAddr() directly so no extra wrapping of
// reads/writes is needed.
type addrConn struct {
	net.Conn
}
