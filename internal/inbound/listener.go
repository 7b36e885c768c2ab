package inbound

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"local-traffic/internal/applog"
	"local-traffic/internal/config"
)

// Listener owns the single bound socket the proxy accepts connections
// on, serving both HTTP/1.1 and HTTP/2 over it — h2c upgrade for plain
// text, ALPN negotiation for TLS — and rebinding only when internal/
// state decides a restart is required (port or SSL material changed).
//
// Grounded on the teacher's main.go/server.go listener bring-up
// (fasthttp.Server.ListenAndServe on a single configured port),
// generalized to net/http plus golang.org/x/net/http2's h2c and
// ConfigureServer helpers: fasthttp has no HTTP/2 server side, so this
// is the inbound half of the deviation internal/dispatch already
// documents for the downstream leg.
type Listener struct {
	handler http.Handler

	mu     sync.Mutex
	server *http.Server
	ln     net.Listener
}

// NewListener builds a Listener serving handler once Start is called.
func NewListener(handler http.Handler) *Listener {
	return &Listener{handler: handler}
}

// Start binds and serves cfg's port, choosing plain h2c or TLS+ALPN
// framing by whether cfg.SSL is set. It returns once the socket is bound;
// serving continues on a background goroutine.
func (l *Listener) Start(cfg *config.Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	addr := fmt.Sprintf(":%d", cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("inbound: listen on %s: %w", addr, err)
	}

	server := &http.Server{Addr: addr}

	if cfg.SSL != nil {
		cert, err := tls.X509KeyPair([]byte(cfg.SSL.Cert), []byte(cfg.SSL.Key))
		if err != nil {
			ln.Close()
			return fmt.Errorf("inbound: loading TLS material: %w", err)
		}
		server.Handler = l.handler
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"h2", "http/1.1"},
		}
		if err := http2.ConfigureServer(server, &http2.Server{}); err != nil {
			ln.Close()
			return fmt.Errorf("inbound: configuring http2: %w", err)
		}
		tlsLn := tls.NewListener(ln, server.TLSConfig)
		l.ln = tlsLn
		l.server = server
		go l.serve(tlsLn)
	} else {
		server.Handler = h2c.NewHandler(l.handler, &http2.Server{})
		l.ln = ln
		l.server = server
		go l.serve(ln)
	}

	applog.Banner(cfg.Mode, cfg.Port, cfg.SSL != nil)
	return nil
}

func (l *Listener) serve(ln net.Listener) {
	if err := l.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		applog.Error("inbound: listener stopped unexpectedly: %v", err)
	}
}

// Stop gracefully shuts down the currently bound server, if any.
func (l *Listener) Stop() error {
	l.mu.Lock()
	server := l.server
	l.mu.Unlock()

	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// Restart stops the current listener, if bound, and starts a new one for
// cfg. It matches internal/state.RestartFunc's signature so
// state.SetRestartFunc(listener.Restart) wires the two packages together
// without either depending on the other's internals.
func (l *Listener) Restart(cfg *config.Config) error {
	if err := l.Stop(); err != nil {
		applog.Warn("inbound: graceful shutdown before restart failed: %v", err)
	}
	return l.Start(cfg)
}
