// Package server exposes the Transport Surface: the HTTP endpoints a
// conversational Turn is driven through, the SSE Dispatcher that serializes
// pipeline events onto one response body, and the range-aware video
// delivery handler. A ServerAdapter is deliberately small: register
// handlers, serve, shut down. The stdlib adapter is the only implementation
// this module ships, negotiating HTTP/2 cleartext (h2c) so that one
// connection can carry a long-lived SSE stream alongside concurrent video
// range requests without starving on the browser's per-origin HTTP/1.1
// connection cap.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/lookatitude/avatar-gateway/internal/httputil"
)

// ServerAdapter is the minimum surface a transport implementation exposes.
// RegisterHandler binds a method+path route to an http.Handler; Serve blocks
// until ctx is canceled or the server exits; Shutdown performs a graceful
// drain.
type ServerAdapter interface {
	RegisterHandler(method, path string, handler http.Handler) error
	Serve(ctx context.Context, addr string) error
	Shutdown(ctx context.Context) error
}

// Config configures a ServerAdapter constructed through the registry.
type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// H2C enables HTTP/2 cleartext negotiation, appropriate for internal
	// deployments sitting behind a TLS-terminating proxy. Production
	// deployments fronted directly by browsers should terminate TLS and
	// negotiate HTTP/2 via ALPN instead, which net/http does natively once
	// TLSConfig is set; H2C exists for the cleartext case.
	H2C bool
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		// SSE responses are long-lived; WriteTimeout in net/http bounds the
		// full response including the body, so a Turn-scoped adapter must
		// set this generously or to zero. The registry default favors
		// correctness for the conversation stream over a tight timeout.
		c.WriteTimeout = 0
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 120 * time.Second
	}
	return c
}

// Factory constructs a ServerAdapter from a Config.
type Factory func(cfg Config) (ServerAdapter, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register adds a named adapter factory to the global registry. It is
// intended to be called from adapter init() functions. Registering a
// duplicate name overwrites the previous factory. Register panics on an
// empty name or nil factory, since both indicate a programming error at
// package init time.
func Register(name string, f Factory) {
	if name == "" {
		panic("server: Register called with empty name")
	}
	if f == nil {
		panic("server: Register called with nil factory")
	}
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// New creates a ServerAdapter by looking up the named factory in the
// registry and calling it with cfg.
func New(name string, cfg Config) (ServerAdapter, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("server: unknown adapter %q (registered: %v)", name, List())
	}
	return f(cfg)
}

// List returns the sorted names of all registered adapters.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("stdlib", func(cfg Config) (ServerAdapter, error) {
		return NewStdlibAdapter(cfg), nil
	})
}

// StdlibAdapter implements ServerAdapter on top of gorilla/mux and
// net/http, upgraded to HTTP/2 cleartext via golang.org/x/net/http2/h2c when
// Config.H2C is set.
type StdlibAdapter struct {
	cfg    Config
	router *mux.Router
	life   httputil.ServerLifecycle
}

// NewStdlibAdapter constructs a StdlibAdapter ready to accept registered
// handlers.
func NewStdlibAdapter(cfg Config) *StdlibAdapter {
	return &StdlibAdapter{
		cfg:    cfg.withDefaults(),
		router: mux.NewRouter(),
	}
}

// Router exposes the underlying *mux.Router for callers that need routing
// features beyond RegisterHandler, such as path variables.
func (a *StdlibAdapter) Router() *mux.Router {
	return a.router
}

// RegisterHandler binds handler to method and path on the adapter's router.
func (a *StdlibAdapter) RegisterHandler(method, path string, handler http.Handler) error {
	a.router.Methods(method).Path(path).Handler(handler)
	return nil
}

// Serve starts the HTTP server and blocks until ctx is canceled or the
// server exits on its own.
func (a *StdlibAdapter) Serve(ctx context.Context, addr string) error {
	var handler http.Handler = a.router
	if a.cfg.H2C {
		h2s := &http2.Server{}
		handler = h2c.NewHandler(a.router, h2s)
	}
	return a.life.Serve(ctx, addr, handler, a.cfg.ReadTimeout, a.cfg.WriteTimeout, a.cfg.IdleTimeout, "server/stdlib")
}

// Shutdown gracefully drains the server started by Serve.
func (a *StdlibAdapter) Shutdown(ctx context.Context) error {
	return a.life.Shutdown(ctx, "server/stdlib")
}
