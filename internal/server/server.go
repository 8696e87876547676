// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/invowk/hotswap/internal/engine"
	"github.com/invowk/hotswap/internal/graph"
	"github.com/invowk/hotswap/internal/issue"
	"github.com/invowk/hotswap/internal/protocol"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// WebSocketPath is the route loader hooks connect to.
	WebSocketPath = "/ws"
	// DefaultAddr binds to a random loopback port.
	DefaultAddr = "127.0.0.1:0"

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// ErrNoEngine is returned by New when Config.Engine is nil.
var ErrNoEngine = errors.New("server: engine is required")

type (
	// Config configures a Server.
	Config struct {
		// Addr is the host:port to listen on. Defaults to DefaultAddr.
		Addr string
		// Engine answers websocket clients and provides dumps.
		Engine *engine.Engine
		// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
		Gatherer prometheus.Gatherer
		// Logger receives lifecycle logs. Nil discards them.
		Logger *log.Logger
	}

	// Server serves an engine over HTTP.
	Server struct {
		engine   *engine.Engine
		logger   *log.Logger
		addr     string
		handler  http.Handler
		upgrader websocket.Upgrader

		// State management (atomic for lock-free reads)
		state   atomic.Int32
		stateMu sync.Mutex
		lastErr error

		cancel    context.CancelFunc
		wg        sync.WaitGroup
		startedCh chan struct{}
		errCh     chan error

		listener   net.Listener
		httpServer *http.Server
	}
)

// New creates a server. Nothing listens until Start is called.
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, ErrNoEngine
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	s := &Server{
		engine:    cfg.Engine,
		logger:    logger,
		addr:      addr,
		startedCh: make(chan struct{}),
		errCh:     make(chan error, 1),
	}
	s.state.Store(int32(StateCreated))

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+WebSocketPath, s.handleWebSocket)
	mux.HandleFunc("GET /dump", s.handleDump)
	mux.HandleFunc("GET /dump.dot", s.handleDOT)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", s.handleHealth)
	s.handler = mux

	return s, nil
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler { return s.handler }

// State returns the current server state (atomic, lock-free read).
func (s *Server) State() State { return State(s.state.Load()) }

// IsRunning returns true if the server is in the Running state.
func (s *Server) IsRunning() bool { return s.State() == StateRunning }

// Err returns a channel for receiving async serve errors.
func (s *Server) Err() <-chan error { return s.errCh }

// LastError returns the error that caused the Failed state, or nil.
func (s *Server) LastError() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastErr
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the base HTTP URL of the server.
func (s *Server) URL() string { return "http://" + s.Addr() }

// WebSocketURL returns the URL loader hooks dial.
func (s *Server) WebSocketURL() string { return "ws://" + s.Addr() + WebSocketPath }

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		err := fmt.Errorf("context cancelled before start: %w", ctx.Err())
		s.fail(err)
		return err
	default:
	}

	// Atomic state transition: Created -> Starting
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start server in state %s", s.State())
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s.stateMu.Lock()
	s.cancel = cancel
	s.stateMu.Unlock()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		err = issue.NewErrorContext().
			WithOperation("listen").
			WithResource(s.addr).
			WithSuggestion("Pick another address with --listen or the listen key of hotswap.cue").
			Wrap(err).
			BuildError()
		s.fail(err)
		return err
	}

	s.stateMu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv := s.httpServer
	s.stateMu.Unlock()

	s.wg.Go(func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
			s.fail(err)
		}
	})

	if s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(s.startedCh)
	}
	s.logger.Info("listening", "addr", ln.Addr().String())
	return nil
}

// WaitForReady blocks until the server is running or ctx is cancelled.
func (s *Server) WaitForReady(ctx context.Context) error {
	select {
	case <-s.startedCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for server ready: %w", ctx.Err())
	}
}

// Stop shuts the server down, closing websocket sessions.
func (s *Server) Stop() error {
	for {
		current := s.State()
		switch current {
		case StateStopped, StateFailed, StateStopping:
			return nil
		case StateCreated:
			if s.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return nil
			}
			continue
		case StateStarting, StateRunning:
			if !s.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				continue
			}
		}
		break
	}

	s.stateMu.Lock()
	srv, cancel := s.httpServer, s.cancel
	s.stateMu.Unlock()

	// Sessions run on hijacked connections, which Shutdown does not track.
	if cancel != nil {
		cancel()
	}

	var err error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = srv.Shutdown(ctx)
	}
	s.wg.Wait()
	s.state.Store(int32(StateStopped))
	s.logger.Info("stopped")
	return err
}

// Run starts the server and blocks until ctx ends or serving fails.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-s.errCh:
		_ = s.Stop()
		return err
	}
}

func (s *Server) fail(err error) {
	s.stateMu.Lock()
	s.lastErr = err
	cancel := s.cancel
	s.stateMu.Unlock()

	s.state.Store(int32(StateFailed))
	if cancel != nil {
		cancel()
	}

	select {
	case s.errCh <- err:
	default:
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	ep := protocol.NewWebSocketEndpoint(conn)
	defer func() { _ = ep.Close() }()

	s.logger.Debug("client connected", "remote", r.RemoteAddr)
	if err := s.engine.Serve(r.Context(), ep); err != nil {
		s.logger.Warn("client session ended", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.logger.Debug("client disconnected", "remote", r.RemoteAddr)
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	nodes := s.engine.Dump()
	switch r.URL.Query().Get("format") {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(nodes); err != nil {
			s.logger.Warn("write dump", "error", err)
		}
	case "dot":
		writeText(w, "text/vnd.graphviz", graph.DOT(nodes))
	case "mermaid":
		writeText(w, "text/plain; charset=utf-8", graph.Mermaid(nodes))
	default:
		http.Error(w, "unknown format (valid: json, dot, mermaid)", http.StatusBadRequest)
	}
}

func (s *Server) handleDOT(w http.ResponseWriter, _ *http.Request) {
	writeText(w, "text/vnd.graphviz", graph.DOT(s.engine.Dump()))
}

// handleHealth answers "ok" while running and 503 with the state otherwise,
// so a loader polling during shutdown backs off.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if state := s.State(); state != StateRunning {
		http.Error(w, state.String(), http.StatusServiceUnavailable)
		return
	}
	writeText(w, "text/plain; charset=utf-8", "ok")
}

func writeText(w http.ResponseWriter, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	_, _ = io.WriteString(w, body)
}
