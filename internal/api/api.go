// Package api provides HTTP handlers and the main API server logic for the
// diagnostic service.
//
// It exposes the completion endpoint the diagnostic flow submits to, the
// hosted session endpoints that drive the flow server-side, and read-only
// content endpoints for the quiz, product, and conversation catalogs.
package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Apiverde/ApiverdeDemo/internal/diagnostic"
	"github.com/Apiverde/ApiverdeDemo/internal/gateway"
	"github.com/Apiverde/ApiverdeDemo/internal/genai"
	"github.com/Apiverde/ApiverdeDemo/internal/store"
)

// Default server configuration constants
const (
	// DefaultAddr is the default API server listen address
	DefaultAddr = ":8080"
	// DefaultReadTimeout bounds how long reading a request may take
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds how long writing a response may take,
	// sized for the upstream completion round trip
	DefaultWriteTimeout = 120 * time.Second
)

// Opts holds configuration for the API server.
type Opts struct {
	// Addr is the listen address.
	Addr string
	// CompletionBaseURL overrides where hosted sessions send their
	// completion requests. Empty means this server's own endpoint.
	CompletionBaseURL string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithCompletionBaseURL points hosted sessions at an external completion
// gateway instead of this server.
func WithCompletionBaseURL(u string) Option {
	return func(o *Opts) {
		o.CompletionBaseURL = u
	}
}

// Server wires the session manager, the GenAI client, and the store behind
// the HTTP surface.
type Server struct {
	mgr      *diagnostic.SessionManager
	gaClient genai.ClientInterface
	st       store.Store
	addr     string
}

// NewServer creates a Server from already-constructed dependencies.
func NewServer(mgr *diagnostic.SessionManager, gaClient genai.ClientInterface, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{mgr: mgr, gaClient: gaClient, st: st, addr: cfg.Addr}
}

// Handler returns the routed HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/diagnostic", s.diagnosticHandler)

	mux.HandleFunc("POST /api/sessions", s.createSessionHandler)
	mux.HandleFunc("GET /api/sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("POST /api/sessions/{id}/primary", s.primaryChoiceHandler)
	mux.HandleFunc("POST /api/sessions/{id}/secondary", s.secondaryChoiceHandler)
	mux.HandleFunc("POST /api/sessions/{id}/context", s.contextHandler)
	mux.HandleFunc("POST /api/sessions/{id}/constraints", s.constraintsHandler)
	mux.HandleFunc("POST /api/sessions/{id}/submit", s.submitHandler)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.resetSessionHandler)

	mux.HandleFunc("GET /api/concerns", s.concernsHandler)
	mux.HandleFunc("GET /api/quiz/{concern}", s.quizHandler)
	mux.HandleFunc("GET /api/products/{concern}", s.productsHandler)
	mux.HandleFunc("GET /api/conversation/{concern}", s.conversationHandler)
	mux.HandleFunc("GET /api/scenarios", s.scenariosHandler)

	mux.HandleFunc("GET /health", s.healthHandler)

	return mux
}

// Run builds the full service from options and serves until the listener
// fails. Hosted sessions submit through the gateway client; with no
// override it targets this server's own completion endpoint.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, gatewayOpts []gateway.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	st, err := store.NewStore(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	var gaClient genai.ClientInterface
	if cli, err := genai.NewClient(genaiOpts...); err != nil {
		slog.Warn("Run: GenAI client unavailable, completion endpoint disabled", "error", err)
	} else {
		gaClient = cli
	}

	baseURL := cfg.CompletionBaseURL
	if baseURL == "" {
		baseURL = selfBaseURL(cfg.Addr)
		slog.Debug("Run: no completion base URL configured, using own endpoint", "baseURL", baseURL)
	}
	completer, err := gateway.NewClient(append([]gateway.Option{gateway.WithBaseURL(baseURL)}, gatewayOpts...)...)
	if err != nil {
		return fmt.Errorf("failed to create gateway client: %w", err)
	}

	mgr := diagnostic.NewSessionManager(completer, st)
	srv := NewServer(mgr, gaClient, st, apiOpts...)

	httpSrv := &http.Server{
		Addr:         srv.addr,
		Handler:      srv.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
	slog.Info("API server listening", "addr", srv.addr)
	return httpSrv.ListenAndServe()
}

// selfBaseURL converts a listen address into a URL the gateway client can
// dial back on loopback.
func selfBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, port))
}
