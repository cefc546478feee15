// Package api exposes the bot over HTTP.
//
// It serves the Twilio webhook, a message injection endpoint that returns
// the reply synchronously, and read-only member views for operators.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/conversation"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
)

const (
	// DefaultAddr is the default listen address. Binding beyond loopback
	// requires an API token.
	DefaultAddr = "127.0.0.1:8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// maxBodySize caps JSON request bodies.
	maxBodySize = 64 << 10
)

// ErrInsecureBind is returned when the operator endpoints would be reachable
// beyond loopback without a bearer token.
var ErrInsecureBind = errors.New("api: refusing to serve operator endpoints on a non-loopback address without an API token")

// TurnRunner runs inbound messages through the conversation engine.
type TurnRunner interface {
	HandleMessage(ctx context.Context, msg conversation.InboundMessage) (conversation.Reply, error)
	ResetSession(ctx context.Context, userID string) error
}

// MemberReader exposes stored member state.
type MemberReader interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetMemory(ctx context.Context, userID string) (*models.Memory, error)
}

// Opts holds server configuration.
type Opts struct {
	Addr          string
	Token         string
	TwilioWebhook http.HandlerFunc
	Transport     string
}

// Option configures a Server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAPIToken protects the operator endpoints with a bearer token.
func WithAPIToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithTwilioWebhook mounts h at POST /webhook/twilio.
func WithTwilioWebhook(h http.HandlerFunc) Option {
	return func(o *Opts) { o.TwilioWebhook = h }
}

// WithTransport names the active transport in health output.
func WithTransport(name string) Option {
	return func(o *Opts) { o.Transport = name }
}

// Server is the HTTP API server.
type Server struct {
	turns   TurnRunner
	members MemberReader
	opts    Opts
	started time.Time
}

// NewServer creates a Server.
func NewServer(turns TurnRunner, members MemberReader, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, Transport: "none"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{turns: turns, members: members, opts: cfg, started: time.Now()}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", s.healthHandler)
	if s.opts.TwilioWebhook != nil {
		r.Post("/webhook/twilio", s.opts.TwilioWebhook)
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(s.opts.Token))
		r.Post("/messages", s.messagesHandler)
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/profile", s.profileHandler)
			r.Get("/memory", s.memoryHandler)
			r.Delete("/session", s.resetSessionHandler)
		})
	})
	return r
}

// Validate checks that the listen address and token together are safe to serve.
func (s *Server) Validate() error {
	if s.opts.Token != "" {
		return nil
	}
	if !isLoopback(s.opts.Addr) {
		return ErrInsecureBind
	}
	slog.Warn("Server.Validate: API token not set, operator endpoints are unauthenticated on loopback", "addr", s.opts.Addr)
	return nil
}

// isLoopback reports whether addr only listens on a loopback interface. An
// empty host means every interface.
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Validate(); err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("Server.Run: stopped")
	return nil
}
