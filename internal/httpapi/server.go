// Package httpapi serves the dashboard, chat and tool endpoints over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ArionMiles/financehub/pkg/api"
	"github.com/ArionMiles/financehub/pkg/auth"
	"github.com/ArionMiles/financehub/pkg/engine"
	"github.com/ArionMiles/financehub/pkg/mcp"
	"github.com/ArionMiles/financehub/pkg/session"
	"github.com/ArionMiles/financehub/pkg/tools"
)

// ServiceName is reported by the health endpoint and the MCP handshake.
const ServiceName = "FinanceHub"

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

// Config parameterises view building.
type Config struct {
	// Location is the calendar months and weeks are evaluated in.
	Location      *time.Location
	RevenueMonths int
	DonutSegments int
	// Version is reported in the MCP handshake.
	Version string
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Server holds the dependencies of every handler.
type Server struct {
	gate     *auth.Gate
	sessions *session.Store
	tools    *tools.Registry
	mcp      *mcp.Server
	cfg      Config
	logger   *slog.Logger
}

// New creates the HTTP API server.
func New(gate *auth.Gate, sessions *session.Store, registry *tools.Registry, cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{
		gate:     gate,
		sessions: sessions,
		tools:    registry,
		cfg:      cfg,
		logger:   logger.With("component", "httpapi"),
	}
	mcpServer, err := mcp.NewServer(mcp.Info{Name: ServiceName, Version: cfg.Version}, registry, s.snapshot, logger)
	if err != nil {
		return nil, fmt.Errorf("creating mcp server: %w", err)
	}
	s.mcp = mcpServer
	return s, nil
}

// Routes returns the router with every endpoint mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Post("/logout", s.logout)
			r.Get("/me", s.me)
			r.Get("/dashboard", s.dashboard)
			r.Get("/transactions", s.listTransactions)
			r.Get("/transactions/export", s.exportTransactions)
			r.Post("/transactions", s.createTransaction)
			r.Post("/chat", s.chat)
			r.Get("/tools", s.listTools)
			r.Post("/tools/{name}", s.callTool)
		})
	})

	r.With(s.requireSession).Handle("/mcp", s.mcp.Handler())
	return r
}

// requestLogger logs one line per request through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

type sessionKey struct{}

// requireSession rejects requests without a live session token. The token is
// read from "Authorization: Bearer" or the X-Session-Token header.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Get(tokenFrom(r))
		if err != nil {
			unauthorized(w)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Session-Token"))
}

// sessionFrom returns the session stored by requireSession.
func sessionFrom(ctx context.Context) (session.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(session.Session)
	return sess, ok
}

// snapshot returns the caller's dataset and current view. It serves both the
// tool endpoint and the MCP dispatcher.
func (s *Server) snapshot(ctx context.Context) (tools.Snapshot, error) {
	sess, ok := sessionFrom(ctx)
	if !ok {
		return tools.Snapshot{}, session.ErrNotFound
	}
	ds, err := s.sessions.Dataset(ctx, sess.Token)
	if err != nil {
		return tools.Snapshot{}, err
	}
	return tools.Snapshot{Dataset: ds, View: s.view(ds, s.cfg.Now())}, nil
}

func (s *Server) view(ds *api.Dataset, reference time.Time) engine.DashboardView {
	return engine.Build(ds, engine.Options{
		Reference:     reference,
		Location:      s.cfg.Location,
		RevenueMonths: s.cfg.RevenueMonths,
		DonutSegments: s.cfg.DonutSegments,
	})
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// unauthorizedBody is identical for every authentication failure.
const unauthorizedBody = `{"error":"invalid credentials"}` + "\n"

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorBody{Error: msg})
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
