// Package server provides the HTTP API for asking questions about one loaded
// sheet.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/KaramelBytes/worklens-cli/internal/chat"
	"github.com/KaramelBytes/worklens-cli/internal/dashboard"
	"github.com/KaramelBytes/worklens-cli/internal/dataset"
	"github.com/KaramelBytes/worklens-cli/internal/query"
)

// Config is the listener configuration.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RequestTimeout time.Duration

	// SessionTTL is how long an idle session keeps its engine.
	SessionTTL time.Duration
	// MaxSessions caps live sessions; the least recently used is dropped.
	MaxSessions uint64

	// Dashboard is the layout served at /api/v1/dashboard. Nil uses
	// dashboard.Default.
	Dashboard *dashboard.Config
}

// Session defaults.
const (
	DefaultSessionTTL  = 30 * time.Minute
	DefaultMaxSessions = 1000
)

// EngineFactory builds the engine for a new session.
type EngineFactory func() *chat.Engine

// Server answers questions over HTTP. Each session id owns its own engine,
// so history and throttling are per session. Idle sessions expire.
type Server struct {
	ds        *dataset.Dataset
	schema    dataset.ColumnSchema
	stats     query.Statistics
	view      dashboard.View
	newEngine EngineFactory
	config    Config
	logger    *zap.Logger
	server    *http.Server

	sessions *ttlcache.Cache[uuid.UUID, *chat.Engine]
}

// NewServer creates a server over one dataset.
func NewServer(ds *dataset.Dataset, schema dataset.ColumnSchema, newEngine EngineFactory, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	layout := dashboard.Default(ds.Name, schema)
	if cfg.Dashboard != nil {
		layout = *cfg.Dashboard
	}
	agg := query.NewAggregator()
	s := &Server{
		ds:        ds,
		schema:    schema,
		stats:     agg.Aggregate(ds, schema),
		view:      dashboard.Render(layout, ds, schema, agg),
		newEngine: newEngine,
		config:    cfg,
		logger:    logger.Named("server"),
		sessions: ttlcache.New(
			ttlcache.WithTTL[uuid.UUID, *chat.Engine](cfg.SessionTTL),
			ttlcache.WithCapacity[uuid.UUID, *chat.Engine](cfg.MaxSessions),
		),
	}
	s.sessions.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[uuid.UUID, *chat.Engine]) {
		s.logger.Debug("session evicted", zap.String("session", item.Key().String()), zap.Int("reason", int(reason)))
	})
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Get("/api/v1/stats", s.handleStats)
	r.Get("/api/v1/schema", s.handleSchema)
	r.Get("/api/v1/dashboard", s.handleDashboard)
	r.Get("/api/v1/sessions/{id}/history", s.handleHistory)
	r.Delete("/api/v1/sessions/{id}/history", s.handleClearHistory)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.sessions.Start()
	s.logger.Info("Starting server", zap.String("addr", addr), zap.Int("rows", s.ds.Len()),
		zap.Duration("session_ttl", s.config.SessionTTL), zap.Uint64("max_sessions", s.config.MaxSessions))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.sessions.Stop()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// session returns the engine for id, creating it when create is set. Only
// asks (create) extend a session's lifetime.
func (s *Server) session(id uuid.UUID, create bool) (*chat.Engine, bool) {
	if !create {
		item := s.sessions.Get(id, ttlcache.WithDisableTouchOnHit[uuid.UUID, *chat.Engine]())
		if item == nil {
			return nil, false
		}
		return item.Value(), true
	}
	item, _ := s.sessions.GetOrSetFunc(id, func() *chat.Engine { return s.newEngine() })
	return item.Value(), true
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
