package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expensebook/internal/cache"
	"expensebook/internal/core"
	"expensebook/internal/log"
	"expensebook/internal/middleware/ratelimit"
	"expensebook/internal/middleware/security"
	"expensebook/internal/middleware/trace"
	"expensebook/internal/notify"
	"expensebook/internal/storage"
)

// Store is the persistence the API serves from.
type Store interface {
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, email, passwordHash string) (storage.User, error)
	UserByEmail(ctx context.Context, email string) (storage.User, error)
	CreateRecord(ctx context.Context, userID int64, rec core.ExpenseRecord) (int64, error)
	ListRecords(ctx context.Context, userID int64, email string) ([]core.ExpenseRecord, error)
	UpdateRecord(ctx context.Context, userID int64, rec core.ExpenseRecord) error
	DeleteRecord(ctx context.Context, userID, id int64) error
	UpsertBudget(ctx context.Context, userID int64, b core.Budget) (core.Budget, error)
	LatestBudget(ctx context.Context, userID int64, email string) (core.Budget, error)
}

// Config holds the server options that do not come from the store.
type Config struct {
	Addr           string
	TokenTTL       time.Duration
	TokenCacheSize int
	RateLimitRPS   float64
	RateLimitBurst int
	TrustedProxies []string
	Logger         *log.Logger
	// Notifier receives budget alerts raised by record creation. Optional.
	Notifier notify.Notifier
}

// Server is the JSON API backing the expense tracker client.
type Server struct {
	http.Server
	store    Store
	tokens   *tokenStore
	caches   *cache.Manager
	limiter  *ratelimit.Limiter
	notifier notify.Notifier
	logger   *log.Logger
	registry *prometheus.Registry

	stopBackground context.CancelFunc
	shutdownOnce   sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// Background sweepers start immediately and stop on Shutdown.
func NewServer(cfg Config, store Store) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.TokenCacheSize <= 0 {
		cfg.TokenCacheSize = 10000
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}

	clientIP, err := security.NewClientIP(cfg.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	limiter := ratelimit.NewLimiter(ratelimit.Config{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst})
	registry.MustRegister(limiter.Collector())

	s := &Server{
		store:    store,
		tokens:   newTokenStore(cfg.TokenCacheSize, cfg.TokenTTL),
		caches:   cache.NewManager(logger),
		limiter:  limiter,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentHTTP),
		registry: registry,
	}
	s.caches.Register("tokens", s.tokens.cache)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /auth/register/{$}", s.handleRegister)
	mux.HandleFunc("POST /auth/login/{$}", s.handleLogin)
	mux.HandleFunc("POST /auth/logout/{$}", s.handleLogout)

	mux.HandleFunc("POST /records/list/{$}", s.handleListRecords)
	mux.HandleFunc("POST /records/create/{$}", s.handleCreateRecord)
	mux.HandleFunc("PUT /records/update/{id}/{$}", s.handleUpdateRecord)
	mux.HandleFunc("DELETE /records/delete/{$}", s.handleDeleteRecord)

	mux.HandleFunc("POST /budgets/create/{$}", s.handleCreateBudget)
	mux.HandleFunc("GET /budgets/last-update/{$}", s.handleLatestBudget)

	var handler http.Handler = mux
	handler = limiter.Middleware(clientIP.Extract, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, clientIP.Extract(r), log.FieldPath, r.URL.Path)
		writeDetail(w, http.StatusTooManyRequests, "Request was throttled. Please try again later.")
	})(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = trace.NewMiddleware(logger, clientIP.Extract, trace.NewMetrics(registry)).Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopBackground = cancel
	go s.caches.Run(ctx, 10*time.Minute)
	go limiter.Run(ctx)

	return s, nil
}

// Shutdown stops background sweepers and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.stopBackground()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// ListenAndServe runs until Shutdown, treating a clean close as success.
func (s *Server) ListenAndServe() error {
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
