package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
	appweb "fintrack/web"
)

// AuthService is the subset of services.AuthService the handlers use.
type AuthService interface {
	Login(ctx context.Context, email, password string) (services.LoginResult, error)
	CurrentUser(ctx context.Context, userID string) (core.User, error)
}

// TransactionService is the subset of services.TransactionService the
// handlers use.
type TransactionService interface {
	Create(ctx context.Context, userID string, in core.TransactionInput) (core.Transaction, error)
	List(ctx context.Context, userID string, limit int) ([]core.Transaction, error)
	Update(ctx context.Context, userID, id string, in core.TransactionInput) (core.Transaction, error)
	Delete(ctx context.Context, userID, id string) error
	Stats(ctx context.Context, userID string) (core.Stats, error)
	CategoryBreakdown(ctx context.Context, userID string) ([]core.CategoryTotal, error)
	MonthlyTrend(ctx context.Context, userID string) ([]core.MonthlyTotal, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the server settings that come from the environment.
type Config struct {
	Addr               string
	SecureCookie       bool
	RateLimitPerMinute int
}

// Deps are the collaborators the server is wired with.
type Deps struct {
	Auth         AuthService
	Transactions TransactionService
	Tokens       *auth.Tokens
	Store        Pinger
	Logger       *log.Logger
}

type Server struct {
	http.Server

	auth         AuthService
	transactions TransactionService
	store        Pinger
	logger       *log.Logger
	guard        *Guard
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	templates    *template.Template

	shutdownOnce sync.Once
}

// NewServer configures routes, templates and the middleware chain, returning
// a ready-to-run server.
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	ips := security.NewClientIPResolver()
	s := &Server{
		auth:         deps.Auth,
		transactions: deps.Transactions,
		store:        deps.Store,
		logger:       httpLogger,
		guard:        NewGuard(auth.DefaultRouteRules(), deps.Tokens, cfg.SecureCookie, logger),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			Logger:            logger,
		}),
		tracer: trace.NewMiddleware(httpLogger, ips.ExtractClientIP),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		httpLogger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		httpLogger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /{$}", handleRoot)
	if h, err := metrics.Handler(metrics.NewCollector(metrics.Sources{
		Requests:  s.tracer.GetMetrics,
		RateLimit: s.limiter.GetMetrics,
	})); err == nil {
		mux.Handle("GET /metrics", h)
	} else {
		httpLogger.Warn("Failed to register metrics", log.FieldError, err)
	}

	// Pages
	mux.HandleFunc("GET /auth/login", s.handleLoginPage)
	mux.HandleFunc("GET /dashboard", s.handleDashboardPage)

	// Auth API
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/me", RequireSession(s.handleMe))

	// Transactions API
	mux.HandleFunc("GET /transactions", RequireSession(s.handleListTransactions))
	mux.HandleFunc("POST /transactions", RequireSession(s.handleCreateTransaction))
	mux.HandleFunc("PUT /transactions/{id}", RequireSession(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /transactions/{id}", RequireSession(s.handleDeleteTransaction))

	// Dashboard API
	mux.HandleFunc("GET /dashboard/stats", RequireSession(s.handleStats))
	mux.HandleFunc("GET /dashboard/categories", RequireSession(s.handleCategoryBreakdown))
	mux.HandleFunc("GET /dashboard/monthly", RequireSession(s.handleMonthlyTrend))
	mux.HandleFunc("GET /categories", handleCategories)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(ips.ExtractClientIP, isMutating, func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusTooManyRequests, msgTooManyRequests)
	})

	var handler http.Handler = mux
	handler = security.NoStoreMiddleware(handler)
	handler = s.guard.Middleware(handler)
	handler = limit(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics returns the request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// isMutating selects the requests the rate limiter counts: login and every
// write.
func isMutating(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed",
				log.FieldErrorType, log.ErrorTypeDatabase,
				log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}
