package http

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	servertiming "github.com/mitchellh/go-server-timing"

	"finanzas/internal/auth"
	"finanzas/internal/config"
	"finanzas/internal/i18n"
	"finanzas/internal/log"
	"finanzas/internal/metrics"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/middleware/security"
	"finanzas/internal/middleware/trace"
	"finanzas/internal/services"
	"finanzas/internal/views"
	appweb "finanzas/web"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options are the dependencies of the web server.
type Options struct {
	Config     *config.Config
	Site       *views.Site
	Accounts   *services.AccountService
	Categories *services.CategoryService
	Auth       *auth.Authenticator
	I18n       *i18n.Bundle
	Metrics    *metrics.Metrics
	Store      Pinger
	Logger     *log.Logger
}

type Server struct {
	http.Server

	cfg        *config.Config
	site       *views.Site
	accounts   *services.AccountService
	categories *services.CategoryService
	auth       *auth.Authenticator
	bundle     *i18n.Bundle
	metrics    *metrics.Metrics
	store      Pinger
	logger     *log.Logger
	structured *log.StructuredLogger

	detector *security.Detector
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(opts Options) (*Server, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("server: config is required")
	case opts.Site == nil:
		return nil, errors.New("server: site is required")
	case opts.Accounts == nil || opts.Categories == nil:
		return nil, errors.New("server: account and category services are required")
	case opts.Auth == nil:
		return nil, errors.New("server: authenticator is required")
	case opts.I18n == nil:
		return nil, errors.New("server: i18n bundle is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	detector, err := security.NewDetector(opts.Config.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		cfg:        opts.Config,
		site:       opts.Site,
		accounts:   opts.Accounts,
		categories: opts.Categories,
		auth:       opts.Auth,
		bundle:     opts.I18n,
		metrics:    m,
		store:      opts.Store,
		logger:     logger.WithComponent(log.ComponentHTTP),
		detector:   detector,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.Config.AuthRateLimit,
		}),
		started: time.Now(),
	}
	s.structured = log.NewStructuredLogger(s.logger)
	s.tracer = trace.NewMiddleware(logger, detector.ExtractClientIP, m.ObserveRequest)

	m.RegisterCounterFunc("rate_limited_total", "Sign-in requests refused by the rate limiter.",
		func() float64 { return float64(s.limiter.GetMetrics().TotalHits) })
	m.RegisterCounterFunc("suspicious_requests_total", "Requests flagged as probes.",
		func() float64 { return float64(detector.GetMetrics().SuspiciousRequests) })
	m.RegisterCounterFunc("blocked_requests_total", "Requests refused for an unsupported method.",
		func() float64 { return float64(detector.GetMetrics().BlockedRequests) })

	s.Server = http.Server{
		Addr:              opts.Config.Addr(),
		Handler:           gzhttp.GzipHandler(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig(), s.detector.IsHTTPS)

	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(headers.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(filesOnly{sub})))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(serverTiming)
		r.Use(security.NoStoreMiddleware)
		r.Use(s.limitBody)
		r.Use(s.bundle.Middleware)
		r.Use(s.auth.Middleware)

		limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)

		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.StripSlashes)
			r.With(limited).Post("/register", s.handleAPIRegister)
			r.With(limited).Post("/login", s.handleAPILogin)
			r.With(limited).Post("/google", s.handleAPIGoogle)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAPIUser)
				r.Get("/categories", s.handleAPIListCategories)
				r.Post("/categories/create", s.handleAPICreateCategory)
				r.Put("/categories/{id}", s.handleAPIUpdateCategory)
				r.Patch("/categories/{id}", s.handleAPIUpdateCategory)
				r.Delete("/categories/{id}/delete", s.handleAPIDeleteCategory)
			})
			r.NotFound(func(w http.ResponseWriter, r *http.Request) {
				NotFoundError(i18n.FromContext(r.Context()).T("not_found")).Write(w)
			})
		})

		r.With(limited).Post("/login", s.handleLoginForm)
		r.With(limited).Post("/register", s.handleRegisterForm)
		r.Post("/logout", s.handleLogout)
		r.Post("/categories", s.handleCreateCategoryForm)
		r.Post("/categories/{id}/delete", s.handleDeleteCategoryForm)

		// Form paths share their page; register GET explicitly so the POST
		// routes never shadow the page.
		for _, p := range []string{"/login", "/register", "/categories"} {
			r.Get(p, s.handlePage)
		}
		r.Get("/*", s.handlePage)
		r.Head("/*", s.handlePage)
		r.NotFound(s.handleNotFound)
	})

	return r
}

func serverTiming(next http.Handler) http.Handler {
	return servertiming.Middleware(next, nil)
}

// limitBody caps request bodies at the configured size.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	msg := i18n.FromContext(r.Context()).T("rate_limited")
	if isAPI(r) {
		ErrorResponse(http.StatusTooManyRequests, msg, nil).Write(w)
		return
	}
	http.Error(w, msg, http.StatusTooManyRequests)
}

// Metrics returns the collectors the server records to.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// filesOnly hides directories so the file server never renders a listing.
type filesOnly struct{ fs.FS }

func (f filesOnly) Open(name string) (fs.File, error) {
	file, err := f.FS.Open(name)
	if err != nil {
		return nil, err
	}
	if info, err := file.Stat(); err != nil || info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}
