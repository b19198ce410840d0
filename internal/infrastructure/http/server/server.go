// Package server assembles the HTTP surface: the JSON API, the HTMX page
// and the operational endpoints.
package server

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/healthharmony/assistant/internal/application/user"
	"github.com/healthharmony/assistant/internal/infrastructure/config"
	"github.com/healthharmony/assistant/internal/infrastructure/http/handlers"
	"github.com/healthharmony/assistant/internal/infrastructure/http/middleware"
	"github.com/healthharmony/assistant/internal/infrastructure/monitoring"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	"github.com/healthharmony/assistant/pkg/healthcheck"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Dependencies are the collaborators the router needs. Users, Metrics,
// Health, AIHealth and RateLimiter are optional.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	Flows       inbound.FlowService
	Profiles    inbound.ProfileService
	Checks      handlers.Checker
	Suggester   handlers.Suggester
	Users       *user.UserService
	Validator   handlers.Validator
	Metrics     *monitoring.MetricsCollector
	Health      *healthcheck.HealthCheck
	AIHealth    handlers.AIHealth
	RateLimiter *middleware.RateLimiter
}

// Server represents the HTTP server
type Server struct {
	config *config.Config
	logger *zap.Logger
	router *chi.Mux
	server *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(deps Dependencies) (*Server, error) {
	templates, err := handlers.ParseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		config: deps.Config,
		logger: deps.Logger.Named("http-server"),
	}
	s.router = s.setupRouter(deps, templates)

	cfg := deps.Config.Server
	s.server = &http.Server{
		Addr:              deps.Config.Address(),
		Handler:           otelhttp.NewHandler(s.router, "http.server"),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureServer(s.server, nil); err != nil {
			s.logger.Error("Failed to configure HTTP/2", zap.Error(err))
		}
	}

	return s, nil
}

// Router exposes the configured handler tree
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures the HTTP router with middleware and routes
func (s *Server) setupRouter(deps Dependencies, templates *template.Template) *chi.Mux {
	cfg := deps.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.Security(cfg.IsProduction()))
	if cfg.Server.EnableCORS {
		r.Use(middleware.CORS(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))
	}
	if cfg.Server.EnableCompression {
		r.Use(middleware.Compress(5))
	}
	r.Use(middleware.MaxBody(cfg.Server.MaxBodyBytes))
	r.Use(middleware.Session(middleware.SessionOptions{
		CookieName: cfg.Server.SessionCookie,
		Secure:     cfg.Server.SecureCookies,
		MaxAge:     cfg.Profile.SessionTTL,
	}))

	var users *user.UserService
	if deps.Users != nil && deps.Users.Available() {
		users = deps.Users
		r.Use(middleware.OptionalAuth(users, s.logger))
	}

	s.setupOperationalRoutes(r, deps)

	flowHandlers := handlers.NewFlowHandlers(deps.Flows, deps.Suggester, deps.Profiles, deps.Validator, s.logger)
	profileHandlers := handlers.NewProfileHandlers(deps.Profiles, deps.Validator, cfg.Checks.ValidateOnAdd, s.logger)
	checkHandlers := handlers.NewCheckHandlers(deps.Checks, deps.Flows, deps.Profiles, deps.Validator, originAllowed(cfg), s.logger)
	authHandlers := handlers.NewAuthHandlers(users, deps.Profiles, deps.Validator, cfg.Server.SecureCookies, s.logger)

	r.Route("/api/v1", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Handler)
		}

		// Long-lived stream, kept outside the request timeout
		r.Get("/checks/stream", checkHandlers.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(requestTimeout(cfg)))

			r.Route("/flows", func(r chi.Router) {
				r.Post("/validate", flowHandlers.Validate)
				r.Post("/suggestions", flowHandlers.Suggestions)
				r.Post("/compatibility", flowHandlers.Compatibility)
				r.Post("/alternatives", flowHandlers.Alternatives)
				r.Post("/advice", flowHandlers.Advice)
				r.Post("/tips", flowHandlers.Tips)
			})

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", profileHandlers.Get)
				r.Put("/", profileHandlers.Replace)
				r.Get("/notifications", profileHandlers.Notifications)
				r.Post("/{category}", profileHandlers.AddItem)
				r.Delete("/{category}/{item}", profileHandlers.RemoveItem)
			})

			r.Route("/checks", func(r chi.Router) {
				r.Post("/", checkHandlers.Start)
				r.Get("/current", checkHandlers.Current)
				r.Delete("/current", checkHandlers.Reset)
				r.Post("/current/alternatives", checkHandlers.Alternatives)
				r.Post("/current/advice", checkHandlers.Advice)
			})

			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", authHandlers.Register)
				r.Post("/login", authHandlers.Login)
				r.Post("/refresh", authHandlers.Refresh)
				r.Post("/logout", authHandlers.Logout)
				r.With(middleware.RequireAuth).Get("/me", authHandlers.Me)
			})
		})
	})

	s.setupFrontendRoutes(r, deps, templates)

	return r
}

// setupFrontendRoutes configures the HTMX page and its fragments
func (s *Server) setupFrontendRoutes(r chi.Router, deps Dependencies, templates *template.Template) {
	cfg := deps.Config
	h := handlers.NewFrontendHandlers(templates, deps.Profiles, deps.Flows, deps.Suggester, deps.Checks, handlers.FrontendOptions{
		ValidateOnAdd: cfg.Checks.ValidateOnAdd,
		MaxPhotoBytes: cfg.AI.MaxPhotoBytes,
	}, s.logger)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(handlers.StaticFS()))))

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout(cfg)))

		r.Get("/", h.Index)
		r.Route("/ui", func(r chi.Router) {
			r.Post("/profile/{category}", h.AddItem)
			r.Delete("/profile/{category}", h.RemoveItem)
			r.Get("/suggestions", h.Suggestions)
			r.Post("/checks", h.Check)
			r.Post("/checks/alternatives", h.Alternatives)
			r.Post("/checks/advice", h.Advice)
			r.Post("/tips", h.Tips)
			r.Get("/notifications", h.Notifications)
		})
	})
}

// setupOperationalRoutes mounts health probes and metrics
func (s *Server) setupOperationalRoutes(r chi.Router, deps Dependencies) {
	if deps.Health != nil {
		r.Get("/health", deps.Health.Handler)
		r.Get("/health/live", deps.Health.LivenessHandler)
		r.Get("/health/ready", deps.Health.ReadinessHandler)
	}
	if deps.AIHealth != nil {
		r.Get("/health/ai", handlers.NewHealthHandlers(deps.AIHealth, s.logger).AI)
	}
	if deps.Config.Monitoring.EnableMetrics && deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", s.server.Addr),
		zap.String("environment", s.config.App.Environment),
		zap.Bool("http2", s.config.Server.EnableHTTP2),
	)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// requestTimeout leaves room for a model call plus the photo upload
func requestTimeout(cfg *config.Config) time.Duration {
	timeout := cfg.AI.Timeout + 15*time.Second
	if cfg.Server.WriteTimeout > 0 && timeout > cfg.Server.WriteTimeout {
		timeout = cfg.Server.WriteTimeout
	}
	return timeout
}

// originAllowed admits same-host websocket upgrades and any configured origin
func originAllowed(cfg *config.Config) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		allowed[strings.TrimSuffix(o, "/")] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed["*"] || allowed[origin] {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
