// Package container wires the application together with Uber FX
package container

import (
	"context"
	"time"

	"github.com/healthharmony/assistant/internal/application/flows"
	"github.com/healthharmony/assistant/internal/application/orchestration"
	profileapp "github.com/healthharmony/assistant/internal/application/profile"
	"github.com/healthharmony/assistant/internal/application/user"
	"github.com/healthharmony/assistant/internal/infrastructure/ai"
	"github.com/healthharmony/assistant/internal/infrastructure/config"
	"github.com/healthharmony/assistant/internal/infrastructure/http/middleware"
	"github.com/healthharmony/assistant/internal/infrastructure/http/server"
	"github.com/healthharmony/assistant/internal/infrastructure/monitoring"
	gormRepo "github.com/healthharmony/assistant/internal/infrastructure/persistence/gorm"
	"github.com/healthharmony/assistant/internal/infrastructure/persistence/memory"
	rediscache "github.com/healthharmony/assistant/internal/infrastructure/persistence/redis"
	"github.com/healthharmony/assistant/internal/infrastructure/security"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	"github.com/healthharmony/assistant/internal/ports/outbound"
	"github.com/healthharmony/assistant/pkg/healthcheck"
	"github.com/healthharmony/assistant/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConfigPath is the config file handed to config.Load. Empty searches the
// default locations.
type ConfigPath string

// Module provides all dependency injection modules
var Module = fx.Options(
	// Infrastructure modules
	ConfigModule,
	LoggerModule,
	MonitoringModule,
	DatabaseModule,
	CacheModule,

	// Repository modules
	RepositoryModule,

	// Model provider
	AIModule,

	// Service modules
	ServiceModule,

	// HTTP modules
	HTTPModule,

	// Lifecycle hooks
	LifecycleModule,
)

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func(path ConfigPath) (*config.Config, error) {
		return config.Load(string(path))
	},
)

// LoggerModule provides logging. The level follows log_level on config
// reloads.
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
		return logger.NewWithLevel(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.IsDevelopment(),
		})
	},
)

// MonitoringModule provides metrics and tracing
var MonitoringModule = fx.Provide(
	monitoring.NewRegistry,
	func(reg *prometheus.Registry, log *zap.Logger) *monitoring.MetricsCollector {
		return monitoring.NewMetricsCollector(reg, log)
	},
	func(cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
		return monitoring.NewTracingProvider(monitoring.TracingConfig{
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			OTLPEndpoint:   cfg.Monitoring.OTLPEndpoint,
			Insecure:       cfg.Monitoring.OTLPInsecure,
			SamplingRate:   cfg.Monitoring.SamplingRate,
			Enabled:        cfg.Monitoring.EnableTracing,
		}, log)
	},
)

// DatabaseModule provides the database. With driver "none" the DB is nil
// and accounts are disabled.
var DatabaseModule = fx.Provide(
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
		if !cfg.DatabaseEnabled() {
			log.Warn("Database disabled, accounts and profile persistence are unavailable")
			return nil, nil
		}

		db, err := gormRepo.Open(cfg, log)
		if err != nil {
			return nil, err
		}

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if err := gormRepo.Close(db); err != nil {
					log.Error("Failed to close database connection", zap.Error(err))
				}
				return nil
			},
		})
		return db, nil
	},
)

// CacheModule provides caching. Redis when enabled, otherwise an
// in-process cache.
var CacheModule = fx.Provide(
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (goredis.UniversalClient, error) {
		if !cfg.Redis.Enabled {
			return nil, nil
		}

		client, err := rediscache.NewClient(context.Background(), cfg.Redis, log)
		if err != nil {
			return nil, err
		}

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
		return client, nil
	},
	func(lc fx.Lifecycle, client goredis.UniversalClient, cfg *config.Config, log *zap.Logger) outbound.CacheRepository {
		if client != nil {
			return rediscache.NewCacheRepository(client, cfg.Redis.KeyPrefix, log)
		}

		log.Info("Using in-memory cache")
		cache := memory.NewCacheRepository(time.Minute)
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return cache.Close()
			},
		})
		return cache
	},
)

// RepositoryModule provides repository implementations. Both are nil
// without a database.
var RepositoryModule = fx.Provide(
	func(db *gorm.DB) outbound.UserRepository {
		if db == nil {
			return nil
		}
		return gormRepo.NewUserRepository(db)
	},
	func(db *gorm.DB) outbound.ProfileRepository {
		if db == nil {
			return nil
		}
		return gormRepo.NewProfileRepository(db)
	},
)

// AIModule provides the model provider and its health probe
var AIModule = fx.Provide(
	func(cfg *config.Config, tracing *monitoring.TracingProvider, log *zap.Logger) (outbound.ModelProvider, error) {
		return ai.NewProvider(cfg.AI, tracing, log)
	},
	func(provider outbound.ModelProvider, cfg *config.Config, log *zap.Logger) *ai.HealthChecker {
		return ai.NewHealthChecker(provider, cfg.Monitoring.HealthCheckTTL, log)
	},
)

// ServiceModule provides application services
var ServiceModule = fx.Provide(
	// Model flows
	func(
		provider outbound.ModelProvider,
		cache outbound.CacheRepository,
		metrics *monitoring.MetricsCollector,
		tracing *monitoring.TracingProvider,
		cfg *config.Config,
		log *zap.Logger,
	) inbound.FlowService {
		return flows.NewService(provider, cache, metrics, tracing, log, flows.Options{
			Timeout:       cfg.AI.Timeout,
			CacheTTL:      cfg.AI.CacheTTL,
			MaxPhotoBytes: cfg.AI.MaxPhotoBytes,
			Temperature:   cfg.AI.Temperature,
			MaxTokens:     cfg.AI.MaxTokens,
		})
	},

	// Profile sessions
	func(
		flowService inbound.FlowService,
		repo outbound.ProfileRepository,
		metrics *monitoring.MetricsCollector,
		cfg *config.Config,
		log *zap.Logger,
	) *profileapp.Service {
		return profileapp.NewService(flowService, repo, metrics, log, profileapp.Options{
			SeedDefaults:  cfg.Profile.SeedDefaults,
			MirrorTimeout: cfg.Profile.MirrorTimeout,
			SessionTTL:    cfg.Profile.SessionTTL,
			MaxNotices:    cfg.Profile.MaxNotices,
		})
	},
	func(s *profileapp.Service) inbound.ProfileService {
		return s
	},

	// Checks and autocomplete
	func(flowService inbound.FlowService, metrics *monitoring.MetricsCollector, log *zap.Logger) *orchestration.CheckTracker {
		return orchestration.NewCheckTracker(flowService, metrics, log)
	},
	func(flowService inbound.FlowService, metrics *monitoring.MetricsCollector, cfg *config.Config, log *zap.Logger) *orchestration.Suggester {
		return orchestration.NewSuggester(flowService, orchestration.NewDebouncer(cfg.Checks.SuggestionDebounce), metrics, log)
	},

	// Accounts
	func(cache outbound.CacheRepository, cfg *config.Config, log *zap.Logger) *security.TokenManager {
		return security.NewTokenManager(security.TokenConfig{
			Secret:            cfg.Auth.JWTSecret,
			AccessExpiration:  cfg.Auth.JWTExpiration,
			RefreshExpiration: cfg.Auth.RefreshExpiration,
		}, cache, log)
	},
	func(repo outbound.UserRepository, tokens *security.TokenManager, metrics *monitoring.MetricsCollector, log *zap.Logger) *user.UserService {
		return user.NewUserService(repo, tokens, metrics, log)
	},

	security.NewValidator,
	NewHealthCheck,
	func(cfg *config.Config, log *zap.Logger) *middleware.RateLimiter {
		if !cfg.RateLimit.Enable {
			return nil
		}
		return middleware.NewRateLimiter(middleware.RateLimitOptions{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMin,
			Burst:             cfg.RateLimit.BurstSize,
		}, log)
	},
)

// HealthCheckParams are the probes behind /health
type HealthCheckParams struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
	DB     *gorm.DB
	Redis  goredis.UniversalClient
	AI     *ai.HealthChecker
}

// NewHealthCheck registers the database as critical and the cache and model
// provider as non-critical
func NewHealthCheck(p HealthCheckParams) *healthcheck.HealthCheck {
	health := healthcheck.New(p.Config.App.Version, p.Logger)
	if p.Config.Monitoring.HealthCheckTTL > 0 {
		health.SetCacheTTL(p.Config.Monitoring.HealthCheckTTL)
	}

	if p.DB != nil {
		db := p.DB
		health.Register("database", healthcheck.NewPingChecker(func(ctx context.Context) error {
			return gormRepo.Ping(ctx, db)
		}), true)
	}
	if p.Redis != nil {
		health.Register("redis", healthcheck.NewRedisChecker(p.Redis), false)
	}
	health.Register("ai", p.AI, false)

	return health
}

// ServerParams are the collaborators of the HTTP server
type ServerParams struct {
	fx.In

	Config      *config.Config
	Logger      *zap.Logger
	Flows       inbound.FlowService
	Profiles    inbound.ProfileService
	Checks      *orchestration.CheckTracker
	Suggester   *orchestration.Suggester
	Users       *user.UserService
	Validator   *security.Validator
	Metrics     *monitoring.MetricsCollector
	Health      *healthcheck.HealthCheck
	AIHealth    *ai.HealthChecker
	RateLimiter *middleware.RateLimiter
}

// HTTPModule provides the HTTP server
var HTTPModule = fx.Provide(
	func(p ServerParams) (*server.Server, error) {
		return server.NewServer(server.Dependencies{
			Config:      p.Config,
			Logger:      p.Logger,
			Flows:       p.Flows,
			Profiles:    p.Profiles,
			Checks:      p.Checks,
			Suggester:   p.Suggester,
			Users:       p.Users,
			Validator:   p.Validator,
			Metrics:     p.Metrics,
			Health:      p.Health,
			AIHealth:    p.AIHealth,
			RateLimiter: p.RateLimiter,
		})
	},
)

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(
	RegisterLifecycleHooks,
)

// LifecycleParams are the components with background work or shutdown
// steps
type LifecycleParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Config      *config.Config
	Logger      *zap.Logger
	Level       zap.AtomicLevel
	Server      *server.Server
	Profiles    *profileapp.Service
	Checks      *orchestration.CheckTracker
	RateLimiter *middleware.RateLimiter
	Tracing     *monitoring.TracingProvider
}

// RegisterLifecycleHooks registers application lifecycle hooks
func RegisterLifecycleHooks(p LifecycleParams) {
	log := p.Logger
	cfg := p.Config
	background, cancel := context.WithCancel(context.Background())

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting HealthHarmony assistant",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
				zap.String("ai_provider", cfg.AI.Provider),
			)

			cfg.Watch(log, func(next *config.Config) {
				level := logger.ParseLevel(next.App.LogLevel)
				if level != p.Level.Level() {
					log.Info("Log level changed", zap.String("level", level.String()))
					p.Level.SetLevel(level)
				}
			})

			sweep := orDefault(cfg.Profile.SweepInterval, time.Minute)
			go p.Profiles.Run(background, sweep)
			go p.Checks.RunSweeper(background, sweep, orDefault(cfg.Profile.SessionTTL, time.Hour))
			if p.RateLimiter != nil {
				go p.RateLimiter.Run(background, cfg.RateLimit.CleanupInterval)
			}

			// Start HTTP server
			go func() {
				if err := p.Server.Start(); err != nil {
					log.Fatal("Failed to start HTTP server", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down HealthHarmony assistant")
			cancel()

			if err := p.Server.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}
			// pending profile writes finish before the database closes
			if err := p.Profiles.Shutdown(ctx); err != nil {
				log.Warn("Profile writes still pending at shutdown", zap.Error(err))
			}
			if err := p.Tracing.Shutdown(ctx); err != nil {
				log.Error("Failed to flush traces", zap.Error(err))
			}

			_ = log.Sync()
			return nil
		},
	})
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
