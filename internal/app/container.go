package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"mobile-home-delivery/internal/config"
	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/http/handlers"
	"mobile-home-delivery/internal/http/middleware/ratelimit"
	"mobile-home-delivery/internal/http/router"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/metrics"
	"mobile-home-delivery/internal/repository"
	"mobile-home-delivery/internal/service/delivery"
	"mobile-home-delivery/internal/service/photos"
	"mobile-home-delivery/internal/service/quality"
	"mobile-home-delivery/internal/service/tracking"
	"mobile-home-delivery/internal/service/wizard"
	"mobile-home-delivery/internal/storage"
)

type dbConnectFunc func(context.Context, logx.Logger, string, int, time.Duration) (*pgxpool.Pool, error)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect dbConnectFunc
	logFatalf func(string, ...interface{})
	worker    bool
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect: connectDbWithRetry,
		logFatalf: log.Fatalf,
	}
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(fn dbConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// ForWorker switches the builder to the worker graph: notification
// dispatch and dispatch-event ingestion instead of the HTTP server.
func (b *ContainerBuilder) ForWorker() *ContainerBuilder {
	b.worker = true
	return b
}

// MustBuild builds and returns a new dig container
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerDb(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	if err := registerRepositories(container); err != nil {
		return nil, fmt.Errorf("repositories: %w", err)
	}
	if err := registerDomainServices(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if b.worker {
		if err := registerNotify(container); err != nil {
			return nil, fmt.Errorf("notify: %w", err)
		}
		if err := registerWorker(container); err != nil {
			return nil, fmt.Errorf("worker: %w", err)
		}
		return container, nil
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds the HTTP server container.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds the worker container.
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().ForWorker().MustBuild(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context) error {
	return provideAll(container,
		func() context.Context { return ctx },
		NewLogger,
		config.Load,
		func() prometheus.Registerer { return prometheus.DefaultRegisterer },
		newMetrics,
	)
}

func newMetrics(reg prometheus.Registerer) (*metrics.Set, error) {
	set := metrics.NewSet()
	if err := set.Register(reg); err != nil {
		return nil, err
	}
	return set, nil
}

func registerDb(container *dig.Container, dbConnect dbConnectFunc) error {
	providerDB := func(ctx context.Context, logger logx.Logger, cfg *config.Config) (*pgxpool.Pool, error) {
		return dbConnect(ctx, logger, cfg.DB.DSN(), 10, time.Second)
	}
	return provideAll(container, providerDB)
}

func registerRepositories(container *dig.Container) error {
	return provideAll(container,
		repository.NewDeliveryRepo,
		repository.NewPhotoRepo,
		repository.NewGPSRepo,
		repository.NewOutboxRepo,
	)
}

func deliveryRules(cfg *config.Config) delivery.Rules {
	return delivery.Rules{
		MaxGPSAccuracy:     cfg.Delivery.MaxGPSAccuracy,
		EscalationSeverity: domain.Severity(cfg.Delivery.EscalationSeverity),
	}
}

func registerDomainServices(container *dig.Container) error {
	return provideAll(container,
		func(repo *repository.DeliveryRepo, cfg *config.Config, logger logx.Logger, set *metrics.Set) *delivery.Service {
			return delivery.NewService(repo, deliveryRules(cfg), cfg.OperationTimeout, logger, set.Transitions)
		},
		newPhotoStore,
		func(
			repo *repository.DeliveryRepo,
			photoRepo *repository.PhotoRepo,
			store storage.Store,
			cfg *config.Config,
			logger logx.Logger,
		) *photos.Service {
			return photos.NewService(repo, photoRepo, store, photos.Options{
				JPEGQuality:      cfg.Storage.JPEGQuality,
				MaxUploadSize:    cfg.Storage.MaxUploadSize,
				OperationTimeout: cfg.OperationTimeout,
			}, logger)
		},
		func(repo *repository.DeliveryRepo, gps *repository.GPSRepo, cfg *config.Config, logger logx.Logger, set *metrics.Set) *tracking.Service {
			return tracking.NewService(repo, gps, set.GPSPointsIngested, cfg.OperationTimeout, logger)
		},
		func(repo *repository.DeliveryRepo, photoRepo *repository.PhotoRepo, gps *repository.GPSRepo, cfg *config.Config, logger logx.Logger) *quality.Service {
			return quality.NewService(repo, photoRepo, gps, cfg.Delivery.MaxGPSAccuracy, cfg.OperationTimeout, logger)
		},
		func(repo *repository.DeliveryRepo, photoRepo *repository.PhotoRepo, svc *delivery.Service, cfg *config.Config, logger logx.Logger) *wizard.Service {
			return wizard.NewService(repo, photoRepo, svc, cfg.OperationTimeout, logger)
		},
	)
}

type handlersIn struct {
	dig.In

	Logger     logx.Logger
	Config     *config.Config
	Deliveries *delivery.Service
	Photos     *photos.Service
	Tracking   *tracking.Service
	Quality    *quality.Service
	Wizard     *wizard.Service
}

func newRouterHandlers(in handlersIn) router.Handlers {
	return router.Handlers{
		Base:        handlers.New(in.Logger),
		Deliveries:  handlers.NewDeliveryHandler(in.Logger, in.Deliveries),
		Assignments: handlers.NewAssignmentHandler(in.Logger, in.Deliveries),
		Photos:      handlers.NewPhotoHandler(in.Logger, in.Photos, in.Config.Storage.MaxUploadSize),
		GPS:         handlers.NewGPSHandler(in.Logger, in.Tracking),
		Quality:     handlers.NewQualityHandler(in.Logger, in.Quality),
		Wizard:      handlers.NewWizardHandler(in.Logger, in.Wizard),
	}
}

func newRouter(h router.Handlers, logger logx.Logger, rl *ratelimit.Middleware) http.Handler {
	return router.New(h, router.Options{
		Logger:    logger,
		RateLimit: rl,
	})
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	if err := container.Provide(
		func(set *metrics.Set) prometheus.Counter { return set.RateLimitExceeded },
		dig.Name("rate_limit_exceeded_total"),
	); err != nil {
		return fmt.Errorf("provide rate limit counter: %w", err)
	}
	return provideAll(container,
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		newRouterHandlers,
		newRouter,
		serverProvider,
	)
}
