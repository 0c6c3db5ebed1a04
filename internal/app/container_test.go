package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"mobile-home-delivery/internal/config"
	"mobile-home-delivery/internal/http/middleware/ratelimit"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/service/delivery"
	"mobile-home-delivery/internal/service/dispatch"
	"mobile-home-delivery/internal/service/notify"
	"mobile-home-delivery/internal/service/photos"
	"mobile-home-delivery/internal/service/quality"
	"mobile-home-delivery/internal/service/tracking"
	"mobile-home-delivery/internal/service/wizard"
	"mobile-home-delivery/internal/transport/kafka"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	storage := config.DefaultStorage()
	storage.Dir = t.TempDir()
	return &config.Config{
		Port:             8080,
		OperationTimeout: time.Second,
		DB:               config.DefaultDB(),
		Delivery:         config.DefaultDelivery(),
		Outbox:           config.DefaultOutbox(),
		Kafka:            config.Kafka{DispatchTopic: "delivery.dispatch", GroupID: "test"},
		Storage:          storage,
		RateLimit:        config.DefaultRateLimit(),
	}
}

// setupBaseContainer provides what registerCore and registerDb would,
// without reading flags or dialing Postgres.
func setupBaseContainer(t *testing.T, cfg *config.Config) *dig.Container {
	t.Helper()

	c := dig.New()

	providers := []struct {
		name     string
		provider any
	}{
		{"context", func() context.Context { return context.Background() }},
		{"logger", logx.Nop},
		{"config", func() *config.Config { return cfg }},
		{"pgxpool", func() *pgxpool.Pool { return &pgxpool.Pool{} }},
		{"registerer", func() prometheus.Registerer { return prometheus.NewRegistry() }},
		{"metrics", newMetrics},
	}

	for _, p := range providers {
		err := c.Provide(p.provider)
		require.NoErrorf(t, err, "provide %s", p.name)
	}

	require.NoError(t, registerRepositories(c))
	require.NoError(t, registerDomainServices(c))
	return c
}

func TestRegisterDomainServices_ProvidesEveryService(t *testing.T) {
	t.Parallel()

	c := setupBaseContainer(t, testConfig(t))

	err := c.Invoke(func(
		d *delivery.Service,
		p *photos.Service,
		tr *tracking.Service,
		q *quality.Service,
		w *wizard.Service,
	) {
		require.NotNil(t, d)
		require.NotNil(t, p)
		require.NotNil(t, tr)
		require.NotNil(t, q)
		require.NotNil(t, w)
	})
	require.NoError(t, err)
}

func TestRegisterDomainServices_S3WithoutBucketFails(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = "s3"
	cfg.Storage.Bucket = ""
	c := setupBaseContainer(t, cfg)

	err := c.Invoke(func(*photos.Service) {})
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty bucket")
}

func TestRegisterHTTP_ProvidesServerAndServesPing(t *testing.T) {
	t.Parallel()

	c := setupBaseContainer(t, testConfig(t))
	require.NoError(t, registerHTTP(c))

	err := c.Invoke(func(srv *http.Server) {
		require.NotNil(t, srv)
		require.Equal(t, ":8080", srv.Addr)
		require.Greater(t, srv.ReadHeaderTimeout, time.Duration(0))
		require.Greater(t, srv.ReadTimeout, time.Duration(0))
		require.Greater(t, srv.WriteTimeout, time.Duration(0))
		require.Greater(t, srv.IdleTimeout, time.Duration(0))

		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		rr = httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/deliveries/1", nil))
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})
	require.NoError(t, err)
}

func TestNewRateLimiter_DisabledIsNop(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.RateLimit.Enabled = false
	require.IsType(t, ratelimit.NopLimiter{}, newRateLimiter(cfg, newRateLimitClock()))

	cfg.RateLimit.Enabled = true
	require.IsType(t, &ratelimit.TokenBucketLimiter{}, newRateLimiter(cfg, newRateLimitClock()))
}

func TestRegisterWorker_KafkaDisabled_NilConsumer(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Outbox.Schedule = "@every 1s"
	c := setupBaseContainer(t, cfg)
	require.NoError(t, registerNotify(c))
	require.NoError(t, registerWorker(c))

	err := c.Invoke(func(in workerIn, p *dispatch.Processor, n notify.Notifier) {
		require.Nil(t, in.Consumer)
		require.NotNil(t, in.Schedule)
		require.Nil(t, in.Producer)
		require.NotNil(t, p)
		require.NotNil(t, n)
	})
	require.NoError(t, err)
}

func TestRegisterWorker_BadScheduleFails(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Outbox.Schedule = "not a schedule"
	c := setupBaseContainer(t, cfg)
	require.NoError(t, registerNotify(c))
	require.NoError(t, registerWorker(c))

	err := c.Invoke(func(*outboxSchedule) {})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid outbox schedule")
}

func TestNewDispatchConsumer_DisabledReturnsNil(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	consumer, err := newDispatchConsumer(cfg, logx.Nop(), dispatch.NewProcessor(nil, nil))
	require.NoError(t, err)
	require.Equal(t, (*kafka.Consumer)(nil), consumer)
}

func TestNewMetrics_DoubleRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := newMetrics(reg)
	require.NoError(t, err)
	_, err = newMetrics(reg)
	require.Error(t, err)
}

func TestProvideAll_Success(t *testing.T) {
	t.Parallel()

	c := dig.New()

	err := provideAll(c,
		func() context.Context { return context.Background() },
		func() time.Duration { return 3 * time.Second },
	)
	require.NoError(t, err)

	err = c.Invoke(func(ctx context.Context, d time.Duration) {
		require.NotNil(t, ctx)
		require.Equal(t, 3*time.Second, d)
	})
	require.NoError(t, err)
}

func TestProvideAll_InvalidProvider(t *testing.T) {
	t.Parallel()

	c := dig.New()

	type bad struct{}
	err := provideAll(c, bad{})
	require.Error(t, err)
}

func TestRegisterDb_UsesDbConnectAndProvidesPool(t *testing.T) {
	t.Parallel()

	c := dig.New()
	ctx := context.Background()
	cfg := &config.Config{DB: config.DB{Host: "localhost", Port: "5432", User: "user", Pass: "pass", Name: "db"}}

	require.NoError(t, c.Provide(func() context.Context { return ctx }))
	require.NoError(t, c.Provide(logx.Nop))
	require.NoError(t, c.Provide(func() *config.Config { return cfg }))

	stubPool := &pgxpool.Pool{}
	stubConnect := func(gotCtx context.Context, _ logx.Logger, dsn string, retries int, delay time.Duration) (*pgxpool.Pool, error) {
		require.Equal(t, ctx, gotCtx)
		require.Equal(t, cfg.DB.DSN(), dsn)
		require.Equal(t, 10, retries)
		require.Equal(t, time.Second, delay)
		return stubPool, nil
	}

	require.NoError(t, registerDb(c, stubConnect))

	err := c.Invoke(func(pool *pgxpool.Pool) {
		require.Same(t, stubPool, pool)
	})
	require.NoError(t, err)
}

func TestRegisterDb_PropagatesConnectError(t *testing.T) {
	t.Parallel()

	c := dig.New()
	require.NoError(t, c.Provide(func() context.Context { return context.Background() }))
	require.NoError(t, c.Provide(logx.Nop))
	require.NoError(t, c.Provide(func() *config.Config { return &config.Config{DB: config.DefaultDB()} }))

	require.NoError(t, registerDb(c, func(context.Context, logx.Logger, string, int, time.Duration) (*pgxpool.Pool, error) {
		return nil, fmt.Errorf("db failed")
	}))

	err := c.Invoke(func(*pgxpool.Pool) {})
	require.Error(t, err)
	require.Contains(t, err.Error(), "db failed")
}

func TestContainerBuilder_Build_BothGraphs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stub := func(context.Context, logx.Logger, string, int, time.Duration) (*pgxpool.Pool, error) {
		return &pgxpool.Pool{}, nil
	}

	c, err := NewContainerBuilder().WithDBConnect(stub).build(ctx)
	require.NoError(t, err)
	require.NotNil(t, c)

	c, err = NewContainerBuilder().WithDBConnect(stub).ForWorker().build(ctx)
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestContainerBuilder_MustBuild_DoesNotCallFatal(t *testing.T) {
	t.Parallel()

	builder := NewContainerBuilder().
		WithDBConnect(func(context.Context, logx.Logger, string, int, time.Duration) (*pgxpool.Pool, error) {
			return &pgxpool.Pool{}, nil
		}).
		WithLogFatalf(func(format string, args ...interface{}) {
			require.FailNowf(t, "logFatalf must not be called", format, args...)
		})

	c := builder.MustBuild(context.Background())
	require.NotNil(t, c)
}
