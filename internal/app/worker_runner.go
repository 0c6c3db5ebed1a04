package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"
	"golang.org/x/sync/errgroup"

	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/transport/kafka"
)

// WorkerRunner runs the outbox schedule and the dispatch consumer
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun starts the worker using the provided DI container
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

type workerIn struct {
	dig.In

	Ctx      context.Context
	Pool     *pgxpool.Pool
	Logger   logx.Logger
	Consumer *kafka.Consumer
	Schedule *outboxSchedule
	Producer producerCloser `optional:"true"`
}

func runWorker(container *dig.Container) error {
	return container.Invoke(func(in workerIn) error {
		return workerRun(in.Ctx, in.Pool, in.Logger, in.Consumer, in.Schedule, in.Producer)
	})
}

func workerRun(
	ctx context.Context,
	pool *pgxpool.Pool,
	logger logx.Logger,
	consumer *kafka.Consumer,
	schedule *outboxSchedule,
	producer producerCloser,
) error {
	if schedule == nil {
		return fmt.Errorf("outbox schedule is nil: worker container misconfigured")
	}
	defer closeWorker(pool, logger, consumer, producer)

	if pool != nil {
		if err := ensureSchema(ctx, pool); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return schedule.Run(gctx) })
	if consumer != nil {
		g.Go(func() error { return consumer.Run(gctx) })
	} else {
		logger.Info("kafka disabled, dispatch ingestion is off")
	}

	logger.Info("service-delivery-worker started")
	return g.Wait()
}

func closeWorker(pool *pgxpool.Pool, logger logx.Logger, consumer *kafka.Consumer, producer producerCloser) {
	if err := consumer.Close(); err != nil {
		logger.Error("kafka close error", logx.Err(err))
	}
	if producer != nil {
		if err := producer(); err != nil {
			logger.Error("kafka producer close error", logx.Err(err))
		}
	}
	if pool != nil {
		pool.Close()
	}
}
