package app

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/dig"

	"mobile-home-delivery/internal/config"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/metrics"
	"mobile-home-delivery/internal/repository"
	"mobile-home-delivery/internal/service/delivery"
	"mobile-home-delivery/internal/service/dispatch"
	"mobile-home-delivery/internal/service/notify"
	"mobile-home-delivery/internal/transport/kafka"
)

// producerCloser releases the outbound Kafka producer; nil when Kafka is off.
type producerCloser func() error

type channelsOut struct {
	dig.Out

	Notifier notify.Notifier
	Closer   producerCloser
}

func newNotifyChannels(ctx context.Context, cfg *config.Config, logger logx.Logger) (channelsOut, error) {
	var (
		channels []notify.Notifier
		closer   producerCloser
	)

	if cfg.Kafka.Enabled() {
		producer, err := notify.NewKafkaProducer(cfg.Kafka.Brokers)
		if err != nil {
			return channelsOut{}, fmt.Errorf("kafka producer: %w", err)
		}
		channels = append(channels, notify.NewKafkaNotifier(producer, cfg.Kafka.EventsTopic))
		closer = closeProducer(producer)
		logger.Info("notify channel enabled", logx.String("channel", "kafka"), logx.String("topic", cfg.Kafka.EventsTopic))
	}

	if cfg.SMTP.Host != "" {
		channels = append(channels, notify.NewEmailNotifier(notify.SMTPConfig{
			Host:    cfg.SMTP.Host,
			Port:    cfg.SMTP.Port,
			User:    cfg.SMTP.User,
			Pass:    cfg.SMTP.Pass,
			From:    cfg.SMTP.From,
			AdminTo: cfg.SMTP.AdminTo,
		}))
		logger.Info("notify channel enabled", logx.String("channel", "email"))
	}

	if cfg.Firebase.CredentialsFile != "" {
		push, err := notify.NewPushNotifier(ctx, cfg.Firebase.CredentialsFile, cfg.Firebase.ProjectID)
		if err != nil {
			if closer != nil {
				_ = closer()
			}
			return channelsOut{}, fmt.Errorf("push notifier: %w", err)
		}
		channels = append(channels, push)
		logger.Info("notify channel enabled", logx.String("channel", "push"))
	}

	if len(channels) == 0 {
		logger.Warn("no notification channels configured; outbox rows will be marked skipped",
			logx.String("event", "notify_no_channels"))
	}
	return channelsOut{Notifier: notify.NewFanout(channels...), Closer: closer}, nil
}

func closeProducer(p sarama.SyncProducer) producerCloser {
	return func() error { return p.Close() }
}

func newDispatcher(
	repo *repository.OutboxRepo,
	n notify.Notifier,
	cfg *config.Config,
	set *metrics.Set,
	logger logx.Logger,
) *notify.Dispatcher {
	return notify.NewDispatcher(repo, n, notify.DispatcherConfig{
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
		BaseBackoff: cfg.Outbox.BaseBackoff,
		MaxBackoff:  cfg.Outbox.MaxBackoff,
	}, set.Notifications, logger)
}

func registerNotify(container *dig.Container) error {
	return provideAll(container,
		newNotifyChannels,
		newDispatcher,
	)
}

func newDispatchConsumer(cfg *config.Config, logger logx.Logger, p *dispatch.Processor) (*kafka.Consumer, error) {
	return kafka.NewConsumer(logger, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.DispatchTopic, dispatchHandler(p))
}

func registerWorker(container *dig.Container) error {
	return provideAll(container,
		func(svc *delivery.Service, logger logx.Logger) *dispatch.Processor {
			return dispatch.NewProcessor(svc, logger)
		},
		newDispatchConsumer,
		newOutboxSchedule,
	)
}
