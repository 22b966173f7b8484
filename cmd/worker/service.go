package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/furniture-production-backend/internal/notifications"
	"github.com/angelmondragon/furniture-production-backend/pkg/config"
	"github.com/angelmondragon/furniture-production-backend/pkg/db"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
	"github.com/angelmondragon/furniture-production-backend/pkg/pubsub"
	"github.com/angelmondragon/furniture-production-backend/pkg/rabbitmq"
	"github.com/angelmondragon/furniture-production-backend/pkg/redis"
)

// ServiceParams wires the notification worker. Exactly one of PubSub or
// RabbitMQ is set, matching the configured eventing transport.
type ServiceParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          *db.Client
	Redis       *redis.Client
	PubSub      *pubsub.Client
	RabbitMQ    *rabbitmq.Client
	Consumer    *notifications.Consumer
	RoutingKeys []string
}

type Service struct {
	cfg         *config.Config
	logg        *logger.Logger
	db          *db.Client
	redis       *redis.Client
	pubsub      *pubsub.Client
	rabbitmq    *rabbitmq.Client
	consumer    *notifications.Consumer
	routingKeys []string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("notification consumer is required")
	}
	if params.Config.Eventing.UsesRabbitMQ() {
		if params.RabbitMQ == nil {
			return nil, errors.New("rabbitmq client is required")
		}
		if len(params.RoutingKeys) == 0 {
			return nil, errors.New("routing keys are required")
		}
	} else if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}

	return &Service{
		cfg:         params.Config,
		logg:        params.Logger,
		db:          params.DB,
		redis:       params.Redis,
		pubsub:      params.PubSub,
		rabbitmq:    params.RabbitMQ,
		consumer:    params.Consumer,
		routingKeys: params.RoutingKeys,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if s.rabbitmq != nil {
		if err := pingDependency(ctx, s.logg, "rabbitmq", s.rabbitmq.Ping); err != nil {
			return err
		}
	}
	if s.pubsub != nil {
		if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	var err error
	if s.cfg.Eventing.UsesRabbitMQ() {
		ctx = s.logg.WithField(ctx, "queue", s.cfg.RabbitMQ.NotificationQueue)
		s.logg.Info(ctx, "consuming notifications from rabbitmq")
		err = s.consumer.RunRabbitMQ(ctx, s.rabbitmq, s.cfg.RabbitMQ.NotificationQueue, s.routingKeys)
	} else {
		ctx = s.logg.WithField(ctx, "subscription", s.cfg.PubSub.NotificationSubscription)
		s.logg.Info(ctx, "consuming notifications from pubsub")
		err = s.consumer.RunPubSub(ctx, s.pubsub.NotificationSubscription())
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "notification consumer stopped unexpectedly", err)
		return err
	}
	return ctx.Err()
}
