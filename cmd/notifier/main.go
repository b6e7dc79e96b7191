package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kursadbilgin/discord-notifier/internal/config"
	"github.com/kursadbilgin/discord-notifier/internal/discord"
	"github.com/kursadbilgin/discord-notifier/internal/handler"
	infraredis "github.com/kursadbilgin/discord-notifier/internal/infra/redis"
	"github.com/kursadbilgin/discord-notifier/internal/observability"
	"github.com/kursadbilgin/discord-notifier/internal/queue"
	"github.com/kursadbilgin/discord-notifier/internal/service"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.DebugMode)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("discord notifier exited with error", zap.Error(err))
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	metrics := observability.NewMetrics()

	var (
		rdb      *goredis.Client
		rabbitMQ *queue.RabbitMQ
		err      error
	)
	checks := make([]handler.ReadinessCheck, 0, 4)

	switch cfg.QueueBackend {
	case queue.BackendRedis:
		rdb, err = infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Check: infraredis.Ping(rdb)})
	case queue.BackendRabbitMQ:
		rabbitMQ, err = queue.NewRabbitMQ(ctx, cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		defer rabbitMQ.Close()
	}

	factory, err := queue.NewFactory(cfg.QueueBackend, rdb, rabbitMQ)
	if err != nil {
		return err
	}
	messages, err := factory.Queue(cfg.MessageQueue)
	if err != nil {
		return fmt.Errorf("message queue initialization failed: %w", err)
	}
	defer messages.Close()
	checks = append(checks, handler.ReadinessCheck{
		Name:  "queue",
		Check: func(ctx context.Context) error {
			_, err := messages.Len(ctx)
			return err
		},
	})

	diagnostics, err := buildDiagnostics(factory, cfg)
	if err != nil {
		return err
	}
	if diagnostics != nil {
		defer diagnostics.Close()
	}

	client, err := discord.New(cfg.DiscordToken, logger)
	if err != nil {
		return err
	}

	loop, err := service.NewDeliveryLoop(client, messages, diagnostics, service.DeliveryConfig{
		UserID:       cfg.DiscordUserID,
		Announcement: cfg.AnnouncementText(),
		PollInterval: cfg.PollInterval,
		Debug:        cfg.DebugMode,
	}, logger)
	if err != nil {
		return err
	}
	loop.SetMetrics(metrics)

	boot, err := service.NewBootstrapper(client, loop, diagnostics, logger)
	if err != nil {
		return err
	}
	boot.SetMetrics(metrics)

	checks = append(checks,
		handler.ReadinessCheck{
			Name:  "discord",
			Check: func(context.Context) error {
				if !client.IsReady() {
					return errors.New("gateway not ready")
				}
				return nil
			},
		},
		handler.ReadinessCheck{
			Name:  "target",
			Check: func(context.Context) error {
				if loop.Target() == nil {
					return errors.New("target user not resolved")
				}
				return nil
			},
		},
	)
	app := handler.NewApp(logger, metrics, checks...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return boot.Run(gctx)
	})
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logger.Info("discord notifier started",
			zap.String("queueBackend", factory.Backend()),
			zap.String("messageQueue", cfg.MessageQueue),
			zap.String("addr", addr),
		)
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Warn("http server shutdown failed", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

func buildDiagnostics(factory *queue.Factory, cfg *config.Config) (queue.Publisher, error) {
	var sinks queue.Publishers

	if cfg.DiagnosticQueue != "" {
		q, err := factory.Queue(cfg.DiagnosticQueue)
		if err != nil {
			return nil, fmt.Errorf("diagnostic queue initialization failed: %w", err)
		}
		sinks = append(sinks, q)
	}
	if cfg.DiagnosticWebhookURL != "" {
		webhook, err := queue.NewWebhookPublisher(cfg.DiagnosticWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("diagnostic webhook initialization failed: %w", err)
		}
		sinks = append(sinks, webhook)
	}

	return sinks.Compact(), nil
}
