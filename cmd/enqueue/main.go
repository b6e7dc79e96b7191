// Command enqueue pushes messages onto the notifier's message queue. Each
// argument becomes one message; with no arguments, each non-empty stdin line
// does.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kursadbilgin/discord-notifier/internal/config"
	"github.com/kursadbilgin/discord-notifier/internal/domain"
	infraredis "github.com/kursadbilgin/discord-notifier/internal/infra/redis"
	"github.com/kursadbilgin/discord-notifier/internal/observability"
	"github.com/kursadbilgin/discord-notifier/internal/queue"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	queueName := flag.String("queue", "", "queue name (defaults to MESSAGE_QUEUE)")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	cfg, err := config.LoadProducer()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}
	if *queueName != "" {
		cfg.MessageQueue = *queueName
	}

	logger, err := observability.NewLogger(*logLevel, false)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sent, err := run(ctx, cfg, flag.Args(), os.Stdin)
	if err != nil {
		logger.Error("enqueue failed", zap.Int("enqueued", sent), zap.Error(err))
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
	logger.Info("messages enqueued",
		zap.String("queue", cfg.MessageQueue),
		zap.Int("count", sent),
	)
}

func run(ctx context.Context, cfg *config.ProducerConfig, args []string, stdin io.Reader) (int, error) {
	var (
		rdb      *goredis.Client
		rabbitMQ *queue.RabbitMQ
		err      error
	)
	switch cfg.QueueBackend {
	case queue.BackendRedis:
		rdb, err = infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return 0, fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()
	case queue.BackendRabbitMQ:
		rabbitMQ, err = queue.NewRabbitMQ(ctx, cfg.RabbitMQURL)
		if err != nil {
			return 0, fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		defer rabbitMQ.Close()
	}

	factory, err := queue.NewFactory(cfg.QueueBackend, rdb, rabbitMQ)
	if err != nil {
		return 0, err
	}
	q, err := factory.Queue(cfg.MessageQueue)
	if err != nil {
		return 0, err
	}
	defer q.Close()

	if len(args) > 0 {
		return pushAll(ctx, q, args)
	}

	var lines []string
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read stdin: %w", err)
	}
	return pushAll(ctx, q, lines)
}

func pushAll(ctx context.Context, q queue.Publisher, messages []string) (int, error) {
	for i, msg := range messages {
		if err := domain.ValidateMessage(msg); err != nil {
			return i, fmt.Errorf("message %d: %w", i+1, err)
		}
	}
	for i, msg := range messages {
		if err := q.Push(ctx, msg); err != nil {
			return i, fmt.Errorf("failed to enqueue message %d: %w", i+1, err)
		}
	}
	return len(messages), nil
}
