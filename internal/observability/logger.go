package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type deliveryIDKey struct{}

// NewLogger builds the JSON production logger. debug forces the debug level
// regardless of level so acquired messages are traced.
func NewLogger(level string, debug bool) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	if debug {
		parsedLevel = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	cfg.InitialFields = map[string]interface{}{"service": "discord-notifier"}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	var parsed zapcore.Level
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		normalized = "info"
	}

	if err := parsed.UnmarshalText([]byte(normalized)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return parsed, nil
}

// WithDeliveryID tags ctx with the ID of a single dequeue-and-send attempt.
func WithDeliveryID(ctx context.Context, deliveryID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, deliveryIDKey{}, deliveryID)
}

func DeliveryIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	deliveryID, ok := ctx.Value(deliveryIDKey{}).(string)
	if !ok || deliveryID == "" {
		return "", false
	}

	return deliveryID, true
}

func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}

	deliveryID, ok := DeliveryIDFromContext(ctx)
	if !ok {
		return logger
	}

	return logger.With(zap.String("deliveryId", deliveryID))
}
