package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/discord-notifier/internal/discord"
	"github.com/kursadbilgin/discord-notifier/internal/domain"
	"github.com/kursadbilgin/discord-notifier/internal/observability"
	"github.com/kursadbilgin/discord-notifier/internal/queue"
	"go.uber.org/zap"
)

// Session is a Discord connection that can be logged in, opened and closed.
type Session interface {
	Gateway
	Login(ctx context.Context) (*discord.User, error)
	Open(ctx context.Context) error
	Close() error
}

// Bootstrapper authenticates, opens the gateway and runs the delivery loop
// for the lifetime of ctx.
type Bootstrapper struct {
	session     Session
	loop        *DeliveryLoop
	diagnostics queue.Publisher
	logger      *zap.Logger
	metrics     *observability.Metrics
}

func NewBootstrapper(
	session Session,
	loop *DeliveryLoop,
	diagnostics queue.Publisher,
	logger *zap.Logger,
) (*Bootstrapper, error) {
	if session == nil {
		return nil, fmt.Errorf("discord session is required")
	}
	if loop == nil {
		return nil, fmt.Errorf("delivery loop is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Bootstrapper{
		session:     session,
		loop:        loop,
		diagnostics: diagnostics,
		logger:      logger,
	}, nil
}

func (b *Bootstrapper) SetMetrics(metrics *observability.Metrics) {
	if b == nil {
		return
	}
	b.metrics = metrics
}

// Run blocks until ctx is canceled or the delivery loop fails. An invalid
// token is reported on the diagnostic queue and returned as an error wrapping
// domain.ErrAuthentication; nothing is sent in that case.
func (b *Bootstrapper) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	bot, err := b.session.Login(ctx)
	if err != nil {
		return b.connectFailed(ctx, err)
	}
	b.logger.Info("authenticated with Discord API", zap.String("botUser", bot.Username))

	if err := b.session.Open(ctx); err != nil {
		return b.connectFailed(ctx, err)
	}
	defer func() {
		b.metrics.SetGatewayReady(false)
		if err := b.session.Close(); err != nil {
			b.logger.Warn("failed to close discord session", zap.Error(err))
		}
	}()

	if err := b.loop.Start(ctx); err != nil {
		return fmt.Errorf("delivery loop stopped: %w", err)
	}

	b.logger.Info("discord notifier stopped")
	return nil
}

func (b *Bootstrapper) connectFailed(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	if !errors.Is(err, domain.ErrAuthentication) {
		b.logger.Error("failed to connect to Discord API", zap.Error(err))
		return fmt.Errorf("failed to connect to discord: %w", err)
	}

	b.logger.Error("failed to connect to Discord API using provided token", zap.Error(err))
	if b.diagnostics != nil {
		if pubErr := b.diagnostics.Push(ctx, domain.DiagnosticLoginFailed); pubErr != nil {
			b.logger.Warn("failed to publish diagnostic",
				zap.String("outcome", "login_failed"),
				zap.Error(pubErr),
			)
		} else {
			b.metrics.IncDiagnostic("login_failed")
		}
	}
	return fmt.Errorf("discord login failed: %w", err)
}
