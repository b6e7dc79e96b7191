package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/discord-notifier/internal/discord"
	"github.com/kursadbilgin/discord-notifier/internal/domain"
	"github.com/kursadbilgin/discord-notifier/internal/observability"
	"github.com/kursadbilgin/discord-notifier/internal/queue"
	"go.uber.org/zap"
)

// Gateway is the Discord surface the delivery loop depends on.
type Gateway interface {
	Ready() <-chan struct{}
	FetchUser(ctx context.Context, userID string) (*discord.User, error)
	SendDirectMessage(ctx context.Context, user *discord.User, content string) error
}

// DeliveryConfig holds the per-deployment knobs of the delivery loop.
type DeliveryConfig struct {
	UserID       string
	Announcement string
	// PollInterval is the pause between iterations. Zero polls continuously,
	// yielding to the scheduler between iterations.
	PollInterval time.Duration
	Debug        bool
}

// DeliveryLoop drains the message queue into direct messages for one user.
// The target user is resolved once after the gateway is ready; until then,
// and forever if resolution fails, nothing is dequeued.
type DeliveryLoop struct {
	gateway     Gateway
	messages    queue.Queue
	diagnostics queue.Publisher
	cfg         DeliveryConfig
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	newID       func() string

	target atomic.Pointer[discord.User]
}

func NewDeliveryLoop(
	gateway Gateway,
	messages queue.Queue,
	diagnostics queue.Publisher,
	cfg DeliveryConfig,
	logger *zap.Logger,
) (*DeliveryLoop, error) {
	if gateway == nil {
		return nil, fmt.Errorf("discord gateway is required")
	}
	if messages == nil {
		return nil, fmt.Errorf("message queue is required")
	}
	userID, err := domain.ParseUserID(cfg.UserID)
	if err != nil {
		return nil, err
	}
	cfg.UserID = userID
	if cfg.PollInterval < 0 {
		cfg.PollInterval = 0
	}
	if strings.TrimSpace(cfg.Announcement) == "" {
		cfg.Announcement = domain.DefaultAnnouncement
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryLoop{
		gateway:     gateway,
		messages:    messages,
		diagnostics: diagnostics,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

func (l *DeliveryLoop) SetMetrics(metrics *observability.Metrics) {
	if l == nil {
		return
	}
	l.metrics = metrics
}

// Target returns the resolved user, or nil while delivery is disabled.
func (l *DeliveryLoop) Target() *discord.User {
	return l.target.Load()
}

// Start waits for readiness, resolves the target user and then polls until
// ctx is canceled. A send failure ends the loop and is returned to the caller;
// the message that failed is not requeued.
func (l *DeliveryLoop) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	l.logger.Info("waiting for connection to Discord API")
	select {
	case <-ctx.Done():
		return nil
	case <-l.gateway.Ready():
	}
	l.metrics.SetGatewayReady(true)
	l.logger.Info("successful connection to Discord API")

	l.resolveTarget(ctx)

	for {
		if _, err := l.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !l.pause(ctx) {
			return nil
		}
	}
}

func (l *DeliveryLoop) resolveTarget(ctx context.Context) {
	user, err := l.gateway.FetchUser(ctx, l.cfg.UserID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.logger.Error("failed to find user using provided user ID",
			zap.String("userId", l.cfg.UserID),
			zap.Bool("unknownUser", errors.Is(err, domain.ErrUserNotFound)),
			zap.Error(err),
		)
		l.metrics.SetTargetResolved(false)
		l.publishDiagnostic(ctx, "user_not_found", domain.DiagnosticUserNotFound)
		return
	}

	l.target.Store(user)
	l.metrics.SetTargetResolved(true)
	l.logger.Info("found user",
		zap.String("userId", user.ID),
		zap.String("username", user.Username),
	)
	l.publishDiagnostic(ctx, "user_found", domain.FoundUserDiagnostic(user.Username))

	if err := l.messages.Push(ctx, l.cfg.Announcement); err != nil {
		l.logger.Warn("failed to enqueue connection announcement", zap.Error(err))
		return
	}
	l.metrics.IncAnnouncementQueued()
}

// tick runs one iteration: at most one message is dequeued and sent.
func (l *DeliveryLoop) tick(ctx context.Context) (bool, error) {
	target := l.target.Load()
	if target == nil {
		return false, nil
	}

	msg, ok, err := l.messages.Pop(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to dequeue message: %w", err)
	}
	if !ok {
		return false, nil
	}

	deliveryCtx := observability.WithDeliveryID(ctx, l.newID())
	logger := observability.WithContextLogger(l.logger, deliveryCtx)
	if l.cfg.Debug {
		logger.Debug("acquired message to send via Discord DM", zap.String("content", msg))
	}

	sendStart := l.now()
	sendErr := l.gateway.SendDirectMessage(deliveryCtx, target, msg)
	l.metrics.ObserveMessageSendDuration(l.now().Sub(sendStart))

	if sendErr != nil {
		l.metrics.IncMessageFailed("send_error")
		logger.Error("failed to send direct message",
			zap.String("userId", target.ID),
			zap.Error(sendErr),
		)
		return false, fmt.Errorf("failed to deliver message: %w", sendErr)
	}

	l.metrics.IncMessageSent()
	logger.Debug("direct message sent", zap.String("userId", target.ID))
	return true, nil
}

// pause yields between iterations and reports whether the loop should go on.
func (l *DeliveryLoop) pause(ctx context.Context) bool {
	if l.cfg.PollInterval <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			runtime.Gosched()
			return true
		}
	}

	timer := time.NewTimer(l.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (l *DeliveryLoop) publishDiagnostic(ctx context.Context, outcome string, msg string) {
	if l.diagnostics == nil {
		return
	}
	if err := l.diagnostics.Push(ctx, msg); err != nil {
		l.logger.Warn("failed to publish diagnostic",
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		return
	}
	l.metrics.IncDiagnostic(outcome)
}
