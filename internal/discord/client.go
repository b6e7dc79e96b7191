// Package discord wraps discordgo with the small surface the notifier needs:
// token login, gateway readiness, user lookup and direct messages.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/kursadbilgin/discord-notifier/internal/domain"
	"go.uber.org/zap"
)

const botTokenPrefix = "Bot "

// currentUser is the REST alias for the authenticated account.
const currentUser = "@me"

// session is the part of *discordgo.Session the client uses.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// User is a resolved Discord account. The DM channel is created lazily on the
// first send and reused afterwards.
type User struct {
	ID       string
	Username string

	dmChannelID string
}

// Client is a single gateway connection. Ready is closed once the gateway
// finishes its handshake and stays closed across reconnects.
type Client struct {
	session session
	logger  *zap.Logger

	ready     chan struct{}
	readyOnce sync.Once
	handlers  []func()

	mu   sync.Mutex
	open bool
}

func New(token string, logger *zap.Logger) (*Client, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: discord token is required", domain.ErrValidation)
	}
	if !strings.HasPrefix(trimmed, botTokenPrefix) {
		trimmed = botTokenPrefix + trimmed
	}

	s, err := discordgo.New(trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsDirectMessages

	return newClient(s, logger), nil
}

func newClient(s session, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		session: s,
		logger:  logger,
		ready:   make(chan struct{}),
	}
	c.handlers = append(c.handlers,
		s.AddHandler(c.onReady),
		s.AddHandler(c.onDisconnect),
		s.AddHandler(c.onResumed),
	)
	return c
}

// Login validates the token with a REST call before the gateway is opened,
// so a bad token is reported as domain.ErrAuthentication instead of a
// gateway close frame.
func (c *Client) Login(ctx context.Context) (*User, error) {
	u, err := c.session.User(currentUser, discordgo.WithContext(contextOrBackground(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to log in to discord: %w", classify(err))
	}
	return toUser(u), nil
}

// Open connects to the gateway. discordgo handles heartbeats, resumes and
// reconnects from here on.
func (c *Client) Open(ctx context.Context) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		return nil
	}
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", classify(err))
	}
	c.open = true
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, remove := range c.handlers {
		remove()
	}
	c.handlers = nil

	if !c.open {
		return nil
	}
	c.open = false
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord gateway: %w", err)
	}
	return nil
}

func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

func (c *Client) IsReady() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

// FetchUser resolves a user by snowflake. Unknown users map to domain.ErrUserNotFound.
func (c *Client) FetchUser(ctx context.Context, userID string) (*User, error) {
	id, err := domain.ParseUserID(userID)
	if err != nil {
		return nil, err
	}

	u, err := c.session.User(id, discordgo.WithContext(contextOrBackground(ctx)))
	if err != nil {
		classified := classify(err)
		var apiErr *APIError
		if errors.As(classified, &apiErr) && apiErr.Kind == nil && apiErr.StatusCode == http.StatusNotFound {
			apiErr.Kind = domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user %s: %w", id, classified)
	}
	if u == nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", id, domain.ErrUserNotFound)
	}
	return toUser(u), nil
}

// SendDirectMessage sends content as a private message to user.
func (c *Client) SendDirectMessage(ctx context.Context, user *User, content string) error {
	if user == nil {
		return fmt.Errorf("%w: target user is not resolved", domain.ErrNotReady)
	}
	opt := discordgo.WithContext(contextOrBackground(ctx))

	if user.dmChannelID == "" {
		ch, err := c.session.UserChannelCreate(user.ID, opt)
		if err != nil {
			return fmt.Errorf("failed to open DM channel with %s: %w", user.ID, classify(err))
		}
		user.dmChannelID = ch.ID
	}

	if _, err := c.session.ChannelMessageSend(user.dmChannelID, content, opt); err != nil {
		return fmt.Errorf("failed to send direct message to %s: %w", user.ID, classify(err))
	}
	return nil
}

func (c *Client) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	fields := []zap.Field{zap.Int("gatewayVersion", r.Version)}
	if r.User != nil {
		fields = append(fields, zap.String("botUser", r.User.Username))
	}
	c.logger.Info("discord gateway ready", fields...)

	c.readyOnce.Do(func() {
		close(c.ready)
	})
}

func (c *Client) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.logger.Warn("discord gateway disconnected")
}

func (c *Client) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	c.logger.Info("discord gateway resumed")
}

func toUser(u *discordgo.User) *User {
	if u == nil {
		return nil
	}
	return &User{ID: u.ID, Username: u.Username}
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
