package queue

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultWebhookTimeout = 10 * time.Second

type webhookRequest struct {
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

var _ Publisher = (*WebhookPublisher)(nil)

// WebhookPublisher forwards diagnostic strings to an HTTP endpoint as JSON.
// It is write-only and never retries.
type WebhookPublisher struct {
	client   *resty.Client
	endpoint string
	source   string
	now      func() time.Time
}

func NewWebhookPublisher(endpoint string) (*WebhookPublisher, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	return NewWebhookPublisherWithClient(endpoint, client)
}

func NewWebhookPublisherWithClient(endpoint string, client *resty.Client) (*WebhookPublisher, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookPublisher{
		client:   client,
		endpoint: trimmedEndpoint,
		source:   "discord-notifier",
		now:      time.Now,
	}, nil
}

func (p *WebhookPublisher) Push(ctx context.Context, msg string) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("webhook publisher is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookRequest{
			Source:    p.source,
			Message:   msg,
			Timestamp: p.now().UTC(),
		}).
		Post(p.endpoint)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(response.String())
	if body == "" {
		return fmt.Errorf("webhook returned status %d", statusCode)
	}
	return fmt.Errorf("webhook returned status %d: %s", statusCode, body)
}

func (p *WebhookPublisher) Close() error { return nil }
