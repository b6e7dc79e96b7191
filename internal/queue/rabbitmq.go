package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
	dialTimeout      = 15 * time.Second
)

// RabbitMQ owns one AMQP connection shared by every RabbitMQQueue and
// redials with exponential backoff when the broker drops it.
type RabbitMQ struct {
	url string

	mu          sync.RWMutex
	reconnectMu sync.Mutex
	conn        *amqp.Connection
}

func NewRabbitMQ(ctx context.Context, url string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r := &RabbitMQ{url: url}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := r.ensureConnected(dialCtx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	if err := r.ensureConnected(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()

	ch, err := conn.Channel()
	if err == nil {
		return ch, nil
	}

	if errReconnect := r.reconnectWithBackoff(ctx); errReconnect != nil {
		return nil, errReconnect
	}

	r.mu.RLock()
	conn = r.conn
	r.mu.RUnlock()

	ch, err = conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create rabbitmq channel after reconnect: %w", err)
	}
	return ch, nil
}

func (r *RabbitMQ) ensureConnected(ctx context.Context) error {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()

	if conn != nil && !conn.IsClosed() {
		return nil
	}
	return r.reconnectWithBackoff(ctx)
}

func (r *RabbitMQ) reconnectWithBackoff(ctx context.Context) error {
	r.reconnectMu.Lock()
	defer r.reconnectMu.Unlock()

	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn != nil && !conn.IsClosed() {
		return nil
	}

	wait := reconnectBackoff
	for {
		newConn, err := amqp.Dial(r.url)
		if err == nil {
			r.mu.Lock()
			r.conn = newConn
			r.mu.Unlock()
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rabbitmq reconnect canceled: %w", ctx.Err())
		case <-time.After(wait):
		}

		wait *= 2
		if wait > maxBackoff {
			wait = maxBackoff
		}
	}
}

var _ Queue = (*RabbitMQQueue)(nil)

// RabbitMQQueue maps the message queue onto a durable AMQP queue. Pops use
// basic.get with auto-ack, so a message leaves the broker before it is sent.
type RabbitMQQueue struct {
	client *RabbitMQ
	name   string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewRabbitMQQueue(client *RabbitMQ, name string) (*RabbitMQQueue, error) {
	if client == nil {
		return nil, fmt.Errorf("rabbitmq client is required")
	}
	trimmed, err := validateName(name)
	if err != nil {
		return nil, err
	}
	return &RabbitMQQueue{client: client, name: trimmed}, nil
}

func (q *RabbitMQQueue) Push(ctx context.Context, msg string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ch, err := q.channelLocked(ctx)
	if err != nil {
		return err
	}

	publishing := amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         []byte(msg),
	}
	if err := ch.PublishWithContext(ctx, "", q.name, false, false, publishing); err != nil {
		q.resetLocked()
		return fmt.Errorf("failed to publish message to queue %q: %w", q.name, err)
	}
	return nil
}

func (q *RabbitMQQueue) Pop(ctx context.Context) (string, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ch, err := q.channelLocked(ctx)
	if err != nil {
		return "", false, err
	}

	d, ok, err := ch.Get(q.name, true)
	if err != nil {
		q.resetLocked()
		return "", false, fmt.Errorf("failed to get message from queue %q: %w", q.name, err)
	}
	if !ok {
		return "", false, nil
	}
	return string(d.Body), true, nil
}

func (q *RabbitMQQueue) Len(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ch, err := q.channelLocked(ctx)
	if err != nil {
		return 0, err
	}

	state, err := ch.QueueDeclarePassive(q.name, true, false, false, false, nil)
	if err != nil {
		q.resetLocked()
		return 0, fmt.Errorf("failed to inspect queue %q: %w", q.name, err)
	}
	return int64(state.Messages), nil
}

// Close releases the queue's channel. The shared connection is closed by its owner.
func (q *RabbitMQQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ch == nil {
		return nil
	}
	ch := q.ch
	q.ch = nil
	if ch.IsClosed() {
		return nil
	}
	return ch.Close()
}

func (q *RabbitMQQueue) channelLocked(ctx context.Context) (*amqp.Channel, error) {
	if q.ch != nil && !q.ch.IsClosed() {
		return q.ch, nil
	}

	ch, err := q.client.channel(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(q.name, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare queue %q: %w", q.name, err)
	}

	q.ch = ch
	return ch, nil
}

func (q *RabbitMQQueue) resetLocked() {
	if q.ch == nil {
		return
	}
	_ = q.ch.Close()
	q.ch = nil
}
