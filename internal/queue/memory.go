package queue

import (
	"context"
	"fmt"
)

const defaultMemoryCapacity = 1024

var _ Queue = (*MemoryQueue)(nil)

// MemoryQueue is an in-process queue backed by a buffered channel.
type MemoryQueue struct {
	name     string
	messages chan string
}

func NewMemoryQueue(name string, capacity int) (*MemoryQueue, error) {
	trimmed, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryQueue{
		name:     trimmed,
		messages: make(chan string, capacity),
	}, nil
}

func (q *MemoryQueue) Name() string { return q.name }

func (q *MemoryQueue) Push(ctx context.Context, msg string) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	select {
	case q.messages <- msg:
		return nil
	default:
		return fmt.Errorf("failed to push to queue %q: %w", q.name, ErrFull)
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) (string, bool, error) {
	if ctx != nil && ctx.Err() != nil {
		return "", false, ctx.Err()
	}
	select {
	case msg := <-q.messages:
		return msg, true, nil
	default:
		return "", false, nil
	}
}

func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	return int64(len(q.messages)), nil
}

// Close is a no-op; the channel stays open so late producers never panic.
func (q *MemoryQueue) Close() error { return nil }
