package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrFull is returned by bounded in-process queues when no capacity is left.
var ErrFull = errors.New("queue is full")

// Publisher appends messages to a queue. Diagnostic sinks only need this half.
type Publisher interface {
	Push(ctx context.Context, msg string) error
	Close() error
}

// Queue is a FIFO of plain text messages shared with external producers.
// Pop never blocks: ok is false when the queue is empty. A popped message is
// removed atomically and will not be returned again.
type Queue interface {
	Publisher
	Pop(ctx context.Context) (msg string, ok bool, err error)
	Len(ctx context.Context) (int64, error)
}

// Publishers fans a message out to every sink, e.g. a diagnostic queue plus a webhook.
type Publishers []Publisher

func (p Publishers) Push(ctx context.Context, msg string) error {
	var errs []error
	for _, publisher := range p {
		if publisher == nil {
			continue
		}
		if err := publisher.Push(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p Publishers) Close() error {
	var errs []error
	for _, publisher := range p {
		if publisher == nil {
			continue
		}
		if err := publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Compact drops nil sinks and returns nil when none are left, so callers can
// treat "no diagnostics configured" as a nil Publisher.
func (p Publishers) Compact() Publisher {
	out := make(Publishers, 0, len(p))
	for _, publisher := range p {
		if publisher != nil {
			out = append(out, publisher)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func validateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("queue name is required")
	}
	return trimmed, nil
}
