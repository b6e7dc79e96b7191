package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kursadbilgin/discord-notifier/internal/domain"
	"github.com/kursadbilgin/discord-notifier/internal/queue"
)

func TestPushAll(t *testing.T) {
	t.Parallel()

	q, err := queue.NewMemoryQueue("test", 8)
	if err != nil {
		t.Fatalf("NewMemoryQueue() error = %v", err)
	}

	n, err := pushAll(context.Background(), q, []string{"first", "second"})
	if err != nil {
		t.Fatalf("pushAll() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("pushAll() = %d, want 2", n)
	}

	for _, want := range []string{"first", "second"} {
		got, ok, err := q.Pop(context.Background())
		if err != nil || !ok {
			t.Fatalf("Pop() = %q, %v, %v", got, ok, err)
		}
		if got != want {
			t.Fatalf("Pop() = %q, want %q", got, want)
		}
	}
}

func TestPushAllRejectsInvalidBeforePushing(t *testing.T) {
	t.Parallel()

	q, err := queue.NewMemoryQueue("test", 8)
	if err != nil {
		t.Fatalf("NewMemoryQueue() error = %v", err)
	}

	_, err = pushAll(context.Background(), q, []string{"ok", strings.Repeat("x", domain.MaxMessageContent+1)})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("pushAll() error = %v, want ErrValidation", err)
	}
	if n, _ := q.Len(context.Background()); n != 0 {
		t.Fatalf("queue length = %d, want 0", n)
	}
}
