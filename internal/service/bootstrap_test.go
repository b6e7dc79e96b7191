package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kursadbilgin/discord-notifier/internal/discord"
	"github.com/kursadbilgin/discord-notifier/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewBootstrapperValidation(t *testing.T) {
	t.Parallel()

	messages, _ := newTestQueues(t)
	gateway := newFakeGateway()
	loop := newTestLoop(t, gateway, messages, nil)

	if _, err := NewBootstrapper(nil, loop, nil, nil); err == nil {
		t.Fatal("expected error for nil session")
	}
	if _, err := NewBootstrapper(gateway, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil loop")
	}
}

func TestBootstrapperInvalidToken(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		loginFn func(ctx context.Context) (*discord.User, error)
		openFn  func(ctx context.Context) error
	}{
		{
			name: "rejected at login",
			loginFn: func(ctx context.Context) (*discord.User, error) {
				return nil, fmt.Errorf("failed to log in to discord: %w", domain.ErrAuthentication)
			},
		},
		{
			name: "rejected by gateway",
			openFn: func(ctx context.Context) error {
				return fmt.Errorf("failed to open discord gateway: %w", domain.ErrAuthentication)
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			core, recorded := observer.New(zapcore.InfoLevel)
			gateway := newFakeGateway()
			gateway.loginFn = tc.loginFn
			gateway.openFn = tc.openFn
			gateway.markReady()

			messages, diagnostics := newTestQueues(t)
			push(t, messages, "pending")
			loop := newTestLoop(t, gateway, messages, diagnostics)

			boot, err := NewBootstrapper(gateway, loop, diagnostics, zap.New(core))
			if err != nil {
				t.Fatalf("NewBootstrapper() error = %v", err)
			}

			err = boot.Run(context.Background())
			if !errors.Is(err, domain.ErrAuthentication) {
				t.Fatalf("Run() error = %v, want ErrAuthentication", err)
			}

			diag := drain(t, diagnostics)
			if len(diag) != 1 || diag[0] != domain.DiagnosticLoginFailed {
				t.Fatalf("diagnostics = %v, want exactly one login failure", diag)
			}
			if got := gateway.sentContents(); len(got) != 0 {
				t.Fatalf("sent = %v, want nothing", got)
			}
			if gateway.fetchCalls != 0 {
				t.Fatalf("fetchCalls = %d, want 0", gateway.fetchCalls)
			}
			if n := recorded.FilterMessage("failed to connect to Discord API using provided token").Len(); n != 1 {
				t.Fatalf("auth failure log entries = %d, want 1", n)
			}
		})
	}
}

func TestBootstrapperInvalidTokenWithoutDiagnostics(t *testing.T) {
	t.Parallel()

	gateway := newFakeGateway()
	gateway.loginFn = func(ctx context.Context) (*discord.User, error) {
		return nil, domain.ErrAuthentication
	}
	messages, _ := newTestQueues(t)
	loop := newTestLoop(t, gateway, messages, nil)

	boot, err := NewBootstrapper(gateway, loop, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewBootstrapper() error = %v", err)
	}

	if err := boot.Run(context.Background()); !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("Run() error = %v, want ErrAuthentication", err)
	}
	if gateway.openCalls != 0 {
		t.Fatalf("openCalls = %d, want 0", gateway.openCalls)
	}
}

func TestBootstrapperConnectionErrorIsNotReportedAsLoginFailure(t *testing.T) {
	t.Parallel()

	gateway := newFakeGateway()
	gateway.openFn = func(ctx context.Context) error {
		return errors.New("dial tcp: connection refused")
	}
	messages, diagnostics := newTestQueues(t)
	loop := newTestLoop(t, gateway, messages, diagnostics)

	boot, err := NewBootstrapper(gateway, loop, diagnostics, zap.NewNop())
	if err != nil {
		t.Fatalf("NewBootstrapper() error = %v", err)
	}

	err = boot.Run(context.Background())
	if err == nil || errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("Run() error = %v, want non-authentication failure", err)
	}
	if diag := drain(t, diagnostics); len(diag) != 0 {
		t.Fatalf("diagnostics = %v, want none", diag)
	}
}

func TestBootstrapperRunDeliversUntilCanceled(t *testing.T) {
	t.Parallel()

	gateway := newFakeGateway()
	messages, diagnostics := newTestQueues(t)
	loop := newTestLoop(t, gateway, messages, diagnostics)
	gateway.openFn = func(ctx context.Context) error {
		gateway.markReady()
		return nil
	}

	boot, err := NewBootstrapper(gateway, loop, diagnostics, zap.NewNop())
	if err != nil {
		t.Fatalf("NewBootstrapper() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- boot.Run(ctx) }()

	waitForSends(t, gateway, 1)
	push(t, messages, "build finished")
	waitForSends(t, gateway, 2)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	got := gateway.sentContents()
	if len(got) != 2 || got[0] != "announce" || got[1] != "build finished" {
		t.Fatalf("sent = %v, want [announce build finished]", got)
	}
	diag := drain(t, diagnostics)
	if len(diag) != 1 || diag[0] != domain.FoundUserDiagnostic("target") {
		t.Fatalf("diagnostics = %v, want exactly one success notification", diag)
	}
	if gateway.closeCalls != 1 {
		t.Fatalf("closeCalls = %d, want 1", gateway.closeCalls)
	}
}

func TestBootstrapperRunReturnsSendFailure(t *testing.T) {
	t.Parallel()

	gateway := newFakeGateway()
	gateway.markReady()
	gateway.sendFn = func(ctx context.Context, user *discord.User, content string) error {
		return errors.New("cannot send messages to this user")
	}
	messages, _ := newTestQueues(t)
	loop := newTestLoop(t, gateway, messages, nil)

	boot, err := NewBootstrapper(gateway, loop, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewBootstrapper() error = %v", err)
	}

	if err := boot.Run(context.Background()); err == nil {
		t.Fatal("Run() expected delivery error")
	}
	if gateway.closeCalls != 1 {
		t.Fatalf("closeCalls = %d, want 1", gateway.closeCalls)
	}
}
