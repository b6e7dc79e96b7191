package service

import (
	"context"
	"sync"

	"github.com/kursadbilgin/discord-notifier/internal/discord"
)

type sentMessage struct {
	userID  string
	content string
}

type fakeGateway struct {
	mu sync.Mutex

	ready       chan struct{}
	fetchUserFn func(ctx context.Context, userID string) (*discord.User, error)
	sendFn      func(ctx context.Context, user *discord.User, content string) error

	fetchCalls int
	sent       []sentMessage
	sentSignal chan struct{}

	loginFn    func(ctx context.Context) (*discord.User, error)
	openFn     func(ctx context.Context) error
	openCalls  int
	closeCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		ready:      make(chan struct{}),
		sentSignal: make(chan struct{}, 64),
	}
}

func (f *fakeGateway) markReady() { close(f.ready) }

func (f *fakeGateway) Ready() <-chan struct{} { return f.ready }

func (f *fakeGateway) FetchUser(ctx context.Context, userID string) (*discord.User, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()

	if f.fetchUserFn != nil {
		return f.fetchUserFn(ctx, userID)
	}
	return &discord.User{ID: userID, Username: "target"}, nil
}

func (f *fakeGateway) SendDirectMessage(ctx context.Context, user *discord.User, content string) error {
	if f.sendFn != nil {
		if err := f.sendFn(ctx, user, content); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{userID: user.ID, content: content})
	f.mu.Unlock()

	select {
	case f.sentSignal <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeGateway) Login(ctx context.Context) (*discord.User, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx)
	}
	return &discord.User{ID: "1", Username: "notifier-bot"}, nil
}

func (f *fakeGateway) Open(ctx context.Context) error {
	f.mu.Lock()
	f.openCalls++
	f.mu.Unlock()

	if f.openFn != nil {
		return f.openFn(ctx)
	}
	return nil
}

func (f *fakeGateway) Close() error {
	f.mu.Lock()
	f.closeCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeGateway) sentContents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.content)
	}
	return out
}
