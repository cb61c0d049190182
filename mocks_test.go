package authclient_test

import (
	"context"
	"sync"
	"time"

	authclient "github.com/goliatone/go-auth-client"
	"github.com/stretchr/testify/mock"
)

// MockAPIClient implements authclient.APIClient
type MockAPIClient struct {
	mock.Mock
}

func (m *MockAPIClient) Login(ctx context.Context, req authclient.LoginRequest) (*authclient.LoginResponse, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*authclient.LoginResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAPIClient) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAPIClient) Refresh(ctx context.Context) (*authclient.RefreshResponse, error) {
	args := m.Called(ctx)
	if res := args.Get(0); res != nil {
		return res.(*authclient.RefreshResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAPIClient) CurrentUser(ctx context.Context) (*authclient.UserInfo, error) {
	args := m.Called(ctx)
	if res := args.Get(0); res != nil {
		return res.(*authclient.UserInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

// memTokenStore keeps the token record in memory for tests that do not care
// about the filesystem.
type memTokenStore struct {
	mu     sync.Mutex
	record *authclient.AccessToken
	now    func() time.Time
}

func newMemTokenStore(now func() time.Time) *memTokenStore {
	if now == nil {
		now = time.Now
	}
	return &memTokenStore{now: now}
}

func (s *memTokenStore) SetToken(token string, expiresIn int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = authclient.NewAccessToken(token, expiresIn, s.now())
	return nil
}

func (s *memTokenStore) GetToken() *authclient.AccessToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return nil
	}
	record := *s.record
	return &record
}

func (s *memTokenStore) RemoveToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = nil
}

func (s *memTokenStore) Clear() {
	s.RemoveToken()
}

// localBus dispatches published topics to its own subscribers synchronously
// and records every publish.
type localBus struct {
	mu        sync.Mutex
	subs      map[string][]func()
	Published []string
}

func newLocalBus() *localBus {
	return &localBus{subs: map[string][]func(){}}
}

func (b *localBus) Publish(topic string) error {
	b.mu.Lock()
	b.Published = append(b.Published, topic)
	handlers := append([]func(){}, b.subs[topic]...)
	b.mu.Unlock()

	for _, h := range handlers {
		h()
	}
	return nil
}

func (b *localBus) Subscribe(topic string, handler func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], handler)
	return func() {}
}

func (b *localBus) PublishedTopics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.Published...)
}

// captureSink records activity events.
type captureSink struct {
	mu     sync.Mutex
	events []authclient.ActivityEvent
}

func (s *captureSink) Record(_ context.Context, event authclient.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Types() []authclient.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]authclient.ActivityEventType, len(s.events))
	for i, e := range s.events {
		types[i] = e.EventType
	}
	return types
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
