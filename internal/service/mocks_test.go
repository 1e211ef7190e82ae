package service

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/Rrens/partner-chat/internal/domain"
	"github.com/Rrens/partner-chat/internal/partner"
)

// MockTransport mocks the partner.Transport interface
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Warmup(ctx context.Context, req partner.WarmupRequest) (*partner.WarmupResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.WarmupResponse), args.Error(1)
}

func (m *MockTransport) OpenStream(ctx context.Context, req partner.MessageRequest) (io.ReadCloser, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// MockGreetingStore mocks the domain.GreetingStore interface
type MockGreetingStore struct {
	mock.Mock
}

func (m *MockGreetingStore) Get(ctx context.Context, key domain.GreetingKey) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockGreetingStore) Set(ctx context.Context, key domain.GreetingKey, greeting string) error {
	args := m.Called(ctx, key, greeting)
	return args.Error(0)
}

// memGreetingStore is an in-memory domain.GreetingStore
type memGreetingStore struct {
	mu   sync.Mutex
	data map[domain.GreetingKey]string
}

func newMemGreetingStore() *memGreetingStore {
	return &memGreetingStore{data: make(map[domain.GreetingKey]string)}
}

func (s *memGreetingStore) Get(_ context.Context, key domain.GreetingKey) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memGreetingStore) Set(_ context.Context, key domain.GreetingKey, greeting string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = greeting
	return nil
}

func (s *memGreetingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// recordingNotifier keeps every notification it receives
type recordingNotifier struct {
	mu          sync.Mutex
	transcripts [][]domain.Message
	greetings   []string
	states      []domain.TurnState
}

func (n *recordingNotifier) TranscriptChanged(_ string, messages []domain.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transcripts = append(n.transcripts, messages)
}

func (n *recordingNotifier) GreetingReady(_ string, greeting string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.greetings = append(n.greetings, greeting)
}

func (n *recordingNotifier) TurnStateChanged(_ string, state domain.TurnState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
}

func (n *recordingNotifier) Greetings() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.greetings...)
}

func (n *recordingNotifier) States() []domain.TurnState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.TurnState(nil), n.states...)
}

func (n *recordingNotifier) TranscriptCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.transcripts)
}

// blockingBody never yields data; reads fail once it is closed
type blockingBody struct {
	once sync.Once
	done chan struct{}
}

func newBlockingBody() *blockingBody {
	return &blockingBody{done: make(chan struct{})}
}

func (b *blockingBody) Read([]byte) (int, error) {
	<-b.done
	return 0, io.ErrClosedPipe
}

func (b *blockingBody) Close() error {
	b.once.Do(func() { close(b.done) })
	return nil
}

func streamBody(lines ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

var testIdentity = domain.Identity{UUID: "u-1", HospitalID: "h-9"}

func newTestSession() *domain.ChatSession {
	return domain.NewChatSession(testIdentity, nil)
}
