package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/relaygate/gateway/internal/adapters"
	"github.com/relaygate/gateway/internal/audit"
	"github.com/relaygate/gateway/internal/contextstore"
	"github.com/relaygate/gateway/internal/cost"
	"github.com/relaygate/gateway/internal/ratelimit"
	"github.com/relaygate/gateway/internal/resilience"
	"github.com/relaygate/gateway/internal/routing"
	"github.com/relaygate/gateway/internal/storage"
)

// fakeAdapter is a minimal in-memory Adapter for orchestrator tests.
type fakeAdapter struct {
	name      string
	available bool
	fail      int // number of Chat calls to fail before succeeding
	calls     int
}

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) Descriptor() adapters.Descriptor {
	return adapters.Descriptor{Name: f.name, MaxContextWindow: 8192}
}
func (f *fakeAdapter) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeAdapter) Chat(ctx context.Context, req adapters.ChatRequest) (*adapters.Response, error) {
	f.calls++
	if f.calls <= f.fail {
		return nil, adapters.NewError(f.name, adapters.FailureUpstreamError, errTransient)
	}
	return &adapters.Response{Content: "hello from " + f.name, Model: "test-model", Usage: adapters.Usage{InputTokens: 10, OutputTokens: 5}}, nil
}
func (f *fakeAdapter) StreamChat(ctx context.Context, req adapters.ChatRequest, onChunk func(adapters.StreamChunk) error) error {
	if err := onChunk(adapters.StreamChunk{Content: "chunk-1"}); err != nil {
		return err
	}
	return onChunk(adapters.StreamChunk{Content: "chunk-2", Done: true})
}

var errTransient = &plainErr{"transient upstream failure"}

type plainErr struct{ s string }

func (e *plainErr) Error() string { return e.s }

// fakeStore implements both contextstore.Store and cost.Store/audit.Store
// narrow interfaces backed by a single mutex-protected map.
type fakeStore struct {
	mu        sync.Mutex
	contexts  map[string]*storage.Context
	messages  map[string][]storage.Message
	costs     []*storage.CostRecord
	auditLogs []*storage.AuditEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{contexts: map[string]*storage.Context{}, messages: map[string][]storage.Message{}}
}

func (s *fakeStore) SaveContext(ctx context.Context, c *storage.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[c.ConversationID] = c
	return nil
}
func (s *fakeStore) LoadContext(ctx context.Context, id string) (*storage.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contexts[id], nil
}
func (s *fakeStore) AddMessage(ctx context.Context, id string, m storage.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[id] = append(s.messages[id], m)
	return nil
}
func (s *fakeStore) GetMessages(ctx context.Context, id string, limit int) ([]storage.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[id]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]storage.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
func (s *fakeStore) AddToolCall(ctx context.Context, id string, call storage.ToolCall) error {
	return nil
}
func (s *fakeStore) RecordCost(ctx context.Context, r *storage.CostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costs = append(s.costs, r)
	return nil
}
func (s *fakeStore) GetCosts(ctx context.Context, filter storage.CostFilter) ([]*storage.CostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.costs, nil
}
func (s *fakeStore) LogAuditEvent(ctx context.Context, e *storage.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, e)
	return nil
}
func (s *fakeStore) GetAuditLogs(ctx context.Context, filter storage.AuditFilter) ([]*storage.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auditLogs, nil
}

func newTestOrchestrator(store *fakeStore, a adapters.Adapter) *Orchestrator {
	registry := adapters.NewRegistry()
	registry.Register(a)

	rules := routing.NewRules("general-tool", nil, nil, []string{a.(*fakeAdapter).name})

	return &Orchestrator{
		Rules:    rules,
		Adapters: registry,
		Contexts: contextstore.NewManager(store),
		Costs:    cost.NewTracker(store, nil),
		Audit:    audit.NewLogger(store, nil),
		Breakers: resilience.NewRegistry(nil),
		Limiters: ratelimit.NewRegistry(ratelimit.Config{Capacity: 100, RefillRate: 100}),
		RetryCfg: resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 0, MaxDelay: 0, Base: 2.0},
	}
}

func TestChatHappyPathPersistsAndReturnsContent(t *testing.T) {
	store := newFakeStore()
	a := &fakeAdapter{name: "general-tool", available: true}
	o := newTestOrchestrator(store, a)

	result, err := o.Chat(context.Background(), Request{Message: "hello there", UserID: "u1"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if result.Content != "hello from general-tool" {
		t.Fatalf("unexpected content: %q", result.Content)
	}
	msgs, _ := store.GetMessages(context.Background(), result.ConversationID, 0)
	if len(msgs) != 2 {
		t.Fatalf("expected user+assistant persisted, got %d", len(msgs))
	}
}

func TestChatRetriesTransientFailureThenSucceeds(t *testing.T) {
	store := newFakeStore()
	a := &fakeAdapter{name: "general-tool", available: true, fail: 1}
	o := newTestOrchestrator(store, a)

	result, err := o.Chat(context.Background(), Request{Message: "hello", UserID: "u1"})
	if err != nil {
		t.Fatalf("expected retry to recover, got error: %v", err)
	}
	if a.calls != 2 {
		t.Fatalf("expected exactly one retry (2 calls), got %d", a.calls)
	}
	if result.Content == "" {
		t.Fatal("expected content after retry recovery")
	}
}

func TestChatReturnsErrorWhenNoAdapterAvailable(t *testing.T) {
	store := newFakeStore()
	a := &fakeAdapter{name: "general-tool", available: false}
	o := newTestOrchestrator(store, a)

	if _, err := o.Chat(context.Background(), Request{Message: "hello", UserID: "u1"}); err == nil {
		t.Fatal("expected error when no adapter is live")
	}
}

func TestStreamChatDeliversChunksAndPersistsFullContent(t *testing.T) {
	store := newFakeStore()
	a := &fakeAdapter{name: "general-tool", available: true}
	o := newTestOrchestrator(store, a)

	var chunks []string
	tool, convID, err := o.StreamChat(context.Background(), Request{Message: "hello", UserID: "u1"}, func(c adapters.StreamChunk) error {
		chunks = append(chunks, c.Content)
		return nil
	})
	if err != nil {
		t.Fatalf("stream chat: %v", err)
	}
	if tool != "general-tool" {
		t.Fatalf("unexpected tool: %s", tool)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	msgs, _ := store.GetMessages(context.Background(), convID, 0)
	if len(msgs) != 2 {
		t.Fatalf("expected persisted user+assistant messages, got %d", len(msgs))
	}
	if msgs[1].Content != "chunk-1chunk-2" {
		t.Fatalf("expected concatenated streamed content, got %q", msgs[1].Content)
	}
}
