// Package contextstore implements the gateway's context manager
// (spec.md §4.H): conversation load/create/save, message and tool-call
// append, window-fit trimming, compression, and summarization.
package contextstore

import (
	"context"
	"time"

	"github.com/relaygate/gateway/internal/storage"
)

// Store is the subset of storage.Backend the context manager needs.
type Store interface {
	SaveContext(ctx context.Context, c *storage.Context) error
	LoadContext(ctx context.Context, conversationID string) (*storage.Context, error)
	AddMessage(ctx context.Context, conversationID string, m storage.Message) error
	GetMessages(ctx context.Context, conversationID string, limit int) ([]storage.Message, error)
	AddToolCall(ctx context.Context, conversationID string, call storage.ToolCall) error
}

// Manager is the context-manager component orchestrator.K calls.
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// GetOrCreate loads the context for conversationID, creating an empty
// one scoped to projectID if none exists yet.
func (m *Manager) GetOrCreate(ctx context.Context, conversationID, projectID string) (*storage.Context, error) {
	existing, err := m.store.LoadContext(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	fresh := &storage.Context{
		ConversationID: conversationID,
		ProjectID:      projectID,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := m.store.SaveContext(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Save persists c, advancing UpdatedAt.
func (m *Manager) Save(ctx context.Context, c *storage.Context) error {
	c.UpdatedAt = time.Now().UTC()
	return m.store.SaveContext(ctx, c)
}

// AddMessage appends a message to conversationID's stored history.
func (m *Manager) AddMessage(ctx context.Context, conversationID string, msg storage.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return m.store.AddMessage(ctx, conversationID, msg)
}

// AddToolCall appends a tool-call record to conversationID's log.
func (m *Manager) AddToolCall(ctx context.Context, conversationID string, call storage.ToolCall) error {
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}
	return m.store.AddToolCall(ctx, conversationID, call)
}

// RecentMessages returns the most recent limit messages stored for
// conversationID, oldest first, as orchestrator.K step 4 needs them.
func (m *Manager) RecentMessages(ctx context.Context, conversationID string, limit int) ([]storage.Message, error) {
	return m.store.GetMessages(ctx, conversationID, limit)
}

// PrepareForAdapter returns messages trimmed to fit windowTokens minus
// reserved, after compression, ready to hand to an adapter.
func PrepareForAdapter(messages []storage.Message, windowTokens, reserved int) []storage.Message {
	return FitWindow(Compress(messages), windowTokens, reserved)
}
