package storage

import (
	"context"
	"database/sql"
	"time"
)

// Backend is the storage contract every engine (sqlite, postgres)
// satisfies, covering every operation spec.md §4.A names.
type Backend interface {
	Initialize(ctx context.Context) error
	Close() error
	HealthCheck(ctx context.Context) error

	Begin(ctx context.Context) (Tx, error)

	// Contexts
	SaveContext(ctx context.Context, c *Context) error
	LoadContext(ctx context.Context, conversationID string) (*Context, error)
	DeleteContext(ctx context.Context, conversationID string) error
	ListContexts(ctx context.Context, projectID string) ([]*Context, error)
	AddMessage(ctx context.Context, conversationID string, m Message) error
	GetMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	AddToolCall(ctx context.Context, conversationID string, call ToolCall) error

	// Users and API keys
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByAPIKeyHash(ctx context.Context, hash string) (*User, *APIKey, error)
	CreateAPIKey(ctx context.Context, k *APIKey) error
	RevokeAPIKey(ctx context.Context, id string) error
	ListAPIKeys(ctx context.Context, userID string) ([]*APIKey, error)

	// Audit
	LogAuditEvent(ctx context.Context, e *AuditEvent) error
	GetAuditLogs(ctx context.Context, filter AuditFilter) ([]*AuditEvent, error)

	// Cost
	RecordCost(ctx context.Context, r *CostRecord) error
	GetCosts(ctx context.Context, filter CostFilter) ([]*CostRecord, error)
}

// Tx is a storage-scoped transaction handle; Commit/Rollback behave as
// database/sql's.
type Tx interface {
	Commit() error
	Rollback() error
}

// AuditFilter narrows GetAuditLogs. Zero values mean "unfiltered".
type AuditFilter struct {
	UserID    string
	EventType AuditEventType
	Start     time.Time
	End       time.Time
	Limit     int
}

// CostFilter narrows GetCosts. Zero values mean "unfiltered".
type CostFilter struct {
	ProjectID string
	Start     time.Time
	End       time.Time
}

// sqlTx adapts *sql.Tx to the Tx interface.
type sqlTx struct{ tx *sql.Tx }

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }
