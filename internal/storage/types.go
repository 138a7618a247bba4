// Package storage implements the gateway's storage backend (spec.md
// §4.A): conversation contexts, messages, users, API keys, audit logs
// and cost records, against either an embedded sqlite database or a
// pooled postgres database.
package storage

import "time"

// Role is a message's author in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn in a conversation.
type Message struct {
	Role      Role      `db:"role" json:"role"`
	Content   string    `db:"content" json:"content"`
	Timestamp time.Time `db:"created_at" json:"timestamp"`
}

// ToolCall records that a tool was invoked while servicing a turn.
type ToolCall struct {
	Tool      string    `db:"tool" json:"tool"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Context is a conversation's full state: its messages, optional
// codebase context, and tool-call log. UpdatedAt only ever moves
// forward.
type Context struct {
	ConversationID  string     `db:"conversation_id" json:"conversation_id"`
	ProjectID       string     `db:"project_id" json:"project_id,omitempty"`
	Messages        []Message  `json:"messages"`
	CodebaseContext string     `db:"codebase_context" json:"codebase_context,omitempty"`
	ToolCalls       []ToolCall `json:"tool_calls,omitempty"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// UserRole is the closed RBAC role enum (spec.md §4.D).
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleStandard UserRole = "user"
	RoleReadonly UserRole = "readonly"
)

// User is an authenticated account.
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// APIKey is a hashed, revocable credential belonging to a user. The raw
// key is returned to the caller exactly once, at creation time, and
// never stored.
type APIKey struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	KeyHash   string     `db:"key_hash" json:"-"`
	Name      string     `db:"name" json:"name,omitempty"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// Revoked reports whether the key has been explicitly revoked.
func (k *APIKey) Revoked() bool { return k.RevokedAt != nil }

// Expired reports whether the key has passed its expiry, if any.
func (k *APIKey) Expired(at time.Time) bool {
	return k.ExpiresAt != nil && at.After(*k.ExpiresAt)
}

// AuditEventType is the closed audit-event vocabulary (spec.md §3).
type AuditEventType string

const (
	EventAuthSuccess       AuditEventType = "auth.success"
	EventAuthFailure       AuditEventType = "auth.failure"
	EventAuthLogout        AuditEventType = "auth.logout"
	EventPermissionDenied  AuditEventType = "permission.denied"
	EventResourceAccess    AuditEventType = "resource.access"
	EventResourceCreate    AuditEventType = "resource.create"
	EventResourceUpdate    AuditEventType = "resource.update"
	EventResourceDelete    AuditEventType = "resource.delete"
	EventConfigChange      AuditEventType = "config.change"
	EventAdminAction       AuditEventType = "admin.action"
)

// AuditEvent is one row in audit_logs.
type AuditEvent struct {
	ID         string                 `db:"id" json:"id"`
	EventType  AuditEventType         `db:"event_type" json:"event_type"`
	UserID     string                 `db:"user_id" json:"user_id,omitempty"`
	Resource   string                 `db:"resource" json:"resource,omitempty"`
	ResourceID string                 `db:"resource_id" json:"resource_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	CreatedAt  time.Time              `db:"created_at" json:"created_at"`
}

// CostRecord is one tool invocation's cost accounting entry. USDMicros
// is a 6-decimal fixed-point USD amount (1 USD == 1_000_000 micros),
// avoiding float rounding drift across many small accumulations.
type CostRecord struct {
	ID             string    `db:"id" json:"id"`
	Tool           string    `db:"tool" json:"tool"`
	Model          string    `db:"model" json:"model"`
	InputTokens    int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens   int       `db:"output_tokens" json:"output_tokens"`
	USDMicros      int64     `db:"usd_micros" json:"usd_micros"`
	ConversationID string    `db:"conversation_id" json:"conversation_id,omitempty"`
	ProjectID      string    `db:"project_id" json:"project_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// USD returns the record's cost as a floating-point dollar amount for
// display purposes only; accounting stays in USDMicros.
func (c *CostRecord) USD() float64 { return float64(c.USDMicros) / 1_000_000 }
