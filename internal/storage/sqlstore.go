package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/relaygate/gateway/internal/migrations"
)

// sqlStore is the engine-agnostic Backend implementation shared by the
// sqlite and postgres constructors: the schema (internal/migrations) and
// every query are written portably, so the two engines differ only in
// their driver name and DSN handling.
type sqlStore struct {
	db *sqlx.DB
}

func newSQLStore(db *sqlx.DB) *sqlStore {
	return &sqlStore{db: db}
}

func (s *sqlStore) Initialize(ctx context.Context) error {
	runner, err := migrations.NewRunner(s.db, migrations.Builtin())
	if err != nil {
		return fmt.Errorf("storage: invalid migration set: %w", err)
	}
	if _, err := runner.MigrateUp(ctx, nil, false); err != nil {
		return fmt.Errorf("storage: apply migrations: %w", err)
	}
	return nil
}

func (s *sqlStore) Close() error { return s.db.Close() }

func (s *sqlStore) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

func (s *sqlStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

func (s *sqlStore) rebind(query string) string { return s.db.Rebind(query) }

// --- Contexts ---------------------------------------------------------

func (s *sqlStore) SaveContext(ctx context.Context, c *Context) error {
	now := time.Now().UTC()
	if c.UpdatedAt.IsZero() || now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}

	query := s.rebind(`INSERT INTO contexts (conversation_id, project_id, codebase_context, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (conversation_id) DO UPDATE SET
			project_id = excluded.project_id,
			codebase_context = excluded.codebase_context,
			updated_at = excluded.updated_at`)
	_, err := s.db.ExecContext(ctx, query, c.ConversationID, nullIfEmpty(c.ProjectID), nullIfEmpty(c.CodebaseContext), c.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

func (s *sqlStore) LoadContext(ctx context.Context, conversationID string) (*Context, error) {
	query := s.rebind(`SELECT conversation_id, project_id, codebase_context, updated_at FROM contexts WHERE conversation_id = ?`)
	row := s.db.QueryRowxContext(ctx, query, conversationID)

	var (
		projectID, codebaseContext sql.NullString
		updatedAtStr               string
	)
	var c Context
	if err := row.Scan(&c.ConversationID, &projectID, &codebaseContext, &updatedAtStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	c.ProjectID = projectID.String
	c.CodebaseContext = codebaseContext.String
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAtStr)

	messages, err := s.GetMessages(ctx, conversationID, 0)
	if err != nil {
		return nil, err
	}
	c.Messages = messages

	calls, err := s.getToolCalls(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	c.ToolCalls = calls

	return &c, nil
}

func (s *sqlStore) DeleteContext(ctx context.Context, conversationID string) error {
	for _, table := range []string{"messages", "tool_calls", "contexts"} {
		query := s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE conversation_id = ?`, table))
		if _, err := s.db.ExecContext(ctx, query, conversationID); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStore) ListContexts(ctx context.Context, projectID string) ([]*Context, error) {
	var (
		rows *sqlx.Rows
		err  error
	)
	if projectID == "" {
		rows, err = s.db.QueryxContext(ctx, `SELECT conversation_id FROM contexts ORDER BY updated_at DESC`)
	} else {
		query := s.rebind(`SELECT conversation_id FROM contexts WHERE project_id = ? ORDER BY updated_at DESC`)
		rows, err = s.db.QueryxContext(ctx, query, projectID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*Context, 0, len(ids))
	for _, id := range ids {
		c, err := s.LoadContext(ctx, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *sqlStore) AddMessage(ctx context.Context, conversationID string, m Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	seqQuery := s.rebind(`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?`)
	var seq int
	if err := s.db.QueryRowxContext(ctx, seqQuery, conversationID).Scan(&seq); err != nil {
		return err
	}

	insertQuery := s.rebind(`INSERT INTO messages (id, conversation_id, role, content, seq, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, insertQuery, uuid.NewString(), conversationID, string(m.Role), m.Content, seq, m.Timestamp.Format(time.RFC3339Nano))
	return err
}

func (s *sqlStore) GetMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	var (
		rows *sqlx.Rows
		err  error
	)
	if limit > 0 {
		query := s.rebind(`SELECT role, content, created_at FROM (
			SELECT role, content, created_at, seq FROM messages WHERE conversation_id = ? ORDER BY seq DESC LIMIT ?
		) AS recent ORDER BY seq ASC`)
		rows, err = s.db.QueryxContext(ctx, query, conversationID, limit)
	} else {
		query := s.rebind(`SELECT role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY seq ASC`)
		rows, err = s.db.QueryxContext(ctx, query, conversationID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var role, content, createdAtStr string
		if err := rows.Scan(&role, &content, &createdAtStr); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, createdAtStr)
		messages = append(messages, Message{Role: Role(role), Content: content, Timestamp: ts})
	}
	return messages, rows.Err()
}

func (s *sqlStore) AddToolCall(ctx context.Context, conversationID string, call ToolCall) error {
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}
	query := s.rebind(`INSERT INTO tool_calls (id, conversation_id, tool, created_at) VALUES (?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, uuid.NewString(), conversationID, call.Tool, call.CreatedAt.Format(time.RFC3339Nano))
	return err
}

func (s *sqlStore) getToolCalls(ctx context.Context, conversationID string) ([]ToolCall, error) {
	query := s.rebind(`SELECT tool, created_at FROM tool_calls WHERE conversation_id = ? ORDER BY created_at ASC`)
	rows, err := s.db.QueryxContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []ToolCall
	for rows.Next() {
		var tool, createdAtStr string
		if err := rows.Scan(&tool, &createdAtStr); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, createdAtStr)
		calls = append(calls, ToolCall{Tool: tool, CreatedAt: ts})
	}
	return calls, rows.Err()
}

// --- Users and API keys -------------------------------------------------

func (s *sqlStore) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	query := s.rebind(`INSERT INTO users (id, username, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, u.ID, u.Username, nullIfEmpty(u.Email), nullIfEmpty(u.PasswordHash), string(u.Role), u.CreatedAt.Format(time.RFC3339Nano))
	return err
}

func (s *sqlStore) scanUser(row *sqlx.Row) (*User, error) {
	var (
		u                         User
		email, passwordHash       sql.NullString
		roleStr, createdAtStr     string
	)
	if err := row.Scan(&u.ID, &u.Username, &email, &passwordHash, &roleStr, &createdAtStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.Email = email.String
	u.PasswordHash = passwordHash.String
	u.Role = UserRole(roleStr)
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	return &u, nil
}

func (s *sqlStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	query := s.rebind(`SELECT id, username, email, password_hash, role, created_at FROM users WHERE id = ?`)
	return s.scanUser(s.db.QueryRowxContext(ctx, query, id))
}

func (s *sqlStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := s.rebind(`SELECT id, username, email, password_hash, role, created_at FROM users WHERE username = ?`)
	return s.scanUser(s.db.QueryRowxContext(ctx, query, username))
}

func (s *sqlStore) GetUserByAPIKeyHash(ctx context.Context, hash string) (*User, *APIKey, error) {
	query := s.rebind(`SELECT id, user_id, key_hash, name, expires_at, created_at, revoked_at
		FROM api_keys WHERE key_hash = ?`)
	row := s.db.QueryRowxContext(ctx, query, hash)

	var (
		k                                   APIKey
		name, expiresAtStr, revokedAtStr    sql.NullString
		createdAtStr                        string
	)
	if err := row.Scan(&k.ID, &k.UserID, &k.KeyHash, &name, &expiresAtStr, &createdAtStr, &revokedAtStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	k.Name = name.String
	k.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	if expiresAtStr.Valid {
		t, _ := time.Parse(time.RFC3339Nano, expiresAtStr.String)
		k.ExpiresAt = &t
	}
	if revokedAtStr.Valid {
		t, _ := time.Parse(time.RFC3339Nano, revokedAtStr.String)
		k.RevokedAt = &t
	}

	u, err := s.GetUserByID(ctx, k.UserID)
	if err != nil {
		return nil, nil, err
	}
	return u, &k, nil
}

func (s *sqlStore) CreateAPIKey(ctx context.Context, k *APIKey) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}
	var expiresAt, revokedAt interface{}
	if k.ExpiresAt != nil {
		expiresAt = k.ExpiresAt.Format(time.RFC3339Nano)
	}
	if k.RevokedAt != nil {
		revokedAt = k.RevokedAt.Format(time.RFC3339Nano)
	}
	query := s.rebind(`INSERT INTO api_keys (id, user_id, key_hash, name, expires_at, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, k.ID, k.UserID, k.KeyHash, nullIfEmpty(k.Name), expiresAt, k.CreatedAt.Format(time.RFC3339Nano), revokedAt)
	return err
}

func (s *sqlStore) RevokeAPIKey(ctx context.Context, id string) error {
	query := s.rebind(`UPDATE api_keys SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`)
	_, err := s.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339Nano), id)
	return err
}

func (s *sqlStore) ListAPIKeys(ctx context.Context, userID string) ([]*APIKey, error) {
	query := s.rebind(`SELECT id, user_id, key_hash, name, expires_at, created_at, revoked_at
		FROM api_keys WHERE user_id = ? ORDER BY created_at DESC`)
	rows, err := s.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		var (
			k                                   APIKey
			name, expiresAtStr, revokedAtStr    sql.NullString
			createdAtStr                        string
		)
		if err := rows.Scan(&k.ID, &k.UserID, &k.KeyHash, &name, &expiresAtStr, &createdAtStr, &revokedAtStr); err != nil {
			return nil, err
		}
		k.Name = name.String
		k.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		if expiresAtStr.Valid {
			t, _ := time.Parse(time.RFC3339Nano, expiresAtStr.String)
			k.ExpiresAt = &t
		}
		if revokedAtStr.Valid {
			t, _ := time.Parse(time.RFC3339Nano, revokedAtStr.String)
			k.RevokedAt = &t
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// --- Audit ---------------------------------------------------------------

func (s *sqlStore) LogAuditEvent(ctx context.Context, e *AuditEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	var detailsJSON sql.NullString
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		detailsJSON = sql.NullString{String: string(b), Valid: true}
	}
	query := s.rebind(`INSERT INTO audit_logs (id, event_type, user_id, resource, resource_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, e.ID, string(e.EventType), nullIfEmpty(e.UserID), nullIfEmpty(e.Resource), nullIfEmpty(e.ResourceID), detailsJSON, e.CreatedAt.Format(time.RFC3339Nano))
	return err
}

func (s *sqlStore) GetAuditLogs(ctx context.Context, filter AuditFilter) ([]*AuditEvent, error) {
	query := `SELECT id, event_type, user_id, resource, resource_id, details, created_at FROM audit_logs WHERE 1=1`
	var args []interface{}
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.EventType != "" {
		query += ` AND event_type = ?`
		args = append(args, string(filter.EventType))
	}
	if !filter.Start.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Start.UTC().Format(time.RFC3339Nano))
	}
	if !filter.End.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, filter.End.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.db.QueryxContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		var (
			e                                          AuditEvent
			userID, resource, resourceID, detailsJSON  sql.NullString
			eventType, createdAtStr                    string
		)
		if err := rows.Scan(&e.ID, &eventType, &userID, &resource, &resourceID, &detailsJSON, &createdAtStr); err != nil {
			return nil, err
		}
		e.EventType = AuditEventType(eventType)
		e.UserID = userID.String
		e.Resource = resource.String
		e.ResourceID = resourceID.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		if detailsJSON.Valid {
			_ = json.Unmarshal([]byte(detailsJSON.String), &e.Details)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// --- Cost ------------------------------------------------------------

func (s *sqlStore) RecordCost(ctx context.Context, r *CostRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	query := s.rebind(`INSERT INTO cost_records (id, tool, model, input_tokens, output_tokens, usd_micros, conversation_id, project_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, r.ID, r.Tool, r.Model, r.InputTokens, r.OutputTokens, r.USDMicros, nullIfEmpty(r.ConversationID), nullIfEmpty(r.ProjectID), r.CreatedAt.Format(time.RFC3339Nano))
	return err
}

func (s *sqlStore) GetCosts(ctx context.Context, filter CostFilter) ([]*CostRecord, error) {
	query := `SELECT id, tool, model, input_tokens, output_tokens, usd_micros, conversation_id, project_id, created_at FROM cost_records WHERE 1=1`
	var args []interface{}
	if filter.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if !filter.Start.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Start.UTC().Format(time.RFC3339Nano))
	}
	if !filter.End.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, filter.End.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryxContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*CostRecord
	for rows.Next() {
		var (
			r                             CostRecord
			conversationID, projectID     sql.NullString
			createdAtStr                  string
		)
		if err := rows.Scan(&r.ID, &r.Tool, &r.Model, &r.InputTokens, &r.OutputTokens, &r.USDMicros, &conversationID, &projectID, &createdAtStr); err != nil {
			return nil, err
		}
		r.ConversationID = conversationID.String
		r.ProjectID = projectID.String
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		records = append(records, &r)
	}
	return records, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
