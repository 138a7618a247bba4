package migrations

// Builtin returns the gateway's dense 1..N schema migration set (spec.md
// §3/§4.A). Every statement uses types and id generation portable across
// both supported storage engines (embedded sqlite and pooled postgres):
// TEXT primary keys populated by the caller (google/uuid), TEXT
// timestamps in RFC3339Nano, and INTEGER 0/1 in place of a native
// boolean column type.
func Builtin() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_users",
			Up: `CREATE TABLE users (
				id TEXT PRIMARY KEY,
				username TEXT NOT NULL UNIQUE,
				email TEXT,
				password_hash TEXT,
				role TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			Down: `DROP TABLE users`,
		},
		{
			Version: 2,
			Name:    "create_api_keys",
			Up: `CREATE TABLE api_keys (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				key_hash TEXT NOT NULL UNIQUE,
				name TEXT,
				expires_at TEXT,
				created_at TEXT NOT NULL,
				revoked_at TEXT
			)`,
			Down: `DROP TABLE api_keys`,
		},
		{
			Version: 3,
			Name:    "create_api_keys_indexes",
			Up: `CREATE INDEX idx_api_keys_user_id ON api_keys (user_id);
CREATE INDEX idx_api_keys_key_hash ON api_keys (key_hash)`,
			Down: `DROP INDEX idx_api_keys_user_id;
DROP INDEX idx_api_keys_key_hash`,
		},
		{
			Version: 4,
			Name:    "create_contexts",
			Up: `CREATE TABLE contexts (
				conversation_id TEXT PRIMARY KEY,
				project_id TEXT,
				codebase_context TEXT,
				updated_at TEXT NOT NULL
			)`,
			Down: `DROP TABLE contexts`,
		},
		{
			Version: 5,
			Name:    "create_messages",
			Up: `CREATE TABLE messages (
				id TEXT PRIMARY KEY,
				conversation_id TEXT NOT NULL,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				seq INTEGER NOT NULL,
				created_at TEXT NOT NULL
			);
CREATE INDEX idx_messages_conversation_id ON messages (conversation_id, seq)`,
			Down: `DROP TABLE messages`,
		},
		{
			Version: 6,
			Name:    "create_tool_calls",
			Up: `CREATE TABLE tool_calls (
				id TEXT PRIMARY KEY,
				conversation_id TEXT NOT NULL,
				tool TEXT NOT NULL,
				created_at TEXT NOT NULL
			);
CREATE INDEX idx_tool_calls_conversation_id ON tool_calls (conversation_id)`,
			Down: `DROP TABLE tool_calls`,
		},
		{
			Version: 7,
			Name:    "create_audit_logs",
			Up: `CREATE TABLE audit_logs (
				id TEXT PRIMARY KEY,
				event_type TEXT NOT NULL,
				user_id TEXT,
				resource TEXT,
				resource_id TEXT,
				details TEXT,
				created_at TEXT NOT NULL
			);
CREATE INDEX idx_audit_logs_event_type ON audit_logs (event_type);
CREATE INDEX idx_audit_logs_user_id ON audit_logs (user_id);
CREATE INDEX idx_audit_logs_created_at ON audit_logs (created_at)`,
			Down: `DROP TABLE audit_logs`,
		},
		{
			Version: 8,
			Name:    "create_cost_records",
			Up: `CREATE TABLE cost_records (
				id TEXT PRIMARY KEY,
				tool TEXT NOT NULL,
				model TEXT NOT NULL,
				input_tokens INTEGER NOT NULL,
				output_tokens INTEGER NOT NULL,
				usd_micros INTEGER NOT NULL,
				conversation_id TEXT,
				project_id TEXT,
				created_at TEXT NOT NULL
			);
CREATE INDEX idx_cost_records_created_at ON cost_records (created_at);
CREATE INDEX idx_cost_records_project_id ON cost_records (project_id)`,
			Down: `DROP TABLE cost_records`,
		},
	}
}
