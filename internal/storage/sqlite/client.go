package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/kbmirror/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// ErrNotFound is returned by the scoped finders when no row matches.
var ErrNotFound = errors.New("record not found")

// IsUniqueViolation reports whether err is a UNIQUE constraint failure.
// Callers treat a violation on insert as "a concurrent sync created the row
// first" and fall back to re-fetch and update.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS instances (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		base_url TEXT NOT NULL,
		api_key TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		healthy INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY,
		instance_id TEXT NOT NULL,
		remote_id TEXT,
		name TEXT NOT NULL,
		description TEXT,
		chunk_method TEXT,
		parser_config TEXT,
		embedding_model TEXT,
		language TEXT,
		document_count INTEGER DEFAULT 0,
		chunk_count INTEGER DEFAULT 0,
		last_sync_time INTEGER,
		remote_create_time INTEGER,
		remote_update_time INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (instance_id) REFERENCES instances(id) ON DELETE CASCADE,
		UNIQUE (instance_id, remote_id)
	);
	CREATE INDEX IF NOT EXISTS idx_datasets_instance ON datasets(instance_id);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		dataset_id TEXT NOT NULL,
		remote_id TEXT,
		name TEXT NOT NULL,
		filename TEXT,
		file_path TEXT,
		type TEXT,
		size INTEGER DEFAULT 0,
		language TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		progress REAL DEFAULT 0,
		progress_msg TEXT,
		chunk_count INTEGER DEFAULT 0,
		last_sync_time INTEGER,
		remote_create_time INTEGER,
		remote_update_time INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (dataset_id) REFERENCES datasets(id) ON DELETE CASCADE,
		UNIQUE (dataset_id, remote_id)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_dataset ON documents(dataset_id);
	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		remote_id TEXT,
		content TEXT,
		position INTEGER DEFAULT 0,
		page_number INTEGER DEFAULT 0,
		span_start INTEGER DEFAULT 0,
		span_end INTEGER DEFAULT 0,
		token_count INTEGER DEFAULT 0,
		similarity REAL DEFAULT 0,
		embedding TEXT,
		keywords TEXT,
		metadata TEXT,
		last_sync_time INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
		UNIQUE (document_id, remote_id)
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

	CREATE TABLE IF NOT EXISTS chat_assistants (
		id TEXT PRIMARY KEY,
		instance_id TEXT NOT NULL,
		remote_id TEXT,
		name TEXT NOT NULL,
		description TEXT,
		avatar TEXT,
		language TEXT,
		model_name TEXT,
		temperature REAL DEFAULT 0,
		top_p REAL DEFAULT 0,
		presence_penalty REAL DEFAULT 0,
		frequency_penalty REAL DEFAULT 0,
		max_tokens INTEGER DEFAULT 0,
		similarity_threshold REAL DEFAULT 0,
		keyword_weight REAL DEFAULT 0,
		top_n INTEGER DEFAULT 0,
		top_k INTEGER DEFAULT 0,
		prompt TEXT,
		empty_response TEXT,
		opening_greeting TEXT,
		dataset_remote_ids TEXT,
		last_sync_time INTEGER,
		remote_create_time INTEGER,
		remote_update_time INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (instance_id) REFERENCES instances(id) ON DELETE CASCADE,
		UNIQUE (instance_id, remote_id)
	);
	CREATE INDEX IF NOT EXISTS idx_assistants_instance ON chat_assistants(instance_id);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		instance_id TEXT NOT NULL,
		assistant_id TEXT,
		remote_id TEXT,
		title TEXT,
		status TEXT,
		message_count INTEGER DEFAULT 0,
		dialog TEXT,
		usage TEXT,
		last_activity_time INTEGER,
		last_sync_time INTEGER,
		remote_create_time INTEGER,
		remote_update_time INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (instance_id) REFERENCES instances(id) ON DELETE CASCADE,
		UNIQUE (instance_id, remote_id)
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_instance ON conversations(instance_id);

	CREATE TABLE IF NOT EXISTS llm_models (
		id TEXT PRIMARY KEY,
		instance_id TEXT NOT NULL,
		fid TEXT NOT NULL,
		name TEXT,
		provider TEXT,
		model_type TEXT,
		available INTEGER DEFAULT 0,
		max_tokens INTEGER DEFAULT 0,
		status_code INTEGER DEFAULT 0,
		supports_tools INTEGER DEFAULT 0,
		tags TEXT,
		last_sync_time INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (instance_id) REFERENCES instances(id) ON DELETE CASCADE,
		UNIQUE (instance_id, fid)
	);
	CREATE INDEX IF NOT EXISTS idx_llm_models_instance ON llm_models(instance_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}
