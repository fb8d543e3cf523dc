// Package knowledge provides the per-instance fact store. Each bot instance
// opens its own SQLite database under its isolated storage directory, so two
// instances never share learned facts.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"menagerie/pkg/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS facts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	server_id TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE(server_id, content)
);
CREATE INDEX IF NOT EXISTS idx_facts_server ON facts(server_id);
`

// Fact is one learned statement, scoped to the server it was learned in.
type Fact struct {
	ID        int64     `db:"id" json:"id"`
	ServerID  string    `db:"server_id" json:"server_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Handle is an open per-instance fact database.
type Handle struct {
	db   *sqlx.DB
	path string
}

// Open opens (creating if needed) the fact database at dir/facts.db.
func Open(dir string) (*Handle, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create knowledge directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, "facts.db")
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open fact database %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize fact schema in %s: %w", path, err)
	}

	logging.Debug("Knowledge", "Opened fact database %s", path)
	return &Handle{db: db, path: path}, nil
}

// AddFact stores a fact for a server. Storing the same content twice for the
// same server is a no-op and returns false.
func (h *Handle) AddFact(ctx context.Context, serverID, content string) (bool, error) {
	res, err := h.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO facts (server_id, content, created_at) VALUES (?, ?, ?)`,
		serverID, content, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to add fact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SearchFacts returns up to limit facts for a server whose content contains
// the query substring, newest first. An empty query matches everything.
func (h *Handle) SearchFacts(ctx context.Context, serverID, query string, limit int) ([]Fact, error) {
	if limit <= 0 {
		limit = 25
	}

	var facts []Fact
	err := h.db.SelectContext(ctx, &facts,
		`SELECT id, server_id, content, created_at FROM facts
		 WHERE server_id = ? AND content LIKE ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		serverID, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search facts: %w", err)
	}
	return facts, nil
}

// DeleteServerFacts removes every fact learned in one server.
func (h *Handle) DeleteServerFacts(ctx context.Context, serverID string) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM facts WHERE server_id = ?`, serverID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete facts for server %s: %w", serverID, err)
	}
	return res.RowsAffected()
}

// Count returns the total number of stored facts.
func (h *Handle) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := h.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM facts`); err != nil {
		return 0, fmt.Errorf("failed to count facts: %w", err)
	}
	return n, nil
}

// Path returns the database file location.
func (h *Handle) Path() string {
	return h.path
}

// Close closes the underlying database.
func (h *Handle) Close() error {
	return h.db.Close()
}
