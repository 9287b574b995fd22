package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

// SQLite is the default local Repository backend. A single shared connection
// avoids writer lock contention under concurrent goroutines.
type SQLite struct {
	db *sql.DB
}

var _ Repository = (*SQLite)(nil)

// NewSQLite creates or opens the ledger database at path.
func NewSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create data directory", goerr.V("path", path))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &SQLite{db: db}
	if err := repo.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLite) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS memories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at INTEGER NOT NULL,
			text TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			user_id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			ts INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_user_ts ON messages(user_id, ts);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return goerr.Wrap(err, "failed to initialize schema", goerr.V("stmt", stmt))
		}
	}
	return nil
}

func (r *SQLite) AppendMemory(ctx context.Context, text string) (*model.MemoryRecord, error) {
	now := time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO memories(created_at, text) VALUES (?, ?)`,
		now.UnixMicro(), text,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert memory record")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get memory record ID")
	}

	return &model.MemoryRecord{ID: id, CreatedAt: now, Text: text}, nil
}

func (r *SQLite) ListMemories(ctx context.Context) ([]*model.MemoryRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, text FROM memories ORDER BY id ASC`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memory records")
	}
	defer rows.Close()

	var records []*model.MemoryRecord
	for rows.Next() {
		var rec model.MemoryRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &createdAt, &rec.Text); err != nil {
			return nil, goerr.Wrap(err, "failed to scan memory record")
		}
		rec.CreatedAt = time.UnixMicro(createdAt).UTC()
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate memory records")
	}

	return records, nil
}

func (r *SQLite) CountMemories(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&count); err != nil {
		return 0, goerr.Wrap(err, "failed to count memory records")
	}
	return count, nil
}

func (r *SQLite) EnsureSession(ctx context.Context, userID model.UserID) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions(user_id, created_at) VALUES (?, ?)`,
		string(userID), time.Now().UTC().UnixMicro(),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to ensure session", goerr.V("user_id", userID))
	}
	return nil
}

func (r *SQLite) AppendChatTurn(ctx context.Context, turn *model.ChatTurn) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages(user_id, role, text, ts) VALUES (?, ?, ?, ?)`,
		string(turn.UserID), string(turn.Role), turn.Text, turn.Timestamp.UTC().UnixMicro(),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to insert chat turn", goerr.V("user_id", turn.UserID))
	}
	return nil
}

func (r *SQLite) ListChatTurns(ctx context.Context, userID model.UserID, limit int) ([]*model.ChatTurn, error) {
	query := `SELECT role, text, ts FROM messages WHERE user_id = ? ORDER BY ts ASC, id ASC`
	args := []any{string(userID)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list chat turns", goerr.V("user_id", userID))
	}
	defer rows.Close()

	var turns []*model.ChatTurn
	for rows.Next() {
		turn := &model.ChatTurn{UserID: userID}
		var ts int64
		if err := rows.Scan(&turn.Role, &turn.Text, &ts); err != nil {
			return nil, goerr.Wrap(err, "failed to scan chat turn")
		}
		turn.Timestamp = time.UnixMicro(ts).UTC()
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate chat turns")
	}

	return turns, nil
}

func (r *SQLite) ClearChatTurns(ctx context.Context, userID model.UserID) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM messages WHERE user_id = ?`, string(userID)); err != nil {
		return goerr.Wrap(err, "failed to clear chat turns", goerr.V("user_id", userID))
	}
	return nil
}

func (r *SQLite) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
