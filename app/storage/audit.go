// Package storage persists moderation outcomes: an audit log of dispatched
// actions and a record of community-report triggers. All stores work with
// sqlite and postgres through the engine package.
package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/verist/tg-guard/app/storage/engine"
)

// AuditLog is a storage for dispatched moderation actions
type AuditLog struct {
	db   *engine.SQL
	lock engine.RWLocker
}

// AuditEntry represents one dispatched action sequence for a message.
type AuditEntry struct {
	ID        int64     `db:"id"`
	MsgID     int       `db:"msg_id"`
	ChatID    int64     `db:"chat_id"`
	UserID    int64     `db:"user_id"`
	UserName  string    `db:"user_name"`
	Text      string    `db:"text"` // sanitized message text
	Verdict   string    `db:"verdict"`
	Reason    string    `db:"reason"`
	TimedOut  bool      `db:"timed_out"`
	Banned    bool      `db:"banned"`
	Timestamp time.Time `db:"timestamp"`
}

const auditSchemaSqlite = `CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		msg_id INTEGER,
		chat_id INTEGER,
		user_id INTEGER,
		user_name TEXT,
		text TEXT,
		verdict TEXT,
		reason TEXT,
		timed_out BOOLEAN DEFAULT 0,
		banned BOOLEAN DEFAULT 0,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

const auditSchemaPostgres = `CREATE TABLE IF NOT EXISTS audit_log (
		id SERIAL PRIMARY KEY,
		msg_id INTEGER,
		chat_id BIGINT,
		user_id BIGINT,
		user_name TEXT,
		text TEXT,
		verdict TEXT,
		reason TEXT,
		timed_out BOOLEAN DEFAULT false,
		banned BOOLEAN DEFAULT false,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

// NewAuditLog creates the audit log storage and its table.
func NewAuditLog(ctx context.Context, db *engine.SQL) (*AuditLog, error) {
	if db == nil {
		return nil, fmt.Errorf("db connection is nil")
	}
	schema := auditSchemaSqlite
	if db.Type() == engine.Postgres {
		schema = auditSchemaPostgres
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create audit_log table: %w", err)
	}
	return &AuditLog{db: db, lock: db.MakeLock()}, nil
}

// Save adds a new audit entry
func (a *AuditLog) Save(ctx context.Context, entry AuditEntry) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	query := a.db.Rebind(`INSERT INTO audit_log (msg_id, chat_id, user_id, user_name, text, verdict, reason, timed_out, banned, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := a.db.ExecContext(ctx, query, entry.MsgID, entry.ChatID, entry.UserID, entry.UserName,
		entry.Text, entry.Verdict, entry.Reason, entry.TimedOut, entry.Banned, entry.Timestamp); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	log.Printf("[DEBUG] audit entry saved, user_id:%d, verdict:%s", entry.UserID, entry.Verdict)
	return nil
}

// Recent returns up to limit most recent audit entries, newest first.
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	a.lock.RLock()
	defer a.lock.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	var entries []AuditEntry
	query := a.db.Rebind(`SELECT id, msg_id, chat_id, user_id, user_name, text, verdict, reason, timed_out, banned, timestamp
		FROM audit_log ORDER BY timestamp DESC, id DESC LIMIT ?`)
	if err := a.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get audit entries: %w", err)
	}
	return entries, nil
}

// CountSince returns the number of entries for a user since the given time.
func (a *AuditLog) CountSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	a.lock.RLock()
	defer a.lock.RUnlock()

	var count int
	query := a.db.Rebind(`SELECT COUNT(*) FROM audit_log WHERE user_id = ? AND timestamp >= ?`)
	if err := a.db.GetContext(ctx, &count, query, userID, since); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}
