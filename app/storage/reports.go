package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/verist/tg-guard/app/storage/engine"
)

// Reports is a storage for community report triggers, i.e. messages that
// collected enough flag reactions to time the author out.
type Reports struct {
	db   *engine.SQL
	lock engine.RWLocker
}

// ReportRecord represents one triggered community report.
type ReportRecord struct {
	ID        int64     `db:"id"`
	MsgID     int       `db:"msg_id"`
	ChatID    int64     `db:"chat_id"`
	AuthorID  int64     `db:"author_id"`
	Reactors  int       `db:"reactors"`
	Timestamp time.Time `db:"timestamp"`
}

const reportsSchemaSqlite = `CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		msg_id INTEGER,
		chat_id INTEGER,
		author_id INTEGER,
		reactors INTEGER,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

const reportsSchemaPostgres = `CREATE TABLE IF NOT EXISTS reports (
		id SERIAL PRIMARY KEY,
		msg_id INTEGER,
		chat_id BIGINT,
		author_id BIGINT,
		reactors INTEGER,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

// NewReports creates the reports storage and its table.
func NewReports(ctx context.Context, db *engine.SQL) (*Reports, error) {
	if db == nil {
		return nil, fmt.Errorf("db connection is nil")
	}
	schema := reportsSchemaSqlite
	if db.Type() == engine.Postgres {
		schema = reportsSchemaPostgres
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create reports table: %w", err)
	}
	return &Reports{db: db, lock: db.MakeLock()}, nil
}

// Save adds a new report record
func (r *Reports) Save(ctx context.Context, rec ReportRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	query := r.db.Rebind(`INSERT INTO reports (msg_id, chat_id, author_id, reactors, timestamp) VALUES (?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, rec.MsgID, rec.ChatID, rec.AuthorID, rec.Reactors, rec.Timestamp); err != nil {
		return fmt.Errorf("failed to insert report record: %w", err)
	}
	log.Printf("[DEBUG] report record saved, msg_id:%d, author_id:%d", rec.MsgID, rec.AuthorID)
	return nil
}

// Recent returns up to limit most recent report records, newest first.
func (r *Reports) Recent(ctx context.Context, limit int) ([]ReportRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	var recs []ReportRecord
	query := r.db.Rebind(`SELECT id, msg_id, chat_id, author_id, reactors, timestamp FROM reports ORDER BY timestamp DESC, id DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &recs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get report records: %w", err)
	}
	return recs, nil
}
