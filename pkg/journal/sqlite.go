package journal

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/jllopis/dci/pkg/errors"
)

// SQLiteStore persists journal entries in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite journal at dsn.
// Use ":memory:" for a process-local database.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if dsn == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore creates a SQLite-backed journal and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New(errors.CodeInvalidInput, "journal: db is nil", nil)
	}
	if err := ensureJournalSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record stores a single entry.
func (s *SQLiteStore) Record(ctx context.Context, entry Entry) error {
	participants, err := encodeParticipants(entry.ParticipantIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interaction_journal (
			id, interaction_id, usecase, method, initiator, participants_json,
			status, error_code, error_category, error_text, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.InteractionID,
		entry.UseCase,
		entry.Method,
		entry.Initiator,
		participants,
		entry.Status,
		entry.ErrorCode,
		entry.ErrorCategory,
		entry.Error,
		normalizeTime(entry.StartedAt),
		normalizeTime(entry.FinishedAt),
	)
	return err
}

// List returns entries matching the filter in recording order.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, interaction_id, usecase, method, initiator, participants_json,
			status, error_code, error_category, error_text, started_at, finished_at
		FROM interaction_journal
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.UseCase != "" {
		addFilter("usecase = ?", filter.UseCase)
	}
	if filter.InteractionID != "" {
		addFilter("interaction_id = ?", filter.InteractionID)
	}
	if filter.Status != "" {
		addFilter("status = ?", filter.Status)
	}
	query += where + " ORDER BY seq ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry        Entry
			participants string
			started      sql.NullTime
			finished     sql.NullTime
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.InteractionID,
			&entry.UseCase,
			&entry.Method,
			&entry.Initiator,
			&participants,
			&entry.Status,
			&entry.ErrorCode,
			&entry.ErrorCategory,
			&entry.Error,
			&started,
			&finished,
		); err != nil {
			return nil, err
		}
		ids, err := decodeParticipants(participants)
		if err != nil {
			return nil, err
		}
		entry.ParticipantIDs = ids
		if started.Valid {
			entry.StartedAt = started.Time
		}
		if finished.Valid {
			entry.FinishedAt = finished.Time
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func ensureJournalSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS interaction_journal (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			interaction_id TEXT NOT NULL,
			usecase TEXT NOT NULL,
			method TEXT NOT NULL,
			initiator TEXT NOT NULL DEFAULT '',
			participants_json TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL,
			error_code TEXT NOT NULL DEFAULT '',
			error_category TEXT NOT NULL DEFAULT '',
			error_text TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_interaction_journal_usecase ON interaction_journal(usecase);
		CREATE INDEX IF NOT EXISTS idx_interaction_journal_status ON interaction_journal(status);
	`)
	return err
}
