package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// NewSQLiteStore opens (or creates) the journal database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=60000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS transfers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		op TEXT NOT NULL,
		key TEXT NOT NULL,
		local_path TEXT NOT NULL,
		size INTEGER NOT NULL,
		status TEXT NOT NULL,
		error_kind TEXT,
		last_error TEXT,
		duration_ms INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_batch ON transfers(batch_id);
	CREATE INDEX IF NOT EXISTS idx_transfers_status ON transfers(status);
	`

	_, err := s.db.Exec(query)
	return err
}

// SaveRecord appends one transfer outcome.
func (s *SQLiteStore) SaveRecord(record *Record) error {
	// Serialize writes to avoid SQLITE_BUSY from concurrent writers.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Stamp a copy; the caller's record is never mutated.
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return s.retryOnBusy(func() error {
		query := `
		INSERT INTO transfers
		(batch_id, op, key, local_path, size, status, error_kind, last_error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := s.db.Exec(query,
			record.BatchID,
			record.Op,
			record.Key,
			record.LocalPath,
			record.Size,
			record.Status,
			record.ErrorKind,
			record.LastError,
			record.Duration.Milliseconds(),
			createdAt,
		)
		return err
	})
}

// ListFailed returns the failed transfers of a batch, oldest first.
func (s *SQLiteStore) ListFailed(batchID string) ([]*Record, error) {
	query := `
	SELECT batch_id, op, key, local_path, size, status, error_kind, last_error, duration_ms, created_at
	FROM transfers WHERE batch_id = ? AND status = ?
	ORDER BY id ASC
	`

	rows, err := s.db.Query(query, batchID, StatusFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var record Record
		var errorKind, lastError sql.NullString
		var durationMs int64

		err := rows.Scan(
			&record.BatchID,
			&record.Op,
			&record.Key,
			&record.LocalPath,
			&record.Size,
			&record.Status,
			&errorKind,
			&lastError,
			&durationMs,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if errorKind.Valid {
			record.ErrorKind = errorKind.String
		}
		if lastError.Valid {
			record.LastError = lastError.String
		}
		record.Duration = time.Duration(durationMs) * time.Millisecond

		records = append(records, &record)
	}

	return records, rows.Err()
}

// retryOnBusy retries the operation while SQLite reports contention.
func (s *SQLiteStore) retryOnBusy(operation func() error) error {
	const maxRetries = 10
	baseDelay := 50 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = operation()
		if err == nil {
			return nil
		}
		if !isSQLiteBusyError(err) {
			return err
		}
		time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
	}

	return err
}

func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
