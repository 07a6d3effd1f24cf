// Package sqlitekv implements the persistence.Store contract over an
// embedded SQLite database, storing every logical key space as rows in a
// single (key, value) table ordered by key's native BLOB collation —
// which is byte-lexicographic, matching what persistence.Transaction's
// scans promise.
package sqlitekv

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers as "sqlite"

	"github.com/tonimelisma/firedoc/internal/local/persistence"
)

const walJournalSizeLimit = 67108864 // 64 MiB WAL journal size limit

// Store is a SQLite-backed persistence.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if absent) the database at path, applies pending
// migrations, and configures WAL mode. Use ":memory:" for tests.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opening local store database", "path", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: open %s: %w", path, err)
	}

	if err := setPragmas(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("sqlitekv: set pragma %s: %w", p.desc, err)
		}

		logger.Debug("pragma set", "pragma", p.desc)
	}

	return nil
}

// Close implements persistence.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunTransaction implements persistence.Store.
func (s *Store) RunTransaction(ctx context.Context, label string, fn func(persistence.Transaction) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitekv: begin %s: %w", label, err)
	}

	if err := fn(&transaction{ctx: ctx, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "label", label, "error", rbErr)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitekv: commit %s: %w", label, err)
	}

	return nil
}

type transaction struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *transaction) Get(key []byte) ([]byte, bool, error) {
	var value []byte

	err := t.tx.QueryRowContext(t.ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("sqlitekv: get: %w", err)
	}

	return value, true, nil
}

func (t *transaction) Put(key, value []byte) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("sqlitekv: put: %w", err)
	}

	return nil
}

func (t *transaction) Delete(key []byte) error {
	if _, err := t.tx.ExecContext(t.ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("sqlitekv: delete: %w", err)
	}

	return nil
}

func (t *transaction) ScanPrefix(prefix []byte, visit func(key, value []byte) (bool, error)) error {
	upper := prefixUpperBound(prefix)
	if upper == nil {
		return t.scan("SELECT key, value FROM kv WHERE key >= ? ORDER BY key", prefix, nil, visit)
	}

	return t.scan("SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key", prefix, upper, visit)
}

func (t *transaction) ScanRange(start, end []byte, visit func(key, value []byte) (bool, error)) error {
	if end == nil {
		return t.scan("SELECT key, value FROM kv WHERE key >= ? ORDER BY key", start, nil, visit)
	}

	return t.scan("SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key", start, end, visit)
}

func (t *transaction) scan(query string, start, end []byte, visit func(key, value []byte) (bool, error)) error {
	var (
		rows *sql.Rows
		err  error
	)

	if end == nil {
		rows, err = t.tx.QueryContext(t.ctx, query, start)
	} else {
		rows, err = t.tx.QueryContext(t.ctx, query, start, end)
	}

	if err != nil {
		return fmt.Errorf("sqlitekv: scan: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("sqlitekv: scan row: %w", err)
		}

		keepGoing, visitErr := visit(key, value)
		if visitErr != nil {
			return visitErr
		}

		if !keepGoing {
			break
		}
	}

	return rows.Err()
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix, for an exclusive upper bound in a range scan. A
// prefix of all 0xFF bytes (or empty) has no finite upper bound; nil
// means unbounded in that case.
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}

	return nil
}
