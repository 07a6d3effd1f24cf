// Package memkv implements the persistence.Store contract over an
// in-process ordered map (github.com/tidwall/buntdb), for tests and for
// callers that want a local store with no file on disk. buntdb's default
// index already iterates keys in byte-lexicographic string order, which
// is exactly the ordering persistence.Transaction.ScanPrefix/ScanRange
// promise.
package memkv

import (
	"context"
	"fmt"

	"github.com/tidwall/buntdb"

	"github.com/tonimelisma/firedoc/internal/local/persistence"
)

// Store is an in-memory persistence.Store. The zero value is not usable;
// construct with Open.
type Store struct {
	db *buntdb.DB
}

// Open creates an in-memory store. path is ":memory:" for a pure
// in-memory instance, or a file path to persist across restarts (buntdb
// supports both transparently).
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("memkv: open %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Close implements persistence.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunTransaction implements persistence.Store.
func (s *Store) RunTransaction(_ context.Context, _ string, fn func(persistence.Transaction) error) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		return fn(&transaction{tx: tx})
	})
}

type transaction struct {
	tx *buntdb.Tx
}

func (t *transaction) Get(key []byte) ([]byte, bool, error) {
	v, err := t.tx.Get(string(key))
	if err != nil {
		if err == buntdb.ErrNotFound {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("memkv: get: %w", err)
	}

	return []byte(v), true, nil
}

func (t *transaction) Put(key, value []byte) error {
	if _, _, err := t.tx.Set(string(key), string(value), nil); err != nil {
		return fmt.Errorf("memkv: put: %w", err)
	}

	return nil
}

func (t *transaction) Delete(key []byte) error {
	if _, err := t.tx.Delete(string(key)); err != nil && err != buntdb.ErrNotFound {
		return fmt.Errorf("memkv: delete: %w", err)
	}

	return nil
}

func (t *transaction) ScanPrefix(prefix []byte, visit func(key, value []byte) (bool, error)) error {
	var scanErr error

	iterErr := t.tx.AscendGreaterOrEqual("", string(prefix), func(key, value string) bool {
		if len(key) < len(prefix) || key[:len(prefix)] != string(prefix) {
			return false
		}

		keepGoing, err := visit([]byte(key), []byte(value))
		if err != nil {
			scanErr = err
			return false
		}

		return keepGoing
	})
	if scanErr != nil {
		return scanErr
	}

	if iterErr != nil {
		return fmt.Errorf("memkv: scan prefix: %w", iterErr)
	}

	return nil
}

func (t *transaction) ScanRange(start, end []byte, visit func(key, value []byte) (bool, error)) error {
	var scanErr error

	iterate := func(key, value string) bool {
		if end != nil && key >= string(end) {
			return false
		}

		keepGoing, err := visit([]byte(key), []byte(value))
		if err != nil {
			scanErr = err
			return false
		}

		return keepGoing
	}

	var iterErr error
	if end == nil {
		iterErr = t.tx.AscendGreaterOrEqual("", string(start), iterate)
	} else {
		iterErr = t.tx.AscendRange("", string(start), string(end), iterate)
	}

	if scanErr != nil {
		return scanErr
	}

	if iterErr != nil {
		return fmt.Errorf("memkv: scan range: %w", iterErr)
	}

	return nil
}
