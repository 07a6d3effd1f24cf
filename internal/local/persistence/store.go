// Package persistence defines the transactional key-value contract the
// local package depends on (spec §6, "Consumed (from persistence)"): byte
// lexicographic range scans, put/delete, and begin/commit/rollback. The
// core never sees SQL or a specific storage engine; it only depends on
// iteration order and transactional semantics, so two interchangeable
// backends (sqlitekv, memkv) can satisfy it.
package persistence

import "context"

// Store opens transactions against a byte-keyed store. Implementations
// provide durable (sqlitekv) or in-memory (memkv) byte stores.
type Store interface {
	// RunTransaction opens one transaction, invokes fn with it, and
	// commits on a nil return or rolls back otherwise. Every public
	// LocalStore operation runs inside exactly one such transaction
	// (spec §5 Suspension).
	RunTransaction(ctx context.Context, label string, fn func(Transaction) error) error

	// Close releases the underlying byte store.
	Close() error
}

// Transaction is the read/write surface available inside RunTransaction.
// All four logical key spaces spec §6 names (remote documents, mutation
// queue, overlays, target metadata) are encoded as ordinary keys within
// one flat byte-lexicographic keyspace; callers choose key prefixes so
// each space's secondary orderings fall out of plain range scans.
type Transaction interface {
	// Get returns the stored value and true, or nil and false if key is
	// absent.
	Get(key []byte) ([]byte, bool, error)

	// Put inserts or replaces the value at key.
	Put(key, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key []byte) error

	// ScanPrefix visits every key with the given prefix in ascending
	// byte-lexicographic order, stopping early if visit returns false.
	ScanPrefix(prefix []byte, visit func(key, value []byte) (keepGoing bool, err error)) error

	// ScanRange visits every key k with start <= k < end in ascending
	// byte-lexicographic order, stopping early if visit returns false.
	// A nil end means unbounded.
	ScanRange(start, end []byte, visit func(key, value []byte) (keepGoing bool, err error)) error
}
