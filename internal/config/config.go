// Package config loads and validates the TOML configuration firedoc uses to
// parameterize garbage collection, indexing, persistence backend selection,
// and logging.
package config

// StoreConfig is the top-level configuration for a local store instance. It
// mirrors the four sections a deployment actually needs to tune: how
// aggressively to garbage-collect orphaned documents, how indexes are
// backfilled, which persistence backend to open, and how to log.
type StoreConfig struct {
	GC          GCConfig          `toml:"gc"`
	Index       IndexConfig       `toml:"index"`
	Persistence PersistenceConfig `toml:"persistence"`
	Logging     LoggingConfig     `toml:"logging"`
}

// GCConfig controls LocalStore's reference-counting garbage collector.
type GCConfig struct {
	// Policy selects "eager" (reclaim the instant a document is orphaned)
	// or "lru" (defer reclamation to an explicit CollectGarbage pass).
	Policy string `toml:"policy"`
	// TargetCacheBytes is the RemoteDocumentCache byte size an LRU pass
	// tries to shrink below. Ignored under the eager policy.
	TargetCacheBytes int64 `toml:"target_cache_bytes"`
}

// IndexConfig controls IndexBackfiller's batch size and per-collection-group
// concurrency.
type IndexConfig struct {
	// BackfillBatchSize is how many documents a single backfill step scans
	// before persisting its offset.
	BackfillBatchSize int `toml:"backfill_batch_size"`
	// MaxIndexesPerCollectionGroup caps how many FieldIndex entries
	// CreateFieldIndex accepts for one collection group.
	MaxIndexesPerCollectionGroup int `toml:"max_indexes_per_collection_group"`
	// MaxConcurrentBackfills bounds the errgroup pool IndexBackfiller runs
	// index advancement under.
	MaxConcurrentBackfills int `toml:"max_concurrent_backfills"`
}

// PersistenceConfig selects and configures the byte-level storage backend.
type PersistenceConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `toml:"backend"`
	// Path is the sqlite database file path. Ignored for the memory backend.
	Path string `toml:"path"`
}

// LoggingConfig controls the shared slog logger every component falls back
// to when constructed with a nil *slog.Logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

const (
	GCPolicyEager = "eager"
	GCPolicyLRU   = "lru"

	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)
