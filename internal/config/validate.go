package config

import (
	"errors"
	"fmt"
)

const (
	minBackfillBatchSize = 1
	minIndexesPerGroup   = 1
	minConcurrentJobs    = 1
	maxConcurrentJobs    = 64
)

// Validate checks every configuration value and returns every error found,
// joined via errors.Join, rather than stopping at the first so a caller can
// fix every problem in one pass.
func Validate(cfg *StoreConfig) error {
	var errs []error

	errs = append(errs, validateGC(&cfg.GC)...)
	errs = append(errs, validateIndex(&cfg.Index)...)
	errs = append(errs, validatePersistence(&cfg.Persistence)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateGC(c *GCConfig) []error {
	var errs []error

	if c.Policy != GCPolicyEager && c.Policy != GCPolicyLRU {
		errs = append(errs, fmt.Errorf("gc.policy: must be %q or %q, got %q", GCPolicyEager, GCPolicyLRU, c.Policy))
	}

	if c.TargetCacheBytes < 0 {
		errs = append(errs, fmt.Errorf("gc.target_cache_bytes: must be >= 0, got %d", c.TargetCacheBytes))
	}

	return errs
}

func validateIndex(c *IndexConfig) []error {
	var errs []error

	if c.BackfillBatchSize < minBackfillBatchSize {
		errs = append(errs, fmt.Errorf("index.backfill_batch_size: must be >= %d, got %d", minBackfillBatchSize, c.BackfillBatchSize))
	}

	if c.MaxIndexesPerCollectionGroup < minIndexesPerGroup {
		errs = append(errs, fmt.Errorf("index.max_indexes_per_collection_group: must be >= %d, got %d", minIndexesPerGroup, c.MaxIndexesPerCollectionGroup))
	}

	if c.MaxConcurrentBackfills < minConcurrentJobs || c.MaxConcurrentBackfills > maxConcurrentJobs {
		errs = append(errs, fmt.Errorf("index.max_concurrent_backfills: must be between %d and %d, got %d", minConcurrentJobs, maxConcurrentJobs, c.MaxConcurrentBackfills))
	}

	return errs
}

func validatePersistence(c *PersistenceConfig) []error {
	var errs []error

	if c.Backend != BackendSQLite && c.Backend != BackendMemory {
		errs = append(errs, fmt.Errorf("persistence.backend: must be %q or %q, got %q", BackendSQLite, BackendMemory, c.Backend))
	}

	if c.Backend == BackendSQLite && c.Path == "" {
		errs = append(errs, errors.New("persistence.path: must not be empty when backend is sqlite"))
	}

	return errs
}

func validateLogging(c *LoggingConfig) []error {
	var errs []error

	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: must be one of debug/info/warn/error, got %q", c.Level))
	}

	switch c.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: must be one of text/json, got %q", c.Format))
	}

	return errs
}
