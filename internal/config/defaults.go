package config

// Default values for configuration options. These form layer 0 of the
// four-layer override chain (defaults -> file -> environment -> explicit
// overrides) and are chosen to work for a single-process embedder without
// any config file at all.
const (
	defaultGCPolicy           = GCPolicyEager
	defaultTargetCacheBytes   = 64 << 20 // 64 MiB
	defaultBackfillBatchSize  = 500
	defaultMaxIndexesPerGroup = 20
	defaultMaxConcurrentJobs  = 4
	defaultBackend            = BackendSQLite
	defaultPath               = "firedoc.db"
	defaultLogLevel           = "info"
	defaultLogFormat          = "text"
)

// DefaultConfig returns a StoreConfig populated with all default values.
// This is both the starting point for TOML decoding (so unset keys retain
// defaults) and the fallback returned by LoadOrDefault when no file exists.
func DefaultConfig() *StoreConfig {
	return &StoreConfig{
		GC:          defaultGCConfig(),
		Index:       defaultIndexConfig(),
		Persistence: defaultPersistenceConfig(),
		Logging:     defaultLoggingConfig(),
	}
}

func defaultGCConfig() GCConfig {
	return GCConfig{
		Policy:           defaultGCPolicy,
		TargetCacheBytes: defaultTargetCacheBytes,
	}
}

func defaultIndexConfig() IndexConfig {
	return IndexConfig{
		BackfillBatchSize:            defaultBackfillBatchSize,
		MaxIndexesPerCollectionGroup: defaultMaxIndexesPerGroup,
		MaxConcurrentBackfills:       defaultMaxConcurrentJobs,
	}
}

func defaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		Backend: defaultBackend,
		Path:    defaultPath,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  defaultLogLevel,
		Format: defaultLogFormat,
	}
}
