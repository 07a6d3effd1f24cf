package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_AllFieldsPopulated(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, GCPolicyEager, cfg.GC.Policy)
	assert.Equal(t, int64(64<<20), cfg.GC.TargetCacheBytes)

	assert.Equal(t, 500, cfg.Index.BackfillBatchSize)
	assert.Equal(t, 20, cfg.Index.MaxIndexesPerCollectionGroup)
	assert.Equal(t, 4, cfg.Index.MaxConcurrentBackfills)

	assert.Equal(t, BackendSQLite, cfg.Persistence.Backend)
	assert.Equal(t, "firedoc.db", cfg.Persistence.Path)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestDefaultConfig_PassesValidate(t *testing.T) {
	assert.NoError(t, Validate(DefaultConfig()))
}
