package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/local/persistence/memkv"
	"github.com/tonimelisma/firedoc/internal/model"
)

func TestIndexBackfiller_AdvancesOffset(t *testing.T) {
	store, err := memkv.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	key := model.MustDocumentKey("rooms", "1")
	doc := model.NewFoundDocument(key, version(1), map[string]model.Value{"n": model.Int(1)})

	err = store.RunTransaction(ctx, "seed", func(tx persistence.Transaction) error {
		if err := newRemoteDocumentCache(tx).Add(doc, version(1)); err != nil {
			return err
		}

		return newIndexManager(tx).CreateFieldIndex(FieldIndex{
			ID:              "idx1",
			CollectionGroup: "rooms",
		})
	})
	require.NoError(t, err)

	b := NewIndexBackfiller(store).WithWorkers(2)

	results, err := b.Backfill(ctx, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].DocumentsIndexed)
	assert.Equal(t, "idx1", results[0].IndexID)

	err = store.RunTransaction(ctx, "check", func(tx persistence.Transaction) error {
		idxs, err := newIndexManager(tx).FieldIndexesFor("rooms")
		require.NoError(t, err)
		require.Len(t, idxs, 1)
		assert.Equal(t, key.String(), idxs[0].Offset.DocumentKey)
		assert.Equal(t, int64(1), idxs[0].Offset.ReadTime.Seconds)

		return nil
	})
	require.NoError(t, err)
}

func TestIndexBackfiller_NoIndexesIsNoop(t *testing.T) {
	store, err := memkv.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	b := NewIndexBackfiller(store)

	results, err := b.Backfill(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
