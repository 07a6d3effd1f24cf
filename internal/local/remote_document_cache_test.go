package local

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/firedoc/internal/core"
	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/model"
)

func version(seconds int64) model.SnapshotVersion {
	return model.SnapshotVersion{Timestamp: model.Timestamp{Seconds: seconds}}
}

func TestRemoteDocumentCache_AddGetRemove(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		c := newRemoteDocumentCache(tx)
		key := model.MustDocumentKey("rooms", "1")
		doc := model.NewFoundDocument(key, version(1), map[string]model.Value{"name": model.String("lobby")})

		require.NoError(t, c.Add(doc, version(1)))

		got, ok, err := c.Get(key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, doc.Equal(got))

		require.NoError(t, c.Remove(key))

		_, ok, err = c.Get(key)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRemoteDocumentCache_AddReplacesStaleTimeIndex(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		c := newRemoteDocumentCache(tx)
		key := model.MustDocumentKey("rooms", "1")

		v1 := model.NewFoundDocument(key, version(1), map[string]model.Value{"n": model.Int(1)})
		require.NoError(t, c.Add(v1, version(1)))

		v2 := model.NewFoundDocument(key, version(5), map[string]model.Value{"n": model.Int(2)})
		require.NoError(t, c.Add(v2, version(5)))

		target := core.Target{CollectionPath: model.NewResourcePath("rooms")}

		docs, err := c.GetDocumentsMatchingQuery(target, version(0), nil)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.True(t, v2.Equal(docs[key.String()]))
	})
}

func TestRemoteDocumentCache_GetAllInCollectionGroup(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		c := newRemoteDocumentCache(tx)

		key1 := model.MustDocumentKey("buildings", "a", "rooms", "1")
		key2 := model.MustDocumentKey("buildings", "b", "rooms", "2")

		doc1 := model.NewFoundDocument(key1, version(1), map[string]model.Value{"n": model.Int(1)})
		doc2 := model.NewFoundDocument(key2, version(2), map[string]model.Value{"n": model.Int(2)})

		require.NoError(t, c.Add(doc1, version(1)))
		require.NoError(t, c.Add(doc2, version(2)))

		docs, err := c.GetAllInCollectionGroup("rooms", IndexOffset{}, 10)
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})
}

func TestRemoteDocumentCache_GetDocumentsMatchingQuerySkipsAbsentMutatedKey(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		c := newRemoteDocumentCache(tx)
		key := model.MustDocumentKey("rooms", "1")

		target := core.Target{CollectionPath: model.NewResourcePath("rooms")}

		docs, err := c.GetDocumentsMatchingQuery(target, version(0), map[string]bool{key.String(): true})
		require.NoError(t, err)
		assert.Empty(t, docs, "an absent mutated key never surfaces a document")
	})
}

func TestRemoteDocumentCache_GetAllMissingKeysAreInvalid(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		c := newRemoteDocumentCache(tx)
		key := model.MustDocumentKey("rooms", "missing")

		out, err := c.GetAll([]model.DocumentKey{key})
		require.NoError(t, err)
		assert.False(t, out[key.String()].IsValidDocument())
	})
}
