package local

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/firedoc/internal/core"
	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/model"
)

func TestIndexManager_CollectionParentRoundTrip(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		m := newIndexManager(tx)
		key := model.MustDocumentKey("buildings", "a", "rooms", "1")

		require.NoError(t, m.RecordCollectionParent(key))

		parents, err := m.CollectionParents("rooms")
		require.NoError(t, err)
		require.Len(t, parents, 1)
		assert.Equal(t, "buildings/a", parents[0].String())
	})
}

func TestIndexManager_TopLevelCollectionParentIsRoot(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		m := newIndexManager(tx)
		key := model.MustDocumentKey("rooms", "1")

		require.NoError(t, m.RecordCollectionParent(key))

		parents, err := m.CollectionParents("rooms")
		require.NoError(t, err)
		require.Len(t, parents, 1)
		assert.Equal(t, "", parents[0].String())
	})
}

func TestIndexManager_CreateAndListFieldIndexes(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		m := newIndexManager(tx)

		idx := FieldIndex{
			ID:              "idx1",
			CollectionGroup: "rooms",
			Segments: []IndexSegment{
				{Path: model.NewFieldPath("capacity"), Kind: IndexAscending},
			},
		}

		require.NoError(t, m.CreateFieldIndex(idx))

		found, err := m.FieldIndexesFor("rooms")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "idx1", found[0].ID)
	})
}

func TestIndexManager_ClassifyCoverage(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		m := newIndexManager(tx)

		idx := FieldIndex{
			ID:              "idx1",
			CollectionGroup: "rooms",
			Segments: []IndexSegment{
				{Path: model.NewFieldPath("capacity"), Kind: IndexAscending},
			},
		}
		require.NoError(t, m.CreateFieldIndex(idx))

		covered := core.Target{
			CollectionPath: model.NewResourcePath("rooms"),
			Filters: []core.Filter{
				core.NewFieldFilter(model.NewFieldPath("capacity"), core.OpGreaterThan, model.Int(10)),
			},
		}

		coverage, found, err := m.Classify(covered)
		require.NoError(t, err)
		assert.Equal(t, CoverageFull, coverage)
		require.NotNil(t, found)
		assert.Equal(t, "idx1", found.ID)

		uncovered := core.Target{
			CollectionPath: model.NewResourcePath("rooms"),
			Filters: []core.Filter{
				core.NewFieldFilter(model.NewFieldPath("name"), core.OpEqual, model.String("lobby")),
			},
		}

		coverage, _, err = m.Classify(uncovered)
		require.NoError(t, err)
		assert.Equal(t, CoverageNone, coverage)
	})
}

func TestIndexManager_CandidateKeysEqualityFastPath(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		m := newIndexManager(tx)
		docs := newRemoteDocumentCache(tx)

		idx := FieldIndex{
			ID:              "idx1",
			CollectionGroup: "rooms",
			Segments: []IndexSegment{
				{Path: model.NewFieldPath("status"), Kind: IndexAscending},
			},
		}
		require.NoError(t, m.CreateFieldIndex(idx))

		lobby := model.NewFoundDocument(model.MustDocumentKey("rooms", "1"), version(1),
			map[string]model.Value{"status": model.String("open")})
		closed := model.NewFoundDocument(model.MustDocumentKey("rooms", "2"), version(1),
			map[string]model.Value{"status": model.String("closed")})

		require.NoError(t, docs.Add(lobby, version(1)))
		require.NoError(t, docs.Add(closed, version(1)))
		require.NoError(t, m.IndexDocument(idx, lobby))
		require.NoError(t, m.IndexDocument(idx, closed))

		target := core.Target{
			CollectionPath: model.NewResourcePath("rooms"),
			Filters: []core.Filter{
				core.NewFieldFilter(model.NewFieldPath("status"), core.OpEqual, model.String("open")),
			},
		}

		keys, err := m.CandidateKeys(target, idx, docs)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.True(t, lobby.Key().Equal(keys[0]))
	})
}

func TestIndexManager_CandidateKeysFallsBackForRangeFilter(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		m := newIndexManager(tx)
		docs := newRemoteDocumentCache(tx)

		idx := FieldIndex{
			ID:              "idx1",
			CollectionGroup: "rooms",
			Segments: []IndexSegment{
				{Path: model.NewFieldPath("capacity"), Kind: IndexAscending},
			},
		}
		require.NoError(t, m.CreateFieldIndex(idx))

		doc := model.NewFoundDocument(model.MustDocumentKey("rooms", "1"), version(1),
			map[string]model.Value{"capacity": model.Int(20)})
		require.NoError(t, docs.Add(doc, version(1)))
		require.NoError(t, m.IndexDocument(idx, doc))

		target := core.Target{
			CollectionPath: model.NewResourcePath("rooms"),
			Filters: []core.Filter{
				core.NewFieldFilter(model.NewFieldPath("capacity"), core.OpGreaterThan, model.Int(10)),
			},
		}

		keys, err := m.CandidateKeys(target, idx, docs)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.True(t, doc.Key().Equal(keys[0]))
	})
}
