package local

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/firedoc/internal/core"
	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/model"
)

func TestQueryEngine_FullScanMatchesFilterAndOrdersByLimit(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		view := newLocalDocumentsView(tx, "u1")
		engine := newQueryEngine(view, newIndexManager(tx), newRemoteDocumentCache(tx))

		for i, capacity := range []int64{30, 10, 20} {
			key := model.MustDocumentKey("rooms", string(rune('a'+i)))
			require.NoError(t, view.remoteDocuments.Add(
				model.NewFoundDocument(key, version(1), map[string]model.Value{"capacity": model.Int(capacity)}),
				version(1),
			))
		}

		target := core.Query{
			CollectionPath: model.NewResourcePath("rooms"),
			Filters: []core.Filter{
				core.NewFieldFilter(model.NewFieldPath("capacity"), core.OpGreaterThan, model.Int(5)),
			},
			ExplicitOrderBy: []core.OrderBy{{Path: model.NewFieldPath("capacity"), Direction: core.Ascending}},
			Limit:           2,
		}.ToTarget()

		result, err := engine.Execute(target, model.SnapshotVersion{}, nil)
		require.NoError(t, err)
		assert.Len(t, result.Documents, 2)

		var capacities []int64
		for _, doc := range result.Documents {
			v, _ := doc.Field(model.NewFieldPath("capacity"))
			capacities = append(capacities, v.AsInt64())
		}

		assert.ElementsMatch(t, []int64{10, 20}, capacities)
	})
}

func TestQueryEngine_RemoteKeySetServedForFilteredTarget(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		view := newLocalDocumentsView(tx, "u1")
		engine := newQueryEngine(view, newIndexManager(tx), newRemoteDocumentCache(tx))

		key1 := model.MustDocumentKey("rooms", "1")
		key2 := model.MustDocumentKey("rooms", "2")

		require.NoError(t, view.remoteDocuments.Add(
			model.NewFoundDocument(key1, version(1), map[string]model.Value{"capacity": model.Int(10)}),
			version(1),
		))
		// key2 also matches the filter but predates lastLimboFreeSnapshot and
		// isn't in remoteKeys; a full scan would have picked it up, so its
		// absence from the result proves the engine served the remote-key set
		// instead of falling through to step 3.
		require.NoError(t, view.remoteDocuments.Add(
			model.NewFoundDocument(key2, version(1), map[string]model.Value{"capacity": model.Int(20)}),
			version(1),
		))

		target := core.Query{
			CollectionPath: model.NewResourcePath("rooms"),
			Filters: []core.Filter{
				core.NewFieldFilter(model.NewFieldPath("capacity"), core.OpGreaterThan, model.Int(5)),
			},
		}.ToTarget()

		remoteKeys := map[string]bool{key1.String(): true}

		result, err := engine.Execute(target, version(2), remoteKeys)
		require.NoError(t, err)
		assert.Len(t, result.Documents, 1)
		assert.Contains(t, result.Documents, key1.String())
	})
}

func TestQueryEngine_RemoteKeySetMismatchTriggersFullScanFallback(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		view := newLocalDocumentsView(tx, "u1")
		engine := newQueryEngine(view, newIndexManager(tx), newRemoteDocumentCache(tx))

		key1 := model.MustDocumentKey("rooms", "1")
		key2 := model.MustDocumentKey("rooms", "2")

		require.NoError(t, view.remoteDocuments.Add(
			model.NewFoundDocument(key1, version(1), map[string]model.Value{"capacity": model.Int(10)}),
			version(1),
		))
		// key2 matches the filter and landed after lastLimboFreeSnapshot, so
		// the "since" merge inside matchedFromRemoteKeys picks it up even
		// though it isn't in remoteKeys -- the mismatch against remoteKeys'
		// one-element claim then forces the fallback to a full scan.
		require.NoError(t, view.remoteDocuments.Add(
			model.NewFoundDocument(key2, version(2), map[string]model.Value{"capacity": model.Int(20)}),
			version(2),
		))

		target := core.Query{
			CollectionPath: model.NewResourcePath("rooms"),
			Filters: []core.Filter{
				core.NewFieldFilter(model.NewFieldPath("capacity"), core.OpGreaterThan, model.Int(5)),
			},
		}.ToTarget()

		remoteKeys := map[string]bool{key1.String(): true}

		result, err := engine.Execute(target, version(1), remoteKeys)
		require.NoError(t, err)
		assert.Len(t, result.Documents, 2)
	})
}

// TestQueryEngine_LimitToLastRefillFallsThroughToFullScan exercises the spec
// scenario where a limit-to-last query's remote-key-served edge document
// carries a pending local write: the refill check must reject that edge and
// fall through to a full scan rather than return the locally-mutated value.
func TestQueryEngine_LimitToLastRefillFallsThroughToFullScan(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		view := newLocalDocumentsView(tx, "u1")
		engine := newQueryEngine(view, newIndexManager(tx), newRemoteDocumentCache(tx))

		keyA := model.MustDocumentKey("coll", "a")
		keyB := model.MustDocumentKey("coll", "b")

		require.NoError(t, view.remoteDocuments.Add(
			model.NewFoundDocument(keyA, version(1), map[string]model.Value{"n": model.Int(1)}),
			version(1),
		))
		require.NoError(t, view.remoteDocuments.Add(
			model.NewFoundDocument(keyB, version(1), map[string]model.Value{"n": model.Int(2)}),
			version(1),
		))

		// A pending patch on coll/a sets n:3, putting it ahead of coll/b in
		// ascending order and making it the remote-key-served edge candidate.
		patch := model.NewPatchMutation(keyA, map[string]model.Value{"n": model.Int(3)},
			model.NewFieldMask(model.NewFieldPath("n")), model.NoPrecondition())
		require.NoError(t, view.overlays.SaveOverlays(1, map[string]model.Mutation{keyA.String(): patch}))

		target := core.Query{
			CollectionPath:  model.NewResourcePath("coll"),
			ExplicitOrderBy: []core.OrderBy{{Path: model.NewFieldPath("n"), Direction: core.Ascending}},
			Limit:           1,
			LimitType:       core.LimitToLast,
		}.ToTarget()

		remoteKeys := map[string]bool{keyA.String(): true, keyB.String(): true}

		result, err := engine.Execute(target, version(10), remoteKeys)
		require.NoError(t, err)
		require.Len(t, result.Documents, 1)
		assert.Contains(t, result.Documents, keyB.String())

		v, ok := result.Documents[keyB.String()].Field(model.NewFieldPath("n"))
		require.True(t, ok)
		assert.Equal(t, int64(2), v.AsInt64())
	})
}

func TestIsMatchAll(t *testing.T) {
	plain := core.Query{CollectionPath: model.NewResourcePath("rooms")}.ToTarget()
	assert.True(t, isMatchAll(plain))

	limited := core.Query{CollectionPath: model.NewResourcePath("rooms"), Limit: 1}.ToTarget()
	assert.False(t, isMatchAll(limited))

	filtered := core.Query{
		CollectionPath: model.NewResourcePath("rooms"),
		Filters:        []core.Filter{core.NewFieldFilter(model.NewFieldPath("x"), core.OpEqual, model.Int(1))},
	}.ToTarget()
	assert.False(t, isMatchAll(filtered))
}
