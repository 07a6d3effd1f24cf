package local

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/firedoc/internal/core"
	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/model"
)

func TestLocalDocumentsView_GetDocumentAppliesOverlay(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		view := newLocalDocumentsView(tx, "u1")
		key := model.MustDocumentKey("rooms", "1")

		require.NoError(t, view.remoteDocuments.Add(
			model.NewFoundDocument(key, version(1), map[string]model.Value{"name": model.String("lobby")}),
			version(1),
		))

		patch := model.NewPatchMutation(key, map[string]model.Value{"capacity": model.Int(10)},
			model.NewFieldMask(model.NewFieldPath("capacity")), model.NoPrecondition())

		require.NoError(t, view.overlays.SaveOverlays(1, map[string]model.Mutation{key.String(): patch}))

		doc, err := view.GetDocument(key)
		require.NoError(t, err)
		require.True(t, doc.Exists())

		v, ok := doc.Field(model.NewFieldPath("capacity"))
		require.True(t, ok)
		assert.Equal(t, int64(10), v.AsInt64())

		v, ok = doc.Field(model.NewFieldPath("name"))
		require.True(t, ok)
		assert.Equal(t, "lobby", v.AsString())
	})
}

func TestLocalDocumentsView_GetDocumentNoOverlay(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		view := newLocalDocumentsView(tx, "u1")
		key := model.MustDocumentKey("rooms", "1")

		base := model.NewFoundDocument(key, version(1), map[string]model.Value{"name": model.String("lobby")})
		require.NoError(t, view.remoteDocuments.Add(base, version(1)))

		doc, err := view.GetDocument(key)
		require.NoError(t, err)
		assert.True(t, base.Equal(doc))
	})
}

func TestLocalDocumentsView_RecalculateAndSaveOverlaysSetThenPatch(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		view := newLocalDocumentsView(tx, "u1")
		key := model.MustDocumentKey("rooms", "1")

		_, err := view.mutationQueue.AddMutationBatch(time.Now(), nil, []model.Mutation{
			model.NewSetMutation(key, map[string]model.Value{"name": model.String("lobby")}, model.NoPrecondition()),
		})
		require.NoError(t, err)

		_, err = view.mutationQueue.AddMutationBatch(time.Now(), nil, []model.Mutation{
			model.NewPatchMutation(key, map[string]model.Value{"capacity": model.Int(5)},
				model.NewFieldMask(model.NewFieldPath("capacity")), model.NoPrecondition()),
		})
		require.NoError(t, err)

		require.NoError(t, view.RecalculateAndSaveOverlays([]model.DocumentKey{key}))

		overlay, ok, err := view.overlays.GetOverlay(key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, model.MutationSet, overlay.Mutation.Kind())
		assert.Equal(t, int64(2), overlay.LargestBatchID)

		doc, err := view.GetDocument(key)
		require.NoError(t, err)
		require.True(t, doc.Exists())

		v, ok := doc.Field(model.NewFieldPath("name"))
		require.True(t, ok)
		assert.Equal(t, "lobby", v.AsString())

		v, ok = doc.Field(model.NewFieldPath("capacity"))
		require.True(t, ok)
		assert.Equal(t, int64(5), v.AsInt64())
	})
}

func TestLocalDocumentsView_RecalculateDropsOverlayWhenQueueEmpty(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		view := newLocalDocumentsView(tx, "u1")
		key := model.MustDocumentKey("rooms", "1")

		patch := model.NewPatchMutation(key, map[string]model.Value{"capacity": model.Int(5)},
			model.NewFieldMask(model.NewFieldPath("capacity")), model.NoPrecondition())
		require.NoError(t, view.overlays.SaveOverlays(1, map[string]model.Mutation{key.String(): patch}))

		require.NoError(t, view.RecalculateAndSaveOverlays([]model.DocumentKey{key}))

		_, ok, err := view.overlays.GetOverlay(key)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestLocalDocumentsView_GetDocumentsMatchingQueryDocumentPath(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		view := newLocalDocumentsView(tx, "u1")
		key := model.MustDocumentKey("rooms", "1")

		require.NoError(t, view.remoteDocuments.Add(
			model.NewFoundDocument(key, version(1), map[string]model.Value{"n": model.Int(1)}),
			version(1),
		))

		target := core.Target{CollectionPath: key.Path()}

		docs, err := view.GetDocumentsMatchingQuery(target, version(0))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Contains(t, docs, key.String())
	})
}

func TestLocalDocumentsView_GetDocumentsMatchingQueryCollectionScan(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		view := newLocalDocumentsView(tx, "u1")
		key := model.MustDocumentKey("rooms", "1")

		require.NoError(t, view.remoteDocuments.Add(
			model.NewFoundDocument(key, version(1), map[string]model.Value{"capacity": model.Int(20)}),
			version(1),
		))

		target := core.Target{
			CollectionPath: model.NewResourcePath("rooms"),
			Filters: []core.Filter{
				core.NewFieldFilter(model.NewFieldPath("capacity"), core.OpGreaterThan, model.Int(10)),
			},
		}

		docs, err := view.GetDocumentsMatchingQuery(target, version(0))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Contains(t, docs, key.String())
	})
}
