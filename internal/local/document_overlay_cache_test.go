package local

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/model"
)

func TestDocumentOverlayCache_SaveAndGet(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		c := newDocumentOverlayCache(tx, "u1")
		key := model.MustDocumentKey("rooms", "1")

		mutation := model.NewSetMutation(key, map[string]model.Value{"x": model.Int(1)}, model.NoPrecondition())

		require.NoError(t, c.SaveOverlays(3, map[string]model.Mutation{key.String(): mutation}))

		overlay, ok, err := c.GetOverlay(key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(3), overlay.LargestBatchID)
		assert.True(t, key.Equal(overlay.Key))
	})
}

func TestDocumentOverlayCache_SaveReplacesPriorEntry(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		c := newDocumentOverlayCache(tx, "u1")
		key := model.MustDocumentKey("rooms", "1")

		m1 := model.NewSetMutation(key, map[string]model.Value{"x": model.Int(1)}, model.NoPrecondition())
		require.NoError(t, c.SaveOverlays(1, map[string]model.Mutation{key.String(): m1}))

		m2 := model.NewSetMutation(key, map[string]model.Value{"x": model.Int(2)}, model.NoPrecondition())
		require.NoError(t, c.SaveOverlays(2, map[string]model.Mutation{key.String(): m2}))

		overlays, err := c.GetOverlays("rooms", 0)
		require.NoError(t, err)
		require.Len(t, overlays, 1)
		assert.Equal(t, int64(2), overlays[0].LargestBatchID)
	})
}

func TestDocumentOverlayCache_GetOverlaysSinceBatchID(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		c := newDocumentOverlayCache(tx, "u1")
		keyA := model.MustDocumentKey("rooms", "a")
		keyB := model.MustDocumentKey("rooms", "b")

		mA := model.NewSetMutation(keyA, map[string]model.Value{"x": model.Int(1)}, model.NoPrecondition())
		mB := model.NewSetMutation(keyB, map[string]model.Value{"x": model.Int(2)}, model.NoPrecondition())

		require.NoError(t, c.SaveOverlays(1, map[string]model.Mutation{keyA.String(): mA}))
		require.NoError(t, c.SaveOverlays(2, map[string]model.Mutation{keyB.String(): mB}))

		overlays, err := c.GetOverlays("rooms", 1)
		require.NoError(t, err)
		require.Len(t, overlays, 1)
		assert.True(t, keyB.Equal(overlays[0].Key))
	})
}

func TestDocumentOverlayCache_RemoveOverlaysForBatchId(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		c := newDocumentOverlayCache(tx, "u1")
		key := model.MustDocumentKey("rooms", "1")

		mutation := model.NewSetMutation(key, map[string]model.Value{"x": model.Int(1)}, model.NoPrecondition())
		require.NoError(t, c.SaveOverlays(5, map[string]model.Mutation{key.String(): mutation}))

		require.NoError(t, c.RemoveOverlaysForBatchId(5))

		_, ok, err := c.GetOverlay(key)
		require.NoError(t, err)
		assert.False(t, ok)

		overlays, err := c.GetOverlays("rooms", 0)
		require.NoError(t, err)
		assert.Empty(t, overlays)
	})
}

func TestDocumentOverlayCache_GetOverlaysInCollectionGroupRespectsLimit(t *testing.T) {
	withTx(t, func(tx persistence.Transaction) {
		c := newDocumentOverlayCache(tx, "u1")

		key1 := model.MustDocumentKey("buildings", "a", "rooms", "1")
		key2 := model.MustDocumentKey("buildings", "b", "rooms", "2")

		m1 := model.NewSetMutation(key1, map[string]model.Value{"x": model.Int(1)}, model.NoPrecondition())
		m2 := model.NewSetMutation(key2, map[string]model.Value{"x": model.Int(2)}, model.NoPrecondition())

		require.NoError(t, c.SaveOverlays(1, map[string]model.Mutation{key1.String(): m1}))
		require.NoError(t, c.SaveOverlays(2, map[string]model.Mutation{key2.String(): m2}))

		overlays, err := c.GetOverlaysInCollectionGroup("rooms", 0, 1)
		require.NoError(t, err)
		assert.Len(t, overlays, 1)
	})
}
