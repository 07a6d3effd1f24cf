package local

import (
	"fmt"

	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/model"
)

// DocumentOverlayCache stores at most one overlay mutation per document key,
// tagged with the largest BatchId that contributed to it (spec §4.6). Like
// MutationQueue, it is a thin stateless view over one persistence.Transaction
// (internal/sync/state.go's SQLiteStore pattern).
type DocumentOverlayCache struct {
	tx   persistence.Transaction
	user string
}

func newDocumentOverlayCache(tx persistence.Transaction, user string) *DocumentOverlayCache {
	return &DocumentOverlayCache{tx: tx, user: user}
}

// GetOverlay returns key's overlay, if any.
func (c *DocumentOverlayCache) GetOverlay(key model.DocumentKey) (model.Overlay, bool, error) {
	raw, ok, err := c.tx.Get(overlayKey(c.user, key.String()))
	if err != nil || !ok {
		return model.Overlay{}, false, err
	}

	overlay, err := decodeOverlay(raw)
	if err != nil {
		return model.Overlay{}, false, err
	}

	return overlay, true, nil
}

// GetOverlays returns every overlay in collection with LargestBatchID >
// sinceBatchID, ordered by (LargestBatchID, key).
func (c *DocumentOverlayCache) GetOverlays(collection string, sinceBatchID int64) ([]model.Overlay, error) {
	return c.scanSecondary(overlayCollectionPrefix(collection), sinceBatchID, 0)
}

// GetOverlaysInCollectionGroup returns up to limit overlays across every
// concrete collection in collectionGroup with LargestBatchID > sinceBatchID,
// ordered by (LargestBatchID, key). limit <= 0 means unbounded.
func (c *DocumentOverlayCache) GetOverlaysInCollectionGroup(collectionGroup string, sinceBatchID int64, limit int) ([]model.Overlay, error) {
	return c.scanSecondary(overlayGroupPrefix(collectionGroup), sinceBatchID, limit)
}

func (c *DocumentOverlayCache) scanSecondary(prefix []byte, sinceBatchID int64, limit int) ([]model.Overlay, error) {
	var out []model.Overlay

	err := c.tx.ScanPrefix(prefix, func(key, _ []byte) (bool, error) {
		if limit > 0 && len(out) >= limit {
			return false, nil
		}

		batchID, docKeyStr, ok := splitBatchIndexSuffix(key, prefix)
		if !ok || batchID <= sinceBatchID {
			return true, nil
		}

		docKey, err := model.DocumentKeyFromString(docKeyStr)
		if err != nil {
			return false, fmt.Errorf("local: corrupt overlay index entry: %w", err)
		}

		overlay, found, err := c.GetOverlay(docKey)
		if err != nil {
			return false, err
		}

		if found {
			out = append(out, overlay)
		}

		return true, nil
	})

	return out, err
}

// SaveOverlays persists one overlay per (key, mutation) pair in mutations,
// all tagged with batchID as their LargestBatchID (spec §4.6). Any prior
// overlay for a touched key is replaced, including its secondary index rows.
func (c *DocumentOverlayCache) SaveOverlays(batchID int64, mutations map[string]model.Mutation) error {
	for keyStr, mutation := range mutations {
		key, err := model.DocumentKeyFromString(keyStr)
		if err != nil {
			return fmt.Errorf("local: save overlay: %w", err)
		}

		if err := c.saveOne(model.NewOverlay(key, mutation, batchID)); err != nil {
			return err
		}
	}

	return nil
}

// RemoveOverlay deletes key's overlay, if any, and its secondary index rows.
// Used when RecalculateAndSaveOverlays finds no pending mutation left
// touching key.
func (c *DocumentOverlayCache) RemoveOverlay(key model.DocumentKey) error {
	existing, ok, err := c.GetOverlay(key)
	if err != nil || !ok {
		return err
	}

	if err := c.removeSecondaryFor(existing); err != nil {
		return err
	}

	return c.tx.Delete(overlayKey(c.user, key.String()))
}

func (c *DocumentOverlayCache) saveOne(overlay model.Overlay) error {
	if existing, ok, err := c.GetOverlay(overlay.Key); err != nil {
		return err
	} else if ok {
		if err := c.removeSecondaryFor(existing); err != nil {
			return err
		}
	}

	raw, err := encodeOverlay(overlay)
	if err != nil {
		return fmt.Errorf("local: encode overlay: %w", err)
	}

	if err := c.tx.Put(overlayKey(c.user, overlay.Key.String()), raw); err != nil {
		return err
	}

	collection := overlay.Key.CollectionPath().String()
	group := overlay.Key.CollectionGroup()
	keyStr := overlay.Key.String()

	if err := c.tx.Put(overlayCollectionKey(collection, overlay.LargestBatchID, keyStr), []byte{}); err != nil {
		return err
	}

	return c.tx.Put(overlayGroupKey(group, overlay.LargestBatchID, keyStr), []byte{})
}

func (c *DocumentOverlayCache) removeSecondaryFor(overlay model.Overlay) error {
	collection := overlay.Key.CollectionPath().String()
	group := overlay.Key.CollectionGroup()
	keyStr := overlay.Key.String()

	if err := c.tx.Delete(overlayCollectionKey(collection, overlay.LargestBatchID, keyStr)); err != nil {
		return err
	}

	return c.tx.Delete(overlayGroupKey(group, overlay.LargestBatchID, keyStr))
}

// RemoveOverlaysForBatchId deletes every overlay whose LargestBatchID equals
// batchID exactly — the overlays that batch produced and no later batch has
// since superseded (spec §4.6, invoked on ack/reject of that batch).
func (c *DocumentOverlayCache) RemoveOverlaysForBatchId(batchID int64) error {
	var toRemove []model.Overlay

	err := c.tx.ScanPrefix(overlayUserPrefix(c.user), func(_, value []byte) (bool, error) {
		overlay, err := decodeOverlay(value)
		if err != nil {
			return false, fmt.Errorf("local: corrupt overlay: %w", err)
		}

		if overlay.LargestBatchID == batchID {
			toRemove = append(toRemove, overlay)
		}

		return true, nil
	})
	if err != nil {
		return err
	}

	for _, overlay := range toRemove {
		if err := c.removeSecondaryFor(overlay); err != nil {
			return err
		}

		if err := c.tx.Delete(overlayKey(c.user, overlay.Key.String())); err != nil {
			return err
		}
	}

	return nil
}
