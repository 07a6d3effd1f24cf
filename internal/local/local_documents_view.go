package local

import (
	"time"

	"github.com/tonimelisma/firedoc/internal/core"
	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/model"
)

// LocalDocumentsView composes RemoteDocumentCache, MutationQueue and
// DocumentOverlayCache into the single view LocalStore and QueryEngine read
// from: remote state with every pending local write already folded in
// (spec §4.3).
type LocalDocumentsView struct {
	remoteDocuments *RemoteDocumentCache
	mutationQueue   *MutationQueue
	overlays        *DocumentOverlayCache
	indexManager    *IndexManager
}

func newLocalDocumentsView(tx persistence.Transaction, user string) *LocalDocumentsView {
	return &LocalDocumentsView{
		remoteDocuments: newRemoteDocumentCache(tx),
		mutationQueue:   newMutationQueue(tx, user),
		overlays:        newDocumentOverlayCache(tx, user),
		indexManager:    newIndexManager(tx),
	}
}

// GetDocument reads key's base document and folds in its overlay, if any
// (spec §4.3).
func (v *LocalDocumentsView) GetDocument(key model.DocumentKey) (model.Document, error) {
	base, _, err := v.remoteDocuments.Get(key)
	if err != nil {
		return model.Document{}, err
	}

	overlay, ok, err := v.overlays.GetOverlay(key)
	if err != nil {
		return model.Document{}, err
	}

	if !ok {
		return base, nil
	}

	return overlay.Mutation.ApplyToLocalView(base, time.Time{}), nil
}

// GetDocuments is the batch form of GetDocument.
func (v *LocalDocumentsView) GetDocuments(keys []model.DocumentKey) (map[string]model.Document, error) {
	out := make(map[string]model.Document, len(keys))

	for _, k := range keys {
		doc, err := v.GetDocument(k)
		if err != nil {
			return nil, err
		}

		out[k.String()] = doc
	}

	return out, nil
}

// GetLocalViewOfDocuments applies each base document's overlay; any key
// whose existence-state changed underneath a Patch overlay is instead
// recomputed from scratch by replaying the mutation queue, since a Patch's
// precondition may now evaluate differently (spec §4.3).
func (v *LocalDocumentsView) GetLocalViewOfDocuments(baseDocs map[string]model.Document, existenceStateChanged map[string]bool) (map[string]model.Document, error) {
	out := make(map[string]model.Document, len(baseDocs))

	var recompute []model.DocumentKey

	for keyStr, base := range baseDocs {
		overlay, ok, err := v.overlays.GetOverlay(base.Key())
		if err != nil {
			return nil, err
		}

		if !ok {
			out[keyStr] = base
			continue
		}

		if existenceStateChanged[keyStr] && overlay.Mutation.Kind() == model.MutationPatch {
			recompute = append(recompute, base.Key())
			continue
		}

		out[keyStr] = overlay.Mutation.ApplyToLocalView(base, time.Time{})
	}

	if len(recompute) > 0 {
		if err := v.RecalculateAndSaveOverlays(recompute); err != nil {
			return nil, err
		}

		for _, key := range recompute {
			doc, err := v.GetDocument(key)
			if err != nil {
				return nil, err
			}

			out[key.String()] = doc
		}
	}

	return out, nil
}

// GetDocumentsMatchingQuery resolves target against this view: a point
// lookup for a document-path target, a fan-out across every
// collection-parent path for a collection-group target, or a single
// collection scan merged with in-flight mutation keys (spec §4.3).
func (v *LocalDocumentsView) GetDocumentsMatchingQuery(target core.Target, sinceReadTime model.SnapshotVersion) (map[string]model.Document, error) {
	if target.IsDocumentQuery() {
		key, err := model.NewDocumentKey(target.CollectionPath)
		if err != nil {
			return nil, err
		}

		doc, err := v.GetDocument(key)
		if err != nil {
			return nil, err
		}

		if !doc.Exists() {
			return map[string]model.Document{}, nil
		}

		return map[string]model.Document{key.String(): doc}, nil
	}

	if target.IsCollectionGroup() {
		parents, err := v.indexManager.CollectionParents(target.CollectionGroup)
		if err != nil {
			return nil, err
		}

		out := make(map[string]model.Document)

		for _, parent := range parents {
			scoped := target
			scoped.CollectionPath = parent.Append(target.CollectionGroup)
			scoped.CollectionGroup = ""

			found, err := v.collectionScan(scoped, sinceReadTime)
			if err != nil {
				return nil, err
			}

			for k, d := range found {
				out[k] = d
			}
		}

		return out, nil
	}

	return v.collectionScan(target, sinceReadTime)
}

func (v *LocalDocumentsView) collectionScan(target core.Target, sinceReadTime model.SnapshotVersion) (map[string]model.Document, error) {
	affecting, err := v.mutationQueue.AllMutationBatchesAffectingQuery(target)
	if err != nil {
		return nil, err
	}

	mutatedKeys := make(map[string]bool)

	for _, batch := range affecting {
		for _, k := range batch.Keys() {
			if target.MatchesPathForDocument(k) {
				mutatedKeys[k.String()] = true
			}
		}
	}

	remote, err := v.remoteDocuments.GetDocumentsMatchingQuery(target, sinceReadTime, mutatedKeys)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.Document, len(remote))

	for keyStr, base := range remote {
		doc, err := v.applyOverlayByKeyString(keyStr, base)
		if err != nil {
			return nil, err
		}

		if target.Matches(doc) {
			out[keyStr] = doc
		}
	}

	for keyStr := range mutatedKeys {
		if _, already := out[keyStr]; already {
			continue
		}

		key, err := model.DocumentKeyFromString(keyStr)
		if err != nil {
			return nil, err
		}

		doc, err := v.GetDocument(key)
		if err != nil {
			return nil, err
		}

		if target.Matches(doc) {
			out[keyStr] = doc
		}
	}

	return out, nil
}

func (v *LocalDocumentsView) applyOverlayByKeyString(keyStr string, base model.Document) (model.Document, error) {
	overlay, ok, err := v.overlays.GetOverlay(base.Key())
	if err != nil {
		return model.Document{}, err
	}

	if !ok {
		return base, nil
	}

	return overlay.Mutation.ApplyToLocalView(base, time.Time{}), nil
}

// RecalculateAndSaveOverlays replays the mutation queue restricted to keys,
// folding each key's mutations (in ascending BatchId order) into a single
// collapsed overlay mutation, grouped under the largest contributing
// BatchId (spec §4.3).
func (v *LocalDocumentsView) RecalculateAndSaveOverlays(keys []model.DocumentKey) error {
	for _, key := range keys {
		batches, err := v.mutationQueue.AllMutationBatchesAffectingDocumentKey(key)
		if err != nil {
			return err
		}

		if len(batches) == 0 {
			if err := v.overlays.RemoveOverlay(key); err != nil {
				return err
			}

			continue
		}

		var perKey []model.Mutation

		var writeTime time.Time

		for _, batch := range batches {
			for _, m := range batch.BaseMutations {
				if m.Key().Equal(key) {
					perKey = append(perKey, m)
				}
			}

			for _, m := range batch.Mutations {
				if m.Key().Equal(key) {
					perKey = append(perKey, m)
				}
			}

			writeTime = batch.LocalWriteTime
		}

		overlay := collapseMutationsToOverlay(key, perKey, writeTime)
		largestBatchID := batches[len(batches)-1].BatchID

		if err := v.overlays.SaveOverlays(largestBatchID, map[string]model.Mutation{key.String(): overlay}); err != nil {
			return err
		}
	}

	return nil
}

// collapseMutationsToOverlay folds an ordered run of mutations touching one
// key into a single net mutation: a Set/Delete if the run's most recent
// full-replace mutation dominates, or a Patch carrying the union of every
// mask touched since that point (or from the start, if the run never
// contains a Set/Delete) so the overlay still composes correctly against a
// remote document that changes after the overlay is saved.
func collapseMutationsToOverlay(key model.DocumentKey, mutations []model.Mutation, writeTime time.Time) model.Mutation {
	doc := model.InvalidDocument(key)
	mask := model.NewFieldMask()
	isPatch := true

	for _, m := range mutations {
		doc = m.ApplyToLocalView(doc, writeTime)

		switch m.Kind() {
		case model.MutationSet:
			mask = model.NewFieldMask()
			isPatch = false
		case model.MutationDelete:
			mask = model.NewFieldMask()
			isPatch = true
		case model.MutationPatch:
			mask = mask.Union(m.Mask())
		case model.MutationVerify:
			// no data effect
		}
	}

	switch {
	case doc.IsNoDocument():
		return model.NewDeleteMutation(key, model.NoPrecondition())
	case !doc.Exists():
		return model.NewVerifyMutation(key, model.NoPrecondition())
	case isPatch:
		return model.NewPatchMutation(key, restrictToMask(doc.Data(), mask), mask, model.NoPrecondition())
	default:
		return model.NewSetMutation(key, doc.Data(), model.NoPrecondition())
	}
}

func restrictToMask(data map[string]model.Value, mask model.FieldMask) map[string]model.Value {
	out := map[string]model.Value{}

	for _, path := range mask.Paths() {
		if v, ok := model.GetField(data, path); ok {
			out = model.SetField(out, path, v)
		}
	}

	return out
}
