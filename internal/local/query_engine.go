package local

import (
	"sort"

	"github.com/tonimelisma/firedoc/internal/core"
	"github.com/tonimelisma/firedoc/internal/model"
)

// QueryEngine picks the cheapest of three strategies to resolve a Target
// against a transaction's local view, falling back to the next one whenever
// a cheaper strategy's result can't be trusted without a refill (spec
// §4.8/§4.8.1).
type QueryEngine struct {
	view  *LocalDocumentsView
	index *IndexManager
	docs  *RemoteDocumentCache
}

func newQueryEngine(view *LocalDocumentsView, index *IndexManager, docs *RemoteDocumentCache) *QueryEngine {
	return &QueryEngine{view: view, index: index, docs: docs}
}

// isMatchAll reports whether target carries no filter, no limit and no
// explicit order-by beyond the synthesized __name__ entry every Target
// carries (spec §4.8.1) — a query over the whole collection with no way to
// narrow it down. The remote-key-set strategy is unsound for exactly this
// shape (there's no finite, previously-known membership to trust), so it is
// only attempted when isMatchAll is false.
func isMatchAll(target core.Target) bool {
	return len(target.Filters) == 0 && target.Limit == 0 && len(target.OrderBy) <= 1
}

// Execute resolves target, trying (1) a configured field index, then (2)
// the caller-supplied previously-known remote-key set (only for a finite,
// non-match-all target with a known limbo-free snapshot to trust), then (3)
// a full local collection scan, falling through whenever the cheaper
// strategy needs a refill it can't itself satisfy (spec §4.8).
func (e *QueryEngine) Execute(target core.Target, lastLimboFreeSnapshot model.SnapshotVersion, remoteKeys map[string]bool) (QueryResult, error) {
	coverage, idx, err := e.index.Classify(target)
	if err != nil {
		return QueryResult{}, err
	}

	if coverage != CoverageNone {
		matched, err := e.matchedFromIndex(target, *idx)
		if err != nil {
			return QueryResult{}, err
		}

		if !e.needsRefill(target, matched, remoteKeys, lastLimboFreeSnapshot) {
			return e.toResult(target, matched, remoteKeys), nil
		}
	}

	if remoteKeys != nil && !isMatchAll(target) && lastLimboFreeSnapshot.Compare(model.MinVersion) != 0 {
		matched, err := e.matchedFromRemoteKeys(target, remoteKeys, lastLimboFreeSnapshot)
		if err != nil {
			return QueryResult{}, err
		}

		if !e.needsRefill(target, matched, remoteKeys, lastLimboFreeSnapshot) {
			return e.toResult(target, matched, remoteKeys), nil
		}
	}

	matched, err := e.matchedFromFullScan(target)
	if err != nil {
		return QueryResult{}, err
	}

	return e.toResult(target, matched, nil), nil
}

// matchedFromIndex resolves idx's candidate keys, then merges in anything
// the local view has touched since the index's own backfill offset so a
// stale index still reflects every pending local write (spec §4.8 step 1).
// The index's PARTIAL-coverage limit is never enforced here; a PARTIAL
// index narrows the candidate set but the caller still applies the full
// Target predicate (including limit) against matchingSubset's result.
func (e *QueryEngine) matchedFromIndex(target core.Target, idx FieldIndex) ([]model.Document, error) {
	candidateKeys, err := e.index.CandidateKeys(target, idx, e.docs)
	if err != nil {
		return nil, err
	}

	matched := make(map[string]model.Document, len(candidateKeys))

	for _, key := range candidateKeys {
		doc, err := e.view.GetDocument(key)
		if err != nil {
			return nil, err
		}

		if target.Matches(doc) {
			matched[key.String()] = doc
		}
	}

	since, err := e.view.GetDocumentsMatchingQuery(target, idx.Offset.ReadTime)
	if err != nil {
		return nil, err
	}

	for keyStr, doc := range since {
		matched[keyStr] = doc
	}

	return e.applyLimit(target, matched), nil
}

// matchedFromRemoteKeys trusts remoteKeys as a finite, non-match-all
// target's known server-side membership and only re-reads those keys plus
// anything touched since lastLimboFreeSnapshot, skipping a full collection
// scan entirely (spec §4.8 step 2).
func (e *QueryEngine) matchedFromRemoteKeys(target core.Target, remoteKeys map[string]bool, lastLimboFreeSnapshot model.SnapshotVersion) ([]model.Document, error) {
	matched := make(map[string]model.Document, len(remoteKeys))

	for keyStr := range remoteKeys {
		key, err := model.DocumentKeyFromString(keyStr)
		if err != nil {
			return nil, err
		}

		doc, err := e.view.GetDocument(key)
		if err != nil {
			return nil, err
		}

		if target.Matches(doc) {
			matched[keyStr] = doc
		}
	}

	since, err := e.view.GetDocumentsMatchingQuery(target, lastLimboFreeSnapshot)
	if err != nil {
		return nil, err
	}

	for keyStr, doc := range since {
		matched[keyStr] = doc
	}

	return e.applyLimit(target, matched), nil
}

// matchedFromFullScan reads every document in target's collection(s) from
// scratch, an unbounded offset guaranteeing nothing is missed (spec §4.8
// step 3, the strategy of last resort).
func (e *QueryEngine) matchedFromFullScan(target core.Target) ([]model.Document, error) {
	matched, err := e.view.GetDocumentsMatchingQuery(target, model.SnapshotVersion{})
	if err != nil {
		return nil, err
	}

	return e.applyLimit(target, matched), nil
}

func (e *QueryEngine) applyLimit(target core.Target, matched map[string]model.Document) []model.Document {
	sorted := sortedDocuments(target, matched)

	if target.Limit > 0 && int32(len(sorted)) > target.Limit {
		sorted = sorted[:target.Limit]
	}

	return sorted
}

// needsRefill implements spec §4.8.1: a refill is required if a document
// the caller previously believed matched the target no longer does
// (condition a), or — for a limited query — the edge document at the
// boundary of the already-applied limit has pending local writes or a
// version newer than the view's known-consistent snapshot, meaning a
// server-side document that would sort ahead of it might not have been
// observed yet (condition b).
func (e *QueryEngine) needsRefill(target core.Target, matched []model.Document, remoteKeys map[string]bool, lastLimboFreeSnapshot model.SnapshotVersion) bool {
	if remoteKeys != nil && len(remoteKeys) != len(matched) {
		return true
	}

	if target.Limit == 0 || len(matched) == 0 {
		return false
	}

	edge := matched[len(matched)-1]

	if edge.HasPendingWrites() {
		return true
	}

	return edge.Version().Compare(lastLimboFreeSnapshot) > 0
}

// toResult packages matched into a QueryResult, deriving the served
// remote-key set from matched itself when the caller didn't already supply
// one trusted in full (spec §6 QueryResult).
func (e *QueryEngine) toResult(target core.Target, matched []model.Document, remoteKeys map[string]bool) QueryResult {
	documents := make(map[string]model.Document, len(matched))
	for _, doc := range matched {
		documents[doc.Key().String()] = doc
	}

	keys := remoteKeys
	if keys == nil {
		keys = make(map[string]bool, len(matched))
		for _, doc := range matched {
			keys[doc.Key().String()] = true
		}
	}

	return QueryResult{Documents: documents, RemoteKeys: keys}
}

// sortedDocuments orders matched per target's normalized order-by list
// (always ending in a __name__ tie-break, since Query.ToTarget always
// appends one), ascending-limit-to-first-shaped regardless of the query's
// original LimitType (already inverted by ToTarget).
func sortedDocuments(target core.Target, matched map[string]model.Document) []model.Document {
	out := make([]model.Document, 0, len(matched))
	for _, doc := range matched {
		out = append(out, doc)
	}

	sort.Slice(out, func(i, j int) bool {
		return compareDocs(target.OrderBy, out[i], out[j]) < 0
	})

	return out
}

func compareDocs(orderBy []core.OrderBy, a, b model.Document) int {
	for _, ob := range orderBy {
		av, _ := a.Field(ob.Path)
		bv, _ := b.Field(ob.Path)

		c := model.CompareValues(av, bv)
		if ob.Direction == core.Descending {
			c = -c
		}

		if c != 0 {
			return c
		}
	}

	return 0
}
