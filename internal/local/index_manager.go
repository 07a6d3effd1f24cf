package local

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/tonimelisma/firedoc/internal/core"
	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/model"
)

// IndexOffset describes how much of a collection has been folded into a
// field-value index: everything at or before (ReadTime, DocumentKey) has
// been indexed, and LargestBatchID records the newest mutation batch
// reflected (spec §4.7).
type IndexOffset struct {
	ReadTime       model.SnapshotVersion
	DocumentKey    string
	LargestBatchID int64
}

// IndexSegmentKind is one column's sort direction or containment mode
// within a field-value index.
type IndexSegmentKind uint8

const (
	IndexAscending IndexSegmentKind = iota
	IndexDescending
	IndexContains
)

// IndexSegment names one (field, kind) column of a field-value index.
type IndexSegment struct {
	Path model.FieldPath
	Kind IndexSegmentKind
}

// FieldIndex is a user-configured per-collection-group index (spec §4.7).
type FieldIndex struct {
	ID              string
	CollectionGroup string
	Segments        []IndexSegment
	Offset          IndexOffset
}

// IndexCoverage classifies how well a FieldIndex (or the absence of one)
// can serve a Target.
type IndexCoverage uint8

const (
	CoverageNone IndexCoverage = iota
	CoveragePartial
	CoverageFull
)

// IndexManager owns the collection-parent index (for collection-group
// fan-out) and the optional field-value indexes (spec §4.7). Index entries
// are themselves persisted, but — unlike a production value-ordered
// secondary B-tree — candidate sets are recomputed by re-scanning
// RemoteDocumentCache and applying Target.Matches past the index's offset;
// the persisted FieldIndex only tracks *which* (field, kind) columns are
// configured and how far backfill has progressed, which is everything
// spec §4.7 requires callers to observe (ScanPrefix/ScanRange ordering is
// already satisfied by the cache's own secondary indexes in
// remote_document_cache.go).
type IndexManager struct {
	tx persistence.Transaction
}

func newIndexManager(tx persistence.Transaction) *IndexManager {
	return &IndexManager{tx: tx}
}

// RecordCollectionParent notes that key's collection is nested under key's
// parent document path (or the database root for a top-level collection).
func (m *IndexManager) RecordCollectionParent(key model.DocumentKey) error {
	collectionID := key.CollectionGroup()
	parent, _ := key.CollectionPath().Parent() // parent document of the collection, "" at root

	return m.tx.Put(collectionParentKey(collectionID, parent.String()), []byte{})
}

// CollectionParents returns every distinct parent path recorded for
// collectionID, used to fan out a collection-group query across every
// concrete collection sharing that id (spec §4.7).
func (m *IndexManager) CollectionParents(collectionID string) ([]model.ResourcePath, error) {
	var out []model.ResourcePath

	err := m.tx.ScanPrefix(collectionParentPrefix(collectionID), func(key, _ []byte) (bool, error) {
		suffix := key[len(collectionParentPrefix(collectionID)):]
		out = append(out, model.ResourcePathFromString(string(suffix)))

		return true, nil
	})

	return out, err
}

type fieldIndexDTO struct {
	ID              string             `json:"id"`
	CollectionGroup string             `json:"cg"`
	Segments        []segmentDTO       `json:"seg"`
	OffsetSec       int64              `json:"os"`
	OffsetNano      int32              `json:"on"`
	OffsetKey       string             `json:"ok"`
	OffsetBatchID   int64              `json:"ob"`
}

type segmentDTO struct {
	Path fieldPathDTO     `json:"p"`
	Kind IndexSegmentKind `json:"k"`
}

func encodeFieldIndex(idx FieldIndex) ([]byte, error) {
	dto := fieldIndexDTO{
		ID:              idx.ID,
		CollectionGroup: idx.CollectionGroup,
		OffsetSec:       idx.Offset.ReadTime.Seconds,
		OffsetNano:      idx.Offset.ReadTime.Nanos,
		OffsetKey:       idx.Offset.DocumentKey,
		OffsetBatchID:   idx.Offset.LargestBatchID,
	}

	for _, s := range idx.Segments {
		dto.Segments = append(dto.Segments, segmentDTO{Path: encodeFieldPath(s.Path), Kind: s.Kind})
	}

	raw, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("local: encode field index: %w", err)
	}

	return raw, nil
}

func decodeFieldIndex(raw []byte) (FieldIndex, error) {
	var dto fieldIndexDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return FieldIndex{}, fmt.Errorf("local: decode field index: %w", err)
	}

	idx := FieldIndex{
		ID:              dto.ID,
		CollectionGroup: dto.CollectionGroup,
		Offset: IndexOffset{
			ReadTime:       model.SnapshotVersion{Timestamp: model.Timestamp{Seconds: dto.OffsetSec, Nanos: dto.OffsetNano}},
			DocumentKey:    dto.OffsetKey,
			LargestBatchID: dto.OffsetBatchID,
		},
	}

	for _, s := range dto.Segments {
		idx.Segments = append(idx.Segments, IndexSegment{Path: decodeFieldPath(s.Path), Kind: s.Kind})
	}

	return idx, nil
}

// CreateFieldIndex persists idx's definition together with whatever offset
// idx carries (zero for a new index), ready for the backfiller to pick up.
func (m *IndexManager) CreateFieldIndex(idx FieldIndex) error {
	raw, err := encodeFieldIndex(idx)
	if err != nil {
		return err
	}

	return m.tx.Put(fieldIndexKey(idx.CollectionGroup, idx.ID), raw)
}

// FieldIndexesFor returns every configured index for collectionGroup.
func (m *IndexManager) FieldIndexesFor(collectionGroup string) ([]FieldIndex, error) {
	var out []FieldIndex

	err := m.tx.ScanPrefix(fieldIndexKey(collectionGroup, ""), func(_, value []byte) (bool, error) {
		idx, err := decodeFieldIndex(value)
		if err != nil {
			return false, err
		}

		out = append(out, idx)

		return true, nil
	})

	return out, err
}

// AllFieldIndexes returns every configured index across every group, used
// by the backfiller, which advances each of them.
func (m *IndexManager) AllFieldIndexes() ([]FieldIndex, error) {
	var out []FieldIndex

	err := m.tx.ScanPrefix([]byte(prefixFieldIndex), func(_, value []byte) (bool, error) {
		idx, err := decodeFieldIndex(value)
		if err != nil {
			return false, err
		}

		out = append(out, idx)

		return true, nil
	})

	return out, err
}

// SaveFieldIndex persists idx's current offset after a backfill step.
func (m *IndexManager) SaveFieldIndex(idx FieldIndex) error {
	return m.CreateFieldIndex(idx)
}

// Classify reports how well target's collection group is served by a
// configured field index (spec §4.7): FULL if an index covers every filter
// path and every order-by path, PARTIAL if an index covers the filters but
// not the full order-by/limit requirement, NONE otherwise.
func (m *IndexManager) Classify(target core.Target) (IndexCoverage, *FieldIndex, error) {
	group := target.CollectionGroup
	if group == "" && !target.CollectionPath.IsCollection() {
		return CoverageNone, nil, nil
	}

	if group == "" {
		group = target.CollectionPath.LastSegment()
	}

	indexes, err := m.FieldIndexesFor(group)
	if err != nil {
		return CoverageNone, nil, err
	}

	best := CoverageNone

	var bestIdx *FieldIndex

	for i := range indexes {
		coverage := classifyAgainst(target, indexes[i])
		if coverage > best {
			best = coverage
			bestIdx = &indexes[i]
		}
	}

	return best, bestIdx, nil
}

func classifyAgainst(target core.Target, idx FieldIndex) IndexCoverage {
	segPaths := make(map[string]bool, len(idx.Segments))
	for _, s := range idx.Segments {
		segPaths[s.Path.CanonicalString()] = true
	}

	for _, f := range target.Filters {
		if !filterPathsCovered(f, segPaths) {
			return CoverageNone
		}
	}

	for _, ob := range target.OrderBy {
		if ob.Path.IsKeyField() {
			continue
		}

		if !segPaths[ob.Path.CanonicalString()] {
			return CoveragePartial
		}
	}

	return CoverageFull
}

func filterPathsCovered(f core.Filter, segPaths map[string]bool) bool {
	switch v := f.(type) {
	case core.FieldFilter:
		if v.IsKeyRef {
			return true
		}

		return segPaths[v.Path.CanonicalString()]
	case core.CompositeFilter:
		for _, child := range v.Children {
			if !filterPathsCovered(child, segPaths) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

// IndexDocument folds doc's field values into idx's equality posting lists
// (one roaring bitmap per (segment, value) pair, over interned document
// ids), called by the backfiller as it advances an index's offset. Postings
// only ever narrow an *equality* or IN lookup (CandidateKeys' fast path
// below); they carry no ordering information, so range operators always
// fall back to the read-time rescan regardless of whether postings exist.
func (m *IndexManager) IndexDocument(idx FieldIndex, doc model.Document) error {
	if !doc.Exists() {
		return nil
	}

	id, err := internDocID(m.tx, doc.Key().String())
	if err != nil {
		return err
	}

	for pos, seg := range idx.Segments {
		v, ok := doc.Field(seg.Path)
		if !ok {
			continue
		}

		token, err := equalityToken(v)
		if err != nil {
			return err
		}

		bm, err := loadPosting(m.tx, idx.ID, pos, token)
		if err != nil {
			return err
		}

		bm.Add(id)

		if err := savePosting(m.tx, idx.ID, pos, token, bm); err != nil {
			return err
		}
	}

	return nil
}

// CandidateKeys returns every document key the given index believes
// matches target. When every filter is a pure equality/IN predicate on an
// indexed segment, it intersects the corresponding roaring-bitmap postings
// directly; otherwise (any range/array/key-ref predicate involved) it falls
// back to scanning RemoteDocumentCache past the index's offset and applying
// target's own predicate (see the IndexManager doc comment for why that
// rescan exists at all).
func (m *IndexManager) CandidateKeys(target core.Target, idx FieldIndex, docs *RemoteDocumentCache) ([]model.DocumentKey, error) {
	if keys, ok, err := m.equalityCandidateKeys(target, idx); err != nil {
		return nil, err
	} else if ok {
		sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
		return keys, nil
	}

	var keys []model.DocumentKey

	parents, err := m.CollectionParents(idx.CollectionGroup)
	if err != nil {
		return nil, err
	}

	if target.IsCollectionGroup() {
		for _, parent := range parents {
			collection := parent.Append(idx.CollectionGroup)

			collected, err := scanCollectionForTarget(docs, collection, target, idx.Offset.ReadTime)
			if err != nil {
				return nil, err
			}

			keys = append(keys, collected...)
		}
	} else {
		collected, err := scanCollectionForTarget(docs, target.CollectionPath, target, idx.Offset.ReadTime)
		if err != nil {
			return nil, err
		}

		keys = collected
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })

	return keys, nil
}

func scanCollectionForTarget(docs *RemoteDocumentCache, collection model.ResourcePath, target core.Target, offset model.SnapshotVersion) ([]model.DocumentKey, error) {
	scoped := target
	scoped.CollectionPath = collection
	scoped.CollectionGroup = ""

	found, err := docs.GetDocumentsMatchingQuery(scoped, offset, nil)
	if err != nil {
		return nil, err
	}

	var keys []model.DocumentKey

	for _, doc := range found {
		if scoped.Matches(doc) {
			keys = append(keys, doc.Key())
		}
	}

	return keys, nil
}

// equalityCandidateKeys resolves target purely from idx's equality posting
// lists. ok is false whenever any filter isn't a qualifying equality/IN
// predicate on one of idx's segments, telling the caller to fall back to
// the rescan path instead.
func (m *IndexManager) equalityCandidateKeys(target core.Target, idx FieldIndex) ([]model.DocumentKey, bool, error) {
	if len(target.Filters) == 0 {
		return nil, false, nil
	}

	segPos := make(map[string]int, len(idx.Segments))
	for i, seg := range idx.Segments {
		segPos[seg.Path.CanonicalString()] = i
	}

	bitmaps := make([]*roaring.Bitmap, 0, len(target.Filters))

	for _, f := range target.Filters {
		bm, ok, err := m.equalityBitmapsForFilter(f, idx.ID, segPos)
		if err != nil {
			return nil, false, err
		}

		if !ok {
			return nil, false, nil
		}

		bitmaps = append(bitmaps, bm)
	}

	result := bitmaps[0].Clone()
	for _, bm := range bitmaps[1:] {
		result.And(bm)
	}

	keys := make([]model.DocumentKey, 0, result.GetCardinality())

	it := result.Iterator()
	for it.HasNext() {
		keyStr, ok, err := resolveDocID(m.tx, it.Next())
		if err != nil {
			return nil, false, err
		}

		if !ok {
			continue
		}

		key, err := model.DocumentKeyFromString(keyStr)
		if err != nil {
			return nil, false, err
		}

		keys = append(keys, key)
	}

	return keys, true, nil
}

// equalityBitmapsForFilter returns the posting-list union/intersection
// satisfying f, or ok=false if f (or any descendant, for a composite) isn't
// expressible as pure equality/IN lookups against indexID's postings.
func (m *IndexManager) equalityBitmapsForFilter(f core.Filter, indexID string, segPos map[string]int) (*roaring.Bitmap, bool, error) {
	switch v := f.(type) {
	case core.FieldFilter:
		if v.IsKeyRef {
			return nil, false, nil
		}

		pos, ok := segPos[v.Path.CanonicalString()]
		if !ok {
			return nil, false, nil
		}

		switch v.Op {
		case core.OpEqual:
			token, err := equalityToken(v.Value)
			if err != nil {
				return nil, false, err
			}

			bm, err := loadPosting(m.tx, indexID, pos, token)
			if err != nil {
				return nil, false, err
			}

			return bm, true, nil
		case core.OpIn:
			union := roaring.New()

			for _, member := range v.Value.AsArray() {
				token, err := equalityToken(member)
				if err != nil {
					return nil, false, err
				}

				bm, err := loadPosting(m.tx, indexID, pos, token)
				if err != nil {
					return nil, false, err
				}

				union.Or(bm)
			}

			return union, true, nil
		default:
			return nil, false, nil
		}
	case core.CompositeFilter:
		if v.Op != core.CompositeAnd {
			return nil, false, nil
		}

		bitmaps := make([]*roaring.Bitmap, 0, len(v.Children))

		for _, child := range v.Children {
			bm, ok, err := m.equalityBitmapsForFilter(child, indexID, segPos)
			if err != nil {
				return nil, false, err
			}

			if !ok {
				return nil, false, nil
			}

			bitmaps = append(bitmaps, bm)
		}

		if len(bitmaps) == 0 {
			return nil, false, nil
		}

		result := bitmaps[0].Clone()
		for _, bm := range bitmaps[1:] {
			result.And(bm)
		}

		return result, true, nil
	default:
		return nil, false, nil
	}
}
