package local

import (
	"context"
	"fmt"
	gosync "sync"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/firedoc/internal/local/persistence"
)

const defaultBackfillWorkers = 4

// IndexBackfiller advances every configured FieldIndex's offset by reading
// newly-cached remote documents and folding them in, bounded to a per-call
// document budget (spec §4.7). Indexes are processed through a bounded
// worker pool, mirroring the teacher's dispatchPool pattern in
// internal/sync/transfer.go: each index gets its own short transaction so
// one index's failure never blocks another's progress.
type IndexBackfiller struct {
	store   persistence.Store
	workers int
}

// NewIndexBackfiller builds a backfiller over store with the default worker
// count. Use WithWorkers to override.
func NewIndexBackfiller(store persistence.Store) *IndexBackfiller {
	return &IndexBackfiller{store: store, workers: defaultBackfillWorkers}
}

// WithWorkers returns a copy of b with its worker pool size overridden.
func (b *IndexBackfiller) WithWorkers(n int) *IndexBackfiller {
	if n <= 0 {
		n = defaultBackfillWorkers
	}

	cp := *b
	cp.workers = n

	return &cp
}

// BackfillResult reports how many documents were folded into each index.
type BackfillResult struct {
	IndexID         string
	CollectionGroup string
	DocumentsIndexed int
	Err             error
}

// Backfill processes every configured index, each capped at
// maxDocumentsPerIndex, returning one BackfillResult per index attempted.
// A per-index error does not abort the others.
func (b *IndexBackfiller) Backfill(ctx context.Context, maxDocumentsPerIndex int) ([]BackfillResult, error) {
	var indexes []FieldIndex

	err := b.store.RunTransaction(ctx, "backfill:list", func(tx persistence.Transaction) error {
		all, err := newIndexManager(tx).AllFieldIndexes()
		if err != nil {
			return err
		}

		indexes = all

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("local: list field indexes for backfill: %w", err)
	}

	if len(indexes) == 0 {
		return nil, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	results := make([]BackfillResult, len(indexes))

	var mu gosync.Mutex

	for i := range indexes {
		i := i

		g.Go(func() error {
			n, err := b.backfillOne(gctx, indexes[i], maxDocumentsPerIndex)

			mu.Lock()
			results[i] = BackfillResult{
				IndexID:          indexes[i].ID,
				CollectionGroup:  indexes[i].CollectionGroup,
				DocumentsIndexed: n,
				Err:              err,
			}
			mu.Unlock()

			return nil // per-index errors are carried in the result, not fatal to the pool
		})
	}

	_ = g.Wait()

	return results, nil
}

// backfillOne advances a single index's offset by up to maxDocuments,
// committed in one transaction.
func (b *IndexBackfiller) backfillOne(ctx context.Context, idx FieldIndex, maxDocuments int) (int, error) {
	indexed := 0

	err := b.store.RunTransaction(ctx, "backfill:"+idx.ID, func(tx persistence.Transaction) error {
		docs := newRemoteDocumentCache(tx)

		batch, err := docs.GetAllInCollectionGroup(idx.CollectionGroup, idx.Offset, maxDocuments)
		if err != nil {
			return err
		}

		if len(batch) == 0 {
			return nil
		}

		mgr := newIndexManager(tx)

		newest := idx.Offset

		for _, doc := range batch {
			if err := mgr.IndexDocument(idx, doc); err != nil {
				return err
			}

			v := doc.Version()
			if v.Compare(newest.ReadTime) > 0 || (v.Compare(newest.ReadTime) == 0 && doc.Key().String() > newest.DocumentKey) {
				newest = IndexOffset{ReadTime: v, DocumentKey: doc.Key().String(), LargestBatchID: newest.LargestBatchID}
			}
		}

		indexed = len(batch)
		idx.Offset = newest

		return mgr.SaveFieldIndex(idx)
	})

	return indexed, err
}
