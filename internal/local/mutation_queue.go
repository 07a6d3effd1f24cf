package local

import (
	"fmt"
	"time"

	"github.com/tonimelisma/firedoc/internal/core"
	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/model"
)

// MutationQueue is the per-user, BatchId-ordered log of pending mutation
// batches (spec §4.4). It is a thin view over a persistence.Transaction: no
// state is cached across calls, matching the teacher's pattern of
// preparing statements once but never caching query results across
// transactions (internal/sync.SQLiteStore never holds result-set state).
type MutationQueue struct {
	tx   persistence.Transaction
	user string
}

func newMutationQueue(tx persistence.Transaction, user string) *MutationQueue {
	return &MutationQueue{tx: tx, user: user}
}

// highestBatchID returns the largest BatchId currently persisted for the
// user, or 0 if the queue is empty.
func (q *MutationQueue) highestBatchID() (int64, error) {
	var highest int64

	err := q.tx.ScanPrefix(mutationUserPrefix(q.user), func(_, value []byte) (bool, error) {
		batch, err := decodeMutationBatch(value)
		if err != nil {
			return false, fmt.Errorf("local: corrupt mutation batch: %w", err)
		}

		if batch.BatchID > highest {
			highest = batch.BatchID
		}

		return true, nil
	})

	return highest, err
}

// AddMutationBatch assigns the next BatchId and persists batch (spec §4.4).
func (q *MutationQueue) AddMutationBatch(localWriteTime time.Time, baseMutations, mutations []model.Mutation) (model.MutationBatch, error) {
	highest, err := q.highestBatchID()
	if err != nil {
		return model.MutationBatch{}, err
	}

	batch := model.NewMutationBatch(highest+1, localWriteTime, baseMutations, mutations)

	raw, err := encodeMutationBatch(batch)
	if err != nil {
		return model.MutationBatch{}, fmt.Errorf("local: encode mutation batch: %w", err)
	}

	if err := q.tx.Put(mutationKey(q.user, batch.BatchID), raw); err != nil {
		return model.MutationBatch{}, err
	}

	return batch, nil
}

// RemoveMutationBatch removes batch, enforcing FIFO ack discipline: only the
// lowest-BatchId batch currently in the queue may be removed (spec §4.4
// invariant).
func (q *MutationQueue) RemoveMutationBatch(batch model.MutationBatch) error {
	lowest, ok, err := q.lowestBatchID()
	if err != nil {
		return err
	}

	if !ok || lowest != batch.BatchID {
		return model.NewInvariantError("MutationQueue",
			fmt.Sprintf("removing batch %d out of FIFO order (lowest pending is %d)", batch.BatchID, lowest))
	}

	return q.tx.Delete(mutationKey(q.user, batch.BatchID))
}

func (q *MutationQueue) lowestBatchID() (int64, bool, error) {
	var (
		lowest int64
		found  bool
	)

	err := q.tx.ScanPrefix(mutationUserPrefix(q.user), func(_, value []byte) (bool, error) {
		batch, err := decodeMutationBatch(value)
		if err != nil {
			return false, fmt.Errorf("local: corrupt mutation batch: %w", err)
		}

		if !found || batch.BatchID < lowest {
			lowest = batch.BatchID
			found = true
		}

		return true, nil
	})

	return lowest, found, err
}

// AllMutationBatches returns every pending batch in ascending BatchId order.
func (q *MutationQueue) AllMutationBatches() ([]model.MutationBatch, error) {
	var out []model.MutationBatch

	err := q.tx.ScanPrefix(mutationUserPrefix(q.user), func(_, value []byte) (bool, error) {
		batch, err := decodeMutationBatch(value)
		if err != nil {
			return false, fmt.Errorf("local: corrupt mutation batch: %w", err)
		}

		out = append(out, batch)

		return true, nil
	})
	if err != nil {
		return nil, err
	}

	return sortBatchesByID(out), nil
}

func sortBatchesByID(batches []model.MutationBatch) []model.MutationBatch {
	// Batch keys are zero-padded decimal so ScanPrefix already yields
	// ascending BatchId order; this re-sort only guards against a future
	// key-format change silently breaking the ordering invariant.
	for i := 1; i < len(batches); i++ {
		for j := i; j > 0 && batches[j].BatchID < batches[j-1].BatchID; j-- {
			batches[j], batches[j-1] = batches[j-1], batches[j]
		}
	}

	return batches
}

// AllMutationBatchesAffectingDocumentKey returns every pending batch that
// touches key, in ascending BatchId order.
func (q *MutationQueue) AllMutationBatchesAffectingDocumentKey(key model.DocumentKey) ([]model.MutationBatch, error) {
	all, err := q.AllMutationBatches()
	if err != nil {
		return nil, err
	}

	var out []model.MutationBatch

	for _, b := range all {
		for _, k := range b.Keys() {
			if k.Equal(key) {
				out = append(out, b)
				break
			}
		}
	}

	return out, nil
}

// AllMutationBatchesAffectingKeys returns every pending batch touching any
// of keys, in ascending BatchId order, without duplicates.
func (q *MutationQueue) AllMutationBatchesAffectingKeys(keys []model.DocumentKey) ([]model.MutationBatch, error) {
	all, err := q.AllMutationBatches()
	if err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k.String()] = true
	}

	var out []model.MutationBatch

	for _, b := range all {
		for _, k := range b.Keys() {
			if want[k.String()] {
				out = append(out, b)
				break
			}
		}
	}

	return out, nil
}

// AllMutationBatchesAffectingQuery returns every pending batch that could
// affect the result of query: any batch touching a key whose collection
// path matches the query's target path (a coarse, collection-level
// pre-filter; final predicate filtering happens after overlay application).
func (q *MutationQueue) AllMutationBatchesAffectingQuery(target core.Target) ([]model.MutationBatch, error) {
	all, err := q.AllMutationBatches()
	if err != nil {
		return nil, err
	}

	var out []model.MutationBatch

	for _, b := range all {
		for _, k := range b.Keys() {
			if target.MatchesPathForDocument(k) {
				out = append(out, b)
				break
			}
		}
	}

	return out, nil
}

// NextMutationBatchAfterBatchId returns the smallest pending batch with
// BatchId > after, used to feed the write stream (spec §4.4).
func (q *MutationQueue) NextMutationBatchAfterBatchId(after int64) (model.MutationBatch, bool, error) {
	all, err := q.AllMutationBatches()
	if err != nil {
		return model.MutationBatch{}, false, err
	}

	for _, b := range all {
		if b.BatchID > after {
			return b, true, nil
		}
	}

	return model.MutationBatch{}, false, nil
}

// IsEmpty reports whether no mutation batches are pending for the user.
func (q *MutationQueue) IsEmpty() (bool, error) {
	batches, err := q.AllMutationBatches()
	if err != nil {
		return false, err
	}

	return len(batches) == 0, nil
}
