package local

import (
	"sort"

	"github.com/tonimelisma/firedoc/internal/core"
	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/model"
)

// GCPolicy selects which reference-counting discipline LocalStore's
// ReferenceDelegate follows (spec §3.4 supplemented feature: spec.md's §8
// scenario 6 only exercises the eager variant; the original also ships an
// LRU policy with a cache-size target).
type GCPolicy uint8

const (
	// GCEager deletes a document the instant its reference count drops to
	// zero.
	GCEager GCPolicy = iota
	// GCLRU leaves orphaned documents in place until an explicit
	// CollectGarbage pass reclaims the least-recently-used targets.
	GCLRU
)

// GcResults reports what a CollectGarbage pass removed.
type GcResults struct {
	TargetsRemoved   int
	DocumentsRemoved int
}

// ReferenceDelegate tracks which documents are pinned by an active target
// or a pending local mutation, and decides when an unreferenced document
// may actually be deleted from RemoteDocumentCache (spec §5 "Shared
// resources": reference-counting is manipulated only on the worker, i.e.
// only from within a LocalStore transaction).
type ReferenceDelegate interface {
	AddReference(tx persistence.Transaction, targetID int32, key model.DocumentKey) error
	RemoveReference(tx persistence.Transaction, targetID int32, key model.DocumentKey) error
	RemoveTargetReferences(tx persistence.Transaction, targetID int32) error
	AddMutationReference(tx persistence.Transaction, key model.DocumentKey) error
	RemoveMutationReference(tx persistence.Transaction, key model.DocumentKey) error
}

// referenceCount returns the number of distinct targets plus the
// local-mutation pin currently holding key, shared by both policies.
func referenceCount(tx persistence.Transaction, key model.DocumentKey) (int, error) {
	count := 0

	if err := tx.ScanPrefix(docRefPrefix(key.String()), func(_, _ []byte) (bool, error) {
		count++
		return true, nil
	}); err != nil {
		return 0, err
	}

	if _, ok, err := tx.Get(mutationRefKey(key.String())); err != nil {
		return 0, err
	} else if ok {
		count++
	}

	return count, nil
}

func addReferenceEdge(tx persistence.Transaction, targetID int32, key model.DocumentKey) error {
	return tx.Put(docRefKey(key.String(), targetID), []byte{})
}

func removeReferenceEdge(tx persistence.Transaction, targetID int32, key model.DocumentKey) error {
	return tx.Delete(docRefKey(key.String(), targetID))
}

// EagerReferenceDelegate deletes a document from RemoteDocumentCache as
// soon as its reference count reaches zero, matching spec §8 scenario 6.
type EagerReferenceDelegate struct{}

func (EagerReferenceDelegate) AddReference(tx persistence.Transaction, targetID int32, key model.DocumentKey) error {
	return addReferenceEdge(tx, targetID, key)
}

func (EagerReferenceDelegate) RemoveReference(tx persistence.Transaction, targetID int32, key model.DocumentKey) error {
	if err := removeReferenceEdge(tx, targetID, key); err != nil {
		return err
	}

	return collectIfOrphaned(tx, key)
}

func (EagerReferenceDelegate) RemoveTargetReferences(tx persistence.Transaction, targetID int32) error {
	return removeAllReferencesForTarget(tx, targetID, true)
}

func (EagerReferenceDelegate) AddMutationReference(tx persistence.Transaction, key model.DocumentKey) error {
	return tx.Put(mutationRefKey(key.String()), []byte{})
}

func (EagerReferenceDelegate) RemoveMutationReference(tx persistence.Transaction, key model.DocumentKey) error {
	if err := tx.Delete(mutationRefKey(key.String())); err != nil {
		return err
	}

	return collectIfOrphaned(tx, key)
}

func collectIfOrphaned(tx persistence.Transaction, key model.DocumentKey) error {
	count, err := referenceCount(tx, key)
	if err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	return newRemoteDocumentCache(tx).Remove(key)
}

// LRUReferenceDelegate records the same reference edges as the eager
// policy but never deletes a document on its own: reclamation only
// happens from an explicit CollectGarbage pass (spec §3.4).
type LRUReferenceDelegate struct{}

func (LRUReferenceDelegate) AddReference(tx persistence.Transaction, targetID int32, key model.DocumentKey) error {
	return addReferenceEdge(tx, targetID, key)
}

func (LRUReferenceDelegate) RemoveReference(tx persistence.Transaction, targetID int32, key model.DocumentKey) error {
	return removeReferenceEdge(tx, targetID, key)
}

func (LRUReferenceDelegate) RemoveTargetReferences(tx persistence.Transaction, targetID int32) error {
	return removeAllReferencesForTarget(tx, targetID, false)
}

func (LRUReferenceDelegate) AddMutationReference(tx persistence.Transaction, key model.DocumentKey) error {
	return tx.Put(mutationRefKey(key.String()), []byte{})
}

func (LRUReferenceDelegate) RemoveMutationReference(tx persistence.Transaction, key model.DocumentKey) error {
	return tx.Delete(mutationRefKey(key.String()))
}

// removeAllReferencesForTarget deletes every docref edge naming targetID.
// docref is keyed by (key, targetid), so this needs a full scan of the
// prefix space rather than a single-prefix lookup; collectIfOrphaned is
// applied per freed key only when eager is true.
func removeAllReferencesForTarget(tx persistence.Transaction, targetID int32, eager bool) error {
	suffix := "/" + targetIDKey(targetID)

	var orphanCandidates []model.DocumentKey

	if err := tx.ScanPrefix([]byte(prefixDocRef), func(key, _ []byte) (bool, error) {
		k := string(key)
		if len(k) < len(suffix) || k[len(k)-len(suffix):] != suffix {
			return true, nil
		}

		keyStr := k[len(prefixDocRef) : len(k)-len(suffix)]

		docKey, err := model.DocumentKeyFromString(keyStr)
		if err != nil {
			return false, err
		}

		orphanCandidates = append(orphanCandidates, docKey)

		return true, nil
	}); err != nil {
		return err
	}

	for _, docKey := range orphanCandidates {
		if err := removeReferenceEdge(tx, targetID, docKey); err != nil {
			return err
		}

		if eager {
			if err := collectIfOrphaned(tx, docKey); err != nil {
				return err
			}
		}
	}

	return nil
}

// CollectGarbage runs an LRU pass: oldest-sequence-numbered targets (per
// TargetCache, excluding liveTargetIDs) are removed along with any
// document they leave unreferenced, until the document cache drops back
// under byteThreshold or every eligible target has been considered (spec
// §3.4 "walks the sequence-number-ordered target list evicting the oldest
// un-pinned targets ... until under threshold").
func CollectGarbage(tx persistence.Transaction, liveTargetIDs map[int32]bool, byteThreshold int64) (GcResults, error) {
	targets, err := allTargetDataBySequence(tx)
	if err != nil {
		return GcResults{}, err
	}

	docs := newRemoteDocumentCache(tx)

	var results GcResults

	for _, td := range targets {
		size, err := docs.CacheSizeBytes()
		if err != nil {
			return results, err
		}

		if size < byteThreshold {
			break
		}

		if liveTargetIDs[td.TargetID] {
			continue
		}

		orphans, err := documentsReferencedOnlyBy(tx, td.TargetID)
		if err != nil {
			return results, err
		}

		if err := removeAllReferencesForTarget(tx, td.TargetID, false); err != nil {
			return results, err
		}

		if err := newTargetCache(tx).Remove(td); err != nil {
			return results, err
		}

		results.TargetsRemoved++

		for _, key := range orphans {
			count, err := referenceCount(tx, key)
			if err != nil {
				return results, err
			}

			if count == 0 {
				if err := docs.Remove(key); err != nil {
					return results, err
				}

				results.DocumentsRemoved++
			}
		}
	}

	return results, nil
}

func documentsReferencedOnlyBy(tx persistence.Transaction, targetID int32) ([]model.DocumentKey, error) {
	suffix := "/" + targetIDKey(targetID)

	var keys []model.DocumentKey

	err := tx.ScanPrefix([]byte(prefixDocRef), func(key, _ []byte) (bool, error) {
		k := string(key)
		if len(k) < len(suffix) || k[len(k)-len(suffix):] != suffix {
			return true, nil
		}

		keyStr := k[len(prefixDocRef) : len(k)-len(suffix)]

		docKey, err := model.DocumentKeyFromString(keyStr)
		if err != nil {
			return false, err
		}

		keys = append(keys, docKey)

		return true, nil
	})

	return keys, err
}

func allTargetDataBySequence(tx persistence.Transaction) ([]core.TargetData, error) {
	var out []core.TargetData

	err := tx.ScanPrefix([]byte(prefixTargetByID), func(_, value []byte) (bool, error) {
		td, err := decodeTargetData(value)
		if err != nil {
			return false, err
		}

		out = append(out, td)

		return true, nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })

	return out, nil
}
