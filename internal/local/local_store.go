package local

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonimelisma/firedoc/internal/core"
	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/model"
	"github.com/tonimelisma/firedoc/internal/remote"
)

// resumeTokenMinInterval is the snapshot-version delta past which a target
// persists a fresh resume token even without an added/modified/removed
// document (spec §4.2.1).
const resumeTokenMinInterval = 5 * time.Minute

// LocalViewChanges reports one target's membership delta as observed by an
// active query listener, feeding LocalStore.NotifyLocalViewChanges (spec
// §4.2) so eager GC knows which documents a live view still pins.
type LocalViewChanges struct {
	TargetID    int32
	AddedKeys   []model.DocumentKey
	RemovedKeys []model.DocumentKey
}

// QueryResult is QueryEngine's (and so LocalStore.ExecuteQuery's) return
// value: the documents matching a target's local view, plus the set of
// keys believed to match at the server (spec §6 "execute_query(...) ->
// QueryResult { documents, remote_keys }").
type QueryResult struct {
	Documents  map[string]model.Document
	RemoteKeys map[string]bool
}

// LocalStore orchestrates every write, ack, remote event and target
// lifecycle operation (spec §4.2), running each public call inside exactly
// one persistence transaction (spec §5 Suspension). It owns the
// process-local TargetId and GC sequence-number counters, both seeded from
// persistence lazily on first use and never wire-compatible across
// restarts (spec §4.2.2).
type LocalStore struct {
	store    persistence.Store
	user     string
	gcPolicy GCPolicy
	logger   *slog.Logger

	targetIDSeeded bool
	nextTargetID   int32

	sequenceSeeded  bool
	nextSequenceNum int64

	// localViewRefs mirrors the reference edges an active query listener
	// currently holds, so NotifyLocalViewChanges only adds/removes the
	// edges that actually changed since the last notification.
	localViewRefs map[int32]map[string]bool
}

// NewLocalStore builds a LocalStore over store for user, using gcPolicy to
// decide whether documents are reclaimed eagerly or by a later LRU pass.
func NewLocalStore(store persistence.Store, user string, gcPolicy GCPolicy, logger *slog.Logger) *LocalStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &LocalStore{
		store:         store,
		user:          user,
		gcPolicy:      gcPolicy,
		logger:        logger,
		localViewRefs: make(map[int32]map[string]bool),
	}
}

func (s *LocalStore) referenceDelegate() ReferenceDelegate {
	if s.gcPolicy == GCLRU {
		return LRUReferenceDelegate{}
	}

	return EagerReferenceDelegate{}
}

func (s *LocalStore) nextTargetIDLocked(tx persistence.Transaction) (int32, error) {
	if !s.targetIDSeeded {
		highest, err := newTargetCache(tx).HighestTargetID()
		if err != nil {
			return 0, err
		}

		s.nextTargetID = highest
		s.targetIDSeeded = true
	}

	s.nextTargetID++

	return s.nextTargetID, nil
}

func (s *LocalStore) nextSequence(tx persistence.Transaction) (int64, error) {
	if !s.sequenceSeeded {
		all, err := allTargetDataBySequence(tx)
		if err != nil {
			return 0, err
		}

		if len(all) > 0 {
			s.nextSequenceNum = all[len(all)-1].SequenceNumber
		}

		s.sequenceSeeded = true
	}

	s.nextSequenceNum++

	return s.nextSequenceNum, nil
}

func distinctMutationKeys(mutations []model.Mutation) []model.DocumentKey {
	seen := make(map[string]bool, len(mutations))

	var out []model.DocumentKey

	for _, m := range mutations {
		k := m.Key().String()
		if seen[k] {
			continue
		}

		seen[k] = true

		out = append(out, m.Key())
	}

	return out
}

// WriteLocally reads every touched key's current local view, freezes each
// field transform's pre-transform base value, appends the batch to
// MutationQueue, recomputes affected overlays and pins the touched keys
// against GC until the batch is acked or rejected (spec §4.2).
func (s *LocalStore) WriteLocally(ctx context.Context, mutations []model.Mutation) (int64, map[string]model.Document, error) {
	var (
		batchID int64
		changed map[string]model.Document
	)

	err := s.store.RunTransaction(ctx, "WriteLocally", func(tx persistence.Transaction) error {
		view := newLocalDocumentsView(tx, s.user)
		queue := newMutationQueue(tx, s.user)
		delegate := s.referenceDelegate()

		keys := distinctMutationKeys(mutations)

		bases := make(map[string]model.Document, len(keys))

		for _, key := range keys {
			base, err := view.GetDocument(key)
			if err != nil {
				return err
			}

			bases[key.String()] = base
		}

		var baseMutations []model.Mutation

		for _, m := range mutations {
			if len(m.FieldTransforms()) == 0 {
				continue
			}

			base := bases[m.Key().String()]
			mask := model.NewFieldMask()
			values := map[string]model.Value{}

			for _, ft := range m.FieldTransforms() {
				if v, ok := model.ExtractTransformBaseValue(base, ft.Path); ok {
					values = model.SetField(values, ft.Path, v)
					mask = mask.Add(ft.Path)
				}
			}

			if !mask.IsEmpty() {
				baseMutations = append(baseMutations, model.NewPatchMutation(m.Key(), values, mask, model.NoPrecondition()))
			}
		}

		batch, err := queue.AddMutationBatch(time.Now(), baseMutations, mutations)
		if err != nil {
			return err
		}

		batchID = batch.BatchID

		if err := view.RecalculateAndSaveOverlays(keys); err != nil {
			return err
		}

		for _, key := range keys {
			if err := delegate.AddMutationReference(tx, key); err != nil {
				return err
			}
		}

		out, err := view.GetDocuments(keys)
		if err != nil {
			return err
		}

		changed = out

		return nil
	})
	if err != nil {
		return 0, nil, err
	}

	s.logger.Info("wrote mutations locally", "user", s.user, "batch_id", batchID, "keys", len(changed))

	return batchID, changed, nil
}

// AcknowledgeBatch folds the server's commit result into RemoteDocumentCache
// (replacing a key's cached entry only if it is missing or strictly older
// than the ack version), removes the batch and recomputes its overlays
// (spec §4.2).
func (s *LocalStore) AcknowledgeBatch(ctx context.Context, batch model.MutationBatch, result model.MutationBatchResult) (map[string]model.Document, error) {
	var changed map[string]model.Document

	err := s.store.RunTransaction(ctx, "AcknowledgeBatch", func(tx persistence.Transaction) error {
		view := newLocalDocumentsView(tx, s.user)
		queue := newMutationQueue(tx, s.user)
		docs := newRemoteDocumentCache(tx)
		delegate := s.referenceDelegate()

		keys := batch.Keys()

		for _, key := range keys {
			cached, _, err := docs.Get(key)
			if err != nil {
				return err
			}

			perKey := result.ResultForKey(key)

			if !cached.IsValidDocument() || cached.Version().Compare(perKey.Version) < 0 {
				updated := batch.ApplyToRemoteDocument(key, cached, perKey)
				if err := docs.Add(updated, perKey.Version); err != nil {
					return err
				}
			}

			if err := delegate.RemoveMutationReference(tx, key); err != nil {
				return err
			}
		}

		if err := queue.RemoveMutationBatch(batch); err != nil {
			return err
		}

		if err := view.RecalculateAndSaveOverlays(keys); err != nil {
			return err
		}

		out, err := view.GetDocuments(keys)
		if err != nil {
			return err
		}

		changed = out

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("acknowledged batch", "user", s.user, "batch_id", batch.BatchID, "keys", len(changed))

	return changed, nil
}

// RejectBatch removes batchID from the queue without touching
// RemoteDocumentCache and recomputes its overlays (spec §4.2).
func (s *LocalStore) RejectBatch(ctx context.Context, batchID int64) (map[string]model.Document, error) {
	var changed map[string]model.Document

	err := s.store.RunTransaction(ctx, "RejectBatch", func(tx persistence.Transaction) error {
		view := newLocalDocumentsView(tx, s.user)
		queue := newMutationQueue(tx, s.user)
		delegate := s.referenceDelegate()

		all, err := queue.AllMutationBatches()
		if err != nil {
			return err
		}

		var (
			target model.MutationBatch
			found  bool
		)

		for _, b := range all {
			if b.BatchID == batchID {
				target = b
				found = true

				break
			}
		}

		if !found {
			return model.NewInvariantError("LocalStore", fmt.Sprintf("rejecting unknown batch %d", batchID))
		}

		keys := target.Keys()

		if err := queue.RemoveMutationBatch(target); err != nil {
			return err
		}

		for _, key := range keys {
			if err := delegate.RemoveMutationReference(tx, key); err != nil {
				return err
			}
		}

		if err := view.RecalculateAndSaveOverlays(keys); err != nil {
			return err
		}

		out, err := view.GetDocuments(keys)
		if err != nil {
			return err
		}

		changed = out

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("rejected batch", "user", s.user, "batch_id", batchID, "keys", len(changed))

	return changed, nil
}

// shouldPersistResumeToken implements spec §4.2.1: a new token is written
// only if the old one is empty, this change touched at least one document,
// or the snapshot-version delta exceeds resumeTokenMinInterval.
func shouldPersistResumeToken(td core.TargetData, touchedCount int, newSnapshot model.SnapshotVersion) bool {
	if len(td.ResumeToken) == 0 {
		return true
	}

	if touchedCount > 0 {
		return true
	}

	return newSnapshot.Time().Sub(td.SnapshotVersion.Time()) > resumeTokenMinInterval
}

// ApplyRemoteEvent folds one RemoteEvent into target membership and
// RemoteDocumentCache atomically: membership references are added/removed
// per TargetChange, an existence-filter mismatch resets a target's purpose
// to PurposeExistenceFilterMismatch and clears its resume token and snapshot
// version (spec §3.4 supplemented feature), document updates overwrite
// the cache only when strictly newer or when a pending write's version tied
// the incoming one, and a synthesized zero-version NoDocument update
// deletes the cache entry outright (spec §4.2).
func (s *LocalStore) ApplyRemoteEvent(ctx context.Context, event remote.RemoteEvent) (map[string]model.Document, error) {
	var changed map[string]model.Document

	err := s.store.RunTransaction(ctx, "ApplyRemoteEvent", func(tx persistence.Transaction) error {
		view := newLocalDocumentsView(tx, s.user)
		docs := newRemoteDocumentCache(tx)
		targets := newTargetCache(tx)
		delegate := s.referenceDelegate()

		changedKeys := map[string]bool{}

		for targetID, change := range event.TargetChanges {
			td, ok, err := targets.Get(targetID)
			if err != nil {
				return err
			}

			if !ok {
				continue
			}

			for _, key := range change.Added {
				if err := delegate.AddReference(tx, targetID, key); err != nil {
					return err
				}

				changedKeys[key.String()] = true
			}

			for _, key := range change.Modified {
				changedKeys[key.String()] = true
			}

			for _, key := range change.Removed {
				if err := delegate.RemoveReference(tx, targetID, key); err != nil {
					return err
				}

				changedKeys[key.String()] = true
			}

			mismatched := false

			if change.ExpectedCount != nil {
				matching, err := documentsReferencedOnlyBy(tx, targetID)
				if err != nil {
					return err
				}

				if int(*change.ExpectedCount) != len(matching) {
					s.logger.Warn("existence filter mismatch, resetting target",
						"target_id", targetID, "expected", *change.ExpectedCount, "matching", len(matching))

					td.Purpose = core.PurposeExistenceFilterMismatch
					td.ResumeToken = nil
					td.SnapshotVersion = model.SnapshotVersion{}
					mismatched = true
				}
			}

			touched := len(change.Added) + len(change.Modified) + len(change.Removed)
			if !mismatched && shouldPersistResumeToken(td, touched, event.SnapshotVersion) {
				td.ResumeToken = change.ResumeToken
				td.SnapshotVersion = event.SnapshotVersion
			}

			seq, err := s.nextSequence(tx)
			if err != nil {
				return err
			}

			td.SequenceNumber = seq

			if err := targets.Save(td); err != nil {
				return err
			}
		}

		for keyStr, doc := range event.DocumentUpdates {
			docKey, err := model.DocumentKeyFromString(keyStr)
			if err != nil {
				return fmt.Errorf("local: remote event document update: %w", err)
			}

			cached, _, err := docs.Get(docKey)
			if err != nil {
				return err
			}

			if doc.DocKind() == model.KindNoDocument && doc.Version().Compare(model.MinVersion) == 0 {
				if err := docs.Remove(docKey); err != nil {
					return err
				}

				changedKeys[keyStr] = true

				continue
			}

			newer := doc.Version().Compare(cached.Version()) > 0
			tiedButPending := cached.HasPendingWrites() && doc.Version().Compare(cached.Version()) == 0

			if !cached.IsValidDocument() || newer || tiedButPending {
				if err := docs.Add(doc, doc.Version()); err != nil {
					return err
				}

				changedKeys[keyStr] = true
			}
		}

		if len(event.LimboDocumentChanges) > 0 {
			s.logger.Debug("limbo document changes observed", "count", len(event.LimboDocumentChanges))
		}

		keys := make([]model.DocumentKey, 0, len(changedKeys))

		for keyStr := range changedKeys {
			k, err := model.DocumentKeyFromString(keyStr)
			if err != nil {
				return err
			}

			keys = append(keys, k)
		}

		out, err := view.GetDocuments(keys)
		if err != nil {
			return err
		}

		changed = out

		return tx.Put(metaKey("lastRemoteSnapshot"), encodeSnapshotVersion(event.SnapshotVersion))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("applied remote event", "user", s.user, "snapshot", event.SnapshotVersion, "keys", len(changed))

	return changed, nil
}

func encodeSnapshotVersion(v model.SnapshotVersion) []byte {
	return []byte(fmt.Sprintf("%019d%09d", v.Seconds, v.Nanos))
}

// AllocateTarget returns the existing TargetData for target if one is
// already cached (matched by canonical id), otherwise creates one with a
// fresh TargetId and persists it (spec §4.2).
func (s *LocalStore) AllocateTarget(ctx context.Context, target core.Target) (core.TargetData, error) {
	var result core.TargetData

	err := s.store.RunTransaction(ctx, "AllocateTarget", func(tx persistence.Transaction) error {
		targets := newTargetCache(tx)

		canonicalID := target.CanonicalID()

		if existing, ok, err := targets.GetByCanonicalID(canonicalID); err != nil {
			return err
		} else if ok {
			result = existing
			return nil
		}

		id, err := s.nextTargetIDLocked(tx)
		if err != nil {
			return err
		}

		seq, err := s.nextSequence(tx)
		if err != nil {
			return err
		}

		td := core.NewTargetData(target, id, seq, core.PurposeListen)

		if err := targets.Save(td); err != nil {
			return err
		}

		result = td

		return nil
	})
	if err != nil {
		return core.TargetData{}, err
	}

	s.logger.Debug("allocated target", "target_id", result.TargetID, "canonical_id", target.CanonicalID())

	return result, nil
}

// ReleaseTarget removes targetID's active-listen bookkeeping, forwarding to
// the configured ReferenceDelegate so eager GC can reclaim now-orphaned
// documents immediately (spec §4.2).
func (s *LocalStore) ReleaseTarget(ctx context.Context, targetID int32) error {
	err := s.store.RunTransaction(ctx, "ReleaseTarget", func(tx persistence.Transaction) error {
		targets := newTargetCache(tx)
		delegate := s.referenceDelegate()

		td, ok, err := targets.Get(targetID)
		if err != nil {
			return err
		}

		if err := delegate.RemoveTargetReferences(tx, targetID); err != nil {
			return err
		}

		if ok {
			if err := targets.Remove(td); err != nil {
				return err
			}
		}

		delete(s.localViewRefs, targetID)

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("released target", "target_id", targetID)

	return nil
}

// NotifyLocalViewChanges updates the in-memory reference set a live query
// listener pins, so eager GC never reclaims a document a visible result set
// still needs (spec §4.2).
func (s *LocalStore) NotifyLocalViewChanges(ctx context.Context, changes []LocalViewChanges) error {
	return s.store.RunTransaction(ctx, "NotifyLocalViewChanges", func(tx persistence.Transaction) error {
		delegate := s.referenceDelegate()

		for _, change := range changes {
			set, ok := s.localViewRefs[change.TargetID]
			if !ok {
				set = make(map[string]bool)
				s.localViewRefs[change.TargetID] = set
			}

			for _, key := range change.AddedKeys {
				if set[key.String()] {
					continue
				}

				if err := delegate.AddReference(tx, change.TargetID, key); err != nil {
					return err
				}

				set[key.String()] = true
			}

			for _, key := range change.RemovedKeys {
				if !set[key.String()] {
					continue
				}

				if err := delegate.RemoveReference(tx, change.TargetID, key); err != nil {
					return err
				}

				delete(set, key.String())
			}
		}

		return nil
	})
}

// ExecuteQuery compiles query to a Target and delegates to QueryEngine,
// supplying the target's last-limbo-free snapshot and currently tracked
// remote-key set when usePreviousResults is set (spec §4.2).
func (s *LocalStore) ExecuteQuery(ctx context.Context, query core.Query, usePreviousResults bool) (QueryResult, error) {
	var result QueryResult

	err := s.store.RunTransaction(ctx, "ExecuteQuery", func(tx persistence.Transaction) error {
		target := query.ToTarget()

		view := newLocalDocumentsView(tx, s.user)
		engine := newQueryEngine(view, newIndexManager(tx), newRemoteDocumentCache(tx))

		var (
			sinceSnapshot model.SnapshotVersion
			remoteKeys    map[string]bool
		)

		if usePreviousResults {
			if td, ok, err := newTargetCache(tx).GetByCanonicalID(target.CanonicalID()); err != nil {
				return err
			} else if ok {
				sinceSnapshot = td.LastLimboFreeSnapshotVersion

				matching, err := documentsReferencedOnlyBy(tx, td.TargetID)
				if err != nil {
					return err
				}

				remoteKeys = make(map[string]bool, len(matching))
				for _, k := range matching {
					remoteKeys[k.String()] = true
				}
			}
		}

		res, err := engine.Execute(target, sinceSnapshot, remoteKeys)
		if err != nil {
			return err
		}

		result = res

		return nil
	})

	return result, err
}

// CollectGarbage runs an LRU reclamation pass over targets not named in
// liveTargetIDs, reclaiming orphaned documents until the cache drops under
// byteThreshold (spec §3.4). It is a no-op under GCEager, where reclamation
// already happens inline as references drop to zero.
func (s *LocalStore) CollectGarbage(ctx context.Context, liveTargetIDs map[int32]bool, byteThreshold int64) (GcResults, error) {
	if s.gcPolicy != GCLRU {
		return GcResults{}, nil
	}

	var results GcResults

	err := s.store.RunTransaction(ctx, "CollectGarbage", func(tx persistence.Transaction) error {
		res, err := CollectGarbage(tx, liveTargetIDs, byteThreshold)
		if err != nil {
			return err
		}

		results = res

		return nil
	})
	if err != nil {
		return GcResults{}, err
	}

	s.logger.Info("garbage collection complete", "targets_removed", results.TargetsRemoved, "documents_removed", results.DocumentsRemoved)

	return results, nil
}

// ListTargets returns every persisted TargetData, ordered by sequence
// number. It exists for read-only introspection (firedoc-inspect's "targets"
// command); no production code path needs a full target listing.
func (s *LocalStore) ListTargets(ctx context.Context) ([]core.TargetData, error) {
	var targets []core.TargetData

	err := s.store.RunTransaction(ctx, "ListTargets", func(tx persistence.Transaction) error {
		all, err := allTargetDataBySequence(tx)
		if err != nil {
			return err
		}

		targets = all

		return nil
	})

	return targets, err
}

// DumpOverlay returns the single collapsed local-mutation overlay pending
// for key, if any. It exists for read-only introspection; ApplyToLocalView
// callers should go through GetDocument/GetDocuments instead.
func (s *LocalStore) DumpOverlay(ctx context.Context, key model.DocumentKey) (model.Overlay, bool, error) {
	var (
		overlay model.Overlay
		found   bool
	)

	err := s.store.RunTransaction(ctx, "DumpOverlay", func(tx persistence.Transaction) error {
		ov, ok, err := newDocumentOverlayCache(tx, s.user).GetOverlay(key)
		if err != nil {
			return err
		}

		overlay, found = ov, ok

		return nil
	})

	return overlay, found, err
}
