package model

import (
	"time"

	"github.com/google/uuid"
)

// MutationBatch is an ordered, non-empty list of mutations sharing one
// BatchId and local write timestamp (spec §3). CorrelationID exists only
// for log correlation across ack/reject/resume-token events — it has no
// bearing on ordering, which is BatchID's job alone.
type MutationBatch struct {
	BatchID        int64
	CorrelationID  uuid.UUID
	LocalWriteTime time.Time

	// BaseMutations freeze each field transform's pre-transform value at
	// write time (via ExtractTransformBaseValue) as Patch mutations over
	// the transform's own paths, so a later overlay recompute still
	// estimates increments/array-unions correctly even after the
	// mutation's originating base document has moved on (spec §4.2
	// WriteLocally).
	BaseMutations []Mutation
	Mutations     []Mutation
}

// NewMutationBatch builds a batch, stamping it with a fresh correlation id.
func NewMutationBatch(batchID int64, localWriteTime time.Time, baseMutations, mutations []Mutation) MutationBatch {
	return MutationBatch{
		BatchID:        batchID,
		CorrelationID:  uuid.New(),
		LocalWriteTime: localWriteTime,
		BaseMutations:  baseMutations,
		Mutations:      mutations,
	}
}

// Keys returns the distinct document keys touched by this batch.
func (b MutationBatch) Keys() []DocumentKey {
	seen := make(map[string]bool)
	out := make([]DocumentKey, 0, len(b.Mutations))

	for _, m := range b.Mutations {
		k := m.Key().String()
		if seen[k] {
			continue
		}

		seen[k] = true
		out = append(out, m.Key())
	}

	return out
}

// mutationsForKey returns every mutation in the batch (base then primary)
// that touches key, in application order.
func (b MutationBatch) mutationsForKey(key DocumentKey) []Mutation {
	var out []Mutation

	for _, m := range b.BaseMutations {
		if m.Key().Equal(key) {
			out = append(out, m)
		}
	}

	for _, m := range b.Mutations {
		if m.Key().Equal(key) {
			out = append(out, m)
		}
	}

	return out
}

// ApplyToLocalView applies every mutation in the batch touching key, in
// order, on top of base.
func (b MutationBatch) ApplyToLocalView(key DocumentKey, base Document) Document {
	doc := base

	for _, m := range b.mutationsForKey(key) {
		doc = m.ApplyToLocalView(doc, b.LocalWriteTime)
	}

	return doc
}

// PerKeyMutationBatchResult carries the subset of a MutationBatchResult
// relevant to one document key.
type PerKeyMutationBatchResult struct {
	Version          SnapshotVersion
	TransformResults []Value
}

// ApplyToRemoteDocument applies every mutation in the batch touching key,
// in order, using the server's authoritative result for that key.
func (b MutationBatch) ApplyToRemoteDocument(key DocumentKey, base Document, result PerKeyMutationBatchResult) Document {
	doc := base
	mutations := b.mutationsForKey(key)

	for i, m := range mutations {
		mr := MutationResult{Version: result.Version}
		if i == len(mutations)-1 {
			// Only the last mutation touching this key in the batch gets
			// the server's transform results — earlier ones in the same
			// batch were already superseded before the server evaluated
			// transforms against the document.
			mr.TransformResults = result.TransformResults
		}

		doc = m.ApplyToRemoteDocument(doc, mr)
	}

	return doc
}

// MutationBatchResult is the RPC layer's report of a committed batch
// (spec §6, "Consumed (from RPC/serialization layer)").
type MutationBatchResult struct {
	Batch         MutationBatch
	CommitVersion SnapshotVersion
	DocVersions   map[string]SnapshotVersion // keyed by DocumentKey.String()
	StreamToken   []byte

	// TransformResults is keyed by DocumentKey.String(), holding the
	// per-field-transform results for that key's mutation.
	TransformResults map[string][]Value
}

// ResultForKey extracts this batch result's per-key view, defaulting to
// CommitVersion when the server didn't report a more specific doc version.
func (r MutationBatchResult) ResultForKey(key DocumentKey) PerKeyMutationBatchResult {
	version := r.CommitVersion
	if v, ok := r.DocVersions[key.String()]; ok {
		version = v
	}

	return PerKeyMutationBatchResult{
		Version:          version,
		TransformResults: r.TransformResults[key.String()],
	}
}
