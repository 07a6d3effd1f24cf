// Package remote defines the wire-level types LocalStore consumes from the
// RPC/serialization layer (spec §6 "Consumed (from RPC/serialization
// layer)") — callers hand LocalStore a RemoteEvent or MutationBatchResult
// already decoded from the transport; this package never touches a socket
// itself.
package remote

import "github.com/tonimelisma/firedoc/internal/model"

// TargetChange reports one target's membership delta since its last
// snapshot: keys added to or dropped from the result set, keys whose
// contents changed without a membership change, and a refreshed resume
// token for restarting the listen after a resumable disconnect.
type TargetChange struct {
	Added    []model.DocumentKey
	Modified []model.DocumentKey
	Removed  []model.DocumentKey

	ResumeToken []byte

	// ExpectedCount, when present, is the server's existence-filter bloom
	// count for this target at the current snapshot — compared against the
	// locally tracked matching-key count to detect divergence (spec
	// DESIGN NOTES §9, existence-filter mismatch handling).
	ExpectedCount *int32
}

// LimboDocumentChangeKind discriminates whether a document entered or left
// limbo (its true existence is uncertain pending a targeted resolve listen).
type LimboDocumentChangeKind uint8

const (
	LimboDocumentAdded LimboDocumentChangeKind = iota
	LimboDocumentRemoved
)

// LimboDocumentChange reports one document's limbo-tracking transition.
type LimboDocumentChange struct {
	Kind LimboDocumentChangeKind
	Key  model.DocumentKey
}

// RemoteEvent is one atomic batch of server-pushed state: target membership
// deltas, document content updates, and limbo bookkeeping, all observed at
// one snapshot version (spec §6).
type RemoteEvent struct {
	SnapshotVersion model.SnapshotVersion

	// TargetChanges is keyed by TargetId.
	TargetChanges map[int32]TargetChange

	// DocumentUpdates is keyed by DocumentKey.String(). A document present
	// here with an explicit zero SnapshotVersion represents a synthesized
	// limbo-resolution event meaning "confirmed absent" (spec §4.2
	// ApplyRemoteEvent).
	DocumentUpdates map[string]model.Document

	LimboDocumentChanges []LimboDocumentChange
}

// TargetIDs returns every target this event reports a change for.
func (e RemoteEvent) TargetIDs() []int32 {
	ids := make([]int32, 0, len(e.TargetChanges))
	for id := range e.TargetChanges {
		ids = append(ids, id)
	}

	return ids
}
