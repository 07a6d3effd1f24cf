package core

import (
	"github.com/google/uuid"

	"github.com/tonimelisma/firedoc/internal/model"
)

// TargetPurpose discriminates why a Target is being listened to (spec §3
// TargetData).
type TargetPurpose uint8

const (
	// PurposeListen is a normal user-initiated listen.
	PurposeListen TargetPurpose = iota
	// PurposeLimboResolution is an internal single-document listen opened to
	// resolve an UnknownDocument's true state.
	PurposeLimboResolution
	// PurposeExistenceFilterMismatch is an internal listen reopened after the
	// server's existence filter bloom check disagreed with the local view's
	// document count for a target.
	PurposeExistenceFilterMismatch
)

// Target is the canonical server-facing form of a Query: every user-facing
// ordering/filter/cursor detail that affects which documents match, with no
// client-local bookkeeping (TargetData adds that).
type Target struct {
	CollectionPath  model.ResourcePath // empty when CollectionGroup is set
	CollectionGroup string             // empty for a plain collection query

	Filters []Filter
	OrderBy []OrderBy
	Limit   int32 // 0 means unlimited

	StartAt *Bound
	EndAt   *Bound
}

// IsCollectionGroup reports whether this target fans out across every
// parent of a collection-group rather than one fixed collection.
func (t Target) IsCollectionGroup() bool {
	return t.CollectionGroup != ""
}

// IsDocumentQuery reports whether this target names exactly one document
// (an even-length collection path naming a single document, no filters).
func (t Target) IsDocumentQuery() bool {
	return !t.IsCollectionGroup() && t.CollectionPath.IsDocument()
}

// MatchesPathForDocument reports whether key could plausibly satisfy this
// target's path constraint: exact parent match for a collection query, or a
// matching last segment for a collection-group query (spec §4.1 (i)).
func (t Target) MatchesPathForDocument(key model.DocumentKey) bool {
	if t.IsCollectionGroup() {
		return key.CollectionGroup() == t.CollectionGroup
	}

	return t.CollectionPath.Equal(key.CollectionPath())
}

// TargetData augments a Target with process-local listen bookkeeping (spec
// §3 TargetData).
type TargetData struct {
	Target Target

	TargetID       int32
	SequenceNumber int64
	Purpose        TargetPurpose

	// ListenSessionID correlates log lines across the lifetime of one
	// listen, independent of TargetID reuse across process restarts.
	ListenSessionID uuid.UUID

	SnapshotVersion              model.SnapshotVersion
	LastLimboFreeSnapshotVersion model.SnapshotVersion
	ResumeToken                  []byte
	ExpectedCount                *int32
}

// NewTargetData builds a TargetData for target, assigning targetID and
// stamping a fresh listen session id.
func NewTargetData(target Target, targetID int32, sequenceNumber int64, purpose TargetPurpose) TargetData {
	return TargetData{
		Target:          target,
		TargetID:        targetID,
		SequenceNumber:  sequenceNumber,
		Purpose:         purpose,
		ListenSessionID: uuid.New(),
	}
}

// WithSequenceNumber returns a copy with the LRU sequence number replaced,
// used every time the target is touched so eager/LRU GC can rank it.
func (td TargetData) WithSequenceNumber(n int64) TargetData {
	td.SequenceNumber = n
	return td
}

// WithResumeToken returns a copy with a refreshed snapshot version and
// resume token, applying the persistence-policy gate described in spec
// §4.2.1 is the caller's responsibility (LocalStore), not this type's.
func (td TargetData) WithResumeToken(version model.SnapshotVersion, token []byte) TargetData {
	td.SnapshotVersion = version
	td.ResumeToken = token

	return td
}
