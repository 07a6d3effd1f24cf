package model

import "time"

// MutationKind discriminates the four mutation variants (spec §3).
type MutationKind uint8

const (
	MutationSet MutationKind = iota
	MutationPatch
	MutationDelete
	MutationVerify
)

// MutationResult is the per-document outcome of a committed mutation,
// assembled by LocalStore.AcknowledgeBatch from a MutationBatchResult
// (spec §6).
type MutationResult struct {
	Version SnapshotVersion

	// TransformResults holds the server-computed value for each entry of
	// the mutation's FieldTransforms, in the same order.
	TransformResults []Value
}

// Mutation is a closed tagged variant over Set/Patch/Delete/Verify, each
// with an optional list of field transforms (transforms are only
// meaningful on Set and Patch).
type Mutation struct {
	kind         MutationKind
	key          DocumentKey
	value        map[string]Value // Set: full replacement value. Patch: values for fields present in mask.
	mask         FieldMask        // Patch only: every field path this mutation touches (set or deleted)
	precondition Precondition
	transforms   []FieldTransform
}

// NewSetMutation replaces the document wholesale.
func NewSetMutation(key DocumentKey, value map[string]Value, precondition Precondition, transforms ...FieldTransform) Mutation {
	return Mutation{kind: MutationSet, key: key, value: cloneShallow(value), precondition: precondition, transforms: transforms}
}

// NewPatchMutation updates only the fields named in mask. A path present
// in mask but absent from value is deleted.
func NewPatchMutation(key DocumentKey, value map[string]Value, mask FieldMask, precondition Precondition, transforms ...FieldTransform) Mutation {
	return Mutation{kind: MutationPatch, key: key, value: cloneShallow(value), mask: mask, precondition: precondition, transforms: transforms}
}

// NewDeleteMutation tombstones the document.
func NewDeleteMutation(key DocumentKey, precondition Precondition) Mutation {
	return Mutation{kind: MutationDelete, key: key, precondition: precondition}
}

// NewVerifyMutation asserts precondition at commit time without writing data.
func NewVerifyMutation(key DocumentKey, precondition Precondition) Mutation {
	return Mutation{kind: MutationVerify, key: key, precondition: precondition}
}

// Kind returns the mutation's variant.
func (m Mutation) Kind() MutationKind { return m.kind }

// Key returns the document key this mutation applies to.
func (m Mutation) Key() DocumentKey { return m.key }

// Precondition returns the mutation's precondition.
func (m Mutation) Precondition() Precondition { return m.precondition }

// FieldTransforms returns the field transforms attached to this mutation.
func (m Mutation) FieldTransforms() []FieldTransform { return m.transforms }

// Mask returns the Patch mutation's field mask. Empty for other kinds.
func (m Mutation) Mask() FieldMask { return m.mask }

// RawValue returns the mutation's own value map verbatim (the full
// replacement for Set, the per-field values for Patch). Nil for Delete and
// Verify. Used by persistence codecs that must round-trip a mutation
// exactly rather than its applied effect.
func (m Mutation) RawValue() map[string]Value { return cloneShallow(m.value) }

// ApplyToLocalView applies this mutation optimistically to base, estimating
// transform results from base's own current field values. Preconditions
// are not checked here — the local view always reflects "if this mutation
// is accepted", matching the optimistic-UI contract of WriteLocally;
// precondition failures surface only at ack time via ApplyToRemoteDocument.
func (m Mutation) ApplyToLocalView(base Document, localWriteTime time.Time) Document {
	switch m.kind {
	case MutationSet:
		data := m.applyTransformsLocally(base, cloneShallow(m.value), localWriteTime)
		return m.foundDocumentFrom(base, data).WithLocalMutations()

	case MutationPatch:
		start := map[string]Value{}
		if base.Exists() {
			start = base.Data()
		}

		patched := applyPatchFields(start, m.value, m.mask)
		data := m.applyTransformsLocally(base, patched, localWriteTime)

		return m.foundDocumentFrom(base, data).WithLocalMutations()

	case MutationDelete:
		return NewNoDocument(m.key, MinVersion).WithLocalMutations()

	case MutationVerify:
		return base

	default:
		panic("model: unhandled mutation kind in ApplyToLocalView")
	}
}

func (m Mutation) foundDocumentFrom(base Document, data map[string]Value) Document {
	version := MinVersion
	if base.Exists() {
		version = base.Version()
	}

	return NewFoundDocument(m.key, version, data)
}

// applyTransformsLocally applies each field transform on top of data,
// reading each transform's pre-transform base value from base (not from
// data, which holds this mutation's own newly-set values — transforms
// read the document's prior committed state, per spec §3's "pre-transform
// previous value").
func (m Mutation) applyTransformsLocally(base Document, data map[string]Value, localWriteTime time.Time) map[string]Value {
	out := data

	for _, ft := range m.transforms {
		var prev *Value
		if v, ok := base.Field(ft.Path); ok {
			prev = &v
		}

		out = SetField(out, ft.Path, ft.Op.ApplyToLocalView(prev, localWriteTime))
	}

	return out
}

func applyPatchFields(base, values map[string]Value, mask FieldMask) map[string]Value {
	out := base

	for _, path := range mask.Paths() {
		if v, ok := GetField(values, path); ok {
			out = SetField(out, path, v)
		} else {
			out = DeleteField(out, path)
		}
	}

	return out
}

// ApplyToRemoteDocument applies this mutation using the server's
// authoritative commit result, gating on the precondition against base.
// A failed precondition produces an UnknownDocument rather than an error
// (spec §7): the true state will be reconciled by a later remote event.
func (m Mutation) ApplyToRemoteDocument(base Document, result MutationResult) Document {
	if !m.precondition.IsValidFor(base) {
		return NewUnknownDocument(m.key, result.Version)
	}

	switch m.kind {
	case MutationSet:
		data := m.applyTransformResults(cloneShallow(m.value), result)
		return NewFoundDocument(m.key, result.Version, data).WithCommittedMutations()

	case MutationPatch:
		start := map[string]Value{}
		if base.Exists() {
			start = base.Data()
		}

		patched := applyPatchFields(start, m.value, m.mask)
		data := m.applyTransformResults(patched, result)

		return NewFoundDocument(m.key, result.Version, data).WithCommittedMutations()

	case MutationDelete:
		return NewNoDocument(m.key, result.Version)

	case MutationVerify:
		return base.WithCommittedMutations()

	default:
		panic("model: unhandled mutation kind in ApplyToRemoteDocument")
	}
}

func (m Mutation) applyTransformResults(data map[string]Value, result MutationResult) map[string]Value {
	out := data

	for i, ft := range m.transforms {
		if i >= len(result.TransformResults) {
			break
		}

		out = SetField(out, ft.Path, ft.Op.ApplyServerResult(result.TransformResults[i]))
	}

	return out
}

// ExtractTransformBaseValue returns the pre-transform value of path within
// base, if present. WriteLocally calls this before appending a batch so
// that a later overlay recompute can still estimate increments correctly
// even after the originating base document has moved on.
func ExtractTransformBaseValue(base Document, path FieldPath) (Value, bool) {
	return base.Field(path)
}
