package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetMutation_ApplyToLocalView(t *testing.T) {
	key := testKey()
	now := time.Unix(100, 0)

	t.Run("creates a found document regardless of precondition", func(t *testing.T) {
		base := NewNoDocument(key, MinVersion)
		m := NewSetMutation(key, map[string]Value{"a": Int(1)}, ExistsPrecondition(true))

		got := m.ApplyToLocalView(base, now)

		assert.True(t, got.Exists())
		assert.True(t, got.HasLocalMutations())
		v, _ := got.Field(NewFieldPath("a"))
		assert.True(t, Equal(Int(1), v))
	})

	t.Run("preserves version when overwriting an existing document", func(t *testing.T) {
		version := SnapshotVersion{Timestamp{Seconds: 7}}
		base := NewFoundDocument(key, version, map[string]Value{"a": Int(1)})
		m := NewSetMutation(key, map[string]Value{"a": Int(2)}, NoPrecondition())

		got := m.ApplyToLocalView(base, now)

		assert.Zero(t, got.Version().Compare(version))
	})

	t.Run("applies transforms against the prior field value", func(t *testing.T) {
		base := NewFoundDocument(key, MinVersion, map[string]Value{"count": Int(10)})
		m := NewSetMutation(key, map[string]Value{"count": Int(999)}, NoPrecondition(),
			FieldTransform{Path: NewFieldPath("count"), Op: IncrementOp(Int(1))})

		got := m.ApplyToLocalView(base, now)

		v, _ := got.Field(NewFieldPath("count"))
		assert.True(t, Equal(Int(11), v))
	})
}

func TestPatchMutation_ApplyToLocalView(t *testing.T) {
	key := testKey()
	now := time.Unix(100, 0)

	t.Run("updates only masked fields", func(t *testing.T) {
		base := NewFoundDocument(key, MinVersion, map[string]Value{"a": Int(1), "b": Int(2)})
		m := NewPatchMutation(key, map[string]Value{"b": Int(20)}, NewFieldMask(NewFieldPath("b")), NoPrecondition())

		got := m.ApplyToLocalView(base, now)

		a, _ := got.Field(NewFieldPath("a"))
		b, _ := got.Field(NewFieldPath("b"))
		assert.True(t, Equal(Int(1), a))
		assert.True(t, Equal(Int(20), b))
	})

	t.Run("a masked path absent from the value deletes the field", func(t *testing.T) {
		base := NewFoundDocument(key, MinVersion, map[string]Value{"a": Int(1), "b": Int(2)})
		m := NewPatchMutation(key, map[string]Value{}, NewFieldMask(NewFieldPath("b")), NoPrecondition())

		got := m.ApplyToLocalView(base, now)

		_, ok := got.Field(NewFieldPath("b"))
		assert.False(t, ok)
	})

	t.Run("patching a nonexistent document creates one with only the masked fields", func(t *testing.T) {
		base := NewNoDocument(key, MinVersion)
		m := NewPatchMutation(key, map[string]Value{"a": Int(1)}, NewFieldMask(NewFieldPath("a")), NoPrecondition())

		got := m.ApplyToLocalView(base, now)

		assert.True(t, got.Exists())
		v, _ := got.Field(NewFieldPath("a"))
		assert.True(t, Equal(Int(1), v))
	})
}

func TestDeleteMutation_ApplyToLocalView(t *testing.T) {
	key := testKey()
	base := NewFoundDocument(key, MinVersion, map[string]Value{"a": Int(1)})
	m := NewDeleteMutation(key, NoPrecondition())

	got := m.ApplyToLocalView(base, time.Unix(0, 0))

	assert.True(t, got.IsNoDocument())
	assert.True(t, got.HasLocalMutations())
}

func TestMutation_ApplyToRemoteDocument(t *testing.T) {
	key := testKey()
	version := SnapshotVersion{Timestamp{Seconds: 5}}

	t.Run("failed precondition yields an unknown document", func(t *testing.T) {
		base := NewNoDocument(key, MinVersion)
		m := NewSetMutation(key, map[string]Value{"a": Int(1)}, ExistsPrecondition(true))

		got := m.ApplyToRemoteDocument(base, MutationResult{Version: version})

		assert.True(t, got.IsUnknownDocument())
	})

	t.Run("set applies server transform results verbatim", func(t *testing.T) {
		base := NewFoundDocument(key, MinVersion, map[string]Value{"count": Int(1)})
		m := NewSetMutation(key, map[string]Value{"count": Int(0)}, NoPrecondition(),
			FieldTransform{Path: NewFieldPath("count"), Op: IncrementOp(Int(1))})

		got := m.ApplyToRemoteDocument(base, MutationResult{Version: version, TransformResults: []Value{Int(42)}})

		v, _ := got.Field(NewFieldPath("count"))
		assert.True(t, Equal(Int(42), v))
		assert.True(t, got.HasCommittedMutations())
	})

	t.Run("delete with satisfied precondition yields no document", func(t *testing.T) {
		base := NewFoundDocument(key, MinVersion, nil)
		m := NewDeleteMutation(key, NoPrecondition())

		got := m.ApplyToRemoteDocument(base, MutationResult{Version: version})

		assert.True(t, got.IsNoDocument())
	})

	t.Run("verify mutation never changes data, only flags", func(t *testing.T) {
		base := NewFoundDocument(key, MinVersion, map[string]Value{"a": Int(1)})
		m := NewVerifyMutation(key, NoPrecondition())

		got := m.ApplyToRemoteDocument(base, MutationResult{Version: version})

		assert.True(t, got.Equal(base.WithCommittedMutations()))
	})
}

func TestExtractTransformBaseValue(t *testing.T) {
	key := testKey()
	base := NewFoundDocument(key, MinVersion, map[string]Value{"a": Int(1)})

	v, ok := ExtractTransformBaseValue(base, NewFieldPath("a"))
	assert.True(t, ok)
	assert.True(t, Equal(Int(1), v))

	_, ok = ExtractTransformBaseValue(base, NewFieldPath("missing"))
	assert.False(t, ok)
}
