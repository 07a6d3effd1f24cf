package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrecondition_IsValidFor(t *testing.T) {
	key := testKey()
	found := NewFoundDocument(key, SnapshotVersion{Timestamp{Seconds: 5}}, nil)
	absent := NewNoDocument(key, MinVersion)

	t.Run("none always holds", func(t *testing.T) {
		assert.True(t, NoPrecondition().IsValidFor(found))
		assert.True(t, NoPrecondition().IsValidFor(absent))
	})

	t.Run("exists precondition matches existence", func(t *testing.T) {
		assert.True(t, ExistsPrecondition(true).IsValidFor(found))
		assert.False(t, ExistsPrecondition(true).IsValidFor(absent))
		assert.True(t, ExistsPrecondition(false).IsValidFor(absent))
	})

	t.Run("update time precondition requires exact version match", func(t *testing.T) {
		want := SnapshotVersion{Timestamp{Seconds: 5}}
		other := SnapshotVersion{Timestamp{Seconds: 6}}

		assert.True(t, UpdateTimePrecondition(want).IsValidFor(found))
		assert.False(t, UpdateTimePrecondition(other).IsValidFor(found))
		assert.False(t, UpdateTimePrecondition(want).IsValidFor(absent))
	})
}
