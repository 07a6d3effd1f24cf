package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldMask(t *testing.T) {
	t.Run("dedupes on construction", func(t *testing.T) {
		m := NewFieldMask(NewFieldPath("a"), NewFieldPath("a"), NewFieldPath("b"))
		assert.Len(t, m.Paths(), 2)
	})

	t.Run("contains", func(t *testing.T) {
		m := NewFieldMask(NewFieldPath("a", "b"))
		assert.True(t, m.Contains(NewFieldPath("a", "b")))
		assert.False(t, m.Contains(NewFieldPath("a", "c")))
	})

	t.Run("union merges without duplicates", func(t *testing.T) {
		m1 := NewFieldMask(NewFieldPath("a"))
		m2 := NewFieldMask(NewFieldPath("a"), NewFieldPath("b"))

		merged := m1.Union(m2)
		assert.Len(t, merged.Paths(), 2)
	})

	t.Run("empty mask", func(t *testing.T) {
		assert.True(t, NewFieldMask().IsEmpty())
		assert.False(t, NewFieldMask(NewFieldPath("a")).IsEmpty())
	})
}
