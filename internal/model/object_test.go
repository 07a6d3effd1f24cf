package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSetDeleteField(t *testing.T) {
	data := map[string]Value{
		"name": String("alice"),
		"address": Map(map[string]Value{
			"city": String("metropolis"),
		}),
	}

	t.Run("get top-level field", func(t *testing.T) {
		v, ok := GetField(data, NewFieldPath("name"))
		assert.True(t, ok)
		assert.True(t, Equal(String("alice"), v))
	})

	t.Run("get nested field", func(t *testing.T) {
		v, ok := GetField(data, NewFieldPath("address", "city"))
		assert.True(t, ok)
		assert.True(t, Equal(String("metropolis"), v))
	})

	t.Run("missing field", func(t *testing.T) {
		_, ok := GetField(data, NewFieldPath("missing"))
		assert.False(t, ok)
	})

	t.Run("set creates intermediate maps", func(t *testing.T) {
		out := SetField(data, NewFieldPath("address", "zip"), String("00000"))
		v, ok := GetField(out, NewFieldPath("address", "zip"))
		assert.True(t, ok)
		assert.True(t, Equal(String("00000"), v))

		// original untouched
		_, stillMissing := GetField(data, NewFieldPath("address", "zip"))
		assert.False(t, stillMissing)
	})

	t.Run("delete removes a nested field", func(t *testing.T) {
		out := DeleteField(data, NewFieldPath("address", "city"))
		_, ok := GetField(out, NewFieldPath("address", "city"))
		assert.False(t, ok)
	})

	t.Run("delete on missing path is a no-op", func(t *testing.T) {
		out := DeleteField(data, NewFieldPath("nowhere", "x"))
		assert.True(t, EqualObjects(data, out))
	})
}

func TestEqualObjects(t *testing.T) {
	a := map[string]Value{"x": Int(1)}
	b := map[string]Value{"x": Int(1)}
	c := map[string]Value{"x": Int(2)}

	assert.True(t, EqualObjects(a, b))
	assert.False(t, EqualObjects(a, c))
}
