package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompareValues_TypeOrder(t *testing.T) {
	ordered := []Value{
		Null(),
		Bool(false),
		Int(1),
		TimestampValue(Timestamp{Seconds: 1}),
		PendingServerTimestamp(time.Unix(1, 0), nil),
		String("a"),
		Bytes([]byte{0x01}),
		Ref(Reference{Key: MustDocumentKey("c", "d")}),
		Geo(GeoPoint{Latitude: 1, Longitude: 1}),
		Array(Int(1)),
		Vector(1, 2),
		Map(map[string]Value{"a": Int(1)}),
	}

	for i := range ordered {
		for j := range ordered {
			t.Run("", func(t *testing.T) {
				got := CompareValues(ordered[i], ordered[j])

				switch {
				case i < j:
					assert.Negative(t, got)
				case i > j:
					assert.Positive(t, got)
				default:
					assert.Zero(t, got)
				}
			})
		}
	}
}

func TestCompareValues_Numbers(t *testing.T) {
	t.Run("integer and double cross-comparable", func(t *testing.T) {
		assert.Zero(t, CompareValues(Int(3), Double(3.0)))
		assert.Negative(t, CompareValues(Int(2), Double(3.0)))
		assert.Positive(t, CompareValues(Double(3.5), Int(3)))
	})

	t.Run("NaN sorts before all finite numbers", func(t *testing.T) {
		nan := Double(math.NaN())
		assert.Negative(t, CompareValues(nan, Int(math.MinInt64)))
		assert.Negative(t, CompareValues(nan, Double(math.Inf(-1))))
		assert.Zero(t, CompareValues(nan, Double(math.NaN())))
	})

	t.Run("negative zero equals zero", func(t *testing.T) {
		assert.Zero(t, CompareValues(Double(math.Copysign(0, -1)), Int(0)))
	})
}

func TestCompareValues_Arrays(t *testing.T) {
	t.Run("shorter prefix sorts first", func(t *testing.T) {
		assert.Negative(t, CompareValues(Array(Int(1)), Array(Int(1), Int(2))))
	})

	t.Run("element-wise comparison takes precedence over length", func(t *testing.T) {
		assert.Negative(t, CompareValues(Array(Int(1), Int(9)), Array(Int(2))))
	})
}

func TestCompareValues_Maps(t *testing.T) {
	t.Run("orders by sorted keys then values", func(t *testing.T) {
		a := Map(map[string]Value{"a": Int(1), "b": Int(1)})
		b := Map(map[string]Value{"a": Int(1), "b": Int(2)})
		assert.Negative(t, CompareValues(a, b))
	})

	t.Run("fewer keys sorts first when a prefix", func(t *testing.T) {
		a := Map(map[string]Value{"a": Int(1)})
		b := Map(map[string]Value{"a": Int(1), "b": Int(1)})
		assert.Negative(t, CompareValues(a, b))
	})
}

func TestEqual(t *testing.T) {
	t.Run("NaN equals NaN", func(t *testing.T) {
		assert.True(t, Equal(Double(math.NaN()), Double(math.NaN())))
	})

	t.Run("integer equals equivalent double", func(t *testing.T) {
		assert.True(t, Equal(Int(4), Double(4.0)))
	})

	t.Run("distinct kinds are never equal", func(t *testing.T) {
		assert.False(t, Equal(Int(0), Bool(false)))
		assert.False(t, Equal(Null(), Int(0)))
	})

	t.Run("arrays compare element-wise", func(t *testing.T) {
		assert.True(t, Equal(Array(Int(1), String("x")), Array(Int(1), String("x"))))
		assert.False(t, Equal(Array(Int(1)), Array(Int(1), Int(2))))
	})

	t.Run("maps compare field-wise regardless of key order", func(t *testing.T) {
		a := Map(map[string]Value{"x": Int(1), "y": Int(2)})
		b := Map(map[string]Value{"y": Int(2), "x": Int(1)})
		assert.True(t, Equal(a, b))
	})
}
