package core

import "github.com/tonimelisma/firedoc/internal/model"

// Bound is a cursor position: an ordered list of values corresponding
// prefix-wise to a target's order-by list, plus whether the boundary
// itself is included in the result set.
type Bound struct {
	Position  []model.Value
	Inclusive bool
}

// NewBound builds a Bound from a cursor position.
func NewBound(inclusive bool, position ...model.Value) Bound {
	return Bound{Position: position, Inclusive: inclusive}
}

// SortsBefore reports whether fields, compared under orderBys, sorts before
// this bound's position — used for a start cursor, where a document whose
// fields do NOT sort before the bound is included.
func (b Bound) SortsBefore(orderBys []OrderBy, fields []model.Value) bool {
	c := b.compare(orderBys, fields)
	if b.Inclusive {
		return c < 0
	}

	return c <= 0
}

// SortsAfter reports whether fields, compared under orderBys, sorts after
// this bound's position — used for an end cursor, where a document whose
// fields do NOT sort after the bound is included.
func (b Bound) SortsAfter(orderBys []OrderBy, fields []model.Value) bool {
	c := b.compare(orderBys, fields)
	if b.Inclusive {
		return c > 0
	}

	return c >= 0
}

// compare orders b's position against fields component-wise under orderBys,
// stopping at whichever is shorter (a partial cursor only constrains the
// order-by prefix it names).
func (b Bound) compare(orderBys []OrderBy, fields []model.Value) int {
	n := min(len(b.Position), len(fields))
	n = min(n, len(orderBys))

	for i := 0; i < n; i++ {
		if c := orderBys[i].compare(fields[i], b.Position[i]); c != 0 {
			return c
		}
	}

	return 0
}
