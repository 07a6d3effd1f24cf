package core

import "github.com/tonimelisma/firedoc/internal/model"

// Direction is a sort direction.
type Direction uint8

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}

	return "asc"
}

// reversed returns the opposite direction, used by limit-to-last inversion.
func (d Direction) reversed() Direction {
	if d == Descending {
		return Ascending
	}

	return Descending
}

// OrderBy pairs a field path with a sort direction.
type OrderBy struct {
	Path      model.FieldPath
	Direction Direction
}

// compare orders a and b per this OrderBy's direction.
func (ob OrderBy) compare(a, b model.Value) int {
	c := model.CompareValues(a, b)
	if ob.Direction == Descending {
		return -c
	}

	return c
}
