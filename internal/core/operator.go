// Package core defines the query and target representation evaluated
// against locally cached documents: field and composite filters, order-by
// normalization, cursor bounds, and the canonical identity used to
// deduplicate and persist targets.
package core

// Operator is one of the ten field-filter comparison operators (spec §4.1).
type Operator uint8

const (
	OpLessThan Operator = iota
	OpLessThanOrEqual
	OpEqual
	OpNotEqual
	OpGreaterThanOrEqual
	OpGreaterThan
	OpArrayContains
	OpIn
	OpArrayContainsAny
	OpNotIn
)

// String renders the operator in its canonical query-language form, used by
// canonical id construction.
func (o Operator) String() string {
	switch o {
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpGreaterThanOrEqual:
		return ">="
	case OpGreaterThan:
		return ">"
	case OpArrayContains:
		return "array-contains"
	case OpIn:
		return "in"
	case OpArrayContainsAny:
		return "array-contains-any"
	case OpNotIn:
		return "not-in"
	default:
		return "unknown"
	}
}

// isInequality reports whether the operator constrains a field to a
// direction-sensitive range, and therefore requires an implicit order-by on
// that field (spec §3 Query normalization rule (b)).
func (o Operator) isInequality() bool {
	switch o {
	case OpLessThan, OpLessThanOrEqual, OpGreaterThanOrEqual, OpGreaterThan, OpNotEqual, OpNotIn:
		return true
	default:
		return false
	}
}
