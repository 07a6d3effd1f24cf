package core

import (
	"fmt"
	"strings"

	"github.com/tonimelisma/firedoc/internal/model"
)

// Filter evaluates whether a document satisfies a predicate and renders a
// stable, order-sensitive canonical fragment for target identity.
type Filter interface {
	Matches(doc model.Document) bool
	canonicalString() string
}

// FieldFilter compares one document field against a fixed value.
type FieldFilter struct {
	Path     model.FieldPath
	Op       Operator
	Value    model.Value
	IsKeyRef bool // true when Path is __name__: comparisons are by DocumentKey, not Value
}

// NewFieldFilter builds a field filter. Key-field filters (Path == __name__)
// require Value to carry a Reference (or an Array of References for
// in/not-in), matching spec §4.1's key-field comparison rule.
func NewFieldFilter(path model.FieldPath, op Operator, value model.Value) FieldFilter {
	return FieldFilter{Path: path, Op: op, Value: value, IsKeyRef: path.IsKeyField()}
}

// Matches implements the per-operator semantics in spec §4.1.
func (f FieldFilter) Matches(doc model.Document) bool {
	fieldValue, present := doc.Field(f.Path)

	switch f.Op {
	case OpNotEqual:
		return present && !model.Equal(fieldValue, f.Value)
	case OpIn:
		return present && f.matchesAnyOf(fieldValue, f.Value.AsArray())
	case OpNotIn:
		return present && f.notInMatches(fieldValue)
	case OpArrayContains:
		return present && f.arrayContains(fieldValue)
	case OpArrayContainsAny:
		return present && f.arrayContainsAny(fieldValue)
	default:
		return present && f.matchesComparison(fieldValue)
	}
}

// matchesComparison handles <, <=, ==, >=, >. A NaN rhs under == only
// matches a NaN field; a null rhs under == only matches a null field (spec
// §4.1) — both already fall out of CompareValues' total order plus a
// same-type-family guard, since cross-type comparisons never count as
// equal or ordered here.
func (f FieldFilter) matchesComparison(fieldValue model.Value) bool {
	if !sameComparisonFamily(fieldValue, f.Value) {
		return false
	}

	c := model.CompareValues(fieldValue, f.Value)

	switch f.Op {
	case OpLessThan:
		return c < 0
	case OpLessThanOrEqual:
		return c <= 0
	case OpEqual:
		return c == 0 && model.Equal(fieldValue, f.Value)
	case OpGreaterThanOrEqual:
		return c >= 0
	case OpGreaterThan:
		return c > 0
	default:
		return false
	}
}

// sameComparisonFamily reports whether a and b are cross-comparable: equal
// Kind, or both Numbers, or both key references compared as DocumentKeys.
func sameComparisonFamily(a, b model.Value) bool {
	if a.Kind() == b.Kind() {
		return true
	}

	return a.IsNumber() && b.IsNumber()
}

func (f FieldFilter) matchesAnyOf(fieldValue model.Value, candidates []model.Value) bool {
	for _, c := range candidates {
		if sameComparisonFamily(fieldValue, c) && model.Equal(fieldValue, c) {
			return true
		}
	}

	return false
}

// notInMatches excludes missing fields (handled by the present check in
// Matches), and excludes null/NaN field values unless explicitly listed in
// the rhs array (spec §4.1).
func (f FieldFilter) notInMatches(fieldValue model.Value) bool {
	candidates := f.Value.AsArray()

	if fieldValue.IsNull() || fieldValue.IsNaN() {
		return f.matchesAnyOf(fieldValue, candidates)
	}

	return !f.matchesAnyOf(fieldValue, candidates)
}

func (f FieldFilter) arrayContains(fieldValue model.Value) bool {
	if fieldValue.Kind() != model.KindArray {
		return false
	}

	for _, el := range fieldValue.AsArray() {
		if model.Equal(el, f.Value) {
			return true
		}
	}

	return false
}

func (f FieldFilter) arrayContainsAny(fieldValue model.Value) bool {
	if fieldValue.Kind() != model.KindArray {
		return false
	}

	for _, want := range f.Value.AsArray() {
		for _, el := range fieldValue.AsArray() {
			if model.Equal(el, want) {
				return true
			}
		}
	}

	return false
}

func (f FieldFilter) canonicalString() string {
	return fmt.Sprintf("%s%s%s", f.Path.CanonicalString(), f.Op.String(), canonicalValueString(f.Value))
}

// CompositeOperator discriminates AND/OR composition.
type CompositeOperator uint8

const (
	CompositeAnd CompositeOperator = iota
	CompositeOr
)

// CompositeFilter combines child filters with AND or OR semantics, matched
// via a short-circuiting cascade in child order — the same evaluate-each-
// layer-until-one-fails style as a filter pipeline, just over Filter values
// instead of filesystem-path predicates.
type CompositeFilter struct {
	Op       CompositeOperator
	Children []Filter
}

// NewAndFilter builds a CompositeFilter requiring every child to match.
func NewAndFilter(children ...Filter) CompositeFilter {
	return CompositeFilter{Op: CompositeAnd, Children: children}
}

// NewOrFilter builds a CompositeFilter requiring any child to match.
func NewOrFilter(children ...Filter) CompositeFilter {
	return CompositeFilter{Op: CompositeOr, Children: children}
}

// Matches evaluates the composite cascade: AND short-circuits on the first
// non-matching child, OR short-circuits on the first matching one.
func (c CompositeFilter) Matches(doc model.Document) bool {
	if c.Op == CompositeOr {
		for _, child := range c.Children {
			if child.Matches(doc) {
				return true
			}
		}

		return false
	}

	for _, child := range c.Children {
		if !child.Matches(doc) {
			return false
		}
	}

	return true
}

// IsAnd reports whether this is an AND composite.
func (c CompositeFilter) IsAnd() bool { return c.Op == CompositeAnd }

// IsOr reports whether this is an OR composite.
func (c CompositeFilter) IsOr() bool { return c.Op == CompositeOr }

func (c CompositeFilter) canonicalString() string {
	parts := make([]string, len(c.Children))
	for i, child := range c.Children {
		parts[i] = child.canonicalString()
	}

	joiner := "&&"
	if c.Op == CompositeOr {
		joiner = "||"
	}

	return "(" + strings.Join(parts, joiner) + ")"
}
