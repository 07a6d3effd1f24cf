package core

import "github.com/tonimelisma/firedoc/internal/model"

// LimitType selects which end of the sorted result set a Query's limit
// keeps: the first N (default) or the last N.
type LimitType uint8

const (
	LimitToFirst LimitType = iota
	LimitToLast
)

// Query is a superset of Target: it additionally records the user's
// explicit order-bys (before normalization) and a limit type (spec §3
// Query). LocalStore, LocalDocumentsView and QueryEngine all work in terms
// of Target; Query exists at the boundary where listener intent is
// expressed and compiled down.
type Query struct {
	CollectionPath  model.ResourcePath
	CollectionGroup string

	Filters         []Filter
	ExplicitOrderBy []OrderBy
	Limit           int32
	LimitType       LimitType

	StartAt *Bound
	EndAt   *Bound
}

// ToTarget compiles the query to its canonical Target form: explicit
// order-bys are extended per spec §3 rule (a)-(c), and limit-to-last
// inverts every order-by direction and swaps the start/end cursors so a
// single ascending-scan-plus-limit execution strategy serves both limit
// types uniformly.
func (q Query) ToTarget() Target {
	orderBys := q.normalizedOrderBy()

	startAt, endAt := q.StartAt, q.EndAt
	if q.LimitType == LimitToLast {
		orderBys = invertDirections(orderBys)
		startAt, endAt = endAt, startAt
	}

	return Target{
		CollectionPath:  q.CollectionPath,
		CollectionGroup: q.CollectionGroup,
		Filters:         q.Filters,
		OrderBy:         orderBys,
		Limit:           q.Limit,
		StartAt:         startAt,
		EndAt:           endAt,
	}
}

// normalizedOrderBy implements spec §3's three-step Target order-by
// derivation: explicit order-bys first, then any inequality-filtered field
// not already covered, then __name__ last with the trailing direction (or
// ascending if there were no explicit order-bys).
func (q Query) normalizedOrderBy() []OrderBy {
	out := make([]OrderBy, len(q.ExplicitOrderBy))
	copy(out, q.ExplicitOrderBy)

	for _, path := range q.inequalityFieldPaths() {
		if !containsOrderByPath(out, path) {
			out = append(out, OrderBy{Path: path, Direction: Ascending})
		}
	}

	lastDir := Ascending
	if len(out) > 0 {
		lastDir = out[len(out)-1].Direction
	}

	if !containsOrderByPath(out, model.KeyFieldPath()) {
		out = append(out, OrderBy{Path: model.KeyFieldPath(), Direction: lastDir})
	}

	return out
}

// inequalityFieldPaths walks the filter list, recursing into composite
// filters, and returns each inequality FieldFilter's path once, in first-
// seen order.
func (q Query) inequalityFieldPaths() []model.FieldPath {
	var paths []model.FieldPath

	seen := map[string]bool{}

	var walk func(f Filter)
	walk = func(f Filter) {
		switch v := f.(type) {
		case FieldFilter:
			if v.Op.isInequality() {
				key := v.Path.CanonicalString()
				if !seen[key] {
					seen[key] = true
					paths = append(paths, v.Path)
				}
			}
		case CompositeFilter:
			for _, child := range v.Children {
				walk(child)
			}
		}
	}

	for _, f := range q.Filters {
		walk(f)
	}

	return paths
}

func containsOrderByPath(orderBys []OrderBy, path model.FieldPath) bool {
	for _, ob := range orderBys {
		if ob.Path.Equal(path) {
			return true
		}
	}

	return false
}

func invertDirections(orderBys []OrderBy) []OrderBy {
	out := make([]OrderBy, len(orderBys))
	for i, ob := range orderBys {
		out[i] = OrderBy{Path: ob.Path, Direction: ob.Direction.reversed()}
	}

	return out
}

// Matches implements the four-part predicate in spec §4.1: path match, all
// filters match, every normalized order-by field is present, and the
// document falls within the start/end cursor bounds.
func (q Query) Matches(doc model.Document) bool {
	target := q.ToTarget()
	return target.Matches(doc)
}

// Matches implements Target's half of the predicate — used directly by
// QueryEngine, which operates on Targets rather than Queries once a query
// has been compiled and possibly DNF-expanded.
func (t Target) Matches(doc model.Document) bool {
	if !doc.Exists() {
		return false
	}

	if !t.MatchesPathForDocument(doc.Key()) {
		return false
	}

	for _, f := range t.Filters {
		if !f.Matches(doc) {
			return false
		}
	}

	fields := make([]model.Value, len(t.OrderBy))

	for i, ob := range t.OrderBy {
		v, ok := doc.Field(ob.Path)
		if !ok {
			return false
		}

		fields[i] = v
	}

	if t.StartAt != nil && t.StartAt.SortsBefore(t.OrderBy, fields) {
		return false
	}

	if t.EndAt != nil && t.EndAt.SortsAfter(t.OrderBy, fields) {
		return false
	}

	return true
}
