package core

// ToDNF normalizes q's filters to disjunctive normal form and returns one
// Query per DNF term, each otherwise identical to q (spec §4.1): flatten
// nested same-operator composites, expand `in` into an OR of `==`, then
// distribute AND over OR. The union of the returned queries' results
// matches the original query.
func (q Query) ToDNF() []Query {
	var root Filter
	if len(q.Filters) == 1 {
		root = q.Filters[0]
	} else if len(q.Filters) > 1 {
		root = NewAndFilter(toFilterSlice(q.Filters)...)
	}

	if root == nil {
		return []Query{q}
	}

	terms := dnfTerms(expandIn(root))

	out := make([]Query, len(terms))
	for i, term := range terms {
		next := q
		next.Filters = flattenTopLevelAnd(term)
		out[i] = next
	}

	return out
}

func toFilterSlice(fs []Filter) []Filter {
	out := make([]Filter, len(fs))
	copy(out, fs)

	return out
}

// expandIn rewrites every `in` FieldFilter into an OR of `==` FieldFilters,
// one per element of its rhs array, recursing into composite children.
func expandIn(f Filter) Filter {
	switch v := f.(type) {
	case FieldFilter:
		if v.Op != OpIn {
			return v
		}

		elements := v.Value.AsArray()
		children := make([]Filter, len(elements))

		for i, el := range elements {
			children[i] = NewFieldFilter(v.Path, OpEqual, el)
		}

		return NewOrFilter(children...)

	case CompositeFilter:
		children := make([]Filter, len(v.Children))
		for i, child := range v.Children {
			children[i] = expandIn(child)
		}

		return flattenComposite(CompositeFilter{Op: v.Op, Children: children})

	default:
		return f
	}
}

// flattenComposite merges a composite's children that are themselves
// composites with the same operator into the parent's child list.
func flattenComposite(c CompositeFilter) CompositeFilter {
	var flat []Filter

	for _, child := range c.Children {
		if cc, ok := child.(CompositeFilter); ok && cc.Op == c.Op {
			flat = append(flat, flattenComposite(cc).Children...)
		} else {
			flat = append(flat, child)
		}
	}

	return CompositeFilter{Op: c.Op, Children: flat}
}

// dnfTerms returns the flat list of AND-clauses whose OR forms f. A single
// non-composite or AND-only filter is its own one-element DNF.
func dnfTerms(f Filter) []Filter {
	switch v := f.(type) {
	case FieldFilter:
		return []Filter{v}

	case CompositeFilter:
		if v.Op == CompositeOr {
			var terms []Filter
			for _, child := range v.Children {
				terms = append(terms, dnfTerms(child)...)
			}

			return terms
		}

		// AND: distribute by combining the cross product of each child's
		// own DNF terms.
		return distributeAnd(v.Children)

	default:
		return []Filter{f}
	}
}

// distributeAnd computes the cross product of each child's DNF terms,
// AND-combining one choice from every child per output term.
func distributeAnd(children []Filter) []Filter {
	combos := [][]Filter{{}}

	for _, child := range children {
		childTerms := dnfTerms(child)

		var next [][]Filter

		for _, combo := range combos {
			for _, term := range childTerms {
				extended := make([]Filter, len(combo)+1)
				copy(extended, combo)
				extended[len(combo)] = term

				next = append(next, extended)
			}
		}

		combos = next
	}

	out := make([]Filter, len(combos))
	for i, combo := range combos {
		out[i] = flattenComposite(CompositeFilter{Op: CompositeAnd, Children: combo})
	}

	return out
}

// flattenTopLevelAnd returns a term's top-level AND children as a flat
// filter list (the shape Query.Filters expects: an implicit AND of its
// elements), or a single-element slice if the term isn't a composite.
func flattenTopLevelAnd(term Filter) []Filter {
	if c, ok := term.(CompositeFilter); ok && c.Op == CompositeAnd {
		return c.Children
	}

	return []Filter{term}
}
