package model

// FieldMask is an unordered set of field paths. Patch mutations use it to
// scope which fields a write touches; RecalculateAndSaveOverlays (local
// package) accumulates one per document key while replaying the mutation
// queue.
type FieldMask struct {
	paths []FieldPath
}

// NewFieldMask builds a mask from the given paths, removing duplicates.
func NewFieldMask(paths ...FieldPath) FieldMask {
	m := FieldMask{}
	for _, p := range paths {
		m = m.Add(p)
	}

	return m
}

// Add returns a mask with p included, or the receiver unchanged if p is
// already present.
func (m FieldMask) Add(p FieldPath) FieldMask {
	if m.Contains(p) {
		return m
	}

	next := make([]FieldPath, len(m.paths)+1)
	copy(next, m.paths)
	next[len(m.paths)] = p

	return FieldMask{paths: next}
}

// Union returns a mask containing the paths of both masks.
func (m FieldMask) Union(other FieldMask) FieldMask {
	out := m
	for _, p := range other.paths {
		out = out.Add(p)
	}

	return out
}

// Contains reports whether p is in the mask.
func (m FieldMask) Contains(p FieldPath) bool {
	for _, existing := range m.paths {
		if existing.Equal(p) {
			return true
		}
	}

	return false
}

// Paths returns a copy of the mask's field paths.
func (m FieldMask) Paths() []FieldPath {
	out := make([]FieldPath, len(m.paths))
	copy(out, m.paths)

	return out
}

// IsEmpty reports whether the mask has no paths.
func (m FieldMask) IsEmpty() bool {
	return len(m.paths) == 0
}
