package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// KeyFieldName is the reserved field path segment denoting the document key
// itself. Queries may filter and order by it like any other field.
const KeyFieldName = "__name__"

// simpleFieldSegment matches segments that never need backtick-quoting in
// FieldPath's canonical server form.
func isSimpleFieldSegment(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}

	return true
}

// normalizeSegment applies NFC normalization so that byte-wise comparisons
// of path segments (ResourcePath.Compare, and through it Reference
// ordering) are stable across unicode-equivalent encodings of the same
// logical name.
func normalizeSegment(s string) string {
	return norm.NFC.String(s)
}

// FieldPath is an ordered, non-empty sequence of field name segments
// identifying a location within a document's data. The zero value is the
// empty path (valid only as an internal building block, never a real
// field reference).
type FieldPath struct {
	segments []string
}

// NewFieldPath builds a FieldPath from already-split segments. Each segment
// is NFC-normalized so comparisons are unicode-stable.
func NewFieldPath(segments ...string) FieldPath {
	normalized := make([]string, len(segments))
	for i, s := range segments {
		normalized[i] = normalizeSegment(s)
	}

	return FieldPath{segments: normalized}
}

// KeyFieldPath returns the reserved path denoting the document key.
func KeyFieldPath() FieldPath {
	return FieldPath{segments: []string{KeyFieldName}}
}

// IsKeyField reports whether this path is the reserved __name__ path.
func (p FieldPath) IsKeyField() bool {
	return len(p.segments) == 1 && p.segments[0] == KeyFieldName
}

// Len returns the number of segments.
func (p FieldPath) Len() int {
	return len(p.segments)
}

// IsEmpty reports whether the path has no segments.
func (p FieldPath) IsEmpty() bool {
	return len(p.segments) == 0
}

// FirstSegment returns the first segment. Panics if the path is empty.
func (p FieldPath) FirstSegment() string {
	return p.segments[0]
}

// PopFirst returns the path with its first segment removed.
func (p FieldPath) PopFirst() FieldPath {
	if len(p.segments) == 0 {
		return p
	}

	return FieldPath{segments: p.segments[1:]}
}

// Append returns a new FieldPath with seg appended.
func (p FieldPath) Append(seg string) FieldPath {
	next := make([]string, len(p.segments)+1)
	copy(next, p.segments)
	next[len(p.segments)] = normalizeSegment(seg)

	return FieldPath{segments: next}
}

// Segments returns a copy of the underlying segments.
func (p FieldPath) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)

	return out
}

// Equal reports whether two paths have identical segments.
func (p FieldPath) Equal(other FieldPath) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}

	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}

	return true
}

// CanonicalString renders the server wire format: dot-separated segments,
// with any segment containing non-identifier characters backtick-quoted.
func (p FieldPath) CanonicalString() string {
	parts := make([]string, len(p.segments))
	for i, s := range p.segments {
		if isSimpleFieldSegment(s) {
			parts[i] = s
		} else {
			parts[i] = "`" + strings.ReplaceAll(s, "`", "\\`") + "`"
		}
	}

	return strings.Join(parts, ".")
}

// ResourcePath is an ordered sequence of segments locating a document or
// collection relative to the documents root. An even-length path names a
// document; an odd-length path names a collection.
type ResourcePath struct {
	segments []string
}

// NewResourcePath builds a ResourcePath from already-split segments.
func NewResourcePath(segments ...string) ResourcePath {
	normalized := make([]string, len(segments))
	for i, s := range segments {
		normalized[i] = normalizeSegment(s)
	}

	return ResourcePath{segments: normalized}
}

// ResourcePathFromString splits a "/"-delimited string into a ResourcePath.
func ResourcePathFromString(s string) ResourcePath {
	s = strings.Trim(s, "/")
	if s == "" {
		return ResourcePath{}
	}

	return NewResourcePath(strings.Split(s, "/")...)
}

// Len returns the number of segments.
func (p ResourcePath) Len() int {
	return len(p.segments)
}

// IsDocument reports whether the path has even, non-zero length.
func (p ResourcePath) IsDocument() bool {
	return len(p.segments) > 0 && len(p.segments)%2 == 0
}

// IsCollection reports whether the path has odd length.
func (p ResourcePath) IsCollection() bool {
	return len(p.segments)%2 == 1
}

// LastSegment returns the final segment. Panics if the path is empty.
func (p ResourcePath) LastSegment() string {
	return p.segments[len(p.segments)-1]
}

// Parent returns the path with its last segment removed, and false if the
// path is already empty.
func (p ResourcePath) Parent() (ResourcePath, bool) {
	if len(p.segments) == 0 {
		return ResourcePath{}, false
	}

	return ResourcePath{segments: p.segments[:len(p.segments)-1]}, true
}

// Append returns a new ResourcePath with seg appended.
func (p ResourcePath) Append(seg string) ResourcePath {
	next := make([]string, len(p.segments)+1)
	copy(next, p.segments)
	next[len(p.segments)] = normalizeSegment(seg)

	return ResourcePath{segments: next}
}

// AppendPath returns a new ResourcePath with other's segments appended.
func (p ResourcePath) AppendPath(other ResourcePath) ResourcePath {
	next := make([]string, 0, len(p.segments)+len(other.segments))
	next = append(next, p.segments...)
	next = append(next, other.segments...)

	return ResourcePath{segments: next}
}

// IsPrefixOf reports whether p is a prefix of other (including p == other).
func (p ResourcePath) IsPrefixOf(other ResourcePath) bool {
	if len(p.segments) > len(other.segments) {
		return false
	}

	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}

	return true
}

// Segments returns a copy of the underlying segments.
func (p ResourcePath) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)

	return out
}

// Equal reports whether two paths have identical segments.
func (p ResourcePath) Equal(other ResourcePath) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}

	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}

	return true
}

// Compare orders two ResourcePaths lexicographically, segment by segment,
// with a shorter prefix sorting before a longer path that extends it. Used
// for Reference value ordering (spec §3) and for persistence key ordering.
func (p ResourcePath) Compare(other ResourcePath) int {
	n := min(len(p.segments), len(other.segments))
	for i := 0; i < n; i++ {
		if c := strings.Compare(p.segments[i], other.segments[i]); c != 0 {
			return c
		}
	}

	switch {
	case len(p.segments) < len(other.segments):
		return -1
	case len(p.segments) > len(other.segments):
		return 1
	default:
		return 0
	}
}

// String renders the path "/"-joined, with no leading or trailing slash.
func (p ResourcePath) String() string {
	return strings.Join(p.segments, "/")
}

// DatabaseRootedString renders the full database-rooted resource name used
// on the wire: "projects/<project>/databases/<database>/documents/<path>".
func DatabaseRootedString(projectID, databaseID string, p ResourcePath) string {
	root := fmt.Sprintf("projects/%s/databases/%s/documents", projectID, databaseID)
	if p.Len() == 0 {
		return root
	}

	return root + "/" + p.String()
}

// DocumentKey is an immutable, hashable identifier for exactly one document
// location. It wraps an even-length ResourcePath; constructors reject any
// other shape.
type DocumentKey struct {
	path ResourcePath
}

// NewDocumentKey validates that path is even-length and wraps it.
func NewDocumentKey(path ResourcePath) (DocumentKey, error) {
	if !path.IsDocument() {
		return DocumentKey{}, fmt.Errorf("model: %q is not a valid document path (must have even, non-zero length)", path.String())
	}

	return DocumentKey{path: path}, nil
}

// MustDocumentKey builds a DocumentKey from segments, panicking on an
// invalid (odd-length) path. Intended for tests and static construction.
func MustDocumentKey(segments ...string) DocumentKey {
	key, err := NewDocumentKey(NewResourcePath(segments...))
	if err != nil {
		panic(err)
	}

	return key
}

// DocumentKeyFromString parses a "/"-delimited path string into a key.
func DocumentKeyFromString(s string) (DocumentKey, error) {
	return NewDocumentKey(ResourcePathFromString(s))
}

// Path returns the underlying document-rooted resource path.
func (k DocumentKey) Path() ResourcePath {
	return k.path
}

// CollectionPath returns the path of the collection containing this
// document (the key's path with the last segment removed).
func (k DocumentKey) CollectionPath() ResourcePath {
	parent, _ := k.path.Parent()
	return parent
}

// CollectionGroup returns the id of the collection this document belongs
// to (the second-to-last path segment).
func (k DocumentKey) CollectionGroup() string {
	segs := k.path.Segments()
	if len(segs) < 2 {
		return ""
	}

	return segs[len(segs)-2]
}

// IsZero reports whether this is the zero-value DocumentKey.
func (k DocumentKey) IsZero() bool {
	return k.path.Len() == 0
}

// Compare orders two DocumentKeys by their resource paths.
func (k DocumentKey) Compare(other DocumentKey) int {
	return k.path.Compare(other.path)
}

// Equal reports whether two keys reference the same document.
func (k DocumentKey) Equal(other DocumentKey) bool {
	return k.path.Equal(other.path)
}

// String returns the canonical "/"-joined path, used as a map key and for
// persistence byte-lexicographic ordering.
func (k DocumentKey) String() string {
	return k.path.String()
}
