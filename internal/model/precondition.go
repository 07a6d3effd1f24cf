package model

// PreconditionKind discriminates the three Precondition variants.
type PreconditionKind uint8

const (
	// PreconditionNone always holds.
	PreconditionNone PreconditionKind = iota
	// PreconditionExists holds iff the document's existence matches Exists.
	PreconditionExists
	// PreconditionUpdateTime holds iff the document is a FoundDocument at
	// exactly UpdateTime.
	PreconditionUpdateTime
)

// Precondition gates whether a mutation is valid for a given document
// state, checked at commit time (spec §3).
type Precondition struct {
	kind       PreconditionKind
	exists     bool
	updateTime SnapshotVersion
}

// NoPrecondition returns the always-valid precondition.
func NoPrecondition() Precondition { return Precondition{kind: PreconditionNone} }

// ExistsPrecondition requires the document's existence to match exists.
func ExistsPrecondition(exists bool) Precondition {
	return Precondition{kind: PreconditionExists, exists: exists}
}

// UpdateTimePrecondition requires the document to be a FoundDocument at
// exactly v.
func UpdateTimePrecondition(v SnapshotVersion) Precondition {
	return Precondition{kind: PreconditionUpdateTime, updateTime: v}
}

// Kind returns the precondition's variant.
func (p Precondition) Kind() PreconditionKind { return p.kind }

// IsNone reports whether this is the always-valid precondition.
func (p Precondition) IsNone() bool { return p.kind == PreconditionNone }

// ExistsValue returns the required existence state. Only meaningful when
// Kind() == PreconditionExists.
func (p Precondition) ExistsValue() bool { return p.exists }

// UpdateTime returns the required version. Only meaningful when
// Kind() == PreconditionUpdateTime.
func (p Precondition) UpdateTime() SnapshotVersion { return p.updateTime }

// IsValidFor reports whether doc satisfies the precondition.
func (p Precondition) IsValidFor(doc Document) bool {
	switch p.kind {
	case PreconditionNone:
		return true
	case PreconditionExists:
		return doc.Exists() == p.exists
	case PreconditionUpdateTime:
		return doc.Exists() && doc.Version().Compare(p.updateTime) == 0
	default:
		return false
	}
}
