package model

// DocumentKind is the closed set of states a document key can resolve to
// (spec §3 "Document"). Implemented as one struct with a kind tag rather
// than four subclasses — see the design notes on eliminating the source's
// class hierarchy.
type DocumentKind uint8

const (
	// KindInvalidDocument is a structural placeholder for cache misses. It
	// is never surfaced to users.
	KindInvalidDocument DocumentKind = iota
	// KindFoundDocument existed at Version with the given object data.
	KindFoundDocument
	// KindNoDocument is known to not exist at Version.
	KindNoDocument
	// KindUnknownDocument: the server acknowledged a mutation but the
	// local cache could not yet determine post-state.
	KindUnknownDocument
)

// Document is every possible resolution of a document key. It carries two
// independent flags — HasLocalMutations and HasCommittedMutations — that
// track pending-write state across the mutation pipeline independent of
// which of the four kinds the document currently is.
type Document struct {
	key     DocumentKey
	kind    DocumentKind
	version SnapshotVersion
	data    map[string]Value

	hasLocalMutations     bool
	hasCommittedMutations bool
}

// InvalidDocument returns the structural placeholder for key.
func InvalidDocument(key DocumentKey) Document {
	return Document{key: key, kind: KindInvalidDocument}
}

// NewFoundDocument returns a document known to exist at version with data.
func NewFoundDocument(key DocumentKey, version SnapshotVersion, data map[string]Value) Document {
	return Document{key: key, kind: KindFoundDocument, version: version, data: cloneShallow(data)}
}

// NewNoDocument returns a document known to not exist at version.
func NewNoDocument(key DocumentKey, version SnapshotVersion) Document {
	return Document{key: key, kind: KindNoDocument, version: version}
}

// NewUnknownDocument returns a document whose post-ack state is pending
// reconciliation by a later remote event.
func NewUnknownDocument(key DocumentKey, version SnapshotVersion) Document {
	return Document{key: key, kind: KindUnknownDocument, version: version, hasCommittedMutations: true}
}

// Key returns the document's key.
func (d Document) Key() DocumentKey { return d.key }

// DocKind returns the document's state.
func (d Document) DocKind() DocumentKind { return d.kind }

// Version returns the document's server-confirmed version. For
// KindFoundDocument created locally (NoDocument -> FoundDocument via an
// uncommitted Set) this stays MinVersion until the server confirms, per
// spec §3's version-monotonicity invariant.
func (d Document) Version() SnapshotVersion { return d.version }

// Exists reports whether the document is known to exist (KindFoundDocument).
func (d Document) Exists() bool { return d.kind == KindFoundDocument }

// IsNoDocument reports whether the document is known to not exist.
func (d Document) IsNoDocument() bool { return d.kind == KindNoDocument }

// IsUnknownDocument reports whether post-ack state is still pending.
func (d Document) IsUnknownDocument() bool { return d.kind == KindUnknownDocument }

// IsValidDocument reports whether this is anything other than the
// structural placeholder.
func (d Document) IsValidDocument() bool { return d.kind != KindInvalidDocument }

// Data returns the document's field data. Empty for anything but
// KindFoundDocument.
func (d Document) Data() map[string]Value {
	if d.data == nil {
		return nil
	}

	return cloneShallow(d.data)
}

// Field looks up path within the document, special-casing __name__ so it
// always resolves to a Reference value over the document's own key.
func (d Document) Field(path FieldPath) (Value, bool) {
	if path.IsKeyField() {
		return Ref(Reference{Key: d.key}), true
	}

	if d.kind != KindFoundDocument {
		return Value{}, false
	}

	return GetField(d.data, path)
}

// HasLocalMutations reports whether an uncommitted local write affects
// this document.
func (d Document) HasLocalMutations() bool { return d.hasLocalMutations }

// HasCommittedMutations reports whether a write was acknowledged by the
// server but the remote-event reconciliation for it is still pending.
func (d Document) HasCommittedMutations() bool { return d.hasCommittedMutations }

// HasPendingWrites reports whether either mutation flag is set.
func (d Document) HasPendingWrites() bool {
	return d.hasLocalMutations || d.hasCommittedMutations
}

// WithLocalMutations returns a copy flagged as carrying an uncommitted
// local write.
func (d Document) WithLocalMutations() Document {
	d.hasLocalMutations = true
	return d
}

// WithCommittedMutations returns a copy flagged as carrying an
// acknowledged-but-unreconciled write.
func (d Document) WithCommittedMutations() Document {
	d.hasCommittedMutations = true
	return d
}

// WithoutMutationFlags returns a copy with both pending-write flags
// cleared, used once a remote event reconciles a document's true state.
func (d Document) WithoutMutationFlags() Document {
	d.hasLocalMutations = false
	d.hasCommittedMutations = false

	return d
}

// WithData returns a copy of a FoundDocument with its data replaced.
func (d Document) WithData(data map[string]Value) Document {
	d.data = cloneShallow(data)
	return d
}

// Equal reports whether two documents have identical kind, version, data
// and mutation flags.
func (d Document) Equal(o Document) bool {
	return d.key.Equal(o.key) &&
		d.kind == o.kind &&
		d.version.Compare(o.version) == 0 &&
		EqualObjects(d.data, o.data) &&
		d.hasLocalMutations == o.hasLocalMutations &&
		d.hasCommittedMutations == o.hasCommittedMutations
}
