package model

// Overlay is the single collapsed mutation that represents every pending
// local write against a document key, maintained by DocumentOverlayCache so
// that LocalDocumentsView can rebuild a document's local view without
// replaying the whole mutation queue (spec §4.5).
type Overlay struct {
	Key            DocumentKey
	Mutation       Mutation
	LargestBatchID int64
}

// NewOverlay pairs a collapsed mutation with the id of the newest batch
// that contributed to it.
func NewOverlay(key DocumentKey, mutation Mutation, largestBatchID int64) Overlay {
	return Overlay{Key: key, Mutation: mutation, LargestBatchID: largestBatchID}
}

// IsZero reports whether this is the absent-overlay sentinel.
func (o Overlay) IsZero() bool {
	return o.LargestBatchID == 0 && o.Key.IsZero()
}
