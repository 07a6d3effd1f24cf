package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tonimelisma/firedoc/internal/model"
)

// CanonicalID renders a deterministic string identity for a Target,
// following the colon/bracket-delimited encoding style of a typed
// canonical-id string (path, then each clause in a fixed tag order) rather
// than a hash — so two equal targets are trivially byte-equal and the id
// remains human-readable in logs and persistence dumps.
//
// Two equal Queries share equal canonical ids; because ToTarget already
// canonicalizes limit-to-last direction inversion, equal Targets derived
// from differently-expressed limit-to-last queries also share equal
// canonical ids (spec §4.1).
func (t Target) CanonicalID() string {
	var b strings.Builder

	if t.IsCollectionGroup() {
		fmt.Fprintf(&b, "group:%s", t.CollectionGroup)
	} else {
		fmt.Fprintf(&b, "path:%s", t.CollectionPath.String())
	}

	for _, f := range t.Filters {
		b.WriteString("|filter:")
		b.WriteString(f.canonicalString())
	}

	for _, ob := range t.OrderBy {
		fmt.Fprintf(&b, "|orderBy:%s %s", ob.Path.CanonicalString(), ob.Direction.String())
	}

	if t.Limit > 0 {
		fmt.Fprintf(&b, "|limit:%d", t.Limit)
	}

	if t.StartAt != nil {
		fmt.Fprintf(&b, "|startAt:%s", canonicalBoundString(*t.StartAt))
	}

	if t.EndAt != nil {
		fmt.Fprintf(&b, "|endAt:%s", canonicalBoundString(*t.EndAt))
	}

	return b.String()
}

func canonicalBoundString(b Bound) string {
	parts := make([]string, len(b.Position))
	for i, v := range b.Position {
		parts[i] = canonicalValueString(v)
	}

	prefix := "before"
	if b.Inclusive {
		prefix = "at"
	}

	return prefix + "[" + strings.Join(parts, ",") + "]"
}

// canonicalValueString renders a Value deterministically for canonical id
// and filter-fragment construction. It is not a wire format: only stable
// uniqueness under Equal matters here.
func canonicalValueString(v model.Value) string {
	switch v.Kind() {
	case model.KindNull:
		return "null"
	case model.KindBoolean:
		return strconv.FormatBool(v.AsBool())
	case model.KindInteger:
		return strconv.FormatInt(v.AsInt64(), 10)
	case model.KindDouble:
		return strconv.FormatFloat(v.AsFloat64(), 'g', -1, 64)
	case model.KindTimestamp:
		ts := v.AsTimestamp()
		return fmt.Sprintf("ts(%d.%09d)", ts.Seconds, ts.Nanos)
	case model.KindServerTimestamp:
		return "serverTimestamp"
	case model.KindString:
		return strconv.Quote(v.AsString())
	case model.KindBytes:
		return fmt.Sprintf("bytes(%x)", v.AsBytes())
	case model.KindReference:
		return "ref(" + v.AsReference().Key.String() + ")"
	case model.KindGeoPoint:
		g := v.AsGeoPoint()
		return fmt.Sprintf("geo(%g,%g)", g.Latitude, g.Longitude)
	case model.KindArray:
		parts := make([]string, len(v.AsArray()))
		for i, el := range v.AsArray() {
			parts[i] = canonicalValueString(el)
		}

		return "[" + strings.Join(parts, ",") + "]"
	case model.KindVector:
		parts := make([]string, len(v.AsVector()))
		for i, c := range v.AsVector() {
			parts[i] = strconv.FormatFloat(c, 'g', -1, 64)
		}

		return "vector[" + strings.Join(parts, ",") + "]"
	case model.KindMap:
		keys := make([]string, 0, len(v.AsMap()))
		for k := range v.AsMap() {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ":" + canonicalValueString(v.AsMap()[k])
		}

		return "{" + strings.Join(parts, ",") + "}"
	default:
		return "?"
	}
}
