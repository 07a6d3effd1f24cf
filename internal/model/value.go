package model

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Kind discriminates the tagged Value union. A closed set, matched
// exhaustively everywhere a Value is inspected — there are no subclasses
// to add later, so a switch with no default is the expected style.
type Kind uint8

// The complete set of value kinds (spec §3).
const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindDouble
	KindTimestamp
	KindServerTimestamp
	KindString
	KindBytes
	KindReference
	KindGeoPoint
	KindArray
	KindVector
	KindMap
)

// TypeOrder is the fixed total ordering of value types used by CompareValues.
// Integer and Double share the Number slot so they remain cross-comparable.
type TypeOrder int

// TypeOrder slots, low to high (spec §3 "Type ordering").
const (
	TypeOrderNull TypeOrder = iota
	TypeOrderBoolean
	TypeOrderNumber
	TypeOrderTimestamp
	TypeOrderServerTimestamp
	TypeOrderString
	TypeOrderBytes
	TypeOrderReference
	TypeOrderGeoPoint
	TypeOrderArray
	TypeOrderVector
	TypeOrderMap
)

func (k Kind) typeOrder() TypeOrder {
	switch k {
	case KindNull:
		return TypeOrderNull
	case KindBoolean:
		return TypeOrderBoolean
	case KindInteger, KindDouble:
		return TypeOrderNumber
	case KindTimestamp:
		return TypeOrderTimestamp
	case KindServerTimestamp:
		return TypeOrderServerTimestamp
	case KindString:
		return TypeOrderString
	case KindBytes:
		return TypeOrderBytes
	case KindReference:
		return TypeOrderReference
	case KindGeoPoint:
		return TypeOrderGeoPoint
	case KindArray:
		return TypeOrderArray
	case KindVector:
		return TypeOrderVector
	case KindMap:
		return TypeOrderMap
	default:
		panic(fmt.Sprintf("model: unhandled value kind %d in typeOrder", k))
	}
}

// Timestamp is a seconds+nanos instant, matching the server's wire
// resolution (no sub-nanosecond, no monotonic reading).
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// TimestampFromTime converts a time.Time to a Timestamp, truncating to
// nanosecond resolution in UTC.
func TimestampFromTime(t time.Time) Timestamp {
	u := t.UTC()
	return Timestamp{Seconds: u.Unix(), Nanos: int32(u.Nanosecond())}
}

// Time converts back to a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, int64(t.Nanos)).UTC()
}

// Compare orders two Timestamps chronologically.
func (t Timestamp) Compare(o Timestamp) int {
	switch {
	case t.Seconds != o.Seconds:
		return cmpInt64(t.Seconds, o.Seconds)
	case t.Nanos != o.Nanos:
		return cmpInt64(int64(t.Nanos), int64(o.Nanos))
	default:
		return 0
	}
}

// SnapshotVersion is the commit-time version assigned to a document by the
// server. The zero value represents "no known server version" (a document
// that has never been confirmed to exist on the server).
type SnapshotVersion struct {
	Timestamp
}

// MinVersion is the smallest possible version, used for documents that have
// no server-confirmed state yet.
var MinVersion = SnapshotVersion{}

// Compare orders two SnapshotVersions chronologically.
func (v SnapshotVersion) Compare(o SnapshotVersion) int {
	return v.Timestamp.Compare(o.Timestamp)
}

// Reference identifies a document in a (possibly different) database.
type Reference struct {
	DatabaseID string
	Key        DocumentKey
}

// Compare orders References by database id, then by document key path.
func (r Reference) Compare(o Reference) int {
	if c := strings.Compare(r.DatabaseID, o.DatabaseID); c != 0 {
		return c
	}

	return r.Key.Compare(o.Key)
}

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// Compare orders GeoPoints by latitude then longitude.
func (g GeoPoint) Compare(o GeoPoint) int {
	if c := cmpFloat64(g.Latitude, o.Latitude); c != 0 {
		return c
	}

	return cmpFloat64(g.Longitude, o.Longitude)
}

// ServerTimestampData is the sentinel payload carried by a KindServerTimestamp
// value. It exists only in local views: it is never sent to the server and
// never persisted as a committed document value.
type ServerTimestampData struct {
	LocalWriteTime time.Time
	PreviousValue  *Value // nil if there was no prior committed value
}

// Value is a tagged union over the heterogeneous document field types. It is
// a closed variant (see Kind) rather than a class hierarchy: every method
// switches exhaustively over kind instead of dispatching virtually.
type Value struct {
	kind Kind

	boolVal      bool
	intVal       int64
	doubleVal    float64
	timestampVal Timestamp
	serverTSVal  *ServerTimestampData
	stringVal    string
	bytesVal     []byte
	refVal       Reference
	geoVal       GeoPoint
	arrVal       []Value
	vectorVal    []float64
	mapVal       map[string]Value
}

// Null returns the Null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a Boolean value.
func Bool(b bool) Value { return Value{kind: KindBoolean, boolVal: b} }

// Int returns an Integer value.
func Int(i int64) Value { return Value{kind: KindInteger, intVal: i} }

// Double returns a Double value.
func Double(f float64) Value { return Value{kind: KindDouble, doubleVal: f} }

// TimestampValue returns a committed Timestamp value.
func TimestampValue(t Timestamp) Value { return Value{kind: KindTimestamp, timestampVal: t} }

// PendingServerTimestamp returns a ServerTimestamp sentinel carrying the
// local write time and optional pre-transform value. It must never be
// persisted as a committed document value or sent to the server.
func PendingServerTimestamp(localWriteTime time.Time, previous *Value) Value {
	return Value{kind: KindServerTimestamp, serverTSVal: &ServerTimestampData{
		LocalWriteTime: localWriteTime,
		PreviousValue:  previous,
	}}
}

// String returns a String value. Unlike FieldPath/ResourcePath segments, the
// value is kept exactly as given: ordering and equality are byte-wise UTF-8,
// so normalizing would silently collapse unicode-equivalent-but-distinct
// strings.
func String(s string) Value { return Value{kind: KindString, stringVal: s} }

// Bytes returns a Bytes value. The slice is copied.
func Bytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)

	return Value{kind: KindBytes, bytesVal: cp}
}

// Ref returns a Reference value.
func Ref(r Reference) Value { return Value{kind: KindReference, refVal: r} }

// Geo returns a GeoPoint value.
func Geo(g GeoPoint) Value { return Value{kind: KindGeoPoint, geoVal: g} }

// Array returns an Array value. The slice is copied.
func Array(vals ...Value) Value {
	cp := make([]Value, len(vals))
	copy(cp, vals)

	return Value{kind: KindArray, arrVal: cp}
}

// Vector returns a Vector value — a numeric array tagged with the reserved
// discriminator documented in spec §3.
func Vector(components ...float64) Value {
	cp := make([]float64, len(components))
	copy(cp, components)

	return Value{kind: KindVector, vectorVal: cp}
}

// Map returns a Map value. The map is copied shallowly.
func Map(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}

	return Value{kind: KindMap, mapVal: cp}
}

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the Null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNumber reports whether v is Integer or Double.
func (v Value) IsNumber() bool { return v.kind == KindInteger || v.kind == KindDouble }

// IsNaN reports whether v is a Double holding NaN.
func (v Value) IsNaN() bool { return v.kind == KindDouble && math.IsNaN(v.doubleVal) }

// AsFloat64 returns v's numeric value as a float64. Only valid when
// IsNumber() is true.
func (v Value) AsFloat64() float64 {
	if v.kind == KindInteger {
		return float64(v.intVal)
	}

	return v.doubleVal
}

// AsInt64 returns the Integer value. Only valid when Kind() == KindInteger.
func (v Value) AsInt64() int64 { return v.intVal }

// AsBool returns the Boolean value. Only valid when Kind() == KindBoolean.
func (v Value) AsBool() bool { return v.boolVal }

// AsTimestamp returns the Timestamp value. Only valid when Kind() == KindTimestamp.
func (v Value) AsTimestamp() Timestamp { return v.timestampVal }

// AsString returns the String value. Only valid when Kind() == KindString.
func (v Value) AsString() string { return v.stringVal }

// AsBytes returns the Bytes value. Only valid when Kind() == KindBytes.
func (v Value) AsBytes() []byte { return v.bytesVal }

// AsReference returns the Reference value. Only valid when Kind() == KindReference.
func (v Value) AsReference() Reference { return v.refVal }

// AsGeoPoint returns the GeoPoint value. Only valid when Kind() == KindGeoPoint.
func (v Value) AsGeoPoint() GeoPoint { return v.geoVal }

// AsArray returns the Array elements. Only valid when Kind() == KindArray.
func (v Value) AsArray() []Value { return v.arrVal }

// AsVector returns the Vector components. Only valid when Kind() == KindVector.
func (v Value) AsVector() []float64 { return v.vectorVal }

// AsMap returns the Map fields. Only valid when Kind() == KindMap.
func (v Value) AsMap() map[string]Value { return v.mapVal }

// AsServerTimestamp returns the ServerTimestamp payload. Only valid when
// Kind() == KindServerTimestamp.
func (v Value) AsServerTimestamp() *ServerTimestampData { return v.serverTSVal }

// cmpInt64 and cmpFloat64 are tiny helpers kept local to avoid pulling in
// the generic cmp package's ordering quirks around NaN (handled explicitly
// below instead).
func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareValues implements the total order across heterogeneous values
// described in spec §3: cross-type comparison goes by TypeOrder; within a
// type, by the type's natural ordering, with Numbers cross-comparable
// between Integer and Double, NaN sorting before all finite numbers, and
// -0.0 treated as equal to 0.0.
func CompareValues(a, b Value) int {
	ao, bo := a.kind.typeOrder(), b.kind.typeOrder()
	if ao != bo {
		return cmpInt64(int64(ao), int64(bo))
	}

	switch ao {
	case TypeOrderNull:
		return 0
	case TypeOrderBoolean:
		return cmpBool(a.boolVal, b.boolVal)
	case TypeOrderNumber:
		return compareNumbers(a, b)
	case TypeOrderTimestamp:
		return a.timestampVal.Compare(b.timestampVal)
	case TypeOrderServerTimestamp:
		return compareServerTimestamps(a, b)
	case TypeOrderString:
		return strings.Compare(a.stringVal, b.stringVal)
	case TypeOrderBytes:
		return compareBytes(a.bytesVal, b.bytesVal)
	case TypeOrderReference:
		return a.refVal.Compare(b.refVal)
	case TypeOrderGeoPoint:
		return a.geoVal.Compare(b.geoVal)
	case TypeOrderArray:
		return compareArrays(a.arrVal, b.arrVal)
	case TypeOrderVector:
		return compareVectors(a.vectorVal, b.vectorVal)
	case TypeOrderMap:
		return compareMaps(a.mapVal, b.mapVal)
	default:
		panic(fmt.Sprintf("model: unhandled type order %d in CompareValues", ao))
	}
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}

	if !a {
		return -1
	}

	return 1
}

// compareNumbers implements NaN-before-all-finite-numbers ordering and
// treats -0.0 == 0.0, regardless of whether either operand is Integer or
// Double.
func compareNumbers(a, b Value) int {
	aNaN, bNaN := a.IsNaN(), b.IsNaN()

	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return -1
	case bNaN:
		return 1
	}

	af, bf := a.AsFloat64(), b.AsFloat64()
	if af == 0 && bf == 0 {
		return 0 // -0.0 == 0.0 for ordering
	}

	return cmpFloat64(af, bf)
}

func compareBytes(a, b []byte) int {
	return strings.Compare(string(a), string(b))
}

func compareArrays(a, b []Value) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := CompareValues(a[i], b[i]); c != 0 {
			return c
		}
	}

	return cmpInt64(int64(len(a)), int64(len(b)))
}

func compareVectors(a, b []float64) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := cmpFloat64(a[i], b[i]); c != 0 {
			return c
		}
	}

	return cmpInt64(int64(len(a)), int64(len(b)))
}

// compareMaps orders by sorted keys, then by values under those keys — the
// "by sorted keys then values" rule in spec §3. Map iteration order itself
// is never significant; only this canonical sorted projection is.
func compareMaps(a, b map[string]Value) int {
	aKeys := sortedKeys(a)
	bKeys := sortedKeys(b)

	n := min(len(aKeys), len(bKeys))
	for i := 0; i < n; i++ {
		if c := strings.Compare(aKeys[i], bKeys[i]); c != 0 {
			return c
		}

		if c := CompareValues(a[aKeys[i]], b[bKeys[i]]); c != 0 {
			return c
		}
	}

	return cmpInt64(int64(len(aKeys)), int64(len(bKeys)))
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// compareServerTimestamps orders pending sentinels by local write time. Two
// sentinels with the same LocalWriteTime compare equal; ordering is a
// preorder, not a total order, and an implementation is free to treat equal
// write times as equal rather than invent a secondary key (spec DESIGN NOTES
// §9, Open Question (i)).
func compareServerTimestamps(a, b Value) int {
	at, bt := a.serverTSVal.LocalWriteTime, b.serverTSVal.LocalWriteTime
	if at.Before(bt) {
		return -1
	}

	if at.After(bt) {
		return 1
	}

	return 0
}

// Equal reports value equality. Cross-kind equality is always false except
// that Integer and Double are cross-comparable as Numbers (spec §3). NaN
// equals NaN here, matching the `==` filter operator's documented
// semantics (spec §4.1) rather than IEEE-754 equality.
func Equal(a, b Value) bool {
	if a.kind.typeOrder() == TypeOrderNumber && b.kind.typeOrder() == TypeOrderNumber {
		if a.IsNaN() && b.IsNaN() {
			return true
		}

		return a.AsFloat64() == b.AsFloat64()
	}

	if a.kind != b.kind {
		return false
	}

	switch a.kind {
	case KindNull:
		return true
	case KindBoolean:
		return a.boolVal == b.boolVal
	case KindTimestamp:
		return a.timestampVal.Compare(b.timestampVal) == 0
	case KindServerTimestamp:
		return a.serverTSVal.LocalWriteTime.Equal(b.serverTSVal.LocalWriteTime)
	case KindString:
		return a.stringVal == b.stringVal
	case KindBytes:
		return string(a.bytesVal) == string(b.bytesVal)
	case KindReference:
		return a.refVal.Compare(b.refVal) == 0
	case KindGeoPoint:
		return a.geoVal == b.geoVal
	case KindArray:
		return equalArrays(a.arrVal, b.arrVal)
	case KindVector:
		return equalVectors(a.vectorVal, b.vectorVal)
	case KindMap:
		return equalMaps(a.mapVal, b.mapVal)
	default:
		return false
	}
}

func equalArrays(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}

	return true
}

func equalVectors(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func equalMaps(a, b map[string]Value) bool {
	if len(a) != len(b) {
		return false
	}

	for k, av := range a {
		bv, ok := b[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}

	return true
}
