package model

// GetField looks up a (possibly nested) field within document data. The
// __name__ path is handled by callers that have a DocumentKey in scope —
// this function only ever inspects the data map.
func GetField(data map[string]Value, path FieldPath) (Value, bool) {
	if path.IsEmpty() {
		return Value{}, false
	}

	cur := data

	for i, seg := range path.Segments() {
		v, ok := cur[seg]
		if !ok {
			return Value{}, false
		}

		if i == path.Len()-1 {
			return v, true
		}

		if v.Kind() != KindMap {
			return Value{}, false
		}

		cur = v.AsMap()
	}

	return Value{}, false
}

// SetField returns a copy of data with the value at path replaced,
// creating intermediate maps as needed. The original map is not mutated.
func SetField(data map[string]Value, path FieldPath, value Value) map[string]Value {
	return setFieldSegments(data, path.Segments(), value)
}

func setFieldSegments(data map[string]Value, segs []string, value Value) map[string]Value {
	out := cloneShallow(data)

	if len(segs) == 1 {
		out[segs[0]] = value
		return out
	}

	head, rest := segs[0], segs[1:]

	var child map[string]Value
	if existing, ok := out[head]; ok && existing.Kind() == KindMap {
		child = existing.AsMap()
	}

	out[head] = Map(setFieldSegments(child, rest, value))

	return out
}

// DeleteField returns a copy of data with the field at path removed. A
// missing field is a no-op.
func DeleteField(data map[string]Value, path FieldPath) map[string]Value {
	return deleteFieldSegments(data, path.Segments())
}

func deleteFieldSegments(data map[string]Value, segs []string) map[string]Value {
	out := cloneShallow(data)

	if len(segs) == 1 {
		delete(out, segs[0])
		return out
	}

	head, rest := segs[0], segs[1:]

	existing, ok := out[head]
	if !ok || existing.Kind() != KindMap {
		return out
	}

	out[head] = Map(deleteFieldSegments(existing.AsMap(), rest))

	return out
}

func cloneShallow(data map[string]Value) map[string]Value {
	out := make(map[string]Value, len(data))
	for k, v := range data {
		out[k] = v
	}

	return out
}

// EqualObjects reports whether two document data maps are field-wise equal.
func EqualObjects(a, b map[string]Value) bool {
	return equalMaps(a, b)
}
