package overlaykv

import "github.com/jbkvs/overlaykv/blob"

// valueKind tags which concrete Go type a taggedValue currently holds.
// A node's data map holds one taggedValue per key, so a Put of one kind
// replaces a value of another kind under the same key: values of different
// kinds under one key do not coexist within one node. A typed Get misses
// when the stored kind differs from the requested one.
type valueKind uint8

const (
	kindUint32 valueKind = iota
	kindUint64
	kindFloat32
	kindFloat64
	kindString
	kindBlob
)

// taggedValue is the union stored in a volume node's data map. Only the
// field matching kind is meaningful.
type taggedValue struct {
	kind   valueKind
	u32    uint32
	u64    uint64
	f32    float32
	f64    float64
	str    string
	blob   blob.Blob
}

// ValueType constrains the Go types Get/Put accept. The type switches in
// makeTaggedValue and asType cover every member exhaustively.
type ValueType interface {
	uint32 | uint64 | float32 | float64 | string | blob.Blob
}

func makeTaggedValue[T ValueType](v T) taggedValue {
	switch val := any(v).(type) {
	case uint32:
		return taggedValue{kind: kindUint32, u32: val}
	case uint64:
		return taggedValue{kind: kindUint64, u64: val}
	case float32:
		return taggedValue{kind: kindFloat32, f32: val}
	case float64:
		return taggedValue{kind: kindFloat64, f64: val}
	case string:
		return taggedValue{kind: kindString, str: val}
	case blob.Blob:
		return taggedValue{kind: kindBlob, blob: val}
	default:
		panic("overlaykv: unreachable value type")
	}
}

// asType extracts T from tv if the stored kind matches, reporting false
// otherwise.
func asType[T ValueType](tv taggedValue) (T, bool) {
	var zero T
	switch any(zero).(type) {
	case uint32:
		if tv.kind != kindUint32 {
			return zero, false
		}
		return any(tv.u32).(T), true
	case uint64:
		if tv.kind != kindUint64 {
			return zero, false
		}
		return any(tv.u64).(T), true
	case float32:
		if tv.kind != kindFloat32 {
			return zero, false
		}
		return any(tv.f32).(T), true
	case float64:
		if tv.kind != kindFloat64 {
			return zero, false
		}
		return any(tv.f64).(T), true
	case string:
		if tv.kind != kindString {
			return zero, false
		}
		return any(tv.str).(T), true
	case blob.Blob:
		if tv.kind != kindBlob {
			return zero, false
		}
		return any(tv.blob).(T), true
	default:
		return zero, false
	}
}
