// Package blob provides an immutable, shared-ownership byte sequence
// value type, used as one of the typed values a volume node can store.
package blob

import "github.com/google/uuid"

// Blob is an immutable view over a byte sequence. Two Blobs compare equal
// with Equal only if they were produced by the same construction call
// (shared identity), not merely if their bytes match.
type Blob struct {
	id   uuid.UUID
	data []byte
}

// New copies data into a new Blob.
func New(data []byte) Blob {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Blob{id: uuid.New(), data: cp}
}

// NewFromOwned wraps data without copying. The caller must not mutate
// data after this call; ownership of the backing array transfers to the
// returned Blob.
func NewFromOwned(data []byte) Blob {
	return Blob{id: uuid.New(), data: data}
}

// Data returns the backing byte slice. Callers must treat it as
// read-only: mutating it would violate the immutability every holder of
// this Blob relies on.
func (b Blob) Data() []byte {
	return b.data
}

// Size returns the number of bytes in the blob.
func (b Blob) Size() int {
	return len(b.data)
}

// Equal reports whether b and other were produced by the same
// construction call, i.e. share identity rather than merely equal bytes.
func (b Blob) Equal(other Blob) bool {
	return b.id == other.id
}

// IsZero reports whether b is the zero Blob (never constructed via New
// or NewFromOwned).
func (b Blob) IsZero() bool {
	return b.id == uuid.Nil
}
