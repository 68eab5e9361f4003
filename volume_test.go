package overlaykv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbkvs/overlaykv/blob"
)

func TestNewVolumeRootIsDetached(t *testing.T) {
	root := NewVolumeRoot()

	assert.Equal(t, "", root.Name())
	_, ok := root.GetParent()
	assert.False(t, ok)
}

func TestNewVolumeChildAttaches(t *testing.T) {
	root := NewVolumeRoot()

	child, err := NewVolumeChild(root, "foo")
	require.NoError(t, err)

	got, ok := root.GetChild("foo")
	require.True(t, ok)
	assert.Same(t, child, got)

	parent, ok := child.GetParent()
	require.True(t, ok)
	assert.Same(t, root, parent)
}

func TestNewVolumeChildRejectsInvalidName(t *testing.T) {
	root := NewVolumeRoot()

	_, err := NewVolumeChild(root, "")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewVolumeChild(root, "a/b")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestNewVolumeChildRejectsDuplicate(t *testing.T) {
	root := NewVolumeRoot()

	_, err := NewVolumeChild(root, "foo")
	require.NoError(t, err)

	_, err = NewVolumeChild(root, "foo")
	assert.ErrorIs(t, err, ErrDuplicateChild)
}

func TestGetPutRemoveHeterogeneousTypes(t *testing.T) {
	n := NewVolumeRoot()

	Put[uint32](n, 123, 42)
	Put[string](n, 123, "hello")
	Put[blob.Blob](n, 123, blob.New([]byte("payload")))

	u, ok := Get[uint32](n, 123)
	require.True(t, ok)
	assert.Equal(t, uint32(42), u)

	s, ok := Get[string](n, 123)
	require.True(t, ok)
	assert.Equal(t, "hello", s)

	b, ok := Get[blob.Blob](n, 123)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), b.Data())

	_, ok = Get[float32](n, 123)
	assert.False(t, ok, "no float32 was ever stored under this key")

	require.True(t, n.Remove(123))
	_, ok = Get[uint32](n, 123)
	assert.False(t, ok)
}

func TestPutReplacesAcrossTypes(t *testing.T) {
	n := NewVolumeRoot()

	Put[uint32](n, 1, 7)
	Put[uint64](n, 1, 99)

	_, ok := Get[uint32](n, 1)
	assert.False(t, ok, "put under a new type tag does not leave the old tag's value behind")

	v, ok := Get[uint64](n, 1)
	require.True(t, ok)
	assert.Equal(t, uint64(99), v)
}

func TestChildrenSnapshotIsNameOrdered(t *testing.T) {
	root := NewVolumeRoot()
	for _, name := range []string{"c", "a", "b"} {
		_, err := NewVolumeChild(root, name)
		require.NoError(t, err)
	}

	entries := root.Children()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{entries[0].Name, entries[1].Name, entries[2].Name})
}

func TestDetachClearsParentAndRemovesFromParentChildren(t *testing.T) {
	root := NewVolumeRoot()
	child, err := NewVolumeChild(root, "foo")
	require.NoError(t, err)

	ok := child.Detach()
	assert.True(t, ok)

	_, ok = root.GetChild("foo")
	assert.False(t, ok)

	_, ok = child.GetParent()
	assert.False(t, ok)
}

func TestDetachOfRootFails(t *testing.T) {
	root := NewVolumeRoot()
	assert.False(t, root.Detach())
}

func TestDetachTwiceFailsSecondTime(t *testing.T) {
	root := NewVolumeRoot()
	child, err := NewVolumeChild(root, "foo")
	require.NoError(t, err)

	assert.True(t, child.Detach())
	assert.False(t, child.Detach())
}
