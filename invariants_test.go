package overlaykv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertBackrefsConsistent walks every volume node reachable from v and
// checks the volume-to-storage direction of invariant 3: for each
// (storageNode, depth, priority) in a volume's mountBackrefs, that storage
// node's mountedVolumes contains the matching entry. The reverse direction
// (every storage-side entry has a matching back-reference) is not checked.
func assertBackrefsConsistent(t *testing.T, v *VolumeNode) {
	t.Helper()

	v.mu.RLock()
	backrefs := append([]mountBackref(nil), v.mountBackrefs...)
	children := v.childrenSnapshot()
	v.mu.RUnlock()

	for _, ref := range backrefs {
		ref.storage.mu.RLock()
		found := false
		for _, mv := range ref.storage.mountedVolumes {
			if mv.volume == v && mv.depth == ref.depth && mv.priority == ref.priority {
				found = true
				break
			}
		}
		ref.storage.mu.RUnlock()
		assert.True(t, found, "volume backref (depth=%d, priority=%d) has no matching storage-side entry", ref.depth, ref.priority)
	}

	for _, ch := range children {
		assertBackrefsConsistent(t, ch.Node)
	}
}

func TestBackrefInvariantHoldsAfterMountAndChildAttach(t *testing.T) {
	root := NewVolumeRoot()
	s := NewStorage()
	require.True(t, s.Mount("/", root))

	_, err := NewVolumeChild(root, "a")
	require.NoError(t, err)

	assertBackrefsConsistent(t, root)
}

func TestBalancedMountUnmountLeavesOnlyEmptyRoot(t *testing.T) {
	v1 := NewVolumeRoot()
	foo := mustChild(t, v1, "foo")
	mustChild(t, foo, "bar")

	v2 := NewVolumeRoot()

	s := NewStorage()
	require.True(t, s.Mount("/a/b", v1))
	require.True(t, s.Mount("/a/b/foo", v2))

	require.True(t, s.Unmount("/a/b/foo", v2))
	require.True(t, s.Unmount("/a/b", v1))

	root := s.GetNode("/")
	require.NotNil(t, root)

	root.mu.RLock()
	defer root.mu.RUnlock()
	assert.Empty(t, root.children)
	assert.Empty(t, root.mountedVolumes)
	assert.Zero(t, root.virtualMountCount)
}

func TestGetNodeSucceedsIffValidAndCovered(t *testing.T) {
	v := NewVolumeRoot()
	s := NewStorage()

	assert.Nil(t, s.GetNode("no-leading-slash"))
	assert.Nil(t, s.GetNode(""))
	assert.Nil(t, s.GetNode("/uncovered"))

	require.True(t, s.Mount("/covered", v))
	assert.NotNil(t, s.GetNode("/covered"))
}
