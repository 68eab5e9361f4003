package overlaykv

import (
	"sort"
	"sync"
)

// mountedVolume is one priority-ordered entry in a storage node's list of
// volume references contributing data at that virtual location.
type mountedVolume struct {
	volume   *VolumeNode
	depth    int
	priority uint64
}

// StorageNode is an engine-maintained node in the overlay tree. It
// references zero or more volume nodes contributing data at its virtual
// path, plus named storage children created on demand by mounts.
type StorageNode struct {
	mu sync.RWMutex

	mountedVolumes    []mountedVolume
	virtualMountCount int
	children          map[string]*StorageNode
}

func newStorageNode() *StorageNode {
	return &StorageNode{children: make(map[string]*StorageNode)}
}

// GetChild looks up a direct storage child by name.
func (s *StorageNode) GetChild(name string) (*StorageNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.children[name]
	return ch, ok
}

// StorageGet returns the value of type T stored under key by the
// highest-priority mounted volume at this node that has one, walking the
// mounted volumes from highest to lowest priority and skipping values of
// other types. It reports false if no mounted volume holds a T under key.
// A free function (rather than a method)
// because Go methods cannot carry their own type parameters.
func StorageGet[T ValueType](s *StorageNode, key uint32) (T, bool) {
	var zero T

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.mountedVolumes) - 1; i >= 0; i-- {
		tv, ok := s.mountedVolumes[i].volume.data.Get(key)
		if !ok {
			continue
		}
		if v, ok := asType[T](tv); ok {
			return v, true
		}
	}
	return zero, false
}

// mountVirtual walks path one segment at a time from s, creating
// intermediate ("virtual") storage children as needed, and at the
// terminal (empty-remainder) segment grafts volume's subtree via mount.
func (s *StorageNode) mountVirtual(path string, volume *VolumeNode, priority uint64) {
	if path == "" {
		s.mount(volume, 0, priority)
		return
	}

	segment, remainder := splitFirstSegment(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.virtualMountCount++
	child, ok := s.children[segment]
	if !ok {
		child = newStorageNode()
		s.children[segment] = child
	}

	child.mountVirtual(remainder, volume, priority)
}

// unmountVirtual mirrors mountVirtual, decrementing virtualMountCount and
// pruning the child storage node it created if the recursive call reports
// it is now empty. Returns true iff s itself is now fully empty
// (invariant 4), signalling the caller should detach s too.
func (s *StorageNode) unmountVirtual(path string, volume *VolumeNode) bool {
	if path == "" {
		return s.unmount(volume, 0)
	}

	segment, remainder := splitFirstSegment(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	child, ok := s.children[segment]
	if !ok {
		panic("overlaykv: virtual unmount walk found no matching child")
	}

	if child.unmountVirtual(remainder, volume) {
		delete(s.children, segment)
	}

	s.virtualMountCount--
	return s.isEmpty()
}

// mount grafts volume (and recursively its children) into s at depth,
// under priority, maintaining the ascending-by-priority order of
// mountedVolumes and recording the reciprocal back-reference on volume.
func (s *StorageNode) mount(volume *VolumeNode, depth int, priority uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	volume.onMounting(s, depth, priority)

	idx := sort.Search(len(s.mountedVolumes), func(i int) bool {
		return s.mountedVolumes[i].priority >= priority
	})
	s.mountedVolumes = append(s.mountedVolumes, mountedVolume{})
	copy(s.mountedVolumes[idx+1:], s.mountedVolumes[idx:])
	s.mountedVolumes[idx] = mountedVolume{volume: volume, depth: depth, priority: priority}

	for _, ch := range volume.childrenSnapshot() {
		child, ok := s.children[ch.Name]
		if !ok {
			child = newStorageNode()
			s.children[ch.Name] = child
		}
		child.mount(ch.Node, depth+1, priority)
	}
}

// unmount reverses mount: it removes the (volume, depth) entry from
// mountedVolumes, recursively unmounts volume's children in reverse
// order, and prunes any storage child that becomes empty. Returns true
// iff s is now fully empty (invariant 4).
func (s *StorageNode) unmount(volume *VolumeNode, depth int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := len(s.mountedVolumes) - 1; i >= 0; i-- {
		if s.mountedVolumes[i].volume == volume && s.mountedVolumes[i].depth == depth {
			idx = i
			break
		}
	}
	if idx < 0 {
		panic("overlaykv: unmount found no matching mounted volume entry")
	}

	children := volume.childrenSnapshot()
	for i := len(children) - 1; i >= 0; i-- {
		ch := children[i]
		child, ok := s.children[ch.Name]
		if !ok {
			panic("overlaykv: unmount found no matching storage child")
		}
		if child.unmount(ch.Node, depth+1) {
			delete(s.children, ch.Name)
		}
	}

	s.mountedVolumes = append(s.mountedVolumes[:idx], s.mountedVolumes[idx+1:]...)
	volume.onUnmounted(s, depth)

	return s.isEmpty()
}

// attachMountedChild is the mount-propagation entry point invoked by a
// volume node when a new child is attached under a parent that is itself
// mounted at this storage node. It ensures a same-named storage child
// exists and grafts the new volume subtree into it.
func (s *StorageNode) attachMountedChild(depth int, priority uint64, name string, child *VolumeNode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.children[name]
	if !ok {
		sc = newStorageNode()
		s.children[name] = sc
	}

	sc.mount(child, depth+1, priority)
}

// detachMountedChild mirrors attachMountedChild for volume-side child
// removal: it unmounts the child's subtree from the corresponding
// storage child and prunes that child if it becomes empty.
func (s *StorageNode) detachMountedChild(depth int, name string, child *VolumeNode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.children[name]
	if !ok {
		panic("overlaykv: detach propagation found no matching storage child")
	}

	if sc.unmount(child, depth+1) {
		delete(s.children, name)
	}
}

// isEmpty reports invariant 4's condition for this node alone: no active
// virtual mount walk passes through it, it hosts no mounted volumes, and
// it has no children. Callers holding s.mu call this directly.
func (s *StorageNode) isEmpty() bool {
	return s.virtualMountCount == 0 && len(s.mountedVolumes) == 0 && len(s.children) == 0
}
