package overlaykv

import (
	"strings"
	"sync"
)

// MountPoint is one recorded (path, volume) pair in a Storage's mount
// list, as returned by Storage.MountPoints.
type MountPoint struct {
	Path   string
	Volume *VolumeNode
}

// Storage is the public entry point of the overlay/mount engine. It owns
// a fixed storage root, assigns monotonically increasing mount
// priorities, and dispatches Mount/Unmount into the storage tree.
type Storage struct {
	mu        sync.Mutex
	root      *StorageNode
	mounts    []MountPoint
	nextPrio  uint64
	closed    bool
}

// NewStorage creates a Storage with an empty root.
func NewStorage() *Storage {
	return &Storage{root: newStorageNode(), nextPrio: 1}
}

// Mount grafts volume's subtree onto the storage tree at path, assigning
// it a priority strictly greater than every priority visible anywhere in
// the engine at the time of insertion. It rejects path values that are
// empty, don't start with '/', or contain "//", and rejects a nil
// volume.
func (s *Storage) Mount(path string, volume *VolumeNode) bool {
	if !validateMountPath(path) || volume == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	priority := s.nextPrio
	s.nextPrio++

	lock := lockSubtree(volume)
	s.root.mountVirtual(path[1:], volume, priority)
	lock.unlock()

	s.mounts = append(s.mounts, MountPoint{Path: path, Volume: volume})
	return true
}

// Unmount removes the newest-mounted entry matching both path and volume
// (LIFO among duplicate mounts of the same pair), grafting it out of the
// storage tree. It returns false if path fails validation or no such
// mount is recorded.
func (s *Storage) Unmount(path string, volume *VolumeNode) bool {
	if !validateMountPath(path) || volume == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := len(s.mounts) - 1; i >= 0; i-- {
		if s.mounts[i].Path == path && s.mounts[i].Volume == volume {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	lock := lockSubtree(volume)
	s.root.unmountVirtual(path[1:], volume)
	lock.unlock()

	s.mounts = append(s.mounts[:idx], s.mounts[idx+1:]...)
	return true
}

// GetNode resolves path to a storage node, walking segment by segment. A
// single trailing '/' is ignored: GetNode("/a/") and GetNode("/a") return
// the same node. Returns nil if path is not syntactically valid (missing
// leading '/') or no mount covers it.
func (s *Storage) GetNode(path string) *StorageNode {
	if path == "" || path[0] != pathSeparator {
		return nil
	}

	length := len(path)
	if length == 1 {
		return s.root
	}

	current := s.root
	start := 1
	for {
		end := indexByteFrom(path, pathSeparator, start)
		if end < 0 {
			end = length
		}

		child, ok := current.GetChild(path[start:end])
		if !ok {
			return nil
		}
		current = child

		if end >= length-1 {
			break
		}
		start = end + 1
	}
	return current
}

// indexByteFrom returns the index of the first occurrence of c in s at
// or after from, or -1 if none.
func indexByteFrom(s string, c byte, from int) int {
	if i := strings.IndexByte(s[from:], c); i >= 0 {
		return i + from
	}
	return -1
}

// MountPoints returns a snapshot copy of the recorded mount list, for
// inspection and testing.
func (s *Storage) MountPoints() []MountPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]MountPoint, len(s.mounts))
	copy(out, s.mounts)
	return out
}

// Close unmounts every recorded mount in LIFO order, playing the role
// the original design gives to a destructor: Go has none, so a Storage
// that should not outlive its mounts must be closed explicitly.
func (s *Storage) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for i := len(s.mounts) - 1; i >= 0; i-- {
		mp := s.mounts[i]
		lock := lockSubtree(mp.Volume)
		s.root.unmountVirtual(mp.Path[1:], mp.Volume)
		lock.unlock()
	}
	s.mounts = nil
}
