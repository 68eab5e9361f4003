package overlaykv

import (
	"sort"
	"strings"
	"sync"

	"github.com/jbkvs/overlaykv/internal/cmap"
)

// mountBackref is one entry in a volume node's record of where it is
// currently mounted. It lets attach/detach propagation reach every
// storage node that needs updating in O(fanout) instead of a global
// search over every storage tree.
type mountBackref struct {
	storage  *StorageNode
	depth    int
	priority uint64
}

// VolumeNode is a node in the user-owned volume tree. Volumes are built
// bottom-up and may be mounted into any number of storage trees at any
// number of paths simultaneously.
type VolumeNode struct {
	name string

	// mu guards parent, children and mountBackrefs. data is
	// independently concurrent (see cmap.Map).
	mu            sync.RWMutex
	parent        *VolumeNode
	children      map[string]*VolumeNode
	mountBackrefs []mountBackref

	data *cmap.Map[uint32, taggedValue]
}

// ChildEntry is one name/node pair returned by (*VolumeNode).Children.
type ChildEntry struct {
	Name string
	Node *VolumeNode
}

// NewVolumeRoot creates a detached root volume node with an empty name.
func NewVolumeRoot() *VolumeNode {
	return newVolumeNode(nil, "")
}

// NewVolumeChild creates a new child of parent under name, atomically
// attaching it and fanning the attach into every storage node that
// currently mounts parent. It fails with ErrInvalidName when name is
// empty or contains '/', and with ErrDuplicateChild when parent already
// has a child by that name.
func NewVolumeChild(parent *VolumeNode, name string) (*VolumeNode, error) {
	if name == "" || strings.ContainsRune(name, pathSeparator) {
		return nil, ErrInvalidName
	}

	child := newVolumeNode(parent, name)
	if err := parent.attachChild(name, child); err != nil {
		return nil, err
	}
	return child, nil
}

func newVolumeNode(parent *VolumeNode, name string) *VolumeNode {
	return &VolumeNode{
		name:     name,
		parent:   parent,
		children: make(map[string]*VolumeNode),
		data:     cmap.New[uint32, taggedValue](),
	}
}

// Name returns the node's immutable name ("" for a root).
func (n *VolumeNode) Name() string {
	return n.name
}

// GetParent returns the node's current parent, or (nil, false) if this
// node is a root or was detached.
func (n *VolumeNode) GetParent() (*VolumeNode, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.parent == nil {
		return nil, false
	}
	return n.parent, true
}

// GetChild looks up a direct child by name.
func (n *VolumeNode) GetChild(name string) (*VolumeNode, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	ch, ok := n.children[name]
	return ch, ok
}

// Children returns a name-ordered snapshot of this node's children,
// taken under one shared lock. The snapshot does not reflect later
// attaches/detaches.
func (n *VolumeNode) Children() []ChildEntry {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]ChildEntry, 0, len(n.children))
	for name, ch := range n.children {
		out = append(out, ChildEntry{Name: name, Node: ch})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the value stored under key if its stored type matches T.
func Get[T ValueType](n *VolumeNode, key uint32) (T, bool) {
	var zero T
	tv, ok := n.data.Get(key)
	if !ok {
		return zero, false
	}
	return asType[T](tv)
}

// Put stores value under key, replacing whatever was there regardless of
// its previous type tag.
func Put[T ValueType](n *VolumeNode, key uint32, value T) {
	n.data.Put(key, makeTaggedValue(value))
}

// Remove deletes key from this node's data map, reporting whether it was
// present.
func (n *VolumeNode) Remove(key uint32) bool {
	return n.data.Remove(key)
}

// Detach removes this node from its parent, unmounting its subtree from
// every storage node where the parent is mounted. It returns false if
// there is no parent, or if a concurrent Detach already won the race for
// this child; exactly one concurrent Detach call on the same node
// returns true.
func (n *VolumeNode) Detach() bool {
	n.mu.RLock()
	parent := n.parent
	n.mu.RUnlock()

	if parent == nil {
		return false
	}
	return parent.detachChild(n)
}

// attachChild inserts child under name in n's children and, for every
// storage node currently mounting n, grafts child's (singleton, at this
// point) subtree into that storage node at depth+1 with the inherited
// priority.
func (n *VolumeNode) attachChild(name string, child *VolumeNode) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.children[name]; exists {
		return ErrDuplicateChild
	}

	n.children[name] = child

	for _, ref := range n.mountBackrefs {
		ref.storage.attachMountedChild(ref.depth, ref.priority, name, child)
	}

	return nil
}

// detachChild removes the named child from n, unmounting its subtree
// from every storage node currently mounting n, in reverse (newest-first)
// back-ref order. Returns false if no such child exists (lost race or
// already detached).
func (n *VolumeNode) detachChild(child *VolumeNode) bool {
	n.mu.Lock()

	ch, ok := n.children[child.name]
	if !ok || ch != child {
		n.mu.Unlock()
		return false
	}

	lock := lockSubtree(ch)

	for i := len(n.mountBackrefs) - 1; i >= 0; i-- {
		ref := n.mountBackrefs[i]
		ref.storage.detachMountedChild(ref.depth, child.name, ch)
	}

	delete(n.children, child.name)
	ch.parent = nil

	lock.unlock()
	n.mu.Unlock()

	return true
}

// onMounting records that storage now mounts n at depth with priority.
// Called by StorageNode.mount while holding storage's own exclusive lock,
// and either under a subtree lock covering n (Storage.Mount) or, when n is
// a child being attached, under its parent's exclusive lock (attachChild).
func (n *VolumeNode) onMounting(storage *StorageNode, depth int, priority uint64) {
	n.mountBackrefs = append(n.mountBackrefs, mountBackref{storage: storage, depth: depth, priority: priority})
}

// onUnmounted removes the most recently added back-ref matching
// (storage, depth). Panics if none matches: invariant 3 guarantees the
// reciprocal back-ref always exists when StorageNode.unmount reaches
// this point.
func (n *VolumeNode) onUnmounted(storage *StorageNode, depth int) {
	for i := len(n.mountBackrefs) - 1; i >= 0; i-- {
		ref := n.mountBackrefs[i]
		if ref.storage == storage && ref.depth == depth {
			n.mountBackrefs = append(n.mountBackrefs[:i], n.mountBackrefs[i+1:]...)
			return
		}
	}
	panic("overlaykv: missing reciprocal mount back-reference")
}

// childrenSnapshot returns this node's children without locking, for use
// by mount/unmount propagation: callers hold n's lock through a subtree
// lock, or, for a child being attached, hold its parent's exclusive lock.
func (n *VolumeNode) childrenSnapshot() []ChildEntry {
	out := make([]ChildEntry, 0, len(n.children))
	for name, ch := range n.children {
		out = append(out, ChildEntry{Name: name, Node: ch})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
