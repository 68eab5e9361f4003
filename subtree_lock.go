package overlaykv

// subtreeLock is a composite acquisition of every node's exclusive lock
// in a volume subtree, held for the duration of a structural edit (mount,
// unmount, detach) so the subtree cannot be observed half-grafted or
// half-pruned.
//
// Locking proceeds pre-order (parent before children) in the same
// deterministic order Children() would iterate; release proceeds
// post-order (children before parent). Because every subtree lock in the
// system takes this same root-to-leaf order, and the volume tree is
// acyclic, no two subtree locks can deadlock against each other.
type subtreeLock struct {
	nodes []*VolumeNode // pre-order, already locked
}

// lockSubtree locks root and, recursively, every descendant, and returns
// a handle that unlocks them all in reverse order. The caller must not
// already hold root.mu.
func lockSubtree(root *VolumeNode) *subtreeLock {
	l := &subtreeLock{}
	l.lockRecursive(root)
	return l
}

func (l *subtreeLock) lockRecursive(n *VolumeNode) {
	n.mu.Lock()
	l.nodes = append(l.nodes, n)

	for _, ch := range n.childrenSnapshot() {
		l.lockRecursive(ch.Node)
	}
}

// unlock releases every lock this subtreeLock holds, in reverse
// (child-before-parent) order.
func (l *subtreeLock) unlock() {
	for i := len(l.nodes) - 1; i >= 0; i-- {
		l.nodes[i].mu.Unlock()
	}
}
