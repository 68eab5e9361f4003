// Package overlaykv implements a concurrent, in-memory key/value store
// organized as a hierarchical tree of nodes that can be layered on top of
// each other through a mount mechanism.
//
// Producers build independent "volume" trees of typed leaf data with
// VolumeNode. Consumers mount volumes at arbitrary virtual paths inside a
// Storage and read through the merged overlay it exposes as StorageNode:
// a typed Get on a storage node consults every volume mounted at that
// location from most to least recently mounted, returning the first
// value whose stored type matches.
//
//	root := overlaykv.NewVolumeRoot()
//	overlaykv.Put(root, 123, "hello")
//
//	s := overlaykv.NewStorage()
//	s.Mount("/", root)
//
//	node := s.GetNode("/")
//	v, ok := overlaykv.StorageGet[string](node, 123)
//
// Mounting the same virtual path more than once layers the mounts: the
// most recently mounted volume wins same-type key collisions, while
// values of differing types under the same key all remain independently
// readable. See Storage.Mount and StorageGet for the full collision
// rules.
package overlaykv
