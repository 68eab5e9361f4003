package overlaykv

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Scenario 6: concurrent detach. Four goroutines race to detach the same
// child of a root; exactly one must observe success.
func TestConcurrentDetachExactlyOneWinner(t *testing.T) {
	root := NewVolumeRoot()
	child := mustChild(t, root, "race")

	const n = 4
	var barrier sync.WaitGroup
	barrier.Add(n)

	results := make([]bool, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			barrier.Done()
			barrier.Wait()
			results[i] = child.Detach()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	wins := 0
	for _, r := range results {
		if r {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	_, ok := root.GetChild("race")
	assert.False(t, ok)
	_, ok = child.GetParent()
	assert.False(t, ok)
}

// The universal "exactly one of N concurrent detach calls on the same
// child returns true" property, run repeatedly with more racers to flush
// out ordering-dependent bugs.
func TestConcurrentDetachManyRacersStillOneWinner(t *testing.T) {
	for trial := 0; trial < 20; trial++ {
		root := NewVolumeRoot()
		child := mustChild(t, root, "race")

		const n = 16
		var barrier sync.WaitGroup
		barrier.Add(n)

		var wins int32
		var g errgroup.Group
		for i := 0; i < n; i++ {
			g.Go(func() error {
				barrier.Done()
				barrier.Wait()
				if child.Detach() {
					atomic.AddInt32(&wins, 1)
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		require.Equal(t, int32(1), wins, "trial %d", trial)
	}
}

// Concurrent mount/unmount of independent volumes at independent paths
// must never deadlock or corrupt the mount list.
func TestConcurrentMountUnmountIndependentPaths(t *testing.T) {
	s := NewStorage()

	const n = 8
	volumes := make([]*VolumeNode, n)
	for i := range volumes {
		volumes[i] = NewVolumeRoot()
	}

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			path := "/leaf"
			if !s.Mount(path+string(rune('a'+i)), volumes[i]) {
				return fmt.Errorf("mount %d failed", i)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := 0; i < n; i++ {
		assert.NotNil(t, s.GetNode("/leaf"+string(rune('a'+i))))
	}

	var g2 errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g2.Go(func() error {
			if !s.Unmount("/leaf"+string(rune('a'+i)), volumes[i]) {
				return fmt.Errorf("unmount %d failed", i)
			}
			return nil
		})
	}
	require.NoError(t, g2.Wait())

	assert.Empty(t, s.MountPoints())
}

// Concurrent child creation under a mounted parent, racing against reads
// of the affected storage node, must never panic or trip the race
// detector: readers see the child either not yet attached or attached,
// with or without its data (the Put runs after the attach).
func TestConcurrentChildCreationNeverTornUnderConcurrentReads(t *testing.T) {
	root := NewVolumeRoot()
	s := NewStorage()
	require.True(t, s.Mount("/", root))

	node := s.GetNode("/")

	stop := make(chan struct{})
	var readers errgroup.Group
	for i := 0; i < 4; i++ {
		readers.Go(func() error {
			for {
				select {
				case <-stop:
					return nil
				default:
				}
				// Either the child isn't attached yet, or it is and its
				// data may or may not have landed yet (Put isn't part of
				// the attach transaction) -- both are legal
				// interleavings. What must never happen is a panic or a
				// race detector trip, which this loop exercises by
				// reading continuously while the writer below runs.
				if ch, ok := node.GetChild("kid"); ok {
					StorageGet[uint32](ch, 1)
				}
			}
		})
	}

	child, err := NewVolumeChild(root, "kid")
	require.NoError(t, err)
	Put[uint32](child, 1, 42)

	close(stop)
	require.NoError(t, readers.Wait())
}
