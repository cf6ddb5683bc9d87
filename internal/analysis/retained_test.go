package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mabhi256/heapscope/internal/analysis"
	"github.com/mabhi256/heapscope/internal/snapshot"
)

func computeRetained(t *testing.T, objs []obj, roots []uint64) *snapshot.Snapshot {
	t.Helper()
	snap := buildSnap(t, objs, roots)
	tree := analysis.BuildDominatorTree(snap, 0)
	require.NoError(t, analysis.ComputeRetainedSizes(snap, tree))
	return snap
}

func retainedOf(snap *snapshot.Snapshot, addr uint64) uint64 {
	return snap.Get(snapshot.Address(addr)).RetainedSize
}

func TestRetainedLinearChain(t *testing.T) {
	snap := computeRetained(t, []obj{
		{addrA, 10, []uint64{addrB}},
		{addrB, 20, []uint64{addrC}},
		{addrC, 30, nil},
	}, []uint64{addrA})

	require.Equal(t, uint64(60), retainedOf(snap, addrA))
	require.Equal(t, uint64(50), retainedOf(snap, addrB))
	require.Equal(t, uint64(30), retainedOf(snap, addrC))
}

func TestRetainedDiamond(t *testing.T) {
	snap := computeRetained(t, []obj{
		{addrA, 10, []uint64{addrB, addrC}},
		{addrB, 10, []uint64{addrD}},
		{addrC, 10, []uint64{addrD}},
		{addrD, 40, nil},
	}, []uint64{addrA})

	require.Equal(t, uint64(70), retainedOf(snap, addrA))
	require.Equal(t, uint64(10), retainedOf(snap, addrB))
	require.Equal(t, uint64(10), retainedOf(snap, addrC))
	require.Equal(t, uint64(40), retainedOf(snap, addrD))
}

func TestRetainedCycle(t *testing.T) {
	snap := computeRetained(t, []obj{
		{addrA, 10, []uint64{addrB}},
		{addrB, 10, []uint64{addrA}},
	}, []uint64{addrA})

	require.Equal(t, uint64(20), retainedOf(snap, addrA))
	require.Equal(t, uint64(10), retainedOf(snap, addrB))
}

func TestRetainedUnreachableIsland(t *testing.T) {
	snap := computeRetained(t, []obj{
		{addrA, 10, []uint64{addrB}},
		{addrB, 10, nil},
		{addrX, 100, []uint64{addrY}},
		{addrY, 100, nil},
	}, []uint64{addrA})

	require.Equal(t, uint64(20), retainedOf(snap, addrA))
	require.Equal(t, uint64(10), retainedOf(snap, addrB))

	// Island objects keep retained == shallow.
	require.Equal(t, uint64(100), retainedOf(snap, addrX))
	require.Equal(t, uint64(100), retainedOf(snap, addrY))
}

// Conservation: the retained sizes of the root objects account for
// exactly the shallow bytes of everything reachable.
func TestRetainedConservation(t *testing.T) {
	objs := []obj{
		{addrA, 16, []uint64{addrC, addrD}},
		{addrB, 8, []uint64{addrD, addrX}},
		{addrC, 24, []uint64{addrD}},
		{addrD, 40, []uint64{addrY}},
		{addrX, 100, nil},
		{addrY, 4, []uint64{addrB}}, // cycle back into B's subgraph
	}
	snap := computeRetained(t, objs, []uint64{addrA, addrB})
	tree := analysis.BuildDominatorTree(snap, 0)

	reachableShallow := uint64(0)
	seen := map[snapshot.Address]bool{}
	var mark func(snapshot.Address)
	mark = func(addr snapshot.Address) {
		if seen[addr] {
			return
		}
		seen[addr] = true
		reachableShallow += snap.Get(addr).ShallowSize
		for _, ref := range snap.Get(addr).References {
			if snap.Contains(ref.Target) {
				mark(ref.Target)
			}
		}
	}
	for _, root := range snap.Roots() {
		mark(root)
	}

	rootRetained := uint64(0)
	for _, top := range tree.RootNodes {
		rootRetained += snap.Get(top).RetainedSize
	}
	require.Equal(t, reachableShallow, rootRetained)

	// And nothing ever retains less than its own bytes.
	snap.ForEachObject(func(o *snapshot.Object) {
		require.GreaterOrEqual(t, o.RetainedSize, o.ShallowSize)
	})
}

func TestRetainedFallbackOnSkippedTree(t *testing.T) {
	snap := buildSnap(t, []obj{
		{addrA, 10, []uint64{addrB}},
		{addrB, 20, nil},
	}, []uint64{addrA})

	tree := analysis.BuildDominatorTree(snap, 1) // forces the cap
	require.NoError(t, analysis.ComputeRetainedSizes(snap, tree))

	require.True(t, snap.RetainedApproximate)
	require.Equal(t, uint64(10), retainedOf(snap, addrA))
	require.Equal(t, uint64(20), retainedOf(snap, addrB))
}
