package analysis

import (
	"fmt"

	"github.com/mabhi256/heapscope/internal/snapshot"
)

// ComputeRetainedSizes writes retained sizes into every tracked object.
// retained(v) = shallow(v) + sum of retained over dominator-tree
// children of v, computed bottom-up with an explicit stack. Objects
// absent from the tree (unreachable from any root) keep retained ==
// shallow.
//
// On a skipped or failed tree the snapshot falls back to shallow sizes
// globally and is flagged approximate.
func ComputeRetainedSizes(snap *snapshot.Snapshot, tree *DomTree) error {
	if tree == nil || tree.Skipped {
		resetRetained(snap)
		snap.RetainedApproximate = true
		return nil
	}

	retained := make(map[snapshot.Address]uint64, tree.Reachable)

	for _, top := range tree.RootNodes {
		if err := sumSubtree(snap, tree, top, retained); err != nil {
			resetRetained(snap)
			snap.RetainedApproximate = true
			return err
		}
	}

	snap.ForEachObject(func(obj *snapshot.Object) {
		if size, ok := retained[obj.Address]; ok {
			obj.RetainedSize = size
		} else {
			obj.RetainedSize = obj.ShallowSize
		}
	})
	return nil
}

// sumSubtree fills retained for every node under top, children before
// parents. The visited guard turns a corrupt (cyclic) child relation
// into an error instead of an endless walk.
func sumSubtree(snap *snapshot.Snapshot, tree *DomTree, top snapshot.Address, retained map[snapshot.Address]uint64) error {
	order := make([]snapshot.Address, 0, 64)
	stack := []snapshot.Address{top}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := retained[v]; seen {
			return fmt.Errorf("dominator tree is not a tree: %s visited twice", v)
		}
		retained[v] = 0
		order = append(order, v)
		stack = append(stack, tree.Children[v]...)
	}

	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		size := uint64(0)
		if obj := snap.Get(v); obj != nil {
			size = obj.ShallowSize
		}
		for _, c := range tree.Children[v] {
			size += retained[c]
		}
		retained[v] = size
	}
	return nil
}

func resetRetained(snap *snapshot.Snapshot) {
	snap.ForEachObject(func(obj *snapshot.Object) {
		obj.RetainedSize = obj.ShallowSize
	})
}
