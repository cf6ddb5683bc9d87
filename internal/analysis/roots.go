package analysis

import (
	"fmt"
	"log/slog"

	"github.com/mabhi256/heapscope/internal/snapshot"
)

// DiscoverRoots fills the snapshot's root set. The preferred path
// consumes the source's runtime-reported roots; if that yields nothing
// (or the walk dies), it falls back to treating every object with zero
// incoming references as a root and flags the snapshot accordingly.
//
// The discovered set is stable: a second call on the same snapshot is a
// no-op, so repeated analyses reuse it.
func DiscoverRoots(snap *snapshot.Snapshot, src snapshot.HeapSource, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if snap.HasRoots() {
		return nil
	}

	if src != nil {
		matched, total := 0, 0
		err := src.WalkRoots(func(rec snapshot.RootRecord) error {
			total++
			target := snapshot.Address(rec.Target)
			ok := snap.MarkRoot(target, snapshot.GCRootPath{
				Kind:          rec.Kind,
				RootAddress:   snapshot.Address(rec.Root),
				ObjectAddress: target,
				Name:          rec.Name,
			})
			if ok {
				matched++
			}
			return nil
		})
		if err != nil {
			logger.Warn("root enumeration failed, falling back to reference counting", "err", err)
		} else if matched > 0 {
			logger.Info("gc roots discovered", "roots", matched, "reported", total)
			return nil
		}
	}

	return rootsFromRefcounts(snap, logger)
}

// rootsFromRefcounts treats objects nobody references as roots. This is
// a superset of the real root set (objects kept alive only by a cycle
// are missed entirely, objects leaked by the runtime are included), so
// retained sizes computed from it are approximate.
func rootsFromRefcounts(snap *snapshot.Snapshot, logger *slog.Logger) error {
	incoming := make(map[snapshot.Address]int, snap.NumObjects())
	snap.ForEachObject(func(obj *snapshot.Object) {
		for _, ref := range obj.References {
			if ref.Target != obj.Address && snap.Contains(ref.Target) {
				incoming[ref.Target]++
			}
		}
	})

	// Collect first, mark after: MarkRoot takes the snapshot's write lock,
	// which cannot be acquired while ForEachObject holds the read lock.
	var candidates []snapshot.Address
	snap.ForEachObject(func(obj *snapshot.Object) {
		if incoming[obj.Address] == 0 {
			candidates = append(candidates, obj.Address)
		}
	})

	found := 0
	for _, addr := range candidates {
		if snap.MarkRoot(addr, snapshot.GCRootPath{
			Kind:          snapshot.RootUnknown,
			RootAddress:   addr,
			ObjectAddress: addr,
			Name:          "no incoming references (heuristic)",
		}) {
			found++
		}
	}
	snap.RootsViaRefcount = true

	if found == 0 && snap.NumObjects() > 0 {
		snap.RetainedApproximate = true
		return fmt.Errorf("no roots found: every object has incoming references")
	}
	logger.Info("gc roots approximated from reference counts", "roots", found)
	return nil
}
