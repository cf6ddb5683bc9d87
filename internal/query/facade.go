// Package query is the uniform read-only surface over a snapshot and
// its derived indices. Unknown addresses and types produce empty
// results, never errors; every returned value is plain data.
package query

import (
	"log/slog"
	"sync"

	"github.com/mabhi256/heapscope/internal/analysis"
	"github.com/mabhi256/heapscope/internal/index"
	"github.com/mabhi256/heapscope/internal/report"
	"github.com/mabhi256/heapscope/internal/snapshot"
)

// Heap wraps one snapshot with its source and hands out query results.
// The spatial, hierarchy and reference-graph views are built on first
// demand and rebuilt only if a lazy type scan grew the object set in
// between.
type Heap struct {
	snap   *snapshot.Snapshot
	src    snapshot.HeapSource
	logger *slog.Logger

	mu        sync.Mutex
	spatial   *index.Spatial
	hierarchy *index.Hierarchy
	refs      *index.RefGraph
	builtAt   [3]uint64 // snapshot version each index was built at

	scannedTypes map[string]bool
	typeNames    map[string]struct{} // available type names, one walk
}

const (
	idxSpatial = iota
	idxHierarchy
	idxRefs
)

func NewHeap(snap *snapshot.Snapshot, src snapshot.HeapSource, logger *slog.Logger) *Heap {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heap{
		snap:         snap,
		src:          src,
		logger:       logger,
		scannedTypes: make(map[string]bool),
	}
}

// Snapshot exposes the underlying snapshot for callers that need the
// raw model.
func (h *Heap) Snapshot() *snapshot.Snapshot {
	return h.snap
}

// Analyze runs the full analysis pipeline (roots, dominators, retained
// sizes) over the snapshot.
func (h *Heap) Analyze() (*analysis.Result, error) {
	a := analysis.NewAnalyzer(h.snap, h.src, h.logger)
	return a.Run()
}

// Get returns the object at addr, or nil when untracked. On a snapshot
// that was never eagerly populated, a source supporting single-object
// lookup is consulted before giving up.
func (h *Heap) Get(addr snapshot.Address) *snapshot.Object {
	if obj := h.snap.Get(addr); obj != nil {
		return obj
	}
	if h.snap.Analyzed() {
		return nil
	}
	lookup, ok := h.src.(snapshot.SingleLookupSource)
	if !ok {
		return nil
	}
	rec, found, err := lookup.Lookup(uint64(addr))
	if err != nil || !found || rec.Address == 0 || rec.Size == 0 || rec.Type == "" {
		return nil
	}
	return h.snap.AddRecord(rec)
}

// ByType returns every object of the exact type, in ingestion order.
// On a snapshot that was never eagerly populated this triggers a
// scan-once for the type against the source.
func (h *Heap) ByType(name string) []*snapshot.Object {
	h.ensureTypeScanned(name)
	addrs := h.snap.AddressesOfType(name)
	objs := make([]*snapshot.Object, 0, len(addrs))
	for _, addr := range addrs {
		if obj := h.snap.Get(addr); obj != nil {
			objs = append(objs, obj)
		}
	}
	return objs
}

// HierarchyStats aggregates name together with every type that rolls
// up under its simplified base name.
func (h *Heap) HierarchyStats(name string) index.HierarchyStats {
	h.ensureTypeScanned(name)
	return h.hierarchyIndex().Stats(name)
}

// OutgoingReferences lists addr's references whose targets are tracked.
func (h *Heap) OutgoingReferences(addr snapshot.Address) []snapshot.ObjectReference {
	obj := h.snap.Get(addr)
	if obj == nil {
		return nil
	}
	var out []snapshot.ObjectReference
	for _, ref := range obj.References {
		if h.snap.Contains(ref.Target) {
			out = append(out, ref)
		}
	}
	return out
}

// IncomingReferences lists the reference records of tracked objects
// pointing at addr. Served from the reference-graph index.
func (h *Heap) IncomingReferences(addr snapshot.Address) []snapshot.ObjectReference {
	return h.refIndex().IncomingRefs(addr)
}

// SizeRange returns objects whose shallow size lies in [lo, hi].
func (h *Heap) SizeRange(lo, hi uint64) []*snapshot.Object {
	return h.spatialIndex().SizeRange(lo, hi)
}

// AddressRange returns objects with lo <= address <= hi.
func (h *Heap) AddressRange(lo, hi snapshot.Address) []*snapshot.Object {
	return h.spatialIndex().Range(lo, hi)
}

// Nearby returns objects within prox bytes of addr.
func (h *Heap) Nearby(addr snapshot.Address, prox uint64) []*snapshot.Object {
	return h.spatialIndex().Nearby(addr, prox)
}

// Reachable BFS-walks outgoing references from addr down to maxDepth.
func (h *Heap) Reachable(addr snapshot.Address, maxDepth int) []*snapshot.Object {
	return h.refIndex().Reachable(addr, maxDepth)
}

// ShortestPath returns a shortest reference chain between two tracked
// objects, or nil.
func (h *Heap) ShortestPath(from, to snapshot.Address) []*snapshot.Object {
	return h.refIndex().ShortestPath(from, to)
}

// ReferenceStats summarizes addr's reference neighborhood.
func (h *Heap) ReferenceStats(addr snapshot.Address) index.ReferenceStats {
	return h.refIndex().Stats(addr)
}

// Report builds the immutable analysis report for the snapshot as it
// stands now.
func (h *Heap) Report() *report.HeapAnalysisReport {
	return report.Build(h.snap)
}

func (h *Heap) spatialIndex() *index.Spatial {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v := h.snap.Version(); h.spatial == nil || h.builtAt[idxSpatial] != v {
		h.spatial = index.NewSpatial(h.snap)
		h.builtAt[idxSpatial] = v
	}
	return h.spatial
}

func (h *Heap) hierarchyIndex() *index.Hierarchy {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v := h.snap.Version(); h.hierarchy == nil || h.builtAt[idxHierarchy] != v {
		h.hierarchy = index.NewHierarchy(h.snap)
		h.builtAt[idxHierarchy] = v
	}
	return h.hierarchy
}

func (h *Heap) refIndex() *index.RefGraph {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v := h.snap.Version(); h.refs == nil || h.builtAt[idxRefs] != v {
		h.refs = index.NewRefGraph(h.snap)
		h.builtAt[idxRefs] = v
	}
	return h.refs
}
