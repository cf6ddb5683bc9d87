package index

import (
	"sort"
	"strings"

	"github.com/mabhi256/heapscope/internal/snapshot"
)

// Hierarchy groups concrete type names under simplified base names so
// that List<Int> and List<String> roll up under List. The rollup is
// nominal, by name pattern only: the runtime's real subtype relation is
// not recoverable from a dump without extra metadata.
type Hierarchy struct {
	snap *snapshot.Snapshot

	// base name -> set of concrete type names registered under it
	buckets map[string]map[string]struct{}
}

// HierarchyStats aggregates a type together with everything that rolls
// up under the same base name.
type HierarchyStats struct {
	Type           string
	DirectInstances int
	TotalInstances  int
	DirectSize      uint64
	TotalSize       uint64
	DerivedTypes    []string
}

func NewHierarchy(snap *snapshot.Snapshot) *Hierarchy {
	h := &Hierarchy{
		snap:    snap,
		buckets: make(map[string]map[string]struct{}),
	}
	for _, name := range snap.TypeNames() {
		h.register(BaseName(name), name)
		// Nested types additionally roll up under their outer type.
		if outer, _, nested := strings.Cut(name, "+"); nested {
			h.register(BaseName(outer), name)
		}
	}
	return h
}

func (h *Hierarchy) register(base, concrete string) {
	set, ok := h.buckets[base]
	if !ok {
		set = make(map[string]struct{})
		h.buckets[base] = set
	}
	set[concrete] = struct{}{}
}

// BaseName strips generic arguments and array suffixes: everything from
// the first '<' or '[' onward.
func BaseName(name string) string {
	if i := strings.IndexAny(name, "<["); i >= 0 {
		return name[:i]
	}
	return name
}

// Members returns the concrete type names bucketed under the base form
// of name, sorted.
func (h *Hierarchy) Members(name string) []string {
	set := h.buckets[BaseName(name)]
	members := make([]string, 0, len(set))
	for concrete := range set {
		members = append(members, concrete)
	}
	sort.Strings(members)
	return members
}

// Stats aggregates instance counts and shallow sizes for name and every
// type that rolls up under its base name.
func (h *Hierarchy) Stats(name string) HierarchyStats {
	stats := HierarchyStats{Type: name}

	stats.DirectInstances, stats.DirectSize = h.typeTotals(name)
	stats.TotalInstances, stats.TotalSize = stats.DirectInstances, stats.DirectSize

	for _, concrete := range h.Members(name) {
		if concrete == name {
			continue
		}
		count, size := h.typeTotals(concrete)
		stats.TotalInstances += count
		stats.TotalSize += size
		stats.DerivedTypes = append(stats.DerivedTypes, concrete)
	}
	return stats
}

func (h *Hierarchy) typeTotals(name string) (int, uint64) {
	addrs := h.snap.AddressesOfType(name)
	size := uint64(0)
	for _, addr := range addrs {
		if obj := h.snap.Get(addr); obj != nil {
			size += obj.ShallowSize
		}
	}
	return len(addrs), size
}
