package query

import (
	"sort"

	"github.com/mabhi256/heapscope/internal/snapshot"
)

// ensureTypeScanned makes sure objects of the exact type are present
// when the snapshot was never eagerly populated: one pass over the
// source records only the matching objects and marks the type scanned,
// so later queries for it do no source work.
func (h *Heap) ensureTypeScanned(name string) {
	if h.snap.Analyzed() || h.src == nil || name == "" {
		return
	}

	h.mu.Lock()
	scanned := h.scannedTypes[name]
	h.mu.Unlock()
	if scanned {
		return
	}

	found := 0
	err := h.src.WalkObjects(func(rec snapshot.ObjectRecord) error {
		if rec.Type != name || rec.Address == 0 || rec.Size == 0 {
			return nil
		}
		h.snap.AddRecord(rec)
		found++
		return nil
	})
	if err != nil {
		h.logger.Warn("lazy type scan failed", "type", name, "err", err)
		return
	}

	h.mu.Lock()
	h.scannedTypes[name] = true
	h.mu.Unlock()
	h.logger.Debug("lazy type scan complete", "type", name, "objects", found)
}

// AvailableTypeNames returns every type name the source can produce,
// sorted. The set is built from a single heap walk and cached; on an
// eagerly populated snapshot it falls back to the type index.
func (h *Heap) AvailableTypeNames() []string {
	if h.snap.Analyzed() || h.src == nil {
		names := h.snap.TypeNames()
		sort.Strings(names)
		return names
	}

	h.mu.Lock()
	cached := h.typeNames
	h.mu.Unlock()

	if cached == nil {
		cached = make(map[string]struct{})
		err := h.src.WalkObjects(func(rec snapshot.ObjectRecord) error {
			if rec.Type != "" {
				cached[rec.Type] = struct{}{}
			}
			return nil
		})
		if err != nil {
			h.logger.Warn("type name walk failed", "err", err)
			return nil
		}
		h.mu.Lock()
		h.typeNames = cached
		h.mu.Unlock()
	}

	names := make([]string, 0, len(cached))
	for name := range cached {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TypesMatching resolves a predicate over available type names, then
// scans each match once. Returns the matching names, sorted.
func (h *Heap) TypesMatching(pred func(string) bool) []string {
	var matches []string
	for _, name := range h.AvailableTypeNames() {
		if pred(name) {
			h.ensureTypeScanned(name)
			matches = append(matches, name)
		}
	}
	return matches
}
