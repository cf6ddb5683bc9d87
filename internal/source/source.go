// Package source provides concrete HeapSource implementations: an
// in-memory source for fixtures and tooling, and a reader for
// newline-delimited JSON dump files as produced by runtime-side
// exporters.
package source

import (
	"github.com/mabhi256/heapscope/internal/snapshot"
)

// MemSource is a HeapSource backed by slices. It is the fixture source
// used by tests and by tools that already hold decoded objects.
type MemSource struct {
	ObjectRecords []snapshot.ObjectRecord
	RootRecords   []snapshot.RootRecord

	// ObjectErrs simulates per-record decode failures: records at these
	// indices are delivered as zero records (which ingestion skips).
	ObjectErrs map[int]bool

	byAddr map[uint64]int
	walks  int
}

var _ snapshot.SingleLookupSource = (*MemSource)(nil)

func (m *MemSource) WalkObjects(fn func(snapshot.ObjectRecord) error) error {
	m.walks++
	for i, rec := range m.ObjectRecords {
		if m.ObjectErrs[i] {
			rec = snapshot.ObjectRecord{}
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemSource) WalkRoots(fn func(snapshot.RootRecord) error) error {
	for _, rec := range m.RootRecords {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Lookup finds a record by address, building the index on first use.
func (m *MemSource) Lookup(addr uint64) (snapshot.ObjectRecord, bool, error) {
	if m.byAddr == nil {
		m.byAddr = make(map[uint64]int, len(m.ObjectRecords))
		for i, rec := range m.ObjectRecords {
			m.byAddr[rec.Address] = i
		}
	}
	i, ok := m.byAddr[addr]
	if !ok {
		return snapshot.ObjectRecord{}, false, nil
	}
	return m.ObjectRecords[i], true, nil
}

// Walks returns how many full object walks have been performed. Tests
// use it to assert that lazy type scans do no repeat source work.
func (m *MemSource) Walks() int {
	return m.walks
}
