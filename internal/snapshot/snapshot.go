package snapshot

import (
	"sync"
	"time"
)

// Snapshot owns every decoded object of one process dump plus the
// indexes derived from them. It is mutated only by its owner during
// ingestion and analysis; once Analyzed() reports true and an analysis
// pass has finished, the snapshot is effectively immutable and safe for
// concurrent readers.
type Snapshot struct {
	ProcessID   int
	CaptureTime time.Time

	mu        sync.RWMutex
	objects   map[Address]*Object
	typeIndex map[string][]Address // exact type name -> addresses, insertion order
	interner  *Interner

	roots     map[Address]struct{}
	rootOrder []Address

	version uint64 // bumped on every Add; lazy indices use it to detect staleness

	analyzed bool

	// Ingestion and analysis bookkeeping. Reports surface these so that
	// consumers can downgrade confidence in partial results.
	Processed           int
	Skipped             int
	TruncatedRefs       int  // references dropped by the per-object cap
	RootsViaRefcount    bool // roots came from the refcount fallback
	RetainedApproximate bool // retained sizes fell back to shallow sizes
}

func New(pid int, captured time.Time) *Snapshot {
	return &Snapshot{
		ProcessID:   pid,
		CaptureTime: captured,
		objects:     make(map[Address]*Object),
		typeIndex:   make(map[string][]Address),
		interner:    NewInterner(),
		roots:       make(map[Address]struct{}),
	}
}

// Intern canonicalizes a name through the snapshot's interner.
func (s *Snapshot) Intern(name string) string {
	return s.interner.Intern(name)
}

// Add inserts or replaces an object and records it in the type index.
// The caller must have interned obj.Type already.
func (s *Snapshot) Add(obj *Object) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, replaced := s.objects[obj.Address]; !replaced {
		s.typeIndex[obj.Type] = append(s.typeIndex[obj.Type], obj.Address)
	}
	s.objects[obj.Address] = obj
	s.version++
}

// Version changes whenever an object is added. Derived indices compare
// it against the version they were built at.
func (s *Snapshot) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Get returns the tracked object at addr, or nil.
func (s *Snapshot) Get(addr Address) *Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[addr]
}

// Contains reports whether addr belongs to a tracked object.
func (s *Snapshot) Contains(addr Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[addr]
	return ok
}

// NumObjects returns the number of tracked objects.
func (s *Snapshot) NumObjects() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// ForEachObject calls fn for every tracked object, in no particular order.
func (s *Snapshot) ForEachObject(fn func(*Object)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, obj := range s.objects {
		fn(obj)
	}
}

// AddressesOfType returns the addresses of all objects whose exact type
// is name, in insertion order. The returned slice is shared; callers
// must not mutate it.
func (s *Snapshot) AddressesOfType(name string) []Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typeIndex[name]
}

// TypeNames returns every distinct type name present in the snapshot.
func (s *Snapshot) TypeNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.typeIndex))
	for name := range s.typeIndex {
		names = append(names, name)
	}
	return names
}

// HasType reports whether at least one object of the exact type exists.
func (s *Snapshot) HasType(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.typeIndex[name]
	return ok
}

// MarkRoot adds addr to the root set and attaches the root path to the
// object. Addresses that do not belong to a tracked object are ignored.
func (s *Snapshot) MarkRoot(addr Address, path GCRootPath) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[addr]
	if !ok {
		return false
	}
	obj.GCRootPaths = append(obj.GCRootPaths, path)
	if _, dup := s.roots[addr]; !dup {
		s.roots[addr] = struct{}{}
		s.rootOrder = append(s.rootOrder, addr)
	}
	return true
}

// Roots returns the discovered root addresses in discovery order.
func (s *Snapshot) Roots() []Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootOrder
}

// HasRoots reports whether root discovery produced at least one root.
func (s *Snapshot) HasRoots() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.roots) > 0
}

// IsRootAddress reports whether addr is in the discovered root set.
func (s *Snapshot) IsRootAddress(addr Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roots[addr]
	return ok
}

// Analyzed reports whether the snapshot has been populated from a source.
func (s *Snapshot) Analyzed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analyzed
}

func (s *Snapshot) markAnalyzed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyzed = len(s.objects) > 0
}
