package snapshot

import "fmt"

// Address is a 64-bit heap address. It uniquely identifies an object
// within one snapshot.
type Address uint64

func (a Address) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// RootKind classifies why the runtime keeps an object alive.
type RootKind byte

const (
	RootUnknown RootKind = iota
	RootStrongHandle
	RootWeakHandle
	RootPinned
	RootStack
	RootFinalizer
	RootStatic
	RootThread
	RootAsyncPinned
)

func (k RootKind) String() string {
	switch k {
	case RootStrongHandle:
		return "StrongHandle"
	case RootWeakHandle:
		return "WeakHandle"
	case RootPinned:
		return "Pinned"
	case RootStack:
		return "Stack"
	case RootFinalizer:
		return "Finalizer"
	case RootStatic:
		return "Static"
	case RootThread:
		return "Thread"
	case RootAsyncPinned:
		return "AsyncPinned"
	default:
		return "Other"
	}
}

// ParseRootKind maps a dump-file kind string to a RootKind. Unrecognized
// kinds come back as RootUnknown rather than an error, since dumps from
// newer runtimes may carry kinds we have no name for yet.
func ParseRootKind(s string) RootKind {
	switch s {
	case "StrongHandle", "strong":
		return RootStrongHandle
	case "WeakHandle", "weak":
		return RootWeakHandle
	case "Pinned", "pinned":
		return RootPinned
	case "Stack", "stack":
		return RootStack
	case "Finalizer", "finalizer":
		return RootFinalizer
	case "Static", "static":
		return RootStatic
	case "Thread", "thread":
		return RootThread
	case "AsyncPinned":
		return RootAsyncPinned
	default:
		return RootUnknown
	}
}

// GCRootPath records one reason an object is a GC root.
type GCRootPath struct {
	Kind          RootKind
	RootAddress   Address
	ObjectAddress Address
	Name          string
}

// ObjectReference is a directed edge between two heap objects, read from
// a managed pointer field of the source object. The target may point at
// an address that is not tracked in the snapshot; such edges are kept at
// ingestion and filtered when graphs are built.
type ObjectReference struct {
	Source     Address
	Target     Address
	Field      string // interned
	TargetType string // interned
}

// Object is one heap object. Objects are immutable after ingestion with
// two exceptions: RetainedSize is written once by analysis, and
// GCRootPaths is appended to during root discovery.
type Object struct {
	Address     Address
	Type        string // interned
	ShallowSize uint64
	Generation  uint32
	References  []ObjectReference
	Fields      map[string]string

	// RetainedSize starts equal to ShallowSize and is overwritten by the
	// retained-size pass. Invariant after analysis: RetainedSize >= ShallowSize.
	RetainedSize uint64

	GCRootPaths []GCRootPath
}

// IsRoot reports whether root discovery attached at least one root path.
func (o *Object) IsRoot() bool {
	return len(o.GCRootPaths) > 0
}

// RefRecord is one outbound reference as produced by a HeapSource.
type RefRecord struct {
	Target     uint64 `json:"target"`
	TargetType string `json:"targetType"`
	Field      string `json:"field"`
}

// ObjectRecord is the raw object tuple produced by a HeapSource, before
// any interning or filtering.
type ObjectRecord struct {
	Address    uint64            `json:"address"`
	Type       string            `json:"type"`
	Size       uint64            `json:"size"`
	Generation uint32            `json:"generation,omitempty"`
	References []RefRecord       `json:"references,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// RootRecord is one runtime-reported root as produced by a HeapSource.
type RootRecord struct {
	Kind   RootKind `json:"kind"`
	Root   uint64   `json:"root"`
	Target uint64   `json:"target"`
	Name   string   `json:"name,omitempty"`
}

// HeapSource is the adapter contract a dump reader implements. Walks are
// finite and non-restartable. A non-nil error from the walk itself means
// the scan died mid-stream; per-record problems are the walker's business
// to skip and count.
type HeapSource interface {
	// WalkObjects calls fn for every decodable object in the dump.
	// Returning a non-nil error from fn stops the walk.
	WalkObjects(fn func(ObjectRecord) error) error

	// WalkRoots calls fn for every runtime-reported root reference.
	WalkRoots(fn func(RootRecord) error) error
}

// SingleLookupSource is implemented by sources that can fetch one object
// by address without a full walk. Used by on-demand analysis.
type SingleLookupSource interface {
	HeapSource
	Lookup(addr uint64) (ObjectRecord, bool, error)
}
