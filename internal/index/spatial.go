// Package index holds the lazily built views over a populated
// snapshot: address/size buckets for range queries, base-name buckets
// for nominal type rollups, and the bidirectional reference graph.
package index

import (
	"sort"

	"github.com/mabhi256/heapscope/internal/snapshot"
)

// addrBucketSize is the object count per address bucket. Range queries
// scan only the buckets intersecting the requested window.
const addrBucketSize = 1000

// Size classes for the coarse size view.
var sizeClassBounds = []uint64{100, 1 << 10, 8 << 10, 64 << 10, 1 << 20}

type addrBucket struct {
	start   snapshot.Address // address of the first object in the bucket
	objects []*snapshot.Object
}

type sizeBucket struct {
	minSize uint64
	maxSize uint64
	objects []*snapshot.Object
}

// Spatial is the address- and size-ordered view of a snapshot. Build it
// once the object set is final; it does not track later additions.
type Spatial struct {
	byAddr []addrBucket
	bySize []sizeBucket // one per size class, some possibly empty
}

func NewSpatial(snap *snapshot.Snapshot) *Spatial {
	sorted := make([]*snapshot.Object, 0, snap.NumObjects())
	snap.ForEachObject(func(obj *snapshot.Object) {
		sorted = append(sorted, obj)
	})
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Address < sorted[j].Address })

	sp := &Spatial{
		bySize: make([]sizeBucket, len(sizeClassBounds)+1),
	}

	for i := 0; i < len(sorted); i += addrBucketSize {
		end := min(i+addrBucketSize, len(sorted))
		sp.byAddr = append(sp.byAddr, addrBucket{
			start:   sorted[i].Address,
			objects: sorted[i:end],
		})
	}

	for _, obj := range sorted {
		class := sizeClass(obj.ShallowSize)
		b := &sp.bySize[class]
		if len(b.objects) == 0 || obj.ShallowSize < b.minSize {
			b.minSize = obj.ShallowSize
		}
		if obj.ShallowSize > b.maxSize {
			b.maxSize = obj.ShallowSize
		}
		b.objects = append(b.objects, obj)
	}
	return sp
}

func sizeClass(size uint64) int {
	for i, bound := range sizeClassBounds {
		if size < bound {
			return i
		}
	}
	return len(sizeClassBounds)
}

// Range returns the tracked objects with lo <= address <= hi, in
// ascending address order.
func (sp *Spatial) Range(lo, hi snapshot.Address) []*snapshot.Object {
	if hi < lo || len(sp.byAddr) == 0 {
		return nil
	}

	// First bucket that could contain lo: the last one starting at or
	// before it.
	first := sort.Search(len(sp.byAddr), func(i int) bool { return sp.byAddr[i].start > lo }) - 1
	if first < 0 {
		first = 0
	}

	var out []*snapshot.Object
	for i := first; i < len(sp.byAddr); i++ {
		b := sp.byAddr[i]
		if b.start > hi {
			break
		}
		for _, obj := range b.objects {
			if obj.Address > hi {
				break
			}
			if obj.Address >= lo {
				out = append(out, obj)
			}
		}
	}
	return out
}

// Nearby returns objects within prox bytes of addr on either side,
// saturating at address zero.
func (sp *Spatial) Nearby(addr snapshot.Address, prox uint64) []*snapshot.Object {
	lo := snapshot.Address(0)
	if uint64(addr) > prox {
		lo = addr - snapshot.Address(prox)
	}
	return sp.Range(lo, addr+snapshot.Address(prox))
}

// SizeRange returns objects whose shallow size falls within [lo, hi],
// in ascending address order. Buckets whose [min,max] window misses the
// range entirely are skipped; survivors are filtered exactly.
func (sp *Spatial) SizeRange(lo, hi uint64) []*snapshot.Object {
	if hi < lo {
		return nil
	}
	var out []*snapshot.Object
	for _, b := range sp.bySize {
		if len(b.objects) == 0 || b.maxSize < lo || b.minSize > hi {
			continue
		}
		for _, obj := range b.objects {
			if obj.ShallowSize >= lo && obj.ShallowSize <= hi {
				out = append(out, obj)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
