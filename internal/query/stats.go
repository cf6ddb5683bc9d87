package query

import (
	"sort"

	"github.com/mabhi256/heapscope/internal/snapshot"
)

// largestPerType caps the instance list in TypeStatistics.
const largestPerType = 10

// TypeStatistics aggregates every instance of one exact type.
type TypeStatistics struct {
	Type                   string
	InstanceCount          int
	TotalSize              uint64
	TotalRetainedSize      uint64
	AvgSize                float64
	GenerationDistribution map[uint32]int
	Largest                []*snapshot.Object // up to 10, descending retained size
}

// TypeStatistics computes statistics for the exact type name. Unknown
// types yield a zero-valued result.
func (h *Heap) TypeStatistics(name string) TypeStatistics {
	objs := h.ByType(name)
	stats := TypeStatistics{
		Type:                   name,
		InstanceCount:          len(objs),
		GenerationDistribution: make(map[uint32]int),
	}
	if len(objs) == 0 {
		return stats
	}

	for _, obj := range objs {
		stats.TotalSize += obj.ShallowSize
		stats.TotalRetainedSize += obj.RetainedSize
		stats.GenerationDistribution[obj.Generation]++
	}
	stats.AvgSize = float64(stats.TotalSize) / float64(len(objs))

	largest := make([]*snapshot.Object, len(objs))
	copy(largest, objs)
	sort.Slice(largest, func(i, j int) bool {
		if largest[i].RetainedSize != largest[j].RetainedSize {
			return largest[i].RetainedSize > largest[j].RetainedSize
		}
		return largest[i].Address < largest[j].Address
	})
	if len(largest) > largestPerType {
		largest = largest[:largestPerType]
	}
	stats.Largest = largest
	return stats
}
