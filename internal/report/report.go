// Package report condenses an analyzed snapshot into an immutable
// summary: per-type statistics, per-generation rollups and the largest
// retainers.
package report

import (
	"sort"
	"time"

	"github.com/mabhi256/heapscope/internal/snapshot"
)

// LargestObjectCount is how many top retainers a report carries.
const LargestObjectCount = 50

// TypeStatistic is one per-type row, aggregated over every instance of
// the exact type.
type TypeStatistic struct {
	Type              string `json:"type"`
	InstanceCount     int    `json:"instanceCount"`
	TotalSize         uint64 `json:"totalSize"`
	TotalRetainedSize uint64 `json:"totalRetainedSize"`
}

// GenerationStatistic is one per-generation rollup row.
type GenerationStatistic struct {
	Generation        uint32 `json:"generation"`
	ObjectCount       int    `json:"objectCount"`
	TotalSize         uint64 `json:"totalSize"`
	TotalRetainedSize uint64 `json:"totalRetainedSize"`
}

// ObjectSummary is a plain-data view of one object, detached from the
// snapshot it came from.
type ObjectSummary struct {
	Address      snapshot.Address `json:"address"`
	Type         string           `json:"type"`
	ShallowSize  uint64           `json:"shallowSize"`
	RetainedSize uint64           `json:"retainedSize"`
	Generation   uint32           `json:"generation"`
	IsRoot       bool             `json:"isRoot"`
}

// HeapAnalysisReport is the final product of an analysis run. Honest
// about its own quality: the flags say when retained sizes are
// approximations and why.
type HeapAnalysisReport struct {
	SnapshotTime time.Time `json:"snapshotTime"`
	ProcessID    int       `json:"processId"`
	TotalObjects int       `json:"totalObjects"`
	TotalMemory  uint64    `json:"totalMemory"`

	TypeStatistics       []TypeStatistic       `json:"typeStatistics"`
	GenerationStatistics []GenerationStatistic `json:"generationStatistics"`
	LargestObjects       []ObjectSummary       `json:"largestObjects"`

	RetainedIsApproximate bool `json:"retainedIsApproximate"`
	RootsViaRefcount      bool `json:"rootsViaRefcount"`
	ReferencesTruncated   int  `json:"referencesTruncated"`
}

// Build produces a report from the snapshot's current state. An empty
// snapshot yields zeroed aggregates, not an error.
func Build(snap *snapshot.Snapshot) *HeapAnalysisReport {
	rep := &HeapAnalysisReport{
		SnapshotTime:          snap.CaptureTime,
		ProcessID:             snap.ProcessID,
		RetainedIsApproximate: snap.RetainedApproximate,
		RootsViaRefcount:      snap.RootsViaRefcount,
		ReferencesTruncated:   snap.TruncatedRefs,
	}

	byType := make(map[string]*TypeStatistic)
	byGen := make(map[uint32]*GenerationStatistic)
	all := make([]ObjectSummary, 0, snap.NumObjects())

	snap.ForEachObject(func(obj *snapshot.Object) {
		rep.TotalObjects++
		rep.TotalMemory += obj.ShallowSize

		ts, ok := byType[obj.Type]
		if !ok {
			ts = &TypeStatistic{Type: obj.Type}
			byType[obj.Type] = ts
		}
		ts.InstanceCount++
		ts.TotalSize += obj.ShallowSize
		ts.TotalRetainedSize += obj.RetainedSize

		gs, ok := byGen[obj.Generation]
		if !ok {
			gs = &GenerationStatistic{Generation: obj.Generation}
			byGen[obj.Generation] = gs
		}
		gs.ObjectCount++
		gs.TotalSize += obj.ShallowSize
		gs.TotalRetainedSize += obj.RetainedSize

		all = append(all, ObjectSummary{
			Address:      obj.Address,
			Type:         obj.Type,
			ShallowSize:  obj.ShallowSize,
			RetainedSize: obj.RetainedSize,
			Generation:   obj.Generation,
			IsRoot:       obj.IsRoot(),
		})
	})

	for _, ts := range byType {
		rep.TypeStatistics = append(rep.TypeStatistics, *ts)
	}
	sort.Slice(rep.TypeStatistics, func(i, j int) bool {
		a, b := rep.TypeStatistics[i], rep.TypeStatistics[j]
		if a.TotalRetainedSize != b.TotalRetainedSize {
			return a.TotalRetainedSize > b.TotalRetainedSize
		}
		return a.Type < b.Type
	})

	for _, gs := range byGen {
		rep.GenerationStatistics = append(rep.GenerationStatistics, *gs)
	}
	sort.Slice(rep.GenerationStatistics, func(i, j int) bool {
		return rep.GenerationStatistics[i].Generation < rep.GenerationStatistics[j].Generation
	})

	sort.Slice(all, func(i, j int) bool {
		if all[i].RetainedSize != all[j].RetainedSize {
			return all[i].RetainedSize > all[j].RetainedSize
		}
		return all[i].Address < all[j].Address
	})
	if len(all) > LargestObjectCount {
		all = all[:LargestObjectCount]
	}
	rep.LargestObjects = all

	return rep
}
