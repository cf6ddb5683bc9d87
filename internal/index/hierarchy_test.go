package index_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mabhi256/heapscope/internal/index"
	"github.com/mabhi256/heapscope/internal/snapshot"
)

func TestBaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"List<Int>", "List"},
		{"List<List<String>>", "List"},
		{"Int[]", "Int"},
		{"Dictionary<String, Object>[]", "Dictionary"},
		{"Plain", "Plain"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, index.BaseName(tt.in), "BaseName(%q)", tt.in)
	}
}

func TestHierarchyRollup(t *testing.T) {
	snap := snapWith(t,
		snapshot.ObjectRecord{Address: 0x100, Type: "List<Int>", Size: 10},
		snapshot.ObjectRecord{Address: 0x200, Type: "List<Int>", Size: 10},
		snapshot.ObjectRecord{Address: 0x300, Type: "List<String>", Size: 30},
		snapshot.ObjectRecord{Address: 0x400, Type: "Set<Int>", Size: 100},
	)
	h := index.NewHierarchy(snap)

	stats := h.Stats("List")
	require.Equal(t, 0, stats.DirectInstances, "no objects of the bare base type")
	require.Equal(t, 3, stats.TotalInstances)
	require.Equal(t, uint64(50), stats.TotalSize)
	require.Equal(t, []string{"List<Int>", "List<String>"}, stats.DerivedTypes)

	// Exact generic names keep their own direct counts and pick up
	// siblings of the same base.
	statsInt := h.Stats("List<Int>")
	require.Equal(t, 2, statsInt.DirectInstances)
	require.Equal(t, uint64(20), statsInt.DirectSize)
	require.Equal(t, 3, statsInt.TotalInstances)
	require.Equal(t, []string{"List<String>"}, statsInt.DerivedTypes)
}

func TestHierarchyNestedTypes(t *testing.T) {
	snap := snapWith(t,
		snapshot.ObjectRecord{Address: 0x100, Type: "Outer", Size: 8},
		snapshot.ObjectRecord{Address: 0x200, Type: "Outer+Inner", Size: 16},
		snapshot.ObjectRecord{Address: 0x300, Type: "Outer+Inner+Deepest", Size: 32},
	)
	h := index.NewHierarchy(snap)

	stats := h.Stats("Outer")
	require.Equal(t, 1, stats.DirectInstances)
	require.Equal(t, 3, stats.TotalInstances)
	require.Equal(t, uint64(56), stats.TotalSize)
	require.ElementsMatch(t, []string{"Outer+Inner", "Outer+Inner+Deepest"}, stats.DerivedTypes)
}

func TestHierarchyUnknownType(t *testing.T) {
	h := index.NewHierarchy(snapWith(t))
	stats := h.Stats("Ghost")
	require.Zero(t, stats.TotalInstances)
	require.Empty(t, stats.DerivedTypes)
}
