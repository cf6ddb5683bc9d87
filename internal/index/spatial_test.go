package index_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mabhi256/heapscope/internal/index"
	"github.com/mabhi256/heapscope/internal/snapshot"
)

func snapWith(t *testing.T, recs ...snapshot.ObjectRecord) *snapshot.Snapshot {
	t.Helper()
	snap := snapshot.New(1, time.Now())
	for _, rec := range recs {
		snap.AddRecord(rec)
	}
	return snap
}

func addrs(objs []*snapshot.Object) []snapshot.Address {
	if len(objs) == 0 {
		return nil
	}
	out := make([]snapshot.Address, len(objs))
	for i, obj := range objs {
		out[i] = obj.Address
	}
	return out
}

func TestSpatialRange(t *testing.T) {
	snap := snapWith(t,
		snapshot.ObjectRecord{Address: 0x100, Type: "A", Size: 8},
		snapshot.ObjectRecord{Address: 0x200, Type: "A", Size: 8},
		snapshot.ObjectRecord{Address: 0x300, Type: "A", Size: 8},
		snapshot.ObjectRecord{Address: 0x400, Type: "A", Size: 8},
	)
	sp := index.NewSpatial(snap)

	tests := []struct {
		name   string
		lo, hi snapshot.Address
		want   []snapshot.Address
	}{
		{"inner window", 0x150, 0x350, []snapshot.Address{0x200, 0x300}},
		{"inclusive bounds", 0x200, 0x300, []snapshot.Address{0x200, 0x300}},
		{"everything", 0, 0xffff, []snapshot.Address{0x100, 0x200, 0x300, 0x400}},
		{"empty window", 0x201, 0x2ff, nil},
		{"inverted", 0x300, 0x200, nil},
		{"below all", 0, 0xff, nil},
		{"above all", 0x500, 0x600, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, addrs(sp.Range(tt.lo, tt.hi)))
		})
	}
}

func TestSpatialRangeSpansBuckets(t *testing.T) {
	recs := make([]snapshot.ObjectRecord, 2500)
	for i := range recs {
		recs[i] = snapshot.ObjectRecord{Address: uint64(0x1000 + i*16), Type: "A", Size: 8}
	}
	sp := index.NewSpatial(snapWith(t, recs...))

	got := sp.Range(0x1000, snapshot.Address(0x1000+2499*16))
	require.Len(t, got, 2500)

	// Ascending address order across bucket boundaries.
	for i := 1; i < len(got); i++ {
		require.Less(t, got[i-1].Address, got[i].Address)
	}
}

func TestSpatialNearbySaturates(t *testing.T) {
	snap := snapWith(t,
		snapshot.ObjectRecord{Address: 0x10, Type: "A", Size: 8},
		snapshot.ObjectRecord{Address: 0x40, Type: "A", Size: 8},
	)
	sp := index.NewSpatial(snap)

	// prox larger than the address: lower bound saturates at zero.
	require.Equal(t, []snapshot.Address{0x10, 0x40}, addrs(sp.Nearby(0x10, 0x100)))
	require.Equal(t, []snapshot.Address{0x10}, addrs(sp.Nearby(0x10, 0x10)))
}

func TestSizeRangeBuckets(t *testing.T) {
	// Sizes straddling every size class.
	sizes := []uint64{50, 900, 5000, 50_000, 900_000, 2 << 20}
	recs := make([]snapshot.ObjectRecord, len(sizes))
	for i, size := range sizes {
		recs[i] = snapshot.ObjectRecord{Address: uint64(0x1000 * (i + 1)), Type: "A", Size: size}
	}
	sp := index.NewSpatial(snapWith(t, recs...))

	got := sp.SizeRange(1000, 100_000)
	require.Len(t, got, 2)
	require.Equal(t, uint64(5000), got[0].ShallowSize)
	require.Equal(t, uint64(50_000), got[1].ShallowSize)

	require.Len(t, sp.SizeRange(0, 3<<20), len(sizes))
	require.Empty(t, sp.SizeRange(3<<20, 4<<20))
	require.Empty(t, sp.SizeRange(100_000, 1000))
}

func TestSpatialEmptySnapshot(t *testing.T) {
	sp := index.NewSpatial(snapshot.New(1, time.Now()))
	require.Empty(t, sp.Range(0, 0xffff))
	require.Empty(t, sp.SizeRange(0, 1<<30))
	require.Empty(t, sp.Nearby(0x100, 50))
}
