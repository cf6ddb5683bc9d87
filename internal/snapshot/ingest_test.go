package snapshot

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	objects []ObjectRecord
	roots   []RootRecord
	failAt  int // 1-based record index to fail the walk at, 0 = never
}

func (f *fakeSource) WalkObjects(fn func(ObjectRecord) error) error {
	for i, rec := range f.objects {
		if f.failAt > 0 && i+1 == f.failAt {
			return errors.New("dump stream died")
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSource) WalkRoots(fn func(RootRecord) error) error {
	for _, rec := range f.roots {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func TestPopulateSkipRules(t *testing.T) {
	src := &fakeSource{objects: []ObjectRecord{
		{Address: 0x100, Type: "Foo", Size: 8},
		{Address: 0, Type: "Foo", Size: 8},    // zero address
		{Address: 0x200, Type: "", Size: 8},   // missing type
		{Address: 0x300, Type: "Bar", Size: 0}, // zero size
		{Address: 0x400, Type: "Bar", Size: 16},
	}}

	snap := New(1, time.Now())
	require.NoError(t, snap.Populate(src, IngestOptions{}))

	require.Equal(t, 2, snap.Processed)
	require.Equal(t, 3, snap.Skipped)
	require.Equal(t, 2, snap.NumObjects())
	require.True(t, snap.Analyzed())
}

func TestPopulateFiltersReferences(t *testing.T) {
	refs := []RefRecord{
		{Target: 0x200, TargetType: "Bar", Field: "left"},
		{Target: 0, TargetType: "Bar", Field: "null"},      // dropped: zero target
		{Target: 0x300, TargetType: "", Field: "untyped"},  // dropped: no type
		{Target: 0x400, TargetType: "Bar", Field: "right"},
	}
	src := &fakeSource{objects: []ObjectRecord{
		{Address: 0x100, Type: "Foo", Size: 8, References: refs},
	}}

	snap := New(1, time.Now())
	require.NoError(t, snap.Populate(src, IngestOptions{}))

	obj := snap.Get(0x100)
	require.Len(t, obj.References, 2)
	require.Equal(t, Address(0x200), obj.References[0].Target)
	require.Equal(t, Address(0x400), obj.References[1].Target)
	for _, ref := range obj.References {
		require.Equal(t, Address(0x100), ref.Source)
	}
}

func TestPopulateCapsReferences(t *testing.T) {
	refs := make([]RefRecord, MaxRefsPerObject+25)
	for i := range refs {
		refs[i] = RefRecord{Target: uint64(0x1000 + i), TargetType: "Elem", Field: fmt.Sprintf("[%d]", i)}
	}
	src := &fakeSource{objects: []ObjectRecord{
		{Address: 0x100, Type: "Elem[]", Size: 8, References: refs},
	}}

	snap := New(1, time.Now())
	require.NoError(t, snap.Populate(src, IngestOptions{}))

	require.Len(t, snap.Get(0x100).References, MaxRefsPerObject)
	require.Equal(t, 25, snap.TruncatedRefs)
}

func TestPopulateCapsAfterFiltering(t *testing.T) {
	// 30 dangling refs up front, then MaxRefsPerObject+10 valid ones.
	// The cap applies to the filtered set: the junk must not crowd out
	// valid references past the raw cutoff, and only valid references
	// beyond the cap count as truncated.
	refs := make([]RefRecord, 0, MaxRefsPerObject+40)
	for i := 0; i < 30; i++ {
		refs = append(refs, RefRecord{Target: 0, TargetType: "Elem", Field: "null"})
	}
	for i := 0; i < MaxRefsPerObject+10; i++ {
		refs = append(refs, RefRecord{Target: uint64(0x1000 + i), TargetType: "Elem", Field: fmt.Sprintf("[%d]", i)})
	}
	src := &fakeSource{objects: []ObjectRecord{
		{Address: 0x100, Type: "Elem[]", Size: 8, References: refs},
	}}

	snap := New(1, time.Now())
	require.NoError(t, snap.Populate(src, IngestOptions{}))

	kept := snap.Get(0x100).References
	require.Len(t, kept, MaxRefsPerObject)
	for _, ref := range kept {
		require.NotZero(t, ref.Target)
	}
	require.Equal(t, 10, snap.TruncatedRefs)
}

func TestPopulateEarlyAbortOnCorruptDump(t *testing.T) {
	// 300 readable objects followed by junk: once past 1,000 records the
	// skip ratio trips the abort.
	var objects []ObjectRecord
	for i := 0; i < 300; i++ {
		objects = append(objects, ObjectRecord{Address: uint64(0x1000 + i), Type: "Foo", Size: 8})
	}
	for i := 0; i < 900; i++ {
		objects = append(objects, ObjectRecord{})
	}
	src := &fakeSource{objects: objects}

	snap := New(1, time.Now())
	err := snap.Populate(src, IngestOptions{})
	require.ErrorIs(t, err, ErrCorruptDump)
	require.False(t, snap.Analyzed())
	require.Equal(t, 300, snap.Processed)
}

func TestPopulateSourceFailureLeavesPartialState(t *testing.T) {
	src := &fakeSource{
		objects: []ObjectRecord{
			{Address: 0x100, Type: "Foo", Size: 8},
			{Address: 0x200, Type: "Foo", Size: 8},
			{Address: 0x300, Type: "Foo", Size: 8},
		},
		failAt: 3,
	}

	snap := New(1, time.Now())
	err := snap.Populate(src, IngestOptions{})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCorruptDump)

	require.Equal(t, 2, snap.NumObjects())
	require.False(t, snap.Analyzed(), "wholesale failure leaves the snapshot un-analyzed")
}

func TestPopulateProgressHook(t *testing.T) {
	var objects []ObjectRecord
	for i := 0; i < 50_001; i++ {
		objects = append(objects, ObjectRecord{Address: uint64(0x1000 + i), Type: "Foo", Size: 8})
	}
	src := &fakeSource{objects: objects}

	var calls []int
	snap := New(1, time.Now())
	err := snap.Populate(src, IngestOptions{
		Progress: func(processed int) { calls = append(calls, processed) },
	})
	require.NoError(t, err)
	require.Equal(t, []int{25_000, 50_000}, calls)
}

func TestPopulateEmptySourceIsNotAnalyzed(t *testing.T) {
	snap := New(1, time.Now())
	require.NoError(t, snap.Populate(&fakeSource{}, IngestOptions{}))
	require.False(t, snap.Analyzed())
	require.Equal(t, 0, snap.NumObjects())
}
