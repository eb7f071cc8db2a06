package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientAndServerRangeAllocatorsAreDisjoint(t *testing.T) {
	client := ClientRangeAllocator().AllocateRange()
	server := ServerRangeAllocator().AllocateRange()
	require.True(t, client.End <= server.Start, "client and server partitions must not overlap")
}

// spec §4.2: the default range is [1, 2^64-2] inclusive, which for this
// half-open IdRange means End must be 2^64-1 (EId(^uint64(0))), not one
// less.
func TestDefaultRangeAllocatorCoversFullSpan(t *testing.T) {
	r := (&defaultRangeAllocator{}).AllocateRange()
	require.Equal(t, EId(1), r.Start)
	require.Equal(t, EId(^uint64(0)), r.End)
	require.Equal(t, ^uint64(0)-1, r.count(), "count of [1, 2^64-1) is 2^64-2 allocatable ids")
}

func TestOneRangeAllocatorExhaustsAfterOneRange(t *testing.T) {
	a := FixedRangeAllocator(IdRange{Start: 1, End: 10})
	first := a.AllocateRange()
	require.Equal(t, IdRange{Start: 1, End: 10}, first)
	second := a.AllocateRange()
	require.Equal(t, IdRange{}, second)
}

func TestIdAllocatorDrawsFromCurrentThenNextRange(t *testing.T) {
	ranges := []IdRange{{Start: 1, End: 3}, {Start: 100, End: 103}, {Start: 200, End: 201}}
	idx := 0
	src := rangeSeq(func() IdRange {
		r := ranges[idx]
		if idx < len(ranges)-1 {
			idx++
		}
		return r
	})
	a := newIdAllocator(src)

	var got []EId
	for i := 0; i < 5; i++ {
		id, ok := a.alloc()
		require.True(t, ok)
		got = append(got, id)
	}
	require.Equal(t, []EId{1, 2, 100, 101, 102}, got)
}

// SPEC_FULL §11.2: ReserveEntity precomputes ids without placing them,
// and FlushReserved materializes every id reserved since the last flush.
func TestReserveEntityThenFlush(t *testing.T) {
	w := buildPosVelWorld(t)

	r1 := w.ReserveEntity()
	r2 := w.ReserveEntity()
	require.False(t, w.Exists(r1), "a reserved id is not yet placed in an archetype")
	require.False(t, w.Exists(r2))
	require.NotEqual(t, r1, r2)

	w.FlushReserved()
	require.True(t, w.Exists(r1))
	require.True(t, w.Exists(r2))
}

// rangeSeq adapts a plain func() IdRange to the IdRangeAllocator interface
// for tests that need to script a sequence of ranges.
type rangeSeq func() IdRange

func (f rangeSeq) AllocateRange() IdRange { return f() }
