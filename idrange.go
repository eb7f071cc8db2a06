package ecs

// IdRange is a half-open [Start, End) range of raw entity ids.
type IdRange struct {
	Start EId
	End   EId
}

func (r IdRange) count() uint64 { return uint64(r.End) - uint64(r.Start) }
func (r IdRange) empty() bool   { return r.Start >= r.End }

func (r *IdRange) take() (EId, bool) {
	if r.empty() {
		return 0, false
	}
	id := r.Start
	r.Start++
	return id, true
}

// IdRangeAllocator hands out disjoint ranges of entity ids. Supplying a
// custom allocator lets independent Worlds (e.g. a server and its
// clients) draw from guaranteed-disjoint partitions of the id space
// (spec §4.2). Implementations must never return overlapping ranges
// across calls, and must never return a range overlapping a range handed
// to any other allocator instance that is meant to stay disjoint from it.
type IdRangeAllocator interface {
	AllocateRange() IdRange
}

// defaultRangeAllocator yields the whole default range [1, 2^64-2] once,
// then exhausts (spec §4.2 "The default range is [1, 2^64-2]").
type defaultRangeAllocator struct {
	done bool
}

func (a *defaultRangeAllocator) AllocateRange() IdRange {
	if a.done {
		return IdRange{}
	}
	a.done = true
	return IdRange{Start: 1, End: EId(^uint64(0))}
}

// oneRangeAllocator yields a single pre-defined range once, mirroring the
// original implementation's OneRangeAllocator (original_source
// entity/allocator.rs).
type oneRangeAllocator struct {
	r    IdRange
	used bool
}

func (a *oneRangeAllocator) AllocateRange() IdRange {
	if a.used {
		return IdRange{}
	}
	a.used = true
	return a.r
}

// ClientRangeAllocator yields the pre-defined client partition [1, 2^48)
// once. Large enough to not overflow in years of continuous client
// activity (original_source entity/allocator.rs OneRangeAllocator::client).
func ClientRangeAllocator() IdRangeAllocator {
	return &oneRangeAllocator{r: IdRange{Start: 1, End: 1 << 48}}
}

// ServerRangeAllocator yields the pre-defined server partition
// [2^48, 2^64-1) once, disjoint from ClientRangeAllocator's range
// (original_source entity/allocator.rs OneRangeAllocator::server).
func ServerRangeAllocator() IdRangeAllocator {
	return &oneRangeAllocator{r: IdRange{Start: 1 << 48, End: EId(^uint64(0))}}
}

// FixedRangeAllocator yields exactly the given range once. Use to build
// disjoint partitions for a custom sharding scheme.
func FixedRangeAllocator(r IdRange) IdRangeAllocator {
	return &oneRangeAllocator{r: r}
}

// idAllocator draws ids one at a time from the current range, pulling a
// new range from the configured IdRangeAllocator when exhausted. It also
// supports reservation with a lookahead range, mirroring
// original_source's IdAllocator (current/next ranges, reserve/flush).
type idAllocator struct {
	current IdRange
	next    IdRange
	source  IdRangeAllocator
}

func newIdAllocator(source IdRangeAllocator) *idAllocator {
	return &idAllocator{
		current: source.AllocateRange(),
		next:    source.AllocateRange(),
		source:  source,
	}
}

// alloc returns the next id, or (0, false) if the allocator is exhausted.
func (a *idAllocator) alloc() (EId, bool) {
	if a.current.empty() {
		a.current = a.next
		a.next = a.source.AllocateRange()
	}
	return a.current.take()
}

// reserve returns the id that would be allocated at lookahead offset idx
// without consuming it. Callers must use increasing idx values starting
// at 0 between calls to flushReserved to avoid wasting ids.
func (a *idAllocator) reserve(idx uint64) (EId, bool) {
	if idx < a.current.count() {
		return EId(uint64(a.current.Start) + idx), true
	}
	idx2 := idx - a.current.count()
	if idx2 < a.next.count() {
		return EId(uint64(a.next.Start) + idx2), true
	}
	return 0, false
}

// flushReserved advances current/next past count reserved ids, pulling a
// fresh lookahead range as needed.
func (a *idAllocator) flushReserved(count uint64) {
	advanced := uint64(0)
	take := minU64(count, a.current.count())
	a.current.Start += EId(take)
	advanced += take
	if advanced < count {
		take2 := minU64(count-advanced, a.next.count())
		a.next.Start += EId(take2)
		advanced += take2
		a.current = a.next
		a.next = a.source.AllocateRange()
	}
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
