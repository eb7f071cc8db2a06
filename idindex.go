package ecs

// denseThreshold bounds the direct-address segment of the entity index.
// Ids below it are looked up via a plain slice (O(1), cache-friendly,
// appropriate for the default allocator's dense, monotonically increasing
// ids); ids at or above it fall back to a hash map, which is what a
// partitioned allocator's high ids (e.g. ServerRangeAllocator starting at
// 2^48) will hit (design notes §9).
const denseThreshold = EId(1) << 32

// entityIndex maps EId -> location (spec §4.2). It allocates ids from a
// configurable idAllocator and tracks liveness purely by presence: an id
// is alive iff it has a bound location.
type entityIndex struct {
	dense  []location
	sparse map[EId]location
	alloc  *idAllocator
}

func newEntityIndex(source IdRangeAllocator) *entityIndex {
	return &entityIndex{
		dense:  make([]location, 1), // index 0 is the reserved null id
		sparse: make(map[EId]location, 64),
		alloc:  newIdAllocator(source),
	}
}

func (ei *entityIndex) growDense(n int) {
	if n <= len(ei.dense) {
		return
	}
	newCap := n
	if newCap < 2*len(ei.dense) {
		newCap = 2 * len(ei.dense)
	}
	grown := make([]location, newCap)
	copy(grown, ei.dense)
	for i := len(ei.dense); i < newCap; i++ {
		grown[i] = nullLocation
	}
	ei.dense = grown
}

// allocate draws the next EId from the configured id-range allocator.
// Panics if the allocator is exhausted — it is an invariant violation for
// a world to run out of the 64-bit id space.
func (ei *entityIndex) allocate() EId {
	id, ok := ei.alloc.alloc()
	if !ok {
		panic("ecs: entity id allocator exhausted")
	}
	return id
}

func (ei *entityIndex) reserve(idx uint64) EId {
	id, ok := ei.alloc.reserve(idx)
	if !ok {
		panic("ecs: entity id allocator exhausted")
	}
	return id
}

func (ei *entityIndex) flushReserved(count uint64) { ei.alloc.flushReserved(count) }

// bind records loc as e's location, overwriting any prior binding.
func (ei *entityIndex) bind(e EId, loc location) {
	if e < denseThreshold {
		idx := int(e)
		ei.growDense(idx + 1)
		ei.dense[idx] = loc
		return
	}
	ei.sparse[e] = loc
}

// lookup returns e's location and whether e is present in the index.
func (ei *entityIndex) lookup(e EId) (location, bool) {
	if e == 0 {
		return nullLocation, false
	}
	if e < denseThreshold {
		idx := int(e)
		if idx >= len(ei.dense) {
			return nullLocation, false
		}
		loc := ei.dense[idx]
		return loc, loc.valid()
	}
	loc, ok := ei.sparse[e]
	return loc, ok
}

// relocate updates e's bound location in place. It must already be bound.
func (ei *entityIndex) relocate(e EId, loc location) { ei.bind(e, loc) }

// release removes e from the index.
func (ei *entityIndex) release(e EId) {
	if e < denseThreshold {
		idx := int(e)
		if idx < len(ei.dense) {
			ei.dense[idx] = nullLocation
		}
		return
	}
	delete(ei.sparse, e)
}
