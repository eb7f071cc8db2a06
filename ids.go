package ecs

// EId is an entity identifier. It is a 64-bit integer drawn from a
// configurable id-range allocator. Ids are never recycled and carry no
// generation counter: liveness is determined solely by presence in the
// entity index. Id 0 is reserved as the null id and is never allocated.
type EId uint64

// Epoch is a monotonically increasing world counter, bumped once per
// mutating top-level call and stamped on component writes for change
// detection.
type Epoch uint64

// TypeKey is a stable runtime type identity for a registered component or
// relation payload type, computed once at registration time.
type TypeKey uint64

// location pairs an archetype index with a row index within it.
type location struct {
	archetype int32
	row       int32
}

var nullLocation = location{archetype: -1, row: -1}

func (l location) valid() bool { return l.archetype >= 0 }
