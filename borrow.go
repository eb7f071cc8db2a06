package ecs

import "sync/atomic"

// accessMode is the per-column access a fetch requests: shared (read) or
// exclusive (write) (spec §4.4).
type accessMode uint8

const (
	accessShared accessMode = iota
	accessExclusive
)

const (
	borrowMax    = ^uint64(0) >> 2
	borrowLocked = 1 + (^uint64(0) >> 1)
)

// borrowCell is a thread-safe borrow lock guarding one (archetype, column)
// pair, or a resource slot. It allows N concurrent shared borrows or one
// exclusive borrow, never both (spec §3 invariant: "No two writable
// borrows of the same column of the same archetype may be live
// concurrently"). Grounded on original_source's AtomicBorrowLock.
type borrowCell struct {
	state       atomic.Uint64
	contention  atomic.Uint64 // times a borrow attempt found the lock already held
}

func (b *borrowCell) tryShared() bool {
	old := b.state.Add(1) - 1
	if old < borrowLocked {
		if old >= borrowMax {
			b.state.Add(^uint64(0)) // -1
			panic("ecs: too many concurrent borrows")
		}
		return true
	}
	b.state.Add(^uint64(0))
	b.contention.Add(1)
	return false
}

func (b *borrowCell) releaseShared() { b.state.Add(^uint64(0)) }

func (b *borrowCell) tryExclusive() bool {
	if b.state.CompareAndSwap(0, borrowLocked) {
		return true
	}
	b.contention.Add(1)
	return false
}

func (b *borrowCell) releaseExclusive() { b.state.Add(^(borrowLocked - 1)) }

func (b *borrowCell) tryAccess(mode accessMode) bool {
	if mode == accessExclusive {
		return b.tryExclusive()
	}
	return b.tryShared()
}

func (b *borrowCell) releaseAccess(mode accessMode) {
	if mode == accessExclusive {
		b.releaseExclusive()
	} else {
		b.releaseShared()
	}
}

// Contention returns the number of times a borrow attempt on this cell
// found it already held by an incompatible access (design notes §11.5).
func (b *borrowCell) Contention() uint64 { return b.contention.Load() }

// BorrowStat reports one borrow cell's observed contention, identifying
// either an archetype column or a resource slot (SPEC_FULL §11.5).
type BorrowStat struct {
	// Archetype is the owning archetype's index, or -1 for a resource.
	Archetype int
	// Component is the column's component id, meaningless for a resource.
	Component uint8
	// Resource names the resource type, empty for an archetype column.
	Resource   string
	Contention uint64
}
