package ecs

import "reflect"

// resourceSlot holds one resource's value alongside its own borrow cell
// and sendability marker (spec §3 "Resources carry a sendable-marker and
// an independent borrow cell").
type resourceSlot struct {
	value    any
	borrow   borrowCell
	sendable bool
}

// resourceMap stores singleton resources keyed by their reflect.Type,
// outside archetype storage (spec §3).
type resourceMap struct {
	slots map[reflect.Type]*resourceSlot
}

func newResourceMap() *resourceMap {
	return &resourceMap{slots: make(map[reflect.Type]*resourceSlot, 8)}
}

// ResourceInsert adds or replaces the resource of type T. sendable marks
// whether the resource may be accessed from a thread other than the
// World's owner (spec §4.7, §6 "resource_insert"). The resource is always
// held as a *T internally so Resource and ResourceMut hand back aliases
// of the same storage.
func ResourceInsert[T any](w *World, value T, sendable bool) {
	boxed := value
	t := reflect.TypeOf(value)
	w.resources.slots[t] = &resourceSlot{value: &boxed, sendable: sendable}
}

// Resource acquires a shared borrow of the resource of type T and
// returns it, or MissingResource if none was inserted, or BorrowConflict
// if an exclusive borrow is already outstanding. Pair with
// ReleaseResource[T] when done, mirroring the column borrow discipline
// of views (spec §3 "Resources carry ... an independent borrow cell").
func Resource[T any](w *World) (*T, error) {
	var zero T
	t := reflect.TypeOf(zero)
	slot, ok := w.resources.slots[t]
	if !ok {
		return nil, errType(KindMissingResource, t.String())
	}
	if err := w.checkThread(slot.sendable); err != nil {
		return nil, err
	}
	if !slot.borrow.tryAccess(accessShared) {
		return nil, errType(KindBorrowConflict, t.String())
	}
	return slot.value.(*T), nil
}

// ResourceMut acquires an exclusive borrow of the resource of type T and
// returns it, or MissingResource if none was inserted, or BorrowConflict
// if any borrow is already outstanding. Pair with ReleaseResourceMut[T].
func ResourceMut[T any](w *World) (*T, error) {
	var zero T
	t := reflect.TypeOf(zero)
	slot, ok := w.resources.slots[t]
	if !ok {
		return nil, errType(KindMissingResource, t.String())
	}
	if err := w.checkThread(slot.sendable); err != nil {
		return nil, err
	}
	if !slot.borrow.tryAccess(accessExclusive) {
		return nil, errType(KindBorrowConflict, t.String())
	}
	return slot.value.(*T), nil
}

// ReleaseResource releases a shared borrow acquired by Resource[T].
func ReleaseResource[T any](w *World) {
	var zero T
	t := reflect.TypeOf(zero)
	if slot, ok := w.resources.slots[t]; ok {
		slot.borrow.releaseAccess(accessShared)
	}
}

// ReleaseResourceMut releases an exclusive borrow acquired by
// ResourceMut[T].
func ReleaseResourceMut[T any](w *World) {
	var zero T
	t := reflect.TypeOf(zero)
	if slot, ok := w.resources.slots[t]; ok {
		slot.borrow.releaseAccess(accessExclusive)
	}
}

// ResourceRemove deletes the resource of type T, if present.
func ResourceRemove[T any](w *World) {
	var zero T
	t := reflect.TypeOf(zero)
	delete(w.resources.slots, t)
}

// HasResource reports whether a resource of type T is currently present.
func HasResource[T any](w *World) bool {
	var zero T
	t := reflect.TypeOf(zero)
	_, ok := w.resources.slots[t]
	return ok
}
