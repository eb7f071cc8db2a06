package ecs

import (
	"reflect"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// MaxComponentTypes bounds how many distinct component types (including
// synthetic relation components) a single World may register. Archetype
// membership masks are fixed-width bitsets sized to this constant, in the
// manner of the teacher library's bitmask256.
const MaxComponentTypes = 256

// SelfRegistering is implemented by component types that want to be
// implicitly registered on first insert, without an explicit builder-time
// registration call (spec §4.1).
type SelfRegistering interface {
	ECSComponent() ComponentOptions
}

// ComponentOptions configures implicit or explicit registration of a
// component type.
type ComponentOptions struct {
	// Sendable marks the component as safe to access from a thread other
	// than the one that built the World. Non-sendable components may be
	// accessed only from the goroutine that built the World; other
	// goroutines get WrongThread (spec §4.7).
	Sendable bool
}

// replaceHookFn and dropHookFn are the type-erased forms hook callbacks are
// stored as in the registry; typed wrappers (RegisterHooks) cast the raw
// pointers back to *T before calling user code.
type replaceHookFn func(oldPtr, newPtr unsafe.Pointer, e EId, enc *ActionEncoder) bool
type dropHookFn func(ptr unsafe.Pointer, e EId, enc *ActionEncoder)

// BorrowDescriptor projects a (possibly unsized) view of some target type
// out of a component's storage, backing the BorrowAll/BorrowAny/BorrowOne
// fetches (spec §4.4).
type BorrowDescriptor struct {
	Target  reflect.Type
	Project func(compPtr unsafe.Pointer) unsafe.Pointer
}

// componentDescriptor is the per-component-type vtable held by the type
// registry: layout, drop thunk, hooks, and borrow descriptors (spec §4.1).
type componentDescriptor struct {
	typ      reflect.Type
	key      TypeKey
	id       uint8
	size     uintptr
	sendable bool
	replace  replaceHookFn
	drop     dropHookFn
	borrows  []BorrowDescriptor
}

// typeRegistry records per-component-type descriptors (spec §4.1).
type typeRegistry struct {
	byType   map[reflect.Type]*componentDescriptor
	byID     [MaxComponentTypes]*componentDescriptor
	nextID   uint8
	worldUp  bool // true once the owning World has completed Build()
}

func newTypeRegistry() *typeRegistry {
	return &typeRegistry{
		byType: make(map[reflect.Type]*componentDescriptor, 16),
	}
}

func typeKeyOf(t reflect.Type) TypeKey {
	return TypeKey(xxhash.Sum64String(t.PkgPath() + "." + t.String()))
}

// lookup returns the descriptor for t, or nil.
func (r *typeRegistry) lookup(t reflect.Type) *componentDescriptor {
	return r.byType[t]
}

// register records a new descriptor, or returns the existing one if t is
// already registered and override is false. If override is true and the
// world is already live, registration fails with AlreadyRegistered.
func (r *typeRegistry) register(t reflect.Type, opts ComponentOptions, override bool) (*componentDescriptor, error) {
	if d, ok := r.byType[t]; ok {
		if override {
			if r.worldUp {
				return nil, errType(KindAlreadyRegistered, t.String())
			}
			d.sendable = opts.Sendable
			return d, nil
		}
		return d, nil
	}
	if override && r.worldUp {
		return nil, errType(KindAlreadyRegistered, t.String())
	}
	if int(r.nextID) >= MaxComponentTypes {
		panic("ecs: too many component types registered")
	}
	d := &componentDescriptor{
		typ:      t,
		key:      typeKeyOf(t),
		id:       r.nextID,
		size:     t.Size(),
		sendable: opts.Sendable,
	}
	r.byID[r.nextID] = d
	r.byType[t] = d
	r.nextID++
	return d, nil
}

// implicitRegister performs the implicit-registration path described in
// spec §4.1: a type that implements SelfRegistering is registered lazily
// on first insert using the descriptor it advertises. Types that don't,
// and have not been explicitly registered, fail with NotRegistered.
func (r *typeRegistry) implicitRegister(t reflect.Type, selfOpts *ComponentOptions) (*componentDescriptor, error) {
	if d, ok := r.byType[t]; ok {
		return d, nil
	}
	if selfOpts == nil {
		return nil, errType(KindNotRegistered, t.String())
	}
	return r.register(t, *selfOpts, false)
}

func selfOptionsFor(t reflect.Type) *ComponentOptions {
	zero := reflect.New(t).Elem().Interface()
	if sr, ok := zero.(SelfRegistering); ok {
		opts := sr.ECSComponent()
		return &opts
	}
	return nil
}
