package ecs

import (
	"reflect"
	"unsafe"

	"go.uber.org/zap"
)

// Builder configures a World before Build (spec §4.1, §6 "Builder config
// options"). Construct with NewBuilder, chain the With*/Register*
// functions, then call Build.
type Builder struct {
	idSource      IdRangeAllocator
	logger        *zap.Logger
	registry      *typeRegistry
	relationMetas []*relationMeta
	err           error
}

// NewBuilder starts a Builder with the default id-range allocator, a
// no-op logger, and an empty type registry.
func NewBuilder() *Builder {
	return &Builder{
		idSource: &defaultRangeAllocator{},
		logger:   zap.NewNop(),
		registry: newTypeRegistry(),
	}
}

// WithIdRangeSource overrides the default [1, 2^64-2] allocator, e.g. to
// partition a server World and its clients into disjoint ranges (spec
// §4.2, SPEC_FULL §11.1).
func (b *Builder) WithIdRangeSource(source IdRangeAllocator) *Builder {
	b.idSource = source
	return b
}

// WithLogger installs a structured logger (SPEC_FULL §9 "Structured
// logging"). Defaults to zap.NewNop() if never called.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// RegisterComponent explicitly registers component type T with opts,
// overriding anything an implicit SelfRegistering registration would
// have supplied. Calling this after Build has run fails with
// AlreadyRegistered (spec §4.1).
func RegisterComponent[T any](b *Builder, opts ComponentOptions) *Builder {
	if b.err != nil {
		return b
	}
	_, err := b.registry.register(reflect.TypeFor[T](), opts, true)
	if err != nil {
		b.err = err
	}
	return b
}

// ReplaceHook runs when component T is overwritten by a second Insert
// while already present on the entity. It sees the outgoing and
// incoming values, the entity, and a local action buffer to record
// further effects into. Returning false suppresses the drop-hook that
// would otherwise also run on the outgoing value (spec §4.8).
type ReplaceHook[T any] func(old, new *T, e EId, enc *ActionEncoder) bool

// DropHook runs when component T is destroyed, by despawn or by being
// overwritten (unless suppressed by a ReplaceHook returning false). It
// never runs on Remove, which transfers ownership to the caller instead
// (spec §4.8).
type DropHook[T any] func(value *T, e EId, enc *ActionEncoder)

// RegisterHooks attaches replace/drop hooks to component type T,
// registering T if it has not been seen yet.
func RegisterHooks[T any](b *Builder, replace ReplaceHook[T], drop DropHook[T]) *Builder {
	if b.err != nil {
		return b
	}
	t := reflect.TypeFor[T]()
	d, err := b.registry.register(t, ComponentOptions{}, false)
	if err != nil {
		b.err = err
		return b
	}
	if replace != nil {
		d.replace = func(oldPtr, newPtr unsafe.Pointer, e EId, enc *ActionEncoder) bool {
			return replace((*T)(oldPtr), (*T)(newPtr), e, enc)
		}
	}
	if drop != nil {
		d.drop = func(ptr unsafe.Pointer, e EId, enc *ActionEncoder) {
			drop((*T)(ptr), e, enc)
		}
	}
	return b
}

// RegisterBorrow attaches a borrow descriptor projecting a *Target out
// of a component of type T (spec §4.1, §4.4 "BorrowAll/BorrowAny/
// BorrowOne"). project must return a pointer aliasing storage owned by
// the T value it was given; it must not allocate a fresh copy.
func RegisterBorrow[T any, Target any](b *Builder, project func(*T) *Target) *Builder {
	if b.err != nil {
		return b
	}
	t := reflect.TypeFor[T]()
	d, err := b.registry.register(t, ComponentOptions{}, false)
	if err != nil {
		b.err = err
		return b
	}
	d.borrows = append(d.borrows, BorrowDescriptor{
		Target: reflect.TypeFor[Target](),
		Project: func(compPtr unsafe.Pointer) unsafe.Pointer {
			return unsafe.Pointer(project((*T)(compPtr)))
		},
	})
	return b
}

// Build finalizes the World. Once built, RegisterComponent calls targeting
// an already-registered type fail with AlreadyRegistered (spec §4.1).
func (b *Builder) Build() (*World, error) {
	if b.err != nil {
		return nil, b.err
	}
	w := newWorld(b)
	for _, meta := range b.relationMetas {
		w.relations.byForwardID[meta.forwardID] = meta
		w.relations.byMirrorID[meta.mirrorID] = meta
	}
	w.logger.Debug("world built", zapInt("components_registered", int(b.registry.nextID)))
	return w, nil
}
