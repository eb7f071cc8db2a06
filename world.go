package ecs

import (
	"reflect"
	"unsafe"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Located is the located-entity handle produced by the Entities fetch
// (spec §4.4): an EId plus its current archetype/row, letting later
// component access on the same row skip the entity-index lookup.
type Located struct {
	E       EId
	archIdx int
	row     int
}

// World is the facade coordinating the type registry, entity index,
// archetype store, resources, epoch counter, and action buffer (spec
// §4.7). All top-level mutating operations are methods on *World or
// package-level generic functions taking *World, mirroring the teacher
// library's split between World methods and free generic helpers
// (Builder[T], NewFilter[T]) for what Go cannot express as methods.
type World struct {
	id         uuid.UUID
	logger     *zap.Logger
	registry   *typeRegistry
	index      *entityIndex
	archetypes []*archetype
	archByMask map[componentMask]int
	resources  *resourceMap
	relations  *relationRegistry
	epoch      Epoch
	main       *ActionEncoder
	owner      uint64
	reserved   uint64
}

// ID returns this World's instance identity, generated at Build time and
// attached to every log line its logger emits (SPEC_FULL §10).
func (w *World) ID() uuid.UUID { return w.id }

// Epoch returns the current monotonic world epoch (spec §5 "Epoch reads
// during a view see a fixed value").
func (w *World) Epoch() Epoch { return w.epoch }

// Logger returns the world's structured logger.
func (w *World) Logger() *zap.Logger { return w.logger }

func newWorld(b *Builder) *World {
	w := &World{
		id:         uuid.New(),
		registry:   b.registry,
		index:      newEntityIndex(b.idSource),
		archByMask: make(map[componentMask]int, 16),
		resources:  newResourceMap(),
		relations:  newRelationRegistry(),
		main:       newActionEncoder(false),
		owner:      goroutineID(),
	}
	w.logger = b.logger.With(zapStringer("world", stringerFunc(w.id.String)))
	empty := newArchetype(0, componentMask{}, nil)
	w.archetypes = append(w.archetypes, empty)
	w.archByMask[componentMask{}] = 0
	w.registry.worldUp = true
	return w
}

type stringerFunc func() string

func (f stringerFunc) String() string { return f() }

// Drop releases a World's resources. The core holds no external handles
// (file descriptors, sockets) so Drop exists for symmetry with Build and
// to run any resource drop-hooks a host layer might add in the future;
// today it is a no-op beyond logging.
func Drop(w *World) {
	w.logger.Debug("world dropped")
}

// checkThread enforces the non-sendable access boundary (spec §4.7,
// §5 "Shared-resource policy"): sendable state may be touched from any
// goroutine; non-sendable state only from the goroutine that built the
// World.
func (w *World) checkThread(sendable bool) error {
	if sendable {
		return nil
	}
	if goroutineID() != w.owner {
		return errPlain(KindWrongThread, "ecs: non-sendable access from a thread other than the World's owner")
	}
	return nil
}

// bumpAndDrain advances the epoch and drains any actions recorded by a
// prior top-level call's hooks. Every public mutating entry point calls
// this before doing its own work (spec §4.6: a buffer "is drained ... at
// the top of the next mutating call"). Actions drained here run through
// the *Core functions directly, not through the public wrappers, so the
// drain loop itself never re-triggers bumpAndDrain.
func (w *World) bumpAndDrain() {
	w.epoch++
	w.drainActions()
}

// getOrRegisterDescriptor resolves t's componentDescriptor, performing
// the implicit-registration path of spec §4.1 when t has not been seen
// before and is self-describing.
func (w *World) getOrRegisterDescriptor(t reflect.Type) (*componentDescriptor, error) {
	if d := w.registry.lookup(t); d != nil {
		return d, nil
	}
	d, err := w.registry.implicitRegister(t, selfOptionsFor(t))
	if err == nil {
		w.logger.Debug("implicitly registered component type", zapString("type", t.String()))
	}
	return d, err
}

func (w *World) archetypeForMask(mask componentMask) *archetype {
	if idx, ok := w.archByMask[mask]; ok {
		return w.archetypes[idx]
	}
	ids := mask.ids()
	infos := make([]*componentDescriptor, len(ids))
	for i, id := range ids {
		infos[i] = w.registry.byID[id]
	}
	idx := len(w.archetypes)
	a := newArchetype(idx, mask, infos)
	w.archetypes = append(w.archetypes, a)
	w.archByMask[mask] = idx
	w.logger.Debug("new archetype created", zapInt("index", idx), zapInt("components", len(ids)))
	return a
}

// edgeAdd resolves src's cached add-edge for component id, creating and
// caching the destination archetype (and its reverse edge) on first
// traversal (spec §4.3 "Entries populate lazily on first traversal").
func (w *World) edgeAdd(src *archetype, id uint8) *archetype {
	if dest := src.addEdges[id]; dest != nil {
		return dest
	}
	dest := w.archetypeForMask(src.mask.with(id))
	src.addEdges[id] = dest
	if dest.removeEdges[id] == nil {
		dest.removeEdges[id] = src
	}
	return dest
}

func (w *World) edgeRemove(src *archetype, id uint8) *archetype {
	if dest := src.removeEdges[id]; dest != nil {
		return dest
	}
	dest := w.archetypeForMask(src.mask.without(id))
	src.removeEdges[id] = dest
	if dest.addEdges[id] == nil {
		dest.addEdges[id] = src
	}
	return dest
}

// Spawn creates a new entity with no components, placing it in the empty
// archetype (spec §4.3 "insert_empty"). Use SpawnBundle/BundleWith (spec
// §6 "spawn(bundle)") to place a new entity directly into its final
// archetype with initial components in a single mutating call.
func (w *World) Spawn() EId {
	w.bumpAndDrain()
	return w.spawnCore()
}

func (w *World) spawnCore() EId {
	e := w.index.allocate()
	empty := w.archetypes[0]
	row := empty.appendRow(e)
	w.index.bind(e, location{archetype: 0, row: int32(row)})
	return e
}

// ReserveEntity precomputes an EId without placing it into an archetype,
// for callers (e.g. a scheduler) that need ids up front. Call
// FlushReserved to actually materialize every id reserved since the last
// flush (SPEC_FULL §11.2, original_source entity/allocator.rs).
func (w *World) ReserveEntity() EId {
	id := w.index.reserve(w.reserved)
	w.reserved++
	return id
}

// FlushReserved materializes every id returned by ReserveEntity since the
// last flush into the empty archetype.
func (w *World) FlushReserved() {
	if w.reserved == 0 {
		return
	}
	w.bumpAndDrain()
	count := w.reserved
	w.reserved = 0
	empty := w.archetypes[0]
	for i := uint64(0); i < count; i++ {
		id, ok := w.index.alloc.reserve(i)
		if !ok {
			panic("ecs: reserved entity id vanished before flush")
		}
		row := empty.appendRow(id)
		w.index.bind(id, location{archetype: 0, row: int32(row)})
	}
	w.index.flushReserved(count)
}

// Despawn removes e and all its components, cascading through relations
// per each relation's on-despawn policy (spec §4.5), running drop hooks
// (spec §4.8), then releasing e from the entity index.
func (w *World) Despawn(e EId) error {
	w.bumpAndDrain()
	return w.despawnCore(e)
}

func (w *World) despawnCore(e EId) error {
	loc, ok := w.index.lookup(e)
	if !ok {
		return errEntity(KindNoSuchEntity, e)
	}
	w.relations.onDespawn(w, e)
	arch := w.archetypes[loc.archetype]
	for _, id := range arch.compOrder {
		desc := arch.info[id]
		if desc.drop != nil {
			ptr := arch.rowPtr(id, int(loc.row))
			localEnc := newActionEncoder(false)
			desc.drop(ptr, e, localEnc)
			w.main.actions = append(w.main.actions, localEnc.actions...)
		}
	}
	moved, didMove := arch.swapRemove(int(loc.row))
	if didMove {
		w.index.relocate(moved, location{archetype: int32(arch.index), row: loc.row})
	}
	w.index.release(e)
	return nil
}

// DespawnMany despawns every entity in es, continuing past any that no
// longer exist, and returns every NoSuchEntity it hit joined with
// multierr.Combine (SPEC_FULL §7 "Error aggregation") rather than
// stopping at the first failure.
func (w *World) DespawnMany(es []EId) error {
	w.bumpAndDrain()
	var errs []error
	for _, e := range es {
		if err := w.despawnCore(e); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}

// Exists reports whether e is currently present in the entity index.
func (w *World) Exists(e EId) bool {
	_, ok := w.index.lookup(e)
	return ok
}

// Location returns e's current located-entity handle, or NoSuchEntity.
func (w *World) Location(e EId) (Located, error) {
	loc, ok := w.index.lookup(e)
	if !ok {
		return Located{}, errEntity(KindNoSuchEntity, e)
	}
	return Located{E: e, archIdx: int(loc.archetype), row: int(loc.row)}, nil
}

// Insert attaches or overwrites component T on e. If e's archetype
// already carries T, this is a replace (the replace-hook runs, per spec
// §4.8); otherwise e transitions to the archetype with T added, via the
// cached add-edge (spec §4.3).
func Insert[T any](w *World, e EId, value T) error {
	w.bumpAndDrain()
	return insertCore(w, e, value)
}

func insertCore[T any](w *World, e EId, value T) error {
	loc, ok := w.index.lookup(e)
	if !ok {
		return errEntity(KindNoSuchEntity, e)
	}
	t := reflect.TypeFor[T]()
	desc, err := w.getOrRegisterDescriptor(t)
	if err != nil {
		return err
	}
	if err := w.checkThread(desc.sendable); err != nil {
		return err
	}
	src := w.archetypes[loc.archetype]
	if src.hasColumn(desc.id) {
		return replaceInPlace(w, src, int(loc.row), desc, e, value)
	}
	return moveWithInsert(w, src, loc, desc, e, value)
}

// replaceInPlace overwrites component T on an existing row, running the
// replace-hook (and, unless it returns false, the drop-hook on the
// outgoing value) before the new value lands (spec §4.8).
func replaceInPlace[T any](w *World, src *archetype, row int, desc *componentDescriptor, e EId, value T) error {
	ptr := src.rowPtr(desc.id, row)
	newVal := value
	runDrop := true
	if desc.replace != nil {
		localEnc := newActionEncoder(false)
		runDrop = desc.replace(ptr, unsafe.Pointer(&newVal), e, localEnc)
		w.main.actions = append(w.main.actions, localEnc.actions...)
	}
	if runDrop && desc.drop != nil {
		localEnc := newActionEncoder(false)
		desc.drop(ptr, e, localEnc)
		w.main.actions = append(w.main.actions, localEnc.actions...)
	}
	*(*T)(ptr) = newVal
	src.stamp(desc.id, row, w.epoch)
	return nil
}

// moveWithInsert transitions e to the archetype with desc added,
// preserving every other column's value and per-slot epoch (a physical
// move is not a semantic mutation, spec §4.3), then writes value into
// the new column and stamps only that column's epoch.
func moveWithInsert[T any](w *World, src *archetype, loc location, desc *componentDescriptor, e EId, value T) error {
	dest := w.edgeAdd(src, desc.id)
	newRow := dest.appendRow(e)
	copyRow(dest, newRow, src, int(loc.row))
	moved, didMove := src.swapRemove(int(loc.row))
	if didMove {
		w.index.relocate(moved, location{archetype: int32(src.index), row: loc.row})
	}
	ptr := dest.rowPtr(desc.id, newRow)
	*(*T)(ptr) = value
	dest.stamp(desc.id, newRow, w.epoch)
	w.index.bind(e, location{archetype: int32(dest.index), row: int32(newRow)})
	return nil
}

// Take removes component T from e and returns its value. Removal is not
// a drop for hook purposes: ownership transfers to the caller and no
// hooks fire (spec §4.8 "Removal from an entity is not a drop").
func Take[T any](w *World, e EId) (T, error) {
	w.bumpAndDrain()
	return removeCore[T](w, e)
}

func removeCore[T any](w *World, e EId) (T, error) {
	var zero T
	loc, ok := w.index.lookup(e)
	if !ok {
		return zero, errEntity(KindNoSuchEntity, e)
	}
	t := reflect.TypeFor[T]()
	desc := w.registry.lookup(t)
	if desc == nil || !w.archetypes[loc.archetype].hasColumn(desc.id) {
		return zero, errEntityType(KindNotPresent, e, t.String())
	}
	if err := w.checkThread(desc.sendable); err != nil {
		return zero, err
	}
	src := w.archetypes[loc.archetype]
	ptr := src.rowPtr(desc.id, int(loc.row))
	val := *(*T)(ptr)
	dest := w.edgeRemove(src, desc.id)
	newRow := dest.appendRow(e)
	copyRow(dest, newRow, src, int(loc.row))
	moved, didMove := src.swapRemove(int(loc.row))
	if didMove {
		w.index.relocate(moved, location{archetype: int32(src.index), row: loc.row})
	}
	w.index.bind(e, location{archetype: int32(dest.index), row: int32(newRow)})
	return val, nil
}

// Has reports whether e's current archetype carries component T, or
// WrongThread if T is non-sendable and the calling goroutine is not the
// World's owner (spec §4.7, §5 "Non-sendable resources/components ...
// reject cross-thread access at the boundary").
func Has[T any](w *World, e EId) (bool, error) {
	loc, ok := w.index.lookup(e)
	if !ok {
		return false, nil
	}
	desc := w.registry.lookup(reflect.TypeFor[T]())
	if desc == nil {
		return false, nil
	}
	if !w.archetypes[loc.archetype].hasColumn(desc.id) {
		return false, nil
	}
	if err := w.checkThread(desc.sendable); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns a pointer to e's component T without going through a
// query, or NoSuchEntity/NotPresent/WrongThread. The pointer is
// invalidated by any subsequent structural change to e's archetype.
func Get[T any](w *World, e EId) (*T, error) {
	loc, ok := w.index.lookup(e)
	if !ok {
		return nil, errEntity(KindNoSuchEntity, e)
	}
	t := reflect.TypeFor[T]()
	desc := w.registry.lookup(t)
	arch := w.archetypes[loc.archetype]
	if desc == nil || !arch.hasColumn(desc.id) {
		return nil, errEntityType(KindNotPresent, e, t.String())
	}
	if err := w.checkThread(desc.sendable); err != nil {
		return nil, err
	}
	return (*T)(arch.rowPtr(desc.id, int(loc.row))), nil
}

// ActionEncoderLocal returns a fresh local (non-sendable) action buffer,
// the flavour hooks are given (spec §4.6, §6 "action_encoder(local)").
func (w *World) ActionEncoderLocal() *ActionEncoder { return newActionEncoder(false) }

// ActionEncoderSend returns a fresh sendable action buffer, safe to fill
// from another goroutine and later merge with MergeActions (spec §4.6,
// §6 "action_encoder(send)").
func (w *World) ActionEncoderSend() *ActionEncoder { return newActionEncoder(true) }

// MergeActions appends enc's recorded actions onto the World's main
// buffer, to be executed at the next drain point.
func (w *World) MergeActions(enc *ActionEncoder) {
	w.main.actions = append(w.main.actions, enc.actions...)
}

// DrainActions explicitly drains the action buffer now, rather than
// waiting for the top of the next mutating call (spec §6 "drain_actions",
// §4.6 "drained ... explicitly at a synchronization point").
func (w *World) DrainActions() { w.drainActions() }

// BorrowStats reports every column or resource borrow cell that has ever
// observed contention, for tuning Static vs Runtime borrow mode choices
// (SPEC_FULL §11.5, original_source borrow.rs). Cells that were never
// contended are omitted.
func (w *World) BorrowStats() []BorrowStat {
	var out []BorrowStat
	for _, a := range w.archetypes {
		for _, id := range a.compOrder {
			if c := a.colBorrow[id].Contention(); c > 0 {
				out = append(out, BorrowStat{Archetype: a.index, Component: id, Contention: c})
			}
		}
	}
	for t, slot := range w.resources.slots {
		if c := slot.borrow.Contention(); c > 0 {
			out = append(out, BorrowStat{Archetype: -1, Resource: t.String(), Contention: c})
		}
	}
	return out
}
