package ecs

import "unsafe"

// bundleComponent is one type-erased component value queued onto a
// SpawnBundle, analogous to actions.go's typeErasedValue but writing
// straight into a row pointer rather than replaying through insertCore.
type bundleComponent struct {
	id    uint8
	write func(dst unsafe.Pointer)
}

// SpawnBundle assembles a fixed component set for a single-call spawn
// that places the new entity directly into its final archetype (spec §6
// "spawn(bundle) -> EId"), the way the teacher's
// Batch[T].CreateEntitiesWithComponentsTo writes component data straight
// into a batch's one destination archetype rather than building an
// entity up through N separate transitions. This engine's registry isn't
// limited to the teacher's single T per batch, so BundleWith accumulates
// an open set of component values instead of fixing arity at
// construction.
type SpawnBundle struct {
	world *World
	comps []bundleComponent
	mask  componentMask
	err   error
}

// NewSpawnBundle starts a bundle spawn against w.
func NewSpawnBundle(w *World) *SpawnBundle {
	return &SpawnBundle{world: w}
}

// BundleWith adds component value T to bdl, implicitly registering T if
// it hasn't been seen before and is self-describing (spec §4.1). Calling
// it twice for the same T overwrites the earlier value rather than
// erroring, mirroring Insert's replace semantics.
func BundleWith[T any](bdl *SpawnBundle, value T) *SpawnBundle {
	if bdl.err != nil {
		return bdl
	}
	desc, err := descFor[T](bdl.world)
	if err != nil {
		bdl.err = err
		return bdl
	}
	v := value
	write := func(dst unsafe.Pointer) { *(*T)(dst) = v }
	if bdl.mask.has(desc.id) {
		for i := range bdl.comps {
			if bdl.comps[i].id == desc.id {
				bdl.comps[i].write = write
				return bdl
			}
		}
	}
	bdl.mask.set(desc.id)
	bdl.comps = append(bdl.comps, bundleComponent{id: desc.id, write: write})
	return bdl
}

// Spawn places a new entity directly into the archetype matching bdl's
// accumulated component set, writes every component value into that
// row, and stamps each column's epoch — all within the single mutating
// call spec §6's spawn(bundle) names. Unlike a Spawn()-then-Insert[T]
// chain, the entity never transits the empty archetype or any
// intermediate one, so nothing draining between component writes can
// observe it partially built, and the whole placement costs one epoch
// bump and one action-buffer drain rather than N+1 (spec §4.7 "each
// mutating top-level call increments epoch once at entry").
func (bdl *SpawnBundle) Spawn() (EId, error) {
	w := bdl.world
	w.bumpAndDrain()
	if bdl.err != nil {
		return 0, bdl.err
	}
	arch := w.archetypeForMask(bdl.mask)
	e := w.index.allocate()
	row := arch.appendRow(e)
	for _, c := range bdl.comps {
		c.write(arch.rowPtr(c.id, row))
		arch.stamp(c.id, row, w.epoch)
	}
	w.index.bind(e, location{archetype: int32(arch.index), row: int32(row)})
	return e, nil
}
