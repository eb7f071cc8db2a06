package ecs

import "golang.org/x/sync/errgroup"

// ParallelEach runs visit once per matched archetype of a Static view,
// concurrently across archetypes, using an errgroup.Group the way
// zeusync-zeusync's pkg/concurrent.Concurrent fans work out over an
// iterator (SPEC_FULL §10 "Parallel archetype fan-out"). This is the
// concrete, in-core stand-in for the out-of-scope system-scheduler that
// spec §5 says "the core exposes archetype-partitioned iteration so an
// external executor may fan out" for.
//
// visit receives a fresh per-archetype cursor; calling Next/Entity/
// ViewGet/ViewGetMut on it is safe from the goroutine visit runs in,
// because the view's column borrows were already acquired up front under
// Static mode and archetypes never overlap rows. visit must not call
// Release on the cursor; ParallelEach releases the whole view itself
// once every archetype has been visited.
//
// ParallelEach requires a Static view: Runtime mode's per-archetype
// acquire/release is not safe to race across goroutines without its own
// synchronization, which defeats the purpose of fanning out.
func (v *View) ParallelEach(visit func(cursor *View) error) error {
	if !v.heldStatic {
		return errPlain(KindBorrowConflict, "ecs: ParallelEach requires a Static view")
	}
	g := errgroup.Group{}
	for _, a := range v.matched {
		arch := a
		g.Go(func() error {
			cursor := &View{q: v.q, mode: Static, matched: []*archetype{arch}, archIdx: -1, row: -1}
			return visit(cursor)
		})
	}
	err := g.Wait()
	v.Release()
	return err
}
