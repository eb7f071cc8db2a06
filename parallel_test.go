package ecs

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// ParallelEach fans a Static view's matched archetypes out across
// goroutines, visiting every row exactly once (SPEC_FULL §10 "Parallel
// archetype fan-out").
func TestParallelEachVisitsEveryRowOnce(t *testing.T) {
	w := buildPosVelWorld(t)

	const n = 64
	for range n {
		e := w.Spawn()
		require.NoError(t, Insert(w, e, Pos{X: 1, Y: 1}))
	}
	// split entities across two archetypes so ParallelEach has more than
	// one archetype to fan out over.
	for range n {
		e := w.Spawn()
		require.NoError(t, Insert(w, e, Pos{X: 1, Y: 1}))
		require.NoError(t, Insert(w, e, Vel{X: 0, Y: 0}))
	}

	q := With[Pos](NewQuery(w), Exclusive)
	cq, err := q.Compile()
	require.NoError(t, err)
	view, err := cq.View(Static)
	require.NoError(t, err)
	defer view.Release()

	var visited atomic.Int64
	err = view.ParallelEach(func(cursor *View) error {
		for cursor.Next() {
			ViewGetMut[Pos](cursor)
			visited.Add(1)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(2*n), visited.Load())
}

func TestParallelEachRequiresStaticView(t *testing.T) {
	w := buildPosVelWorld(t)
	q := With[Pos](NewQuery(w), Shared)
	cq, err := q.Compile()
	require.NoError(t, err)
	view, err := cq.View(Runtime)
	require.NoError(t, err)
	defer view.Release()

	err = view.ParallelEach(func(cursor *View) error { return nil })
	require.ErrorIs(t, err, ErrBorrowConflict)
}
