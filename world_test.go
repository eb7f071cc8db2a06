package ecs

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type Pos struct {
	X, Y float64
}

type Vel struct {
	X, Y float64
}

func buildPosVelWorld(t *testing.T) *World {
	t.Helper()
	b := NewBuilder()
	RegisterComponent[Pos](b, ComponentOptions{})
	RegisterComponent[Vel](b, ComponentOptions{})
	w, err := b.Build()
	require.NoError(t, err)
	return w
}

func TestSpawnExistsLocation(t *testing.T) {
	w := buildPosVelWorld(t)

	e := w.Spawn()
	require.True(t, w.Exists(e))

	loc, err := w.Location(e)
	require.NoError(t, err)

	arch := w.archetypes[loc.archIdx]
	require.Equal(t, e, arch.entities[loc.row])
}

func TestInsertTakeRoundTrip(t *testing.T) {
	w := buildPosVelWorld(t)
	e := w.Spawn()

	orig := Pos{X: 3, Y: 4}
	require.NoError(t, Insert(w, e, orig))

	back, err := Take[Pos](w, e)
	require.NoError(t, err)
	require.Equal(t, orig, back)
	has, err := Has[Pos](w, e)
	require.NoError(t, err)
	require.False(t, has)

	loc, err := w.Location(e)
	require.NoError(t, err)
	require.Equal(t, 0, loc.archIdx, "removing e's only component returns it to the empty archetype")
}

func TestDespawnUnknownIsNoSuchEntity(t *testing.T) {
	w := buildPosVelWorld(t)
	err := w.Despawn(EId(999))
	require.ErrorIs(t, err, ErrNoSuchEntity)
}

func TestEpochMonotonic(t *testing.T) {
	w := buildPosVelWorld(t)
	e1 := w.Epoch()
	w.Spawn()
	e2 := w.Epoch()
	require.Greater(t, e2, e1)

	e := w.Spawn()
	require.NoError(t, Insert(w, e, Pos{}))
	e3 := w.Epoch()
	require.Greater(t, e3, e2)
}

func TestDrainIdempotenceOnEmptyBuffer(t *testing.T) {
	w := buildPosVelWorld(t)
	before := w.Epoch()
	w.DrainActions()
	w.DrainActions()
	require.Equal(t, before, w.Epoch(), "draining an empty buffer must not bump the epoch or otherwise mutate state")
}

func TestInsertUnregisteredComponentWithoutSelfRegistrationFails(t *testing.T) {
	w := buildPosVelWorld(t)
	e := w.Spawn()

	type Unregistered struct{ N int }
	err := Insert(w, e, Unregistered{N: 1})
	require.ErrorIs(t, err, ErrNotRegistered)
}

// Concrete scenario 1 (spec §8): spawn three entities with {Pos(0,0),
// Vel(1,1)}, iterate an exclusive view of (&mut Pos, &Vel), and check both
// the resulting positions and that the Pos column was stamped at or after
// the epoch captured just before the view ran.
func TestScenarioExclusiveViewTicksPositions(t *testing.T) {
	w := buildPosVelWorld(t)

	var ids []EId
	for range 3 {
		e := w.Spawn()
		require.NoError(t, Insert(w, e, Pos{X: 0, Y: 0}))
		require.NoError(t, Insert(w, e, Vel{X: 1, Y: 1}))
		ids = append(ids, e)
	}

	q := With[Vel](With[Pos](NewQuery(w), Exclusive), Shared)
	cq, err := q.Compile()
	require.NoError(t, err)

	tickEpoch := w.Epoch()
	view, err := cq.View(Runtime)
	require.NoError(t, err)

	seen := 0
	for view.Next() {
		p := ViewGetMut[Pos](view)
		v := ViewGet[Vel](view)
		p.X += v.X
		p.Y += v.Y
		seen++
	}
	view.Release()
	require.Equal(t, 3, seen)

	posDesc := w.registry.lookup(reflect.TypeFor[Pos]())
	for _, e := range ids {
		p, err := Get[Pos](w, e)
		require.NoError(t, err)
		require.Equal(t, Pos{X: 1, Y: 1}, *p)

		loc, err := w.Location(e)
		require.NoError(t, err)
		arch := w.archetypes[loc.archIdx]
		require.GreaterOrEqual(t, arch.epochAt(posDesc.id, loc.row), tickEpoch)
	}
}
