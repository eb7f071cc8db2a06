package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// A bundle spawn places the entity directly into its final archetype:
// no Spawn()-then-Insert[T] chain, and both components must already be
// live and correct immediately after Spawn() returns.
func TestSpawnBundlePlacesComponentsAtomically(t *testing.T) {
	w := buildPosVelWorld(t)

	bdl := BundleWith(BundleWith(NewSpawnBundle(w), Pos{X: 1, Y: 2}), Vel{X: 3, Y: 4})
	e, err := bdl.Spawn()
	require.NoError(t, err)

	pos, err := Get[Pos](w, e)
	require.NoError(t, err)
	require.Equal(t, Pos{X: 1, Y: 2}, *pos)

	vel, err := Get[Vel](w, e)
	require.NoError(t, err)
	require.Equal(t, Vel{X: 3, Y: 4}, *vel)
}

// A bundle spawn costs exactly one epoch bump, unlike a Spawn()+Insert+
// Insert chain which would cost three.
func TestSpawnBundleIsOneMutatingCall(t *testing.T) {
	w := buildPosVelWorld(t)
	before := w.Epoch()

	bdl := BundleWith(BundleWith(NewSpawnBundle(w), Pos{X: 1, Y: 1}), Vel{X: 1, Y: 1})
	_, err := bdl.Spawn()
	require.NoError(t, err)

	require.Equal(t, before+1, w.Epoch())
}

// Re-adding the same component type overwrites rather than duplicating.
func TestSpawnBundleOverwritesRepeatedComponent(t *testing.T) {
	w := buildPosVelWorld(t)

	bdl := BundleWith(BundleWith(NewSpawnBundle(w), Pos{X: 1, Y: 1}), Pos{X: 9, Y: 9})
	e, err := bdl.Spawn()
	require.NoError(t, err)

	pos, err := Get[Pos](w, e)
	require.NoError(t, err)
	require.Equal(t, Pos{X: 9, Y: 9}, *pos)
}

// A bundle with no components spawns into the empty archetype, the same
// place a bare Spawn() would land it.
func TestSpawnBundleEmptyLandsInEmptyArchetype(t *testing.T) {
	w := buildPosVelWorld(t)

	e, err := NewSpawnBundle(w).Spawn()
	require.NoError(t, err)

	loc, err := w.Location(e)
	require.NoError(t, err)
	require.Equal(t, 0, loc.archIdx)
}
