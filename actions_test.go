package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Drain idempotence (law, spec §8): draining an empty buffer is a no-op.
func TestDrainActionsOnEmptyBufferIsNoop(t *testing.T) {
	w := buildPosVelWorld(t)
	before := w.Epoch()
	w.DrainActions()
	require.Equal(t, before, w.Epoch())
}

// A deferred despawn recorded via a local action encoder lands at the next
// mutating call (spec §4.6: drained "at the top of the next mutating call").
func TestEncodedDespawnDrainsOnNextMutatingCall(t *testing.T) {
	w := buildPosVelWorld(t)
	e := w.Spawn()

	enc := w.ActionEncoderLocal()
	enc.Despawn(e)
	w.MergeActions(enc)

	require.True(t, w.Exists(e), "despawn must not apply until drained")

	w.Spawn() // any mutating call drains the buffer at entry
	require.False(t, w.Exists(e))
}

// A fallible-noisy action whose target vanished before drain logs instead
// of silently dropping, but must not itself fail drain (spec §4.6).
func TestFallibleNoisyDespawnOfVanishedEntityIsTolerated(t *testing.T) {
	w := buildPosVelWorld(t)
	e := w.Spawn()
	require.NoError(t, w.Despawn(e))

	enc := w.ActionEncoderLocal()
	enc.DespawnNoisy(e)
	w.MergeActions(enc)

	require.NotPanics(t, func() { w.DrainActions() })
}

// A non-noisy despawn of an already-vanished entity is silently dropped
// rather than surfaced as an error anywhere observable.
func TestSilentDespawnOfVanishedEntityIsDropped(t *testing.T) {
	w := buildPosVelWorld(t)
	e := w.Spawn()
	require.NoError(t, w.Despawn(e))

	enc := w.ActionEncoderLocal()
	enc.Despawn(e)
	w.MergeActions(enc)
	require.NotPanics(t, func() { w.DrainActions() })
}

// EncodeInsert/EncodeRemove round-trip through the action buffer the same
// way the immediate Insert/Take free functions do.
func TestEncodeInsertAndEncodeRemove(t *testing.T) {
	w := buildPosVelWorld(t)
	e := w.Spawn()

	enc := w.ActionEncoderLocal()
	EncodeInsert(enc, e, Pos{X: 1, Y: 2})
	w.MergeActions(enc)
	w.DrainActions()
	has, err := Has[Pos](w, e)
	require.NoError(t, err)
	require.True(t, has)

	enc2 := w.ActionEncoderLocal()
	EncodeRemove[Pos](enc2, e)
	w.MergeActions(enc2)
	w.DrainActions()
	has, err = Has[Pos](w, e)
	require.NoError(t, err)
	require.False(t, has)
}

// A deferred Spawn action materializes a fresh entity at drain time and
// reports its id back through the onSpawn callback.
func TestDeferredSpawnReportsNewId(t *testing.T) {
	w := buildPosVelWorld(t)
	enc := w.ActionEncoderLocal()
	var got EId
	Spawn(enc, func(e EId) { got = e })
	w.MergeActions(enc)
	w.DrainActions()

	require.NotZero(t, got)
	require.True(t, w.Exists(got))
}

// A closure action enqueued by another closure action runs in a subsequent
// drain round rather than being missed (spec §4.6 "Drain may enqueue
// further actions; drain loops until empty").
func TestDrainLoopsAcrossHookInducedRounds(t *testing.T) {
	w := buildPosVelWorld(t)
	e := w.Spawn()

	enc := w.ActionEncoderLocal()
	enc.Closure(func(w *World) error {
		w.main.actions = append(w.main.actions, action{
			kind: actionClosure,
			closure: func(w *World) error {
				return insertCore(w, e, Vel{X: 7, Y: 0})
			},
		})
		return nil
	})
	w.MergeActions(enc)
	w.DrainActions()

	v, err := Get[Vel](w, e)
	require.NoError(t, err)
	require.Equal(t, Vel{X: 7, Y: 0}, *v)
}
