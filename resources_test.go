package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type GameClock struct{ Tick int }

func TestResourceInsertGetRemove(t *testing.T) {
	w := buildPosVelWorld(t)
	require.False(t, HasResource[GameClock](w))

	ResourceInsert(w, GameClock{Tick: 1}, true)
	require.True(t, HasResource[GameClock](w))

	r, err := Resource[GameClock](w)
	require.NoError(t, err)
	require.Equal(t, 1, r.Tick)
	ReleaseResource[GameClock](w)

	ResourceRemove[GameClock](w)
	require.False(t, HasResource[GameClock](w))
}

func TestResourceMissingIsMissingResourceError(t *testing.T) {
	w := buildPosVelWorld(t)
	_, err := Resource[GameClock](w)
	require.ErrorIs(t, err, ErrMissingResource)
}

// A resource's exclusive and shared borrows follow the same one-exclusive-
// or-N-shared discipline as a column borrow (spec §3 "independent borrow
// cell").
func TestResourceBorrowConflict(t *testing.T) {
	w := buildPosVelWorld(t)
	ResourceInsert(w, GameClock{}, true)

	_, err := ResourceMut[GameClock](w)
	require.NoError(t, err)

	_, err = Resource[GameClock](w)
	require.ErrorIs(t, err, ErrBorrowConflict)

	ReleaseResourceMut[GameClock](w)

	_, err = Resource[GameClock](w)
	require.NoError(t, err)
	ReleaseResource[GameClock](w)
}
