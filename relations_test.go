package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type ChildOf struct{}
type Likes struct{}
type Friend struct{}

func buildRelationWorld(t *testing.T, configure func(*Builder)) *World {
	t.Helper()
	b := NewBuilder()
	if configure != nil {
		configure(b)
	}
	w, err := b.Build()
	require.NoError(t, err)
	return w
}

// concrete scenario 3 (spec §8): a child cascades its parent's despawn
// when the child side carries CascadeDespawnOther.
func TestScenarioRelationCascadeDespawn(t *testing.T) {
	w := buildRelationWorld(t, func(b *Builder) {
		RegisterRelation[ChildOf](b, RelationDescriptor{
			SourcePolicy: CascadeDespawnOther,
			TargetPolicy: DropLinkOnly,
		})
	})

	child := w.Spawn()
	parent := w.Spawn()
	require.NoError(t, Relate[ChildOf](w, child, parent))

	require.NoError(t, w.Despawn(child))
	w.DrainActions()

	require.False(t, w.Exists(parent), "parent must cascade-despawn once its ChildOf child is gone")
}

// invariant 8: relation symmetry — has(s, R->t) iff has(t, mirror_R<-s).
func TestRelationMirrorSymmetry(t *testing.T) {
	w := buildRelationWorld(t, func(b *Builder) {
		RegisterRelation[Likes](b, RelationDescriptor{
			SourcePolicy: DropLinkOnly,
			TargetPolicy: DropLinkOnly,
		})
	})

	s := w.Spawn()
	target := w.Spawn()
	require.NoError(t, Relate[Likes](w, s, target))

	link, err := Get[Link[Likes]](w, s)
	require.NoError(t, err)
	require.Contains(t, link.Targets, target)

	mirror, err := Get[Mirror[Likes]](w, target)
	require.NoError(t, err)
	require.Contains(t, mirror.Sources, s)

	require.NoError(t, Unrelate[Likes](w, s, target))
	hasLink, err := Has[Link[Likes]](w, s)
	require.NoError(t, err)
	require.False(t, hasLink)
	hasMirror, err := Has[Mirror[Likes]](w, target)
	require.NoError(t, err)
	require.False(t, hasMirror)
}

// Exclusive relations replace any prior target rather than accumulate.
func TestRelationExclusiveReplacesTarget(t *testing.T) {
	w := buildRelationWorld(t, func(b *Builder) {
		RegisterRelation[ChildOf](b, RelationDescriptor{
			Exclusive:    true,
			SourcePolicy: DropLinkOnly,
			TargetPolicy: DropLinkOnly,
		})
	})

	child := w.Spawn()
	oldParent := w.Spawn()
	newParent := w.Spawn()
	require.NoError(t, Relate[ChildOf](w, child, oldParent))
	require.NoError(t, Relate[ChildOf](w, child, newParent))

	link, err := Get[Link[ChildOf]](w, child)
	require.NoError(t, err)
	require.Equal(t, []EId{newParent}, link.Targets)
	hasOldMirror, err := Has[Mirror[ChildOf]](w, oldParent)
	require.NoError(t, err)
	require.False(t, hasOldMirror, "old parent's back-pointer must be dropped on exclusive replace")

	mirror, err := Get[Mirror[ChildOf]](w, newParent)
	require.NoError(t, err)
	require.Contains(t, mirror.Sources, child)
}

// Symmetric relations store the mirror as a second Link[R] on the other
// side rather than a distinct Mirror[R] type.
func TestRelationSymmetricSharesLinkType(t *testing.T) {
	w := buildRelationWorld(t, func(b *Builder) {
		RegisterRelation[Friend](b, RelationDescriptor{
			Symmetric:    true,
			SourcePolicy: DropLinkOnly,
			TargetPolicy: DropLinkOnly,
		})
	})

	a := w.Spawn()
	b := w.Spawn()
	require.NoError(t, Relate[Friend](w, a, b))

	la, err := Get[Link[Friend]](w, a)
	require.NoError(t, err)
	require.Contains(t, la.Targets, b)

	lb, err := Get[Link[Friend]](w, b)
	require.NoError(t, err)
	require.Contains(t, lb.Targets, a)
}

func TestRelatesToFilter(t *testing.T) {
	w := buildRelationWorld(t, func(b *Builder) {
		RegisterRelation[Likes](b, RelationDescriptor{
			SourcePolicy: DropLinkOnly,
			TargetPolicy: DropLinkOnly,
		})
	})

	e1 := w.Spawn()
	e2 := w.Spawn()
	t1 := w.Spawn()
	t2 := w.Spawn()
	require.NoError(t, Relate[Likes](w, e1, t1))
	require.NoError(t, Relate[Likes](w, e2, t2))

	q := RelatesTo[Likes](NewQuery(w), t1)
	cq, err := q.Compile()
	require.NoError(t, err)
	view, err := cq.View(Runtime)
	require.NoError(t, err)
	defer view.Release()

	var matched []EId
	for view.Next() {
		matched = append(matched, view.Entity())
	}
	require.Equal(t, []EId{e1}, matched)
}

func TestRelateWithPayload(t *testing.T) {
	w := buildRelationWorld(t, func(b *Builder) {
		RegisterRelation[Likes](b, RelationDescriptor{
			SourcePolicy: DropLinkOnly,
			TargetPolicy: DropLinkOnly,
		})
	})

	s := w.Spawn()
	target := w.Spawn()
	require.NoError(t, RelateWithPayload[Likes](w, s, target, 42))

	pl, err := Get[Payload[Likes, int]](w, s)
	require.NoError(t, err)
	require.Equal(t, 42, pl.ByTarget[target])
}
