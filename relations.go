package ecs

import (
	"reflect"
	"unsafe"
)

// DespawnPolicy selects what happens to the other side of a relation
// when one side despawns (spec §4.5).
type DespawnPolicy uint8

const (
	// DropLinkOnly unlinks the relation but leaves the other entity alive.
	DropLinkOnly DespawnPolicy = iota
	// CascadeDespawnOther despawns the other entity too.
	CascadeDespawnOther
)

// RelationDescriptor configures a relation type R (SPEC_FULL §11.3;
// spec §4.5).
type RelationDescriptor struct {
	// Exclusive: inserting R(src, dst) replaces any existing R(src, *)
	// instead of adding a second target.
	Exclusive bool
	// Symmetric: the mirror is a same-type relation rather than a
	// distinct mirror type — has(s, R->t) implies has(t, R->s) instead of
	// a separate back-pointer type.
	Symmetric bool
	// Owned: the source is despawned (not just unlinked) once its last
	// target under R vanishes.
	Owned bool
	// SourcePolicy applies when the source side of R despawns.
	SourcePolicy DespawnPolicy
	// TargetPolicy applies when the target side of R despawns.
	TargetPolicy DespawnPolicy
}

// Link is the forward synthetic component for relation type R: the set
// of targets the entity relates to under R (spec §4.5 "Insertion ...
// Insert/replace the forward synthetic component on src"). Payload, if
// any, lives in a companion Payload[R, P] component keyed by target so
// that Link[R] itself stays payload-free and usable for query matching
// regardless of what payload type a given relation carries.
type Link[R any] struct {
	Targets []EId
}

// Mirror is the synthetic back-pointer component stored on the target
// side of relation R, a list of sources keyed by (R, src) (spec §4.5
// "Insert/update the mirror component on dst: a list of back-pointers").
type Mirror[R any] struct {
	Sources []EId
}

// Payload holds relation-type R's per-target payload of type P, kept
// separate from Link[R] so relation topology stays a single generic
// shape per R independent of payload type.
type Payload[R any, P any] struct {
	ByTarget map[EId]P
}

// relationMeta is the type-erased vtable the despawn cascade and query
// filters use to walk a Link[R]/Mirror[R] pair without knowing R
// statically, mirroring how componentDescriptor type-erases hooks.
type relationMeta struct {
	forwardID     uint8
	mirrorID      uint8
	desc          RelationDescriptor
	forwardTargets func(ptr unsafe.Pointer) []EId
	forwardRemove  func(ptr unsafe.Pointer, target EId) (empty bool)
	mirrorSources  func(ptr unsafe.Pointer) []EId
	mirrorRemove   func(ptr unsafe.Pointer, src EId) (empty bool)
}

type relationRegistry struct {
	byForwardID map[uint8]*relationMeta
	byMirrorID  map[uint8]*relationMeta
}

func newRelationRegistry() *relationRegistry {
	return &relationRegistry{
		byForwardID: make(map[uint8]*relationMeta, 4),
		byMirrorID:  make(map[uint8]*relationMeta, 4),
	}
}

// RegisterRelation registers relation type R with the type registry and
// records its despawn/exclusivity/symmetry policy. Must be called on the
// Builder before Build (spec §4.1 explicit registration discipline
// extended to relations).
//
// If desc.Symmetric, R has no distinct mirror type: has(s, R->t) implies
// has(t, R->s) through the *same* Link[R] component on both sides
// (original_source relation/mod.rs "SYMMETRIC"), so only Link[R] is
// registered and the mirror vtable entries alias the forward ones.
// Otherwise a distinct Mirror[R] back-pointer type is registered too.
func RegisterRelation[R any](b *Builder, desc RelationDescriptor) *Builder {
	fwdType := reflect.TypeFor[Link[R]]()
	fwd, err := b.registry.register(fwdType, ComponentOptions{Sendable: true}, false)
	if err != nil {
		b.err = err
		return b
	}
	forwardTargets := func(ptr unsafe.Pointer) []EId {
		return (*Link[R])(ptr).Targets
	}
	forwardRemove := func(ptr unsafe.Pointer, target EId) bool {
		l := (*Link[R])(ptr)
		l.Targets = removeEId(l.Targets, target)
		return len(l.Targets) == 0
	}

	if desc.Symmetric {
		meta := &relationMeta{
			forwardID:      fwd.id,
			mirrorID:       fwd.id,
			desc:           desc,
			forwardTargets: forwardTargets,
			forwardRemove:  forwardRemove,
			mirrorSources:  forwardTargets,
			mirrorRemove:   forwardRemove,
		}
		b.relationMetas = append(b.relationMetas, meta)
		return b
	}

	mirType := reflect.TypeFor[Mirror[R]]()
	mir, err := b.registry.register(mirType, ComponentOptions{Sendable: true}, false)
	if err != nil {
		b.err = err
		return b
	}
	meta := &relationMeta{
		forwardID:      fwd.id,
		mirrorID:       mir.id,
		desc:           desc,
		forwardTargets: forwardTargets,
		forwardRemove:  forwardRemove,
		mirrorSources: func(ptr unsafe.Pointer) []EId {
			return (*Mirror[R])(ptr).Sources
		},
		mirrorRemove: func(ptr unsafe.Pointer, src EId) bool {
			m := (*Mirror[R])(ptr)
			m.Sources = removeEId(m.Sources, src)
			return len(m.Sources) == 0
		},
	}
	b.relationMetas = append(b.relationMetas, meta)
	return b
}

func removeEId(s []EId, v EId) []EId {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func containsEId(s []EId, v EId) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Relate inserts (or, if R is Exclusive, replaces) the directed link
// src -R-> dst, and updates dst's mirror back-pointer (spec §4.5). If R is
// Symmetric, dst's back-pointer is a second Link[R] instance rather than
// a distinct Mirror[R] (original_source relation/mod.rs "SYMMETRIC").
func Relate[R any](w *World, src, dst EId) error {
	w.bumpAndDrain()
	if !w.Exists(src) {
		return errEntity(KindNoSuchEntity, src)
	}
	if !w.Exists(dst) {
		return errEntity(KindNoSuchEntity, dst)
	}
	fwdType := reflect.TypeFor[Link[R]]()
	fwdDesc := w.registry.lookup(fwdType)
	if fwdDesc == nil {
		return errType(KindNotRegistered, fwdType.String())
	}
	meta := w.relations.byForwardID[fwdDesc.id]

	link, err := Get[Link[R]](w, src)
	if err != nil {
		if e, ok := err.(*Error); !ok || e.Kind != KindNotPresent {
			return err
		}
		if err := insertCore(w, src, Link[R]{Targets: []EId{dst}}); err != nil {
			return err
		}
	} else {
		if meta.desc.Exclusive {
			oldTargets := append([]EId(nil), link.Targets...)
			for _, old := range oldTargets {
				if old != dst {
					w.unlinkMirror(meta, old, src)
				}
			}
			// unlinkMirror may have swap-removed a row in src's own
			// archetype (src and old can share a {Link[R],Mirror[R]}
			// layout), which would invalidate link if src was the
			// archetype's last row. Re-fetch rather than reuse the
			// pointer taken before the loop (world.go Get's doc comment).
			link, err = Get[Link[R]](w, src)
			if err != nil {
				return err
			}
			link.Targets = []EId{dst}
		} else if !containsEId(link.Targets, dst) {
			link.Targets = append(link.Targets, dst)
		}
		w.stampComponentByID(src, fwdDesc.id)
	}

	if meta.desc.Symmetric {
		mlink, err := Get[Link[R]](w, dst)
		if err != nil {
			if err := insertCore(w, dst, Link[R]{Targets: []EId{src}}); err != nil {
				return err
			}
		} else if !containsEId(mlink.Targets, src) {
			mlink.Targets = append(mlink.Targets, src)
			w.stampComponentByID(dst, fwdDesc.id)
		}
		return nil
	}

	mir, err := Get[Mirror[R]](w, dst)
	if err != nil {
		if err := insertCore(w, dst, Mirror[R]{Sources: []EId{src}}); err != nil {
			return err
		}
	} else if !containsEId(mir.Sources, src) {
		mir.Sources = append(mir.Sources, src)
		w.stampComponentByID(dst, meta.mirrorID)
	}
	return nil
}

func (w *World) stampComponentByID(e EId, id uint8) {
	loc, ok := w.index.lookup(e)
	if !ok {
		return
	}
	w.archetypes[loc.archetype].stamp(id, int(loc.row), w.epoch)
}

// RelateWithPayload behaves like Relate but also records payload for
// (src, dst) in the companion Payload[R, P] component on src.
func RelateWithPayload[R any, P any](w *World, src, dst EId, payload P) error {
	// Payload[R, P] is registered on first use: RegisterRelation only knows
	// R, not the payload types used with it.
	if _, err := w.registry.register(reflect.TypeFor[Payload[R, P]](), ComponentOptions{Sendable: true}, false); err != nil {
		return err
	}
	if err := Relate[R](w, src, dst); err != nil {
		return err
	}
	pl, err := Get[Payload[R, P]](w, src)
	if err != nil {
		return insertCore(w, src, Payload[R, P]{ByTarget: map[EId]P{dst: payload}})
	}
	if pl.ByTarget == nil {
		pl.ByTarget = make(map[EId]P, 1)
	}
	pl.ByTarget[dst] = payload
	desc, err := descFor[Payload[R, P]](w)
	if err == nil {
		w.stampComponentByID(src, desc.id)
	}
	return nil
}

// Unrelate drops the src -R-> dst link and its mirror back-pointer
// without despawning either side.
func Unrelate[R any](w *World, src, dst EId) error {
	w.bumpAndDrain()
	fwdType := reflect.TypeFor[Link[R]]()
	fwdDesc := w.registry.lookup(fwdType)
	if fwdDesc == nil {
		return errType(KindNotRegistered, fwdType.String())
	}
	meta := w.relations.byForwardID[fwdDesc.id]
	link, err := Get[Link[R]](w, src)
	if err != nil {
		return errEntityType(KindNotPresent, src, fwdType.String())
	}
	link.Targets = removeEId(link.Targets, dst)
	if len(link.Targets) == 0 {
		_, _ = removeCore[Link[R]](w, src)
	} else {
		w.stampComponentByID(src, fwdDesc.id)
	}
	w.unlinkMirror(meta, dst, src)
	return nil
}

// unlinkMirror removes remove from on's back-pointer component — Mirror[R]
// normally, or on's own Link[R] instance when meta.desc.Symmetric (its
// mirrorID then equals forwardID, so this just reuses the forward vtable
// against on's Link[R] row) — dropping the component entirely once its
// list empties.
func (w *World) unlinkMirror(meta *relationMeta, on EId, remove EId) {
	loc, ok := w.index.lookup(on)
	if !ok {
		return
	}
	arch := w.archetypes[loc.archetype]
	if !arch.hasColumn(meta.mirrorID) {
		return
	}
	ptr := arch.rowPtr(meta.mirrorID, int(loc.row))
	empty := meta.mirrorRemove(ptr, remove)
	if empty {
		removeUntypedComponent(w, arch, int(loc.row), w.registry.byID[meta.mirrorID])
	} else {
		w.stampComponentByID(on, meta.mirrorID)
	}
}

// removeUntypedComponent performs a move_with_remove for a component id
// whose Go type is not known at this call site (only its descriptor is),
// used by relation cleanup which only ever has type-erased pointers.
func removeUntypedComponent(w *World, src *archetype, row int, desc *componentDescriptor) {
	e := src.entities[row]
	dest := w.edgeRemove(src, desc.id)
	newRow := dest.appendRow(e)
	copyRow(dest, newRow, src, row)
	moved, didMove := src.swapRemove(row)
	if didMove {
		w.index.relocate(moved, location{archetype: int32(src.index), row: int32(row)})
	}
	w.index.bind(e, location{archetype: int32(dest.index), row: int32(newRow)})
}

// onDespawn walks every relation-shaped component on e's current
// archetype and applies its despawn policy, before e's own row is
// dropped (spec §4.5). Cascade despawns and link-only cleanups are
// recorded into the World's main action buffer rather than applied
// immediately, avoiding reentrant archetype mutation during the current
// drop (spec §4.5, design notes §9).
func (rr *relationRegistry) onDespawn(w *World, e EId) {
	loc, ok := w.index.lookup(e)
	if !ok {
		return
	}
	arch := w.archetypes[loc.archetype]
	row := int(loc.row)
	for _, id := range arch.compOrder {
		if meta, ok := rr.byForwardID[id]; ok {
			ptr := arch.rowPtr(id, row)
			targets := append([]EId(nil), meta.forwardTargets(ptr)...)
			for _, t := range targets {
				switch meta.desc.SourcePolicy {
				case CascadeDespawnOther:
					w.main.actions = append(w.main.actions, action{kind: actionDespawn, entity: t, fallible: true})
				case DropLinkOnly:
					target := t
					mirID := meta.mirrorID
					w.main.actions = append(w.main.actions, action{kind: actionClosure, closure: func(w *World) error {
						loc, ok := w.index.lookup(target)
						if !ok {
							return nil
						}
						a := w.archetypes[loc.archetype]
						if !a.hasColumn(mirID) {
							return nil
						}
						m := rr.byMirrorID[mirID]
						ptr := a.rowPtr(mirID, int(loc.row))
						if m.mirrorRemove(ptr, e) {
							removeUntypedComponent(w, a, int(loc.row), w.registry.byID[mirID])
						}
						return nil
					}})
				}
			}
		}
		if meta, ok := rr.byMirrorID[id]; ok && meta.forwardID != meta.mirrorID {
			// forwardID == mirrorID means R is Symmetric: the byForwardID
			// branch above already walked this same Link[R] column and
			// applied SourcePolicy to its full target list, so skip the
			// redundant TargetPolicy pass here.
			ptr := arch.rowPtr(id, row)
			sources := append([]EId(nil), meta.mirrorSources(ptr)...)
			for _, s := range sources {
				switch meta.desc.TargetPolicy {
				case CascadeDespawnOther:
					w.main.actions = append(w.main.actions, action{kind: actionDespawn, entity: s, fallible: true})
				case DropLinkOnly:
					source := s
					fwdID := meta.forwardID
					owned := meta.desc.Owned
					w.main.actions = append(w.main.actions, action{kind: actionClosure, closure: func(w *World) error {
						loc, ok := w.index.lookup(source)
						if !ok {
							return nil
						}
						a := w.archetypes[loc.archetype]
						if !a.hasColumn(fwdID) {
							return nil
						}
						m := rr.byForwardID[fwdID]
						ptr := a.rowPtr(fwdID, int(loc.row))
						if m.forwardRemove(ptr, e) {
							removeUntypedComponent(w, a, int(loc.row), w.registry.byID[fwdID])
							if owned {
								return w.despawnCore(source)
							}
						}
						return nil
					}})
				}
			}
		}
	}
}

// RelatedBy adds a query requirement that the entity has an outgoing R
// relation to any target (SPEC_FULL §11.4, original_source FilterRelated).
func RelatedBy[R any](q *Query) *Query {
	return With[Link[R]](q, Shared)
}

// Relates is an alias of RelatedBy kept for readability at call sites
// that read as "entity relates via R" (original_source FilterRelates).
func Relates[R any](q *Query) *Query {
	return RelatedBy[R](q)
}

// RelatesTo further narrows RelatedBy to entities whose R links include
// target specifically (original_source FilterRelatesTo).
func RelatesTo[R any](q *Query, target EId) *Query {
	q = With[Link[R]](q, Shared)
	desc, err := descFor[Link[R]](q.world)
	if err != nil {
		q.deferredErr = err
		return q
	}
	id := desc.id
	q.relTerms = append(q.relTerms, relationFilterTerm{
		id: id,
		check: func(a *archetype, row int) bool {
			ptr := a.rowPtr(id, row)
			return containsEId((*Link[R])(ptr).Targets, target)
		},
	})
	return q
}

type relationFilterTerm struct {
	id    uint8
	check func(a *archetype, row int) bool
}
