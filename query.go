package ecs

import "reflect"

// AccessMode is the per-component access a query term requests: shared
// (read) or exclusive (write) (spec §4.4).
type AccessMode = accessMode

const (
	Shared    AccessMode = accessShared
	Exclusive AccessMode = accessExclusive
)

// BorrowMode selects when a View acquires its column borrows (spec
// §4.4).
type BorrowMode uint8

const (
	// Static acquires every column borrow up front, for the View's whole
	// lifetime. Construction fails with BorrowConflict if any requested
	// exclusive column is already held.
	Static BorrowMode = iota
	// Runtime acquires/releases each archetype's column borrows during
	// iteration: on advancing into an archetype, and on leaving it.
	Runtime
)

type modifiedTerm struct {
	id       uint8
	baseline Epoch
}

// Query describes the fetches, filters, and access modes a View will
// iterate (spec §4.4). Build one with NewQuery and the
// With/Without/Track free functions, then Compile it.
type Query struct {
	world     *World
	required  componentMask
	forbidden componentMask
	terms     map[uint8]AccessMode
	modified  []modifiedTerm
	relTerms  []relationFilterTerm

	structVersion int
	structMatched []*archetype
	matched       []*archetype

	deferredErr  error
	selfConflict bool
}

// NewQuery starts building a query against w.
func NewQuery(w *World) *Query {
	return &Query{world: w, terms: make(map[uint8]AccessMode, 4)}
}

func descFor[T any](w *World) (*componentDescriptor, error) {
	t := reflect.TypeFor[T]()
	return w.getOrRegisterDescriptor(t)
}

// With adds component T to the query's required set with the given
// access mode. Listing the same T both Shared and Exclusive within one
// query is a static self-conflict, reported at Compile time.
func With[T any](q *Query, mode AccessMode) *Query {
	desc, err := descFor[T](q.world)
	if err != nil {
		q.deferredErr = err
		return q
	}
	q.required.set(desc.id)
	if existing, ok := q.terms[desc.id]; ok && existing != mode {
		q.selfConflict = true
	}
	q.terms[desc.id] = mode
	return q
}

// Without excludes entities carrying component T.
func Without[T any](q *Query) *Query {
	desc, err := descFor[T](q.world)
	if err != nil {
		q.deferredErr = err
		return q
	}
	q.forbidden.set(desc.id)
	return q
}

// Track adds a change-tracking filter on T: only entities whose T column
// was stamped after baseline are included (spec §4.4 "Change-tracking
// fetches"). T must already be required via With.
func Track[T any](q *Query, baseline Epoch) *Query {
	desc, err := descFor[T](q.world)
	if err != nil {
		q.deferredErr = err
		return q
	}
	q.required.set(desc.id)
	q.modified = append(q.modified, modifiedTerm{id: desc.id, baseline: baseline})
	return q
}

// CompiledQuery is an immutable, ready-to-view query.
type CompiledQuery struct {
	q *Query
}

// Compile finalizes q, checking for a static self-conflict.
func (q *Query) Compile() (*CompiledQuery, error) {
	if q.deferredErr != nil {
		return nil, q.deferredErr
	}
	if q.selfConflict {
		return nil, errPlain(KindBorrowConflict, "ecs: query lists the same component both Shared and Exclusive")
	}
	return &CompiledQuery{q: q}, nil
}

// refreshMatches recomputes (or reuses a cached) list of archetypes
// matching q's required/forbidden masks (spec §4.4 "Compilation" and
// "Match results may be cached per query signature per world"). Only the
// structural (required/forbidden) match is cached by archetype count: it
// can only change when a new archetype appears. The archetype-level
// epoch-cache skip is re-applied against that cached set on every call,
// since colCache entries advance independently of archetype creation and
// a Track query must see an archetype become eligible without needing a
// new archetype to invalidate the cache.
func (q *Query) refreshMatches() []*archetype {
	if q.structMatched == nil || q.structVersion != len(q.world.archetypes) {
		structMatched := q.structMatched[:0]
		for _, a := range q.world.archetypes {
			if a.mask.contains(q.required) && a.mask.disjoint(q.forbidden) {
				structMatched = append(structMatched, a)
			}
		}
		q.structMatched = structMatched
		q.structVersion = len(q.world.archetypes)
	}
	if len(q.modified) == 0 {
		return q.structMatched
	}
	matched := q.matched[:0]
	for _, a := range q.structMatched {
		if q.passesEpochCache(a) {
			matched = append(matched, a)
		}
	}
	q.matched = matched
	return matched
}

// passesEpochCache uses the archetype-level epoch cache to skip whole
// archetypes cheaply for modified-filter queries (spec §4.4).
func (q *Query) passesEpochCache(a *archetype) bool {
	for _, mt := range q.modified {
		if a.colCache[mt.id] <= mt.baseline {
			return false
		}
	}
	return true
}

// View is a live handle pairing a CompiledQuery with a borrow mode over
// one World (spec §4.4).
type View struct {
	q          *Query
	mode       BorrowMode
	matched    []*archetype
	archIdx    int
	row        int
	curArch    *archetype
	heldStatic bool
	heldRT     bool // whether the current archetype's runtime borrows are held
	err        error
}

// View constructs a View for cq against w using mode. Under Static mode,
// every matching archetype's requested columns are borrowed immediately;
// a conflict returns BorrowConflict (spec §4.4).
func (cq *CompiledQuery) View(mode BorrowMode) (*View, error) {
	q := cq.q
	matched := q.refreshMatches()
	v := &View{q: q, mode: mode, matched: matched, archIdx: -1, row: -1}
	if mode == Static {
		if err := v.acquireAll(); err != nil {
			return nil, err
		}
		v.heldStatic = true
	}
	return v, nil
}

func (v *View) acquireAll() error {
	acquired := make([]*archetype, 0, len(v.matched))
	for _, a := range v.matched {
		if err := v.acquireArch(a); err != nil {
			for _, done := range acquired {
				v.releaseArch(done)
			}
			return err
		}
		acquired = append(acquired, a)
	}
	return nil
}

// checkThreadForTerms rejects a view acquisition touching any non-
// sendable component from a goroutine other than the World's owner
// (spec §4.7, §5 "Non-sendable resources/components ... reject
// cross-thread access at the boundary"). Called both when Static mode
// acquires every archetype up front and when Runtime mode acquires one
// archetype per Next step, since both paths route through acquireArch.
func (v *View) checkThreadForTerms() error {
	for id := range v.q.terms {
		desc := v.q.world.registry.byID[id]
		if desc == nil {
			continue
		}
		if err := v.q.world.checkThread(desc.sendable); err != nil {
			return err
		}
	}
	return nil
}

func (v *View) acquireArch(a *archetype) error {
	if err := v.checkThreadForTerms(); err != nil {
		return err
	}
	type held struct {
		id   uint8
		mode AccessMode
	}
	acquired := make([]held, 0, len(v.q.terms))
	for id, mode := range v.q.terms {
		if !a.colBorrow[id].tryAccess(mode) {
			for _, h := range acquired {
				a.colBorrow[h.id].releaseAccess(h.mode)
			}
			return errPlain(KindBorrowConflict, "ecs: view construction: column already exclusively borrowed")
		}
		acquired = append(acquired, held{id: id, mode: mode})
	}
	return nil
}

func (v *View) releaseArch(a *archetype) {
	for id, mode := range v.q.terms {
		a.colBorrow[id].releaseAccess(mode)
	}
}

// Release releases all borrows this View is holding. Required explicitly
// under Runtime mode to let another conflicting view proceed; for Static
// views it ends the view's whole lifetime (spec §4.4).
func (v *View) Release() {
	if v.heldStatic {
		for _, a := range v.matched {
			v.releaseArch(a)
		}
		v.heldStatic = false
	}
	if v.heldRT && v.curArch != nil {
		v.releaseArch(v.curArch)
		v.heldRT = false
	}
}

// Next advances to the next matching row, acquiring/releasing
// per-archetype runtime borrows as it crosses archetype boundaries under
// Runtime mode. Returns false once iteration is exhausted.
func (v *View) Next() bool {
	for {
		if v.curArch != nil {
			v.row++
			if v.row < v.curArch.size {
				if v.passesRowFilter(v.curArch, v.row) {
					v.stampExclusive(v.curArch, v.row)
					return true
				}
				continue
			}
			if v.mode == Runtime && v.heldRT {
				v.releaseArch(v.curArch)
				v.heldRT = false
			}
			v.curArch = nil
		}
		v.archIdx++
		if v.archIdx >= len(v.matched) {
			return false
		}
		a := v.matched[v.archIdx]
		if a.size == 0 {
			continue
		}
		if v.mode == Runtime {
			if err := v.acquireArch(a); err != nil {
				v.err = err
				return false
			}
			v.heldRT = true
		}
		v.curArch = a
		v.row = -1
	}
}

func (v *View) passesRowFilter(a *archetype, row int) bool {
	for _, mt := range v.q.modified {
		if a.epochAt(mt.id, row) <= mt.baseline {
			return false
		}
	}
	for _, rt := range v.q.relTerms {
		if !rt.check(a, row) {
			return false
		}
	}
	return true
}

// stampExclusive stamps the epoch of every exclusively-accessed term for
// the row just visited (spec §4.4 "Reading a CT through an exclusive
// view's iterator stamps its epoch at the current world epoch"; design
// notes §9 "must stamp ... per visited row, not per column-borrow-
// acquire").
func (v *View) stampExclusive(a *archetype, row int) {
	for id, mode := range v.q.terms {
		if mode == accessExclusive {
			a.stamp(id, row, v.q.world.epoch)
		}
	}
}

// Err returns the error that stopped iteration early, if Next returned
// false because a Runtime-mode archetype borrow conflicted rather than
// because the view was exhausted.
func (v *View) Err() error { return v.err }

// Entity returns the EId at the View's current row.
func (v *View) Entity() EId {
	return v.curArch.entities[v.row]
}

// Current returns a Located handle for the View's current row.
func (v *View) Current() Located {
	return Located{E: v.curArch.entities[v.row], archIdx: v.curArch.index, row: v.row}
}

// ViewGet returns a shared pointer to component T at the View's current
// row. T must have been requested via With in either access mode.
func ViewGet[T any](v *View) *T {
	desc := v.q.world.registry.lookup(reflect.TypeFor[T]())
	return (*T)(v.curArch.rowPtr(desc.id, v.row))
}

// ViewGetMut returns an exclusive pointer to component T at the View's
// current row, stamping its epoch (redundant with the per-row stamp
// already applied on Next, kept idempotent so repeated calls are safe).
func ViewGetMut[T any](v *View) *T {
	desc := v.q.world.registry.lookup(reflect.TypeFor[T]())
	v.curArch.stamp(desc.id, v.row, v.q.world.epoch)
	return (*T)(v.curArch.rowPtr(desc.id, v.row))
}

// GetAt fetches component T at a previously captured Located handle
// without an entity-index lookup (spec §4.4 "Entities ... enabling
// subsequent component access without index lookup"). ok is false if the
// archetype has since changed shape and no longer carries T, or the
// handle's row has since been vacated.
func GetAt[T any](w *World, l Located) (*T, bool) {
	if l.archIdx < 0 || l.archIdx >= len(w.archetypes) {
		return nil, false
	}
	a := w.archetypes[l.archIdx]
	desc := w.registry.lookup(reflect.TypeFor[T]())
	if desc == nil || !a.hasColumn(desc.id) || l.row >= a.size || a.entities[l.row] != l.E {
		return nil, false
	}
	return (*T)(a.rowPtr(desc.id, l.row)), true
}

// ViewOne evaluates cq against a single entity without iterating the
// whole view: NoSuchEntity if e is absent, NotMatched if e's archetype
// fails the query (spec §4.4, §6 "view_one").
func (cq *CompiledQuery) ViewOne(w *World, e EId) (Located, error) {
	loc, ok := w.index.lookup(e)
	if !ok {
		return Located{}, errEntity(KindNoSuchEntity, e)
	}
	a := w.archetypes[loc.archetype]
	if !a.mask.contains(cq.q.required) || !a.mask.disjoint(cq.q.forbidden) {
		return Located{}, errEntity(KindNotMatched, e)
	}
	return Located{E: e, archIdx: int(loc.archetype), row: int(loc.row)}, nil
}
