package ecs

// ActionKind discriminates the recorded payload of a single action.
type ActionKind uint8

const (
	actionSpawn ActionKind = iota
	actionDespawn
	actionInsert
	actionRemove
	actionClosure
)

// action is one entry in an ActionEncoder's log. Exactly one of the
// payload fields is meaningful, selected by kind.
type action struct {
	kind     ActionKind
	entity   EId
	typ      typeErasedValue // insert payload
	removeID uint8           // remove: component id
	insertID uint8           // insert: component id
	fallible bool            // fallible-noisy: log NoSuchEntity instead of dropping silently
	closure  func(*World) error
	onSpawn  func(EId) // invoked with the freshly spawned id, for spawn actions
	bundle   []typeErasedValue
}

// typeErasedValue carries a component value recorded into an action log
// without the caller's static type, so the log can be a flat slice. The
// apply function knows how to move it into the destination archetype
// through the component's registered vtable.
type typeErasedValue struct {
	id    uint8
	apply func(w *World, e EId) error
}

// ActionEncoder is an append-only log of deferred world mutations (spec
// §4.6). Two flavours exist: a sendable encoder safe to fill from other
// goroutines, and a local encoder used internally by hook dispatch, which
// is never handed outside the goroutine that owns the World.
type ActionEncoder struct {
	actions  []action
	sendable bool
}

func newActionEncoder(sendable bool) *ActionEncoder {
	return &ActionEncoder{sendable: sendable}
}

// Sendable reports whether this encoder may be filled from a goroutine
// other than the one that owns the World.
func (enc *ActionEncoder) Sendable() bool { return enc.sendable }

// Despawn records a deferred despawn of e.
func (enc *ActionEncoder) Despawn(e EId) {
	enc.actions = append(enc.actions, action{kind: actionDespawn, entity: e})
}

// DespawnNoisy records a deferred despawn that logs (rather than silently
// drops) if e no longer exists at drain time.
func (enc *ActionEncoder) DespawnNoisy(e EId) {
	enc.actions = append(enc.actions, action{kind: actionDespawn, entity: e, fallible: true})
}

// Closure records an arbitrary deferred mutation. The closure receives
// the live *World at drain time and may call any mutating method on it.
func (enc *ActionEncoder) Closure(fn func(*World) error) {
	enc.actions = append(enc.actions, action{kind: actionClosure, closure: fn})
}

// EncodeInsert records a deferred Insert[T](e, value). Named distinctly
// from the immediate Insert[T] free function (world.go) since Go forbids
// two package-level generic functions sharing a name regardless of their
// parameter types.
func EncodeInsert[T any](enc *ActionEncoder, e EId, value T) {
	v := value
	enc.actions = append(enc.actions, action{
		kind:   actionInsert,
		entity: e,
		typ: typeErasedValue{
			apply: func(w *World, e EId) error {
				return insertCore(w, e, v)
			},
		},
	})
}

// EncodeRemove records a deferred removal of T from e, as Take[T] does,
// discarding the removed value.
func EncodeRemove[T any](enc *ActionEncoder, e EId) {
	enc.actions = append(enc.actions, action{
		kind:   actionRemove,
		entity: e,
		typ: typeErasedValue{
			apply: func(w *World, e EId) error {
				_, err := removeCore[T](w, e)
				return err
			},
		},
	})
}

// Spawn records a deferred spawn. onSpawn, if non-nil, is invoked with
// the freshly allocated id once the spawn actually lands at drain time.
func Spawn(enc *ActionEncoder, onSpawn func(EId)) {
	enc.actions = append(enc.actions, action{kind: actionSpawn, onSpawn: onSpawn})
}

// drainActionsCap bounds how many drain rounds a single drainActions call
// will run, guarding against hook-induced action cycles (design notes
// §9 "the core caps iteration but the cap is not documented" — this
// implementation documents and fixes it at this constant).
const drainActionsCap = 64

// drainActions executes every recorded action in order, feeding any
// further actions those drains enqueue back through w.main until the
// buffer empties or drainActionsCap rounds have run.
func (w *World) drainActions() {
	rounds := 0
	for {
		pending := w.main.actions
		if len(pending) == 0 {
			return
		}
		w.main.actions = nil
		for i := range pending {
			w.runAction(&pending[i])
		}
		rounds++
		if rounds >= drainActionsCap && len(w.main.actions) > 0 {
			w.logger.Error("action buffer drain hit iteration cap; remaining actions discarded",
				zapInt("round_cap", drainActionsCap))
			w.main.actions = nil
			return
		}
	}
}

func (w *World) runAction(a *action) {
	switch a.kind {
	case actionSpawn:
		e := w.spawnCore()
		if a.onSpawn != nil {
			a.onSpawn(e)
		}
	case actionDespawn:
		err := w.despawnCore(a.entity)
		if err != nil && a.fallible {
			w.logger.Warn("deferred despawn of vanished entity", zapUint64("entity", uint64(a.entity)))
		}
	case actionInsert, actionRemove:
		err := a.typ.apply(w, a.entity)
		if err != nil && a.fallible {
			w.logger.Warn("deferred action on vanished entity", zapUint64("entity", uint64(a.entity)))
		}
	case actionClosure:
		if err := a.closure(w); err != nil && a.fallible {
			w.logger.Warn("deferred closure action failed", zapError(err))
		}
	}
}
