package stage

import (
	"log"
	"reflect"
	"sync"
)

// Causes recorded when objects are destroyed. Packages that build on the
// stage can define their own causes.
const (
	// CauseRequested marks a plain destruction request.
	CauseRequested = "requested"

	// CauseTeardown marks destruction by a scene teardown.
	CauseTeardown = "scene teardown"
)

// A Stage hosts a tree of objects and drives their lifecycle.
//
// All lifecycle mutations, Spawn, Destroy, Step, Play, StopPlay, LoadScene,
// and the mutating methods of Object, must happen on a single goroutine, the
// update goroutine. Read-only queries are safe to call from any goroutine,
// so monitors and recorders can inspect a running stage.
//
// A stage is hookable. Hooks observe spawns, activations, destructions,
// scene changes, and steps. Hook handlers run on the update goroutine and
// may mutate the stage.
type Stage struct {
	HookableBase

	mu    sync.RWMutex
	clock Clock

	scene   string
	playing bool

	objects   []*Object
	doomQueue []*Object

	numSpawned   uint64
	numDestroyed uint64
	numSteps     uint64
}

// Stats is a point-in-time summary of a stage.
type Stats struct {
	Scene          string `json:"scene"`
	Playing        bool   `json:"playing"`
	Live           int    `json:"live"`
	Hidden         int    `json:"hidden"`
	PendingDestroy int    `json:"pending_destroy"`
	Spawned        uint64 `json:"spawned"`
	Destroyed      uint64 `json:"destroyed"`
	Steps          uint64 `json:"steps"`
}

// Option configures a stage at creation time.
type Option func(*Stage)

// WithClock makes the stage read time from c instead of a wall clock.
func WithClock(c Clock) Option {
	return func(st *Stage) {
		st.clock = c
	}
}

// WithScene sets the name of the initially loaded scene.
func WithScene(name string) Option {
	return func(st *Stage) {
		st.scene = name
	}
}

// NewStage creates a stage with one scene loaded and play mode off.
func NewStage(opts ...Option) *Stage {
	st := &Stage{
		clock: NewWallClock(),
		scene: "main",
	}

	for _, opt := range opts {
		opt(st)
	}

	return st
}

// Now returns the current stage time.
func (st *Stage) Now() Uptime {
	return st.clock.Now()
}

// Clock returns the clock the stage reads time from.
func (st *Stage) Clock() Clock {
	return st.clock
}

// Scene returns the name of the currently loaded scene.
func (st *Stage) Scene() string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.scene
}

// Playing returns true if the stage is in play mode.
func (st *Stage) Playing() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.playing
}

// SpawnOption configures an object at spawn time.
type SpawnOption func(*Object)

// WithParent spawns the object as a child of p.
func WithParent(p *Object) SpawnOption {
	return func(o *Object) {
		if p == nil {
			return
		}

		if p.stage != o.stage {
			log.Panic("parent must live on the same stage")
		}

		if p.doomed || p.dead {
			log.Panicf("cannot parent %s to destroyed object %s",
				o.name, p.name)
		}

		o.parent = p
		o.scene = p.scene
		p.children = append(p.children, o)
	}
}

// WithFlags spawns the object with the given hide flags.
func WithFlags(f HideFlags) SpawnOption {
	return func(o *Object) {
		o.flags = f
	}
}

// WithBehaviors attaches behaviors at spawn time, before the object
// activates.
func WithBehaviors(bs ...Behavior) SpawnOption {
	return func(o *Object) {
		for _, b := range bs {
			o.behaviors = append(o.behaviors,
				&attachedBehavior{behavior: b})
		}
	}
}

// Spawn creates an object in the current scene. If the stage is playing, the
// object's behaviors activate before Spawn returns.
func (st *Stage) Spawn(name string, opts ...SpawnOption) *Object {
	st.mu.Lock()

	o := &Object{
		stage:     st,
		id:        GetIDGenerator().Generate(),
		name:      name,
		scene:     st.scene,
		spawnedAt: st.clock.Now(),
	}

	for _, opt := range opts {
		opt(o)
	}

	st.objects = append(st.objects, o)
	st.numSpawned++
	playing := st.playing
	now := st.clock.Now()

	st.mu.Unlock()

	st.InvokeHook(HookCtx{
		Domain: st,
		Now:    now,
		Pos:    HookPosSpawn,
		Item:   o,
	})

	if playing {
		st.activateObject(o)
	}

	return o
}

// Destroy schedules o and all its descendants for destruction with the
// default cause. The objects disappear from queries immediately but are
// removed from the stage at the next step or scene teardown.
func (st *Stage) Destroy(o *Object) {
	st.DestroyWithCause(o, CauseRequested)
}

// DestroyWithCause schedules o and all its descendants for destruction,
// recording the given cause. Destroying an object twice has no effect.
//
// DestroyWithCause will panic if o lives on a different stage.
func (st *Stage) DestroyWithCause(o *Object, cause string) {
	if o.stage != st {
		log.Panicf("object %s lives on a different stage", o.name)
	}

	st.mu.Lock()
	doomed := st.doomTree(o, cause)
	now := st.clock.Now()
	st.mu.Unlock()

	for _, d := range doomed {
		st.InvokeHook(HookCtx{
			Domain: st,
			Now:    now,
			Pos:    HookPosDoom,
			Item:   d,
			Detail: d.causeOfDeath,
		})
	}
}

// doomTree marks o and all its live descendants as doomed and queues them
// for removal, parents before children. It must run with the write lock
// held.
func (st *Stage) doomTree(o *Object, cause string) []*Object {
	if o.doomed || o.dead {
		return nil
	}

	o.doomed = true
	o.causeOfDeath = cause
	st.doomQueue = append(st.doomQueue, o)

	doomed := []*Object{o}
	for _, c := range o.children {
		doomed = append(doomed, st.doomTree(c, cause)...)
	}

	return doomed
}

// flushDoomed removes every queued object from the stage, then runs the
// OnDestroy callbacks and destruction hooks. Objects doomed by those
// callbacks are flushed in the same call.
func (st *Stage) flushDoomed() {
	for {
		st.mu.Lock()

		batch := st.doomQueue
		st.doomQueue = nil

		if len(batch) == 0 {
			st.mu.Unlock()
			return
		}

		for _, o := range batch {
			st.removeObject(o)
		}
		now := st.clock.Now()

		st.mu.Unlock()

		for _, o := range batch {
			for _, ab := range o.behaviors {
				if ab.activated {
					ab.behavior.OnDestroy(o)
				}
			}

			st.InvokeHook(HookCtx{
				Domain: st,
				Now:    now,
				Pos:    HookPosDestroy,
				Item:   o,
				Detail: o.causeOfDeath,
			})
		}
	}
}

// removeObject takes o off the stage. It must run with the write lock held.
func (st *Stage) removeObject(o *Object) {
	o.dead = true
	st.numDestroyed++

	if o.parent != nil && !o.parent.dead {
		o.parent.unlinkChild(o)
	}
	o.parent = nil

	for i, obj := range st.objects {
		if obj == o {
			st.objects = append(st.objects[:i], st.objects[i+1:]...)
			return
		}
	}
}

// Step completes one update cycle. Pending destructions are flushed, the
// step counter advances, and the step hook fires.
func (st *Stage) Step() {
	st.flushDoomed()

	st.mu.Lock()
	st.numSteps++
	n := st.numSteps
	now := st.clock.Now()
	st.mu.Unlock()

	st.InvokeHook(HookCtx{
		Domain: st,
		Now:    now,
		Pos:    HookPosStep,
		Detail: n,
	})
}

// Play puts the stage in play mode. Behaviors that have not activated yet
// activate now, in spawn order. Play on a playing stage has no effect.
func (st *Stage) Play() {
	st.mu.Lock()

	if st.playing {
		st.mu.Unlock()
		return
	}

	st.playing = true
	objs := make([]*Object, len(st.objects))
	copy(objs, st.objects)
	now := st.clock.Now()

	st.mu.Unlock()

	st.InvokeHook(HookCtx{Domain: st, Now: now, Pos: HookPosPlay})

	for _, o := range objs {
		st.activateObject(o)
	}
}

// StopPlay takes the stage out of play mode. Objects stay on the stage and
// behaviors stay activated. StopPlay on a stopped stage has no effect.
func (st *Stage) StopPlay() {
	st.mu.Lock()

	if !st.playing {
		st.mu.Unlock()
		return
	}

	st.playing = false
	now := st.clock.Now()

	st.mu.Unlock()

	st.InvokeHook(HookCtx{Domain: st, Now: now, Pos: HookPosStop})
}

// activateObject activates the pending behaviors of o one by one. The
// activation hook fires before the behavior's OnActivate callback, so hooks
// get a chance to destroy the object first. If one does, the remaining
// callbacks are skipped.
func (st *Stage) activateObject(o *Object) {
	for {
		st.mu.Lock()

		var pending *attachedBehavior
		if !o.doomed && !o.dead {
			for _, ab := range o.behaviors {
				if !ab.activated {
					pending = ab
					break
				}
			}
		}
		if pending != nil {
			pending.activated = true
		}
		now := st.clock.Now()

		st.mu.Unlock()

		if pending == nil {
			return
		}

		st.InvokeHook(HookCtx{
			Domain: st,
			Now:    now,
			Pos:    HookPosActivate,
			Item:   o,
			Detail: pending.behavior,
		})

		if o.Alive() {
			pending.behavior.OnActivate(o)
		}
	}
}

// attach adds a behavior to o, activating it if the stage is playing.
func (st *Stage) attach(o *Object, b Behavior) {
	st.mu.Lock()

	if o.doomed || o.dead {
		st.mu.Unlock()
		log.Panicf("cannot attach a behavior to destroyed object %s", o.name)
	}

	o.behaviors = append(o.behaviors, &attachedBehavior{behavior: b})
	playing := st.playing

	st.mu.Unlock()

	if playing {
		st.activateObject(o)
	}
}

// LoadScene tears the current scene down and loads a new one. Every
// non-persistent root object, and the whole tree under it, is destroyed
// synchronously. Persisted objects and their descendants carry over.
func (st *Stage) LoadScene(name string) {
	st.mu.Lock()

	old := st.scene
	var roots []*Object
	for _, o := range st.objects {
		if o.parent == nil && !o.doomed && !o.persistent {
			roots = append(roots, o)
		}
	}
	now := st.clock.Now()

	st.mu.Unlock()

	st.InvokeHook(HookCtx{
		Domain: st,
		Now:    now,
		Pos:    HookPosSceneUnload,
		Item:   old,
	})

	for _, o := range roots {
		st.DestroyWithCause(o, CauseTeardown)
	}

	st.flushDoomed()

	st.mu.Lock()
	st.scene = name
	now = st.clock.Now()
	st.mu.Unlock()

	st.InvokeHook(HookCtx{
		Domain: st,
		Now:    now,
		Pos:    HookPosSceneLoad,
		Item:   name,
	})
}

// Objects returns the live, visible objects on the stage, in spawn order.
func (st *Stage) Objects() []*Object {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var objs []*Object
	for _, o := range st.objects {
		if !o.doomed && !o.flags.Has(Hidden) {
			objs = append(objs, o)
		}
	}

	return objs
}

// HiddenObjects returns the live objects that carry the Hidden flag.
func (st *Stage) HiddenObjects() []*Object {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var objs []*Object
	for _, o := range st.objects {
		if !o.doomed && o.flags.Has(Hidden) {
			objs = append(objs, o)
		}
	}

	return objs
}

// FindObject returns the first live, visible object with the given name, or
// nil if there is none.
func (st *Stage) FindObject(name string) *Object {
	st.mu.RLock()
	defer st.mu.RUnlock()

	for _, o := range st.objects {
		if !o.doomed && !o.flags.Has(Hidden) && o.name == name {
			return o
		}
	}

	return nil
}

// BehaviorsOf returns every attached behavior whose dynamic type is exactly
// t, in spawn order of the owning objects. Hidden objects are included,
// doomed objects are not.
func (st *Stage) BehaviorsOf(t reflect.Type) []Behavior {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var behaviors []Behavior
	for _, o := range st.objects {
		if o.doomed {
			continue
		}

		for _, ab := range o.behaviors {
			if reflect.TypeOf(ab.behavior) == t {
				behaviors = append(behaviors, ab.behavior)
			}
		}
	}

	return behaviors
}

// AttachmentOf returns the first attached behavior whose dynamic type is
// exactly t, together with its owning object. Hidden objects are included,
// doomed objects are not.
func (st *Stage) AttachmentOf(t reflect.Type) (*Object, Behavior, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	for _, o := range st.objects {
		if o.doomed {
			continue
		}

		for _, ab := range o.behaviors {
			if reflect.TypeOf(ab.behavior) == t {
				return o, ab.behavior, true
			}
		}
	}

	return nil, nil, false
}

// FindBehaviors returns every attached behavior of type T, in spawn order of
// the owning objects. Hidden objects are included, doomed objects are not.
func FindBehaviors[T Behavior](st *Stage) []T {
	raw := st.BehaviorsOf(reflect.TypeFor[T]())

	behaviors := make([]T, 0, len(raw))
	for _, b := range raw {
		behaviors = append(behaviors, b.(T))
	}

	return behaviors
}

// FindBehavior returns the first attached behavior of type T.
func FindBehavior[T Behavior](st *Stage) (T, bool) {
	behaviors := FindBehaviors[T](st)
	if len(behaviors) == 0 {
		var zero T
		return zero, false
	}

	return behaviors[0], true
}

// Stats returns a summary of the stage.
func (st *Stage) Stats() Stats {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s := Stats{
		Scene:     st.scene,
		Playing:   st.playing,
		Spawned:   st.numSpawned,
		Destroyed: st.numDestroyed,
		Steps:     st.numSteps,
	}

	for _, o := range st.objects {
		if o.doomed {
			s.PendingDestroy++
			continue
		}

		if o.flags.Has(Hidden) {
			s.Hidden++
		} else {
			s.Live++
		}
	}

	return s
}
