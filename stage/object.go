package stage

import "log"

// HideFlags controls how much of the machinery around an object gets to see
// it.
type HideFlags uint8

const (
	// Hidden excludes the object from Objects and FindObject. Hidden objects
	// are still found by BehaviorsOf and FindBehaviors.
	Hidden HideFlags = 1 << iota

	// DontRecord excludes the object's lifecycle events from recording
	// hooks.
	DontRecord

	// HiddenAndDontRecord combines Hidden and DontRecord.
	HiddenAndDontRecord = Hidden | DontRecord
)

// Has returns true if all the bits in flag are set.
func (f HideFlags) Has(flag HideFlags) bool {
	return f&flag == flag
}

// An Object is a named entity hosted on a stage. Objects form a tree through
// parent links and carry behaviors that receive lifecycle callbacks.
//
// Objects are created with Stage.Spawn and removed with Stage.Destroy.
// Destruction is deferred. A destroyed object is doomed first, excluded from
// all queries, and physically removed when the stage next steps or tears a
// scene down.
type Object struct {
	stage *Stage

	id    string
	name  string
	scene string
	flags HideFlags

	parent   *Object
	children []*Object

	behaviors []*attachedBehavior

	persistent   bool
	doomed       bool
	dead         bool
	causeOfDeath string

	spawnedAt Uptime
}

type attachedBehavior struct {
	behavior  Behavior
	activated bool
}

// ID returns the unique ID of the object.
func (o *Object) ID() string {
	return o.id
}

// Name returns the name of the object. Names are not required to be unique.
func (o *Object) Name() string {
	return o.name
}

// Stage returns the stage that hosts the object.
func (o *Object) Stage() *Stage {
	return o.stage
}

// Scene returns the scene the object belongs to. Persisted objects belong to
// no scene and return an empty string.
func (o *Object) Scene() string {
	o.stage.mu.RLock()
	defer o.stage.mu.RUnlock()

	return o.scene
}

// Flags returns the hide flags of the object.
func (o *Object) Flags() HideFlags {
	o.stage.mu.RLock()
	defer o.stage.mu.RUnlock()

	return o.flags
}

// SetFlags replaces the hide flags of the object.
func (o *Object) SetFlags(f HideFlags) {
	o.stage.mu.Lock()
	defer o.stage.mu.Unlock()

	o.flags = f
}

// Parent returns the parent of the object, or nil for a root object.
func (o *Object) Parent() *Object {
	o.stage.mu.RLock()
	defer o.stage.mu.RUnlock()

	return o.parent
}

// Children returns the live children of the object.
func (o *Object) Children() []*Object {
	o.stage.mu.RLock()
	defer o.stage.mu.RUnlock()

	children := make([]*Object, 0, len(o.children))
	for _, c := range o.children {
		if !c.doomed && !c.dead {
			children = append(children, c)
		}
	}

	return children
}

// Behaviors returns the behaviors attached to the object, in attach order.
func (o *Object) Behaviors() []Behavior {
	o.stage.mu.RLock()
	defer o.stage.mu.RUnlock()

	behaviors := make([]Behavior, 0, len(o.behaviors))
	for _, ab := range o.behaviors {
		behaviors = append(behaviors, ab.behavior)
	}

	return behaviors
}

// Persistent returns true if the object survives scene teardowns.
func (o *Object) Persistent() bool {
	o.stage.mu.RLock()
	defer o.stage.mu.RUnlock()

	return o.persistent
}

// Alive returns true if the object is on the stage and not scheduled for
// destruction.
func (o *Object) Alive() bool {
	o.stage.mu.RLock()
	defer o.stage.mu.RUnlock()

	return !o.doomed && !o.dead
}

// SpawnedAt returns the stage time at which the object was spawned.
func (o *Object) SpawnedAt() Uptime {
	return o.spawnedAt
}

// Persist marks the object to survive scene teardowns. Only root objects can
// be persisted. A persisted object leaves its scene and belongs to no scene
// afterward. Persisting an object that is already doomed has no effect.
func (o *Object) Persist() {
	o.stage.mu.Lock()
	defer o.stage.mu.Unlock()

	if o.doomed || o.dead {
		return
	}

	if o.parent != nil {
		log.Panicf("object %s must be detached before it can persist", o.name)
	}

	o.persistent = true
	o.scene = ""
}

// SetParent moves the object under a new parent. Passing nil detaches the
// object and makes it a root object.
//
// SetParent will panic if the parent lives on a different stage, if the move
// would create a cycle, or if either object is destroyed.
func (o *Object) SetParent(p *Object) {
	o.stage.mu.Lock()
	defer o.stage.mu.Unlock()

	if o.doomed || o.dead {
		log.Panicf("cannot reparent destroyed object %s", o.name)
	}

	if p != nil {
		if p.stage != o.stage {
			log.Panic("parent must live on the same stage")
		}

		if p.doomed || p.dead {
			log.Panicf("cannot parent %s to destroyed object %s",
				o.name, p.name)
		}

		for a := p; a != nil; a = a.parent {
			if a == o {
				log.Panicf("parenting %s to %s would create a cycle",
					o.name, p.name)
			}
		}
	}

	if o.parent != nil {
		o.parent.unlinkChild(o)
	}

	o.parent = p
	if p != nil {
		p.children = append(p.children, o)
		o.scene = p.scene
	}
}

// Attach adds a behavior to the object. If the stage is playing, the
// behavior activates immediately.
//
// Attach will panic if the object is destroyed.
func (o *Object) Attach(b Behavior) {
	o.stage.attach(o, b)
}

// Destroy schedules the object and all its descendants for destruction.
func (o *Object) Destroy() {
	o.stage.Destroy(o)
}

func (o *Object) unlinkChild(c *Object) {
	for i, child := range o.children {
		if child == c {
			o.children = append(o.children[:i], o.children[i+1:]...)
			return
		}
	}
}
