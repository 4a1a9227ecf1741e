package singleton

import (
	"fmt"
	"log"
	"reflect"

	"github.com/sarchlab/torii/stage"
)

// Has returns true if the slot for T is occupied.
func Has[T stage.Behavior](r *Registry) bool {
	_, ok := r.lookup(reflect.TypeFor[T]())
	return ok
}

// TryGet returns the instance holding the slot for T, if any. It never
// creates an instance.
func TryGet[T stage.Behavior](r *Registry) (T, bool) {
	b, ok := r.lookup(reflect.TypeFor[T]())
	if !ok {
		var zero T
		return zero, false
	}

	return b.(T), true
}

// Current returns the instance holding the slot for T, or the zero value if
// the slot is empty. It never creates an instance.
func Current[T stage.Behavior](r *Registry) T {
	inst, _ := TryGet[T](r)
	return inst
}

// Get returns the instance holding the slot for T, adopting a live one or
// creating one if the slot is empty.
//
// On a slot miss, Get first looks for a live attached instance of T on the
// stage. An authored instance that has not claimed yet, say because the
// stage is not playing, is adopted under its policy instead of being
// shadowed by a fresh one. Only when none exists is a new instance created.
//
// The created instance lives on a fresh hidden, unrecorded host object and
// claims the slot before Get returns, whether or not the stage is playing.
// T must be a pointer to a struct. If T does not implement PolicyHolder,
// the basic policy is assumed.
//
// Get mutates the stage and must run on the update goroutine.
func Get[T stage.Behavior](r *Registry) T {
	if inst, ok := TryGet[T](r); ok {
		return inst
	}

	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		log.Panicf("cannot create a singleton of type %v, "+
			"want a pointer to a struct", t)
	}

	if owner, b, ok := r.st.AttachmentOf(t); ok {
		r.adopt(owner, b)
		return Current[T](r)
	}

	inst := reflect.New(t.Elem()).Interface().(T)
	name := fmt.Sprintf("(singleton) %s", t.Elem().Name())

	o := r.st.Spawn(name,
		stage.WithFlags(stage.HiddenAndDontRecord),
		stage.WithBehaviors(inst),
	)

	// If the stage is playing, the activation hook has already applied the
	// policy. A hook may even have claimed the slot for a competing
	// instance, in which case the fresh object backs off.
	owner, ok := r.ownerOf(t)
	switch {
	case ok && owner == o:
		r.noteAutoCreated(o, t)
		return Current[T](r)
	case ok:
		r.st.DestroyWithCause(o, CauseDuplicate)
		return Current[T](r)
	}

	now := r.st.Now()
	policy, _ := policyOf(inst)
	r.recordBirth(o, inst, now)
	r.claim(o, inst, policy, now)
	r.noteAutoCreated(o, t)

	return inst
}
