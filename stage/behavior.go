package stage

// A Behavior adds logic to an Object. A behavior is attached to exactly one
// object and receives lifecycle callbacks from the stage.
//
// OnActivate runs once, when the stage enters play mode or, if the stage is
// already playing, right after the behavior is attached. OnDestroy runs when
// the owning object is finally removed from the stage.
//
// Both callbacks run on the stage's update goroutine. They may spawn
// objects, destroy objects, or attach more behaviors.
type Behavior interface {
	OnActivate(owner *Object)
	OnDestroy(owner *Object)
}

// BehaviorBase provides no-op lifecycle callbacks. Embed it to implement
// only the callbacks a behavior cares about.
type BehaviorBase struct{}

// OnActivate does nothing.
func (BehaviorBase) OnActivate(*Object) {}

// OnDestroy does nothing.
func (BehaviorBase) OnDestroy(*Object) {}
