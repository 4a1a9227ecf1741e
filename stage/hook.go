package stage

// HookPos defines the enum of the places where hooks can be invoked.
type HookPos struct {
	Name string
}

// Hook positions of a stage. The Item field of the HookCtx carries the
// *Object for object lifecycle positions and the scene name for scene
// positions.
var (
	// HookPosSpawn is triggered after an object is added to the stage.
	HookPosSpawn = &HookPos{Name: "Spawn"}

	// HookPosActivate is triggered after a behavior starts running. The Item
	// is the owning *Object and the Detail is the Behavior.
	HookPosActivate = &HookPos{Name: "Activate"}

	// HookPosDoom is triggered when an object is scheduled for destruction.
	// The Detail carries the cause.
	HookPosDoom = &HookPos{Name: "Doom"}

	// HookPosDestroy is triggered after an object is removed from the stage.
	// The Detail carries the cause.
	HookPosDestroy = &HookPos{Name: "Destroy"}

	// HookPosSceneUnload is triggered before a scene teardown starts. The
	// Item is the name of the scene being unloaded.
	HookPosSceneUnload = &HookPos{Name: "SceneUnload"}

	// HookPosSceneLoad is triggered after a scene teardown completes. The
	// Item is the name of the newly loaded scene.
	HookPosSceneLoad = &HookPos{Name: "SceneLoad"}

	// HookPosPlay is triggered when the stage enters play mode.
	HookPosPlay = &HookPos{Name: "Play"}

	// HookPosStop is triggered when the stage leaves play mode.
	HookPosStop = &HookPos{Name: "Stop"}

	// HookPosStep is triggered after each step completes. The Detail carries
	// the step count.
	HookPosStep = &HookPos{Name: "Step"}
)

// HookCtx is the context that holds all the information about the site where
// a hook is invoked.
type HookCtx struct {
	Domain Hookable
	Now    Uptime
	Pos    *HookPos
	Item   any
	Detail any
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do when the hook is invoked.
	Func(ctx HookCtx)
}

// Hookable defines an object that accepts Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)
}

// A HookableBase provides some utilities for other hookable objects.
type HookableBase struct {
	Hooks []Hook
}

// NewHookableBase creates a HookableBase object.
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	return h
}

// AcceptHook adds a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.Hooks = append(h.Hooks, hook)
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.Hooks)
}

// InvokeHook invokes all the hooks.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.Hooks {
		hook.Func(ctx)
	}
}
