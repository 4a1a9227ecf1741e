package stage

import "log"

// LogHookBase provides the common logic for all log hooks.
type LogHookBase struct {
	*log.Logger
}

// LifecycleLogger is a hook that prints object lifecycle events.
type LifecycleLogger struct {
	LogHookBase
}

// NewLifecycleLogger returns a LifecycleLogger that writes into the logger.
func NewLifecycleLogger(logger *log.Logger) *LifecycleLogger {
	h := new(LifecycleLogger)
	h.Logger = logger

	return h
}

// Func writes the lifecycle event into the logger.
func (h *LifecycleLogger) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosSpawn, HookPosDoom, HookPosDestroy:
		o := ctx.Item.(*Object)
		if o.Flags().Has(DontRecord) {
			return
		}

		if cause, ok := ctx.Detail.(string); ok {
			h.Printf("%.10f, %s, %s, %s",
				ctx.Now, ctx.Pos.Name, o.Name(), cause)
			return
		}

		h.Printf("%.10f, %s, %s", ctx.Now, ctx.Pos.Name, o.Name())
	case HookPosActivate:
		o := ctx.Item.(*Object)
		if o.Flags().Has(DontRecord) {
			return
		}

		h.Printf("%.10f, %s, %s, %T",
			ctx.Now, ctx.Pos.Name, o.Name(), ctx.Detail)
	case HookPosSceneUnload, HookPosSceneLoad:
		h.Printf("%.10f, %s, %s", ctx.Now, ctx.Pos.Name, ctx.Item)
	case HookPosPlay, HookPosStop:
		h.Printf("%.10f, %s", ctx.Now, ctx.Pos.Name)
	}
}
