package trace

import (
	"sync"

	"github.com/sarchlab/torii/singleton"
	"github.com/sarchlab/torii/stage"
)

// A Hook turns lifecycle events into spans. Attach it to a stage for
// lifetime and scene spans and to a registry for tenure spans. The same
// hook can serve both.
//
// Objects flagged DontRecord leave no lifetime spans. Spans that are still
// open when the process ends are never delivered to the tracer.
type Hook struct {
	tracer Tracer

	mu       sync.Mutex
	inflight map[string]Span
}

// NewHook creates a Hook that delivers spans to tracer.
func NewHook(tracer Tracer) *Hook {
	return &Hook{
		tracer:   tracer,
		inflight: make(map[string]Span),
	}
}

// Func translates the event carried by ctx into span starts and ends.
func (h *Hook) Func(ctx stage.HookCtx) {
	switch ctx.Pos {
	case stage.HookPosSpawn:
		h.objectSpawned(ctx)
	case stage.HookPosDestroy:
		h.objectDestroyed(ctx)
	case stage.HookPosSceneLoad:
		h.sceneLoaded(ctx)
	case stage.HookPosSceneUnload:
		h.sceneUnloaded(ctx)
	case singleton.HookPosClaim:
		h.slotClaimed(ctx)
	case singleton.HookPosRelease, singleton.HookPosEvict:
		h.slotVacated(ctx)
	}
}

func (h *Hook) objectSpawned(ctx stage.HookCtx) {
	o := ctx.Item.(*stage.Object)
	if o.Flags().Has(stage.DontRecord) {
		return
	}

	h.start(Span{
		ID:    o.ID(),
		Kind:  KindLifetime,
		What:  o.Name(),
		Where: o.Scene(),
		Start: ctx.Now,
	})
}

func (h *Hook) objectDestroyed(ctx stage.HookCtx) {
	o := ctx.Item.(*stage.Object)
	h.end(o.ID(), ctx.Now)
}

func (h *Hook) sceneLoaded(ctx stage.HookCtx) {
	name := ctx.Item.(string)

	h.start(Span{
		ID:    "scene/" + name,
		Kind:  KindScene,
		What:  name,
		Start: ctx.Now,
	})
}

func (h *Hook) sceneUnloaded(ctx stage.HookCtx) {
	name := ctx.Item.(string)
	h.end("scene/"+name, ctx.Now)
}

func (h *Hook) slotClaimed(ctx stage.HookCtx) {
	e := ctx.Item.(singleton.SlotInfo)

	h.start(Span{
		ID:    "slot/" + e.Type.String() + "/" + e.Owner.ID(),
		Kind:  KindTenure,
		What:  e.Type.String(),
		Where: e.Owner.Name(),
		Start: ctx.Now,
	})
}

func (h *Hook) slotVacated(ctx stage.HookCtx) {
	e := ctx.Item.(singleton.SlotInfo)
	h.end("slot/"+e.Type.String()+"/"+e.Owner.ID(), ctx.Now)
}

func (h *Hook) start(span Span) {
	h.mu.Lock()
	h.inflight[span.ID] = span
	h.mu.Unlock()

	h.tracer.StartSpan(span)
}

// end completes the open span with the given ID. Ends without a matching
// start are dropped, which covers objects spawned before the hook attached
// and the scene that was loaded when the stage was created.
func (h *Hook) end(id string, now stage.Uptime) {
	h.mu.Lock()
	span, ok := h.inflight[id]
	if ok {
		delete(h.inflight, id)
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	span.End = now
	h.tracer.EndSpan(span)
}
