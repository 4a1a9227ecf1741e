package journal

import (
	"fmt"

	"github.com/sarchlab/torii/singleton"
	"github.com/sarchlab/torii/stage"
)

// A Hook records lifecycle and singleton events into a Recorder. Attach it
// to a stage for lifecycle rows and to a registry for singleton rows. The
// same hook can serve both.
//
// Objects flagged DontRecord leave no lifecycle rows. Singleton rows are
// always written, since they describe the slot rather than the object.
type Hook struct {
	rec Recorder
}

// NewHook creates a Hook and the tables it writes into.
func NewHook(rec Recorder) *Hook {
	rec.CreateTable(LifecycleTable, LifecycleRow{})
	rec.CreateTable(SingletonTable, SingletonRow{})

	return &Hook{rec: rec}
}

// Func writes the event carried by ctx into the journal.
func (h *Hook) Func(ctx stage.HookCtx) {
	switch ctx.Pos {
	case stage.HookPosSpawn, stage.HookPosDoom, stage.HookPosDestroy:
		h.recordObject(ctx)
	case stage.HookPosActivate:
		h.recordActivation(ctx)
	case stage.HookPosSceneUnload, stage.HookPosSceneLoad:
		h.recordScene(ctx)
	case stage.HookPosPlay, stage.HookPosStop:
		h.recordMode(ctx)
	case singleton.HookPosClaim,
		singleton.HookPosRelease,
		singleton.HookPosEvict:
		h.recordSingleton(ctx)
	}
}

func (h *Hook) recordObject(ctx stage.HookCtx) {
	o := ctx.Item.(*stage.Object)
	if o.Flags().Has(stage.DontRecord) {
		return
	}

	cause, _ := ctx.Detail.(string)

	h.rec.InsertData(LifecycleTable, LifecycleRow{
		Time:     float64(ctx.Now),
		Event:    eventName(ctx.Pos),
		ObjectID: o.ID(),
		Object:   o.Name(),
		Scene:    o.Scene(),
		Detail:   cause,
	})
}

func (h *Hook) recordActivation(ctx stage.HookCtx) {
	o := ctx.Item.(*stage.Object)
	if o.Flags().Has(stage.DontRecord) {
		return
	}

	h.rec.InsertData(LifecycleTable, LifecycleRow{
		Time:     float64(ctx.Now),
		Event:    "activate",
		ObjectID: o.ID(),
		Object:   o.Name(),
		Scene:    o.Scene(),
		Detail:   fmt.Sprintf("%T", ctx.Detail),
	})
}

func (h *Hook) recordScene(ctx stage.HookCtx) {
	h.rec.InsertData(LifecycleTable, LifecycleRow{
		Time:  float64(ctx.Now),
		Event: eventName(ctx.Pos),
		Scene: ctx.Item.(string),
	})
}

func (h *Hook) recordMode(ctx stage.HookCtx) {
	h.rec.InsertData(LifecycleTable, LifecycleRow{
		Time:  float64(ctx.Now),
		Event: eventName(ctx.Pos),
	})
}

func (h *Hook) recordSingleton(ctx stage.HookCtx) {
	e := ctx.Item.(singleton.SlotInfo)

	h.rec.InsertData(SingletonTable, SingletonRow{
		Time:        float64(ctx.Now),
		Event:       eventName(ctx.Pos),
		Type:        e.Type.String(),
		Object:      e.Owner.Name(),
		Policy:      e.Policy.String(),
		AutoCreated: e.AutoCreated,
	})
}

func eventName(pos *stage.HookPos) string {
	switch pos {
	case stage.HookPosSpawn:
		return "spawn"
	case stage.HookPosDoom:
		return "doom"
	case stage.HookPosDestroy:
		return "destroy"
	case stage.HookPosSceneUnload:
		return "scene_unload"
	case stage.HookPosSceneLoad:
		return "scene_load"
	case stage.HookPosPlay:
		return "play"
	case stage.HookPosStop:
		return "stop"
	case singleton.HookPosClaim:
		return "claim"
	case singleton.HookPosRelease:
		return "release"
	case singleton.HookPosEvict:
		return "evict"
	}

	return pos.Name
}
