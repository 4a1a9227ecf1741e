package stage

import (
	"reflect"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

type hookFunc func(ctx HookCtx)

func (f hookFunc) Func(ctx HookCtx) {
	f(ctx)
}

type markerBehavior struct {
	BehaviorBase
	tag string
}

func posMatch(pos *HookPos) gomock.Matcher {
	return gomock.Cond(func(ctx HookCtx) bool {
		return ctx.Pos == pos
	})
}

var _ = Describe("Stage", func() {
	var (
		mockCtrl *gomock.Controller
		clock    *ManualClock
		st       *Stage
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		clock = NewManualClock()
		st = NewStage(WithClock(clock), WithScene("boot"))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should spawn objects into the current scene", func() {
		o := st.Spawn("player")

		Expect(o.ID()).NotTo(BeEmpty())
		Expect(o.Name()).To(Equal("player"))
		Expect(o.Scene()).To(Equal("boot"))
		Expect(o.Alive()).To(BeTrue())
		Expect(st.Objects()).To(ConsistOf(o))
		Expect(st.FindObject("player")).To(BeIdenticalTo(o))
	})

	It("should parent objects at spawn time", func() {
		p := st.Spawn("parent")
		c := st.Spawn("child", WithParent(p))

		Expect(c.Parent()).To(BeIdenticalTo(p))
		Expect(p.Children()).To(ConsistOf(c))
	})

	It("should refuse parents from another stage", func() {
		other := NewStage()
		foreign := other.Spawn("foreign")

		Expect(func() {
			st.Spawn("child", WithParent(foreign))
		}).To(Panic())
	})

	It("should not activate behaviors before play", func() {
		b := NewMockBehavior(mockCtrl)

		st.Spawn("sleeper", WithBehaviors(b))
	})

	It("should activate behaviors in spawn order when play starts", func() {
		b1 := NewMockBehavior(mockCtrl)
		b2 := NewMockBehavior(mockCtrl)
		o1 := st.Spawn("first", WithBehaviors(b1))
		o2 := st.Spawn("second", WithBehaviors(b2))

		gomock.InOrder(
			b1.EXPECT().OnActivate(o1),
			b2.EXPECT().OnActivate(o2),
		)

		st.Play()

		Expect(st.Playing()).To(BeTrue())
	})

	It("should activate each behavior only once", func() {
		b := NewMockBehavior(mockCtrl)
		st.Spawn("obj", WithBehaviors(b))

		b.EXPECT().OnActivate(gomock.Any()).Times(1)

		st.Play()
		st.StopPlay()
		st.Play()
	})

	It("should activate behaviors on objects spawned while playing", func() {
		st.Play()

		b := NewMockBehavior(mockCtrl)
		b.EXPECT().OnActivate(gomock.Any())

		st.Spawn("late", WithBehaviors(b))
	})

	It("should activate behaviors attached while playing", func() {
		o := st.Spawn("obj")
		st.Play()

		b := NewMockBehavior(mockCtrl)
		b.EXPECT().OnActivate(o)

		o.Attach(b)
	})

	It("should defer destruction until the next step", func() {
		b := NewMockBehavior(mockCtrl)
		b.EXPECT().OnActivate(gomock.Any())
		o := st.Spawn("victim", WithBehaviors(b))
		st.Play()

		st.Destroy(o)

		Expect(o.Alive()).To(BeFalse())
		Expect(st.Objects()).To(BeEmpty())
		Expect(st.FindObject("victim")).To(BeNil())
		Expect(st.Stats().PendingDestroy).To(Equal(1))

		b.EXPECT().OnDestroy(o)
		st.Step()

		Expect(st.Stats().PendingDestroy).To(Equal(0))
		Expect(st.Stats().Destroyed).To(Equal(uint64(1)))
	})

	It("should destroy descendants with their parent", func() {
		bp := NewMockBehavior(mockCtrl)
		bc := NewMockBehavior(mockCtrl)
		bp.EXPECT().OnActivate(gomock.Any())
		bc.EXPECT().OnActivate(gomock.Any())

		p := st.Spawn("parent", WithBehaviors(bp))
		c := st.Spawn("child", WithParent(p), WithBehaviors(bc))
		st.Play()

		st.Destroy(p)

		Expect(p.Alive()).To(BeFalse())
		Expect(c.Alive()).To(BeFalse())

		gomock.InOrder(
			bp.EXPECT().OnDestroy(p),
			bc.EXPECT().OnDestroy(c),
		)
		st.Step()
	})

	It("should ignore a second destroy of the same object", func() {
		o := st.Spawn("victim")

		st.Destroy(o)
		st.Destroy(o)
		st.Step()

		Expect(st.Stats().Destroyed).To(Equal(uint64(1)))
	})

	It("should not call OnDestroy on behaviors that never activated", func() {
		b := NewMockBehavior(mockCtrl)
		o := st.Spawn("never-played", WithBehaviors(b))

		st.Destroy(o)
		st.Step()
	})

	It("should skip OnActivate when a hook destroys the object first", func() {
		b := NewMockBehavior(mockCtrl)
		st.AcceptHook(hookFunc(func(ctx HookCtx) {
			if ctx.Pos == HookPosActivate {
				st.DestroyWithCause(ctx.Item.(*Object), "rejected")
			}
		}))

		o := st.Spawn("reject-me", WithBehaviors(b))
		st.Play()

		Expect(o.Alive()).To(BeFalse())

		b.EXPECT().OnDestroy(o)
		st.Step()
	})

	It("should flush objects doomed by OnDestroy in the same step", func() {
		b1 := NewMockBehavior(mockCtrl)
		b1.EXPECT().OnActivate(gomock.Any())
		b2 := NewMockBehavior(mockCtrl)
		b2.EXPECT().OnActivate(gomock.Any())

		o1 := st.Spawn("one", WithBehaviors(b1))
		o2 := st.Spawn("two", WithBehaviors(b2))
		st.Play()

		b1.EXPECT().OnDestroy(o1).Do(func(*Object) {
			st.Destroy(o2)
		})
		b2.EXPECT().OnDestroy(o2)

		st.Destroy(o1)
		st.Step()

		Expect(st.Stats().Destroyed).To(Equal(uint64(2)))
	})

	It("should hide flagged objects from regular queries", func() {
		b := &markerBehavior{tag: "ghost"}
		o := st.Spawn("ghost", WithFlags(Hidden), WithBehaviors(b))

		Expect(st.Objects()).To(BeEmpty())
		Expect(st.FindObject("ghost")).To(BeNil())
		Expect(st.HiddenObjects()).To(ConsistOf(o))
		Expect(FindBehaviors[*markerBehavior](st)).To(ConsistOf(b))
		Expect(st.Stats().Hidden).To(Equal(1))
		Expect(st.Stats().Live).To(Equal(0))
	})

	It("should find behaviors by exact type in spawn order", func() {
		b1 := &markerBehavior{tag: "a"}
		b2 := &markerBehavior{tag: "b"}
		st.Spawn("one", WithBehaviors(b1))
		st.Spawn("two", WithBehaviors(b2))

		Expect(FindBehaviors[*markerBehavior](st)).
			To(Equal([]*markerBehavior{b1, b2}))

		first, ok := FindBehavior[*markerBehavior](st)
		Expect(ok).To(BeTrue())
		Expect(first).To(BeIdenticalTo(b1))
	})

	It("should report a miss when no behavior matches", func() {
		_, ok := FindBehavior[*markerBehavior](st)

		Expect(ok).To(BeFalse())
	})

	It("should pair a found behavior with its owning object", func() {
		b1 := &markerBehavior{tag: "a"}
		o1 := st.Spawn("one", WithBehaviors(b1))
		st.Spawn("two", WithBehaviors(&markerBehavior{tag: "b"}))

		owner, b, ok := st.AttachmentOf(reflect.TypeOf(b1))
		Expect(ok).To(BeTrue())
		Expect(owner).To(BeIdenticalTo(o1))
		Expect(b).To(BeIdenticalTo(b1))

		st.Destroy(o1)

		owner, _, ok = st.AttachmentOf(reflect.TypeOf(b1))
		Expect(ok).To(BeTrue())
		Expect(owner.Name()).To(Equal("two"))
	})

	It("should carry persisted objects across scene loads", func() {
		keeper := st.Spawn("keeper")
		keeper.Persist()
		kid := st.Spawn("kid", WithParent(keeper))
		doomed := st.Spawn("doomed")
		child := st.Spawn("child", WithParent(doomed))

		st.LoadScene("level-2")

		Expect(st.Scene()).To(Equal("level-2"))
		Expect(keeper.Alive()).To(BeTrue())
		Expect(kid.Alive()).To(BeTrue())
		Expect(doomed.Alive()).To(BeFalse())
		Expect(child.Alive()).To(BeFalse())
		Expect(st.Stats().Destroyed).To(Equal(uint64(2)))
	})

	It("should clear the scene of a persisted object", func() {
		keeper := st.Spawn("keeper")
		keeper.Persist()

		Expect(keeper.Persistent()).To(BeTrue())
		Expect(keeper.Scene()).To(BeEmpty())
	})

	It("should fire scene hooks around teardown", func() {
		st.Spawn("temp")
		hook := NewMockHook(mockCtrl)
		st.AcceptHook(hook)

		gomock.InOrder(
			hook.EXPECT().Func(posMatch(HookPosSceneUnload)),
			hook.EXPECT().Func(posMatch(HookPosDoom)),
			hook.EXPECT().Func(posMatch(HookPosDestroy)),
			hook.EXPECT().Func(posMatch(HookPosSceneLoad)),
		)

		st.LoadScene("next")
	})

	It("should record the teardown cause", func() {
		st.Spawn("temp")

		var cause string
		st.AcceptHook(hookFunc(func(ctx HookCtx) {
			if ctx.Pos == HookPosDestroy {
				cause = ctx.Detail.(string)
			}
		}))

		st.LoadScene("next")

		Expect(cause).To(Equal(CauseTeardown))
	})

	It("should fire a step hook carrying the step count", func() {
		hook := NewMockHook(mockCtrl)
		st.AcceptHook(hook)

		hook.EXPECT().Func(gomock.Cond(func(ctx HookCtx) bool {
			return ctx.Pos == HookPosStep && ctx.Detail == uint64(1)
		}))

		st.Step()

		Expect(st.Stats().Steps).To(Equal(uint64(1)))
	})

	It("should stamp hook contexts with the stage time", func() {
		clock.Set(1.5)

		hook := NewMockHook(mockCtrl)
		st.AcceptHook(hook)

		hook.EXPECT().Func(gomock.Cond(func(ctx HookCtx) bool {
			return ctx.Pos == HookPosSpawn && ctx.Now == Uptime(1.5)
		}))

		st.Spawn("timed")
	})

	It("should refuse to persist a parented object", func() {
		p := st.Spawn("parent")
		c := st.Spawn("child", WithParent(p))

		Expect(func() { c.Persist() }).To(Panic())
	})

	It("should refuse to create parenting cycles", func() {
		a := st.Spawn("a")
		b := st.Spawn("b", WithParent(a))

		Expect(func() { a.SetParent(b) }).To(Panic())
	})

	It("should move objects between parents", func() {
		p1 := st.Spawn("p1")
		p2 := st.Spawn("p2")
		c := st.Spawn("c", WithParent(p1))

		c.SetParent(p2)

		Expect(c.Parent()).To(BeIdenticalTo(p2))
		Expect(p1.Children()).To(BeEmpty())
		Expect(p2.Children()).To(ConsistOf(c))

		c.SetParent(nil)

		Expect(c.Parent()).To(BeNil())
		Expect(p2.Children()).To(BeEmpty())
	})

	It("should refuse to attach behaviors to destroyed objects", func() {
		o := st.Spawn("victim")
		st.Destroy(o)

		Expect(func() { o.Attach(&markerBehavior{}) }).To(Panic())
	})
})
