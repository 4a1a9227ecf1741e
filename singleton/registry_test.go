package singleton

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/torii/stage"
)

type hookFunc func(ctx stage.HookCtx)

func (f hookFunc) Func(ctx stage.HookCtx) {
	f(ctx)
}

type basicCounter struct {
	Base
	activations int
}

func (c *basicCounter) OnActivate(*stage.Object) {
	c.activations++
}

type persistentAudio struct {
	Base
	activations int
}

func (a *persistentAudio) SingletonPolicy() Policy {
	return PolicyPersistent
}

func (a *persistentAudio) OnActivate(*stage.Object) {
	a.activations++
}

type regulatedLogger struct {
	Base
	activations int
}

func (l *regulatedLogger) SingletonPolicy() Policy {
	return PolicyRegulator
}

func (l *regulatedLogger) OnActivate(*stage.Object) {
	l.activations++
}

type muteToggle struct {
	Base
}

func (*muteToggle) SingletonPolicy() Policy {
	return PolicyRegulator
}

type splashScreen struct {
	Base
}

func (*splashScreen) SingletonPolicy() Policy {
	return PolicyPersistent
}

type plainMarker struct {
	stage.BehaviorBase
}

type valueBehavior struct {
	stage.BehaviorBase
}

var _ = Describe("Registry", func() {
	var (
		clock *stage.ManualClock
		st    *stage.Stage
		reg   *Registry
	)

	BeforeEach(func() {
		clock = stage.NewManualClock()
		st = stage.NewStage(stage.WithClock(clock))
		reg = NewRegistry(st)
	})

	Context("with the basic policy", func() {
		It("should claim the slot on activation", func() {
			st.Play()

			c := &basicCounter{}
			o := st.Spawn("counter", stage.WithBehaviors(c))

			Expect(Has[*basicCounter](reg)).To(BeTrue())
			Expect(Current[*basicCounter](reg)).To(BeIdenticalTo(c))
			Expect(c.activations).To(Equal(1))
			Expect(o.Persistent()).To(BeFalse())
		})

		It("should let a later instance displace an earlier one", func() {
			st.Play()

			first := &basicCounter{}
			o1 := st.Spawn("first", stage.WithBehaviors(first))
			second := &basicCounter{}
			st.Spawn("second", stage.WithBehaviors(second))

			Expect(Current[*basicCounter](reg)).To(BeIdenticalTo(second))
			Expect(o1.Alive()).To(BeTrue())
			Expect(first.activations).To(Equal(1))
		})

		It("should not claim before play", func() {
			st.Spawn("counter", stage.WithBehaviors(&basicCounter{}))

			Expect(Has[*basicCounter](reg)).To(BeFalse())
		})

		It("should claim in spawn order when play starts", func() {
			first := &basicCounter{}
			st.Spawn("first", stage.WithBehaviors(first))
			second := &basicCounter{}
			st.Spawn("second", stage.WithBehaviors(second))

			st.Play()

			Expect(Current[*basicCounter](reg)).To(BeIdenticalTo(second))
		})
	})

	Context("with the persistent policy", func() {
		It("should detach and persist the first instance", func() {
			st.Play()

			root := st.Spawn("root")
			a := &persistentAudio{}
			oa := st.Spawn("audio",
				stage.WithParent(root), stage.WithBehaviors(a))

			Expect(Current[*persistentAudio](reg)).To(BeIdenticalTo(a))
			Expect(oa.Parent()).To(BeNil())
			Expect(oa.Persistent()).To(BeTrue())
			Expect(oa.Scene()).To(BeEmpty())
		})

		It("should self-destruct a duplicate without running it", func() {
			st.Play()

			var causes []string
			st.AcceptHook(hookFunc(func(ctx stage.HookCtx) {
				if ctx.Pos == stage.HookPosDoom {
					causes = append(causes, ctx.Detail.(string))
				}
			}))

			first := &persistentAudio{}
			st.Spawn("audio-1", stage.WithBehaviors(first))
			second := &persistentAudio{}
			o2 := st.Spawn("audio-2", stage.WithBehaviors(second))

			Expect(Current[*persistentAudio](reg)).To(BeIdenticalTo(first))
			Expect(o2.Alive()).To(BeFalse())
			Expect(second.activations).To(Equal(0))
			Expect(first.activations).To(Equal(1))
			Expect(causes).To(ConsistOf(CauseDuplicate))
		})

		It("should keep the survivor and its slot across scene loads", func() {
			st.Play()

			a := &persistentAudio{}
			oa := st.Spawn("audio", stage.WithBehaviors(a))

			st.LoadScene("level-2")

			Expect(oa.Alive()).To(BeTrue())
			Expect(Current[*persistentAudio](reg)).To(BeIdenticalTo(a))
			Expect(a.activations).To(Equal(1))
		})
	})

	Context("with the regulator policy", func() {
		It("should hand the slot to the newest instance", func() {
			st.Play()

			clock.Set(1.0)
			a := &regulatedLogger{}
			oa := st.Spawn("logger-a", stage.WithBehaviors(a))

			Expect(Current[*regulatedLogger](reg)).To(BeIdenticalTo(a))

			clock.Set(2.0)
			b := &regulatedLogger{}
			ob := st.Spawn("logger-b", stage.WithBehaviors(b))

			Expect(Current[*regulatedLogger](reg)).To(BeIdenticalTo(b))
			Expect(oa.Alive()).To(BeFalse())
			Expect(ob.Persistent()).To(BeTrue())

			st.Step()

			Expect(st.Stats().Destroyed).To(Equal(uint64(1)))
		})

		It("should stamp the winner with its activation time", func() {
			st.Play()

			clock.Set(1.0)
			a := &regulatedLogger{}
			st.Spawn("logger-a", stage.WithBehaviors(a))

			clock.Set(2.0)
			b := &regulatedLogger{}
			st.Spawn("logger-b", stage.WithBehaviors(b))

			at, ok := reg.ActivatedAt(b)
			Expect(ok).To(BeTrue())
			Expect(at).To(Equal(stage.Uptime(2.0)))

			_, ok = reg.ActivatedAt(a)
			Expect(ok).To(BeFalse())

			entries := reg.Snapshot()
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].ClaimedAt).To(Equal(stage.Uptime(2.0)))
		})

		It("should destroy older siblings with the superseded cause", func() {
			st.Play()

			var causes []string
			st.AcceptHook(hookFunc(func(ctx stage.HookCtx) {
				if ctx.Pos == stage.HookPosDoom {
					causes = append(causes, ctx.Detail.(string))
				}
			}))

			clock.Set(1.0)
			st.Spawn("logger-a", stage.WithBehaviors(&regulatedLogger{}))
			clock.Set(2.0)
			st.Spawn("logger-b", stage.WithBehaviors(&regulatedLogger{}))

			Expect(causes).To(ConsistOf(CauseSuperseded))
		})

		It("should favor the later activation on equal timestamps", func() {
			a := &regulatedLogger{}
			oa := st.Spawn("logger-a", stage.WithBehaviors(a))
			b := &regulatedLogger{}
			st.Spawn("logger-b", stage.WithBehaviors(b))

			st.Play()

			Expect(Current[*regulatedLogger](reg)).To(BeIdenticalTo(b))
			Expect(oa.Alive()).To(BeTrue())
		})

		It("should survive scene loads through persistence", func() {
			st.Play()

			l := &regulatedLogger{}
			ol := st.Spawn("logger", stage.WithBehaviors(l))

			st.LoadScene("level-2")

			Expect(ol.Alive()).To(BeTrue())
			Expect(Current[*regulatedLogger](reg)).To(BeIdenticalTo(l))
		})
	})

	Context("with field-less instances", func() {
		It("should supersede instances that share an address", func() {
			st.Play()

			clock.Set(1.0)
			oa := st.Spawn("toggle-a", stage.WithBehaviors(&muteToggle{}))
			clock.Set(2.0)
			ob := st.Spawn("toggle-b", stage.WithBehaviors(&muteToggle{}))

			Expect(oa.Alive()).To(BeFalse())
			Expect(ob.Alive()).To(BeTrue())

			infos := reg.Snapshot()
			Expect(infos).To(HaveLen(1))
			Expect(infos[0].Owner).To(BeIdenticalTo(ob))
			Expect(infos[0].ClaimedAt).To(Equal(stage.Uptime(2.0)))
		})

		It("should self-destruct a duplicate that shares an address", func() {
			st.Play()

			o1 := st.Spawn("splash-1", stage.WithBehaviors(&splashScreen{}))
			o2 := st.Spawn("splash-2", stage.WithBehaviors(&splashScreen{}))

			Expect(o1.Alive()).To(BeTrue())
			Expect(o2.Alive()).To(BeFalse())

			infos := reg.Snapshot()
			Expect(infos).To(HaveLen(1))
			Expect(infos[0].Owner).To(BeIdenticalTo(o1))
		})
	})

	Context("when the holder is destroyed", func() {
		It("should empty the slot as soon as the holder is doomed", func() {
			st.Play()

			c := &basicCounter{}
			o := st.Spawn("counter", stage.WithBehaviors(c))

			st.Destroy(o)

			Expect(Has[*basicCounter](reg)).To(BeFalse())
			Expect(Current[*basicCounter](reg)).To(BeNil())
		})

		It("should fire a release hook", func() {
			st.Play()

			c := &basicCounter{}
			o := st.Spawn("counter", stage.WithBehaviors(c))

			var released []SlotInfo
			reg.AcceptHook(hookFunc(func(ctx stage.HookCtx) {
				if ctx.Pos == HookPosRelease {
					released = append(released, ctx.Item.(SlotInfo))
				}
			}))

			st.Destroy(o)

			Expect(released).To(HaveLen(1))
			Expect(released[0].Instance).To(BeIdenticalTo(c))
		})

		It("should leave the slot alone when a displaced instance dies",
			func() {
				st.Play()

				first := &basicCounter{}
				o1 := st.Spawn("first", stage.WithBehaviors(first))
				second := &basicCounter{}
				st.Spawn("second", stage.WithBehaviors(second))

				var released []SlotInfo
				reg.AcceptHook(hookFunc(func(ctx stage.HookCtx) {
					if ctx.Pos == HookPosRelease {
						released = append(released, ctx.Item.(SlotInfo))
					}
				}))

				st.Destroy(o1)

				Expect(o1.Alive()).To(BeFalse())
				Expect(Current[*basicCounter](reg)).
					To(BeIdenticalTo(second))
				Expect(released).To(BeEmpty())
			})

		It("should release the slot of a non-persistent holder on "+
			"scene loads", func() {
			st.Play()

			st.Spawn("counter", stage.WithBehaviors(&basicCounter{}))

			st.LoadScene("level-2")

			Expect(Has[*basicCounter](reg)).To(BeFalse())
		})
	})

	Describe("accessors", func() {
		It("should not create through lookups", func() {
			Expect(Has[*basicCounter](reg)).To(BeFalse())
			Expect(Current[*basicCounter](reg)).To(BeNil())

			_, ok := TryGet[*basicCounter](reg)
			Expect(ok).To(BeFalse())

			Expect(st.Stats().Spawned).To(Equal(uint64(0)))
		})

		It("should create a hidden host through Get", func() {
			c := Get[*basicCounter](reg)

			Expect(c).NotTo(BeNil())
			Expect(Has[*basicCounter](reg)).To(BeTrue())
			Expect(st.Objects()).To(BeEmpty())

			hidden := st.HiddenObjects()
			Expect(hidden).To(HaveLen(1))
			Expect(hidden[0].Name()).To(Equal("(singleton) basicCounter"))
			Expect(hidden[0].Flags().Has(stage.HiddenAndDontRecord)).
				To(BeTrue())
			Expect(c.activations).To(Equal(0))
		})

		It("should adopt an authored live instance before creating",
			func() {
				c := &basicCounter{}
				o := st.Spawn("counter", stage.WithBehaviors(c))

				got := Get[*basicCounter](reg)

				Expect(got).To(BeIdenticalTo(c))
				Expect(Current[*basicCounter](reg)).To(BeIdenticalTo(c))
				Expect(st.HiddenObjects()).To(BeEmpty())
				Expect(st.Stats().Spawned).To(Equal(uint64(1)))

				infos := reg.Snapshot()
				Expect(infos).To(HaveLen(1))
				Expect(infos[0].Owner).To(BeIdenticalTo(o))
				Expect(infos[0].AutoCreated).To(BeFalse())
			})

		It("should apply the policy of an adopted instance", func() {
			a := &persistentAudio{}
			oa := st.Spawn("audio", stage.WithBehaviors(a))

			got := Get[*persistentAudio](reg)

			Expect(got).To(BeIdenticalTo(a))
			Expect(oa.Persistent()).To(BeTrue())
			Expect(a.activations).To(Equal(0))
		})

		It("should activate the created instance when playing", func() {
			st.Play()

			c := Get[*basicCounter](reg)

			Expect(c.activations).To(Equal(1))
		})

		It("should reuse the live instance on later calls", func() {
			first := Get[*basicCounter](reg)
			second := Get[*basicCounter](reg)

			Expect(second).To(BeIdenticalTo(first))
			Expect(st.HiddenObjects()).To(HaveLen(1))
		})

		It("should recreate after the created instance dies", func() {
			first := Get[*basicCounter](reg)

			st.LoadScene("next")

			Expect(Has[*basicCounter](reg)).To(BeFalse())

			second := Get[*basicCounter](reg)
			Expect(second).NotTo(BeIdenticalTo(first))
		})

		It("should back off when a hook claims the slot mid-creation",
			func() {
				st.Play()

				var fired bool
				var rival *persistentAudio
				st.AcceptHook(hookFunc(func(ctx stage.HookCtx) {
					if ctx.Pos != stage.HookPosSpawn || fired {
						return
					}
					fired = true

					rival = &persistentAudio{}
					st.Spawn("rival", stage.WithBehaviors(rival))
				}))

				got := Get[*persistentAudio](reg)

				Expect(got).To(BeIdenticalTo(rival))
				Expect(Current[*persistentAudio](reg)).
					To(BeIdenticalTo(rival))
			})

		It("should resolve re-entrant creation to a single instance",
			func() {
				var fired bool
				var nested *basicCounter
				st.AcceptHook(hookFunc(func(ctx stage.HookCtx) {
					if ctx.Pos != stage.HookPosSpawn || fired {
						return
					}
					fired = true

					nested = Get[*basicCounter](reg)
				}))

				got := Get[*basicCounter](reg)

				Expect(got).To(BeIdenticalTo(nested))
				Expect(reg.Snapshot()).To(HaveLen(1))
				Expect(st.HiddenObjects()).To(HaveLen(1))
			})

		It("should refuse to create non-pointer singletons", func() {
			Expect(func() { Get[valueBehavior](reg) }).To(Panic())
		})
	})

	Describe("registry hooks", func() {
		It("should fire evict and claim hooks on displacement", func() {
			st.Play()

			first := &basicCounter{}
			st.Spawn("first", stage.WithBehaviors(first))

			var events []string
			reg.AcceptHook(hookFunc(func(ctx stage.HookCtx) {
				e := ctx.Item.(SlotInfo)
				if e.Instance == stage.Behavior(first) {
					events = append(events, ctx.Pos.Name+" first")
				} else {
					events = append(events, ctx.Pos.Name+" second")
				}
			}))

			st.Spawn("second", stage.WithBehaviors(&basicCounter{}))

			Expect(events).To(Equal([]string{
				"SingletonEvict first",
				"SingletonClaim second",
			}))
		})
	})

	It("should ignore behaviors without a policy", func() {
		st.Play()

		st.Spawn("plain", stage.WithBehaviors(&plainMarker{}))

		Expect(reg.Snapshot()).To(BeEmpty())
	})

	It("should expose occupied slots in the snapshot", func() {
		st.Play()

		c := &basicCounter{}
		o := st.Spawn("counter", stage.WithBehaviors(c))

		entries := reg.Snapshot()
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Instance).To(BeIdenticalTo(c))
		Expect(entries[0].Owner).To(BeIdenticalTo(o))
		Expect(entries[0].Policy).To(Equal(PolicyBasic))
		Expect(entries[0].AutoCreated).To(BeFalse())
	})

	It("should mark created instances in the snapshot", func() {
		Get[*basicCounter](reg)

		entries := reg.Snapshot()
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].AutoCreated).To(BeTrue())
	})
})
