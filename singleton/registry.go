package singleton

import (
	"reflect"
	"sort"
	"sync"

	"github.com/sarchlab/torii/stage"
)

// Causes recorded when the registry destroys objects.
const (
	// CauseDuplicate marks a persistent instance that found its slot taken.
	CauseDuplicate = "duplicate singleton"

	// CauseSuperseded marks an older instance displaced by a newer
	// regulator.
	CauseSuperseded = "superseded by newer instance"
)

// Hook positions of a registry. The Item of the HookCtx carries the SlotInfo
// involved.
var (
	// HookPosClaim is triggered when an instance takes an empty slot or
	// displaces the previous holder.
	HookPosClaim = &stage.HookPos{Name: "SingletonClaim"}

	// HookPosRelease is triggered when a slot empties because its holder is
	// destroyed.
	HookPosRelease = &stage.HookPos{Name: "SingletonRelease"}

	// HookPosEvict is triggered when a live holder loses its slot to a new
	// claimer without being destroyed.
	HookPosEvict = &stage.HookPos{Name: "SingletonEvict"}
)

// A SlotInfo describes one occupied slot.
type SlotInfo struct {
	Type        reflect.Type
	Instance    stage.Behavior
	Owner       *stage.Object
	Policy      Policy
	ClaimedAt   stage.Uptime
	AutoCreated bool
}

// A Registry tracks one slot per managed behavior type on a single stage.
//
// The registry hooks into the stage it watches. When a managed behavior
// activates, the registry applies its policy. When the owning object is
// destroyed, the slot empties at the moment the object is doomed, so a slot
// never hands out an instance that is scheduled for destruction.
//
// Instances are told apart by their owning objects. Zero-size behaviors can
// share one address, so the interface values of two distinct instances may
// compare equal.
//
// A registry is hookable. Hooks observe claims, releases, and evictions.
//
// Lookups are safe from any goroutine. Get creates objects and must run on
// the stage's update goroutine, like every other stage mutation.
type Registry struct {
	stage.HookableBase

	st *stage.Stage

	mu     sync.RWMutex
	slots  map[reflect.Type]*slot
	births map[birthKey]birth
}

type slot struct {
	instance    stage.Behavior
	owner       *stage.Object
	policy      Policy
	claimedAt   stage.Uptime
	autoCreated bool
}

// birthKey identifies one attachment. Keying by the owning object keeps two
// attachments of equal instances apart.
type birthKey struct {
	owner *stage.Object
	typ   reflect.Type
}

type birth struct {
	instance stage.Behavior
	at       stage.Uptime
}

// NewRegistry creates a registry and hooks it into st.
func NewRegistry(st *stage.Stage) *Registry {
	r := &Registry{
		st:     st,
		slots:  make(map[reflect.Type]*slot),
		births: make(map[birthKey]birth),
	}

	st.AcceptHook(r)

	return r
}

// Stage returns the stage the registry watches.
func (r *Registry) Stage() *stage.Stage {
	return r.st
}

// Snapshot returns the occupied slots, sorted by type name.
func (r *Registry) Snapshot() []SlotInfo {
	r.mu.RLock()
	infos := make([]SlotInfo, 0, len(r.slots))
	for t, s := range r.slots {
		infos = append(infos, slotInfoOf(t, s))
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Type.String() < infos[j].Type.String()
	})

	return infos
}

// Func reacts to stage lifecycle events. It is invoked by the stage and is
// not meant to be called directly.
func (r *Registry) Func(ctx stage.HookCtx) {
	switch ctx.Pos {
	case stage.HookPosActivate:
		r.onActivate(
			ctx.Item.(*stage.Object),
			ctx.Detail.(stage.Behavior),
			ctx.Now,
		)
	case stage.HookPosDoom:
		r.onDoom(ctx.Item.(*stage.Object), ctx.Now)
	}
}

func (r *Registry) onActivate(
	o *stage.Object,
	b stage.Behavior,
	now stage.Uptime,
) {
	policy, managed := policyOf(b)
	if !managed {
		return
	}

	r.recordBirth(o, b, now)

	switch policy {
	case PolicyBasic:
		r.claim(o, b, PolicyBasic, now)
	case PolicyPersistent:
		r.applyPersistent(o, b, now)
	case PolicyRegulator:
		r.applyRegulator(o, b, now)
	}
}

// adopt claims the slot for an attached instance that never activated under
// this registry, applying its policy the way an activation would.
func (r *Registry) adopt(o *stage.Object, b stage.Behavior) {
	policy, managed := policyOf(b)
	if managed {
		r.onActivate(o, b, r.st.Now())
		return
	}

	now := r.st.Now()
	r.recordBirth(o, b, now)
	r.claim(o, b, policy, now)
}

// applyPersistent keeps the first instance. The survivor is detached and
// persisted, a later duplicate destroys itself and never runs its OnActivate
// logic.
func (r *Registry) applyPersistent(
	o *stage.Object,
	b stage.Behavior,
	now stage.Uptime,
) {
	t := reflect.TypeOf(b)

	r.mu.RLock()
	cur := r.slots[t]
	r.mu.RUnlock()

	if cur != nil && cur.owner != o {
		r.st.DestroyWithCause(o, CauseDuplicate)
		return
	}

	r.persistOwner(o)
	r.claim(o, b, PolicyPersistent, now)
}

// applyRegulator keeps the newest instance. Every sibling of the same type
// with a strictly older activation time is destroyed, then the claimer takes
// the slot, displacing an equal-time holder if there is one.
func (r *Registry) applyRegulator(
	o *stage.Object,
	b stage.Behavior,
	now stage.Uptime,
) {
	t := reflect.TypeOf(b)

	r.persistOwner(o)

	var victims []*stage.Object
	r.mu.RLock()
	for k, bi := range r.births {
		if k.typ != t || k.owner == o {
			continue
		}

		if bi.at < now {
			victims = append(victims, k.owner)
		}
	}
	r.mu.RUnlock()

	for _, v := range victims {
		r.st.DestroyWithCause(v, CauseSuperseded)
	}

	r.claim(o, b, PolicyRegulator, now)
}

func (r *Registry) persistOwner(o *stage.Object) {
	if o.Parent() != nil {
		o.SetParent(nil)
	}

	o.Persist()
}

// claim installs b as the holder of its type's slot, displacing any current
// holder without destroying it. Claiming an already held slot from the same
// owner has no effect.
func (r *Registry) claim(
	o *stage.Object,
	b stage.Behavior,
	p Policy,
	now stage.Uptime,
) {
	t := reflect.TypeOf(b)

	r.mu.Lock()
	old := r.slots[t]
	if old != nil && old.owner == o {
		r.mu.Unlock()
		return
	}

	s := &slot{instance: b, owner: o, policy: p, claimedAt: now}
	r.slots[t] = s
	r.mu.Unlock()

	if old != nil {
		r.InvokeHook(stage.HookCtx{
			Domain: r,
			Now:    now,
			Pos:    HookPosEvict,
			Item:   slotInfoOf(t, old),
		})
	}

	r.InvokeHook(stage.HookCtx{
		Domain: r,
		Now:    now,
		Pos:    HookPosClaim,
		Item:   slotInfoOf(t, s),
	})
}

// onDoom clears every slot held by the doomed object and forgets the
// activation times of its behaviors. Slots held by other objects are left
// alone, whatever instances they point at.
func (r *Registry) onDoom(o *stage.Object, now stage.Uptime) {
	behaviors := o.Behaviors()

	var released []SlotInfo
	r.mu.Lock()
	for _, b := range behaviors {
		t := reflect.TypeOf(b)
		delete(r.births, birthKey{owner: o, typ: t})

		if s, ok := r.slots[t]; ok && s.owner == o {
			released = append(released, slotInfoOf(t, s))
			delete(r.slots, t)
		}
	}
	r.mu.Unlock()

	for _, info := range released {
		r.InvokeHook(stage.HookCtx{
			Domain: r,
			Now:    now,
			Pos:    HookPosRelease,
			Item:   info,
		})
	}
}

// ActivatedAt returns the stage time at which b's managed activation ran.
// For regulator instances this is the timestamp the scan compares. When the
// same instance value backs several live attachments, the most recent
// activation wins. The second return is false if b never activated under
// this registry or its owner has been destroyed.
func (r *Registry) ActivatedAt(b stage.Behavior) (stage.Uptime, bool) {
	t := reflect.TypeOf(b)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var at stage.Uptime
	found := false
	for k, bi := range r.births {
		if k.typ != t || bi.instance != b {
			continue
		}

		if !found || bi.at > at {
			at = bi.at
			found = true
		}
	}

	return at, found
}

func (r *Registry) lookup(t reflect.Type) (stage.Behavior, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.slots[t]
	if !ok {
		return nil, false
	}

	return s.instance, true
}

func (r *Registry) ownerOf(t reflect.Type) (*stage.Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.slots[t]
	if !ok {
		return nil, false
	}

	return s.owner, true
}

func (r *Registry) recordBirth(
	o *stage.Object,
	b stage.Behavior,
	at stage.Uptime,
) {
	r.mu.Lock()
	r.births[birthKey{owner: o, typ: reflect.TypeOf(b)}] =
		birth{instance: b, at: at}
	r.mu.Unlock()
}

func (r *Registry) noteAutoCreated(o *stage.Object, t reflect.Type) {
	r.mu.Lock()
	if s, ok := r.slots[t]; ok && s.owner == o {
		s.autoCreated = true
	}
	r.mu.Unlock()
}

func slotInfoOf(t reflect.Type, s *slot) SlotInfo {
	return SlotInfo{
		Type:        t,
		Instance:    s.instance,
		Owner:       s.owner,
		Policy:      s.policy,
		ClaimedAt:   s.claimedAt,
		AutoCreated: s.autoCreated,
	}
}
