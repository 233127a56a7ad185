package kernel

// MatchMode selects how Flags.Pend's event_mask is compared against the
// group's current bits.
type MatchMode int

const (
	// MatchAny is satisfied when any bit of (event_mask & flags) is set.
	MatchAny MatchMode = iota
	// MatchExact is satisfied only when every bit of event_mask is set.
	MatchExact
)

// FlagsOp selects Flags.Post's effect on the group's bits.
type FlagsOp int

const (
	FlagsSet FlagsOp = iota
	FlagsClear
)

type flagsWaiter struct {
	tcb  *TCB
	mask uint8
	mode MatchMode
}

// flagsSlot is one 8-bit event-flags group's state.
type flagsSlot struct {
	used    bool
	bits    uint8
	waiters []flagsWaiter
}

func flagsSatisfied(bits, mask uint8, mode MatchMode) bool {
	switch mode {
	case MatchAny:
		return bits&mask != 0
	case MatchExact:
		return bits&mask == mask
	default:
		return false
	}
}

// FlagsPool is the fixed-size pool every Flags group is allocated from.
type FlagsPool struct {
	k        *Kernel
	slots    []flagsSlot
	maxBlock int
}

// Flags is a handle to one 8-bit event-flags group.
type Flags struct {
	pool *FlagsPool
	idx  int
}

func newFlagsPool(k *Kernel, n, maxBlocked int) *FlagsPool {
	p := &FlagsPool{k: k, slots: make([]flagsSlot, n), maxBlock: maxBlocked}
	k.registerTimeoutHandler(ResourceFlags, p.timeout)
	return p
}

// Create allocates a flags group initialized to initial.
func (p *FlagsPool) Create(initial uint8) (*Flags, error) {
	k := p.k
	k.port.DisableIRQ()
	defer k.port.EnableIRQ()
	for i := range p.slots {
		if !p.slots[i].used {
			p.slots[i] = flagsSlot{used: true, bits: initial, waiters: make([]flagsWaiter, p.maxBlock)}
			return &Flags{pool: p, idx: i}, nil
		}
	}
	return nil, ErrNoObjAvailable
}

// Post applies op (SET ORs mask in, CLEAR ANDs its complement) and wakes
// every waiter whose predicate is now satisfied; each such waiter's wake
// reason becomes the post-update flags snapshot, per spec.md §4.6.
func (f *Flags) Post(mask uint8, op FlagsOp) Status {
	k := f.pool.k
	k.port.DisableIRQ()
	slot := &f.pool.slots[f.idx]
	switch op {
	case FlagsSet:
		slot.bits |= mask
	case FlagsClear:
		slot.bits &^= mask
	default:
		k.port.EnableIRQ()
		return InvalidCommand
	}
	self := k.currentTCB
	woke := false
	for i := range slot.waiters {
		w := &slot.waiters[i]
		if w.tcb == nil || !flagsSatisfied(slot.bits, w.mask, w.mode) {
			continue
		}
		k.wakeWaiter(w.tcb, FlagsEventWakeReason(slot.bits))
		w.tcb = nil
		woke = true
	}
	k.port.EnableIRQ()
	if woke {
		k.port.AwaitTurn(self.StackPointer)
	}
	return Success
}

// Pend blocks the caller until mode's predicate over event_mask is
// satisfied, for up to block_ticks kernel ticks; block_ticks == 0 suspends
// indefinitely. Returns the observed flags snapshot on success.
func (f *Flags) Pend(eventMask uint8, blockTicks uint32, mode MatchMode) (uint8, Status) {
	if mode != MatchAny && mode != MatchExact {
		return 0, InvalidCommand
	}
	k := f.pool.k
	k.port.DisableIRQ()
	slot := &f.pool.slots[f.idx]
	if flagsSatisfied(slot.bits, eventMask, mode) {
		observed := slot.bits
		k.port.EnableIRQ()
		return observed, Success
	}
	idx := -1
	for i := range slot.waiters {
		if slot.waiters[i].tcb == nil {
			idx = i
			break
		}
	}
	if idx < 0 {
		k.port.EnableIRQ()
		return 0, PendListFull
	}
	slot.waiters[idx] = flagsWaiter{tcb: k.currentTCB, mask: eventMask, mode: mode}
	self := k.blockCurrent(Resource{Kind: ResourceFlags, Index: f.idx}, blockTicks, blockTicks == 0)
	k.port.EnableIRQ()
	k.port.AwaitTurn(self.StackPointer)

	k.port.DisableIRQ()
	reason := self.WakeReason
	k.port.EnableIRQ()
	if observed, ok := IsFlagsSnapshot(reason); ok {
		return observed, Success
	}
	return 0, Empty
}

// ClearAll zeroes the group's bits without waking anyone.
func (f *Flags) ClearAll() {
	k := f.pool.k
	k.port.DisableIRQ()
	f.pool.slots[f.idx].bits = 0
	k.port.EnableIRQ()
}

// Check returns the group's current bits.
func (f *Flags) Check() uint8 {
	k := f.pool.k
	k.port.DisableIRQ()
	defer k.port.EnableIRQ()
	return f.pool.slots[f.idx].bits
}

// Reset zeroes the group's bits and wakes every waiter with reason
// FLAGS_CLEARED, regardless of what each was waiting for.
func (f *Flags) Reset() {
	k := f.pool.k
	k.port.DisableIRQ()
	slot := &f.pool.slots[f.idx]
	slot.bits = 0
	self := k.currentTCB
	woke := false
	for i := range slot.waiters {
		w := &slot.waiters[i]
		if w.tcb == nil {
			continue
		}
		k.wakeWaiter(w.tcb, WakeFlagsCleared)
		w.tcb = nil
		woke = true
	}
	k.port.EnableIRQ()
	if woke {
		k.port.AwaitTurn(self.StackPointer)
	}
}

func (p *FlagsPool) timeout(_ *Kernel, idx int, tcb *TCB) {
	slot := &p.slots[idx]
	for i := range slot.waiters {
		if slot.waiters[i].tcb == tcb {
			slot.waiters[i].tcb = nil
			return
		}
	}
}
