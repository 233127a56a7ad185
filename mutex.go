package kernel

// mutexSlot is one priority-inheriting mutex's state. lock == 1 means free,
// 0 means held. realPriority is the holder's priority before any
// inheritance; inheriting tracks whether it needs restoring on unlock.
type mutexSlot struct {
	used         bool
	lock         int
	holder       *TCB
	realPriority Priority
	inheriting   bool
	waiters      waiterList
	nodes        []waiterNode
}

// MutexPool is the fixed-size pool every Mutex is allocated from.
type MutexPool struct {
	k     *Kernel
	slots []mutexSlot
}

// Mutex is a handle to one priority-inheriting mutex.
type Mutex struct {
	pool *MutexPool
	idx  int
}

func newMutexPool(k *Kernel, n, maxBlocked int) *MutexPool {
	p := &MutexPool{k: k, slots: make([]mutexSlot, n)}
	for i := range p.slots {
		p.slots[i].nodes = make([]waiterNode, maxBlocked)
	}
	k.registerTimeoutHandler(ResourceMutex, p.timeout)
	return p
}

// Create allocates a free mutex from the pool.
func (p *MutexPool) Create() (*Mutex, error) {
	k := p.k
	k.port.DisableIRQ()
	defer k.port.EnableIRQ()
	for i := range p.slots {
		if !p.slots[i].used {
			p.slots[i] = mutexSlot{used: true, lock: 1, nodes: p.slots[i].nodes}
			return &Mutex{pool: p, idx: i}, nil
		}
	}
	return nil, ErrNoObjAvailable
}

// Lock acquires the mutex, blocking up to ticks kernel ticks if it is held
// (0 means don't block). If the caller is of strictly higher priority than
// the current holder's effective priority, the holder inherits the
// caller's priority for the duration of the wait.
func (m *Mutex) Lock(ticks uint32) Status {
	k := m.pool.k
	k.port.DisableIRQ()
	slot := &m.pool.slots[m.idx]
	if slot.lock == 1 {
		slot.lock = 0
		slot.holder = k.currentTCB
		k.port.EnableIRQ()
		return Success
	}
	if ticks == 0 {
		k.port.EnableIRQ()
		return Taken
	}
	self := k.currentTCB
	node := freeWaiterNode(slot.nodes)
	if node == nil {
		k.port.EnableIRQ()
		return PendListFull
	}
	node.tcb = self
	slot.waiters.pushByPriority(node)
	if self.Priority < slot.holder.Priority {
		if !slot.inheriting {
			slot.realPriority = slot.holder.Priority
			slot.inheriting = true
		}
		k.setNewPriorityLocked(slot.holder, self.Priority)
	}
	k.blockCurrent(Resource{Kind: ResourceMutex, Index: m.idx}, ticks, false)
	k.port.EnableIRQ()
	k.port.AwaitTurn(self.StackPointer)

	k.port.DisableIRQ()
	reason := self.WakeReason
	if reason == WakeSleepTimeout {
		k.port.EnableIRQ()
		return Taken
	}
	// Retry once under critical section, per spec.md §4.7: unlock freed the
	// lock and merely woke us, it did not hand the lock to us directly.
	if slot.lock == 1 {
		slot.lock = 0
		slot.holder = self
		k.port.EnableIRQ()
		return Success
	}
	k.port.EnableIRQ()
	return Taken
}

// Unlock releases the mutex. Only the current holder may unlock it;
// anyone else gets AlreadyReleased with no state change. If the holder's
// priority was inherited, it is restored before the highest-priority
// waiter (if any) is woken.
func (m *Mutex) Unlock() Status {
	k := m.pool.k
	k.port.DisableIRQ()
	slot := &m.pool.slots[m.idx]
	self := k.currentTCB
	if slot.holder != self {
		k.port.EnableIRQ()
		return AlreadyReleased
	}
	slot.lock = 1
	if slot.inheriting {
		k.setNewPriorityLocked(slot.holder, slot.realPriority)
		slot.inheriting = false
	}
	slot.holder = nil
	woke := false
	if node := slot.waiters.popFront(); node != nil {
		k.wakeWaiter(node.tcb, WakeMutexReady)
		node.tcb = nil
		woke = true
	}
	k.port.EnableIRQ()
	if woke {
		k.port.AwaitTurn(self.StackPointer)
	}
	return Success
}

// Check reports Success if the mutex is free, Taken if held, without
// modifying any state. An impossible lock value trips the fault hook.
func (m *Mutex) Check() Status {
	k := m.pool.k
	k.port.DisableIRQ()
	defer k.port.EnableIRQ()
	switch m.pool.slots[m.idx].lock {
	case 1:
		return Success
	case 0:
		return Taken
	default:
		k.cfg.faultHook()("kernel: mutex: impossible lock value")
		return InvalidCommand
	}
}

func (p *MutexPool) timeout(k *Kernel, idx int, tcb *TCB) {
	slot := &p.slots[idx]
	wasInheritSource := slot.inheriting && slot.holder != nil && tcb.Priority == slot.holder.Priority
	if n := slot.waiters.removeByTCB(tcb); n != nil {
		n.tcb = nil
	}
	if !wasInheritSource {
		return
	}
	if head := slot.waiters.head; head != nil && head.tcb.Priority < slot.realPriority {
		k.setNewPriorityLocked(slot.holder, head.tcb.Priority)
		return
	}
	k.setNewPriorityLocked(slot.holder, slot.realPriority)
	slot.inheriting = false
}
