package kernel

// semaphoreSlot is one counting semaphore's state. used is false for
// unallocated pool entries. A counting semaphore has no configured ceiling
// — post always increments.
type semaphoreSlot struct {
	used    bool
	count   uint32
	waiters waiterList
	nodes   []waiterNode
}

// SemaphorePool is the fixed-size pool every Semaphore is allocated from.
// Its size is set once, from Config.MaxSemaphores, at Kernel construction.
type SemaphorePool struct {
	k     *Kernel
	slots []semaphoreSlot
}

// Semaphore is a handle to one counting semaphore.
type Semaphore struct {
	pool *SemaphorePool
	idx  int
}

func newSemaphorePool(k *Kernel, n, maxBlocked int) *SemaphorePool {
	p := &SemaphorePool{k: k, slots: make([]semaphoreSlot, n)}
	for i := range p.slots {
		p.slots[i].nodes = make([]waiterNode, maxBlocked)
	}
	k.registerTimeoutHandler(ResourceSema, p.timeout)
	return p
}

// Create allocates a semaphore with the given initial count from the pool.
// It fails with ErrNoObjAvailable once the pool is exhausted.
func (p *SemaphorePool) Create(initial uint32) (*Semaphore, error) {
	k := p.k
	k.port.DisableIRQ()
	defer k.port.EnableIRQ()
	for i := range p.slots {
		if !p.slots[i].used {
			p.slots[i] = semaphoreSlot{used: true, count: initial, nodes: p.slots[i].nodes}
			return &Semaphore{pool: p, idx: i}, nil
		}
	}
	return nil, ErrNoObjAvailable
}

// Take acquires one unit, blocking up to ticks kernel ticks if none is
// available (0 means don't block). On resumption from a block it retries
// the count check exactly once, under critical section — a wake only means
// somebody posted, not that this task is guaranteed the unit; it may lose
// the race to a higher-priority waiter that retries first. Returns Taken if
// the wait times out or is lost.
func (s *Semaphore) Take(ticks uint32) Status {
	k := s.pool.k
	k.port.DisableIRQ()
	slot := &s.pool.slots[s.idx]
	if slot.count > 0 {
		slot.count--
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
	k.blockCurrent(Resource{Kind: ResourceSema, Index: s.idx}, ticks, false)
	k.port.EnableIRQ()
	k.port.AwaitTurn(self.StackPointer)

	k.port.DisableIRQ()
	defer k.port.EnableIRQ()
	if slot.count > 0 {
		slot.count--
		return Success
	}
	return Taken
}

// Give increments the semaphore's count, then, if a task is blocked in
// Take, wakes the highest-priority waiter. The wake is a signal to retry,
// not a direct transfer of the unit: only the unblocked task is guaranteed
// to observe the increment, and it may still lose the retry to a
// higher-priority waiter that runs first.
func (s *Semaphore) Give() Status {
	k := s.pool.k
	k.port.DisableIRQ()
	slot := &s.pool.slots[s.idx]
	slot.count++
	if node := slot.waiters.popFront(); node != nil {
		self := k.currentTCB
		k.wakeWaiter(node.tcb, WakeSemaReady)
		node.tcb = nil
		k.port.EnableIRQ()
		k.port.AwaitTurn(self.StackPointer)
		return Success
	}
	k.port.EnableIRQ()
	return Success
}

// Count returns the semaphore's current count.
func (s *Semaphore) Count() uint32 {
	k := s.pool.k
	k.port.DisableIRQ()
	defer k.port.EnableIRQ()
	return s.pool.slots[s.idx].count
}

func (p *SemaphorePool) timeout(_ *Kernel, idx int, tcb *TCB) {
	slot := &p.slots[idx]
	if n := slot.waiters.removeByTCB(tcb); n != nil {
		n.tcb = nil
	}
}
