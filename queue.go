package kernel

// queueSlot is one bounded ring FIFO's state. The ring dedicates its slot
// at get_ptr as a permanent empty sentinel and starts put_ptr one ahead of
// it, so "empty" is next(get_ptr) == put_ptr and "full" is
// next(put_ptr) == get_ptr (the slot at put_ptr is left unwritten when
// full); usable capacity is therefore len(buf)-2.
type queueSlot struct {
	used           bool
	buf            []interface{}
	getPtr, putPtr int
	waiters        waiterList
	nodes          []waiterNode
}

func (s *queueSlot) next(i int) int { return (i + 1) % len(s.buf) }
func (s *queueSlot) empty() bool    { return s.next(s.getPtr) == s.putPtr }
func (s *queueSlot) full() bool     { return s.next(s.putPtr) == s.getPtr }
func (s *queueSlot) count() int {
	n := s.putPtr - s.getPtr
	if n <= 0 {
		n += len(s.buf)
	}
	return n - 1
}

// QueuePool is the fixed-size pool every Queue is allocated from.
type QueuePool struct {
	k        *Kernel
	slots    []queueSlot
	ringLen  int
	maxBlock int
}

// Queue is a handle to one bounded ring FIFO.
type Queue struct {
	pool *QueuePool
	idx  int
}

func newQueuePool(k *Kernel, n, ringLen, maxBlocked int) *QueuePool {
	p := &QueuePool{k: k, slots: make([]queueSlot, n), ringLen: ringLen, maxBlock: maxBlocked}
	k.registerTimeoutHandler(ResourceQueue, p.timeout)
	return p
}

// Create allocates a queue with the pool's configured ring length (set by
// Config.QueueLength).
func (p *QueuePool) Create() (*Queue, error) {
	k := p.k
	k.port.DisableIRQ()
	defer k.port.EnableIRQ()
	for i := range p.slots {
		if !p.slots[i].used {
			p.slots[i] = queueSlot{
				used:   true,
				buf:    make([]interface{}, p.ringLen),
				getPtr: 0,
				putPtr: 1,
				nodes:  make([]waiterNode, p.maxBlock),
			}
			q := &Queue{pool: p, idx: i}
			return q, nil
		}
	}
	return nil, ErrNoObjAvailable
}

// Put appends msg to the ring, blocking up to ticks kernel ticks if full (0
// means don't block). On success, every task blocked on this queue (in Put
// or Get) is woken to re-examine the ring, per spec.md §4.5's wake-all
// contract.
func (q *Queue) Put(msg interface{}, ticks uint32) Status {
	k := q.pool.k
	for {
		k.port.DisableIRQ()
		slot := &q.pool.slots[q.idx]
		if !slot.full() {
			slot.buf[slot.putPtr] = msg
			slot.putPtr = slot.next(slot.putPtr)
			self := k.currentTCB
			woke := q.wakeAllLocked(slot)
			k.port.EnableIRQ()
			if woke {
				k.port.AwaitTurn(self.StackPointer)
			}
			return Success
		}
		if ticks == 0 {
			k.port.EnableIRQ()
			return Full
		}
		self := k.currentTCB
		node := freeWaiterNode(slot.nodes)
		if node == nil {
			k.port.EnableIRQ()
			return PendListFull
		}
		node.tcb = self
		slot.waiters.pushByPriority(node)
		k.blockCurrent(Resource{Kind: ResourceQueue, Index: q.idx}, ticks, false)
		k.port.EnableIRQ()
		k.port.AwaitTurn(self.StackPointer)

		k.port.DisableIRQ()
		reason := self.WakeReason
		k.port.EnableIRQ()
		if reason == WakeSleepTimeout {
			return Full
		}
	}
}

// Get removes and returns the oldest element, blocking up to ticks kernel
// ticks if empty (0 means don't block).
func (q *Queue) Get(ticks uint32) (interface{}, Status) {
	k := q.pool.k
	for {
		k.port.DisableIRQ()
		slot := &q.pool.slots[q.idx]
		if !slot.empty() {
			slot.getPtr = slot.next(slot.getPtr)
			msg := slot.buf[slot.getPtr]
			slot.buf[slot.getPtr] = nil
			self := k.currentTCB
			woke := q.wakeAllLocked(slot)
			k.port.EnableIRQ()
			if woke {
				k.port.AwaitTurn(self.StackPointer)
			}
			return msg, Success
		}
		if ticks == 0 {
			k.port.EnableIRQ()
			return nil, Empty
		}
		self := k.currentTCB
		node := freeWaiterNode(slot.nodes)
		if node == nil {
			k.port.EnableIRQ()
			return nil, PendListFull
		}
		node.tcb = self
		slot.waiters.pushByPriority(node)
		k.blockCurrent(Resource{Kind: ResourceQueue, Index: q.idx}, ticks, false)
		k.port.EnableIRQ()
		k.port.AwaitTurn(self.StackPointer)

		k.port.DisableIRQ()
		reason := self.WakeReason
		k.port.EnableIRQ()
		if reason == WakeSleepTimeout {
			return nil, Empty
		}
	}
}

// Flush drains the ring and wakes every blocked waiter.
func (q *Queue) Flush() {
	k := q.pool.k
	k.port.DisableIRQ()
	slot := &q.pool.slots[q.idx]
	for i := range slot.buf {
		slot.buf[i] = nil
	}
	slot.getPtr, slot.putPtr = 0, 1
	self := k.currentTCB
	woke := q.wakeAllLocked(slot)
	k.port.EnableIRQ()
	if woke {
		k.port.AwaitTurn(self.StackPointer)
	}
}

// Status reports the queue's current Success (ready)/Full/Empty state.
func (q *Queue) Status() Status {
	k := q.pool.k
	k.port.DisableIRQ()
	defer k.port.EnableIRQ()
	slot := &q.pool.slots[q.idx]
	switch {
	case slot.full():
		return Full
	case slot.empty():
		return Empty
	default:
		return Success
	}
}

// Count returns the number of elements currently in the ring.
func (q *Queue) Count() int {
	k := q.pool.k
	k.port.DisableIRQ()
	defer k.port.EnableIRQ()
	return q.pool.slots[q.idx].count()
}

func (q *Queue) wakeAllLocked(slot *queueSlot) bool {
	k := q.pool.k
	woke := false
	for {
		node := slot.waiters.popFront()
		if node == nil {
			break
		}
		k.wakeWaiter(node.tcb, WakeQueueReady)
		node.tcb = nil
		woke = true
	}
	return woke
}

func (p *QueuePool) timeout(_ *Kernel, idx int, tcb *TCB) {
	slot := &p.slots[idx]
	if n := slot.waiters.removeByTCB(tcb); n != nil {
		n.tcb = nil
	}
}
