package kernel

// mailboxSlot is one single-slot mailbox's state. A mailbox is explicitly
// single-producer/single-consumer, so "full" and "empty" are exclusive
// conditions and at most one side (producer waiting on Send, consumer
// waiting on Receive) is ever blocked at a time — one waiter field is
// enough, no list or node pool needed.
//
// spec.md §4.4 guards the original's mail/blocked_task_id pair with its own
// binary semaphore, needed there because a primitive can block while a
// narrower lock than the scheduler's is held. Every husk primitive instead
// runs its whole operation under the kernel's own critical section, so that
// guarding semaphore has no separate job to do here; see DESIGN.md.
type mailboxSlot struct {
	used   bool
	full   bool
	msg    interface{}
	waiter *TCB
}

// MailboxPool is the fixed-size pool every Mailbox is allocated from.
type MailboxPool struct {
	k     *Kernel
	slots []mailboxSlot
}

// Mailbox is a handle to one single-slot mailbox.
type Mailbox struct {
	pool *MailboxPool
	idx  int
}

func newMailboxPool(k *Kernel, n int) *MailboxPool {
	p := &MailboxPool{k: k, slots: make([]mailboxSlot, n)}
	k.registerTimeoutHandler(ResourceMbox, p.timeout)
	return p
}

// Create allocates an empty mailbox from the pool.
func (p *MailboxPool) Create() (*Mailbox, error) {
	k := p.k
	k.port.DisableIRQ()
	defer k.port.EnableIRQ()
	for i := range p.slots {
		if !p.slots[i].used {
			p.slots[i] = mailboxSlot{used: true}
			return &Mailbox{pool: p, idx: i}, nil
		}
	}
	return nil, ErrNoObjAvailable
}

// Send deposits msg into the mailbox, blocking up to ticks kernel ticks if
// it is already occupied (0 means don't block). On success, a consumer
// blocked in Receive is woken to retrieve it.
func (m *Mailbox) Send(msg interface{}, ticks uint32) Status {
	k := m.pool.k
	for {
		k.port.DisableIRQ()
		slot := &m.pool.slots[m.idx]
		if !slot.full {
			slot.msg = msg
			slot.full = true
			self := k.currentTCB
			woke := false
			if slot.waiter != nil {
				k.wakeWaiter(slot.waiter, WakeMboxReady)
				slot.waiter = nil
				woke = true
			}
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
		if slot.waiter != nil {
			k.port.EnableIRQ()
			return InUse
		}
		self := k.currentTCB
		slot.waiter = self
		k.blockCurrent(Resource{Kind: ResourceMbox, Index: m.idx}, ticks, false)
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

// Receive retrieves the mailbox's message, blocking up to ticks kernel
// ticks if it is empty (0 means don't block). On success, a producer
// blocked in Send is woken to deposit its pending message.
func (m *Mailbox) Receive(ticks uint32) (interface{}, Status) {
	k := m.pool.k
	for {
		k.port.DisableIRQ()
		slot := &m.pool.slots[m.idx]
		if slot.full {
			msg := slot.msg
			slot.full = false
			slot.msg = nil
			self := k.currentTCB
			woke := false
			if slot.waiter != nil {
				k.wakeWaiter(slot.waiter, WakeMboxReady)
				slot.waiter = nil
				woke = true
			}
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
		if slot.waiter != nil {
			k.port.EnableIRQ()
			return nil, InUse
		}
		self := k.currentTCB
		slot.waiter = self
		k.blockCurrent(Resource{Kind: ResourceMbox, Index: m.idx}, ticks, false)
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

// Peek returns the mailbox's current message without consuming it, and
// whether one is present. It never blocks.
func (m *Mailbox) Peek() (interface{}, bool) {
	k := m.pool.k
	k.port.DisableIRQ()
	defer k.port.EnableIRQ()
	slot := &m.pool.slots[m.idx]
	return slot.msg, slot.full
}

// Clear empties the mailbox, waking any blocked producer (it has room to
// send again) without delivering a message.
func (m *Mailbox) Clear() {
	k := m.pool.k
	k.port.DisableIRQ()
	slot := &m.pool.slots[m.idx]
	slot.full = false
	slot.msg = nil
	self := k.currentTCB
	woke := false
	if slot.waiter != nil {
		k.wakeWaiter(slot.waiter, WakeMboxReady)
		slot.waiter = nil
		woke = true
	}
	k.port.EnableIRQ()
	if woke {
		k.port.AwaitTurn(self.StackPointer)
	}
}

func (p *MailboxPool) timeout(_ *Kernel, idx int, tcb *TCB) {
	slot := &p.slots[idx]
	if slot.waiter == tcb {
		slot.waiter = nil
	}
}
