package kernel

import (
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/gscultho/husk/port"
)

// Kernel is the scheduler core: the TCB table, tick bookkeeping, and the
// priority-based dispatcher. A Kernel is not safe to use until Init and
// Start have both been called, and CreateTask may only be called in
// between them.
//
// Kernel implements port.KernelHooks so a bound Port can read the
// current/next task's saved stack pointer the way a real context-switch
// trap reads fixed ABI slots.
type Kernel struct {
	cfg  Config
	port port.Port

	tcbs   []TCB
	idleID TaskID

	started bool

	currentTCB *TCB
	nextTCB    *TCB

	tickCounter atomic.Uint64
	tickFlag    bool

	timeoutHandlers [resourceKindCount]func(k *Kernel, idx int, tcb *TCB)

	log *zap.Logger

	// Semaphores, Mailboxes, Queues, EventFlags, and Mutexes are the fixed
	// primitive pools every object of that kind is allocated from.
	Semaphores *SemaphorePool
	Mailboxes  *MailboxPool
	Queues     *QueuePool
	EventFlags *FlagsPool
	Mutexes    *MutexPool
}

// New allocates a Kernel with cfg's pool sizes and binds it to p. p.Bind is
// called immediately so p can read current/next stack pointers once
// dispatch decisions begin.
func New(cfg Config, p port.Port) *Kernel {
	k := &Kernel{
		cfg:  cfg,
		port: p,
		tcbs: make([]TCB, cfg.maxTasks()),
		log:  cfg.logger(),
	}
	p.Bind(k)

	k.Semaphores = newSemaphorePool(k, cfg.maxSemaphores(), cfg.maxBlockedPerSema())
	k.Mailboxes = newMailboxPool(k, cfg.maxMailboxes())
	k.Queues = newQueuePool(k, cfg.maxQueues(), cfg.queueLength(), cfg.maxBlockedPerQueue())
	k.EventFlags = newFlagsPool(k, cfg.maxFlagGroups(), cfg.maxBlockedPerFlags())
	k.Mutexes = newMutexPool(k, cfg.maxMutexes(), cfg.maxBlockedPerMutex())

	return k
}

// CurrentStackPointer implements port.KernelHooks.
func (k *Kernel) CurrentStackPointer() uintptr {
	if k.currentTCB == nil {
		return 0
	}
	return k.currentTCB.StackPointer
}

// NextStackPointer implements port.KernelHooks.
func (k *Kernel) NextStackPointer() uintptr {
	if k.nextTCB == nil {
		return 0
	}
	return k.nextTCB.StackPointer
}

// Init prepares the tick source. It must be called before CreateTask.
func (k *Kernel) Init() error {
	return k.port.Init(k.cfg.tickPeriod())
}

// CreateTask reserves TCB slot id for a new task at the given priority,
// fabricating its initial context via the bound Port. It fails with
// ErrCreateDenied if id is out of range or already used, and may not be
// called after Start.
func (k *Kernel) CreateTask(fn func(), stackTop, stackSize uintptr, priority Priority, id TaskID) error {
	if k.started {
		return ErrAlreadyStarted
	}
	if int(id) < 0 || int(id) >= len(k.tcbs) || k.tcbs[id].used {
		k.log.Warn("create task denied", zap.Int("task_id", int(id)))
		return ErrCreateDenied
	}
	sp, err := k.port.StackInit(fn, stackTop, stackSize)
	if err != nil {
		return fmt.Errorf("kernel: stack init for task %d: %w", id, err)
	}
	k.tcbs[id] = TCB{
		StackPointer: sp,
		StackBase:    stackTop - stackSize,
		StackSize:    stackSize,
		TaskID:       id,
		Priority:     priority,
		used:         true,
	}
	return nil
}

func idleLoop() {
	// The idle task never calls back into the kernel: it is the CPU's
	// resting state, chosen only when no user task is runnable, and it is
	// never itself woken from a blocked condition.
	select {}
}

// Start creates the idle task, enables interrupts, and triggers the first
// dispatch. Once the first dispatch has run it never returns; it returns an
// error only if it was already called, no TCB slot is left for the idle
// task, or the idle task's stack init fails.
func (k *Kernel) Start() error {
	if k.started {
		return ErrAlreadyStarted
	}
	idleID := TaskID(-1)
	for i := range k.tcbs {
		if !k.tcbs[i].used {
			idleID = TaskID(i)
			break
		}
	}
	if idleID == -1 {
		return ErrCreateDenied
	}
	maxPrio := Priority(-1)
	for i := range k.tcbs {
		if k.tcbs[i].used && k.tcbs[i].Priority > maxPrio {
			maxPrio = k.tcbs[i].Priority
		}
	}
	sp, err := k.port.StackInit(idleLoop, 0, 0)
	if err != nil {
		return fmt.Errorf("kernel: idle task stack init: %w", err)
	}
	k.tcbs[idleID] = TCB{
		StackPointer: sp,
		TaskID:       idleID,
		Priority:     maxPrio + 1,
		used:         true,
	}
	k.idleID = idleID
	k.started = true

	k.log.Info("kernel starting", zap.Int("idle_task_id", int(idleID)))

	k.port.DisableIRQ()
	k.dispatchLocked()
	k.port.EnableIRQ()

	<-make(chan struct{}) // never returns
	return nil
}

func (k *Kernel) tcbByID(id TaskID) (*TCB, error) {
	if int(id) < 0 || int(id) >= len(k.tcbs) || !k.tcbs[id].used {
		return nil, ErrInvalidTaskID
	}
	return &k.tcbs[id], nil
}

// registerTimeoutHandler installs the function a sleep-timeout on a task
// blocked with Resource.Kind == kind must call to evict that task from the
// owning primitive's waiter list. Each primitive pool calls this once, from
// its constructor, per the design-notes function-table strategy.
func (k *Kernel) registerTimeoutHandler(kind ResourceKind, h func(k *Kernel, idx int, tcb *TCB)) {
	k.timeoutHandlers[kind] = h
}

// dispatchLocked is the dispatch algorithm of spec.md §4.1. It must be
// called with the critical section already held (the Port's DisableIRQ
// already called). It runs on every scheduler entry: tick, sleep, yield,
// suspend, and explicit wake.
func (k *Kernel) dispatchLocked() {
	if k.tickFlag {
		for i := range k.tcbs {
			t := &k.tcbs[i]
			if !t.used || t.flags&FlagSleep == 0 {
				continue
			}
			t.SleepCounter--
			if t.SleepCounter != 0 {
				continue
			}
			if t.flags&flagsBlockedOnAny != 0 {
				k.dispatchTimeout(t)
			}
			t.flags &^= FlagSleep | flagsBlockedOnAny
			t.WakeReason = WakeSleepTimeout
			t.Resource = Resource{}
		}
	}

	// Scan for the runnable task of lowest Priority value. spec.md §4.1
	// phrases this as "scan in priority order (lowest index first)", which
	// is equivalent to a plain table-index scan only while every task's
	// effective Priority equals its table index — true before any mutex
	// priority inheritance runs. Once inheritance can raise a holder's
	// effective priority independently of its table slot (spec.md §4.7, and
	// the worked example in §8), an index scan can pick the wrong winner;
	// comparing Priority values directly is what the priority-inheritance
	// invariant in §8 actually requires. See DESIGN.md.
	var winner, yieldFallback *TCB
	for i := range k.tcbs {
		t := &k.tcbs[i]
		if !t.used {
			continue
		}
		yielding := t.flags&FlagYield != 0
		if yielding {
			if yieldFallback == nil {
				yieldFallback = t
			}
			t.flags &^= FlagYield
		}
		if !yielding && t.Runnable() && (winner == nil || t.Priority < winner.Priority) {
			winner = t
		}
	}
	if winner != nil && winner.TaskID == k.idleID && yieldFallback != nil {
		winner = yieldFallback
	}
	k.tickFlag = false

	if winner != k.currentTCB {
		k.nextTCB = winner
		k.port.TriggerDispatcher()
		k.currentTCB = winner
	}
}

func (k *Kernel) dispatchTimeout(t *TCB) {
	h := k.timeoutHandlers[t.Resource.Kind]
	if h == nil {
		k.cfg.faultHook()(fmt.Sprintf("kernel: no timeout handler registered for resource kind %d", t.Resource.Kind))
		return
	}
	h(k, t.Resource.Index, t)
}

// TickISR is the scheduler's tick entry point; a real port's timer
// interrupt handler calls this once per tick period. It is the one kernel
// entry point invoked from outside any task's own execution context, so
// unlike Sleep/Yield/Wake/Suspend it never calls Port.AwaitTurn: whichever
// task is chosen to run next resumes on its own, the next time its
// goroutine is scheduled.
func (k *Kernel) TickISR() {
	k.port.DisableIRQ()
	k.tickCounter.Inc()
	k.tickFlag = true
	k.dispatchLocked()
	k.port.EnableIRQ()
}

// GetTicks returns the free-running tick counter. It wraps without special
// handling, matching spec.md §4.1.
func (k *Kernel) GetTicks() uint64 { return k.tickCounter.Load() }

// GetCurrentTask returns the TaskID of the task the dispatcher most
// recently selected.
func (k *Kernel) GetCurrentTask() TaskID {
	k.port.DisableIRQ()
	defer k.port.EnableIRQ()
	return k.currentTCB.TaskID
}

// GetWakeReason returns, and atomically resets to WakeNone, the current
// task's last wake reason.
func (k *Kernel) GetWakeReason() WakeReason {
	k.port.DisableIRQ()
	defer k.port.EnableIRQ()
	r := k.currentTCB.WakeReason
	k.currentTCB.WakeReason = WakeNone
	return r
}

// setNewPriorityLocked changes tcb's effective priority and returns the
// prior value. It is kernel-internal, used only by the mutex's priority
// inheritance logic, and assumes the critical section is already held.
func (k *Kernel) setNewPriorityLocked(tcb *TCB, newPriority Priority) Priority {
	prev := tcb.Priority
	tcb.Priority = newPriority
	return prev
}

// setReasonForSleep annotates tcb with the resource it is about to block
// on, setting the matching BLOCKED_ON_* bit. It assumes the critical
// section is already held; callers must invoke it before sleepLocked, per
// the scheduler/primitive contract in spec.md §4.8.
func (k *Kernel) setReasonForSleep(tcb *TCB, res Resource) {
	tcb.Resource = res
	switch res.Kind {
	case ResourceSema:
		tcb.flags |= FlagBlockedOnSema
	case ResourceMbox:
		tcb.flags |= FlagBlockedOnMbox
	case ResourceQueue:
		tcb.flags |= FlagBlockedOnQueue
	case ResourceFlags:
		tcb.flags |= FlagBlockedOnFlags
	case ResourceMutex:
		tcb.flags |= FlagBlockedOnMutex
	default:
		k.cfg.faultHook()("kernel: setReasonForSleep: invalid resource kind")
	}
}

// setReasonForWakeup clears tcb's BLOCKED_ON_* bit and records why it woke.
// It does not itself schedule; callers must follow it with wakeLocked.
func (k *Kernel) setReasonForWakeup(reason WakeReason, tcb *TCB) {
	tcb.flags &^= flagsBlockedOnAny
	tcb.Resource = Resource{}
	tcb.WakeReason = reason
}

// sleepLocked marks self SLEEP with the given tick count and runs the
// dispatcher. ticks == 0 is a pure yield. Assumes the critical section is
// already held.
func (k *Kernel) sleepLocked(self *TCB, ticks uint32) {
	if ticks == 0 {
		k.yieldLocked(self)
		return
	}
	self.flags |= FlagSleep
	self.SleepCounter = ticks
	k.dispatchLocked()
}

// yieldLocked marks self YIELD (a one-shot hint the dispatcher's scan
// honors once) and runs the dispatcher. Assumes the critical section is
// already held.
func (k *Kernel) yieldLocked(self *TCB) {
	self.flags |= FlagYield
	k.dispatchLocked()
}

// wakeLocked clears SLEEP|SUSPENDED on t and zeroes its sleep counter, then
// runs the dispatcher; if t is now of higher priority than the running
// task, the dispatcher's own winner selection effects the preemption.
// Assumes the critical section is already held.
func (k *Kernel) wakeLocked(t *TCB) {
	t.flags &^= FlagSleep | FlagSuspended
	t.SleepCounter = 0
	k.dispatchLocked()
}

// blockCurrent is the primitive-facing half of the scheduler contract in
// spec.md §4.8: it records the resource the current task is about to block
// on, then either sleeps it for ticks or (indefinite) marks it SUSPENDED
// with no timeout, as Flags.Pend(0) requires. It returns the blocked TCB so
// the caller can later Port.AwaitTurn on its stack pointer. Assumes the
// critical section is already held.
func (k *Kernel) blockCurrent(res Resource, ticks uint32, indefinite bool) *TCB {
	self := k.currentTCB
	k.setReasonForSleep(self, res)
	if indefinite {
		self.flags |= FlagSuspended
		k.dispatchLocked()
	} else {
		k.sleepLocked(self, ticks)
	}
	return self
}

// wakeWaiter is the primitive-facing half of the wake contract in
// spec.md §4.8: it records why t woke and schedules it. Assumes the
// critical section is already held.
func (k *Kernel) wakeWaiter(t *TCB, reason WakeReason) {
	k.setReasonForWakeup(reason, t)
	k.wakeLocked(t)
}

// Sleep marks the current task SLEEP with sleep_counter = ticks, then runs
// the dispatcher to pick a successor. ticks == 0 is a pure Yield.
func (k *Kernel) Sleep(ticks uint32) {
	k.port.DisableIRQ()
	self := k.currentTCB
	k.sleepLocked(self, ticks)
	k.port.EnableIRQ()
	k.port.AwaitTurn(self.StackPointer)
}

// Yield marks the current task YIELD and runs the dispatcher. A yielded
// task remains runnable; it is only passed over for this one dispatch
// decision in favor of another ready task.
func (k *Kernel) Yield() {
	k.port.DisableIRQ()
	self := k.currentTCB
	k.yieldLocked(self)
	k.port.EnableIRQ()
	k.port.AwaitTurn(self.StackPointer)
}

// Wake clears SLEEP|SUSPENDED on id and zeroes its sleep counter. If id's
// priority is higher than the running task's, this preempts the caller.
func (k *Kernel) Wake(id TaskID) error {
	t, err := k.tcbByID(id)
	if err != nil {
		return err
	}
	k.port.DisableIRQ()
	self := k.currentTCB
	k.wakeLocked(t)
	k.port.EnableIRQ()
	k.port.AwaitTurn(self.StackPointer)
	return nil
}

// Suspend sets SUSPENDED on id. If id is the calling task, this runs the
// dispatcher immediately; suspending another task never needs to, because
// the caller remains the highest-priority runnable task regardless.
func (k *Kernel) Suspend(id TaskID) error {
	t, err := k.tcbByID(id)
	if err != nil {
		return err
	}
	k.port.DisableIRQ()
	self := k.currentTCB
	t.flags |= FlagSuspended
	if t == self {
		k.dispatchLocked()
	}
	k.port.EnableIRQ()
	k.port.AwaitTurn(self.StackPointer)
	return nil
}
