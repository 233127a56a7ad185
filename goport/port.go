// Package goport is a cooperative, goroutine-based reference implementation
// of port.Port, for the cmd/huskctl demo and for tests that need to drive a
// real Kernel end to end without target hardware.
//
// It cannot preempt a running goroutine the way a hardware context-switch
// trap preempts a task's instruction stream: Go gives no portable way to
// suspend another goroutine from the outside. Instead, every task's
// goroutine cooperates by checking in at the kernel's defined preemption
// points (spec.md §5) — it blocks on a condition variable immediately after
// any kernel call that might switch it out, and is released only once the
// dispatcher names it current again. A task that never calls back into the
// kernel between kernel calls cannot be preempted here, exactly as on real
// hardware between interrupts — the difference is that real hardware can
// still preempt mid-instruction on a timer tick, and this port cannot; tasks
// written for it are expected to sleep or block periodically, as real RTOS
// tasks are.
package goport

import (
	"sync"
	"time"

	"github.com/gscultho/husk/port"
)

type taskSlot struct {
	entry port.TaskEntry
}

// Port is a single Port instance; construct one per Kernel.
type Port struct {
	mu   sync.Mutex
	cond *sync.Cond

	hooks     port.KernelHooks
	currentSP uintptr

	slots []taskSlot

	ticker   *time.Ticker
	tickStop chan struct{}
}

// New returns an unbound, uninitialized Port.
func New() *Port {
	p := &Port{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Bind implements port.Port.
func (p *Port) Bind(hooks port.KernelHooks) {
	p.hooks = hooks
}

// Init starts the periodic tick source. Ticks are delivered to
// hooks.TickISR on a dedicated goroutine that is never itself subject to
// the task baton: it is infrastructure, not a task.
func (p *Port) Init(tickPeriod time.Duration) error {
	p.ticker = time.NewTicker(tickPeriod)
	p.tickStop = make(chan struct{})
	go p.tickLoop()
	return nil
}

func (p *Port) tickLoop() {
	for {
		select {
		case <-p.ticker.C:
			p.hooks.TickISR()
		case <-p.tickStop:
			return
		}
	}
}

// Stop halts the tick source. It is not part of port.Port: a real target
// has no equivalent (the tick source simply runs until reset), but a
// goroutine-based reference port needs a way to let tests tear down
// cleanly.
func (p *Port) Stop() {
	close(p.tickStop)
	p.ticker.Stop()
}

// StackInit implements port.Port. The returned "stack pointer" is an opaque
// 1-based slot index into p.slots; entry runs on its own goroutine, parked
// until the dispatcher first selects this slot as current.
func (p *Port) StackInit(entry port.TaskEntry, _, _ uintptr) (uintptr, error) {
	p.mu.Lock()
	p.slots = append(p.slots, taskSlot{entry: entry})
	sp := uintptr(len(p.slots))
	p.mu.Unlock()

	go p.runTask(sp, entry)
	return sp, nil
}

func (p *Port) runTask(sp uintptr, entry port.TaskEntry) {
	p.mu.Lock()
	for p.currentSP != sp {
		p.cond.Wait()
	}
	p.mu.Unlock()

	entry()

	// A task entry function is not expected to return (periodic tasks loop
	// forever); if one does, its goroutine parks here for good, while the
	// kernel still treats the task as runnable and may keep selecting it.
	select {}
}

// DisableIRQ implements port.Port by acquiring the baton mutex. Nested
// calls within one logical kernel entry point never occur: every exported
// Kernel method disables exactly once and any internal helpers it calls
// assume the section is already held, so no recursive-lock support is
// needed here.
func (p *Port) DisableIRQ() { p.mu.Lock() }

// EnableIRQ implements port.Port.
func (p *Port) EnableIRQ() { p.mu.Unlock() }

// MaskTick implements port.Port. This reference port models no interrupt
// priorities other than the task baton itself, so masking the tick source
// is indistinguishable from a full critical section; prevMask is an unused
// token.
func (p *Port) MaskTick() uint32 {
	p.mu.Lock()
	return 0
}

// UnmaskTick implements port.Port.
func (p *Port) UnmaskTick(_ uint32) { p.mu.Unlock() }

// TriggerDispatcher implements port.Port. It must be called with the
// critical section already held. It only records the switch and wakes
// every parked task goroutine to re-check whether it is now current; it
// does not itself block the caller (see AwaitTurn).
func (p *Port) TriggerDispatcher() {
	p.currentSP = p.hooks.NextStackPointer()
	p.cond.Broadcast()
}

// AwaitTurn implements port.Port. It blocks the calling goroutine — always
// a task's own goroutine, since TickISR is the only kernel entry point
// invoked outside task context and never calls AwaitTurn — until self is
// current again.
func (p *Port) AwaitTurn(self uintptr) {
	p.mu.Lock()
	for p.currentSP != self {
		p.cond.Wait()
	}
	p.mu.Unlock()
}
