// Package port defines the CPU-port contract a kernel.Kernel consumes.
// A real implementation programs the periodic tick source, fabricates
// initial task stack frames, and realizes critical sections and the
// context-switch trap against a specific target's interrupt controller.
// None of that is reimplemented here — spec.md §1 explicitly scopes the CPU
// port out as an external collaborator. Package goport supplies a
// cooperative, goroutine-based Port for tests and the cmd/huskctl demo.
package port

import "time"

// TaskEntry is a task's entry function, as fabricated into an initial
// context by StackInit.
type TaskEntry func()

// KernelHooks is what a Port needs back from the kernel it drives: the two
// ABI slots a real context-switch trap reads directly out of kernel memory
// (the stack pointer of the task presently running, and of the task the
// dispatcher just selected to run next), and the tick entry point a real
// timer interrupt handler calls directly. A Kernel implements this; Bind is
// how a Port is wired to it.
type KernelHooks interface {
	CurrentStackPointer() uintptr
	NextStackPointer() uintptr
	TickISR()
}

// Port is the interface the kernel drives every scheduling decision
// through. TriggerDispatcher, EnableIRQ and UnmaskTick are called with the
// kernel's critical section held; Init, Bind, StackInit and AwaitTurn are
// called without it. Apart from AwaitTurn, methods must not block the
// caller for long:
// real implementations touch only registers and memory-mapped peripherals.
type Port interface {
	// Init programs the periodic tick source at tickPeriod, the tick ISR's
	// interrupt priority, and the context-switch trap's interrupt priority,
	// such that the tick priority is numerically higher than the
	// context-switch priority — the trap must never preempt the tick ISR
	// that sets it up to run. Called once, before any task is created.
	Init(tickPeriod time.Duration) error

	// Bind gives the Port read access to the kernel's current/next stack
	// pointer slots and its tick entry point. Real hardware needs no such
	// call (the trap reads fixed memory locations, and the timer ISR is
	// wired to the kernel's tick handler, both by construction); it exists
	// here because a Port implementation that isn't the kernel itself has no
	// other way to reach either. Called once, from Kernel.New, before Init.
	Bind(hooks KernelHooks)

	// StackInit fabricates a saved context for a not-yet-run task such that
	// switching to it resumes execution at entry. stackTop and stackSize
	// describe the task's statically reserved stack. The returned value is
	// stored as the task's TCB.StackPointer.
	StackInit(entry TaskEntry, stackTop, stackSize uintptr) (sp uintptr, err error)

	// DisableIRQ enters a nested critical section; EnableIRQ leaves one.
	// Only the outermost EnableIRQ call actually re-enables interrupts.
	DisableIRQ()
	EnableIRQ()

	// MaskTick raises the interrupt-priority mask to the tick ISR's
	// priority, so other higher-priority device interrupts can still fire
	// while the scheduler must not be re-entered. It returns the prior mask
	// value, which UnmaskTick restores.
	MaskTick() (prevMask uint32)
	UnmaskTick(prevMask uint32)

	// TriggerDispatcher raises the context-switch trap. The trap handler
	// reads the kernel's current/next TCB pointers and performs the actual
	// stack switch; TriggerDispatcher itself only requests that this
	// happen — by the time it returns, the switch may or may not have
	// completed yet, per the target's interrupt latency. Called with the
	// critical section already held.
	TriggerDispatcher()

	// AwaitTurn blocks the calling goroutine until self is the stack
	// pointer TriggerDispatcher most recently installed as current. Real
	// hardware has no equivalent: the trap suspends and resumes a task's
	// instruction stream transparently, without the task's own code doing
	// anything. A goroutine can't be suspended from the outside that way, so
	// the kernel calls AwaitTurn, on the task's own goroutine, immediately
	// after releasing the critical section that asked to switch it out.
	// Called with the critical section NOT held.
	AwaitTurn(self uintptr)
}
