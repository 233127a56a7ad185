// Package kernel implements husk, a small preemptive priority-based
// real-time kernel core for resource-constrained microcontrollers.
//
// Use case
//
// Applications statically declare a fixed set of tasks with distinct
// priorities before calling Start. The kernel time-slices the CPU between
// them on a periodic tick, suspends tasks that wait on synchronization
// primitives, and wakes them when their resource becomes available or their
// timeout elapses.
//
// Scheduler
//
// Exactly one task runs at a time. Priorities are unique static integers in
// [0, N), 0 highest; the running task is always the highest-priority
// runnable task. There is no time-slicing between equal priorities, because
// equal priorities do not exist. An idle task of lowest priority is always
// runnable and absorbs any tick where no user task is ready.
//
// Primitives
//
// Five synchronization primitives share the scheduler's blocking contract:
// counting semaphores, single-slot mailboxes, bounded FIFO queues, 8-bit
// event flag groups, and mutexes with priority inheritance. Each allocates
// its waiter nodes from a fixed pool sized at construction time; none
// allocates on the blocking path.
//
// Port
//
// The kernel never touches interrupt registers, a stack pointer, or a timer
// peripheral directly. It drives all of that through the Port interface
// (package port), which a target-specific CPU port must implement. Package
// goport supplies a cooperative, goroutine-based Port for tests and the
// cmd/huskctl demo, so the kernel can be exercised without real hardware.
//
// Non-goals
//
// Dynamic task creation or destruction after Start, memory allocation on the
// critical path, SMP/multicore scheduling, and fairness across equal
// priorities are all out of scope; priorities are unique by construction.
package kernel
