package kernel

// TaskID indexes the TCB table. CreateTask takes a task's ID and its base
// priority as separate arguments and does not require them to be equal;
// the dispatcher orders tasks by Priority only. Once a task is created its
// ID never changes, even though its effective Priority can move under
// mutex priority inheritance.
type TaskID int

// Priority is a task's current effective scheduling priority. Lower value
// runs first. Priorities are unique among runnable tasks by construction;
// the only thing that ever changes a task's Priority away from the one it
// was created with is mutex priority inheritance
// (Kernel.setNewPriorityLocked).
type Priority int

// Flags is a bitset over a TCB's scheduling state. The empty bitset means
// the task is runnable.
type Flags uint16

const (
	FlagSleep Flags = 1 << iota
	FlagSuspended
	FlagYield
	FlagBlockedOnMbox
	FlagBlockedOnQueue
	FlagBlockedOnSema
	FlagBlockedOnFlags
	FlagBlockedOnMutex
)

// flagsBlockedOnAny is the union of every BLOCKED_ON_* bit; a TCB has at
// most one of these set at a time.
const flagsBlockedOnAny = FlagBlockedOnMbox | FlagBlockedOnQueue | FlagBlockedOnSema | FlagBlockedOnFlags | FlagBlockedOnMutex

// WakeReason records the last cause a task transitioned to runnable. It is
// read, and atomically reset to WakeNone, by GetWakeReason.
//
// Values in [0, 256) are reserved for event-flags snapshots (spec.md §4.6
// requires the raw observed flags byte, not a symbolic code, so a waiter can
// learn exactly which bits fired); symbolic reasons are offset past that
// range so the two namespaces never collide. Use IsFlagsSnapshot to tell
// them apart.
type WakeReason int

const (
	// WakeNone is returned by GetWakeReason when nothing has woken the task
	// since the reason was last read ("NO_WAKEUP_SINCE_LAST_CHECK").
	WakeNone WakeReason = 256 + iota
	WakeSleepTimeout
	WakeMboxReady
	WakeQueueReady
	WakeSemaReady
	WakeMutexReady
	WakeFlagsCleared
)

// ResourceKind tags which primitive pool a Resource handle indexes, per the
// spec's design-notes strategy of a tagged variant in place of raw pointers
// between the scheduler and every primitive.
type ResourceKind int

const (
	ResourceNone ResourceKind = iota
	ResourceSema
	ResourceMbox
	ResourceQueue
	ResourceFlags
	ResourceMutex
	resourceKindCount
)

// Resource is an opaque handle a blocked task's TCB carries to the
// primitive instance it is waiting on, so the scheduler can dispatch a
// sleep-timeout eviction back to the right primitive pool slot without
// either side holding a pointer into the other's types.
type Resource struct {
	Kind  ResourceKind
	Index int
}

// TCB is a Task Control Block: the scheduler's complete per-task state.
//
// StackPointer must remain the first field: a real CPU port's
// context-switch trap reads/writes it at offset 0 of the TCB. The goport
// reference Port does not dereference it (it parks a goroutine instead of
// swapping a stack), but the field is kept to keep this type's layout
// faithful to what any real port ABI requires.
type TCB struct {
	StackPointer uintptr
	StackBase    uintptr
	StackSize    uintptr

	TaskID   TaskID
	Priority Priority

	flags        Flags
	SleepCounter uint32
	Resource     Resource
	WakeReason   WakeReason

	// used is false for unallocated TCB table slots.
	used bool
}

// Flags returns the task's current scheduling bitset.
func (t *TCB) Flags() Flags { return t.flags }

// Runnable reports whether the task has no scheduling-blocking bit set.
func (t *TCB) Runnable() bool { return t.flags == 0 }

// FlagsEventWakeReason converts an observed event-flags byte into the
// WakeReason stored on a woken waiter's TCB, per spec.md §4.6: "the task's
// wake-reason is set to the observed flags snapshot (not a symbolic code)."
func FlagsEventWakeReason(observed uint8) WakeReason {
	return WakeReason(observed)
}

// IsFlagsSnapshot reports whether r is an event-flags snapshot rather than a
// symbolic wake reason, returning the observed byte if so.
func IsFlagsSnapshot(r WakeReason) (uint8, bool) {
	if r < 0 || r >= 256 {
		return 0, false
	}
	return uint8(r), true
}
