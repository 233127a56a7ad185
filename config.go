package kernel

import (
	"time"

	"go.uber.org/zap"
)

// Config configures a Kernel instance. Every pool-size field bounds a fixed
// array, allocated once at New or, for a queue's ring and waiter nodes and a
// flags group's waiter slots, when the pool's Create hands out that object;
// none of them can grow afterward, so the kernel never allocates on the
// blocking path.
type Config struct {
	// MaxTasks is the size of the TCB table, including the idle task that
	// Start creates. CreateTask accepts any ID in 0..MaxTasks-1, but Start
	// places the idle task in an unused slot, so at most MaxTasks-1 tasks may
	// be created.
	MaxTasks int

	// TickPeriod is the nominal period of the periodic tick source. It is
	// informational for the kernel core (passed through to Port.Init); it
	// does not itself drive timing decisions, which are expressed purely in
	// tick counts.
	TickPeriod time.Duration

	// MaxSemaphores, MaxMailboxes, MaxQueues, MaxFlagGroups, and MaxMutexes
	// size the fixed pools each primitive type allocates its objects from.
	MaxSemaphores int
	MaxMailboxes  int
	MaxQueues     int
	MaxFlagGroups int
	MaxMutexes    int

	// QueueLength is the ring length (including the one empty sentinel
	// slot) every Queue object is created with; usable capacity is
	// QueueLength-2 per spec.md §4.5's ring convention.
	QueueLength int

	// MaxBlockedPerSema, MaxBlockedPerMutex, and MaxBlockedPerFlags size the
	// per-object waiter-node pool for semaphores, mutexes, and flag groups.
	MaxBlockedPerSema  int
	MaxBlockedPerMutex int
	MaxBlockedPerFlags int

	// MaxBlockedPerQueue bounds how many tasks may simultaneously block on
	// one queue. spec.md §4.5 and the redesign flags in §9 both call for a
	// small fixed array of task IDs here rather than the original's packed
	// bitfield; 4 matches the source's historical limit.
	MaxBlockedPerQueue int

	// FaultHook is invoked, and must not return, whenever the kernel detects
	// an impossible state (a corrupt enum, a resource handle of the wrong
	// kind, an unreachable branch). Defaults to a panic-based hook.
	FaultHook func(reason string)

	// Logger receives structured kernel lifecycle events: a warning when
	// CreateTask is denied and an info line when Start runs. Pool exhaustion
	// and fault-hook trips are not logged. It is never called from the
	// dispatch hot path. Defaults to zap.NewNop().
	Logger *zap.Logger
}

func (c Config) maxTasks() int {
	if c.MaxTasks <= 0 {
		return 8
	}
	return c.MaxTasks
}

func (c Config) tickPeriod() time.Duration {
	if c.TickPeriod <= 0 {
		return time.Millisecond
	}
	return c.TickPeriod
}

func (c Config) maxSemaphores() int {
	if c.MaxSemaphores <= 0 {
		return 8
	}
	return c.MaxSemaphores
}

func (c Config) maxMailboxes() int {
	if c.MaxMailboxes <= 0 {
		return 8
	}
	return c.MaxMailboxes
}

func (c Config) maxQueues() int {
	if c.MaxQueues <= 0 {
		return 8
	}
	return c.MaxQueues
}

func (c Config) maxFlagGroups() int {
	if c.MaxFlagGroups <= 0 {
		return 8
	}
	return c.MaxFlagGroups
}

func (c Config) maxMutexes() int {
	if c.MaxMutexes <= 0 {
		return 8
	}
	return c.MaxMutexes
}

func (c Config) queueLength() int {
	if c.QueueLength <= 2 {
		return 10
	}
	return c.QueueLength
}

func (c Config) maxBlockedPerSema() int {
	if c.MaxBlockedPerSema <= 0 {
		return 4
	}
	return c.MaxBlockedPerSema
}

func (c Config) maxBlockedPerMutex() int {
	if c.MaxBlockedPerMutex <= 0 {
		return 4
	}
	return c.MaxBlockedPerMutex
}

func (c Config) maxBlockedPerFlags() int {
	if c.MaxBlockedPerFlags <= 0 {
		return 4
	}
	return c.MaxBlockedPerFlags
}

func (c Config) maxBlockedPerQueue() int {
	if c.MaxBlockedPerQueue <= 0 || c.MaxBlockedPerQueue > 4 {
		return 4
	}
	return c.MaxBlockedPerQueue
}

func (c Config) faultHook() func(reason string) {
	if c.FaultHook != nil {
		return c.FaultHook
	}
	return defaultFaultHook
}

func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}
