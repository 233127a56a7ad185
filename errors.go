package kernel

import "errors"

// These are the resource-exhaustion and setup errors the kernel can return.
// They surface at init time, at CreateTask or Start, or (ErrInvalidTaskID)
// from Wake and Suspend, and are always non-fatal: the caller decides how
// to proceed.
var (
	ErrCreateDenied    = errors.New("kernel: task table is full")
	ErrNoObjAvailable  = errors.New("kernel: primitive pool is exhausted")
	ErrInvalidTaskID   = errors.New("kernel: task id out of range or unused")
	ErrAlreadyStarted  = errors.New("kernel: operation not permitted after Start")
	ErrInvalidResource = errors.New("kernel: invalid primitive handle")
)

// Status is the outcome of a primitive operation that can be legitimately
// refused — a full queue, an empty mailbox, a contended lock. None of these
// are errors in the Go sense: they are part of the normal control flow the
// caller is expected to branch on, exactly as spec.md §7 distinguishes
// "operation refused" from "fault."
type Status int

const (
	// Success indicates the operation completed as requested.
	Success Status = iota
	// Taken indicates a semaphore/mutex wait did not acquire the resource
	// (non-blocking call found it unavailable, or a blocking call timed out).
	Taken
	// Full indicates a queue/mailbox put found no room.
	Full
	// Empty indicates a queue/mailbox get found nothing to read.
	Empty
	// InUse indicates a mailbox's single waiter slot already holds a
	// different blocked task (mailboxes admit only one pending sender and
	// one pending receiver at a time).
	InUse
	// AlreadyReleased indicates Unlock was called by a non-holder.
	AlreadyReleased
	// PendListFull indicates a blocking call found no free waiter slot: a
	// flags Pend, a semaphore Take, a mutex Lock, or a queue Put/Get.
	PendListFull
	// InvalidCommand indicates an unrecognized Post command or Pend mode.
	InvalidCommand
)

func (s Status) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case Taken:
		return "TAKEN"
	case Full:
		return "FULL"
	case Empty:
		return "EMPTY"
	case InUse:
		return "IN_USE"
	case AlreadyReleased:
		return "ALREADY_RELEASED"
	case PendListFull:
		return "PEND_LIST_FULL"
	case InvalidCommand:
		return "INVALID_COMMAND"
	default:
		return "UNKNOWN_STATUS"
	}
}
