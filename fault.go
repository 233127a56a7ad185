package kernel

import "fmt"

// defaultFaultHook is used when Config.FaultHook is nil. It panics, which is
// the correct terminal behavior for a corruption/programmer-error fault in
// the absence of a target-specific hook (a real CPU port would instead
// disable interrupts and spin, or reset the MCU).
func defaultFaultHook(reason string) {
	panic(fmt.Sprintf("kernel: fault: %s", reason))
}
