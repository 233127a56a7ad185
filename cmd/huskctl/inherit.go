package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"

	kernel "github.com/gscultho/husk"
	"github.com/gscultho/husk/goport"
)

// newInheritCmd runs spec.md §8 scenario 5: L holds a mutex, M is ready to
// run at a priority between L and H, and H blocks on the mutex. Inheritance
// must raise L above M without M ever preempting L.
func newInheritCmd(log *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "inherit",
		Short: "Run the L/M/H mutex priority inheritance scenario (scenario 5)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInherit(log)
		},
	}
}

// Task priorities: H=0 (highest), M=1, L=2 (lowest), matching spec.md §8
// scenario 5's naming.
const (
	hID kernel.TaskID = 0
	mID kernel.TaskID = 1
	lID kernel.TaskID = 2
)

func runInherit(log *zap.Logger) error {
	const tickPeriod = time.Millisecond

	p := goport.New()
	k := kernel.New(kernel.Config{
		MaxTasks:   4,
		TickPeriod: tickPeriod,
		Logger:     log,
	}, p)

	m, err := k.Mutexes.Create()
	if err != nil {
		return fmt.Errorf("huskctl: create mutex: %w", err)
	}

	done := make(chan string, 4)

	// H holds M suspended until L has had the mutex long enough for its own
	// lock attempt to trigger inheritance, so M only ever becomes runnable
	// once L's effective priority is already raised above it.
	hEntry := func() {
		k.Suspend(mID)
		k.Sleep(5)
		log.Info("H attempting lock", zap.Uint64("tick", k.GetTicks()))
		status := m.Lock(1000)
		log.Info("H acquired mutex", zap.Uint64("tick", k.GetTicks()), zap.Stringer("status", status))
		done <- "H locked"
		// Properly park: a trailing select{} would leave H's TCB marked
		// Runnable forever, which the dispatcher would keep re-electing
		// over L and M. Suspend clears it from contention for good.
		k.Suspend(hID)
	}
	mEntry := func() {
		log.Info("M running", zap.Uint64("tick", k.GetTicks()))
		done <- "M ran"
		k.Suspend(mID)
	}
	lEntry := func() {
		m.Lock(0)
		log.Info("L acquired mutex", zap.Uint64("tick", k.GetTicks()))
		done <- "L locked"
		k.Sleep(10)
		k.Wake(mID)
		k.Sleep(20)
		log.Info("L unlocking mutex", zap.Uint64("tick", k.GetTicks()))
		m.Unlock()
		done <- "L unlocked"
		select {}
	}

	if err := k.Init(); err != nil {
		return fmt.Errorf("huskctl: init: %w", err)
	}

	if err := k.CreateTask(hEntry, 0, 0, 0, hID); err != nil {
		return fmt.Errorf("huskctl: create H: %w", err)
	}
	if err := k.CreateTask(mEntry, 0, 0, 1, mID); err != nil {
		return fmt.Errorf("huskctl: create M: %w", err)
	}
	if err := k.CreateTask(lEntry, 0, 0, 2, lID); err != nil {
		return fmt.Errorf("huskctl: create L: %w", err)
	}

	go k.Start()

	timeout := time.After(2 * time.Second)
	for i := 0; i < 4; i++ {
		select {
		case ev := <-done:
			fmt.Println(ev)
		case <-timeout:
			return fmt.Errorf("huskctl: scenario timed out waiting for events")
		}
	}
	p.Stop()
	return nil
}
