package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestFlagsAnyVsExactMatch is spec.md §8 scenario 4: an ANY-mode waiter
// wakes on the first partial post, an EXACT-mode waiter on the same mask
// only wakes once every bit has arrived.
func TestFlagsAnyVsExactMatch(t *testing.T) {
	k, _ := newTestKernel(t, Config{MaxTasks: 4})
	f, err := k.EventFlags.Create(0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	type result struct {
		observed uint8
		status   Status
	}
	anyResult := make(chan result, 1)
	exactResult := make(chan result, 1)

	if err := k.CreateTask(func() {
		observed, status := f.Pend(0b011, 1000, MatchAny)
		anyResult <- result{observed, status}
		k.Sleep(1000) // relinquish so the poster and exact waiter can proceed
	}, 0, 0, 0, 0); err != nil {
		t.Fatalf("CreateTask ANY waiter: %v", err)
	}
	if err := k.CreateTask(func() {
		observed, status := f.Pend(0b011, 1000, MatchExact)
		exactResult <- result{observed, status}
		select {}
	}, 0, 0, 1, 1); err != nil {
		t.Fatalf("CreateTask EXACT waiter: %v", err)
	}
	if err := k.CreateTask(func() {
		if status := f.Post(0b001, FlagsSet); status != Success {
			t.Errorf("first Post: got %v", status)
		}
		if status := f.Post(0b010, FlagsSet); status != Success {
			t.Errorf("second Post: got %v", status)
		}
		select {}
	}, 0, 0, 2, 2); err != nil {
		t.Fatalf("CreateTask poster: %v", err)
	}

	go k.Start()
	select {
	case r := <-anyResult:
		if r.status != Success || r.observed != 0b001 {
			t.Fatalf("ANY waiter = (%08b, %v), want (00000001, Success)", r.observed, r.status)
		}
	case <-time.After(time.Second):
		t.Fatal("ANY waiter never woke")
	}
	select {
	case r := <-exactResult:
		if r.status != Success || r.observed != 0b011 {
			t.Fatalf("EXACT waiter = (%08b, %v), want (00000011, Success)", r.observed, r.status)
		}
	case <-time.After(time.Second):
		t.Fatal("EXACT waiter never woke")
	}
}

// TestFlagsPostIsIdempotent covers the idempotence law in spec.md §8: setting
// already-set bits or clearing already-clear bits leaves the group unchanged.
func TestFlagsPostIsIdempotent(t *testing.T) {
	k, _ := newTestKernel(t, Config{MaxTasks: 1})
	f, err := k.EventFlags.Create(0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	require.Equal(t, Success, f.Post(0b001, FlagsSet))
	require.Equal(t, Success, f.Post(0b001, FlagsSet), "repeat set")
	require.EqualValues(t, 0b001, f.Check(), "repeat set must be a no-op")

	require.Equal(t, Success, f.Post(0b010, FlagsClear), "clear of an unset bit")
	require.EqualValues(t, 0b001, f.Check(), "no-op clear must not disturb other bits")

	require.Equal(t, Success, f.Post(0b001, FlagsClear))
	require.EqualValues(t, 0, f.Check())
}

// TestFlagsResetWakesWithClearedReason covers spec.md §4.6: Reset wakes every
// waiter regardless of its predicate, with a reason distinct from a
// satisfied match, and the caller observes it as a failed Pend.
func TestFlagsResetWakesWithClearedReason(t *testing.T) {
	k, _ := newTestKernel(t, Config{MaxTasks: 3})
	f, err := k.EventFlags.Create(0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result := make(chan Status, 1)
	if err := k.CreateTask(func() {
		_, status := f.Pend(0b1, 1000, MatchAny)
		result <- status
		select {}
	}, 0, 0, 0, 0); err != nil {
		t.Fatalf("CreateTask waiter: %v", err)
	}
	if err := k.CreateTask(func() {
		k.Sleep(5) // let the waiter block first
		f.Reset()
		select {}
	}, 0, 0, 1, 1); err != nil {
		t.Fatalf("CreateTask resetter: %v", err)
	}

	go k.Start()
	select {
	case status := <-result:
		if status != Empty {
			t.Fatalf("Pend after Reset = %v, want Empty (no match satisfied)", status)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never woke from Reset")
	}
}
