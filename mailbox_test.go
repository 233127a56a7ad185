package kernel

import (
	"testing"
	"time"
)

// TestMailboxTimeoutDistinguishedFromSuccess is spec.md §8 scenario 6.
func TestMailboxTimeoutDistinguishedFromSuccess(t *testing.T) {
	k, _ := newTestKernel(t, Config{MaxTasks: 3, TickPeriod: time.Millisecond})
	mbox, err := k.Mailboxes.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result := make(chan WakeReason, 2)
	if err := k.CreateTask(func() {
		_, status := mbox.Receive(3)
		if status != Empty {
			t.Errorf("first Receive: got %v, want Empty (timeout)", status)
		}
		result <- k.GetWakeReason()

		// A second Receive, this time fed by a sender, must report
		// MBOX_READY rather than the stale SLEEP_TIMEOUT.
		msg, status := mbox.Receive(1000)
		if status != Success || msg != "hello" {
			t.Errorf("second Receive: got (%v, %v), want (hello, Success)", msg, status)
		}
		result <- k.GetWakeReason()
		select {}
	}, 0, 0, 0, 0); err != nil {
		t.Fatalf("CreateTask receiver: %v", err)
	}
	if err := k.CreateTask(func() {
		k.Sleep(10) // let the first Receive time out before sending
		if status := mbox.Send("hello", 0); status != Success {
			t.Errorf("Send: got %v", status)
		}
		select {}
	}, 0, 0, 1, 1); err != nil {
		t.Fatalf("CreateTask sender: %v", err)
	}

	go k.Start()

	select {
	case r := <-result:
		if r != WakeSleepTimeout {
			t.Fatalf("first wake reason = %v, want WakeSleepTimeout", r)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver never timed out")
	}
	select {
	case r := <-result:
		if r != WakeMboxReady {
			t.Fatalf("second wake reason = %v, want WakeMboxReady", r)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver never received the message")
	}
}

func TestMailboxPeekAndClear(t *testing.T) {
	k, _ := newTestKernel(t, Config{MaxTasks: 2})
	mbox, err := k.Mailboxes.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	done := make(chan struct{})
	if err := k.CreateTask(func() {
		if _, ok := mbox.Peek(); ok {
			t.Error("Peek on empty mailbox reported present")
		}
		if status := mbox.Send(42, 0); status != Success {
			t.Errorf("Send: got %v", status)
		}
		if msg, ok := mbox.Peek(); !ok || msg != 42 {
			t.Errorf("Peek after Send = (%v, %v), want (42, true)", msg, ok)
		}
		mbox.Clear()
		if _, ok := mbox.Peek(); ok {
			t.Error("Peek after Clear reported present")
		}
		if _, status := mbox.Receive(0); status != Empty {
			t.Errorf("Receive after Clear: got %v, want Empty", status)
		}
		close(done)
		select {}
	}, 0, 0, 0, 0); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	go k.Start()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never completed")
	}
}

// TestMailboxSendBlocksWhenFull covers spec.md §4.4's symmetry between send
// and receive: a full mailbox blocks a sender until the slot is consumed.
func TestMailboxSendBlocksWhenFull(t *testing.T) {
	k, _ := newTestKernel(t, Config{MaxTasks: 3})
	mbox, err := k.Mailboxes.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if status := mbox.Send("first", 0); status != Success {
		t.Fatalf("initial Send: got %v", status)
	}

	sent := make(chan struct{})
	if err := k.CreateTask(func() {
		if status := mbox.Send("second", 1000); status != Success {
			t.Errorf("blocked Send: got %v, want Success", status)
		}
		close(sent)
		select {}
	}, 0, 0, 1, 0); err != nil {
		t.Fatalf("CreateTask sender: %v", err)
	}
	if err := k.CreateTask(func() {
		k.Sleep(5) // let the sender block on the full mailbox first
		if msg, status := mbox.Receive(0); status != Success || msg != "first" {
			t.Errorf("first Receive: got (%v, %v)", msg, status)
		}
		// Relinquish the CPU: as the higher-priority task, staying runnable
		// would starve the sender it just unblocked.
		k.Sleep(1000)
	}, 0, 0, 0, 1); err != nil {
		t.Fatalf("CreateTask receiver: %v", err)
	}

	go k.Start()
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("blocked sender never completed")
	}
}
