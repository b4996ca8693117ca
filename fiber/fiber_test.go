package fiber

import (
	"strings"
	"sync"
	"testing"
)

// Yield round-trip: a single fiber writes, yields, resumes, writes
// again, then terminates.
func TestYieldRoundTrip(t *testing.T) {
	var sb strings.Builder
	var mu sync.Mutex
	write := func(s string) {
		mu.Lock()
		sb.WriteString(s)
		mu.Unlock()
	}

	var f *Fiber
	f = Create(func() {
		write("A")
		f.Yield(nil)
		write("B")
	})

	if err := f.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := f.State(); got != StateSuspended {
		t.Fatalf("expected Suspended after yield, got %s", got)
	}
	if err := f.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if got := f.State(); got != StateTerminated {
		t.Fatalf("expected Terminated, got %s", got)
	}
	if sb.String() != "AB" {
		t.Fatalf("expected stdout %q, got %q", "AB", sb.String())
	}
}

// Two-fiber interleave: alternately resuming two fibers produces
// output in strict start/resume order.
func TestTwoFiberInterleave(t *testing.T) {
	var mu sync.Mutex
	var order []string

	record := func(id string) {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
	}

	mkFiber := func(id string) *Fiber {
		var f *Fiber
		f = Create(func() {
			for i := 0; i < 3; i++ {
				record(id)
				if i < 2 {
					f.Yield(nil)
				}
			}
		})
		return f
	}

	f1 := mkFiber("f1")
	f2 := mkFiber("f2")

	if err := f1.Start(); err != nil {
		t.Fatalf("f1.Start: %v", err)
	}
	if err := f2.Start(); err != nil {
		t.Fatalf("f2.Start: %v", err)
	}

	for f1.State() != StateTerminated || f2.State() != StateTerminated {
		if f1.State() == StateSuspended {
			if err := f1.Resume(); err != nil {
				t.Fatalf("f1.Resume: %v", err)
			}
		}
		if f2.State() == StateSuspended {
			if err := f2.Resume(); err != nil {
				t.Fatalf("f2.Resume: %v", err)
			}
		}
	}

	if len(order) != 6 {
		t.Fatalf("expected 6 prints, got %d: %v", len(order), order)
	}
	// Start and Resume each run a fiber up to its next yield, so
	// alternating them interleaves the prints strictly.
	want := []string{"f1", "f2", "f1", "f2", "f1", "f2"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected start/resume order %v, got %v", want, order)
		}
	}
	var f1count, f2count int
	for _, v := range order {
		switch v {
		case "f1":
			f1count++
		case "f2":
			f2count++
		}
	}
	if f1count != 3 || f2count != 3 {
		t.Fatalf("expected 3 prints each, got f1=%d f2=%d", f1count, f2count)
	}
}

func TestUncaughtPanicRecordsError(t *testing.T) {
	var f *Fiber
	f = Create(func() {
		panic("boom")
	})
	if err := f.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := f.State(); got != StateErrored {
		t.Fatalf("expected Errored, got %s", got)
	}
	if f.Err() == nil {
		t.Fatal("expected Err() to be non-nil")
	}
}

func TestCompletionSkippedOnError(t *testing.T) {
	var ran bool
	var f *Fiber
	f = Create(func() { panic("boom") })
	if err := f.SetCompletion(func() { ran = true }); err != nil {
		t.Fatalf("SetCompletion: %v", err)
	}
	_ = f.Start()
	if ran {
		t.Fatal("completion must not run on an uncaught panic")
	}
}

func TestCompletionRunsOnNormalReturn(t *testing.T) {
	done := make(chan struct{})
	f := Create(func() {})
	if err := f.SetCompletion(func() { close(done) }); err != nil {
		t.Fatalf("SetCompletion: %v", err)
	}
	if err := f.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatal("completion callback did not run")
	}
}

// The completion callback is what a caller like ioruntime.Scheduler
// uses to learn "this fiber is free to reuse"; Reuse requires
// Terminated, so the state flip must be visible to the callback
// before the callback runs, not after.
func TestStateIsTerminatedBeforeCompletionRuns(t *testing.T) {
	var observed State
	f := Create(func() {})
	if err := f.SetCompletion(func() { observed = f.State() }); err != nil {
		t.Fatalf("SetCompletion: %v", err)
	}
	if err := f.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if observed != StateTerminated {
		t.Fatalf("expected completion callback to observe Terminated, got %s", observed)
	}
}

func TestReuseRoundTrip(t *testing.T) {
	f := Create(func() {})
	if err := f.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if f.State() != StateTerminated {
		t.Fatalf("expected Terminated, got %s", f.State())
	}
	id := f.ID()
	gen0 := f.Generation()

	var ran bool
	if err := f.Reuse(func() { ran = true }); err != nil {
		t.Fatalf("Reuse: %v", err)
	}
	if f.ID() != id {
		t.Fatal("id must be preserved across reuse")
	}
	if f.Generation() != gen0+1 {
		t.Fatal("generation must increment across reuse")
	}
	if err := f.Start(); err != nil {
		t.Fatalf("Start after reuse: %v", err)
	}
	if !ran {
		t.Fatal("reused fiber did not observe its new task")
	}
}

func TestResumeOnNonSuspendedFails(t *testing.T) {
	f := Create(func() {})
	var protoErr *ErrProtocol
	err := f.Resume()
	if err == nil {
		t.Fatal("expected ErrProtocol")
	}
	if e, ok := err.(*ErrProtocol); !ok {
		t.Fatalf("expected *ErrProtocol, got %T", err)
	} else {
		protoErr = e
	}
	_ = protoErr
}

func TestSingleWriterIDs(t *testing.T) {
	const n = 200
	seen := make(map[uint64]bool, n)
	for i := 0; i < n; i++ {
		f := Create(func() {})
		if seen[f.ID()] {
			t.Fatalf("duplicate id %d", f.ID())
		}
		seen[f.ID()] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct ids, got %d", n, len(seen))
	}
}
