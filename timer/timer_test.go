package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAddTaskRunsAfterDeadline(t *testing.T) {
	tm := New(5 * time.Millisecond)
	defer tm.Stop()

	var fired atomic.Bool
	done := make(chan struct{})
	tm.AddTask(10*time.Millisecond, func() {
		fired.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never fired")
	}
	if !fired.Load() {
		t.Fatal("expected task to have run")
	}
}

func TestAddTaskDoesNotFireEarly(t *testing.T) {
	tm := New(5 * time.Millisecond)
	defer tm.Stop()

	var fired atomic.Bool
	tm.AddTask(200*time.Millisecond, func() { fired.Store(true) })

	time.Sleep(50 * time.Millisecond)
	if fired.Load() {
		t.Fatal("task fired before its deadline")
	}
}

func TestMultipleTasksFireInDeadlineOrder(t *testing.T) {
	tm := New(5 * time.Millisecond)
	defer tm.Stop()

	order := make(chan int, 3)
	tm.AddTask(30*time.Millisecond, func() { order <- 3 })
	tm.AddTask(10*time.Millisecond, func() { order <- 1 })
	tm.AddTask(20*time.Millisecond, func() { order <- 2 })

	var got []int
	for i := 0; i < 3; i++ {
		select {
		case n := <-order:
			got = append(got, n)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for task %d", i+1)
		}
	}
	for i, n := range got {
		if n != i+1 {
			t.Fatalf("expected deadline order 1,2,3; got %v", got)
		}
	}
}

func TestStopHaltsDelivery(t *testing.T) {
	tm := New(5 * time.Millisecond)
	var fired atomic.Bool
	tm.AddTask(100*time.Millisecond, func() { fired.Store(true) })
	tm.Stop()

	time.Sleep(150 * time.Millisecond)
	if fired.Load() {
		t.Fatal("task fired after Stop")
	}
}
