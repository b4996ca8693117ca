//go:build linux

package reactor

import (
	"os"
	"testing"
	"time"
)

func TestLinuxReactorPipeBecomesReadable(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer pr.Close()
	defer pw.Close()

	fd := pr.Fd()
	if err := r.Register(uintptr(fd), Readable, 7); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := pw.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	events := make([]Event, 4)
	n, err := r.Wait(events, 1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 event, got %d", n)
	}
	if events[0].UserData != 7 {
		t.Fatalf("expected userData 7, got %d", events[0].UserData)
	}
	if (events[0].Kind & Readable) == 0 {
		t.Fatalf("expected Readable, got %s", events[0].Kind)
	}
}

func TestLinuxReactorOneShotNeedsRearm(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer pr.Close()
	defer pw.Close()

	fd := uintptr(pr.Fd())
	if err := r.Register(fd, Readable, 1); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := pw.Write([]byte("a")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	events := make([]Event, 4)
	if n, err := r.Wait(events, 1000); err != nil || n != 1 {
		t.Fatalf("first wait: n=%d err=%v", n, err)
	}

	if _, err := pw.Write([]byte("b")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	n, err := r.Wait(events, 100)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no event before Rearm, got %d", n)
	}

	if err := r.Rearm(fd, Readable); err != nil {
		t.Fatalf("Rearm: %v", err)
	}
	n, err = r.Wait(events, 1000)
	if err != nil {
		t.Fatalf("Wait after Rearm: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 event after Rearm, got %d", n)
	}
}

// Close must unblock a goroutine already parked in Wait, not just
// fail the next call: a blocked epoll_wait on this process's epoll fd
// does not wake up just because another goroutine closed that fd.
func TestLinuxReactorCloseUnblocksPendingWait(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		events := make([]Event, 4)
		_, err := r.Wait(events, -1)
		waitErr <- err
	}()

	// Give the goroutine a chance to actually enter epoll_wait before
	// Close runs; not load-bearing for correctness, just makes the
	// "blocked, not about-to-call" case likelier to be exercised.
	time.Sleep(10 * time.Millisecond)

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-waitErr:
		if err != ErrClosed {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not unblock a pending Wait")
	}
}
