//go:build linux || darwin

package socket

import (
	"sync"
	"testing"
	"time"

	"github.com/Majianb/Mjber/ioruntime"
	"github.com/Majianb/Mjber/reactor"
)

func newTestScheduler(t *testing.T) *ioruntime.Scheduler {
	t.Helper()
	react, err := reactor.New()
	if err != nil {
		t.Skipf("reactor unavailable in this sandbox: %v", err)
	}
	s, err := ioruntime.New(ioruntime.ThreadCount(4), ioruntime.WithReactor(react))
	if err != nil {
		t.Fatalf("ioruntime.New: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

// Loopback echo: a server accepts one connection, reads exactly 5
// bytes, writes them back; a client connects, writes, and reads the
// echo.
func TestLoopbackEcho(t *testing.T) {
	s := newTestScheduler(t)

	var mu sync.Mutex
	var serverDone, clientDone bool
	var clientErr error
	var clientGot string
	boundPort := make(chan uint16, 1)
	allDone := make(chan struct{})

	_, err := s.Spawn(func(h *ioruntime.Handle) {
		ln, err := Listen(h, TCP, "127.0.0.1", 0, 16, ReuseAddr())
		if err != nil {
			t.Errorf("Listen: %v", err)
			return
		}
		defer ln.Close()
		boundPort <- ln.Port()

		conn, err := ln.Accept()
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		defer conn.Close()

		buf := make([]byte, 5)
		total := 0
		for total < 5 {
			n, err := conn.Read(buf[total:])
			if err != nil {
				t.Errorf("server Read: %v", err)
				return
			}
			total += n
		}
		if _, err := conn.Write(buf[:5]); err != nil {
			t.Errorf("server Write: %v", err)
			return
		}
		mu.Lock()
		serverDone = true
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Spawn server: %v", err)
	}

	port := <-boundPort

	_, err = s.Spawn(func(h *ioruntime.Handle) {
		defer close(allDone)
		conn, err := Dial(h, TCP, "127.0.0.1", port)
		if err != nil {
			clientErr = err
			return
		}
		defer conn.Close()
		if _, err := conn.Write([]byte("hello")); err != nil {
			clientErr = err
			return
		}
		buf := make([]byte, 5)
		total := 0
		for total < 5 {
			n, err := conn.Read(buf[total:])
			if err != nil {
				clientErr = err
				return
			}
			total += n
		}
		mu.Lock()
		clientGot = string(buf)
		clientDone = true
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Spawn client: %v", err)
	}

	select {
	case <-allDone:
	case <-time.After(5 * time.Second):
		t.Fatal("loopback echo did not complete in time")
	}

	if clientErr != nil {
		t.Fatalf("client error: %v", clientErr)
	}
	mu.Lock()
	defer mu.Unlock()
	if !serverDone || !clientDone {
		t.Fatalf("expected both sides done: server=%v client=%v", serverDone, clientDone)
	}
	if clientGot != "hello" {
		t.Fatalf("expected %q, got %q", "hello", clientGot)
	}
}

// Backpressure: the server writes 1 MiB to a client that stalls
// before reading, enough to fill the socket buffers so the write may
// suspend; the test checks that the write and the client's read both
// complete once the client drains.
func TestBackpressureWriteCompletesAfterStalledReader(t *testing.T) {
	s := newTestScheduler(t)

	const payloadSize = 1 << 20
	payload := make([]byte, payloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	boundPort := make(chan uint16, 1)
	serverErrCh := make(chan error, 1)
	clientErrCh := make(chan error, 1)
	releaseClient := make(chan struct{})

	_, err := s.Spawn(func(h *ioruntime.Handle) {
		ln, err := Listen(h, TCP, "127.0.0.1", 0, 16, ReuseAddr())
		if err != nil {
			serverErrCh <- err
			return
		}
		defer ln.Close()
		boundPort <- ln.Port()

		conn, err := ln.Accept()
		if err != nil {
			serverErrCh <- err
			return
		}
		defer conn.Close()
		_, err = conn.Write(payload)
		serverErrCh <- err
	})
	if err != nil {
		t.Fatalf("Spawn server: %v", err)
	}

	port := <-boundPort

	_, err = s.Spawn(func(h *ioruntime.Handle) {
		conn, err := Dial(h, TCP, "127.0.0.1", port)
		if err != nil {
			clientErrCh <- err
			return
		}
		defer conn.Close()

		<-releaseClient // stall before reading, so the server must block on write

		got := 0
		buf := make([]byte, 64*1024)
		for got < payloadSize {
			n, err := conn.Read(buf)
			if err != nil {
				clientErrCh <- err
				return
			}
			got += n
		}
		clientErrCh <- nil
	})
	if err != nil {
		t.Fatalf("Spawn client: %v", err)
	}

	time.Sleep(100 * time.Millisecond) // give the server a chance to fill the socket buffer
	close(releaseClient)

	select {
	case err := <-serverErrCh:
		if err != nil {
			t.Fatalf("server: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server write never completed")
	}
	select {
	case err := <-clientErrCh:
		if err != nil {
			t.Fatalf("client: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("client read never completed")
	}
}
