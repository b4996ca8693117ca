//go:build windows

// Windows IOCP-based Reactor. IOCP has no "re-arm" concept of its own —
// every completion is one-shot by construction, since a new
// overlapped operation must be issued to get another one — so Rearm
// is a deliberate no-op here; the socket layer is responsible for
// reissuing its overlapped read/write after each completion.
package reactor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
)

type iocpReactor struct {
	iocp       syscall.Handle
	mu         sync.Mutex
	keyFor     map[uintptr]uint32
	dataFor    map[uint32]uintptr
	keyCounter uint32
	closed     chan struct{}
}

// New constructs the Windows IOCP-backed Reactor.
func New() (Reactor, error) {
	iocp, err := syscall.CreateIoCompletionPort(syscall.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("iocp create: %w", err)
	}
	return &iocpReactor{
		iocp:    iocp,
		keyFor:  make(map[uintptr]uint32),
		dataFor: make(map[uint32]uintptr),
		closed:  make(chan struct{}),
	}, nil
}

func (r *iocpReactor) Register(fd uintptr, interest Kind, userData uintptr) error {
	key := atomic.AddUint32(&r.keyCounter, 1)
	handle := syscall.Handle(fd)
	_, err := syscall.CreateIoCompletionPort(handle, r.iocp, uint32(key), 0)
	if err != nil {
		return fmt.Errorf("iocp associate: %w", err)
	}
	r.mu.Lock()
	r.keyFor[fd] = key
	r.dataFor[key] = userData
	r.mu.Unlock()
	return nil
}

// Rearm is a no-op: see the package comment.
func (r *iocpReactor) Rearm(fd uintptr, interest Kind) error { return nil }

func (r *iocpReactor) Unregister(fd uintptr) error {
	r.mu.Lock()
	key, ok := r.keyFor[fd]
	delete(r.keyFor, fd)
	if ok {
		delete(r.dataFor, key)
	}
	r.mu.Unlock()
	return nil
}

func (r *iocpReactor) Wait(events []Event, timeoutMs int) (int, error) {
	timeout := uint32(syscall.INFINITE)
	if timeoutMs >= 0 {
		timeout = uint32(timeoutMs)
	}
	n := 0
	for n < len(events) {
		select {
		case <-r.closed:
			return n, ErrClosed
		default:
		}
		var bytes uint32
		var key uint32
		var overlapped *syscall.Overlapped
		err := syscall.GetQueuedCompletionStatus(r.iocp, &bytes, &key, &overlapped, timeout)
		if err != nil {
			if err == syscall.Errno(syscall.WAIT_TIMEOUT) {
				break
			}
			if n > 0 {
				break
			}
			return 0, err
		}
		r.mu.Lock()
		userData, ok := r.dataFor[key]
		r.mu.Unlock()
		if !ok {
			continue
		}
		events[n] = Event{Fd: uintptr(key), UserData: userData, Kind: Readable | Writable}
		n++
		timeout = 0 // drain whatever else is already ready, then return
	}
	return n, nil
}

func (r *iocpReactor) Close() error {
	select {
	case <-r.closed:
		return nil
	default:
		close(r.closed)
	}
	return syscall.CloseHandle(r.iocp)
}
