//go:build linux

// Linux epoll(7)-based Reactor, built on golang.org/x/sys/unix with
// EPOLLET always set. EPOLLONESHOT is added on every registration and
// reasserted by Rearm so the edge-triggered model is uniform: a
// descriptor never fires twice for the same readiness without an
// explicit re-arm.
package reactor

import (
	"encoding/binary"
	"sync"

	"golang.org/x/sys/unix"
)

type linuxReactor struct {
	epfd   int
	wakeFd int // eventfd registered in the epoll set so Close can unblock a pending Wait

	mu     sync.Mutex
	closed bool
	data   map[uintptr]uintptr // fd -> userData, needed to reconstruct EPOLL_CTL_MOD on Rearm
}

// New constructs the Linux epoll-backed Reactor. Besides the epoll fd
// itself, it creates an eventfd and registers it in the epoll set: a
// goroutine blocked in epoll_wait never wakes just because another
// goroutine closed the epoll fd out from under it, so Close needs its
// own fd to write to in order to unblock a pending Wait.
func New() (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	wakeEv := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, wakeEv); err != nil {
		unix.Close(wakeFd)
		unix.Close(epfd)
		return nil, err
	}
	return &linuxReactor{epfd: epfd, wakeFd: wakeFd, data: make(map[uintptr]uintptr)}, nil
}

func toEpollMask(interest Kind) uint32 {
	var m uint32
	if (interest & Readable) != 0 {
		m |= unix.EPOLLIN
	}
	if (interest & Writable) != 0 {
		m |= unix.EPOLLOUT
	}
	m |= unix.EPOLLET | unix.EPOLLONESHOT
	return m
}

func (r *linuxReactor) Register(fd uintptr, interest Kind, userData uintptr) error {
	ev := &unix.EpollEvent{Events: toEpollMask(interest), Fd: int32(fd)}
	setEventData(ev, userData)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), ev); err != nil {
		return err
	}
	r.mu.Lock()
	r.data[fd] = userData
	r.mu.Unlock()
	return nil
}

func (r *linuxReactor) Rearm(fd uintptr, interest Kind) error {
	r.mu.Lock()
	userData := r.data[fd]
	r.mu.Unlock()
	ev := &unix.EpollEvent{Events: toEpollMask(interest), Fd: int32(fd)}
	setEventData(ev, userData)
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, int(fd), ev)
}

func (r *linuxReactor) Unregister(fd uintptr) error {
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
	r.mu.Lock()
	delete(r.data, fd)
	r.mu.Unlock()
	return err
}

func (r *linuxReactor) Wait(events []Event, timeoutMs int) (int, error) {
	raw := make([]unix.EpollEvent, len(events)+1)
	n, err := unix.EpollWait(r.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	out := 0
	for i := 0; i < n; i++ {
		if int(raw[i].Fd) == r.wakeFd {
			// Close wrote to the wake fd; the reactor is shutting down.
			// Close already owns r.closed, so we only need to release
			// the fds this Wait holds and report ErrClosed, matching
			// FakeReactor's behavior once its cond is broadcast closed.
			unix.Close(r.wakeFd)
			unix.Close(r.epfd)
			return 0, ErrClosed
		}
		var kind Kind
		if (raw[i].Events & unix.EPOLLIN) != 0 {
			kind |= Readable
		}
		if (raw[i].Events & unix.EPOLLOUT) != 0 {
			kind |= Writable
		}
		if (raw[i].Events & (unix.EPOLLERR | unix.EPOLLHUP)) != 0 {
			kind |= Errored
		}
		events[out] = Event{
			Fd:       uintptr(raw[i].Fd),
			UserData: eventDataOf(&raw[i]),
			Kind:     kind,
		}
		out++
	}
	return out, nil
}

// Close marks the reactor closed and writes to the wake fd to unblock
// whatever goroutine is parked in Wait's epoll_wait call; that call is
// what actually releases the epoll and wake fds, since only it knows
// epoll_wait has really returned. Idempotent.
func (r *linuxReactor) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 1)
	_, err := unix.Write(r.wakeFd, buf)
	return err
}
