//go:build linux

package reactor

import "golang.org/x/sys/unix"

// setEventData/eventDataOf carry the caller's userData in the
// epoll_event's 32-bit Pad field, the part of epoll's 64-bit data word
// that Fd does not occupy. Only the low 32 bits of userData survive
// the round trip through epoll_wait.
func setEventData(ev *unix.EpollEvent, userData uintptr) {
	ev.Pad = int32(uint32(userData))
}

func eventDataOf(ev *unix.EpollEvent) uintptr {
	return uintptr(uint32(ev.Pad))
}
