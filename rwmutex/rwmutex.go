// Package rwmutex is a writer-priority read/write lock, grounded on
// original_source/mjber/rw_mutex.h: a reader blocks if any writer is
// waiting or running, so a steady stream of readers cannot starve a
// writer the way sync.RWMutex's reader-priority contract allows.
package rwmutex

import "sync"

// RWMutex is the writer-priority lock.
type RWMutex struct {
	mu         sync.Mutex
	condRead   *sync.Cond
	condWrite  *sync.Cond
	readCount  int
	writeCount int
	inWrite    bool
}

// New constructs an RWMutex ready for use.
func New() *RWMutex {
	m := &RWMutex{}
	m.condRead = sync.NewCond(&m.mu)
	m.condWrite = sync.NewCond(&m.mu)
	return m
}

// ReadLock blocks while a writer is running or waiting.
func (m *RWMutex) ReadLock() {
	m.mu.Lock()
	for m.writeCount != 0 {
		m.condRead.Wait()
	}
	m.readCount++
	m.mu.Unlock()
}

// ReadUnlock releases a reader, waking a waiting writer once the last
// reader has left.
func (m *RWMutex) ReadUnlock() {
	m.mu.Lock()
	m.readCount--
	if m.readCount == 0 && m.writeCount > 0 {
		m.condWrite.Signal()
	}
	m.mu.Unlock()
}

// WriteLock registers intent to write (blocking further readers
// immediately) then waits for existing readers and any in-progress
// writer to finish.
func (m *RWMutex) WriteLock() {
	m.mu.Lock()
	m.writeCount++
	for m.readCount != 0 || m.inWrite {
		m.condWrite.Wait()
	}
	m.inWrite = true
	m.mu.Unlock()
}

// WriteUnlock releases the writer, preferring to wake the next
// waiting writer over the blocked readers.
func (m *RWMutex) WriteUnlock() {
	m.mu.Lock()
	m.inWrite = false
	m.writeCount--
	if m.writeCount == 0 {
		m.condRead.Broadcast()
	} else {
		m.condWrite.Signal()
	}
	m.mu.Unlock()
}

// ReadGuard locks for reading and returns a value whose Unlock method
// releases it, for defer-friendly call sites.
func (m *RWMutex) ReadGuard() *Guard {
	m.ReadLock()
	return &Guard{unlock: m.ReadUnlock}
}

// WriteGuard locks for writing and returns a value whose Unlock
// method releases it.
func (m *RWMutex) WriteGuard() *Guard {
	m.WriteLock()
	return &Guard{unlock: m.WriteUnlock}
}

// Guard is the RAII-style handle returned by ReadGuard/WriteGuard.
type Guard struct {
	unlock func()
	done   bool
}

// Unlock releases the lock this guard holds. Idempotent.
func (g *Guard) Unlock() {
	if g.done {
		return
	}
	g.done = true
	g.unlock()
}
