// Package ioruntime is the process-wide I/O scheduler: the singleton
// that owns the thread pool, the fiber registry, the I/O registry,
// the free fiber list, and the dedicated poller goroutine wiring a
// thread pool to a reactor.
//
// Go idiom note: a thread-local "current fiber" has no portable Go
// equivalent (goroutines carry no user-settable local storage), so
// this package never tries to recover "the calling fiber" implicitly.
// Spawn instead hands the task an explicit *Handle, which is the
// fiber's own capability to Yield/RegisterIO/UnregisterIO — an
// explicit parameter doing the same job a thread-local pointer would,
// and the more idiomatic Go shape for it.
package ioruntime

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/Majianb/Mjber/control"
	"github.com/Majianb/Mjber/fiber"
	"github.com/Majianb/Mjber/internal/threadpool"
	"github.com/Majianb/Mjber/logging"
	"github.com/Majianb/Mjber/reactor"
)

const noHandle = ^uintptr(0)

// descriptor is the fiber registry's value type.
type descriptor struct {
	fiber  *fiber.Fiber
	kind   reactor.Kind
	handle uintptr
}

// Scheduler is the I/O scheduler singleton (constructible; see
// Default/SetDefault for the ambient-singleton convenience).
type Scheduler struct {
	mu       sync.Mutex
	registry map[uint64]*descriptor
	ioReg    map[uintptr]reactor.Kind
	free     *queue.Queue

	pool  *threadpool.Pool
	react reactor.Reactor
	log   *logging.Logger

	config  *control.ConfigStore
	metrics *control.MetricsRegistry

	threadCount int
	stackSize   int

	stopped   atomic.Bool
	closeOnce sync.Once
	pollDone  chan struct{}
}

type config struct {
	threadCount int
	stackSize   int
	react       reactor.Reactor
	log         *logging.Logger
}

// Option configures a Scheduler at construction.
type Option func(*config)

// ThreadCount sets the worker pool size (clamped to >= 1).
func ThreadCount(n int) Option {
	return func(c *config) { c.threadCount = n }
}

// StackSize records the advisory per-fiber stack size surfaced via
// metrics; Go goroutine stacks grow on demand and this is never used
// to preallocate anything.
func StackSize(n int) Option {
	return func(c *config) { c.stackSize = n }
}

// WithReactor overrides the platform reactor, primarily for tests
// (reactor.NewFake()).
func WithReactor(r reactor.Reactor) Option {
	return func(c *config) { c.react = r }
}

// WithLogger overrides the default logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *config) { c.log = l }
}

// New constructs and starts a Scheduler: its thread pool, its poller
// goroutine, and (unless overridden) the platform reactor.
func New(opts ...Option) (*Scheduler, error) {
	cfg := config{threadCount: 4, stackSize: 1 << 20}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.threadCount < 1 {
		cfg.threadCount = 1
	}
	if cfg.react == nil {
		r, err := reactor.New()
		if err != nil {
			return nil, syscallErr("scheduler_new", err)
		}
		cfg.react = r
	}
	if cfg.log == nil {
		cfg.log = logging.New(1024, logging.NewConsoleAppender())
	}

	s := &Scheduler{
		registry:    make(map[uint64]*descriptor),
		ioReg:       make(map[uintptr]reactor.Kind),
		free:        queue.New(),
		pool:        threadpool.New(cfg.threadCount),
		react:       cfg.react,
		log:         cfg.log,
		config:      control.NewConfigStore(),
		metrics:     control.NewMetricsRegistry(),
		threadCount: cfg.threadCount,
		stackSize:   cfg.stackSize,
		pollDone:    make(chan struct{}),
	}
	s.config.SetConfig(map[string]any{
		"thread_count": cfg.threadCount,
		"stack_size":   cfg.stackSize,
	})
	s.metrics.Set("thread_count", cfg.threadCount)
	s.metrics.Set("stack_size", cfg.stackSize)
	s.metrics.Set("active_fibers", int64(0))
	s.config.OnReload(func() {
		snap := s.config.GetSnapshot()
		if n, ok := snap["thread_count"].(int); ok {
			s.metrics.Set("thread_count", n)
		}
		if n, ok := snap["stack_size"].(int); ok {
			s.metrics.Set("stack_size", n)
		}
	})
	go func() {
		s.pollLoop()
		close(s.pollDone)
	}()
	return s, nil
}

// Config returns the scheduler's dynamic tunable store (thread_count,
// stack_size), which fires its OnReload listeners whenever SetConfig
// updates a value — used here to keep Metrics in sync.
func (s *Scheduler) Config() *control.ConfigStore { return s.config }

// Metrics returns the scheduler's runtime metrics registry, kept
// current with thread_count, stack_size, and active_fibers.
func (s *Scheduler) Metrics() *control.MetricsRegistry { return s.metrics }

var defaultScheduler atomic.Pointer[Scheduler]

// Default returns the process-wide ambient Scheduler, if one has been
// installed via SetDefault. Returns nil otherwise — callers (like
// package socket) must handle a nil Default by failing closed rather
// than panicking.
func Default() *Scheduler { return defaultScheduler.Load() }

// SetDefault installs s as the ambient scheduler.
func SetDefault(s *Scheduler) { defaultScheduler.Store(s) }

// Handle is a fiber's capability to interact with the scheduler that
// spawned it: yield, and arm/disarm I/O interest. Passed explicitly to
// the task function given to Spawn.
type Handle struct {
	sched *Scheduler
	f     *fiber.Fiber
}

// Fiber returns the underlying fiber value, mostly for tests.
func (h *Handle) Fiber() *fiber.Fiber { return h.f }

// Yield suspends the calling fiber until the scheduler resumes it
// (via a readiness event or an explicit future Resume by a test).
// Must be called from inside the fiber's own goroutine.
func (h *Handle) Yield() { h.f.Yield(nil) }

// RegisterIO arms interest in kinds on fd for the calling fiber.
func (h *Handle) RegisterIO(fd uintptr, kinds reactor.Kind) error {
	return h.sched.registerIO(h.f, fd, kinds)
}

// UnregisterIO disarms fd entirely.
func (h *Handle) UnregisterIO(fd uintptr) error {
	return h.sched.unregisterIO(fd)
}

// Spawn submits task for execution: pop-or-create a fiber, install
// the auto-cleanup completion callback, insert the registry entry,
// and enqueue the job that starts it.
func (s *Scheduler) Spawn(task func(h *Handle)) (*Handle, error) {
	if s.stopped.Load() {
		return nil, protocolErr("spawn", errStopped)
	}

	s.mu.Lock()
	var f *fiber.Fiber
	if s.free.Length() > 0 {
		f = s.free.Remove().(*fiber.Fiber)
	}
	s.mu.Unlock()

	h := &Handle{sched: s}
	wrapped := func() { task(h) }

	var err error
	if f != nil {
		err = f.Reuse(wrapped)
	} else {
		f = fiber.Create(wrapped)
	}
	if err != nil {
		return nil, protocolErr("spawn", err)
	}
	h.f = f

	if err := f.SetCompletion(func() { s.exitCurrent(f) }); err != nil {
		return nil, protocolErr("spawn", err)
	}

	s.mu.Lock()
	s.registry[f.ID()] = &descriptor{fiber: f, kind: 0, handle: noHandle}
	s.mu.Unlock()

	if err := s.pool.Submit(func() { _ = f.Start() }); err != nil {
		s.mu.Lock()
		delete(s.registry, f.ID())
		s.mu.Unlock()
		return nil, protocolErr("spawn", err)
	}
	s.metrics.Incr("active_fibers", 1)
	return h, nil
}

// registerIO arms the reactor for the union of a descriptor's
// previously- and newly-requested interest kinds.
func (s *Scheduler) registerIO(f *fiber.Fiber, fd uintptr, kinds reactor.Kind) error {
	s.mu.Lock()
	desc, ok := s.registry[f.ID()]
	if !ok {
		s.mu.Unlock()
		return protocolErr("register_io", errNotRegistered)
	}

	armed, exists := s.ioReg[fd]
	if exists && (armed&kinds) == kinds {
		desc.kind = kinds
		desc.handle = fd
		s.mu.Unlock()
		return nil
	}

	union := armed | kinds
	var armErr error
	if exists {
		armErr = s.react.Rearm(fd, union)
	} else {
		armErr = s.react.Register(fd, union, uintptr(f.ID()))
	}
	if armErr != nil {
		s.mu.Unlock()
		return syscallErr("register_io", armErr)
	}
	s.ioReg[fd] = union
	desc.kind = kinds
	desc.handle = fd
	s.mu.Unlock()
	return nil
}

// unregisterIO removes a descriptor's I/O registration entirely.
func (s *Scheduler) unregisterIO(fd uintptr) error {
	s.mu.Lock()
	_, exists := s.ioReg[fd]
	delete(s.ioReg, fd)
	s.mu.Unlock()
	if !exists {
		return nil
	}
	if err := s.react.Unregister(fd); err != nil {
		return syscallErr("unregister_io", err)
	}
	return nil
}

// exitCurrent removes the registry entry and pushes the fiber onto the
// free list. It leaves the I/O registry alone: a handle the fiber
// armed stays armed until UnregisterIO (which Socket.Close calls)
// removes it.
func (s *Scheduler) exitCurrent(f *fiber.Fiber) {
	s.mu.Lock()
	delete(s.registry, f.ID())
	s.free.Add(f)
	s.mu.Unlock()
	s.metrics.Incr("active_fibers", -1)
}

// pollLoop is the dedicated poller goroutine: wait for reactor
// events, resolve each to its fiber, and resume it on a pool worker.
func (s *Scheduler) pollLoop() {
	events := make([]reactor.Event, 256)
	for {
		n, err := s.react.Wait(events, -1)
		if err != nil {
			if err == reactor.ErrClosed {
				return
			}
			s.log.Errorf("poller wait: %v", err)
			continue
		}
		for i := 0; i < n; i++ {
			s.handleEvent(events[i])
		}
	}
}

func (s *Scheduler) handleEvent(ev reactor.Event) {
	fiberID := uint64(ev.UserData)

	s.mu.Lock()
	// Registrations are one-shot: delivering this event disarmed
	// ev.Fd, so forget its armed kinds and let the next registerIO
	// re-arm it instead of taking the already-armed path.
	if _, ok := s.ioReg[ev.Fd]; ok {
		s.ioReg[ev.Fd] = 0
	}
	desc, ok := s.registry[fiberID]
	if !ok {
		s.mu.Unlock()
		s.log.Errorf("poller: readiness event for unknown fiber id %d", fiberID)
		return
	}
	matches := (desc.kind&ev.Kind) != 0 || (ev.Kind&reactor.Errored) != 0
	if !matches {
		s.mu.Unlock()
		return
	}
	desc.kind = 0
	f := desc.fiber
	s.mu.Unlock()

	if err := s.pool.Submit(func() { _ = f.Resume() }); err != nil {
		s.log.Errorf("poller: submit resume for fiber %d: %v", fiberID, err)
	}
}

// Stop closes the reactor (unblocking the poller), joins the poller
// goroutine, then stops and joins the thread pool. Idempotent.
func (s *Scheduler) Stop() {
	s.closeOnce.Do(func() {
		s.stopped.Store(true)
		_ = s.react.Close()
		<-s.pollDone
		s.pool.Stop()
		s.log.Close()
	})
}

// Pool exposes the underlying thread pool, for components (like the
// HTTP server shell) that want a Future-returning Enqueue alongside
// fiber-based Spawn.
func (s *Scheduler) Pool() *threadpool.Pool { return s.pool }
