package httpserver

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Majianb/Mjber/ioruntime"
	"github.com/Majianb/Mjber/logging"
	"github.com/Majianb/Mjber/socket"
	"github.com/Majianb/Mjber/timer"
)

// Config holds the settings a Server is built from.
type Config struct {
	Addr           string
	Port           uint16
	Backlog        int
	AcceptDeadline time.Duration
	ReadDeadline   time.Duration
}

// DefaultConfig returns sane defaults: no deadlines enforced, a
// 128-connection backlog.
func DefaultConfig() *Config {
	return &Config{Backlog: 128}
}

// Server accepts TCP connections on a listener fiber and spawns one
// worker fiber per accepted connection.
type Server struct {
	cfg    *Config
	sched  *ioruntime.Scheduler
	router *Router
	log    *logging.Logger
	timer  *timer.Timer

	mu       sync.Mutex
	ln       *socket.Socket
	shutdown chan struct{}
	once     sync.Once
}

// New builds a Server bound to sched, routing requests through
// router. log and tmr may be nil; nil disables logging and read
// deadline enforcement respectively. Only cfg.ReadDeadline is
// enforced; cfg.AcceptDeadline is not read.
func New(sched *ioruntime.Scheduler, cfg *Config, router *Router, log *logging.Logger, tmr *timer.Timer) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Server{
		cfg:      cfg,
		sched:    sched,
		router:   router,
		log:      log,
		timer:    tmr,
		shutdown: make(chan struct{}),
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Infof(format, args...)
	}
}

func (s *Server) errorf(format string, args ...any) {
	if s.log != nil {
		s.log.Errorf(format, args...)
	}
}

// Serve spawns the listener fiber and returns once the listening
// socket is bound (reporting the bound port via the returned
// *socket.Socket, useful when cfg.Port is 0). The listener and its
// worker fibers run until Stop is called.
func (s *Server) Serve() (*socket.Socket, error) {
	var lnErr error
	boundCh := make(chan struct{})

	_, err := s.sched.Spawn(func(h *ioruntime.Handle) {
		ln, err := socket.Listen(h, socket.TCP, s.cfg.Addr, s.cfg.Port, s.cfg.Backlog, socket.ReuseAddr())
		s.mu.Lock()
		s.ln = ln
		s.mu.Unlock()
		if err != nil {
			lnErr = err
			close(boundCh)
			return
		}
		close(boundCh)
		defer ln.Close()
		s.logf("http server listening on %s:%d", s.cfg.Addr, ln.Port())

		for {
			select {
			case <-s.shutdown:
				return
			default:
			}

			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.shutdown:
					return
				default:
				}
				s.errorf("accept failed: %v", err)
				continue
			}
			s.logf("accepted connection from %s", conn.PeerAddr())

			if _, err := s.sched.Spawn(func(wh *ioruntime.Handle) {
				s.serveConn(wh, conn)
			}); err != nil {
				s.errorf("failed to spawn worker fiber: %v", err)
				conn.Close()
			}
		}
	})
	if err != nil {
		return nil, err
	}

	<-boundCh
	if lnErr != nil {
		return nil, lnErr
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	return ln, nil
}

// serveConn is the per-connection worker loop: read a request, route
// it, write the response, repeat until the peer disconnects or a
// protocol error occurs.
func (s *Server) serveConn(h *ioruntime.Handle, conn *socket.Socket) {
	defer conn.Close()
	cb := newConnBuffer(conn)

	// deadlineGen lets a stale read-deadline task from an earlier
	// iteration recognize it's been superseded: timer.Timer has no
	// cancel, so every iteration arms a fresh task, and a fired task
	// only actually closes the connection if no later iteration has
	// armed a newer one since.
	var deadlineGen atomic.Uint64

	for {
		select {
		case <-s.shutdown:
			return
		default:
		}

		if s.timer != nil && s.cfg.ReadDeadline > 0 {
			gen := deadlineGen.Add(1)
			s.timer.AddTask(s.cfg.ReadDeadline, func() {
				if deadlineGen.Load() == gen {
					conn.Close()
				}
			})
		}

		req, err := readRequest(cb)
		if err != nil {
			s.logf("connection from %s closed: %v", conn.PeerAddr(), err)
			return
		}
		s.logf("request %s %s from %s", req.Method, req.URL, conn.PeerAddr())

		handler := s.router.Find(req.URL)
		resp := handler(req)

		if _, err := conn.Write(resp.Encode()); err != nil {
			s.errorf("write to %s failed: %v", conn.PeerAddr(), err)
			return
		}
	}
}

// Stop signals the listener fiber (checked between accepts) and every
// worker fiber (checked between requests) to exit and closes the
// listening socket. A fiber already parked in Accept or Read is not
// woken by this; it sees the signal once that call returns. Idempotent.
func (s *Server) Stop() {
	s.once.Do(func() {
		close(s.shutdown)
		s.mu.Lock()
		ln := s.ln
		s.mu.Unlock()
		if ln != nil {
			ln.Close()
		}
	})
}
