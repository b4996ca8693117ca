// Command echoserver runs a loopback TCP echo server on top of the
// fiber scheduler end to end: a listener fiber accepts connections
// and spawns one echo fiber per connection, with a flag-and-signal
// driven shutdown.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Majianb/Mjber/ioruntime"
	"github.com/Majianb/Mjber/logging"
	"github.com/Majianb/Mjber/reactor"
	"github.com/Majianb/Mjber/socket"
)

func main() {
	addr := flag.String("addr", "127.0.0.1", "listen address")
	port := flag.Uint("port", 9000, "listen port")
	threads := flag.Int("threads", 2, "scheduler worker thread count")
	flag.Parse()

	logger := logging.New(1024, logging.NewConsoleAppender())
	defer logger.Close()

	react, err := reactor.New()
	if err != nil {
		log.Fatalf("reactor.New: %v", err)
	}

	sched, err := ioruntime.New(
		ioruntime.ThreadCount(*threads),
		ioruntime.WithReactor(react),
		ioruntime.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("ioruntime.New: %v", err)
	}
	defer sched.Stop()

	_, err = sched.Spawn(func(h *ioruntime.Handle) {
		ln, err := socket.Listen(h, socket.TCP, *addr, uint16(*port), 128, socket.ReuseAddr())
		if err != nil {
			logger.Errorf("listen failed: %v", err)
			return
		}
		defer ln.Close()
		logger.Infof("echo server listening on %s:%d", *addr, ln.Port())

		for {
			conn, err := ln.Accept()
			if err != nil {
				logger.Errorf("accept failed: %v", err)
				return
			}
			logger.Infof("accepted connection from %s", conn.PeerAddr())

			if _, err := sched.Spawn(func(wh *ioruntime.Handle) {
				echo(logger, conn)
			}); err != nil {
				logger.Errorf("spawn worker failed: %v", err)
				conn.Close()
			}
		}
	})
	if err != nil {
		log.Fatalf("spawn listener: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Infof("shutting down")
}

func echo(logger *logging.Logger, conn *socket.Socket) {
	defer conn.Close()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			logger.Infof("connection from %s closed: %v", conn.PeerAddr(), err)
			return
		}
		if _, err := conn.Write(buf[:n]); err != nil {
			logger.Errorf("write to %s failed: %v", conn.PeerAddr(), err)
			return
		}
	}
}
