package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
)

// ConnectionHandler is called for each new telnet connection. The handler
// runs the connection and closes it.
type ConnectionHandler func(ctx context.Context, tc *TelnetConn)

// Listener accepts incoming telnet connections.
type Listener struct {
	addr    string
	handler ConnectionHandler
}

// NewListener creates a new TCP listener for telnet connections.
func NewListener(port int, handler ConnectionHandler) *Listener {
	return &Listener{
		addr:    fmt.Sprintf(":%d", port),
		handler: handler,
	}
}

// ListenAndServe accepts connections until ctx is cancelled, then waits for
// running handlers to return.
func (l *Listener) ListenAndServe(ctx context.Context) error {
	return serve(ctx, l.addr, "Telnet", func(ctx context.Context, conn net.Conn) {
		tc := NewTelnetConn(conn)
		if err := tc.Negotiate(); err != nil {
			log.Printf("Telnet negotiation error from %s: %v", tc.RemoteAddr(), err)
			tc.Close()
			return
		}
		l.handler(ctx, tc)
	})
}

// serve runs an accept loop shared by the telnet and SSH listeners.
func serve(ctx context.Context, addr, name string, handle func(context.Context, net.Conn)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	log.Printf("%s server listening on %s", name, addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("%s accept error: %v", name, err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle(ctx, conn)
		}()
	}
}
