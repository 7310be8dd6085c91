package peer

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/Benestar/go-chord/internal/wire"
)

// Server accepts peer connections on a TCP listener and dispatches each
// one through a bounded worker pool, per spec §4.5/§5: one goroutine per
// accepted connection, capped by a semaphore rather than an unbounded
// goroutine-per-connection fan-out.
type Server struct {
	Handler *Handler
	Workers int64
	Timeout time.Duration
	Log     zerolog.Logger

	listener net.Listener
	sem      *semaphore.Weighted
}

// NewServer creates a Server with the given worker pool width and
// per-connection idle timeout.
func NewServer(handler *Handler, workers int64, timeout time.Duration, log zerolog.Logger) *Server {
	if workers <= 0 {
		workers = 4
	}
	return &Server{
		Handler: handler,
		Workers: workers,
		Timeout: timeout,
		Log:     log,
		sem:     semaphore.NewWeighted(workers),
	}
}

// Listen binds addr and starts accepting connections. Serve blocks until
// ctx is canceled or the listener fails.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound local address, valid after a successful Listen.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the accept loop until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Temporary() {
				continue
			}
			return err
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			_ = conn.Close()
			return ctx.Err()
		}

		go func() {
			defer s.sem.Release(1)
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		if s.Timeout > 0 {
			if err := conn.SetDeadline(time.Now().Add(s.Timeout)); err != nil {
				return
			}
		}

		frame, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}

		msg, err := wire.Decode(frame)
		if err != nil {
			s.Log.Debug().Err(err).Msg("peer: framing error, closing connection")
			return
		}

		reply, err := s.Handler.Dispatch(msg)
		if err != nil {
			s.Log.Debug().Err(err).Msg("peer: dispatch error, closing connection")
			return
		}

		replyFrame, err := wire.Encode(reply)
		if err != nil {
			s.Log.Warn().Err(err).Msg("peer: failed to encode reply")
			return
		}

		if err := wire.WriteFrame(conn, replyFrame); err != nil {
			return
		}
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
