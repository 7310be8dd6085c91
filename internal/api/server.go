package api

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/Benestar/go-chord/internal/apiproto"
	"github.com/Benestar/go-chord/internal/node"
)

// Server is the northbound listener local clients use for DHT PUT/GET,
// distinct from the peer-to-peer listener: one connection per request,
// decoded with apiproto rather than the peer wire protocol.
type Server struct {
	Node    *node.Node
	Log     zerolog.Logger
	Timeout time.Duration
	Events  Broadcaster

	listener net.Listener
}

// NewServer creates a Server bound to n. events may be nil, in which case
// no status notifications are emitted.
func NewServer(n *node.Node, timeout time.Duration, log zerolog.Logger, events Broadcaster) *Server {
	return &Server{Node: n, Log: log, Timeout: timeout, Events: events}
}

// Listen binds addr.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound local address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until ctx is canceled.
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

		go s.handleConn(ctx, conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if s.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.Timeout))
	}

	frame, err := apiproto.ReadFrame(conn)
	if err != nil {
		return
	}

	msg, err := apiproto.Decode(frame)
	if err != nil {
		s.Log.Debug().Err(err).Msg("api: framing error, closing connection")
		return
	}

	reply := s.dispatch(ctx, msg)

	out, err := apiproto.Encode(reply)
	if err != nil {
		s.Log.Warn().Err(err).Msg("api: failed to encode reply")
		return
	}
	_ = apiproto.WriteFrame(conn, out)
}

// dispatch implements api_put/api_get: a PUT stores Value across
// Replication storage identifiers and a GET searches for the first
// matching replica, per spec §4.8.
func (s *Server) dispatch(ctx context.Context, msg apiproto.Message) apiproto.Message {
	switch m := msg.(type) {
	case apiproto.DhtPutMsg:
		if err := s.Node.Put(ctx, m.Key, m.TTL, m.Replication, m.Value); err != nil {
			s.Log.Debug().Err(err).Msg("api: put failed")
			return apiproto.DhtFailureMsg{Key: m.Key}
		}
		s.emit(EventStorage, "put "+hexKey(m.Key))
		return apiproto.DhtSuccessMsg{Key: m.Key}

	case apiproto.DhtGetMsg:
		value, err := s.Node.Get(ctx, m.Key)
		if err != nil {
			s.Log.Debug().Err(err).Msg("api: get miss")
			return apiproto.DhtFailureMsg{Key: m.Key}
		}
		return apiproto.DhtSuccessMsg{Key: m.Key, Value: value}

	default:
		s.Log.Warn().Msg("api: unexpected message type from client")
		return apiproto.DhtFailureMsg{}
	}
}

func (s *Server) emit(eventType, message string) {
	if s.Events == nil {
		return
	}
	self := s.Node.Routing.Self()
	s.Events.Broadcast(Event{
		Type:      eventType,
		NodeID:    self.String(),
		Timestamp: time.Now().Unix(),
		Message:   message,
	})
}

func hexKey(key [32]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 8)
	for i := 0; i < 4; i++ {
		out[i*2] = hexDigits[key[i]>>4]
		out[i*2+1] = hexDigits[key[i]&0xf]
	}
	return string(out) + "…"
}
