// Package ping drives the server list ping exchange against a single server:
// connect, handshake, status request, response parse and a latency
// measurement on a fresh connection.
package ping

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/craftping/internal/protocol"
	"github.com/woozymasta/craftping/internal/status"
)

const (
	packetHandshake int32 = 0x00
	packetStatus    int32 = 0x00
	packetPing      int32 = 0x01

	// handshakeProtocol declares the client protocol version. -1 stands for
	// "unknown", which status servers accept.
	handshakeProtocol = -1

	// nextStateStatus switches the connection into the status state.
	nextStateStatus = 1

	// maxHostLen is the protocol limit for the handshake address string,
	// in UTF-8 bytes.
	maxHostLen = 32767

	// DefaultTimeout bounds connection establishment and each exchange.
	DefaultTimeout = 5 * time.Second
)

// ErrHostTooLong is returned before any network I/O when the hostname does
// not fit the handshake string field.
var ErrHostTooLong = errors.New("hostname exceeds 32767 bytes")

// ErrNoStatus is returned when the server answered the exchange without ever
// sending a status response packet.
var ErrNoStatus = errors.New("server sent no status response")

// ConnectError reports a failure to establish a connection, as opposed to a
// protocol failure on an already established one.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %s", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Options configures a query session.
type Options struct {
	// Timeout bounds the TCP dial and is also set as the connection
	// deadline for the rest of the exchange.
	Timeout time.Duration

	// Debug makes the packet framer dump every frame to the log.
	Debug bool
}

// Result is what one completed session yields.
type Result struct {
	Status *status.Status

	// Latency is the round trip measured on the second connection. Only
	// meaningful when HasLatency is set; the refinement connection is best
	// effort and its failure leaves the latency unknown.
	Latency    time.Duration
	HasLatency bool
}

// Session queries one server once. Sessions are single use and share no
// state with each other.
type Session struct {
	host string
	opts Options
	port uint16
}

// New prepares a session for host:port.
func New(host string, port uint16, opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Session{host: host, port: port, opts: opts}
}

// Run performs the full exchange and returns the parsed status plus the
// latency measurement. Connection failures on the first connection come back
// as *ConnectError; framing and parse failures after a successful dial are
// returned as-is.
func (s *Session) Run() (*Result, error) {
	if len(s.host) > maxHostLen {
		return nil, ErrHostTooLong
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(int(s.port)))

	st, err := s.statusRound(addr)
	if err != nil {
		return nil, err
	}

	res := &Result{Status: st}

	// The first round trip is polluted by connection setup, so the
	// definitive sample is taken on a fresh connection. Failing here only
	// costs the latency value.
	if latency, err := s.pingRound(addr); err != nil {
		log.Debug().Err(err).Str("addr", addr).Msg("Latency refinement failed")
	} else {
		res.Latency = latency
		res.HasLatency = true
	}

	return res, nil
}

// statusRound runs the first connection: handshake, status request and ping
// go out back to back, then exactly two packets come back of which the one
// with the status id carries the response document.
func (s *Session) statusRound(addr string) (*status.Status, error) {
	conn, err := s.dial(addr)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	f := protocol.NewFramer(conn, s.opts.Debug)

	if err := f.WritePacket(packetHandshake, s.handshakePayload()); err != nil {
		return nil, err
	}
	if err := f.WritePacket(packetStatus, nil); err != nil {
		return nil, err
	}
	if err := f.WritePacket(packetPing, pingPayload()); err != nil {
		return nil, err
	}

	var st *status.Status
	for i := 0; i < 2; i++ {
		id, payload, err := f.ReadPacket()
		if err != nil {
			return nil, err
		}
		// The second packet is the ping echo; its timing includes the
		// handshake exchange, so it is read and discarded.
		if id != packetStatus {
			continue
		}
		if st, err = status.Parse(payload); err != nil {
			return nil, err
		}
	}

	if st == nil {
		return nil, ErrNoStatus
	}

	return st, nil
}

// pingRound opens a fresh connection, sends a single ping and times the
// single packet coming back.
func (s *Session) pingRound(addr string) (time.Duration, error) {
	conn, err := s.dial(addr)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	f := protocol.NewFramer(conn, s.opts.Debug)

	if err := f.WritePacket(packetPing, pingPayload()); err != nil {
		return 0, err
	}

	start := time.Now()
	if _, _, err := f.ReadPacket(); err != nil {
		return 0, err
	}

	return time.Since(start), nil
}

func (s *Session) dial(addr string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, s.opts.Timeout)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	_ = conn.SetDeadline(time.Now().Add(s.opts.Timeout))

	return conn, nil
}

// handshakePayload builds the handshake body: protocol version, address
// string, big-endian port and the next-state selector.
func (s *Session) handshakePayload() []byte {
	payload := protocol.EncodeVarInt(handshakeProtocol)
	payload = append(payload, protocol.EncodeVarInt(int32(len(s.host)))...)
	payload = append(payload, s.host...)
	payload = binary.BigEndian.AppendUint16(payload, s.port)
	payload = append(payload, protocol.EncodeVarInt(nextStateStatus)...)

	return payload
}

// pingPayload is an opaque timestamp the server echoes back unchanged.
// Nanosecond resolution keeps successive payloads distinct.
func pingPayload() []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(time.Now().UnixNano()))
}
