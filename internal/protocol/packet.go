package protocol

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// MaxPacketLen caps the declared packet length. Real status responses stay
// far below 1 MiB even with a favicon attached.
const MaxPacketLen = 1 << 20

// Framer reads and writes packets over a single stream connection. Each
// packet on the wire is VarInt(len(id+payload)) | VarInt(id) | payload.
type Framer struct {
	rw    io.ReadWriter
	debug bool
}

// NewFramer binds a framer to a stream. With debug set every frame body is
// dumped to the log as spaced hex.
func NewFramer(rw io.ReadWriter, debug bool) *Framer {
	return &Framer{rw: rw, debug: debug}
}

// WritePacket frames id and payload and sends them in one write.
func (f *Framer) WritePacket(id int32, payload []byte) error {
	body := append(EncodeVarInt(id), payload...)
	if f.debug {
		log.Debug().Msgf("<-- %s", hexDump(body))
	}

	frame := append(EncodeVarInt(int32(len(body))), body...)
	if _, err := f.rw.Write(frame); err != nil {
		return fmt.Errorf("write packet 0x%02x: %w", id, err)
	}

	return nil
}

// ReadPacket reads one whole packet and returns its id and payload. The
// payload read loops until all declared bytes arrived, so fragmented
// delivery by the transport is fine; a stream that ends early is not.
func (f *Framer) ReadPacket() (int32, []byte, error) {
	length, _, err := ReadVarInt(f.rw)
	if err != nil {
		return 0, nil, fmt.Errorf("read packet length: %w", err)
	}
	if length > MaxPacketLen {
		return 0, nil, fmt.Errorf("%w: %d", ErrPacketTooBig, length)
	}

	id, idSize, err := ReadVarInt(f.rw)
	if err != nil {
		return 0, nil, fmt.Errorf("read packet id: %w", err)
	}

	payloadLen := int(length) - idSize
	if payloadLen < 0 {
		return 0, nil, fmt.Errorf("%w: length %d, id takes %d bytes", ErrNegativeLength, length, idSize)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(f.rw, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, fmt.Errorf("read packet payload: %w", err)
	}

	if f.debug {
		log.Debug().Msgf("--> %s", hexDump(payload))
	}

	return id, payload, nil
}

// hexDump renders data as space-separated hex octets for frame tracing.
func hexDump(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", b)
	}

	return sb.String()
}
