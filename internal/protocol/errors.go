package protocol

import "errors"

var (
	// ErrVarIntTooBig is returned when a VarInt runs past 5 bytes, which
	// cannot happen for a well-formed 32-bit value.
	ErrVarIntTooBig = errors.New("varint too large for 32 bits")

	// ErrNegativeLength is returned when a packet declares a length smaller
	// than its own id field.
	ErrNegativeLength = errors.New("packet length smaller than id size")

	// ErrPacketTooBig is returned when a packet declares a length beyond any
	// sane status response. Guards against reading garbage as a huge frame.
	ErrPacketTooBig = errors.New("declared packet length exceeds limit")
)
