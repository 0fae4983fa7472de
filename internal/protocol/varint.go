// Package protocol implements the wire format of the Minecraft server list
// ping: VarInt encoding and VarInt-length-prefixed packet framing.
package protocol

import (
	"fmt"
	"io"
)

// maxVarIntBytes is the longest valid encoding of a 32-bit VarInt.
// 5 groups of 7 bits cover the full range, including negative values.
const maxVarIntBytes = 5

// EncodeVarInt encodes v into its VarInt form: 7 data bits per byte, high bit
// set on every byte except the last. The value is framed as two's-complement,
// so negative numbers always occupy 5 bytes.
func EncodeVarInt(v int32) []byte {
	u := uint32(v)
	out := make([]byte, 0, maxVarIntBytes)

	for {
		part := byte(u & 0x7f)
		u >>= 7
		if u == 0 {
			return append(out, part)
		}
		out = append(out, part|0x80)
	}
}

// VarIntSize returns the number of bytes EncodeVarInt produces for v.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u >>= 7; u != 0; u >>= 7 {
		n++
	}

	return n
}

// DecodeVarInt decodes a VarInt from the front of buf and returns the value
// together with the unconsumed remainder.
func DecodeVarInt(buf []byte) (int32, []byte, error) {
	var value uint32

	for i := 0; i < maxVarIntBytes; i++ {
		if len(buf) == 0 {
			return 0, nil, fmt.Errorf("varint: %w", io.ErrUnexpectedEOF)
		}

		b := buf[0]
		buf = buf[1:]
		value |= uint32(b&0x7f) << (7 * i)

		if b&0x80 == 0 {
			return int32(value), buf, nil
		}
	}

	return 0, nil, ErrVarIntTooBig
}

// ReadVarInt decodes a VarInt from r one byte at a time and returns the value
// and the number of bytes consumed.
func ReadVarInt(r io.Reader) (int32, int, error) {
	var value uint32
	var one [1]byte

	for i := 0; i < maxVarIntBytes; i++ {
		if _, err := io.ReadFull(r, one[:]); err != nil {
			if err == io.EOF && i > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, i, fmt.Errorf("varint: %w", err)
		}

		b := one[0]
		value |= uint32(b&0x7f) << (7 * i)

		if b&0x80 == 0 {
			return int32(value), i + 1, nil
		}
	}

	return 0, maxVarIntBytes, ErrVarIntTooBig
}
