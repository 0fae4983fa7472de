package protocol

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
)

func TestEncodeVarInt(t *testing.T) {
	tests := []struct {
		name     string
		value    int32
		expected []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"one", 1, []byte{0x01}},
		{"127", 127, []byte{0x7f}},
		{"128", 128, []byte{0x80, 0x01}},
		{"16383", 16383, []byte{0xff, 0x7f}},
		{"2097151", 2097151, []byte{0xff, 0xff, 0x7f}},
		{"max int32", math.MaxInt32, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
		{"minus one", -1, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
		{"min int32", math.MinInt32, []byte{0x80, 0x80, 0x80, 0x80, 0x08}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeVarInt(tt.value)
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("EncodeVarInt(%d) = %x, want %x", tt.value, got, tt.expected)
			}
			if size := VarIntSize(tt.value); size != len(tt.expected) {
				t.Errorf("VarIntSize(%d) = %d, want %d", tt.value, size, len(tt.expected))
			}
		})
	}
}

func TestDecodeVarInt(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		value     int32
		remainder int
		wantErr   error
	}{
		{"zero", []byte{0x00}, 0, 0, nil},
		{"128 with tail", []byte{0x80, 0x01, 0xaa, 0xbb}, 128, 2, nil},
		{"minus one", []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, -1, 0, nil},
		{"empty", nil, 0, 0, io.ErrUnexpectedEOF},
		{"cut short", []byte{0x80}, 0, 0, io.ErrUnexpectedEOF},
		{"overflow", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, 0, 0, ErrVarIntTooBig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, rest, err := DecodeVarInt(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeVarInt(%x) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeVarInt(%x) unexpected error: %v", tt.input, err)
			}
			if value != tt.value {
				t.Errorf("DecodeVarInt(%x) = %d, want %d", tt.input, value, tt.value)
			}
			if len(rest) != tt.remainder {
				t.Errorf("DecodeVarInt(%x) left %d bytes, want %d", tt.input, len(rest), tt.remainder)
			}
		})
	}
}

func TestReadVarInt(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		value    int32
		consumed int
		wantErr  error
	}{
		{"zero", []byte{0x00}, 0, 1, nil},
		{"two bytes", []byte{0x80, 0x01}, 128, 2, nil},
		{"minus one", []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, -1, 5, nil},
		{"eof", nil, 0, 0, io.EOF},
		{"cut short", []byte{0xff, 0xff}, 0, 0, io.ErrUnexpectedEOF},
		{"overflow", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, 0, 0, ErrVarIntTooBig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, n, err := ReadVarInt(bytes.NewReader(tt.input))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReadVarInt(%x) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadVarInt(%x) unexpected error: %v", tt.input, err)
			}
			if value != tt.value {
				t.Errorf("ReadVarInt(%x) = %d, want %d", tt.input, value, tt.value)
			}
			if n != tt.consumed {
				t.Errorf("ReadVarInt(%x) consumed %d bytes, want %d", tt.input, n, tt.consumed)
			}
		})
	}
}

func TestVarIntRoundTrip(t *testing.T) {
	values := []int32{
		0, 1, 2, 127, 128, 255, 16383, 16384, 2097151, 2097152,
		math.MaxInt32, -1, -2, -127, -128, -25565, math.MinInt32,
	}

	for _, v := range values {
		encoded := EncodeVarInt(v)

		decoded, rest, err := DecodeVarInt(encoded)
		if err != nil {
			t.Fatalf("buffer round trip of %d failed: %v", v, err)
		}
		if decoded != v || len(rest) != 0 {
			t.Errorf("buffer round trip: got %d (rest %d), want %d", decoded, len(rest), v)
		}

		streamed, n, err := ReadVarInt(bytes.NewReader(encoded))
		if err != nil {
			t.Fatalf("stream round trip of %d failed: %v", v, err)
		}
		if streamed != v || n != len(encoded) {
			t.Errorf("stream round trip: got %d after %d bytes, want %d after %d", streamed, n, v, len(encoded))
		}
	}
}
