package ping

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/woozymasta/craftping/internal/protocol"
	"github.com/woozymasta/craftping/internal/status"
)

const stubDoc = `{"description":{"text":"stub server"},"players":{"max":20,"online":2,` +
	`"sample":[{"name":"Alice"},{"name":"Bob"}]},"version":{"name":"1.20","protocol":763}}`

// startStub runs a minimal status server on the loopback that speaks just
// enough of the protocol for one full session: a status exchange on the
// first connection and a ping echo on the second.
func startStub(t *testing.T, doc string, conns int) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for i := 0; i < conns; i++ {
			conn, err := ln.Accept()
			if err != nil {
				return
			}

			f := protocol.NewFramer(conn, false)
			if i == 0 {
				serveStatus(f, doc)
			} else {
				servePong(f)
			}
			_ = conn.Close()
		}
		_ = ln.Close()
	}()

	return ln.Addr().String()
}

// serveStatus consumes handshake, status request and ping, then answers with
// the status response followed by the ping echo.
func serveStatus(f *protocol.Framer, doc string) {
	for i := 0; i < 2; i++ {
		if _, _, err := f.ReadPacket(); err != nil {
			return
		}
	}
	_, echo, err := f.ReadPacket()
	if err != nil {
		return
	}

	payload := append(protocol.EncodeVarInt(int32(len(doc))), doc...)
	_ = f.WritePacket(0x00, payload)
	_ = f.WritePacket(0x01, echo)
}

func servePong(f *protocol.Framer) {
	_, echo, err := f.ReadPacket()
	if err != nil {
		return
	}
	_ = f.WritePacket(0x01, echo)
}

func splitStubAddr(t *testing.T, addr string) (string, uint16) {
	t.Helper()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split %q: %v", addr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		t.Fatalf("parse port %q: %v", portStr, err)
	}

	return host, uint16(port)
}

func TestSessionRun(t *testing.T) {
	host, port := splitStubAddr(t, startStub(t, stubDoc, 2))

	timeout := 3 * time.Second
	res, err := New(host, port, Options{Timeout: timeout}).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	st := res.Status
	if st.Description != "stub server" {
		t.Errorf("Description = %q", st.Description)
	}
	if st.PlayersOnline != 2 || st.PlayersMax != 20 {
		t.Errorf("players = %d/%d, want 2/20", st.PlayersOnline, st.PlayersMax)
	}
	if len(st.Sample) != 2 || st.Sample[0] != "Alice" || st.Sample[1] != "Bob" {
		t.Errorf("Sample = %v", st.Sample)
	}
	if st.VersionName != "1.20" || st.VersionProtocol != 763 {
		t.Errorf("version = %q/%d", st.VersionName, st.VersionProtocol)
	}

	if !res.HasLatency {
		t.Fatal("latency not measured")
	}
	if res.Latency <= 0 || res.Latency >= timeout {
		t.Errorf("Latency = %v, want within (0, %v)", res.Latency, timeout)
	}
}

func TestSessionLatencyBestEffort(t *testing.T) {
	// Only one connection is served; the refinement dial hits a closed
	// listener and must degrade to an unknown latency, not an error.
	host, port := splitStubAddr(t, startStub(t, stubDoc, 1))

	res, err := New(host, port, Options{Timeout: 3 * time.Second}).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.HasLatency {
		t.Error("latency reported despite failed refinement connection")
	}
	if res.Status == nil || res.Status.Description != "stub server" {
		t.Error("status lost when refinement connection failed")
	}
}

func TestSessionMalformedStatus(t *testing.T) {
	// The stub declares one byte more than it sends in the JSON string;
	// the session must fail with a parse error, not a connection failure.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		f := protocol.NewFramer(conn, false)
		for i := 0; i < 3; i++ {
			if _, _, err := f.ReadPacket(); err != nil {
				return
			}
		}

		payload := append(protocol.EncodeVarInt(int32(len(stubDoc)+1)), stubDoc...)
		_ = f.WritePacket(0x00, payload)
		_ = f.WritePacket(0x01, nil)
	}()

	host, port := splitStubAddr(t, ln.Addr().String())
	_, err = New(host, port, Options{Timeout: 3 * time.Second}).Run()
	if !errors.Is(err, status.ErrLengthMismatch) {
		t.Fatalf("error = %v, want %v", err, status.ErrLengthMismatch)
	}

	var cerr *ConnectError
	if errors.As(err, &cerr) {
		t.Error("protocol failure misreported as connection failure")
	}
}

func TestSessionConnectRefused(t *testing.T) {
	// Grab a port that is certainly closed.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, port := splitStubAddr(t, ln.Addr().String())
	_ = ln.Close()

	_, err = New(host, port, Options{Timeout: time.Second}).Run()

	var cerr *ConnectError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v (%T), want *ConnectError", err, err)
	}
	if cerr.Addr == "" || cerr.Err == nil {
		t.Errorf("ConnectError missing context: %+v", cerr)
	}
}

func TestSessionHostTooLong(t *testing.T) {
	_, err := New(strings.Repeat("a", 32768), DefaultPort, Options{}).Run()
	if !errors.Is(err, ErrHostTooLong) {
		t.Fatalf("error = %v, want %v", err, ErrHostTooLong)
	}

	// Exactly at the limit the host must pass validation and reach the
	// dialer, which then fails on the nonsense name.
	_, err = New(strings.Repeat("a", 32767), DefaultPort, Options{Timeout: time.Second}).Run()
	var cerr *ConnectError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *ConnectError past host validation", err)
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		target  string
		host    string
		port    uint16
		wantErr bool
	}{
		{"example.com", "example.com", 25565, false},
		{"example.com:1234", "example.com", 1234, false},
		{"127.0.0.1:25566", "127.0.0.1", 25566, false},
		{"example.com:notaport", "", 0, true},
		{"example.com:99999", "", 0, true},
		{":25565", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			host, port, err := Resolve(ctx, tt.target, false)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Resolve(%q) succeeded, want error", tt.target)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.target, err)
			}
			if host != tt.host || port != tt.port {
				t.Errorf("Resolve(%q) = %s:%d, want %s:%d", tt.target, host, port, tt.host, tt.port)
			}
		})
	}
}
