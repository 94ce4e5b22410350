package frame

import (
	"bytes"
	"net"
	"testing"
)

func TestWriteReadHelloRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	addr := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4369}
	codec := NewCodec(&buf, 1<<16)

	hello := NewHello("node1@host", addr, []byte("s3cr3t"), 1)
	if err := codec.WriteFrame(hello); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := codec.ReadFrame()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Tag != TagHello {
		t.Fatalf("tag = %v, want Hello", got.Tag)
	}
	if got.Hello.Name != "node1@host" {
		t.Fatalf("name = %q", got.Hello.Name)
	}
	if got.Hello.Version != 1 {
		t.Fatalf("version = %d", got.Hello.Version)
	}
	if !bytes.Equal(got.Hello.Cookie, []byte("s3cr3t")) {
		t.Fatalf("cookie = %q", got.Hello.Cookie)
	}
	tcp, ok := got.Hello.BroadcastAddress.(*net.TCPAddr)
	if !ok || !tcp.IP.Equal(addr.IP) || tcp.Port != addr.Port {
		t.Fatalf("addr = %v, want %v", got.Hello.BroadcastAddress, addr)
	}
}

func TestWriteReadUserFrame(t *testing.T) {
	var buf bytes.Buffer
	codec := NewCodec(&buf, 1<<16)

	f := NewUser(42, []byte("payload"))
	if err := codec.WriteFrame(f); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := codec.ReadFrame()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.TargetSerial() != 42 {
		t.Fatalf("target serial = %d, want 42", got.TargetSerial())
	}
	if string(got.UserPayload()) != "payload" {
		t.Fatalf("payload = %q", got.UserPayload())
	}
}

func TestPingPongRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	codec := NewCodec(&buf, 1<<16)

	if err := codec.WriteFrame(Ping()); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if err := codec.WriteFrame(Pong()); err != nil {
		t.Fatalf("write pong: %v", err)
	}

	got, err := codec.ReadFrame()
	if err != nil || got.Tag != TagPing {
		t.Fatalf("expected ping, got %v, err %v", got.Tag, err)
	}
	got, err = codec.ReadFrame()
	if err != nil || got.Tag != TagPong {
		t.Fatalf("expected pong, got %v, err %v", got.Tag, err)
	}
}

func TestReadFrameRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	codec := NewCodec(&buf, 4)

	if err := codec.WriteFrame(NewUser(1, []byte("too long for the limit"))); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := codec.ReadFrame(); err != ErrFrameTooLarge {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}
