package node

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nodecrew/actorkit"
)

func testConfig(name string, cookie []byte) Config {
	cfg := DefaultConfig(name)
	cfg.Cookie = cookie
	cfg.HandshakeTimeout = time.Second
	cfg.HeartbeatInterval = 50 * time.Millisecond
	cfg.HeartbeatTimeout = 200 * time.Millisecond
	return cfg
}

func dialPipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()
	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	server := <-accepted
	return server, client
}

func TestSessionHandshakeSucceeds(t *testing.T) {
	serverConn, clientConn := dialPipe(t)

	n1 := actorkit.NewNode(context.Background(), "alpha")
	n2 := actorkit.NewNode(context.Background(), "beta")
	ls1 := StartLocalSupervisor(n1, testConfig("alpha", []byte("cookie")))
	ls2 := StartLocalSupervisor(n2, testConfig("beta", []byte("cookie")))

	type result struct {
		pid actorkit.Pid
		err error
	}
	r1 := make(chan result, 1)
	r2 := make(chan result, 1)
	go func() {
		pid, err := StartSession(ls1, serverConn)
		r1 <- result{pid, err}
	}()
	go func() {
		pid, err := StartSession(ls2, clientConn)
		r2 <- result{pid, err}
	}()

	got1 := <-r1
	got2 := <-r2
	if got1.err != nil {
		t.Fatalf("alpha side: %v", got1.err)
	}
	if got2.err != nil {
		t.Fatalf("beta side: %v", got2.err)
	}
	if got1.pid.IsZero() || got2.pid.IsZero() {
		t.Fatalf("expected non-zero session supervisor pids")
	}

	if _, ok := ls1.Registry.Lookup("beta"); !ok {
		t.Fatalf("alpha's registry has no record for beta")
	}
	if _, ok := ls2.Registry.Lookup("alpha"); !ok {
		t.Fatalf("beta's registry has no record for alpha")
	}
}

func TestSessionHandshakeRejectsCookieMismatch(t *testing.T) {
	serverConn, clientConn := dialPipe(t)

	n1 := actorkit.NewNode(context.Background(), "alpha")
	n2 := actorkit.NewNode(context.Background(), "beta")
	ls1 := StartLocalSupervisor(n1, testConfig("alpha", []byte("right-cookie")))
	ls2 := StartLocalSupervisor(n2, testConfig("beta", []byte("wrong-cookie")))

	type result struct {
		err error
	}
	r1 := make(chan result, 1)
	r2 := make(chan result, 1)
	go func() {
		_, err := StartSession(ls1, serverConn)
		r1 <- result{err}
	}()
	go func() {
		_, err := StartSession(ls2, clientConn)
		r2 <- result{err}
	}()

	got1 := <-r1
	got2 := <-r2
	if got1.err == nil {
		t.Fatalf("expected alpha side to reject cookie mismatch")
	}
	if got2.err == nil {
		t.Fatalf("expected beta side to reject cookie mismatch")
	}
}

func TestSessionHeartbeatKeepsConnectionAlive(t *testing.T) {
	serverConn, clientConn := dialPipe(t)

	n1 := actorkit.NewNode(context.Background(), "alpha")
	n2 := actorkit.NewNode(context.Background(), "beta")
	ls1 := StartLocalSupervisor(n1, testConfig("alpha", nil))
	ls2 := StartLocalSupervisor(n2, testConfig("beta", nil))

	go StartSession(ls1, serverConn)
	pid2, err := StartSession(ls2, clientConn)
	if err != nil {
		t.Fatalf("beta side: %v", err)
	}
	if pid2.IsZero() {
		t.Fatalf("expected non-zero pid")
	}

	// Heartbeat interval is 50ms and timeout 200ms; surviving several
	// multiples of the interval without the session tearing down shows
	// Ping/Pong are actually being exchanged rather than relying on
	// silence.
	time.Sleep(300 * time.Millisecond)

	if _, ok := ls2.Registry.Lookup("alpha"); !ok {
		t.Fatalf("session died despite heartbeat traffic")
	}
}
