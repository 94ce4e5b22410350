package node

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/nodecrew/actorkit"
	"github.com/nodecrew/actorkit/frame"
)

type sendPongCmd struct{}

// StartSession runs the handshake over conn and, on success, spawns the
// session supervisor and returns its Pid. Both the accepter and the
// connector role call this — per §4.G "the connector role is symmetric",
// both sides send Hello first and then await the peer's.
func StartSession(ls *LocalSupervisor, conn net.Conn) (actorkit.Pid, error) {
	codec := frame.NewCodec(conn, ls.Config.MaxFrameLen)

	deadline := time.Now().Add(ls.Config.HandshakeTimeout)
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return actorkit.Pid{}, err
	}
	hello := frame.NewHello(ls.Config.Name, ls.Config.BroadcastAddress, ls.Config.Cookie, ls.Config.Version)
	if err := codec.WriteFrame(hello); err != nil {
		conn.Close()
		return actorkit.Pid{}, fmt.Errorf("node: sending hello: %w", err)
	}

	if err := conn.SetReadDeadline(deadline); err != nil {
		return actorkit.Pid{}, err
	}
	peerFrame, err := codec.ReadFrame()
	if err != nil {
		conn.Close()
		return actorkit.Pid{}, fmt.Errorf("node: awaiting peer hello: %w", err)
	}
	if peerFrame.Tag != frame.TagHello {
		conn.Close()
		return actorkit.Pid{}, fmt.Errorf("%w: expected hello, got %v", frame.ErrProtocol, peerFrame.Tag)
	}
	if err := ls.validateHello(peerFrame.Hello); err != nil {
		conn.Close()
		ls.Log.Error("handshake rejected", "peer", peerFrame.Hello.Name, "err", err)
		return actorkit.Pid{}, err
	}

	pid, err := startSessionSupervisor(ls, conn, codec, peerFrame.Hello)
	if err != nil {
		ls.Log.Error("session start failed", "peer", peerFrame.Hello.Name, "err", err)
		return actorkit.Pid{}, err
	}
	ls.Log.Info("session established", "peer", peerFrame.Hello.Name)
	return pid, nil
}

func (ls *LocalSupervisor) validateHello(h frame.Hello) error {
	if h.Name == "" {
		return fmt.Errorf("%w: hello with empty name", frame.ErrProtocol)
	}
	if h.Version != ls.Config.Version {
		return fmt.Errorf("%w: version mismatch (peer %d, local %d)", frame.ErrProtocol, h.Version, ls.Config.Version)
	}
	if len(ls.Config.Cookie) > 0 && !bytes.Equal(h.Cookie, ls.Config.Cookie) {
		return fmt.Errorf("%w: cookie mismatch", frame.ErrProtocol)
	}
	return nil
}

// startSessionSupervisor registers the peer into the registry, links to
// the local supervisor, spawns sender and receiver as linked children,
// and installs them into the registry, then idles waiting for SendPong
// requests from the receiver. It never traps exits: a sender or receiver
// crash terminates it, which via the same links tears down the other
// worker and (being linked) is observed, not propagated, by the local
// supervisor.
func startSessionSupervisor(ls *LocalSupervisor, conn net.Conn, codec *frame.Codec, hello frame.Hello) (actorkit.Pid, error) {
	accepted := make(chan error, 1)

	pid := ls.Node.Spawn(func(p *actorkit.Process) actorkit.ExitReason {
		if !ls.Registry.Accept(hello.Name, hello.BroadcastAddress, p.Self()) {
			conn.Close()
			accepted <- fmt.Errorf("node: session already open for %q", hello.Name)
			return actorkit.Custom("duplicate_node")
		}

		p.Link(ls.Process)

		sender := ls.Node.SpawnLink(runSender(ls, conn, codec, p.Self()), p.Self())
		receiver := ls.Node.SpawnLink(runReceiver(ls, conn, codec, p.Self()), p.Self())
		ls.Registry.SetSendRecv(hello.Name, sender, receiver)
		ls.Registry.WatchForCleanup(hello.Name, p.Self())

		accepted <- nil

		for {
			msg, err := actorkit.Select[sendPongCmd](p.Context(), p)
			if err != nil {
				conn.Close()
				ls.Log.Info("session closed", "peer", hello.Name)
				return actorkit.Normal
			}
			if msg.IsUser {
				_ = p.Send(sender, sendPongCmd{})
			}
		}
	})

	if err := <-accepted; err != nil {
		return actorkit.Pid{}, err
	}
	return pid, nil
}

// runSender repeatedly awaits a frame to write with a selective-receive
// timeout of heartbeat_interval; on timeout it emits a Ping and loops. A
// write error terminates the sender, which (via its link to the session
// supervisor) terminates the whole session.
func runSender(ls *LocalSupervisor, conn net.Conn, codec *frame.Codec, supervisor actorkit.Pid) actorkit.Body {
	return func(p *actorkit.Process) actorkit.ExitReason {
		interval := ls.Config.HeartbeatInterval
		for {
			ctx, cancel := context.WithTimeout(p.Context(), interval)
			msg, err := actorkit.Select[any](ctx, p)
			cancel()

			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					if werr := writeWithDeadline(conn, codec, frame.Ping(), interval); werr != nil {
						return actorkit.Custom(werr.Error())
					}
					continue
				}
				return actorkit.Normal
			}

			switch req := msg.User.(type) {
			case senderMsg:
				f := frame.NewUser(req.frame.targetSerial, req.frame.payload)
				if werr := writeWithDeadline(conn, codec, f, interval); werr != nil {
					return actorkit.Custom(werr.Error())
				}
			case sendPongCmd:
				if werr := writeWithDeadline(conn, codec, frame.Pong(), interval); werr != nil {
					return actorkit.Custom(werr.Error())
				}
			}
		}
	}
}

func writeWithDeadline(conn net.Conn, codec *frame.Codec, f frame.Frame, timeout time.Duration) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return codec.WriteFrame(f)
}

// runReceiver repeatedly reads the next frame with timeout
// heartbeat_timeout. On timeout or read error it terminates; on Ping it
// notifies the session supervisor so the reply goes out through the
// sender (the receiver never writes directly); on Pong it takes no action
// beyond the read deadline already reset for it; on User it demultiplexes to the addressed local process. A
// Hello received mid-session is a protocol error.
func runReceiver(ls *LocalSupervisor, conn net.Conn, codec *frame.Codec, supervisor actorkit.Pid) actorkit.Body {
	return func(p *actorkit.Process) actorkit.ExitReason {
		timeout := ls.Config.HeartbeatTimeout
		for {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				return actorkit.Custom(err.Error())
			}
			f, err := codec.ReadFrame()
			if err != nil {
				return actorkit.Custom(err.Error())
			}

			switch f.Tag {
			case frame.TagHello:
				return actorkit.Custom(frame.ErrProtocol.Error())
			case frame.TagPing:
				_ = ls.Node.SendFrom(actorkit.Pid{}, supervisor, sendPongCmd{})
			case frame.TagPong:
				// Liveness observed; nothing further to do without a metrics sink.
			case frame.TagUser:
				ls.deliverUserFrame(f)
			}
		}
	}
}

func (ls *LocalSupervisor) deliverUserFrame(f frame.Frame) {
	wire, err := decodeWire(f.UserPayload())
	if err != nil {
		return
	}
	target := actorkit.Pid{Node: ls.Config.Name, Serial: f.TargetSerial()}

	if wire.Exit {
		ls.Node.Signal(wire.From, target, actorkit.Custom(wire.Reason))
		return
	}

	payload, err := decodeUserPayload(wire.Payload)
	if err != nil {
		return
	}
	_ = ls.Node.SendFrom(wire.From, target, payload)
}
