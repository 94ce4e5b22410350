package gen

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/nodecrew/actorkit"
)

// callRequest and castRequest wrap user requests the way
// Jeffersonmf-ergo-1's gen_server.go tags them with the "$gen_call" and
// "$gen_cast" atoms, so a GenServer loop can tell a call from a cast
// without the caller needing to know anything about envelopes.
type callRequest struct {
	from    actorkit.Pid
	ref     actorkit.Reference
	payload any
}

type castRequest struct {
	payload any
}

type callReply struct {
	ref     actorkit.Reference
	payload any
	err     error
}

// Behaviour is the set of callbacks a GenServer dispatches to. State of
// type S is returned by Init and threaded through every callback, mirroring
// Jeffersonmf-ergo-1's GenServerBehaviour interface generalized with Go
// generics instead of etf.Term payloads.
type Behaviour[S any] interface {
	Init(ctx context.Context) (S, error)
	HandleCall(ctx context.Context, state S, from actorkit.Pid, request any) (reply any, next S, err error)
	HandleCast(ctx context.Context, state S, request any) (next S, err error)
	HandleInfo(ctx context.Context, state S, sys actorkit.SystemMessage) (next S, err error)
	Terminate(state S, reason actorkit.ExitReason)
}

// Server runs a Behaviour as an actorkit process.
type Server[S any] struct {
	behaviour Behaviour[S]
	node      *actorkit.Node
	self      actorkit.Pid
	lock      sync.Mutex
}

// NewServer wraps behaviour for starting on a Node.
func NewServer[S any](behaviour Behaviour[S]) *Server[S] {
	return &Server[S]{behaviour: behaviour}
}

// Start spawns the server and blocks until Init has run, returning the
// resulting Pid or the error Init returned.
func (s *Server[S]) Start(n *actorkit.Node) (actorkit.Pid, error) {
	s.node = n
	initErr := make(chan error, 1)

	pid := n.Spawn(func(p *actorkit.Process) actorkit.ExitReason {
		s.self = p.Self()

		state, err := s.behaviour.Init(p.Context())
		if err != nil {
			initErr <- err
			return actorkit.Custom(err.Error())
		}
		initErr <- nil

		return s.loop(p, state)
	})

	if err := <-initErr; err != nil {
		return actorkit.Pid{}, err
	}
	return pid, nil
}

func (s *Server[S]) loop(p *actorkit.Process, state S) actorkit.ExitReason {
	for {
		msg, err := actorkit.Select[any](p.Context(), p)
		if err != nil {
			s.behaviour.Terminate(state, actorkit.Normal)
			return actorkit.Normal
		}

		if !msg.IsUser {
			if sig, ok := msg.Sys.(actorkit.ExitSignal); ok {
				s.behaviour.Terminate(state, sig.Reason)
				return sig.Reason
			}
			next, err := s.dispatchInfo(p.Context(), state, msg.Sys)
			if err != nil {
				s.behaviour.Terminate(state, actorkit.Custom(err.Error()))
				return actorkit.Custom(err.Error())
			}
			state = next
			continue
		}

		switch req := msg.User.(type) {
		case callRequest:
			reply, next, err := s.dispatchCall(p.Context(), state, req.from, req.payload)
			_ = p.Send(req.from, callReply{ref: req.ref, payload: reply, err: err})
			if err != nil {
				s.behaviour.Terminate(state, actorkit.Custom(err.Error()))
				return actorkit.Custom(err.Error())
			}
			state = next

		case castRequest:
			next, err := s.dispatchCast(p.Context(), state, req.payload)
			if err != nil {
				s.behaviour.Terminate(state, actorkit.Custom(err.Error()))
				return actorkit.Custom(err.Error())
			}
			state = next

		default:
			next, err := s.dispatchInfo(p.Context(), state, nil)
			if err == nil {
				state = next
			}
		}
	}
}

// dispatchCall, dispatchCast, and dispatchInfo each run their callback
// under the server's state lock with panic recovery, the way
// Jeffersonmf-ergo-1's gen_server.go protects every dispatched callback
// with its own lockState mutex and panicHandler.

func (s *Server[S]) dispatchCall(ctx context.Context, state S, from actorkit.Pid, payload any) (reply any, next S, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	defer func() {
		if r := recover(); r != nil {
			next = state
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return s.behaviour.HandleCall(ctx, state, from, payload)
}

func (s *Server[S]) dispatchCast(ctx context.Context, state S, payload any) (next S, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	defer func() {
		if r := recover(); r != nil {
			next = state
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return s.behaviour.HandleCast(ctx, state, payload)
}

func (s *Server[S]) dispatchInfo(ctx context.Context, state S, sys actorkit.SystemMessage) (next S, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	defer func() {
		if r := recover(); r != nil {
			next = state
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return s.behaviour.HandleInfo(ctx, state, sys)
}

// Call sends a synchronous request to to and blocks for its reply.
func Call[Req, Resp any](ctx context.Context, p *actorkit.Process, to actorkit.Pid, req Req) (Resp, error) {
	var zero Resp
	if err := p.Send(to, callRequest{from: p.Self(), payload: req}); err != nil {
		return zero, err
	}
	msg, err := actorkit.Receive[callReply](ctx, p)
	if err != nil {
		return zero, err
	}
	if msg.User.err != nil {
		return zero, msg.User.err
	}
	resp, _ := msg.User.payload.(Resp)
	return resp, nil
}

// Cast sends an asynchronous request to to without waiting for a reply.
func Cast(p *actorkit.Process, to actorkit.Pid, req any) error {
	return p.Send(to, castRequest{payload: req})
}
