package actorkit

import (
	"context"
	"testing"
	"time"
)

func mustReceiveUser(t *testing.T, p *Process, timeout time.Duration) Message[string] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	msg, err := Receive[string](ctx, p)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	return msg
}

func TestSendDeliversInOrder(t *testing.T) {
	n := NewNode(context.Background(), "node1")

	received := make(chan string, 2)
	target := n.Spawn(func(p *Process) ExitReason {
		for i := 0; i < 2; i++ {
			msg := mustReceiveUser(t, p, time.Second)
			received <- msg.User
		}
		return Normal
	})

	if err := n.reg.deliverUser(Pid{}, target, "first"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := n.reg.deliverUser(Pid{}, target, "second"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if got := <-received; got != "first" {
		t.Fatalf("got %q, want first", got)
	}
	if got := <-received; got != "second" {
		t.Fatalf("got %q, want second", got)
	}
}

func TestLinkPropagatesExitToNonTrapping(t *testing.T) {
	n := NewNode(context.Background(), "node1")

	child := n.Spawn(func(p *Process) ExitReason {
		<-p.Context().Done()
		return Normal
	})

	parentDone := make(chan ExitReason, 1)
	linked := make(chan struct{})
	parent := n.Spawn(func(p *Process) ExitReason {
		p.Link(child)
		close(linked)
		<-p.Context().Done()
		return p.ExitReason()
	})
	go func() {
		pp, _ := n.Process(parent)
		<-pp.Done()
		parentDone <- pp.ExitReason()
	}()

	<-linked
	n.Signal(Pid{}, child, Custom("boom"))

	select {
	case reason := <-parentDone:
		if reason.String() != "boom" {
			t.Fatalf("parent exit reason = %q, want boom", reason)
		}
	case <-time.After(time.Second):
		t.Fatal("parent did not terminate after linked child crashed")
	}
}

func TestLinkedNormalExitDoesNotKillPeer(t *testing.T) {
	n := NewNode(context.Background(), "node1")

	child := n.Spawn(func(p *Process) ExitReason {
		return Normal
	})

	survived := make(chan struct{})
	parent := n.Spawn(func(p *Process) ExitReason {
		p.Link(child)
		select {
		case <-p.Context().Done():
		case <-time.After(100 * time.Millisecond):
			close(survived)
		}
		return Normal
	})
	_ = parent

	select {
	case <-survived:
	case <-time.After(time.Second):
		t.Fatal("parent terminated despite linked child's normal exit")
	}
}

func TestTrapExitConvertsSignalToMessage(t *testing.T) {
	n := NewNode(context.Background(), "node1")

	child := n.Spawn(func(p *Process) ExitReason {
		<-p.Context().Done()
		return Normal
	})

	gotSignal := make(chan ExitSignal, 1)
	linked := make(chan struct{})
	n.Spawn(func(p *Process) ExitReason {
		p.SetTrapExit(true)
		p.Link(child)
		close(linked)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		msg, err := Select[struct{}](ctx, p)
		if err != nil {
			t.Error(err)
			return Normal
		}
		if sig, ok := msg.Sys.(ExitSignal); ok {
			gotSignal <- sig
		}
		return Normal
	})

	<-linked
	n.Signal(Pid{}, child, Custom("boom"))

	select {
	case sig := <-gotSignal:
		if sig.Reason.String() != "boom" {
			t.Fatalf("signal reason = %q, want boom", sig.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("trapping process never received ExitSignal")
	}
}

func TestMonitorFiresExactlyOnce(t *testing.T) {
	n := NewNode(context.Background(), "node1")

	monitored := make(chan struct{})
	subject := n.Spawn(func(p *Process) ExitReason {
		<-monitored
		return Custom("done")
	})

	watcherGotDown := make(chan ProcessDown, 1)
	secondMessage := make(chan bool, 1)
	n.Spawn(func(p *Process) ExitReason {
		p.Monitor(subject)
		close(monitored)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		msg, err := Select[struct{}](ctx, p)
		if err != nil {
			t.Error(err)
			return Normal
		}
		if down, ok := msg.Sys.(ProcessDown); ok {
			watcherGotDown <- down
		}
		extraCtx, extraCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer extraCancel()
		_, err = Select[struct{}](extraCtx, p)
		secondMessage <- err == nil
		return Normal
	})

	select {
	case down := <-watcherGotDown:
		if down.Reason.String() != "done" {
			t.Fatalf("down reason = %q, want done", down.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("monitor never fired")
	}
	if <-secondMessage {
		t.Fatal("monitor fired more than once")
	}
}

func TestKillIsNeverTrapped(t *testing.T) {
	n := NewNode(context.Background(), "node1")

	pid := n.Spawn(func(p *Process) ExitReason {
		p.SetTrapExit(true)
		<-p.Context().Done()
		return Normal
	})
	p, _ := n.Process(pid)

	n.Signal(Pid{}, pid, Kill)

	select {
	case <-p.Done():
		if !p.ExitReason().IsKill() {
			t.Fatalf("exit reason = %q, want kill", p.ExitReason())
		}
	case <-time.After(time.Second):
		t.Fatal("trapping process survived a Kill signal")
	}
}

func TestRegisterAndWhereis(t *testing.T) {
	n := NewNode(context.Background(), "node1")

	pid, err := n.SpawnNamed(func(p *Process) ExitReason {
		<-p.Context().Done()
		return Normal
	}, "worker")
	if err != nil {
		t.Fatalf("spawn named: %v", err)
	}

	got, ok := n.Whereis("worker")
	if !ok || got != pid {
		t.Fatalf("whereis(worker) = %v, %v; want %v, true", got, ok, pid)
	}

	if _, err := n.SpawnNamed(func(p *Process) ExitReason { return Normal }, "worker"); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}
