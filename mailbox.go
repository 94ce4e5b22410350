package actorkit

import (
	"context"
	"sync"
)

// mailbox is a per-process FIFO queue that also supports selective
// receive: scanning for the first entry matching a predicate and removing
// only that one, leaving the order of every other entry untouched. A plain
// buffered channel cannot express "peek, maybe skip" without reordering,
// so the mailbox is a mutex-guarded slice with a close-and-replace wakeup
// channel instead (design note: "model the mailbox as a list supporting a
// filtering scan").
type mailbox struct {
	mu    sync.Mutex
	items []envelope
	wake  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{})}
}

// enqueue is wait-free from the perspective of any sender: it never blocks
// on the receiving process doing anything.
func (m *mailbox) enqueue(e envelope) {
	m.mu.Lock()
	m.items = append(m.items, e)
	wake := m.wake
	m.wake = make(chan struct{})
	m.mu.Unlock()
	close(wake)
}

// scanRemove is the non-blocking half: it returns immediately, with ok
// false, if nothing currently queued matches pred.
func (m *mailbox) scanRemove(pred func(envelope) bool) (envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.items {
		if pred(e) {
			m.items = append(m.items[:i:i], m.items[i+1:]...)
			return e, true
		}
	}
	return envelope{}, false
}

func (m *mailbox) waitChan() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wake
}

// receive blocks until an entry matching pred is found, or ctx is done.
// Entries skipped along the way keep their original relative order.
func (m *mailbox) receive(ctx context.Context, pred func(envelope) bool) (envelope, error) {
	for {
		if e, ok := m.scanRemove(pred); ok {
			return e, nil
		}
		wake := m.waitChan()
		select {
		case <-wake:
		case <-ctx.Done():
			return envelope{}, ctx.Err()
		}
	}
}

func alwaysMatch(envelope) bool { return true }
