package actorkit

import "sync"

// monitorEntry is the (watcher, subject) pair a Reference was minted for.
type monitorEntry struct {
	watcher Pid
	subject Pid
}

// monitorNotice is what clear() hands back for each monitor held on a
// terminating subject: who to notify, and under which reference.
type monitorNotice struct {
	Ref     Reference
	Watcher Pid
}

// linkTable is the process-wide link set and monitor table described in
// spec §3. It is guarded by one short-critical-section mutex rather than
// per-process locks: link/unlink must be atomic with respect to further
// signal emission (design invariant: "if P∈links(Q) then Q∈links(P) at all
// observable points"), which a single table-wide lock gives for free.
// Design note §9 requires releasing this lock before recursing into
// further signal delivery; every method here returns plain data and
// unlocks via defer before the caller acts on it, so no two mailbox
// operations ever happen while this mutex is held.
type linkTable struct {
	mu sync.Mutex

	links map[Pid]map[Pid]struct{}

	monitors  map[Reference]monitorEntry
	bySubject map[Pid]map[Reference]struct{}
}

func newLinkTable() *linkTable {
	return &linkTable{
		links:     make(map[Pid]map[Pid]struct{}),
		monitors:  make(map[Reference]monitorEntry),
		bySubject: make(map[Pid]map[Reference]struct{}),
	}
}

func (t *linkTable) link(a, b Pid) {
	if a == b {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addLink(a, b)
	t.addLink(b, a)
}

func (t *linkTable) addLink(from, to Pid) {
	set, ok := t.links[from]
	if !ok {
		set = make(map[Pid]struct{})
		t.links[from] = set
	}
	set[to] = struct{}{}
}

func (t *linkTable) unlink(a, b Pid) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLink(a, b)
	t.removeLink(b, a)
}

func (t *linkTable) removeLink(from, to Pid) {
	set, ok := t.links[from]
	if !ok {
		return
	}
	delete(set, to)
	if len(set) == 0 {
		delete(t.links, from)
	}
}

func (t *linkTable) isLinked(a, b Pid) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.links[a]
	if !ok {
		return false
	}
	_, linked := set[b]
	return linked
}

func (t *linkTable) addMonitor(watcher, subject Pid, ref Reference) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.monitors[ref] = monitorEntry{watcher: watcher, subject: subject}
	set, ok := t.bySubject[subject]
	if !ok {
		set = make(map[Reference]struct{})
		t.bySubject[subject] = set
	}
	set[ref] = struct{}{}
}

func (t *linkTable) removeMonitor(ref Reference) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.monitors[ref]
	if !ok {
		return
	}
	delete(t.monitors, ref)
	if set, ok := t.bySubject[entry.subject]; ok {
		delete(set, ref)
		if len(set) == 0 {
			delete(t.bySubject, entry.subject)
		}
	}
}

// clear drops pid's link set and monitor table atomically, returning the
// peers that were linked (for exit propagation) and the watchers that held
// a monitor on pid (for ProcessDown delivery). Called exactly once, at
// termination.
func (t *linkTable) clear(pid Pid) (peers []Pid, notify []monitorNotice) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if set, ok := t.links[pid]; ok {
		peers = make([]Pid, 0, len(set))
		for peer := range set {
			peers = append(peers, peer)
			t.removeLink(peer, pid)
		}
		delete(t.links, pid)
	}

	if set, ok := t.bySubject[pid]; ok {
		notify = make([]monitorNotice, 0, len(set))
		for ref := range set {
			entry := t.monitors[ref]
			notify = append(notify, monitorNotice{Ref: ref, Watcher: entry.watcher})
			delete(t.monitors, ref)
		}
		delete(t.bySubject, pid)
	}

	return peers, notify
}
