package lockmgr

import (
	"github.com/wardenhq/warden/internal/errors"
)

// DetectDeadlock reports whether the given waits-for graph contains a cycle.
// An edge A -> B exists when A wants a resource B holds. The check is
// advisory: callers use it before blocking on a resource, it never resolves
// anything.
//
// The entries are a caller-supplied snapshot; detection runs without
// touching the lock table or its mutex.
func (m *Manager) DetectDeadlock(entries []WaitGraphEntry) bool {
	return detectCycle(entries)
}

// AcquireLockWithDeadlockCheck runs deadlock detection against the caller's
// already-held resources before attempting acquisition. If granting the
// request would form a cycle through executors the manager knows to be
// waiting, it fails with E403 instead of attempting the acquire; otherwise
// it behaves like AcquireLock, and additionally records the executor as
// waiting on the path when the acquire fails with a conflict. That record is
// what lets a later check from the opposing executor see the cycle.
func (m *Manager) AcquireLockWithDeadlockCheck(path, executorID string, lt LockType, alreadyHeld []string) (FileLock, error) {
	// Snapshot holds and known waits under the mutex, then evaluate the
	// graph outside it. Running the detector under the table mutex would
	// self-deadlock the moment detection needs table state.
	m.mu.Lock()
	holds := make(map[string][]string)
	for _, rec := range m.locks {
		holds[rec.lock.ExecutorID] = append(holds[rec.lock.ExecutorID], rec.lock.FilePath)
	}
	wants := make(map[string][]string)
	for exec, paths := range m.waits {
		for p := range paths {
			wants[exec] = append(wants[exec], p)
		}
	}
	m.mu.Unlock()

	seen := make(map[string]struct{}, len(holds)+1)
	entries := make([]WaitGraphEntry, 0, len(holds)+1)
	for exec := range holds {
		if exec == executorID {
			continue
		}
		seen[exec] = struct{}{}
		entries = append(entries, WaitGraphEntry{
			ExecutorID: exec,
			Holds:      holds[exec],
			Wants:      wants[exec],
		})
	}
	for exec := range wants {
		if exec == executorID {
			continue
		}
		if _, ok := seen[exec]; ok {
			continue
		}
		entries = append(entries, WaitGraphEntry{
			ExecutorID: exec,
			Holds:      holds[exec],
			Wants:      wants[exec],
		})
	}
	requesterHolds := append(append([]string{}, holds[executorID]...), alreadyHeld...)
	entries = append(entries, WaitGraphEntry{
		ExecutorID: executorID,
		Holds:      requesterHolds,
		Wants:      []string{path},
	})

	if detectCycle(entries) {
		return FileLock{}, errors.NewLockError(errors.CodeDeadlock, "acquisition would form a deadlock cycle").
			WithPath(path).WithExecutorID(executorID)
	}

	lock, err := m.AcquireLock(path, executorID, lt)
	if err != nil {
		if errors.HasCode(err, errors.CodeLockConflict) {
			m.recordWait(executorID, path)
		}
		return FileLock{}, err
	}
	return lock, nil
}

// ClearWait drops the recorded waiting intent of executorID on path, for
// callers that give up on a resource instead of retrying.
func (m *Manager) ClearWait(executorID, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wants, ok := m.waits[executorID]; ok {
		delete(wants, path)
		if len(wants) == 0 {
			delete(m.waits, executorID)
		}
	}
}

// recordWait marks executorID as waiting on path.
func (m *Manager) recordWait(executorID, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.waits[executorID] == nil {
		m.waits[executorID] = make(map[string]struct{})
	}
	m.waits[executorID][path] = struct{}{}
}

// detectCycle runs a depth-first search over the waits-for graph.
func detectCycle(entries []WaitGraphEntry) bool {
	// Who holds each resource. Multiple readers can hold one path, so a
	// resource maps to a list of holders.
	holders := make(map[string][]string)
	for _, e := range entries {
		for _, res := range e.Holds {
			holders[res] = append(holders[res], e.ExecutorID)
		}
	}

	// Edge A -> B when A wants a resource B holds.
	adj := make(map[string][]string)
	for _, e := range entries {
		for _, res := range e.Wants {
			for _, holder := range holders[res] {
				if holder != e.ExecutorID {
					adj[e.ExecutorID] = append(adj[e.ExecutorID], holder)
				}
			}
		}
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int)

	var visit func(node string) bool
	visit = func(node string) bool {
		state[node] = inStack
		for _, next := range adj[node] {
			switch state[next] {
			case inStack:
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		state[node] = done
		return false
	}

	for node := range adj {
		if state[node] == unvisited && visit(node) {
			return true
		}
	}
	return false
}
