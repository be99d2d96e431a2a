package lockmgr

import (
	"testing"

	"github.com/wardenhq/warden/internal/errors"
)

func TestDetectDeadlock(t *testing.T) {
	tests := []struct {
		name    string
		entries []WaitGraphEntry
		want    bool
	}{
		{
			name: "empty graph",
			want: false,
		},
		{
			name: "two executors, no contention",
			entries: []WaitGraphEntry{
				{ExecutorID: "a", Holds: []string{"x"}, Wants: []string{"y"}},
				{ExecutorID: "b", Holds: []string{"z"}},
			},
			want: false,
		},
		{
			name: "simple two-cycle",
			entries: []WaitGraphEntry{
				{ExecutorID: "a", Holds: []string{"x"}, Wants: []string{"y"}},
				{ExecutorID: "b", Holds: []string{"y"}, Wants: []string{"x"}},
			},
			want: true,
		},
		{
			name: "three-cycle",
			entries: []WaitGraphEntry{
				{ExecutorID: "a", Holds: []string{"x"}, Wants: []string{"y"}},
				{ExecutorID: "b", Holds: []string{"y"}, Wants: []string{"z"}},
				{ExecutorID: "c", Holds: []string{"z"}, Wants: []string{"x"}},
			},
			want: true,
		},
		{
			name: "chain without cycle",
			entries: []WaitGraphEntry{
				{ExecutorID: "a", Holds: []string{"x"}, Wants: []string{"y"}},
				{ExecutorID: "b", Holds: []string{"y"}, Wants: []string{"z"}},
				{ExecutorID: "c", Holds: []string{"z"}},
			},
			want: false,
		},
		{
			name: "self-want is not a cycle",
			entries: []WaitGraphEntry{
				{ExecutorID: "a", Holds: []string{"x"}, Wants: []string{"x"}},
			},
			want: false,
		},
		{
			name: "disjoint cycle among several components",
			entries: []WaitGraphEntry{
				{ExecutorID: "a", Holds: []string{"x"}},
				{ExecutorID: "b", Holds: []string{"y"}, Wants: []string{"w"}},
				{ExecutorID: "c", Holds: []string{"w"}, Wants: []string{"y"}},
			},
			want: true,
		},
	}

	m := NewManager()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.DetectDeadlock(tt.entries); got != tt.want {
				t.Errorf("DetectDeadlock() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAcquireLockWithDeadlockCheck(t *testing.T) {
	m := NewManager()

	// exec-a holds a.go; exec-b holds b.go.
	mustAcquire(t, m, "a.go", "exec-a", LockWrite)
	mustAcquire(t, m, "b.go", "exec-b", LockWrite)

	// exec-a tries b.go: conflict (E401), and the manager now knows exec-a
	// is waiting on b.go.
	_, err := m.AcquireLockWithDeadlockCheck("b.go", "exec-a", LockWrite, []string{"a.go"})
	if got := errors.CodeOf(err); got != errors.CodeLockConflict {
		t.Fatalf("first check code = %s, want %s", got, errors.CodeLockConflict)
	}

	// exec-b tries a.go: this would close the cycle, so E403, not E401.
	_, err = m.AcquireLockWithDeadlockCheck("a.go", "exec-b", LockWrite, []string{"b.go"})
	if got := errors.CodeOf(err); got != errors.CodeDeadlock {
		t.Fatalf("second check code = %s, want %s", got, errors.CodeDeadlock)
	}
}

func TestAcquireLockWithDeadlockCheckGrantsCleanRequest(t *testing.T) {
	m := NewManager()
	mustAcquire(t, m, "a.go", "exec-a", LockWrite)

	lock, err := m.AcquireLockWithDeadlockCheck("b.go", "exec-b", LockWrite, nil)
	if err != nil {
		t.Fatalf("AcquireLockWithDeadlockCheck() error = %v", err)
	}
	if lock.FilePath != "b.go" || lock.ExecutorID != "exec-b" {
		t.Errorf("lock = %+v, want b.go held by exec-b", lock)
	}
}

func TestClearWaitBreaksPotentialCycle(t *testing.T) {
	m := NewManager()
	mustAcquire(t, m, "a.go", "exec-a", LockWrite)
	mustAcquire(t, m, "b.go", "exec-b", LockWrite)

	_, err := m.AcquireLockWithDeadlockCheck("b.go", "exec-a", LockWrite, []string{"a.go"})
	if got := errors.CodeOf(err); got != errors.CodeLockConflict {
		t.Fatalf("first check code = %s, want %s", got, errors.CodeLockConflict)
	}

	// exec-a gives up on b.go. The cycle threat is gone, so exec-b's
	// request fails only on the plain conflict.
	m.ClearWait("exec-a", "b.go")
	_, err = m.AcquireLockWithDeadlockCheck("a.go", "exec-b", LockWrite, []string{"b.go"})
	if got := errors.CodeOf(err); got != errors.CodeLockConflict {
		t.Errorf("post-clear code = %s, want %s", got, errors.CodeLockConflict)
	}
}

func TestSuccessfulAcquireClearsRecordedWait(t *testing.T) {
	m := NewManager()
	lockA := mustAcquire(t, m, "a.go", "exec-a", LockWrite)
	mustAcquire(t, m, "b.go", "exec-b", LockWrite)

	// exec-b waits on a.go.
	_, err := m.AcquireLockWithDeadlockCheck("a.go", "exec-b", LockWrite, []string{"b.go"})
	if got := errors.CodeOf(err); got != errors.CodeLockConflict {
		t.Fatalf("check code = %s, want %s", got, errors.CodeLockConflict)
	}

	// exec-a releases; exec-b acquires, clearing its recorded wait.
	if err := m.ReleaseLock(lockA.LockID); err != nil {
		t.Fatalf("ReleaseLock() error = %v", err)
	}
	if _, err := m.AcquireLock("a.go", "exec-b", LockWrite); err != nil {
		t.Fatalf("AcquireLock() after release error = %v", err)
	}

	// No stale wait left behind: exec-a asking for b.go sees a plain
	// conflict, not a phantom cycle.
	_, err = m.AcquireLockWithDeadlockCheck("b.go", "exec-a", LockWrite, nil)
	if got := errors.CodeOf(err); got != errors.CodeLockConflict {
		t.Errorf("post-acquire code = %s, want %s", got, errors.CodeLockConflict)
	}
}
