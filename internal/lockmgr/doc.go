// Package lockmgr arbitrates file access between parallel executors.
//
// When multiple executors run in parallel, they may attempt to modify the
// same file simultaneously and corrupt it. The lock manager prevents this by
// maintaining an in-memory table of read/write locks keyed by file path,
// bounded by a global counting semaphore on concurrently active executors.
//
// # Design
//
// All calls are synchronous and fail fast: an acquire that cannot be granted
// returns a coded error immediately rather than queuing. Retry, backoff and
// queuing live in the caller (see the supervisor package). Deadlock
// detection is advisory: [Manager.DetectDeadlock] evaluates a snapshot of a
// waits-for graph and reports cycles, it never releases anything itself.
//
// Lock expiry timestamps are informational only. They exist so a supervising
// caller can diagnose stuck executors via [Manager.LockAge] and
// [Manager.HeldLongerThan]; nothing in this package ever releases a lock
// because its expiry passed. [Manager.AutoReleaseExpiredLocks] fails
// unconditionally to keep that invariant auditable.
//
// # Basic Usage
//
//	mgr := lockmgr.NewManager(lockmgr.WithEventBus(bus))
//
//	if err := mgr.AcquireGlobalSemaphore("exec-1"); err != nil { ... }
//	locks, err := mgr.AcquireMultipleLocks([]string{"b.go", "a.go"}, "exec-1", lockmgr.LockWrite)
//	// work...
//	mgr.ReleaseLocksLIFO(locks)
//	mgr.ReleaseGlobalSemaphore("exec-1")
//
// # Thread Safety
//
// All Manager methods are safe for concurrent use. The lock table and
// semaphore count share one mutex; deadlock detection runs on snapshots
// taken under that mutex but evaluated outside it.
package lockmgr
