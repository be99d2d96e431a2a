// Package lifecycle drives a supervised session through seven ordered
// phases, from requirement analysis to the final report.
//
// # Phase gating
//
// A phase is only marked completed when the caller supplies evidence that
// satisfies that phase's gate. Gates are fail-closed: missing or partial
// evidence rejects the transition with every unmet condition listed, and
// the phase stays in progress. Phases advance strictly forward, one at a
// time; backward transitions and skips are rejected.
//
// # Status flags
//
// A session accumulates independent condition flags (error, incomplete,
// no-evidence, invalid, completed). Several can be true at once; the
// overall status resolves them by strict priority, INVALID highest. A
// session with no flags set reports INCOMPLETE, never COMPLETE. Once the
// error, invalid, or no-evidence flag is set the session is frozen: it can
// still be inspected and serialized but never advanced. Only a fresh
// Initialize clears the flags.
//
// # Retries and timeouts
//
// Recoverable failures charge a per-phase retry budget; exhausting it
// freezes the session. Timeout handling is caller-driven polling via
// IsPhaseTimedOut and CheckAndHandleTimeout; the controller runs no timers
// of its own.
//
// # Persistence
//
// Serialize produces a plain state snapshot and Deserialize reconstructs a
// controller from one, so sessions can span process restarts. The
// controller does not write the snapshot anywhere itself.
package lifecycle
