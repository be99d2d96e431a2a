// Package event defines the typed notification channel between the warden
// core and external observers (trace writers, reporting, dashboards). The
// core publishes lifecycle and locking notifications to a synchronous bus;
// nothing in the core depends on who, if anyone, is listening.
//
// The one deliberate asymmetry: error notifications are only published when
// a subscriber exists, so an unwatched session never crashes or blocks on an
// unhandled error event. Callers enforce this with [Bus.HasSubscribers].
package event
