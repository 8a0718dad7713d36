// Package poller runs the polling-diff-render cycle for yardwatch views.
//
// This package is internal to yardwatch. Each view gets its own [Cycle]:
// on every tick the cycle fetches the view, reduces the response to a
// content hash and calls its apply function only when the hash changed.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with cache busting, timeouts and size limits
//   - [Cycle]: one view's fetch/digest/apply loop with its own state
//   - [Scheduler]: starts and stops cycles together and merges their events
//   - [Event]: what happened on a tick (changed, unchanged, failed, halted, ...)
//
// A cycle never has more than one request in flight; a tick that arrives
// while a request is outstanding is dropped, not queued. Ticks are skipped
// entirely while the cycle's suspend predicate holds. After a configured
// number of consecutive counted failures the cycle halts and stays halted
// until [Cycle.Reload] is called.
package poller
