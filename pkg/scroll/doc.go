// Package scroll turns scroll-position samples into "load more" calls.
//
// A Gate is the two-state machine behind infinite scrolling: Idle and Loading. A
// sample close enough to the bottom of the content moves an enabled, idle gate to
// Loading; settling the outstanding load moves it back to Idle. While Loading, further
// samples are ignored, so at most one load is outstanding at any time.
//
// Hosts with their own event loop (a Bubble Tea model, for instance) drive a Gate
// directly. Trigger wraps a Gate for hosts that deliver samples on a channel: it
// performs the initial load on Start, runs the caller's continuation on its own
// goroutine, and releases everything on Stop.
package scroll
