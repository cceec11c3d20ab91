// Package term owns the per-connection line discipline.
//
// Ownership boundary:
// - the byte-by-byte input protocol state machine
// - the per-session command history and recall cursor
// - the session read loop and its resource leases
//
// Everything here is exclusively owned by one session task; nothing in this
// package needs synchronization.
package term
