package registry

import (
	"io"
	"sync"
)

// Registry tracks every live socket and edit buffer handed to a session
// task, so a shutdown sweep can force-release whatever a session failed to
// release itself. One coarse mutex serializes all operations; churn is
// proportional to connection count, not per-byte traffic.
type Registry struct {
	mu      sync.Mutex
	nextID  uint64
	sockets map[uint64]io.Closer
	buffers map[uint64][]byte
}

// New constructs an empty registry. One registry is shared by every session
// of a server instance and passed in explicitly at construction time.
func New() *Registry {
	return &Registry{
		sockets: make(map[uint64]io.Closer),
		buffers: make(map[uint64][]byte),
	}
}

// SocketLease is the scoped handle for one registered socket. Release closes
// the socket exactly once: whichever of Release and Cleanup removes the
// registry entry performs the close, the other becomes a no-op.
type SocketLease struct {
	id   uint64
	conn io.Closer
	reg  *Registry
}

// ID returns the stable registry index backing this lease.
func (l *SocketLease) ID() uint64 {
	return l.id
}

// Release unregisters and closes the socket. Safe to call more than once
// and safe to call after a sweep already claimed the entry.
func (l *SocketLease) Release() {
	if l.reg.UnregisterSocket(l.id) {
		_ = l.conn.Close()
	}
}

// BufferLease is the scoped handle for one registered edit buffer.
type BufferLease struct {
	id  uint64
	buf []byte
	reg *Registry
}

// ID returns the stable registry index backing this lease.
func (l *BufferLease) ID() uint64 {
	return l.id
}

// Bytes returns the leased buffer. The buffer has zero length and the
// requested capacity; callers append in place and must not grow it past
// capacity, so the registry entry stays the canonical owner.
func (l *BufferLease) Bytes() []byte {
	return l.buf
}

// Release unregisters the buffer. Safe to call more than once.
func (l *BufferLease) Release() {
	l.reg.UnregisterBuffer(l.id)
}

// RegisterSocket tracks one socket and returns its scoped lease.
func (r *Registry) RegisterSocket(conn io.Closer) *SocketLease {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.sockets[id] = conn
	return &SocketLease{id: id, conn: conn, reg: r}
}

// UnregisterSocket removes one socket entry. Removing an absent id is a
// no-op, never an error; the boolean reports whether this call removed it.
func (r *Registry) UnregisterSocket(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sockets[id]; !ok {
		return false
	}
	delete(r.sockets, id)
	return true
}

// LeaseBuffer allocates a zero-length buffer with the given capacity,
// tracks it, and returns its scoped lease.
func (r *Registry) LeaseBuffer(capacity int) *BufferLease {
	buf := make([]byte, 0, capacity)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.buffers[id] = buf
	return &BufferLease{id: id, buf: buf, reg: r}
}

// UnregisterBuffer removes one buffer entry. Removing an absent id is a
// no-op, never an error; the boolean reports whether this call removed it.
func (r *Registry) UnregisterBuffer(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.buffers[id]; !ok {
		return false
	}
	delete(r.buffers, id)
	return true
}

// Cleanup force-closes every socket and drops every buffer still registered,
// then clears both sets. Entries removed here cannot be closed again by a
// late lease Release. Calling Cleanup with empty sets, or twice in a row,
// closes nothing the second time.
func (r *Registry) Cleanup() (sockets, buffers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sockets = len(r.sockets)
	buffers = len(r.buffers)
	for id, conn := range r.sockets {
		_ = conn.Close()
		delete(r.sockets, id)
	}
	for id := range r.buffers {
		delete(r.buffers, id)
	}
	return sockets, buffers
}

// Counts reports how many sockets and buffers are currently registered.
func (r *Registry) Counts() (sockets, buffers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sockets), len(r.buffers)
}
