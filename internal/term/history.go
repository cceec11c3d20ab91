package term

// History is the append-only sequence of accepted lines plus a recall
// cursor. The cursor ranges over [0, Len()]; Len() means "not navigating".
// While the user navigates, the tail entry may be a placeholder holding the
// uncommitted edit buffer so Down can return to it.
type History struct {
	entries []string
	cursor  int
	max     int
	pending bool
}

// NewHistory constructs a history bounded to max entries. Once the bound is
// exceeded the oldest entry is evicted.
func NewHistory(max int) *History {
	return &History{
		entries: make([]string, 0, max),
		max:     max,
	}
}

// Len reports the number of stored entries, placeholder included.
func (h *History) Len() int {
	return len(h.entries)
}

// Cursor reports the current recall position.
func (h *History) Cursor() int {
	return h.cursor
}

// Entries returns the committed lines oldest first, excluding any active
// recall placeholder.
func (h *History) Entries() []string {
	n := len(h.entries)
	if h.pending {
		n--
	}
	out := make([]string, n)
	copy(out, h.entries[:n])
	return out
}

// Commit appends one accepted line and resets the cursor. If a recall
// placeholder is still on the tail it is discarded first.
func (h *History) Commit(line string) {
	if h.pending {
		h.entries = h.entries[:len(h.entries)-1]
		h.pending = false
	}
	h.entries = append(h.entries, line)
	if len(h.entries) > h.max {
		h.entries = append(h.entries[:0], h.entries[1:]...)
	}
	h.cursor = len(h.entries)
}

// RecallUp moves the cursor one entry older and returns that entry. On the
// first Up of a navigation it stashes current, the in-progress edit buffer,
// as the tail placeholder so a matching Down restores it. Returns false at
// the oldest entry (or on empty history) without side effects.
func (h *History) RecallUp(current string) (string, bool) {
	if h.cursor == 0 {
		return "", false
	}
	if h.cursor == len(h.entries) {
		h.entries = append(h.entries, current)
		h.pending = true
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// RecallDown moves the cursor one entry newer and returns that entry. When
// it lands on the placeholder, the placeholder is consumed: its text is
// returned, the tail is popped, and the cursor equals Len() again. Past the
// newest entry Down is a no-op.
func (h *History) RecallDown() (string, bool) {
	if h.cursor >= len(h.entries) {
		return "", false
	}
	h.cursor++
	if h.cursor >= len(h.entries) {
		// One past the last real entry with no placeholder to land on.
		h.cursor--
		return "", false
	}
	line := h.entries[h.cursor]
	if h.pending && h.cursor == len(h.entries)-1 {
		h.entries = h.entries[:len(h.entries)-1]
		h.pending = false
	}
	return line, true
}
