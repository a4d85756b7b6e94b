package oracle

import "ammQuote/internal/model"

// Ring is a fixed-capacity FIFO of observations. It is not safe for
// concurrent use.
type Ring struct {
	buf   []model.TWAPObservation
	start int
	size  int
}

func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]model.TWAPObservation, capacity)}
}

// Push appends obs. When the ring is full the oldest entry is overwritten and
// returned with evicted set.
func (r *Ring) Push(obs model.TWAPObservation) (old model.TWAPObservation, evicted bool) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = obs
		r.size++
		return model.TWAPObservation{}, false
	}
	old = r.buf[r.start]
	r.buf[r.start] = obs
	r.start = (r.start + 1) % len(r.buf)
	return old, true
}

func (r *Ring) Len() int { return r.size }

func (r *Ring) Cap() int { return len(r.buf) }

// Oldest returns the first entry. ok is false when empty.
func (r *Ring) Oldest() (model.TWAPObservation, bool) {
	if r.size == 0 {
		return model.TWAPObservation{}, false
	}
	return r.buf[r.start], true
}

// Newest returns the last entry. ok is false when empty.
func (r *Ring) Newest() (model.TWAPObservation, bool) {
	if r.size == 0 {
		return model.TWAPObservation{}, false
	}
	return r.buf[(r.start+r.size-1)%len(r.buf)], true
}

// Snapshot copies the entries oldest first.
func (r *Ring) Snapshot() []model.TWAPObservation {
	out := make([]model.TWAPObservation, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Reset drops every entry.
func (r *Ring) Reset() {
	for i := range r.buf {
		r.buf[i] = model.TWAPObservation{}
	}
	r.start, r.size = 0, 0
}
