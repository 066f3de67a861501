package detector

// Ring is a fixed-capacity ring buffer that keeps the most recent values.
type Ring[T any] struct {
	data  []T
	pos   int
	full  bool
	total uint64
}

// NewRing creates a Ring with the given capacity. Capacity below one is
// raised to one.
func NewRing[T any](capacity int) *Ring[T] {
	return &Ring[T]{data: make([]T, max(1, capacity))}
}

// Push adds a value, overwriting the oldest once the ring is full.
func (r *Ring[T]) Push(v T) {
	r.data[r.pos] = v
	r.pos++
	r.total++
	if r.pos >= len(r.data) {
		r.pos = 0
		r.full = true
	}
}

// Len returns the number of elements in the buffer.
func (r *Ring[T]) Len() int {
	if r.full {
		return len(r.data)
	}
	return r.pos
}

// Total returns how many values were ever pushed.
func (r *Ring[T]) Total() uint64 {
	return r.total
}

// Slice returns the buffer contents in insertion order.
func (r *Ring[T]) Slice() []T {
	out := make([]T, r.Len())
	if r.full {
		n := copy(out, r.data[r.pos:])
		copy(out[n:], r.data[:r.pos])
	} else {
		copy(out, r.data[:r.pos])
	}
	return out
}

// Since returns the values pushed after the ring had seen total values,
// limited to what is still buffered.
func (r *Ring[T]) Since(total uint64) []T {
	if total >= r.total {
		return nil
	}
	all := r.Slice()
	n := r.total - total
	if n > uint64(len(all)) {
		return all
	}
	return all[len(all)-int(n):]
}

// Reset empties the ring.
func (r *Ring[T]) Reset() {
	clear(r.data)
	r.pos = 0
	r.full = false
	r.total = 0
}
