package sample

const (
	// DefaultWindow is the default smoothing window in samples.
	DefaultWindow = 16
	// MaxWindow is the largest smoothing window a Ring accepts.
	MaxWindow = 4096
)

// Ring is a fixed-capacity FIFO of raw samples that produces their running average.
// Once full, each write evicts the oldest sample.
//
// A Ring always holds at least one sample: NewRing writes the seed before
// returning, so Average never divides by zero.
//
// Not safe for concurrent use; a Ring is owned by a single task.
type Ring struct {
	buf   []Raw
	head  int // next write position
	count int
}

// NewRing creates a ring of the given capacity seeded with one sample.
// A capacity <= 0 selects DefaultWindow; a capacity above MaxWindow is
// clamped to it.
func NewRing(capacity int, seed Raw) *Ring {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	if capacity > MaxWindow {
		capacity = MaxWindow
	}
	r := &Ring{buf: make([]Raw, capacity)}
	r.Write(seed)
	return r
}

// Write inserts a sample, evicting the oldest one when the ring is full.
func (r *Ring) Write(v Raw) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Average returns the truncated arithmetic mean of the valid samples.
func (r *Ring) Average() Raw {
	var sum uint64
	// Until the ring wraps, valid samples occupy buf[:count]; after that, all of buf.
	for _, v := range r.buf[:r.count] {
		sum += uint64(v)
	}
	return Raw(sum / uint64(r.count))
}

// Len returns the number of valid samples.
func (r *Ring) Len() int {
	return r.count
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Values returns a copy of the valid samples, oldest first.
func (r *Ring) Values() []Raw {
	result := make([]Raw, r.count)
	start := (r.head - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%len(r.buf)]
	}
	return result
}
