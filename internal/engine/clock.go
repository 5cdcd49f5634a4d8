package engine

import "sync/atomic"

// Sequence is a monotonic logical clock. Results are stamped with the
// next value as they finish, so Seq order is completion order even when
// wall-clock timings tie.
//
// Thread-safety: Sequence is safe for concurrent use.
type Sequence struct {
	seq atomic.Int64
}

// Next returns the next sequence number. The first call returns 1.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last value handed out without incrementing.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}
