package capture

import "sync/atomic"

// Latest is a single-slot handoff that always holds the newest value.
// Publishing never blocks and overwrites anything not yet taken; readers
// either consume the value with Take or look at it with Peek.
type Latest[T any] struct {
	v         atomic.Pointer[T]
	seq       atomic.Uint64
	published atomic.Uint64
	dropped   atomic.Uint64
}

// Publish stores v, replacing any value nobody took.
func (l *Latest[T]) Publish(v T) {
	if old := l.v.Swap(&v); old != nil {
		l.dropped.Add(1)
	}
	l.published.Add(1)
	l.seq.Add(1)
}

// Take removes and returns the newest value. It returns false when nothing
// was published since the last Take.
func (l *Latest[T]) Take() (T, bool) {
	p := l.v.Swap(nil)
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Peek returns the newest value without consuming it.
func (l *Latest[T]) Peek() (T, bool) {
	p := l.v.Load()
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Seq increases on every publish; readers compare it to spot new values
// without consuming them.
func (l *Latest[T]) Seq() uint64 {
	return l.seq.Load()
}

// Stats returns how many values were published and how many were
// overwritten before anyone took them.
func (l *Latest[T]) Stats() (published, dropped uint64) {
	return l.published.Load(), l.dropped.Load()
}
