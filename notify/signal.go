package notify

import "sync"

// signal is a value that resolves at most once. Later resolves are ignored.
type signal[T any] struct {
	mu       sync.Mutex
	ch       chan struct{}
	val      T
	resolved bool
}

func newSignal[T any]() *signal[T] {
	return &signal[T]{ch: make(chan struct{})}
}

func (s *signal[T]) resolve(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return false
	}
	s.val = v
	s.resolved = true
	close(s.ch)
	return true
}

func (s *signal[T]) peek() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.val, s.resolved
}

func (s *signal[T]) ready() <-chan struct{} {
	return s.ch
}
