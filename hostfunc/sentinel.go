package hostfunc

import "sync"

// ErrorSlot holds the most recent host-call failure of one execution.
// Reading does not clear it; the next failure overwrites it.
type ErrorSlot struct {
	mu  sync.Mutex
	err error
}

func (s *ErrorSlot) Set(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *ErrorSlot) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *ErrorSlot) Clear() {
	s.Set(nil)
}
