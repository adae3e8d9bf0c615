package images

import "sync"

// UsedSet tracks image IDs already assigned within one document. It is
// shared by every concurrent lesson task for that document, so the
// check-and-insert must be a single atomic step: two workers racing on the
// same ID must not both win it.
type UsedSet struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

// NewUsedSet returns an empty set.
func NewUsedSet() *UsedSet {
	return &UsedSet{ids: make(map[int64]struct{})}
}

// TryClaim atomically claims an ID. Returns true if the caller now owns it,
// false if another lesson already does. The zero ID (placeholder) is never
// claimable and never recorded.
func (s *UsedSet) TryClaim(id int64) bool {
	if id == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.ids[id]; taken {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Len returns the number of claimed IDs.
func (s *UsedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
