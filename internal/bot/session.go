package bot

import "sync"

// Sessions holds the company each user picked. It lives in memory only and is
// empty again after a restart.
type Sessions struct {
	mu        sync.Mutex
	companies map[int64]string
}

func NewSessions() *Sessions {
	return &Sessions{companies: make(map[int64]string)}
}

func (s *Sessions) SetCompany(userID int64, company string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[userID] = company
}

func (s *Sessions) Company(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	company, ok := s.companies[userID]
	return company, ok
}
