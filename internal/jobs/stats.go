package jobs

import (
	"sync"
	"sync/atomic"
	"time"
)

// LoopStats counts what a background loop handled. Safe for concurrent use.
type LoopStats struct {
	name    string
	handled atomic.Uint64
	failed  atomic.Uint64

	mu          sync.Mutex
	lastError   string
	lastErrorAt time.Time
}

// StatsSnapshot is a point-in-time copy of LoopStats.
type StatsSnapshot struct {
	Handled     uint64     `json:"handled"`
	Failed      uint64     `json:"failed"`
	LastError   string     `json:"last_error,omitempty"`
	LastErrorAt *time.Time `json:"last_error_at,omitempty"`
}

func NewLoopStats(name string) *LoopStats {
	return &LoopStats{name: name}
}

func (s *LoopStats) Name() string { return s.name }

// Handled records one successfully handled item.
func (s *LoopStats) Handled() {
	s.handled.Add(1)
}

// Failed records one failed item.
func (s *LoopStats) Failed(err error) {
	s.failed.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = err.Error()
	}
	s.lastErrorAt = time.Now().UTC()
}

func (s *LoopStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		Handled:   s.handled.Load(),
		Failed:    s.failed.Load(),
		LastError: s.lastError,
	}
	if !s.lastErrorAt.IsZero() {
		at := s.lastErrorAt
		snap.LastErrorAt = &at
	}
	return snap
}

// Stats satisfies the router's stats source.
func (s *LoopStats) Stats() any {
	return s.Snapshot()
}
