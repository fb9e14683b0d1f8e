// Package ratelimit admits a fixed number of requests per client per time
// window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts one request for key and decides whether it may proceed.
type Limiter interface {
	Admit(ctx context.Context, key string) (Decision, error)
}

func decide(limit int, count int64, resetAt time.Time) Decision {
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}
}

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps one fixed window per key in process memory. Counters
// are lost on restart and not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time
}

func NewMemoryStore(limit int, period time.Duration) *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

func (s *MemoryStore) Admit(_ context.Context, key string) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w := s.windows[key]
	if w == nil || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(s.period)}
		s.windows[key] = w
	}
	w.count++
	return decide(s.limit, w.count, w.resetAt), nil
}

// Sweep drops windows that have expired.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
