package lifecycle

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs delayed venue-deletion tasks, keyed by venue id. Keying
// makes scheduling idempotent under event redelivery and leaves a
// cancellation path open even though the engine never cancels on its own.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	logger *zap.Logger
}

// NewScheduler builds an empty scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		logger: logger,
	}
}

// Schedule queues fn to run after delay. A venue already holding a pending
// task is left untouched and false is returned.
func (s *Scheduler) Schedule(venueID string, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.timers[venueID]; exists {
		s.logger.Debug("deletion already scheduled", zap.String("venue_id", venueID))
		return false
	}

	s.timers[venueID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, venueID)
		s.mu.Unlock()
		fn()
	})
	return true
}

// Cancel aborts a pending task. Returns false when none is pending.
func (s *Scheduler) Cancel(venueID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, exists := s.timers[venueID]
	if !exists {
		return false
	}
	delete(s.timers, venueID)
	return timer.Stop()
}

// Pending reports whether the venue has a queued task.
func (s *Scheduler) Pending(venueID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.timers[venueID]
	return exists
}
