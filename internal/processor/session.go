package processor

import (
	"sync"
	"time"

	"github.com/jsalmela/attendant/internal/conf"
	"github.com/jsalmela/attendant/internal/datastore"
)

// Session holds the in-memory per-day state of the dwell confirmation state
// machine: who is already confirmed today and who is currently under
// observation. It is rebuilt from the ledger at startup so a process
// restart cannot re-trigger welcome side effects.
type Session struct {
	mu        sync.Mutex
	date      string
	confirmed map[uint]struct{}
	dwell     map[uint]time.Time
}

// NewSession creates an empty session for the given date.
func NewSession(date string) *Session {
	return &Session{
		date:      date,
		confirmed: make(map[uint]struct{}),
		dwell:     make(map[uint]time.Time),
	}
}

// RebuildSession derives a session from the ledger's PRESENT events for the
// date. ABSENT events are not preloaded: a late arrival still walks through
// the recorder, which resolves the existing event as a silent no-op.
func RebuildSession(ds datastore.Interface, date string) (*Session, error) {
	events, err := ds.EventsForDate(date)
	if err != nil {
		return nil, err
	}

	s := NewSession(date)
	for i := range events {
		if events[i].Status == datastore.StatusPresent {
			s.confirmed[events[i].StudentID] = struct{}{}
		}
	}
	return s, nil
}

// Date returns the calendar day this session covers.
func (s *Session) Date() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// Rollover resets all per-day state when the observed date changes.
// Returns true if a reset happened.
func (s *Session) Rollover(now time.Time) bool {
	date := now.Format(conf.DateFormat)
	s.mu.Lock()
	defer s.mu.Unlock()
	if date == s.date {
		return false
	}
	s.date = date
	s.confirmed = make(map[uint]struct{})
	s.dwell = make(map[uint]time.Time)
	return true
}

// IsConfirmed reports whether the student is already confirmed today.
func (s *Session) IsConfirmed(studentID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.confirmed[studentID]
	return ok
}

// MarkConfirmed records the student as confirmed for the day and drops any
// running dwell timer.
func (s *Session) MarkConfirmed(studentID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed[studentID] = struct{}{}
	delete(s.dwell, studentID)
}

// ConfirmedCount returns the number of students confirmed today.
func (s *Session) ConfirmedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.confirmed)
}

// Observe records the first-seen time for a student under observation.
// Returns the entry time and whether this frame started the observation.
func (s *Session) Observe(studentID uint, now time.Time) (entry time.Time, started bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.dwell[studentID]; ok {
		return t, false
	}
	s.dwell[studentID] = now
	return now, true
}

// ClearTimer drops the dwell timer for a student.
func (s *Session) ClearTimer(studentID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dwell, studentID)
}

// ClearMissedTimers drops timers for students under observation that were
// not matched in the current frame. Used when dwellreset is enabled: the
// dwell requirement becomes continuous presence instead of cumulative
// exposure.
func (s *Session) ClearMissedTimers(matched map[uint]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.dwell {
		if !matched[id] {
			delete(s.dwell, id)
		}
	}
}
