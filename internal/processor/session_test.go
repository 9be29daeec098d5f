package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsalmela/attendant/internal/datastore"
)

func TestSessionObserve(t *testing.T) {
	s := NewSession("2026-03-10")
	t0 := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	entry, started := s.Observe(1, t0)
	assert.True(t, started)
	assert.Equal(t, t0, entry)

	// Repeated observations keep the original entry time.
	entry, started = s.Observe(1, t0.Add(500*time.Millisecond))
	assert.False(t, started)
	assert.Equal(t, t0, entry)

	// A different student gets its own timer.
	_, started = s.Observe(2, t0.Add(time.Second))
	assert.True(t, started)
}

func TestSessionMarkConfirmedDropsTimer(t *testing.T) {
	s := NewSession("2026-03-10")
	t0 := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	s.Observe(1, t0)
	s.MarkConfirmed(1)

	assert.True(t, s.IsConfirmed(1))
	assert.Equal(t, 1, s.ConfirmedCount())

	// The dwell timer is gone, a new observation starts fresh.
	_, started := s.Observe(1, t0.Add(time.Minute))
	assert.True(t, started)
}

func TestSessionRollover(t *testing.T) {
	s := NewSession("2026-03-10")
	sameDay := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	nextDay := time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC)

	s.MarkConfirmed(1)
	s.Observe(2, sameDay)

	assert.False(t, s.Rollover(sameDay))
	assert.True(t, s.IsConfirmed(1))

	require.True(t, s.Rollover(nextDay))
	assert.Equal(t, "2026-03-11", s.Date())
	assert.False(t, s.IsConfirmed(1))
	assert.Equal(t, 0, s.ConfirmedCount())

	_, started := s.Observe(2, nextDay)
	assert.True(t, started, "dwell timers do not survive midnight")
}

func TestSessionClearMissedTimers(t *testing.T) {
	s := NewSession("2026-03-10")
	t0 := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	s.Observe(1, t0)
	s.Observe(2, t0)

	s.ClearMissedTimers(map[uint]bool{1: true})

	entry, started := s.Observe(1, t0.Add(time.Second))
	assert.False(t, started)
	assert.Equal(t, t0, entry)

	_, started = s.Observe(2, t0.Add(time.Second))
	assert.True(t, started, "missed student restarts observation")
}

func TestSessionClearTimer(t *testing.T) {
	s := NewSession("2026-03-10")
	t0 := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	s.Observe(1, t0)
	s.ClearTimer(1)

	_, started := s.Observe(1, t0.Add(time.Second))
	assert.True(t, started)
}

func TestRebuildSessionPreloadsOnlyPresent(t *testing.T) {
	ds := newMemStore()
	require.NoError(t, ds.InsertAttendance(&datastore.AttendanceEvent{
		StudentID: 1, Date: "2026-03-10", CheckInTime: "08:00:00", Status: datastore.StatusPresent,
	}))
	require.NoError(t, ds.InsertAttendance(&datastore.AttendanceEvent{
		StudentID: 2, Date: "2026-03-10", Status: datastore.StatusAbsent,
	}))
	require.NoError(t, ds.InsertAttendance(&datastore.AttendanceEvent{
		StudentID: 3, Date: "2026-03-09", CheckInTime: "08:00:00", Status: datastore.StatusPresent,
	}))

	s, err := RebuildSession(ds, "2026-03-10")
	require.NoError(t, err)

	assert.True(t, s.IsConfirmed(1))
	assert.False(t, s.IsConfirmed(2), "absent students may still arrive late")
	assert.False(t, s.IsConfirmed(3), "other days are out of scope")
	assert.Equal(t, 1, s.ConfirmedCount())
}
