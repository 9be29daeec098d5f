package processor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsalmela/attendant/internal/camera"
	"github.com/jsalmela/attendant/internal/conf"
	"github.com/jsalmela/attendant/internal/datastore"
	"github.com/jsalmela/attendant/internal/facerec"
	"github.com/jsalmela/attendant/internal/logging"
)

// memStore is an in-memory datastore.Interface for state machine tests.
type memStore struct {
	mu       sync.Mutex
	students []datastore.Student
	events   map[string]datastore.AttendanceEvent
}

func newMemStore(students ...datastore.Student) *memStore {
	return &memStore{
		students: students,
		events:   make(map[string]datastore.AttendanceEvent),
	}
}

func (m *memStore) Open() error  { return nil }
func (m *memStore) Close() error { return nil }

func (m *memStore) GetAllStudents() ([]datastore.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]datastore.Student, len(m.students))
	copy(out, m.students)
	return out, nil
}

func (m *memStore) GetStudent(id uint) (datastore.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.students {
		if s.ID == id {
			return s, nil
		}
	}
	return datastore.Student{}, fmt.Errorf("student %d not found", id)
}

func (m *memStore) SaveStudent(student *datastore.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	student.ID = uint(len(m.students) + 1)
	m.students = append(m.students, *student)
	return nil
}

func (m *memStore) InsertAttendance(event *datastore.AttendanceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%d|%s", event.StudentID, event.Date)
	if _, ok := m.events[key]; ok {
		return datastore.ErrEventExists
	}
	m.events[key] = *event
	return nil
}

func (m *memStore) HasEventForDate(studentID uint, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[fmt.Sprintf("%d|%s", studentID, date)]
	return ok, nil
}

func (m *memStore) EventsForDate(date string) ([]datastore.AttendanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []datastore.AttendanceEvent
	for _, e := range m.events {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// fakeOracle returns whatever the test primed it with.
type fakeOracle struct {
	detections []facerec.Detection
	err        error
}

func (o *fakeOracle) DetectAndEncode(camera.Frame) ([]facerec.Detection, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.detections, nil
}

func mustEncode(t *testing.T, e facerec.Encoding) []byte {
	t.Helper()
	data, err := e.Marshal()
	require.NoError(t, err)
	return data
}

func detectionAt(e facerec.Encoding) facerec.Detection {
	return facerec.Detection{Encoding: e}
}

func testSettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.Recognition.Tolerance = 0.5
	settings.Recognition.DwellTime = 1.0
	settings.Recognition.MatchPolicy = conf.MatchPolicyFirst
	return settings
}

// newTestProcessor builds a processor against the in-memory store without
// starting the worker pool, so enqueued actions stay observable in the queue.
func newTestProcessor(t *testing.T, settings *conf.Settings, ds datastore.Interface,
	oracle facerec.Oracle, base time.Time) *Processor {
	t.Helper()

	p := &Processor{
		Settings:       settings,
		Ds:             ds,
		Oracle:         oracle,
		Matcher:        facerec.NewMatcher(settings.Recognition.Tolerance, settings.Recognition.MatchPolicy),
		Effects:        SideEffects{},
		dwellThreshold: time.Duration(settings.Recognition.DwellTime * float64(time.Second)),
		workerQueue:    make(chan Task, defaultQueueSize),
		logger:         logging.ForService("processor"),
	}
	require.NoError(t, p.LoadRoster())

	session, err := RebuildSession(ds, base.Format(conf.DateFormat))
	require.NoError(t, err)
	p.Session = session
	return p
}

var testBase = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func TestDwellTimingConfirmsExactlyOnce(t *testing.T) {
	enc := facerec.Encoding{0, 0}
	ds := newMemStore(datastore.Student{
		ID: 1, FirstName: "Maija", FaceEncoding: mustEncode(t, enc),
	})
	oracle := &fakeOracle{detections: []facerec.Detection{detectionAt(enc)}}
	p := newTestProcessor(t, testSettings(), ds, oracle, testBase)
	ctx := context.Background()

	// First sighting starts the dwell timer, nothing is recorded yet.
	status := p.processFrameAt(ctx, camera.Frame{}, testBase)
	assert.Equal(t, "FOUND: Maija", status.Status)
	assert.Equal(t, []string{"Maija"}, status.Labels)
	assert.Zero(t, ds.eventCount())

	// Sustained presence below the threshold keeps observing.
	status = p.processFrameAt(ctx, camera.Frame{}, testBase.Add(400*time.Millisecond))
	assert.Equal(t, "FOUND: Maija", status.Status)
	status = p.processFrameAt(ctx, camera.Frame{}, testBase.Add(900*time.Millisecond))
	assert.Equal(t, "FOUND: Maija", status.Status)
	assert.Zero(t, ds.eventCount())

	// Crossing the threshold confirms and records.
	at := testBase.Add(1200 * time.Millisecond)
	status = p.processFrameAt(ctx, camera.Frame{}, at)
	assert.Equal(t, "ENTER: Maija", status.Status)
	require.Equal(t, 1, ds.eventCount())

	events, err := ds.EventsForDate("2026-03-10")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint(1), events[0].StudentID)
	assert.Equal(t, datastore.StatusPresent, events[0].Status)
	assert.Equal(t, at.Format(conf.TimeFormat), events[0].CheckInTime)
	assert.Len(t, p.workerQueue, 1, "one welcome action enqueued")

	// Staying in view after confirmation changes nothing.
	status = p.processFrameAt(ctx, camera.Frame{}, testBase.Add(2*time.Second))
	assert.Equal(t, StatusScanning, status.Status)
	assert.Equal(t, []string{"Maija"}, status.Labels)
	assert.Equal(t, 1, ds.eventCount())
	assert.Len(t, p.workerQueue, 1)
}

func TestUnknownFaceKeepsScanning(t *testing.T) {
	ds := newMemStore(datastore.Student{
		ID: 1, FirstName: "Maija", FaceEncoding: mustEncode(t, facerec.Encoding{0, 0}),
	})
	oracle := &fakeOracle{detections: []facerec.Detection{detectionAt(facerec.Encoding{10, 10})}}
	p := newTestProcessor(t, testSettings(), ds, oracle, testBase)

	status := p.processFrameAt(context.Background(), camera.Frame{}, testBase)
	assert.Equal(t, StatusScanning, status.Status)
	assert.Equal(t, []string{UnknownLabel}, status.Labels)
	assert.Zero(t, ds.eventCount())
}

func TestOracleErrorSkipsFrame(t *testing.T) {
	enc := facerec.Encoding{0, 0}
	ds := newMemStore(datastore.Student{
		ID: 1, FirstName: "Maija", FaceEncoding: mustEncode(t, enc),
	})
	oracle := &fakeOracle{err: fmt.Errorf("camera glitch")}
	p := newTestProcessor(t, testSettings(), ds, oracle, testBase)
	ctx := context.Background()

	status := p.processFrameAt(ctx, camera.Frame{}, testBase)
	assert.Equal(t, StatusScanning, status.Status)
	assert.Empty(t, status.Labels)

	// Recovery on the next frame: the dwell timer starts fresh.
	oracle.err = nil
	oracle.detections = []facerec.Detection{detectionAt(enc)}
	status = p.processFrameAt(ctx, camera.Frame{}, testBase.Add(2*time.Second))
	assert.Equal(t, "FOUND: Maija", status.Status)
	assert.Zero(t, ds.eventCount())
}

func TestRestartRecoverySkipsSideEffects(t *testing.T) {
	enc := facerec.Encoding{0, 0}
	ds := newMemStore(datastore.Student{
		ID: 1, FirstName: "Maija", FaceEncoding: mustEncode(t, enc),
	})
	require.NoError(t, ds.InsertAttendance(&datastore.AttendanceEvent{
		StudentID:   1,
		Date:        testBase.Format(conf.DateFormat),
		CheckInTime: "07:45:00",
		Status:      datastore.StatusPresent,
	}))

	oracle := &fakeOracle{detections: []facerec.Detection{detectionAt(enc)}}
	p := newTestProcessor(t, testSettings(), ds, oracle, testBase)
	require.True(t, p.Session.IsConfirmed(1), "session rebuilt from the ledger")

	ctx := context.Background()
	p.processFrameAt(ctx, camera.Frame{}, testBase)
	status := p.processFrameAt(ctx, camera.Frame{}, testBase.Add(2*time.Second))

	assert.Equal(t, StatusScanning, status.Status)
	assert.Equal(t, []string{"Maija"}, status.Labels)
	assert.Equal(t, 1, ds.eventCount(), "no second event after restart")
	assert.Empty(t, p.workerQueue, "welcome sequence must not replay")
}

func TestConfirmAfterAbsentSweepIsSilent(t *testing.T) {
	enc := facerec.Encoding{0, 0}
	ds := newMemStore(datastore.Student{
		ID: 1, FirstName: "Maija", FaceEncoding: mustEncode(t, enc),
	})
	// Marked absent by the sweep before arriving.
	require.NoError(t, ds.InsertAttendance(&datastore.AttendanceEvent{
		StudentID: 1,
		Date:      testBase.Format(conf.DateFormat),
		Status:    datastore.StatusAbsent,
	}))

	oracle := &fakeOracle{detections: []facerec.Detection{detectionAt(enc)}}
	p := newTestProcessor(t, testSettings(), ds, oracle, testBase)
	require.False(t, p.Session.IsConfirmed(1), "absent events are not preloaded")

	ctx := context.Background()
	p.processFrameAt(ctx, camera.Frame{}, testBase)
	p.processFrameAt(ctx, camera.Frame{}, testBase.Add(1200*time.Millisecond))

	// The existing record stands and no welcome fires.
	events, err := ds.EventsForDate(testBase.Format(conf.DateFormat))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, datastore.StatusAbsent, events[0].Status)
	assert.Empty(t, p.workerQueue)
	assert.True(t, p.Session.IsConfirmed(1), "resolved conflict is cached for the day")
}

func TestDwellAccumulatesAcrossMissedFrames(t *testing.T) {
	enc := facerec.Encoding{0, 0}
	ds := newMemStore(datastore.Student{
		ID: 1, FirstName: "Maija", FaceEncoding: mustEncode(t, enc),
	})
	oracle := &fakeOracle{detections: []facerec.Detection{detectionAt(enc)}}
	p := newTestProcessor(t, testSettings(), ds, oracle, testBase)
	ctx := context.Background()

	p.processFrameAt(ctx, camera.Frame{}, testBase)

	// Face misses a frame; with dwellreset off the timer keeps running.
	oracle.detections = nil
	p.processFrameAt(ctx, camera.Frame{}, testBase.Add(500*time.Millisecond))

	oracle.detections = []facerec.Detection{detectionAt(enc)}
	status := p.processFrameAt(ctx, camera.Frame{}, testBase.Add(1200*time.Millisecond))
	assert.Equal(t, "ENTER: Maija", status.Status)
	assert.Equal(t, 1, ds.eventCount())
}

func TestDwellResetRequiresContinuousPresence(t *testing.T) {
	enc := facerec.Encoding{0, 0}
	ds := newMemStore(datastore.Student{
		ID: 1, FirstName: "Maija", FaceEncoding: mustEncode(t, enc),
	})
	settings := testSettings()
	settings.Recognition.DwellReset = true
	oracle := &fakeOracle{detections: []facerec.Detection{detectionAt(enc)}}
	p := newTestProcessor(t, settings, ds, oracle, testBase)
	ctx := context.Background()

	p.processFrameAt(ctx, camera.Frame{}, testBase)

	// Missing a frame drops the timer.
	oracle.detections = nil
	p.processFrameAt(ctx, camera.Frame{}, testBase.Add(500*time.Millisecond))

	// Reappearing restarts observation even though wall time exceeds the
	// threshold since the first sighting.
	oracle.detections = []facerec.Detection{detectionAt(enc)}
	status := p.processFrameAt(ctx, camera.Frame{}, testBase.Add(1500*time.Millisecond))
	assert.Equal(t, "FOUND: Maija", status.Status)
	assert.Zero(t, ds.eventCount())

	status = p.processFrameAt(ctx, camera.Frame{}, testBase.Add(2600*time.Millisecond))
	assert.Equal(t, "ENTER: Maija", status.Status)
	assert.Equal(t, 1, ds.eventCount())
}

func TestDayRolloverResetsSession(t *testing.T) {
	enc := facerec.Encoding{0, 0}
	ds := newMemStore(datastore.Student{
		ID: 1, FirstName: "Maija", FaceEncoding: mustEncode(t, enc),
	})
	oracle := &fakeOracle{detections: []facerec.Detection{detectionAt(enc)}}
	p := newTestProcessor(t, testSettings(), ds, oracle, testBase)
	ctx := context.Background()

	p.processFrameAt(ctx, camera.Frame{}, testBase)
	p.processFrameAt(ctx, camera.Frame{}, testBase.Add(1200*time.Millisecond))
	require.Equal(t, 1, ds.eventCount())
	require.True(t, p.Session.IsConfirmed(1))

	// Next morning the same student walks in again.
	nextDay := testBase.Add(25 * time.Hour)
	status := p.processFrameAt(ctx, camera.Frame{}, nextDay)
	assert.Equal(t, "FOUND: Maija", status.Status)
	assert.Equal(t, nextDay.Format(conf.DateFormat), p.Session.Date())
	assert.False(t, p.Session.IsConfirmed(1))

	status = p.processFrameAt(ctx, camera.Frame{}, nextDay.Add(1200*time.Millisecond))
	assert.Equal(t, "ENTER: Maija", status.Status)
	assert.Equal(t, 2, ds.eventCount(), "one event per calendar day")
}

func TestTwoFacesProgressIndependently(t *testing.T) {
	encA := facerec.Encoding{0, 0}
	encB := facerec.Encoding{10, 10}
	ds := newMemStore(
		datastore.Student{ID: 1, FirstName: "Aino", FaceEncoding: mustEncode(t, encA)},
		datastore.Student{ID: 2, FirstName: "Bertta", FaceEncoding: mustEncode(t, encB)},
	)
	oracle := &fakeOracle{detections: []facerec.Detection{detectionAt(encA), detectionAt(encB)}}
	p := newTestProcessor(t, testSettings(), ds, oracle, testBase)
	ctx := context.Background()

	status := p.processFrameAt(ctx, camera.Frame{}, testBase)
	assert.Equal(t, []string{"Aino", "Bertta"}, status.Labels)
	assert.Zero(t, ds.eventCount())

	p.processFrameAt(ctx, camera.Frame{}, testBase.Add(1200*time.Millisecond))
	assert.Equal(t, 2, ds.eventCount())
	assert.True(t, p.Session.IsConfirmed(1))
	assert.True(t, p.Session.IsConfirmed(2))
	assert.Len(t, p.workerQueue, 2)
}

func TestLoadRosterSkipsCorruptEncoding(t *testing.T) {
	enc := facerec.Encoding{0, 0}
	ds := newMemStore(
		datastore.Student{ID: 1, FirstName: "Broken", FaceEncoding: []byte("not json")},
		datastore.Student{ID: 2, FirstName: "Maija", FaceEncoding: mustEncode(t, enc)},
	)
	oracle := &fakeOracle{detections: []facerec.Detection{detectionAt(enc)}}
	p := newTestProcessor(t, testSettings(), ds, oracle, testBase)

	require.Len(t, p.students, 1)
	assert.Equal(t, "Maija", p.students[0].FirstName)

	status := p.processFrameAt(context.Background(), camera.Frame{}, testBase)
	assert.Equal(t, "FOUND: Maija", status.Status)
}

func TestNewStartsFromLedgerState(t *testing.T) {
	enc := facerec.Encoding{0, 0}
	ds := newMemStore(datastore.Student{
		ID: 1, FirstName: "Maija", FaceEncoding: mustEncode(t, enc),
	})
	today := time.Now().Format(conf.DateFormat)
	require.NoError(t, ds.InsertAttendance(&datastore.AttendanceEvent{
		StudentID: 1, Date: today, CheckInTime: "07:45:00", Status: datastore.StatusPresent,
	}))

	p, err := New(testSettings(), ds, &fakeOracle{}, SideEffects{}, nil)
	require.NoError(t, err)
	defer p.Shutdown()

	assert.Equal(t, 1, p.Session.ConfirmedCount())
	assert.True(t, p.Session.IsConfirmed(1))
}
