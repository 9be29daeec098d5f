// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jsalmela/attendant/internal/conf"
	"github.com/jsalmela/attendant/internal/errors"
)

// ErrEventExists is returned by InsertAttendance when an event already
// exists for the same (student, date) pair. Callers treat it as a benign
// signal that the day's record is already settled.
var ErrEventExists = errors.NewStd("attendance event already exists for student and date")

// Interface abstracts the underlying database implementation and defines
// the operations the engine needs from the roster store and the ledger.
type Interface interface {
	Open() error
	Close() error

	// roster store
	GetAllStudents() ([]Student, error)
	GetStudent(id uint) (Student, error)
	SaveStudent(student *Student) error

	// attendance ledger
	InsertAttendance(event *AttendanceEvent) error
	HasEventForDate(studentID uint, date string) (bool, error)
	EventsForDate(date string) ([]AttendanceEvent, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore based on the enabled output in settings.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// GetAllStudents returns all enrolled students in roster load order, which
// is primary key order. The first-match policy of the matcher depends on
// this ordering being stable.
func (ds *DataStore) GetAllStudents() ([]Student, error) {
	var students []Student
	if err := ds.DB.Order("id ASC").Find(&students).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_all_students").
			Build()
	}
	return students, nil
}

// GetStudent retrieves a single student by ID.
func (ds *DataStore) GetStudent(id uint) (Student, error) {
	var student Student
	if err := ds.DB.First(&student, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Student{}, errors.Newf("student %d not found", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return Student{}, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("student_id", id).
			Build()
	}
	return student, nil
}

// SaveStudent stores a new student record.
func (ds *DataStore) SaveStudent(student *Student) error {
	if student == nil {
		return errors.Newf("student cannot be nil").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	if student.FirstName == "" {
		return errors.Newf("student first name cannot be empty").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(student.FaceEncoding) == 0 {
		return errors.Newf("student face encoding cannot be empty").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	if err := ds.DB.Create(student).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_student").
			Build()
	}
	return nil
}

// InsertAttendance inserts one attendance event as a single atomic
// conditional insert. The OnConflict clause turns a (student_id, date)
// collision into zero affected rows instead of a constraint error, so the
// detection loop and the report sweep can race without either crashing;
// the loser receives ErrEventExists.
func (ds *DataStore) InsertAttendance(event *AttendanceEvent) error {
	if event == nil {
		return errors.Newf("attendance event cannot be nil").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	if event.Status != StatusPresent && event.Status != StatusAbsent {
		return errors.Newf("invalid attendance status %q", event.Status).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("student_id", event.StudentID).
			Build()
	}
	if event.Date == "" {
		return errors.Newf("attendance date cannot be empty").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	result := ds.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "student_id"},
			{Name: "date"},
		},
		DoNothing: true,
	}).Create(event)

	if result.Error != nil {
		return errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "insert_attendance").
			Context("student_id", event.StudentID).
			Context("date", event.Date).
			Build()
	}

	if result.RowsAffected == 0 {
		return ErrEventExists
	}
	return nil
}

// HasEventForDate reports whether any attendance event exists for the
// student on the given date.
func (ds *DataStore) HasEventForDate(studentID uint, date string) (bool, error) {
	var count int64
	err := ds.DB.Model(&AttendanceEvent{}).
		Where("student_id = ? AND date = ?", studentID, date).
		Count(&count).Error
	if err != nil {
		return false, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "has_event_for_date").
			Context("student_id", studentID).
			Context("date", date).
			Build()
	}
	return count > 0, nil
}

// EventsForDate returns all attendance events recorded for the given date.
// Used for restart recovery and as the report sweep's snapshot.
func (ds *DataStore) EventsForDate(date string) ([]AttendanceEvent, error) {
	var events []AttendanceEvent
	if err := ds.DB.Where("date = ?", date).Find(&events).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "events_for_date").
			Context("date", date).
			Build()
	}
	return events, nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.Default.LogMode(level)
}

// performAutoMigration runs GORM automigration for all models.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Student{}, &AttendanceEvent{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		fmt.Printf("%s database connection initialized: %s\n", dbType, connectionInfo)
	}
	return nil
}

// CloseDB closes the underlying sql.DB connection of a GORM handle.
func (ds *DataStore) closeDB() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return fmt.Errorf("getting generic database interface: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	ds.DB = nil
	return nil
}
