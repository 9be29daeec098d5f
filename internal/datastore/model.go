// model.go this code defines the data model for the application
package datastore

import "time"

// Attendance status values.
const (
	StatusPresent = "PRESENT"
	StatusAbsent  = "ABSENT"
)

// Student represents an enrolled identity with a single face encoding.
// Records are immutable after enrollment.
type Student struct {
	ID              uint   `gorm:"primaryKey"`
	FirstName       string `gorm:"not null"`
	LastName        string
	GuardianContact string    // optional delivery address for absence notifications
	FaceEncoding    []byte    `gorm:"not null"` // JSON-encoded []float32
	CreatedAt       time.Time `gorm:"index"`
}

// DisplayName returns the student's full name for display and notifications.
func (s *Student) DisplayName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// AttendanceEvent represents one presence or absence record. The composite
// unique index on (student_id, date) enforces at most one event per student
// per calendar day regardless of status.
type AttendanceEvent struct {
	ID          uint   `gorm:"primaryKey"`
	StudentID   uint   `gorm:"not null;uniqueIndex:idx_attendance_student_date"`
	Date        string `gorm:"not null;uniqueIndex:idx_attendance_student_date;index:idx_attendance_date"` // "2006-01-02"
	CheckInTime string // "15:04:05", set only for PRESENT events
	Status      string `gorm:"not null;type:varchar(10)"`
	CreatedAt   time.Time
}
