package schedule

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Occupying reports whether an appointment in this status reserves the
// practitioner's time for availability and conflict purposes.
func (s AppointmentStatus) Occupying() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

type Practitioner struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecurringSchedule is one weekly-repeating block of working hours.
// Weekday uses 0=Sunday through 6=Saturday. Start and end are local
// wall-clock offsets in minutes since midnight; they carry no date and
// no zone of their own.
type RecurringSchedule struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	Weekday        int
	StartMinute    int
	EndMinute      int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ScheduleException is a one-off override of the recurring schedule:
// a block (IsBlocking=true) or extra availability (IsBlocking=false).
type ScheduleException struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	StartAt        time.Time
	EndAt          time.Time
	IsBlocking     bool
	Reason         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Appointment links a practitioner and a patient over a time interval.
// EndAt may be nil, in which case the booking defaults it to
// StartAt plus the configured slot duration.
type Appointment struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	StartAt        time.Time
	EndAt          *time.Time
	Status         AppointmentStatus
	FollowUp       bool
	Symptoms       *string
	ReminderSent   bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EndOrDefault returns the appointment's end, falling back to the
// given slot duration when no explicit end was stored.
func (a Appointment) EndOrDefault(d time.Duration) time.Time {
	if a.EndAt != nil {
		return *a.EndAt
	}
	return a.StartAt.Add(d)
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
