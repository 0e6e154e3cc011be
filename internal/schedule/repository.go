package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")

	// ErrSlotTaken is returned when an insert loses the race for a
	// (practitioner, start time) pair to a concurrent booking.
	ErrSlotTaken = errors.New("slot was just taken by another booking")
)

// Repository contains all DB interactions needed by the availability
// engine, the booking service and the reminder worker.
type Repository interface {
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Availability inputs
	ListRecurringSchedules(ctx context.Context, practitionerID uuid.UUID) ([]RecurringSchedule, error)
	ListExceptions(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]ScheduleException, error)
	// ListOccupyingAppointments returns appointments with an occupying
	// status whose interval intersects [from, to). Appointments without
	// an explicit end are treated as defaultMinutes long.
	ListOccupyingAppointments(ctx context.Context, practitionerID uuid.UUID, from, to time.Time, defaultMinutes int) ([]Appointment, error)

	// Booking and status transitions
	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Reminder worker
	FindDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
