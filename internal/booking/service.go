// Package booking creates appointments and drives their status
// transitions. The conflict check runs again inside the per-slot lock,
// and the unique index on (practitioner_id, start_at) is the final
// arbiter when two bookings race past it anyway.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-scheduling/internal/availability"
	"github.com/clinicore/clinic-scheduling/internal/config"
	redisclient "github.com/clinicore/clinic-scheduling/internal/redis"
	"github.com/clinicore/clinic-scheduling/internal/schedule"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventReminderSent         = "REMINDER_SENT"
)

var (
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidInterval         = errors.New("appointment end must be after its start")
)

// ConflictError reports which of the ordered availability checks
// rejected the booking.
type ConflictError struct {
	Reason availability.ConflictReason
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("booking conflict: %s", e.Reason)
}

type Service struct {
	repo    schedule.Repository
	checker *availability.Service
	locker  redisclient.Locker
	cfg     config.Config
	now     func() time.Time
}

func NewService(repo schedule.Repository, checker *availability.Service, locker redisclient.Locker, cfg config.Config) *Service {
	return &Service{
		repo:    repo,
		checker: checker,
		locker:  locker,
		cfg:     cfg,
		now:     time.Now,
	}
}

// WithClock replaces the time source used for reminder cutoffs.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

type BookRequest struct {
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	StartAt        time.Time
	EndAt          *time.Time
	FollowUp       bool
	Symptoms       *string
}

// Book reserves an interval for a patient. It validates both parties
// exist, defaults a missing end to one slot duration, re-runs the
// conflict check inside the booking lock and inserts. A unique-index
// violation from a concurrent booking surfaces as ErrSlotTaken, which
// callers treat exactly like a failed conflict check.
func (s *Service) Book(ctx context.Context, req BookRequest) (*schedule.Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, schedule.ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	if _, err := s.repo.GetPractitionerByID(ctx, req.PractitionerID); err != nil {
		if errors.Is(err, schedule.ErrPractitionerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load practitioner: %w", err)
	}

	start := req.StartAt.In(s.cfg.Location)
	end := start.Add(s.cfg.SlotDuration)
	if req.EndAt != nil {
		end = req.EndAt.In(s.cfg.Location)
	}
	if !end.After(start) {
		return nil, ErrInvalidInterval
	}

	var created *schedule.Appointment

	err := s.locker.WithBookingLock(ctx, req.PractitionerID, start, func(lockCtx context.Context) error {
		reason, err := s.checker.Check(lockCtx, req.PractitionerID, start, end, uuid.Nil)
		if err != nil {
			return fmt.Errorf("conflict check: %w", err)
		}
		if reason != availability.ReasonNone {
			return &ConflictError{Reason: reason}
		}

		appt, err := s.repo.CreateAppointment(lockCtx, schedule.Appointment{
			PractitionerID: req.PractitionerID,
			PatientID:      req.PatientID,
			StartAt:        start,
			EndAt:          &end,
			Status:         schedule.StatusScheduled,
			FollowUp:       req.FollowUp,
			Symptoms:       req.Symptoms,
		})
		if err != nil {
			if errors.Is(err, schedule.ErrSlotTaken) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt

		payload := map[string]any{
			"practitioner_id": req.PractitionerID.String(),
			"patient_id":      req.PatientID.String(),
			"start_at":        start,
			"end_at":          end,
		}
		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, payload)

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// Confirm moves a scheduled appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	return s.transition(ctx, id, schedule.StatusScheduled, schedule.StatusConfirmed, EventAppointmentConfirmed)
}

// Complete moves a confirmed appointment to completed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	return s.transition(ctx, id, schedule.StatusConfirmed, schedule.StatusCompleted, EventAppointmentCompleted)
}

// Cancel releases the appointment's time. Both scheduled and confirmed
// appointments can be cancelled; cancellation is a status change, the
// row is never deleted.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !appt.Status.Occupying() {
		return nil, ErrInvalidStatusTransition
	}

	return s.transition(ctx, id, appt.Status, schedule.StatusCancelled, EventAppointmentCancelled)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to schedule.AppointmentStatus, eventType string) (*schedule.Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status != from {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, from, to)
	if err != nil {
		if errors.Is(err, schedule.ErrAppointmentNotFound) {
			// Lost a concurrent transition between the load and the
			// compare-and-set update.
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated.ID, eventType, map[string]any{
		"from": string(from),
		"to":   string(to),
	})

	return updated, nil
}

// Get retrieves one appointment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListByPatient retrieves a patient's appointments, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]schedule.Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

// SendDueReminders marks appointments starting within the reminder
// lead window as reminded. Intended to be called by the worker
// periodically. Returns how many reminders went out.
func (s *Service) SendDueReminders(ctx context.Context) (int, error) {
	now := s.now()

	due, err := s.repo.FindDueReminders(ctx, now, s.cfg.ReminderLead)
	if err != nil {
		return 0, fmt.Errorf("find due reminders: %w", err)
	}

	sent := 0
	for _, appt := range due {
		if err := s.repo.MarkReminderSent(ctx, appt.ID); err != nil {
			if !errors.Is(err, schedule.ErrAppointmentNotFound) {
				log.Printf("failed to mark reminder sent for appointment %s: %v", appt.ID, err)
			}
			continue
		}
		s.logEvent(ctx, appt.ID, EventReminderSent, map[string]any{
			"start_at": appt.StartAt,
		})
		sent++
	}

	return sent, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := schedule.EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
