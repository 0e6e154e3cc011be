package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-scheduling/internal/interval"
)

// ConflictReason tells the caller why a candidate interval cannot be
// booked, so the UI can phrase the message. Checks run in a fixed
// order and the first failing one wins.
type ConflictReason string

const (
	ReasonNone        ConflictReason = ""
	ReasonAppointment ConflictReason = "appointment_overlap"
	ReasonBlocked     ConflictReason = "blocked_period"
	ReasonPastStart   ConflictReason = "start_in_past"
)

// Check validates a candidate [start, end) interval for a practitioner
// against occupying appointments, blocking exceptions and the current
// time, in that order. excludeID skips one appointment from the
// comparison set so an appointment being edited does not conflict with
// itself; pass uuid.Nil when creating.
func (s *Service) Check(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (ConflictReason, error) {
	start = start.In(s.loc)
	end = end.In(s.loc)
	candidate := interval.Interval{Start: start, End: end}

	appointments, err := s.repo.ListOccupyingAppointments(ctx, practitionerID, start, end, int(s.slotDuration.Minutes()))
	if err != nil {
		return ReasonNone, fmt.Errorf("list appointments: %w", err)
	}
	for _, a := range appointments {
		if excludeID != uuid.Nil && a.ID == excludeID {
			continue
		}
		occupied := interval.Interval{
			Start: a.StartAt.In(s.loc),
			End:   a.EndOrDefault(s.slotDuration).In(s.loc),
		}
		if candidate.Overlaps(occupied) {
			return ReasonAppointment, nil
		}
	}

	exceptions, err := s.repo.ListExceptions(ctx, practitionerID, start, end)
	if err != nil {
		return ReasonNone, fmt.Errorf("list exceptions: %w", err)
	}
	for _, e := range exceptions {
		if !e.IsBlocking {
			continue
		}
		blocked := interval.Interval{Start: e.StartAt.In(s.loc), End: e.EndAt.In(s.loc)}
		if candidate.Overlaps(blocked) {
			return ReasonBlocked, nil
		}
	}

	if start.Before(s.now().In(s.loc)) {
		return ReasonPastStart, nil
	}

	return ReasonNone, nil
}

// HasConflict is the boolean form of Check.
func (s *Service) HasConflict(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (bool, error) {
	reason, err := s.Check(ctx, practitionerID, start, end, excludeID)
	if err != nil {
		return false, err
	}
	return reason != ReasonNone, nil
}
