// Package availability computes free bookable slots for a practitioner
// from recurring weekly schedules, one-off exceptions and existing
// appointments, and validates proposed appointment intervals against
// the same data.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-scheduling/internal/config"
	"github.com/clinicore/clinic-scheduling/internal/interval"
	"github.com/clinicore/clinic-scheduling/internal/schedule"
	"github.com/clinicore/clinic-scheduling/internal/timeutil"
)

// DateFormat keys the slot result map.
const DateFormat = "2006-01-02"

// Repository is the read-side subset of the schedule repository the
// engine needs. Satisfied by *schedule.PgRepository.
type Repository interface {
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*schedule.Practitioner, error)
	ListRecurringSchedules(ctx context.Context, practitionerID uuid.UUID) ([]schedule.RecurringSchedule, error)
	ListExceptions(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]schedule.ScheduleException, error)
	ListOccupyingAppointments(ctx context.Context, practitionerID uuid.UUID, from, to time.Time, defaultMinutes int) ([]schedule.Appointment, error)
}

type Service struct {
	repo         Repository
	loc          *time.Location
	slotDuration time.Duration
	horizonDays  int
	now          func() time.Time
}

func NewService(repo Repository, cfg config.Config) *Service {
	return &Service{
		repo:         repo,
		loc:          cfg.Location,
		slotDuration: cfg.SlotDuration,
		horizonDays:  cfg.HorizonDays,
		now:          time.Now,
	}
}

// WithClock replaces the time source. Each query captures now exactly
// once, so a fixed clock makes results reproducible.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// SlotDuration returns the configured slot length.
func (s *Service) SlotDuration() time.Duration {
	return s.slotDuration
}

// ComputeAvailableSlots returns, for each calendar date in the next
// horizonDays days starting today, the ascending list of free slot
// start instants. Dates with no availability are omitted from the map.
// An unknown practitioner yields an empty map, not an error.
func (s *Service) ComputeAvailableSlots(ctx context.Context, practitionerID uuid.UUID, horizonDays int) (map[string][]time.Time, error) {
	if horizonDays <= 0 {
		horizonDays = s.horizonDays
	}

	if _, err := s.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		if errors.Is(err, schedule.ErrPractitionerNotFound) {
			return map[string][]time.Time{}, nil
		}
		return nil, fmt.Errorf("load practitioner: %w", err)
	}

	now := s.now().In(s.loc)
	today := timeutil.DayStart(now)
	periodEnd := today.AddDate(0, 0, horizonDays)

	recurring, err := s.repo.ListRecurringSchedules(ctx, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("list recurring schedules: %w", err)
	}

	exceptions, err := s.repo.ListExceptions(ctx, practitionerID, today, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}

	appointments, err := s.repo.ListOccupyingAppointments(ctx, practitionerID, today, periodEnd, int(s.slotDuration.Minutes()))
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	busy := s.busyIntervals(exceptions, appointments)

	byWeekday := make(map[int][]schedule.RecurringSchedule)
	for _, r := range recurring {
		byWeekday[r.Weekday] = append(byWeekday[r.Weekday], r)
	}

	result := make(map[string][]time.Time)

	for i := 0; i < horizonDays; i++ {
		day := today.AddDate(0, 0, i)

		windows := s.dayWindows(day, byWeekday[timeutil.WeekdayIndex(day)], exceptions)
		if len(windows) == 0 {
			continue
		}

		slots := s.generateDay(day, windows, busy, now)
		if len(slots) == 0 {
			continue
		}

		result[day.Format(DateFormat)] = slots
	}

	return result, nil
}

// busyIntervals collects everything that occupies the practitioner's
// time: blocking exceptions plus appointments with an occupying status.
func (s *Service) busyIntervals(exceptions []schedule.ScheduleException, appointments []schedule.Appointment) []interval.Interval {
	busy := make([]interval.Interval, 0, len(exceptions)+len(appointments))

	for _, e := range exceptions {
		if !e.IsBlocking {
			continue
		}
		busy = append(busy, interval.Interval{
			Start: e.StartAt.In(s.loc),
			End:   e.EndAt.In(s.loc),
		})
	}

	for _, a := range appointments {
		busy = append(busy, interval.Interval{
			Start: a.StartAt.In(s.loc),
			End:   a.EndOrDefault(s.slotDuration).In(s.loc),
		})
	}

	return busy
}

// dayWindows resolves the working windows applicable on the given day:
// recurring entries for that weekday anchored on the day, plus
// extra-availability exceptions whose date range touches the day.
// Exception intervals are passed through unclipped even when they span
// several days. Entries whose end does not lie after their start are
// dead data and are skipped. Windows are sorted ascending by start and
// deliberately not merged; the generator dedupes across overlaps.
func (s *Service) dayWindows(day time.Time, recurring []schedule.RecurringSchedule, exceptions []schedule.ScheduleException) []interval.Interval {
	var windows []interval.Interval

	for _, r := range recurring {
		w := interval.Interval{
			Start: timeutil.AtMinutes(day, r.StartMinute, s.loc),
			End:   timeutil.AtMinutes(day, r.EndMinute, s.loc),
		}
		if !w.IsValid() {
			continue
		}
		windows = append(windows, w)
	}

	for _, e := range exceptions {
		if e.IsBlocking {
			continue
		}
		start := e.StartAt.In(s.loc)
		end := e.EndAt.In(s.loc)
		if timeutil.DayStart(start).After(day) || timeutil.DayStart(end).Before(day) {
			continue
		}
		w := interval.Interval{Start: start, End: end}
		if !w.IsValid() {
			continue
		}
		windows = append(windows, w)
	}

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].Start.Before(windows[j].Start)
	})

	return windows
}

// generateDay slices the day's windows into slots of the configured
// duration, drops candidates overlapping any busy interval, and
// dedupes start times reachable from more than one window.
func (s *Service) generateDay(day time.Time, windows []interval.Interval, busy []interval.Interval, now time.Time) []time.Time {
	d := s.slotDuration
	seen := make(map[int64]time.Time)

	for _, win := range windows {
		t := win.Start

		// On the current day a window may have started in the past;
		// generation then begins at the next slot boundary after now.
		if timeutil.SameDate(now, day) && t.Before(now) {
			if b := timeutil.NextSlotBoundary(now, d); b.After(t) {
				t = b
			}
		}

		for !t.Add(d).After(win.End) {
			candidate := interval.Interval{Start: t, End: t.Add(d)}
			if !interval.AnyOverlap(candidate, busy) {
				seen[t.UnixNano()] = t
			}
			t = t.Add(d)
		}
	}

	if len(seen) == 0 {
		return nil
	}

	slots := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		slots = append(slots, t)
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Before(slots[j])
	})

	return slots
}
