package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/clinic-scheduling/internal/availability"
	"github.com/clinicore/clinic-scheduling/internal/booking"
	redisclient "github.com/clinicore/clinic-scheduling/internal/redis"
	"github.com/clinicore/clinic-scheduling/internal/schedule"
	"github.com/clinicore/clinic-scheduling/internal/timeutil"
)

// SlotService is the availability surface the handlers need.
// Satisfied by *availability.Service.
type SlotService interface {
	ComputeAvailableSlots(ctx context.Context, practitionerID uuid.UUID, horizonDays int) (map[string][]time.Time, error)
	Check(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (availability.ConflictReason, error)
}

// BookingService is the booking surface the handlers need.
// Satisfied by *booking.Service.
type BookingService interface {
	Book(ctx context.Context, req booking.BookRequest) (*schedule.Appointment, error)
	Confirm(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]schedule.Appointment, error)
}

const naiveTimeLayout = "2006-01-02T15:04:05"

// parseLocalAware accepts RFC 3339 instants and, for convenience of
// form-driven callers, naive timestamps which are taken to be
// wall-clock in the clinic's zone.
func parseLocalAware(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return timeutil.ToLocalAware(t, loc), nil
	}
	return time.ParseInLocation(naiveTimeLayout, s, loc)
}

func availableSlotsHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a valid UUID")
			return
		}

		days := 0
		if v := r.URL.Query().Get("days"); v != "" {
			days, err = strconv.Atoi(v)
			if err != nil || days < 0 || days > 90 {
				writeError(w, http.StatusBadRequest, "invalid_days", "days must be an integer between 0 and 90")
				return
			}
		}

		slots, err := svc.ComputeAvailableSlots(r.Context(), practitionerID, days)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		formatted := make(map[string][]string, len(slots))
		for date, starts := range slots {
			day := make([]string, len(starts))
			for i, t := range starts {
				day[i] = t.Format(time.RFC3339)
			}
			formatted[date] = day
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			PractitionerID: practitionerID,
			Days:           days,
			Slots:          formatted,
		})
	}
}

func conflictCheckHandler(svc SlotService, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a valid UUID")
			return
		}

		q := r.URL.Query()

		start, err := parseLocalAware(q.Get("start"), loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be an RFC 3339 timestamp")
			return
		}

		end, err := parseLocalAware(q.Get("end"), loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be an RFC 3339 timestamp")
			return
		}

		excludeID := uuid.Nil
		if v := q.Get("exclude"); v != "" {
			excludeID, err = uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_exclude", "exclude must be a valid UUID")
				return
			}
		}

		reason, err := svc.Check(r.Context(), practitionerID, start, end, excludeID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, ConflictCheckResponse{
			Conflict: reason != availability.ReasonNone,
			Reason:   string(reason),
		})
	}
}

func bookAppointmentHandler(svc BookingService, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		practitionerID, err := uuid.Parse(req.PractitionerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		start, err := parseLocalAware(req.StartAt, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_at", "start_at must be an RFC 3339 timestamp")
			return
		}

		var end *time.Time
		if req.EndAt != "" {
			t, err := parseLocalAware(req.EndAt, loc)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end_at", "end_at must be an RFC 3339 timestamp")
				return
			}
			end = &t
		}

		appt, err := svc.Book(r.Context(), booking.BookRequest{
			PractitionerID: practitionerID,
			PatientID:      patientID,
			StartAt:        start,
			EndAt:          end,
			FollowUp:       req.FollowUp,
			Symptoms:       req.Symptoms,
		})
		if err != nil {
			handleBookError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func transitionHandler(transition func(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := transition(r.Context(), id)
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, schedule.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", "no appointment with that id")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listPatientAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		appointments, err := svc.ListByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		out := make([]AppointmentResponse, len(appointments))
		for i := range appointments {
			out[i] = toAppointmentResponse(&appointments[i])
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func toAppointmentResponse(a *schedule.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		PractitionerID: a.PractitionerID,
		PatientID:      a.PatientID,
		StartAt:        a.StartAt,
		EndAt:          a.EndAt,
		Status:         string(a.Status),
		FollowUp:       a.FollowUp,
		ReminderSent:   a.ReminderSent,
	}
}

func handleBookError(w http.ResponseWriter, err error) {
	var conflict *booking.ConflictError

	switch {
	case errors.Is(err, schedule.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, schedule.ErrPractitionerNotFound):
		writeError(w, http.StatusNotFound, "practitioner_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, "invalid_interval", err.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "slot_conflict", string(conflict.Reason))
	case errors.Is(err, schedule.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", "slot was booked by someone else, pick another")
	case errors.Is(err, booking.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
