package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-scheduling/internal/availability"
	"github.com/clinicore/clinic-scheduling/internal/booking"
	"github.com/clinicore/clinic-scheduling/internal/schedule"
)

var (
	testPractitionerID = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	testPatientID      = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
	testAppointmentID  = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")
)

type stubSlots struct {
	slots  map[string][]time.Time
	reason availability.ConflictReason

	gotDays    int
	checkStart time.Time
	checkEnd   time.Time
	excludeID  uuid.UUID
}

func (s *stubSlots) ComputeAvailableSlots(_ context.Context, _ uuid.UUID, horizonDays int) (map[string][]time.Time, error) {
	s.gotDays = horizonDays
	return s.slots, nil
}

func (s *stubSlots) Check(_ context.Context, _ uuid.UUID, start, end time.Time, excludeID uuid.UUID) (availability.ConflictReason, error) {
	s.checkStart = start
	s.checkEnd = end
	s.excludeID = excludeID
	return s.reason, nil
}

type stubBookings struct {
	appt    *schedule.Appointment
	bookErr error

	gotReq booking.BookRequest
}

func (s *stubBookings) Book(_ context.Context, req booking.BookRequest) (*schedule.Appointment, error) {
	s.gotReq = req
	if s.bookErr != nil {
		return nil, s.bookErr
	}
	return s.appt, nil
}

func (s *stubBookings) Confirm(_ context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	if s.bookErr != nil {
		return nil, s.bookErr
	}
	return s.appt, nil
}

func (s *stubBookings) Cancel(_ context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	if s.bookErr != nil {
		return nil, s.bookErr
	}
	return s.appt, nil
}

func (s *stubBookings) Complete(_ context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	if s.bookErr != nil {
		return nil, s.bookErr
	}
	return s.appt, nil
}

func (s *stubBookings) Get(_ context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	if s.bookErr != nil {
		return nil, s.bookErr
	}
	return s.appt, nil
}

func (s *stubBookings) ListByPatient(_ context.Context, _ uuid.UUID, _, _ int) ([]schedule.Appointment, error) {
	if s.appt == nil {
		return nil, nil
	}
	return []schedule.Appointment{*s.appt}, nil
}

func testAppointment() *schedule.Appointment {
	end := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	return &schedule.Appointment{
		ID:             testAppointmentID,
		PractitionerID: testPractitionerID,
		PatientID:      testPatientID,
		StartAt:        time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndAt:          &end,
		Status:         schedule.StatusScheduled,
	}
}

func newTestRouter(slots *stubSlots, bookings *stubBookings) http.Handler {
	return NewRouter(RouterConfig{
		Slots:    slots,
		Bookings: bookings,
		Location: time.UTC,
		Env:      "test",
		Version:  "test",
	})
}

func doRequest(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return out
}

func TestAvailableSlots(t *testing.T) {
	slots := &stubSlots{
		slots: map[string][]time.Time{
			"2026-03-02": {
				time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
				time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
			},
		},
	}
	h := newTestRouter(slots, &stubBookings{})

	rec := doRequest(t, h, http.MethodGet, fmt.Sprintf("/practitioners/%s/slots?days=3", testPractitionerID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	resp := decodeBody[SlotsResponse](t, rec)
	if slots.gotDays != 3 {
		t.Fatalf("days forwarded = %d, want 3", slots.gotDays)
	}
	got := resp.Slots["2026-03-02"]
	want := []string{"2026-03-02T09:00:00Z", "2026-03-02T09:30:00Z"}
	if len(got) != len(want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slots[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAvailableSlots_BadInput(t *testing.T) {
	h := newTestRouter(&stubSlots{}, &stubBookings{})

	rec := doRequest(t, h, http.MethodGet, "/practitioners/not-a-uuid/slots", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, fmt.Sprintf("/practitioners/%s/slots?days=120", testPractitionerID), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for out-of-range days", rec.Code)
	}
}

func TestConflictCheck(t *testing.T) {
	slots := &stubSlots{reason: availability.ReasonBlocked}
	h := newTestRouter(slots, &stubBookings{})

	target := fmt.Sprintf("/practitioners/%s/conflict?start=2026-03-02T09:00:00Z&end=2026-03-02T09:30:00Z", testPractitionerID)
	rec := doRequest(t, h, http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	resp := decodeBody[ConflictCheckResponse](t, rec)
	if !resp.Conflict || resp.Reason != string(availability.ReasonBlocked) {
		t.Fatalf("response = %+v, want blocked conflict", resp)
	}
	if !slots.checkStart.Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("start forwarded = %s", slots.checkStart)
	}
}

func TestConflictCheck_NaiveTimestampUsesClinicZone(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	slots := &stubSlots{}
	h := NewRouter(RouterConfig{
		Slots:    slots,
		Bookings: &stubBookings{},
		Location: loc,
		Env:      "test",
		Version:  "test",
	})

	target := fmt.Sprintf("/practitioners/%s/conflict?start=2026-03-02T09:00:00&end=2026-03-02T09:30:00", testPractitionerID)
	rec := doRequest(t, h, http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	expected := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	if !slots.checkStart.Equal(expected) {
		t.Fatalf("naive start interpreted as %s, want %s", slots.checkStart, expected)
	}
}

func TestConflictCheck_ExcludeForwarded(t *testing.T) {
	slots := &stubSlots{}
	h := newTestRouter(slots, &stubBookings{})

	target := fmt.Sprintf("/practitioners/%s/conflict?start=2026-03-02T09:00:00Z&end=2026-03-02T09:30:00Z&exclude=%s",
		testPractitionerID, testAppointmentID)
	rec := doRequest(t, h, http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if slots.excludeID != testAppointmentID {
		t.Fatalf("exclude forwarded = %s, want %s", slots.excludeID, testAppointmentID)
	}
}

func TestBookAppointment(t *testing.T) {
	bookings := &stubBookings{appt: testAppointment()}
	h := newTestRouter(&stubSlots{}, bookings)

	rec := doRequest(t, h, http.MethodPost, "/appointments", BookAppointmentRequest{
		PractitionerID: testPractitionerID.String(),
		PatientID:      testPatientID.String(),
		StartAt:        "2026-03-02T09:00:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	resp := decodeBody[AppointmentResponse](t, rec)
	if resp.ID != testAppointmentID || resp.Status != string(schedule.StatusScheduled) {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if bookings.gotReq.EndAt != nil {
		t.Fatal("omitted end_at must reach the service as nil")
	}
}

func TestBookAppointment_Errors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown patient",
			err:        schedule.ErrPatientNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "patient_not_found",
		},
		{
			name:       "unknown practitioner",
			err:        schedule.ErrPractitionerNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "practitioner_not_found",
		},
		{
			name:       "invalid interval",
			err:        booking.ErrInvalidInterval,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_interval",
		},
		{
			name:       "conflict",
			err:        &booking.ConflictError{Reason: availability.ReasonAppointment},
			wantStatus: http.StatusConflict,
			wantCode:   "slot_conflict",
		},
		{
			name:       "lost insert race",
			err:        schedule.ErrSlotTaken,
			wantStatus: http.StatusConflict,
			wantCode:   "slot_taken",
		},
		{
			name:       "lock held",
			err:        booking.ErrSlotBeingBooked,
			wantStatus: http.StatusConflict,
			wantCode:   "slot_being_booked",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := newTestRouter(&stubSlots{}, &stubBookings{bookErr: c.err})

			rec := doRequest(t, h, http.MethodPost, "/appointments", BookAppointmentRequest{
				PractitionerID: testPractitionerID.String(),
				PatientID:      testPatientID.String(),
				StartAt:        "2026-03-02T09:00:00Z",
			})
			if rec.Code != c.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, c.wantStatus, rec.Body)
			}

			resp := decodeBody[ErrorResponse](t, rec)
			if resp.Error != c.wantCode {
				t.Fatalf("error code = %s, want %s", resp.Error, c.wantCode)
			}
		})
	}
}

func TestBookAppointment_BadBody(t *testing.T) {
	h := newTestRouter(&stubSlots{}, &stubBookings{})

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/appointments", BookAppointmentRequest{
		PractitionerID: "nope",
		PatientID:      testPatientID.String(),
		StartAt:        "2026-03-02T09:00:00Z",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for bad practitioner id", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/appointments", BookAppointmentRequest{
		PractitionerID: testPractitionerID.String(),
		PatientID:      testPatientID.String(),
		StartAt:        "March 2nd, 9am",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unparseable start_at", rec.Code)
	}
}

func TestTransitionEndpoints(t *testing.T) {
	appt := testAppointment()
	appt.Status = schedule.StatusConfirmed
	h := newTestRouter(&stubSlots{}, &stubBookings{appt: appt})

	for _, action := range []string{"confirm", "cancel", "complete"} {
		rec := doRequest(t, h, http.MethodPost, fmt.Sprintf("/appointments/%s/%s", testAppointmentID, action), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200: %s", action, rec.Code, rec.Body)
		}
	}
}

func TestTransition_InvalidStatus(t *testing.T) {
	h := newTestRouter(&stubSlots{}, &stubBookings{bookErr: booking.ErrInvalidStatusTransition})

	rec := doRequest(t, h, http.MethodPost, fmt.Sprintf("/appointments/%s/confirm", testAppointmentID), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	resp := decodeBody[ErrorResponse](t, rec)
	if resp.Error != "invalid_status_transition" {
		t.Fatalf("error code = %s", resp.Error)
	}
}

func TestGetAppointment_NotFound(t *testing.T) {
	h := newTestRouter(&stubSlots{}, &stubBookings{bookErr: schedule.ErrAppointmentNotFound})

	rec := doRequest(t, h, http.MethodGet, fmt.Sprintf("/appointments/%s", testAppointmentID), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListPatientAppointments(t *testing.T) {
	h := newTestRouter(&stubSlots{}, &stubBookings{appt: testAppointment()})

	rec := doRequest(t, h, http.MethodGet, fmt.Sprintf("/patients/%s/appointments", testPatientID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	resp := decodeBody[[]AppointmentResponse](t, rec)
	if len(resp) != 1 || resp[0].ID != testAppointmentID {
		t.Fatalf("unexpected list: %+v", resp)
	}
}
