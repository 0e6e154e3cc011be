package api

import (
	"time"

	"github.com/google/uuid"
)

type BookAppointmentRequest struct {
	PractitionerID string  `json:"practitioner_id"`
	PatientID      string  `json:"patient_id"`
	StartAt        string  `json:"start_at"`
	EndAt          string  `json:"end_at,omitempty"`
	FollowUp       bool    `json:"follow_up,omitempty"`
	Symptoms       *string `json:"symptoms,omitempty"`
}

type AppointmentResponse struct {
	ID             uuid.UUID  `json:"id"`
	PractitionerID uuid.UUID  `json:"practitioner_id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	StartAt        time.Time  `json:"start_at"`
	EndAt          *time.Time `json:"end_at,omitempty"`
	Status         string     `json:"status"`
	FollowUp       bool       `json:"follow_up"`
	ReminderSent   bool       `json:"reminder_sent"`
}

// SlotsResponse maps calendar dates to ascending RFC 3339 slot start
// instants. Dates without availability are absent.
type SlotsResponse struct {
	PractitionerID uuid.UUID           `json:"practitioner_id"`
	Days           int                 `json:"days"`
	Slots          map[string][]string `json:"slots"`
}

type ConflictCheckResponse struct {
	Conflict bool   `json:"conflict"`
	Reason   string `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
