package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code raised by the
// (practitioner_id, start_at) unique index on appointments.
const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner
	var specialty *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&specialty,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	p.Specialty = specialty
	return &p, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var endAt *time.Time
	var symptoms *string

	err := row.Scan(
		&a.ID,
		&a.PractitionerID,
		&a.PatientID,
		&a.StartAt,
		&endAt,
		&a.Status,
		&a.FollowUp,
		&symptoms,
		&a.ReminderSent,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.EndAt = endAt
	a.Symptoms = symptoms
	return &a, nil
}

const appointmentColumns = `id, practitioner_id, patient_id, start_at, end_at, status, follow_up, symptoms, reminder_sent, created_at, updated_at`

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListRecurringSchedules(ctx context.Context, practitionerID uuid.UUID) ([]RecurringSchedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, practitioner_id, weekday, start_minute, end_minute, created_at, updated_at
		FROM recurring_schedules
		WHERE practitioner_id = $1
		ORDER BY weekday, start_minute
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RecurringSchedule
	for rows.Next() {
		var s RecurringSchedule
		err := rows.Scan(
			&s.ID,
			&s.PractitionerID,
			&s.Weekday,
			&s.StartMinute,
			&s.EndMinute,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListExceptions(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]ScheduleException, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, practitioner_id, start_at, end_at, is_blocking, reason, created_at, updated_at
		FROM schedule_exceptions
		WHERE practitioner_id = $1
		  AND end_at >= $2
		  AND start_at <= $3
		ORDER BY start_at
	`, practitionerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleException
	for rows.Next() {
		var e ScheduleException
		err := rows.Scan(
			&e.ID,
			&e.PractitionerID,
			&e.StartAt,
			&e.EndAt,
			&e.IsBlocking,
			&e.Reason,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListOccupyingAppointments(ctx context.Context, practitionerID uuid.UUID, from, to time.Time, defaultMinutes int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1
		  AND status IN ('scheduled', 'confirmed')
		  AND start_at < $3
		  AND COALESCE(end_at, start_at + make_interval(mins => $4)) > $2
		ORDER BY start_at
	`, practitionerID, from, to, defaultMinutes)
	if err != nil {
		return nil, err
	}

	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, practitioner_id, patient_id, start_at, end_at, status, follow_up, symptoms, reminder_sent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.PractitionerID, appt.PatientID, appt.StartAt, appt.EndAt, appt.Status, appt.FollowUp, appt.Symptoms)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotTaken
		}
		return nil, err
	}

	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}

	return collectAppointments(rows)
}

func (r *PgRepository) FindDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('scheduled', 'confirmed')
		  AND reminder_sent = false
		  AND start_at > $1
		  AND start_at <= $2
		ORDER BY start_at
	`, now, now.Add(lead))
	if err != nil {
		return nil, err
	}

	return collectAppointments(rows)
}

func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = true,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}

	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	var apptID *uuid.UUID
	if ev.AppointmentID != nil {
		apptID = ev.AppointmentID
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, apptID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
