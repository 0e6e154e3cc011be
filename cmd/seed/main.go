package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinic-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	practitioners, err := seedPractitioners(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed practitioners: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 5000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedRecurringSchedules(context.Background(), pool, practitioners); err != nil {
		log.Fatalf("seed recurring schedules: %v", err)
	}
	if err := seedExceptions(context.Background(), pool, practitioners); err != nil {
		log.Fatalf("seed exceptions: %v", err)
	}

	log.Println("seed complete")
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d practitioners", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO practitioners (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("practitioners seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

// seedRecurringSchedules gives each practitioner a weekday morning
// block and most of them an afternoon block. Weekday 0 is Sunday.
func seedRecurringSchedules(ctx context.Context, pool *pgxpool.Pool, practitioners []uuid.UUID) error {
	log.Printf("seeding recurring schedules for %d practitioners", len(practitioners))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, pid := range practitioners {
		for weekday := 1; weekday <= 5; weekday++ {
			blocks := [][2]int{{8 * 60, 12 * 60}}
			if gofakeit.Bool() {
				blocks = append(blocks, [2]int{13 * 60, 17 * 60})
			}

			for _, b := range blocks {
				_, err := tx.Exec(ctx, `
					INSERT INTO recurring_schedules (id, practitioner_id, weekday, start_minute, end_minute, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, now(), now())
				`, uuid.New(), pid, weekday, b[0], b[1])
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("recurring schedules seeded")
	return nil
}

// seedExceptions sprinkles a few blocks (time off) and an occasional
// extra-availability window over the next two weeks.
func seedExceptions(ctx context.Context, pool *pgxpool.Pool, practitioners []uuid.UUID) error {
	log.Printf("seeding exceptions for %d practitioners", len(practitioners))

	reasons := []string{"vacation", "conference", "training", "personal leave", "extra clinic hours"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	for _, pid := range practitioners {
		n := gofakeit.Number(0, 3)
		for i := 0; i < n; i++ {
			dayOffset := gofakeit.Number(1, 14)
			startHour := gofakeit.Number(8, 15)
			start := time.Date(now.Year(), now.Month(), now.Day()+dayOffset, startHour, 0, 0, 0, time.Local)
			end := start.Add(time.Duration(gofakeit.Number(1, 4)) * time.Hour)
			blocking := gofakeit.Number(0, 4) != 0 // mostly blocks

			_, err := tx.Exec(ctx, `
				INSERT INTO schedule_exceptions (id, practitioner_id, start_at, end_at, is_blocking, reason, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			`, uuid.New(), pid, start, end, blocking, reasons[gofakeit.Number(0, len(reasons)-1)])
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("exceptions seeded")
	return nil
}
