package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/carebridge/carebridge/internal/db"
)

const seedPassword = "password123"

var specialties = []string{
	"Dermatologist",
	"Cardiologist",
	"General Practitioner",
	"Orthopedist",
	"Endocrinologist",
	"Neurologist",
	"Pediatrician",
	"Psychiatrist",
	"Ophthalmologist",
	"ENT Specialist",
}

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

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash seed password: %v", err)
	}

	doctorIDs, err := seedDoctors(context.Background(), pool, string(hash), 50)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, string(hash), 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedSlots(context.Background(), pool, doctorIDs); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, hash string, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, email, name, role, password_hash, created_at)
			VALUES ($1, $2, $3, 'doctor', $4, now())
		`, id, gofakeit.Email(), name, hash)
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO doctors (user_id, specialty, years_experience)
			VALUES ($1, $2, $3)
		`, id, spec, gofakeit.Number(1, 35))
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, hash string, count int) error {
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
			gender := gofakeit.Gender()
			contact := gofakeit.Phone()

			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, email, name, role, password_hash, created_at)
				VALUES ($1, $2, $3, 'patient', $4, now())
			`, id, gofakeit.Email(), gofakeit.Name(), hash)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO patients (user_id, age, gender, contact)
				VALUES ($1, $2, $3, $4)
			`, id, gofakeit.Number(18, 90), gender, contact)
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

// seedSlots carves a working week of half-hour slots for every doctor,
// 9:00 to 17:00 starting tomorrow.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	log.Printf("seeding slots for %d doctors", len(doctorIDs))

	dayStart := time.Now().Add(24 * time.Hour).Truncate(24 * time.Hour).Add(9 * time.Hour)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	total := 0
	for _, doctorID := range doctorIDs {
		for day := 0; day < 5; day++ {
			start := dayStart.Add(time.Duration(day) * 24 * time.Hour)
			end := start.Add(8 * time.Hour)

			for cur := start; cur.Add(30 * time.Minute).Before(end) || cur.Add(30*time.Minute).Equal(end); cur = cur.Add(30 * time.Minute) {
				_, err := tx.Exec(ctx, `
					INSERT INTO slots (id, doctor_id, start_time, end_time, booked, created_at)
					VALUES ($1, $2, $3, $4, FALSE, now())
					ON CONFLICT (doctor_id, start_time) DO NOTHING
				`, uuid.New(), doctorID, cur, cur.Add(30*time.Minute))
				if err != nil {
					return err
				}
				total++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("slots seeded: %d", total)
	return nil
}
