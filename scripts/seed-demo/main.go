// Seeds a local environment with demo branches, doctors and schedule
// templates so the API can be exercised end to end.
//
// Usage: go run scripts/seed-demo/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/caresync-health/booking-platform/internal/branch"
	"github.com/caresync-health/booking-platform/internal/schedule"
)

type template struct {
	doctorID       string
	branchID       string
	weekday        time.Weekday
	startTime      string
	slotCount      int
	minutesPerSlot int
}

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	var templates []template
	for wd := time.Monday; wd <= time.Friday; wd++ {
		templates = append(templates,
			template{"dr-rahman", "dhanmondi", wd, "09:00", 20, 15},
			template{"dr-rahman", "uttara", wd, "15:00", 12, 15},
			template{"dr-akter", "dhanmondi", wd, "10:00", 16, 20},
		)
	}

	for _, t := range templates {
		_, err := pool.Exec(ctx, `
			INSERT INTO schedule_templates (id, doctor_id, branch_id, weekday, start_time, slot_count, minutes_per_slot, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
			ON CONFLICT DO NOTHING`,
			uuid.New(), t.doctorID, t.branchID, int(t.weekday), t.startTime, t.slotCount, t.minutesPerSlot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "insert template %s/%s %s: %v\n", t.doctorID, t.branchID, t.weekday, err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded %d schedule templates\n", len(templates))

	// One approved blocked date so the override path can be exercised.
	blocked := time.Now().UTC().AddDate(0, 0, 10)
	blockedDay := time.Date(blocked.Year(), blocked.Month(), blocked.Day(), 0, 0, 0, 0, time.UTC)
	_, err = pool.Exec(ctx, `
		INSERT INTO schedule_overrides (id, doctor_id, branch_id, start_date, end_date, kind, reason, approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		ON CONFLICT DO NOTHING`,
		uuid.New(), "dr-rahman", "dhanmondi", blockedDay, blockedDay,
		string(schedule.OverrideBlockDate), "public holiday")
	if err != nil {
		fmt.Fprintf(os.Stderr, "insert override: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded blocked date %s for dr-rahman at dhanmondi\n", blockedDay.Format(time.DateOnly))

	patientID := uuid.New()
	_, err = pool.Exec(ctx, `
		INSERT INTO patients (id, full_name, email, phone)
		VALUES ($1, 'Demo Patient', 'demo.patient@example.com', '+8801700000000')
		ON CONFLICT DO NOTHING`, patientID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "insert patient: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded demo patient %s\n", patientID)

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		fmt.Println("REDIS_ADDR unset, skipping branch settings (defaults apply)")
		return
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	store := branch.NewStore(client, "Asia/Dhaka")

	dhaka := branch.DefaultSettings("dhanmondi")
	dhaka.Timezone = "Asia/Dhaka"
	dhaka.RequirePaymentForOnline = true
	if err := store.Set(ctx, dhaka); err != nil {
		fmt.Fprintf(os.Stderr, "set branch settings: %v\n", err)
		os.Exit(1)
	}

	uttara := branch.DefaultSettings("uttara")
	uttara.Timezone = "Asia/Dhaka"
	uttara.AllowWalkIn = true
	if err := store.Set(ctx, uttara); err != nil {
		fmt.Fprintf(os.Stderr, "set branch settings: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("seeded branch settings for dhanmondi and uttara")
}
