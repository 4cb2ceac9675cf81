package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTemplateNotFound is returned when no active template matches the lookup.
var ErrTemplateNotFound = errors.New("schedule: no active template")

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads schedule templates and overrides from Postgres.
type Store struct {
	pool rowQuerier
}

// NewStore creates a store backed by a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("schedule: pgx pool required")
	}
	return &Store{pool: pool}
}

func newStoreWithExec(exec rowQuerier) *Store {
	if exec == nil {
		panic("schedule: exec required")
	}
	return &Store{pool: exec}
}

// GetTemplate returns the active template for a doctor at a branch on a weekday.
func (s *Store) GetTemplate(ctx context.Context, doctorID, branchID string, weekday time.Weekday) (*Template, error) {
	query := `
		SELECT id, doctor_id, branch_id, weekday, to_char(start_time, 'HH24:MI'), slot_count, minutes_per_slot, active
		FROM schedule_templates
		WHERE doctor_id = $1 AND branch_id = $2 AND weekday = $3 AND active
	`
	var t Template
	var wd int
	err := s.pool.QueryRow(ctx, query, doctorID, branchID, int(weekday)).Scan(
		&t.ID, &t.DoctorID, &t.BranchID, &wd, &t.StartTime, &t.SlotCount, &t.MinutesPerSlot, &t.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("schedule: load template: %w", err)
	}
	t.Weekday = time.Weekday(wd)
	return &t, nil
}

// BlockingOverride returns the approved override covering the date, or nil
// when the doctor's schedule is open. Both kinds block identically from
// the booking core's perspective; the kind records what the modification
// workflow approved.
func (s *Store) BlockingOverride(ctx context.Context, doctorID, branchID string, date time.Time) (*Override, error) {
	query := `
		SELECT id, doctor_id, branch_id, start_date, end_date, kind, approved
		FROM schedule_overrides
		WHERE doctor_id = $1 AND branch_id = $2
		  AND approved
		  AND $3::date BETWEEN start_date AND end_date
		ORDER BY start_date
		LIMIT 1
	`
	var o Override
	var kind string
	err := s.pool.QueryRow(ctx, query, doctorID, branchID, date).Scan(
		&o.ID, &o.DoctorID, &o.BranchID, &o.StartDate, &o.EndDate, &kind, &o.Approved,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("schedule: check override: %w", err)
	}
	o.Kind = OverrideKind(kind)
	return &o, nil
}

// IsBlocked reports whether an approved override blocks the doctor's
// schedule at the branch on the given date.
func (s *Store) IsBlocked(ctx context.Context, doctorID, branchID string, date time.Time) (bool, error) {
	o, err := s.BlockingOverride(ctx, doctorID, branchID, date)
	if err != nil {
		return false, err
	}
	return o != nil, nil
}
