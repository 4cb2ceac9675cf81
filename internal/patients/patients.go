package patients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a patient id has no directory entry.
var ErrNotFound = errors.New("patients: not found")

// Patient is a directory entry. The booking ledger references patients by
// id only; contact details live here.
type Patient struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads the patient directory from Postgres.
type Store struct {
	pool rowQuerier
}

// NewStore creates a store backed by a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &Store{pool: pool}
}

func newStoreWithExec(exec rowQuerier) *Store {
	if exec == nil {
		panic("patients: exec required")
	}
	return &Store{pool: exec}
}

// GetByID returns a patient by id.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	query := `
		SELECT id, full_name, email, phone, created_at
		FROM patients
		WHERE id = $1
	`
	var p Patient
	var email, phone pgtype.Text
	err := s.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.FullName, &email, &phone, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("patients: load: %w", err)
	}
	p.Email = email.String
	p.Phone = phone.String
	return &p, nil
}

// FindByPhone returns a patient matching an exact phone number. Used by
// the walk-in and phone booking paths where reception looks patients up
// at the desk.
func (s *Store) FindByPhone(ctx context.Context, phone string) (*Patient, error) {
	query := `
		SELECT id, full_name, email, phone, created_at
		FROM patients
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var p Patient
	var email, ph pgtype.Text
	err := s.pool.QueryRow(ctx, query, phone).Scan(&p.ID, &p.FullName, &email, &ph, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("patients: find by phone: %w", err)
	}
	p.Email = email.String
	p.Phone = ph.String
	return &p, nil
}
