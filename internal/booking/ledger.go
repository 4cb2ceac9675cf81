package booking

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

	"github.com/caresync-health/booking-platform/internal/audit"
	"github.com/caresync-health/booking-platform/internal/identity"
	"github.com/caresync-health/booking-platform/pkg/logging"
)

// db is the slice of pgx the ledger needs; pgxpool.Pool and pgxmock both satisfy it.
type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger is the authoritative store of bookings. All mutations run in a
// single transaction together with their audit entries; the partial unique
// index on (doctor_id, branch_id, appointment_date, slot_number) over
// slot-holding statuses is the final backstop against double-booking.
type Ledger struct {
	pool     db
	recorder *audit.Recorder
	logger   *logging.Logger

	// paymentWindow is how long a pending_payment row holds its slot
	// before in-transaction cleanup treats it as stale.
	paymentWindow time.Duration
}

// NewLedger creates a ledger backed by a pgx pool.
func NewLedger(pool *pgxpool.Pool, recorder *audit.Recorder, paymentWindow time.Duration, logger *logging.Logger) *Ledger {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return newLedgerWithDB(pool, recorder, paymentWindow, logger)
}

func newLedgerWithDB(pool db, recorder *audit.Recorder, paymentWindow time.Duration, logger *logging.Logger) *Ledger {
	if recorder == nil {
		recorder = audit.NewRecorder()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if paymentWindow <= 0 {
		paymentWindow = 30 * time.Minute
	}
	return &Ledger{pool: pool, recorder: recorder, logger: logger, paymentWindow: paymentWindow}
}

const bookingColumns = `
	id, patient_id, doctor_id, branch_id, schedule_id,
	appointment_date, slot_number, token_number, to_char(appointment_time, 'HH24:MI'),
	status, payment_status, booking_type, booked_by, booked_by_role,
	reschedule_count, patient_reschedule_count, admin_granted_reschedule_count,
	cancelled_by_admin_for_doctor, original_appointment_id,
	cancellation_reason, cancelled_by, cancelled_at,
	checked_in_at, session_started_at, completed_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*Booking, error) {
	var b Booking
	var role string
	var origID pgtype.UUID
	var reason, cancelledBy pgtype.Text
	var cancelledAt, checkedInAt, sessionStartedAt, completedAt pgtype.Timestamptz

	err := row.Scan(
		&b.ID, &b.PatientID, &b.DoctorID, &b.BranchID, &b.ScheduleID,
		&b.AppointmentDate, &b.SlotNumber, &b.TokenNumber, &b.AppointmentTime,
		&b.Status, &b.PaymentStatus, &b.BookingType, &b.BookedBy, &role,
		&b.RescheduleCount, &b.PatientRescheduleCount, &b.AdminGrantedRescheduleCount,
		&b.CancelledByAdminForDoctor, &origID,
		&reason, &cancelledBy, &cancelledAt,
		&checkedInAt, &sessionStartedAt, &completedAt, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.BookedByRole = identity.Role(role)
	if origID.Valid {
		id := uuid.UUID(origID.Bytes)
		b.OriginalAppointmentID = &id
	}
	b.CancellationReason = reason.String
	b.CancelledBy = cancelledBy.String
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}
	if checkedInAt.Valid {
		t := checkedInAt.Time
		b.CheckedInAt = &t
	}
	if sessionStartedAt.Valid {
		t := sessionStartedAt.Time
		b.SessionStartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		b.CompletedAt = &t
	}
	return &b, nil
}

// GetByID loads a single booking.
func (l *Ledger) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(l.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("booking: load by id: %w", err)
	}
	return b, nil
}

// ListByPatient returns a patient's bookings, most recent appointment first.
func (l *Ledger) ListByPatient(ctx context.Context, patientID string, limit int) ([]Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE patient_id = $1
		ORDER BY appointment_date DESC, appointment_time DESC
		LIMIT $2`
	rows, err := l.pool.Query(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("booking: list by patient: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan patient booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// BookedSlotNumbers returns the slot numbers currently held for a doctor's
// day. The read is lock-free; callers tolerate staleness because the create
// path re-checks under lock.
func (l *Ledger) BookedSlotNumbers(ctx context.Context, doctorID, branchID string, date time.Time) ([]int, error) {
	query := `
		SELECT slot_number FROM bookings
		WHERE doctor_id = $1 AND branch_id = $2 AND appointment_date = $3
		  AND NOT (status = ANY($4))
		ORDER BY slot_number`
	rows, err := l.pool.Query(ctx, query, doctorID, branchID, date, SlotFreeingStatuses())
	if err != nil {
		return nil, fmt.Errorf("booking: booked slots: %w", err)
	}
	defer rows.Close()

	var slots []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("booking: scan slot number: %w", err)
		}
		slots = append(slots, n)
	}
	return slots, rows.Err()
}
