package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/caresync-health/booking-platform/internal/audit"
	"github.com/caresync-health/booking-platform/internal/identity"
	"github.com/caresync-health/booking-platform/internal/schedule"
)

// DailyCapPerDoctor is the maximum simultaneous active slots one patient
// may hold with one doctor on one day.
const DailyCapPerDoctor = 5

// CreateParams describes a booking request for one or more slots of the
// same doctor, branch and date. All slots succeed or none do.
type CreateParams struct {
	PatientID string
	DoctorID  string
	BranchID  string
	Template  *schedule.Template
	Date      time.Time
	Slots     []int
	Type      Type
	Actor     identity.Actor

	InitialStatus Status
	PaymentStatus PaymentStatus

	// Set on reschedule to carry the chain forward.
	OriginalAppointmentID       *uuid.UUID
	RescheduleCount             int
	PatientRescheduleCount      int
	AdminGrantedRescheduleCount int
	CancelledByAdminForDoctor   bool
}

// uniqueViolation reports whether err is the backstop index rejecting a
// concurrent insert for the same slot.
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// lockDay serializes mutations for one (doctor, branch, date) scope for the
// duration of the transaction. Different scopes proceed in parallel.
func lockDay(ctx context.Context, tx pgx.Tx, doctorID, branchID string, date time.Time) error {
	_, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2 || ':' || $3::text))`,
		doctorID, branchID, date.Format(time.DateOnly))
	if err != nil {
		return fmt.Errorf("booking: lock day scope: %w", err)
	}
	return nil
}

// CreateBatch atomically books the requested slots. It expires stale
// pending_payment rows for the day, verifies the daily cap and every
// requested slot under the day lock, then inserts one row per slot sharing
// a token sequence. A concurrent winner surfaces as ErrSlotTaken either
// from the in-transaction check or from the unique index.
func (l *Ledger) CreateBatch(ctx context.Context, p CreateParams) ([]Booking, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := l.createInTx(ctx, tx, p)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		if uniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("booking: commit create: %w", err)
	}
	return created, nil
}

// createInTx runs the check-then-insert sequence inside the caller's
// transaction; reschedule reuses it so old and new booking commit together.
func (l *Ledger) createInTx(ctx context.Context, tx pgx.Tx, p CreateParams) ([]Booking, error) {
	if len(p.Slots) == 0 {
		return nil, policyErr(RuleDailyCap, "at least one slot number is required")
	}
	if len(p.Slots) > DailyCapPerDoctor {
		return nil, policyErr(RuleDailyCap, "at most %d slots may be booked in one request", DailyCapPerDoctor)
	}
	seen := make(map[int]bool, len(p.Slots))
	for _, slot := range p.Slots {
		if slot < 1 || slot > p.Template.SlotCount {
			return nil, policyErr(RuleDailyCap, "slot number %d is outside 1..%d", slot, p.Template.SlotCount)
		}
		if seen[slot] {
			return nil, policyErr(RuleDailyCap, "slot number %d requested twice", slot)
		}
		seen[slot] = true
	}

	if err := lockDay(ctx, tx, p.DoctorID, p.BranchID, p.Date); err != nil {
		return nil, err
	}

	// Expire stale pending_payment holds so they cannot produce a false
	// "slot taken" for the day being booked. Each expiry is audited in
	// the same transaction, like the sweeper's.
	cutoff := time.Now().UTC().Add(-l.paymentWindow)
	staleRows, err := tx.Query(ctx, `
		UPDATE bookings SET status = $1
		WHERE doctor_id = $2 AND branch_id = $3 AND appointment_date = $4
		  AND status = $5 AND created_at < $6
		RETURNING id`,
		StatusExpired, p.DoctorID, p.BranchID, p.Date, StatusPendingPayment, cutoff)
	if err != nil {
		return nil, fmt.Errorf("booking: expire stale holds: %w", err)
	}
	var stale []uuid.UUID
	for staleRows.Next() {
		var id uuid.UUID
		if err := staleRows.Scan(&id); err != nil {
			staleRows.Close()
			return nil, fmt.Errorf("booking: scan stale hold: %w", err)
		}
		stale = append(stale, id)
	}
	staleRows.Close()
	if err := staleRows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate stale holds: %w", err)
	}
	for _, id := range stale {
		if err := l.recorder.Record(ctx, tx, audit.Entry{
			AppointmentID:   id,
			Action:          audit.ActionExpired,
			PerformedBy:     "system",
			PerformedByRole: "system",
			PreviousStatus:  string(StatusPendingPayment),
			NewStatus:       string(StatusExpired),
			Reason:          fmt.Sprintf("payment window of %s elapsed", l.paymentWindow),
		}); err != nil {
			return nil, err
		}
	}

	// Daily cap: requested slots count against the patient's existing
	// active bookings with this doctor on this date.
	var active int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE patient_id = $1 AND doctor_id = $2 AND appointment_date = $3
		  AND status = ANY($4)`,
		p.PatientID, p.DoctorID, p.Date, ActiveStatuses()).Scan(&active)
	if err != nil {
		return nil, fmt.Errorf("booking: count active for cap: %w", err)
	}
	if active+len(p.Slots) > DailyCapPerDoctor {
		return nil, policyErr(RuleDailyCap,
			"patient may hold at most %d appointments with this doctor per day (%d already booked)",
			DailyCapPerDoctor, active)
	}

	// All-or-nothing availability check before any insert.
	taken := map[int]bool{}
	rows, err := tx.Query(ctx, `
		SELECT slot_number FROM bookings
		WHERE doctor_id = $1 AND branch_id = $2 AND appointment_date = $3
		  AND NOT (status = ANY($4))`,
		p.DoctorID, p.BranchID, p.Date, SlotFreeingStatuses())
	if err != nil {
		return nil, fmt.Errorf("booking: load taken slots: %w", err)
	}
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("booking: scan taken slot: %w", err)
		}
		taken[n] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate taken slots: %w", err)
	}
	for _, slot := range p.Slots {
		if taken[slot] {
			return nil, fmt.Errorf("slot %d: %w", slot, ErrSlotTaken)
		}
	}

	// Token numbers continue the day's sequence inside the same transaction.
	var maxToken int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(token_number), 0) FROM bookings
		WHERE doctor_id = $1 AND branch_id = $2 AND appointment_date = $3`,
		p.DoctorID, p.BranchID, p.Date).Scan(&maxToken)
	if err != nil {
		return nil, fmt.Errorf("booking: next token: %w", err)
	}

	created := make([]Booking, 0, len(p.Slots))
	now := time.Now().UTC()
	for i, slot := range p.Slots {
		apptTime, err := SlotTime(p.Template.StartTime, p.Template.MinutesPerSlot, slot)
		if err != nil {
			return nil, err
		}
		b := Booking{
			ID:                          uuid.New(),
			PatientID:                   p.PatientID,
			DoctorID:                    p.DoctorID,
			BranchID:                    p.BranchID,
			ScheduleID:                  p.Template.ID,
			AppointmentDate:             p.Date,
			SlotNumber:                  slot,
			TokenNumber:                 maxToken + i + 1,
			AppointmentTime:             apptTime,
			Status:                      p.InitialStatus,
			PaymentStatus:               p.PaymentStatus,
			BookingType:                 p.Type,
			BookedBy:                    p.Actor.ID,
			BookedByRole:                p.Actor.Role,
			RescheduleCount:             p.RescheduleCount,
			PatientRescheduleCount:      p.PatientRescheduleCount,
			AdminGrantedRescheduleCount: p.AdminGrantedRescheduleCount,
			CancelledByAdminForDoctor:   p.CancelledByAdminForDoctor,
			OriginalAppointmentID:       p.OriginalAppointmentID,
			CreatedAt:                   now,
		}
		if err := insertBooking(ctx, tx, &b); err != nil {
			if uniqueViolation(err) {
				return nil, fmt.Errorf("slot %d: %w", slot, ErrSlotTaken)
			}
			return nil, fmt.Errorf("booking: insert: %w", err)
		}
		entry := audit.Entry{
			AppointmentID:   b.ID,
			Action:          audit.ActionCreated,
			PerformedBy:     p.Actor.ID,
			PerformedByRole: string(p.Actor.Role),
			NewStatus:       string(b.Status),
			Metadata: map[string]string{
				"slot_number":  fmt.Sprintf("%d", slot),
				"token_number": fmt.Sprintf("%d", b.TokenNumber),
				"booking_type": string(p.Type),
			},
		}
		if err := l.recorder.Record(ctx, tx, entry); err != nil {
			return nil, err
		}
		created = append(created, b)
	}

	return created, nil
}

func insertBooking(ctx context.Context, tx pgx.Tx, b *Booking) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings (
			id, patient_id, doctor_id, branch_id, schedule_id,
			appointment_date, slot_number, token_number, appointment_time,
			status, payment_status, booking_type, booked_by, booked_by_role,
			reschedule_count, patient_reschedule_count, admin_granted_reschedule_count,
			cancelled_by_admin_for_doctor, original_appointment_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		b.ID, b.PatientID, b.DoctorID, b.BranchID, b.ScheduleID,
		b.AppointmentDate, b.SlotNumber, b.TokenNumber, b.AppointmentTime,
		b.Status, b.PaymentStatus, b.BookingType, b.BookedBy, string(b.BookedByRole),
		b.RescheduleCount, b.PatientRescheduleCount, b.AdminGrantedRescheduleCount,
		b.CancelledByAdminForDoctor, b.OriginalAppointmentID, b.CreatedAt,
	)
	return err
}
