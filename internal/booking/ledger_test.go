package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/caresync-health/booking-platform/internal/audit"
	"github.com/caresync-health/booking-platform/internal/branch"
	"github.com/caresync-health/booking-platform/internal/identity"
	"github.com/caresync-health/booking-platform/internal/schedule"
)

var bookingTestColumns = []string{
	"id", "patient_id", "doctor_id", "branch_id", "schedule_id",
	"appointment_date", "slot_number", "token_number", "appointment_time",
	"status", "payment_status", "booking_type", "booked_by", "booked_by_role",
	"reschedule_count", "patient_reschedule_count", "admin_granted_reschedule_count",
	"cancelled_by_admin_for_doctor", "original_appointment_id",
	"cancellation_reason", "cancelled_by", "cancelled_at",
	"checked_in_at", "session_started_at", "completed_at", "created_at",
}

func bookingRow(b *Booking) []any {
	return []any{
		b.ID, b.PatientID, b.DoctorID, b.BranchID, b.ScheduleID,
		b.AppointmentDate, b.SlotNumber, b.TokenNumber, b.AppointmentTime,
		b.Status, b.PaymentStatus, b.BookingType, b.BookedBy, string(b.BookedByRole),
		b.RescheduleCount, b.PatientRescheduleCount, b.AdminGrantedRescheduleCount,
		b.CancelledByAdminForDoctor, pgtype.UUID{},
		pgtype.Text{}, pgtype.Text{}, pgtype.Timestamptz{},
		pgtype.Timestamptz{}, pgtype.Timestamptz{}, pgtype.Timestamptz{}, b.CreatedAt,
	}
}

func testTemplate() *schedule.Template {
	return &schedule.Template{
		ID:             uuid.New(),
		DoctorID:       "doc-1",
		BranchID:       "br-1",
		Weekday:        time.Monday,
		StartTime:      "09:00",
		SlotCount:      10,
		MinutesPerSlot: 15,
		Active:         true,
	}
}

func patientActor(id string) identity.Actor {
	return identity.Actor{ID: id, Role: identity.RolePatient}
}

func receptionActor() identity.Actor {
	return identity.Actor{ID: "staff-1", Role: identity.RoleReceptionist}
}

// auditInsertArgs matches the recorder's 10-column insert, pinning the
// action and letting generated ids and timestamps through.
func auditInsertArgs(action audit.Action) []any {
	return []any{
		pgxmock.AnyArg(), pgxmock.AnyArg(), action, pgxmock.AnyArg(), pgxmock.AnyArg(),
		pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
	}
}

// bookingInsertArgs matches the 20 placeholders of the booking insert.
func bookingInsertArgs() []any {
	args := make([]any, 20)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func emptyStaleHolds() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id"})
}

func TestCreateBatchContinuesTokenSequence(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithDB(mock, nil, 30*time.Minute, nil)
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("doc-1", "br-1", "2026-09-14").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("UPDATE bookings SET status").
		WithArgs(StatusExpired, "doc-1", "br-1", date, StatusPendingPayment, pgxmock.AnyArg()).
		WillReturnRows(emptyStaleHolds())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).
		WithArgs("pt-1", "doc-1", date, ActiveStatuses()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT slot_number FROM bookings").
		WithArgs("doc-1", "br-1", date, SlotFreeingStatuses()).
		WillReturnRows(pgxmock.NewRows([]string{"slot_number"}))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(token_number\), 0\)`).
		WithArgs("doc-1", "br-1", date).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(4))
	for range 2 {
		mock.ExpectExec("INSERT INTO bookings").
			WithArgs(bookingInsertArgs()...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("INSERT INTO booking_audit_log").
			WithArgs(auditInsertArgs(audit.ActionCreated)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	created, err := ledger.CreateBatch(context.Background(), CreateParams{
		PatientID:     "pt-1",
		DoctorID:      "doc-1",
		BranchID:      "br-1",
		Template:      testTemplate(),
		Date:          date,
		Slots:         []int{2, 5},
		Type:          TypeOnline,
		Actor:         patientActor("pt-1"),
		InitialStatus: StatusConfirmed,
		PaymentStatus: PaymentPending,
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.Equal(t, 5, created[0].TokenNumber)
	require.Equal(t, 6, created[1].TokenNumber)
	require.Equal(t, "09:15", created[0].AppointmentTime)
	require.Equal(t, "10:00", created[1].AppointmentTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBatchSlotTaken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithDB(mock, nil, 30*time.Minute, nil)
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("doc-1", "br-1", "2026-09-14").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("UPDATE bookings SET status").
		WithArgs(StatusExpired, "doc-1", "br-1", date, StatusPendingPayment, pgxmock.AnyArg()).
		WillReturnRows(emptyStaleHolds())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).
		WithArgs("pt-1", "doc-1", date, ActiveStatuses()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT slot_number FROM bookings").
		WithArgs("doc-1", "br-1", date, SlotFreeingStatuses()).
		WillReturnRows(pgxmock.NewRows([]string{"slot_number"}).AddRow(3))
	mock.ExpectRollback()

	_, err = ledger.CreateBatch(context.Background(), CreateParams{
		PatientID:     "pt-1",
		DoctorID:      "doc-1",
		BranchID:      "br-1",
		Template:      testTemplate(),
		Date:          date,
		Slots:         []int{3, 4},
		Type:          TypeOnline,
		Actor:         patientActor("pt-1"),
		InitialStatus: StatusConfirmed,
		PaymentStatus: PaymentPending,
	})
	require.ErrorIs(t, err, ErrSlotTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBatchDailyCap(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithDB(mock, nil, 30*time.Minute, nil)
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("doc-1", "br-1", "2026-09-14").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("UPDATE bookings SET status").
		WithArgs(StatusExpired, "doc-1", "br-1", date, StatusPendingPayment, pgxmock.AnyArg()).
		WillReturnRows(emptyStaleHolds())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).
		WithArgs("pt-1", "doc-1", date, ActiveStatuses()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectRollback()

	_, err = ledger.CreateBatch(context.Background(), CreateParams{
		PatientID:     "pt-1",
		DoctorID:      "doc-1",
		BranchID:      "br-1",
		Template:      testTemplate(),
		Date:          date,
		Slots:         []int{7, 8},
		Type:          TypeOnline,
		Actor:         patientActor("pt-1"),
		InitialStatus: StatusConfirmed,
		PaymentStatus: PaymentPending,
	})
	require.ErrorIs(t, err, ErrPolicyViolation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBatchRejectsBadSlots(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithDB(mock, nil, 30*time.Minute, nil)
	base := CreateParams{
		PatientID: "pt-1", DoctorID: "doc-1", BranchID: "br-1",
		Template: testTemplate(), Date: time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		Type: TypeOnline, Actor: patientActor("pt-1"),
		InitialStatus: StatusConfirmed, PaymentStatus: PaymentPending,
	}

	for _, slots := range [][]int{nil, {0}, {11}, {4, 4}, {1, 2, 3, 4, 5, 6}} {
		mock.ExpectBegin()
		mock.ExpectRollback()
		p := base
		p.Slots = slots
		_, err = ledger.CreateBatch(context.Background(), p)
		require.ErrorIs(t, err, ErrPolicyViolation, "slots %v", slots)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBatchAuditsExpiredHolds(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithDB(mock, nil, 30*time.Minute, nil)
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	staleID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("doc-1", "br-1", "2026-09-14").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("UPDATE bookings SET status").
		WithArgs(StatusExpired, "doc-1", "br-1", date, StatusPendingPayment, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(staleID))
	// The released hold is audited before the new booking goes in.
	mock.ExpectExec("INSERT INTO booking_audit_log").
		WithArgs(auditInsertArgs(audit.ActionExpired)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).
		WithArgs("pt-1", "doc-1", date, ActiveStatuses()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT slot_number FROM bookings").
		WithArgs("doc-1", "br-1", date, SlotFreeingStatuses()).
		WillReturnRows(pgxmock.NewRows([]string{"slot_number"}))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(token_number\), 0\)`).
		WithArgs("doc-1", "br-1", date).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(0))
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(bookingInsertArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO booking_audit_log").
		WithArgs(auditInsertArgs(audit.ActionCreated)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	created, err := ledger.CreateBatch(context.Background(), CreateParams{
		PatientID:     "pt-1",
		DoctorID:      "doc-1",
		BranchID:      "br-1",
		Template:      testTemplate(),
		Date:          date,
		Slots:         []int{1},
		Type:          TypeOnline,
		Actor:         patientActor("pt-1"),
		InitialStatus: StatusConfirmed,
		PaymentStatus: PaymentPending,
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelForDoctorOwesRefund(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithDB(mock, nil, 30*time.Minute, nil)
	b := &Booking{
		ID:              uuid.New(),
		PatientID:       "pt-1",
		DoctorID:        "doc-1",
		BranchID:        "br-1",
		ScheduleID:      uuid.New(),
		AppointmentDate: time.Now().UTC().AddDate(0, 0, 7),
		SlotNumber:      2,
		TokenNumber:     2,
		AppointmentTime: "09:15",
		Status:          StatusConfirmed,
		PaymentStatus:   PaymentPaid,
		BookingType:     TypeOnline,
		BookedBy:        "pt-1",
		BookedByRole:    identity.RolePatient,
		CreatedAt:       time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(b.ID).
		WillReturnRows(pgxmock.NewRows(bookingTestColumns).AddRow(bookingRow(b)...))
	mock.ExpectExec("UPDATE bookings").
		WithArgs(StatusCancelled, pgxmock.AnyArg(), "doctor unavailable", "staff-1", true, b.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO booking_audit_log").
		WithArgs(auditInsertArgs(audit.ActionCancelled)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	settings := branch.DefaultSettings("br-1")
	settings.RefundOnCancellation = true

	res, err := ledger.Cancel(context.Background(), CancelParams{
		BookingID:        b.ID,
		Actor:            receptionActor(),
		Reason:           "doctor unavailable",
		Confirmed:        true,
		ForDoctorRequest: true,
		Settings:         settings,
	})
	require.NoError(t, err)
	require.True(t, res.RefundDue)
	require.Equal(t, StatusCancelled, res.Booking.Status)
	require.True(t, res.Booking.CancelledByAdminForDoctor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelByPatientRetainsPayment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithDB(mock, nil, 30*time.Minute, nil)
	b := &Booking{
		ID:              uuid.New(),
		PatientID:       "pt-1",
		DoctorID:        "doc-1",
		BranchID:        "br-1",
		ScheduleID:      uuid.New(),
		AppointmentDate: time.Now().UTC().AddDate(0, 0, 7),
		SlotNumber:      2,
		TokenNumber:     2,
		AppointmentTime: "09:15",
		Status:          StatusConfirmed,
		PaymentStatus:   PaymentPaid,
		BookingType:     TypeOnline,
		BookedBy:        "pt-1",
		BookedByRole:    identity.RolePatient,
		CreatedAt:       time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(b.ID).
		WillReturnRows(pgxmock.NewRows(bookingTestColumns).AddRow(bookingRow(b)...))
	mock.ExpectExec("UPDATE bookings").
		WithArgs(StatusCancelled, pgxmock.AnyArg(), "changed my mind", "pt-1", false, b.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO booking_audit_log").
		WithArgs(auditInsertArgs(audit.ActionCancelled)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Payment retention gets its own audit entry.
	mock.ExpectExec("INSERT INTO booking_audit_log").
		WithArgs(auditInsertArgs(audit.ActionPaymentRetained)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	settings := branch.DefaultSettings("br-1")
	settings.RefundOnCancellation = true

	res, err := ledger.Cancel(context.Background(), CancelParams{
		BookingID: b.ID,
		Actor:     patientActor("pt-1"),
		Reason:    "changed my mind",
		Confirmed: true,
		Settings:  settings,
	})
	require.NoError(t, err)
	require.False(t, res.RefundDue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelRequiresConfirmationFlag(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithDB(mock, nil, 30*time.Minute, nil)
	_, err = ledger.Cancel(context.Background(), CancelParams{
		BookingID: uuid.New(),
		Actor:     patientActor("pt-1"),
		Settings:  branch.DefaultSettings("br-1"),
	})
	require.ErrorIs(t, err, ErrPolicyViolation)
}

func TestCancelPatientInsideCutoff(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithDB(mock, nil, 30*time.Minute, nil)
	b := &Booking{
		ID:              uuid.New(),
		PatientID:       "pt-1",
		DoctorID:        "doc-1",
		BranchID:        "br-1",
		ScheduleID:      uuid.New(),
		AppointmentDate: time.Now().UTC().Add(2 * time.Hour),
		SlotNumber:      1,
		TokenNumber:     1,
		AppointmentTime: time.Now().UTC().Add(2 * time.Hour).Format("15:04"),
		Status:          StatusConfirmed,
		PaymentStatus:   PaymentPending,
		BookingType:     TypeOnline,
		BookedBy:        "pt-1",
		BookedByRole:    identity.RolePatient,
		CreatedAt:       time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(b.ID).
		WillReturnRows(pgxmock.NewRows(bookingTestColumns).AddRow(bookingRow(b)...))
	mock.ExpectRollback()

	settings := branch.DefaultSettings("br-1")
	settings.CancellationAdvanceHours = 24

	_, err = ledger.Cancel(context.Background(), CancelParams{
		BookingID: b.ID,
		Actor:     patientActor("pt-1"),
		Reason:    "too late",
		Confirmed: true,
		Settings:  settings,
	})
	require.ErrorIs(t, err, ErrPolicyViolation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionConfirmsPendingPayment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithDB(mock, nil, 30*time.Minute, nil)
	b := &Booking{
		ID:              uuid.New(),
		PatientID:       "pt-1",
		DoctorID:        "doc-1",
		BranchID:        "br-1",
		ScheduleID:      uuid.New(),
		AppointmentDate: time.Now().UTC().AddDate(0, 0, 3),
		SlotNumber:      1,
		TokenNumber:     1,
		AppointmentTime: "09:00",
		Status:          StatusPendingPayment,
		PaymentStatus:   PaymentPending,
		BookingType:     TypeOnline,
		BookedBy:        "pt-1",
		BookedByRole:    identity.RolePatient,
		CreatedAt:       time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(b.ID).
		WillReturnRows(pgxmock.NewRows(bookingTestColumns).AddRow(bookingRow(b)...))
	mock.ExpectExec("UPDATE bookings SET status").
		WithArgs(StatusConfirmed, PaymentPaid, b.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO booking_audit_log").
		WithArgs(auditInsertArgs(audit.ActionPaymentConfirmed)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	got, err := ledger.Transition(context.Background(), b.ID, StatusConfirmed, receptionActor(), "payment received")
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, got.Status)
	require.Equal(t, PaymentPaid, got.PaymentStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithDB(mock, nil, 30*time.Minute, nil)
	b := &Booking{
		ID:              uuid.New(),
		PatientID:       "pt-1",
		DoctorID:        "doc-1",
		BranchID:        "br-1",
		ScheduleID:      uuid.New(),
		AppointmentDate: time.Now().UTC().AddDate(0, 0, 3),
		SlotNumber:      1,
		TokenNumber:     1,
		AppointmentTime: "09:00",
		Status:          StatusCompleted,
		PaymentStatus:   PaymentPaid,
		BookingType:     TypeOnline,
		BookedBy:        "pt-1",
		BookedByRole:    identity.RolePatient,
		CreatedAt:       time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(b.ID).
		WillReturnRows(pgxmock.NewRows(bookingTestColumns).AddRow(bookingRow(b)...))
	mock.ExpectRollback()

	_, err = ledger.Transition(context.Background(), b.ID, StatusCheckedIn, receptionActor(), "")
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionRejectsDedicatedOperations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithDB(mock, nil, 30*time.Minute, nil)
	for _, target := range []Status{StatusCancelled, StatusRescheduled} {
		_, err = ledger.Transition(context.Background(), uuid.New(), target, receptionActor(), "")
		require.ErrorIs(t, err, ErrInvalidTransition, "%s", target)
	}
}

func TestExpireStale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithDB(mock, nil, 30*time.Minute, nil)
	b1 := &Booking{
		ID: uuid.New(), PatientID: "pt-1", DoctorID: "doc-1", BranchID: "br-1",
		ScheduleID: uuid.New(), AppointmentDate: time.Now().UTC().AddDate(0, 0, 2),
		SlotNumber: 1, TokenNumber: 1, AppointmentTime: "09:00",
		Status: StatusExpired, PaymentStatus: PaymentPending, BookingType: TypeOnline,
		BookedBy: "pt-1", BookedByRole: identity.RolePatient, CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	b2 := &Booking{
		ID: uuid.New(), PatientID: "pt-2", DoctorID: "doc-1", BranchID: "br-1",
		ScheduleID: b1.ScheduleID, AppointmentDate: b1.AppointmentDate,
		SlotNumber: 2, TokenNumber: 2, AppointmentTime: "09:15",
		Status: StatusExpired, PaymentStatus: PaymentPending, BookingType: TypeOnline,
		BookedBy: "pt-2", BookedByRole: identity.RolePatient, CreatedAt: time.Now().UTC().Add(-time.Hour),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE bookings SET status").
		WithArgs(StatusExpired, StatusPendingPayment, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(bookingTestColumns).
			AddRow(bookingRow(b1)...).
			AddRow(bookingRow(b2)...))
	mock.ExpectExec("INSERT INTO booking_audit_log").
		WithArgs(auditInsertArgs(audit.ActionExpired)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO booking_audit_log").
		WithArgs(auditInsertArgs(audit.ActionExpired)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	expired, err := ledger.ExpireStale(context.Background())
	require.NoError(t, err)
	require.Len(t, expired, 2)
	require.Equal(t, b1.ID, expired[0].ID)
	require.Equal(t, b2.ID, expired[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithDB(mock, nil, 30*time.Minute, nil)
	id := uuid.New()
	mock.ExpectQuery("FROM bookings WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(bookingTestColumns))

	_, err = ledger.GetByID(context.Background(), id)
	require.ErrorIs(t, err, ErrNotFound)
}
