package audit

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func TestQueryBuildsFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	reader := NewReader(db)

	id := uuid.New()
	apptID := uuid.New()
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "appointment_id", "action", "performed_by", "performed_by_role",
		"previous_status", "new_status", "reason", "metadata", "created_at",
	}).AddRow(id, apptID, "booking.cancelled", "user-1", "patient",
		"confirmed", "cancelled", "changed plans", []byte(`{"channel":"web"}`), now)

	mock.ExpectQuery("SELECT a.id, a.appointment_id").
		WithArgs("br-1", "user-1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	entries, err := reader.Query(context.Background(), Filter{
		BranchID:    "br-1",
		PerformedBy: "user-1",
		Actions:     []Action{ActionCancelled, ActionCreated},
		Limit:       20,
	})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Action != ActionCancelled || e.PerformedBy != "user-1" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Metadata["channel"] != "web" {
		t.Fatalf("expected metadata decoded, got %+v", e.Metadata)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQueryEmptyResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	reader := NewReader(db)

	mock.ExpectQuery("SELECT a.id, a.appointment_id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "appointment_id", "action", "performed_by", "performed_by_role",
			"previous_status", "new_status", "reason", "metadata", "created_at",
		}))

	entries, err := reader.Query(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}
