package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/caresync-health/booking-platform/internal/audit"
)

// ExpireStale transitions pending_payment rows older than the payment
// window to expired, freeing their slots, and returns the expired bookings
// so callers can notify patients. The status guard in the WHERE clause
// means a row confirmed concurrently is left alone, which makes the sweep
// idempotent and safe next to live booking traffic.
func (l *Ledger) ExpireStale(ctx context.Context) ([]Booking, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: begin expire sweep: %w", err)
	}
	defer tx.Rollback(ctx)

	cutoff := time.Now().UTC().Add(-l.paymentWindow)
	rows, err := tx.Query(ctx, `
		UPDATE bookings SET status = $1
		WHERE status = $2 AND created_at < $3
		RETURNING `+bookingColumns,
		StatusExpired, StatusPendingPayment, cutoff)
	if err != nil {
		return nil, fmt.Errorf("booking: expire sweep: %w", err)
	}

	var expired []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("booking: scan expired row: %w", err)
		}
		expired = append(expired, *b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate expired rows: %w", err)
	}

	for i := range expired {
		if err := l.recorder.Record(ctx, tx, audit.Entry{
			AppointmentID:   expired[i].ID,
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

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("booking: commit expire sweep: %w", err)
	}
	return expired, nil
}

// PurgeAbandoned deletes cancelled and expired rows older than the
// retention period. They no longer hold slots, so removal only trims
// garbage out of availability queries.
func (l *Ledger) PurgeAbandoned(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	ct, err := l.pool.Exec(ctx, `
		DELETE FROM bookings
		WHERE status = ANY($1) AND created_at < $2`,
		[]string{string(StatusCancelled), string(StatusExpired)}, cutoff)
	if err != nil {
		return 0, fmt.Errorf("booking: purge abandoned: %w", err)
	}
	return ct.RowsAffected(), nil
}

// ExpiryObserver counts payment holds released by a sweep.
type ExpiryObserver interface {
	ObserveExpiredHolds(count int)
}

// ExpiryNotifier tells a patient their payment hold lapsed.
type ExpiryNotifier interface {
	BookingExpired(ctx context.Context, b *Booking) error
}

// Sweeper periodically expires stale payment holds and purges abandoned rows.
type Sweeper struct {
	ledger    *Ledger
	interval  time.Duration
	retention time.Duration
	metrics   ExpiryObserver
	notifier  ExpiryNotifier
}

// NewSweeper creates a sweeper with the given run interval.
func NewSweeper(ledger *Ledger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		ledger:    ledger,
		interval:  interval,
		retention: 30 * 24 * time.Hour,
	}
}

// WithRetention overrides how long cancelled/expired rows are kept.
func (s *Sweeper) WithRetention(retention time.Duration) *Sweeper {
	if retention > 0 {
		s.retention = retention
	}
	return s
}

// WithMetrics records expired-hold counts on each sweep.
func (s *Sweeper) WithMetrics(m ExpiryObserver) *Sweeper {
	s.metrics = m
	return s
}

// WithNotifier emails patients whose holds the sweep releases. Failures
// are logged and never stop the sweep.
func (s *Sweeper) WithNotifier(n ExpiryNotifier) *Sweeper {
	s.notifier = n
	return s
}

// Run loops until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.ledger.ExpireStale(ctx)
	if err != nil {
		s.ledger.logger.Error("sweep: expire stale failed", "error", err)
	} else if len(expired) > 0 {
		s.ledger.logger.Info("sweep: expired stale payment holds", "count", len(expired))
		if s.metrics != nil {
			s.metrics.ObserveExpiredHolds(len(expired))
		}
		if s.notifier != nil {
			for i := range expired {
				if err := s.notifier.BookingExpired(ctx, &expired[i]); err != nil {
					s.ledger.logger.Error("sweep: expiry notification failed",
						"error", err, "appointment_id", expired[i].ID)
				}
			}
		}
	}

	purged, err := s.ledger.PurgeAbandoned(ctx, s.retention)
	if err != nil {
		s.ledger.logger.Error("sweep: purge abandoned failed", "error", err)
	} else if purged > 0 {
		s.ledger.logger.Info("sweep: purged abandoned rows", "count", purged)
	}
}
