// Package availability derives bookable slots for a doctor's day from the
// schedule catalog minus active bookings and blocked dates.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/caresync-health/booking-platform/internal/booking"
	"github.com/caresync-health/booking-platform/internal/branch"
	"github.com/caresync-health/booking-platform/internal/schedule"
	"github.com/caresync-health/booking-platform/pkg/logging"
)

// DayStatus summarizes how full a doctor's day is.
type DayStatus string

const (
	StatusOpen       DayStatus = "open"
	StatusNearlyFull DayStatus = "nearly_full"
	StatusFull       DayStatus = "full"
)

// nearlyFullThreshold is the largest remaining-slot count still reported
// as nearly full.
const nearlyFullThreshold = 3

// SlotAvailability is the availability picture for one (doctor, branch, date).
type SlotAvailability struct {
	DoctorID  string    `json:"doctor_id"`
	BranchID  string    `json:"branch_id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	All       []int     `json:"all"`
	Booked    []int     `json:"booked"`
	Available []int     `json:"available"`
	Times     []string  `json:"times"`
	Status    DayStatus `json:"status"`
}

// ScheduleSource resolves templates and blocked dates.
type ScheduleSource interface {
	GetTemplate(ctx context.Context, doctorID, branchID string, weekday time.Weekday) (*schedule.Template, error)
	IsBlocked(ctx context.Context, doctorID, branchID string, date time.Time) (bool, error)
}

// SettingsSource resolves branch booking policy.
type SettingsSource interface {
	Get(ctx context.Context, branchID string) (*branch.Settings, error)
}

// SlotSource lists slot numbers currently held by active bookings.
type SlotSource interface {
	BookedSlotNumbers(ctx context.Context, doctorID, branchID string, date time.Time) ([]int, error)
}

// LatencyObserver records how long a cache-miss computation took.
type LatencyObserver interface {
	ObserveAvailabilityLatency(seconds float64)
}

// Calculator computes slot availability. Reads are lock-free and may be
// stale; the ledger's unique index is the correctness backstop.
type Calculator struct {
	schedules ScheduleSource
	settings  SettingsSource
	slots     SlotSource
	cache     *Cache
	metrics   LatencyObserver
	logger    *logging.Logger
}

// NewCalculator creates a calculator. The cache is optional.
func NewCalculator(schedules ScheduleSource, settings SettingsSource, slots SlotSource, cache *Cache, logger *logging.Logger) *Calculator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Calculator{
		schedules: schedules,
		settings:  settings,
		slots:     slots,
		cache:     cache,
		logger:    logger,
	}
}

// WithMetrics records computation latency for cache misses.
func (c *Calculator) WithMetrics(m LatencyObserver) *Calculator {
	c.metrics = m
	return c
}

// ForDay computes availability for a doctor's date, consulting the cache
// first when one is configured. Resolution order is template, override,
// advance window: a day with no schedule is "not found" even when the
// date also falls outside the booking window.
func (c *Calculator) ForDay(ctx context.Context, doctorID, branchID string, date time.Time) (*SlotAvailability, error) {
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, doctorID, branchID, date); ok {
			return cached, nil
		}
	}
	start := time.Now()

	tmpl, err := c.schedules.GetTemplate(ctx, doctorID, branchID, date.Weekday())
	if err != nil {
		return nil, err
	}

	blocked, err := c.schedules.IsBlocked(ctx, doctorID, branchID, date)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, booking.NewPolicyError(booking.RuleDateBlocked,
			"the doctor's schedule is blocked on %s", date.Format(time.DateOnly))
	}

	settings, err := c.settings.Get(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("availability: load settings: %w", err)
	}
	if err := booking.CheckWindow(date, settings, time.Now()); err != nil {
		return nil, err
	}

	bookedSlots, err := c.slots.BookedSlotNumbers(ctx, doctorID, branchID, date)
	if err != nil {
		return nil, err
	}
	taken := make(map[int]bool, len(bookedSlots))
	for _, n := range bookedSlots {
		taken[n] = true
	}

	out := &SlotAvailability{
		DoctorID:  doctorID,
		BranchID:  branchID,
		Date:      date.Format(time.DateOnly),
		StartTime: tmpl.StartTime,
		All:       make([]int, 0, tmpl.SlotCount),
		Booked:    []int{},
		Available: []int{},
		Times:     make([]string, 0, tmpl.SlotCount),
	}
	for k := 1; k <= tmpl.SlotCount; k++ {
		out.All = append(out.All, k)
		t, err := booking.SlotTime(tmpl.StartTime, tmpl.MinutesPerSlot, k)
		if err != nil {
			return nil, err
		}
		out.Times = append(out.Times, t)
		if taken[k] {
			out.Booked = append(out.Booked, k)
		} else {
			out.Available = append(out.Available, k)
		}
	}

	switch remaining := len(out.Available); {
	case remaining == 0:
		out.Status = StatusFull
	case remaining <= nearlyFullThreshold:
		out.Status = StatusNearlyFull
	default:
		out.Status = StatusOpen
	}

	if c.metrics != nil {
		c.metrics.ObserveAvailabilityLatency(time.Since(start).Seconds())
	}
	if c.cache != nil {
		c.cache.Set(ctx, out)
	}
	return out, nil
}
