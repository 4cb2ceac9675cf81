// Package branch provides per-branch booking policy configuration.
package branch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Settings is the policy object the booking core consults on every
// operation. It is maintained by branch administration (out of scope
// here) and read-mostly from the core's perspective.
type Settings struct {
	BranchID string `json:"branch_id"`

	// MaxAdvanceBookingDays bounds how far in the future a booking may be made.
	MaxAdvanceBookingDays int `json:"max_advance_booking_days"`

	// RequirePaymentForOnline makes patient-initiated online bookings start
	// in pending_payment instead of confirmed.
	RequirePaymentForOnline bool `json:"require_payment_for_online"`

	AllowWalkIn bool `json:"allow_walk_in"`

	// CancellationAdvanceHours is the patient cancellation cutoff. Zero
	// disables the cutoff.
	CancellationAdvanceHours int `json:"cancellation_advance_hours"`

	// RefundOnCancellation permits refunds for staff cancellations made on
	// the doctor's behalf.
	RefundOnCancellation bool `json:"refund_on_cancellation"`

	DefaultBookingFeeCents int `json:"default_booking_fee_cents"`
	WalkInFeeCents         int `json:"walk_in_fee_cents"`

	// Timezone is the branch-local IANA zone; weekday derivation, advance
	// windows and the 24-hour reschedule rule are all evaluated in it.
	Timezone string `json:"timezone"`
}

// Location resolves the branch timezone, falling back to UTC.
func (s *Settings) Location() *time.Location {
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

// DefaultSettings returns the policy applied to branches with no stored config.
func DefaultSettings(branchID string) *Settings {
	return &Settings{
		BranchID:                 branchID,
		MaxAdvanceBookingDays:    30,
		RequirePaymentForOnline:  false,
		AllowWalkIn:              true,
		CancellationAdvanceHours: 0,
		RefundOnCancellation:     false,
		Timezone:                 "UTC",
	}
}

// Store provides persistence for branch settings.
type Store struct {
	redis *redis.Client

	// defaultTimezone applies to branches whose stored settings carry
	// no zone of their own.
	defaultTimezone string
}

// NewStore creates a branch settings store. The default timezone fills in
// for branches with no stored zone; empty means UTC.
func NewStore(redisClient *redis.Client, defaultTimezone string) *Store {
	return &Store{redis: redisClient, defaultTimezone: defaultTimezone}
}

func (s *Store) defaults(branchID string) *Settings {
	settings := DefaultSettings(branchID)
	if s.defaultTimezone != "" {
		settings.Timezone = s.defaultTimezone
	}
	return settings
}

func (s *Store) key(branchID string) string {
	return fmt.Sprintf("branch:settings:%s", branchID)
}

// Get retrieves branch settings, returning defaults if not found or when
// no redis backend is configured.
func (s *Store) Get(ctx context.Context, branchID string) (*Settings, error) {
	if s.redis == nil {
		return s.defaults(branchID), nil
	}
	data, err := s.redis.Get(ctx, s.key(branchID)).Bytes()
	if err == redis.Nil {
		return s.defaults(branchID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("branch: get settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("branch: unmarshal settings: %w", err)
	}
	if settings.Timezone == "" {
		settings.Timezone = s.defaultTimezone
	}
	return &settings, nil
}

// Set saves branch settings.
func (s *Store) Set(ctx context.Context, settings *Settings) error {
	if s.redis == nil {
		return fmt.Errorf("branch: settings store has no redis backend")
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("branch: marshal settings: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(settings.BranchID), data, 0).Err(); err != nil {
		return fmt.Errorf("branch: set settings: %w", err)
	}
	return nil
}
