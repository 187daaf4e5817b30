// Package deadline decides how long invitees have to respond to an activity
// invitation and renders that window for clients.
//
// Every function takes the reference instant explicitly; callers own the clock.
// All arithmetic is on elapsed durations between absolute instants, never on
// calendar fields, so time zones and DST changes do not affect results.
package deadline

import (
	"errors"
	"fmt"
	"time"
)

// Status classifies how urgent a response deadline is.
type Status string

const (
	StatusActive  Status = "active"
	StatusWarning Status = "warning"
	StatusPassed  Status = "passed"
)

const (
	day = 24 * time.Hour

	// WarningWindow is the remaining time at or below which a deadline is in warning.
	WarningWindow = 2 * time.Hour
	// ExtensionStep is added to a deadline when the organizer extends it.
	ExtensionStep = 24 * time.Hour
)

// ErrInvalidDate is returned when a Config is built from a zero instant.
var ErrInvalidDate = errors.New("invalid date")

// Config holds the inputs needed to derive a response deadline.
type Config struct {
	ActivityDate time.Time
	CurrentDate  time.Time
}

// NewConfig validates both instants and returns a Config.
func NewConfig(activityDate, currentDate time.Time) (Config, error) {
	if activityDate.IsZero() {
		return Config{}, fmt.Errorf("activity date: %w", ErrInvalidDate)
	}
	if currentDate.IsZero() {
		return Config{}, fmt.Errorf("current date: %w", ErrInvalidDate)
	}
	return Config{ActivityDate: activityDate, CurrentDate: currentDate}, nil
}

// Deadline returns the response deadline for the config.
func (c Config) Deadline() time.Time {
	return Compute(c.ActivityDate, c.CurrentDate)
}

// Compute returns now plus the response window chosen for an activity at
// activityDate. Past activities get the shortest window.
func Compute(activityDate, now time.Time) time.Time {
	hours := HoursFor(DaysUntil(activityDate, now))
	return now.Add(time.Duration(hours) * time.Hour)
}

// DaysUntil returns the number of days until activityDate rounded up, so any
// positive fraction of a day counts as a whole day. Zero or negative means the
// activity is now or already past.
func DaysUntil(activityDate, now time.Time) int {
	return int(ceilDiv(activityDate.Sub(now), day))
}

// HoursFor maps a DaysUntil result to the response window in hours.
func HoursFor(daysDiff int) int {
	switch {
	case daysDiff <= 1:
		return 2
	case daysDiff == 2:
		return 24
	default:
		return 48
	}
}

// Text renders the time left until dl as a short countdown label.
func Text(dl, now time.Time) string {
	diff := dl.Sub(now)
	if diff <= 0 {
		return "Deadline passed"
	}
	hoursLeft := ceilDiv(diff, time.Hour)
	if hoursLeft == 1 {
		return "1 hour left"
	}
	if hoursLeft < 24 {
		return fmt.Sprintf("%d hours left", hoursLeft)
	}
	daysLeft := (hoursLeft + 23) / 24
	if daysLeft == 1 {
		return "1 day left"
	}
	return fmt.Sprintf("%d days left", daysLeft)
}

// IsPassed reports whether dl is at or before now.
func IsPassed(dl, now time.Time) bool {
	return !dl.After(now)
}

// StatusOf classifies dl against now using the exact remaining time.
// Exactly WarningWindow left is a warning; exactly zero left is passed.
func StatusOf(dl, now time.Time) Status {
	left := dl.Sub(now)
	switch {
	case left <= 0:
		return StatusPassed
	case left <= WarningWindow:
		return StatusWarning
	default:
		return StatusActive
	}
}

// Extend pushes a deadline out by ExtensionStep. A zero current deadline is
// extended from now.
func Extend(current, now time.Time) time.Time {
	ref := current
	if ref.IsZero() {
		ref = now
	}
	return ref.Add(ExtensionStep)
}

// Info is a deadline rendered for one reference instant.
type Info struct {
	Deadline time.Time `json:"deadline"`
	Text     string    `json:"text"`
	Status   Status    `json:"status"`
	Passed   bool      `json:"passed"`
}

// Describe renders dl against now. Use the same now for every field so a
// single response never mixes two clock samples.
func Describe(dl, now time.Time) Info {
	return Info{
		Deadline: dl,
		Text:     Text(dl, now),
		Status:   StatusOf(dl, now),
		Passed:   IsPassed(dl, now),
	}
}

// ceilDiv divides d by unit rounding toward positive infinity.
func ceilDiv(d, unit time.Duration) int64 {
	q := d / unit
	if d%unit > 0 {
		q++
	}
	return int64(q)
}
