package domain

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentStatus is the lifecycle state of a protocol enrollment.
type EnrollmentStatus string

const (
	StatusActive    EnrollmentStatus = "active"
	StatusCompleted EnrollmentStatus = "completed"
	StatusAbandoned EnrollmentStatus = "abandoned"
)

// Valid reports whether s is one of the defined statuses.
func (s EnrollmentStatus) Valid() bool {
	return s == StatusActive || s == StatusCompleted || s == StatusAbandoned
}

// Terminal reports whether the status has no outgoing transitions.
func (s EnrollmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Duration types for protocol templates.
const (
	DurationFixed   = "fixed"
	DurationOngoing = "ongoing"
)

// ProtocolTemplate is a read-only catalog entry describing a behavior
// program a user can enroll in. Template IDs are catalog slugs such as
// "sleep_optimization".
type ProtocolTemplate struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Category         string   `json:"category"`
	TargetMetrics    []string `json:"target_metrics"`
	DurationType     string   `json:"duration_type"`
	DurationDays     *int     `json:"duration_days,omitempty"`
	Steps            []string `json:"steps,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
	ExpectedOutcomes []string `json:"expected_outcomes,omitempty"`
}

// ProtocolEnrollment is a user's instance of following a protocol. The
// descriptive fields are copied from the template at enrollment time, so the
// enrollment is a snapshot and stays fully described even if the catalog
// entry later changes.
//
// Invariant: Status == active ⇔ EndDate == nil. EndDate is set exactly when
// the status transitions out of active.
type ProtocolEnrollment struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	TemplateID       *string          `json:"template_id,omitempty"`
	Name             string           `json:"name"`
	Description      string           `json:"description,omitempty"`
	StartDate        Date             `json:"start_date"`
	EndDate          *Date            `json:"end_date,omitempty"`
	Status           EnrollmentStatus `json:"status"`
	DurationDays     *int             `json:"duration_days,omitempty"`
	TargetMetrics    []string         `json:"target_metrics"`
	Steps            []string         `json:"steps,omitempty"`
	Recommendations  []string         `json:"recommendations,omitempty"`
	ExpectedOutcomes []string         `json:"expected_outcomes,omitempty"`
	Category         string           `json:"category,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// CanTransitionTo reports whether the enrollment may move to the given
// status. Only active → completed and active → abandoned are defined;
// completed and abandoned are terminal.
func (e *ProtocolEnrollment) CanTransitionTo(next EnrollmentStatus) bool {
	return e.Status == StatusActive && next.Terminal()
}

// --- Derived progress values ---
//
// These are pure functions of the entity and the caller's "today". They are
// deliberately not stored: screens call them instead of re-deriving the math
// locally.

// DaysPassed returns the whole days elapsed since the start date, floored
// at 0 for enrollments that start in the future.
func (e *ProtocolEnrollment) DaysPassed(today Date) int {
	days := today.DaysSince(e.StartDate)
	if days < 0 {
		return 0
	}
	return days
}

// DaysLeft returns the days remaining in a fixed-duration enrollment,
// floored at 0. The second return is false for open-ended protocols, where
// "days left" is undefined.
func (e *ProtocolEnrollment) DaysLeft(today Date) (int, bool) {
	if e.DurationDays == nil || *e.DurationDays <= 0 {
		return 0, false
	}
	left := *e.DurationDays - e.DaysPassed(today)
	if left < 0 {
		left = 0
	}
	return left, true
}

// Progress returns the completed fraction of a fixed-duration enrollment,
// clamped to [0, 1]. The second return is false for open-ended protocols:
// progress is undefined there and must not be displayed.
func (e *ProtocolEnrollment) Progress(today Date) (float64, bool) {
	if e.DurationDays == nil || *e.DurationDays <= 0 {
		return 0, false
	}
	fraction := float64(e.DaysPassed(today)) / float64(*e.DurationDays)
	if fraction > 1 {
		fraction = 1
	}
	return fraction, true
}
