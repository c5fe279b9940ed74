package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedEnrollment(durationDays int, startedDaysAgo int, today Date) ProtocolEnrollment {
	return ProtocolEnrollment{
		Status:       StatusActive,
		StartDate:    today.AddDays(-startedDaysAgo),
		DurationDays: &durationDays,
	}
}

func TestProgressDerivation(t *testing.T) {
	today := NewDate(2024, time.March, 10)
	e := fixedEnrollment(30, 10, today)

	assert.Equal(t, 10, e.DaysPassed(today))

	left, ok := e.DaysLeft(today)
	assert.True(t, ok)
	assert.Equal(t, 20, left)

	fraction, ok := e.Progress(today)
	assert.True(t, ok)
	assert.InDelta(t, 0.333, fraction, 0.001)
}

func TestProgressClampsAndFloors(t *testing.T) {
	today := NewDate(2024, time.March, 10)

	// Past the end of the program: progress caps at 1, days left at 0.
	over := fixedEnrollment(30, 45, today)
	fraction, ok := over.Progress(today)
	assert.True(t, ok)
	assert.Equal(t, 1.0, fraction)
	left, _ := over.DaysLeft(today)
	assert.Equal(t, 0, left)

	// Start date in the future: elapsed days floor at 0.
	future := fixedEnrollment(30, -3, today)
	assert.Equal(t, 0, future.DaysPassed(today))
}

func TestOpenEndedProtocolHasNoProgress(t *testing.T) {
	today := Today()
	e := ProtocolEnrollment{Status: StatusActive, StartDate: today.AddDays(-10)}

	_, ok := e.Progress(today)
	assert.False(t, ok)
	_, ok = e.DaysLeft(today)
	assert.False(t, ok)
	// Elapsed days are still meaningful without a duration.
	assert.Equal(t, 10, e.DaysPassed(today))
}

func TestStatusTransitions(t *testing.T) {
	active := ProtocolEnrollment{Status: StatusActive}
	assert.True(t, active.CanTransitionTo(StatusCompleted))
	assert.True(t, active.CanTransitionTo(StatusAbandoned))
	assert.False(t, active.CanTransitionTo(StatusActive))

	// Terminal states are terminal.
	completed := ProtocolEnrollment{Status: StatusCompleted}
	assert.False(t, completed.CanTransitionTo(StatusActive))
	assert.False(t, completed.CanTransitionTo(StatusAbandoned))

	abandoned := ProtocolEnrollment{Status: StatusAbandoned}
	assert.False(t, abandoned.CanTransitionTo(StatusCompleted))
}

func TestStatusValidation(t *testing.T) {
	assert.True(t, StatusActive.Valid())
	assert.True(t, StatusCompleted.Valid())
	assert.True(t, StatusAbandoned.Valid())
	assert.False(t, EnrollmentStatus("paused").Valid())
	assert.False(t, StatusActive.Terminal())
	assert.True(t, StatusCompleted.Terminal())
}
