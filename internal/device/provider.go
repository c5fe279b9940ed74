// Package device is the boundary to the platform's health-data provider
// (HealthKit or equivalent). The provider is a black box to the rest of the
// client: availability is platform-gated, access needs a one-time permission
// grant, and every read is independently fallible.
package device

import (
	"context"
	"errors"
	"time"

	"vitalink/health-client/internal/domain"
)

var (
	// ErrUnavailable means no health-data provider exists on this platform.
	ErrUnavailable = errors.New("health data provider not available on this platform")
	// ErrNotAuthorized means the user has not granted (or has revoked) the
	// permission to read health data.
	ErrNotAuthorized = errors.New("health data access not authorized")
)

// Sample is one timestamped reading from a range query.
type Sample struct {
	Time  time.Time
	Value float64
}

// Average returns the mean value of the samples, 0 for an empty slice.
func Average(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.Value
	}
	return sum / float64(len(samples))
}

// Provider exposes point-in-time reads for a single day and range reads
// over a date span. Implementations must treat every method as independent:
// a failure reading one signal must not poison the others.
type Provider interface {
	Available() bool
	RequestAuthorization(ctx context.Context) error

	Steps(ctx context.Context, day domain.Date) (float64, error)
	DistanceMeters(ctx context.Context, day domain.Date) (float64, error)
	FlightsClimbed(ctx context.Context, day domain.Date) (float64, error)
	ActiveEnergy(ctx context.Context, day domain.Date) (float64, error)

	HeartRateSamples(ctx context.Context, start, end domain.Date) ([]Sample, error)
	WeightSamples(ctx context.Context, start, end domain.Date) ([]Sample, error)
	BodyFatSamples(ctx context.Context, start, end domain.Date) ([]Sample, error)
}

// Unavailable is the provider for platforms with no health-data source.
// Every read fails with ErrUnavailable.
type Unavailable struct{}

func (Unavailable) Available() bool                                { return false }
func (Unavailable) RequestAuthorization(context.Context) error     { return ErrUnavailable }
func (Unavailable) Steps(context.Context, domain.Date) (float64, error)          { return 0, ErrUnavailable }
func (Unavailable) DistanceMeters(context.Context, domain.Date) (float64, error) { return 0, ErrUnavailable }
func (Unavailable) FlightsClimbed(context.Context, domain.Date) (float64, error) { return 0, ErrUnavailable }
func (Unavailable) ActiveEnergy(context.Context, domain.Date) (float64, error)   { return 0, ErrUnavailable }
func (Unavailable) HeartRateSamples(context.Context, domain.Date, domain.Date) ([]Sample, error) {
	return nil, ErrUnavailable
}
func (Unavailable) WeightSamples(context.Context, domain.Date, domain.Date) ([]Sample, error) {
	return nil, ErrUnavailable
}
func (Unavailable) BodyFatSamples(context.Context, domain.Date, domain.Date) ([]Sample, error) {
	return nil, ErrUnavailable
}
