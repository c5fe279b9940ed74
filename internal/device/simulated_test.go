package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalink/health-client/internal/domain"
)

func TestSimulatedRequiresAuthorization(t *testing.T) {
	provider := NewSimulated()
	ctx := context.Background()
	day := domain.NewDate(2024, 3, 10)

	_, err := provider.Steps(ctx, day)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = provider.HeartRateSamples(ctx, day, day)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	require.NoError(t, provider.RequestAuthorization(ctx))
	_, err = provider.Steps(ctx, day)
	assert.NoError(t, err)
}

func TestSimulatedIsDeterministicPerDay(t *testing.T) {
	provider := NewSimulated()
	ctx := context.Background()
	require.NoError(t, provider.RequestAuthorization(ctx))

	day := domain.NewDate(2024, 3, 10)
	first, err := provider.Steps(ctx, day)
	require.NoError(t, err)
	second, err := provider.Steps(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := provider.Steps(ctx, domain.NewDate(2024, 3, 11))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestSimulatedSamplesOnePerDayInclusive(t *testing.T) {
	provider := NewSimulated()
	ctx := context.Background()
	require.NoError(t, provider.RequestAuthorization(ctx))

	start := domain.NewDate(2024, 3, 8)
	end := domain.NewDate(2024, 3, 10)
	samples, err := provider.HeartRateSamples(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, start.Time().Day(), samples[0].Time.Day())
	assert.Equal(t, end.Time().Day(), samples[2].Time.Day())
}

func TestAverage(t *testing.T) {
	assert.Zero(t, Average(nil))
	samples := []Sample{{Value: 60}, {Value: 64}}
	assert.Equal(t, 62.0, Average(samples))
}

func TestUnavailableFailsEveryRead(t *testing.T) {
	var provider Provider = Unavailable{}
	ctx := context.Background()
	day := domain.NewDate(2024, 3, 10)

	assert.False(t, provider.Available())
	assert.ErrorIs(t, provider.RequestAuthorization(ctx), ErrUnavailable)
	_, err := provider.Steps(ctx, day)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = provider.WeightSamples(ctx, day, day)
	assert.ErrorIs(t, err, ErrUnavailable)
}
