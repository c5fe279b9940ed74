package device

import (
	"context"
	"sync"
	"time"

	"vitalink/health-client/internal/domain"
)

// Simulated is a deterministic provider for development and tests. Readings
// are derived from the date, so the same day always reports the same
// numbers. Reads fail with ErrNotAuthorized until RequestAuthorization has
// been called once.
type Simulated struct {
	mu         sync.Mutex
	authorized bool
}

func NewSimulated() *Simulated {
	return &Simulated{}
}

func (p *Simulated) Available() bool { return true }

func (p *Simulated) RequestAuthorization(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authorized = true
	return nil
}

func (p *Simulated) check() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.authorized {
		return ErrNotAuthorized
	}
	return nil
}

// daySeed folds a date into a small deterministic variation factor.
func daySeed(day domain.Date) float64 {
	return float64((day.Year*372 + int(day.Month)*31 + day.Day) % 97)
}

func (p *Simulated) Steps(ctx context.Context, day domain.Date) (float64, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	return 6000 + daySeed(day)*80, nil
}

func (p *Simulated) DistanceMeters(ctx context.Context, day domain.Date) (float64, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	return 4200 + daySeed(day)*55, nil
}

func (p *Simulated) FlightsClimbed(ctx context.Context, day domain.Date) (float64, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	return 4 + daySeed(day)/20, nil
}

func (p *Simulated) ActiveEnergy(ctx context.Context, day domain.Date) (float64, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	return 320 + daySeed(day)*4, nil
}

func (p *Simulated) HeartRateSamples(ctx context.Context, start, end domain.Date) ([]Sample, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return p.samples(start, end, 58, 0.3), nil
}

func (p *Simulated) WeightSamples(ctx context.Context, start, end domain.Date) ([]Sample, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return p.samples(start, end, 74, 0.02), nil
}

func (p *Simulated) BodyFatSamples(ctx context.Context, start, end domain.Date) ([]Sample, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return p.samples(start, end, 18, 0.01), nil
}

// samples emits one reading per day across the inclusive range.
func (p *Simulated) samples(start, end domain.Date, base, spread float64) []Sample {
	var out []Sample
	for day := start; !day.After(end); day = day.AddDays(1) {
		out = append(out, Sample{
			Time:  day.Time().Add(8 * time.Hour),
			Value: base + daySeed(day)*spread,
		})
	}
	return out
}
