package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vitalink/health-client/internal/client"
	"vitalink/health-client/internal/device"
	"vitalink/health-client/internal/domain"
	"vitalink/health-client/internal/logging"
	"vitalink/health-client/internal/metrics"
)

// metricAPI is what the metric service needs from the request pipeline.
type metricAPI interface {
	CurrentSession() domain.Session
	ListMetrics(ctx context.Context, userID uuid.UUID, filter client.MetricFilter) ([]domain.MetricRecord, error)
	CreateMetric(ctx context.Context, create client.MetricCreate) (*domain.MetricRecord, error)
}

// MetricService fetches metric records through the pipeline, feeds them to
// the aggregation engine, records manual entries, and syncs device health
// data to the backend.
type MetricService interface {
	// Report fetches the current user's records for the period window and
	// aggregates them.
	Report(ctx context.Context, period metrics.Period) (metrics.Report, error)
	// Record logs one manual metric entry.
	Record(ctx context.Context, metricType domain.MetricType, day domain.Date, value map[string]any, source string) (*domain.MetricRecord, error)
	// SyncDevice reads the device provider's signals for a day and posts
	// them as metric records. Each signal is independent: one failing read
	// never blocks the others.
	SyncDevice(ctx context.Context, day domain.Date) (SyncResult, error)
}

// SyncResult reports the outcome of a device sync, per signal.
type SyncResult struct {
	Synced   int
	Failures map[string]error
}

type metricService struct {
	api      metricAPI
	provider device.Provider
	engine   *metrics.Engine
	log      logging.Logger
	now      func() time.Time
}

// NewMetricService wires the metric service. The provider may be
// device.Unavailable{} on platforms without a health-data source.
func NewMetricService(api metricAPI, provider device.Provider, log logging.Logger) MetricService {
	return &metricService{
		api:      api,
		provider: provider,
		engine:   metrics.NewEngine(log),
		log:      log,
		now:      time.Now,
	}
}

func (s *metricService) Report(ctx context.Context, period metrics.Period) (metrics.Report, error) {
	if !period.Valid() {
		return metrics.Report{}, &client.ValidationError{Field: "period", Message: "must be today, week or month"}
	}
	session := s.api.CurrentSession()
	if session.UserID == uuid.Nil {
		return metrics.Report{}, &client.ValidationError{Field: "user", Message: "no current user"}
	}

	now := s.now()
	records, err := s.api.ListMetrics(ctx, session.UserID, client.MetricFilter{
		StartDate: period.StartDate(now),
		EndDate:   domain.DateOf(now),
	})
	if err != nil {
		return metrics.Report{}, err
	}
	return s.engine.Aggregate(records, period, now), nil
}

func (s *metricService) Record(ctx context.Context, metricType domain.MetricType, day domain.Date, value map[string]any, source string) (*domain.MetricRecord, error) {
	if !metricType.Known() {
		return nil, &client.ValidationError{Field: "metric_type", Message: "unknown metric type"}
	}
	if day.IsZero() {
		day = domain.DateOf(s.now())
	}
	if day.After(domain.DateOf(s.now())) {
		return nil, &client.ValidationError{Field: "date", Message: "cannot be in the future"}
	}
	session := s.api.CurrentSession()
	if session.UserID == uuid.Nil {
		return nil, &client.ValidationError{Field: "user", Message: "no current user"}
	}
	if source == "" {
		source = "manual"
	}
	return s.api.CreateMetric(ctx, client.MetricCreate{
		UserID:     session.UserID,
		Date:       day,
		MetricType: metricType,
		Value:      value,
		Source:     source,
	})
}

func (s *metricService) SyncDevice(ctx context.Context, day domain.Date) (SyncResult, error) {
	result := SyncResult{Failures: make(map[string]error)}
	if !s.provider.Available() {
		return result, device.ErrUnavailable
	}
	if day.IsZero() {
		day = domain.DateOf(s.now())
	}

	// Activity signals are combined into one record; heart rate and weight
	// get their own. Each read stands alone: a failure is recorded and the
	// sync moves on to the next signal.
	activity := map[string]any{}
	if steps, err := s.provider.Steps(ctx, day); err != nil {
		result.Failures["steps"] = err
	} else {
		activity["steps"] = steps
	}
	if energy, err := s.provider.ActiveEnergy(ctx, day); err != nil {
		result.Failures["active_energy"] = err
	} else {
		activity["active_calories"] = energy
	}
	if distance, err := s.provider.DistanceMeters(ctx, day); err != nil {
		result.Failures["distance"] = err
	} else {
		activity["distance_meters"] = distance
	}
	if flights, err := s.provider.FlightsClimbed(ctx, day); err != nil {
		result.Failures["flights_climbed"] = err
	} else {
		activity["flights_climbed"] = flights
	}
	if len(activity) > 0 {
		s.post(ctx, &result, "activity", domain.MetricActivity, day, activity)
	}

	if samples, err := s.provider.HeartRateSamples(ctx, day, day); err != nil {
		result.Failures["heart_rate"] = err
	} else if len(samples) > 0 {
		s.post(ctx, &result, "heart_rate", domain.MetricHeartRate, day, map[string]any{
			"average_bpm": device.Average(samples),
		})
	}

	if samples, err := s.provider.WeightSamples(ctx, day, day); err != nil {
		result.Failures["weight"] = err
	} else if len(samples) > 0 {
		weight := map[string]any{"weight_kg": samples[len(samples)-1].Value}
		if fat, err := s.provider.BodyFatSamples(ctx, day, day); err != nil {
			result.Failures["body_fat"] = err
		} else if len(fat) > 0 {
			weight["body_fat_percent"] = fat[len(fat)-1].Value
		}
		s.post(ctx, &result, "weight", domain.MetricWeight, day, weight)
	}

	return result, nil
}

// post creates one synced metric record, folding a failure into the result
// instead of aborting the sync.
func (s *metricService) post(ctx context.Context, result *SyncResult, signal string, metricType domain.MetricType, day domain.Date, value map[string]any) {
	session := s.api.CurrentSession()
	_, err := s.api.CreateMetric(ctx, client.MetricCreate{
		UserID:     session.UserID,
		Date:       day,
		MetricType: metricType,
		Value:      value,
		Source:     "device",
	})
	if err != nil {
		s.log.Warnf("device sync: posting %s: %v", signal, err)
		result.Failures[signal] = err
		return
	}
	result.Synced++
}
