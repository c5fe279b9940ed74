// Package metrics is the aggregation engine: a pure, deterministic layer
// that turns a flat list of metric records into a date-grouped view and
// per-type summary statistics for a time window. It performs no I/O.
package metrics

import (
	"fmt"
	"sort"
	"time"

	"vitalink/health-client/internal/domain"
	"vitalink/health-client/internal/logging"
)

// Period selects the time window a record must fall into.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

func (p Period) Valid() bool {
	return p == PeriodToday || p == PeriodWeek || p == PeriodMonth
}

// ParsePeriod validates a period string from user input.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown period %q (want today, week or month)", s)
	}
	return p, nil
}

// StartDate returns the inclusive lower bound of the period relative to
// now. For "today" the bound is the calendar day itself, not a 24-hour
// sliding window.
func (p Period) StartDate(now time.Time) domain.Date {
	today := domain.DateOf(now)
	switch p {
	case PeriodWeek:
		return today.AddDays(-7)
	case PeriodMonth:
		return domain.DateOf(now.AddDate(0, -1, 0))
	default:
		return today
	}
}

// InPeriod reports whether a record dated d belongs to the period window
// anchored at now. All bounds are inclusive: with now = 2024-03-10, a week
// window includes 2024-03-03 and excludes 2024-03-02.
func InPeriod(d domain.Date, p Period, now time.Time) bool {
	if p == PeriodToday {
		return d.Equal(domain.DateOf(now))
	}
	return !d.Before(p.StartDate(now))
}

// Stats summarizes one metric type's primary measurement over the window.
type Stats struct {
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// DayGroup is the records of one calendar date, ordered by metric type name.
type DayGroup struct {
	Date    domain.Date
	Records []domain.MetricRecord
}

// Report is the aggregation output: days newest-first for the detail list,
// and per-type summaries for the window.
type Report struct {
	Period    Period
	Days      []DayGroup
	Summaries map[domain.MetricType]Stats
}

// Records flattens the grouped view back into a single list, preserving the
// report's ordering. Every input record that passed the period filter
// appears exactly once.
func (r Report) Records() []domain.MetricRecord {
	var out []domain.MetricRecord
	for _, day := range r.Days {
		out = append(out, day.Records...)
	}
	return out
}

// Engine computes reports. It carries only a logger, used when a malformed
// record is dropped from a statistic.
type Engine struct {
	log logging.Logger
}

func NewEngine(log logging.Logger) *Engine {
	return &Engine{log: log}
}

// Aggregate filters records to the period window anchored at now, groups
// them by calendar date (newest date first, metric types in stable lexical
// order within a date) and computes per-type summary statistics.
//
// The computation is defensive: a record whose payload cannot be decoded is
// excluded from the numeric summary but retained in the grouped view, so one
// corrupt record never aborts the rest. Given the same inputs, output order
// and statistics are fully deterministic.
func (e *Engine) Aggregate(records []domain.MetricRecord, p Period, now time.Time) Report {
	report := Report{
		Period:    p,
		Summaries: make(map[domain.MetricType]Stats),
	}

	var filtered []domain.MetricRecord
	for _, record := range records {
		if InPeriod(record.Date, p, now) {
			filtered = append(filtered, record)
		}
	}

	report.Days = groupByDate(filtered)

	// Per-type summaries. Only the types with a defined primary measurement
	// get numbers; everything else just rides along in the grouped view.
	acc := make(map[domain.MetricType]*accumulator)
	for _, record := range filtered {
		measurement, ok := e.primaryMeasurement(record)
		if !ok {
			continue
		}
		a := acc[record.Type]
		if a == nil {
			a = &accumulator{}
			acc[record.Type] = a
		}
		a.add(measurement)
	}
	for metricType, a := range acc {
		report.Summaries[metricType] = a.stats()
	}
	return report
}

// primaryMeasurement extracts the summarized value for a record: sleep
// duration hours, activity steps, or heart-rate bpm. The second return is
// false for types with no summary and for payloads that failed to decode.
func (e *Engine) primaryMeasurement(record domain.MetricRecord) (float64, bool) {
	switch v := record.Value().(type) {
	case domain.SleepValue:
		return v.DurationHours, true
	case domain.ActivityValue:
		return v.Steps, true
	case domain.HeartRateValue:
		if v.AverageBPM > 0 {
			return v.AverageBPM, true
		}
		return v.RestingBPM, true
	case domain.GenericValue:
		if record.Type.Known() && record.Type != domain.MetricEvent && record.Type != domain.MetricMood {
			e.log.Warnf("metric %s: undecodable %s payload excluded from summary", record.ID, record.Type)
		}
		return 0, false
	}
	return 0, false
}

// groupByDate buckets records per calendar date, newest date first, and
// orders each bucket by metric type name. Sorting is stable so equal keys
// keep their input order.
func groupByDate(records []domain.MetricRecord) []DayGroup {
	buckets := make(map[domain.Date][]domain.MetricRecord)
	for _, record := range records {
		buckets[record.Date] = append(buckets[record.Date], record)
	}

	days := make([]DayGroup, 0, len(buckets))
	for date, group := range buckets {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Type < group[j].Type
		})
		days = append(days, DayGroup{Date: date, Records: group})
	}
	sort.SliceStable(days, func(i, j int) bool {
		return days[j].Date.Before(days[i].Date)
	})
	return days
}

// accumulator builds Stats incrementally.
type accumulator struct {
	sum   float64
	min   float64
	max   float64
	count int
}

func (a *accumulator) add(v float64) {
	if a.count == 0 || v < a.min {
		a.min = v
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.count++
}

func (a *accumulator) stats() Stats {
	s := Stats{Min: a.min, Max: a.max, Count: a.count}
	if a.count > 0 {
		s.Avg = a.sum / float64(a.count)
	}
	return s
}
