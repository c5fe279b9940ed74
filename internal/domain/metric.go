package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MetricType identifies the kind of observation a metric record carries.
type MetricType string

const (
	MetricSleep         MetricType = "sleep"
	MetricActivity      MetricType = "activity"
	MetricHeartRate     MetricType = "heart_rate"
	MetricBloodPressure MetricType = "blood_pressure"
	MetricWeight        MetricType = "weight"
	MetricMood          MetricType = "mood"
	MetricCalories      MetricType = "calories"
	MetricEvent         MetricType = "event"
)

// KnownMetricTypes lists every type the backend validates against.
var KnownMetricTypes = []MetricType{
	MetricSleep, MetricActivity, MetricHeartRate, MetricBloodPressure,
	MetricWeight, MetricMood, MetricCalories, MetricEvent,
}

// Known reports whether t is one of the backend's metric types. Unknown
// types are still carried through the client; they just get generic display
// treatment instead of typed statistics.
func (t MetricType) Known() bool {
	for _, k := range KnownMetricTypes {
		if t == k {
			return true
		}
	}
	return false
}

// MetricRecord is one timestamped biometric or life-event observation.
// Records are immutable once fetched. Payload holds the raw, loosely-typed
// value as it came off the wire; Value decodes it into a typed variant.
type MetricRecord struct {
	ID      uuid.UUID  `json:"id"`
	UserID  uuid.UUID  `json:"user_id"`
	Date    Date       `json:"date"`
	Type    MetricType `json:"metric_type"`
	Payload any        `json:"value"`
	Source  string     `json:"source"`
}

// --- Typed metric values ---

// Value is the decoded, type-tagged form of a metric payload. The concrete
// variants are SleepValue, ActivityValue, HeartRateValue and GenericValue;
// the switch over them in the aggregation engine is therefore exhaustive
// instead of relying on string comparisons into untyped maps.
type Value interface {
	metricValue()
}

// SleepValue carries one night's sleep measurements, in hours.
type SleepValue struct {
	DurationHours  float64
	DeepSleepHours float64
	RemSleepHours  float64
	SleepScore     float64
}

// ActivityValue carries one day's movement measurements.
type ActivityValue struct {
	Steps          float64
	ActiveCalories float64
	ActiveMinutes  float64
}

// HeartRateValue carries heart measurements in bpm (HRV in milliseconds).
type HeartRateValue struct {
	AverageBPM float64
	RestingBPM float64
	HRVMs      float64
}

// GenericValue is the catch-all variant: an unknown metric type, or a known
// type whose payload could not be decoded into its typed form. The original
// payload is retained so it can still be displayed.
type GenericValue struct {
	Payload any
}

func (SleepValue) metricValue()     {}
func (ActivityValue) metricValue()  {}
func (HeartRateValue) metricValue() {}
func (GenericValue) metricValue()   {}

// Value decodes the record's raw payload into its typed variant. Decoding is
// best-effort: missing fields default to zero where the metric type allows
// it, and anything unrecognizable degrades to GenericValue rather than
// failing the record.
func (r MetricRecord) Value() Value {
	return DecodeValue(r.Type, r.Payload)
}

// DecodeValue maps a raw payload to the typed variant for the metric type.
func DecodeValue(t MetricType, payload any) Value {
	switch t {
	case MetricSleep:
		fields, ok := asFields(payload)
		if !ok {
			return GenericValue{Payload: payload}
		}
		// Missing duration degrades to 0 so one corrupt record does not sink
		// the rest of the night-by-night view. "duration" is the legacy
		// field name from older app versions.
		return SleepValue{
			DurationHours:  numberField(fields, "duration_hours", "duration"),
			DeepSleepHours: numberField(fields, "deep_sleep_hours"),
			RemSleepHours:  numberField(fields, "rem_sleep_hours"),
			SleepScore:     numberField(fields, "sleep_score"),
		}
	case MetricActivity:
		if n, ok := asNumber(payload); ok {
			return ActivityValue{Steps: n}
		}
		fields, ok := asFields(payload)
		if !ok || !hasNumberField(fields, "steps") {
			return GenericValue{Payload: payload}
		}
		return ActivityValue{
			Steps:          numberField(fields, "steps"),
			ActiveCalories: numberField(fields, "active_calories"),
			ActiveMinutes:  numberField(fields, "active_minutes"),
		}
	case MetricHeartRate:
		if n, ok := asNumber(payload); ok {
			return HeartRateValue{AverageBPM: n}
		}
		fields, ok := asFields(payload)
		if !ok || !hasNumberField(fields, "average_bpm", "resting_bpm") {
			return GenericValue{Payload: payload}
		}
		return HeartRateValue{
			AverageBPM: numberField(fields, "average_bpm"),
			RestingBPM: numberField(fields, "resting_bpm"),
			HRVMs:      numberField(fields, "hrv_ms"),
		}
	default:
		return GenericValue{Payload: payload}
	}
}

// maxDisplayLen bounds the fallback textual rendering of a raw payload.
const maxDisplayLen = 60

// DisplayValue renders a best-effort, human-readable value for the record.
// Typed values render their primary measurement; everything else prefers a
// small set of conventional field names before falling back to a truncated
// textual dump of the payload.
func (r MetricRecord) DisplayValue() string {
	switch v := r.Value().(type) {
	case SleepValue:
		return fmt.Sprintf("%.1f h", v.DurationHours)
	case ActivityValue:
		return fmt.Sprintf("%.0f steps", v.Steps)
	case HeartRateValue:
		if v.AverageBPM > 0 {
			return fmt.Sprintf("%.0f bpm", v.AverageBPM)
		}
		return fmt.Sprintf("%.0f bpm resting", v.RestingBPM)
	case GenericValue:
		if fields, ok := asFields(v.Payload); ok {
			for _, key := range []string{"value", "score", "count", "average_bpm"} {
				if raw, present := fields[key]; present {
					return fmt.Sprintf("%v", raw)
				}
			}
		}
		if n, ok := asNumber(v.Payload); ok {
			return fmt.Sprintf("%v", n)
		}
		text := fmt.Sprintf("%v", v.Payload)
		if encoded, err := json.Marshal(v.Payload); err == nil {
			text = string(encoded)
		}
		if runes := []rune(text); len(runes) > maxDisplayLen {
			text = string(runes[:maxDisplayLen-1]) + "…"
		}
		return text
	}
	return ""
}

// --- Payload helpers ---

// asFields interprets the payload as a field map. A nil payload counts as an
// empty map so a record with no value still decodes to its zero-valued type.
func asFields(payload any) (map[string]any, bool) {
	if payload == nil {
		return map[string]any{}, true
	}
	fields, ok := payload.(map[string]any)
	return fields, ok
}

// asNumber interprets a bare payload as a number. JSON numbers decode to
// float64; ints show up from values built in-process.
func asNumber(payload any) (float64, bool) {
	switch n := payload.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// numberField returns the first of the named fields that holds a number,
// or 0 when none does.
func numberField(fields map[string]any, names ...string) float64 {
	for _, name := range names {
		if n, ok := asNumber(fields[name]); ok {
			return n
		}
	}
	return 0
}

func hasNumberField(fields map[string]any, names ...string) bool {
	for _, name := range names {
		if _, ok := asNumber(fields[name]); ok {
			return true
		}
	}
	return false
}

// ParseMetricType validates a metric type string from user input.
func ParseMetricType(s string) (MetricType, error) {
	t := MetricType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Known() {
		return "", fmt.Errorf("unknown metric type %q", s)
	}
	return t, nil
}
