package mockapi

import "vitalink/health-client/internal/domain"

func intPtr(n int) *int { return &n }

// templateCatalog is the mock's built-in protocol catalog, a subset of the
// production one. IDs are the catalog slugs clients enroll against.
var templateCatalog = []domain.ProtocolTemplate{
	{
		ID:            "sleep_optimization",
		Name:          "Sleep Optimization",
		Description:   "Improve sleep quality and consistency over three weeks.",
		Category:      "sleep",
		TargetMetrics: []string{"sleep"},
		DurationType:  domain.DurationFixed,
		DurationDays:  intPtr(21),
		Steps: []string{
			"Set a fixed wake-up time, including weekends",
			"No screens in the last hour before bed",
			"Keep the bedroom below 19°C",
		},
		Recommendations: []string{
			"Avoid caffeine after 14:00",
			"Get daylight exposure within an hour of waking",
		},
		ExpectedOutcomes: []string{
			"Higher sleep score",
			"More deep sleep hours",
		},
	},
	{
		ID:            "activity_building",
		Name:          "Activity Building",
		Description:   "Build a daily movement habit from a low baseline.",
		Category:      "activity",
		TargetMetrics: []string{"activity", "calories"},
		DurationType:  domain.DurationFixed,
		DurationDays:  intPtr(30),
		Steps: []string{
			"Walk at least 6,000 steps daily in week one",
			"Add 1,000 steps to the daily target each week",
		},
		Recommendations: []string{
			"Schedule walks at the same time each day",
		},
		ExpectedOutcomes: []string{
			"Consistent 9,000+ step days",
		},
	},
	{
		ID:            "hrv_improvement",
		Name:          "HRV Improvement",
		Description:   "Raise heart-rate variability through recovery practices.",
		Category:      "heart_rate",
		TargetMetrics: []string{"heart_rate", "sleep"},
		DurationType:  domain.DurationFixed,
		DurationDays:  intPtr(28),
		Steps: []string{
			"Five minutes of slow breathing twice a day",
			"No alcohol on weeknights",
		},
		Recommendations: []string{
			"Track morning HRV before getting out of bed",
		},
		ExpectedOutcomes: []string{
			"Higher average HRV",
			"Lower resting heart rate",
		},
	},
	{
		ID:            "mindful_logging",
		Name:          "Mindful Logging",
		Description:   "An open-ended practice of logging mood and daily events.",
		Category:      "mood",
		TargetMetrics: []string{"mood", "event"},
		DurationType:  domain.DurationOngoing,
		Steps: []string{
			"Log your mood once a day",
			"Note one significant event per day",
		},
	},
}

func findTemplate(id string) *domain.ProtocolTemplate {
	for i := range templateCatalog {
		if templateCatalog[i].ID == id {
			return &templateCatalog[i]
		}
	}
	return nil
}
