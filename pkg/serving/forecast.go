package serving

import (
	"math"

	"github.com/synaptica-ai/hospital-insights/pkg/warehouse"
)

// Historical fallbacks when a department has no recorded visits.
const (
	defaultAvgWait = 30.0
	defaultMinWait = 10.0
	defaultMaxWait = 60.0
)

type WaitRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type ForecastFactors struct {
	Hour       int  `json:"hour"`
	DayOfWeek  int  `json:"day_of_week"`
	IsPeakTime bool `json:"is_peak_time"`
	IsWeekend  bool `json:"is_weekend"`
}

// HistoricalForecast scales the department's historical mean by time of day
// and weekend factors.
type HistoricalForecast struct {
	PredictedMinutes float64         `json:"predicted_wait_time_minutes"`
	HistoricalAvg    float64         `json:"historical_avg"`
	HistoricalRange  WaitRange       `json:"historical_range"`
	HasHistory       bool            `json:"has_history"`
	Factors          ForecastFactors `json:"factors"`
}

func Forecast(stats warehouse.WaitStats, found bool, hour, weekday int) HistoricalForecast {
	avg, lo, hi := defaultAvgWait, defaultMinWait, defaultMaxWait
	if found {
		avg, lo, hi = stats.Avg, stats.Min, stats.Max
	}

	timeFactor := 1.0
	switch {
	case hour >= 8 && hour <= 12:
		timeFactor = 1.2
	case hour >= 17 && hour <= 20:
		timeFactor = 1.3
	}
	weekend := weekday == 5 || weekday == 6
	weekendFactor := 1.0
	if weekend {
		weekendFactor = 0.9
	}

	return HistoricalForecast{
		PredictedMinutes: round1(avg * timeFactor * weekendFactor),
		HistoricalAvg:    round1(avg),
		HistoricalRange:  WaitRange{Min: round1(lo), Max: round1(hi)},
		HasHistory:       found,
		Factors: ForecastFactors{
			Hour:       hour,
			DayOfWeek:  weekday,
			IsPeakTime: timeFactor > 1,
			IsWeekend:  weekend,
		},
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
