package services

import (
	"math"

	"github.com/crowdgauge/crowdgauge/models"
)

// Operator status tiers, evaluated high to low.
const (
	StatusNormal   = "Normal"
	StatusWarning  = "Warning"
	StatusCritical = "Critical"
)

// Public directory crowd levels.
const (
	LevelLow      = "Low Traffic"
	LevelModerate = "Moderate"
	LevelHigh     = "High Traffic"
)

// SiteStats is the operator dashboard summary, recomputed from stored
// counters on every read so displayed and stored values can never drift.
type SiteStats struct {
	OccupancyPct int    `json:"occupancy_pct"`
	Growth       int    `json:"growth"`
	Status       string `json:"status"`
	Message      string `json:"message"`
}

// EvaluateStatus derives occupancy, day-over-day growth and the risk banner
// from a counter state. MaxCapacity is enforced positive at site creation; a
// violated invariant is reported rather than dividing by zero.
func EvaluateStatus(state models.CounterState, maxCapacity int) (SiteStats, error) {
	if maxCapacity <= 0 {
		return SiteStats{}, ErrInvalidCapacity
	}

	stats := SiteStats{
		OccupancyPct: roundPct(state.CurrentCount, maxCapacity),
		Growth:       GrowthPercent(state.TodayVisits, state.YesterdayVisits),
	}

	switch {
	case stats.OccupancyPct > 90:
		stats.Status, stats.Message = StatusCritical, "Capacity exceeded. Stop entry."
	case stats.OccupancyPct > 80:
		stats.Status, stats.Message = StatusWarning, "Crowd density high."
	default:
		stats.Status, stats.Message = StatusNormal, "Sensors active. No anomalies."
	}
	return stats, nil
}

// GrowthPercent implements the day-over-day visit rule: any visits after a
// zero-visit day count as exactly +100%, not infinity. This asymmetry is a
// product decision, not a formula to be cleaned up.
func GrowthPercent(today, yesterday int) int {
	switch {
	case yesterday > 0:
		return int(math.Round(100 * float64(today-yesterday) / float64(yesterday)))
	case today > 0:
		return 100
	default:
		return 0
	}
}

// CrowdLevel is the customer-facing traffic light shown in the public
// directory. Its 50/80 thresholds are intentionally different from the
// operator banner's 80/90; the two serve different audiences.
func CrowdLevel(currentCount, maxCapacity int) string {
	if maxCapacity <= 0 {
		return LevelLow
	}
	switch occ := roundPct(currentCount, maxCapacity); {
	case occ > 80:
		return LevelHigh
	case occ > 50:
		return LevelModerate
	default:
		return LevelLow
	}
}

func roundPct(part, whole int) int {
	return int(math.Round(100 * float64(part) / float64(whole)))
}
