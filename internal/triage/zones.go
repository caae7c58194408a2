package triage

import "time"

// Zone deadline thresholds, measured from now.
const (
	statRiskThreshold = 0.8
	todayHorizon      = 24 * time.Hour
	thisWeekHorizon   = 72 * time.Hour
)

// ZoneFor computes the priority zone for a risk score and optional deadline.
// Risk dominates: anything at or above 0.8 is STAT regardless of deadline.
// Without a deadline the vector falls to LATER. Pure; recomputed on every
// read rather than cached on the entity.
func ZoneFor(riskScore float64, deadline *time.Time, now time.Time) Zone {
	if riskScore >= statRiskThreshold {
		return ZoneStat
	}
	if deadline == nil {
		return ZoneLater
	}
	until := deadline.Sub(now)
	switch {
	case until <= todayHorizon:
		return ZoneToday
	case until <= thisWeekHorizon:
		return ZoneThisWeek
	default:
		return ZoneLater
	}
}

// VectorZone computes the zone for a state vector.
func VectorZone(v *StateVector, now time.Time) Zone {
	return ZoneFor(v.RiskScore, v.DeadlineAt, now)
}
