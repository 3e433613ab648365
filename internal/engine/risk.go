package engine

import "math"

// Risk scoring policy. A rating point is worth RatingWeight score points and
// critical tasks get CriticalBoost on top; the sum is clamped to 0-100.
const (
	RatingWeight  = 20.0
	CriticalBoost = 15.0

	// Band cutoffs: score < MediumThreshold is Low, score < HighThreshold is
	// Medium, anything else is High.
	MediumThreshold = 33.0
	HighThreshold   = 66.0

	// HighRiskShare is the fraction of High tasks that makes the whole
	// project High even when no critical task is High.
	HighRiskShare = 0.25
)

// RiskScore combines a user rating with criticality
func RiskScore(rating int, critical bool) float64 {
	score := float64(rating) * RatingWeight
	if critical {
		score += CriticalBoost
	}
	return math.Min(100, math.Max(0, score))
}

// LevelForScore maps a 0-100 score onto its band
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= HighThreshold:
		return RiskLevelHigh
	case score >= MediumThreshold:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// ClassifyRisk fills RiskScore and RiskLevel on every task and computes the
// project aggregates. IsCritical must already be set.
func ClassifyRisk(result *ProjectResult) {
	var (
		high         int
		overall      = RiskLevelLow
		criticalHigh bool
	)

	for i := range result.Tasks {
		t := &result.Tasks[i]
		t.RiskScore = RiskScore(t.UserRiskRating, t.IsCritical)
		t.RiskLevel = LevelForScore(t.RiskScore)

		if t.RiskLevel == RiskLevelHigh {
			high++
			if t.IsCritical {
				criticalHigh = true
			}
		}
		if t.RiskLevel.rank() > overall.rank() {
			overall = t.RiskLevel
		}
	}

	result.HighRiskTaskCount = high
	result.OverallRiskLevel = OverallRiskLevel(len(result.Tasks), high, criticalHigh, overall)
}

// OverallRiskLevel aggregates task levels. highest is the highest level
// present among all tasks.
func OverallRiskLevel(total, high int, criticalHigh bool, highest RiskLevel) RiskLevel {
	if total == 0 {
		return RiskLevelLow
	}
	if criticalHigh || (high > 0 && float64(high) >= HighRiskShare*float64(total)) {
		return RiskLevelHigh
	}
	if highest.rank() >= RiskLevelMedium.rank() {
		return RiskLevelMedium
	}
	return RiskLevelLow
}
