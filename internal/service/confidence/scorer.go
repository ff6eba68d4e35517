package confidence

import (
	"fmt"
	"math"
)

// Thresholds shared with the recommendation layer.
const (
	MinSubsForRecommendation = 10
	MinSubsForConfident      = 25
	MinBaselineDays          = 7

	// FullBaselineDays is the baseline span that earns a small bonus.
	FullBaselineDays = 14

	// ConfidentScore is the lowest score that counts as the confident tier.
	ConfidentScore = 0.70

	minScore = 0.1
	maxScore = 0.95
)

// Level is the qualitative bucket of a score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Input carries everything the scorer looks at.
type Input struct {
	Actual           int
	Expected         float64
	WindowHours      float64
	HasConfounders   bool
	BaselineDataDays int
}

// Result is a scored attribution claim.
type Result struct {
	// Score is in [0, 1], already rounded to two decimals.
	Score        float64  `json:"score"`
	Level        Level    `json:"level"`
	Reasons      []string `json:"reasons"`
	MinEventsMet bool     `json:"min_events_met"`
}

// IsConfident reports whether the score reaches the confident tier.
func (r Result) IsConfident() bool {
	return r.Score >= ConfidentScore
}

// Score evaluates an attribution claim. The returned score is clamped and
// rounded to two decimals before the level is assigned, so level and tier
// decisions always agree with the reported number.
func Score(in Input) Result {
	reasons := []string{}
	score := 0.5
	var minEventsMet bool

	switch {
	case in.Actual < MinSubsForRecommendation:
		reasons = append(reasons, fmt.Sprintf("Low sample: only %d subs (need %d+)", in.Actual, MinSubsForRecommendation))
		score -= 0.30
	case in.Actual < MinSubsForConfident:
		reasons = append(reasons, fmt.Sprintf("Moderate sample: %d subs", in.Actual))
		minEventsMet = true
	default:
		reasons = append(reasons, fmt.Sprintf("Good sample: %d subs", in.Actual))
		score += 0.15
		minEventsMet = true
	}

	if in.Expected > 0 && in.Actual >= 5 {
		p := PoissonTest(in.Actual, in.Expected)
		switch {
		case p < 0.05:
			reasons = append(reasons, "Lift is statistically significant (p < 0.05)")
			score += 0.20
		case p < 0.10:
			reasons = append(reasons, "Lift is marginally significant (p < 0.10)")
			score += 0.10
		default:
			reasons = append(reasons, fmt.Sprintf("Lift not significant (p = %.2f)", p))
			score -= 0.10
		}
	}

	if in.BaselineDataDays < MinBaselineDays {
		reasons = append(reasons, fmt.Sprintf("Limited baseline: %d days (prefer %d+)", in.BaselineDataDays, MinBaselineDays))
		score -= 0.15
	} else if in.BaselineDataDays >= FullBaselineDays {
		score += 0.05
	}

	if in.HasConfounders {
		reasons = append(reasons, "Confounder event(s) overlap with window")
		score -= 0.20
	}

	if in.WindowHours < 24 {
		reasons = append(reasons, "Short window (<24h) increases noise")
		score -= 0.10
	}

	score = math.Round(math.Max(minScore, math.Min(maxScore, score))*100) / 100

	return Result{
		Score:        score,
		Level:        levelFor(score),
		Reasons:      reasons,
		MinEventsMet: minEventsMet,
	}
}

func levelFor(score float64) Level {
	switch {
	case score >= 0.7:
		return LevelHigh
	case score >= 0.4:
		return LevelMedium
	default:
		return LevelLow
	}
}
