package recommendation

import (
	"fmt"
	"sort"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/pkg/mathx"
	"github.com/funnellens/funnellens/internal/service/attribution"
	"github.com/funnellens/funnellens/internal/service/confidence"
)

// Thresholds and cadence bounds.
const (
	MinLiftForIncrease          = 20.0
	MinLiftForConfidentIncrease = 50.0
	DecreaseThreshold           = -10.0
	MinPostsForAnalysis         = 3

	DefaultPostsPerWeek = 7
	MaxPostsPerWeek     = 21
	MinPostsPerWeek     = 3

	// severeDecreaseLift halves cadence instead of trimming it by a quarter.
	severeDecreaseLift = -30.0
	// weeksPerPeriod converts a period's post count into a weekly cadence.
	weeksPerPeriod = 4
)

// Action is what the creator should do with a content type.
type Action string

const (
	ActionIncrease Action = "increase"
	ActionMaintain Action = "maintain"
	ActionDecrease Action = "decrease"
	ActionTest     Action = "test"
)

// Recommendation is the advice for one content type.
type Recommendation struct {
	ContentType           domain.ContentType `json:"content_type"`
	Action                Action             `json:"action"`
	Tier                  attribution.Tier   `json:"tier"`
	LiftPct               float64            `json:"lift_pct"`
	ConfidenceScore       float64            `json:"confidence_score"`
	CurrentPostsPerWeek   float64            `json:"current_posts_per_week"`
	SuggestedPostsPerWeek float64            `json:"suggested_posts_per_week"`
	Reasoning             string             `json:"reasoning"`
	Caveats               []string           `json:"caveats"`
}

// WeeklyPlan is a suggested posting mix. An empty breakdown means the plan
// was withheld.
type WeeklyPlan struct {
	TotalPosts int                        `json:"total_posts"`
	Breakdown  map[domain.ContentType]int `json:"breakdown"`
	Rationale  string                     `json:"rationale"`
}

// Report is the complete advice for a creator over one period.
type Report struct {
	CreatorID         string              `json:"creator_id"`
	PeriodDays        int                 `json:"period_days"`
	TotalSubs         int                 `json:"total_subs"`
	TotalRevenue      float64             `json:"total_revenue"`
	HasConfounders    bool                `json:"has_confounders"`
	ConfounderWarning *string             `json:"confounder_warning"`
	Recommendations   []Recommendation    `json:"recommendations"`
	WeeklyPlan        *WeeklyPlan         `json:"weekly_plan"`
	TopPerformer      *domain.ContentType `json:"top_performer"`
	Underperformer    *domain.ContentType `json:"underperformer"`
	DataQualityNotes  []string            `json:"data_quality_notes"`
}

// Generate builds a report from a performance breakdown. window is optional
// and supplies the period's revenue; when nil the breakdown's own window is
// used if it carries one.
func Generate(creatorID string, perf *attribution.Performance, window *attribution.WindowResult) *Report {
	if window == nil {
		window = perf.Window
	}

	recs := make([]Recommendation, 0, len(perf.ContentTypes))
	for ct, m := range perf.ContentTypes {
		recs = append(recs, analyze(ct, m, perf.HasConfounders))
	}
	sort.Slice(recs, func(i, j int) bool {
		ci, cj := recs[i].Tier == attribution.TierConfident, recs[j].Tier == attribution.TierConfident
		if ci != cj {
			return ci
		}
		if recs[i].LiftPct != recs[j].LiftPct {
			return recs[i].LiftPct > recs[j].LiftPct
		}
		return recs[i].ContentType < recs[j].ContentType
	})

	report := &Report{
		CreatorID:       creatorID,
		PeriodDays:      perf.PeriodDays,
		TotalSubs:       perf.TotalSubs,
		HasConfounders:  perf.HasConfounders,
		Recommendations: recs,
	}
	if window != nil {
		report.TotalRevenue = window.ActualRevenue
	}
	if perf.HasConfounders {
		w := confounderWarning(perf.Confounders)
		report.ConfounderWarning = &w
	}

	for _, r := range recs {
		if r.Tier != attribution.TierConfident {
			continue
		}
		if report.TopPerformer == nil {
			ct := r.ContentType
			report.TopPerformer = &ct
		}
		if r.Action == ActionDecrease && report.Underperformer == nil {
			ct := r.ContentType
			report.Underperformer = &ct
		}
	}

	report.WeeklyPlan = weeklyPlan(recs, perf.HasConfounders)
	report.DataQualityNotes = dataQualityNotes(perf, recs)
	return report
}

func analyze(ct domain.ContentType, m attribution.ContentTypeMetrics, hasConfounders bool) Recommendation {
	score := m.Confidence.Score
	posts := m.PostsWithViews

	var tier attribution.Tier
	switch {
	case score >= confidence.ConfidentScore && !hasConfounders:
		tier = attribution.TierConfident
	case posts < MinPostsForAnalysis:
		tier = attribution.TierInsufficientData
	default:
		tier = attribution.TierHypothesis
	}

	action, reasoning := decide(m.LiftPct, tier, hasConfounders)
	current := float64(posts) / weeksPerPeriod

	return Recommendation{
		ContentType:           ct,
		Action:                action,
		Tier:                  tier,
		LiftPct:               m.LiftPct,
		ConfidenceScore:       score,
		CurrentPostsPerWeek:   mathx.Round(current, 1),
		SuggestedPostsPerWeek: suggestedCadence(action, current, m.LiftPct),
		Reasoning:             reasoning,
		Caveats:               caveats(m, hasConfounders, tier),
	}
}

func decide(lift float64, tier attribution.Tier, hasConfounders bool) (Action, string) {
	if tier == attribution.TierInsufficientData {
		return ActionTest, "Not enough posts to analyze. Run a test by posting more of this content type."
	}

	if tier == attribution.TierConfident {
		switch {
		case lift >= MinLiftForConfidentIncrease:
			return ActionIncrease, fmt.Sprintf("Strong performer with %.0f%% lift. Confidently recommend increasing.", lift)
		case lift >= MinLiftForIncrease:
			return ActionIncrease, fmt.Sprintf("Positive lift of %.0f%%. Recommend modest increase.", lift)
		case lift <= DecreaseThreshold:
			return ActionDecrease, fmt.Sprintf("Negative lift of %.0f%%. Consider reallocating effort to better performers.", lift)
		default:
			return ActionMaintain, fmt.Sprintf("Neutral performance (%.0f%% lift). Maintain current frequency.", lift)
		}
	}

	switch {
	case hasConfounders:
		return ActionTest, fmt.Sprintf("Shows %.0f%% lift but confounders detected. Retest in a clean window.", lift)
	case lift >= MinLiftForIncrease:
		return ActionTest, fmt.Sprintf("Promising %.0f%% lift but needs more data. Worth testing further.", lift)
	case lift <= DecreaseThreshold:
		return ActionTest, fmt.Sprintf("Showing %.0f%% lift. May underperform but needs more data to confirm.", lift)
	default:
		return ActionMaintain, fmt.Sprintf("Inconclusive results (%.0f%% lift). Maintain while gathering more data.", lift)
	}
}

func suggestedCadence(action Action, current, lift float64) float64 {
	switch action {
	case ActionTest:
		return max(MinPostsForAnalysis, current)
	case ActionIncrease:
		multiplier := 1.25
		if lift >= MinLiftForConfidentIncrease {
			multiplier = 1.5
		}
		return min(mathx.Round(current*multiplier, 0), MaxPostsPerWeek)
	case ActionDecrease:
		multiplier := 0.75
		if lift < severeDecreaseLift {
			multiplier = 0.5
		}
		return max(mathx.Round(current*multiplier, 0), 1)
	default:
		if r := mathx.Round(current, 0); r != 0 {
			return r
		}
		return 2
	}
}

func caveats(m attribution.ContentTypeMetrics, hasConfounders bool, tier attribution.Tier) []string {
	out := []string{}
	if hasConfounders {
		out = append(out, "⚠️ Confounders detected - results may be skewed")
	}
	if tier == attribution.TierHypothesis {
		out = append(out, "📊 Hypothesis only - needs more data to confirm")
	}
	if !m.Confidence.MinEventsMet {
		out = append(out, "📉 Small sample size - confidence is limited")
	}
	if m.PostsWithViews < 5 {
		out = append(out, fmt.Sprintf("Only %d posts analyzed", m.PostsWithViews))
	}
	return out
}
