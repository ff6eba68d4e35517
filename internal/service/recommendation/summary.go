package recommendation

import (
	"sort"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/service/attribution"
)

// QuickActions lists content types by recommended action.
type QuickActions struct {
	Increase []domain.ContentType `json:"increase"`
	Decrease []domain.ContentType `json:"decrease"`
	Test     []domain.ContentType `json:"test"`
}

// QuickSummary is the dashboard view of a report.
type QuickSummary struct {
	CreatorID         string              `json:"creator_id"`
	PeriodDays        int                 `json:"period_days"`
	HasConfounders    bool                `json:"has_confounders"`
	TopPerformer      *domain.ContentType `json:"top_performer"`
	Actions           QuickActions        `json:"actions"`
	DataQualityIssues int                 `json:"data_quality_issues"`
}

// Quick extracts the actionable items of a report.
func Quick(r *Report) QuickSummary {
	q := QuickSummary{
		CreatorID:         r.CreatorID,
		PeriodDays:        r.PeriodDays,
		HasConfounders:    r.HasConfounders,
		TopPerformer:      r.TopPerformer,
		DataQualityIssues: len(r.DataQualityNotes),
		Actions: QuickActions{
			Increase: []domain.ContentType{},
			Decrease: []domain.ContentType{},
			Test:     []domain.ContentType{},
		},
	}
	for _, rec := range r.Recommendations {
		switch rec.Action {
		case ActionIncrease:
			q.Actions.Increase = append(q.Actions.Increase, rec.ContentType)
		case ActionDecrease:
			q.Actions.Decrease = append(q.Actions.Decrease, rec.ContentType)
		case ActionTest:
			q.Actions.Test = append(q.Actions.Test, rec.ContentType)
		}
	}
	return q
}

// Ranking is one content type's place in a lift-ordered list.
type Ranking struct {
	Rank            int                `json:"rank"`
	ContentType     domain.ContentType `json:"content_type"`
	LiftPct         float64            `json:"lift_pct"`
	Tier            attribution.Tier   `json:"tier"`
	ConfidenceScore float64            `json:"confidence_score"`
	PostsAnalyzed   int                `json:"posts_analyzed"`
}

// Rankings wraps the ranked list with its period context.
type Rankings struct {
	CreatorID      string    `json:"creator_id"`
	PeriodDays     int       `json:"period_days"`
	HasConfounders bool      `json:"has_confounders"`
	Rankings       []Ranking `json:"rankings"`
}

// Rank orders content types by lift, best first, using the engine's own
// per-type tier.
func Rank(perf *attribution.Performance) Rankings {
	out := make([]Ranking, 0, len(perf.ContentTypes))
	for ct, m := range perf.ContentTypes {
		out = append(out, Ranking{
			ContentType:     ct,
			LiftPct:         m.LiftPct,
			Tier:            m.Tier,
			ConfidenceScore: m.Confidence.Score,
			PostsAnalyzed:   m.PostsWithViews,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LiftPct != out[j].LiftPct {
			return out[i].LiftPct > out[j].LiftPct
		}
		return out[i].ContentType < out[j].ContentType
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return Rankings{
		CreatorID:      perf.CreatorID,
		PeriodDays:     perf.PeriodDays,
		HasConfounders: perf.HasConfounders,
		Rankings:       out,
	}
}
