package attribution

import (
	"context"
	"fmt"
	"time"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/pkg/mathx"
	"github.com/funnellens/funnellens/internal/service/confidence"
)

// ContentTypeMetrics is one content type's share of a performance period.
type ContentTypeMetrics struct {
	ViewsDelta     int64             `json:"views_delta"`
	PostsWithViews int               `json:"posts_with_views"`
	AttributedSubs int               `json:"attributed_subs"`
	SubsPer1kViews float64           `json:"subs_per_1k_views"`
	LiftPct        float64           `json:"lift_pct"`
	CreditWeight   float64           `json:"credit_weight"`
	Confidence     confidence.Result `json:"confidence"`
	Tier           Tier              `json:"tier"`
}

// Performance breaks a trailing period down by content type.
type Performance struct {
	CreatorID      string                                    `json:"creator_id"`
	PeriodDays     int                                       `json:"period_days"`
	WindowStart    time.Time                                 `json:"window_start"`
	WindowEnd      time.Time                                 `json:"window_end"`
	TotalSubs      int                                       `json:"total_subs"`
	TotalViews     int64                                     `json:"total_views"`
	HasConfounders bool                                      `json:"has_confounders"`
	Confounders    []ConfounderSummary                       `json:"confounders"`
	ContentTypes   map[domain.ContentType]ContentTypeMetrics `json:"content_types"`

	// Window is the overall attribution the breakdown was derived from.
	Window *WindowResult `json:"-"`
}

// ContentTypePerformance compares each content type's attributed fans with
// what the period baseline predicts for its views, over [now-days, now).
func (s *Service) ContentTypePerformance(ctx context.Context, creatorID string, days int) (res *Performance, err error) {
	started := s.now()
	defer func() { s.observe("content_type_performance", started, err) }()

	if err = validateCreator(creatorID); err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive, got %d", ErrInvalidInput, days)
	}

	end := s.now()
	start := end.AddDate(0, 0, -days)

	overall, err := s.attributeWindow(ctx, creatorID, start, end, "")
	if err != nil {
		return nil, err
	}
	fansByType, err := s.repo.CountFansByContentType(ctx, creatorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("count fans by content type: %w", err)
	}

	totalViewsK := 1.0
	if overall.TotalDeltaViews > 0 {
		totalViewsK = float64(overall.TotalDeltaViews) / 1000
	}
	baselinePer1k := overall.Baseline.SubsPerDay * float64(days) / totalViewsK

	metrics := make(map[domain.ContentType]ContentTypeMetrics, len(overall.ContentTypeDeltas))
	for ct, d := range overall.ContentTypeDeltas {
		viewsK := float64(d.ViewsDelta) / 1000
		attributed := fansByType[ct]
		per1k := mathx.SafeRatio(float64(attributed), viewsK)

		conf := confidence.Score(confidence.Input{
			Actual:           attributed,
			Expected:         baselinePer1k * viewsK,
			WindowHours:      float64(days * 24),
			HasConfounders:   overall.HasConfounders(),
			BaselineDataDays: overall.Baseline.DataDays,
		})

		metrics[ct] = ContentTypeMetrics{
			ViewsDelta:     d.ViewsDelta,
			PostsWithViews: d.PostsWithViews,
			AttributedSubs: attributed,
			SubsPer1kViews: mathx.Round(per1k, 2),
			LiftPct:        mathx.Round(mathx.LiftPct(per1k, baselinePer1k), 1),
			CreditWeight:   overall.CreditWeights[ct],
			Confidence:     conf,
			Tier:           TierFor(conf),
		}
	}

	return &Performance{
		CreatorID:      creatorID,
		PeriodDays:     days,
		WindowStart:    start,
		WindowEnd:      end,
		TotalSubs:      overall.ActualSubs,
		TotalViews:     overall.TotalDeltaViews,
		HasConfounders: overall.HasConfounders(),
		Confounders:    overall.Confounders,
		ContentTypes:   metrics,
		Window:         overall,
	}, nil
}
