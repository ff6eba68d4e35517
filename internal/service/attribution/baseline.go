package attribution

import (
	"context"
	"fmt"
	"time"

	"github.com/funnellens/funnellens/internal/pkg/mathx"
)

// Baseline is the expected growth rate absent any specific content push.
type Baseline struct {
	SubsPerDay          float64 `json:"subs_per_day"`
	RevPerDay           float64 `json:"rev_per_day"`
	SubsPer1kDeltaViews float64 `json:"subs_per_1k_delta_views"`
	DataDays            int     `json:"data_days"`
	TotalFans           int     `json:"total_fans"`
	TotalRevenue        float64 `json:"total_revenue"`
	TotalDeltaViews     int64   `json:"total_delta_views"`
	IsDefault           bool    `json:"is_default"`
}

// Baseline computes growth rates over [baselineEnd - lookbackDays, baselineEnd).
// Callers measuring a window must pass the window start as baselineEnd.
func (s *Service) Baseline(ctx context.Context, creatorID string, baselineEnd time.Time, lookbackDays int) (b Baseline, err error) {
	started := s.now()
	defer func() { s.observe("baseline", started, err) }()
	if err = validateCreator(creatorID); err != nil {
		return Baseline{}, err
	}
	if lookbackDays <= 0 {
		return Baseline{}, fmt.Errorf("%w: lookback days must be positive, got %d", ErrInvalidInput, lookbackDays)
	}
	return s.baseline(ctx, creatorID, baselineEnd, lookbackDays)
}

func (s *Service) baseline(ctx context.Context, creatorID string, end time.Time, days int) (Baseline, error) {
	start := end.AddDate(0, 0, -days)

	fans, err := s.repo.CountFans(ctx, creatorID, start, end)
	if err != nil {
		return Baseline{}, fmt.Errorf("count baseline fans: %w", err)
	}
	revenue, err := s.repo.SumRevenue(ctx, creatorID, start, end)
	if err != nil {
		return Baseline{}, fmt.Errorf("sum baseline revenue: %w", err)
	}
	posts, err := s.repo.ListPosts(ctx, creatorID)
	if err != nil {
		return Baseline{}, fmt.Errorf("list posts: %w", err)
	}
	deltas, err := s.deltasFor(ctx, creatorID, posts, start, end, nil)
	if err != nil {
		return Baseline{}, err
	}
	views := deltas.TotalViews()

	b := Baseline{
		DataDays:        days,
		TotalFans:       fans,
		TotalRevenue:    revenue,
		TotalDeltaViews: views,
	}
	if days < minBaselineDays || fans < MinBaselineFans {
		b.SubsPerDay = DefaultSubsPerDay
		b.RevPerDay = DefaultRevPerDay
		b.SubsPer1kDeltaViews = DefaultSubsPer1kDeltaViews
		b.IsDefault = true
		return b, nil
	}

	viewsK := 1.0
	if views > 0 {
		viewsK = float64(views) / 1000
	}
	b.SubsPerDay = float64(fans) / float64(days)
	b.RevPerDay = revenue / float64(days)
	b.SubsPer1kDeltaViews = mathx.SafeRatio(float64(fans), viewsK)
	return b, nil
}
