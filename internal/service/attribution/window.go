package attribution

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/pkg/mathx"
	"github.com/funnellens/funnellens/internal/service/confidence"
)

// Tier labels how much an attribution claim can be trusted.
type Tier string

const (
	TierConfident        Tier = "confident"
	TierHypothesis       Tier = "hypothesis"
	TierInsufficientData Tier = "insufficient_data"
)

// TierFor maps a confidence result onto the engine's two-way tier.
func TierFor(r confidence.Result) Tier {
	if r.IsConfident() {
		return TierConfident
	}
	return TierHypothesis
}

// BaselineSummary is the presented subset of a Baseline.
type BaselineSummary struct {
	SubsPerDay float64 `json:"subs_per_day"`
	RevPerDay  float64 `json:"rev_per_day"`
	DataDays   int     `json:"data_days"`
	IsDefault  bool    `json:"is_default"`
}

// ContentTypeDelta is the presented subset of a DeltaBucket.
type ContentTypeDelta struct {
	ViewsDelta     int64 `json:"views_delta"`
	PostsWithViews int   `json:"posts_with_views"`
}

// ConfounderSummary describes a confounder overlapping a window.
type ConfounderSummary struct {
	Type        domain.ConfounderType `json:"type"`
	Description string                `json:"description"`
	Impact      domain.ImpactLevel    `json:"impact"`
	Start       time.Time             `json:"start"`
}

// WindowResult is the attribution of one measurement window.
type WindowResult struct {
	CreatorID          string                                  `json:"creator_id"`
	WindowStart        time.Time                               `json:"window_start"`
	WindowEnd          time.Time                               `json:"window_end"`
	WindowHours        float64                                 `json:"window_hours"`
	Baseline           BaselineSummary                         `json:"baseline"`
	ExpectedSubs       float64                                 `json:"expected_subs"`
	ActualSubs         int                                     `json:"actual_subs"`
	SubsLiftPct        float64                                 `json:"subs_lift_pct"`
	ExpectedRevenue    float64                                 `json:"expected_revenue"`
	ActualRevenue      float64                                 `json:"actual_revenue"`
	RevenueLiftPct     float64                                 `json:"revenue_lift_pct"`
	ContentTypeDeltas  map[domain.ContentType]ContentTypeDelta `json:"content_type_deltas"`
	CreditWeights      map[domain.ContentType]float64          `json:"credit_weights"`
	TotalDeltaViews    int64                                   `json:"total_delta_views"`
	Confounders        []ConfounderSummary                     `json:"confounders"`
	Confidence         confidence.Result                       `json:"confidence"`
	RecommendationTier Tier                                    `json:"recommendation_tier"`
}

// HasConfounders reports whether any confounder overlaps the window.
func (r *WindowResult) HasConfounders() bool {
	return len(r.Confounders) > 0
}

// AttributeWindow measures growth in [windowStart, windowEnd) against the
// baseline that ends at windowStart. A non-empty contentType restricts the
// view deltas and credit weights to that type.
func (s *Service) AttributeWindow(ctx context.Context, creatorID string, windowStart, windowEnd time.Time, contentType string) (res *WindowResult, err error) {
	started := s.now()
	defer func() { s.observe("attribute_window", started, err) }()

	if err = validateCreator(creatorID); err != nil {
		return nil, err
	}
	if err = validateRange(windowStart, windowEnd); err != nil {
		return nil, err
	}
	var filter domain.ContentType
	if contentType != "" {
		filter = domain.ContentType(strings.ToLower(strings.TrimSpace(contentType)))
		if !filter.IsValid() {
			return nil, fmt.Errorf("%w: unknown content type %q", ErrInvalidInput, contentType)
		}
	}
	return s.attributeWindow(ctx, creatorID, windowStart, windowEnd, filter)
}

func (s *Service) attributeWindow(ctx context.Context, creatorID string, start, end time.Time, filter domain.ContentType) (*WindowResult, error) {
	baseline, err := s.baseline(ctx, creatorID, start, s.lookback)
	if err != nil {
		return nil, err
	}

	windowHours := end.Sub(start).Hours()
	if windowHours < 1 {
		windowHours = 1
	}
	windowDays := windowHours / 24

	actualSubs, err := s.repo.CountFans(ctx, creatorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("count window fans: %w", err)
	}
	actualRevenue, err := s.repo.SumRevenue(ctx, creatorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("sum window revenue: %w", err)
	}

	expectedSubs := baseline.SubsPerDay * windowDays
	expectedRevenue := baseline.RevPerDay * windowDays

	posts, err := s.repo.ListPosts(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	deltas, err := s.deltasFor(ctx, creatorID, posts, start, end, nil)
	if err != nil {
		return nil, err
	}
	if filter != "" {
		for ct := range deltas {
			if ct != filter {
				delete(deltas, ct)
			}
		}
	}

	totalViews := deltas.TotalViews()
	weights := make(map[domain.ContentType]float64, len(deltas))
	ctDeltas := make(map[domain.ContentType]ContentTypeDelta, len(deltas))
	for ct, b := range deltas {
		ctDeltas[ct] = ContentTypeDelta{ViewsDelta: b.ViewsDelta, PostsWithViews: b.PostsWithViews}
		if totalViews > 0 {
			weights[ct] = mathx.Round(float64(b.ViewsDelta)/float64(totalViews), 3)
		}
	}

	confounders, err := s.confounders(ctx, creatorID, start, end)
	if err != nil {
		return nil, err
	}

	conf := confidence.Score(confidence.Input{
		Actual:           actualSubs,
		Expected:         expectedSubs,
		WindowHours:      windowHours,
		HasConfounders:   len(confounders) > 0,
		BaselineDataDays: baseline.DataDays,
	})

	return &WindowResult{
		CreatorID:   creatorID,
		WindowStart: start,
		WindowEnd:   end,
		WindowHours: mathx.Round(windowHours, 1),
		Baseline: BaselineSummary{
			SubsPerDay: mathx.Round(baseline.SubsPerDay, 2),
			RevPerDay:  mathx.Round(baseline.RevPerDay, 2),
			DataDays:   baseline.DataDays,
			IsDefault:  baseline.IsDefault,
		},
		ExpectedSubs:       mathx.Round(expectedSubs, 1),
		ActualSubs:         actualSubs,
		SubsLiftPct:        mathx.Round(mathx.LiftPct(float64(actualSubs), expectedSubs), 1),
		ExpectedRevenue:    mathx.Round(expectedRevenue, 2),
		ActualRevenue:      mathx.Round(actualRevenue, 2),
		RevenueLiftPct:     mathx.Round(mathx.LiftPct(actualRevenue, expectedRevenue), 1),
		ContentTypeDeltas:  ctDeltas,
		CreditWeights:      weights,
		TotalDeltaViews:    totalViews,
		Confounders:        confounders,
		Confidence:         conf,
		RecommendationTier: TierFor(conf),
	}, nil
}

func (s *Service) confounders(ctx context.Context, creatorID string, start, end time.Time) ([]ConfounderSummary, error) {
	events, err := s.repo.ListConfounders(ctx, creatorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list confounders: %w", err)
	}
	out := make([]ConfounderSummary, 0, len(events))
	for _, e := range events {
		if !e.Overlaps(start, end) {
			continue
		}
		out = append(out, ConfounderSummary{
			Type:        e.EventType,
			Description: e.Description,
			Impact:      e.EstimatedImpact,
			Start:       e.EventStart,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
