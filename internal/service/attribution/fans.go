package attribution

import (
	"context"
	"fmt"
	"time"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/pkg/logger"
)

// FanAttributionStats counts the outcome of one attribution pass.
type FanAttributionStats struct {
	ReferralLink   int `json:"referral_link"`
	WeightedWindow int `json:"weighted_window"`
	NoData         int `json:"no_data"`
}

// AttributeFans assigns a primary content type to every unattributed fan of
// the creator, splitting credit by view share over the windowHours before
// acquisition. All assignments are persisted in one repository call, so a
// store failure leaves every fan untouched. Fans attributed by an earlier
// pass are never revisited.
func (s *Service) AttributeFans(ctx context.Context, creatorID string, windowHours int) (stats FanAttributionStats, err error) {
	started := s.now()
	defer func() { s.observe("attribute_fans", started, err) }()

	if err = validateCreator(creatorID); err != nil {
		return stats, err
	}
	if windowHours <= 0 {
		windowHours = DefaultFanWindowHours
	}

	fans, err := s.repo.ListUnattributedFans(ctx, creatorID)
	if err != nil {
		return stats, fmt.Errorf("list unattributed fans: %w", err)
	}
	if len(fans) == 0 {
		return stats, nil
	}
	posts, err := s.repo.ListPosts(ctx, creatorID)
	if err != nil {
		return stats, fmt.Errorf("list posts: %w", err)
	}

	lookback := time.Duration(windowHours) * time.Hour
	cache := snapshotCache{}
	updates := make([]FanAttribution, 0, len(fans))
	for _, f := range fans {
		if f.IsAttributed() {
			continue
		}
		deltas, err := s.deltasFor(ctx, creatorID, posts, f.AcquiredAt.Add(-lookback), f.AcquiredAt, cache)
		if err != nil {
			return FanAttributionStats{}, err
		}
		a, ok := weightedAttribution(f.ID, deltas)
		if !ok {
			stats.NoData++
			continue
		}
		updates = append(updates, a)
	}

	if len(updates) > 0 {
		n, err := s.repo.SaveFanAttributions(ctx, creatorID, updates)
		if err != nil {
			return FanAttributionStats{}, fmt.Errorf("save fan attributions: %w", err)
		}
		stats.WeightedWindow = n
	}

	s.recorder.FansAttributed(string(domain.AttributionWeightedWindow), stats.WeightedWindow)
	logger.Info("fan attribution pass complete",
		"creator_id", creatorID,
		"window_hours", windowHours,
		"scanned", len(fans),
		"weighted_window", stats.WeightedWindow,
		"no_data", stats.NoData,
	)
	return stats, nil
}

// weightedAttribution splits credit among content types with positive views.
// The primary type is the largest share; equal shares resolve to the
// lexicographically smallest type.
func weightedAttribution(fanID string, deltas Deltas) (FanAttribution, bool) {
	total := deltas.TotalViews()
	if total <= 0 {
		return FanAttribution{}, false
	}

	weights := make(map[domain.ContentType]float64, len(deltas))
	var primary domain.ContentType
	var maxWeight float64
	for ct, b := range deltas {
		if b.ViewsDelta <= 0 {
			continue
		}
		w := float64(b.ViewsDelta) / float64(total)
		weights[ct] = w
		if primary == "" || w > maxWeight || (w == maxWeight && ct < primary) {
			primary = ct
			maxWeight = w
		}
	}
	if len(weights) == 0 {
		return FanAttribution{}, false
	}

	return FanAttribution{
		FanID:       fanID,
		ContentType: primary,
		Method:      domain.AttributionWeightedWindow,
		Confidence:  0.3 + 0.5*maxWeight,
		Weights:     weights,
	}, true
}
