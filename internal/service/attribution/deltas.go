package attribution

import (
	"context"
	"fmt"
	"time"

	"github.com/funnellens/funnellens/internal/domain"
)

// DeltaBucket aggregates snapshot deltas of every post of one content type.
type DeltaBucket struct {
	ViewsDelta     int64    `json:"views_delta"`
	LikesDelta     int64    `json:"likes_delta"`
	CommentsDelta  int64    `json:"comments_delta"`
	SharesDelta    int64    `json:"shares_delta"`
	SavesDelta     int64    `json:"saves_delta"`
	PostsWithViews int      `json:"posts_with_views"`
	PostIDs        []string `json:"post_ids"`
}

// Deltas maps content types to their buckets. Types with no post that had a
// snapshot at or before the period end are absent.
type Deltas map[domain.ContentType]DeltaBucket

// TotalViews sums views deltas across all buckets.
func (d Deltas) TotalViews() int64 {
	var total int64
	for _, b := range d {
		total += b.ViewsDelta
	}
	return total
}

// DeltasByContentType computes per-content-type activity between two
// instants from the snapshot history.
func (s *Service) DeltasByContentType(ctx context.Context, creatorID string, periodStart, periodEnd time.Time) (Deltas, error) {
	if err := validateCreator(creatorID); err != nil {
		return nil, err
	}
	if err := validateRange(periodStart, periodEnd); err != nil {
		return nil, err
	}
	posts, err := s.repo.ListPosts(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return s.deltasFor(ctx, creatorID, posts, periodStart, periodEnd, nil)
}

// snapshotCache memoizes LatestSnapshots lookups within one operation.
type snapshotCache map[time.Time]map[string]domain.Snapshot

func (s *Service) latestAt(ctx context.Context, creatorID string, at time.Time, cache snapshotCache) (map[string]domain.Snapshot, error) {
	if cache != nil {
		if snaps, ok := cache[at]; ok {
			return snaps, nil
		}
	}
	snaps, err := s.repo.LatestSnapshots(ctx, creatorID, at)
	if err != nil {
		return nil, fmt.Errorf("latest snapshots at %s: %w", at.Format(time.RFC3339), err)
	}
	if cache != nil {
		cache[at] = snaps
	}
	return snaps, nil
}

func (s *Service) deltasFor(ctx context.Context, creatorID string, posts []domain.Post, start, end time.Time, cache snapshotCache) (Deltas, error) {
	before, err := s.latestAt(ctx, creatorID, start, cache)
	if err != nil {
		return nil, err
	}
	after, err := s.latestAt(ctx, creatorID, end, cache)
	if err != nil {
		return nil, err
	}
	return computeDeltas(posts, before, after), nil
}

func computeDeltas(posts []domain.Post, before, after map[string]domain.Snapshot) Deltas {
	out := Deltas{}
	for _, p := range posts {
		s1, ok := after[p.ID]
		if !ok {
			continue
		}
		s0 := before[p.ID]

		tag := p.Tag()
		b := out[tag]
		views := clampDelta(s1.Views, s0.Views)
		b.ViewsDelta += views
		b.LikesDelta += clampDelta(s1.Likes, s0.Likes)
		b.CommentsDelta += clampDelta(s1.Comments, s0.Comments)
		b.SharesDelta += clampDelta(s1.Shares, s0.Shares)
		b.SavesDelta += clampDelta(s1.Saves, s0.Saves)
		if views > 0 {
			b.PostsWithViews++
			b.PostIDs = append(b.PostIDs, p.ID)
		}
		if b.PostIDs == nil {
			b.PostIDs = []string{}
		}
		out[tag] = b
	}
	return out
}

// clampDelta absorbs counter resets and out-of-order imports.
func clampDelta(later, earlier int64) int64 {
	if later < earlier {
		return 0
	}
	return later - earlier
}
