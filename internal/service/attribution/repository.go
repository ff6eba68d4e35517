package attribution

import (
	"context"
	"time"

	"github.com/funnellens/funnellens/internal/domain"
)

// Repository is the read model the engine consumes, plus the single write
// path for fan attribution. Time ranges are half-open [from, to) unless a
// method says otherwise. Implementations must be safe for concurrent use.
type Repository interface {
	// ListPosts returns every post owned by the creator.
	ListPosts(ctx context.Context, creatorID string) ([]domain.Post, error)

	// LatestSnapshots returns, keyed by post ID, the most recent snapshot
	// taken at or before at for each of the creator's posts. Posts with no
	// such snapshot are absent.
	LatestSnapshots(ctx context.Context, creatorID string, at time.Time) (map[string]domain.Snapshot, error)

	// CountFans counts fans acquired in [from, to).
	CountFans(ctx context.Context, creatorID string, from, to time.Time) (int, error)

	// CountFansByContentType counts attributed fans acquired in [from, to),
	// grouped by their primary content type.
	CountFansByContentType(ctx context.Context, creatorID string, from, to time.Time) (map[domain.ContentType]int, error)

	// SumRevenue sums revenue events in [from, to) for fans of the creator.
	SumRevenue(ctx context.Context, creatorID string, from, to time.Time) (float64, error)

	// ListConfounders returns events with event_start <= to and an end that
	// is open or >= from.
	ListConfounders(ctx context.Context, creatorID string, from, to time.Time) ([]domain.ConfounderEvent, error)

	// ListUnattributedFans returns fans without a primary content type,
	// ordered by acquisition time.
	ListUnattributedFans(ctx context.Context, creatorID string) ([]domain.Fan, error)

	// SaveFanAttributions applies all updates atomically under a
	// per-creator exclusive scope. Fans attributed in the meantime are left
	// untouched. Returns the number of fans actually updated.
	SaveFanAttributions(ctx context.Context, creatorID string, updates []FanAttribution) (int, error)
}

// FanAttribution is the write-back produced for one fan.
type FanAttribution struct {
	FanID       string
	ContentType domain.ContentType
	Method      domain.AttributionMethod
	Confidence  float64
	Weights     map[domain.ContentType]float64
}

// Recorder receives engine instrumentation. The zero Service uses a no-op.
type Recorder interface {
	ObserveCall(op string, d time.Duration, err error)
	FansAttributed(method string, n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCall(string, time.Duration, error) {}
func (nopRecorder) FansAttributed(string, int)               {}
