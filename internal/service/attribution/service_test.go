package attribution_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/repository/memorytest"
	"github.com/funnellens/funnellens/internal/service/attribution"
)

const creatorID = "6f1d2a8e-3c4b-4f5a-9e7d-1a2b3c4d5e6f"

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func ctPtr(c domain.ContentType) *domain.ContentType { return &c }

func timePtr(t time.Time) *time.Time { return &t }

func addPost(s *memorytest.Store, ct *domain.ContentType) string {
	return s.AddPost(domain.Post{CreatorID: creatorID, Platform: domain.PlatformTikTok, ContentType: ct, PostedAt: t0})
}

func snap(s *memorytest.Store, postID string, at time.Time, views int64) {
	s.AddSnapshot(domain.Snapshot{PostID: postID, CreatorID: creatorID, TakenAt: at, Views: views})
}

// scenario seeds a creator with a 10 subs/day baseline over the 14 days
// before start, 30 fans in the 48 hours after start and a 6000/2000 views
// split between storytime and grwm inside the window.
type scenario struct {
	store *memorytest.Store
	start time.Time
	end   time.Time
}

func newScenario(t *testing.T, attributeWindowFans bool) scenario {
	t.Helper()
	s := memorytest.NewStore()
	start := t0.AddDate(0, 0, 20)
	end := start.Add(48 * time.Hour)

	step := 14 * 24 * time.Hour / 140
	baselineStart := start.AddDate(0, 0, -14)
	for i := 0; i < 140; i++ {
		id := s.AddFan(domain.Fan{CreatorID: creatorID, AcquiredAt: baselineStart.Add(time.Duration(i) * step)})
		s.AddRevenue(domain.RevenueEvent{FanID: id, Amount: 10, EventAt: baselineStart.Add(time.Duration(i) * step)})
	}
	for i := 0; i < 30; i++ {
		f := domain.Fan{CreatorID: creatorID, AcquiredAt: start.Add(time.Duration(i) * time.Hour)}
		if attributeWindowFans {
			if i < 20 {
				f.AttributedContentType = ctPtr(domain.ContentStorytime)
			} else {
				f.AttributedContentType = ctPtr(domain.ContentGRWM)
			}
		}
		s.AddFan(f)
	}

	story := addPost(s, ctPtr(domain.ContentStorytime))
	grwm := addPost(s, ctPtr(domain.ContentGRWM))
	snap(s, story, start, 1000)
	snap(s, grwm, start, 1000)
	snap(s, story, start.Add(47*time.Hour), 7000)
	snap(s, grwm, start.Add(47*time.Hour), 3000)

	return scenario{store: s, start: start, end: end}
}

func TestDeltasByContentType_ClampsNegativeDeltas(t *testing.T) {
	s := memorytest.NewStore()
	svc := attribution.NewService(s)

	p := addPost(s, ctPtr(domain.ContentStorytime))
	s.AddSnapshot(domain.Snapshot{PostID: p, CreatorID: creatorID, TakenAt: t0, Views: 1000, Likes: 50})
	s.AddSnapshot(domain.Snapshot{PostID: p, CreatorID: creatorID, TakenAt: t0.Add(time.Hour), Views: 800, Likes: 70})

	deltas, err := svc.DeltasByContentType(context.Background(), creatorID, t0, t0.Add(2*time.Hour))
	require.NoError(t, err)

	b, ok := deltas[domain.ContentStorytime]
	require.True(t, ok, "bucket exists once a post has a snapshot before the period end")
	assert.Equal(t, int64(0), b.ViewsDelta)
	assert.Equal(t, int64(20), b.LikesDelta)
	assert.Equal(t, 0, b.PostsWithViews)
	assert.Empty(t, b.PostIDs)
}

func TestDeltasByContentType_MissingSnapshots(t *testing.T) {
	s := memorytest.NewStore()
	svc := attribution.NewService(s)

	untagged := addPost(s, nil)
	snap(s, untagged, t0.Add(time.Hour), 500)

	// Only a snapshot after the period: contributes nothing.
	late := addPost(s, ctPtr(domain.ContentGRWM))
	snap(s, late, t0.Add(10*time.Hour), 900)

	// Unknown tags normalize to other.
	odd := addPost(s, ctPtr(domain.ContentType("Dance")))
	snap(s, odd, t0.Add(-time.Hour), 100)
	snap(s, odd, t0.Add(time.Hour), 400)

	deltas, err := svc.DeltasByContentType(context.Background(), creatorID, t0, t0.Add(2*time.Hour))
	require.NoError(t, err)

	require.Len(t, deltas, 1)
	other := deltas[domain.ContentOther]
	assert.Equal(t, int64(800), other.ViewsDelta, "absent S0 counts as zero")
	assert.Equal(t, 2, other.PostsWithViews)
	assert.ElementsMatch(t, []string{untagged, odd}, other.PostIDs)
	_, hasGRWM := deltas[domain.ContentGRWM]
	assert.False(t, hasGRWM)
}

func TestBaseline_DefaultsWhenInsufficient(t *testing.T) {
	s := memorytest.NewStore()
	svc := attribution.NewService(s)
	end := t0.AddDate(0, 0, 30)

	s.AddFan(domain.Fan{CreatorID: creatorID, AcquiredAt: end.AddDate(0, 0, -3)})
	s.AddFan(domain.Fan{CreatorID: creatorID, AcquiredAt: end.AddDate(0, 0, -1)})

	b, err := svc.Baseline(context.Background(), creatorID, end, 14)
	require.NoError(t, err)
	assert.True(t, b.IsDefault)
	assert.Equal(t, 5.0, b.SubsPerDay)
	assert.Equal(t, 100.0, b.RevPerDay)
	assert.Equal(t, 0.2, b.SubsPer1kDeltaViews)
	assert.Equal(t, 2, b.TotalFans)
	assert.Equal(t, 14, b.DataDays)

	short, err := svc.Baseline(context.Background(), creatorID, end, 2)
	require.NoError(t, err)
	assert.True(t, short.IsDefault)
}

func TestBaseline_MeasuredRates(t *testing.T) {
	sc := newScenario(t, false)
	svc := attribution.NewService(sc.store)

	b, err := svc.Baseline(context.Background(), creatorID, sc.start, 14)
	require.NoError(t, err)
	assert.False(t, b.IsDefault)
	assert.Equal(t, 140, b.TotalFans)
	assert.InDelta(t, 10.0, b.SubsPerDay, 1e-9)
	assert.InDelta(t, 100.0, b.RevPerDay, 1e-9)
	// Both posts' first snapshot lands exactly on the baseline end.
	assert.Equal(t, int64(2000), b.TotalDeltaViews)
	assert.InDelta(t, 70.0, b.SubsPer1kDeltaViews, 1e-9)
}

func TestBaseline_IgnoresDataAtOrAfterEnd(t *testing.T) {
	sc := newScenario(t, false)
	svc := attribution.NewService(sc.store)
	ctx := context.Background()

	before, err := svc.Baseline(ctx, creatorID, sc.start, 14)
	require.NoError(t, err)

	id := sc.store.AddFan(domain.Fan{CreatorID: creatorID, AcquiredAt: sc.start})
	sc.store.AddFan(domain.Fan{CreatorID: creatorID, AcquiredAt: sc.start.Add(time.Second)})
	sc.store.AddRevenue(domain.RevenueEvent{FanID: id, Amount: 999, EventAt: sc.start})

	after, err := svc.Baseline(ctx, creatorID, sc.start, 14)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestBaseline_RejectsBadInput(t *testing.T) {
	svc := attribution.NewService(memorytest.NewStore())
	_, err := svc.Baseline(context.Background(), "", t0, 14)
	assert.ErrorIs(t, err, attribution.ErrInvalidInput)
	_, err = svc.Baseline(context.Background(), creatorID, t0, 0)
	assert.ErrorIs(t, err, attribution.ErrInvalidInput)
}

func TestAttributeWindow_Scenario(t *testing.T) {
	sc := newScenario(t, false)
	svc := attribution.NewService(sc.store)

	res, err := svc.AttributeWindow(context.Background(), creatorID, sc.start, sc.end, "")
	require.NoError(t, err)

	assert.Equal(t, 48.0, res.WindowHours)
	assert.Equal(t, 10.0, res.Baseline.SubsPerDay)
	assert.False(t, res.Baseline.IsDefault)
	assert.Equal(t, 20.0, res.ExpectedSubs)
	assert.Equal(t, 30, res.ActualSubs)
	assert.Equal(t, 50.0, res.SubsLiftPct)
	assert.Equal(t, 200.0, res.ExpectedRevenue)
	assert.Equal(t, 0.0, res.ActualRevenue)
	assert.Equal(t, -100.0, res.RevenueLiftPct)
	assert.Equal(t, int64(8000), res.TotalDeltaViews)
	assert.Equal(t, 0.75, res.CreditWeights[domain.ContentStorytime])
	assert.Equal(t, 0.25, res.CreditWeights[domain.ContentGRWM])
	assert.Equal(t, attribution.ContentTypeDelta{ViewsDelta: 6000, PostsWithViews: 1}, res.ContentTypeDeltas[domain.ContentStorytime])
	assert.Empty(t, res.Confounders)

	assert.Equal(t, 0.90, res.Confidence.Score)
	assert.True(t, res.Confidence.MinEventsMet)
	assert.Contains(t, res.Confidence.Reasons, "Lift is statistically significant (p < 0.05)")
	assert.Equal(t, attribution.TierConfident, res.RecommendationTier)
}

func TestAttributeWindow_ConfounderCostsExactlyPointTwo(t *testing.T) {
	clean := newScenario(t, false)
	cleanRes, err := attribution.NewService(clean.store).AttributeWindow(context.Background(), creatorID, clean.start, clean.end, "")
	require.NoError(t, err)

	dirty := newScenario(t, false)
	dirty.store.AddConfounder(domain.ConfounderEvent{
		CreatorID:       creatorID,
		EventType:       domain.ConfounderPromotion,
		EventStart:      dirty.start.Add(-24 * time.Hour),
		EventEnd:        timePtr(dirty.start.Add(6 * time.Hour)),
		Description:     "50% off promo",
		EstimatedImpact: domain.ImpactHigh,
	})
	dirtyRes, err := attribution.NewService(dirty.store).AttributeWindow(context.Background(), creatorID, dirty.start, dirty.end, "")
	require.NoError(t, err)

	require.Len(t, dirtyRes.Confounders, 1)
	c := dirtyRes.Confounders[0]
	assert.Equal(t, domain.ConfounderPromotion, c.Type)
	assert.Equal(t, "50% off promo", c.Description)
	assert.Equal(t, domain.ImpactHigh, c.Impact)
	assert.InDelta(t, 0.20, cleanRes.Confidence.Score-dirtyRes.Confidence.Score, 1e-9)
	assert.Contains(t, dirtyRes.Confidence.Reasons, "Confounder event(s) overlap with window")
}

func TestAttributeWindow_ConfounderOverlap(t *testing.T) {
	sc := newScenario(t, false)
	sc.store.AddConfounder(domain.ConfounderEvent{
		CreatorID:  creatorID,
		EventType:  domain.ConfounderCollab,
		EventStart: sc.start.AddDate(0, 0, -10),
		EventEnd:   timePtr(sc.start.Add(-time.Second)),
	})
	sc.store.AddConfounder(domain.ConfounderEvent{
		CreatorID:  creatorID,
		EventType:  domain.ConfounderPriceChange,
		EventStart: sc.end.Add(time.Second),
	})
	sc.store.AddConfounder(domain.ConfounderEvent{
		CreatorID:  creatorID,
		EventType:  domain.ConfounderMassDM,
		EventStart: sc.start.AddDate(0, 0, -3),
	})

	res, err := attribution.NewService(sc.store).AttributeWindow(context.Background(), creatorID, sc.start, sc.end, "")
	require.NoError(t, err)
	require.Len(t, res.Confounders, 1, "only the open-ended event overlaps")
	assert.Equal(t, domain.ConfounderMassDM, res.Confounders[0].Type)
}

func TestAttributeWindow_CreditWeightsSumToOne(t *testing.T) {
	s := memorytest.NewStore()
	types := []domain.ContentType{domain.ContentStorytime, domain.ContentGRWM, domain.ContentMoneyTalk}
	views := []int64{1234, 5678, 91011}
	for i, ct := range types {
		p := addPost(s, ctPtr(ct))
		snap(s, p, t0, 0)
		snap(s, p, t0.Add(12*time.Hour), views[i])
	}

	res, err := attribution.NewService(s).AttributeWindow(context.Background(), creatorID, t0, t0.Add(24*time.Hour), "")
	require.NoError(t, err)

	var sum float64
	for _, w := range res.CreditWeights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 0.0005*float64(len(types)))
	assert.True(t, res.Baseline.IsDefault)
}

func TestAttributeWindow_NoViewsMeansNoWeights(t *testing.T) {
	s := memorytest.NewStore()
	p := addPost(s, ctPtr(domain.ContentGRWM))
	snap(s, p, t0, 100)
	snap(s, p, t0.Add(time.Hour), 100)

	res, err := attribution.NewService(s).AttributeWindow(context.Background(), creatorID, t0, t0.Add(30*time.Minute), "")
	require.NoError(t, err)
	assert.Empty(t, res.CreditWeights)
	assert.Equal(t, 1.0, res.WindowHours, "sub-hour windows are floored at one hour")
	assert.Contains(t, res.Confidence.Reasons, "Short window (<24h) increases noise")
}

func TestAttributeWindow_ContentTypeFilter(t *testing.T) {
	sc := newScenario(t, false)
	svc := attribution.NewService(sc.store)

	res, err := svc.AttributeWindow(context.Background(), creatorID, sc.start, sc.end, " GRWM ")
	require.NoError(t, err)
	assert.Len(t, res.ContentTypeDeltas, 1)
	assert.Equal(t, int64(2000), res.TotalDeltaViews)
	assert.Equal(t, map[domain.ContentType]float64{domain.ContentGRWM: 1}, res.CreditWeights)

	_, err = svc.AttributeWindow(context.Background(), creatorID, sc.start, sc.end, "dance")
	assert.ErrorIs(t, err, attribution.ErrInvalidInput)
}

func TestAttributeWindow_RejectsInvertedRange(t *testing.T) {
	svc := attribution.NewService(memorytest.NewStore())
	_, err := svc.AttributeWindow(context.Background(), creatorID, t0, t0.Add(-time.Hour), "")
	assert.ErrorIs(t, err, attribution.ErrInvalidInput)
}

func TestContentTypePerformance(t *testing.T) {
	sc := newScenario(t, true)
	svc := attribution.NewService(sc.store, attribution.WithClock(func() time.Time { return sc.end }))

	perf, err := svc.ContentTypePerformance(context.Background(), creatorID, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, perf.PeriodDays)
	assert.True(t, perf.WindowStart.Equal(sc.start))
	assert.Equal(t, 30, perf.TotalSubs)
	assert.Equal(t, int64(8000), perf.TotalViews)
	assert.False(t, perf.HasConfounders)
	require.NotNil(t, perf.Window)

	story := perf.ContentTypes[domain.ContentStorytime]
	assert.Equal(t, 20, story.AttributedSubs)
	assert.Equal(t, 3.33, story.SubsPer1kViews)
	assert.Equal(t, 33.3, story.LiftPct)
	assert.Equal(t, 0.75, story.CreditWeight)

	grwm := perf.ContentTypes[domain.ContentGRWM]
	assert.Equal(t, 10, grwm.AttributedSubs)
	assert.Equal(t, 5.0, grwm.SubsPer1kViews)
	assert.Equal(t, 100.0, grwm.LiftPct)
	assert.Equal(t, 0.25, grwm.CreditWeight)
	assert.True(t, grwm.Confidence.MinEventsMet)
}

func TestContentTypePerformance_RejectsBadDays(t *testing.T) {
	svc := attribution.NewService(memorytest.NewStore())
	_, err := svc.ContentTypePerformance(context.Background(), creatorID, 0)
	assert.ErrorIs(t, err, attribution.ErrInvalidInput)
}

// fanFixture seeds storytime/grwm views of 3000/1000 in the 48 hours before
// acquiredAt, one fan inside that reach and one fan with no data.
func fanFixture(s *memorytest.Store) (acquiredAt time.Time, attributable, orphan string) {
	acquiredAt = t0.Add(100 * time.Hour)
	story := addPost(s, ctPtr(domain.ContentStorytime))
	grwm := addPost(s, ctPtr(domain.ContentGRWM))
	snap(s, story, acquiredAt.Add(-48*time.Hour), 1000)
	snap(s, grwm, acquiredAt.Add(-48*time.Hour), 500)
	snap(s, story, acquiredAt.Add(-time.Hour), 4000)
	snap(s, grwm, acquiredAt.Add(-time.Hour), 1500)

	attributable = s.AddFan(domain.Fan{CreatorID: creatorID, AcquiredAt: acquiredAt})
	orphan = s.AddFan(domain.Fan{CreatorID: creatorID, AcquiredAt: t0})
	return acquiredAt, attributable, orphan
}

func TestAttributeFans_WeightedWindow(t *testing.T) {
	s := memorytest.NewStore()
	_, fanID, orphan := fanFixture(s)
	svc := attribution.NewService(s)

	stats, err := svc.AttributeFans(context.Background(), creatorID, 48)
	require.NoError(t, err)
	assert.Equal(t, attribution.FanAttributionStats{WeightedWindow: 1, NoData: 1}, stats)

	f, ok := s.Fan(fanID)
	require.True(t, ok)
	require.NotNil(t, f.AttributedContentType)
	assert.Equal(t, domain.ContentStorytime, *f.AttributedContentType)
	assert.Equal(t, domain.AttributionWeightedWindow, *f.AttributionMethod)
	assert.InDelta(t, 0.675, *f.AttributionConfidence, 1e-9)
	assert.InDelta(t, 0.75, f.AttributionWeights[domain.ContentStorytime], 1e-9)
	assert.InDelta(t, 0.25, f.AttributionWeights[domain.ContentGRWM], 1e-9)

	o, _ := s.Fan(orphan)
	assert.False(t, o.IsAttributed())
}

func TestAttributeFans_SecondRunAttributesNothing(t *testing.T) {
	s := memorytest.NewStore()
	fanFixture(s)
	svc := attribution.NewService(s)
	ctx := context.Background()

	_, err := svc.AttributeFans(ctx, creatorID, 48)
	require.NoError(t, err)

	stats, err := svc.AttributeFans(ctx, creatorID, 48)
	require.NoError(t, err)
	assert.Zero(t, stats.WeightedWindow)
	assert.Equal(t, 1, stats.NoData)
}

func TestAttributeFans_DefaultsWindow(t *testing.T) {
	s := memorytest.NewStore()
	_, fanID, _ := fanFixture(s)

	stats, err := attribution.NewService(s).AttributeFans(context.Background(), creatorID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.WeightedWindow)
	f, _ := s.Fan(fanID)
	assert.True(t, f.IsAttributed())
}

func TestAttributeFans_TieBreaksOnContentTypeName(t *testing.T) {
	s := memorytest.NewStore()
	acquired := t0.Add(10 * time.Hour)
	for _, ct := range []domain.ContentType{domain.ContentStorytime, domain.ContentGRWM} {
		p := addPost(s, ctPtr(ct))
		snap(s, p, acquired.Add(-2*time.Hour), 1000)
	}
	fanID := s.AddFan(domain.Fan{CreatorID: creatorID, AcquiredAt: acquired})

	_, err := attribution.NewService(s).AttributeFans(context.Background(), creatorID, 48)
	require.NoError(t, err)

	f, _ := s.Fan(fanID)
	require.NotNil(t, f.AttributedContentType)
	assert.Equal(t, domain.ContentGRWM, *f.AttributedContentType)
	assert.InDelta(t, 0.55, *f.AttributionConfidence, 1e-9)
}

type failingSaveRepo struct {
	*memorytest.Store
}

func (failingSaveRepo) SaveFanAttributions(context.Context, string, []attribution.FanAttribution) (int, error) {
	return 0, errors.New("connection reset")
}

func TestAttributeFans_StoreFailureLeavesFansUntouched(t *testing.T) {
	s := memorytest.NewStore()
	_, fanID, _ := fanFixture(s)

	_, err := attribution.NewService(failingSaveRepo{s}).AttributeFans(context.Background(), creatorID, 48)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	f, _ := s.Fan(fanID)
	assert.False(t, f.IsAttributed())
}

type countingRecorder struct {
	mu    sync.Mutex
	calls map[string]int
	fails int
	fans  map[string]int
}

func (r *countingRecorder) ObserveCall(op string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[op]++
	if err != nil {
		r.fails++
	}
}

func (r *countingRecorder) FansAttributed(method string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fans[method] += n
}

func TestService_RecordsCalls(t *testing.T) {
	s := memorytest.NewStore()
	fanFixture(s)
	rec := &countingRecorder{calls: map[string]int{}, fans: map[string]int{}}
	svc := attribution.NewService(s, attribution.WithRecorder(rec))
	ctx := context.Background()

	_, err := svc.AttributeFans(ctx, creatorID, 48)
	require.NoError(t, err)
	_, err = svc.AttributeWindow(ctx, "", t0, t0.Add(time.Hour), "")
	require.Error(t, err)

	assert.Equal(t, 1, rec.calls["attribute_fans"])
	assert.Equal(t, 1, rec.calls["attribute_window"])
	assert.Equal(t, 1, rec.fails)
	assert.Equal(t, 1, rec.fans["weighted_window"])
}
