// Package worker runs the periodic jobs of the service: the fan attribution
// pass over every active creator and the recommendation digest.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/funnellens/funnellens/internal/digest"
	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/pkg/distlock"
	"github.com/funnellens/funnellens/internal/pkg/logger"
	"github.com/funnellens/funnellens/internal/service/attribution"
	"github.com/funnellens/funnellens/internal/service/recommendation"
)

const (
	// DefaultInterval is how often the fan attribution pass runs.
	DefaultInterval = time.Hour

	// DefaultDigestInterval is how often digests go out.
	DefaultDigestInterval = 7 * 24 * time.Hour

	// creatorTimeout bounds the work done for one creator.
	creatorTimeout = 5 * time.Minute
)

// CreatorLister lists creators by status.
type CreatorLister interface {
	ListCreators(ctx context.Context, status domain.CreatorStatus) ([]domain.Creator, error)
}

// LockFactory creates a fresh lock per key.
type LockFactory interface {
	New(key string) distlock.DistLock
}

// DigestRecorder is told about each digest delivery attempt.
type DigestRecorder interface {
	DigestSent(err error)
}

// RunStats summarises one pass over the creators.
type RunStats struct {
	Creators int
	Skipped  int
	Failed   int
	Fans     attribution.FanAttributionStats
}

// AttributionWorker attributes new fans for every active creator on a
// ticker and, when configured, sends recommendation digests.
type AttributionWorker struct {
	creators    CreatorLister
	engine      *attribution.Service
	locks       LockFactory
	windowHours int
	interval    time.Duration

	renderer       *digest.Renderer
	sender         digest.Sender
	digestRecorder DigestRecorder
	digestInterval time.Duration
	reportDays     int

	runs   int64
	errors int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// Option configures an AttributionWorker.
type Option func(*AttributionWorker)

// WithInterval sets the attribution interval.
func WithInterval(d time.Duration) Option {
	return func(w *AttributionWorker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWindowHours sets the look-back window of the fan pass.
func WithWindowHours(h int) Option {
	return func(w *AttributionWorker) { w.windowHours = h }
}

// WithDigest enables recommendation digests over reportDays of data.
func WithDigest(r *digest.Renderer, s digest.Sender, interval time.Duration, reportDays int) Option {
	return func(w *AttributionWorker) {
		w.renderer = r
		w.sender = s
		if interval > 0 {
			w.digestInterval = interval
		}
		if reportDays > 0 {
			w.reportDays = reportDays
		}
	}
}

// WithDigestRecorder reports digest outcomes, typically to metrics.
func WithDigestRecorder(r DigestRecorder) Option {
	return func(w *AttributionWorker) { w.digestRecorder = r }
}

// NewAttributionWorker creates a stopped worker.
func NewAttributionWorker(creators CreatorLister, engine *attribution.Service, locks LockFactory, opts ...Option) *AttributionWorker {
	w := &AttributionWorker{
		creators:       creators,
		engine:         engine,
		locks:          locks,
		windowHours:    attribution.DefaultFanWindowHours,
		interval:       DefaultInterval,
		digestInterval: DefaultDigestInterval,
		reportDays:     attribution.DefaultPerformanceDays,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start runs one pass immediately and then on every tick.
func (w *AttributionWorker) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("attribution worker already running")
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	logger.Info("attribution worker starting", "interval", w.interval.String(), "digests", w.sender != nil)

	w.wg.Add(1)
	go w.loop(w.interval, func(ctx context.Context) {
		if _, err := w.RunOnce(ctx); err != nil {
			logger.Error("attribution pass failed", "error", err)
		}
	})

	if w.sender != nil && w.renderer != nil {
		w.wg.Add(1)
		go w.loop(w.digestInterval, func(ctx context.Context) {
			if _, err := w.SendDigests(ctx); err != nil {
				logger.Error("digest pass failed", "error", err)
			}
		})
	}
	return nil
}

// Stop cancels the loops and waits for in-flight work.
func (w *AttributionWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	logger.Info("attribution worker stopped",
		"runs", atomic.LoadInt64(&w.runs), "errors", atomic.LoadInt64(&w.errors))
}

func (w *AttributionWorker) loop(every time.Duration, fn func(context.Context)) {
	defer w.wg.Done()

	fn(w.ctx)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			fn(w.ctx)
		}
	}
}

// RunOnce attributes fans for every active creator. A creator whose lock is
// held elsewhere is skipped; a failure for one creator does not stop the
// others.
func (w *AttributionWorker) RunOnce(ctx context.Context) (RunStats, error) {
	atomic.AddInt64(&w.runs, 1)
	var total RunStats

	creators, err := w.creators.ListCreators(ctx, domain.CreatorActive)
	if err != nil {
		atomic.AddInt64(&w.errors, 1)
		return total, fmt.Errorf("list active creators: %w", err)
	}

	for _, c := range creators {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		total.Creators++
		stats, ran, err := w.attributeCreator(ctx, c.ID)
		switch {
		case err != nil:
			total.Failed++
			atomic.AddInt64(&w.errors, 1)
			logger.Error("fan attribution failed", "creator_id", c.ID, "error", err)
		case !ran:
			total.Skipped++
		default:
			total.Fans.WeightedWindow += stats.WeightedWindow
			total.Fans.ReferralLink += stats.ReferralLink
			total.Fans.NoData += stats.NoData
		}
	}

	logger.Info("attribution pass done",
		"creators", total.Creators, "skipped", total.Skipped, "failed", total.Failed,
		"weighted_window", total.Fans.WeightedWindow, "no_data", total.Fans.NoData)
	return total, nil
}

func (w *AttributionWorker) attributeCreator(ctx context.Context, creatorID string) (attribution.FanAttributionStats, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, creatorTimeout)
	defer cancel()

	lock := w.locks.New(distlock.CreatorKey("attribute_fans", creatorID))
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return attribution.FanAttributionStats{}, false, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		logger.Debug("fan attribution already running elsewhere", "creator_id", creatorID)
		return attribution.FanAttributionStats{}, false, nil
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, distlock.ErrNotHeld) {
			logger.Warn("release lock failed", "creator_id", creatorID, "error", err)
		}
	}()

	stats, err := w.engine.AttributeFans(ctx, creatorID, w.windowHours)
	return stats, true, err
}

// SendDigests e-mails a recommendation report to every active creator with
// a notification address and returns how many were sent.
func (w *AttributionWorker) SendDigests(ctx context.Context) (int, error) {
	if w.sender == nil || w.renderer == nil {
		return 0, nil
	}
	creators, err := w.creators.ListCreators(ctx, domain.CreatorActive)
	if err != nil {
		return 0, fmt.Errorf("list active creators: %w", err)
	}

	sent := 0
	for _, c := range creators {
		if c.NotificationEmail == "" {
			continue
		}
		err := w.sendDigest(ctx, c)
		if w.digestRecorder != nil {
			w.digestRecorder.DigestSent(err)
		}
		if err != nil {
			logger.Error("digest failed", "creator_id", c.ID, "email", c.NotificationEmail, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

func (w *AttributionWorker) sendDigest(ctx context.Context, c domain.Creator) error {
	perf, err := w.engine.ContentTypePerformance(ctx, c.ID, w.reportDays)
	if err != nil {
		return fmt.Errorf("content type performance: %w", err)
	}
	report := recommendation.Generate(c.ID, perf, nil)
	msg, err := w.renderer.Render(c, report)
	if err != nil {
		return err
	}
	_, err = w.sender.Send(ctx, msg)
	return err
}
