package attribution

import (
	"fmt"
	"strings"
	"time"
)

// Defaults that are part of the engine's contract.
const (
	DefaultBaselineLookbackDays = 14
	DefaultFanWindowHours       = 48
	DefaultPerformanceDays      = 30

	// MinBaselineFans is the fewest baseline-window fans that produce a
	// measured (non-default) baseline. The same floor applies to days.
	MinBaselineFans = 3
	minBaselineDays = 3

	DefaultSubsPerDay          = 5.0
	DefaultRevPerDay           = 100.0
	DefaultSubsPer1kDeltaViews = 0.2
)

// Service computes baselines, window attribution, per-content-type
// performance and the weighted fan attribution pass.
type Service struct {
	repo     Repository
	now      func() time.Time
	recorder Recorder
	lookback int
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the clock used for "now"-relative operations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder attaches instrumentation.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithBaselineLookback sets the lookback used for window baselines.
func WithBaselineLookback(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.lookback = days
		}
	}
}

// NewService creates an attribution service backed by the given repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		now:      func() time.Time { return time.Now().UTC() },
		recorder: nopRecorder{},
		lookback: DefaultBaselineLookbackDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current instant.
func (s *Service) Now() time.Time { return s.now() }

func (s *Service) observe(op string, start time.Time, err error) {
	s.recorder.ObserveCall(op, s.now().Sub(start), err)
}

func validateCreator(creatorID string) error {
	if strings.TrimSpace(creatorID) == "" {
		return fmt.Errorf("%w: creator id is required", ErrInvalidInput)
	}
	return nil
}

func validateRange(from, to time.Time) error {
	if to.Before(from) {
		return fmt.Errorf("%w: window end %s precedes start %s", ErrInvalidInput,
			to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	return nil
}
