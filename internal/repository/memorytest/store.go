// Package memorytest is an in-memory test double implementing the
// attribution, ingest and creator repositories, with seed helpers. It is
// imported only by tests; production code uses repository/postgres.
package memorytest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/service/attribution"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// Store holds every record in maps guarded by a single RWMutex.
type Store struct {
	txMu        sync.Mutex
	mu          sync.RWMutex
	creators    map[string]domain.Creator
	posts       map[string]domain.Post
	snapshots   []domain.Snapshot
	fans        map[string]domain.Fan
	revenue     []domain.RevenueEvent
	confounders []domain.ConfounderEvent
	imports     map[string]domain.Import
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		creators: make(map[string]domain.Creator),
		posts:    make(map[string]domain.Post),
		fans:     make(map[string]domain.Fan),
		imports:  make(map[string]domain.Import),
	}
}

func newID(id string) string {
	if id == "" {
		return uuid.New().String()
	}
	return id
}

// AddCreator stores a creator and returns its ID.
func (s *Store) AddCreator(c domain.Creator) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = newID(c.ID)
	if c.Status == "" {
		c.Status = domain.CreatorActive
	}
	s.creators[c.ID] = c
	return c.ID
}

// AddPost stores a post and returns its ID.
func (s *Store) AddPost(p domain.Post) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = newID(p.ID)
	s.posts[p.ID] = p
	return p.ID
}

// AddSnapshot appends a snapshot.
func (s *Store) AddSnapshot(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.ID = newID(snap.ID)
	if snap.CreatorID == "" {
		snap.CreatorID = s.posts[snap.PostID].CreatorID
	}
	s.snapshots = append(s.snapshots, snap)
}

// AddFan stores a fan and returns its ID.
func (s *Store) AddFan(f domain.Fan) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = newID(f.ID)
	s.fans[f.ID] = f
	return f.ID
}

// AddRevenue appends a revenue event.
func (s *Store) AddRevenue(e domain.RevenueEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = newID(e.ID)
	s.revenue = append(s.revenue, e)
}

// AddConfounder appends a confounder event.
func (s *Store) AddConfounder(e domain.ConfounderEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = newID(e.ID)
	s.confounders = append(s.confounders, e)
}

// Fan returns a copy of the stored fan.
func (s *Store) Fan(id string) (domain.Fan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fans[id]
	return copyFan(f), ok
}

// --- attribution.Repository ---

func (s *Store) ListPosts(_ context.Context, creatorID string) ([]domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Post
	for _, p := range s.posts {
		if p.CreatorID == creatorID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PostedAt.Equal(out[j].PostedAt) {
			return out[i].PostedAt.Before(out[j].PostedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) LatestSnapshots(_ context.Context, creatorID string, at time.Time) (map[string]domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Snapshot)
	for _, snap := range s.snapshots {
		if snap.CreatorID != creatorID || snap.TakenAt.After(at) {
			continue
		}
		if cur, ok := out[snap.PostID]; !ok || snap.TakenAt.After(cur.TakenAt) {
			out[snap.PostID] = snap
		}
	}
	return out, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (s *Store) CountFans(_ context.Context, creatorID string, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, f := range s.fans {
		if f.CreatorID == creatorID && inRange(f.AcquiredAt, from, to) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountFansByContentType(_ context.Context, creatorID string, from, to time.Time) (map[domain.ContentType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.ContentType]int)
	for _, f := range s.fans {
		if f.CreatorID == creatorID && f.IsAttributed() && inRange(f.AcquiredAt, from, to) {
			out[*f.AttributedContentType]++
		}
	}
	return out, nil
}

func (s *Store) SumRevenue(_ context.Context, creatorID string, from, to time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum float64
	for _, e := range s.revenue {
		f, ok := s.fans[e.FanID]
		if ok && f.CreatorID == creatorID && inRange(e.EventAt, from, to) {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (s *Store) ListConfounders(_ context.Context, creatorID string, from, to time.Time) ([]domain.ConfounderEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ConfounderEvent
	for _, e := range s.confounders {
		if e.CreatorID == creatorID && e.Overlaps(from, to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ListUnattributedFans(_ context.Context, creatorID string) ([]domain.Fan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Fan
	for _, f := range s.fans {
		if f.CreatorID == creatorID && !f.IsAttributed() {
			out = append(out, copyFan(f))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AcquiredAt.Equal(out[j].AcquiredAt) {
			return out[i].AcquiredAt.Before(out[j].AcquiredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SaveFanAttributions validates every update before applying any of them,
// which gives the same all-or-nothing outcome as a database transaction.
func (s *Store) SaveFanAttributions(_ context.Context, creatorID string, updates []attribution.FanAttribution) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		f, ok := s.fans[u.FanID]
		if !ok || f.CreatorID != creatorID {
			return 0, fmt.Errorf("fan %s: %w", u.FanID, ErrNotFound)
		}
	}
	n := 0
	for _, u := range updates {
		f := s.fans[u.FanID]
		if f.IsAttributed() {
			continue
		}
		ct, method, conf := u.ContentType, u.Method, u.Confidence
		f.AttributedContentType = &ct
		f.AttributionMethod = &method
		f.AttributionConfidence = &conf
		f.AttributionWeights = make(map[domain.ContentType]float64, len(u.Weights))
		for k, v := range u.Weights {
			f.AttributionWeights[k] = v
		}
		s.fans[u.FanID] = f
		n++
	}
	return n, nil
}

func copyFan(f domain.Fan) domain.Fan {
	if f.AttributionWeights != nil {
		w := make(map[domain.ContentType]float64, len(f.AttributionWeights))
		for k, v := range f.AttributionWeights {
			w[k] = v
		}
		f.AttributionWeights = w
	}
	return f
}
