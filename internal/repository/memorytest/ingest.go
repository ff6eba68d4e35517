package memorytest

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"github.com/funnellens/funnellens/internal/domain"
)

// --- ingest.Repository ---

// InTx runs fn and restores the ingest state (imports, posts, snapshots,
// fans, revenue) when it fails. Transactions are serialized; plain calls
// made concurrently with one are not isolated from it.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	imports := maps.Clone(s.imports)
	posts := maps.Clone(s.posts)
	fans := make(map[string]domain.Fan, len(s.fans))
	for id, f := range s.fans {
		fans[id] = copyFan(f)
	}
	nSnapshots, nRevenue := len(s.snapshots), len(s.revenue)
	s.mu.RUnlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.imports, s.posts, s.fans = imports, posts, fans
		s.snapshots = s.snapshots[:nSnapshots]
		s.revenue = s.revenue[:nRevenue]
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) ImportExists(_ context.Context, fileHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, imp := range s.imports {
		if imp.FileHash == fileHash {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateImport(_ context.Context, imp *domain.Import) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	imp.ID = newID(imp.ID)
	s.imports[imp.ID] = *imp
	return nil
}

func (s *Store) CompleteImport(_ context.Context, imp *domain.Import) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.imports[imp.ID]; !ok {
		return fmt.Errorf("import %s: %w", imp.ID, ErrNotFound)
	}
	s.imports[imp.ID] = *imp
	return nil
}

// Imports returns every import of a creator, newest first.
func (s *Store) Imports(creatorID string) []domain.Import {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Import
	for _, imp := range s.imports {
		if imp.CreatorID == creatorID {
			out = append(out, imp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ImportedAt.After(out[j].ImportedAt) })
	return out
}

func (s *Store) UpsertPost(_ context.Context, p *domain.Post) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cur := range s.posts {
		if cur.CreatorID != p.CreatorID || cur.Platform != p.Platform || cur.PlatformPostID != p.PlatformPostID {
			continue
		}
		cur.ViewsCumulative = p.ViewsCumulative
		cur.LikesCumulative = p.LikesCumulative
		cur.CommentsCumulative = p.CommentsCumulative
		cur.SharesCumulative = p.SharesCumulative
		cur.SavesCumulative = p.SavesCumulative
		cur.LastSnapshotAt = p.LastSnapshotAt
		if p.ContentType != nil {
			cur.ContentType = p.ContentType
		}
		if p.Caption != "" {
			cur.Caption = p.Caption
		}
		if p.URL != "" {
			cur.URL = p.URL
		}
		s.posts[id] = cur
		return id, nil
	}
	p.ID = newID(p.ID)
	s.posts[p.ID] = *p
	return p.ID, nil
}

func (s *Store) CreateSnapshot(_ context.Context, snap *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[snap.PostID]; !ok {
		return fmt.Errorf("post %s: %w", snap.PostID, ErrNotFound)
	}
	snap.ID = newID(snap.ID)
	s.snapshots = append(s.snapshots, *snap)
	return nil
}

func (s *Store) CreateFan(_ context.Context, f *domain.Fan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = newID(f.ID)
	s.fans[f.ID] = copyFan(*f)
	return nil
}

func (s *Store) FindFanByExternalHash(_ context.Context, creatorID, hash string) (*domain.Fan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var match *domain.Fan
	for _, f := range s.fans {
		if f.CreatorID != creatorID || f.ExternalIDHash != hash {
			continue
		}
		if match == nil || f.AcquiredAt.Before(match.AcquiredAt) {
			c := copyFan(f)
			match = &c
		}
	}
	return match, nil
}

func (s *Store) CreateRevenueEvent(_ context.Context, e *domain.RevenueEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fans[e.FanID]
	if !ok {
		return fmt.Errorf("fan %s: %w", e.FanID, ErrNotFound)
	}
	e.ID = newID(e.ID)
	s.revenue = append(s.revenue, *e)
	f.TotalSpend += e.Amount
	s.fans[e.FanID] = f
	return nil
}

// --- creators ---

// GetCreator returns the creator or ErrNotFound.
func (s *Store) GetCreator(_ context.Context, id string) (*domain.Creator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creators[id]
	if !ok {
		return nil, fmt.Errorf("creator %s: %w", id, ErrNotFound)
	}
	return &c, nil
}

// ListCreators returns creators with the given status ordered by name.
func (s *Store) ListCreators(_ context.Context, status domain.CreatorStatus) ([]domain.Creator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Creator
	for _, c := range s.creators {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
