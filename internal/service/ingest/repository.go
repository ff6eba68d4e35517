package ingest

import (
	"context"

	"github.com/funnellens/funnellens/internal/domain"
)

// Repository persists imported records.
type Repository interface {
	// InTx runs fn atomically: either every write made with the context
	// passed to fn is kept, or none is.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	// ImportExists reports whether a file with this hash was imported before.
	ImportExists(ctx context.Context, fileHash string) (bool, error)
	CreateImport(ctx context.Context, imp *domain.Import) error
	// CompleteImport stores the final row counts and errors.
	CompleteImport(ctx context.Context, imp *domain.Import) error

	// UpsertPost inserts the post or refreshes the cumulative counters of
	// the existing (creator, platform, platform post id) row. It returns the
	// stored post's ID.
	UpsertPost(ctx context.Context, p *domain.Post) (string, error)
	CreateSnapshot(ctx context.Context, s *domain.Snapshot) error

	CreateFan(ctx context.Context, f *domain.Fan) error
	// FindFanByExternalHash returns nil, nil when no fan matches.
	FindFanByExternalHash(ctx context.Context, creatorID, hash string) (*domain.Fan, error)
	// CreateRevenueEvent stores the event and adds its amount to the fan's
	// total spend.
	CreateRevenueEvent(ctx context.Context, e *domain.RevenueEvent) error
}

// Archive stores raw import files.
type Archive interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Recorder receives ingest instrumentation.
type Recorder interface {
	ImportRows(importType string, imported, skipped int)
}

type nopRecorder struct{}

func (nopRecorder) ImportRows(string, int, int) {}
