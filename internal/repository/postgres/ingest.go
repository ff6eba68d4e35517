package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/funnellens/funnellens/internal/domain"
)

// IngestRepo implements ingest.Repository against PostgreSQL.
type IngestRepo struct{ db *sql.DB }

// NewIngestRepo creates a Postgres-backed ingest repository.
func NewIngestRepo(db *sql.DB) *IngestRepo { return &IngestRepo{db: db} }

// querier is the part of *sql.DB and *sql.Tx the repository uses.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// conn returns the transaction started by InTx, or the pool.
func (r *IngestRepo) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return r.db
}

// InTx runs fn in one transaction. Repository calls made with the context
// passed to fn join it. A nested call reuses the outer transaction.
func (r *IngestRepo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *IngestRepo) ImportExists(ctx context.Context, fileHash string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM imports WHERE file_hash = $1)`, fileHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check import hash: %w", err)
	}
	return exists, nil
}

func importErrors(imp *domain.Import) ([]byte, error) {
	errs := imp.Errors
	if errs == nil {
		errs = []domain.ImportRowError{}
	}
	return json.Marshal(errs)
}

func (r *IngestRepo) CreateImport(ctx context.Context, imp *domain.Import) error {
	if imp.ID == "" {
		imp.ID = uuid.New().String()
	}
	errs, err := importErrors(imp)
	if err != nil {
		return fmt.Errorf("encode import errors: %w", err)
	}
	_, err = r.conn(ctx).ExecContext(ctx, `
		INSERT INTO imports (id, creator_id, import_type, file_name, file_hash,
		                     rows_total, rows_imported, rows_skipped, snapshot_at, imported_at, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, imp.ID, imp.CreatorID, string(imp.ImportType), imp.FileName, imp.FileHash,
		imp.RowsTotal, imp.RowsImported, imp.RowsSkipped, imp.SnapshotAt, imp.ImportedAt, string(errs))
	if err != nil {
		return fmt.Errorf("insert import: %w", err)
	}
	return nil
}

func (r *IngestRepo) CompleteImport(ctx context.Context, imp *domain.Import) error {
	errs, err := importErrors(imp)
	if err != nil {
		return fmt.Errorf("encode import errors: %w", err)
	}
	res, err := r.conn(ctx).ExecContext(ctx, `
		UPDATE imports
		SET rows_total = $1, rows_imported = $2, rows_skipped = $3, errors = $4
		WHERE id = $5
	`, imp.RowsTotal, imp.RowsImported, imp.RowsSkipped, string(errs), imp.ID)
	if err != nil {
		return fmt.Errorf("complete import: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("complete import %s: %w", imp.ID, ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *IngestRepo) UpsertPost(ctx context.Context, p *domain.Post) (string, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	var contentType sql.NullString
	if p.ContentType != nil {
		contentType = nullString(string(*p.ContentType))
	}
	var id string
	err := r.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO social_posts (id, creator_id, platform, platform_post_id, posted_at, content_type,
		                          views_cumulative, likes_cumulative, comments_cumulative,
		                          shares_cumulative, saves_cumulative,
		                          caption, url, duration_seconds, last_snapshot_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (creator_id, platform, platform_post_id) DO UPDATE SET
			views_cumulative    = EXCLUDED.views_cumulative,
			likes_cumulative    = EXCLUDED.likes_cumulative,
			comments_cumulative = EXCLUDED.comments_cumulative,
			shares_cumulative   = EXCLUDED.shares_cumulative,
			saves_cumulative    = EXCLUDED.saves_cumulative,
			last_snapshot_at    = EXCLUDED.last_snapshot_at,
			content_type        = COALESCE(EXCLUDED.content_type, social_posts.content_type),
			caption             = COALESCE(EXCLUDED.caption, social_posts.caption),
			url                 = COALESCE(EXCLUDED.url, social_posts.url)
		RETURNING id
	`, p.ID, p.CreatorID, string(p.Platform), p.PlatformPostID, p.PostedAt, contentType,
		p.ViewsCumulative, p.LikesCumulative, p.CommentsCumulative,
		p.SharesCumulative, p.SavesCumulative,
		nullString(p.Caption), nullString(p.URL), p.DurationSeconds, p.LastSnapshotAt, p.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert post: %w", err)
	}
	return id, nil
}

func (r *IngestRepo) CreateSnapshot(ctx context.Context, s *domain.Snapshot) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO post_snapshots (id, post_id, creator_id, snapshot_at, views, likes, comments, shares, saves, import_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, s.ID, s.PostID, s.CreatorID, s.TakenAt, s.Views, s.Likes, s.Comments, s.Shares, s.Saves, s.ImportID)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (r *IngestRepo) CreateFan(ctx context.Context, f *domain.Fan) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO fans (id, creator_id, external_id_hash, acquired_at, referral_link_id, churned_at, total_spend)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, f.ID, f.CreatorID, nullString(f.ExternalIDHash), f.AcquiredAt, f.ReferralLinkID, f.ChurnedAt, f.TotalSpend)
	if err != nil {
		return fmt.Errorf("insert fan: %w", err)
	}
	return nil
}

func (r *IngestRepo) FindFanByExternalHash(ctx context.Context, creatorID, hash string) (*domain.Fan, error) {
	row := r.conn(ctx).QueryRowContext(ctx, `
		SELECT`+fanColumns+`
		FROM fans
		WHERE creator_id = $1 AND external_id_hash = $2
		ORDER BY acquired_at
		LIMIT 1
	`, creatorID, hash)
	f, err := scanFan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find fan by hash: %w", err)
	}
	return &f, nil
}

func (r *IngestRepo) CreateRevenueEvent(ctx context.Context, e *domain.RevenueEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return r.InTx(ctx, func(ctx context.Context) error {
		q := r.conn(ctx)
		if _, err := q.ExecContext(ctx, `
			INSERT INTO revenue_events (id, fan_id, event_type, amount, currency, event_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.ID, e.FanID, string(e.EventType), e.Amount, e.Currency, e.EventAt); err != nil {
			return fmt.Errorf("insert revenue event: %w", err)
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE fans SET total_spend = total_spend + $1 WHERE id = $2`, e.Amount, e.FanID,
		); err != nil {
			return fmt.Errorf("update fan spend: %w", err)
		}
		return nil
	})
}
