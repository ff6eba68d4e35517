package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/pkg/distlock"
	"github.com/funnellens/funnellens/internal/service/attribution"
)

// AttributionRepo implements attribution.Repository against PostgreSQL.
type AttributionRepo struct{ db *sql.DB }

// NewAttributionRepo creates a Postgres-backed attribution repository.
func NewAttributionRepo(db *sql.DB) *AttributionRepo { return &AttributionRepo{db: db} }

const postColumns = `
	id, creator_id, platform, platform_post_id, posted_at, content_type,
	views_cumulative, likes_cumulative, comments_cumulative, shares_cumulative, saves_cumulative,
	COALESCE(caption,''), COALESCE(url,''), duration_seconds, last_snapshot_at, created_at`

func scanPost(sc interface{ Scan(...any) error }) (domain.Post, error) {
	var (
		p            domain.Post
		contentType  sql.NullString
		lastSnapshot sql.NullTime
	)
	err := sc.Scan(
		&p.ID, &p.CreatorID, &p.Platform, &p.PlatformPostID, &p.PostedAt, &contentType,
		&p.ViewsCumulative, &p.LikesCumulative, &p.CommentsCumulative, &p.SharesCumulative, &p.SavesCumulative,
		&p.Caption, &p.URL, &p.DurationSeconds, &lastSnapshot, &p.CreatedAt,
	)
	if err != nil {
		return p, err
	}
	if contentType.Valid {
		ct := domain.ContentType(contentType.String)
		p.ContentType = &ct
	}
	if lastSnapshot.Valid {
		t := lastSnapshot.Time
		p.LastSnapshotAt = &t
	}
	return p, nil
}

func (r *AttributionRepo) ListPosts(ctx context.Context, creatorID string) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+postColumns+`
		FROM social_posts
		WHERE creator_id = $1
		ORDER BY posted_at, id
	`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var out []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *AttributionRepo) LatestSnapshots(ctx context.Context, creatorID string, at time.Time) (map[string]domain.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (post_id)
		       id, post_id, creator_id, snapshot_at, views, likes, comments, shares, saves, import_id
		FROM post_snapshots
		WHERE creator_id = $1 AND snapshot_at <= $2
		ORDER BY post_id, snapshot_at DESC
	`, creatorID, at)
	if err != nil {
		return nil, fmt.Errorf("latest snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Snapshot)
	for rows.Next() {
		var (
			s        domain.Snapshot
			importID sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.PostID, &s.CreatorID, &s.TakenAt,
			&s.Views, &s.Likes, &s.Comments, &s.Shares, &s.Saves, &importID); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if importID.Valid {
			s.ImportID = &importID.String
		}
		out[s.PostID] = s
	}
	return out, rows.Err()
}

func (r *AttributionRepo) CountFans(ctx context.Context, creatorID string, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM fans
		WHERE creator_id = $1 AND acquired_at >= $2 AND acquired_at < $3
	`, creatorID, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count fans: %w", err)
	}
	return n, nil
}

func (r *AttributionRepo) CountFansByContentType(ctx context.Context, creatorID string, from, to time.Time) (map[domain.ContentType]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT attributed_content_type, COUNT(*)
		FROM fans
		WHERE creator_id = $1 AND acquired_at >= $2 AND acquired_at < $3
		  AND attributed_content_type IS NOT NULL
		GROUP BY attributed_content_type
	`, creatorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("count fans by content type: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.ContentType]int)
	for rows.Next() {
		var (
			ct string
			n  int
		)
		if err := rows.Scan(&ct, &n); err != nil {
			return nil, fmt.Errorf("scan fan count: %w", err)
		}
		out[domain.ContentType(ct)] = n
	}
	return out, rows.Err()
}

func (r *AttributionRepo) SumRevenue(ctx context.Context, creatorID string, from, to time.Time) (float64, error) {
	var sum float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(re.amount), 0)
		FROM revenue_events re
		JOIN fans f ON f.id = re.fan_id
		WHERE f.creator_id = $1 AND re.event_at >= $2 AND re.event_at < $3
	`, creatorID, from, to).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum revenue: %w", err)
	}
	return sum, nil
}

func (r *AttributionRepo) ListConfounders(ctx context.Context, creatorID string, from, to time.Time) ([]domain.ConfounderEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, creator_id, event_type, event_start, event_end,
		       COALESCE(description,''), estimated_impact, created_at
		FROM confounder_events
		WHERE creator_id = $1 AND event_start <= $3
		  AND (event_end IS NULL OR event_end >= $2)
		ORDER BY event_start
	`, creatorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list confounders: %w", err)
	}
	defer rows.Close()

	var out []domain.ConfounderEvent
	for rows.Next() {
		var (
			e   domain.ConfounderEvent
			end sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.CreatorID, &e.EventType, &e.EventStart, &end,
			&e.Description, &e.EstimatedImpact, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan confounder: %w", err)
		}
		if end.Valid {
			t := end.Time
			e.EventEnd = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const fanColumns = `
	id, creator_id, COALESCE(external_id_hash,''), acquired_at, referral_link_id,
	attributed_content_type, attribution_method, attribution_confidence, attribution_weights,
	churned_at, total_spend`

func scanFan(sc interface{ Scan(...any) error }) (domain.Fan, error) {
	var (
		f          domain.Fan
		referral   sql.NullString
		ct, method sql.NullString
		confidence sql.NullFloat64
		weights    []byte
		churned    sql.NullTime
	)
	err := sc.Scan(&f.ID, &f.CreatorID, &f.ExternalIDHash, &f.AcquiredAt, &referral,
		&ct, &method, &confidence, &weights, &churned, &f.TotalSpend)
	if err != nil {
		return f, err
	}
	if referral.Valid {
		f.ReferralLinkID = &referral.String
	}
	if ct.Valid {
		v := domain.ContentType(ct.String)
		f.AttributedContentType = &v
	}
	if method.Valid {
		v := domain.AttributionMethod(method.String)
		f.AttributionMethod = &v
	}
	if confidence.Valid {
		f.AttributionConfidence = &confidence.Float64
	}
	if len(weights) > 0 {
		if err := json.Unmarshal(weights, &f.AttributionWeights); err != nil {
			return f, fmt.Errorf("decode attribution weights: %w", err)
		}
	}
	if churned.Valid {
		t := churned.Time
		f.ChurnedAt = &t
	}
	return f, nil
}

func (r *AttributionRepo) ListUnattributedFans(ctx context.Context, creatorID string) ([]domain.Fan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+fanColumns+`
		FROM fans
		WHERE creator_id = $1 AND attributed_content_type IS NULL
		ORDER BY acquired_at, id
	`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list unattributed fans: %w", err)
	}
	defer rows.Close()

	var out []domain.Fan
	for rows.Next() {
		f, err := scanFan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fan: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SaveFanAttributions writes every update in one transaction holding the
// creator's advisory transaction lock. Rows attributed by a concurrent pass
// are skipped by the IS NULL guard.
func (r *AttributionRepo) SaveFanAttributions(ctx context.Context, creatorID string, updates []attribution.FanAttribution) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin fan attribution: %w", err)
	}
	defer tx.Rollback()

	lockKey := distlock.AdvisoryKey(distlock.CreatorKey("attribute_fans", creatorID))
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return 0, fmt.Errorf("lock creator fans: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE fans
		SET attributed_content_type = $1, attribution_method = $2,
		    attribution_confidence = $3, attribution_weights = $4
		WHERE id = $5 AND creator_id = $6 AND attributed_content_type IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare fan attribution: %w", err)
	}
	defer stmt.Close()

	updated := 0
	for _, u := range updates {
		weights, err := json.Marshal(u.Weights)
		if err != nil {
			return 0, fmt.Errorf("encode weights for fan %s: %w", u.FanID, err)
		}
		res, err := stmt.ExecContext(ctx, string(u.ContentType), string(u.Method), u.Confidence, string(weights), u.FanID, creatorID)
		if err != nil {
			return 0, fmt.Errorf("update fan %s: %w", u.FanID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("update fan %s: %w", u.FanID, err)
		}
		updated += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit fan attribution: %w", err)
	}
	return updated, nil
}
