package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/funnellens/funnellens/internal/domain"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// CreatorRepo reads creators.
type CreatorRepo struct{ db *sql.DB }

// NewCreatorRepo creates a Postgres-backed creator repository.
func NewCreatorRepo(db *sql.DB) *CreatorRepo { return &CreatorRepo{db: db} }

const creatorColumns = `
	id, agency_id, name, COALESCE(tiktok_handle,''), COALESCE(instagram_handle,''),
	COALESCE(notification_email,''), status, created_at`

func scanCreator(sc interface{ Scan(...any) error }) (domain.Creator, error) {
	var c domain.Creator
	err := sc.Scan(&c.ID, &c.AgencyID, &c.Name, &c.TikTokHandle, &c.InstagramHandle,
		&c.NotificationEmail, &c.Status, &c.CreatedAt)
	return c, err
}

func (r *CreatorRepo) GetCreator(ctx context.Context, id string) (*domain.Creator, error) {
	c, err := scanCreator(r.db.QueryRowContext(ctx,
		`SELECT`+creatorColumns+` FROM creators WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("creator %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get creator: %w", err)
	}
	return &c, nil
}

// ListCreators returns creators with the given status, or all creators when
// status is empty, ordered by name.
func (r *CreatorRepo) ListCreators(ctx context.Context, status domain.CreatorStatus) ([]domain.Creator, error) {
	q := `SELECT` + creatorColumns + ` FROM creators`
	var args []any
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, string(status))
	}
	q += ` ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list creators: %w", err)
	}
	defer rows.Close()

	var out []domain.Creator
	for rows.Next() {
		c, err := scanCreator(rows)
		if err != nil {
			return nil, fmt.Errorf("scan creator: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
