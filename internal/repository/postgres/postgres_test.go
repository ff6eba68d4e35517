package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/pkg/distlock"
	"github.com/funnellens/funnellens/internal/service/attribution"
)

const creatorID = "6f1c1c52-1b8e-4d0e-9c3a-1d2e3f4a5b6c"

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var (
	t0      = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	fanCols = []string{"id", "creator_id", "external_id_hash", "acquired_at", "referral_link_id",
		"attributed_content_type", "attribution_method", "attribution_confidence", "attribution_weights",
		"churned_at", "total_spend"}
)

func TestAttributionRepo_LatestSnapshots(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery(`SELECT DISTINCT ON \(post_id\)`).
		WithArgs(creatorID, t0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "creator_id", "snapshot_at",
			"views", "likes", "comments", "shares", "saves", "import_id"}).
			AddRow("s1", "p1", creatorID, t0.Add(-time.Hour), 1200, 40, 3, 1, 0, nil).
			AddRow("s2", "p2", creatorID, t0.Add(-2*time.Hour), 300, 5, 0, 0, 0, "imp-1"))

	snaps, err := NewAttributionRepo(db).LatestSnapshots(context.Background(), creatorID, t0)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(1200), snaps["p1"].Views)
	assert.Nil(t, snaps["p1"].ImportID)
	require.NotNil(t, snaps["p2"].ImportID)
	assert.Equal(t, "imp-1", *snaps["p2"].ImportID)
}

func TestAttributionRepo_CountsAndSums(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewAttributionRepo(db)
	ctx := context.Background()
	from, to := t0.Add(-48*time.Hour), t0

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM fans`).
		WithArgs(creatorID, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(30))
	n, err := repo.CountFans(ctx, creatorID, from, to)
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	mock.ExpectQuery(`GROUP BY attributed_content_type`).
		WithArgs(creatorID, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"attributed_content_type", "count"}).
			AddRow("storytime", 20).AddRow("grwm", 10))
	byType, err := repo.CountFansByContentType(ctx, creatorID, from, to)
	require.NoError(t, err)
	assert.Equal(t, map[domain.ContentType]int{domain.ContentStorytime: 20, domain.ContentGRWM: 10}, byType)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(re.amount\), 0\)`).
		WithArgs(creatorID, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(412.5))
	sum, err := repo.SumRevenue(ctx, creatorID, from, to)
	require.NoError(t, err)
	assert.InDelta(t, 412.5, sum, 1e-9)
}

func TestAttributionRepo_StoreErrorsAreWrapped(t *testing.T) {
	db, mock := setupTestDB(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM fans`).WillReturnError(boom)

	_, err := NewAttributionRepo(db).CountFans(context.Background(), creatorID, t0, t0)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "count fans")
}

func TestAttributionRepo_ListConfounders(t *testing.T) {
	db, mock := setupTestDB(t)
	end := t0.Add(time.Hour)
	mock.ExpectQuery(`FROM confounder_events`).
		WithArgs(creatorID, t0.Add(-48*time.Hour), t0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "creator_id", "event_type", "event_start", "event_end",
			"description", "estimated_impact", "created_at"}).
			AddRow("c1", creatorID, "promotion", t0.Add(-24*time.Hour), nil, "50% off", "high", t0).
			AddRow("c2", creatorID, "collab", t0.Add(-2*time.Hour), end, "", "medium", t0))

	events, err := NewAttributionRepo(db).ListConfounders(context.Background(), creatorID, t0.Add(-48*time.Hour), t0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.ConfounderPromotion, events[0].EventType)
	assert.Nil(t, events[0].EventEnd)
	require.NotNil(t, events[1].EventEnd)
	assert.True(t, events[1].EventEnd.Equal(end))
}

func TestAttributionRepo_ListUnattributedFans(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery(`WHERE creator_id = \$1 AND attributed_content_type IS NULL`).
		WithArgs(creatorID).
		WillReturnRows(sqlmock.NewRows(fanCols).
			AddRow("f1", creatorID, "abc", t0, nil, nil, nil, nil, nil, nil, 0.0).
			AddRow("f2", creatorID, "", t0.Add(time.Minute), nil, "grwm", "weighted_window", 0.6, `{"grwm":1}`, nil, 25.0))

	fans, err := NewAttributionRepo(db).ListUnattributedFans(context.Background(), creatorID)
	require.NoError(t, err)
	require.Len(t, fans, 2)
	assert.False(t, fans[0].IsAttributed())
	assert.Equal(t, "abc", fans[0].ExternalIDHash)
	require.True(t, fans[1].IsAttributed())
	assert.Equal(t, map[domain.ContentType]float64{domain.ContentGRWM: 1}, fans[1].AttributionWeights)
}

func TestAttributionRepo_SaveFanAttributions(t *testing.T) {
	db, mock := setupTestDB(t)
	lockKey := distlock.AdvisoryKey(distlock.CreatorKey("attribute_fans", creatorID))

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).WithArgs(lockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(`UPDATE fans`)
	prep.ExpectExec().
		WithArgs("storytime", "weighted_window", 0.675, `{"grwm":0.25,"storytime":0.75}`, "f1", creatorID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("grwm", "weighted_window", 0.55, `{"grwm":0.5,"storytime":0.5}`, "f2", creatorID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := NewAttributionRepo(db).SaveFanAttributions(context.Background(), creatorID, []attribution.FanAttribution{
		{FanID: "f1", ContentType: domain.ContentStorytime, Method: domain.AttributionWeightedWindow, Confidence: 0.675,
			Weights: map[domain.ContentType]float64{domain.ContentStorytime: 0.75, domain.ContentGRWM: 0.25}},
		{FanID: "f2", ContentType: domain.ContentGRWM, Method: domain.AttributionWeightedWindow, Confidence: 0.55,
			Weights: map[domain.ContentType]float64{domain.ContentStorytime: 0.5, domain.ContentGRWM: 0.5}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a fan attributed concurrently is not counted")
}

func TestAttributionRepo_SaveFanAttributions_RollsBack(t *testing.T) {
	db, mock := setupTestDB(t)
	boom := errors.New("deadlock detected")

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(`UPDATE fans`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(boom)
	mock.ExpectRollback()

	n, err := NewAttributionRepo(db).SaveFanAttributions(context.Background(), creatorID, []attribution.FanAttribution{
		{FanID: "f1", ContentType: domain.ContentOther, Method: domain.AttributionWeightedWindow, Confidence: 0.5},
		{FanID: "f2", ContentType: domain.ContentOther, Method: domain.AttributionWeightedWindow, Confidence: 0.5},
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)
}

func TestAttributionRepo_SaveFanAttributions_Empty(t *testing.T) {
	db, _ := setupTestDB(t)
	n, err := NewAttributionRepo(db).SaveFanAttributions(context.Background(), creatorID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestRepo_UpsertPostReturnsStoredID(t *testing.T) {
	db, mock := setupTestDB(t)
	ct := domain.ContentStorytime
	p := &domain.Post{CreatorID: creatorID, Platform: domain.PlatformTikTok, PlatformPostID: "7301",
		PostedAt: t0, ContentType: &ct, ViewsCumulative: 5000}

	mock.ExpectQuery(`ON CONFLICT \(creator_id, platform, platform_post_id\) DO UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-post"))

	id, err := NewIngestRepo(db).UpsertPost(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "existing-post", id)
}

func TestIngestRepo_ImportLifecycle(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewIngestRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM imports WHERE file_hash = \$1\)`).
		WithArgs("hash").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	exists, err := repo.ImportExists(ctx, "hash")
	require.NoError(t, err)
	assert.False(t, exists)

	imp := &domain.Import{CreatorID: creatorID, ImportType: domain.ImportFans, FileName: "fans.csv",
		FileHash: "hash", SnapshotAt: t0, ImportedAt: t0}
	mock.ExpectExec(`INSERT INTO imports`).
		WithArgs(sqlmock.AnyArg(), creatorID, "fans", "fans.csv", "hash", 0, 0, 0, t0, t0, "[]").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.CreateImport(ctx, imp))
	assert.NotEmpty(t, imp.ID)

	imp.RowsTotal, imp.RowsImported, imp.RowsSkipped = 2, 1, 1
	imp.Errors = []domain.ImportRowError{{Row: 1, Error: "bad date"}}
	mock.ExpectExec(`UPDATE imports`).
		WithArgs(2, 1, 1, `[{"row":1,"error":"bad date"}]`, imp.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.CompleteImport(ctx, imp))

	mock.ExpectExec(`UPDATE imports`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.CompleteImport(ctx, &domain.Import{ID: "missing"}), ErrNotFound)
}

func TestIngestRepo_FindFanByExternalHash(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewIngestRepo(db)

	mock.ExpectQuery(`external_id_hash = \$2`).WithArgs(creatorID, "nope").
		WillReturnRows(sqlmock.NewRows(fanCols))
	f, err := repo.FindFanByExternalHash(context.Background(), creatorID, "nope")
	require.NoError(t, err)
	assert.Nil(t, f)

	mock.ExpectQuery(`external_id_hash = \$2`).WithArgs(creatorID, "abc").
		WillReturnRows(sqlmock.NewRows(fanCols).AddRow("f1", creatorID, "abc", t0, nil, nil, nil, nil, nil, nil, 0.0))
	f, err = repo.FindFanByExternalHash(context.Background(), creatorID, "abc")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "f1", f.ID)
}

func TestIngestRepo_CreateRevenueEvent(t *testing.T) {
	db, mock := setupTestDB(t)
	e := &domain.RevenueEvent{FanID: "f1", EventType: domain.RevenueTip, Amount: 20, Currency: "USD", EventAt: t0}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO revenue_events`).
		WithArgs(sqlmock.AnyArg(), "f1", "tip", 20.0, "USD", t0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE fans SET total_spend = total_spend \+ \$1`).
		WithArgs(20.0, "f1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewIngestRepo(db).CreateRevenueEvent(context.Background(), e))
}

func TestCreatorRepo(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewCreatorRepo(db)
	cols := []string{"id", "agency_id", "name", "tiktok_handle", "instagram_handle", "notification_email", "status", "created_at"}

	mock.ExpectQuery(`FROM creators WHERE status = \$1 ORDER BY name, id`).
		WithArgs("active").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(creatorID, "a1", "Ava", "@ava", "", "mgr@agency.test", "active", t0))
	creators, err := repo.ListCreators(context.Background(), domain.CreatorActive)
	require.NoError(t, err)
	require.Len(t, creators, 1)
	assert.Equal(t, "mgr@agency.test", creators[0].NotificationEmail)

	mock.ExpectQuery(`FROM creators WHERE id = \$1`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(cols))
	_, err = repo.GetCreator(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIngestRepo_InTxSharesOneTransaction(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewIngestRepo(db)
	e := &domain.RevenueEvent{FanID: "f1", EventType: domain.RevenueTip, Amount: 5, Currency: "USD", EventAt: t0}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO fans`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO revenue_events`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE fans SET total_spend`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(ctx context.Context) error {
		if err := repo.CreateFan(ctx, &domain.Fan{CreatorID: creatorID, AcquiredAt: t0}); err != nil {
			return err
		}
		return repo.CreateRevenueEvent(ctx, e)
	})
	require.NoError(t, err)
}

func TestIngestRepo_InTxRollsBackOnError(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewIngestRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO imports`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO fans`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO fans`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(ctx context.Context) error {
		imp := &domain.Import{CreatorID: creatorID, ImportType: domain.ImportFans, FileHash: "h", SnapshotAt: t0, ImportedAt: t0}
		if err := repo.CreateImport(ctx, imp); err != nil {
			return err
		}
		for i := 0; i < 2; i++ {
			if err := repo.CreateFan(ctx, &domain.Fan{CreatorID: creatorID, AcquiredAt: t0}); err != nil {
				return err
			}
		}
		return nil
	})
	assert.ErrorContains(t, err, "connection reset")
}
