package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLock_ExclusiveUntilReleased(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	key := CreatorKey("attribute_fans", "c1")

	first := NewRedisLock(client, key, time.Minute)
	second := NewRedisLock(client, key, time.Minute)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, second.Release(ctx), ErrNotHeld, "a non-owner cannot release")
	require.NoError(t, first.Release(ctx))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ExpiresAfterTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	first := NewRedisLock(client, "k", time.Second)
	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	second := NewRedisLock(client, "k", time.Second)
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, first.Extend(ctx, time.Minute), ErrNotHeld)
}

func TestRedisLock_Extend(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	l := NewRedisLock(client, "k", time.Second)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Extend(ctx, time.Minute))
	mr.FastForward(10 * time.Second)
	assert.True(t, mr.Exists("lock:k"))
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	key := CreatorKey("attribute_fans", "c1")
	id := AdvisoryKey(key)

	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectQuery(`SELECT pg_advisory_unlock\(\$1\)`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"pg_advisory_unlock"}).AddRow(true))

	l := NewPGAdvisoryLock(db, key)
	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(context.Background()))
	assert.ErrorIs(t, l.Release(context.Background()), ErrNotHeld)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_Contended(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := NewPGAdvisoryLock(db, "k").Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewLock_PicksBackend(t *testing.T) {
	_, client := setupTestRedis(t)
	assert.IsType(t, &RedisLock{}, NewFactory(client, nil, time.Minute).New("k"))
	assert.IsType(t, &PGAdvisoryLock{}, NewFactory(nil, nil, time.Minute).New("k"))
}

func TestAdvisoryKey_Deterministic(t *testing.T) {
	assert.Equal(t, AdvisoryKey("a"), AdvisoryKey("a"))
	assert.NotEqual(t, AdvisoryKey("a"), AdvisoryKey("b"))
	assert.Equal(t, "funnellens:attribute_fans:c1", CreatorKey("attribute_fans", "c1"))
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := Dial(context.Background(), "redis://"+addr)
	require.NoError(t, err)
	client.Close()

	client, err = Dial(context.Background(), addr)
	require.NoError(t, err)
	client.Close()

	mr.Close()
	_, err = Dial(context.Background(), addr)
	assert.Error(t, err)
}
