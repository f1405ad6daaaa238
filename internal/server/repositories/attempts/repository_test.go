package attempts

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/dbx"
	"github.com/dmitrijs2005/resumegate/internal/server/migrations"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

func newSQLiteRepo(t *testing.T) *SQLRepository {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(context.Background(), db, dbx.SQLite))
	return NewSQLRepository(db, dbx.SQLite)
}

func newRedisRepo(t *testing.T) *RedisRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client, WithPrefix("test:attempts"))
}

func backends() map[string]func(t *testing.T) Repository {
	return map[string]func(t *testing.T) Repository{
		"memory": func(*testing.T) Repository { return NewMemoryRepository() },
		"sqlite": func(t *testing.T) Repository { return newSQLiteRepo(t) },
		"redis":  func(t *testing.T) Repository { return newRedisRepo(t) },
	}
}

func ms(t time.Time) time.Time { return time.UnixMilli(t.UnixMilli()).UTC() }

func TestRepository_Contract(t *testing.T) {
	now := ms(time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))

	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("get missing", func(t *testing.T) {
				repo := mk(t)
				_, err := repo.Get(ctx, "10.0.0.1")
				assert.ErrorIs(t, err, common.ErrorNotFound)
			})

			t.Run("update sees nil then stored record", func(t *testing.T) {
				repo := mk(t)

				var seen []*models.AttemptRecord
				inc := func(cur *models.AttemptRecord) models.AttemptRecord {
					seen = append(seen, cur.Clone())
					next := models.AttemptRecord{}
					if cur != nil {
						next = *cur
					}
					next.Attempts++
					at := now
					next.LastAttempt = &at
					return next
				}

				_, err := repo.Update(ctx, "10.0.0.1", inc)
				require.NoError(t, err)
				got, err := repo.Update(ctx, "10.0.0.1", inc)
				require.NoError(t, err)

				require.Len(t, seen, 2)
				assert.Nil(t, seen[0])
				require.NotNil(t, seen[1])
				assert.Equal(t, 1, seen[1].Attempts)

				assert.Equal(t, "10.0.0.1", got.ClientID)
				assert.Equal(t, 2, got.Attempts)

				stored, err := repo.Get(ctx, "10.0.0.1")
				require.NoError(t, err)
				assert.Equal(t, 2, stored.Attempts)
				require.NotNil(t, stored.LastAttempt)
				assert.True(t, now.Equal(*stored.LastAttempt))
				assert.Nil(t, stored.LockExpiry)
			})

			t.Run("patch keeps untouched fields", func(t *testing.T) {
				repo := mk(t)
				two, locked := 2, true
				exp := now.Add(time.Hour)

				_, err := Upsert(ctx, repo, "c", Patch{Attempts: &two, LastAttempt: &now})
				require.NoError(t, err)
				got, err := Upsert(ctx, repo, "c", Patch{Locked: &locked, LockExpiry: &exp})
				require.NoError(t, err)

				assert.Equal(t, 2, got.Attempts)
				assert.True(t, got.Locked)
				require.NotNil(t, got.LastAttempt)
				assert.True(t, now.Equal(*got.LastAttempt))
			})

			t.Run("reset clears everything", func(t *testing.T) {
				repo := mk(t)
				three, locked := 3, true
				exp := now.Add(time.Hour)
				_, err := Upsert(ctx, repo, "c", Patch{Attempts: &three, Locked: &locked, LockExpiry: &exp, LastAttempt: &now})
				require.NoError(t, err)

				_, err = Reset(ctx, repo, "c")
				require.NoError(t, err)

				got, err := repo.Get(ctx, "c")
				require.NoError(t, err)
				assert.Equal(t, models.AttemptRecord{ClientID: "c"}, *got)
			})

			t.Run("list locked and sweep", func(t *testing.T) {
				repo := mk(t)
				lock := func(id string, exp time.Time) {
					three, locked := 3, true
					_, err := Upsert(ctx, repo, id, Patch{Attempts: &three, Locked: &locked, LockExpiry: &exp})
					require.NoError(t, err)
				}
				lock("late", now.Add(2*time.Hour))
				lock("early", now.Add(-time.Hour))
				one := 1
				_, err := Upsert(ctx, repo, "open", Patch{Attempts: &one})
				require.NoError(t, err)

				locked, err := repo.ListLocked(ctx)
				require.NoError(t, err)
				require.Len(t, locked, 2)
				assert.Equal(t, "early", locked[0].ClientID)
				assert.Equal(t, "late", locked[1].ClientID)

				n, err := repo.SweepExpired(ctx, now)
				require.NoError(t, err)
				assert.EqualValues(t, 1, n)

				_, err = repo.Get(ctx, "early")
				assert.ErrorIs(t, err, common.ErrorNotFound)
				_, err = repo.Get(ctx, "late")
				assert.NoError(t, err)
				_, err = repo.Get(ctx, "open")
				assert.NoError(t, err)
			})

			t.Run("unlock drops from locked list", func(t *testing.T) {
				repo := mk(t)
				three, locked := 3, true
				exp := now.Add(time.Hour)
				_, err := Upsert(ctx, repo, "c", Patch{Attempts: &three, Locked: &locked, LockExpiry: &exp})
				require.NoError(t, err)
				_, err = Reset(ctx, repo, "c")
				require.NoError(t, err)

				list, err := repo.ListLocked(ctx)
				require.NoError(t, err)
				assert.Empty(t, list)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				repo := mk(t)
				one := 1
				_, err := Upsert(ctx, repo, "c", Patch{Attempts: &one})
				require.NoError(t, err)

				require.NoError(t, repo.Delete(ctx, "c"))
				require.NoError(t, repo.Delete(ctx, "c"))
				_, err = repo.Get(ctx, "c")
				assert.ErrorIs(t, err, common.ErrorNotFound)
			})

			t.Run("concurrent updates do not lose increments", func(t *testing.T) {
				repo := mk(t)
				const workers = 8

				var wg sync.WaitGroup
				errs := make(chan error, workers)
				for i := 0; i < workers; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, err := repo.Update(ctx, "burst", func(cur *models.AttemptRecord) models.AttemptRecord {
							next := models.AttemptRecord{}
							if cur != nil {
								next = *cur
							}
							next.Attempts++
							return next
						})
						errs <- err
					}()
				}
				wg.Wait()
				close(errs)
				for err := range errs {
					require.NoError(t, err)
				}

				got, err := repo.Get(ctx, "burst")
				require.NoError(t, err)
				assert.Equal(t, workers, got.Attempts)
			})
		})
	}
}

func TestPatch_ApplyOnNil(t *testing.T) {
	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	locked := true
	got := Patch{Locked: &locked, LockExpiry: &exp}.Apply("x", nil)

	assert.Equal(t, "x", got.ClientID)
	assert.Zero(t, got.Attempts)
	assert.True(t, got.Locked)
	require.NotNil(t, got.LockExpiry)

	exp = exp.Add(time.Hour)
	assert.NotEqual(t, exp, *got.LockExpiry, "patch value must be copied")
}

func TestPatch_ClearWinsOverValue(t *testing.T) {
	at := time.Now()
	cur := &models.AttemptRecord{ClientID: "x", LastAttempt: &at, LockExpiry: &at}
	got := Patch{LastAttempt: &at, ClearLastAttempt: true, ClearLockExpiry: true}.Apply("x", cur)
	assert.Nil(t, got.LastAttempt)
	assert.Nil(t, got.LockExpiry)
	assert.NotNil(t, cur.LastAttempt)
}

func TestSQLRepository_PanickingUpdateLeavesNoRow(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_, _ = repo.Update(ctx, "5.5.5.5", func(*models.AttemptRecord) models.AttemptRecord {
			panic("policy bug")
		})
	})

	_, err := repo.Get(ctx, "5.5.5.5")
	require.ErrorIs(t, err, common.ErrorNotFound, "the row inserted before the callback must be rolled back")

	got, err := repo.Update(ctx, "5.5.5.5", func(cur *models.AttemptRecord) models.AttemptRecord {
		assert.Nil(t, cur)
		return models.AttemptRecord{Attempts: 1}
	})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
}
