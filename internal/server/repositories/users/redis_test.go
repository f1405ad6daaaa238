package users

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

func newMiniRedisRepo(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client, ""), mr
}

func TestRedisRepository_UpsertRecoversDanglingIndex(t *testing.T) {
	repo, mr := newMiniRedisRepo(t)
	repo.newID = func() string { return "user-1" }
	ctx := context.Background()

	// index left behind by a write whose hash never landed
	require.NoError(t, mr.Set("resumegate:users:google:g1", "ghost-id"))

	for i := 0; i < 3; i++ {
		u, err := repo.Upsert(ctx, &models.User{GoogleID: "g1", Email: "a@example.com", RefreshToken: "enc"})
		require.NoError(t, err)
		assert.Equal(t, "user-1", u.ID)
	}

	got, err := mr.Get("resumegate:users:google:g1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got)

	u, err := repo.GetByGoogleID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", u.ID)
	assert.Equal(t, "a@example.com", u.Email)
	assert.False(t, mr.Exists("resumegate:users:ghost-id"))
}

func TestRedisRepository_UpsertWritesIndexAndHashTogether(t *testing.T) {
	repo, mr := newMiniRedisRepo(t)
	repo.newID = func() string { return "user-7" }

	_, err := repo.Upsert(context.Background(), &models.User{GoogleID: "g7", Email: "b@example.com", Name: "Bea"})
	require.NoError(t, err)

	idx, err := mr.Get("resumegate:users:google:g7")
	require.NoError(t, err)
	assert.Equal(t, "user-7", idx)
	assert.Equal(t, "b@example.com", mr.HGet("resumegate:users:user-7", "email"))
	assert.Equal(t, "g7", mr.HGet("resumegate:users:user-7", "googleId"))
}

func TestRedisRepository_CorruptUserHash(t *testing.T) {
	repo, mr := newMiniRedisRepo(t)
	mr.HSet("resumegate:users:u1", "googleId", "g1", "createdAt", "yesterday")

	_, err := repo.GetByID(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis error: decode createdAt")
}
