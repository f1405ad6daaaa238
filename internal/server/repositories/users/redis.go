package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

const (
	defaultRedisPrefix = "resumegate:users"
	maxUpsertRetries   = 16
)

// RedisRepository keeps a hash per user plus a google id -> user id index.
type RedisRepository struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
	newID  func() string
}

func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisRepository{client: client, prefix: prefix, now: time.Now, newID: uuid.NewString}
}

func (r *RedisRepository) userKey(id string) string    { return r.prefix + ":" + id }
func (r *RedisRepository) googleKey(gid string) string { return r.prefix + ":google:" + gid }

func (r *RedisRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	m, err := r.client.HGetAll(ctx, r.userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(m) == 0 {
		return nil, common.ErrorNotFound
	}
	u, err := decodeUser(id, m)
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return u, nil
}

func (r *RedisRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	id, err := r.client.Get(ctx, r.googleKey(googleID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Upsert writes the user hash and the google id index in one transaction
// watched on both keys. An index entry whose hash is gone is treated as
// absent and overwritten.
func (r *RedisRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	gkey := r.googleKey(user.GoogleID)
	var out models.User

	txf := func(tx *redis.Tx) error {
		existing, err := r.lookup(ctx, tx, gkey)
		if err != nil {
			return err
		}

		now := time.UnixMilli(r.now().UnixMilli()).UTC()
		if existing == nil {
			out = *user
			out.ID = r.newID()
			out.CreatedAt = now
		} else {
			out = *existing
			out.Email = user.Email
			out.Name = user.Name
			out.Picture = user.Picture
			out.RefreshToken = user.RefreshToken
		}
		out.UpdatedAt = now

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, gkey, out.ID, 0)
			pipe.HSet(ctx, r.userKey(out.ID), encodeUser(&out))
			return nil
		})
		return err
	}

	for i := 0; i < maxUpsertRetries; i++ {
		err := r.client.Watch(ctx, txf, gkey)
		if err == nil {
			return &out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return nil, fmt.Errorf("redis error: upsert %s: too many concurrent writers", user.GoogleID)
}

// lookup resolves the index inside tx and adds the user hash to the watch
// set before reading it, so a concurrent SetDriveFolder aborts the write.
func (r *RedisRepository) lookup(ctx context.Context, tx *redis.Tx, gkey string) (*models.User, error) {
	id, err := tx.Get(ctx, gkey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ukey := r.userKey(id)
	if err := tx.Watch(ctx, ukey).Err(); err != nil {
		return nil, err
	}
	m, err := tx.HGetAll(ctx, ukey).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return decodeUser(id, m)
}

func (r *RedisRepository) SetDriveFolder(ctx context.Context, id, folderID string) error {
	n, err := r.client.Exists(ctx, r.userKey(id)).Result()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	err = r.client.HSet(ctx, r.userKey(id),
		"driveFolderId", folderID,
		"updatedAt", r.now().UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func encodeUser(u *models.User) map[string]any {
	return map[string]any{
		"googleId":      u.GoogleID,
		"email":         u.Email,
		"name":          u.Name,
		"picture":       u.Picture,
		"refreshToken":  u.RefreshToken,
		"driveFolderId": u.DriveFolderID,
		"createdAt":     u.CreatedAt.UnixMilli(),
		"updatedAt":     u.UpdatedAt.UnixMilli(),
	}
}

func decodeUser(id string, m map[string]string) (*models.User, error) {
	u := &models.User{
		ID:            id,
		GoogleID:      m["googleId"],
		Email:         m["email"],
		Name:          m["name"],
		Picture:       m["picture"],
		RefreshToken:  m["refreshToken"],
		DriveFolderID: m["driveFolderId"],
	}
	for field, dst := range map[string]*time.Time{"createdAt": &u.CreatedAt, "updatedAt": &u.UpdatedAt} {
		v, ok := m[field]
		if !ok {
			continue
		}
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", field, err)
		}
		*dst = time.UnixMilli(ms).UTC()
	}
	return u, nil
}
