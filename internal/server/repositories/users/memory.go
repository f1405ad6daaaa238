package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

type MemoryRepository struct {
	mu       sync.Mutex
	byID     map[string]models.User
	byGoogle map[string]string
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:     make(map[string]models.User),
		byGoogle: make(map[string]string),
		now:      time.Now,
	}
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	r.mu.Lock()
	id, ok := r.byGoogle[googleID]
	r.mu.Unlock()

	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryRepository) Upsert(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	out := *user

	if id, ok := r.byGoogle[user.GoogleID]; ok {
		prev := r.byID[id]
		out.ID = prev.ID
		out.DriveFolderID = prev.DriveFolderID
		out.CreatedAt = prev.CreatedAt
	} else {
		out.ID = uuid.NewString()
		out.CreatedAt = now
	}
	out.UpdatedAt = now

	r.byID[out.ID] = out
	r.byGoogle[out.GoogleID] = out.ID
	return &out, nil
}

func (r *MemoryRepository) SetDriveFolder(_ context.Context, id, folderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.DriveFolderID = folderID
	u.UpdatedAt = r.now().UTC()
	r.byID[id] = u
	return nil
}
