package versions

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

type MemoryRepository struct {
	mu    sync.Mutex
	lists map[string][]models.VersionEntry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{lists: make(map[string][]models.VersionEntry)}
}

func (r *MemoryRepository) Load(_ context.Context, key string) ([]models.VersionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return clone(r.lists[key]), nil
}

func (r *MemoryRepository) Update(_ context.Context, key string, fn MutateFunc) ([]models.VersionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := fn(clone(r.lists[key]))
	if err != nil {
		return nil, err
	}
	r.lists[key] = clone(next)
	return next, nil
}
