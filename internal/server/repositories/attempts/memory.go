package attempts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

// MemoryRepository is a process-local Repository for tests and single-node
// development. State is lost on restart.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]models.AttemptRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]models.AttemptRecord)}
}

func (r *MemoryRepository) Get(_ context.Context, clientID string) (*models.AttemptRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[clientID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return rec.Clone(), nil
}

func (r *MemoryRepository) Update(_ context.Context, clientID string, fn UpdateFunc) (*models.AttemptRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cur *models.AttemptRecord
	if rec, ok := r.records[clientID]; ok {
		cur = rec.Clone()
	}

	next := fn(cur)
	next.ClientID = clientID
	r.records[clientID] = *next.Clone()

	return &next, nil
}

func (r *MemoryRepository) ListLocked(_ context.Context) ([]*models.AttemptRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.AttemptRecord
	for _, rec := range r.records {
		if rec.Locked {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return expiryOf(out[i]).Before(expiryOf(out[j]))
	})
	return out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, clientID)
	return nil
}

func (r *MemoryRepository) SweepExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, rec := range r.records {
		if rec.Locked && rec.LockExpiry != nil && rec.LockExpiry.Before(before) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

func expiryOf(rec *models.AttemptRecord) time.Time {
	if rec.LockExpiry == nil {
		return time.Time{}
	}
	return *rec.LockExpiry
}
