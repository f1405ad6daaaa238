// Package attempts persists models.AttemptRecord per client identifier.
//
// Every backend implements Update as one atomic read-modify-write per key,
// so concurrent failures from the same client never lose an increment.
package attempts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

// UpdateFunc computes the next record from the stored one. current is nil
// when no record exists yet. It may be called more than once if the backend
// retries an optimistic transaction, so it must be free of side effects.
type UpdateFunc func(current *models.AttemptRecord) models.AttemptRecord

type Repository interface {
	// Get returns the stored record or common.ErrorNotFound.
	Get(ctx context.Context, clientID string) (*models.AttemptRecord, error)
	// Update atomically replaces the record with fn's result and returns it.
	Update(ctx context.Context, clientID string, fn UpdateFunc) (*models.AttemptRecord, error)
	// ListLocked returns every record with locked set, soonest expiry first.
	ListLocked(ctx context.Context) ([]*models.AttemptRecord, error)
	// Delete removes the record; deleting an absent record is not an error.
	Delete(ctx context.Context, clientID string) error
	// SweepExpired deletes locked records whose lock ended before the cutoff
	// and reports how many went away.
	SweepExpired(ctx context.Context, before time.Time) (int64, error)
}

// Patch is a partial record. Nil fields keep the stored value; the Clear
// flags null out the corresponding timestamp.
type Patch struct {
	Attempts         *int
	Locked           *bool
	LockExpiry       *time.Time
	ClearLockExpiry  bool
	LastAttempt      *time.Time
	ClearLastAttempt bool
}

// Apply merges p into cur (nil means a fresh record).
func (p Patch) Apply(clientID string, cur *models.AttemptRecord) models.AttemptRecord {
	next := models.AttemptRecord{ClientID: clientID}
	if cur != nil {
		next = *cur.Clone()
		next.ClientID = clientID
	}

	if p.Attempts != nil {
		next.Attempts = *p.Attempts
	}
	if p.Locked != nil {
		next.Locked = *p.Locked
	}
	if p.ClearLockExpiry {
		next.LockExpiry = nil
	} else if p.LockExpiry != nil {
		t := *p.LockExpiry
		next.LockExpiry = &t
	}
	if p.ClearLastAttempt {
		next.LastAttempt = nil
	} else if p.LastAttempt != nil {
		t := *p.LastAttempt
		next.LastAttempt = &t
	}
	return next
}

// Upsert applies a partial update atomically.
func Upsert(ctx context.Context, repo Repository, clientID string, p Patch) (*models.AttemptRecord, error) {
	return repo.Update(ctx, clientID, func(cur *models.AttemptRecord) models.AttemptRecord {
		return p.Apply(clientID, cur)
	})
}

// ResetPatch clears every field back to the never-attempted state.
func ResetPatch() Patch {
	zero, unlocked := 0, false
	return Patch{Attempts: &zero, Locked: &unlocked, ClearLockExpiry: true, ClearLastAttempt: true}
}

// Reset is Upsert with ResetPatch.
func Reset(ctx context.Context, repo Repository, clientID string) (*models.AttemptRecord, error) {
	return Upsert(ctx, repo, clientID, ResetPatch())
}

func toMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromMillis(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
