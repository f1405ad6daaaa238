// Package versions implements the bounded version-retention policy over an
// ordered, newest-first list of models.VersionEntry. Persistence lives in
// repositories/versions; deleting evicted files is the caller's job.
package versions

import (
	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

const DefaultCap = 3

// Registry applies the retention cap. Lists passed in are never modified.
type Registry struct {
	Cap int
}

func NewRegistry(capacity int) Registry {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return Registry{Cap: capacity}
}

// Add inserts entry at the front and cuts the list down to Cap. The cut-off
// tail is returned as evicted, oldest last.
func (r Registry) Add(list []models.VersionEntry, entry models.VersionEntry) (updated, evicted []models.VersionEntry) {
	next := make([]models.VersionEntry, 0, len(list)+1)
	next = append(next, entry)
	next = append(next, list...)

	if len(next) <= r.Cap {
		return next, nil
	}

	evicted = append([]models.VersionEntry(nil), next[r.Cap:]...)
	return next[:r.Cap:r.Cap], evicted
}

// Resolve returns the entry with the given id, or the newest entry when id
// is empty. It returns common.ErrorNotFound for an empty list or unknown id.
func (r Registry) Resolve(list []models.VersionEntry, id string) (models.VersionEntry, error) {
	if len(list) == 0 {
		return models.VersionEntry{}, common.ErrorNotFound
	}
	if id == "" {
		return list[0], nil
	}
	for _, v := range list {
		if v.ID == id {
			return v, nil
		}
	}
	return models.VersionEntry{}, common.ErrorNotFound
}

// Remove drops the entry with the given id and returns it.
func (r Registry) Remove(list []models.VersionEntry, id string) ([]models.VersionEntry, models.VersionEntry, error) {
	for i, v := range list {
		if v.ID == id {
			next := make([]models.VersionEntry, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			return next, v, nil
		}
	}
	return list, models.VersionEntry{}, common.ErrorNotFound
}

// Truncate enforces Cap on a list loaded from storage, e.g. after the cap
// was lowered in config.
func (r Registry) Truncate(list []models.VersionEntry) (kept, evicted []models.VersionEntry) {
	if len(list) <= r.Cap {
		return list, nil
	}
	return list[:r.Cap:r.Cap], append([]models.VersionEntry(nil), list[r.Cap:]...)
}
