// Package versions stores version lists as one JSON document per key.
// The shared list lives under common.VersionsMetadataKey; per-user lists
// under common.TenantVersionsKey.
package versions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

// MutateFunc receives the stored list (empty when absent) and returns the
// replacement. Returning an error aborts the write. Backends may call it
// more than once.
type MutateFunc func(current []models.VersionEntry) ([]models.VersionEntry, error)

type Repository interface {
	// Load returns the stored list, or an empty list when nothing is stored.
	Load(ctx context.Context, key string) ([]models.VersionEntry, error)
	// Update atomically replaces the list with fn's result.
	Update(ctx context.Context, key string, fn MutateFunc) ([]models.VersionEntry, error)
}

func encode(list []models.VersionEntry) (string, error) {
	if list == nil {
		list = []models.VersionEntry{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode versions: %w", err)
	}
	return string(b), nil
}

func decode(s string) ([]models.VersionEntry, error) {
	var list []models.VersionEntry
	if s == "" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, fmt.Errorf("decode versions: %w", err)
	}
	return list, nil
}

func clone(list []models.VersionEntry) []models.VersionEntry {
	out := make([]models.VersionEntry, len(list))
	copy(out, list)
	return out
}
