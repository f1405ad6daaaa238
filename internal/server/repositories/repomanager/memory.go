package repomanager

import (
	"context"

	"github.com/dmitrijs2005/resumegate/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/users"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/versions"
)

type MemoryRepositoryManager struct {
	attempts *attempts.MemoryRepository
	versions *versions.MemoryRepository
	users    *users.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		attempts: attempts.NewMemoryRepository(),
		versions: versions.NewMemoryRepository(),
		users:    users.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) Attempts() attempts.Repository { return m.attempts }
func (m *MemoryRepositoryManager) Versions() versions.Repository { return m.versions }
func (m *MemoryRepositoryManager) Users() users.Repository       { return m.users }

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }
func (m *MemoryRepositoryManager) Close() error                        { return nil }
