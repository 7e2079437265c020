// Package factory builds the pluggable storage and repository backends
// named in the configuration.
package factory

import (
	"context"
	"fmt"

	"github.com/anime-shed/idcard-inspector-go/internal/config"
	"github.com/anime-shed/idcard-inspector-go/internal/repository"
	"github.com/anime-shed/idcard-inspector-go/internal/storage"
)

// StorageType represents different types of artifact storage backends
type StorageType string

const (
	// LocalStorage keeps artifacts in a directory
	LocalStorage StorageType = "local"
	// AzureStorage keeps artifacts in an Azure blob container
	AzureStorage StorageType = "azure"
)

// RepositoryType represents the validation report backends
type RepositoryType string

const (
	// NoRepository disables report history
	NoRepository RepositoryType = "none"
	// SQLiteRepository stores reports in a local SQLite file
	SQLiteRepository RepositoryType = "sqlite"
	// PostgresRepository stores reports in PostgreSQL
	PostgresRepository RepositoryType = "postgres"
)

// StorageFactory creates artifact stores
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ArtifactStore, error)
}

// RepositoryFactory creates validation repositories. A nil repository with
// a nil error means history is disabled.
type RepositoryFactory interface {
	CreateRepository(ctx context.Context, repoType RepositoryType) (repository.ValidationRepository, error)
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ArtifactStore, error) {
	switch storageType {
	case LocalStorage:
		return storage.NewLocalStore(f.cfg.ArtifactDir)
	case AzureStorage:
		return storage.NewAzureStore(f.cfg.AzureAccountName, f.cfg.AzureAccountKey, f.cfg.AzureContainer)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

type repositoryFactory struct {
	cfg *config.Config
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config) RepositoryFactory {
	return &repositoryFactory{cfg: cfg}
}

// CreateRepository opens the repository for repoType
func (f *repositoryFactory) CreateRepository(ctx context.Context, repoType RepositoryType) (repository.ValidationRepository, error) {
	switch repoType {
	case NoRepository, "":
		return nil, nil
	case SQLiteRepository:
		return repository.OpenSQLite(ctx, f.cfg.SQLitePath)
	case PostgresRepository:
		return repository.OpenPostgres(ctx, f.cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported repository type: %s", repoType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	StorageFactory    StorageFactory
	RepositoryFactory RepositoryFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		StorageFactory:    NewStorageFactory(cfg),
		RepositoryFactory: NewRepositoryFactory(cfg),
	}
}
