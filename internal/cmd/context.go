package cmd

import (
	"context"

	"github.com/jmgilman/dexkeep/internal/collection"
	"github.com/jmgilman/dexkeep/internal/config"
	"github.com/jmgilman/dexkeep/internal/store"
)

type contextKey string

const (
	configKey     contextKey = "config"
	loaderKey     contextKey = "loader"
	managerKey    contextKey = "manager"
	repositoryKey contextKey = "repository"
)

// WithConfig adds the config to the context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// ConfigFromContext retrieves the config from context.
func ConfigFromContext(ctx context.Context) *config.Config {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok {
		return nil
	}
	return cfg
}

// WithLoader adds the config loader to the context.
func WithLoader(ctx context.Context, loader *config.Loader) context.Context {
	return context.WithValue(ctx, loaderKey, loader)
}

// LoaderFromContext retrieves the config loader from context.
func LoaderFromContext(ctx context.Context) *config.Loader {
	loader, ok := ctx.Value(loaderKey).(*config.Loader)
	if !ok {
		return nil
	}
	return loader
}

// WithManager adds the collection manager to the context.
func WithManager(ctx context.Context, mgr *collection.Manager) context.Context {
	return context.WithValue(ctx, managerKey, mgr)
}

// ManagerFromContext retrieves the collection manager from context.
func ManagerFromContext(ctx context.Context) *collection.Manager {
	mgr, ok := ctx.Value(managerKey).(*collection.Manager)
	if !ok {
		return nil
	}
	return mgr
}

// WithRepository adds the open repository to the context.
func WithRepository(ctx context.Context, repo store.Repository) context.Context {
	return context.WithValue(ctx, repositoryKey, repo)
}

// RepositoryFromContext retrieves the open repository from context.
func RepositoryFromContext(ctx context.Context) store.Repository {
	repo, ok := ctx.Value(repositoryKey).(store.Repository)
	if !ok {
		return nil
	}
	return repo
}
