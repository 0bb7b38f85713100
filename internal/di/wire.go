//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"mindmap-backend/internal/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideCatalog,
	ProvideEvaluator,
	ProvideRowStore,
	ProvideViewRegistry,
	ProvideMetrics,
	ProvideCloudWatch,
	ProvideRecorder,
	ProvideTracing,
	ProvideService,
	ProvideEmitter,
	ProvideJWTValidator,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
