package battles

import (
	"context"
	"time"

	"go-battles/internal/battles/routes"
	"go-battles/internal/battles/services"
	"go-battles/internal/names"
	"go-battles/pkg/config"
	"go-battles/pkg/database"
	"go-battles/pkg/module"
	"go-battles/pkg/sde"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

// Module runs the clustering engine and serves the battle query surface.
type Module struct {
	*module.BaseModule
	repository *services.Repository
	service    *services.Service
	engine     *services.Engine
}

// New creates the battles module. source is the killmail event store the
// engine drains; events and enrichment back the detail joins.
func New(mongodb *database.MongoDB, redis *database.Redis, source services.EventSource, events services.EventLoader, enrichment services.EnrichmentLoader, resolver names.Resolver, classifier sde.SDEService) *Module {
	repository := services.NewRepository(mongodb)
	service := services.NewService(repository, events, enrichment, resolver)

	params := services.ClusterParams{
		Window:   time.Duration(config.GetIntEnvClamped("WINDOW_MINUTES", 30, 1, 720)) * time.Minute,
		GapMax:   time.Duration(config.GetIntEnvClamped("GAP_MAX_MINUTES", 15, 1, 720)) * time.Minute,
		MinKills: config.GetIntEnvClamped("MIN_KILLS", 2, 1, 100),
	}
	delay := time.Duration(config.GetIntEnvClamped("PROCESSING_DELAY_MINUTES", 30, 0, 1440)) * time.Minute
	interval := time.Duration(config.GetIntEnvAlias(60000, 1000, 3600000, "CLUSTER_INTERVAL_MS", "INTERVAL_MS")) * time.Millisecond
	batchSize := config.GetIntEnvAlias(500, 1, 2000, "CLUSTER_BATCH_SIZE", "BATCH_SIZE")

	engine := services.NewEngine(source, repository, classifier, params, delay, interval, batchSize)

	return &Module{
		BaseModule: module.NewBaseModule("battles", mongodb, redis),
		repository: repository,
		service:    service,
		engine:     engine,
	}
}

// Initialize creates the battle-store indexes.
func (m *Module) Initialize(ctx context.Context) error {
	return m.repository.CreateIndexes(ctx)
}

// RegisterUnifiedRoutes registers the battle routes on the shared API.
func (m *Module) RegisterUnifiedRoutes(api huma.API, basePath string) {
	routes.RegisterBattleRoutes(api, basePath, m.service, m.engine)
}

// Routes implements module.Module; all routes are registered via Huma.
func (m *Module) Routes(r chi.Router) {}

// StartBackgroundTasks launches the clustering tick loop.
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	m.engine.Start(ctx)
}

// Stop halts the engine, letting an in-flight tick finish.
func (m *Module) Stop() {
	m.engine.Stop()
	m.BaseModule.Stop()
}

// GetService exposes the query service.
func (m *Module) GetService() *services.Service {
	return m.service
}
