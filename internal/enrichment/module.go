package enrichment

import (
	"context"
	"log/slog"
	"time"

	"go-battles/internal/enrichment/routes"
	"go-battles/internal/enrichment/services"
	"go-battles/pkg/config"
	"go-battles/pkg/database"
	"go-battles/pkg/module"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

// Module runs the enrichment worker pool and its crash-recovery sweeper.
type Module struct {
	*module.BaseModule
	repository *services.Repository
	worker     *services.Worker
	sweeper    *services.Sweeper
}

// New creates the enrichment module. events loads stored killmails and
// resolver batches identities through the gateway.
func New(mongodb *database.MongoDB, redis *database.Redis, events services.EventLoader, resolver services.EntityResolver) *Module {
	repository := services.NewRepository(mongodb)

	workers := config.GetIntEnvClamped("ENRICH_WORKERS", 4, 1, 64)
	maxAttempts := config.GetIntEnvClamped("ENRICH_MAX_ATTEMPTS", 5, 1, 20)
	staleAfter := config.GetDurationEnv("ENRICH_STALE_AFTER", 10*time.Minute)

	worker := services.NewWorker(redis, repository, events, resolver, workers, maxAttempts)
	sweeper := services.NewSweeper(repository, redis, maxAttempts, staleAfter)

	return &Module{
		BaseModule: module.NewBaseModule("enrichment", mongodb, redis),
		repository: repository,
		worker:     worker,
		sweeper:    sweeper,
	}
}

// Initialize creates the enrichment indexes.
func (m *Module) Initialize(ctx context.Context) error {
	return m.repository.CreateIndexes(ctx)
}

// RegisterUnifiedRoutes registers the enrichment routes on the shared API.
func (m *Module) RegisterUnifiedRoutes(api huma.API, basePath string) {
	routes.RegisterEnrichmentRoutes(api, basePath, m.repository, m.Redis())
}

// Routes implements module.Module; all routes are registered via Huma.
func (m *Module) Routes(r chi.Router) {}

// StartBackgroundTasks launches the worker pool and the sweep cron.
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	m.worker.Start(ctx)
	schedule := config.GetEnv("ENRICH_SWEEP_SCHEDULE", "@every 5m")
	if err := m.sweeper.Start(schedule); err != nil {
		slog.Error("Failed to start enrichment sweeper", "error", err)
	}
}

// Stop halts the sweeper and waits for in-flight records to finish.
func (m *Module) Stop() {
	m.sweeper.Stop()
	m.worker.Wait()
	m.BaseModule.Stop()
}

// GetRepository exposes the record store for response hydration.
func (m *Module) GetRepository() *services.Repository {
	return m.repository
}
