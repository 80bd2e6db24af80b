package ingest

import (
	"context"
	"fmt"

	"go-battles/internal/ingest/routes"
	"go-battles/internal/ingest/services"
	killservices "go-battles/internal/killmails/services"
	ruleservices "go-battles/internal/ruleset/services"
	"go-battles/pkg/config"
	"go-battles/pkg/database"
	"go-battles/pkg/module"
	"go-battles/pkg/sde"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

// Module runs the long-poll ingestion pipeline.
type Module struct {
	*module.BaseModule
	consumer *services.Consumer
	queue    *services.Queue
}

// New creates the ingestion module wired to the event store, the ruleset
// cache, and the enrichment queue.
func New(mongodb *database.MongoDB, redis *database.Redis, store *killservices.Service, rules ruleservices.Provider, classifier sde.SDEService) (*Module, error) {
	queueMax := config.GetIntEnvClamped("ENRICH_QUEUE_MAX", 10000, 100, 1000000)
	queue := services.NewQueue(redis, queueMax)
	repository := services.NewRepository(mongodb)

	consumer, err := services.NewConsumer(store, rules, queue, classifier, repository)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingestion consumer: %w", err)
	}

	return &Module{
		BaseModule: module.NewBaseModule("ingest", mongodb, redis),
		consumer:   consumer,
		queue:      queue,
	}, nil
}

// RegisterUnifiedRoutes registers the ingestion status route.
func (m *Module) RegisterUnifiedRoutes(api huma.API, basePath string) {
	routes.RegisterIngestRoutes(api, basePath, m.consumer, m.queue)
}

// Routes implements module.Module; all routes are registered via Huma.
func (m *Module) Routes(r chi.Router) {}

// StartBackgroundTasks launches the poll loop.
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	m.consumer.Start(ctx)
}

// Stop drains the poll loop.
func (m *Module) Stop() {
	m.consumer.Stop()
	m.BaseModule.Stop()
}
