package killmails

import (
	"context"

	"go-battles/internal/killmails/routes"
	"go-battles/internal/killmails/services"
	"go-battles/pkg/database"
	"go-battles/pkg/evegateway"
	"go-battles/pkg/module"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

// Module is the killmail event store plus its query and stream surface.
type Module struct {
	*module.BaseModule
	service     *services.Service
	repository  *services.Repository
	broadcaster *services.Broadcaster
}

// New creates the killmails module.
func New(mongodb *database.MongoDB, redis *database.Redis, eveGateway *evegateway.Client) *Module {
	repository := services.NewRepository(mongodb)
	broadcaster := services.NewBroadcaster(redis)
	service := services.NewService(repository, eveGateway, broadcaster)

	return &Module{
		BaseModule:  module.NewBaseModule("killmails", mongodb, redis),
		service:     service,
		repository:  repository,
		broadcaster: broadcaster,
	}
}

// Initialize creates the event-store indexes.
func (m *Module) Initialize(ctx context.Context) error {
	return m.repository.CreateIndexes(ctx)
}

// RegisterUnifiedRoutes registers the killmail routes on the shared API.
func (m *Module) RegisterUnifiedRoutes(api huma.API, basePath string) {
	routes.RegisterKillmailRoutes(api, basePath, m.service)
}

// Routes implements module.Module; all routes are registered via Huma.
func (m *Module) Routes(r chi.Router) {}

// StartBackgroundTasks starts the firehose relay feeding SSE subscribers.
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	m.broadcaster.Start(ctx)
}

// Stop shuts down the firehose relay.
func (m *Module) Stop() {
	m.broadcaster.Stop()
	m.BaseModule.Stop()
}

// GetService exposes the event-store service to sibling modules.
func (m *Module) GetService() *services.Service {
	return m.service
}

// GetRepository exposes the repository to the clustering engine.
func (m *Module) GetRepository() *services.Repository {
	return m.repository
}
