package ruleset

import (
	"context"
	"time"

	"go-battles/internal/ruleset/routes"
	"go-battles/internal/ruleset/services"
	"go-battles/pkg/config"
	"go-battles/pkg/database"
	"go-battles/pkg/module"
	"go-battles/pkg/permissions"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

// Module owns the admission ruleset: the single durable document, the hot
// cache every ingestion replica reads, and the operator mutation surface.
type Module struct {
	*module.BaseModule
	service  *services.Service
	cache    *services.Cache
	enforcer *permissions.Enforcer
}

// New creates the ruleset module. The cache TTL bounds staleness when the
// invalidation channel is unavailable.
func New(mongodb *database.MongoDB, redis *database.Redis, enforcer *permissions.Enforcer) *Module {
	repository := services.NewRepository(mongodb)

	ttlSeconds := config.GetIntEnvClamped("RULESET_CACHE_TTL_SECONDS", 300, 1, 86400)
	cache := services.NewCache(repository, time.Duration(ttlSeconds)*time.Second)
	service := services.NewService(repository, cache, redis)

	return &Module{
		BaseModule: module.NewBaseModule("ruleset", mongodb, redis),
		service:    service,
		cache:      cache,
		enforcer:   enforcer,
	}
}

// RegisterUnifiedRoutes registers the ruleset routes on the shared API.
func (m *Module) RegisterUnifiedRoutes(api huma.API, basePath string) {
	routes.RegisterRulesetRoutes(api, basePath, m.service, m.enforcer)
}

// Routes implements module.Module; all routes are registered via Huma.
func (m *Module) Routes(r chi.Router) {}

// StartBackgroundTasks subscribes to cross-replica invalidations.
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	m.cache.SubscribeInvalidations(ctx, m.Redis())
}

// Provider exposes the cached ruleset reader for the ingestion filter.
func (m *Module) Provider() services.Provider {
	return m.cache
}

// GetService exposes the ruleset service.
func (m *Module) GetService() *services.Service {
	return m.service
}
