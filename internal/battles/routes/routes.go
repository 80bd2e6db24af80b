package routes

import (
	"context"
	"net/http"
	"time"

	"go-battles/internal/battles/dto"
	"go-battles/internal/battles/services"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterBattleRoutes registers the battle query surface.
func RegisterBattleRoutes(api huma.API, basePath string, service *services.Service, engine *services.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "getBattlesStatus",
		Method:        http.MethodGet,
		Path:          basePath + "/status",
		Summary:       "Get battles module status",
		Tags:          []string{"Module Status"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.BattlesStatusOutput, error) {
		return &dto.BattlesStatusOutput{
			Body: dto.BattlesStatusResponse{
				Module: "battles",
				Status: "healthy",
				Engine: engine.Stats(),
			},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "listBattles",
		Method:        http.MethodGet,
		Path:          basePath,
		Summary:       "List battles",
		Description:   "Pages reconstructed battles newest first with optional system, space-type, and time-range filters.",
		Tags:          []string{"Battles"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.ListBattlesInput) (*dto.BattleListOutput, error) {
		filter := services.BattleFilter{
			SystemID:     input.SystemID,
			SecurityType: input.SecurityType,
			Since:        input.Since,
			Until:        input.Until,
		}
		if input.Cursor != "" {
			before, beforeID, err := services.DecodeBattleCursor(input.Cursor)
			if err != nil {
				return nil, huma.Error400BadRequest("Invalid cursor", err)
			}
			filter.Before, filter.BeforeID = before, beforeID
		}

		battles, cursor, resolved, err := service.ListBattles(ctx, filter, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list battles", err)
		}
		return &dto.BattleListOutput{Body: dto.ConvertBattlesToList(battles, cursor, resolved)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "getDashboard",
		Method:        http.MethodGet,
		Path:          basePath + "/dashboard",
		Summary:       "Get the battle dashboard summary",
		Tags:          []string{"Battles"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.DashboardOutput, error) {
		stats, resolved, err := service.Dashboard(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to build dashboard", err)
		}
		return &dto.DashboardOutput{Body: dto.ConvertDashboard(stats, resolved)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "getBattle",
		Method:        http.MethodGet,
		Path:          basePath + "/{battle_id}",
		Summary:       "Get battle by UUID",
		Description:   "Returns one battle joined with its killmails, participants, and enrichment state.",
		Tags:          []string{"Battles"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.GetBattleInput) (*dto.BattleDetailOutput, error) {
		detail, err := service.GetBattleDetail(ctx, input.BattleID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to fetch battle", err)
		}
		if detail == nil {
			return nil, huma.Error404NotFound("Battle not found")
		}
		return &dto.BattleDetailOutput{Body: dto.ConvertBattleDetail(detail)}, nil
	})

	registerEntityRoutes(api, basePath+"/alliance", "alliance_id", "Alliance", service)
	registerEntityRoutes(api, basePath+"/corporation", "corporation_id", "Corporation", service)
	registerEntityRoutes(api, basePath+"/character", "character_id", "Character", service)

	huma.Register(api, huma.Operation{
		OperationID:   "getCharacterShipHistory",
		Method:        http.MethodGet,
		Path:          basePath + "/character/{character_id}/ships",
		Summary:       "Get a pilot's ship history",
		Description:   "Pages the hulls a pilot has flown across battles, newest first.",
		Tags:          []string{"Battles"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.ShipHistoryInput) (*dto.ShipHistoryListOutput, error) {
		var before time.Time
		var beforeID int64
		if input.Cursor != "" {
			var err error
			before, beforeID, err = services.DecodeHistoryCursor(input.Cursor)
			if err != nil {
				return nil, huma.Error400BadRequest("Invalid cursor", err)
			}
		}

		rows, cursor, resolved, err := service.ShipHistory(ctx, input.CharacterID, input.Limit, before, beforeID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list ship history", err)
		}
		return &dto.ShipHistoryListOutput{Body: dto.ConvertShipHistory(input.CharacterID, rows, cursor, resolved)}, nil
	})
}

// registerEntityRoutes registers the per-entity battle list and stats routes
// for one entity kind.
func registerEntityRoutes(api huma.API, basePath, field, label string, service *services.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "list" + label + "Battles",
		Method:        http.MethodGet,
		Path:          basePath + "/{entity_id}/battles",
		Summary:       "List battles for " + field,
		Tags:          []string{"Battles"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.EntityBattlesInput) (*dto.BattleListOutput, error) {
		var filter services.BattleFilter
		if input.Cursor != "" {
			before, beforeID, err := services.DecodeBattleCursor(input.Cursor)
			if err != nil {
				return nil, huma.Error400BadRequest("Invalid cursor", err)
			}
			filter.Before, filter.BeforeID = before, beforeID
		}

		battles, cursor, resolved, err := service.ListEntityBattles(ctx, field, input.EntityID, filter, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list battles", err)
		}
		return &dto.BattleListOutput{Body: dto.ConvertBattlesToList(battles, cursor, resolved)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "get" + label + "Stats",
		Method:        http.MethodGet,
		Path:          basePath + "/{entity_id}/stats",
		Summary:       "Get aggregate battle statistics for " + field,
		Tags:          []string{"Battles"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.EntityStatsInput) (*dto.EntityStatsOutput, error) {
		stats, resolved, err := service.EntityStats(ctx, field, input.EntityID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to aggregate statistics", err)
		}
		return &dto.EntityStatsOutput{Body: dto.ConvertEntityStats(input.EntityID, stats, resolved)}, nil
	})
}
