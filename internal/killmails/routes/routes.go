package routes

import (
	"context"
	"net/http"

	"go-battles/internal/killmails/dto"
	"go-battles/internal/killmails/services"
	"go-battles/pkg/wire"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
)

// GetKillmailInput identifies a single stored killmail.
type GetKillmailInput struct {
	KillmailID int64 `path:"killmail_id" minimum:"1" doc:"Killmail ID"`
}

// RegisterKillmailRoutes registers the event-store query routes.
func RegisterKillmailRoutes(api huma.API, basePath string, service *services.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "getKillmailsStatus",
		Method:        http.MethodGet,
		Path:          basePath + "/status",
		Summary:       "Get killmails module status",
		Tags:          []string{"Module Status"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.StatusOutput, error) {
		if err := service.HealthCheck(ctx); err != nil {
			return &dto.StatusOutput{
				Body: dto.ModuleStatusResponse{
					Module:  "killmails",
					Status:  "unhealthy",
					Message: err.Error(),
				},
			}, nil
		}
		return &dto.StatusOutput{
			Body: dto.ModuleStatusResponse{Module: "killmails", Status: "healthy"},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "getRecentKillmails",
		Method:        http.MethodGet,
		Path:          basePath + "/recent",
		Summary:       "List recent killmails",
		Description:   "Pages stored killmails newest first with optional entity, system, and space-type filters.",
		Tags:          []string{"Killmails"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.ListRecentKillmailsInput) (*dto.KillmailListOutput, error) {
		filter := services.ListFilter{
			SystemID:      input.SystemID,
			AllianceID:    input.AllianceID,
			CorporationID: input.CorporationID,
			CharacterID:   input.CharacterID,
			SpaceType:     input.SpaceType,
		}
		events, cursor, err := service.ListRecent(ctx, filter, input.Limit, input.Cursor)
		if err != nil {
			if input.Cursor != "" {
				return nil, huma.Error400BadRequest("Invalid cursor", err)
			}
			return nil, huma.Error500InternalServerError("Failed to list killmails", err)
		}
		return &dto.KillmailListOutput{Body: dto.ConvertKillmailsToList(events, cursor)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "getKillmail",
		Method:        http.MethodGet,
		Path:          basePath + "/{killmail_id}",
		Summary:       "Get killmail by ID",
		Tags:          []string{"Killmails"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *GetKillmailInput) (*dto.KillmailOutput, error) {
		event, err := service.GetKillmail(ctx, input.KillmailID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to fetch killmail", err)
		}
		if event == nil {
			return nil, huma.Error404NotFound("Killmail not found")
		}
		resp := dto.ConvertKillmailToResponse(event)
		return &dto.KillmailOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "getCharacterRecentKillmails",
		Method:        http.MethodGet,
		Path:          basePath + "/character/{character_id}/recent",
		Summary:       "Get a character's recent killmail references from the upstream",
		Description:   "Fetches recent killmail references for a character from the upstream identity API using the service token pool.",
		Tags:          []string{"Killmails"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.ImportCharacterRecentInput) (*dto.KillmailRefListOutput, error) {
		refs, err := service.GetCharacterRecentRefs(ctx, input.CharacterID)
		if err != nil {
			return nil, huma.Error400BadRequest("Failed to fetch character recent killmails", err)
		}

		out := make([]dto.KillmailRefResponse, 0, len(refs))
		for _, ref := range refs {
			out = append(out, dto.KillmailRefResponse{
				KillmailID:   wire.ID(ref.KillmailID),
				KillmailHash: ref.Hash,
			})
		}
		return &dto.KillmailRefListOutput{
			Body: dto.KillmailRefListResponse{Killmails: out, Count: len(out)},
		}, nil
	})

	registerStreamRoute(api, basePath, service)
}

// registerStreamRoute serves the live killmail stream: one snapshot event of
// the most recent kills, then killmail deltas from the firehose.
func registerStreamRoute(api huma.API, basePath string, service *services.Service) {
	sse.Register(api, huma.Operation{
		OperationID: "streamKillmails",
		Method:      http.MethodGet,
		Path:        basePath + "/stream",
		Summary:     "Stream killmails over SSE",
		Description: "Sends a snapshot event with the most recent killmails, then a killmail event per newly stored kill. With once=true the stream closes after the snapshot.",
		Tags:        []string{"Killmails"},
	}, map[string]any{
		"snapshot": dto.KillmailListResponse{},
		"killmail": dto.KillmailResponse{},
	}, func(ctx context.Context, input *dto.StreamKillmailsInput, send sse.Sender) {
		filter := services.ListFilter{SpaceType: input.SpaceType}
		events, _, err := service.ListRecent(ctx, filter, input.Limit, "")
		if err != nil {
			return
		}
		if err := send.Data(dto.ConvertKillmailsToList(events, "")); err != nil {
			return
		}
		if input.Once {
			return
		}

		deltas, cancel := service.Broadcaster().Subscribe()
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-deltas:
				if !ok {
					return
				}
				if input.SpaceType != "" && event.SpaceType != input.SpaceType {
					continue
				}
				if err := send.Data(dto.ConvertKillmailToResponse(&event)); err != nil {
					return
				}
			}
		}
	})
}
