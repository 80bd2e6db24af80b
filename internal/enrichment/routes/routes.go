package routes

import (
	"context"
	"net/http"

	"go-battles/internal/enrichment/dto"
	enrichmodels "go-battles/internal/enrichment/models"
	"go-battles/internal/enrichment/services"
	"go-battles/pkg/database"

	"github.com/danielgtaylor/huma/v2"
)

// GetRecordInput identifies one enrichment record.
type GetRecordInput struct {
	KillmailID int64 `path:"killmail_id" minimum:"1" doc:"Killmail ID"`
}

// RegisterEnrichmentRoutes registers the enrichment status and record routes.
func RegisterEnrichmentRoutes(api huma.API, basePath string, repository *services.Repository, redis *database.Redis) {
	huma.Register(api, huma.Operation{
		OperationID:   "getEnrichmentStatus",
		Method:        http.MethodGet,
		Path:          basePath + "/status",
		Summary:       "Get enrichment pipeline status",
		Tags:          []string{"Module Status"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.EnrichmentStatusOutput, error) {
		counts, err := repository.CountByStatus(ctx)
		if err != nil {
			return &dto.EnrichmentStatusOutput{
				Body: dto.EnrichmentStatusResponse{Module: "enrichment", Status: "unhealthy"},
			}, nil
		}
		depth, err := redis.Client.LLen(ctx, enrichmodels.QueueKey).Result()
		if err != nil {
			depth = -1
		}
		return &dto.EnrichmentStatusOutput{
			Body: dto.EnrichmentStatusResponse{
				Module:     "enrichment",
				Status:     "healthy",
				QueueDepth: depth,
				Records:    counts,
			},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "getEnrichmentRecord",
		Method:        http.MethodGet,
		Path:          basePath + "/{killmail_id}",
		Summary:       "Get a killmail's enrichment record",
		Tags:          []string{"Enrichment"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *GetRecordInput) (*dto.EnrichmentRecordOutput, error) {
		record, err := repository.GetByKillmailID(ctx, input.KillmailID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to load enrichment record", err)
		}
		if record == nil {
			return nil, huma.Error404NotFound("No enrichment record for this killmail")
		}
		return &dto.EnrichmentRecordOutput{Body: dto.ConvertRecordToResponse(record)}, nil
	})
}
