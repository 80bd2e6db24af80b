package routes

import (
	"context"
	"net/http"

	"go-battles/internal/ingest/dto"
	"go-battles/internal/ingest/services"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterIngestRoutes registers the consumer status route.
func RegisterIngestRoutes(api huma.API, basePath string, consumer *services.Consumer, queue *services.Queue) {
	huma.Register(api, huma.Operation{
		OperationID:   "getIngestStatus",
		Method:        http.MethodGet,
		Path:          basePath + "/status",
		Summary:       "Get ingestion consumer status",
		Description:   "Reports the long-poll consumer state, per-result counters, and the enrichment queue depth.",
		Tags:          []string{"Module Status"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.ConsumerStatusOutput, error) {
		state := consumer.Status()

		depth, err := queue.Depth(ctx)
		if err != nil {
			depth = -1
		}

		resp := dto.ConsumerStatusResponse{
			Status:        state.State,
			QueueID:       state.QueueID,
			LastKillmail:  state.LastKillmailID,
			QueueDepth:    depth,
			TotalPolls:    state.TotalPolls,
			EmptyPolls:    state.EmptyPolls,
			Stored:        state.Stored,
			Duplicates:    state.Duplicates,
			Filtered:      state.Filtered,
			HTTPErrors:    state.HTTPErrors,
			ParseErrors:   state.ParseErrors,
			StoreErrors:   state.StoreErrors,
			EnqueueErrors: state.EnqueueErrors,
		}
		if !state.LastPollTime.IsZero() {
			t := state.LastPollTime
			resp.LastPoll = &t
		}
		return &dto.ConsumerStatusOutput{Body: resp}, nil
	})
}
