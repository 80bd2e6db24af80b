package dto

import (
	"time"

	"go-battles/internal/enrichment/models"
	"go-battles/pkg/wire"
)

// EnrichmentStatusResponse summarizes the enrichment pipeline.
type EnrichmentStatusResponse struct {
	Module     string           `json:"module" doc:"Module name"`
	Status     string           `json:"status" doc:"Module health status"`
	QueueDepth int64            `json:"queue_depth" doc:"Pending jobs in the queue"`
	Records    map[string]int64 `json:"records" doc:"Record counts per state"`
}

// EnrichmentStatusOutput wraps the pipeline summary.
type EnrichmentStatusOutput struct {
	Body EnrichmentStatusResponse
}

// ResolvedEntityResponse is one resolved identifier.
type ResolvedEntityResponse struct {
	ID       wire.ID `json:"id" doc:"Identifier"`
	Name     string  `json:"name" doc:"Resolved name"`
	Category string  `json:"category" doc:"Identifier category"`
	Ticker   string  `json:"ticker,omitempty" doc:"Alliance or corporation ticker"`
}

// EnrichmentRecordResponse is one killmail's enrichment state.
type EnrichmentRecordResponse struct {
	KillmailID wire.ID                  `json:"killmail_id" doc:"Killmail ID"`
	Status     string                   `json:"status" doc:"Record state"`
	Entities   []ResolvedEntityResponse `json:"entities,omitempty" doc:"Resolved identities"`
	Attempts   int                      `json:"attempts" doc:"Resolution attempts"`
	LastError  string                   `json:"last_error,omitempty" doc:"Last failure, if any"`
	FetchedAt  *time.Time               `json:"fetched_at,omitempty" doc:"Time of successful resolution"`
}

// EnrichmentRecordOutput wraps one record.
type EnrichmentRecordOutput struct {
	Body EnrichmentRecordResponse
}

// ConvertRecordToResponse maps a stored record to its API shape.
func ConvertRecordToResponse(r *models.EnrichmentRecord) EnrichmentRecordResponse {
	entities := make([]ResolvedEntityResponse, 0, len(r.Entities))
	for _, e := range r.Entities {
		entities = append(entities, ResolvedEntityResponse{
			ID:       wire.ID(e.ID),
			Name:     e.Name,
			Category: e.Category,
			Ticker:   e.Ticker,
		})
	}
	return EnrichmentRecordResponse{
		KillmailID: wire.ID(r.KillmailID),
		Status:     r.Status,
		Entities:   entities,
		Attempts:   r.Attempts,
		LastError:  r.LastError,
		FetchedAt:  r.FetchedAt,
	}
}
