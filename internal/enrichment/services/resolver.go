package services

import (
	"context"

	"go-battles/internal/enrichment/models"
	"go-battles/internal/names"
)

// namesResolver adapts the shared name service to the worker's resolver
// contract.
type namesResolver struct {
	service names.Resolver
}

// NewNamesResolver wraps the name service as an EntityResolver.
func NewNamesResolver(service names.Resolver) EntityResolver {
	return &namesResolver{service: service}
}

func (r *namesResolver) Resolve(ctx context.Context, ids []int64) (map[int64]models.ResolvedEntity, error) {
	entities, err := r.service.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]models.ResolvedEntity, len(entities))
	for id, e := range entities {
		out[id] = models.ResolvedEntity{
			ID:       e.ID,
			Name:     e.Name,
			Category: e.Category,
			Ticker:   e.Ticker,
		}
	}
	return out, nil
}
