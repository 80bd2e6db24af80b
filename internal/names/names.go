// Package names batch-resolves mixed identifier lists (characters,
// corporations, alliances, systems, ship types) for response hydration and
// enrichment. It coalesces concurrent callers per ID so a burst of requests
// for the same entities produces one upstream batch.
package names

import (
	"context"
	"fmt"
	"sync"

	"go-battles/pkg/evegateway"
)

// Entity is one resolved identifier. Ticker is present only for alliances
// and corporations.
type Entity struct {
	ID       int64
	Name     string
	Category string
	Ticker   string
}

// Resolver is the capability interface callers depend on.
type Resolver interface {
	Resolve(ctx context.Context, ids []int64) (map[int64]Entity, error)
}

// Service implements Resolver over the gateway's name client. Unresolved IDs
// are omitted from the result; callers render the raw ID.
type Service struct {
	gateway evegateway.NameResolver

	mu       sync.Mutex
	inflight map[int64]chan struct{}
}

// NewService creates the name enricher.
func NewService(gateway evegateway.NameResolver) *Service {
	return &Service{
		gateway:  gateway,
		inflight: make(map[int64]chan struct{}),
	}
}

// Resolve maps identifiers to entities. IDs another caller is already
// fetching are waited on rather than re-fetched; after the wait the
// gateway's cache serves them without another round-trip.
func (s *Service) Resolve(ctx context.Context, ids []int64) (map[int64]Entity, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return map[int64]Entity{}, nil
	}

	mine, theirs := s.claim(unique)
	defer s.release(mine)

	result := make(map[int64]Entity, len(unique))

	if len(mine) > 0 {
		if err := s.fetch(ctx, mine, result); err != nil {
			return nil, err
		}
	}

	if len(theirs) > 0 {
		if err := s.await(ctx, theirs); err != nil {
			return nil, err
		}
		waited := make([]int64, 0, len(theirs))
		for id := range theirs {
			waited = append(waited, id)
		}
		if err := s.fetch(ctx, waited, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// claim splits IDs into ones this caller will fetch and ones already being
// fetched elsewhere.
func (s *Service) claim(ids []int64) (mine []int64, theirs map[int64]chan struct{}) {
	theirs = make(map[int64]chan struct{})
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if ch, busy := s.inflight[id]; busy {
			theirs[id] = ch
			continue
		}
		s.inflight[id] = make(chan struct{})
		mine = append(mine, id)
	}
	return mine, theirs
}

func (s *Service) release(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if ch, ok := s.inflight[id]; ok {
			close(ch)
			delete(s.inflight, id)
		}
	}
}

func (s *Service) await(ctx context.Context, chans map[int64]chan struct{}) error {
	for _, ch := range chans {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
	return nil
}

// fetch resolves a batch through the gateway and attaches tickers for
// alliances and corporations. Ticker lookups tolerate failure: a missing
// ticker never fails the batch.
func (s *Service) fetch(ctx context.Context, ids []int64, out map[int64]Entity) error {
	refs, err := s.gateway.ResolveNames(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to resolve names: %w", err)
	}

	for id, ref := range refs {
		entity := Entity{ID: id, Name: ref.Name, Category: ref.Category}

		switch ref.Category {
		case "alliance":
			if info, err := s.gateway.GetAllianceInfo(ctx, id); err == nil && info != nil {
				entity.Ticker = info.Ticker
			}
		case "corporation":
			if info, err := s.gateway.GetCorporationInfo(ctx, id); err == nil && info != nil {
				entity.Ticker = info.Ticker
			}
		}

		out[id] = entity
	}
	return nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
