package services

import (
	"context"
	"fmt"
	"time"

	"go-battles/internal/killmails/models"
	"go-battles/pkg/evegateway"
)

// Service implements the event-store operations over the repository and the
// upstream gateway.
type Service struct {
	repository  *Repository
	eveGateway  *evegateway.Client
	broadcaster *Broadcaster
}

func NewService(repository *Repository, eveGateway *evegateway.Client, broadcaster *Broadcaster) *Service {
	return &Service{
		repository:  repository,
		eveGateway:  eveGateway,
		broadcaster: broadcaster,
	}
}

// Store persists an accepted event and, when it is new, announces it on the
// firehose. Duplicates are reported, never re-announced.
func (s *Service) Store(ctx context.Context, event *models.KillmailEvent) (InsertResult, error) {
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}

	result, err := s.repository.Insert(ctx, event)
	if err != nil {
		return 0, fmt.Errorf("failed to store killmail %d: %w", event.KillmailID, err)
	}
	if result == InsertStored && s.broadcaster != nil {
		s.broadcaster.Publish(ctx, event)
	}
	return result, nil
}

// GetKillmail retrieves one stored event, nil when absent.
func (s *Service) GetKillmail(ctx context.Context, killmailID int64) (*models.KillmailEvent, error) {
	return s.repository.GetByKillmailID(ctx, killmailID)
}

// ListRecent pages stored events newest first. The returned cursor is empty
// on the last page.
func (s *Service) ListRecent(ctx context.Context, f ListFilter, limit int, cursor string) ([]models.KillmailEvent, string, error) {
	if cursor != "" {
		before, beforeID, err := DecodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		f.Before = before
		f.BeforeID = beforeID
	}

	events, err := s.repository.ListRecent(ctx, f, limit)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list recent killmails: %w", err)
	}

	next := ""
	if len(events) == limit {
		last := events[len(events)-1]
		next = EncodeCursor(last.OccurredAt, last.KillmailID)
	}
	return events, next, nil
}

// GetCharacterRecentRefs fetches a character's recent killmail references
// from the upstream using the rotating token pool.
func (s *Service) GetCharacterRecentRefs(ctx context.Context, characterID int64) ([]evegateway.KillmailRef, error) {
	refs, err := s.eveGateway.Character.GetRecentKillmailRefs(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent killmails for character %d: %w", characterID, err)
	}
	return refs, nil
}

// Broadcaster exposes the stream fanout for the SSE route.
func (s *Service) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// HealthCheck verifies the backing store is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.repository.db.HealthCheck(ctx)
}
