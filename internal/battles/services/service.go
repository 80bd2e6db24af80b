package services

import (
	"context"
	"log/slog"
	"time"

	"go-battles/internal/battles/models"
	enrichmodels "go-battles/internal/enrichment/models"
	killmodels "go-battles/internal/killmails/models"
	"go-battles/internal/names"
)

// EventLoader loads stored killmail events for battle detail joins.
type EventLoader interface {
	GetByKillmailIDs(ctx context.Context, killmailIDs []int64) ([]killmodels.KillmailEvent, error)
}

// EnrichmentLoader loads enrichment records for battle detail joins.
type EnrichmentLoader interface {
	GetByKillmailIDs(ctx context.Context, killmailIDs []int64) (map[int64]*enrichmodels.EnrichmentRecord, error)
}

// BattleDetail is one battle joined with everything the detail route serves.
type BattleDetail struct {
	Battle       models.Battle
	Killmails    []killmodels.KillmailEvent
	Edges        []models.BattleKillmail
	Participants []models.BattleParticipant
	Enrichment   map[int64]*enrichmodels.EnrichmentRecord
	Names        map[int64]names.Entity
}

// Service is the battle query surface: listings, detail joins, per-entity
// stats, ship history, all hydrated with resolved names.
type Service struct {
	repository *Repository
	events     EventLoader
	enrichment EnrichmentLoader
	names      names.Resolver
}

// NewService creates the battle query service.
func NewService(repository *Repository, events EventLoader, enrichment EnrichmentLoader, resolver names.Resolver) *Service {
	return &Service{
		repository: repository,
		events:     events,
		enrichment: enrichment,
		names:      resolver,
	}
}

// Repository exposes the underlying store for the engine wiring.
func (s *Service) Repository() *Repository {
	return s.repository
}

// resolve hydrates names best-effort: resolution failure degrades the
// response to raw IDs, never fails it.
func (s *Service) resolve(ctx context.Context, ids []int64) map[int64]names.Entity {
	resolved, err := s.names.Resolve(ctx, ids)
	if err != nil {
		slog.Warn("Name resolution failed, serving raw IDs", "error", err)
		return map[int64]names.Entity{}
	}
	return resolved
}

// ListBattles pages battles per filter and returns the next-page cursor
// (empty on the last page) plus resolved system names.
func (s *Service) ListBattles(ctx context.Context, f BattleFilter, limit int) ([]models.Battle, string, map[int64]names.Entity, error) {
	battles, err := s.repository.ListBattles(ctx, f, limit)
	if err != nil {
		return nil, "", nil, err
	}

	var cursor string
	if len(battles) == limit && limit > 0 {
		last := battles[len(battles)-1]
		cursor = EncodeBattleCursor(last.StartTime, last.ID)
	}

	ids := make([]int64, 0, len(battles))
	for i := range battles {
		ids = append(ids, battles[i].SystemID)
	}
	return battles, cursor, s.resolve(ctx, ids), nil
}

// ListEntityBattles pages the battles an alliance, corporation, or
// character participated in.
func (s *Service) ListEntityBattles(ctx context.Context, field string, entityID int64, f BattleFilter, limit int) ([]models.Battle, string, map[int64]names.Entity, error) {
	battleIDs, err := s.repository.BattleIDsForEntity(ctx, field, entityID)
	if err != nil {
		return nil, "", nil, err
	}
	if battleIDs == nil {
		battleIDs = []string{}
	}
	f.BattleIDs = battleIDs
	return s.ListBattles(ctx, f, limit)
}

// GetBattleDetail joins one battle with its killmails, participants, and
// enrichment status. Returns nil when the battle does not exist.
func (s *Service) GetBattleDetail(ctx context.Context, battleID string) (*BattleDetail, error) {
	battle, err := s.repository.GetBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if battle == nil {
		return nil, nil
	}

	edges, err := s.repository.GetBattleKillmails(ctx, battleID)
	if err != nil {
		return nil, err
	}
	participants, err := s.repository.GetBattleParticipants(ctx, battleID)
	if err != nil {
		return nil, err
	}

	killmailIDs := make([]int64, 0, len(edges))
	for i := range edges {
		killmailIDs = append(killmailIDs, edges[i].KillmailID)
	}

	events, err := s.events.GetByKillmailIDs(ctx, killmailIDs)
	if err != nil {
		return nil, err
	}
	enrichment, err := s.enrichment.GetByKillmailIDs(ctx, killmailIDs)
	if err != nil {
		return nil, err
	}

	nameIDs := []int64{battle.SystemID}
	for i := range participants {
		p := &participants[i]
		nameIDs = append(nameIDs, p.CharacterID)
		if p.CorporationID != nil {
			nameIDs = append(nameIDs, *p.CorporationID)
		}
		if p.AllianceID != nil {
			nameIDs = append(nameIDs, *p.AllianceID)
		}
		if p.ShipTypeID > 0 {
			nameIDs = append(nameIDs, p.ShipTypeID)
		}
	}

	return &BattleDetail{
		Battle:       *battle,
		Killmails:    events,
		Edges:        edges,
		Participants: participants,
		Enrichment:   enrichment,
		Names:        s.resolve(ctx, nameIDs),
	}, nil
}

// EntityStats aggregates an entity's presence across battles.
func (s *Service) EntityStats(ctx context.Context, field string, entityID int64) (*EntityStats, map[int64]names.Entity, error) {
	battleIDs, err := s.repository.BattleIDsForEntity(ctx, field, entityID)
	if err != nil {
		return nil, nil, err
	}
	stats, err := s.repository.StatsForBattles(ctx, battleIDs)
	if err != nil {
		return nil, nil, err
	}

	ids := []int64{entityID}
	for _, sc := range stats.TopSystems {
		ids = append(ids, sc.SystemID)
	}
	return stats, s.resolve(ctx, ids), nil
}

// ShipHistory pages a pilot's ship history newest first.
func (s *Service) ShipHistory(ctx context.Context, characterID int64, limit int, before time.Time, beforeID int64) ([]models.PilotShipHistory, string, map[int64]names.Entity, error) {
	rows, err := s.repository.ListShipHistory(ctx, characterID, limit, before, beforeID)
	if err != nil {
		return nil, "", nil, err
	}

	var cursor string
	if len(rows) == limit && limit > 0 {
		last := rows[len(rows)-1]
		cursor = EncodeHistoryCursor(last.OccurredAt, last.KillmailID)
	}

	ids := []int64{characterID}
	for i := range rows {
		r := &rows[i]
		ids = append(ids, r.SolarSystemID)
		if r.ShipTypeID > 0 {
			ids = append(ids, r.ShipTypeID)
		}
		if r.CorporationID != nil {
			ids = append(ids, *r.CorporationID)
		}
		if r.AllianceID != nil {
			ids = append(ids, *r.AllianceID)
		}
	}
	return rows, cursor, s.resolve(ctx, ids), nil
}

// Dashboard summarizes the battle store.
func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, map[int64]names.Entity, error) {
	stats, err := s.repository.GetDashboardStats(ctx, time.Now())
	if err != nil {
		return nil, nil, err
	}
	ids := make([]int64, 0, len(stats.TopSystems))
	for _, sc := range stats.TopSystems {
		ids = append(ids, sc.SystemID)
	}
	return stats, s.resolve(ctx, ids), nil
}
