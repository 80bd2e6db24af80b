package dto

import (
	"time"

	"go-battles/internal/battles/models"
	"go-battles/internal/battles/services"
	killdto "go-battles/internal/killmails/dto"
	"go-battles/internal/names"
	"go-battles/pkg/wire"
)

// BattleResponse is one battle as served by the API.
type BattleResponse struct {
	ID                string    `json:"id" doc:"Battle UUID"`
	SystemID          wire.ID   `json:"system_id" doc:"Solar system ID"`
	SystemName        string    `json:"system_name,omitempty" doc:"Solar system name"`
	SecurityType      string    `json:"security_type" doc:"Space type of the system"`
	StartTime         time.Time `json:"start_time" doc:"First kill of the battle"`
	EndTime           time.Time `json:"end_time" doc:"Last kill of the battle"`
	TotalKills        int64     `json:"total_kills" doc:"Killmails in the battle"`
	TotalISKDestroyed wire.ISK  `json:"total_isk_destroyed" doc:"Total ISK destroyed"`
	RelatedURL        string    `json:"related_url" doc:"External battle report link"`
}

// BattleListResponse is a paginated battle listing.
type BattleListResponse struct {
	Battles []BattleResponse `json:"battles"`
	Count   int              `json:"count" doc:"Number of battles in this page"`
	Cursor  string           `json:"cursor,omitempty" doc:"Cursor for the next page, absent on the last page"`
}

// BattleListOutput wraps a battle listing.
type BattleListOutput struct {
	Body BattleListResponse
}

// ParticipantResponse is one pilot flying one hull in a battle.
type ParticipantResponse struct {
	CharacterID     wire.ID  `json:"character_id" doc:"Character ID"`
	CharacterName   string   `json:"character_name,omitempty" doc:"Character name"`
	CorporationID   *wire.ID `json:"corporation_id,omitempty" doc:"Corporation ID"`
	CorporationName string   `json:"corporation_name,omitempty" doc:"Corporation name"`
	AllianceID      *wire.ID `json:"alliance_id,omitempty" doc:"Alliance ID"`
	AllianceName    string   `json:"alliance_name,omitempty" doc:"Alliance name"`
	AllianceTicker  string   `json:"alliance_ticker,omitempty" doc:"Alliance ticker"`
	ShipTypeID      wire.ID  `json:"ship_type_id" doc:"Ship type ID, 0 when unknown"`
	ShipTypeName    string   `json:"ship_type_name,omitempty" doc:"Ship type name"`
	SideID          *string  `json:"side_id,omitempty" doc:"Side assignment, unassigned"`
	IsVictim        bool     `json:"is_victim" doc:"Whether this pilot lost this hull"`
}

// BattleKillmailResponse is one killmail inside a battle detail, with its
// enrichment state attached.
type BattleKillmailResponse struct {
	killdto.KillmailResponse
	EnrichmentStatus string `json:"enrichment_status,omitempty" doc:"Enrichment record state, absent when never enqueued"`
}

// BattleDetailResponse is one battle joined with killmails and participants.
type BattleDetailResponse struct {
	BattleResponse
	Killmails    []BattleKillmailResponse `json:"killmails"`
	Participants []ParticipantResponse    `json:"participants"`
}

// BattleDetailOutput wraps a battle detail.
type BattleDetailOutput struct {
	Body BattleDetailResponse
}

// SystemCountResponse is one system's battle count in a ranking.
type SystemCountResponse struct {
	SystemID   wire.ID `json:"system_id" doc:"Solar system ID"`
	SystemName string  `json:"system_name,omitempty" doc:"Solar system name"`
	Battles    int64   `json:"battles" doc:"Battles in this system"`
}

// EntityStatsResponse aggregates one entity's presence across battles.
type EntityStatsResponse struct {
	EntityID     wire.ID               `json:"entity_id" doc:"Entity ID"`
	EntityName   string                `json:"entity_name,omitempty" doc:"Entity name"`
	EntityTicker string                `json:"entity_ticker,omitempty" doc:"Entity ticker"`
	Battles      int64                 `json:"battles" doc:"Battles participated in"`
	Kills        int64                 `json:"kills" doc:"Killmails across those battles"`
	ISKDestroyed wire.ISK              `json:"isk_destroyed" doc:"ISK destroyed across those battles"`
	TopSystems   []SystemCountResponse `json:"top_systems" doc:"Systems with the most battles"`
}

// EntityStatsOutput wraps entity statistics.
type EntityStatsOutput struct {
	Body EntityStatsResponse
}

// ShipHistoryResponse is one row of a pilot's ship history.
type ShipHistoryResponse struct {
	KillmailID      wire.ID   `json:"killmail_id" doc:"Killmail ID"`
	BattleID        string    `json:"battle_id" doc:"Battle UUID"`
	ShipTypeID      wire.ID   `json:"ship_type_id" doc:"Ship type ID, 0 when unknown"`
	ShipTypeName    string    `json:"ship_type_name,omitempty" doc:"Ship type name"`
	CorporationID   *wire.ID  `json:"corporation_id,omitempty" doc:"Corporation at time of event"`
	CorporationName string    `json:"corporation_name,omitempty" doc:"Corporation name"`
	AllianceID      *wire.ID  `json:"alliance_id,omitempty" doc:"Alliance at time of event"`
	AllianceName    string    `json:"alliance_name,omitempty" doc:"Alliance name"`
	SolarSystemID   wire.ID   `json:"solar_system_id" doc:"Solar system ID"`
	SystemName      string    `json:"system_name,omitempty" doc:"Solar system name"`
	IsLoss          bool      `json:"is_loss" doc:"Whether the pilot lost this ship"`
	KillmailValue   wire.ISK  `json:"killmail_value" doc:"Total ISK value of the killmail"`
	OccurredAt      time.Time `json:"occurred_at" doc:"Time of the kill"`
}

// ShipHistoryListResponse is a paginated ship history.
type ShipHistoryListResponse struct {
	CharacterID   wire.ID               `json:"character_id" doc:"Character ID"`
	CharacterName string                `json:"character_name,omitempty" doc:"Character name"`
	History       []ShipHistoryResponse `json:"history"`
	Count         int                   `json:"count" doc:"Number of rows in this page"`
	Cursor        string                `json:"cursor,omitempty" doc:"Cursor for the next page, absent on the last page"`
}

// ShipHistoryListOutput wraps a ship history listing.
type ShipHistoryListOutput struct {
	Body ShipHistoryListResponse
}

// DashboardResponse summarizes the battle store.
type DashboardResponse struct {
	TotalBattles      int64                 `json:"total_battles" doc:"Battles reconstructed"`
	BattlesLast24h    int64                 `json:"battles_last_24h" doc:"Battles starting in the last 24 hours"`
	TotalKills        int64                 `json:"total_kills" doc:"Killmails attached to battles"`
	TotalISKDestroyed wire.ISK              `json:"total_isk_destroyed" doc:"ISK destroyed across all battles"`
	TopSystems        []SystemCountResponse `json:"top_systems" doc:"Most contested systems"`
}

// DashboardOutput wraps the dashboard summary.
type DashboardOutput struct {
	Body DashboardResponse
}

// BattlesStatusResponse reports module health plus engine counters.
type BattlesStatusResponse struct {
	Module string               `json:"module" doc:"Module name"`
	Status string               `json:"status" doc:"Module health status"`
	Engine services.EngineStats `json:"engine" doc:"Clustering engine counters"`
}

// BattlesStatusOutput wraps the module status.
type BattlesStatusOutput struct {
	Body BattlesStatusResponse
}

// ConvertBattleToResponse maps a stored battle to its API shape.
func ConvertBattleToResponse(b *models.Battle, resolved map[int64]names.Entity) BattleResponse {
	return BattleResponse{
		ID:                b.ID,
		SystemID:          wire.ID(b.SystemID),
		SystemName:        resolved[b.SystemID].Name,
		SecurityType:      b.SecurityType,
		StartTime:         b.StartTime,
		EndTime:           b.EndTime,
		TotalKills:        b.TotalKills,
		TotalISKDestroyed: wire.ISK(b.TotalISKDestroyed),
		RelatedURL:        b.RelatedURL,
	}
}

// ConvertBattlesToList maps a page of battles plus its next-page cursor.
func ConvertBattlesToList(battles []models.Battle, cursor string, resolved map[int64]names.Entity) BattleListResponse {
	out := make([]BattleResponse, 0, len(battles))
	for i := range battles {
		out = append(out, ConvertBattleToResponse(&battles[i], resolved))
	}
	return BattleListResponse{Battles: out, Count: len(out), Cursor: cursor}
}

// ConvertBattleDetail maps a joined battle to its API shape.
func ConvertBattleDetail(d *services.BattleDetail) BattleDetailResponse {
	killmails := make([]BattleKillmailResponse, 0, len(d.Killmails))
	for i := range d.Killmails {
		ev := &d.Killmails[i]
		km := BattleKillmailResponse{KillmailResponse: killdto.ConvertKillmailToResponse(ev)}
		if record, ok := d.Enrichment[ev.KillmailID]; ok && record != nil {
			km.EnrichmentStatus = record.Status
		}
		killmails = append(killmails, km)
	}

	participants := make([]ParticipantResponse, 0, len(d.Participants))
	for i := range d.Participants {
		p := &d.Participants[i]
		pr := ParticipantResponse{
			CharacterID:     wire.ID(p.CharacterID),
			CharacterName:   d.Names[p.CharacterID].Name,
			CorporationID:   wire.IDPtr(p.CorporationID),
			AllianceID:      wire.IDPtr(p.AllianceID),
			ShipTypeID:      wire.ID(p.ShipTypeID),
			SideID:          p.SideID,
			IsVictim:        p.IsVictim,
		}
		if p.CorporationID != nil {
			pr.CorporationName = d.Names[*p.CorporationID].Name
		}
		if p.AllianceID != nil {
			pr.AllianceName = d.Names[*p.AllianceID].Name
			pr.AllianceTicker = d.Names[*p.AllianceID].Ticker
		}
		if p.ShipTypeID > 0 {
			pr.ShipTypeName = d.Names[p.ShipTypeID].Name
		}
		participants = append(participants, pr)
	}

	return BattleDetailResponse{
		BattleResponse: ConvertBattleToResponse(&d.Battle, d.Names),
		Killmails:      killmails,
		Participants:   participants,
	}
}

// ConvertSystemCounts maps a system ranking to its API shape.
func ConvertSystemCounts(counts []services.SystemCount, resolved map[int64]names.Entity) []SystemCountResponse {
	out := make([]SystemCountResponse, 0, len(counts))
	for _, c := range counts {
		out = append(out, SystemCountResponse{
			SystemID:   wire.ID(c.SystemID),
			SystemName: resolved[c.SystemID].Name,
			Battles:    c.Battles,
		})
	}
	return out
}

// ConvertEntityStats maps aggregate entity statistics to their API shape.
func ConvertEntityStats(entityID int64, stats *services.EntityStats, resolved map[int64]names.Entity) EntityStatsResponse {
	return EntityStatsResponse{
		EntityID:     wire.ID(entityID),
		EntityName:   resolved[entityID].Name,
		EntityTicker: resolved[entityID].Ticker,
		Battles:      stats.Battles,
		Kills:        stats.Kills,
		ISKDestroyed: wire.ISK(stats.ISKDestroyed),
		TopSystems:   ConvertSystemCounts(stats.TopSystems, resolved),
	}
}

// ConvertShipHistory maps a page of ship history rows to its API shape.
func ConvertShipHistory(characterID int64, rows []models.PilotShipHistory, cursor string, resolved map[int64]names.Entity) ShipHistoryListResponse {
	out := make([]ShipHistoryResponse, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		hr := ShipHistoryResponse{
			KillmailID:    wire.ID(r.KillmailID),
			BattleID:      r.BattleID,
			ShipTypeID:    wire.ID(r.ShipTypeID),
			CorporationID: wire.IDPtr(r.CorporationID),
			AllianceID:    wire.IDPtr(r.AllianceID),
			SolarSystemID: wire.ID(r.SolarSystemID),
			SystemName:    resolved[r.SolarSystemID].Name,
			IsLoss:        r.IsLoss,
			KillmailValue: wire.ISK(r.KillmailValue),
			OccurredAt:    r.OccurredAt,
		}
		if r.ShipTypeID > 0 {
			hr.ShipTypeName = resolved[r.ShipTypeID].Name
		}
		if r.CorporationID != nil {
			hr.CorporationName = resolved[*r.CorporationID].Name
		}
		if r.AllianceID != nil {
			hr.AllianceName = resolved[*r.AllianceID].Name
		}
		out = append(out, hr)
	}
	return ShipHistoryListResponse{
		CharacterID:   wire.ID(characterID),
		CharacterName: resolved[characterID].Name,
		History:       out,
		Count:         len(out),
		Cursor:        cursor,
	}
}

// ConvertDashboard maps the dashboard summary to its API shape.
func ConvertDashboard(stats *services.DashboardStats, resolved map[int64]names.Entity) DashboardResponse {
	return DashboardResponse{
		TotalBattles:      stats.TotalBattles,
		BattlesLast24h:    stats.BattlesLast24h,
		TotalKills:        stats.TotalKills,
		TotalISKDestroyed: wire.ISK(stats.TotalISKDestroyed),
		TopSystems:        ConvertSystemCounts(stats.TopSystems, resolved),
	}
}
