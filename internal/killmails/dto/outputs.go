package dto

import (
	"time"

	"go-battles/internal/killmails/models"
	"go-battles/pkg/wire"
)

// ModuleStatusResponse reports module health.
type ModuleStatusResponse struct {
	Module  string `json:"module" doc:"Module name"`
	Status  string `json:"status" doc:"Module health status"`
	Message string `json:"message,omitempty" doc:"Optional status message"`
}

// StatusOutput wraps the module status response.
type StatusOutput struct {
	Body ModuleStatusResponse
}

// VictimResponse is the victim block of a killmail.
type VictimResponse struct {
	CharacterID   *wire.ID `json:"character_id,omitempty" doc:"Victim character ID"`
	CorporationID *wire.ID `json:"corporation_id,omitempty" doc:"Victim corporation ID"`
	AllianceID    *wire.ID `json:"alliance_id,omitempty" doc:"Victim alliance ID"`
	ShipTypeID    wire.ID  `json:"ship_type_id" doc:"Destroyed ship type ID"`
	DamageTaken   int64    `json:"damage_taken" doc:"Total damage taken"`
}

// AttackerResponse is one attacker on a killmail.
type AttackerResponse struct {
	CharacterID   *wire.ID `json:"character_id,omitempty" doc:"Attacker character ID"`
	CorporationID *wire.ID `json:"corporation_id,omitempty" doc:"Attacker corporation ID"`
	AllianceID    *wire.ID `json:"alliance_id,omitempty" doc:"Attacker alliance ID"`
	ShipTypeID    *wire.ID `json:"ship_type_id,omitempty" doc:"Attacker ship type ID"`
	WeaponTypeID  *wire.ID `json:"weapon_type_id,omitempty" doc:"Weapon type ID"`
	DamageDone    int64    `json:"damage_done" doc:"Damage dealt"`
	FinalBlow     bool     `json:"final_blow" doc:"Whether this attacker landed the final blow"`
}

// KillmailResponse is one killmail event as served by the API.
type KillmailResponse struct {
	KillmailID    wire.ID            `json:"killmail_id" doc:"Killmail ID"`
	KillmailHash  string             `json:"killmail_hash" doc:"Killmail hash"`
	OccurredAt    time.Time          `json:"occurred_at" doc:"Time the kill occurred"`
	SolarSystemID wire.ID            `json:"solar_system_id" doc:"Solar system ID"`
	SpaceType     string             `json:"space_type" doc:"Space type of the system"`
	Victim        VictimResponse     `json:"victim"`
	Attackers     []AttackerResponse `json:"attackers"`
	TotalValue    wire.ISK           `json:"total_value" doc:"Total ISK value destroyed"`
	BattleID      *string            `json:"battle_id,omitempty" doc:"Battle UUID once clustered"`
	ProcessedAt   *time.Time         `json:"processed_at,omitempty" doc:"Time the clustering engine consumed this kill"`
}

// KillmailOutput wraps a single killmail response.
type KillmailOutput struct {
	Body KillmailResponse
}

// KillmailListResponse is a paginated killmail listing.
type KillmailListResponse struct {
	Killmails []KillmailResponse `json:"killmails"`
	Count     int                `json:"count" doc:"Number of killmails in this page"`
	Cursor    string             `json:"cursor,omitempty" doc:"Cursor for the next page, absent on the last page"`
}

// KillmailListOutput wraps a killmail listing.
type KillmailListOutput struct {
	Body KillmailListResponse
}

// KillmailRefResponse is a reference to a killmail on the upstream.
type KillmailRefResponse struct {
	KillmailID   wire.ID `json:"killmail_id" doc:"Killmail ID"`
	KillmailHash string  `json:"killmail_hash" doc:"Killmail hash"`
}

// KillmailRefListResponse lists upstream killmail references.
type KillmailRefListResponse struct {
	Killmails []KillmailRefResponse `json:"killmails"`
	Count     int                   `json:"count" doc:"Number of references"`
}

// KillmailRefListOutput wraps an upstream reference listing.
type KillmailRefListOutput struct {
	Body KillmailRefListResponse
}

// ConvertKillmailToResponse maps a stored event to its API shape.
func ConvertKillmailToResponse(k *models.KillmailEvent) KillmailResponse {
	attackers := make([]AttackerResponse, 0, len(k.Attackers))
	for _, a := range k.Attackers {
		attackers = append(attackers, AttackerResponse{
			CharacterID:   wire.IDPtr(a.CharacterID),
			CorporationID: wire.IDPtr(a.CorporationID),
			AllianceID:    wire.IDPtr(a.AllianceID),
			ShipTypeID:    wire.IDPtr(a.ShipTypeID),
			WeaponTypeID:  wire.IDPtr(a.WeaponTypeID),
			DamageDone:    a.DamageDone,
			FinalBlow:     a.FinalBlow,
		})
	}

	return KillmailResponse{
		KillmailID:    wire.ID(k.KillmailID),
		KillmailHash:  k.KillmailHash,
		OccurredAt:    k.OccurredAt,
		SolarSystemID: wire.ID(k.SolarSystemID),
		SpaceType:     k.SpaceType,
		Victim: VictimResponse{
			CharacterID:   wire.IDPtr(k.Victim.CharacterID),
			CorporationID: wire.IDPtr(k.Victim.CorporationID),
			AllianceID:    wire.IDPtr(k.Victim.AllianceID),
			ShipTypeID:    wire.ID(k.Victim.ShipTypeID),
			DamageTaken:   k.Victim.DamageTaken,
		},
		Attackers:   attackers,
		TotalValue:  wire.ISK(k.TotalValue),
		BattleID:    k.BattleID,
		ProcessedAt: k.ProcessedAt,
	}
}

// ConvertKillmailsToList maps a page of events plus its next-page cursor.
func ConvertKillmailsToList(killmails []models.KillmailEvent, cursor string) KillmailListResponse {
	out := make([]KillmailResponse, 0, len(killmails))
	for i := range killmails {
		out = append(out, ConvertKillmailToResponse(&killmails[i]))
	}
	return KillmailListResponse{
		Killmails: out,
		Count:     len(out),
		Cursor:    cursor,
	}
}
