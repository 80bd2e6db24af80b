package dto

import "time"

// ListBattlesInput filters and pages the battle listing.
type ListBattlesInput struct {
	Limit        int       `query:"limit" minimum:"1" maximum:"100" default:"50" doc:"Page size"`
	Cursor       string    `query:"cursor" doc:"Opaque cursor from a previous page"`
	SystemID     int64     `query:"system_id" doc:"Only battles in this solar system"`
	SecurityType string    `query:"security_type" enum:"highsec,lowsec,nullsec,wormhole,pochven" doc:"Only battles in this space type"`
	Since        time.Time `query:"since" doc:"Only battles starting at or after this time"`
	Until        time.Time `query:"until" doc:"Only battles starting at or before this time"`
}

// GetBattleInput identifies one battle.
type GetBattleInput struct {
	BattleID string `path:"battle_id" format:"uuid" doc:"Battle UUID"`
}

// EntityBattlesInput pages the battles one entity participated in.
type EntityBattlesInput struct {
	EntityID int64  `path:"entity_id" minimum:"1" doc:"Entity ID"`
	Limit    int    `query:"limit" minimum:"1" maximum:"100" default:"50" doc:"Page size"`
	Cursor   string `query:"cursor" doc:"Opaque cursor from a previous page"`
}

// EntityStatsInput identifies one entity for aggregate statistics.
type EntityStatsInput struct {
	EntityID int64 `path:"entity_id" minimum:"1" doc:"Entity ID"`
}

// ShipHistoryInput pages one pilot's ship history.
type ShipHistoryInput struct {
	CharacterID int64  `path:"character_id" minimum:"1" doc:"Character ID"`
	Limit       int    `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Page size"`
	Cursor      string `query:"cursor" doc:"Opaque cursor from a previous page"`
}
