package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// BattlesCollection holds one document per reconstructed battle.
	BattlesCollection = "battles"

	// BattleKillmailsCollection holds the battle↔killmail edges.
	BattleKillmailsCollection = "battle_killmails"

	// BattleParticipantsCollection holds one row per (battle, character,
	// ship type).
	BattleParticipantsCollection = "battle_participants"

	// PilotShipHistoryCollection holds one row per (character, killmail)
	// once the killmail is attached to a battle.
	PilotShipHistoryCollection = "pilot_ship_history"
)

// Battle is one reconstructed engagement: a gap-and-window cluster of kills
// in a single solar system.
type Battle struct {
	ID           string    `bson:"_id" json:"id"`
	SystemID     int64     `bson:"system_id" json:"system_id"`
	SecurityType string    `bson:"security_type" json:"security_type"`
	StartTime    time.Time `bson:"start_time" json:"start_time"`
	EndTime      time.Time `bson:"end_time" json:"end_time"`

	TotalKills        int64   `bson:"total_kills" json:"total_kills"`
	TotalISKDestroyed float64 `bson:"total_isk_destroyed" json:"total_isk_destroyed"`

	RelatedURL string    `bson:"related_url" json:"related_url"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// BattleKillmail links one killmail into a battle, denormalizing the fields
// battle queries filter on. SideID is persisted but never assigned.
type BattleKillmail struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	BattleID   string             `bson:"battle_id" json:"battle_id"`
	KillmailID int64              `bson:"killmail_id" json:"killmail_id"`
	OccurredAt time.Time          `bson:"occurred_at" json:"occurred_at"`

	VictimAllianceID    *int64  `bson:"victim_alliance_id,omitempty" json:"victim_alliance_id,omitempty"`
	AttackerAllianceIDs []int64 `bson:"attacker_alliance_ids,omitempty" json:"attacker_alliance_ids,omitempty"`
	ISKValue            float64 `bson:"isk_value" json:"isk_value"`

	SideID *string `bson:"side_id,omitempty" json:"side_id,omitempty"`
}

// BattleParticipant is one pilot flying one hull in one battle. A pilot
// reshipping mid-battle produces one row per hull.
type BattleParticipant struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	BattleID    string             `bson:"battle_id" json:"battle_id"`
	CharacterID int64              `bson:"character_id" json:"character_id"`
	ShipTypeID  int64              `bson:"ship_type_id" json:"ship_type_id"`

	CorporationID *int64 `bson:"corporation_id,omitempty" json:"corporation_id,omitempty"`
	AllianceID    *int64 `bson:"alliance_id,omitempty" json:"alliance_id,omitempty"`

	SideID   *string `bson:"side_id,omitempty" json:"side_id,omitempty"`
	IsVictim bool    `bson:"is_victim" json:"is_victim"`
}

// PilotShipHistory records what a pilot flew on one killmail, with their
// affiliation at the time of the event.
type PilotShipHistory struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	CharacterID int64              `bson:"character_id" json:"character_id"`
	KillmailID  int64              `bson:"killmail_id" json:"killmail_id"`
	BattleID    string             `bson:"battle_id" json:"battle_id"`
	ShipTypeID  int64              `bson:"ship_type_id" json:"ship_type_id"`

	CorporationID *int64 `bson:"corporation_id,omitempty" json:"corporation_id,omitempty"`
	AllianceID    *int64 `bson:"alliance_id,omitempty" json:"alliance_id,omitempty"`

	SolarSystemID int64     `bson:"solar_system_id" json:"solar_system_id"`
	IsLoss        bool      `bson:"is_loss" json:"is_loss"`
	ShipValue     float64   `bson:"ship_value" json:"ship_value"`
	KillmailValue float64   `bson:"killmail_value" json:"killmail_value"`
	OccurredAt    time.Time `bson:"occurred_at" json:"occurred_at"`
}

// EntityIDs collects the identifiers a battle document needs resolved for
// display.
func (b *Battle) EntityIDs() []int64 {
	return []int64{b.SystemID}
}
