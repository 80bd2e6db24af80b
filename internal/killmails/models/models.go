package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// KillmailEventsCollection holds every accepted killmail event.
	KillmailEventsCollection = "killmail_events"

	// FirehoseChannel is the pub/sub channel stored killmails are announced on.
	FirehoseChannel = "killmails:firehose"
)

// KillmailEvent is one accepted kill. processed_at and battle_id are set
// together by the clustering engine and are nil until then.
type KillmailEvent struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	KillmailID   int64              `bson:"killmail_id" json:"killmail_id"`
	KillmailHash string             `bson:"killmail_hash" json:"killmail_hash"`
	OccurredAt   time.Time          `bson:"occurred_at" json:"occurred_at"`

	SolarSystemID int64  `bson:"solar_system_id" json:"solar_system_id"`
	SpaceType     string `bson:"space_type" json:"space_type"`

	Victim    Victim     `bson:"victim" json:"victim"`
	Attackers []Attacker `bson:"attackers" json:"attackers"`

	TotalValue float64 `bson:"total_value" json:"total_value"`
	SourceURL  string  `bson:"source_url,omitempty" json:"source_url,omitempty"`
	Points     int64   `bson:"points,omitempty" json:"points,omitempty"`
	NPC        bool    `bson:"npc" json:"npc"`
	Solo       bool    `bson:"solo" json:"solo"`

	ReceivedAt  time.Time  `bson:"received_at" json:"received_at"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	BattleID    *string    `bson:"battle_id,omitempty" json:"battle_id,omitempty"`
}

type Victim struct {
	CharacterID   *int64 `bson:"character_id,omitempty" json:"character_id,omitempty"`
	CorporationID *int64 `bson:"corporation_id,omitempty" json:"corporation_id,omitempty"`
	AllianceID    *int64 `bson:"alliance_id,omitempty" json:"alliance_id,omitempty"`
	FactionID     *int64 `bson:"faction_id,omitempty" json:"faction_id,omitempty"`
	ShipTypeID    int64  `bson:"ship_type_id" json:"ship_type_id"`
	DamageTaken   int64  `bson:"damage_taken" json:"damage_taken"`
}

type Attacker struct {
	CharacterID    *int64  `bson:"character_id,omitempty" json:"character_id,omitempty"`
	CorporationID  *int64  `bson:"corporation_id,omitempty" json:"corporation_id,omitempty"`
	AllianceID     *int64  `bson:"alliance_id,omitempty" json:"alliance_id,omitempty"`
	FactionID      *int64  `bson:"faction_id,omitempty" json:"faction_id,omitempty"`
	ShipTypeID     *int64  `bson:"ship_type_id,omitempty" json:"ship_type_id,omitempty"`
	WeaponTypeID   *int64  `bson:"weapon_type_id,omitempty" json:"weapon_type_id,omitempty"`
	DamageDone     int64   `bson:"damage_done" json:"damage_done"`
	FinalBlow      bool    `bson:"final_blow" json:"final_blow"`
	SecurityStatus float64 `bson:"security_status" json:"security_status"`
}

// ParticipantCount returns the number of distinct pilots on the kill,
// counting the victim and every attacker with a character ID. NPC-only
// attackers contribute nothing, but the count never drops below 1.
func (k *KillmailEvent) ParticipantCount() int {
	seen := make(map[int64]bool)
	if k.Victim.CharacterID != nil {
		seen[*k.Victim.CharacterID] = true
	}
	for _, a := range k.Attackers {
		if a.CharacterID != nil {
			seen[*a.CharacterID] = true
		}
	}
	if len(seen) == 0 {
		return 1
	}
	return len(seen)
}

// EntityIDs collects every character, corporation, alliance, ship, and weapon
// type ID on the kill for bulk name resolution.
func (k *KillmailEvent) EntityIDs() []int64 {
	seen := make(map[int64]bool)
	add := func(id *int64) {
		if id != nil && *id > 0 {
			seen[*id] = true
		}
	}

	add(k.Victim.CharacterID)
	add(k.Victim.CorporationID)
	add(k.Victim.AllianceID)
	seen[k.Victim.ShipTypeID] = true
	seen[k.SolarSystemID] = true

	for _, a := range k.Attackers {
		add(a.CharacterID)
		add(a.CorporationID)
		add(a.AllianceID)
		add(a.ShipTypeID)
		add(a.WeaponTypeID)
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}
