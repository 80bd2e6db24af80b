package dto

// SourceResponse is one long-poll response from the upstream killmail
// source. An idle poll returns {"package": null}.
type SourceResponse struct {
	Package *SourcePackage `json:"package"`
}

// SourcePackage is one killmail delivery.
type SourcePackage struct {
	KillID   int64          `json:"killID"`
	Killmail SourceKillmail `json:"killmail"`
	ZKB      ZKBData        `json:"zkb"`
}

// ZKBData is the source's own metadata block.
type ZKBData struct {
	LocationID     int64   `json:"locationID"`
	Hash           string  `json:"hash"`
	FittedValue    float64 `json:"fittedValue"`
	DroppedValue   float64 `json:"droppedValue"`
	DestroyedValue float64 `json:"destroyedValue"`
	TotalValue     float64 `json:"totalValue"`
	Points         int     `json:"points"`
	NPC            bool    `json:"npc"`
	Solo           bool    `json:"solo"`
	URL            string  `json:"url,omitempty"`
	Href           string  `json:"href,omitempty"`
}

// SourceKillmail is the killmail body inside a package.
type SourceKillmail struct {
	KillmailID    int64            `json:"killmail_id"`
	KillmailTime  string           `json:"killmail_time"`
	SolarSystemID int64            `json:"solar_system_id"`
	Victim        SourceVictim     `json:"victim"`
	Attackers     []SourceAttacker `json:"attackers"`
}

// SourceVictim is the victim block; optional affiliations stay nil when the
// upstream omits them.
type SourceVictim struct {
	CharacterID   *int64 `json:"character_id,omitempty"`
	CorporationID *int64 `json:"corporation_id,omitempty"`
	AllianceID    *int64 `json:"alliance_id,omitempty"`
	FactionID     *int64 `json:"faction_id,omitempty"`
	ShipTypeID    int64  `json:"ship_type_id"`
	DamageTaken   int64  `json:"damage_taken"`
}

// SourceAttacker is one attacker entry. NPC attackers carry no character ID.
type SourceAttacker struct {
	CharacterID    *int64  `json:"character_id,omitempty"`
	CorporationID  *int64  `json:"corporation_id,omitempty"`
	AllianceID     *int64  `json:"alliance_id,omitempty"`
	FactionID      *int64  `json:"faction_id,omitempty"`
	ShipTypeID     *int64  `json:"ship_type_id,omitempty"`
	WeaponTypeID   *int64  `json:"weapon_type_id,omitempty"`
	DamageDone     int64   `json:"damage_done"`
	FinalBlow      bool    `json:"final_blow"`
	SecurityStatus float64 `json:"security_status"`
}
