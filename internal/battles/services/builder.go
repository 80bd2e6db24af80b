package services

import (
	"time"

	"go-battles/internal/battles/models"
)

// BattleRows is the complete row set of one battle, written in a single
// transaction.
type BattleRows struct {
	Battle       models.Battle
	Killmails    []models.BattleKillmail
	Participants []models.BattleParticipant
	ShipHistory  []models.PilotShipHistory
}

// BuildBattleRows turns a qualifying cluster into its persistent rows.
// Participants collapse to one row per (character, ship type); a pilot who
// both lost a ship and whored on another kill in the same hull keeps a
// single row with is_victim set. Ship history is one row per (character,
// killmail), the victim entry winning over an attacker entry for the same
// character.
func BuildBattleRows(c Cluster, battleID, securityType string, now time.Time) BattleRows {
	battle := models.Battle{
		ID:                battleID,
		SystemID:          c.SystemID,
		SecurityType:      securityType,
		StartTime:         c.Start(),
		EndTime:           c.End(),
		TotalKills:        int64(len(c.Events)),
		TotalISKDestroyed: c.TotalValue(),
		RelatedURL:        RelatedURL(c.SystemID, c.Start()),
		CreatedAt:         now,
	}

	rows := BattleRows{Battle: battle}

	type participantKey struct {
		character int64
		shipType  int64
	}
	participants := make(map[participantKey]*models.BattleParticipant)
	history := make(map[int64]*models.PilotShipHistory)

	addParticipant := func(characterID, shipTypeID int64, corpID, allianceID *int64, isVictim bool) {
		key := participantKey{character: characterID, shipType: shipTypeID}
		if existing, ok := participants[key]; ok {
			if isVictim {
				existing.IsVictim = true
			}
			return
		}
		participants[key] = &models.BattleParticipant{
			BattleID:      battleID,
			CharacterID:   characterID,
			ShipTypeID:    shipTypeID,
			CorporationID: corpID,
			AllianceID:    allianceID,
			IsVictim:      isVictim,
		}
	}

	for i := range c.Events {
		ev := &c.Events[i]

		edge := models.BattleKillmail{
			BattleID:         battleID,
			KillmailID:       ev.KillmailID,
			OccurredAt:       ev.OccurredAt,
			VictimAllianceID: ev.Victim.AllianceID,
			ISKValue:         ev.TotalValue,
		}
		for _, a := range ev.Attackers {
			if a.AllianceID != nil {
				edge.AttackerAllianceIDs = appendUnique(edge.AttackerAllianceIDs, *a.AllianceID)
			}
		}
		rows.Killmails = append(rows.Killmails, edge)

		if ev.Victim.CharacterID != nil {
			addParticipant(*ev.Victim.CharacterID, ev.Victim.ShipTypeID, ev.Victim.CorporationID, ev.Victim.AllianceID, true)
			history[*ev.Victim.CharacterID] = &models.PilotShipHistory{
				CharacterID:   *ev.Victim.CharacterID,
				KillmailID:    ev.KillmailID,
				BattleID:      battleID,
				ShipTypeID:    ev.Victim.ShipTypeID,
				CorporationID: ev.Victim.CorporationID,
				AllianceID:    ev.Victim.AllianceID,
				SolarSystemID: ev.SolarSystemID,
				IsLoss:        true,
				KillmailValue: ev.TotalValue,
				OccurredAt:    ev.OccurredAt,
			}
		}

		for _, a := range ev.Attackers {
			if a.CharacterID == nil {
				continue
			}
			shipType := int64(0)
			if a.ShipTypeID != nil {
				shipType = *a.ShipTypeID
			}
			addParticipant(*a.CharacterID, shipType, a.CorporationID, a.AllianceID, false)

			if existing, ok := history[*a.CharacterID]; ok && (existing.IsLoss || existing.KillmailID == ev.KillmailID) {
				continue
			}
			history[*a.CharacterID] = &models.PilotShipHistory{
				CharacterID:   *a.CharacterID,
				KillmailID:    ev.KillmailID,
				BattleID:      battleID,
				ShipTypeID:    shipType,
				CorporationID: a.CorporationID,
				AllianceID:    a.AllianceID,
				SolarSystemID: ev.SolarSystemID,
				IsLoss:        false,
				KillmailValue: ev.TotalValue,
				OccurredAt:    ev.OccurredAt,
			}
		}
	}

	for _, p := range participants {
		rows.Participants = append(rows.Participants, *p)
	}
	for _, h := range history {
		rows.ShipHistory = append(rows.ShipHistory, *h)
	}
	return rows
}

// EntityIDs collects every identifier the battle's rows reference, for bulk
// name resolution when the battle is served.
func (r *BattleRows) EntityIDs() []int64 {
	seen := map[int64]bool{r.Battle.SystemID: true}
	for _, p := range r.Participants {
		seen[p.CharacterID] = true
		if p.CorporationID != nil {
			seen[*p.CorporationID] = true
		}
		if p.AllianceID != nil {
			seen[*p.AllianceID] = true
		}
		if p.ShipTypeID > 0 {
			seen[p.ShipTypeID] = true
		}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
