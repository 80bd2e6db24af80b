package services

import (
	"fmt"
	"time"

	"go-battles/internal/ingest/dto"
	killmodels "go-battles/internal/killmails/models"
	"go-battles/pkg/sde"
)

// ParsePackage converts a source package into the strict event form. Missing
// required fields reject the package; optional fields stay nil rather than
// defaulting. Attacker lists are normalized: entries with no identity at all
// are dropped, and repeated characters are deduplicated keeping the entry
// with the final blow or the most damage.
func ParsePackage(pkg *dto.SourcePackage, classifier sde.SDEService) (*killmodels.KillmailEvent, error) {
	km := &pkg.Killmail

	if km.KillmailID == 0 {
		return nil, fmt.Errorf("package %d: missing killmail_id", pkg.KillID)
	}
	if km.SolarSystemID == 0 {
		return nil, fmt.Errorf("killmail %d: missing solar_system_id", km.KillmailID)
	}
	occurredAt, err := time.Parse(time.RFC3339, km.KillmailTime)
	if err != nil {
		return nil, fmt.Errorf("killmail %d: bad killmail_time: %w", km.KillmailID, err)
	}
	if km.Victim.ShipTypeID == 0 {
		return nil, fmt.Errorf("killmail %d: missing victim ship_type_id", km.KillmailID)
	}

	event := &killmodels.KillmailEvent{
		KillmailID:    km.KillmailID,
		KillmailHash:  pkg.ZKB.Hash,
		OccurredAt:    occurredAt.UTC(),
		SolarSystemID: km.SolarSystemID,
		SpaceType:     string(classifier.Classify(km.SolarSystemID)),
		Victim: killmodels.Victim{
			CharacterID:   km.Victim.CharacterID,
			CorporationID: km.Victim.CorporationID,
			AllianceID:    km.Victim.AllianceID,
			FactionID:     km.Victim.FactionID,
			ShipTypeID:    km.Victim.ShipTypeID,
			DamageTaken:   km.Victim.DamageTaken,
		},
		Attackers:  normalizeAttackers(km.Attackers),
		TotalValue: pkg.ZKB.TotalValue,
		Points:     int64(pkg.ZKB.Points),
		NPC:        pkg.ZKB.NPC,
		Solo:       pkg.ZKB.Solo,
		SourceURL:  sourceURL(&pkg.ZKB),
		ReceivedAt: time.Now().UTC(),
	}
	return event, nil
}

func sourceURL(zkb *dto.ZKBData) string {
	if zkb.URL != "" {
		return zkb.URL
	}
	return zkb.Href
}

// normalizeAttackers drops entries with no identity and collapses duplicate
// characters.
func normalizeAttackers(in []dto.SourceAttacker) []killmodels.Attacker {
	out := make([]killmodels.Attacker, 0, len(in))
	byCharacter := make(map[int64]int)

	for _, a := range in {
		if a.CharacterID == nil && a.CorporationID == nil && a.AllianceID == nil && a.FactionID == nil {
			continue
		}

		attacker := killmodels.Attacker{
			CharacterID:    a.CharacterID,
			CorporationID:  a.CorporationID,
			AllianceID:     a.AllianceID,
			FactionID:      a.FactionID,
			ShipTypeID:     a.ShipTypeID,
			WeaponTypeID:   a.WeaponTypeID,
			DamageDone:     a.DamageDone,
			FinalBlow:      a.FinalBlow,
			SecurityStatus: a.SecurityStatus,
		}

		if a.CharacterID != nil {
			if idx, dup := byCharacter[*a.CharacterID]; dup {
				if attacker.FinalBlow || attacker.DamageDone > out[idx].DamageDone {
					out[idx] = attacker
				}
				continue
			}
			byCharacter[*a.CharacterID] = len(out)
		}
		out = append(out, attacker)
	}
	return out
}
