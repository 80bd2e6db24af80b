package services

import (
	killmodels "go-battles/internal/killmails/models"
	rulemodels "go-battles/internal/ruleset/models"
)

// Drop reasons, used for logging and counters.
const (
	DropMinPilots    = "min_pilots"
	DropUnlisted     = "unlisted"
	DropSecurityType = "security_type"
)

// Admit applies the admission ruleset to a parsed event. It is pure so the
// rule gate is testable without any infrastructure. Returns the drop reason
// when the event is rejected.
func Admit(rs *rulemodels.Ruleset, event *killmodels.KillmailEvent) (bool, string) {
	if event.ParticipantCount() < rs.MinPilots {
		return false, DropMinPilots
	}

	if len(rs.TrackedSecurityTypes) > 0 && !containsString(rs.TrackedSecurityTypes, event.SpaceType) {
		return false, DropSecurityType
	}

	// ignore_unlisted is the only entity gate: when false, everything that
	// passed the pilot and security checks is admitted.
	if rs.IgnoreUnlisted && !involvesTracked(rs, event) {
		return false, DropUnlisted
	}

	return true, ""
}

// involvesTracked reports whether the kill touches any tracked alliance,
// corporation, or system.
func involvesTracked(rs *rulemodels.Ruleset, event *killmodels.KillmailEvent) bool {
	alliances := toSet(rs.TrackedAllianceIDs)
	corps := toSet(rs.TrackedCorpIDs)
	systems := toSet(rs.TrackedSystemIDs)

	if systems[event.SolarSystemID] {
		return true
	}
	if inSet(alliances, event.Victim.AllianceID) || inSet(corps, event.Victim.CorporationID) {
		return true
	}
	for _, a := range event.Attackers {
		if inSet(alliances, a.AllianceID) || inSet(corps, a.CorporationID) {
			return true
		}
	}
	return false
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func inSet(set map[int64]bool, id *int64) bool {
	return id != nil && set[*id]
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
