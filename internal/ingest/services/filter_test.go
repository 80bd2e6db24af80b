package services

import (
	"testing"

	killmodels "go-battles/internal/killmails/models"
	rulemodels "go-battles/internal/ruleset/models"

	"github.com/stretchr/testify/assert"
)

func int64Ptr(v int64) *int64 { return &v }

func killWithAttackerAlliance(allianceID int64) *killmodels.KillmailEvent {
	return &killmodels.KillmailEvent{
		KillmailID:    123,
		SolarSystemID: 30000142,
		SpaceType:     "highsec",
		Victim: killmodels.Victim{
			CharacterID: int64Ptr(90001),
			ShipTypeID:  587,
		},
		Attackers: []killmodels.Attacker{
			{CharacterID: int64Ptr(90002), AllianceID: int64Ptr(allianceID)},
		},
	}
}

func TestAdmitTrackedAttackerAlliance(t *testing.T) {
	// A ruleset tracking alliance 99001234 with ignore_unlisted admits a
	// kill whose only link is one attacker in that alliance.
	rs := &rulemodels.Ruleset{
		MinPilots:          1,
		TrackedAllianceIDs: []int64{99001234},
		IgnoreUnlisted:     true,
	}

	ok, reason := Admit(rs, killWithAttackerAlliance(99001234))
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = Admit(rs, killWithAttackerAlliance(99005678))
	assert.False(t, ok)
	assert.Equal(t, DropUnlisted, reason)
}

func TestAdmitUnlistedAllowedWhenNotIgnoring(t *testing.T) {
	rs := &rulemodels.Ruleset{
		MinPilots:          1,
		TrackedAllianceIDs: []int64{99001234},
		IgnoreUnlisted:     false,
	}

	ok, _ := Admit(rs, killWithAttackerAlliance(99005678))
	assert.True(t, ok, "without ignore_unlisted the entity lists do not gate")
}

func TestAdmitMinPilots(t *testing.T) {
	rs := &rulemodels.Ruleset{MinPilots: 3}

	event := killWithAttackerAlliance(99001234) // victim + one attacker = 2 pilots
	ok, reason := Admit(rs, event)
	assert.False(t, ok)
	assert.Equal(t, DropMinPilots, reason)

	event.Attackers = append(event.Attackers, killmodels.Attacker{CharacterID: int64Ptr(90003)})
	ok, _ = Admit(rs, event)
	assert.True(t, ok)
}

func TestAdmitMinPilotsCountsDistinctCharacters(t *testing.T) {
	rs := &rulemodels.Ruleset{MinPilots: 2}

	// Victim plus an NPC-only attacker: one distinct pilot.
	event := &killmodels.KillmailEvent{
		SolarSystemID: 30000142,
		Victim:        killmodels.Victim{CharacterID: int64Ptr(90001), ShipTypeID: 587},
		Attackers:     []killmodels.Attacker{{DamageDone: 100}},
	}
	ok, reason := Admit(rs, event)
	assert.False(t, ok)
	assert.Equal(t, DropMinPilots, reason)
}

func TestAdmitSecurityGateAlwaysApplies(t *testing.T) {
	// The security gate fires even for kills involving tracked entities.
	rs := &rulemodels.Ruleset{
		MinPilots:            1,
		TrackedAllianceIDs:   []int64{99001234},
		TrackedSecurityTypes: []string{"nullsec", "lowsec"},
		IgnoreUnlisted:       true,
	}

	event := killWithAttackerAlliance(99001234)
	event.SpaceType = "highsec"
	ok, reason := Admit(rs, event)
	assert.False(t, ok)
	assert.Equal(t, DropSecurityType, reason)

	event.SpaceType = "lowsec"
	ok, _ = Admit(rs, event)
	assert.True(t, ok)
}

func TestAdmitTrackedSystem(t *testing.T) {
	rs := &rulemodels.Ruleset{
		MinPilots:        1,
		TrackedSystemIDs: []int64{30000142},
		IgnoreUnlisted:   true,
	}

	ok, _ := Admit(rs, killWithAttackerAlliance(99005678))
	assert.True(t, ok, "a kill in a tracked system is admitted regardless of entities")
}

func TestAdmitTrackedVictimCorp(t *testing.T) {
	rs := &rulemodels.Ruleset{
		MinPilots:      1,
		TrackedCorpIDs: []int64{98000001},
		IgnoreUnlisted: true,
	}

	event := killWithAttackerAlliance(99005678)
	event.Victim.CorporationID = int64Ptr(98000001)
	ok, _ := Admit(rs, event)
	assert.True(t, ok)
}
