package services

import (
	"testing"
	"time"

	"go-battles/internal/battles/models"
	killmodels "go-battles/internal/killmails/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestBuildBattleRows(t *testing.T) {
	victim1 := int64Ptr(90001)
	victim2 := int64Ptr(90002)
	attacker := int64Ptr(90003)
	alliance := int64Ptr(99001234)
	corp := int64Ptr(98000001)
	ship := int64Ptr(670)

	cluster := Cluster{
		SystemID: 30000142,
		Events: []killmodels.KillmailEvent{
			{
				KillmailID:    1,
				SolarSystemID: 30000142,
				OccurredAt:    clusterBase,
				TotalValue:    100_000_000,
				Victim: killmodels.Victim{
					CharacterID: victim1,
					AllianceID:  alliance,
					ShipTypeID:  587,
				},
				Attackers: []killmodels.Attacker{
					{CharacterID: attacker, CorporationID: corp, ShipTypeID: ship, DamageDone: 500, FinalBlow: true},
				},
			},
			{
				KillmailID:    2,
				SolarSystemID: 30000142,
				OccurredAt:    clusterBase.Add(5 * time.Minute),
				TotalValue:    50_000_000,
				Victim: killmodels.Victim{
					CharacterID: victim2,
					ShipTypeID:  587,
				},
				Attackers: []killmodels.Attacker{
					// Same attacker in the same hull on a second kill.
					{CharacterID: attacker, CorporationID: corp, ShipTypeID: ship, DamageDone: 900},
					// NPC attacker without identity.
					{DamageDone: 100},
				},
			},
		},
	}

	rows := BuildBattleRows(cluster, "battle-uuid", "highsec", clusterBase.Add(time.Hour))

	assert.Equal(t, "battle-uuid", rows.Battle.ID)
	assert.Equal(t, int64(2), rows.Battle.TotalKills)
	assert.Equal(t, 150_000_000.0, rows.Battle.TotalISKDestroyed)
	assert.Equal(t, clusterBase, rows.Battle.StartTime)
	assert.Equal(t, clusterBase.Add(5*time.Minute), rows.Battle.EndTime)
	assert.Equal(t, "highsec", rows.Battle.SecurityType)
	assert.Contains(t, rows.Battle.RelatedURL, "30000142")

	require.Len(t, rows.Killmails, 2)
	assert.Equal(t, alliance, rows.Killmails[0].VictimAllianceID)
	assert.Equal(t, 100_000_000.0, rows.Killmails[0].ISKValue)
	assert.Nil(t, rows.Killmails[0].SideID)

	// Three distinct (character, ship) pairs: two victims and one attacker,
	// the attacker collapsed across both kills.
	require.Len(t, rows.Participants, 3)
	victims := 0
	for _, p := range rows.Participants {
		if p.IsVictim {
			victims++
		}
	}
	assert.Equal(t, 2, victims)

	// One history row per pilot; victims are losses.
	require.Len(t, rows.ShipHistory, 3)
	byCharacter := map[int64]bool{}
	for _, h := range rows.ShipHistory {
		byCharacter[h.CharacterID] = h.IsLoss
		assert.Equal(t, "battle-uuid", h.BattleID)
	}
	assert.True(t, byCharacter[*victim1])
	assert.True(t, byCharacter[*victim2])
	assert.False(t, byCharacter[*attacker])
}

func TestBuildBattleRowsVictimWinsHistory(t *testing.T) {
	pilot := int64Ptr(90001)
	other := int64Ptr(90002)

	cluster := Cluster{
		SystemID: 30000142,
		Events: []killmodels.KillmailEvent{
			{
				KillmailID: 1,
				OccurredAt: clusterBase,
				Victim:     killmodels.Victim{CharacterID: other, ShipTypeID: 587},
				Attackers:  []killmodels.Attacker{{CharacterID: pilot, ShipTypeID: int64Ptr(670)}},
			},
			{
				KillmailID: 2,
				OccurredAt: clusterBase.Add(time.Minute),
				Victim:     killmodels.Victim{CharacterID: pilot, ShipTypeID: 670},
			},
		},
	}

	rows := BuildBattleRows(cluster, "b", "lowsec", clusterBase)

	var pilotHistory []int64
	for _, h := range rows.ShipHistory {
		if h.CharacterID == *pilot {
			pilotHistory = append(pilotHistory, h.KillmailID)
			assert.True(t, h.IsLoss, "the loss row wins for a pilot who also attacked")
		}
	}
	require.Len(t, pilotHistory, 1)
	assert.Equal(t, int64(2), pilotHistory[0])
}

func TestBattleRowsEntityIDs(t *testing.T) {
	rows := BattleRows{
		Battle: models.Battle{ID: "b", SystemID: 30000142},
		Participants: []models.BattleParticipant{
			{
				BattleID:      "b",
				CharacterID:   90001,
				ShipTypeID:    670,
				CorporationID: int64Ptr(98000001),
				AllianceID:    int64Ptr(99001234),
			},
		},
	}

	ids := rows.EntityIDs()
	assert.ElementsMatch(t, []int64{30000142, 90001, 670, 98000001, 99001234}, ids)
}
