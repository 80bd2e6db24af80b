package services

import (
	"testing"
	"time"

	"go-battles/internal/ingest/dto"
	"go-battles/pkg/sde"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticClassifier maps every system to one space type.
type staticClassifier struct {
	spaceType sde.SpaceType
}

func (s staticClassifier) GetSolarSystem(systemID int64) *sde.SolarSystem { return nil }
func (s staticClassifier) Classify(systemID int64) sde.SpaceType          { return s.spaceType }
func (s staticClassifier) IsLoaded() bool                                 { return true }

func validPackage() *dto.SourcePackage {
	return &dto.SourcePackage{
		KillID: 128000001,
		Killmail: dto.SourceKillmail{
			KillmailID:    128000001,
			KillmailTime:  "2026-08-01T12:00:00Z",
			SolarSystemID: 30000142,
			Victim: dto.SourceVictim{
				CharacterID: int64Ptr(90001),
				ShipTypeID:  587,
				DamageTaken: 4242,
			},
			Attackers: []dto.SourceAttacker{
				{CharacterID: int64Ptr(90002), DamageDone: 4000, FinalBlow: true},
				{CharacterID: int64Ptr(90003), DamageDone: 242},
			},
		},
		ZKB: dto.ZKBData{
			Hash:       "abc123",
			TotalValue: 61_000_000.5,
			Points:     10,
			URL:        "https://zkillboard.com/kill/128000001/",
		},
	}
}

func TestParsePackage(t *testing.T) {
	event, err := ParsePackage(validPackage(), staticClassifier{sde.SpaceTypeHighsec})
	require.NoError(t, err)

	assert.Equal(t, int64(128000001), event.KillmailID)
	assert.Equal(t, "abc123", event.KillmailHash)
	assert.Equal(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), event.OccurredAt)
	assert.Equal(t, "highsec", event.SpaceType)
	assert.Equal(t, 61_000_000.5, event.TotalValue)
	assert.Equal(t, "https://zkillboard.com/kill/128000001/", event.SourceURL)
	assert.Len(t, event.Attackers, 2)
	assert.False(t, event.ReceivedAt.IsZero())
	assert.Nil(t, event.ProcessedAt)
	assert.Nil(t, event.BattleID)
}

func TestParsePackageRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dto.SourcePackage)
	}{
		{"missing killmail_id", func(p *dto.SourcePackage) { p.Killmail.KillmailID = 0 }},
		{"missing solar_system_id", func(p *dto.SourcePackage) { p.Killmail.SolarSystemID = 0 }},
		{"bad killmail_time", func(p *dto.SourcePackage) { p.Killmail.KillmailTime = "yesterday" }},
		{"missing victim ship", func(p *dto.SourcePackage) { p.Killmail.Victim.ShipTypeID = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg := validPackage()
			tt.mutate(pkg)
			_, err := ParsePackage(pkg, staticClassifier{sde.SpaceTypeHighsec})
			assert.Error(t, err)
		})
	}
}

func TestParsePackageDropsIdentitylessAttackers(t *testing.T) {
	pkg := validPackage()
	pkg.Killmail.Attackers = append(pkg.Killmail.Attackers, dto.SourceAttacker{DamageDone: 999})

	event, err := ParsePackage(pkg, staticClassifier{sde.SpaceTypeNullsec})
	require.NoError(t, err)
	assert.Len(t, event.Attackers, 2, "attacker with no identity is dropped")
}

func TestParsePackageDeduplicatesCharacters(t *testing.T) {
	pkg := validPackage()
	pkg.Killmail.Attackers = []dto.SourceAttacker{
		{CharacterID: int64Ptr(90002), DamageDone: 100},
		{CharacterID: int64Ptr(90002), DamageDone: 4000, FinalBlow: true},
		{CharacterID: int64Ptr(90002), DamageDone: 200},
	}

	event, err := ParsePackage(pkg, staticClassifier{sde.SpaceTypeHighsec})
	require.NoError(t, err)
	require.Len(t, event.Attackers, 1)
	assert.True(t, event.Attackers[0].FinalBlow, "final-blow entry wins")
	assert.Equal(t, int64(4000), event.Attackers[0].DamageDone)
}

func TestParsePackageOptionalAffiliationsStayNil(t *testing.T) {
	pkg := validPackage()
	pkg.Killmail.Victim.CorporationID = nil
	pkg.Killmail.Victim.AllianceID = nil

	event, err := ParsePackage(pkg, staticClassifier{sde.SpaceTypeHighsec})
	require.NoError(t, err)
	assert.Nil(t, event.Victim.CorporationID)
	assert.Nil(t, event.Victim.AllianceID)
}
