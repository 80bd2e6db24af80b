package sde

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testService() *Service {
	return LoadFromSystems([]SolarSystem{
		{SystemID: 30000142, RegionID: 10000002, SecurityStatus: 0.946}, // Jita
		{SystemID: 30002813, RegionID: 10000069, SecurityStatus: 0.323},
		{SystemID: 30004759, RegionID: 10000060, SecurityStatus: -0.02},
		{SystemID: 30000021, RegionID: 10000070, SecurityStatus: 0.7}, // Pochven overrides security
	})
}

func TestClassify(t *testing.T) {
	svc := testService()

	tests := []struct {
		name     string
		systemID int64
		want     SpaceType
	}{
		{"highsec", 30000142, SpaceTypeHighsec},
		{"lowsec", 30002813, SpaceTypeLowsec},
		{"nullsec negative security", 30004759, SpaceTypeNullsec},
		{"pochven region wins over security", 30000021, SpaceTypePochven},
		{"wormhole by id range", 31000005, SpaceTypeWormhole},
		{"wormhole range upper bound", 31999999, SpaceTypeWormhole},
		{"unknown known-space system falls back to nullsec", 30009999, SpaceTypeNullsec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.Classify(tt.systemID))
		})
	}
}

func TestClassifyHighsecBoundary(t *testing.T) {
	svc := LoadFromSystems([]SolarSystem{
		{SystemID: 1, SecurityStatus: 0.45},
		{SystemID: 2, SecurityStatus: 0.449},
		{SystemID: 3, SecurityStatus: 0.0},
	})

	assert.Equal(t, SpaceTypeHighsec, svc.Classify(1), "0.45 is highsec")
	assert.Equal(t, SpaceTypeLowsec, svc.Classify(2))
	assert.Equal(t, SpaceTypeNullsec, svc.Classify(3), "exactly 0.0 is nullsec")
}

func TestClassifyWithoutData(t *testing.T) {
	svc := NewService(t.TempDir())

	assert.False(t, svc.IsLoaded())
	assert.Equal(t, SpaceTypeWormhole, svc.Classify(31001234), "J-space needs no data")
	assert.Equal(t, SpaceTypeNullsec, svc.Classify(30000142))
}

func TestIsValidSpaceType(t *testing.T) {
	for _, s := range ValidSpaceTypes {
		assert.True(t, IsValidSpaceType(string(s)))
	}
	assert.False(t, IsValidSpaceType("abyssal"))
	assert.False(t, IsValidSpaceType(""))
}
