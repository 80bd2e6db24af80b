package sde

// SpaceType classifies a solar system by its security regime.
type SpaceType string

const (
	SpaceTypeHighsec  SpaceType = "highsec"
	SpaceTypeLowsec   SpaceType = "lowsec"
	SpaceTypeNullsec  SpaceType = "nullsec"
	SpaceTypeWormhole SpaceType = "wormhole"
	SpaceTypePochven  SpaceType = "pochven"
)

// ValidSpaceTypes lists every recognized space type, for input validation.
var ValidSpaceTypes = []SpaceType{
	SpaceTypeHighsec,
	SpaceTypeLowsec,
	SpaceTypeNullsec,
	SpaceTypeWormhole,
	SpaceTypePochven,
}

// IsValidSpaceType reports whether s names a known space type.
func IsValidSpaceType(s string) bool {
	for _, t := range ValidSpaceTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// SolarSystem holds the static data needed to classify a system.
type SolarSystem struct {
	SystemID       int64   `json:"system_id"`
	RegionID       int64   `json:"region_id"`
	SecurityStatus float64 `json:"security_status"`
}

const (
	// pochvenRegionID is the Triglavian region carved out of known space.
	pochvenRegionID = 10000070

	// J-space and abyssal system ID ranges.
	wormholeSystemMin = 31000000
	wormholeSystemMax = 31999999
)
