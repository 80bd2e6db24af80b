package sde

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// SDEService exposes the static-data lookups the pipeline needs.
type SDEService interface {
	// GetSolarSystem returns static data for a system, or nil when unknown.
	GetSolarSystem(systemID int64) *SolarSystem

	// Classify maps a system ID to its space type. Unknown known-space
	// systems fall back to nullsec; J-space is recognized by ID range even
	// without data loaded.
	Classify(systemID int64) SpaceType

	// IsLoaded reports whether the static data file was found and parsed.
	IsLoaded() bool
}

// Service loads solar-system static data from a JSON export in dataDir.
// Loading is lazy; a missing file degrades to heuristic classification.
type Service struct {
	dataDir string

	once    sync.Once
	mu      sync.RWMutex
	systems map[int64]*SolarSystem
	loaded  bool
}

// NewService creates an SDE service reading from dataDir.
func NewService(dataDir string) *Service {
	return &Service{dataDir: dataDir}
}

func (s *Service) load() {
	path := filepath.Join(s.dataDir, "solarsystems.json")
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("SDE solar system data not available, using heuristic classification", "path", path, "error", err)
		return
	}

	var systems []SolarSystem
	if err := json.Unmarshal(data, &systems); err != nil {
		slog.Error("Failed to parse SDE solar system data", "path", path, "error", err)
		return
	}

	index := make(map[int64]*SolarSystem, len(systems))
	for i := range systems {
		index[systems[i].SystemID] = &systems[i]
	}

	s.mu.Lock()
	s.systems = index
	s.loaded = true
	s.mu.Unlock()

	slog.Info("SDE solar system data loaded", "systems", len(index))
}

func (s *Service) GetSolarSystem(systemID int64) *SolarSystem {
	s.once.Do(s.load)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.systems[systemID]
}

func (s *Service) Classify(systemID int64) SpaceType {
	if systemID >= wormholeSystemMin && systemID <= wormholeSystemMax {
		return SpaceTypeWormhole
	}

	system := s.GetSolarSystem(systemID)
	if system == nil {
		return SpaceTypeNullsec
	}

	if system.RegionID == pochvenRegionID {
		return SpaceTypePochven
	}

	switch {
	case system.SecurityStatus >= 0.45:
		return SpaceTypeHighsec
	case system.SecurityStatus > 0.0:
		return SpaceTypeLowsec
	default:
		return SpaceTypeNullsec
	}
}

func (s *Service) IsLoaded() bool {
	s.once.Do(s.load)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// LoadFromSystems builds a service from an in-memory system list, for tests.
func LoadFromSystems(systems []SolarSystem) *Service {
	index := make(map[int64]*SolarSystem, len(systems))
	for i := range systems {
		index[systems[i].SystemID] = &systems[i]
	}
	s := &Service{systems: index, loaded: true}
	s.once.Do(func() {})
	return s
}

// String renders a space type for logs and URLs.
func (t SpaceType) String() string { return string(t) }
