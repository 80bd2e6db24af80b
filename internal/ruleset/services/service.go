package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go-battles/internal/ruleset/models"
	"go-battles/pkg/database"
	"go-battles/pkg/sde"
)

// Service owns ruleset reads and mutations. It is the only writer; every
// mutation is broadcast so replica caches converge within one round-trip.
type Service struct {
	repository *Repository
	cache      *Cache
	redis      *database.Redis
}

func NewService(repository *Repository, cache *Cache, redis *database.Redis) *Service {
	return &Service{
		repository: repository,
		cache:      cache,
		redis:      redis,
	}
}

// Get returns the active ruleset through the cache.
func (s *Service) Get(ctx context.Context) (*models.Ruleset, error) {
	return s.cache.Get(ctx)
}

// Update validates and persists a new active ruleset, then announces the
// change. A failed broadcast is logged only: readers fall back to TTL
// freshness.
func (s *Service) Update(ctx context.Context, ruleset *models.Ruleset, updatedBy string) (*models.Ruleset, error) {
	if err := Validate(ruleset); err != nil {
		return nil, err
	}

	existing, err := s.repository.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load current ruleset: %w", err)
	}

	now := time.Now().UTC()
	ruleset.ID = models.ActiveRulesetID
	ruleset.UpdatedBy = updatedBy
	ruleset.UpdatedAt = now
	if existing != nil {
		ruleset.CreatedAt = existing.CreatedAt
	} else {
		ruleset.CreatedAt = now
	}

	if err := s.repository.Upsert(ctx, ruleset); err != nil {
		return nil, fmt.Errorf("failed to persist ruleset: %w", err)
	}

	s.cache.Invalidate()
	if err := s.redis.Publish(ctx, models.InvalidateChannel, "updated"); err != nil {
		slog.WarnContext(ctx, "Failed to broadcast ruleset invalidation", "error", err)
	}

	slog.InfoContext(ctx, "Ruleset updated",
		"updated_by", updatedBy,
		"min_pilots", ruleset.MinPilots,
		"tracked_alliances", len(ruleset.TrackedAllianceIDs),
		"tracked_corps", len(ruleset.TrackedCorpIDs),
		"ignore_unlisted", ruleset.IgnoreUnlisted)
	return ruleset, nil
}

// ValidationError reports an invalid ruleset field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid ruleset field %s: %s", e.Field, e.Reason)
}

// Validate enforces the ruleset constraints: pilot floor, list size limits,
// and the security-type enum.
func Validate(r *models.Ruleset) error {
	if r.MinPilots < 1 {
		return &ValidationError{Field: "min_pilots", Reason: "must be at least 1"}
	}
	if len(r.TrackedAllianceIDs) > models.MaxTrackedEntities {
		return &ValidationError{Field: "tracked_alliance_ids", Reason: fmt.Sprintf("at most %d entries", models.MaxTrackedEntities)}
	}
	if len(r.TrackedCorpIDs) > models.MaxTrackedEntities {
		return &ValidationError{Field: "tracked_corp_ids", Reason: fmt.Sprintf("at most %d entries", models.MaxTrackedEntities)}
	}
	if len(r.TrackedSystemIDs) > models.MaxTrackedSystems {
		return &ValidationError{Field: "tracked_system_ids", Reason: fmt.Sprintf("at most %d entries", models.MaxTrackedSystems)}
	}
	for _, st := range r.TrackedSecurityTypes {
		if !sde.IsValidSpaceType(st) {
			return &ValidationError{Field: "tracked_security_types", Reason: fmt.Sprintf("unknown security type %q", st)}
		}
	}
	return nil
}

// HealthCheck verifies the backing store is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.repository.db.HealthCheck(ctx)
}
