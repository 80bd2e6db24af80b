package dto

import (
	"time"

	"go-battles/internal/ruleset/models"
	"go-battles/pkg/wire"
)

// ModuleStatusResponse reports module health.
type ModuleStatusResponse struct {
	Module  string `json:"module" doc:"Module name"`
	Status  string `json:"status" doc:"Module health status"`
	Message string `json:"message,omitempty" doc:"Optional status message"`
}

// StatusOutput wraps the module status response.
type StatusOutput struct {
	Body ModuleStatusResponse
}

// RulesetResponse is the active ruleset as served by the API.
type RulesetResponse struct {
	ID                   string    `json:"id" doc:"Fixed ruleset UUID"`
	MinPilots            int       `json:"min_pilots" doc:"Minimum distinct pilots on a kill for admission"`
	TrackedAllianceIDs   []wire.ID `json:"tracked_alliance_ids" doc:"Alliance IDs tracked"`
	TrackedCorpIDs       []wire.ID `json:"tracked_corp_ids" doc:"Corporation IDs tracked"`
	TrackedSystemIDs     []wire.ID `json:"tracked_system_ids" doc:"Solar system IDs tracked"`
	TrackedSecurityTypes []string  `json:"tracked_security_types" doc:"Space types tracked"`
	IgnoreUnlisted       bool      `json:"ignore_unlisted" doc:"Whether unlisted kills are dropped"`
	UpdatedBy            string    `json:"updated_by,omitempty" doc:"Operator who wrote this version"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// RulesetOutput wraps the ruleset response.
type RulesetOutput struct {
	Body RulesetResponse
}

func toWireIDs(ids []int64) []wire.ID {
	out := make([]wire.ID, 0, len(ids))
	for _, id := range ids {
		out = append(out, wire.ID(id))
	}
	return out
}

// FromWireIDs converts wire IDs back to the domain form.
func FromWireIDs(ids []wire.ID) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}

// ConvertRulesetToResponse maps the stored ruleset to its API shape.
func ConvertRulesetToResponse(r *models.Ruleset) RulesetResponse {
	return RulesetResponse{
		ID:                   r.ID,
		MinPilots:            r.MinPilots,
		TrackedAllianceIDs:   toWireIDs(r.TrackedAllianceIDs),
		TrackedCorpIDs:       toWireIDs(r.TrackedCorpIDs),
		TrackedSystemIDs:     toWireIDs(r.TrackedSystemIDs),
		TrackedSecurityTypes: r.TrackedSecurityTypes,
		IgnoreUnlisted:       r.IgnoreUnlisted,
		UpdatedBy:            r.UpdatedBy,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}
