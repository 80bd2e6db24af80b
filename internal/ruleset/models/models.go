package models

import "time"

const (
	// RulesetsCollection holds the admission ruleset documents.
	RulesetsCollection = "rulesets"

	// ActiveRulesetID is the fixed UUID of the single active ruleset.
	ActiveRulesetID = "2f8f2f9e-0000-4000-8000-6b6174746c65"

	// InvalidateChannel is published on after every ruleset mutation so all
	// replicas drop their cached copy.
	InvalidateChannel = "ruleset:invalidate"
)

// Limits on tracked entity lists.
const (
	MaxTrackedEntities = 250
	MaxTrackedSystems  = 1000
)

// Ruleset is the operator-defined admission rule applied by ingestion.
type Ruleset struct {
	ID        string `bson:"_id" json:"id"`
	MinPilots int    `bson:"min_pilots" json:"min_pilots"`

	TrackedAllianceIDs   []int64  `bson:"tracked_alliance_ids" json:"tracked_alliance_ids"`
	TrackedCorpIDs       []int64  `bson:"tracked_corp_ids" json:"tracked_corp_ids"`
	TrackedSystemIDs     []int64  `bson:"tracked_system_ids" json:"tracked_system_ids"`
	TrackedSecurityTypes []string `bson:"tracked_security_types" json:"tracked_security_types"`
	IgnoreUnlisted       bool     `bson:"ignore_unlisted" json:"ignore_unlisted"`

	UpdatedBy string    `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// DefaultRuleset is the permissive ruleset used before an operator writes one.
func DefaultRuleset() *Ruleset {
	now := time.Now().UTC()
	return &Ruleset{
		ID:        ActiveRulesetID,
		MinPilots: 1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasTrackedEntities reports whether any alliance or corporation list is
// configured.
func (r *Ruleset) HasTrackedEntities() bool {
	return len(r.TrackedAllianceIDs) > 0 || len(r.TrackedCorpIDs) > 0
}
