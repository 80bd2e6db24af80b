package dto

import "go-battles/pkg/wire"

// RulesetPayload is the operator-supplied admission rule.
type RulesetPayload struct {
	MinPilots            int       `json:"min_pilots" validate:"gte=1,lte=65535" doc:"Minimum distinct pilots on a kill for admission"`
	TrackedAllianceIDs   []wire.ID `json:"tracked_alliance_ids,omitempty" validate:"max=250" doc:"Alliance IDs to track"`
	TrackedCorpIDs       []wire.ID `json:"tracked_corp_ids,omitempty" validate:"max=250" doc:"Corporation IDs to track"`
	TrackedSystemIDs     []wire.ID `json:"tracked_system_ids,omitempty" validate:"max=1000" doc:"Solar system IDs to track"`
	TrackedSecurityTypes []string  `json:"tracked_security_types,omitempty" validate:"dive,oneof=highsec lowsec nullsec wormhole pochven" doc:"Space types to track"`
	IgnoreUnlisted       bool      `json:"ignore_unlisted" doc:"Drop kills that involve none of the tracked entities"`
}

// UpdateRulesetInput carries the new ruleset plus the operator identity
// forwarded by the auth gateway.
type UpdateRulesetInput struct {
	Operator string `header:"X-Operator" doc:"Operator identity forwarded by the authentication gateway"`
	Body     RulesetPayload
}
