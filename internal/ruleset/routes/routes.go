package routes

import (
	"context"
	"errors"
	"net/http"

	"go-battles/internal/ruleset/dto"
	"go-battles/internal/ruleset/models"
	"go-battles/internal/ruleset/services"
	"go-battles/pkg/permissions"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RegisterRulesetRoutes registers the ruleset read and mutation routes. The
// PUT is gated by the authorization enforcer; the operator identity arrives
// from the auth gateway in the X-Operator header.
func RegisterRulesetRoutes(api huma.API, basePath string, service *services.Service, enforcer *permissions.Enforcer) {
	huma.Register(api, huma.Operation{
		OperationID:   "getRulesetStatus",
		Method:        http.MethodGet,
		Path:          basePath + "/status",
		Summary:       "Get ruleset module status",
		Tags:          []string{"Module Status"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.StatusOutput, error) {
		if err := service.HealthCheck(ctx); err != nil {
			return &dto.StatusOutput{
				Body: dto.ModuleStatusResponse{Module: "ruleset", Status: "unhealthy", Message: err.Error()},
			}, nil
		}
		return &dto.StatusOutput{
			Body: dto.ModuleStatusResponse{Module: "ruleset", Status: "healthy"},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "getRuleset",
		Method:        http.MethodGet,
		Path:          basePath,
		Summary:       "Get the active admission ruleset",
		Tags:          []string{"Ruleset"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct{}) (*dto.RulesetOutput, error) {
		ruleset, err := service.Get(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to load ruleset", err)
		}
		return &dto.RulesetOutput{Body: dto.ConvertRulesetToResponse(ruleset)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "updateRuleset",
		Method:        http.MethodPut,
		Path:          basePath,
		Summary:       "Replace the active admission ruleset",
		Description:   "Persists the new ruleset and broadcasts an invalidation so every replica converges within one round-trip.",
		Tags:          []string{"Ruleset"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *dto.UpdateRulesetInput) (*dto.RulesetOutput, error) {
		if input.Operator == "" {
			return nil, huma.Error401Unauthorized("Operator identity required")
		}
		allowed, err := enforcer.Allow("operator:"+input.Operator, "ruleset", "write")
		if err != nil {
			return nil, huma.Error500InternalServerError("Authorization check failed", err)
		}
		if !allowed {
			return nil, huma.Error403Forbidden("Operator may not modify the ruleset")
		}

		if err := validate.Struct(&input.Body); err != nil {
			return nil, huma.Error400BadRequest("Invalid ruleset", err)
		}

		ruleset := &models.Ruleset{
			MinPilots:            input.Body.MinPilots,
			TrackedAllianceIDs:   dto.FromWireIDs(input.Body.TrackedAllianceIDs),
			TrackedCorpIDs:       dto.FromWireIDs(input.Body.TrackedCorpIDs),
			TrackedSystemIDs:     dto.FromWireIDs(input.Body.TrackedSystemIDs),
			TrackedSecurityTypes: input.Body.TrackedSecurityTypes,
			IgnoreUnlisted:       input.Body.IgnoreUnlisted,
		}

		updated, err := service.Update(ctx, ruleset, input.Operator)
		if err != nil {
			var verr *services.ValidationError
			if errors.As(err, &verr) {
				return nil, huma.Error400BadRequest(verr.Error())
			}
			return nil, huma.Error500InternalServerError("Failed to update ruleset", err)
		}
		return &dto.RulesetOutput{Body: dto.ConvertRulesetToResponse(updated)}, nil
	})
}
