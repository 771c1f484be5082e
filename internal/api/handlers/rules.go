package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

// RulesProvider defines the store methods required by the rules handler.
type RulesProvider interface {
	ListRules(ctx context.Context, tenantID string) ([]domain.AlertRule, error)
	GetRule(ctx context.Context, tenantID, id string) (*domain.AlertRule, error)
}

// RulesHandler handles alert rule query endpoints.
type RulesHandler struct {
	store RulesProvider
}

// NewRulesHandler creates a new RulesHandler.
func NewRulesHandler(s RulesProvider) *RulesHandler {
	return &RulesHandler{store: s}
}

// ListRulesInput is the input for listing a tenant's alert rules.
type ListRulesInput struct {
	TenantID string `path:"tenant_id" doc:"Tenant identifier"`
}

// ListRulesOutput is the response for listing alert rules.
type ListRulesOutput struct {
	Body struct {
		Rules []domain.AlertRule `json:"rules"`
		Total int                `json:"total"`
	}
}

// GetRuleInput is the input for getting a single alert rule.
type GetRuleInput struct {
	TenantID string `path:"tenant_id" doc:"Tenant identifier"`
	ID       string `path:"id"        doc:"Rule UUID"`
}

// GetRuleOutput is the response for getting a single alert rule.
type GetRuleOutput struct {
	Body domain.AlertRule
}

// ListRules returns all alert rules for a tenant, normalized so legacy
// single-condition rows appear with a populated conditions list.
func (h *RulesHandler) ListRules(
	ctx context.Context,
	input *ListRulesInput,
) (*ListRulesOutput, error) {
	rules, err := h.store.ListRules(ctx, input.TenantID)
	if err != nil {
		return nil, huma.Error500InternalServerError("rule query failed: " + err.Error())
	}

	if rules == nil {
		rules = []domain.AlertRule{}
	}

	resp := &ListRulesOutput{}
	resp.Body.Rules = rules
	resp.Body.Total = len(rules)

	return resp, nil
}

// GetRule returns a single alert rule by ID, scoped to the tenant.
func (h *RulesHandler) GetRule(
	ctx context.Context,
	input *GetRuleInput,
) (*GetRuleOutput, error) {
	rule, err := h.store.GetRule(ctx, input.TenantID, input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("rule not found")
	}

	return &GetRuleOutput{Body: *rule}, nil
}

// RegisterRuleRoutes registers alert rule endpoints with the Huma API.
func RegisterRuleRoutes(api huma.API, h *RulesHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-rules",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{tenant_id}/rules",
		Summary:     "List alert rules",
		Description: "Returns all alert rules for a tenant, including disabled ones.",
		Tags:        []string{"rules"},
	}, h.ListRules)

	huma.Register(api, huma.Operation{
		OperationID: "get-rule",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{tenant_id}/rules/{id}",
		Summary:     "Get an alert rule by ID",
		Description: "Returns a single alert rule by its UUID.",
		Tags:        []string{"rules"},
		Errors:      []int{http.StatusNotFound},
	}, h.GetRule)
}
