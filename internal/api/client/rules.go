package client

import (
	"context"
	"fmt"
	"net/url"

	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

// RulesResponse wraps a rules list response.
type RulesResponse struct {
	Rules []domain.AlertRule `json:"rules"`
	Total int                `json:"total"`
}

// ListRules returns all alert rules for a tenant.
func (c *Client) ListRules(ctx context.Context, tenantID string) (*RulesResponse, error) {
	path := fmt.Sprintf("/api/v1/tenants/%s/rules", url.PathEscape(tenantID))

	var resp RulesResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRule returns a single alert rule by ID.
func (c *Client) GetRule(ctx context.Context, tenantID, id string) (*domain.AlertRule, error) {
	path := fmt.Sprintf(
		"/api/v1/tenants/%s/rules/%s",
		url.PathEscape(tenantID), url.PathEscape(id),
	)

	var r domain.AlertRule
	if err := c.get(ctx, path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
