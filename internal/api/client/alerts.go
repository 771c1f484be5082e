package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

// AlertsResponse wraps a paginated alerts response.
type AlertsResponse struct {
	Alerts []domain.Alert `json:"alerts"`
	Total  int            `json:"total"`
}

// ListAlertsParams defines query parameters for alert queries.
type ListAlertsParams struct {
	Status    string
	AlertType string
	DeviceID  string
	Limit     int
	Offset    int
}

// ListAlerts returns a tenant's alerts matching the given parameters.
func (c *Client) ListAlerts(
	ctx context.Context,
	tenantID string,
	params *ListAlertsParams,
) (*AlertsResponse, error) {
	q := url.Values{}
	if params.Status != "" {
		q.Set("status", params.Status)
	}
	if params.AlertType != "" {
		q.Set("alert_type", params.AlertType)
	}
	if params.DeviceID != "" {
		q.Set("device_id", params.DeviceID)
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}

	path := fmt.Sprintf("/api/v1/tenants/%s/alerts", url.PathEscape(tenantID))
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp AlertsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAlert returns a single alert by ID.
func (c *Client) GetAlert(ctx context.Context, tenantID, id string) (*domain.Alert, error) {
	path := fmt.Sprintf(
		"/api/v1/tenants/%s/alerts/%s",
		url.PathEscape(tenantID), url.PathEscape(id),
	)

	var a domain.Alert
	if err := c.get(ctx, path, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
