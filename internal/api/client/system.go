package client

import (
	"context"

	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

// GetSystemState returns aggregate system counts.
func (c *Client) GetSystemState(ctx context.Context) (*domain.SystemState, error) {
	var state domain.SystemState
	if err := c.get(ctx, "/api/v1/system/state", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Evaluate triggers an immediate evaluation pass over every tenant.
func (c *Client) Evaluate(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.post(ctx, "/api/v1/evaluate", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// HeartbeatSweep triggers an immediate heartbeat sweep. It returns the number
// of alerts the sweep opened or closed.
func (c *Client) HeartbeatSweep(ctx context.Context) (int, error) {
	var resp struct {
		Status         string `json:"status"`
		AlertsAffected int    `json:"alerts_affected"`
	}
	if err := c.post(ctx, "/api/v1/heartbeat-sweep", nil, &resp); err != nil {
		return 0, err
	}
	return resp.AlertsAffected, nil
}
