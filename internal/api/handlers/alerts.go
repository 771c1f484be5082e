package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fleetwatch/fleetwatch/internal/store"
	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

// AlertsProvider defines the store methods required by the alerts handler.
type AlertsProvider interface {
	ListAlerts(ctx context.Context, opts *store.AlertQuery) ([]domain.Alert, int, error)
	GetAlert(ctx context.Context, tenantID, id string) (*domain.Alert, error)
}

// AlertsHandler handles alert query endpoints.
type AlertsHandler struct {
	store AlertsProvider
}

// NewAlertsHandler creates a new AlertsHandler.
func NewAlertsHandler(s AlertsProvider) *AlertsHandler {
	return &AlertsHandler{store: s}
}

// --- Input/Output types ---

// ListAlertsInput is the input for listing a tenant's alerts with optional filters.
type ListAlertsInput struct {
	TenantID  string `path:"tenant_id"   doc:"Tenant identifier"`
	Status    string `query:"status"     doc:"Filter by alert status"  enum:"OPEN,CLOSED,"`
	AlertType string `query:"alert_type" doc:"Filter by alert type"    enum:"NO_HEARTBEAT,THRESHOLD,ANOMALY,SYSTEM_HEALTH,"`
	DeviceID  string `query:"device_id"  doc:"Filter by device"`
	Limit     int    `query:"limit"      doc:"Number of results (default 50)" minimum:"1" maximum:"500"`
	Offset    int    `query:"offset"     doc:"Pagination offset"              minimum:"0"`
}

// ListAlertsOutput is the response for listing alerts.
type ListAlertsOutput struct {
	Body struct {
		Alerts []domain.Alert `json:"alerts"`
		Total  int            `json:"total"`
		Limit  int            `json:"limit"`
		Offset int            `json:"offset"`
	}
}

// GetAlertInput is the input for getting a single alert.
type GetAlertInput struct {
	TenantID string `path:"tenant_id" doc:"Tenant identifier"`
	ID       string `path:"id"        doc:"Alert UUID"`
}

// GetAlertOutput is the response for getting a single alert.
type GetAlertOutput struct {
	Body domain.Alert
}

// --- Handlers ---

// ListAlerts returns a tenant's alerts with optional filters for status,
// alert type, device, and pagination.
func (h *AlertsHandler) ListAlerts(
	ctx context.Context,
	input *ListAlertsInput,
) (*ListAlertsOutput, error) {
	q := &store.AlertQuery{
		TenantID: input.TenantID,
		Offset:   input.Offset,
	}

	if input.Status != "" {
		q.Status = &input.Status
	}

	if input.AlertType != "" {
		q.AlertType = &input.AlertType
	}

	if input.DeviceID != "" {
		q.DeviceID = &input.DeviceID
	}

	if input.Limit != 0 {
		q.Limit = input.Limit
	}

	alerts, total, err := h.store.ListAlerts(ctx, q)
	if err != nil {
		return nil, huma.Error500InternalServerError("alert query failed: " + err.Error())
	}

	if alerts == nil {
		alerts = []domain.Alert{}
	}

	resp := &ListAlertsOutput{}
	resp.Body.Alerts = alerts
	resp.Body.Total = total
	resp.Body.Limit = q.Limit
	resp.Body.Offset = q.Offset

	return resp, nil
}

// GetAlert returns a single alert by ID, scoped to the tenant.
func (h *AlertsHandler) GetAlert(
	ctx context.Context,
	input *GetAlertInput,
) (*GetAlertOutput, error) {
	alert, err := h.store.GetAlert(ctx, input.TenantID, input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("alert not found")
	}

	return &GetAlertOutput{Body: *alert}, nil
}

// RegisterAlertRoutes registers alert endpoints with the Huma API.
func RegisterAlertRoutes(api huma.API, h *AlertsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-alerts",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{tenant_id}/alerts",
		Summary:     "List alerts",
		Description: "Returns a tenant's alerts with optional filters for status, alert type, device, and pagination.",
		Tags:        []string{"alerts"},
	}, h.ListAlerts)

	huma.Register(api, huma.Operation{
		OperationID: "get-alert",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{tenant_id}/alerts/{id}",
		Summary:     "Get an alert by ID",
		Description: "Returns a single alert by its UUID. Alerts belonging to other tenants are not visible.",
		Tags:        []string{"alerts"},
		Errors:      []int{http.StatusNotFound},
	}, h.GetAlert)
}
