package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// Evaluator defines the interface for triggering an evaluation pass.
type Evaluator interface {
	RunPass(ctx context.Context) error
}

// HeartbeatSweeper defines the interface for triggering a heartbeat sweep.
type HeartbeatSweeper interface {
	RunHeartbeatSweep(ctx context.Context, staleAfter time.Duration) (int, error)
}

// EvaluateHandler handles manual evaluation trigger requests.
type EvaluateHandler struct {
	evaluator Evaluator
}

// NewEvaluateHandler creates a new EvaluateHandler.
func NewEvaluateHandler(ev Evaluator) *EvaluateHandler {
	return &EvaluateHandler{evaluator: ev}
}

// EvaluateOutput is the response body for the evaluate endpoint.
type EvaluateOutput struct {
	Body struct {
		Status string `json:"status" example:"evaluation completed" doc:"Evaluation status"`
	}
}

// Evaluate runs a full evaluation pass over every tenant immediately,
// outside the regular poll cadence.
func (h *EvaluateHandler) Evaluate(ctx context.Context, _ *struct{}) (*EvaluateOutput, error) {
	if err := h.evaluator.RunPass(ctx); err != nil {
		return nil, huma.Error500InternalServerError("evaluation failed: " + err.Error())
	}

	resp := &EvaluateOutput{}
	resp.Body.Status = "evaluation completed"
	return resp, nil
}

// HeartbeatSweepHandler handles manual heartbeat sweep requests.
type HeartbeatSweepHandler struct {
	sweeper    HeartbeatSweeper
	staleAfter time.Duration
}

// NewHeartbeatSweepHandler creates a new HeartbeatSweepHandler.
func NewHeartbeatSweepHandler(sw HeartbeatSweeper, staleAfter time.Duration) *HeartbeatSweepHandler {
	return &HeartbeatSweepHandler{sweeper: sw, staleAfter: staleAfter}
}

// SweepOutput is the response body for the heartbeat sweep endpoint.
type SweepOutput struct {
	Body struct {
		Status         string `json:"status"          example:"heartbeat sweep completed" doc:"Sweep status"`
		AlertsAffected int    `json:"alerts_affected" example:"3"                         doc:"Alerts opened or closed by the sweep"`
	}
}

// Sweep opens NO_HEARTBEAT alerts for stale devices and closes recovered ones.
func (h *HeartbeatSweepHandler) Sweep(ctx context.Context, _ *struct{}) (*SweepOutput, error) {
	affected, err := h.sweeper.RunHeartbeatSweep(ctx, h.staleAfter)
	if err != nil {
		return nil, huma.Error500InternalServerError("heartbeat sweep failed: " + err.Error())
	}

	resp := &SweepOutput{}
	resp.Body.Status = "heartbeat sweep completed"
	resp.Body.AlertsAffected = affected
	return resp, nil
}

// RegisterTriggerRoutes registers trigger endpoints with the Huma API.
func RegisterTriggerRoutes(api huma.API, evalH *EvaluateHandler, sweepH *HeartbeatSweepHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "trigger-evaluate",
		Method:      http.MethodPost,
		Path:        "/api/v1/evaluate",
		Summary:     "Trigger an evaluation pass",
		Description: "Runs threshold and anomaly evaluation for every tenant immediately, " +
			"then dispatches any pending notifications.",
		Tags:   []string{"evaluation"},
		Errors: []int{http.StatusInternalServerError},
	}, evalH.Evaluate)

	huma.Register(api, huma.Operation{
		OperationID: "trigger-heartbeat-sweep",
		Method:      http.MethodPost,
		Path:        "/api/v1/heartbeat-sweep",
		Summary:     "Trigger a heartbeat sweep",
		Description: "Opens NO_HEARTBEAT alerts for devices past the staleness cutoff and closes alerts for recovered devices.",
		Tags:        []string{"evaluation"},
		Errors:      []int{http.StatusInternalServerError},
	}, sweepH.Sweep)
}
