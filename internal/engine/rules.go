package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

// ruleResult is the outcome of evaluating one rule against one device.
// A non-decisive result means the data was insufficient to assert the
// condition either way, so neither open nor close happens.
type ruleResult struct {
	fired    bool
	decisive bool
	message  string
	context  map[string]any
}

// condResult is the outcome of one condition. decisive is false for anomaly
// conditions without enough samples or with zero spread.
type condResult struct {
	fired    bool
	decisive bool
	detail   map[string]any
}

// evalRule combines the rule's conditions under its match mode. "all" fires
// when every condition fires; "any" fires when at least one does. Evaluation
// short-circuits as soon as the combined outcome is determined.
func (e *Engine) evalRule(
	ctx context.Context,
	tenant string,
	rule *domain.AlertRule,
	snap *domain.MetricSnapshot,
) (ruleResult, error) {
	details := make(map[string]any, len(rule.Conditions))
	sawIndecisive := false

	for i := range rule.Conditions {
		c := &rule.Conditions[i]

		cr, err := e.evalCondition(ctx, tenant, snap, c)
		if err != nil {
			return ruleResult{}, fmt.Errorf("condition %d (%s): %w", i, c.Metric, err)
		}
		details[c.Metric] = cr.detail

		switch rule.MatchMode {
		case domain.MatchAny:
			if cr.fired {
				return ruleResult{
					fired:    true,
					decisive: true,
					message:  fireMessage(rule, c, cr),
					context:  details,
				}, nil
			}
			if !cr.decisive {
				sawIndecisive = true
			}

		default: // MatchAll
			if !cr.decisive {
				// Cannot assert this condition, so the rule can neither
				// fire nor clear on this tick.
				return ruleResult{decisive: false}, nil
			}
			if !cr.fired {
				// One condition is decisively false: the rule is clear.
				return ruleResult{decisive: true}, nil
			}
		}
	}

	if rule.MatchMode == domain.MatchAny {
		return ruleResult{decisive: !sawIndecisive}, nil
	}

	// MatchAll with every condition fired.
	return ruleResult{
		fired:    true,
		decisive: true,
		message:  fireMessage(rule, &rule.Conditions[0], condResult{}),
		context:  details,
	}, nil
}

// evalCondition dispatches on the condition type.
func (e *Engine) evalCondition(
	ctx context.Context,
	tenant string,
	snap *domain.MetricSnapshot,
	c *domain.RuleCondition,
) (condResult, error) {
	switch c.Type {
	case domain.ConditionAnomaly:
		return e.evalAnomaly(ctx, tenant, snap.DeviceID, c)
	default:
		return e.evalThreshold(ctx, tenant, snap, c)
	}
}

// evalThreshold evaluates a threshold condition. Instant conditions compare
// the snapshot value; windowed conditions (duration_minutes > 0) require the
// comparison to hold for every sample in the trailing window, and an empty
// window never fires. A metric absent from the snapshot compares false.
func (e *Engine) evalThreshold(
	ctx context.Context,
	tenant string,
	snap *domain.MetricSnapshot,
	c *domain.RuleCondition,
) (condResult, error) {
	if !c.Operator.Valid() {
		// Unknown operators evaluate false without touching the store.
		return condResult{decisive: true, detail: map[string]any{
			"operator": string(c.Operator),
			"error":    "unknown operator",
		}}, nil
	}

	if c.DurationMinutes <= 0 {
		value, ok := snap.Metrics[c.Metric]
		detail := map[string]any{
			"operator":  string(c.Operator),
			"threshold": c.Threshold,
		}
		if !ok {
			detail["missing"] = true
			return condResult{decisive: true, detail: detail}, nil
		}
		detail["value"] = value
		return condResult{
			fired:    c.Operator.Compare(value, c.Threshold),
			decisive: true,
			detail:   detail,
		}, nil
	}

	window := time.Duration(c.DurationMinutes) * time.Minute
	total, matching, err := e.store.WindowCounts(
		ctx, tenant, snap.DeviceID, c.Metric, c.Operator, c.Threshold, window,
	)
	if err != nil {
		return condResult{}, err
	}

	detail := map[string]any{
		"operator":         string(c.Operator),
		"threshold":        c.Threshold,
		"duration_minutes": c.DurationMinutes,
		"samples_total":    total,
		"samples_matching": matching,
	}
	if value, ok := snap.Metrics[c.Metric]; ok {
		detail["value"] = value
	}

	// Held throughout: every sample matched and there was at least one.
	return condResult{
		fired:    total > 0 && total == matching,
		decisive: true,
		detail:   detail,
	}, nil
}

// evalAnomaly evaluates an anomaly condition against rolling stats. Too few
// samples or zero spread make the result indecisive: no fire, and no close
// of a previously opened anomaly alert.
func (e *Engine) evalAnomaly(
	ctx context.Context,
	tenant, deviceID string,
	c *domain.RuleCondition,
) (condResult, error) {
	window := time.Duration(c.WindowMinutes) * time.Minute
	stats, err := e.store.MetricWindowStats(ctx, tenant, deviceID, c.Metric, window)
	if err != nil {
		return condResult{}, err
	}

	detail := map[string]any{
		"window_minutes": c.WindowMinutes,
		"z_threshold":    c.ZThreshold,
		"min_samples":    c.MinSamples,
		"count":          stats.Count,
	}

	if stats.Count < c.MinSamples || stats.Latest == nil {
		detail["insufficient_samples"] = true
		return condResult{detail: detail}, nil
	}

	z, ok := stats.ZScore()
	if !ok {
		detail["zero_stddev"] = true
		return condResult{detail: detail}, nil
	}

	// The trigger signal is the deviation magnitude in either direction.
	z = math.Abs(z)

	detail["z_score"] = z
	detail["mean"] = stats.Mean
	detail["stddev"] = stats.StdDev
	detail["latest"] = *stats.Latest

	return condResult{
		fired:    z > c.ZThreshold,
		decisive: true,
		detail:   detail,
	}, nil
}

func fireMessage(rule *domain.AlertRule, c *domain.RuleCondition, cr condResult) string {
	switch c.Type {
	case domain.ConditionAnomaly:
		if z, ok := cr.detail["z_score"]; ok {
			return fmt.Sprintf("%s: %s deviates from its rolling baseline (z=%.2f)",
				rule.Name, c.Metric, z)
		}
		return fmt.Sprintf("%s: %s deviates from its rolling baseline", rule.Name, c.Metric)
	default:
		if c.DurationMinutes > 0 {
			return fmt.Sprintf("%s: %s %s %g for %dm",
				rule.Name, c.Metric, c.Operator, c.Threshold, c.DurationMinutes)
		}
		return fmt.Sprintf("%s: %s %s %g", rule.Name, c.Metric, c.Operator, c.Threshold)
	}
}
