package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricNames(t *testing.T) {
	t.Parallel()

	names, err := MetricNames(`sum(rate(fleetwatch_http_requests_total{status=~"5.."}[5m])) / ignoring() fleetwatch:http_requests:rate5m`)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"fleetwatch_http_requests_total",
		"fleetwatch:http_requests:rate5m",
	}, names)
}

func TestMetricNames_ParseError(t *testing.T) {
	t.Parallel()

	_, err := MetricNames(`sum(rate(`)
	assert.Error(t, err)
}

func TestExprs(t *testing.T) {
	t.Parallel()

	known := map[string]bool{"fleetwatch_eval_passes_total": true}

	t.Run("known metric passes", func(t *testing.T) {
		t.Parallel()
		res := Exprs([]string{`rate(fleetwatch_eval_passes_total[5m])`}, known)
		assert.True(t, res.Ok())
		assert.Empty(t, res.Warnings)
	})

	t.Run("unknown metric warns", func(t *testing.T) {
		t.Parallel()
		res := Exprs([]string{`rate(fleetwatch_bogus_total[5m])`}, known)
		assert.True(t, res.Ok())
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "fleetwatch_bogus_total")
	})

	t.Run("bad expression errors", func(t *testing.T) {
		t.Parallel()
		res := Exprs([]string{`rate(`}, known)
		assert.False(t, res.Ok())
		require.Len(t, res.Errors, 1)
	})

	t.Run("histogram suffixes resolve to base", func(t *testing.T) {
		t.Parallel()
		hist := map[string]bool{"fleetwatch_eval_pass_duration_seconds": true}
		res := Exprs([]string{
			`histogram_quantile(0.95, sum(rate(fleetwatch_eval_pass_duration_seconds_bucket[5m])) by (le))`,
		}, hist)
		assert.True(t, res.Ok())
		assert.Empty(t, res.Warnings)
	})
}

func TestDashboard(t *testing.T) {
	t.Parallel()

	known := map[string]bool{"fleetwatch_healthz_up": true}

	doc := map[string]any{
		"panels": []any{
			map[string]any{
				"targets": []any{
					map[string]any{"expr": `fleetwatch_healthz_up`},
					map[string]any{"expr": `fleetwatch_missing_metric`},
				},
			},
		},
	}

	res := Dashboard(doc, known)
	assert.True(t, res.Ok())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "fleetwatch_missing_metric")
}
