// Package validate checks generated dashboard and rule expressions
// against the set of metrics the service actually exports.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prometheus/prometheus/promql/parser"
)

// Result collects validation findings. Errors are unparseable
// expressions, warnings are references to unknown metric names.
type Result struct {
	Errors   []string
	Warnings []string
}

// Ok reports whether validation found no errors.
func (r Result) Ok() bool { return len(r.Errors) == 0 }

// MetricNames parses a PromQL expression and returns the metric name of
// every vector selector in it.
func MetricNames(expr string) ([]string, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return nil, err
	}
	var names []string
	parser.Inspect(node, func(n parser.Node, _ []parser.Node) error {
		if vs, ok := n.(*parser.VectorSelector); ok && vs.Name != "" {
			names = append(names, vs.Name)
		}
		return nil
	})
	return names, nil
}

// Dashboard walks a built dashboard for PromQL expressions and validates
// each one against the known metric set.
func Dashboard(d any, known map[string]bool) Result {
	var res Result
	raw, err := json.Marshal(d)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("marshal dashboard: %v", err))
		return res
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("decode dashboard: %v", err))
		return res
	}
	for _, expr := range collectExprs(decoded) {
		checkExpr(expr, known, &res)
	}
	return res
}

// Exprs validates standalone PromQL expressions, such as those in
// recording or alerting rules.
func Exprs(exprs []string, known map[string]bool) Result {
	var res Result
	for _, expr := range exprs {
		checkExpr(expr, known, &res)
	}
	return res
}

func checkExpr(expr string, known map[string]bool, res *Result) {
	names, err := MetricNames(expr)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("parse %q: %v", expr, err))
		return
	}
	for _, name := range names {
		if !knownMetric(name, known) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown metric %q in %q", name, expr))
		}
	}
}

// knownMetric resolves histogram series suffixes back to the base name
// before lookup.
func knownMetric(name string, known map[string]bool) bool {
	if known[name] {
		return true
	}
	for _, suffix := range []string{"_bucket", "_sum", "_count"} {
		if base, ok := strings.CutSuffix(name, suffix); ok && known[base] {
			return true
		}
	}
	return false
}

func collectExprs(v any) []string {
	var exprs []string
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if k == "expr" {
				if s, ok := val.(string); ok && s != "" {
					exprs = append(exprs, s)
					continue
				}
			}
			exprs = append(exprs, collectExprs(val)...)
		}
	case []any:
		for _, item := range t {
			exprs = append(exprs, collectExprs(item)...)
		}
	}
	return exprs
}
