// Package validate checks generated dashboards and rules: every PromQL
// expression must parse and reference only known metrics.
package validate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/prometheus/promql/parser"

	"github.com/fizic37/delcampe-ebay/tools/dashgen/rules"
)

// Result collects validation findings. Errors fail generation; warnings
// are reported.
type Result struct {
	Errors   []string
	Warnings []string
}

// Ok reports whether no errors were found.
func (r Result) Ok() bool {
	return len(r.Errors) == 0
}

func (r *Result) merge(o Result) {
	r.Errors = append(r.Errors, o.Errors...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// histogramSuffixes are the series a histogram exposes besides its name.
var histogramSuffixes = []string{"_bucket", "_sum", "_count"}

// Expr parses one PromQL expression and checks its metric names. The
// context string prefixes every finding.
func Expr(context, expr string, known map[string]bool) Result {
	var res Result
	if strings.TrimSpace(expr) == "" {
		res.Errors = append(res.Errors, context+": empty expression")
		return res
	}

	parsed, err := parser.ParseExpr(expr)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", context, err))
		return res
	}

	var names []string
	parser.Inspect(parsed, func(node parser.Node, _ []parser.Node) error {
		if vs, ok := node.(*parser.VectorSelector); ok {
			names = append(names, vs.Name)
		}
		return nil
	})

	if len(names) == 0 {
		res.Warnings = append(res.Warnings, context+": expression references no metric")
	}
	for _, name := range names {
		if !knownMetric(name, known) {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: unknown metric %q", context, name))
		}
	}
	return res
}

func knownMetric(name string, known map[string]bool) bool {
	if known[name] {
		return true
	}
	for _, suffix := range histogramSuffixes {
		if base, ok := strings.CutSuffix(name, suffix); ok && known[base] {
			return true
		}
	}
	return false
}

// Dashboard validates every query target of a built dashboard. The model
// is walked in its JSON form so that panels of any kind are covered.
func Dashboard(dash any, known map[string]bool) Result {
	var res Result

	raw, err := json.Marshal(dash)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("encoding dashboard: %v", err))
		return res
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("decoding dashboard: %v", err))
		return res
	}

	exprs := map[string]string{}
	collectExprs(tree, "", exprs)
	if len(exprs) == 0 {
		res.Errors = append(res.Errors, "dashboard has no query targets")
		return res
	}

	paths := make([]string, 0, len(exprs))
	for p := range exprs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		res.merge(Expr(p, exprs[p], known))
	}
	return res
}

// collectExprs records the "expr" field of every query target under the
// title of the panel that holds it.
func collectExprs(node any, panel string, out map[string]string) {
	switch v := node.(type) {
	case map[string]any:
		if title, ok := v["title"].(string); ok {
			panel = title
		}
		if expr, ok := v["expr"].(string); ok {
			ref, _ := v["refId"].(string)
			out[panel+"/"+ref] = expr
		}
		for _, child := range v {
			collectExprs(child, panel, out)
		}
	case []any:
		for _, child := range v {
			collectExprs(child, panel, out)
		}
	}
}

// Rules validates a PrometheusRule CR. Alerts need a severity label and
// summary and description annotations.
func Rules(cr rules.PrometheusRule, known map[string]bool) Result {
	var res Result
	for _, g := range cr.Spec.Groups {
		for _, r := range g.Rules {
			name := r.Record
			if name == "" {
				name = r.Alert
			}
			context := g.Name + "/" + name
			res.merge(Expr(context, r.Expr, known))

			if r.Record != "" && !known[r.Record] {
				res.Errors = append(res.Errors, context+": recording rule missing from known metrics")
			}
			if r.Alert == "" {
				continue
			}
			if r.Labels["severity"] == "" {
				res.Errors = append(res.Errors, context+": missing severity label")
			}
			for _, a := range []string{"summary", "description"} {
				if r.Annotations[a] == "" {
					res.Errors = append(res.Errors, fmt.Sprintf("%s: missing %s annotation", context, a))
				}
			}
		}
	}
	return res
}
