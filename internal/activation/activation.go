// Package activation decides, for each content module, whether it belongs
// in the draft. It normalizes raw extracted values, resolves variable
// applicability and evaluates every module rule against the filtered value
// map, producing one result per module per run.
package activation

import (
	"lexflow/internal/catalog"
	"lexflow/internal/condition"
	"lexflow/internal/depend"
	"lexflow/internal/normalize"
	"lexflow/internal/rules"
)

// Result reports one module's activation outcome.
type Result struct {
	ModuleID           string
	Active             bool
	EvaluatedVariables []string
	MissingVariables   []string
}

// ValueWarning records a raw value that failed normalization. The variable
// is then simply absent from evaluation; one bad value never aborts the
// run.
type ValueWarning struct {
	Slug string
	Err  error
}

// BuildValues normalizes the raw extraction output against the declared
// variable types. Unparseable values are reported as warnings and omitted
// from the canonical map, where the missing-variable policy takes over.
func BuildValues(vars []catalog.Variable, raw map[string]any) (map[string]normalize.Canonical, []ValueWarning) {
	out := make(map[string]normalize.Canonical, len(raw))
	var warnings []ValueWarning

	for _, v := range vars {
		rawValue, ok := raw[v.Slug]
		if !ok {
			continue
		}
		canonical, err := normalize.Value(rawValue, v.Type, v.Options)
		if err != nil {
			warnings = append(warnings, ValueWarning{Slug: v.Slug, Err: err})
			continue
		}
		out[v.Slug] = canonical
	}
	return out, warnings
}

// Run evaluates every module rule. Inapplicable variables are withheld from
// a module's value map unless the module explicitly tests their existence,
// so stale values cannot silently drive unrelated activations.
func Run(vars []catalog.Variable, modules []catalog.ModuleRule, values map[string]normalize.Canonical) []Result {
	applicability := depend.ResolveApplicability(vars, values)

	out := make([]Result, 0, len(modules))
	for _, m := range modules {
		filtered := filterValues(m.Condition, values, applicability)
		res := rules.Evaluate(m.Condition, filtered)
		out = append(out, Result{
			ModuleID:           m.ModuleID,
			Active:             res.Result,
			EvaluatedVariables: res.Evaluated,
			MissingVariables:   res.Missing,
		})
	}
	return out
}

// filterValues drops values of inapplicable variables for this module. A
// slug the module tests with exists/not_exists keeps its value visible so
// those operators still answer about the underlying data.
func filterValues(node condition.Node, values map[string]normalize.Canonical, applicability map[string]depend.Applicability) map[string]normalize.Canonical {
	existence := condition.ExistenceTested(node)

	filtered := make(map[string]normalize.Canonical, len(values))
	for slug, value := range values {
		if a, tracked := applicability[slug]; tracked && !a.Applicable && !existence[slug] {
			continue
		}
		filtered[slug] = value
	}
	return filtered
}
