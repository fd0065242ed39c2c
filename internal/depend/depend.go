// Package depend resolves which variables are applicable given the current
// values. A variable with a declared dependency only applies when its
// parent's value satisfies the configured comparison; chains resolve in
// topological order and cyclic configurations are rejected outright.
package depend

import (
	"fmt"
	"sort"
	"strings"

	"lexflow/internal/catalog"
	"lexflow/internal/condition"
	"lexflow/internal/normalize"
	"lexflow/internal/rules"
)

// Applicability records the applicability decision for one variable.
// "Not applicable" is distinct from a false value: an inapplicable
// variable's value is withheld from downstream evaluation.
type Applicability struct {
	Applicable bool
	Reason     string
}

// CycleError reports a dependency cycle detected at validation time.
type CycleError struct {
	Slugs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle involving: %s", strings.Join(e.Slugs, ", "))
}

// Order returns the variables sorted so every variable appears after the
// variable it depends on. A cycle, direct or transitive, is a hard
// configuration error. A dependency reference to a variable outside the
// catalog is also rejected here.
func Order(vars []catalog.Variable) ([]catalog.Variable, error) {
	bySlug := make(map[string]catalog.Variable, len(vars))
	for _, v := range vars {
		bySlug[v.Slug] = v
	}

	indegree := make(map[string]int, len(vars))
	children := make(map[string][]string, len(vars))
	for _, v := range vars {
		if _, ok := indegree[v.Slug]; !ok {
			indegree[v.Slug] = 0
		}
		if v.DependsOn == "" {
			continue
		}
		if _, ok := bySlug[v.DependsOn]; !ok {
			return nil, fmt.Errorf("variable %q depends on unknown variable %q", v.Slug, v.DependsOn)
		}
		indegree[v.Slug]++
		children[v.DependsOn] = append(children[v.DependsOn], v.Slug)
	}

	queue := make([]string, 0, len(vars))
	for slug, deg := range indegree {
		if deg == 0 {
			queue = append(queue, slug)
		}
	}
	sort.Strings(queue)

	out := make([]catalog.Variable, 0, len(vars))
	for len(queue) > 0 {
		slug := queue[0]
		queue = queue[1:]
		out = append(out, bySlug[slug])

		next := append([]string(nil), children[slug]...)
		sort.Strings(next)
		for _, child := range next {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(out) != len(vars) {
		var cyclic []string
		for slug, deg := range indegree {
			if deg > 0 {
				cyclic = append(cyclic, slug)
			}
		}
		sort.Strings(cyclic)
		return nil, &CycleError{Slugs: cyclic}
	}
	return out, nil
}

// ResolveApplicability walks the variables in dependency order and decides
// applicability for each. vars must already be cycle-free; callers obtain
// the order from Order at validation time.
func ResolveApplicability(vars []catalog.Variable, values map[string]normalize.Canonical) map[string]Applicability {
	ordered, err := Order(vars)
	if err != nil {
		// Validation rejects cyclic configurations before any run; an error
		// here means the caller skipped validation. Mark everything with a
		// dependency inapplicable so no stale value leaks through.
		out := make(map[string]Applicability, len(vars))
		for _, v := range vars {
			if v.DependsOn == "" {
				out[v.Slug] = Applicability{Applicable: true}
			} else {
				out[v.Slug] = Applicability{Applicable: false, Reason: "unresolved dependency order"}
			}
		}
		return out
	}

	out := make(map[string]Applicability, len(ordered))
	for _, v := range ordered {
		if v.DependsOn == "" {
			out[v.Slug] = Applicability{Applicable: true}
			continue
		}

		parent := out[v.DependsOn]
		if !parent.Applicable {
			out[v.Slug] = Applicability{Applicable: false, Reason: fmt.Sprintf("parent %q not applicable", v.DependsOn)}
			continue
		}
		if _, present := values[v.DependsOn]; !present {
			out[v.Slug] = Applicability{Applicable: false, Reason: fmt.Sprintf("parent %q has no value", v.DependsOn)}
			continue
		}

		gate := condition.Comparison{
			Variable: v.DependsOn,
			Operator: v.DependencyOperator,
			Value:    v.DependencyValue,
		}
		res := rules.Evaluate(gate, values)
		if res.Result {
			out[v.Slug] = Applicability{Applicable: true}
		} else {
			out[v.Slug] = Applicability{
				Applicable: false,
				Reason:     fmt.Sprintf("parent %q did not satisfy %s", v.DependsOn, v.DependencyOperator),
			}
		}
	}
	return out
}
