// Package rules evaluates module activation conditions against a map of
// canonical variable values. Evaluation is pure: identical inputs always
// produce identical results, which keeps re-evaluation idempotent when a
// reviewer edits extracted values.
package rules

import (
	"sort"
	"strings"

	"lexflow/internal/condition"
	"lexflow/internal/normalize"
)

// Result is the outcome of evaluating one condition tree. Missing lists the
// slugs referenced by the tree that had no usable value; Evaluated lists the
// slugs whose values actually drove the outcome. Short-circuited branches
// contribute to neither.
type Result struct {
	Result    bool
	Missing   []string
	Evaluated []string
}

// Evaluate interprets node against values. A nil node is an unconditional
// rule and evaluates to true. The walk uses an explicit frame stack, so
// arbitrarily deep trees cannot overflow the goroutine stack.
func Evaluate(node condition.Node, values map[string]normalize.Canonical) Result {
	missing := make(map[string]bool)
	evaluated := make(map[string]bool)

	result := true
	if node != nil {
		result = run(node, values, missing, evaluated)
	}

	return Result{
		Result:    result,
		Missing:   sortedKeys(missing),
		Evaluated: sortedKeys(evaluated),
	}
}

type frame struct {
	node  condition.Node
	idx   int
	child bool
}

func run(root condition.Node, values map[string]normalize.Canonical, missing, evaluated map[string]bool) bool {
	stack := []*frame{{node: root}}
	final := false

	deliver := func(res bool) {
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			final = res
			return
		}
		stack[len(stack)-1].child = res
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		switch n := f.node.(type) {
		case condition.Comparison:
			deliver(evalComparison(n, values, missing, evaluated))

		case condition.Not:
			if f.idx == 0 {
				f.idx = 1
				stack = append(stack, &frame{node: n.Child})
				continue
			}
			deliver(!f.child)

		case condition.And:
			// Short-circuit on the first false child; missing/evaluated sets
			// only ever include children visited before that point.
			if f.idx > 0 && !f.child {
				deliver(false)
				continue
			}
			if f.idx == len(n.Children) {
				deliver(true)
				continue
			}
			child := n.Children[f.idx]
			f.idx++
			stack = append(stack, &frame{node: child})

		case condition.Or:
			if f.idx > 0 && f.child {
				deliver(true)
				continue
			}
			if f.idx == len(n.Children) {
				deliver(false)
				continue
			}
			child := n.Children[f.idx]
			f.idx++
			stack = append(stack, &frame{node: child})

		default:
			deliver(false)
		}
	}
	return final
}

// evalComparison applies the missing-variable policy: exists/not_exists
// evaluate meaningfully on an absent variable, is_empty treats absence as
// empty, and every other operator yields false with the slug recorded. The
// false-on-missing asymmetry (not_equals included) is deliberate; downstream
// modules rely on unavailable evidence never activating content.
func evalComparison(cmp condition.Comparison, values map[string]normalize.Canonical, missing, evaluated map[string]bool) bool {
	val, ok := values[cmp.Variable]

	switch cmp.Operator {
	case condition.OpExists:
		if ok {
			evaluated[cmp.Variable] = true
		}
		return ok
	case condition.OpNotExists:
		if ok {
			evaluated[cmp.Variable] = true
		}
		return !ok
	case condition.OpIsEmpty:
		if !ok {
			missing[cmp.Variable] = true
			return true
		}
		evaluated[cmp.Variable] = true
		return val.IsEmpty()
	}

	if !ok {
		missing[cmp.Variable] = true
		return false
	}
	evaluated[cmp.Variable] = true

	switch cmp.Operator {
	case condition.OpEquals:
		return equalsValue(val, cmp.Value)
	case condition.OpNotEquals:
		return !equalsValue(val, cmp.Value)
	case condition.OpContains:
		return containsValue(val, cmp.Value)
	case condition.OpNotContains:
		return !containsValue(val, cmp.Value)
	case condition.OpGreaterThan, condition.OpLessThan:
		return compareNumeric(cmp, val, missing)
	case condition.OpInList:
		return inList(val, cmp.Value)
	case condition.OpNotInList:
		return !inList(val, cmp.Value)
	}
	return false
}

// compareNumeric treats a non-numeric operand as false, recording the slug
// so the gap stays observable, rather than raising.
func compareNumeric(cmp condition.Comparison, val normalize.Canonical, missing map[string]bool) bool {
	if val.Kind != normalize.KindNumber {
		missing[cmp.Variable] = true
		return false
	}
	ruleNum, ok := normalize.CoerceNumber(cmp.Value)
	if !ok {
		missing[cmp.Variable] = true
		return false
	}
	if cmp.Operator == condition.OpGreaterThan {
		return val.Number > ruleNum
	}
	return val.Number < ruleNum
}

func equalsValue(val normalize.Canonical, rule any) bool {
	switch val.Kind {
	case normalize.KindBool:
		b, ok := normalize.CoerceBool(rule)
		return ok && val.Bool == b
	case normalize.KindNumber:
		n, ok := normalize.CoerceNumber(rule)
		return ok && val.Number == n
	case normalize.KindList:
		items, ok := ruleList(rule)
		if !ok || len(items) != len(val.List) {
			return false
		}
		for i, item := range val.List {
			if !strings.EqualFold(strings.TrimSpace(item), items[i]) {
				return false
			}
		}
		return true
	default:
		return strings.EqualFold(strings.TrimSpace(val.Text), normalize.CoerceText(rule))
	}
}

func containsValue(val normalize.Canonical, rule any) bool {
	needle := strings.ToLower(normalize.CoerceText(rule))
	switch val.Kind {
	case normalize.KindText, normalize.KindDate:
		return needle != "" && strings.Contains(strings.ToLower(val.Text), needle)
	case normalize.KindList:
		for _, item := range val.List {
			if strings.EqualFold(strings.TrimSpace(item), normalize.CoerceText(rule)) {
				return true
			}
		}
	}
	return false
}

func inList(val normalize.Canonical, rule any) bool {
	items, ok := ruleList(rule)
	if !ok {
		return false
	}
	for _, item := range items {
		if equalsValue(val, item) {
			return true
		}
	}
	return false
}

func ruleList(rule any) ([]string, bool) {
	switch v := rule.(type) {
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = strings.TrimSpace(item)
		}
		return out, true
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = normalize.CoerceText(item)
		}
		return out, true
	default:
		return nil, false
	}
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
