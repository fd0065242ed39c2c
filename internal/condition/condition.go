// Package condition defines the activation rule tree for content modules.
// A rule is a tree of logical nodes (and/or/not) over leaf comparisons,
// decoded from the JSON produced by the rule-generation stage.
package condition

import (
	"encoding/json"
	"fmt"
)

// Operator identifies a leaf comparison operation.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpInList      Operator = "in_list"
	OpNotInList   Operator = "not_in_list"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "not_exists"
	OpIsEmpty     Operator = "is_empty"
)

var validOperators = map[Operator]bool{
	OpEquals:      true,
	OpNotEquals:   true,
	OpContains:    true,
	OpNotContains: true,
	OpGreaterThan: true,
	OpLessThan:    true,
	OpInList:      true,
	OpNotInList:   true,
	OpExists:      true,
	OpNotExists:   true,
	OpIsEmpty:     true,
}

// Valid reports whether op is one of the supported comparison operators.
func (op Operator) Valid() bool {
	return validOperators[op]
}

// Node is one node of a rule tree. Concrete types are Comparison, And, Or
// and Not; the evaluator handles each variant exhaustively.
type Node interface {
	kind() string
}

// Comparison is a leaf node testing a single variable.
type Comparison struct {
	Variable string
	Operator Operator
	Value    any
}

// And is true iff all children are true.
type And struct {
	Children []Node
}

// Or is true iff at least one child is true.
type Or struct {
	Children []Node
}

// Not negates its single child.
type Not struct {
	Child Node
}

func (Comparison) kind() string { return "comparison" }
func (And) kind() string        { return "and" }
func (Or) kind() string         { return "or" }
func (Not) kind() string        { return "not" }

// envelope is the wire form of a node. Exactly one variant's fields are
// expected to be populated, selected by Type.
type envelope struct {
	Type     string            `json:"type"`
	Variable string            `json:"variable,omitempty"`
	Operator Operator          `json:"operator,omitempty"`
	Value    json.RawMessage   `json:"value,omitempty"`
	Children []json.RawMessage `json:"children,omitempty"`
	Child    json.RawMessage   `json:"child,omitempty"`
}

// Decode parses a rule tree from JSON. Unknown node types, unknown
// operators, and and/or nodes without children are rejected here, not at
// evaluation time.
func Decode(data []byte) (Node, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid rule JSON: %w", err)
	}
	return decodeNode(raw)
}

func decodeNode(raw json.RawMessage) (Node, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid rule node: %w", err)
	}

	switch env.Type {
	case "comparison":
		if env.Variable == "" {
			return nil, fmt.Errorf("comparison node missing variable")
		}
		if !env.Operator.Valid() {
			return nil, fmt.Errorf("unknown operator %q for variable %q", env.Operator, env.Variable)
		}
		var value any
		if len(env.Value) > 0 {
			if err := json.Unmarshal(env.Value, &value); err != nil {
				return nil, fmt.Errorf("invalid comparison value for variable %q: %w", env.Variable, err)
			}
		}
		return Comparison{Variable: env.Variable, Operator: env.Operator, Value: value}, nil

	case "and", "or":
		if len(env.Children) == 0 {
			return nil, fmt.Errorf("%s node requires at least one child", env.Type)
		}
		children := make([]Node, 0, len(env.Children))
		for i, rawChild := range env.Children {
			child, err := decodeNode(rawChild)
			if err != nil {
				return nil, fmt.Errorf("%s child %d: %w", env.Type, i, err)
			}
			children = append(children, child)
		}
		if env.Type == "and" {
			return And{Children: children}, nil
		}
		return Or{Children: children}, nil

	case "not":
		if len(env.Child) == 0 {
			return nil, fmt.Errorf("not node requires a child")
		}
		child, err := decodeNode(env.Child)
		if err != nil {
			return nil, fmt.Errorf("not child: %w", err)
		}
		return Not{Child: child}, nil

	case "":
		return nil, fmt.Errorf("rule node missing type")
	default:
		return nil, fmt.Errorf("unknown rule node type %q", env.Type)
	}
}

// Validate walks the tree and checks that every leaf references a variable
// present in the catalog. Returns the first unresolved reference as an error.
func Validate(node Node, catalog map[string]bool) error {
	for _, cmp := range Leaves(node) {
		if !catalog[cmp.Variable] {
			return fmt.Errorf("rule references unknown variable %q", cmp.Variable)
		}
	}
	return nil
}

// Leaves returns every comparison leaf in the tree, in document order.
// Traversal uses an explicit stack so arbitrarily deep trees are safe.
func Leaves(node Node) []Comparison {
	if node == nil {
		return nil
	}
	var out []Comparison
	stack := []Node{node}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch v := n.(type) {
		case Comparison:
			out = append(out, v)
		case And:
			for i := len(v.Children) - 1; i >= 0; i-- {
				stack = append(stack, v.Children[i])
			}
		case Or:
			for i := len(v.Children) - 1; i >= 0; i-- {
				stack = append(stack, v.Children[i])
			}
		case Not:
			stack = append(stack, v.Child)
		}
	}
	return out
}

// Variables returns the distinct variable slugs referenced by the tree.
func Variables(node Node) []string {
	seen := make(map[string]bool)
	var out []string
	for _, cmp := range Leaves(node) {
		if seen[cmp.Variable] {
			continue
		}
		seen[cmp.Variable] = true
		out = append(out, cmp.Variable)
	}
	return out
}

// ExistenceTested returns the slugs the tree tests with exists or
// not_exists. Values for these variables stay visible to the evaluator even
// when the variable is currently inapplicable.
func ExistenceTested(node Node) map[string]bool {
	out := make(map[string]bool)
	for _, cmp := range Leaves(node) {
		if cmp.Operator == OpExists || cmp.Operator == OpNotExists {
			out[cmp.Variable] = true
		}
	}
	return out
}
