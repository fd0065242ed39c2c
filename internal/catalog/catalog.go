// Package catalog holds the externally owned configuration consumed by the
// detection core: document categories, variable descriptors, module rules
// and selection priorities. The core receives one immutable Snapshot per
// run and never mutates it.
package catalog

import "lexflow/internal/condition"

// VarType is the declared type of an extracted variable.
type VarType string

const (
	TypeText     VarType = "text"
	TypeNumber   VarType = "number"
	TypeDate     VarType = "date"
	TypeBoolean  VarType = "boolean"
	TypeChoice   VarType = "choice"
	TypeList     VarType = "list"
	TypeCurrency VarType = "currency"
)

// Valid reports whether t is a supported variable type.
func (t VarType) Valid() bool {
	switch t {
	case TypeText, TypeNumber, TypeDate, TypeBoolean, TypeChoice, TypeList, TypeCurrency:
		return true
	}
	return false
}

// Category is a configured document category. Exactly one category per
// configuration may be residual; it receives documents the classifier
// could not place with enough confidence.
type Category struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	DocumentCodes   []string `yaml:"document_codes"`
	NamespacePrefix string   `yaml:"namespace_prefix"`
	LogicalTypes    []string `yaml:"logical_types"`
	Residual        bool     `yaml:"residual"`
}

// Variable describes one extractable variable. Slug is the base
// (unqualified) identifier as configured; the loader qualifies it with the
// owning category's namespace before the snapshot is handed to the core.
// DependsOn, when set, references another variable (also qualified) whose
// value gates this variable's applicability.
type Variable struct {
	Slug               string             `yaml:"slug"`
	Type               VarType            `yaml:"type"`
	Category           string             `yaml:"category"`
	Options            []string           `yaml:"options"`
	DependsOn          string             `yaml:"depends_on"`
	DependencyOperator condition.Operator `yaml:"dependency_operator"`
	DependencyValue    any                `yaml:"dependency_value"`
}

// ModuleRule pairs a content module with its activation condition.
type ModuleRule struct {
	ModuleID  string
	Condition condition.Node
}

// Priority lists, for one output type, which categories provide primary and
// secondary source documents.
type Priority struct {
	Primary   []string `yaml:"primary"`
	Secondary []string `yaml:"secondary"`
}

// Snapshot is the full configuration for one pipeline run. It is assembled
// and validated by the config package and read-only afterwards.
type Snapshot struct {
	Categories          []Category
	Variables           []Variable
	Modules             []ModuleRule
	Priorities          map[string]Priority
	ConfidenceThreshold float64
	MaxConcurrentCalls  int
}

// CategoryByID returns the category with the given id, if configured.
func (s *Snapshot) CategoryByID(id string) (Category, bool) {
	for _, c := range s.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// ResidualCategory returns the configured fallback category, if any.
func (s *Snapshot) ResidualCategory() (Category, bool) {
	for _, c := range s.Categories {
		if c.Residual {
			return c, true
		}
	}
	return Category{}, false
}

// VariableBySlug returns the (qualified) variable descriptor, if present.
func (s *Snapshot) VariableBySlug(slug string) (Variable, bool) {
	for _, v := range s.Variables {
		if v.Slug == slug {
			return v, true
		}
	}
	return Variable{}, false
}
