package config

import (
	"fmt"

	"lexflow/internal/catalog"
	"lexflow/internal/condition"
	"lexflow/internal/depend"
)

// Validator is one configuration validation stage.
type Validator interface {
	Name() string
	Validate(snap *catalog.Snapshot) error
}

// StageResult records the outcome of one validation stage.
type StageResult struct {
	Validator string
	Err       error
}

// Chain runs validation stages in order. All stages run even after a
// failure so the admin layer can surface every misconfiguration at once.
type Chain struct {
	validators []Validator
}

// NewChain builds a validation chain from the given stages.
func NewChain(validators ...Validator) *Chain {
	return &Chain{validators: validators}
}

// DefaultChain covers the full configuration-error taxonomy: category
// shape, namespace uniqueness, rule references and dependency cycles.
func DefaultChain() *Chain {
	return NewChain(
		categoryValidator{},
		namespaceValidator{},
		referenceValidator{},
		cycleValidator{},
	)
}

// Run executes every stage against the snapshot.
func (c *Chain) Run(snap *catalog.Snapshot) []StageResult {
	if snap == nil {
		return nil
	}
	out := make([]StageResult, 0, len(c.validators))
	for _, v := range c.validators {
		out = append(out, StageResult{Validator: v.Name(), Err: v.Validate(snap)})
	}
	return out
}

// FirstError returns the first stage failure, if any.
func FirstError(results []StageResult) error {
	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("%s: %w", r.Validator, r.Err)
		}
	}
	return nil
}

type categoryValidator struct{}

func (categoryValidator) Name() string { return "categories" }

func (categoryValidator) Validate(snap *catalog.Snapshot) error {
	if len(snap.Categories) == 0 {
		return fmt.Errorf("no document categories configured")
	}
	seen := make(map[string]bool, len(snap.Categories))
	residuals := 0
	for _, c := range snap.Categories {
		if c.ID == "" {
			return fmt.Errorf("category %q has no id", c.Name)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate category id %q", c.ID)
		}
		seen[c.ID] = true
		if c.Residual {
			residuals++
		}
	}
	if residuals > 1 {
		return fmt.Errorf("%d categories flagged residual, at most one allowed", residuals)
	}
	for _, v := range snap.Variables {
		if !v.Type.Valid() {
			return fmt.Errorf("variable %q has unknown type %q", v.Slug, v.Type)
		}
	}
	return nil
}

type namespaceValidator struct{}

func (namespaceValidator) Name() string { return "namespace" }

func (namespaceValidator) Validate(snap *catalog.Snapshot) error {
	seen := make(map[string]bool, len(snap.Variables))
	for _, v := range snap.Variables {
		if seen[v.Slug] {
			return fmt.Errorf("namespace collision on qualified slug %q", v.Slug)
		}
		seen[v.Slug] = true
	}
	return nil
}

type referenceValidator struct{}

func (referenceValidator) Name() string { return "references" }

func (referenceValidator) Validate(snap *catalog.Snapshot) error {
	known := make(map[string]bool, len(snap.Variables))
	for _, v := range snap.Variables {
		known[v.Slug] = true
	}
	for _, m := range snap.Modules {
		if err := condition.Validate(m.Condition, known); err != nil {
			return fmt.Errorf("module %q: %w", m.ModuleID, err)
		}
	}
	for _, v := range snap.Variables {
		if v.DependsOn == "" {
			continue
		}
		if !known[v.DependsOn] {
			return fmt.Errorf("variable %q depends on unknown variable %q", v.Slug, v.DependsOn)
		}
		if !v.DependencyOperator.Valid() {
			return fmt.Errorf("variable %q has unknown dependency operator %q", v.Slug, v.DependencyOperator)
		}
	}
	return nil
}

type cycleValidator struct{}

func (cycleValidator) Name() string { return "cycles" }

func (cycleValidator) Validate(snap *catalog.Snapshot) error {
	_, err := depend.Order(snap.Variables)
	return err
}
