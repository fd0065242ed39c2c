package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"lexflow/internal/catalog"
	"lexflow/internal/condition"
)

// rulesSchema is the structural contract of the rules file. The rule
// generator may emit anything; shape violations are rejected here, before
// the tagged-variant decode runs.
const rulesSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["modules"],
  "properties": {
    "modules": {
      "type": "array",
      "items": { "$ref": "#/$defs/module" }
    }
  },
  "$defs": {
    "module": {
      "type": "object",
      "required": ["module_id", "condition"],
      "properties": {
        "module_id": { "type": "string", "minLength": 1 },
        "condition": { "$ref": "#/$defs/node" }
      }
    },
    "node": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": { "enum": ["comparison", "and", "or", "not"] },
        "variable": { "type": "string" },
        "operator": { "type": "string" },
        "children": {
          "type": "array",
          "minItems": 1,
          "items": { "$ref": "#/$defs/node" }
        },
        "child": { "$ref": "#/$defs/node" }
      }
    }
  }
}`

var (
	rulesSchemaOnce     sync.Once
	rulesSchemaCompiled *jsonschema.Schema
	rulesSchemaErr      error
)

func compiledRulesSchema() (*jsonschema.Schema, error) {
	rulesSchemaOnce.Do(func() {
		rulesSchemaCompiled, rulesSchemaErr = jsonschema.CompileString("rules.schema.json", rulesSchema)
	})
	return rulesSchemaCompiled, rulesSchemaErr
}

type rulesFile struct {
	Modules []moduleEntry `json:"modules"`
}

type moduleEntry struct {
	ModuleID  string          `json:"module_id"`
	Condition json.RawMessage `json:"condition"`
}

// LoadRules reads the module rules file, validates it against the schema
// and decodes each condition tree.
func LoadRules(path string) ([]catalog.ModuleRule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRules(raw)
}

// ParseRules validates and decodes a rules document. Module ids must be
// unique; output order is stable (sorted by module id) so downstream
// activation results are reproducible across runs.
func ParseRules(raw []byte) ([]catalog.ModuleRule, error) {
	schema, err := compiledRulesSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile rules schema: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("invalid rules JSON: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("rules schema validation failed: %w", err)
	}

	var file rulesFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("invalid rules JSON: %w", err)
	}

	seen := make(map[string]bool, len(file.Modules))
	out := make([]catalog.ModuleRule, 0, len(file.Modules))
	for _, entry := range file.Modules {
		if seen[entry.ModuleID] {
			return nil, fmt.Errorf("duplicate module id %q", entry.ModuleID)
		}
		seen[entry.ModuleID] = true

		node, err := condition.Decode(entry.Condition)
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", entry.ModuleID, err)
		}
		out = append(out, catalog.ModuleRule{ModuleID: entry.ModuleID, Condition: node})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, nil
}
