package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"lexflow/internal/catalog"
	"lexflow/internal/classify"
)

// FileExtractor reads pre-extracted values from JSON sidecar files named
// <document-id>.values.json under a root directory. It stands in for the
// real extraction capability during offline runs and tests.
type FileExtractor struct {
	Root string
}

// Extract loads the document's sidecar file and returns the entries scoped
// to the given category. A sidecar may be flat (base slug → value, applied
// to every category) or keyed by category id at the top level.
func (f *FileExtractor) Extract(ctx context.Context, doc classify.Document, cat catalog.Category) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(f.Root, doc.ID+".values.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("invalid values file %s: %w", path, err)
	}

	if scoped, ok := parsed[cat.ID].(map[string]any); ok {
		return scoped, nil
	}
	return parsed, nil
}
