// Package namespace qualifies variable identifiers with their owning
// document category so independently configured categories cannot collide
// on variable names.
package namespace

import (
	"fmt"
	"strings"

	"lexflow/internal/catalog"
)

// Qualify prefixes a base slug with the category's namespace. When no
// explicit prefix is configured, the category name is slugified instead.
func Qualify(baseSlug string, cat catalog.Category) string {
	prefix := strings.TrimSpace(cat.NamespacePrefix)
	if prefix == "" {
		prefix = Slugify(cat.Name)
	}
	return prefix + "_" + strings.TrimSpace(baseSlug)
}

// Slugify lowercases a name, folds common Portuguese accents and replaces
// every other non-alphanumeric run with a single underscore.
func Slugify(name string) string {
	s := accentFolder.Replace(strings.ToLower(strings.TrimSpace(name)))
	var b strings.Builder
	prevUnderscore := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

// QualifyAll returns a copy of the variable catalog with slugs and
// dependency references qualified by their owning category. Dependency
// references are qualified with the same rules so a cross-category cycle
// cannot hide behind a name collision. A qualified-slug collision is a
// configuration error.
func QualifyAll(vars []catalog.Variable, cats []catalog.Category) ([]catalog.Variable, error) {
	byID := make(map[string]catalog.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}

	out := make([]catalog.Variable, 0, len(vars))
	seen := make(map[string]string, len(vars))
	for _, v := range vars {
		cat, ok := byID[v.Category]
		if !ok {
			return nil, fmt.Errorf("variable %q references unknown category %q", v.Slug, v.Category)
		}
		qualified := v
		qualified.Slug = Qualify(v.Slug, cat)
		if prev, dup := seen[qualified.Slug]; dup {
			return nil, fmt.Errorf("namespace collision: %q and %q both qualify to %q", prev, v.Slug, qualified.Slug)
		}
		seen[qualified.Slug] = v.Slug
		out = append(out, qualified)
	}

	// Dependency references written as already-qualified slugs (cross
	// category) pass through; everything else qualifies within the owning
	// category.
	for i := range out {
		if out[i].DependsOn == "" {
			continue
		}
		if _, exists := seen[out[i].DependsOn]; exists {
			continue
		}
		out[i].DependsOn = Qualify(out[i].DependsOn, byID[out[i].Category])
	}
	return out, nil
}
