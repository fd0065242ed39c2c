// Package classify routes input documents into configured categories. The
// actual categorization is delegated to an external capability that picks
// one category from a closed list; this package owns the deterministic
// policy around that call: confidence thresholding, residual fallback and
// auditability of every decision.
package classify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lexflow/internal/catalog"
)

// Document is one input document awaiting classification. Content is
// whatever the upstream heuristic chose to represent the document with
// (extracted text or a page-image reference); this package never inspects
// it. KeywordMatch is an externally supplied signal used later by selection
// tie-breaking, not by classification.
type Document struct {
	ID           string
	Content      string
	KeywordMatch bool
}

// Decision is the immutable outcome of one classification attempt.
// Re-classifying a document produces a new Decision, never a mutation.
type Decision struct {
	ID              uuid.UUID
	DocumentID      string
	CategoryID      string
	Confidence      float64
	Rationale       string
	FallbackApplied bool
	FallbackReason  string
	ClassifiedAt    time.Time
}

// Choice is one entry of the closed category list handed to the capability.
type Choice struct {
	ID           string
	Name         string
	LogicalTypes []string
}

// CapabilityResult is the structured response of the external classifier.
type CapabilityResult struct {
	CategoryID string
	Confidence float64
	Rationale  string
}

// Capability is the narrow interface to the external classification
// decision. Implementations must pick among the given choices and never
// invent a category; responses violating that are handled by the fallback
// policy, not by the capability.
type Capability interface {
	Decide(ctx context.Context, content string, choices []Choice) (CapabilityResult, error)
}

// CapabilityError wraps a failed or timed-out capability invocation for one
// document. It is recoverable per document: the caller owns retry policy.
type CapabilityError struct {
	DocumentID string
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("classification capability failed for document %q: %v", e.DocumentID, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// Classifier applies the decision policy for one configuration snapshot.
type Classifier struct {
	categories []catalog.Category
	choices    []Choice
	threshold  float64
	decide     Capability
}

// NewClassifier builds a classifier over the configured categories. The
// threshold is the minimum capability confidence accepted before the
// residual fallback kicks in.
func NewClassifier(categories []catalog.Category, decide Capability, threshold float64) *Classifier {
	choices := make([]Choice, 0, len(categories))
	for _, c := range categories {
		choices = append(choices, Choice{ID: c.ID, Name: c.Name, LogicalTypes: c.LogicalTypes})
	}
	return &Classifier{
		categories: categories,
		choices:    choices,
		threshold:  threshold,
		decide:     decide,
	}
}

// Classify produces one Decision for the document. Low-confidence or
// structurally invalid capability responses resolve deterministically via
// the fallback policy; only a failed capability invocation returns an
// error.
func (c *Classifier) Classify(ctx context.Context, doc Document) (Decision, error) {
	if len(c.categories) == 0 {
		return Decision{}, fmt.Errorf("no categories configured")
	}

	res, err := c.decide.Decide(ctx, doc.Content, c.choices)
	if err != nil {
		return Decision{}, &CapabilityError{DocumentID: doc.ID, Err: err}
	}

	decision := Decision{
		ID:           uuid.New(),
		DocumentID:   doc.ID,
		CategoryID:   res.CategoryID,
		Confidence:   res.Confidence,
		Rationale:    res.Rationale,
		ClassifiedAt: time.Now().UTC(),
	}

	if reason := c.fallbackReason(res); reason != "" {
		fallback, degraded := c.fallbackCategory()
		decision.CategoryID = fallback.ID
		decision.FallbackApplied = true
		decision.FallbackReason = reason
		if degraded != "" {
			decision.FallbackReason = reason + "; " + degraded
		}
	}
	return decision, nil
}

// fallbackReason returns a non-empty cause when the capability response
// must not be accepted as-is.
func (c *Classifier) fallbackReason(res CapabilityResult) string {
	if res.CategoryID == "" || res.Confidence < 0 || res.Confidence > 1 {
		return "structurally invalid capability response"
	}
	if _, ok := c.categoryByID(res.CategoryID); !ok {
		return fmt.Sprintf("capability chose unconfigured category %q", res.CategoryID)
	}
	if res.Confidence < c.threshold {
		return fmt.Sprintf("confidence %.2f below threshold %.2f", res.Confidence, c.threshold)
	}
	return ""
}

// fallbackCategory picks the residual category, or degrades to the first
// configured category when none is flagged residual. The degraded
// condition is reported so the decision's audit trail names it.
func (c *Classifier) fallbackCategory() (catalog.Category, string) {
	for _, cat := range c.categories {
		if cat.Residual {
			return cat, ""
		}
	}
	return c.categories[0], "no residual category configured, used first configured category"
}

func (c *Classifier) categoryByID(id string) (catalog.Category, bool) {
	for _, cat := range c.categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return catalog.Category{}, false
}
