// Package pipeline wires the detection stages end to end: classify the
// input documents, select source documents per category priority, collect
// raw values through the extraction capability, and evaluate module
// activation. Each stage hands an explicit result to the next; the run
// report aggregates everything the caller needs for audit.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lexflow/internal/activation"
	"lexflow/internal/catalog"
	"lexflow/internal/classify"
	"lexflow/internal/namespace"
	"lexflow/internal/selector"
)

// Extractor supplies raw variable values for one document. Keys are base
// (unqualified) slugs; the pipeline qualifies them with the category
// namespace before evaluation. Extraction itself (OCR, field detection) is
// an external collaborator.
type Extractor interface {
	Extract(ctx context.Context, doc classify.Document, cat catalog.Category) (map[string]any, error)
}

// Report is the aggregate outcome of one detection run.
type Report struct {
	RunID            string
	OutputType       string
	StartedAt        time.Time
	Duration         time.Duration
	Decisions        []classify.Decision
	DocumentErrors   map[string]string
	Assignments      []selector.Assignment
	ValueWarnings    []activation.ValueWarning
	Activations      []activation.Result
	FallbacksApplied int
	ActiveModules    int
}

// Pipeline executes detection runs against one configuration snapshot.
type Pipeline struct {
	snap       *catalog.Snapshot
	classifier *classify.Classifier
	extractor  Extractor
	logger     *zap.Logger
}

// New builds a pipeline. logger may be nil, in which case a no-op logger is
// used.
func New(snap *catalog.Snapshot, capability classify.Capability, extractor Extractor, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		snap:       snap,
		classifier: classify.NewClassifier(snap.Categories, capability, snap.ConfidenceThreshold),
		extractor:  extractor,
		logger:     logger,
	}
}

// Run executes the full detection flow for the given documents and target
// output type. Per-document classification or extraction failures are
// reported and skipped; only missing configuration for the output type
// fails the run.
func (p *Pipeline) Run(ctx context.Context, docs []classify.Document, outputType string) (*Report, error) {
	prio, ok := p.snap.Priorities[outputType]
	if !ok {
		return nil, fmt.Errorf("no priority configuration for output type %q", outputType)
	}

	started := time.Now()
	report := &Report{
		RunID:          uuid.NewString(),
		OutputType:     outputType,
		StartedAt:      started.UTC(),
		DocumentErrors: make(map[string]string),
	}

	decisions := p.classifyStage(ctx, docs, report)
	p.selectStage(docs, decisions, outputType, prio, report)
	values := p.extractStage(ctx, docs, report)
	p.activateStage(values, report)

	report.Duration = time.Since(started)
	p.logger.Info("detection run finished",
		zap.String("run_id", report.RunID),
		zap.String("output_type", outputType),
		zap.Int("documents", len(docs)),
		zap.Int("fallbacks", report.FallbacksApplied),
		zap.Int("active_modules", report.ActiveModules),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (p *Pipeline) classifyStage(ctx context.Context, docs []classify.Document, report *Report) []classify.Decision {
	batch := p.classifier.ClassifyBatch(ctx, docs, p.snap.MaxConcurrentCalls)

	for i, err := range batch.Errors {
		if err != nil {
			report.DocumentErrors[docs[i].ID] = err.Error()
			p.logger.Warn("document classification failed",
				zap.String("document_id", docs[i].ID),
				zap.Error(err),
			)
		}
	}

	decisions := batch.Succeeded()
	for _, d := range decisions {
		if d.FallbackApplied {
			report.FallbacksApplied++
			p.logger.Info("classification fallback applied",
				zap.String("document_id", d.DocumentID),
				zap.String("category_id", d.CategoryID),
				zap.String("reason", d.FallbackReason),
			)
		}
	}
	report.Decisions = decisions
	return decisions
}

func (p *Pipeline) selectStage(docs []classify.Document, decisions []classify.Decision, outputType string, prio catalog.Priority, report *Report) {
	keywordMatch := make(map[string]bool, len(docs))
	for _, doc := range docs {
		keywordMatch[doc.ID] = doc.KeywordMatch
	}
	report.Assignments = selector.Select(decisions, keywordMatch, outputType, prio)
}

// extractStage pulls raw values from the best-ranked document of each
// category that owns variables, qualifies the slugs and normalizes the
// values. A failed extraction skips that category's values; the
// missing-variable policy covers the gap downstream.
func (p *Pipeline) extractStage(ctx context.Context, docs []classify.Document, report *Report) map[string]any {
	docsByID := make(map[string]classify.Document, len(docs))
	for _, d := range docs {
		docsByID[d.ID] = d
	}

	raw := make(map[string]any)
	for _, cat := range p.snap.Categories {
		if !p.categoryHasVariables(cat) {
			continue
		}
		doc, ok := p.sourceDocument(cat, report)
		if !ok {
			continue
		}
		values, err := p.extractor.Extract(ctx, docsByID[doc], cat)
		if err != nil {
			report.DocumentErrors[doc] = fmt.Sprintf("extraction failed: %v", err)
			p.logger.Warn("extraction failed",
				zap.String("document_id", doc),
				zap.String("category_id", cat.ID),
				zap.Error(err),
			)
			continue
		}
		for baseSlug, value := range values {
			raw[namespace.Qualify(baseSlug, cat)] = value
		}
	}
	return raw
}

func (p *Pipeline) activateStage(raw map[string]any, report *Report) {
	values, warnings := activation.BuildValues(p.snap.Variables, raw)
	report.ValueWarnings = warnings
	for _, w := range warnings {
		p.logger.Warn("value normalization failed",
			zap.String("slug", w.Slug),
			zap.Error(w.Err),
		)
	}

	report.Activations = activation.Run(p.snap.Variables, p.snap.Modules, values)
	for _, a := range report.Activations {
		if a.Active {
			report.ActiveModules++
		}
	}
}

func (p *Pipeline) categoryHasVariables(cat catalog.Category) bool {
	for _, v := range p.snap.Variables {
		if v.Category == cat.ID {
			return true
		}
	}
	return false
}

// sourceDocument picks the fonte de verdade for a category: among documents
// decided into the category, the one ranked best by the selection
// tie-break, falling back to highest confidence when the category is not in
// any role list for this output type.
func (p *Pipeline) sourceDocument(cat catalog.Category, report *Report) (string, bool) {
	rankByDoc := make(map[string]int, len(report.Assignments))
	roleByDoc := make(map[string]selector.Role, len(report.Assignments))
	for _, a := range report.Assignments {
		rankByDoc[a.DocumentID] = a.Rank
		roleByDoc[a.DocumentID] = a.Role
	}

	bestID := ""
	bestRank := -1
	bestConfidence := -1.0
	for _, d := range report.Decisions {
		if d.CategoryID != cat.ID {
			continue
		}
		rank, ranked := rankByDoc[d.DocumentID]
		if roleByDoc[d.DocumentID] == selector.RoleExcluded {
			ranked = false
		}
		switch {
		case bestID == "":
			bestID, bestConfidence = d.DocumentID, d.Confidence
			if ranked {
				bestRank = rank
			}
		case ranked && (bestRank == -1 || rank < bestRank):
			bestID, bestRank, bestConfidence = d.DocumentID, rank, d.Confidence
		case !ranked && bestRank == -1 && d.Confidence > bestConfidence:
			bestID, bestConfidence = d.DocumentID, d.Confidence
		}
	}
	return bestID, bestID != ""
}
