package classify

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchResult pairs each input document with either its decision or its
// per-document error. Index mirrors the input order regardless of
// completion order.
type BatchResult struct {
	Decisions []Decision
	Errors    []error
}

// Succeeded returns the decisions of the documents that classified without
// a capability failure, preserving input order.
func (r BatchResult) Succeeded() []Decision {
	out := make([]Decision, 0, len(r.Decisions))
	for i := range r.Decisions {
		if r.Errors[i] == nil {
			out = append(out, r.Decisions[i])
		}
	}
	return out
}

// ClassifyBatch classifies documents concurrently under a bounded pool of
// at most maxInFlight simultaneous capability calls. One document's failure
// never fails the batch or cancels its siblings. Cancelling ctx stops
// issuing new calls; calls already in flight run to completion or time out
// on their own, and every remaining document is reported with the context
// error.
func (c *Classifier) ClassifyBatch(ctx context.Context, docs []Document, maxInFlight int) BatchResult {
	out := BatchResult{
		Decisions: make([]Decision, len(docs)),
		Errors:    make([]error, len(docs)),
	}
	if len(docs) == 0 {
		return out
	}
	if maxInFlight <= 0 {
		maxInFlight = 1
	}

	var g errgroup.Group
	g.SetLimit(maxInFlight)

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			out.Errors[i] = &CapabilityError{DocumentID: doc.ID, Err: err}
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out.Errors[i] = &CapabilityError{DocumentID: doc.ID, Err: err}
				return nil
			}
			decision, err := c.Classify(ctx, doc)
			if err != nil {
				out.Errors[i] = err
				return nil
			}
			out.Decisions[i] = decision
			return nil
		})
	}

	// Workers only write their own index; the join here is the only
	// synchronization the fan-in needs.
	_ = g.Wait()
	return out
}
