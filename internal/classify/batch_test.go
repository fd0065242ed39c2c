package classify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// echoCapability classifies by document content and can simulate slow or
// failing calls per content token.
type echoCapability struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	delay    time.Duration
	failOn   map[string]bool
}

func (e *echoCapability) Decide(ctx context.Context, content string, choices []Choice) (CapabilityResult, error) {
	e.mu.Lock()
	e.inFlight++
	if e.inFlight > e.peak {
		e.peak = e.inFlight
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inFlight--
		e.mu.Unlock()
	}()

	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return CapabilityResult{}, ctx.Err()
		}
	}
	if e.failOn[content] {
		return CapabilityResult{}, errors.New("capability unavailable")
	}
	return CapabilityResult{CategoryID: content, Confidence: 0.9}, nil
}

func TestClassifyBatch_MapsResultsToInputs(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	capability := &echoCapability{delay: 5 * time.Millisecond}
	c := NewClassifier(testCategories(), capability, 0.5)

	docs := []Document{
		{ID: "d0", Content: "peticoes"},
		{ID: "d1", Content: "contratos"},
		{ID: "d2", Content: "outros"},
	}

	out := c.ClassifyBatch(context.Background(), docs, 2)
	require.Len(t, out.Decisions, 3)
	for i, doc := range docs {
		require.NoError(t, out.Errors[i])
		assert.Equal(t, doc.ID, out.Decisions[i].DocumentID)
		assert.Equal(t, doc.Content, out.Decisions[i].CategoryID)
	}
}

func TestClassifyBatch_RespectsConcurrencyBound(t *testing.T) {
	capability := &echoCapability{delay: 20 * time.Millisecond}
	c := NewClassifier(testCategories(), capability, 0.5)

	docs := make([]Document, 9)
	for i := range docs {
		docs[i] = Document{ID: fmt.Sprintf("d%d", i), Content: "peticoes"}
	}

	out := c.ClassifyBatch(context.Background(), docs, 3)
	for i := range docs {
		require.NoError(t, out.Errors[i])
	}
	assert.LessOrEqual(t, capability.peak, 3)
}

func TestClassifyBatch_OneFailureDoesNotFailSiblings(t *testing.T) {
	capability := &echoCapability{failOn: map[string]bool{"contratos": true}}
	c := NewClassifier(testCategories(), capability, 0.5)

	docs := []Document{
		{ID: "d0", Content: "peticoes"},
		{ID: "d1", Content: "contratos"},
		{ID: "d2", Content: "outros"},
	}

	out := c.ClassifyBatch(context.Background(), docs, 3)
	assert.NoError(t, out.Errors[0])
	require.Error(t, out.Errors[1])
	assert.NoError(t, out.Errors[2])

	var capErr *CapabilityError
	require.ErrorAs(t, out.Errors[1], &capErr)
	assert.Equal(t, "d1", capErr.DocumentID)

	succeeded := out.Succeeded()
	require.Len(t, succeeded, 2)
	assert.Equal(t, "d0", succeeded[0].DocumentID)
	assert.Equal(t, "d2", succeeded[1].DocumentID)
}

func TestClassifyBatch_CancelledContextStopsNewCalls(t *testing.T) {
	capability := &echoCapability{}
	c := NewClassifier(testCategories(), capability, 0.5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs := []Document{
		{ID: "d0", Content: "peticoes"},
		{ID: "d1", Content: "contratos"},
	}

	out := c.ClassifyBatch(ctx, docs, 2)
	for i := range docs {
		require.Error(t, out.Errors[i])
		assert.ErrorIs(t, out.Errors[i], context.Canceled)
	}
}

func TestClassifyBatch_EmptyInput(t *testing.T) {
	c := NewClassifier(testCategories(), &echoCapability{}, 0.5)
	out := c.ClassifyBatch(context.Background(), nil, 3)
	assert.Empty(t, out.Decisions)
	assert.Empty(t, out.Errors)
}
