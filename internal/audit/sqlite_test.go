package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexflow/internal/activation"
	"lexflow/internal/classify"
	"lexflow/internal/pipeline"
	"lexflow/internal/selector"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport(runID string) *pipeline.Report {
	return &pipeline.Report{
		RunID:      runID,
		OutputType: "contestacao",
		StartedAt:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Duration:   1200 * time.Millisecond,
		Decisions: []classify.Decision{
			{
				ID:           uuid.New(),
				DocumentID:   "doc-1",
				CategoryID:   "peticoes",
				Confidence:   0.92,
				Rationale:    "mentions valor da causa",
				ClassifiedAt: time.Date(2026, 3, 10, 9, 0, 1, 0, time.UTC),
			},
			{
				ID:              uuid.New(),
				DocumentID:      "doc-2",
				CategoryID:      "outros",
				Confidence:      0.3,
				FallbackApplied: true,
				FallbackReason:  "confidence 0.30 below threshold 0.50",
				ClassifiedAt:    time.Date(2026, 3, 10, 9, 0, 1, 0, time.UTC),
			},
		},
		Assignments: []selector.Assignment{
			{DocumentID: "doc-1", Role: selector.RolePrimary, OutputType: "contestacao", Rank: 0},
			{DocumentID: "doc-2", Role: selector.RoleExcluded, OutputType: "contestacao", Rank: 0},
		},
		Activations: []activation.Result{
			{ModuleID: "competencia-vara-civel", Active: true,
				EvaluatedVariables: []string{"peticao_valor_causa"}},
			{ModuleID: "prazo-liminar", Active: false,
				MissingVariables: []string{"peticao_data_liminar"}},
		},
		FallbacksApplied: 1,
		ActiveModules:    1,
	}
}

func TestSaveRun_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, sampleReport("run-1")))

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, "contestacao", runs[0].OutputType)
	assert.Equal(t, 1, runs[0].Fallbacks)
	assert.Equal(t, 1, runs[0].ActiveModules)
}

func TestSaveRun_DuplicateRunIDFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, sampleReport("run-1")))
	err := s.SaveRun(ctx, sampleReport("run-1"))
	require.Error(t, err)
}

func TestRecentRuns_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := sampleReport("run-old")
	older.StartedAt = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, older))
	require.NoError(t, s.SaveRun(ctx, sampleReport("run-new")))

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].RunID)
	assert.Equal(t, "run-old", runs[1].RunID)
}

func TestRecentRuns_LimitApplied(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		r := sampleReport(id)
		r.StartedAt = time.Date(2026, 3, 10, 9, i, 0, 0, time.UTC)
		require.NoError(t, s.SaveRun(ctx, r))
	}

	runs, err := s.RecentRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestFallbackDecisions_ListsOnlyFallbacks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, sampleReport("run-1")))

	lines, err := s.FallbackDecisions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "doc-2")
	assert.Contains(t, lines[0], "outros")
	assert.Contains(t, lines[0], "below threshold")
}

func TestFallbackDecisions_UnknownRunIsEmpty(t *testing.T) {
	s := openTestStore(t)
	lines, err := s.FallbackDecisions(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, lines)
}
