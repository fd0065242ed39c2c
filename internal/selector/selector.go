// Package selector assigns primary/secondary roles to classified documents
// for a target output type. Role assignment derives entirely from the
// classification decisions and the priority configuration; given identical
// inputs the assignment, including tie-break ranks, is reproducible.
package selector

import (
	"sort"

	"lexflow/internal/catalog"
	"lexflow/internal/classify"
)

// Role is the selection role of a document for one output type.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
	RoleExcluded  Role = "excluded"
)

// Assignment records the selection outcome for one document. Rank orders
// documents within their role after tie-breaking, starting at 0, so the
// resolution order stays auditable.
type Assignment struct {
	DocumentID string
	Role       Role
	OutputType string
	Rank       int
}

type candidate struct {
	decision classify.Decision
	keyword  bool
	order    int
}

// Select assigns a role and rank to every decided document for the given
// output type. keywordMatch is the externally supplied per-document signal
// used as the second tie-break criterion; submission order is the position
// in decisions. Ties after confidence, keyword signal and submission order
// keep submission order (the sort is stable).
func Select(decisions []classify.Decision, keywordMatch map[string]bool, outputType string, prio catalog.Priority) []Assignment {
	primarySet := toSet(prio.Primary)
	secondarySet := toSet(prio.Secondary)

	var primaries, secondaries, excluded []candidate
	for i, d := range decisions {
		c := candidate{decision: d, keyword: keywordMatch[d.DocumentID], order: i}
		switch {
		case primarySet[d.CategoryID]:
			primaries = append(primaries, c)
		case secondarySet[d.CategoryID]:
			secondaries = append(secondaries, c)
		default:
			excluded = append(excluded, c)
		}
	}

	rankCandidates(primaries)
	rankCandidates(secondaries)

	out := make([]Assignment, 0, len(decisions))
	out = appendAssignments(out, primaries, RolePrimary, outputType)
	out = appendAssignments(out, secondaries, RoleSecondary, outputType)
	out = appendAssignments(out, excluded, RoleExcluded, outputType)
	return out
}

// rankCandidates orders by (1) higher confidence, (2) keyword signal
// present, (3) earliest submission. SliceStable keeps submission order for
// full ties.
func rankCandidates(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].decision.Confidence != cands[j].decision.Confidence {
			return cands[i].decision.Confidence > cands[j].decision.Confidence
		}
		if cands[i].keyword != cands[j].keyword {
			return cands[i].keyword
		}
		return cands[i].order < cands[j].order
	})
}

func appendAssignments(out []Assignment, cands []candidate, role Role, outputType string) []Assignment {
	for rank, c := range cands {
		out = append(out, Assignment{
			DocumentID: c.decision.DocumentID,
			Role:       role,
			OutputType: outputType,
			Rank:       rank,
		})
	}
	return out
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		out[v] = true
	}
	return out
}
