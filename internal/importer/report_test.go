package importer

import (
	"fmt"
	"testing"
)

func outcomeRows(kinds ...OutcomeKind) []*Row {
	rows := make([]*Row, len(kinds))
	for i, k := range kinds {
		rows[i] = &Row{
			Number:  i + 1,
			Slug:    fmt.Sprintf("row-%d", i+1),
			Label:   fmt.Sprintf("Row %d", i+1),
			Outcome: Outcome{Kind: k, Reason: reasonFor(k)},
		}
	}
	return rows
}

func reasonFor(k OutcomeKind) string {
	switch k {
	case OutcomeFailed:
		return "boom"
	case OutcomeSkipped:
		return "already exists"
	default:
		return ""
	}
}

func TestBuildReportSummary(t *testing.T) {
	rows := outcomeRows(OutcomeCreated, OutcomeCreated, OutcomeUpdated, OutcomeSkipped, OutcomeFailed)
	rep := BuildReport(rows)

	if rep.Success {
		t.Error("a batch with a failed row must not report success")
	}
	s := rep.Summary
	if s.Total != 5 || s.Created != 2 || s.Updated != 1 || s.Skipped != 1 || s.Errors != 1 {
		t.Errorf("summary = %+v", s)
	}
	if rep.TotalResults != 5 || len(rep.Results) != 5 {
		t.Errorf("totalResults=%d len=%d, want 5/5", rep.TotalResults, len(rep.Results))
	}
}

func TestBuildReportPendingIsError(t *testing.T) {
	rep := BuildReport(outcomeRows(OutcomePending))
	if rep.Summary.Errors != 1 {
		t.Fatalf("pending row should count as error, summary = %+v", rep.Summary)
	}
	if rep.Results[0].Error != "not processed" {
		t.Errorf("error = %q", rep.Results[0].Error)
	}
}

// Errors come first up to their cap, successes fill the remainder, and the
// final list is re-sorted by row number with the true total preserved.
func TestBuildReportCaps(t *testing.T) {
	kinds := make([]OutcomeKind, 0, 120)
	for i := 0; i < 60; i++ {
		kinds = append(kinds, OutcomeFailed)
	}
	for i := 0; i < 60; i++ {
		kinds = append(kinds, OutcomeCreated)
	}
	rep := BuildReport(outcomeRows(kinds...))

	if len(rep.Results) != maxResults {
		t.Fatalf("len(results) = %d, want %d", len(rep.Results), maxResults)
	}
	if rep.TotalResults != 120 {
		t.Errorf("totalResults = %d, want 120", rep.TotalResults)
	}

	var errCount int
	for i, r := range rep.Results {
		if r.Error != "" {
			errCount++
		}
		if i > 0 && rep.Results[i-1].Row > r.Row {
			t.Fatalf("results not sorted by row at index %d", i)
		}
	}
	if errCount != maxErrorResults {
		t.Errorf("error results = %d, want %d", errCount, maxErrorResults)
	}

	if rep.Summary.Errors != 60 || rep.Summary.Created != 60 {
		t.Errorf("summary must reflect true totals: %+v", rep.Summary)
	}
}
