package importer

import "sort"

// Transport caps for the result list. All error rows are reported first
// (up to maxErrorResults), then successes fill the remainder up to
// maxResults; Summary and TotalResults always reflect the true totals.
const (
	maxErrorResults = 50
	maxResults      = 100
)

// RowResult is one row's outcome in transport form.
type RowResult struct {
	Row      int    `json:"row"`
	Identity string `json:"identity"`
	Label    string `json:"label"`
	Created  bool   `json:"created,omitempty"`
	Updated  bool   `json:"updated,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Summary tallies every processed row exactly once.
type Summary struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Report is the structured result returned to the caller.
type Report struct {
	Success      bool        `json:"success"`
	Summary      Summary     `json:"summary"`
	Results      []RowResult `json:"results"`
	TotalResults int         `json:"totalResults"`
}

// BuildReport folds per-row outcomes into the bounded transport report.
func BuildReport(rows []*Row) *Report {
	rep := &Report{}
	rep.Summary.Total = len(rows)

	var errors, successes []RowResult
	for _, row := range rows {
		result := RowResult{
			Row:      row.Number,
			Identity: row.Slug,
			Label:    row.Label,
		}
		switch row.Outcome.Kind {
		case OutcomeCreated:
			rep.Summary.Created++
			result.Created = true
		case OutcomeUpdated:
			rep.Summary.Updated++
			result.Updated = true
		case OutcomeSkipped:
			rep.Summary.Skipped++
			result.Skipped = true
		default:
			// Pending rows at report time are failures too: something
			// upstream stopped before finalizing them.
			rep.Summary.Errors++
			result.Error = row.Outcome.Reason
			if result.Error == "" {
				result.Error = "not processed"
			}
		}
		if result.Error != "" {
			errors = append(errors, result)
		} else {
			successes = append(successes, result)
		}
	}

	rep.Success = rep.Summary.Errors == 0
	rep.TotalResults = len(errors) + len(successes)

	if len(errors) > maxErrorResults {
		errors = errors[:maxErrorResults]
	}
	results := errors
	if room := maxResults - len(results); room > 0 {
		if len(successes) > room {
			successes = successes[:room]
		}
		results = append(results, successes...)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Row < results[j].Row })

	rep.Results = results
	return rep
}
