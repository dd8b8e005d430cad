package importer

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeKind classifies what ultimately happened to one input row.
type OutcomeKind int

const (
	OutcomePending OutcomeKind = iota
	OutcomeCreated
	OutcomeUpdated
	OutcomeSkipped
	OutcomeFailed
)

// Outcome is the per-row result that survives into the aggregated report.
type Outcome struct {
	Kind   OutcomeKind
	Reason string // populated for skips and failures
}

// ItemRecord is the typed payload of one catalog-item row after
// normalization. String fields are "" when the input left them empty;
// pointer fields are nil when absent or unparseable.
type ItemRecord struct {
	Title           string
	Description     string
	Summary         string
	ContentType     string
	Category        string
	SourceURL       string
	ThumbnailURL    string
	Tags            []string
	Collections     []string
	PublishedAt     *time.Time
	DurationMinutes *int
	Status          string
	Audience        string
	Objectives      string
}

// LabelRecord is the typed payload of a tag or collection row.
type LabelRecord struct {
	Name        string
	Description string
}

// Row is the ephemeral unit of work flowing through the pipeline: parsed,
// normalized, identity-resolved, optionally augmented, written once, then
// reduced to its Outcome.
type Row struct {
	Number int // 1-based data-line index for error reporting

	// RequestedSlug is the slug as derived from input; Slug is the
	// effective identity after collision handling and may differ.
	RequestedSlug string
	Slug          string

	// Label is the display title/name used in the report.
	Label string

	// EntityID is assigned before insert (client-generated) or looked up
	// from the store for updates.
	EntityID uuid.UUID

	Item  *ItemRecord  // set for item imports
	Entry *LabelRecord // set for tag/collection imports

	// Augmented holds values produced by the generative service, keyed by
	// canonical column. The writer consults these only where the input
	// field was empty: input always wins over augmentation.
	Augmented map[Column]string

	Outcome Outcome
}

func (r *Row) fail(reason string) {
	r.Outcome = Outcome{Kind: OutcomeFailed, Reason: reason}
}

func (r *Row) skip(reason string) {
	r.Outcome = Outcome{Kind: OutcomeSkipped, Reason: reason}
}

// inputValue returns the normalized input value for an augmentable column.
func (r *Row) inputValue(col Column) string {
	if r.Item == nil {
		if r.Entry != nil && col == ColDescription {
			return r.Entry.Description
		}
		return ""
	}
	switch col {
	case ColDescription:
		return r.Item.Description
	case ColSummary:
		return r.Item.Summary
	case ColAudience:
		return r.Item.Audience
	case ColObjectives:
		return r.Item.Objectives
	}
	return ""
}

// effectiveValue applies the merge rule: the input value when non-empty,
// otherwise the augmented value (which may also be empty).
func (r *Row) effectiveValue(col Column) string {
	if v := r.inputValue(col); v != "" {
		return v
	}
	return r.Augmented[col]
}
