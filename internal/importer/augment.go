package importer

import (
	"context"
	"log/slog"

	"github.com/mosaicly/catalog/internal/genai"
	"golang.org/x/sync/errgroup"
)

// augment.go is the optional enrichment stage: rows headed for a write that
// are missing optional descriptive fields get them filled by the generative
// service, a fixed number of calls at a time. A failed call leaves its row's
// Augmented map empty and is never batch-fatal.

// defaultAugmentBatch is how many generation calls run concurrently; the
// stage waits for the whole sub-batch before starting the next one.
const defaultAugmentBatch = 3

// augmentableFields are filled only when the input left them empty.
var augmentableFields = []Column{ColDescription, ColSummary}

// trainingFields are additionally requested for training-category items.
var trainingFields = []Column{ColAudience, ColObjectives}

// Augmenter drives the bounded-concurrency enrichment fan-out.
type Augmenter struct {
	gen       genai.Generator
	log       *slog.Logger
	batchSize int
}

// NewAugmenter builds an Augmenter; batchSize <= 0 falls back to the default.
func NewAugmenter(gen genai.Generator, log *slog.Logger, batchSize int) *Augmenter {
	if batchSize <= 0 {
		batchSize = defaultAugmentBatch
	}
	return &Augmenter{gen: gen, log: log, batchSize: batchSize}
}

// Run enriches every eligible row in sub-batches. Each sub-batch is a join
// barrier: all calls in it complete (or fail) before the next begins. Rows
// with nothing to generate or no source to draw from are silent no-ops.
func (a *Augmenter) Run(ctx context.Context, rows []*Row) {
	eligible := make([]*Row, 0, len(rows))
	for _, row := range rows {
		if len(generateFields(row)) > 0 && sourceRef(row) != "" {
			eligible = append(eligible, row)
		}
	}

	for _, batch := range chunkSlice(eligible, a.batchSize) {
		if ctx.Err() != nil {
			return
		}

		var g errgroup.Group
		for _, row := range batch {
			row := row
			g.Go(func() error {
				a.augmentRow(ctx, row)
				return nil // failures are row-local, recorded on the row
			})
		}
		_ = g.Wait()
	}
}

// augmentRow performs one generation call and attaches the result to its
// own row. Errors are logged and swallowed: the row proceeds unaugmented.
func (a *Augmenter) augmentRow(ctx context.Context, row *Row) {
	fields := generateFields(row)

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}

	req := genai.Request{
		Title:     row.Label,
		SourceURL: sourceRef(row),
		Fields:    names,
	}
	if row.Item != nil {
		req.Category = row.Item.Category
		req.Context = map[string]string{}
		if row.Item.ContentType != "" {
			req.Context["content_type"] = row.Item.ContentType
		}
		if row.Item.Summary != "" {
			req.Context["summary"] = row.Item.Summary
		}
	}

	values, err := a.gen.Generate(ctx, req)
	if err != nil {
		a.log.Warn("augmentation failed, row proceeds unaugmented",
			"row", row.Number, "slug", row.Slug, "error", err)
		return
	}

	if row.Augmented == nil {
		row.Augmented = make(map[Column]string, len(values))
	}
	for _, f := range fields {
		if v, ok := values[string(f)]; ok {
			row.Augmented[f] = v
		}
	}
}

// generateFields is the subset of optional fields the input left empty,
// widened for training-category items.
func generateFields(row *Row) []Column {
	candidates := augmentableFields
	if row.Item != nil && row.Item.Category == "training" {
		candidates = append(append([]Column{}, augmentableFields...), trainingFields...)
	}

	var fields []Column
	for _, col := range candidates {
		if row.inputValue(col) == "" {
			fields = append(fields, col)
		}
	}
	return fields
}

// sourceRef is the URL-like field the generator draws from; rows without
// one are skipped by the stage.
func sourceRef(row *Row) string {
	if row.Item == nil {
		return ""
	}
	return row.Item.SourceURL
}
