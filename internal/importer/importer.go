// Package importer implements the bulk tabular import pipeline: delimited
// text in, identity-reconciled catalog entities and relationships out, with
// optional generative augmentation of missing descriptive fields.
//
// The pipeline is a single coordinating flow over pure in-memory stages
// (parse, normalize, resolve) followed by two bounded-parallelism I/O
// fan-outs (augmentation calls, per-row updates). Batch-scoped caches are
// owned by the coordinating flow and never touched concurrently.
package importer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mosaicly/catalog/internal/genai"
)

// Options configures pipeline-wide limits. Zero values use the defaults.
type Options struct {
	// ChunkSize bounds rows per bulk statement (default 50).
	ChunkSize int
	// AugmentConcurrency is the generation calls per sub-batch (default 3).
	AugmentConcurrency int
	// UpdateConcurrency bounds in-flight per-row updates (default 10).
	UpdateConcurrency int
	// Timeout is the wall-clock budget for one whole batch (default 5m).
	// On expiry the pipeline stops initiating work and tags unfinished
	// rows as failed rather than dropping them.
	Timeout time.Duration
}

// RunOptions are the per-batch flags supplied by the caller.
type RunOptions struct {
	// SkipDuplicates and UpdateDuplicates are mutually exclusive; neither
	// set means create-renamed.
	SkipDuplicates   bool
	UpdateDuplicates bool
	// Augment enables the generative enrichment stage.
	Augment bool
}

// Policy maps the flag pair onto a resolver policy.
func (o RunOptions) Policy() (Policy, error) {
	if o.SkipDuplicates && o.UpdateDuplicates {
		return 0, fmt.Errorf("skipDuplicates and updateDuplicates are mutually exclusive")
	}
	switch {
	case o.SkipDuplicates:
		return PolicySkipDuplicates, nil
	case o.UpdateDuplicates:
		return PolicyUpdateDuplicates, nil
	default:
		return PolicyCreateRenamed, nil
	}
}

// Importer runs import batches against a Catalog store. Construct once per
// process and share; each Run owns its own batch-scoped state.
type Importer struct {
	store Catalog
	gen   genai.Generator // nil disables augmentation regardless of flags
	log   *slog.Logger
	opts  Options
}

// New builds an Importer. gen may be nil when no generative service is
// configured.
func New(store Catalog, gen genai.Generator, log *slog.Logger, opts Options) *Importer {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	return &Importer{store: store, gen: gen, log: log, opts: opts}
}

// Run processes one batch of delimited text. It returns an error only for
// whole-batch structural problems (unusable header, invalid flag pair);
// everything else is reported per row inside the Report.
func (imp *Importer) Run(ctx context.Context, kind Kind, payload []byte, ro RunOptions) (*Report, error) {
	policy, err := ro.Policy()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, imp.opts.Timeout)
	defer cancel()

	batchID := uuid.New().String()
	log := imp.log.With("import_id", batchID, "kind", string(kind), "policy", policy.String())
	started := time.Now()

	table, err := ParseTable(string(sanitizeUTF8(payload)), kind)
	if err != nil {
		return nil, err
	}

	rows := buildRows(table)
	log.Info("batch parsed", "rows", len(rows), "delimiter", string(table.Delimiter))

	existing, err := imp.existingSlugs(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("load existing identities: %w", err)
	}

	res := Resolve(rows, existing, policy)

	if ro.Augment && imp.gen != nil {
		aug := NewAugmenter(imp.gen, log, imp.opts.AugmentConcurrency)
		aug.Run(ctx, append(append([]*Row{}, res.ToInsert...), res.ToUpdate...))
	}

	writer := NewWriter(imp.store, log, imp.opts.ChunkSize, imp.opts.UpdateConcurrency)
	writer.Write(ctx, table, res)

	// Whatever the writer could not finalize before cancellation is a
	// timeout failure, never a silent drop.
	if ctx.Err() != nil {
		for _, row := range rows {
			if row.Outcome.Kind == OutcomePending {
				row.fail("import timed out")
			}
		}
	}

	report := BuildReport(rows)
	log.Info("batch finished",
		"total", report.Summary.Total,
		"created", report.Summary.Created,
		"updated", report.Summary.Updated,
		"skipped", report.Summary.Skipped,
		"errors", report.Summary.Errors,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return report, nil
}

func (imp *Importer) existingSlugs(ctx context.Context, kind Kind) (map[string]uuid.UUID, error) {
	switch kind {
	case KindTags:
		return imp.store.TagSlugs(ctx)
	case KindCollections:
		return imp.store.CollectionSlugs(ctx)
	default:
		return imp.store.ItemSlugs(ctx)
	}
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune so
// the parser only ever sees valid UTF-8. Spreadsheet exports with legacy
// encodings are the usual source.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}
	return buf.Bytes()
}
