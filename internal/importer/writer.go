package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Catalog is the storage interface the writer drives. Implemented by
// internal/store against Postgres and by fakes in tests.
type Catalog interface {
	// ItemSlugs returns a slug→id snapshot of every stored item.
	// TagSlugs and CollectionSlugs do the same for the label kinds.
	ItemSlugs(ctx context.Context) (map[string]uuid.UUID, error)
	TagSlugs(ctx context.Context) (map[string]uuid.UUID, error)
	CollectionSlugs(ctx context.Context) (map[string]uuid.UUID, error)

	// BulkInsertItems inserts with insert-if-absent semantics and returns
	// the slugs actually written.
	BulkInsertItems(ctx context.Context, items []ItemInsert) ([]string, error)
	UpdateItem(ctx context.Context, id uuid.UUID, fields FieldUpdates) error

	// BulkInsertLabels/UpdateLabel cover the tag and collection kinds.
	BulkInsertLabels(ctx context.Context, kind Kind, entries []LabelInsert) ([]string, error)
	UpdateLabel(ctx context.Context, kind Kind, id uuid.UUID, fields FieldUpdates) error

	// EnsureVocabulary creates missing tags/collections by name with
	// insert-if-absent semantics and returns the full folded-name→id map
	// for the requested names.
	EnsureVocabulary(ctx context.Context, kind Kind, names []string) (map[string]uuid.UUID, error)

	// DeleteLinks removes every item↔tag or item↔collection pair for the
	// given items; BulkInsertLinks adds pairs with insert-if-absent
	// semantics.
	DeleteLinks(ctx context.Context, kind Kind, itemIDs []uuid.UUID) error
	BulkInsertLinks(ctx context.Context, kind Kind, pairs []LinkPair) error
}

// ItemInsert is one new catalog item, augmentation already merged.
type ItemInsert struct {
	ID   uuid.UUID
	Slug string
	Item ItemRecord
}

// LabelInsert is one new tag or collection.
type LabelInsert struct {
	ID          uuid.UUID
	Slug        string
	Name        string
	Description string
}

// FieldUpdates is a partial update keyed by canonical column. Only columns
// present in the map are written; empty input never overwrites a stored
// value because empty values are never added to the map.
type FieldUpdates map[Column]any

// LinkPair is one many-to-many join row.
type LinkPair struct {
	ItemID   uuid.UUID
	TargetID uuid.UUID
}

// Writer performs the chunked bulk-write stages. It is a best-effort batch
// writer: a failed chunk marks its rows failed and later chunks still run.
type Writer struct {
	store Catalog
	log   *slog.Logger

	chunkSize         int
	updateConcurrency int

	// vocabulary caches, folded name → id, populated by the ensure stage
	// and consulted when building link pairs. Batch-scoped, mutated only
	// between sub-batches by the single coordinating flow.
	tagIDs        map[string]uuid.UUID
	collectionIDs map[string]uuid.UUID
}

// NewWriter builds a Writer. Zero config values fall back to the defaults
// (50-row chunks, 10 concurrent updates).
func NewWriter(store Catalog, log *slog.Logger, chunkSize, updateConcurrency int) *Writer {
	if chunkSize <= 0 {
		chunkSize = 50
	}
	if updateConcurrency <= 0 {
		updateConcurrency = 10
	}
	return &Writer{
		store:             store,
		log:               log,
		chunkSize:         chunkSize,
		updateConcurrency: updateConcurrency,
		tagIDs:            make(map[string]uuid.UUID),
		collectionIDs:     make(map[string]uuid.UUID),
	}
}

// Write runs the write stages for a resolved batch. Outcomes are recorded
// on the rows themselves; Write never returns an error because no single
// failure is batch-fatal.
func (w *Writer) Write(ctx context.Context, t *Table, res Resolution) {
	if t.Kind == KindItems {
		w.ensureVocabulary(ctx, t, res)
	}

	w.insertStage(ctx, t.Kind, res.ToInsert)
	w.updateStage(ctx, t, res.ToUpdate)

	if t.Kind == KindItems {
		w.reconcileLinks(ctx, t, KindTags, ColTags, res)
		w.reconcileLinks(ctx, t, KindCollections, ColCollections, res)
	}
}

// ensureVocabulary bulk-creates any tag/collection names referenced by the
// batch that the store does not know yet, then refreshes the name→id caches.
// A failure here is logged and non-fatal: affected rows simply produce no
// link pairs.
func (w *Writer) ensureVocabulary(ctx context.Context, t *Table, res Resolution) {
	if t.HasColumn(ColTags) {
		names := collectVocabulary(res, func(it *ItemRecord) []string { return it.Tags })
		w.tagIDs = w.ensureKind(ctx, KindTags, names)
	}
	if t.HasColumn(ColCollections) {
		names := collectVocabulary(res, func(it *ItemRecord) []string { return it.Collections })
		w.collectionIDs = w.ensureKind(ctx, KindCollections, names)
	}
}

func (w *Writer) ensureKind(ctx context.Context, kind Kind, names []string) map[string]uuid.UUID {
	ids := make(map[string]uuid.UUID, len(names))
	for _, chunk := range chunkSlice(names, w.chunkSize) {
		if ctx.Err() != nil {
			return ids
		}
		got, err := w.store.EnsureVocabulary(ctx, kind, chunk)
		if err != nil {
			w.log.Error("vocabulary ensure failed", "kind", kind, "count", len(chunk), "error", err)
			continue
		}
		for k, v := range got {
			ids[k] = v
		}
	}
	return ids
}

// collectVocabulary gathers the union of list-valued tokens across every
// row headed for a write, preserving first-seen order.
func collectVocabulary(res Resolution, pick func(*ItemRecord) []string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, rows := range [][]*Row{res.ToInsert, res.ToUpdate} {
		for _, row := range rows {
			if row.Item == nil {
				continue
			}
			for _, name := range pick(row.Item) {
				key := foldName(name)
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				names = append(names, name)
			}
		}
	}
	return names
}

// insertStage bulk-inserts new entities in chunks. A chunk error fails only
// that chunk's rows; rows whose slug does not come back from the store lost
// an insert race and are recorded as skipped.
func (w *Writer) insertStage(ctx context.Context, kind Kind, rows []*Row) {
	for _, chunk := range chunkSlice(rows, w.chunkSize) {
		if err := ctx.Err(); err != nil {
			return
		}

		written, err := w.insertChunk(ctx, kind, chunk)
		if err != nil {
			w.log.Error("bulk insert chunk failed", "kind", kind, "rows", len(chunk), "error", err)
			for _, row := range chunk {
				row.fail(fmt.Sprintf("bulk insert failed: %v", err))
			}
			continue
		}

		for _, row := range chunk {
			if _, ok := written[row.Slug]; ok {
				row.Outcome = Outcome{Kind: OutcomeCreated}
			} else {
				row.skip("already exists")
			}
		}
	}
}

func (w *Writer) insertChunk(ctx context.Context, kind Kind, chunk []*Row) (map[string]struct{}, error) {
	var slugs []string
	var err error

	if kind == KindItems {
		items := make([]ItemInsert, len(chunk))
		for i, row := range chunk {
			items[i] = ItemInsert{ID: row.EntityID, Slug: row.Slug, Item: mergedItem(row)}
		}
		slugs, err = w.store.BulkInsertItems(ctx, items)
	} else {
		entries := make([]LabelInsert, len(chunk))
		for i, row := range chunk {
			entries[i] = LabelInsert{
				ID:          row.EntityID,
				Slug:        row.Slug,
				Name:        row.Entry.Name,
				Description: row.effectiveValue(ColDescription),
			}
		}
		slugs, err = w.store.BulkInsertLabels(ctx, kind, entries)
	}
	if err != nil {
		return nil, err
	}

	written := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		written[s] = struct{}{}
	}
	return written, nil
}

// mergedItem applies the augmentation merge rule to produce the record
// actually written: input wins, augmented values only fill empty fields.
func mergedItem(row *Row) ItemRecord {
	it := *row.Item
	it.Description = row.effectiveValue(ColDescription)
	it.Summary = row.effectiveValue(ColSummary)
	it.Audience = row.effectiveValue(ColAudience)
	it.Objectives = row.effectiveValue(ColObjectives)
	return it
}

// updateStage applies per-row partial updates with bounded concurrency.
// Updates are row-granular by necessity, so this is the one stage that
// fans out per row rather than per chunk.
func (w *Writer) updateStage(ctx context.Context, t *Table, rows []*Row) {
	if len(rows) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.updateConcurrency)

	for _, row := range rows {
		row := row
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				row.fail("import timed out")
				return nil
			}

			fields := buildUpdates(t, row)
			var err error
			if t.Kind == KindItems {
				err = w.store.UpdateItem(gctx, row.EntityID, fields)
			} else {
				err = w.store.UpdateLabel(gctx, t.Kind, row.EntityID, fields)
			}
			if err != nil {
				w.log.Error("row update failed", "slug", row.Slug, "error", err)
				row.fail(fmt.Sprintf("update failed: %v", err))
				return nil
			}
			row.Outcome = Outcome{Kind: OutcomeUpdated}
			return nil
		})
	}
	_ = g.Wait() // workers report failure through row outcomes, never errors
}

// buildUpdates assembles the partial update for one row: only fields that
// were non-empty in the input or filled by augmentation are included, so an
// empty input cell never clobbers a stored value.
func buildUpdates(t *Table, row *Row) FieldUpdates {
	fields := make(FieldUpdates)

	put := func(col Column, v string) {
		if v != "" {
			fields[col] = v
		}
	}

	if row.Item != nil {
		it := row.Item
		put(ColTitle, it.Title)
		put(ColDescription, row.effectiveValue(ColDescription))
		put(ColSummary, row.effectiveValue(ColSummary))
		put(ColContentType, it.ContentType)
		put(ColCategory, it.Category)
		put(ColSourceURL, it.SourceURL)
		put(ColThumbnail, it.ThumbnailURL)
		put(ColStatus, it.Status)
		put(ColAudience, row.effectiveValue(ColAudience))
		put(ColObjectives, row.effectiveValue(ColObjectives))
		if it.PublishedAt != nil {
			fields[ColPublishedAt] = *it.PublishedAt
		}
		if it.DurationMinutes != nil {
			fields[ColDuration] = *it.DurationMinutes
		}
		return fields
	}

	put(ColName, row.Entry.Name)
	put(ColDescription, row.effectiveValue(ColDescription))
	return fields
}

// reconcileLinks replaces the item↔tag or item↔collection pairs for every
// successfully written row, but only when the input actually carried the
// relevant column: replace-if-specified, never merge, and never an
// accidental wipe when the column was absent.
func (w *Writer) reconcileLinks(ctx context.Context, t *Table, kind Kind, col Column, res Resolution) {
	if !t.HasColumn(col) {
		return
	}
	if ctx.Err() != nil {
		return
	}

	vocab := w.tagIDs
	if kind == KindCollections {
		vocab = w.collectionIDs
	}

	var written []*Row
	for _, rows := range [][]*Row{res.ToInsert, res.ToUpdate} {
		for _, row := range rows {
			if row.Outcome.Kind == OutcomeCreated || row.Outcome.Kind == OutcomeUpdated {
				written = append(written, row)
			}
		}
	}
	if len(written) == 0 {
		return
	}

	ids := make([]uuid.UUID, len(written))
	var pairs []LinkPair
	for i, row := range written {
		ids[i] = row.EntityID
		names := row.Item.Tags
		if kind == KindCollections {
			names = row.Item.Collections
		}
		for _, name := range names {
			targetID, ok := vocab[foldName(name)]
			if !ok {
				continue // vocabulary ensure failed for this name; logged there
			}
			pairs = append(pairs, LinkPair{ItemID: row.EntityID, TargetID: targetID})
		}
	}

	if err := w.store.DeleteLinks(ctx, kind, ids); err != nil {
		w.log.Error("link delete failed", "kind", kind, "items", len(ids), "error", err)
		for _, row := range written {
			row.fail(fmt.Sprintf("%s link update failed: %v", kind, err))
		}
		return
	}

	for _, chunk := range chunkSlice(pairs, w.chunkSize) {
		if ctx.Err() != nil {
			return
		}
		if err := w.store.BulkInsertLinks(ctx, kind, chunk); err != nil {
			w.log.Error("link insert chunk failed", "kind", kind, "pairs", len(chunk), "error", err)
			failLinkChunk(written, chunk, kind)
		}
	}
}

// failLinkChunk marks the rows whose pairs sat in a failed link chunk.
func failLinkChunk(written []*Row, chunk []LinkPair, kind Kind) {
	affected := make(map[uuid.UUID]struct{}, len(chunk))
	for _, p := range chunk {
		affected[p.ItemID] = struct{}{}
	}
	for _, row := range written {
		if _, ok := affected[row.EntityID]; ok {
			row.fail(fmt.Sprintf("%s link insert failed", kind))
		}
	}
}

// foldName is the lookup key for vocabulary tokens: case-insensitive,
// whitespace-trimmed.
func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func chunkSlice[T any](s []T, size int) [][]T {
	var chunks [][]T
	for len(s) > 0 {
		n := size
		if len(s) < n {
			n = len(s)
		}
		chunks = append(chunks, s[:n])
		s = s[n:]
	}
	return chunks
}
