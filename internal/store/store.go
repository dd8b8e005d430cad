// Package store implements the importer's Catalog interface against
// PostgreSQL using pgx. All bulk operations are single multi-row statements
// with insert-if-absent semantics. Nothing here opens a transaction; the
// import pipeline is best-effort per statement.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mosaicly/catalog/internal/importer"
)

// DBTX is the subset of pgx operations the store needs.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Store is the Postgres-backed catalog store.
type Store struct {
	db DBTX
}

// New creates a Store over a pool or transaction.
func New(db DBTX) *Store {
	return &Store{db: db}
}

var _ importer.Catalog = (*Store)(nil)

// entityTable maps an import kind to its primary table.
func entityTable(kind importer.Kind) string {
	switch kind {
	case importer.KindTags:
		return "tags"
	case importer.KindCollections:
		return "collections"
	default:
		return "catalog_items"
	}
}

// linkTable maps a vocabulary kind to its join table and target column.
func linkTable(kind importer.Kind) (table, targetCol string) {
	if kind == importer.KindCollections {
		return "item_collections", "collection_id"
	}
	return "item_tags", "tag_id"
}

// ItemSlugs returns the slug→id snapshot for catalog items.
func (s *Store) ItemSlugs(ctx context.Context) (map[string]uuid.UUID, error) {
	return s.slugMap(ctx, "catalog_items")
}

// TagSlugs returns the slug→id snapshot for tags.
func (s *Store) TagSlugs(ctx context.Context) (map[string]uuid.UUID, error) {
	return s.slugMap(ctx, "tags")
}

// CollectionSlugs returns the slug→id snapshot for collections.
func (s *Store) CollectionSlugs(ctx context.Context) (map[string]uuid.UUID, error) {
	return s.slugMap(ctx, "collections")
}

func (s *Store) slugMap(ctx context.Context, table string) (map[string]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf("SELECT slug, id FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("query %s slugs: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]uuid.UUID)
	for rows.Next() {
		var slug string
		var id pgtype.UUID
		if err := rows.Scan(&slug, &id); err != nil {
			return nil, fmt.Errorf("scan %s slug: %w", table, err)
		}
		out[slug] = uuid.UUID(id.Bytes)
	}
	return out, rows.Err()
}

// itemColumns is the insert column list for catalog_items, in the order
// itemValues produces arguments.
var itemColumns = []string{
	"id", "slug", "title", "description", "summary", "content_type",
	"category", "source_url", "thumbnail_url", "published_at",
	"duration_minutes", "status", "audience", "objectives",
}

func itemValues(it importer.ItemInsert) []any {
	status := it.Item.Status
	if status == "" {
		status = "draft"
	}
	return []any{
		pgUUID(it.ID),
		it.Slug,
		it.Item.Title,
		pgText(it.Item.Description),
		pgText(it.Item.Summary),
		pgText(it.Item.ContentType),
		pgText(it.Item.Category),
		pgText(it.Item.SourceURL),
		pgText(it.Item.ThumbnailURL),
		pgDate(it.Item.PublishedAt),
		pgInt(it.Item.DurationMinutes),
		status,
		pgText(it.Item.Audience),
		pgText(it.Item.Objectives),
	}
}

// BulkInsertItems inserts a chunk of items in one statement, skipping slugs
// that already exist, and returns the slugs actually written.
func (s *Store) BulkInsertItems(ctx context.Context, items []importer.ItemInsert) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	var args []any
	for _, it := range items {
		args = append(args, itemValues(it)...)
	}
	sql := bulkInsertSQL("catalog_items", itemColumns, len(items)) +
		" ON CONFLICT (slug) DO NOTHING RETURNING slug"

	return s.queryInsertedSlugs(ctx, sql, args)
}

var labelColumns = []string{"id", "slug", "name", "description"}

// BulkInsertLabels inserts a chunk of tags or collections, analogous to
// BulkInsertItems.
func (s *Store) BulkInsertLabels(ctx context.Context, kind importer.Kind, entries []importer.LabelInsert) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	var args []any
	for _, e := range entries {
		args = append(args, pgUUID(e.ID), e.Slug, e.Name, pgText(e.Description))
	}
	sql := bulkInsertSQL(entityTable(kind), labelColumns, len(entries)) +
		" ON CONFLICT (slug) DO NOTHING RETURNING slug"

	return s.queryInsertedSlugs(ctx, sql, args)
}

func (s *Store) queryInsertedSlugs(ctx context.Context, sql string, args []any) ([]string, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("bulk insert: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan inserted slug: %w", err)
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

// updateColumnNames maps canonical columns onto table columns. The two
// happen to agree today; the indirection keeps the importer ignorant of
// the schema.
var updateColumnNames = map[importer.Column]string{
	importer.ColTitle:       "title",
	importer.ColName:        "name",
	importer.ColDescription: "description",
	importer.ColSummary:     "summary",
	importer.ColContentType: "content_type",
	importer.ColCategory:    "category",
	importer.ColSourceURL:   "source_url",
	importer.ColThumbnail:   "thumbnail_url",
	importer.ColPublishedAt: "published_at",
	importer.ColDuration:    "duration_minutes",
	importer.ColStatus:      "status",
	importer.ColAudience:    "audience",
	importer.ColObjectives:  "objectives",
}

// updateOrder gives the SET clause a deterministic column order.
var updateOrder = []importer.Column{
	importer.ColTitle, importer.ColName, importer.ColDescription,
	importer.ColSummary, importer.ColContentType, importer.ColCategory,
	importer.ColSourceURL, importer.ColThumbnail, importer.ColPublishedAt,
	importer.ColDuration, importer.ColStatus, importer.ColAudience,
	importer.ColObjectives,
}

// UpdateItem applies a partial update to one item. Only columns present in
// fields are touched.
func (s *Store) UpdateItem(ctx context.Context, id uuid.UUID, fields importer.FieldUpdates) error {
	return s.update(ctx, "catalog_items", true, id, fields)
}

// UpdateLabel applies a partial update to one tag or collection.
func (s *Store) UpdateLabel(ctx context.Context, kind importer.Kind, id uuid.UUID, fields importer.FieldUpdates) error {
	return s.update(ctx, entityTable(kind), false, id, fields)
}

func (s *Store) update(ctx context.Context, table string, hasUpdatedAt bool, id uuid.UUID, fields importer.FieldUpdates) error {
	if len(fields) == 0 {
		return nil
	}

	var set []string
	args := []any{pgUUID(id)}
	for _, col := range updateOrder {
		v, ok := fields[col]
		if !ok {
			continue
		}
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", updateColumnNames[col], len(args)))
	}
	if hasUpdatedAt {
		set = append(set, "updated_at = now()")
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", table, strings.Join(set, ", "))
	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

// EnsureVocabulary creates any of the named tags/collections that do not
// exist yet (keyed by derived slug) and returns folded-name→id for all of
// them, created or pre-existing.
func (s *Store) EnsureVocabulary(ctx context.Context, kind importer.Kind, names []string) (map[string]uuid.UUID, error) {
	if len(names) == 0 {
		return map[string]uuid.UUID{}, nil
	}

	table := entityTable(kind)

	// Dedupe by derived slug; first spelling wins as the display name.
	slugByName := make(map[string]string, len(names))
	var args []any
	count := 0
	for _, name := range names {
		slug := importer.Slugify(name)
		if slug == "" {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := slugByName[key]; dup {
			continue
		}
		slugByName[key] = slug
		args = append(args, pgUUID(uuid.New()), slug, strings.TrimSpace(name))
		count++
	}
	if count == 0 {
		return map[string]uuid.UUID{}, nil
	}

	sql := bulkInsertSQL(table, []string{"id", "slug", "name"}, count) +
		" ON CONFLICT (slug) DO NOTHING"
	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return nil, fmt.Errorf("ensure %s: %w", table, err)
	}

	// Fetch the authoritative ids, covering both freshly created rows and
	// ones another writer raced us to.
	slugs := make([]string, 0, len(slugByName))
	for _, slug := range slugByName {
		slugs = append(slugs, slug)
	}
	rows, err := s.db.Query(ctx,
		fmt.Sprintf("SELECT slug, id FROM %s WHERE slug = ANY($1)", table), slugs)
	if err != nil {
		return nil, fmt.Errorf("fetch %s ids: %w", table, err)
	}
	defer rows.Close()

	idBySlug := make(map[string]uuid.UUID, len(slugs))
	for rows.Next() {
		var slug string
		var id pgtype.UUID
		if err := rows.Scan(&slug, &id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", table, err)
		}
		idBySlug[slug] = uuid.UUID(id.Bytes)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]uuid.UUID, len(slugByName))
	for key, slug := range slugByName {
		if id, ok := idBySlug[slug]; ok {
			out[key] = id
		}
	}
	return out, nil
}

// DeleteLinks removes all join rows of the given kind for the given items.
func (s *Store) DeleteLinks(ctx context.Context, kind importer.Kind, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}
	table, _ := linkTable(kind)

	ids := make([]pgtype.UUID, len(itemIDs))
	for i, id := range itemIDs {
		ids[i] = pgUUID(id)
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE item_id = ANY($1)", table)
	if _, err := s.db.Exec(ctx, sql, ids); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

// BulkInsertLinks inserts join pairs, ignoring ones that already exist.
func (s *Store) BulkInsertLinks(ctx context.Context, kind importer.Kind, pairs []importer.LinkPair) error {
	if len(pairs) == 0 {
		return nil
	}
	table, targetCol := linkTable(kind)

	var args []any
	for _, p := range pairs {
		args = append(args, pgUUID(p.ItemID), pgUUID(p.TargetID))
	}
	sql := bulkInsertSQL(table, []string{"item_id", targetCol}, len(pairs)) +
		" ON CONFLICT DO NOTHING"
	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// bulkInsertSQL builds a multi-row INSERT statement with numbered
// placeholders: INSERT INTO t (a, b) VALUES ($1, $2), ($3, $4), ...
func bulkInsertSQL(table string, columns []string, rowCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))
	n := 1
	for row := 0; row < rowCount; row++ {
		if row > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for col := range columns {
			if col > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}
