package importer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mosaicly/catalog/internal/genai"
)

// fakes_test.go provides in-memory test doubles for the Catalog store and
// the Generator, with hooks to force failures on specific calls.

type storedItem struct {
	ID   uuid.UUID
	Slug string
	Item ItemRecord
}

type storedLabel struct {
	ID          uuid.UUID
	Slug        string
	Name        string
	Description string
}

type fakeCatalog struct {
	mu sync.Mutex

	items       map[string]*storedItem  // by slug
	tags        map[string]*storedLabel // by slug
	collections map[string]*storedLabel // by slug

	itemTags        map[uuid.UUID]map[uuid.UUID]struct{}
	itemCollections map[uuid.UUID]map[uuid.UUID]struct{}

	// updates records every FieldUpdates passed to UpdateItem/UpdateLabel,
	// keyed by entity ID, for asserting partial-update contents.
	updates map[uuid.UUID]FieldUpdates

	// failInsertCall forces the nth (1-based) bulk insert call to fail.
	failInsertCall map[int]error
	insertCalls    int

	// failLinkInsertCall forces the nth bulk link insert to fail.
	failLinkInsertCall map[int]error
	linkInsertCalls    int

	updateErr error
	ensureErr error
	deleteErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		items:           make(map[string]*storedItem),
		tags:            make(map[string]*storedLabel),
		collections:     make(map[string]*storedLabel),
		itemTags:        make(map[uuid.UUID]map[uuid.UUID]struct{}),
		itemCollections: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		updates:         make(map[uuid.UUID]FieldUpdates),
	}
}

func (f *fakeCatalog) seedItem(slug string, item ItemRecord) *storedItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	si := &storedItem{ID: uuid.New(), Slug: slug, Item: item}
	f.items[slug] = si
	return si
}

func (f *fakeCatalog) seedTag(name string) *storedLabel {
	f.mu.Lock()
	defer f.mu.Unlock()
	sl := &storedLabel{ID: uuid.New(), Slug: Slugify(name), Name: name}
	f.tags[sl.Slug] = sl
	return sl
}

func (f *fakeCatalog) linksFor(kind Kind, itemID uuid.UUID) map[uuid.UUID]struct{} {
	links := f.itemTags
	if kind == KindCollections {
		links = f.itemCollections
	}
	if links[itemID] == nil {
		links[itemID] = make(map[uuid.UUID]struct{})
	}
	return links[itemID]
}

func (f *fakeCatalog) ItemSlugs(ctx context.Context) (map[string]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]uuid.UUID, len(f.items))
	for slug, it := range f.items {
		out[slug] = it.ID
	}
	return out, nil
}

func (f *fakeCatalog) TagSlugs(ctx context.Context) (map[string]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]uuid.UUID, len(f.tags))
	for slug, l := range f.tags {
		out[slug] = l.ID
	}
	return out, nil
}

func (f *fakeCatalog) CollectionSlugs(ctx context.Context) (map[string]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]uuid.UUID, len(f.collections))
	for slug, l := range f.collections {
		out[slug] = l.ID
	}
	return out, nil
}

func (f *fakeCatalog) BulkInsertItems(ctx context.Context, inserts []ItemInsert) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.insertCalls++
	if err := f.failInsertCall[f.insertCalls]; err != nil {
		return nil, err
	}

	var written []string
	for _, in := range inserts {
		if _, exists := f.items[in.Slug]; exists {
			continue
		}
		f.items[in.Slug] = &storedItem{ID: in.ID, Slug: in.Slug, Item: in.Item}
		written = append(written, in.Slug)
	}
	return written, nil
}

func (f *fakeCatalog) UpdateItem(ctx context.Context, id uuid.UUID, fields FieldUpdates) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates[id] = fields

	for _, it := range f.items {
		if it.ID != id {
			continue
		}
		applyItemFields(&it.Item, fields)
		return nil
	}
	return fmt.Errorf("no item with id %s", id)
}

func applyItemFields(it *ItemRecord, fields FieldUpdates) {
	for col, v := range fields {
		switch col {
		case ColTitle:
			it.Title = v.(string)
		case ColDescription:
			it.Description = v.(string)
		case ColSummary:
			it.Summary = v.(string)
		case ColContentType:
			it.ContentType = v.(string)
		case ColCategory:
			it.Category = v.(string)
		case ColSourceURL:
			it.SourceURL = v.(string)
		case ColThumbnail:
			it.ThumbnailURL = v.(string)
		case ColStatus:
			it.Status = v.(string)
		case ColAudience:
			it.Audience = v.(string)
		case ColObjectives:
			it.Objectives = v.(string)
		}
	}
}

func (f *fakeCatalog) labelSet(kind Kind) map[string]*storedLabel {
	if kind == KindCollections {
		return f.collections
	}
	return f.tags
}

func (f *fakeCatalog) BulkInsertLabels(ctx context.Context, kind Kind, entries []LabelInsert) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.insertCalls++
	if err := f.failInsertCall[f.insertCalls]; err != nil {
		return nil, err
	}

	set := f.labelSet(kind)
	var written []string
	for _, e := range entries {
		if _, exists := set[e.Slug]; exists {
			continue
		}
		set[e.Slug] = &storedLabel{ID: e.ID, Slug: e.Slug, Name: e.Name, Description: e.Description}
		written = append(written, e.Slug)
	}
	return written, nil
}

func (f *fakeCatalog) UpdateLabel(ctx context.Context, kind Kind, id uuid.UUID, fields FieldUpdates) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates[id] = fields

	for _, l := range f.labelSet(kind) {
		if l.ID != id {
			continue
		}
		if v, ok := fields[ColName]; ok {
			l.Name = v.(string)
		}
		if v, ok := fields[ColDescription]; ok {
			l.Description = v.(string)
		}
		return nil
	}
	return fmt.Errorf("no %s with id %s", kind, id)
}

func (f *fakeCatalog) EnsureVocabulary(ctx context.Context, kind Kind, names []string) (map[string]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ensureErr != nil {
		return nil, f.ensureErr
	}

	set := f.labelSet(kind)
	out := make(map[string]uuid.UUID, len(names))
	for _, name := range names {
		slug := Slugify(name)
		if slug == "" {
			continue
		}
		l, ok := set[slug]
		if !ok {
			l = &storedLabel{ID: uuid.New(), Slug: slug, Name: strings.TrimSpace(name)}
			set[slug] = l
		}
		out[foldName(name)] = l.ID
	}
	return out, nil
}

func (f *fakeCatalog) DeleteLinks(ctx context.Context, kind Kind, itemIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}
	links := f.itemTags
	if kind == KindCollections {
		links = f.itemCollections
	}
	for _, id := range itemIDs {
		delete(links, id)
	}
	return nil
}

func (f *fakeCatalog) BulkInsertLinks(ctx context.Context, kind Kind, pairs []LinkPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.linkInsertCalls++
	if err := f.failLinkInsertCall[f.linkInsertCalls]; err != nil {
		return err
	}
	for _, p := range pairs {
		f.linksFor(kind, p.ItemID)[p.TargetID] = struct{}{}
	}
	return nil
}

// tagNamesFor returns the sorted-insensitively readable tag names linked to
// an item, for assertions.
func (f *fakeCatalog) tagNamesFor(itemID uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var names []string
	for tagID := range f.itemTags[itemID] {
		for _, l := range f.tags {
			if l.ID == tagID {
				names = append(names, l.Name)
			}
		}
	}
	return names
}

// fakeGenerator returns canned field values keyed by request title.
type fakeGenerator struct {
	mu     sync.Mutex
	calls  []genai.Request
	values map[string]map[string]string // title → field → value
	errFor map[string]error             // title → forced error
}

func (g *fakeGenerator) Generate(ctx context.Context, req genai.Request) (map[string]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, req)
	if err := g.errFor[req.Title]; err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, f := range req.Fields {
		if v, ok := g.values[req.Title][f]; ok {
			out[f] = v
		}
	}
	return out, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// tableFor builds a Table with the given canonical columns declared, for
// driving the writer directly in tests.
func tableFor(kind Kind, cols ...Column) *Table {
	t := &Table{Kind: kind, Delimiter: ',', columns: make(map[Column]int)}
	for i, c := range cols {
		t.columns[c] = i
	}
	return t
}
