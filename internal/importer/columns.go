package importer

import "strings"

// Kind identifies which catalog entity a batch of rows describes.
type Kind string

const (
	KindItems       Kind = "items"
	KindTags        Kind = "tags"
	KindCollections Kind = "collections"
)

// ParseKind maps a URL/CLI token to an import kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindItems:
		return KindItems, true
	case KindTags:
		return KindTags, true
	case KindCollections:
		return KindCollections, true
	}
	return "", false
}

// Column is a canonical column name. One or more recognized header
// spellings map onto each canonical column; unrecognized headers are
// ignored rather than rejected.
type Column string

const (
	ColTitle       Column = "title"
	ColSlug        Column = "slug"
	ColDescription Column = "description"
	ColSummary     Column = "summary"
	ColContentType Column = "content_type"
	ColCategory    Column = "category"
	ColSourceURL   Column = "source_url"
	ColThumbnail   Column = "thumbnail_url"
	ColTags        Column = "tags"
	ColCollections Column = "collections"
	ColPublishedAt Column = "published_at"
	ColDuration    Column = "duration_minutes"
	ColStatus      Column = "status"
	ColAudience    Column = "audience"
	ColObjectives  Column = "objectives"

	// Tag/collection imports use a name column instead of a title.
	ColName Column = "name"
)

// headerSynonyms maps folded header tokens (lowercased, non-alphanumerics
// stripped) to canonical columns, per import kind.
var headerSynonyms = map[Kind]map[string]Column{
	KindItems: {
		"title":           ColTitle,
		"name":            ColTitle,
		"slug":            ColSlug,
		"id":              ColSlug,
		"identifier":      ColSlug,
		"description":     ColDescription,
		"desc":            ColDescription,
		"summary":         ColSummary,
		"abstract":        ColSummary,
		"contenttype":     ColContentType,
		"type":            ColContentType,
		"mediakind":       ColContentType,
		"mediatype":       ColContentType,
		"format":          ColContentType,
		"category":        ColCategory,
		"kind":            ColCategory,
		"sourceurl":       ColSourceURL,
		"url":             ColSourceURL,
		"link":            ColSourceURL,
		"source":          ColSourceURL,
		"thumbnailurl":    ColThumbnail,
		"thumbnail":       ColThumbnail,
		"image":           ColThumbnail,
		"imageurl":        ColThumbnail,
		"tags":            ColTags,
		"tag":             ColTags,
		"labels":          ColTags,
		"keywords":        ColTags,
		"collections":     ColCollections,
		"collection":      ColCollections,
		"series":          ColCollections,
		"publishedat":     ColPublishedAt,
		"published":       ColPublishedAt,
		"publishdate":     ColPublishedAt,
		"date":            ColPublishedAt,
		"durationminutes": ColDuration,
		"duration":        ColDuration,
		"durationmin":     ColDuration,
		"lengthminutes":   ColDuration,
		"status":          ColStatus,
		"state":           ColStatus,
		"audience":        ColAudience,
		"targetaudience":  ColAudience,
		"objectives":      ColObjectives,
		"learningobjectives": ColObjectives,
	},
	KindTags: {
		"name":        ColName,
		"tag":         ColName,
		"title":       ColName,
		"label":       ColName,
		"slug":        ColSlug,
		"id":          ColSlug,
		"description": ColDescription,
		"desc":        ColDescription,
	},
	KindCollections: {
		"name":        ColName,
		"collection":  ColName,
		"title":       ColName,
		"slug":        ColSlug,
		"id":          ColSlug,
		"description": ColDescription,
		"desc":        ColDescription,
	},
}

// mandatoryColumns lists the canonical columns that must be present in a
// header for the batch to be processable at all. The identity column (slug)
// is never mandatory because it can be derived from the title/name.
var mandatoryColumns = map[Kind][]Column{
	KindItems:       {ColTitle},
	KindTags:        {ColName},
	KindCollections: {ColName},
}

// labelColumn returns the column whose value is the row's display label
// and the fallback source for slug derivation.
func labelColumn(kind Kind) Column {
	if kind == KindItems {
		return ColTitle
	}
	return ColName
}

// foldHeader reduces a raw header token to its lookup form: case-folded
// with every non-alphanumeric character stripped. "Content Type", "content-type"
// and "ContentType" all fold to "contenttype".
func foldHeader(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
