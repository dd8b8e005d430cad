package importer

import (
	"strconv"
	"strings"
	"time"
)

// normalize.go converts raw field strings into typed values. Normalization
// is lenient: unmapped enum spellings pass through hyphenated, bad dates
// and integers become nil, and only a missing title/name drops the row,
// silently, since blank-line artifacts are common in exported sheets.

// MaxSlugLength bounds derived slugs.
const MaxSlugLength = 100

// contentTypeSynonyms maps folded input spellings to canonical content types.
var contentTypeSynonyms = map[string]string{
	"doc":         "document",
	"docs":        "document",
	"document":    "document",
	"article":     "document",
	"page":        "document",
	"video":       "video",
	"vid":         "video",
	"recording":   "video",
	"course":      "course",
	"class":       "course",
	"workshop":    "course",
	"live replay": "live-replay",
	"livereplay":  "live-replay",
	"replay":      "live-replay",
	"webinar":     "live-replay",
	"podcast":     "podcast",
	"pod":         "podcast",
	"episode":     "podcast",
}

var categorySynonyms = map[string]string{
	"training":      "training",
	"train":         "training",
	"education":     "training",
	"learning":      "training",
	"reference":     "reference",
	"ref":           "reference",
	"docs":          "reference",
	"announcement":  "announcement",
	"announcements": "announcement",
	"news":          "announcement",
	"general":       "general",
	"misc":          "general",
	"other":         "general",
}

var statusSynonyms = map[string]string{
	"draft":       "draft",
	"unpublished": "draft",
	"pending":     "draft",
	"published":   "published",
	"live":        "published",
	"active":      "published",
	"public":      "published",
	"archived":    "archived",
	"archive":     "archived",
	"retired":     "archived",
	"inactive":    "archived",
}

// normalizeEnum looks a raw value up in a synonym table after case-folding
// and trimming. Unmapped non-empty values pass through with spaces replaced
// by hyphens so new vocabulary is forward-compatible rather than rejected.
func normalizeEnum(raw string, synonyms map[string]string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return ""
	}
	if v, ok := synonyms[key]; ok {
		return v
	}
	return strings.ReplaceAll(key, " ", "-")
}

// splitList splits a pipe-separated list field, trimming each segment and
// dropping empties.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// dateLayouts is the fallback chain after ISO and M/D/YYYY.
var dateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
}

// parseDate tries ISO YYYY-MM-DD first, then M/D/YYYY, then a small set of
// general layouts. First success wins; total failure yields nil, not an
// error.
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t
	}
	if t, err := time.Parse("1/2/2006", raw); err == nil {
		return &t
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// parseIntField parses a non-negative integer field; invalid yields nil.
func parseIntField(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// Slugify derives a URL-safe identity from free text: lowercase, strip
// everything outside [a-z0-9- ], collapse whitespace to single hyphens,
// trim hyphen edges, truncate to MaxSlugLength.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteRune(' ')
		}
	}

	slug := strings.Join(strings.Fields(b.String()), "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if len(slug) > MaxSlugLength {
		slug = strings.Trim(slug[:MaxSlugLength], "-")
	}
	return slug
}

// buildRows normalizes every parsed line into a Row. Rows whose label field
// is empty are dropped here, before identity resolution, and do not count
// as errors.
func buildRows(t *Table) []*Row {
	rows := make([]*Row, 0, len(t.Rows))

	for i, raw := range t.Rows {
		label := t.Field(raw, labelColumn(t.Kind))
		if label == "" {
			continue
		}

		slug := Slugify(t.Field(raw, ColSlug))
		if slug == "" {
			slug = Slugify(label)
		}
		if slug == "" {
			continue
		}

		row := &Row{
			Number:        i + 1,
			RequestedSlug: slug,
			Slug:          slug,
			Label:         label,
		}

		switch t.Kind {
		case KindItems:
			row.Item = &ItemRecord{
				Title:           label,
				Description:     t.Field(raw, ColDescription),
				Summary:         t.Field(raw, ColSummary),
				ContentType:     normalizeEnum(t.Field(raw, ColContentType), contentTypeSynonyms),
				Category:        normalizeEnum(t.Field(raw, ColCategory), categorySynonyms),
				SourceURL:       t.Field(raw, ColSourceURL),
				ThumbnailURL:    t.Field(raw, ColThumbnail),
				Tags:            splitList(t.Field(raw, ColTags)),
				Collections:     splitList(t.Field(raw, ColCollections)),
				PublishedAt:     parseDate(t.Field(raw, ColPublishedAt)),
				DurationMinutes: parseIntField(t.Field(raw, ColDuration)),
				Status:          normalizeEnum(t.Field(raw, ColStatus), statusSynonyms),
				Audience:        t.Field(raw, ColAudience),
				Objectives:      t.Field(raw, ColObjectives),
			}
		default:
			row.Entry = &LabelRecord{
				Name:        label,
				Description: t.Field(raw, ColDescription),
			}
		}

		rows = append(rows, row)
	}

	return rows
}
