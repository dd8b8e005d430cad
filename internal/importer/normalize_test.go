package importer

import (
	"strings"
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// Enum normalization
// ----------------------------------------------------------------------------

func TestNormalizeEnum(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		synonyms map[string]string
		want     string
	}{
		{name: "synonym maps", raw: "Doc", synonyms: contentTypeSynonyms, want: "document"},
		{name: "spaced synonym", raw: "Live Replay", synonyms: contentTypeSynonyms, want: "live-replay"},
		{name: "exact value passes", raw: "video", synonyms: contentTypeSynonyms, want: "video"},
		{name: "unmapped hyphenates", raw: "Whiteboard Session", synonyms: contentTypeSynonyms, want: "whiteboard-session"},
		{name: "empty stays empty", raw: "   ", synonyms: contentTypeSynonyms, want: ""},
		{name: "status synonym", raw: "LIVE", synonyms: statusSynonyms, want: "published"},
		{name: "category synonym", raw: "education", synonyms: categorySynonyms, want: "training"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeEnum(tt.raw, tt.synonyms); got != tt.want {
				t.Errorf("normalizeEnum(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// List splitting
// ----------------------------------------------------------------------------

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "basic", raw: "a|b|c", want: []string{"a", "b", "c"}},
		{name: "trims and drops empties", raw: " go | postgres ||  ", want: []string{"go", "postgres"}},
		{name: "single value", raw: "solo", want: []string{"solo"}},
		{name: "empty", raw: "  ", want: nil},
		{name: "only separators", raw: "|||", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitList(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("splitList(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("element %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Date parsing
// ----------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string // empty means nil expected
	}{
		{name: "ISO", raw: "2024-03-05", want: "2024-03-05"},
		{name: "US slash", raw: "3/5/2024", want: "2024-03-05"},
		{name: "US slash padded", raw: "03/05/2024", want: "2024-03-05"},
		{name: "month name", raw: "Mar 5, 2024", want: "2024-03-05"},
		{name: "slash ISO", raw: "2024/03/05", want: "2024-03-05"},
		{name: "garbage is nil", raw: "not a date", want: ""},
		{name: "empty is nil", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDate(tt.raw)
			if tt.want == "" {
				if got != nil {
					t.Fatalf("parseDate(%q) = %v, want nil", tt.raw, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("parseDate(%q) = nil, want %s", tt.raw, tt.want)
			}
			if got.Format(time.DateOnly) != tt.want {
				t.Errorf("parseDate(%q) = %s, want %s", tt.raw, got.Format(time.DateOnly), tt.want)
			}
		})
	}
}

func TestParseIntField(t *testing.T) {
	if got := parseIntField("45"); got == nil || *got != 45 {
		t.Errorf("parseIntField(45) = %v, want 45", got)
	}
	for _, raw := range []string{"", "abc", "-3", "4.5"} {
		if got := parseIntField(raw); got != nil {
			t.Errorf("parseIntField(%q) = %v, want nil", raw, got)
		}
	}
}

// ----------------------------------------------------------------------------
// Slug derivation
// ----------------------------------------------------------------------------

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "basic", in: "Hello World", want: "hello-world"},
		{name: "punctuation stripped", in: "  Hello,  World! ", want: "hello-world"},
		{name: "existing hyphens kept", in: "pre-built guide", want: "pre-built-guide"},
		{name: "collapses runs", in: "a  --  b", want: "a-b"},
		{name: "trims hyphen edges", in: "-edge case-", want: "edge-case"},
		{name: "unicode stripped", in: "café au lait", want: "caf-au-lait"},
		{name: "empty", in: "!!!", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	t.Run("truncates to max length", func(t *testing.T) {
		long := strings.Repeat("word ", 50)
		got := Slugify(long)
		if len(got) > MaxSlugLength {
			t.Errorf("len = %d, want <= %d", len(got), MaxSlugLength)
		}
		if strings.HasSuffix(got, "-") {
			t.Errorf("truncated slug %q has trailing hyphen", got)
		}
	})
}

// ----------------------------------------------------------------------------
// Row building
// ----------------------------------------------------------------------------

func TestBuildRows(t *testing.T) {
	t.Run("normalizes item fields", func(t *testing.T) {
		text := "title,type,category,tags,published,duration,status\n" +
			"Intro to Go,Doc,Training,go|basics,2024-03-05,45,live\n"
		table, err := ParseTable(text, KindItems)
		if err != nil {
			t.Fatalf("ParseTable: %v", err)
		}

		rows := buildRows(table)
		if len(rows) != 1 {
			t.Fatalf("expected 1 row, got %d", len(rows))
		}
		row := rows[0]
		if row.RequestedSlug != "intro-to-go" {
			t.Errorf("slug = %q, want intro-to-go", row.RequestedSlug)
		}
		it := row.Item
		if it.ContentType != "document" || it.Category != "training" || it.Status != "published" {
			t.Errorf("enums = %q/%q/%q", it.ContentType, it.Category, it.Status)
		}
		if len(it.Tags) != 2 || it.Tags[0] != "go" {
			t.Errorf("tags = %#v", it.Tags)
		}
		if it.PublishedAt == nil || it.DurationMinutes == nil || *it.DurationMinutes != 45 {
			t.Errorf("published=%v duration=%v", it.PublishedAt, it.DurationMinutes)
		}
	})

	t.Run("explicit slug column wins over derivation", func(t *testing.T) {
		table, err := ParseTable("title,slug\nSome Long Title,custom-id\n", KindItems)
		if err != nil {
			t.Fatalf("ParseTable: %v", err)
		}
		rows := buildRows(table)
		if rows[0].RequestedSlug != "custom-id" {
			t.Errorf("slug = %q, want custom-id", rows[0].RequestedSlug)
		}
	})

	t.Run("rows without a title are silently dropped", func(t *testing.T) {
		table, err := ParseTable("title,tags\n,orphan\nReal,x\n", KindItems)
		if err != nil {
			t.Fatalf("ParseTable: %v", err)
		}
		rows := buildRows(table)
		if len(rows) != 1 || rows[0].Label != "Real" {
			t.Fatalf("expected only the titled row, got %d rows", len(rows))
		}
	})

	t.Run("row numbers are 1-based in input order", func(t *testing.T) {
		table, err := ParseTable("title\nA\nB\nC\n", KindItems)
		if err != nil {
			t.Fatalf("ParseTable: %v", err)
		}
		rows := buildRows(table)
		for i, row := range rows {
			if row.Number != i+1 {
				t.Errorf("row %d has Number %d", i, row.Number)
			}
		}
	})
}
