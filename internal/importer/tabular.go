package importer

import (
	"fmt"
	"strings"
)

// tabular.go implements the delimiter & schema detector and the quote-aware
// row parser. The input format is deliberately forgiving: either tabs or
// commas delimit fields, headers may use any recognized spelling, and rows
// may be short (missing trailing fields read as empty).

// Table is the parsed form of a delimited text payload: a resolved header
// mapping plus raw data rows.
type Table struct {
	Kind      Kind
	Delimiter rune

	// columns maps canonical columns to their position in each row.
	// Only recognized headers appear; duplicates keep the first position.
	columns map[Column]int

	// Rows holds raw field values, one slice per data line, in input order.
	Rows [][]string
}

// HasColumn reports whether the input header declared the canonical column.
// Relationship reconciliation is gated on this: a column absent from the
// header must leave existing links untouched.
func (t *Table) HasColumn(col Column) bool {
	_, ok := t.columns[col]
	return ok
}

// Field returns the raw value of col in row, or "" when the column is
// absent or the row is too short.
func (t *Table) Field(row []string, col Column) string {
	pos, ok := t.columns[col]
	if !ok || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

// ParseTable parses a delimited text payload for the given import kind.
// It fails only on structural problems (empty input, mandatory columns
// missing from the header); malformed data rows are the row pipeline's
// concern, not the parser's.
func ParseTable(text string, kind Kind) (*Table, error) {
	text = stripBOM(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	headerLine, rest, ok := firstNonBlankLine(text)
	if !ok {
		return nil, fmt.Errorf("empty input: no header line found")
	}

	delim := detectDelimiter(headerLine)

	t := &Table{
		Kind:      kind,
		Delimiter: delim,
		columns:   make(map[Column]int),
	}

	synonyms := headerSynonyms[kind]
	for i, raw := range splitFields(headerLine, delim) {
		col, ok := synonyms[foldHeader(raw)]
		if !ok {
			continue // unrecognized headers are ignored, not errors
		}
		if _, dup := t.columns[col]; !dup {
			t.columns[col] = i
		}
	}

	var missing []string
	for _, col := range mandatoryColumns[kind] {
		if !t.HasColumn(col) {
			missing = append(missing, string(col))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header is missing required columns: %s", strings.Join(missing, ", "))
	}

	for _, record := range splitRecords(rest, delim) {
		record = strings.TrimSuffix(record, "\\")
		if isBlank(record) {
			continue
		}
		t.Rows = append(t.Rows, splitFields(record, delim))
	}

	return t, nil
}

// detectDelimiter chooses between tab and comma by counting both in the
// header line. Tab wins only on a strict majority; ties fall back to comma.
func detectDelimiter(header string) rune {
	tabs := strings.Count(header, "\t")
	commas := countUnquoted(header, ',')
	if tabs > commas {
		return '\t'
	}
	return ','
}

// countUnquoted counts occurrences of c outside double-quoted regions.
func countUnquoted(s string, c rune) int {
	n := 0
	quoted := false
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
		case r == c && !quoted:
			n++
		}
	}
	return n
}

// splitRecords splits text into logical records. A newline inside a quoted
// field is part of the field, so the split tracks quote state across the
// whole payload in a single pass.
func splitRecords(text string, delim rune) []string {
	var records []string
	var cur strings.Builder
	quoted := false

	for _, r := range text {
		switch {
		case r == '"':
			quoted = !quoted
			cur.WriteRune(r)
		case r == '\n' && !quoted:
			records = append(records, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		records = append(records, cur.String())
	}
	return records
}

// splitFields splits one record into raw field strings. Fields may be
// double-quoted; inside quotes the delimiter and newlines are literal and
// a doubled "" is an escaped quote. Two states, one pass, no backtracking.
func splitFields(record string, delim rune) []string {
	var fields []string
	var cur strings.Builder
	quoted := false

	runes := []rune(record)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quoted:
			if r == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					cur.WriteRune('"')
					i++
				} else {
					quoted = false
				}
			} else {
				cur.WriteRune(r)
			}
		case r == '"':
			quoted = true
		case r == delim:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// firstNonBlankLine returns the first non-blank line and the remaining text.
func firstNonBlankLine(text string) (line, rest string, ok bool) {
	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			line = text
			rest = ""
		} else {
			line = text[:idx]
			rest = text[idx+1:]
		}
		line = strings.TrimSuffix(line, "\\")
		if !isBlank(line) {
			return line, rest, true
		}
		if idx < 0 {
			return "", "", false
		}
		text = rest
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}
