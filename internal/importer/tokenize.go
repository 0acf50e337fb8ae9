package importer

import "strings"

// RawRow is one tokenized line: trimmed fields with no meaning yet.
type RawRow []string

// Tokenize splits comma-separated text into rows. It never fails: an
// unterminated quote runs to the end of input and the last row is kept.
// Carriage returns are dropped and rows with only empty fields are omitted.
func Tokenize(text string) []RawRow {
	var (
		rows     []RawRow
		current  RawRow
		field    strings.Builder
		inQuotes bool
	)

	pushField := func() {
		current = append(current, strings.TrimSpace(field.String()))
		field.Reset()
	}
	pushRow := func() {
		if hasContent(current) {
			rows = append(rows, current)
		}
		current = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(text) && text[i+1] == '"' {
				field.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == ',' && !inQuotes:
			pushField()
		case c == '\n' && !inQuotes:
			pushField()
			pushRow()
		case c == '\r':
		default:
			field.WriteByte(c)
		}
	}
	pushField()
	pushRow()

	return rows
}

func hasContent(row RawRow) bool {
	for _, f := range row {
		if f != "" {
			return true
		}
	}
	return false
}
