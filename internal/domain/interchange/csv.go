// Package interchange reads and writes the comma separated formats used to
// bulk-replace the roster and to export the audit log.
package interchange

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Table is a parsed CSV document.
type Table struct {
	Header []string
	Rows   [][]string
}

// Parse tokenizes text permissively: blank lines are skipped and every field
// is trimmed. Every '"' toggles quoting, wherever it sits in a field, and ""
// inside a quoted span is a literal quote. A quoted span may contain line
// breaks when it is closed later in the input; a quote left open at the end
// of the input only extends to the end of its own line.
func Parse(text string) (Table, error) {
	text = strings.TrimPrefix(text, "\ufeff")

	var records [][]string
	for pos := 0; pos < len(text); {
		rec, next, open := scanRecord(text, pos, len(text))
		if open >= 0 {
			lineEnd := len(text)
			if i := strings.IndexByte(text[open:], '\n'); i >= 0 {
				lineEnd = open + i
			}
			rec, next, _ = scanRecord(text, pos, lineEnd)
		}
		if strings.TrimSpace(text[pos:next]) != "" {
			records = append(records, rec)
		}
		pos = next
	}
	if len(records) == 0 {
		return Table{Header: []string{}, Rows: [][]string{}}, nil
	}
	return Table{Header: records[0], Rows: append([][]string{}, records[1:]...)}, nil
}

// scanRecord reads one record of text starting at start and stopping at end.
// It returns the trimmed fields and the offset after the record. When end is
// reached inside a quoted span, open is the offset of the opening quote and
// fields are still returned as if the span closed at end; open is -1
// otherwise.
func scanRecord(text string, start, end int) (fields []string, next, open int) {
	var (
		cur    strings.Builder
		quoted bool
	)
	open = -1
	flush := func() {
		fields = append(fields, strings.TrimSpace(cur.String()))
		cur.Reset()
	}
	for i := start; i < end; i++ {
		ch := text[i]
		switch {
		case ch == '"':
			if quoted && i+1 < end && text[i+1] == '"' {
				cur.WriteByte('"')
				i++
				continue
			}
			quoted = !quoted
			if quoted {
				open = i
			} else {
				open = -1
			}
		case ch == ',' && !quoted:
			flush()
		case ch == '\n' && !quoted:
			flush()
			return fields, i + 1, -1
		case ch == '\r' && !quoted && i+1 < end && text[i+1] == '\n':
			// CRLF: the newline ends the record.
		default:
			cur.WriteByte(ch)
		}
	}
	flush()
	if end < len(text) {
		// Stopped at the newline ending an unterminated quote's line.
		return fields, end + 1, -1
	}
	return fields, end, open
}

// Write serializes headers and rows to w. Fields containing a comma, a quote
// or a line break are quoted with embedded quotes doubled.
func Write(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Encode is Write into a string.
func Encode(headers []string, rows [][]string) string {
	var buf bytes.Buffer
	// bytes.Buffer writes do not fail.
	_ = Write(&buf, headers, rows)
	return buf.String()
}
