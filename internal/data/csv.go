package data

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func (s DataSource) delimiter() (rune, error) {
	switch s.Delimiter {
	case "":
		if strings.EqualFold(filepath.Ext(s.Path), ".tsv") {
			return '\t', nil
		}
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s.Delimiter)
	if size != len(s.Delimiter) || r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid delimiter %q", s.Delimiter)
	}
	return r, nil
}

// readDelimited parses a CSV/TSV file. Every cell is text; surrounding
// whitespace is trimmed.
func readDelimited(src DataSource) (*table, error) {
	comma, err := src.delimiter()
	if err != nil {
		return nil, sourceErrorf(src, err, "cannot read %s", src.Path)
	}

	raw, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, sourceErrorf(src, err, "cannot read %s", src.Path)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	r := csv.NewReader(bytes.NewReader(raw))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	t := &table{}
	first := true
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, sourceErrorf(src, err, "cannot parse %s", src.Path)
		}
		line, _ := r.FieldPos(0)

		cells := make([]Cell, len(fields))
		for i, f := range fields {
			f = strings.TrimSpace(f)
			if f == "" {
				cells[i] = Empty()
			} else {
				cells[i] = Text(f)
			}
		}

		if first {
			t.header = cells
			first = false
			continue
		}
		t.rows = append(t.rows, rawRow{line: line, cells: cells})
	}
	return t, nil
}
