// Package data loads tabular test data (delimited files, spreadsheets and JSON
// arrays) into ordered, immutable records.
package data

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pageflow/internal/core"
)

// Format identifies how a source file is parsed.
type Format string

const (
	FormatAuto      Format = ""
	FormatDelimited Format = "csv"
	FormatXLSX      Format = "xlsx"
	FormatJSON      Format = "json"
)

// RowPolicy decides what happens to a data row whose cell count does not
// match the header.
type RowPolicy string

const (
	// RowLenient pads short rows with "" and truncates long ones.
	RowLenient RowPolicy = "lenient"
	// RowStrict rejects the whole source on the first malformed row.
	RowStrict RowPolicy = "strict"
)

// DataSource identifies a tabular origin: a sheet in a workbook or a
// delimited/JSON file.
type DataSource struct {
	Name      string `yaml:"name"`
	Path      string `yaml:"path"`
	Sheet     string `yaml:"sheet"`
	Format    Format `yaml:"format"`
	Delimiter string `yaml:"delimiter"`
}

func (s DataSource) label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Sheet != "" {
		return s.Path + "#" + s.Sheet
	}
	return s.Path
}

// Resolve returns a copy whose relative path is anchored at baseDir.
func (s DataSource) Resolve(baseDir string) DataSource {
	if s.Path != "" && !filepath.IsAbs(s.Path) && baseDir != "" {
		s.Path = filepath.Join(baseDir, s.Path)
	}
	return s
}

func (s DataSource) format() (Format, error) {
	if s.Format != FormatAuto {
		switch s.Format {
		case FormatDelimited, FormatXLSX, FormatJSON:
			return s.Format, nil
		}
		return "", fmt.Errorf("unsupported format %q", s.Format)
	}
	switch ext := strings.ToLower(filepath.Ext(s.Path)); ext {
	case ".csv", ".tsv", ".txt":
		return FormatDelimited, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported file format %q (use .csv, .tsv, .xlsx or .json)", ext)
	}
}

// WarnFunc receives tolerated row problems.
type WarnFunc func(RowDecodeWarning)

type options struct {
	policy RowPolicy
	warn   WarnFunc
}

// Option configures Load.
type Option func(*options)

// WithRowPolicy selects how malformed rows are handled. The default is RowLenient.
func WithRowPolicy(p RowPolicy) Option {
	return func(o *options) {
		if p != "" {
			o.policy = p
		}
	}
}

// WithWarnFunc installs a callback for RowDecodeWarnings.
func WithWarnFunc(fn WarnFunc) Option {
	return func(o *options) { o.warn = fn }
}

// rawRow is one data row as produced by a format reader.
type rawRow struct {
	line  int
	cells []Cell
	// sparse rows come from formats that omit trailing empty cells, so a
	// short row is not a malformed one.
	sparse bool
	// absent marks a row the source does not physically contain, such as a
	// gap between populated worksheet rows.
	absent bool
}

// table is the reader output: an untrimmed header and the data rows.
type table struct {
	header []Cell
	rows   []rawRow
}

// Load reads the whole source and returns its records in row order.
// It keeps no state between calls and is safe for concurrent use.
func Load(src DataSource, opts ...Option) ([]core.Record, error) {
	o := options{policy: RowLenient}
	for _, opt := range opts {
		opt(&o)
	}

	if src.Path == "" {
		return nil, sourceErrorf(src, nil, "no path configured")
	}
	info, err := os.Stat(src.Path)
	if err != nil {
		return nil, sourceErrorf(src, err, "source not found")
	}
	if info.IsDir() {
		return nil, sourceErrorf(src, nil, "%s is a directory", src.Path)
	}

	format, err := src.format()
	if err != nil {
		return nil, sourceErrorf(src, err, "cannot read %s", src.Path)
	}

	var t *table
	switch format {
	case FormatXLSX:
		t, err = readXLSX(src)
	case FormatJSON:
		t, err = readJSON(src)
	default:
		t, err = readDelimited(src)
	}
	if err != nil {
		return nil, err
	}

	header, err := buildHeader(src, t.header)
	if err != nil {
		return nil, err
	}

	records := make([]core.Record, 0, len(t.rows))
	for _, row := range t.rows {
		if row.absent {
			continue
		}
		values, err := shapeRow(src, row, len(header), o)
		if err != nil {
			return nil, err
		}
		records = append(records, core.NewRecord(len(records)+1, header, values))
	}
	return records, nil
}

// buildHeader trims header names and rejects blank or duplicate ones. Every
// header cell names a column, trailing ones included.
func buildHeader(src DataSource, cells []Cell) ([]string, error) {
	if isBlankRow(cells) {
		return nil, sourceErrorf(src, nil, "header row is missing or empty")
	}

	header := make([]string, len(cells))
	seen := make(map[string]int, len(cells))
	for i := range cells {
		name := strings.TrimSpace(Normalize(cells[i]))
		if name == "" {
			return nil, sourceErrorf(src, nil, "header column %d is blank", i+1)
		}
		if prev, dup := seen[name]; dup {
			return nil, sourceErrorf(src, nil, "duplicate header %q in columns %d and %d", name, prev+1, i+1)
		}
		seen[name] = i
		header[i] = name
	}
	return header, nil
}

func shapeRow(src DataSource, row rawRow, width int, o options) ([]string, error) {
	cells := row.cells
	if len(cells) > width {
		// Extra cells that are all blank are trailing separators, not data.
		extra := cells[width:]
		if isBlankRow(extra) {
			cells = cells[:width]
		}
	}

	malformed := len(cells) > width || (len(cells) < width && !row.sparse)
	if malformed {
		w := RowDecodeWarning{Source: src.label(), Line: row.line, Cells: len(cells), Want: width}
		if o.policy == RowStrict {
			return nil, sourceErrorf(src, nil, "malformed row: %s", w)
		}
		if o.warn != nil {
			o.warn(w)
		}
	}

	values := make([]string, width)
	for i := 0; i < width && i < len(cells); i++ {
		values[i] = Normalize(cells[i])
	}
	return values, nil
}

func isBlankRow(cells []Cell) bool {
	for _, c := range cells {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}

// Filter returns the records whose field equals value, preserving order.
// An empty field name returns records unchanged.
func Filter(records []core.Record, field, value string) []core.Record {
	if field == "" {
		return records
	}
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if v, ok := r.Get(field); ok && v == value {
			out = append(out, r)
		}
	}
	return out
}
