package data

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Built-in number formats that render as dates or times, and whether they
// show a date only.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true,
	18: false, 19: false, 20: false, 21: false, 22: false,
	45: false, 46: false, 47: false,
}

// readXLSX reads one worksheet. An empty Sheet selects the first sheet.
// Cells without a value, styled ones included, are omitted by the reader, so
// short rows are padded without a warning and never add header columns.
func readXLSX(src DataSource) (*table, error) {
	f, err := excelize.OpenFile(src.Path)
	if err != nil {
		return nil, sourceErrorf(src, err, "cannot open workbook %s", src.Path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, sourceErrorf(src, nil, "workbook %s has no sheets", src.Path)
	}
	sheet := src.Sheet
	if sheet == "" {
		sheet = sheets[0]
	} else if !containsSheet(sheets, sheet) {
		return nil, sourceErrorf(src, nil, "sheet %q not found (available: %s)", sheet, strings.Join(sheets, ", "))
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, sourceErrorf(src, err, "cannot read sheet %q", sheet)
	}
	if len(rows) == 0 {
		return nil, sourceErrorf(src, nil, "sheet %q is empty", sheet)
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	r := &cellReader{f: f, sheet: sheet, date1904: date1904}
	t := &table{}
	for i, values := range rows {
		cells := make([]Cell, len(values))
		for j, raw := range values {
			c, err := r.cell(j+1, i+1, raw)
			if err != nil {
				return nil, sourceErrorf(src, err, "cannot decode sheet %q", sheet)
			}
			cells[j] = c
		}
		if i == 0 {
			t.header = cells
			continue
		}
		// The reader omits valueless cells, so a row without any is one the
		// sheet does not hold.
		t.rows = append(t.rows, rawRow{line: i + 1, cells: cells, sparse: true, absent: len(values) == 0})
	}
	return t, nil
}

func containsSheet(sheets []string, name string) bool {
	for _, s := range sheets {
		if s == name {
			return true
		}
	}
	return false
}

type cellReader struct {
	f        *excelize.File
	sheet    string
	date1904 bool
}

// cell converts one raw cell value into its typed form.
func (r *cellReader) cell(col, row int, raw string) (Cell, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Cell{}, err
	}
	typ, err := r.f.GetCellType(r.sheet, ref)
	if err != nil {
		return Cell{}, fmt.Errorf("cell %s: %w", ref, err)
	}
	formula, err := r.f.GetCellFormula(r.sheet, ref)
	if err != nil {
		return Cell{}, fmt.Errorf("cell %s: %w", ref, err)
	}

	if formula != "" {
		if raw == "" {
			return Formula(formula, nil), nil
		}
		cached := r.value(ref, typ, raw)
		return Formula(formula, &cached), nil
	}
	return r.value(ref, typ, raw), nil
}

func (r *cellReader) value(ref string, typ excelize.CellType, raw string) Cell {
	if raw == "" {
		return Empty()
	}
	switch typ {
	case excelize.CellTypeBool:
		return Boolean(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeError:
		return Empty()
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return Text(strings.TrimSpace(raw))
	case excelize.CellTypeDate:
		if t, err := time.Parse(DateLayout, raw); err == nil {
			return Date(t)
		}
		if t, ok := parseISODateTime(raw); ok {
			return Temporal(t)
		}
		return Text(raw)
	}

	// Numbers carry no type attribute; dates are numbers with a date format.
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Text(strings.TrimSpace(raw))
	}
	if isDate, dateOnly := r.dateStyle(ref); isDate {
		if t, err := excelize.ExcelDateToTime(f, r.date1904); err == nil {
			if dateOnly {
				return Date(t)
			}
			return Temporal(t)
		}
	}
	return Number(f)
}

// dateStyle reports whether the cell's number format renders a date or time,
// and whether that format shows the date alone.
func (r *cellReader) dateStyle(ref string) (isDate, dateOnly bool) {
	idx, err := r.f.GetCellStyle(r.sheet, ref)
	if err != nil || idx == 0 {
		return false, false
	}
	style, err := r.f.GetStyle(idx)
	if err != nil || style == nil {
		return false, false
	}
	if style.CustomNumFmt != nil {
		return parseDateFormatCode(*style.CustomNumFmt)
	}
	dateOnly, ok := builtinDateFormats[style.NumFmt]
	return ok, dateOnly
}

// parseDateFormatCode inspects a custom number format code, ignoring quoted
// literals and bracketed sections. A code with date tokens and no hour or
// second tokens shows a date only.
func parseDateFormatCode(code string) (isDate, dateOnly bool) {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, ch := range code {
		switch {
		case ch == '"':
			inQuote = !inQuote
		case inQuote:
		case ch == '[':
			inBracket = true
		case ch == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(ch)
		}
	}
	s := strings.ToLower(b.String())
	hasDate := strings.ContainsAny(s, "yd")
	hasTime := strings.ContainsAny(s, "hs")
	return hasDate || hasTime, hasDate && !hasTime
}

func parseISODateTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
