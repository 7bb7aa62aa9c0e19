package data

import (
	"errors"
	"fmt"
)

// ErrDataSource is the kind of every fatal load failure.
var ErrDataSource = errors.New("data source error")

// DataSourceError reports why a whole source could not be loaded. No records
// are ever returned alongside it.
type DataSourceError struct {
	Source string
	Msg    string
	Err    error
}

func (e *DataSourceError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("data source %q: %s", e.Source, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataSourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDataSource}
	}
	return []error{ErrDataSource, e.Err}
}

func sourceErrorf(src DataSource, err error, format string, args ...any) error {
	return &DataSourceError{Source: src.label(), Msg: fmt.Sprintf(format, args...), Err: err}
}

// RowDecodeWarning describes a data row whose cell count did not match the
// header. Under RowLenient the row is padded or truncated and loading goes on.
type RowDecodeWarning struct {
	Source string
	Line   int // 1-based line or spreadsheet row number, header included
	Cells  int
	Want   int
}

func (w RowDecodeWarning) String() string {
	action := "padded"
	if w.Cells > w.Want {
		action = "truncated"
	}
	return fmt.Sprintf("%s: row %d has %d cells, header has %d (%s)", w.Source, w.Line, w.Cells, w.Want, action)
}
