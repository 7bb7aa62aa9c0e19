package data

import (
	"math"
	"strconv"
	"time"
)

// Kind tags the source type of a cell as it was found at the parse boundary.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
	KindBoolean
	KindTemporal
	KindFormula
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindTemporal:
		return "temporal"
	case KindFormula:
		return "formula"
	default:
		return "empty"
	}
}

// Canonical layouts for temporal cells. They never depend on the locale.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05Z"
)

// Cell is a typed source cell. Only the field matching Kind is meaningful.
// A formula cell carries its last computed value in Cached, or nil when the
// workbook holds no cached result. DateOnly marks a temporal cell whose
// source format has no time part.
type Cell struct {
	Kind     Kind
	Text     string
	Number   float64
	Boolean  bool
	Time     time.Time
	DateOnly bool
	Formula  string
	Cached   *Cell
}

func Empty() Cell { return Cell{Kind: KindEmpty} }
func Text(s string) Cell { return Cell{Kind: KindText, Text: s} }
func Number(f float64) Cell { return Cell{Kind: KindNumber, Number: f} }
func Boolean(b bool) Cell { return Cell{Kind: KindBoolean, Boolean: b} }
func Temporal(t time.Time) Cell { return Cell{Kind: KindTemporal, Time: t} }
func Date(t time.Time) Cell { return Cell{Kind: KindTemporal, Time: t, DateOnly: true} }

// Formula builds a formula cell. cached may be nil.
func Formula(expr string, cached *Cell) Cell {
	return Cell{Kind: KindFormula, Formula: expr, Cached: cached}
}

// Normalize renders any cell to its canonical string form. It is total:
// unknown kinds and formulas without a cached value render as "".
func Normalize(c Cell) string {
	switch c.Kind {
	case KindText:
		return c.Text
	case KindNumber:
		return formatNumber(c.Number)
	case KindBoolean:
		return strconv.FormatBool(c.Boolean)
	case KindTemporal:
		if c.DateOnly {
			return c.Time.Format(DateLayout)
		}
		return c.Time.UTC().Format(DateTimeLayout)
	case KindFormula:
		if c.Cached == nil || c.Cached.Kind == KindFormula {
			return ""
		}
		return Normalize(*c.Cached)
	default:
		return ""
	}
}

// IsBlank reports whether the cell normalizes to an empty string.
func (c Cell) IsBlank() bool {
	return Normalize(c) == ""
}

func formatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	if f == math.Trunc(f) {
		if f == 0 {
			return "0" // also folds -0
		}
		// 'f' with precision 0 never uses an exponent, even past 2^63.
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
