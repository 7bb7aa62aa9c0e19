package data

import (
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// readJSON reads a top-level array of flat objects. Column order follows the
// keys of the first object; later objects may omit keys or carry extras.
func readJSON(src DataSource) (*table, error) {
	raw, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, sourceErrorf(src, err, "cannot read %s", src.Path)
	}
	if !gjson.ValidBytes(raw) {
		return nil, sourceErrorf(src, nil, "%s is not valid JSON", src.Path)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsArray() {
		return nil, sourceErrorf(src, nil, "%s must contain a top-level array of objects", src.Path)
	}
	items := doc.Array()
	if len(items) == 0 || !items[0].IsObject() {
		return nil, sourceErrorf(src, nil, "header row is missing: first element of %s is not an object", src.Path)
	}

	var keys []string
	items[0].ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})

	t := &table{header: make([]Cell, len(keys))}
	for i, k := range keys {
		t.header[i] = Text(k)
	}
	for i, item := range items {
		if !item.IsObject() {
			return nil, sourceErrorf(src, nil, "element %d is not an object", i)
		}
		cells := make([]Cell, len(keys))
		for j, k := range keys {
			cells[j] = jsonCell(item.Get(gjson.Escape(k)))
		}
		t.rows = append(t.rows, rawRow{line: i + 1, cells: cells})
	}
	return t, nil
}

func jsonCell(v gjson.Result) Cell {
	switch v.Type {
	case gjson.True:
		return Boolean(true)
	case gjson.False:
		return Boolean(false)
	case gjson.Number:
		if integerLiteral(v.Raw) {
			// Digits are kept as written; float64 drops precision past 2^53.
			if v.Raw == "-0" {
				return Number(0)
			}
			return Text(v.Raw)
		}
		return Number(v.Float())
	case gjson.String:
		return Text(v.Str)
	case gjson.JSON:
		return Text(v.Raw)
	default:
		return Empty()
	}
}

// integerLiteral reports whether raw is a JSON number with no fraction or
// exponent.
func integerLiteral(raw string) bool {
	digits := strings.TrimPrefix(raw, "-")
	if digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
