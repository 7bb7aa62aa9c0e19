package template

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// now is the time source for the time functions; tests replace it.
var now = time.Now

// function computes a generated value. args are the comma separated,
// trimmed call arguments; fields resolves record fields for the functions
// that read them.
type function struct {
	arity [2]int // min, max argument count
	call  func(args []string, fields Lookup) (string, error)
}

// functions are callable as ${name(args)}.
var functions = map[string]function{
	"uuid":          {arity: [2]int{0, 0}, call: fnUUID},
	"timestamp":     {arity: [2]int{0, 0}, call: fnTimestamp},
	"timestamp_ms":  {arity: [2]int{0, 0}, call: fnTimestampMs},
	"date":          {arity: [2]int{0, 1}, call: fnDate},
	"random_int":    {arity: [2]int{2, 2}, call: fnRandomInt},
	"random_string": {arity: [2]int{1, 1}, call: fnRandomString},
	"random_email":  {arity: [2]int{0, 1}, call: fnRandomEmail},
	"random_phone":  {arity: [2]int{0, 0}, call: fnRandomPhone},
	"lower":         {arity: [2]int{1, 1}, call: fieldFunc(strings.ToLower)},
	"upper":         {arity: [2]int{1, 1}, call: fieldFunc(strings.ToUpper)},
	"default":       {arity: [2]int{2, 2}, call: fnDefault},
}

// splitCall splits "name(a, b)" into its name and arguments. ok is false
// when expr is not call shaped.
func splitCall(expr string) (name string, args []string, ok bool) {
	open := strings.IndexByte(expr, '(')
	if open <= 0 || !strings.HasSuffix(expr, ")") {
		return "", nil, false
	}
	name = expr[:open]
	inner := strings.TrimSpace(expr[open+1 : len(expr)-1])
	if inner == "" {
		return name, nil, true
	}
	for _, a := range strings.Split(inner, ",") {
		args = append(args, strings.TrimSpace(a))
	}
	return name, args, true
}

// evalFunction evaluates a call expression. The bool reports whether expr
// named a known function at all.
func evalFunction(expr string, fields Lookup) (string, bool, error) {
	name, args, ok := splitCall(expr)
	if !ok {
		return "", false, nil
	}
	fn, ok := functions[name]
	if !ok {
		return "", false, nil
	}
	if len(args) < fn.arity[0] || len(args) > fn.arity[1] {
		return "", true, fmt.Errorf("function %s: %s", name, arityText(fn.arity, len(args)))
	}
	out, err := fn.call(args, fields)
	if err != nil {
		return "", true, fmt.Errorf("function %s: %w", name, err)
	}
	return out, true, nil
}

func arityText(arity [2]int, got int) string {
	switch {
	case arity[1] == 0:
		return fmt.Sprintf("takes no arguments, got %d", got)
	case arity[0] == arity[1]:
		return fmt.Sprintf("takes %d arguments, got %d", arity[0], got)
	default:
		return fmt.Sprintf("takes %d to %d arguments, got %d", arity[0], arity[1], got)
	}
}

func fnUUID([]string, Lookup) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func fnTimestamp([]string, Lookup) (string, error) {
	return strconv.FormatInt(now().Unix(), 10), nil
}

// fnTimestampMs is the millisecond clock generated record names are built on.
func fnTimestampMs([]string, Lookup) (string, error) {
	return strconv.FormatInt(now().UnixMilli(), 10), nil
}

// fnDate formats the current time with a Go layout, RFC 3339 by default.
func fnDate(args []string, _ Lookup) (string, error) {
	layout := time.RFC3339
	if len(args) == 1 && args[0] != "" {
		layout = args[0]
	}
	return now().Format(layout), nil
}

func fnRandomInt(args []string, _ Lookup) (string, error) {
	lo, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid min: %w", err)
	}
	hi, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid max: %w", err)
	}
	if lo > hi {
		return "", fmt.Errorf("min (%d) must be <= max (%d)", lo, hi)
	}
	return strconv.FormatInt(lo+rand.Int64N(hi-lo+1), 10), nil
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomString(n int, charset string) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = charset[rand.IntN(len(charset))]
	}
	return string(b)
}

func fnRandomString(args []string, _ Lookup) (string, error) {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("invalid length: %w", err)
	}
	if n <= 0 || n > 1000 {
		return "", fmt.Errorf("length must be in 1..1000, got %d", n)
	}
	return randomString(n, alphanumeric), nil
}

// fnRandomEmail returns a fresh address at the given domain, example.com by
// default.
func fnRandomEmail(args []string, _ Lookup) (string, error) {
	domain := "example.com"
	if len(args) == 1 && args[0] != "" {
		domain = args[0]
	}
	return "user_" + strings.ToLower(randomString(8, alphanumeric)) + "@" + domain, nil
}

// fnRandomPhone returns a number shaped like 555-123-4567.
func fnRandomPhone([]string, Lookup) (string, error) {
	return fmt.Sprintf("555-%03d-%04d", rand.IntN(1000), rand.IntN(10000)), nil
}

var errNoFields = errors.New("no record to read fields from")

func field(fields Lookup, name string) (string, error) {
	if fields == nil {
		return "", errNoFields
	}
	v, ok := fields.Get(name)
	if !ok {
		return "", fmt.Errorf("field %q not found", name)
	}
	return v, nil
}

// fieldFunc transforms the value of the field named by the single argument.
func fieldFunc(transform func(string) string) func([]string, Lookup) (string, error) {
	return func(args []string, fields Lookup) (string, error) {
		v, err := field(fields, args[0])
		if err != nil {
			return "", err
		}
		return transform(v), nil
	}
}

// fnDefault returns the named field, or the fallback when the field is
// empty or absent.
func fnDefault(args []string, fields Lookup) (string, error) {
	if fields != nil {
		if v, ok := fields.Get(args[0]); ok && v != "" {
			return v, nil
		}
	}
	return args[1], nil
}
