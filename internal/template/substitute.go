// Package template expands ${field}, ${env:VAR} and ${fn(args)} placeholders
// in scenario parameters against a data record.
package template

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"pageflow/internal/core"
)

// varPattern matches ${name}, ${env:VAR} and ${fn(args)} placeholders.
var varPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Lookup resolves field names. core.Record implements it.
type Lookup interface {
	Get(name string) (string, bool)
}

// Substitute replaces placeholders in text. Every unresolved placeholder is
// reported; the errors are joined.
func Substitute(text string, fields Lookup) (string, error) {
	if !strings.Contains(text, "${") {
		return text, nil
	}

	var errs []error
	result := varPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[2 : len(match)-1]

		if envName, ok := strings.CutPrefix(name, "env:"); ok {
			if val, ok := os.LookupEnv(envName); ok {
				return val
			}
			errs = append(errs, fmt.Errorf("env var %q not set", envName))
			return match
		}

		if val, isFunc, err := evalFunction(name, fields); isFunc {
			if err != nil {
				errs = append(errs, err)
				return match
			}
			return val
		}

		if fields != nil {
			if val, ok := fields.Get(name); ok {
				return val
			}
		}
		errs = append(errs, fmt.Errorf("field %q not found", name))
		return match
	})

	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return result, nil
}

// SubstituteMap applies Substitute to every value of m.
func SubstituteMap(m map[string]string, fields Lookup) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}

	result := make(map[string]string, len(m))
	var errs []error
	for _, k := range sortedKeys(m) {
		substituted, err := Substitute(m[k], fields)
		if err != nil {
			errs = append(errs, fmt.Errorf("param %q: %w", k, err))
			continue
		}
		result[k] = substituted
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return result, nil
}

// Apply expands params against r and returns r with each param set as a
// field. Params see the record's original fields, not each other.
func Apply(r core.Record, params map[string]string) (core.Record, error) {
	if len(params) == 0 {
		return r, nil
	}
	values, err := SubstituteMap(params, r)
	if err != nil {
		return r, err
	}
	for _, k := range sortedKeys(values) {
		r = r.With(k, values[k])
	}
	return r, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
