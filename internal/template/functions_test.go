package template

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"pageflow/internal/core"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// freezeNow pins the time functions to t for the duration of the test.
func freezeNow(tb testing.TB, t time.Time) {
	tb.Helper()
	prev := now
	now = func() time.Time { return t }
	tb.Cleanup(func() { now = prev })
}

func eval(t *testing.T, expr string, fields Lookup) string {
	t.Helper()
	out, isFunc, err := evalFunction(expr, fields)
	if !isFunc {
		t.Fatalf("%s: not recognised as a function", expr)
	}
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", expr, err)
	}
	return out
}

func TestSplitCall(t *testing.T) {
	tests := []struct {
		expr string
		name string
		args []string
		ok   bool
	}{
		{"uuid()", "uuid", nil, true},
		{"random_int( 1 , 10 )", "random_int", []string{"1", "10"}, true},
		{"date(2006-01-02)", "date", []string{"2006-01-02"}, true},
		{"default(Phone,)", "default", []string{"Phone", ""}, true},
		{"Username", "", nil, false},
		{"(1,2)", "", nil, false},
		{"lower(Username", "", nil, false},
	}
	for _, tt := range tests {
		name, args, ok := splitCall(tt.expr)
		if ok != tt.ok || name != tt.name || strings.Join(args, "|") != strings.Join(tt.args, "|") || len(args) != len(tt.args) {
			t.Errorf("splitCall(%q) = %q, %q, %v; want %q, %q, %v", tt.expr, name, args, ok, tt.name, tt.args, tt.ok)
		}
	}
}

func TestEvalFunction_NotAFunction(t *testing.T) {
	for _, expr := range []string{"Username", "unknown_func()", "env:HOME"} {
		if _, isFunc, err := evalFunction(expr, nil); isFunc || err != nil {
			t.Errorf("evalFunction(%q) = isFunc %v, err %v; want false, nil", expr, isFunc, err)
		}
	}
}

func TestEvalFunction_Arity(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"uuid(x)", "function uuid: takes no arguments, got 1"},
		{"random_int(5)", "function random_int: takes 2 arguments, got 1"},
		{"random_email(a,b)", "function random_email: takes 0 to 1 arguments, got 2"},
		{"lower()", "function lower: takes 1 arguments, got 0"},
	}
	for _, tt := range tests {
		_, isFunc, err := evalFunction(tt.expr, nil)
		if !isFunc {
			t.Errorf("%s: not recognised as a function", tt.expr)
			continue
		}
		if err == nil || err.Error() != tt.want {
			t.Errorf("%s: error = %v, want %q", tt.expr, err, tt.want)
		}
	}
}

func TestUUID(t *testing.T) {
	first := eval(t, "uuid()", nil)
	if !uuidPattern.MatchString(first) {
		t.Errorf("invalid UUID format: %s", first)
	}
	if first == eval(t, "uuid()", nil) {
		t.Error("UUIDs should be unique")
	}
}

func TestTimeFunctions(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 535_000_000, time.UTC)
	freezeNow(t, at)

	tests := []struct {
		expr string
		want string
	}{
		{"timestamp()", strconv.FormatInt(at.Unix(), 10)},
		{"timestamp_ms()", "1773500966535"},
		{"date()", "2026-03-14T15:09:26Z"},
		{"date(2006-01-02)", "2026-03-14"},
	}
	for _, tt := range tests {
		if got := eval(t, tt.expr, nil); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.expr, got, tt.want)
		}
	}
}

func TestRandomInt(t *testing.T) {
	for i := 0; i < 200; i++ {
		n, err := strconv.Atoi(eval(t, "random_int(1,10)", nil))
		if err != nil {
			t.Fatalf("not an integer: %v", err)
		}
		if n < 1 || n > 10 {
			t.Fatalf("random_int(1,10) = %d, out of range", n)
		}
	}
	if got := eval(t, "random_int(7,7)", nil); got != "7" {
		t.Errorf("random_int(7,7) = %q, want 7", got)
	}
}

func TestRandomInt_Errors(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"random_int(abc,10)", "invalid min"},
		{"random_int(1,xyz)", "invalid max"},
		{"random_int(10,1)", "min (10) must be <= max (1)"},
	}
	for _, tt := range tests {
		_, _, err := evalFunction(tt.expr, nil)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error = %v, want it to contain %q", tt.expr, err, tt.want)
		}
	}
}

func TestRandomString(t *testing.T) {
	got := eval(t, "random_string(12)", nil)
	if !regexp.MustCompile(`^[a-zA-Z0-9]{12}$`).MatchString(got) {
		t.Errorf("random_string(12) = %q", got)
	}

	for _, expr := range []string{"random_string(0)", "random_string(1001)", "random_string(ten)"} {
		if _, _, err := evalFunction(expr, nil); err == nil {
			t.Errorf("%s: expected an error", expr)
		}
	}
}

func TestRandomEmailAndPhone(t *testing.T) {
	tests := []struct {
		expr    string
		pattern string
	}{
		{"random_email()", `^user_[a-z0-9]{8}@example\.com$`},
		{"random_email(crm.test)", `^user_[a-z0-9]{8}@crm\.test$`},
		{"random_phone()", `^555-\d{3}-\d{4}$`},
	}
	for _, tt := range tests {
		got := eval(t, tt.expr, nil)
		if !regexp.MustCompile(tt.pattern).MatchString(got) {
			t.Errorf("%s = %q, doesn't match %s", tt.expr, got, tt.pattern)
		}
	}
}

func TestFieldFunctions(t *testing.T) {
	rec := core.NewRecord(1, []string{"Username", "Phone"}, []string{"Alice@Example.com", ""})

	if got := eval(t, "lower(Username)", rec); got != "alice@example.com" {
		t.Errorf("lower = %q", got)
	}
	if got := eval(t, "upper(Username)", rec); got != "ALICE@EXAMPLE.COM" {
		t.Errorf("upper = %q", got)
	}
	if got := eval(t, "default(Phone, 555-0100)", rec); got != "555-0100" {
		t.Errorf("default of empty field = %q", got)
	}
	if got := eval(t, "default(Username,nobody)", rec); got != "Alice@Example.com" {
		t.Errorf("default of set field = %q", got)
	}
	if got := eval(t, "default(Missing,x)", nil); got != "x" {
		t.Errorf("default without a record = %q", got)
	}

	_, _, err := evalFunction("lower(Password)", rec)
	if err == nil || !strings.Contains(err.Error(), `field "Password" not found`) {
		t.Errorf("lower of missing field: error = %v", err)
	}
	_, _, err = evalFunction("upper(Username)", nil)
	if err == nil || !strings.Contains(err.Error(), "no record") {
		t.Errorf("upper without a record: error = %v", err)
	}
}

func TestSubstitute_Functions(t *testing.T) {
	freezeNow(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	rec := core.NewRecord(1, []string{"Name"}, []string{"acme"})

	tests := []struct {
		input   string
		pattern string
	}{
		{"${uuid()}", uuidPattern.String()},
		{"Test Account ${timestamp_ms()}", `^Test Account 1767323045000$`},
		{"${date(2006-01-02)}-${upper(Name)}", `^2026-01-02-ACME$`},
		{"id-${random_int(100,999)}-suffix", `^id-\d{3}-suffix$`},
		{"${random_string(8)}", `^[a-zA-Z0-9]{8}$`},
	}
	for _, tc := range tests {
		got, err := Substitute(tc.input, rec)
		if err != nil {
			t.Errorf("Substitute(%q) error: %v", tc.input, err)
			continue
		}
		if !regexp.MustCompile(tc.pattern).MatchString(got) {
			t.Errorf("Substitute(%q) = %q, doesn't match %s", tc.input, got, tc.pattern)
		}
	}
}

func TestSubstitute_InvalidFunctionArgs(t *testing.T) {
	_, err := Substitute("${random_int(abc)}", core.NewRecord(1, nil, nil))
	if err == nil || !strings.Contains(err.Error(), "takes 2 arguments") {
		t.Errorf("expected an arity error, got %v", err)
	}
}

func TestSubstitute_UnknownFunctionIsMissingField(t *testing.T) {
	_, err := Substitute("${unknown_func()}", core.NewRecord(1, nil, nil))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected 'not found' error, got: %v", err)
	}
}

func BenchmarkSubstitute_WithFunction(b *testing.B) {
	rec := core.NewRecord(1, []string{"Name"}, []string{"acme"})
	text := "id=${uuid()}&ts=${timestamp()}&n=${upper(Name)}"

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Substitute(text, rec)
	}
}
