package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pageflow/internal/data"
	"pageflow/internal/orchestrator"
)

func TestLoadFile_FullSuite(t *testing.T) {
	content := `
name: smoke
base_url: http://localhost:8080
browser:
  backend: chromedp
  headless: false
  slow_mo: 50ms
  viewport:
    width: 1280
    height: 720
execution:
  timeout: 5s
  poll_interval: 50ms
  invocation_timeout: 2m
  concurrency: 4
  retries: 1
  launch_rate: 2
  launch_burst: 1
  row_policy: strict
artifacts:
  dir: out
  checkpoint_screenshots: true
sources:
  - name: logins
    path: data/login.csv
scenarios:
  - name: login
    source: logins
    filter: "ExpectedResult=Success"
    params:
      Greeting: "hello ${Username}"
thresholds:
  max_failure_rate: "5%"
  max_failures: 2
`
	s := loadConfigFromString(t, content)

	if s.Name != "smoke" {
		t.Errorf("expected name 'smoke', got %q", s.Name)
	}
	if s.Browser.Backend != "chromedp" {
		t.Errorf("expected backend chromedp, got %q", s.Browser.Backend)
	}
	if *s.Browser.Headless {
		t.Error("expected headless false")
	}
	if s.Browser.SlowMo != 50*time.Millisecond {
		t.Errorf("expected slow_mo 50ms, got %v", s.Browser.SlowMo)
	}
	if s.Browser.Viewport.Width != 1280 || s.Browser.Viewport.Height != 720 {
		t.Errorf("expected viewport 1280x720, got %+v", s.Browser.Viewport)
	}
	if s.Execution.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", s.Execution.Timeout)
	}
	if s.Execution.Concurrency != 4 || s.Execution.Retries != 1 {
		t.Errorf("expected concurrency 4 retries 1, got %d %d", s.Execution.Concurrency, s.Execution.Retries)
	}
	if s.Execution.RowPolicy != data.RowStrict {
		t.Errorf("expected strict row policy, got %q", s.Execution.RowPolicy)
	}
	if len(s.Scenarios) != 1 || s.Scenarios[0].Params["Greeting"] != "hello ${Username}" {
		t.Errorf("expected record placeholders untouched, got %+v", s.Scenarios)
	}
	if s.Thresholds == nil || s.Thresholds.MaxFailureRate != "5%" || *s.Thresholds.MaxFailures != 2 {
		t.Errorf("unexpected thresholds: %+v", s.Thresholds)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoadFile_Defaults(t *testing.T) {
	s := loadConfigFromString(t, `
scenarios:
  - name: login
    data:
      path: login.csv
`)

	if s.Browser.Backend != "playwright" {
		t.Errorf("expected default backend playwright, got %q", s.Browser.Backend)
	}
	if !*s.Browser.Headless {
		t.Error("expected headless by default")
	}
	if s.Browser.Viewport.Width != 1920 || s.Browser.Viewport.Height != 1080 {
		t.Errorf("expected default viewport 1920x1080, got %+v", s.Browser.Viewport)
	}
	if s.Execution.Timeout != 10*time.Second {
		t.Errorf("expected default timeout 10s, got %v", s.Execution.Timeout)
	}
	if s.Execution.PollInterval != 100*time.Millisecond {
		t.Errorf("expected default poll interval 100ms, got %v", s.Execution.PollInterval)
	}
	if s.Execution.Concurrency != 1 {
		t.Errorf("expected default concurrency 1, got %d", s.Execution.Concurrency)
	}
	if s.Execution.RowPolicy != data.RowLenient {
		t.Errorf("expected lenient row policy, got %q", s.Execution.RowPolicy)
	}
	if s.Artifacts.Dir != "screenshots" {
		t.Errorf("expected artifacts dir 'screenshots', got %q", s.Artifacts.Dir)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoadFile_EnvSubstitution(t *testing.T) {
	t.Setenv("PAGEFLOW_TEST_BASE", "https://crm.example.com")

	s := loadConfigFromString(t, `
base_url: "${env:PAGEFLOW_TEST_BASE}"
scenarios:
  - name: login
    data: {path: login.csv}
`)

	if s.BaseURL != "https://crm.example.com" {
		t.Errorf("expected base_url from env, got %q", s.BaseURL)
	}
}

func TestLoadFile_EnvValuesAreNotReparsed(t *testing.T) {
	t.Setenv("PAGEFLOW_TEST_NAME", "qa: nightly")
	t.Setenv("PAGEFLOW_TEST_PASSWORD", "@p #x")
	t.Setenv("PAGEFLOW_TEST_WORKERS", "3")
	t.Setenv("PAGEFLOW_TEST_TIMEOUT", "2s")
	os.Unsetenv("PAGEFLOW_TEST_UNSET")

	s := loadConfigFromString(t, `
# base_url: ${env:PAGEFLOW_TEST_UNSET}
name: ${env:PAGEFLOW_TEST_NAME}
execution:
  concurrency: ${env:PAGEFLOW_TEST_WORKERS}
  timeout: ${env:PAGEFLOW_TEST_TIMEOUT}
scenarios:
  - name: login
    data: {path: login.csv}
    filter: "Password=${env:PAGEFLOW_TEST_PASSWORD}"
    params:
      Password: ${env:PAGEFLOW_TEST_PASSWORD}
      Note: '*${env:PAGEFLOW_TEST_WORKERS}'
`)

	if s.Name != "qa: nightly" {
		t.Errorf("name = %q, want %q", s.Name, "qa: nightly")
	}
	if s.Execution.Concurrency != 3 {
		t.Errorf("concurrency = %d, want 3", s.Execution.Concurrency)
	}
	if s.Execution.Timeout != 2*time.Second {
		t.Errorf("timeout = %v, want 2s", s.Execution.Timeout)
	}
	sc := s.Scenarios[0]
	if sc.Filter != "Password=@p #x" {
		t.Errorf("filter = %q", sc.Filter)
	}
	if sc.Params["Password"] != "@p #x" {
		t.Errorf("params.Password = %q, want %q", sc.Params["Password"], "@p #x")
	}
	if sc.Params["Note"] != "*3" {
		t.Errorf("params.Note = %q, want %q", sc.Params["Note"], "*3")
	}
}

func TestLoadFile_MissingEnv(t *testing.T) {
	os.Unsetenv("PAGEFLOW_TEST_UNSET")
	path := createTempFile(t, `base_url: "${env:PAGEFLOW_TEST_UNSET}"`)

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected error for unset env var")
	}
	if !strings.Contains(err.Error(), `env var "PAGEFLOW_TEST_UNSET" not set`) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadFile_NonexistentFile(t *testing.T) {
	_, err := LoadFile("/nonexistent/path/suite.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := createTempFile(t, `
name: "Invalid
scenarios: [[[invalid
`)

	_, err := LoadFile(path)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	s := loadConfigFromString(t, `
browser:
  backend: netscape
execution:
  concurrency: -1
  retries: -2
  row_policy: loose
sources:
  - name: dup
    path: a.csv
  - name: dup
    path: b.csv
scenarios:
  - name: login
  - name: accounts
    source: nowhere
  - name: filtered
    source: dup
    filter: "no-equals-sign"
thresholds:
  max_failure_rate: "lots"
`)

	err := s.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{
		`unknown backend "netscape"`,
		"execution.concurrency",
		"execution.retries",
		"execution.row_policy",
		`duplicate name "dup"`,
		"scenarios[0]: one of source or data is required",
		`scenarios[1]: unknown source "nowhere"`,
		`filter "no-equals-sign"`,
		"thresholds:",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_NoScenarios(t *testing.T) {
	s := loadConfigFromString(t, `name: empty`)

	err := s.Validate()
	if err == nil || !strings.Contains(err.Error(), "no scenarios defined") {
		t.Errorf("expected 'no scenarios defined', got %v", err)
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in         string
		field, val string
		wantErr    bool
	}{
		{"ExpectedResult=Success", "ExpectedResult", "Success", false},
		{" Industry = Technology ", "Industry", "Technology", false},
		{"Name=", "Name", "", false},
		{"=x", "", "", true},
		{"Industry", "", "", true},
	}
	for _, tt := range tests {
		field, val, err := ParseFilter(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFilter(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if field != tt.field || val != tt.val {
			t.Errorf("ParseFilter(%q) = %q, %q; want %q, %q", tt.in, field, val, tt.field, tt.val)
		}
	}
}

func TestJobs_ResolvesSourcesAndFilters(t *testing.T) {
	path := createTempFile(t, `
base_url: http://localhost:8080
sources:
  - name: logins
    path: data/login.csv
scenarios:
  - name: login
    source: logins
    filter: "ExpectedResult=Failure"
  - name: account_creation
    data:
      path: /abs/accounts.xlsx
      sheet: Accounts
    base_url: http://other
  - name: not_registered
    source: logins
`)
	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("failed to load suite: %v", err)
	}

	called := ""
	lookup := func(name string) (orchestrator.Func, bool) {
		if name == "not_registered" {
			return nil, false
		}
		return func(context.Context, *orchestrator.Env) error {
			called = name
			return nil
		}, true
	}

	jobs, err := s.Jobs(lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}

	login := jobs[0]
	if want := filepath.Join(filepath.Dir(path), "data", "login.csv"); login.Source.Path != want {
		t.Errorf("expected source resolved to %q, got %q", want, login.Source.Path)
	}
	if login.FilterField != "ExpectedResult" || login.FilterValue != "Failure" {
		t.Errorf("unexpected filter: %q=%q", login.FilterField, login.FilterValue)
	}
	if login.BaseURL != "http://localhost:8080" {
		t.Errorf("expected suite base_url, got %q", login.BaseURL)
	}
	if err := login.Run(context.Background(), nil); err != nil || called != "login" {
		t.Errorf("expected login implementation, called=%q err=%v", called, err)
	}

	acct := jobs[1]
	if acct.Source.Path != "/abs/accounts.xlsx" || acct.Source.Sheet != "Accounts" {
		t.Errorf("unexpected inline source: %+v", acct.Source)
	}
	if acct.BaseURL != "http://other" {
		t.Errorf("expected scenario base_url override, got %q", acct.BaseURL)
	}

	if jobs[2].Run != nil {
		t.Error("expected unknown scenario to keep a nil implementation")
	}
}

func TestOptions(t *testing.T) {
	s := loadConfigFromString(t, `
browser:
  headless: false
  user_agent: pageflow-test
execution:
  timeout: 3s
  launch_rate: 4
  retries: 2
artifacts:
  dir: shots
  checkpoint_screenshots: true
scenarios:
  - name: login
    data: {path: login.csv}
`)

	opts := s.Options()

	if opts.Launch.Headless {
		t.Error("expected headed launch")
	}
	if opts.Context.UserAgent != "pageflow-test" {
		t.Errorf("expected user agent, got %q", opts.Context.UserAgent)
	}
	if opts.Timeout != 3*time.Second || opts.Retries != 2 {
		t.Errorf("unexpected timeout/retries: %v %d", opts.Timeout, opts.Retries)
	}
	if opts.Limiter == nil || opts.Limiter.Rate() != 4 {
		t.Errorf("expected launch limiter at 4/s, got %+v", opts.Limiter)
	}
	if opts.Store.Dir() != "shots" {
		t.Errorf("expected artifact dir 'shots', got %q", opts.Store.Dir())
	}
	if !opts.CheckpointScreenshots {
		t.Error("expected checkpoint screenshots")
	}
}

func TestOptions_NoLaunchRateMeansNoLimiter(t *testing.T) {
	s := loadConfigFromString(t, `scenarios: [{name: login, data: {path: a.csv}}]`)

	if s.Options().Limiter != nil {
		t.Error("expected no limiter without launch_rate")
	}
}

// Helper functions

func loadConfigFromString(t *testing.T, content string) *Suite {
	t.Helper()
	s, err := LoadFile(createTempFile(t, content))
	if err != nil {
		t.Fatalf("failed to load suite: %v", err)
	}
	return s
}

func createTempFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "suite.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return tmpFile
}
