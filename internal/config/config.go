// Package config handles YAML suite file parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pageflow/internal/artifact"
	"pageflow/internal/browser"
	"pageflow/internal/collector"
	"pageflow/internal/data"
	"pageflow/internal/interact"
	"pageflow/internal/orchestrator"
	"pageflow/internal/ratelimit"
	"pageflow/internal/session"
)

// Suite is the root of a suite file.
type Suite struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`

	Browser    BrowserConfig         `yaml:"browser"`
	Execution  ExecutionConfig       `yaml:"execution"`
	Artifacts  ArtifactsConfig       `yaml:"artifacts"`
	Sources    []data.DataSource     `yaml:"sources"`
	Scenarios  []ScenarioConfig      `yaml:"scenarios"`
	Thresholds *collector.Thresholds `yaml:"thresholds,omitempty"`

	// dir is the suite file's directory; relative source paths resolve against it.
	dir string
}

// BrowserConfig selects and configures the browser backend.
type BrowserConfig struct {
	Backend        string           `yaml:"backend"`
	Headless       *bool            `yaml:"headless"`
	SlowMo         time.Duration    `yaml:"slow_mo"`
	ExecutablePath string           `yaml:"executable_path"`
	DriverPath     string           `yaml:"driver_path"`
	Viewport       browser.Viewport `yaml:"viewport"`
	UserAgent      string           `yaml:"user_agent"`
}

// ExecutionConfig controls invocation scheduling and the interaction layer.
type ExecutionConfig struct {
	Timeout           time.Duration  `yaml:"timeout"`
	PollInterval      time.Duration  `yaml:"poll_interval"`
	InvocationTimeout time.Duration  `yaml:"invocation_timeout"`
	TeardownGrace     time.Duration  `yaml:"teardown_grace"`
	Concurrency       int            `yaml:"concurrency"`
	Retries           int            `yaml:"retries"`
	LaunchRate        float64        `yaml:"launch_rate"`
	LaunchBurst       int            `yaml:"launch_burst"`
	RowPolicy         data.RowPolicy `yaml:"row_policy"`
}

type ArtifactsConfig struct {
	Dir                   string `yaml:"dir"`
	CheckpointScreenshots bool   `yaml:"checkpoint_screenshots"`
}

// ScenarioConfig binds a registered scenario to a data source.
type ScenarioConfig struct {
	Name string `yaml:"name"`
	// Source names an entry of Suite.Sources.
	Source string `yaml:"source"`
	// Data declares the source inline instead.
	Data *data.DataSource `yaml:"data,omitempty"`
	// Filter keeps only records matching "Field=value".
	Filter  string            `yaml:"filter"`
	Params  map[string]string `yaml:"params"`
	BaseURL string            `yaml:"base_url"`
}

// envPattern matches ${env:VAR} references.
var envPattern = regexp.MustCompile(`\$\{env:([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${env:VAR} references in every scalar value of the
// parsed document. Keys and comments are left alone, and a substituted value
// is never reparsed as YAML. Unset variables are errors.
func expandEnv(n *yaml.Node) error {
	var errs []error
	var walk func(n *yaml.Node)
	walk = func(n *yaml.Node) {
		switch n.Kind {
		case yaml.DocumentNode, yaml.SequenceNode:
			for _, c := range n.Content {
				walk(c)
			}
		case yaml.MappingNode:
			for i := 1; i < len(n.Content); i += 2 {
				walk(n.Content[i])
			}
		case yaml.ScalarNode:
			if !strings.Contains(n.Value, "${env:") {
				return
			}
			n.Value = envPattern.ReplaceAllStringFunc(n.Value, func(match string) string {
				name := envPattern.FindStringSubmatch(match)[1]
				if val, ok := os.LookupEnv(name); ok {
					return val
				}
				errs = append(errs, fmt.Errorf("line %d: env var %q not set", n.Line, name))
				return match
			})
			// A plain, untagged reference takes the type its value implies, so
			// numbers and durations can come from the environment too.
			if n.Style == 0 && n.Tag == "!!str" {
				n.Tag = ""
			}
		}
	}
	walk(n)
	return errors.Join(errs...)
}

// LoadFile reads, expands and parses a suite file, then applies defaults.
// It does not validate; call Validate.
func LoadFile(path string) (*Suite, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file: %w", err)
	}
	s, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// Parse parses suite YAML. Relative source paths resolve against the
// working directory.
func Parse(raw []byte) (*Suite, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing suite file: %w", err)
	}
	if err := expandEnv(&doc); err != nil {
		return nil, fmt.Errorf("expanding suite file: %w", err)
	}

	var s Suite
	if doc.Kind != 0 {
		if err := doc.Decode(&s); err != nil {
			return nil, fmt.Errorf("parsing suite file: %w", err)
		}
	}
	s.applyDefaults()
	return &s, nil
}

func (s *Suite) applyDefaults() {
	if s.Browser.Backend == "" {
		s.Browser.Backend = browser.DefaultBackend
	}
	if s.Browser.Headless == nil {
		headless := true
		s.Browser.Headless = &headless
	}
	if s.Browser.Viewport.Width <= 0 || s.Browser.Viewport.Height <= 0 {
		s.Browser.Viewport = browser.DefaultViewport
	}
	if s.Browser.UserAgent == "" {
		s.Browser.UserAgent = browser.DefaultUserAgent
	}
	if s.Execution.Timeout == 0 {
		s.Execution.Timeout = interact.DefaultTimeout
	}
	if s.Execution.PollInterval == 0 {
		s.Execution.PollInterval = interact.DefaultPollInterval
	}
	if s.Execution.TeardownGrace == 0 {
		s.Execution.TeardownGrace = session.DefaultTeardownGrace
	}
	if s.Execution.Concurrency == 0 {
		s.Execution.Concurrency = 1
	}
	if s.Execution.RowPolicy == "" {
		s.Execution.RowPolicy = data.RowLenient
	}
	if s.Artifacts.Dir == "" {
		s.Artifacts.Dir = artifact.DefaultDir
	}
}

// Dir is the directory relative paths resolve against.
func (s *Suite) Dir() string { return s.dir }

// Validate reports every problem in the suite, joined.
func (s *Suite) Validate() error {
	var errs []error
	if len(s.Scenarios) == 0 {
		errs = append(errs, errors.New("no scenarios defined"))
	}
	if !knownBackend(s.Browser.Backend) {
		errs = append(errs, fmt.Errorf("browser.backend: unknown backend %q (available: %s)",
			s.Browser.Backend, strings.Join(browser.Backends(), ", ")))
	}
	if s.Browser.SlowMo < 0 {
		errs = append(errs, errors.New("browser.slow_mo: must not be negative"))
	}
	if s.Execution.Timeout < 0 {
		errs = append(errs, errors.New("execution.timeout: must not be negative"))
	}
	if s.Execution.PollInterval < 0 {
		errs = append(errs, errors.New("execution.poll_interval: must not be negative"))
	}
	if s.Execution.InvocationTimeout < 0 {
		errs = append(errs, errors.New("execution.invocation_timeout: must not be negative"))
	}
	if s.Execution.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("execution.concurrency: must be at least 1, got %d", s.Execution.Concurrency))
	}
	if s.Execution.Retries < 0 {
		errs = append(errs, fmt.Errorf("execution.retries: must not be negative, got %d", s.Execution.Retries))
	}
	if s.Execution.LaunchRate < 0 {
		errs = append(errs, errors.New("execution.launch_rate: must not be negative"))
	}
	switch s.Execution.RowPolicy {
	case data.RowLenient, data.RowStrict:
	default:
		errs = append(errs, fmt.Errorf("execution.row_policy: must be %q or %q, got %q",
			data.RowLenient, data.RowStrict, s.Execution.RowPolicy))
	}

	names := make(map[string]bool, len(s.Sources))
	for i, src := range s.Sources {
		switch {
		case src.Name == "":
			errs = append(errs, fmt.Errorf("sources[%d]: name is required", i))
		case names[src.Name]:
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate name %q", i, src.Name))
		}
		names[src.Name] = true
		if src.Path == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: path is required", i))
		}
	}

	for i, sc := range s.Scenarios {
		prefix := fmt.Sprintf("scenarios[%d]", i)
		if sc.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", prefix))
		}
		switch {
		case sc.Source != "" && sc.Data != nil:
			errs = append(errs, fmt.Errorf("%s: source and data are mutually exclusive", prefix))
		case sc.Source == "" && sc.Data == nil:
			errs = append(errs, fmt.Errorf("%s: one of source or data is required", prefix))
		case sc.Source != "" && !names[sc.Source]:
			errs = append(errs, fmt.Errorf("%s: unknown source %q", prefix, sc.Source))
		case sc.Data != nil && sc.Data.Path == "":
			errs = append(errs, fmt.Errorf("%s: data.path is required", prefix))
		}
		if sc.Filter != "" {
			if _, _, err := ParseFilter(sc.Filter); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", prefix, err))
			}
		}
	}

	if s.Thresholds != nil {
		if err := s.Thresholds.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("thresholds: %w", err))
		}
	}
	return errors.Join(errs...)
}

func knownBackend(name string) bool {
	for _, b := range browser.Backends() {
		if b == name {
			return true
		}
	}
	return false
}

// ParseFilter splits "Field=value" into its parts.
func ParseFilter(filter string) (field, value string, err error) {
	field, value, ok := strings.Cut(filter, "=")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return "", "", fmt.Errorf("filter %q: want Field=value", filter)
	}
	return field, strings.TrimSpace(value), nil
}

// Source returns the resolved data source of a scenario entry.
func (s *Suite) Source(sc ScenarioConfig) (data.DataSource, error) {
	if sc.Data != nil {
		return sc.Data.Resolve(s.dir), nil
	}
	for _, src := range s.Sources {
		if src.Name == sc.Source {
			return src.Resolve(s.dir), nil
		}
	}
	return data.DataSource{}, fmt.Errorf("scenario %q: unknown source %q", sc.Name, sc.Source)
}

// Lookup resolves a scenario name to its implementation.
type Lookup func(name string) (orchestrator.Func, bool)

// Jobs converts the scenario entries into orchestrator jobs. Unknown
// scenario names keep a nil Run so the orchestrator reports them as suite
// errors.
func (s *Suite) Jobs(lookup Lookup) ([]orchestrator.Job, error) {
	jobs := make([]orchestrator.Job, 0, len(s.Scenarios))
	for _, sc := range s.Scenarios {
		src, err := s.Source(sc)
		if err != nil {
			return nil, err
		}
		job := orchestrator.Job{
			Scenario: sc.Name,
			Source:   src,
			Params:   sc.Params,
			BaseURL:  sc.BaseURL,
		}
		if job.BaseURL == "" {
			job.BaseURL = s.BaseURL
		}
		if lookup != nil {
			job.Run, _ = lookup(sc.Name)
		}
		if sc.Filter != "" {
			field, value, err := ParseFilter(sc.Filter)
			if err != nil {
				return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
			}
			job.FilterField, job.FilterValue = field, value
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Options builds orchestrator options from the suite. The caller supplies
// the driver, reporter and console.
func (s *Suite) Options() orchestrator.Options {
	opts := orchestrator.Options{
		Launch: browser.LaunchOptions{
			Headless:       s.Browser.Headless == nil || *s.Browser.Headless,
			SlowMo:         s.Browser.SlowMo,
			ExecutablePath: s.Browser.ExecutablePath,
			DriverPath:     s.Browser.DriverPath,
		},
		Context: browser.ContextOptions{
			Viewport:  s.Browser.Viewport,
			UserAgent: s.Browser.UserAgent,
		},
		TeardownGrace:         s.Execution.TeardownGrace,
		Timeout:               s.Execution.Timeout,
		PollInterval:          s.Execution.PollInterval,
		InvocationTimeout:     s.Execution.InvocationTimeout,
		Concurrency:           s.Execution.Concurrency,
		Retries:               s.Execution.Retries,
		RowPolicy:             s.Execution.RowPolicy,
		Store:                 artifact.NewStore(s.Artifacts.Dir),
		CheckpointScreenshots: s.Artifacts.CheckpointScreenshots,
	}
	if s.Execution.LaunchRate > 0 {
		opts.Limiter = ratelimit.New(s.Execution.LaunchRate, s.Execution.LaunchBurst)
	}
	return opts
}
