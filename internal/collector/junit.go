package collector

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"pageflow/internal/core"
)

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Errors   int          `xml:"errors,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Errors   int         `xml:"errors,attr"`
	Time     string      `xml:"time,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitMessage `xml:"failure,omitempty"`
	Error     *junitMessage `xml:"error,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitMessage struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr,omitempty"`
	Body    string `xml:",chardata"`
}

// FormatJUnit writes outcomes as a JUnit XML report, one test suite per
// scenario. Artifacts are attached with the [[ATTACHMENT|path]] convention
// understood by common CI servers.
func FormatJUnit(w io.Writer, outcomes []core.Outcome, s *Summary) error {
	doc := junitSuites{
		Name:     "pageflow",
		Tests:    s.Total + s.SuiteErrors,
		Failures: s.Failed,
		Errors:   s.SuiteErrors,
		Time:     seconds(s.SuiteDuration.Seconds()),
	}

	index := make(map[string]int)
	var totals []time.Duration
	for _, o := range outcomes {
		i, ok := index[o.Scenario]
		if !ok {
			i = len(doc.Suites)
			index[o.Scenario] = i
			doc.Suites = append(doc.Suites, junitSuite{Name: o.Scenario})
			totals = append(totals, 0)
		}
		suite := &doc.Suites[i]
		suite.Tests++
		totals[i] += o.Duration

		tc := junitCase{
			Name:      caseName(o),
			Classname: o.Scenario,
			Time:      seconds(o.Duration.Seconds()),
		}
		switch o.Status {
		case core.StatusPassed:
		case core.StatusError:
			suite.Errors++
			tc.Error = &junitMessage{Message: o.Reason, Type: "DataSourceError", Body: o.Reason}
		default:
			suite.Failures++
			tc.Failure = &junitMessage{Message: o.Reason, Body: failureBody(o)}
			tc.SystemOut = attachments(o.Artifact)
		}
		suite.Cases = append(suite.Cases, tc)
	}

	for i := range doc.Suites {
		doc.Suites[i].Time = seconds(totals[i].Seconds())
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode junit report: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func caseName(o core.Outcome) string {
	switch {
	case o.Status == core.StatusError:
		return "load data"
	case o.TestCase != "":
		return fmt.Sprintf("record %d: %s", o.RecordIndex, o.TestCase)
	default:
		return fmt.Sprintf("record %d", o.RecordIndex)
	}
}

func failureBody(o core.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "invocation: %s\n", o.InvocationID)
	if o.Attempts > 1 {
		fmt.Fprintf(&b, "attempts: %d\n", o.Attempts)
	}
	if o.Artifact != nil {
		fmt.Fprintf(&b, "checkpoint: %s\n", o.Artifact.Checkpoint)
	}
	b.WriteString(o.Reason)
	return b.String()
}

func attachments(a *core.Artifact) string {
	if a == nil {
		return ""
	}
	var lines []string
	for _, p := range []string{a.Screenshot, a.Trail} {
		if p != "" {
			lines = append(lines, "[[ATTACHMENT|"+p+"]]")
		}
	}
	return strings.Join(lines, "\n")
}

func seconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
