package collector

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFormatJUnit(t *testing.T) {
	outcomes := sampleOutcomes()
	s := Summarize(outcomes, 10*time.Second)

	var buf bytes.Buffer
	if err := FormatJUnit(&buf, outcomes, s); err != nil {
		t.Fatalf("FormatJUnit: %v", err)
	}
	if !strings.HasPrefix(buf.String(), xml.Header) {
		t.Error("expected XML header")
	}

	var doc junitSuites
	if err := xml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid XML: %v\n%s", err, buf.String())
	}

	if doc.Tests != 3 || doc.Failures != 1 || doc.Errors != 1 || doc.Time != "10.000" {
		t.Errorf("unexpected totals: tests=%d failures=%d errors=%d time=%s",
			doc.Tests, doc.Failures, doc.Errors, doc.Time)
	}

	var names []string
	for _, suite := range doc.Suites {
		names = append(names, suite.Name)
	}
	if diff := cmp.Diff([]string{"login", "account_data_driven"}, names); diff != "" {
		t.Errorf("suites in first-seen order (-want +got):\n%s", diff)
	}

	login := doc.Suites[0]
	if login.Tests != 2 || login.Failures != 1 || login.Time != "2.000" {
		t.Errorf("unexpected login suite: %+v", login)
	}
	if login.Cases[0].Name != "record 1: ValidLogin" || login.Cases[0].Failure != nil {
		t.Errorf("unexpected passing case: %+v", login.Cases[0])
	}

	failed := login.Cases[1]
	if failed.Failure == nil {
		t.Fatal("expected failure element")
	}
	if failed.Failure.Message != "assertion failed: login error should be displayed" {
		t.Errorf("unexpected failure message %q", failed.Failure.Message)
	}
	for _, want := range []string{"invocation: login-002-bbbbbbbb", "attempts: 2", "checkpoint: after_login_attempt"} {
		if !strings.Contains(failed.Failure.Body, want) {
			t.Errorf("expected %q in failure body %q", want, failed.Failure.Body)
		}
	}
	wantOut := "[[ATTACHMENT|screenshots/login-002-bbbbbbbb_failed_after_login_attempt.png]]\n" +
		"[[ATTACHMENT|screenshots/login-002-bbbbbbbb_failed_after_login_attempt.log]]"
	if failed.SystemOut != wantOut {
		t.Errorf("unexpected system-out:\n%s", failed.SystemOut)
	}

	dataErr := doc.Suites[1]
	if dataErr.Errors != 1 || dataErr.Cases[0].Error == nil || dataErr.Cases[0].Name != "load data" {
		t.Errorf("unexpected data source suite: %+v", dataErr)
	}
}
