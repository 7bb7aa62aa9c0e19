package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"pageflow/internal/collector"
	"pageflow/internal/core"
)

func TestNewProgress(t *testing.T) {
	c := collector.NewCollector()
	defer c.Close()

	progress := NewProgress(c, 4, false)

	if progress.collector != c {
		t.Error("collector not assigned")
	}
	if progress.total != 4 {
		t.Errorf("total = %d, want 4", progress.total)
	}
	if progress.quiet {
		t.Error("quiet should be false")
	}
	if progress.interval != time.Second {
		t.Errorf("interval = %v, want 1s", progress.interval)
	}
}

func TestProgress_QuietMode(t *testing.T) {
	c := collector.NewCollector()
	defer c.Close()

	var buf bytes.Buffer
	progress := NewProgress(c, 1, true)
	progress.SetOutput(&buf)
	progress.SetInterval(time.Millisecond)

	progress.Start()
	time.Sleep(10 * time.Millisecond)
	progress.Stop()

	if buf.Len() != 0 {
		t.Errorf("expected no output in quiet mode, got: %q", buf.String())
	}
}

func TestProgress_DoubleStop(t *testing.T) {
	c := collector.NewCollector()
	defer c.Close()

	progress := NewProgress(c, 1, false)
	progress.SetOutput(&bytes.Buffer{})
	progress.Start()

	progress.Stop()
	progress.Stop()
}

func TestProgress_StopWithoutStart(t *testing.T) {
	c := collector.NewCollector()
	defer c.Close()

	progress := NewProgress(c, 1, false)
	progress.SetOutput(&bytes.Buffer{})

	progress.Stop()
}

func TestProgress_TickerPrintsCounts(t *testing.T) {
	c := collector.NewCollector()
	c.Report(core.Outcome{Scenario: "login", RecordIndex: 1, Status: core.StatusPassed})
	c.Report(core.Outcome{Scenario: "login", RecordIndex: 2, Status: core.StatusFailed})
	c.Close()

	out := &core.SyncBuffer{}
	progress := NewProgress(c, 3, false)
	progress.SetOutput(out)
	progress.SetInterval(2 * time.Millisecond)

	progress.Start()
	deadline := time.Now().Add(time.Second)
	for !strings.Contains(out.String(), "Invocations:") && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	progress.Stop()

	got := out.String()
	if !strings.Contains(got, "Invocations: 2/3 | Passed: 1 | Failed: 1") {
		t.Errorf("expected counts line, got: %q", got)
	}
	if !strings.Contains(got, "[00:00]") {
		t.Errorf("expected elapsed prefix, got: %q", got)
	}
}

func TestProgress_Report(t *testing.T) {
	c := collector.NewCollector()
	defer c.Close()

	var buf bytes.Buffer
	progress := NewProgress(c, 2, false)
	progress.SetOutput(&buf)

	progress.Report(core.Outcome{
		InvocationID: "login-001-abcd1234",
		Scenario:     "login",
		TestCase:     "valid credentials",
		Status:       core.StatusPassed,
		Duration:     1500 * time.Millisecond,
	})
	progress.Report(core.Outcome{
		Scenario: "accounts",
		Status:   core.StatusError,
	})

	got := buf.String()
	if !strings.Contains(got, "✓ login-001-abcd1234 [valid credentials] (") {
		t.Errorf("expected passed line, got: %q", got)
	}
	if !strings.Contains(got, "✗ accounts (") {
		t.Errorf("expected error line labelled by scenario, got: %q", got)
	}
}

func TestProgress_Print(t *testing.T) {
	c := collector.NewCollector()
	defer c.Close()

	var buf bytes.Buffer
	progress := NewProgress(c, 1, false)
	progress.SetOutput(&buf)

	progress.Print("Suite: smoke (3 invocations)")

	output := buf.String()

	if !strings.Contains(output, "\033[K") {
		t.Error("expected output to contain line clear escape sequence")
	}
	if !strings.Contains(output, "Suite: smoke (3 invocations)\n") {
		t.Errorf("expected message ending with newline, got: %q", output)
	}
}

func TestProgress_Print_QuietModeDoesNotPrint(t *testing.T) {
	c := collector.NewCollector()
	defer c.Close()

	var buf bytes.Buffer
	progress := NewProgress(c, 1, true)
	progress.SetOutput(&buf)

	progress.Print("Suite: smoke")
	progress.Report(core.Outcome{Scenario: "login", Status: core.StatusPassed})

	if buf.String() != "" {
		t.Errorf("expected no output in quiet mode, got: %q", buf.String())
	}
}

func TestProgress_Printf(t *testing.T) {
	c := collector.NewCollector()
	defer c.Close()

	var buf bytes.Buffer
	progress := NewProgress(c, 1, false)
	progress.SetOutput(&buf)

	progress.Printf("Scenario: %s (records: %d)", "login", 10)

	if !strings.Contains(buf.String(), "Scenario: login (records: 10)\n") {
		t.Errorf("expected formatted message, got: %q", buf.String())
	}
}

func TestProgress_SetOutput(t *testing.T) {
	c := collector.NewCollector()
	defer c.Close()

	var buf1, buf2 bytes.Buffer
	progress := NewProgress(c, 1, false)

	progress.SetOutput(&buf1)
	progress.Print("message1")

	progress.SetOutput(&buf2)
	progress.Print("message2")

	if !strings.Contains(buf1.String(), "message1") {
		t.Error("expected message1 in buf1")
	}
	if !strings.Contains(buf2.String(), "message2") {
		t.Error("expected message2 in buf2")
	}
	if strings.Contains(buf1.String(), "message2") {
		t.Error("buf1 should not contain message2")
	}
}
