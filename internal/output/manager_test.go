package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(&bytes.Buffer{})
	a := m.Register("http://example.com/a.iso")
	b := m.Register("http://example.com/b.iso")
	c := m.Register("http://example.com/c.iso")

	m.SetStatus(a, StatusSizing)
	m.UpdateProgress(a, 512, 2048)
	m.UpdateStats(a, 5, 2)
	job, ok := m.Job(a)
	if !ok {
		t.Fatal("job a not found")
	}
	if job.Status != StatusDownloading || job.Downloaded != 512 || job.Total != 2048 || job.Failures != 2 {
		t.Errorf("unexpected job state %+v", job)
	}

	m.Complete(a, "")
	m.ReportError(b, errors.New("no proxies available"))
	// finished jobs are frozen
	m.UpdateProgress(a, 0, 1)
	m.SetStatus(b, StatusDownloading)

	if job, _ := m.Job(a); job.Status != StatusSuccess || job.Message != "Completed http://example.com/a.iso" {
		t.Errorf("unexpected completed job %+v", job)
	}
	if job, _ := m.Job(b); job.Status != StatusError || job.Error == nil {
		t.Errorf("unexpected failed job %+v", job)
	}
	if job, _ := m.Job(c); job.Status != StatusPending {
		t.Errorf("expected c to be pending, got %s", job.Status)
	}
	if _, ok := m.Job(99); ok {
		t.Error("unknown job reported as found")
	}

	succeeded, failed := m.Counts()
	if succeeded != 1 || failed != 1 {
		t.Errorf("Counts() = %d, %d", succeeded, failed)
	}
}

func TestRender(t *testing.T) {
	m := NewManager(&bytes.Buffer{})
	running := m.Register("http://example.com/running.bin")
	m.Register("http://example.com/waiting.bin")
	done := m.Register("http://example.com/done.bin")
	m.UpdateProgress(running, 50, 100)
	m.UpdateStats(running, 4, 3)
	m.Complete(done, "")

	out := strings.Join(m.Render(200, 40), "\n")
	for _, want := range []string{"running.bin", "50.0%", "3 retries", "Waiting... http://example.com/waiting.bin", "Completed http://example.com/done.bin"} {
		if !strings.Contains(out, want) {
			t.Errorf("render output missing %q:\n%s", want, out)
		}
	}
	// running jobs are listed before waiting ones
	if strings.Index(out, "running.bin") > strings.Index(out, "waiting.bin") {
		t.Errorf("unexpected ordering:\n%s", out)
	}
}

func TestRenderTrimsFinishedJobs(t *testing.T) {
	m := NewManager(&bytes.Buffer{})
	for range 20 {
		m.Complete(m.Register("http://example.com/file"), "")
	}
	lines := m.Render(80, 10)
	if len(lines) != 7 {
		t.Fatalf("expected 7 lines for a 10 line screen, got %d:\n%s", len(lines), strings.Join(lines, "\n"))
	}
	if !strings.Contains(lines[0], "14 jobs finished") {
		t.Errorf("expected a hidden job notice, got %q", lines[0])
	}
}

func TestSummaryForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(&buf)
	if m.Interactive() {
		t.Fatal("a buffer is not a terminal")
	}
	m.StartDisplay()
	m.Complete(m.Register("http://example.com/ok"), "")
	m.ReportError(m.Register("http://example.com/bad"), errors.New("sizing failed"))
	m.StopDisplay()
	m.StopDisplay()

	out := buf.String()
	for _, want := range []string{"Completed 1 of 2", "Failed 1 of 2", "Errors:", "http://example.com/bad", "Error: sizing failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[J") {
		t.Error("non-terminal output should not contain cursor movement")
	}
}

func TestProgressBarAndSpeed(t *testing.T) {
	tests := []struct {
		current, total int64
		want           string
	}{
		{0, 100, "0.0%"},
		{50, 100, "50.0%"},
		{150, 100, "100.0%"},
		{-5, 100, "0.0%"},
		{10, 0, "100.0%"},
	}
	for _, tt := range tests {
		if got := ProgressBar(tt.current, tt.total, 10); !strings.HasSuffix(got, tt.want) {
			t.Errorf("ProgressBar(%d, %d) = %q, want suffix %q", tt.current, tt.total, got, tt.want)
		}
	}
	if got := FormatSpeed(2048, 2*time.Second); got != "1.00 KB/s" {
		t.Errorf("FormatSpeed() = %q", got)
	}
	if got := FormatSpeed(2048, 0); got != "0 B/s" {
		t.Errorf("FormatSpeed() with no elapsed time = %q", got)
	}
}
