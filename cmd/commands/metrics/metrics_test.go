package metrics

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/services/sessiontest"
	"nathanbeddoewebdev/sirius/internal/timewindow"
	"nathanbeddoewebdev/sirius/internal/tui/components"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/go-cmp/cmp"
)

var until = sessiontest.Epoch.Add(2 * time.Hour).Format(time.RFC3339)

// execMetrics runs the metrics command with args and returns stdout and stderr.
func execMetrics(t *testing.T, args ...string) (stdout, stderr string) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	cmd.Execute()
	return ansi.Strip(outBuf.String()), errBuf.String()
}

func firstProcess(t *testing.T, b domain.Backend) domain.ProcessSummary {
	t.Helper()
	procs, err := b.ListProcesses(context.Background())
	if err != nil {
		t.Fatalf("ListProcesses: %v", err)
	}
	return procs[0]
}

func TestMetricsCommand_Summary(t *testing.T) {
	d := sessiontest.Setup(t, 1)
	p := firstProcess(t, d)

	stdout, stderr := execMetrics(t, p.ProcessID, "--summary", "--until", until,
		"--metric", "cpu_usage", "--metric", "frame_time")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	for _, want := range []string{
		p.Exe, "last 1h",
		"cpu_usage", "frame_time", "cur:", "min:", "max:",
		"Time range: 2024-01-01 01:00:00 UTC to 2024-01-01 02:00:00 UTC",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "memory_used") {
		t.Errorf("unselected metric printed:\n%s", stdout)
	}
	if strings.Contains(stdout, "no data") {
		t.Errorf("expected data for every metric:\n%s", stdout)
	}
}

func TestMetricsCommand_SummaryAllMetricsWhenNoneChosen(t *testing.T) {
	d := sessiontest.Setup(t, 1)
	p := firstProcess(t, d)

	stdout, _ := execMetrics(t, p.ProcessID, "--summary", "--until", until, "--since", "15m")

	for _, want := range []string{"cpu_usage", "memory_used", "frame_time", "requests", "last 15m"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestMetricsCommand_UnknownMetric(t *testing.T) {
	d := sessiontest.Setup(t, 1)
	p := firstProcess(t, d)

	_, stderr := execMetrics(t, p.ProcessID, "--summary", "--metric", "gpu_temp")

	if !strings.Contains(stderr, "has no metric gpu_temp") {
		t.Errorf("expected unknown metric error, got: %s", stderr)
	}
}

func TestMetricsCommand_InvalidMetricName(t *testing.T) {
	_, stderr := execMetrics(t, "--summary", "--metric", "9lives")

	if !strings.Contains(stderr, "must start with a letter") {
		t.Errorf("expected metric name error, got: %s", stderr)
	}
}

func TestSummaryWindow(t *testing.T) {
	end := sessiontest.Epoch.Add(time.Hour)
	w := summaryWindow(end, time.Hour, 100)

	if !w.Start.Equal(sessiontest.Epoch) || !w.End.Equal(end) {
		t.Errorf("window = %s, want the hour ending at %s", w, end)
	}
	// 3600s over 100 columns is 36s per column; the coarsest tier below that is 16s.
	if w.Resolution != 16*time.Second {
		t.Errorf("resolution = %s, want 16s", w.Resolution)
	}
	if _, ok := timewindow.DefaultLadder.TierOf(w.Resolution); !ok {
		t.Errorf("resolution %s is not on the tier ladder", w.Resolution)
	}
}

func TestGroupByUnit(t *testing.T) {
	series := []components.SummarySeries{
		{Name: "frame_time", Unit: "ms"},
		{Name: "cpu_usage", Unit: "percent"},
		{Name: "gc_pause", Unit: "ms"},
	}

	got := groupByUnit(series)
	want := [][]components.SummarySeries{
		{{Name: "frame_time", Unit: "ms"}, {Name: "gc_pause", Unit: "ms"}},
		{{Name: "cpu_usage", Unit: "percent"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("groupByUnit mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectMetrics_Precedence(t *testing.T) {
	catalog := []domain.MetricInfo{
		{Name: "cpu_usage", Unit: "percent"},
		{Name: "memory_used", Unit: "bytes"},
	}

	got, err := selectMetrics(catalog, []string{"memory_used"}, []string{"cpu_usage"}, "p", false, nil)
	if err != nil {
		t.Fatalf("selectMetrics: %v", err)
	}
	if diff := cmp.Diff(catalog[1:], got); diff != "" {
		t.Errorf("explicit names mismatch (-want +got):\n%s", diff)
	}

	got, err = selectMetrics(catalog, nil, []string{"cpu_usage", "retired"}, "p", false, nil)
	if err != nil {
		t.Fatalf("selectMetrics: %v", err)
	}
	if diff := cmp.Diff(catalog[:1], got); diff != "" {
		t.Errorf("remembered selection mismatch (-want +got):\n%s", diff)
	}

	got, err = selectMetrics(catalog, nil, nil, "p", false, nil)
	if err != nil {
		t.Fatalf("selectMetrics: %v", err)
	}
	if diff := cmp.Diff(catalog, got); diff != "" {
		t.Errorf("fallback mismatch (-want +got):\n%s", diff)
	}
}

func TestSpanLabel(t *testing.T) {
	tests := map[time.Duration]string{
		time.Hour:                    "1h",
		15 * time.Minute:             "15m",
		90 * time.Second:             "1m30s",
		2*time.Hour + 30*time.Minute: "2h30m",
	}
	for d, want := range tests {
		if got := spanLabel(d); got != want {
			t.Errorf("spanLabel(%s) = %q, want %q", d, got, want)
		}
	}
}
