package demo

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestServeOptions_Validate(t *testing.T) {
	valid := serveOptions{seed: "s", processes: 1, history: time.Hour, logInterval: time.Second}

	tests := []struct {
		name    string
		mutate  func(*serveOptions)
		wantErr string
	}{
		{"valid", func(*serveOptions) {}, ""},
		{"empty seed", func(o *serveOptions) { o.seed = "" }, "--seed cannot be empty"},
		{"no processes", func(o *serveOptions) { o.processes = 0 }, "--processes must be at least 1"},
		{"negative history", func(o *serveOptions) { o.history = -time.Hour }, "--history must be positive"},
		{"tiny log interval", func(o *serveOptions) { o.logInterval = time.Microsecond }, "--log-interval must be at least 1ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid
			tt.mutate(&o)
			err := o.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestServeOptions_DatasetIsDeterministic(t *testing.T) {
	o := serveOptions{seed: "fixed", processes: 3, history: 24 * time.Hour, logInterval: time.Second}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := o.dataset(start)
	b := o.dataset(start.Add(time.Hour))

	if got := len(a.ProcessIDs()); got != 3 {
		t.Fatalf("expected 3 processes, got %d", got)
	}
	if diff := cmp.Diff(a.ProcessIDs(), b.ProcessIDs()); diff != "" {
		t.Errorf("process ids depend on more than the seed (-want +got):\n%s", diff)
	}

	procs, err := a.ListProcesses(context.Background())
	if err != nil {
		t.Fatalf("ListProcesses: %v", err)
	}
	if len(procs) == 0 {
		t.Fatal("expected started processes")
	}
}

func TestServe_RejectsInvalidFlags(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"serve", "--processes", "0"})

	err := cmd.Execute()

	if err == nil || !strings.Contains(err.Error(), "--processes must be at least 1") {
		t.Fatalf("error = %v, want a --processes error", err)
	}
	if strings.Contains(out.String(), "Serving") {
		t.Errorf("server should not start, got: %s", out.String())
	}
}
