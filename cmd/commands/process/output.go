package process

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/sirius/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by -o.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// processDetail is what "process show" prints in json and yaml.
type processDetail struct {
	domain.ProcessSummary `yaml:",inline"`
	Metrics               []domain.MetricInfo `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (valid: table, json, yaml)", format)
}

// printStructured encodes v as indented JSON or YAML to the command's stdout.
func printStructured(cmd *cobra.Command, format string, v any) error {
	out := cmd.OutOrStdout()
	if format == formatYAML {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printProcessTable prints one row per process, newest first.
func printProcessTable(w io.Writer, procs []domain.ProcessSummary, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ID\tEXE\tUSER\tCOMPUTER\tSTARTED")
	fmt.Fprintln(tw, "--\t---\t----\t--------\t-------")

	for _, p := range procs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.ProcessID,
			p.Exe,
			p.Username,
			p.Computer,
			humanize.RelTime(p.StartTime, now, "ago", "from now"),
		)
	}

	tw.Flush()
}

// printProcessDetail prints a vertical key-value table of all process fields.
func printProcessDetail(w io.Writer, d processDetail) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	p := d.ProcessSummary

	fmt.Fprintf(tw, "  ID:\t%s\n", p.ProcessID)
	fmt.Fprintf(tw, "  Executable:\t%s\n", p.Exe)
	fmt.Fprintf(tw, "  User:\t%s\n", p.Username)
	if p.Realname != "" {
		fmt.Fprintf(tw, "  Real name:\t%s\n", p.Realname)
	}
	fmt.Fprintf(tw, "  Computer:\t%s\n", p.Computer)
	if p.Distro != "" {
		fmt.Fprintf(tw, "  Distro:\t%s\n", p.Distro)
	}
	if p.CPUBrand != "" {
		fmt.Fprintf(tw, "  CPU:\t%s\n", p.CPUBrand)
	}
	if p.TSCFrequency > 0 {
		fmt.Fprintf(tw, "  TSC frequency:\t%s\n", humanize.SIWithDigits(float64(p.TSCFrequency), 2, "Hz"))
	}
	if !p.StartTime.IsZero() {
		fmt.Fprintf(tw, "  Started:\t%s\n", p.StartTime.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	if p.ParentProcessID != "" {
		fmt.Fprintf(tw, "  Parent:\t%s\n", p.ParentProcessID)
	}
	if len(d.Metrics) > 0 {
		fmt.Fprintf(tw, "  Metrics:\t%d\n", len(d.Metrics))
		for _, m := range d.Metrics {
			unit := m.Unit
			if unit == "" {
				unit = "-"
			}
			fmt.Fprintf(tw, "    %s\t%s\n", m.Name, unit)
		}
	}

	tw.Flush()
}
